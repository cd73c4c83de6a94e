/*
	   P2 Two-Pass Assembler

		Copyright (c) 2024, Richard Cornwell

		Permission is hereby granted, free of charge, to any person obtaining a
		copy of this software and associated documentation files (the "Software"),
		to deal in the Software without restriction, including without limitation
		the rights to use, copy, modify, merge, publish, distribute, sublicense,
		and/or sell copies of the Software, and to permit persons to whom the
		Software is furnished to do so, subject to the following conditions:

		The above copyright notice and this permission notice shall be included in
		all copies or substantial portions of the Software.

		THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
		IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
		FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
		RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
		IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
		CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package assemble is the two-pass P2 assembler: pass 1 walks the
// source assigning addresses and tentative symbol values, tolerating
// unresolved forward references; pass 2 re-evaluates every expression
// and emits the final instruction/data image. Errors attach to their
// line and assembly continues; a failed assembly still returns the
// partial image and the symbol table.
package assemble

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcornwell/p2dev/internal/expr"
	"github.com/rcornwell/p2dev/internal/opcode"
	"github.com/rcornwell/p2dev/internal/symbol"
	"github.com/rcornwell/p2dev/internal/token"
	"github.com/rcornwell/p2dev/internal/value"
)

// memSize bounds the origin: the hub address space is 1 MiB.
const memSize = 1 << 20

// ErrKind classifies an assembly failure.
type ErrKind int

const (
	LexError ErrKind = iota
	SyntaxError
	UnknownSymbol
	RedefinedSymbol
	ImmediateOutOfRange
	AddressOutOfRange
	InvalidOperand
	IoError
	DivideByZero
)

var kindName = map[ErrKind]string{
	LexError: "lex error", SyntaxError: "syntax error",
	UnknownSymbol: "unknown symbol", RedefinedSymbol: "redefined symbol",
	ImmediateOutOfRange: "immediate out of range",
	AddressOutOfRange:   "address out of range",
	InvalidOperand:      "invalid operand", IoError: "io error",
	DivideByZero: "divide by zero",
}

// LineError reports an assembly failure tied to a source line.
type LineError struct {
	Line int
	Kind ErrKind
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, kindName[e.Kind], e.Msg)
}

// specialReg binds the standard P2 special-purpose register names to
// their fixed cog-register addresses.
var specialReg = map[string]uint32{
	"IJMP3": 0x1D8, "IRET3": 0x1D9, "IJMP2": 0x1DA, "IRET2": 0x1DB,
	"IJMP1": 0x1DC, "IRET1": 0x1DD, "PA": 0x1DE, "PB": 0x1DF,
	"PTRA": 0x1E0, "PTRB": 0x1E1, "DIRA": 0x1E2, "DIRB": 0x1E3,
	"OUTA": 0x1E4, "OUTB": 0x1E5, "INA": 0x1E6, "INB": 0x1E7,
}

// ptrExpr maps the merged pointer tokens (and the bare pointer names)
// to their 1SUPIIIII S-field encoding for hub memory operands.
var ptrExpr = map[string]uint32{
	"PTRA": 0x100, "PTRB": 0x180,
	"PTRA_POSTINC": 0x141, "PTRA_POSTDEC": 0x15F,
	"PTRA_PREINC": 0x161, "PTRA_PREDEC": 0x17F,
	"PTRB_POSTINC": 0x1C1, "PTRB_POSTDEC": 0x1DF,
	"PTRB_PREINC": 0x1E1, "PTRB_PREDEC": 0x1FF,
}

// noAug lists mnemonics whose immediate D must fit the 9-bit field
// outright: a cog, lock or pin index never needs augmentation, and
// real hardware rejects a prefix there.
var noAug = map[string]bool{
	"COGSTOP": true, "LOCKRET": true, "LOCKTRY": true, "LOCKREL": true,
	"DIRL": true, "DIRH": true, "OUTL": true, "OUTH": true,
	"FLTL": true, "FLTH": true, "DRVL": true, "DRVH": true, "DRVNOT": true,
	"TESTP": true, "TESTPN": true,
}

// indexedTpl lists the TplDSN mnemonics that take a third #N operand
// carried in the flag bits (REP shares the template but not the N).
var indexedTpl = map[string]bool{
	"SETNIB": true, "GETNIB": true, "SETBYTE": true, "GETBYTE": true,
	"SETWORD": true, "GETWORD": true,
}

// pseudoOps names every directive layout handles without emitting an
// instruction; a condition prefix on one of these is a syntax error.
var pseudoOps = map[string]bool{
	"=": true, "ORG": true, "ORGH": true, "FIT": true,
	"ALIGNW": true, "ALIGNL": true, "BYTE": true, "WORD": true,
	"LONG": true, "RES": true, "FILE": true,
	"DAT": true, "CON": true, "PUB": true, "PRI": true, "VAR": true,
}

// stmt is one source line split into label/condition/mnemonic/operands.
type stmt struct {
	line    int
	label   *token.Word
	cond    uint8
	hasCond bool
	mnem    string
	mnemAt  int
	words   []token.Word
	wc, wz  bool
	flagOp  opcode.FlagOp
	nsuffix int
	raw     string
}

// Assembler drives the two passes and accumulates the hub image.
type Assembler struct {
	Syms   *symbol.Table
	Image  []byte
	Errors []error

	// Blobs feeds the FILE pseudo-op: name -> raw contents. The caller
	// registers blobs before Assemble; a FILE naming a missing blob is
	// an IoError.
	Blobs map[string][]byte

	cogPC    uint32
	hubPC    uint32
	hubMode  bool
	section  string
	stmts    []*stmt
	curlyDep int
}

// New returns an assembler with its special-register symbols predefined.
func New() *Assembler {
	a := &Assembler{Syms: symbol.New(), Blobs: make(map[string][]byte)}
	for name, addr := range specialReg {
		a.Syms.Redefine(name, value.NewAddr(addr, addr, false))
	}
	return a
}

// Assemble runs both passes over source text. The image is returned
// even when the error list is non-empty, alongside the first error.
func (a *Assembler) Assemble(source string) ([]byte, error) {
	lines := strings.Split(source, "\n")

	// Pass 1: tokenize, assign addresses, define labels; forward
	// references are tolerated.
	a.curlyDep = 0
	for i, line := range lines {
		s := a.parseLine(line, i+1)
		if s == nil {
			continue
		}
		a.layout(s, true)
		a.stmts = append(a.stmts, s)
	}
	if a.curlyDep != 0 {
		a.fail(len(lines), LexError, "unbalanced curly comment at end of input")
	}

	// Pass 2: reset cursors, re-evaluate every expression, emit.
	a.cogPC = 0
	a.hubPC = 0
	a.hubMode = false
	a.Syms.Reset()
	a.Image = a.Image[:0]
	for _, s := range a.stmts {
		a.layout(s, false)
	}
	if len(a.Errors) > 0 {
		return a.Image, a.Errors[0]
	}
	slog.Default().Info("assembled", "bytes", len(a.Image), "lines", len(lines))
	return a.Image, nil
}

func (a *Assembler) parseLine(line string, lineno int) *stmt {
	words := token.Tokenize(line, lineno, &a.curlyDep)
	for _, w := range words {
		if w.Kind == token.StringLit && (w.Len < 2 || line[w.Pos+w.Len-1] != '"') {
			a.fail(lineno, LexError, "unterminated string literal")
			return nil
		}
	}
	words = stripComments(words)
	if len(words) == 0 {
		return nil
	}
	s := &stmt{line: lineno, words: words, raw: line}

	i := 0
	if words[0].Kind == token.Symbol || words[0].Kind == token.LocalSymbol {
		// "name = expr" is a CON-style assignment, not a label+mnemonic line.
		if len(words) > 1 && words[1].Text == "=" {
			s.label = &words[0]
			s.mnem = "="
			s.mnemAt = 2
			return s
		}
		s.label = &words[0]
		i = 1
	}
	if i < len(words) && words[i].Kind == token.Condition {
		s.cond = condCode(words[i].Text)
		s.hasCond = true
		i++
	}
	if i >= len(words) {
		return s
	}
	s.mnem = strings.ToUpper(words[i].Text)
	i++
	s.mnemAt = i
	// Flag suffixes trail the operands; strip them off the tail.
	for len(s.words) > i && s.words[len(s.words)-1].Mask&token.IsWCZSuffix != 0 {
		last := s.words[len(s.words)-1]
		suf, ok := opcode.ParseSuffix(last.Text)
		if !ok {
			break
		}
		if s.nsuffix > 0 && (suf.C && s.wc || suf.Z && s.wz) {
			a.fail(lineno, SyntaxError, "duplicate flag suffix "+last.Text)
		}
		s.wc = s.wc || suf.C
		s.wz = s.wz || suf.Z
		s.flagOp = suf.Op
		s.nsuffix++
		s.words = s.words[:len(s.words)-1]
	}
	return s
}

func stripComments(words []token.Word) []token.Word {
	out := words[:0:0]
	for _, w := range words {
		if w.Kind == token.CommentEOL || w.Kind == token.CommentCurly {
			continue
		}
		out = append(out, w)
	}
	return out
}

func condCode(name string) uint8 {
	if c, ok := opcode.CondCode[strings.ToUpper(name)]; ok {
		return c
	}
	return opcode.CondAlways
}

// layout assigns s's address and, when forward is false (pass 2),
// appends bytes to the image. forward controls whether unresolved
// symbols are errors or tolerated placeholders.
func (a *Assembler) layout(s *stmt, forward bool) {
	pc := a.currentAddr()
	if s.label != nil && s.mnem != "=" {
		a.bindLabel(s, pc, forward)
	}
	if s.hasCond && pseudoOps[s.mnem] {
		a.fail(s.line, SyntaxError, "condition prefix on "+s.mnem)
		return
	}

	switch s.mnem {
	case "":
		return
	case "=":
		v, err := a.evalAssign(s, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		if s.label.Kind == token.LocalSymbol {
			a.fail(s.line, SyntaxError, "local symbol cannot be assigned with '='")
			return
		}
		a.Syms.Redefine(s.label.Text, v)
		return
	case "ORG":
		n := a.optionalConst(s, pc, forward, 0)
		a.cogPC = n
		a.hubMode = false
		return
	case "ORGH":
		n := a.optionalConst(s, pc, forward, a.hubPC)
		a.hubPC = n
		a.hubMode = true
		a.checkOrigin(s.line)
		return
	case "FIT":
		limit := a.optionalConst(s, pc, forward, 0x1F0)
		cur := a.cogPC
		if a.hubMode {
			cur = a.hubPC
		}
		if cur > limit {
			a.fail(s.line, AddressOutOfRange,
				fmt.Sprintf("origin %#x exceeds FIT limit %#x", cur, limit))
		}
		return
	case "ALIGNW":
		for a.hubPC%2 != 0 {
			a.emitByte(0, forward)
		}
		return
	case "ALIGNL":
		for a.hubPC%4 != 0 {
			a.emitByte(0, forward)
		}
		return
	case "BYTE":
		a.emitData(s, pc, forward, 1)
		return
	case "WORD":
		a.emitData(s, pc, forward, 2)
		return
	case "LONG":
		a.emitData(s, pc, forward, 4)
		return
	case "RES":
		n := a.optionalConst(s, pc, forward, 1)
		a.cogPC += n
		a.hubPC += n * 4
		a.checkOrigin(s.line)
		return
	case "FILE":
		a.emitFile(s, forward)
		return
	case "DAT", "CON", "PUB", "PRI", "VAR":
		a.section = s.mnem
		return
	}

	a.emitInstruction(s, pc, forward)
	a.checkOrigin(s.line)
}

func (a *Assembler) checkOrigin(line int) {
	if a.hubPC > memSize {
		a.fail(line, AddressOutOfRange, "origin advanced past hub memory")
	}
}

// currentAddr captures the origin as an Addr: the cog form counts in
// longs (the register index an instruction operand needs), the hub
// form in bytes.
func (a *Assembler) currentAddr() value.Value {
	return value.NewAddr(a.cogPC, a.hubPC, a.hubMode)
}

// branchWord converts a branch operand to a word index: COG/LUT-space
// labels already count in longs; hub addresses and plain numeric
// literals count in bytes.
func branchWord(v value.Value) uint32 {
	if v.Kind == value.Addr && !v.HubMode {
		return uint32(v.Uint64())
	}
	return uint32(v.Uint64()) / 4
}

func (a *Assembler) bindLabel(s *stmt, pc value.Value, forward bool) {
	if forward {
		if _, err := a.Syms.Define(*s.label, pc, s.line); err != nil {
			a.fail(s.line, RedefinedSymbol, err.Error())
		}
		return
	}
	if s.label.Kind == token.LocalSymbol {
		return
	}
	a.Syms.Redefine(s.label.Text, pc)
	// Mirror pass 1's Define, which opened a new local scope right
	// after binding a global label: pass 2 must advance scope at the
	// same points in the same order so local-symbol lookups land in
	// the scope that symbol was actually defined under.
	a.Syms.EnterScope()
}

func (a *Assembler) evalAssign(s *stmt, pc value.Value, forward bool) (value.Value, error) {
	ev := &expr.Eval{Words: s.words, Pos: s.mnemAt, Syms: a.Syms, PC: pc,
		Line: s.line, AllowForward: forward, StrictDiv: true}
	return ev.Parse()
}

func (a *Assembler) optionalConst(s *stmt, pc value.Value, forward bool, def uint32) uint32 {
	if s.mnemAt >= len(s.words) {
		return def
	}
	v, err := a.evalOperandAt(s, s.mnemAt, pc, forward)
	if err != nil {
		a.failErr(s.line, err)
		return def
	}
	return uint32(v.Uint64())
}

func (a *Assembler) emitData(s *stmt, pc value.Value, forward bool, width int) {
	pos := s.mnemAt
	for pos < len(s.words) {
		v, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		size := width * v.Len()
		if forward {
			a.cogPC += uint32(size+3) / 4
			a.hubPC += uint32(size)
		} else {
			bytes := v.Pack(width, false)
			if len(bytes) == 0 {
				bytes = make([]byte, width)
			}
			for len(bytes) < size {
				bytes = append(bytes, 0)
			}
			a.Image = append(a.Image, bytes[:size]...)
			a.hubPC += uint32(size)
		}
		if pos < len(s.words) && s.words[pos].Text == "," {
			pos++
			continue
		}
		break
	}
	a.checkOrigin(s.line)
}

// emitFile splices a registered blob's raw bytes into the image.
func (a *Assembler) emitFile(s *stmt, forward bool) {
	if s.mnemAt >= len(s.words) || s.words[s.mnemAt].Kind != token.StringLit {
		a.fail(s.line, SyntaxError, "FILE needs a quoted blob name")
		return
	}
	name := unquote(s.words[s.mnemAt].Text)
	blob, ok := a.Blobs[name]
	if !ok {
		a.fail(s.line, IoError, "FILE blob not found: "+name)
		return
	}
	if !forward {
		a.Image = append(a.Image, blob...)
	}
	a.hubPC += uint32(len(blob))
	a.checkOrigin(s.line)
}

func unquote(text string) string {
	s := strings.TrimPrefix(text, "\"")
	s = strings.TrimSuffix(s, "\"")
	return strings.ReplaceAll(s, "\\\"", "\"")
}

func (a *Assembler) evalOperand(s *stmt, pos int, pc value.Value, forward bool) (value.Value, int, error) {
	ev := &expr.Eval{Words: s.words, Pos: pos, Syms: a.Syms, PC: pc, Line: s.line, AllowForward: forward}
	v, err := ev.Parse()
	return v, ev.Pos, err
}

func (a *Assembler) evalOperandAt(s *stmt, pos int, pc value.Value, forward bool) (value.Value, error) {
	v, _, err := a.evalOperand(s, pos, pc, forward)
	return v, err
}

func (a *Assembler) emitByte(b byte, forward bool) {
	if !forward {
		a.Image = append(a.Image, b)
	}
	a.hubPC++
}

func (a *Assembler) fail(line int, kind ErrKind, msg string) {
	for _, e := range a.Errors {
		if le, ok := e.(*LineError); ok && le.Line == line && le.Msg == msg {
			return
		}
	}
	a.Errors = append(a.Errors, &LineError{Line: line, Kind: kind, Msg: msg})
}

// failErr classifies an evaluator error into its ErrKind.
func (a *Assembler) failErr(line int, err error) {
	kind := SyntaxError
	switch {
	case errors.Is(err, expr.ErrUnknownSymbol):
		kind = UnknownSymbol
	case errors.Is(err, expr.ErrDivideByZero):
		kind = DivideByZero
	case errors.Is(err, value.ErrInvalidOperand):
		kind = InvalidOperand
	}
	a.fail(line, kind, err.Error())
}

// ptrOperand recognizes a PTRA/PTRB pointer expression in a hub-memory
// S operand, including the merged ++/-- forms and "[index]" syntax,
// and returns its 1SUPIIIII encoding.
func (a *Assembler) ptrOperand(s *stmt, pos int, pc value.Value, forward bool) (enc uint32, next int, ok bool) {
	if pos >= len(s.words) || s.words[pos].Kind != token.Symbol {
		return 0, pos, false
	}
	name := strings.ToUpper(s.words[pos].Text)
	base, found := ptrExpr[name]
	if !found {
		return 0, pos, false
	}
	pos++
	// Indexed form: PTRA[expr] (no update), index is a signed 5-bit
	// element count scaled at runtime by the access width.
	if (name == "PTRA" || name == "PTRB") && pos < len(s.words) && s.words[pos].Text == "[" {
		v, nxt, err := a.evalOperand(s, pos+1, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return base, pos, true
		}
		pos = nxt
		if pos < len(s.words) && s.words[pos].Text == "]" {
			pos++
		} else {
			a.fail(s.line, SyntaxError, "expected ']' after pointer index")
		}
		idx := v.Int64()
		if idx < -16 || idx > 15 {
			a.fail(s.line, ImmediateOutOfRange, "pointer index outside -16..15")
		}
		base |= uint32(idx) & 0x1f
	}
	return base, pos, true
}

// emitInstruction assembles one P2 instruction word, auto-inserting an
// AUGS/AUGD when an immediate source/destination operand overflows 9 bits.
func (a *Assembler) emitInstruction(s *stmt, pc value.Value, forward bool) {
	def, ok := opcode.Lookup(s.mnem)
	if !ok {
		a.fail(s.line, SyntaxError, "undefined mnemonic "+s.mnem)
		return
	}
	w := opcode.Word{Inst: def.Inst, Cond: opcode.CondAlways}
	if s.hasCond {
		w.Cond = s.cond
	}
	if sel, isSel := opcode.SubSel[s.mnem]; isSel {
		w.Src = sel
	}
	if !a.applySuffixes(s, def, &w) {
		return
	}
	if fs, isFs := opcode.FlagSel[s.mnem]; isFs {
		w.WC = fs&2 != 0
		w.WZ = fs&1 != 0
	}

	var augs, augd *opcode.Word
	pos := s.mnemAt

	// readOperand evaluates one operand word-range, auto-splitting it
	// across an AUGS (forD=false) or AUGD (forD=true) prefix when the
	// immediate exceeds the instruction's 9-bit field.
	readOperand := func(immField *uint32, immFlag *bool, forD bool) {
		isImm := false
		force := false
		if pos < len(s.words) && (s.words[pos].Text == "#" || s.words[pos].Text == "##") {
			isImm = true
			// "##" always takes a prefix word, so a forward reference
			// (seen as zero in pass 1) lays out the same in both passes.
			force = s.words[pos].Text == "##"
			pos++
		}
		v, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		n := uint32(v.Uint64())
		if isImm && (force || n > 0x1ff) {
			if noAug[s.mnem] {
				a.fail(s.line, ImmediateOutOfRange,
					fmt.Sprintf("%s immediate %#x exceeds 9 bits", s.mnem, n))
				n &= 0x1ff
			} else if forD {
				if augd == nil {
					augd = &opcode.Word{Cond: w.Cond, Inst: opcode.InstAugd}
				}
				augd.Imm23 = n >> 9
				n &= 0x1ff
			} else {
				if augs == nil {
					augs = &opcode.Word{Cond: w.Cond, Inst: opcode.InstAugs}
				}
				augs.Imm23 = n >> 9
				n &= 0x1ff
			}
		}
		*immField = n
		*immFlag = isImm
	}

	// readSrc handles the S position of a hub-memory instruction,
	// where a pointer expression takes priority over a plain operand.
	readSrc := func() {
		if opcode.IsMemOp(s.mnem) {
			start := pos
			if pos < len(s.words) && (s.words[pos].Text == "#" || s.words[pos].Text == "##") {
				pos++
			}
			if enc, next, isPtr := a.ptrOperand(s, pos, pc, forward); isPtr {
				w.Src = enc
				w.Im = true
				pos = next
				return
			}
			pos = start
		}
		var isImm bool
		readOperand(&w.Src, &isImm, false)
		w.Im = isImm
	}

	switch def.Tpl {
	case opcode.TplNone:
	case opcode.TplD, opcode.TplImmD:
		var isImm bool
		readOperand(&w.Dst, &isImm, true)
		if def.Tpl == opcode.TplD && isImm {
			a.fail(s.line, SyntaxError, s.mnem+" takes a register destination")
			return
		}
		w.Im = isImm
	case opcode.TplModcz:
		a.readModcz(s, &w, pos)
	case opcode.TplDS:
		dv, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		w.Dst = uint32(dv.Uint64())
		if !a.expectComma(s, &pos) {
			return
		}
		readSrc()
	case opcode.TplDSN:
		if pos < len(s.words) && s.words[pos].Text == "#" {
			pos++
		}
		dv, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		w.Dst = uint32(dv.Uint64())
		if !a.expectComma(s, &pos) {
			return
		}
		var isImm bool
		readOperand(&w.Src, &isImm, false)
		w.Im = isImm
		if indexedTpl[s.mnem] && pos < len(s.words) && s.words[pos].Text == "," {
			pos++
			if pos < len(s.words) && s.words[pos].Text == "#" {
				pos++
			}
			nv, next, err := a.evalOperand(s, pos, pc, forward)
			if err != nil {
				a.failErr(s.line, err)
				return
			}
			pos = next
			n := uint32(nv.Uint64())
			if n > 3 {
				a.fail(s.line, ImmediateOutOfRange, "element index outside 0..3")
				n &= 3
			}
			w.WC = n&2 != 0
			w.WZ = n&1 != 0
		}
	case opcode.TplDRel:
		dv, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		w.Dst = uint32(dv.Uint64())
		if !a.expectComma(s, &pos) {
			return
		}
		if pos < len(s.words) && (s.words[pos].Text == "#" || s.words[pos].Text == "##") {
			pos++
		}
		v, next2, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next2
		offset := int32(branchWord(v)) - int32(branchWord(pc)+1)
		if !forward && (offset < -256 || offset > 255) {
			a.fail(s.line, AddressOutOfRange,
				fmt.Sprintf("branch offset %d outside 9-bit range", offset))
		}
		w.Src = uint32(offset) & 0x1ff
		w.Im = true
	case opcode.TplRel:
		// JMP/CALL/CALLA/CALLB take a single absolute-address operand
		// (an optional #/## is accepted but doesn't change the encoding:
		// these mnemonics are always encoded relative to the next PC).
		// readOperand isn't reused here: its 9-bit-field AUGS/AUGD
		// splitting doesn't apply to the dedicated 20-bit Rel field
		// these mnemonics use instead.
		if pos < len(s.words) && (s.words[pos].Text == "#" || s.words[pos].Text == "##") {
			pos++
		}
		v, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		offset := int32(branchWord(v)) - int32(branchWord(pc)+1)
		if !forward && (offset < -(1<<19) || offset >= 1<<19) {
			a.fail(s.line, AddressOutOfRange,
				fmt.Sprintf("branch offset %d outside 20-bit range", offset))
		}
		w.R = true
		w.Rel = uint32(offset) & 0xfffff
	case opcode.TplImm:
		// Explicit AUGS/AUGD: the operand is the 23-bit upper-immediate
		// payload itself, not a 9-bit field, so readOperand's prefix
		// splitting doesn't apply.
		if pos < len(s.words) && (s.words[pos].Text == "#" || s.words[pos].Text == "##") {
			pos++
		}
		v, next, err := a.evalOperand(s, pos, pc, forward)
		if err != nil {
			a.failErr(s.line, err)
			return
		}
		pos = next
		w.Imm23 = uint32(v.Uint64()) & 0x7fffff
	}

	if !forward {
		if augd != nil {
			a.Image = append(a.Image, u32le(opcode.Encode(*augd))...)
		}
		if augs != nil {
			a.Image = append(a.Image, u32le(opcode.Encode(*augs))...)
		}
		a.Image = append(a.Image, u32le(opcode.Encode(w))...)
	}
	words := uint32(1)
	if augd != nil {
		words++
	}
	if augs != nil {
		words++
	}
	a.cogPC += words
	a.hubPC += words * 4
}

func (a *Assembler) expectComma(s *stmt, pos *int) bool {
	if *pos < len(s.words) && s.words[*pos].Text == "," {
		*pos++
		return true
	}
	a.fail(s.line, SyntaxError, "expected ',' between operands")
	return false
}

// applySuffixes folds the parsed flag suffixes into the word: plain
// WC/WZ/WCZ writes, the TESTB/TESTBN code adjustment, and the
// TESTP/TESTPN selector adjustment. Returns false when the suffix is
// illegal for the mnemonic.
func (a *Assembler) applySuffixes(s *stmt, def opcode.Def, w *opcode.Word) bool {
	switch s.mnem {
	case "TESTB", "TESTBN":
		if s.nsuffix != 1 || s.wc == s.wz {
			a.fail(s.line, SyntaxError, s.mnem+" needs exactly one of WC/WZ/ANDx/ORx/XORx")
			return false
		}
		w.Inst = opcode.EncodeTestBit(s.mnem == "TESTBN", s.flagOp)
		w.WC = s.wc
		w.WZ = s.wz
		return true
	case "TESTP", "TESTPN":
		if s.nsuffix != 1 || s.wc == s.wz {
			a.fail(s.line, SyntaxError, s.mnem+" needs exactly one of WC/WZ/ANDx/ORx/XORx")
			return false
		}
		w.Src = opcode.TestPinSel(s.mnem == "TESTPN", s.flagOp)
		w.WC = s.wc
		w.WZ = s.wz
		return true
	case "MODCZ":
		w.WC = true
		w.WZ = true
		return true
	case "MODC":
		w.WC = true
		return true
	case "MODZ":
		w.WZ = true
		return true
	}
	if s.nsuffix == 0 {
		return true
	}
	if s.flagOp != opcode.FlagW {
		a.fail(s.line, SyntaxError, "flag-combine suffix not allowed on "+s.mnem)
		return false
	}
	if !def.AllowWCZ {
		a.fail(s.line, SyntaxError, "flag suffix not allowed on "+s.mnem)
		return false
	}
	w.WC = s.wc
	w.WZ = s.wz
	return true
}

// readModcz parses the MODCZ/MODC/MODZ parameter operands into the
// packed D field (c-predicate in the high nibble, z in the low).
func (a *Assembler) readModcz(s *stmt, w *opcode.Word, pos int) {
	param := func() (uint32, bool) {
		if pos >= len(s.words) {
			a.fail(s.line, SyntaxError, s.mnem+" needs a flag parameter")
			return 0, false
		}
		code, ok := opcode.ModczParam[strings.ToUpper(s.words[pos].Text)]
		if !ok {
			a.fail(s.line, SyntaxError, "unknown flag parameter "+s.words[pos].Text)
			return 0, false
		}
		pos++
		return code, true
	}
	var cpart, zpart uint32
	switch s.mnem {
	case "MODCZ":
		c, ok := param()
		if !ok {
			return
		}
		if !a.expectComma(s, &pos) {
			return
		}
		z, ok := param()
		if !ok {
			return
		}
		cpart, zpart = c, z
	case "MODC":
		c, ok := param()
		if !ok {
			return
		}
		cpart = c
	case "MODZ":
		z, ok := param()
		if !ok {
			return
		}
		zpart = z
	}
	w.Dst = cpart<<4 | zpart
	w.Im = true
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
