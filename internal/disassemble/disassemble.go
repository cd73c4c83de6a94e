/*
	   P2 Disassembler

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

// Package disassemble renders a 32-bit P2 instruction word back into
// source text, the inverse of internal/assemble's encoding, plus
// a one-line human description per mnemonic for listing and debug
// display.
package disassemble

import (
	"strings"

	"github.com/rcornwell/p2dev/internal/opcode"
	"github.com/rcornwell/p2dev/internal/valfmt"
	"github.com/rcornwell/p2dev/internal/value"
)

// Instruction is one decoded instruction, ready for text rendering.
type Instruction struct {
	Mnemonic string
	Cond     string
	Operands string
	Suffix   string // rendered flag suffix: WC, WZ, WCZ, ANDC, ORZ, ...
	WC, WZ   bool
	Words    int // 2 when an AUGS/AUGD precedes this instruction
}

// Decode decodes one 32-bit word (plus an optional preceding AUGS/AUGD
// word) into an Instruction. pc is the word's own address (word-indexed
// in COG/LUT space), used only to resolve a relative branch's offset
// back to an absolute address for display.
func Decode(word uint32, pc uint32, aug uint32, hasAug bool) Instruction {
	w := opcode.Decode(word)
	name, ok := opcode.NameWord(w)
	if !ok {
		return Instruction{Mnemonic: "LONG", Operands: valfmt.Hex(value.NewLong(word))}
	}
	def, _ := opcode.Lookup(name)
	inst := Instruction{Mnemonic: name, WC: w.WC, WZ: w.WZ}
	if w.Cond != opcode.CondAlways {
		inst.Cond = opcode.CondName[w.Cond]
	}

	fullSrc := w.Src
	fullDst := w.Dst
	augSApplied := false
	augDApplied := false
	if hasAug {
		augWord := opcode.Decode(aug)
		if augWord.Inst == opcode.InstAugs && w.Im {
			fullSrc = (augWord.Imm23 << 9) | w.Src
			inst.Words = 2
			augSApplied = true
		}
		if augWord.Inst == opcode.InstAugd && w.Im {
			fullDst = (augWord.Imm23 << 9) | w.Dst
			inst.Words = 2
			augDApplied = true
		}
	}

	// TplDSN words reuse the flag bits as an element index; everything
	// else renders its suffix from them.
	if def.AllowWCZ || name == "TESTB" || name == "TESTBN" || name == "TESTP" || name == "TESTPN" {
		inst.Suffix = suffixText(w, name)
	}

	switch {
	case name == "MODCZ" || name == "MODC" || name == "MODZ":
		inst.Mnemonic, inst.Operands = modczText(w)
		return inst
	case opcode.IsBitTestFamily(w.Inst) && (name == "TESTB" || name == "TESTBN"):
		inst.Operands = operand(w.Dst, false, false) + "," + operand(fullSrc, w.Im, augSApplied)
		return inst
	}

	switch def.Tpl {
	case opcode.TplNone:
	case opcode.TplD, opcode.TplImmD:
		inst.Operands = operand(fullDst, w.Im, augDApplied)
	case opcode.TplDS:
		src := operand(fullSrc, w.Im, augSApplied)
		if opcode.IsMemOp(name) {
			if ptr, isPtr := ptrText(w); isPtr {
				src = ptr
			}
		}
		inst.Operands = operand(w.Dst, false, false) + "," + src
	case opcode.TplDSN:
		inst.Operands = dsnText(w, name, fullSrc, augSApplied)
	case opcode.TplDRel:
		next := pc + 1
		target := uint32(int64(next) + int64(opcode.SignExtend9(w.Src)))
		inst.Operands = operand(w.Dst, false, false) + ",#$" + valfmt.Hex(value.NewLong(target*4))
	case opcode.TplRel:
		inst.Operands = branchOperand(pc, w)
	case opcode.TplImm:
		inst.Operands = "#$" + valfmt.Hex(value.NewLong(w.Imm23))
	}
	return inst
}

// suffixText renders the flag suffix. The TESTB/TESTBN and
// TESTP/TESTPN flavors carry a combine op (AND/OR/XOR) selected by
// the instruction pair; every other mnemonic uses plain WC/WZ/WCZ.
func suffixText(w opcode.Word, name string) string {
	op := opcode.FlagW
	switch name {
	case "TESTB", "TESTBN":
		if w.WC != w.WZ {
			op = opcode.FlagOp((w.Inst - opcode.InstBitTest) / 2)
		}
	case "TESTP", "TESTPN":
		if w.WC != w.WZ {
			op = opcode.FlagOp((w.Src - opcode.SelTestp) / 2)
		}
	case "MODCZ", "MODC", "MODZ":
		// Flag writes are implied by the mnemonic.
		return ""
	}
	target := ""
	switch {
	case w.WC && w.WZ:
		target = "CZ"
	case w.WC:
		target = "C"
	case w.WZ:
		target = "Z"
	default:
		return ""
	}
	switch op {
	case opcode.FlagAnd:
		return "AND" + target
	case opcode.FlagOr:
		return "OR" + target
	case opcode.FlagXor:
		return "XOR" + target
	}
	return "W" + target
}

// modczText picks the MODCZ/MODC/MODZ spelling from the flag-write
// bits and renders the packed predicate parameters by name.
func modczText(w opcode.Word) (string, string) {
	cname := opcode.ModczName[w.Dst>>4&0xf]
	zname := opcode.ModczName[w.Dst&0xf]
	switch {
	case w.WC && w.WZ:
		return "MODCZ", cname + "," + zname
	case w.WC:
		return "MODC", cname
	default:
		return "MODZ", zname
	}
}

// dsnText renders the D,{#}S,#N templates. The element index rides in
// the flag bits for the byte/nibble/word group; REP has no index.
func dsnText(w opcode.Word, name string, fullSrc uint32, augS bool) string {
	src := operand(fullSrc, w.Im, augS)
	if name == "REP" {
		return "#$" + valfmt.Hex(value.NewLong(w.Dst)) + "," + src
	}
	n := uint32(0)
	if w.WC {
		n |= 2
	}
	if w.WZ {
		n |= 1
	}
	return operand(w.Dst, false, false) + "," + src + ",#" + valfmt.Dec(value.NewLong(n))
}

// ptrText renders an immediate S that encodes a PTRA/PTRB pointer
// expression (1SUPIIIII) back to its source spelling.
func ptrText(w opcode.Word) (string, bool) {
	if !w.Im || w.Src&0x100 == 0 {
		return "", false
	}
	enc := w.Src
	name := "PTRA"
	if enc&0x80 != 0 {
		name = "PTRB"
	}
	idx := int32(enc & 0x1f)
	if idx&0x10 != 0 {
		idx -= 32
	}
	update := enc&0x40 != 0
	pre := enc&0x20 != 0
	switch {
	case !update && idx == 0:
		return name, true
	case !update:
		return name + "[" + valfmt.Dec(value.NewLong(uint32(idx))) + "]", true
	case pre && idx == 1:
		return "++" + name, true
	case pre && idx == -1:
		return "--" + name, true
	case idx == 1:
		return name + "++", true
	case idx == -1:
		return name + "--", true
	}
	// Updating forms with a wider stride have no single-token source
	// spelling; show the indexed form.
	return name + "[" + valfmt.Dec(value.NewLong(uint32(idx))) + "]", true
}

// branchOperand resolves a TplRel word's R-bit/20-bit-offset encoding
// back to the absolute word address it names, so the printed literal
// re-assembles (via internal/assemble's own relative-offset
// computation against the same pc) to the identical word. The literal
// is printed in byte units: the assembler treats a plain numeric
// branch target as a byte address, scaling it back to words itself.
func branchOperand(pc uint32, w opcode.Word) string {
	target := w.Rel
	if w.R {
		next := pc + 1
		target = uint32(int64(next) + int64(opcode.SignExtend20(w.Rel)))
	}
	return "#$" + valfmt.Hex(value.NewLong(target*4))
}

func operand(v uint32, imm bool, augmented bool) string {
	if imm {
		prefix := "#$"
		if augmented {
			prefix = "##$"
		}
		return prefix + valfmt.Hex(value.NewLong(v))
	}
	return "$" + valfmt.Hex(value.NewLong(v))
}

// Text renders an Instruction the way the assembler would accept it back.
func (inst Instruction) Text() string {
	var b strings.Builder
	if inst.Cond != "" {
		b.WriteString(inst.Cond)
		b.WriteByte(' ')
	}
	b.WriteString(inst.Mnemonic)
	if inst.Operands != "" {
		b.WriteByte(' ')
		b.WriteString(inst.Operands)
	}
	if inst.Suffix != "" {
		b.WriteByte(' ')
		b.WriteString(inst.Suffix)
	}
	return b.String()
}

// Describe returns the one-line human description of the decoded
// mnemonic, or an empty string for raw data words.
func (inst Instruction) Describe() string {
	return describe[inst.Mnemonic]
}

var describe = map[string]string{
	"ROR": "Rotate D right by S bits", "ROL": "Rotate D left by S bits",
	"SHR": "Shift D right by S bits", "SHL": "Shift D left by S bits",
	"RCR": "Rotate D right through C by S bits", "RCL": "Rotate D left through C by S bits",
	"SAR": "Arithmetic shift D right by S bits", "SAL": "Arithmetic shift D left by S bits",
	"ADD": "Add S into D", "ADDX": "Add S and C into D",
	"ADDS": "Add signed S into D", "ADDSX": "Add signed S and C into D",
	"SUB": "Subtract S from D", "SUBX": "Subtract S and C from D",
	"SUBS": "Subtract signed S from D", "SUBSX": "Subtract signed S and C from D",
	"SUBR": "Subtract D from S into D", "CMPSUB": "Subtract S from D if D >= S",
	"CMP": "Compare D to S", "CMPX": "Compare D to S with C",
	"CMPS": "Compare signed D to S", "CMPSX": "Compare signed D to S with C",
	"CMPR": "Compare S to D", "CMPM": "Compare D to S, C = sign",
	"MUL": "Multiply low words of D and S", "MULS": "Multiply signed low words of D and S",
	"SCA": "Scale: next S = (D * S) >> 16", "SCAS": "Scale signed: next S = (D * S) >> 14",
	"SUMC": "Sum D with S negated by C", "SUMNC": "Sum D with S negated by !C",
	"SUMZ": "Sum D with S negated by Z", "SUMNZ": "Sum D with S negated by !Z",
	"TESTB": "Test bit S of D into flag", "TESTBN": "Test inverted bit S of D into flag",
	"BITL": "Clear bit S of D", "BITH": "Set bit S of D",
	"BITC": "Write C to bit S of D", "BITNC": "Write !C to bit S of D",
	"BITZ": "Write Z to bit S of D", "BITNZ": "Write !Z to bit S of D",
	"BITRND": "Write a random bit to bit S of D", "BITNOT": "Toggle bit S of D",
	"AND": "AND S into D", "ANDN": "AND !S into D",
	"OR": "OR S into D", "XOR": "XOR S into D",
	"MUXC": "Write C into D bits selected by S", "MUXNC": "Write !C into D bits selected by S",
	"MUXZ": "Write Z into D bits selected by S", "MUXNZ": "Write !Z into D bits selected by S",
	"MOV": "Move S into D", "NOT": "Move !S into D",
	"ABS": "Move absolute value of S into D", "NEG": "Move -S into D",
	"NEGC": "Move S negated by C into D", "NEGNC": "Move S negated by !C into D",
	"NEGZ": "Move S negated by Z into D", "NEGNZ": "Move S negated by !Z into D",
	"INCMOD": "Increment D modulo S", "DECMOD": "Decrement D modulo S",
	"ZEROX": "Zero-extend D above bit S", "SIGNX": "Sign-extend D above bit S",
	"ENCOD": "Encode MSB position of S into D", "ONES": "Count ones of S into D",
	"TEST": "AND D with S into flags", "TESTN": "AND D with !S into flags",
	"SETNIB": "Set nibble N of D from S", "GETNIB": "Get nibble N of S into D",
	"SETBYTE": "Set byte N of D from S", "GETBYTE": "Get byte N of S into D",
	"SETWORD": "Set word N of D from S", "GETWORD": "Get word N of S into D",
	"ROLBYTE": "Rotate byte of S into D",
	"ALTS": "Substitute next instruction's S with D+S",
	"ALTD": "Substitute next instruction's D with D+S",
	"ALTSW": "Substitute next SETWORD/GETWORD's S with D+S",
	"ALTGW": "Substitute next GETWORD's D with D+S",
	"WRBYTE": "Write byte D to hub S", "WRWORD": "Write word D to hub S",
	"WRLONG": "Write long D to hub S", "WRLUT": "Write D to LUT S",
	"RDBYTE": "Read hub byte S into D", "RDWORD": "Read hub word S into D",
	"RDLONG": "Read hub long S into D", "RDLUT": "Read LUT S into D",
	"RDFAST": "Start FIFO read at hub S", "WRFAST": "Start FIFO write at hub S",
	"RFBYTE": "Read next FIFO byte into D", "RFWORD": "Read next FIFO word into D",
	"RFLONG": "Read next FIFO long into D",
	"WFBYTE": "Write byte D through the FIFO", "WFWORD": "Write word D through the FIFO",
	"WFLONG": "Write long D through the FIFO",
	"GETQX": "Get CORDIC X result into D", "GETQY": "Get CORDIC Y result into D",
	"QMUL": "CORDIC unsigned multiply D by S", "QDIV": "CORDIC divide D by S",
	"QFRAC": "CORDIC fraction (D << 32) / S", "QSQRT": "CORDIC square root of D",
	"QROTATE": "CORDIC rotate (D,S)", "QVECTOR": "CORDIC vector (D,S)",
	"QLOG": "CORDIC log of D", "QEXP": "CORDIC exp of D",
	"REP": "Repeat next D instructions S times",
	"DJNZ": "Decrement D, jump to S if not zero",
	"TJZ": "Jump to S if D is zero", "TJNZ": "Jump to S if D is not zero",
	"WAITX": "Wait D clocks",
	"LOCKNEW": "Allocate a free lock into D", "LOCKRET": "Return lock D",
	"LOCKTRY": "Try to take lock D", "LOCKREL": "Release lock D",
	"CALLD": "Call, saving return in D", "CALLP": "Call through pointer S",
	"COGINIT": "Start cog D at hub address S", "COGSTOP": "Stop cog D",
	"COGID": "Get this cog's ID into D", "COGATN": "Raise attention on cogs D",
	"NOP": "No operation",
	"SETQ": "Set Q for the next operation",
	"JMP": "Jump to address", "CALL": "Call address",
	"CALLA": "Call address, return via stack A", "CALLB": "Call address, return via stack B",
	"RET": "Return", "RETA": "Return via stack A", "RETB": "Return via stack B",
	"RETI1": "Return from interrupt 1", "RETI2": "Return from interrupt 2",
	"RETI3": "Return from interrupt 3",
	"RGBSQZ": "Squeeze 8:8:8 S to 5:6:5 D", "RGBEXP": "Expand 5:6:5 S to 8:8:8 D",
	"SEUSSF": "Scramble S forward into D", "SEUSSR": "Scramble S reverse into D",
	"AUGS": "Augment next immediate S with 23 upper bits",
	"AUGD": "Augment next immediate D with 23 upper bits",
	"ADDCT1": "Arm CT1 event at D+S", "ADDCT2": "Arm CT2 event at D+S",
	"ADDCT3": "Arm CT3 event at D+S",
	"SETPAT": "Arm pin-pattern match, mask D match S",
	"TESTP": "Test pin D into flag", "TESTPN": "Test inverted pin D into flag",
	"DIRL": "Float pin D direction low", "DIRH": "Drive pin D direction high",
	"OUTL": "Drive pin D output low", "OUTH": "Drive pin D output high",
	"FLTL": "Float pin D with output low", "FLTH": "Float pin D with output high",
	"DRVL": "Drive pin D low", "DRVH": "Drive pin D high", "DRVNOT": "Toggle pin D",
	"GETCT": "Get hub counter into D", "GETRND": "Get random long into D",
	"XORO32": "Step xoroshiro state D, result to next S",
	"SKIP": "Skip instructions per mask D",
	"SKIPF": "Skip and leap per mask D",
	"PUSH": "Push D onto the stack", "POP": "Pop the stack into D",
	"SETLUTS": "Enable LUT sharing per D",
	"SETSCP": "Set scope pins and enable from D", "GETSCP": "Get scope configuration into D",
	"SETINT1": "Select interrupt 1 source D", "SETINT2": "Select interrupt 2 source D",
	"SETINT3": "Select interrupt 3 source D",
	"MODCZ": "Modify C and Z by operator", "MODC": "Modify C by operator",
	"MODZ": "Modify Z by operator",
	"WRC": "Write C into D", "WRNC": "Write !C into D",
	"WRZ": "Write Z into D", "WRNZ": "Write !Z into D",
	"SETSE1": "Select event 1 source D", "SETSE2": "Select event 2 source D",
	"SETSE3": "Select event 3 source D", "SETSE4": "Select event 4 source D",
	"POLLCT1": "Poll CT1 event", "POLLCT2": "Poll CT2 event", "POLLCT3": "Poll CT3 event",
	"POLLSE1": "Poll event 1", "POLLSE2": "Poll event 2", "POLLSE3": "Poll event 3",
	"POLLSE4": "Poll event 4", "POLLPAT": "Poll pin-pattern event",
	"POLLATN": "Poll attention event", "POLLQMT": "Poll CORDIC-empty event",
	"WAITCT1": "Wait for CT1 event", "WAITCT2": "Wait for CT2 event",
	"WAITCT3": "Wait for CT3 event",
	"WAITSE1": "Wait for event 1", "WAITSE2": "Wait for event 2",
	"WAITSE3": "Wait for event 3", "WAITSE4": "Wait for event 4",
	"WAITPAT": "Wait for pin-pattern event", "WAITATN": "Wait for attention",
	"ALLOWI": "Allow interrupts", "STALLI": "Stall interrupts",
}
