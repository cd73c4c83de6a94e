/*
	   P2 Assembler Tokenizer and Classifier

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

// Package token splits a P2 assembly source line into classified Words:
// a greedy-leftmost tokenizer over a static classifier table.
package token

import (
	"strings"
	"unicode"
)

// Kind enumerates the lexical category of a Word.
type Kind int

const (
	Unknown Kind = iota
	CommentCurly
	CommentEOL
	CurlyL
	CurlyR
	StringLit
	NumBin
	NumByt // base-4 "byte" literal, %%
	NumHex
	NumReal
	NumDec
	LocalSymbol
	Symbol
	Mnemonic
	Condition
	Suffix
	ModCZParam
	Section
	PseudoOp
	Operator
	Delimiter
)

// Type-class bits, queried independently of Kind.
const (
	IsMnemonic uint64 = 1 << iota
	IsConditional
	IsWCZSuffix
	IsModCZParam
	IsSection
	IsOrigin
	IsData
	IsParens
	IsUnary
	IsMulop
	IsAddop
	IsShiftop
	IsRelation
	IsEquality
	IsBinAnd
	IsBinOr
	IsBinXor
	IsBinRev
	IsBinEncod
	IsBinDecod
	IsLogAnd
	IsLogOr
	IsAssignment
	IsDelimiter
	IsConstant
	IsFunction
	IsImmediate
	IsRelative
	IsPrimary
)

// Word is one classified slice of a source line.
type Word struct {
	Kind Kind
	Mask uint64
	Line int
	Pos  int
	Len  int
	Text string
}

// Has reports whether any of the given class bits are set.
func (w Word) Has(bits uint64) bool { return w.Mask&bits != 0 }

type classInfo struct {
	kind Kind
	mask uint64
}

// classifier is the static reverse index from upper-cased word text to
// its kind and type-mask.
var classifier = map[string]classInfo{
	// Conditions.
	"_RET_": {Condition, IsConditional},
	"IF_NC_AND_NZ": {Condition, IsConditional}, "IF_NZ_AND_NC": {Condition, IsConditional},
	"IF_NC_AND_Z": {Condition, IsConditional}, "IF_Z_AND_NC": {Condition, IsConditional},
	"IF_NC": {Condition, IsConditional},
	"IF_NZ_AND_C": {Condition, IsConditional},
	"IF_NZ":       {Condition, IsConditional},
	"IF_Z_NE_C":   {Condition, IsConditional},
	"IF_NZ_OR_NC": {Condition, IsConditional},
	"IF_Z_AND_C":  {Condition, IsConditional},
	"IF_Z_EQ_C":   {Condition, IsConditional},
	"IF_Z":        {Condition, IsConditional},
	"IF_Z_OR_NC":  {Condition, IsConditional},
	"IF_C":        {Condition, IsConditional},
	"IF_Z_OR_C":   {Condition, IsConditional},
	"IF_C_OR_Z":   {Condition, IsConditional},
	"IF_ALWAYS":   {Condition, IsConditional},

	// WCZ and related suffixes.
	"WC": {Suffix, IsWCZSuffix}, "WZ": {Suffix, IsWCZSuffix}, "WCZ": {Suffix, IsWCZSuffix},
	"ANDC": {Suffix, IsWCZSuffix}, "ANDZ": {Suffix, IsWCZSuffix},
	"ORC": {Suffix, IsWCZSuffix}, "ORZ": {Suffix, IsWCZSuffix},
	"XORC": {Suffix, IsWCZSuffix}, "XORZ": {Suffix, IsWCZSuffix},

	// MODCZ parameters.
	"_CLR": {ModCZParam, IsModCZParam}, "_NC_AND_NZ": {ModCZParam, IsModCZParam},
	"_NC_AND_Z": {ModCZParam, IsModCZParam}, "_NC": {ModCZParam, IsModCZParam},
	"_C_AND_NZ": {ModCZParam, IsModCZParam}, "_NZ": {ModCZParam, IsModCZParam},
	"_C_NE_Z": {ModCZParam, IsModCZParam}, "_NC_OR_NZ": {ModCZParam, IsModCZParam},
	"_C_AND_Z": {ModCZParam, IsModCZParam}, "_C_EQ_Z": {ModCZParam, IsModCZParam},
	"_Z": {ModCZParam, IsModCZParam}, "_NC_OR_Z": {ModCZParam, IsModCZParam},
	"_C": {ModCZParam, IsModCZParam}, "_C_OR_NZ": {ModCZParam, IsModCZParam},
	"_C_OR_Z": {ModCZParam, IsModCZParam}, "_SET": {ModCZParam, IsModCZParam},

	// Sections.
	"DAT": {Section, IsSection}, "CON": {Section, IsSection},
	"PUB": {Section, IsSection}, "PRI": {Section, IsSection}, "VAR": {Section, IsSection},

	// Pseudo-ops.
	"ORG": {PseudoOp, IsOrigin}, "ORGH": {PseudoOp, IsOrigin},
	"FIT": {PseudoOp, 0}, "ALIGNW": {PseudoOp, 0}, "ALIGNL": {PseudoOp, 0},
	"BYTE": {PseudoOp, IsData}, "WORD": {PseudoOp, IsData}, "LONG": {PseudoOp, IsData},
	"RES": {PseudoOp, IsData}, "FILE": {PseudoOp, IsData},

	// Functions.
	"FLOAT": {Symbol, IsFunction}, "ROUND": {Symbol, IsFunction}, "TRUNC": {Symbol, IsFunction},
}

// operators and delimiters, matched longest-first.
var opTable = []struct {
	text string
	mask uint64
}{
	{"@@@", IsUnary}, {"@@", IsUnary}, {"@", IsUnary}, {"##", IsImmediate}, {"#", IsImmediate},
	{",", IsDelimiter}, {"[", IsDelimiter}, {"]", IsDelimiter},
	{"++", IsUnary}, {"+", IsAddop | IsUnary}, {"--", IsUnary}, {"-", IsAddop | IsUnary},
	{"<<", IsShiftop}, {"<=", IsRelation}, {"<", IsRelation},
	{">>", IsShiftop}, {"><", IsShiftop}, {">|", IsBinEncod | IsUnary}, {">=", IsRelation}, {">", IsRelation},
	{"*", IsMulop}, {"/", IsMulop}, {"\\", IsMulop},
	{"&&", IsLogAnd}, {"&", IsBinAnd},
	{"||", IsLogOr}, {"|<", IsBinDecod | IsUnary}, {"|", IsBinOr},
	{"(", IsParens}, {")", IsParens},
	{"==", IsEquality}, {"=", IsAssignment},
	{"{", 0}, {"}", 0},
	{"!=", IsEquality}, {"!!", IsUnary}, {"!", IsUnary},
	{"~", IsUnary},
	{"^", IsBinXor},
}

// Tokenize splits one source line into Words. curlyNesting is the
// non-negative nesting counter carried across lines; it is mutated
// in place.
func Tokenize(line string, lineno int, curlyNesting *int) []Word {
	var words []Word
	pos := 0
	n := len(line)

	if *curlyNesting > 0 {
		start := pos
		for pos < n && *curlyNesting > 0 {
			switch line[pos] {
			case '{':
				*curlyNesting++
			case '}':
				*curlyNesting--
			}
			pos++
		}
		words = append(words, Word{Kind: CommentCurly, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]})
		if pos >= n {
			return words
		}
	}

	for pos < n {
		c := line[pos]
		if unicode.IsSpace(rune(c)) {
			pos++
			continue
		}
		if c == '{' {
			start := pos
			*curlyNesting++
			pos++
			for pos < n && *curlyNesting > 0 {
				switch line[pos] {
				case '{':
					*curlyNesting++
				case '}':
					*curlyNesting--
				}
				pos++
			}
			words = append(words, Word{Kind: CommentCurly, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]})
			continue
		}
		if c == '\'' {
			words = append(words, Word{Kind: CommentEOL, Line: lineno, Pos: pos, Len: n - pos, Text: line[pos:]})
			break
		}
		if c == '"' {
			start := pos
			pos++
			for pos < n {
				if line[pos] == '\\' && pos+1 < n && line[pos+1] == '"' {
					pos += 2
					continue
				}
				if line[pos] == '"' {
					pos++
					break
				}
				pos++
			}
			words = append(words, Word{Kind: StringLit, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]})
			continue
		}
		if w, ok := lexNumber(line, pos, lineno); ok {
			words = append(words, w)
			pos += w.Len
			continue
		}
		if c == '.' && pos+1 < n && isIdentStart(rune(line[pos+1])) {
			start := pos
			pos++
			for pos < n && isIdentCont(rune(line[pos])) {
				pos++
			}
			words = append(words, classify(line[start:pos], lineno, start, true))
			continue
		}
		if isIdentStart(rune(c)) {
			start := pos
			for pos < n && isIdentCont(rune(line[pos])) {
				pos++
			}
			words = append(words, classify(line[start:pos], lineno, start, false))
			continue
		}
		if w, ok := lexOperator(line, pos, lineno); ok {
			words = append(words, w)
			pos += w.Len
			continue
		}
		// Unrecognized character: single-char Unknown token so we make progress.
		words = append(words, Word{Kind: Unknown, Line: lineno, Pos: pos, Len: 1, Text: line[pos : pos+1]})
		pos++
	}

	return mergePointerSyntax(words)
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentCont(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func lexNumber(line string, pos, lineno int) (Word, bool) {
	n := len(line)
	start := pos
	switch {
	case strings.HasPrefix(line[pos:], "%%"):
		pos += 2
		for pos < n && (isBase4(line[pos]) || line[pos] == '_') {
			pos++
		}
		return Word{Kind: NumByt, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]}, pos > start+2
	case line[pos] == '%':
		pos++
		for pos < n && (line[pos] == '0' || line[pos] == '1' || line[pos] == '_') {
			pos++
		}
		return Word{Kind: NumBin, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]}, pos > start+1
	case line[pos] == '$':
		pos++
		for pos < n && (isHex(line[pos]) || line[pos] == '_') {
			pos++
		}
		return Word{Kind: NumHex, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]}, pos > start+1
	case unicode.IsDigit(rune(line[pos])) || line[pos] == '.':
		sawDot := false
		sawDigit := false
		for pos < n {
			c := line[pos]
			if unicode.IsDigit(rune(c)) || c == '_' {
				sawDigit = sawDigit || unicode.IsDigit(rune(c))
				pos++
				continue
			}
			if c == '.' && !sawDot {
				// At most one '.' per literal; a literal needs at least one
				// digit, so ".name" falls through to the local-symbol rule.
				sawDot = true
				pos++
				continue
			}
			break
		}
		if !sawDigit {
			return Word{}, false
		}
		kind := NumDec
		if sawDot {
			kind = NumReal
		}
		return Word{Kind: kind, Line: lineno, Pos: start, Len: pos - start, Text: line[start:pos]}, pos > start
	}
	return Word{}, false
}

func isHex(c byte) bool {
	return unicode.IsDigit(rune(c)) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func isBase4(c byte) bool { return c >= '0' && c <= '3' }

func lexOperator(line string, pos, lineno int) (Word, bool) {
	for _, e := range opTable {
		if strings.HasPrefix(line[pos:], e.text) {
			kind := Operator
			if e.mask&IsDelimiter != 0 || e.text == "," {
				kind = Delimiter
			}
			return Word{Kind: kind, Mask: e.mask, Line: lineno, Pos: pos, Len: len(e.text), Text: e.text}, true
		}
	}
	return Word{}, false
}

func classify(text string, lineno, pos int, local bool) Word {
	w := Word{Line: lineno, Pos: pos, Len: len(text), Text: text}
	if local {
		w.Kind = LocalSymbol
		w.Mask = IsPrimary
		return w
	}
	if info, ok := classifier[strings.ToUpper(text)]; ok {
		w.Kind = info.kind
		w.Mask = info.mask
		return w
	}
	if IsMnemonicName(text) {
		w.Kind = Mnemonic
		w.Mask = IsMnemonic | IsPrimary
		return w
	}
	w.Kind = Symbol
	w.Mask = IsPrimary | IsConstant
	return w
}

// IsMnemonicName is overridden at init time by the opcode package via
// RegisterMnemonicLookup, breaking the import cycle between token and
// opcode (opcode formats operands using token Kinds).
var IsMnemonicName = func(string) bool { return false }

// RegisterMnemonicLookup installs the real mnemonic-name predicate.
func RegisterMnemonicLookup(f func(string) bool) { IsMnemonicName = f }

// mergePointerSyntax folds adjacent PTRA/PTRB ++/-- pairs into single
// pseudo-identifiers the assembler's pointer-operand parser consumes.
func mergePointerSyntax(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			a, b := words[i], words[i+1]
			if isPtr(a) && (b.Text == "++" || b.Text == "--") {
				out = append(out, mergeWord(a, b, false))
				i++
				continue
			}
			if (a.Text == "++" || a.Text == "--") && isPtr(b) {
				out = append(out, mergeWord(b, a, true))
				i++
				continue
			}
		}
		out = append(out, words[i])
	}
	return out
}

func isPtr(w Word) bool {
	u := strings.ToUpper(w.Text)
	return u == "PTRA" || u == "PTRB"
}

func mergeWord(ptr, inc Word, pre bool) Word {
	suffix := "_postinc"
	if inc.Text == "--" {
		suffix = "_postdec"
	}
	if pre {
		suffix = "_preinc"
		if inc.Text == "--" {
			suffix = "_predec"
		}
	}
	text := strings.ToUpper(ptr.Text) + suffix
	lo, hi := ptr.Pos, ptr.Pos+ptr.Len
	if pre {
		lo, hi = inc.Pos, ptr.Pos+ptr.Len
	} else {
		hi = inc.Pos + inc.Len
	}
	return Word{Kind: Symbol, Mask: IsPrimary, Line: ptr.Line, Pos: lo, Len: hi - lo, Text: text}
}
