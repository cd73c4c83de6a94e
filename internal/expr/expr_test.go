/*
	   P2 Assembler Expression Evaluator Test routines.

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
package expr

import (
	"errors"
	"testing"

	"github.com/rcornwell/p2dev/internal/symbol"
	"github.com/rcornwell/p2dev/internal/token"
	"github.com/rcornwell/p2dev/internal/value"
)

func eval(t *testing.T, text string, allowForward bool) value.Value {
	t.Helper()
	var curly int
	words := token.Tokenize(text, 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(0, 0, false), Line: 1, AllowForward: allowForward}
	v, err := ev.Parse()
	if err != nil {
		t.Fatalf("eval(%q) error: %v", text, err)
	}
	return v
}

func TestPrecedenceAdditiveBeforeShift(t *testing.T) {
	v := eval(t, "1 + 2 << 1", false)
	if v.Uint64() != 6 {
		t.Errorf("1+2<<1 = %d, want 6", v.Uint64())
	}
}

func TestPrecedenceMulBeforeAdd(t *testing.T) {
	v := eval(t, "2 + 3 * 4", false)
	if v.Uint64() != 14 {
		t.Errorf("2+3*4 = %d, want 14", v.Uint64())
	}
}

func TestParenOverridesPrecedence(t *testing.T) {
	v := eval(t, "(2 + 3) * 4", false)
	if v.Uint64() != 20 {
		t.Errorf("(2+3)*4 = %d, want 20", v.Uint64())
	}
}

func TestBitwiseOperators(t *testing.T) {
	v := eval(t, "$F0 | $0F", false)
	if v.Uint64() != 0xFF {
		t.Errorf("$F0|$0F = %#x, want 0xFF", v.Uint64())
	}
	v = eval(t, "$FF ^ $0F", false)
	if v.Uint64() != 0xF0 {
		t.Errorf("$FF^$0F = %#x, want 0xF0", v.Uint64())
	}
	v = eval(t, "$FF & $0F", false)
	if v.Uint64() != 0x0F {
		t.Errorf("$FF&$0F = %#x, want 0x0F", v.Uint64())
	}
}

func TestRelationalAndEquality(t *testing.T) {
	if v := eval(t, "3 < 5", false); v.Uint64() != 1 {
		t.Errorf("3<5 = %d, want 1", v.Uint64())
	}
	if v := eval(t, "5 == 5", false); v.Uint64() != 1 {
		t.Errorf("5==5 = %d, want 1", v.Uint64())
	}
	if v := eval(t, "5 != 5", false); v.Uint64() != 0 {
		t.Errorf("5!=5 = %d, want 0", v.Uint64())
	}
}

func TestUnaryEncodeDecode(t *testing.T) {
	v := eval(t, ">|$8000_0000", false)
	if v.Uint64() != 32 {
		t.Errorf(">|$80000000 = %d, want 32", v.Uint64())
	}
	v = eval(t, "|<5", false)
	if v.Uint64() != 32 {
		t.Errorf("|<5 = %d, want 32", v.Uint64())
	}
}

func TestUnaryNegateAndComplement(t *testing.T) {
	v := eval(t, "-1", false)
	if v.Uint64() != 0xFFFFFFFF {
		t.Errorf("-1 = %#x, want 0xFFFFFFFF", v.Uint64())
	}
	v = eval(t, "~0", false)
	if v.Uint64() != 0xFFFFFFFF {
		t.Errorf("~0 = %#x, want 0xFFFFFFFF", v.Uint64())
	}
}

func TestCurrentPCSymbol(t *testing.T) {
	var curly int
	words := token.Tokenize("$ + 4", 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(8, 8, false), Line: 1}
	v, err := ev.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if v.Uint64() != 12 {
		t.Errorf("$+4 = %d, want 12", v.Uint64())
	}
}

func TestForwardReferenceToleratedInPass1(t *testing.T) {
	var curly int
	words := token.Tokenize("undefined_name", 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(0, 0, false), Line: 1, AllowForward: true}
	v, err := ev.Parse()
	if err != nil {
		t.Fatalf("forward ref should not error in pass 1: %v", err)
	}
	if !v.ForwardRef {
		t.Error("expected ForwardRef flag set on unresolved pass-1 symbol")
	}
}

func TestUndefinedSymbolErrorsInPass2(t *testing.T) {
	var curly int
	words := token.Tokenize("undefined_name", 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(0, 0, false), Line: 1, AllowForward: false}
	if _, err := ev.Parse(); err == nil {
		t.Error("expected an UnknownSymbol-style error in pass 2")
	}
}

func TestFunctions(t *testing.T) {
	v := eval(t, "TRUNC(3.9)", false)
	if v.Uint64() != 3 {
		t.Errorf("TRUNC(3.9) = %d, want 3", v.Uint64())
	}
	v = eval(t, "ROUND(3.5)", false)
	if v.Uint64() != 4 {
		t.Errorf("ROUND(3.5) = %d, want 4", v.Uint64())
	}
}

func TestStrictDivReportsDivideByZero(t *testing.T) {
	var curly int
	words := token.Tokenize("5/0", 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(0, 0, false), Line: 1, StrictDiv: true}
	_, err := ev.Parse()
	if !errors.Is(err, ErrDivideByZero) {
		t.Errorf("strict 5/0 error = %v, want ErrDivideByZero", err)
	}
}

func TestLenientDivReturnsLeftOperand(t *testing.T) {
	v := eval(t, "5/0", false)
	if v.Uint64() != 5 {
		t.Errorf("lenient 5/0 = %d, want the left operand", v.Uint64())
	}
}

func TestUnknownSymbolSentinel(t *testing.T) {
	var curly int
	words := token.Tokenize("nosuch", 1, &curly)
	ev := &Eval{Words: words, Syms: symbol.New(), PC: value.NewAddr(0, 0, false), Line: 1}
	_, err := ev.Parse()
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("error = %v, want ErrUnknownSymbol", err)
	}
}

func TestBracketGrouping(t *testing.T) {
	v := eval(t, "[2+3]*4", false)
	if v.Uint64() != 20 {
		t.Errorf("[2+3]*4 = %d, want 20", v.Uint64())
	}
}
