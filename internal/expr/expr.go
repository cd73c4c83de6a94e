/*
	   P2 Assembler Expression Evaluator

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

// Package expr is the recursive-descent expression evaluator: it
// walks a slice of classified token.Word over the full P2 precedence
// ladder and produces a value.Value.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rcornwell/p2dev/internal/symbol"
	"github.com/rcornwell/p2dev/internal/token"
	"github.com/rcornwell/p2dev/internal/value"
)

// Sentinel errors, so the assembler can classify a failed line by kind.
var (
	ErrUnknownSymbol = errors.New("undefined symbol")
	ErrDivideByZero  = errors.New("divide by zero")
)

// Eval is one evaluation pass over a word slice starting at Pos. AllowForward
// permits an unresolved symbol to yield a zero Long with ForwardRef set
// (pass 1); when false an unresolved symbol is a hard error (pass 2).
// StrictDiv makes an explicit division or modulo by zero an error
// instead of the silent return-LHS rule, for assignment expressions.
type Eval struct {
	Words        []token.Word
	Pos          int
	Syms         *symbol.Table
	PC           value.Value
	Line         int
	AllowForward bool
	StrictDiv    bool
}

// Parse evaluates one expression starting at e.Pos and leaves Pos just
// past the last consumed token.
func (e *Eval) Parse() (value.Value, error) {
	return e.parseLogOr()
}

func (e *Eval) peek() token.Word {
	if e.Pos >= len(e.Words) {
		return token.Word{Kind: token.Unknown}
	}
	return e.Words[e.Pos]
}

func (e *Eval) next() token.Word {
	w := e.peek()
	e.Pos++
	return w
}

func (e *Eval) atEnd() bool { return e.Pos >= len(e.Words) }

func (e *Eval) parseLogOr() (value.Value, error) {
	lhs, err := e.parseLogAnd()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsLogOr != 0 {
		e.next()
		rhs, err := e.parseLogAnd()
		if err != nil {
			return lhs, err
		}
		lhs = value.NewBool(lhs.Uint64() != 0 || rhs.Uint64() != 0)
	}
	return lhs, nil
}

func (e *Eval) parseLogAnd() (value.Value, error) {
	lhs, err := e.parseBitOr()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsLogAnd != 0 {
		e.next()
		rhs, err := e.parseBitOr()
		if err != nil {
			return lhs, err
		}
		lhs = value.NewBool(lhs.Uint64() != 0 && rhs.Uint64() != 0)
	}
	return lhs, nil
}

func (e *Eval) parseBitOr() (value.Value, error) {
	lhs, err := e.parseBitXor()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsBinOr != 0 {
		e.next()
		rhs, err := e.parseBitXor()
		if err != nil {
			return lhs, err
		}
		lhs, err = lhs.Or(rhs)
		if err != nil {
			return lhs, e.wrapErr(err)
		}
	}
	return lhs, nil
}

func (e *Eval) parseBitXor() (value.Value, error) {
	lhs, err := e.parseBitAnd()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsBinXor != 0 {
		e.next()
		rhs, err := e.parseBitAnd()
		if err != nil {
			return lhs, err
		}
		lhs, err = lhs.Xor(rhs)
		if err != nil {
			return lhs, e.wrapErr(err)
		}
	}
	return lhs, nil
}

func (e *Eval) parseBitAnd() (value.Value, error) {
	lhs, err := e.parseEquality()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsBinAnd != 0 {
		e.next()
		rhs, err := e.parseEquality()
		if err != nil {
			return lhs, err
		}
		lhs, err = lhs.And(rhs)
		if err != nil {
			return lhs, e.wrapErr(err)
		}
	}
	return lhs, nil
}

func (e *Eval) parseEquality() (value.Value, error) {
	lhs, err := e.parseRelation()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsEquality != 0 {
		op := e.next().Text
		rhs, err := e.parseRelation()
		if err != nil {
			return lhs, err
		}
		if op == "==" {
			lhs = lhs.Eq(rhs)
		} else {
			lhs = lhs.Ne(rhs)
		}
	}
	return lhs, nil
}

func (e *Eval) parseRelation() (value.Value, error) {
	lhs, err := e.parseShift()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsRelation != 0 {
		op := e.next().Text
		rhs, err := e.parseShift()
		if err != nil {
			return lhs, err
		}
		switch op {
		case "<":
			lhs = lhs.Lt(rhs)
		case "<=":
			lhs = lhs.Le(rhs)
		case ">":
			lhs = lhs.Gt(rhs)
		case ">=":
			lhs = lhs.Ge(rhs)
		}
	}
	return lhs, nil
}

func (e *Eval) parseShift() (value.Value, error) {
	lhs, err := e.parseAdd()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsShiftop != 0 {
		op := e.next().Text
		rhs, err := e.parseAdd()
		if err != nil {
			return lhs, err
		}
		switch op {
		case "<<":
			lhs, err = lhs.Shl(rhs)
		case ">>":
			lhs, err = lhs.Shr(rhs)
		case "><":
			lhs, err = lhs.Sar(rhs)
		}
		if err != nil {
			return lhs, e.wrapErr(err)
		}
	}
	return lhs, nil
}

func (e *Eval) parseAdd() (value.Value, error) {
	lhs, err := e.parseMul()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsAddop != 0 && e.peek().Kind == token.Operator {
		op := e.next().Text
		rhs, err := e.parseMul()
		if err != nil {
			return lhs, err
		}
		if op == "+" {
			lhs = lhs.Add(rhs)
		} else {
			lhs = lhs.Sub(rhs)
		}
	}
	return lhs, nil
}

func (e *Eval) parseMul() (value.Value, error) {
	lhs, err := e.parseUnary()
	if err != nil {
		return lhs, err
	}
	for !e.atEnd() && e.peek().Mask&token.IsMulop != 0 {
		op := e.next().Text
		rhs, err := e.parseUnary()
		if err != nil {
			return lhs, err
		}
		switch op {
		case "*":
			lhs = lhs.Mul(rhs)
		case "/", "\\":
			if e.StrictDiv && rhs.Uint64() == 0 && rhs.Kind != value.Real {
				return lhs, fmt.Errorf("line %d: %w", e.Line, ErrDivideByZero)
			}
			if op == "/" {
				lhs = lhs.Div(rhs)
			} else {
				lhs = lhs.Mod(rhs)
			}
		}
	}
	return lhs, nil
}

func (e *Eval) parseUnary() (value.Value, error) {
	w := e.peek()
	switch {
	case w.Text == "-" && w.Kind == token.Operator:
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		r, err := v.Neg()
		return r, e.wrapErr(err)
	case w.Text == "+" && w.Kind == token.Operator:
		e.next()
		return e.parseUnary()
	case w.Text == "~":
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		r, err := v.Not()
		return r, e.wrapErr(err)
	case w.Text == "!":
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		return value.NewBool(v.Uint64() == 0), nil
	case w.Text == "!!":
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		return value.NewBool(v.Uint64() != 0), nil
	case w.Mask&token.IsBinEncod != 0 && w.Text == ">|":
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		return value.NewLong(uint32(value.Encode(uint32(v.Uint64())))), nil
	case w.Mask&token.IsBinDecod != 0 && w.Text == "|<":
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return v, err
		}
		return value.NewLong(value.Decode(uint32(v.Uint64()))), nil
	case w.Text == "@" || w.Text == "@@" || w.Text == "@@@":
		e.next()
		return e.parseUnary()
	}
	return e.parsePrimary()
}

func (e *Eval) parsePrimary() (value.Value, error) {
	w := e.next()
	switch w.Kind {
	case token.NumDec:
		return parseDec(w.Text)
	case token.NumHex:
		return parseRadix(w.Text[1:], 16)
	case token.NumBin:
		return parseRadix(w.Text[1:], 2)
	case token.NumByt:
		return parseRadix(w.Text[2:], 4)
	case token.NumReal:
		f, err := strconv.ParseFloat(strings.ReplaceAll(w.Text, "_", ""), 64)
		if err != nil {
			return value.NewInvalid(), e.errf("bad real literal %q", w.Text)
		}
		return value.NewReal(f), nil
	case token.StringLit:
		return value.NewString(unquote(w.Text)), nil
	case token.Symbol, token.LocalSymbol:
		if strings.ToUpper(w.Text) == "FLOAT" || strings.ToUpper(w.Text) == "ROUND" || strings.ToUpper(w.Text) == "TRUNC" {
			return e.parseFunc(strings.ToUpper(w.Text))
		}
		return e.resolveSymbol(w)
	case token.Unknown:
		if w.Text == "$" {
			return e.PC, nil
		}
	case token.Operator:
		if w.Text == "(" {
			v, err := e.parseLogOr()
			if err != nil {
				return v, err
			}
			if e.peek().Text != ")" {
				return v, e.errf("expected ')'")
			}
			e.next()
			return v, nil
		}
	case token.Delimiter:
		if w.Text == "[" {
			v, err := e.parseLogOr()
			if err != nil {
				return v, err
			}
			if e.peek().Text != "]" {
				return v, e.errf("expected ']'")
			}
			e.next()
			return v, nil
		}
	}
	return value.NewInvalid(), e.errf("unexpected token %q", w.Text)
}

func (e *Eval) parseFunc(name string) (value.Value, error) {
	if e.peek().Text != "(" {
		return value.NewInvalid(), e.errf("expected '(' after %s", name)
	}
	e.next()
	v, err := e.parseLogOr()
	if err != nil {
		return v, err
	}
	if e.peek().Text != ")" {
		return v, e.errf("expected ')'")
	}
	e.next()
	switch name {
	case "FLOAT":
		return value.NewReal(float64(v.Int64())), nil
	case "ROUND":
		return value.NewLong(uint32(int32(v.Float64() + sign(v.Float64())*0.5))), nil
	case "TRUNC":
		return value.NewLong(uint32(int32(v.Float64()))), nil
	}
	return v, nil
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func (e *Eval) resolveSymbol(w token.Word) (value.Value, error) {
	sym, ok := e.Syms.Lookup(w.Text, w.Kind == token.LocalSymbol, e.Line)
	if !ok {
		if e.AllowForward {
			v := value.NewLong(0)
			v.ForwardRef = true
			return v, nil
		}
		return value.NewInvalid(), fmt.Errorf("line %d: %w %q", e.Line, ErrUnknownSymbol, w.Text)
	}
	return sym.Value, nil
}

func parseDec(text string) (value.Value, error) {
	clean := strings.ReplaceAll(text, "_", "")
	n, err := strconv.ParseUint(clean, 10, 64)
	if err != nil {
		return value.NewInvalid(), fmt.Errorf("bad decimal literal %q", text)
	}
	return value.NewLong(uint32(n)), nil
}

func parseRadix(digits string, base int) (value.Value, error) {
	clean := strings.ReplaceAll(digits, "_", "")
	n, err := strconv.ParseUint(clean, base, 64)
	if err != nil {
		return value.NewInvalid(), fmt.Errorf("bad literal %q", digits)
	}
	return value.NewLong(uint32(n)), nil
}

func unquote(text string) string {
	s := strings.TrimPrefix(text, "\"")
	s = strings.TrimSuffix(s, "\"")
	return strings.ReplaceAll(s, "\\\"", "\"")
}

func (e *Eval) errf(format string, a ...any) error {
	return fmt.Errorf("line %d: %s", e.Line, fmt.Sprintf(format, a...))
}

func (e *Eval) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("line %d: %w", e.Line, err)
}
