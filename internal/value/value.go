/*
	   P2 Assembler Value/Union

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

// Package value implements the tagged-union scalar/array atom shared by
// the tokenizer, expression evaluator and assembler: Value.
package value

import (
	"errors"
	"math"
)

// Kind is the element type tag of a Value.
type Kind int

// Element kinds. Order matters only for readability.
const (
	Invalid Kind = iota
	Bool
	Byte
	Word
	Long
	Quad
	Real
	Addr
	String
)

// ErrInvalidOperand is returned when an operation is undefined for a kind.
var ErrInvalidOperand = errors.New("invalid operand")

// elem is one array slot. Integers/bools live in bits; reals live in
// bits as math.Float64bits; Addr carries both address forms.
type elem struct {
	bits uint64
	cog  uint32
	hub  uint32
}

// Value is a tagged union of scalar or array assembler atoms.
type Value struct {
	Kind       Kind
	elems      []elem
	HubMode    bool   // Addr: true selects the hub-absolute form.
	ForwardRef bool   // Set by the evaluator on an unresolved pass-1 symbol.
	Literal    string // Verbatim source text, when this value came from one.
}

// Width returns the element width in bytes for a kind.
func Width(k Kind) int {
	switch k {
	case Byte, Bool:
		return 1
	case Word:
		return 2
	case Long, Addr:
		return 4
	case Quad, Real:
		return 8
	case String:
		return 1
	default:
		return 0
	}
}

func mask(k Kind) uint64 {
	switch Width(k) {
	case 1:
		return 0xff
	case 2:
		return 0xffff
	case 4:
		return 0xffffffff
	case 8:
		return 0xffffffffffffffff
	default:
		return 0
	}
}

// Scalar constructors.

func NewBool(b bool) Value {
	v := uint64(0)
	if b {
		v = 1
	}
	return Value{Kind: Bool, elems: []elem{{bits: v}}}
}

func NewByte(v uint8) Value  { return Value{Kind: Byte, elems: []elem{{bits: uint64(v)}}} }
func NewWord(v uint16) Value { return Value{Kind: Word, elems: []elem{{bits: uint64(v)}}} }
func NewLong(v uint32) Value { return Value{Kind: Long, elems: []elem{{bits: uint64(v)}}} }
func NewQuad(v uint64) Value { return Value{Kind: Quad, elems: []elem{{bits: v}}} }

func NewReal(f float64) Value {
	return Value{Kind: Real, elems: []elem{{bits: math.Float64bits(f)}}}
}

func NewAddr(cog, hub uint32, hubMode bool) Value {
	return Value{Kind: Addr, HubMode: hubMode, elems: []elem{{cog: cog, hub: hub}}}
}

func NewString(s string) Value {
	v := Value{Kind: String}
	for i := range s {
		v.elems = append(v.elems, elem{bits: uint64(s[i])})
	}
	return v
}

// NewInvalid returns the zero/invalid value, used for unresolved forward refs.
func NewInvalid() Value { return Value{Kind: Invalid} }

// Accessors.

// IsArray reports whether the value holds more than one element.
func (v Value) IsArray() bool { return len(v.elems) != 1 }

// Len returns the element count.
func (v Value) Len() int { return len(v.elems) }

// Uint64 returns the scalar's raw value masked to its declared width.
// For arrays, the first element is returned. An Addr yields whichever
// of its cog/hub forms HubMode selects (see GetAddr).
func (v Value) Uint64() uint64 {
	if len(v.elems) == 0 {
		return 0
	}
	if v.Kind == Addr {
		return uint64(v.GetAddr())
	}
	return v.elems[0].bits & mask(v.Kind)
}

// Int64 is Uint64 sign-extended from the declared width.
func (v Value) Int64() int64 {
	u := v.Uint64()
	w := Width(v.Kind)
	if w == 0 || w == 8 {
		return int64(u)
	}
	shift := uint(64 - w*8)
	return int64(u<<shift) >> shift
}

// Float64 returns the Real interpretation of the scalar.
func (v Value) Float64() float64 {
	if v.Kind == Real {
		return math.Float64frombits(v.Uint64())
	}
	return float64(v.Int64())
}

// Bytes returns the byte-size of the whole value (sum of element widths).
func (v Value) Bytes() int {
	return Width(v.Kind) * len(v.elems)
}

// GetAddr returns the cog or hub form of an Addr value per the HubMode bit.
func (v Value) GetAddr() uint32 {
	if len(v.elems) == 0 {
		return 0
	}
	if v.HubMode {
		return v.elems[0].hub
	}
	return v.elems[0].cog
}

// CogAddr and HubAddr expose both forms regardless of HubMode.
func (v Value) CogAddr() uint32 {
	if len(v.elems) == 0 {
		return 0
	}
	return v.elems[0].cog
}

func (v Value) HubAddr() uint32 {
	if len(v.elems) == 0 {
		return 0
	}
	return v.elems[0].hub
}

func withMasked(k Kind, u uint64) Value {
	return Value{Kind: k, elems: []elem{{bits: u & mask(k)}}}
}

// wrap builds a result value with the left operand's kind, except that
// an Addr left operand yields a Long.
func (v Value) wrap(u uint64) Value {
	if v.Kind == Addr {
		return withMasked(Long, u)
	}
	return withMasked(v.Kind, u)
}

// Arithmetic. Result kind/width is the left operand's (Long for Addr).

func (v Value) Add(other Value) Value {
	if v.Kind == Real {
		return NewReal(v.Float64() + other.Float64())
	}
	return v.wrap(v.Uint64() + other.Uint64())
}

func (v Value) Sub(other Value) Value {
	if v.Kind == Real {
		return NewReal(v.Float64() - other.Float64())
	}
	return v.wrap(v.Uint64() - other.Uint64())
}

func (v Value) Mul(other Value) Value {
	if v.Kind == Real {
		return NewReal(v.Float64() * other.Float64())
	}
	return v.wrap(v.Uint64() * other.Uint64())
}

// Div returns the left operand unchanged on division by zero.
func (v Value) Div(other Value) Value {
	if v.Kind == Real {
		d := other.Float64()
		if isFuzzyZero(d) {
			return v
		}
		return NewReal(v.Float64() / d)
	}
	d := other.Uint64()
	if d == 0 {
		return v
	}
	return v.wrap(v.Uint64() / d)
}

func (v Value) Mod(other Value) Value {
	if v.Kind == Real {
		return v
	}
	d := other.Uint64()
	if d == 0 {
		return v
	}
	return v.wrap(v.Uint64() % d)
}

func isFuzzyZero(f float64) bool {
	const eps = 1e-12
	return f > -eps && f < eps
}

// Bitwise/logic. Undefined on Real: returns ErrInvalidOperand as the error.

func (v Value) And(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	return v.wrap(v.Uint64() & other.Uint64()), nil
}

func (v Value) Or(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	return v.wrap(v.Uint64() | other.Uint64()), nil
}

func (v Value) Xor(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	return v.wrap(v.Uint64() ^ other.Uint64()), nil
}

// Shl is a logical left shift by the low bits of other.
func (v Value) Shl(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	n := other.Uint64() & 63
	return v.wrap(v.Uint64() << n), nil
}

// Shr is a logical right shift.
func (v Value) Shr(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	n := other.Uint64() & 63
	return v.wrap(v.Uint64() >> n), nil
}

// Sar is an arithmetic (sign-extending) right shift.
func (v Value) Sar(other Value) (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	n := uint(other.Uint64() & 63)
	return v.wrap(uint64(v.Int64() >> n)), nil
}

// Not complements all bits to the width of the type.
func (v Value) Not() (Value, error) {
	if v.Kind == Real {
		return Value{}, ErrInvalidOperand
	}
	return v.wrap(^v.Uint64()), nil
}

// Neg negates modulo the type's width; on a String it forms the two's
// complement of the whole byte sequence.
func (v Value) Neg() (Value, error) {
	switch v.Kind {
	case Real:
		return NewReal(-v.Float64()), nil
	case String:
		out := make([]elem, len(v.elems))
		for i, e := range v.elems {
			out[i] = elem{bits: (^e.bits) & 0xff}
		}
		carry := uint64(1)
		for i := len(out) - 1; i >= 0 && carry != 0; i-- {
			sum := out[i].bits + carry
			out[i].bits = sum & 0xff
			carry = sum >> 8
		}
		return Value{Kind: String, elems: out}, nil
	default:
		return v.wrap(-v.Uint64()), nil
	}
}

// Relational operators always produce a Bool.

func (v Value) Eq(other Value) Value { return NewBool(v.compare(other) == 0) }
func (v Value) Ne(other Value) Value { return NewBool(v.compare(other) != 0) }
func (v Value) Lt(other Value) Value { return NewBool(v.compare(other) < 0) }
func (v Value) Le(other Value) Value { return NewBool(v.compare(other) <= 0) }
func (v Value) Gt(other Value) Value { return NewBool(v.compare(other) > 0) }
func (v Value) Ge(other Value) Value { return NewBool(v.compare(other) >= 0) }

func (v Value) compare(other Value) int {
	if v.Kind == Real || other.Kind == Real {
		a, b := v.Float64(), other.Float64()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	a, b := v.Int64(), other.Int64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Reverse reverses the low `bits` bits of val.
func Reverse(val uint32, bits int) uint32 {
	var out uint32
	for i := 0; i < bits; i++ {
		out <<= 1
		out |= (val >> i) & 1
	}
	return out
}

// Encode returns the 1-based index of the highest set bit, 0 if val==0.
func Encode(val uint32) int {
	if val == 0 {
		return 0
	}
	n := 0
	for val != 0 {
		val >>= 1
		n++
	}
	return n
}

// Decode returns a one-hot mask with bit x set.
func Decode(x uint32) uint32 {
	if x >= 32 {
		return 0
	}
	return 1 << x
}

// Ones is the population count.
func Ones(val uint32) int {
	n := 0
	for val != 0 {
		n += int(val & 1)
		val >>= 1
	}
	return n
}

// seussTable is the fixed SEUSS bit permutation: forward moves source
// bit i to position seussTable[i]; reverse runs it the other way.
var seussTable = [32]int{
	1, 0, 5, 18, 4, 9, 2, 13, 14, 23, 7, 16, 26, 11, 19, 29,
	30, 20, 3, 24, 12, 8, 17, 27, 6, 21, 25, 15, 10, 22, 28, 31,
}

// SeussForward scrambles a 32-bit value through the fixed permutation.
func SeussForward(v uint32) uint32 { return seuss(v, true) }

// SeussReverse is the inverse of SeussForward.
func SeussReverse(v uint32) uint32 { return seuss(v, false) }

func seuss(v uint32, forward bool) uint32 {
	var out uint32
	for i := 0; i < 32; i++ {
		srcBit, dstBit := i, seussTable[i]
		if !forward {
			srcBit, dstBit = dstBit, srcBit
		}
		if v&(1<<uint(srcBit)) != 0 {
			out |= 1 << uint(dstBit)
		}
	}
	return out
}

// RgbSqz packs the top 5/6/5 bits of an 8:8:8 RGB long into R5G6B5.
func RgbSqz(v uint32) uint32 {
	r := (v >> 19) & 0x1f
	g := (v >> 10) & 0x3f
	b := (v >> 3) & 0x1f
	return r<<11 | g<<5 | b
}

// RgbExp expands R5G6B5 back to 8:8:8, replicating the top bits into
// the low bits so full-scale values stay full-scale.
func RgbExp(v uint32) uint32 {
	r := (v >> 11) & 0x1f
	g := (v >> 5) & 0x3f
	b := v & 0x1f
	return (r<<3|r>>2)<<16 | (g<<2|g>>4)<<8 | (b<<3 | b>>2)
}

// Append concatenates a scalar or array onto v. If v is Invalid/empty,
// the result adopts other's kind; otherwise other's elements are
// appended element-wise at v's element width.
func (v Value) Append(other Value) Value {
	if v.Kind == Invalid || len(v.elems) == 0 {
		out := other
		out.elems = append([]elem{}, other.elems...)
		return out
	}
	out := v
	out.elems = append(append([]elem{}, v.elems...), other.elems...)
	return out
}

// Pack serializes v into bytes at targetWidth (1, 2 or 4). When expand
// is true, each element is fully serialized little-endian at its own
// width; when false, only the low targetWidth bytes of each element
// are taken.
func (v Value) Pack(targetWidth int, expand bool) []byte {
	var out []byte
	for _, e := range v.elems {
		width := Width(v.Kind)
		if v.Kind == Addr {
			val := e.cog
			if v.HubMode {
				val = e.hub
			}
			e.bits = uint64(val)
		}
		if expand {
			for i := 0; i < width; i++ {
				out = append(out, byte(e.bits>>(8*i)))
			}
		} else {
			for i := 0; i < targetWidth; i++ {
				out = append(out, byte(e.bits>>(8*i)))
			}
		}
	}
	return out
}
