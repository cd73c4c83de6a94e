/*
	   P2 Value Text Formatting

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

// Package valfmt renders value.Value in the bin/byte/dec/hex textual
// forms the debug console and disassembler listing need.
package valfmt

import (
	"strings"

	"github.com/rcornwell/p2dev/internal/value"
	"github.com/rcornwell/p2dev/util/hex"
)

// Hex renders v as grouped hex digits, most-significant nibble first.
func Hex(v value.Value) string {
	var b strings.Builder
	width := value.Width(v.Kind)
	if width == 0 {
		width = 4
	}
	n := v.Uint64()
	nibbles := width * 2
	for i := nibbles - 1; i >= 0; i-- {
		hex.FormatDigit(&b, byte(n>>(uint(i)*4)))
		if i != 0 && i%4 == 0 {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Bin renders v as grouped binary digits.
func Bin(v value.Value) string {
	var b strings.Builder
	width := value.Width(v.Kind)
	if width == 0 {
		width = 4
	}
	n := v.Uint64()
	bits := width * 8
	for i := bits - 1; i >= 0; i-- {
		if (n>>uint(i))&1 != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
		if i != 0 && i%4 == 0 {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Byt renders v as grouped base-4 digits (the %% "byte base" literal
// form), two bits per digit.
func Byt(v value.Value) string {
	var b strings.Builder
	width := value.Width(v.Kind)
	if width == 0 {
		width = 4
	}
	n := v.Uint64()
	digits := width * 4
	for i := digits - 1; i >= 0; i-- {
		b.WriteByte(byte('0' + (n>>(uint(i)*2))&3))
		if i != 0 && i%4 == 0 {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Dec renders v as a signed decimal integer, or a Go-syntax float for Real.
func Dec(v value.Value) string {
	if v.Kind == value.Real {
		return formatFloat(v.Float64())
	}
	return formatInt(v.Int64())
}

// Addr renders an Addr value as "cog:hub", or just the selected form
// when hubOnly is true (matches the cog/hub split the debug console
// shows for PTRA/PTRB and jump targets).
func Addr(v value.Value, hubOnly bool) string {
	if hubOnly {
		return "$" + Hex(value.NewLong(v.HubAddr()))
	}
	return Hex(value.NewLong(v.CogAddr())) + ":" + Hex(value.NewLong(v.HubAddr()))
}

func formatInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := formatUint(uint64(n))
	if neg {
		return "-" + s
	}
	return s
}

func formatUint(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

func formatFloat(f float64) string {
	// Minimal, deterministic rendering without pulling in strconv's
	// full shortest-repr machinery: adequate for listing/debug display.
	neg := f < 0
	if neg {
		f = -f
	}
	whole := uint64(f)
	frac := f - float64(whole)
	out := formatUint(whole) + "."
	for i := 0; i < 6; i++ {
		frac *= 10
		d := uint64(frac)
		out += string(rune('0' + d))
		frac -= float64(d)
	}
	if neg {
		return "-" + out
	}
	return out
}
