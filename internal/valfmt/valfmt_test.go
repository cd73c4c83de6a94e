/*
	   P2 Value Text Formatting Test routines.

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
package valfmt

import (
	"strconv"
	"strings"
	"testing"

	"github.com/rcornwell/p2dev/internal/value"
)

func TestHexGroupsByNibble(t *testing.T) {
	got := Hex(value.NewLong(0xDEADBEEF))
	want := "DEAD_BEEF"
	if got != want {
		t.Errorf("Hex(0xDEADBEEF) = %q, want %q", got, want)
	}
}

func TestHexByteNoGrouping(t *testing.T) {
	got := Hex(value.NewByte(0xA5))
	if got != "A5" {
		t.Errorf("Hex(byte) = %q, want %q", got, "A5")
	}
}

func TestBinGroupsByNibble(t *testing.T) {
	got := Bin(value.NewByte(0xA5))
	want := "1010_0101"
	if got != want {
		t.Errorf("Bin(0xA5) = %q, want %q", got, want)
	}
}

func TestDecSigned(t *testing.T) {
	v := value.NewLong(0xFFFFFFFF) // -1 as a signed Long
	if got := Dec(v); got != "-1" {
		t.Errorf("Dec(-1) = %q, want -1", got)
	}
}

func TestDecPositive(t *testing.T) {
	if got := Dec(value.NewLong(42)); got != "42" {
		t.Errorf("Dec(42) = %q, want 42", got)
	}
}

func TestDecReal(t *testing.T) {
	got := Dec(value.NewReal(1.5))
	want := "1.500000"
	if got != want {
		t.Errorf("Dec(1.5) = %q, want %q", got, want)
	}
}

func TestAddrBothForms(t *testing.T) {
	v := value.NewAddr(0x004, 0x400, false)
	got := Addr(v, false)
	want := Hex(value.NewLong(0x004)) + ":" + Hex(value.NewLong(0x400))
	if got != want {
		t.Errorf("Addr(both) = %q, want %q", got, want)
	}
}

func TestAddrHubOnly(t *testing.T) {
	v := value.NewAddr(0x004, 0x400, false)
	got := Addr(v, true)
	want := "$" + Hex(value.NewLong(0x400))
	if got != want {
		t.Errorf("Addr(hubOnly) = %q, want %q", got, want)
	}
}

func TestFormatUintZero(t *testing.T) {
	if got := Dec(value.NewLong(0)); got != "0" {
		t.Errorf("Dec(0) = %q, want 0", got)
	}
}

func TestBytBaseFour(t *testing.T) {
	got := Byt(value.NewByte(0xE4)) // 11 10 01 00
	if got != "3210" {
		t.Errorf("Byt(0xE4) = %q, want 3210", got)
	}
}

// TestLiteralFormatsReparse: a value rendered in any of the literal
// bases parses back to itself.
func TestLiteralFormatsReparse(t *testing.T) {
	for _, n := range []uint32{0, 1, 0xA5, 0xDEADBEEF, 0x7FFFFFFF} {
		v := value.NewLong(n)
		cases := []struct {
			text string
			base int
		}{
			{Hex(v), 16},
			{Bin(v), 2},
			{Byt(v), 4},
		}
		for _, tc := range cases {
			clean := strings.ReplaceAll(tc.text, "_", "")
			got, err := strconv.ParseUint(clean, tc.base, 64)
			if err != nil {
				t.Fatalf("parse %q base %d: %v", tc.text, tc.base, err)
			}
			if uint32(got) != n {
				t.Errorf("base-%d round trip of %#x = %#x", tc.base, n, got)
			}
		}
	}
}
