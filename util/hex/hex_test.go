/*
 * P2 - Low-level hex/decimal digit writer test routines.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */
package hex

import (
	"strings"
	"testing"
)

func TestFormatByte(t *testing.T) {
	var b strings.Builder
	FormatByte(&b, 0xA5)
	if b.String() != "A5" {
		t.Errorf("FormatByte(0xA5) = %q, want A5", b.String())
	}
}

func TestFormatDigitMasksToNibble(t *testing.T) {
	var b strings.Builder
	FormatDigit(&b, 0xFB) // only the low nibble should render
	if b.String() != "B" {
		t.Errorf("FormatDigit(0xFB) = %q, want B", b.String())
	}
}

func TestFormatBytesWithSpacing(t *testing.T) {
	var b strings.Builder
	FormatBytes(&b, true, []byte{0x01, 0xFF})
	if b.String() != "01 FF " {
		t.Errorf("FormatBytes = %q, want %q", b.String(), "01 FF ")
	}
}

func TestFormatWord(t *testing.T) {
	var b strings.Builder
	FormatWord(&b, []uint32{0x12345678})
	if b.String() != "12345678 " {
		t.Errorf("FormatWord = %q, want %q", b.String(), "12345678 ")
	}
}

func TestFormatDecimal(t *testing.T) {
	var b strings.Builder
	FormatDecimal(&b, 129)
	if b.String() != "129" {
		t.Errorf("FormatDecimal(129) = %q, want 129", b.String())
	}
}
