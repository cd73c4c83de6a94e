/*
	   P2 Assembler Tokenizer and Classifier Test routines.

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
package token

import "testing"

func TestTokenizeMnemonicAndOperands(t *testing.T) {
	RegisterMnemonicLookup(func(name string) bool {
		return name == "ADD" || name == "MOV"
	})
	var curly int
	words := Tokenize("  ADD x,#1 WC", 1, &curly)
	if len(words) == 0 {
		t.Fatal("no words produced")
	}
	if words[0].Kind != Mnemonic || words[0].Text != "ADD" {
		t.Errorf("words[0] = %+v, want Mnemonic ADD", words[0])
	}
	if words[1].Kind != Symbol || words[1].Text != "x" {
		t.Errorf("words[1] = %+v, want Symbol x", words[1])
	}
}

func TestTokenizeNumberKinds(t *testing.T) {
	var curly int
	tests := []struct {
		text string
		kind Kind
	}{
		{"$FF", NumHex},
		{"%1010", NumBin},
		{"%%0123", NumByt},
		{"123", NumDec},
		{"1.5", NumReal},
	}
	for _, tc := range tests {
		words := Tokenize(tc.text, 1, &curly)
		if len(words) != 1 {
			t.Fatalf("Tokenize(%q) produced %d words, want 1", tc.text, len(words))
		}
		if words[0].Kind != tc.kind {
			t.Errorf("Tokenize(%q).Kind = %d, want %d", tc.text, words[0].Kind, tc.kind)
		}
	}
}

func TestTokenizeUnderscoreSeparators(t *testing.T) {
	var curly int
	words := Tokenize("$DEAD_BEEF", 1, &curly)
	if len(words) != 1 || words[0].Text != "$DEAD_BEEF" {
		t.Errorf("underscore literal not preserved verbatim: %+v", words)
	}
}

func TestTokenizeLocalSymbol(t *testing.T) {
	var curly int
	words := Tokenize(".loop", 1, &curly)
	if len(words) != 1 || words[0].Kind != LocalSymbol {
		t.Errorf("Tokenize(.loop) = %+v, want a single LocalSymbol", words)
	}
}

func TestTokenizeStringLiteralEscape(t *testing.T) {
	var curly int
	words := Tokenize(`"a\"b"`, 1, &curly)
	if len(words) != 1 || words[0].Kind != StringLit {
		t.Fatalf("Tokenize(escaped string) = %+v", words)
	}
	if words[0].Text != `"a\"b"` {
		t.Errorf("string literal text = %q, want %q", words[0].Text, `"a\"b"`)
	}
}

func TestTokenizeEOLComment(t *testing.T) {
	var curly int
	words := Tokenize("MOV x,y ' trailing comment", 1, &curly)
	var sawComment bool
	for _, w := range words {
		if w.Kind == CommentEOL {
			sawComment = true
		}
	}
	if !sawComment {
		t.Errorf("expected a CommentEOL token, got %+v", words)
	}
}

func TestTokenizeCurlyCommentAcrossLines(t *testing.T) {
	var curly int
	words1 := Tokenize("MOV x,y { start of comment", 1, &curly)
	if curly == 0 {
		t.Fatal("curly nesting should be open after an unterminated { comment")
	}
	words2 := Tokenize("still inside comment } MOV z,w", 2, &curly)
	if curly != 0 {
		t.Error("curly nesting should close once } is seen")
	}
	if words2[0].Kind != CommentCurly {
		t.Errorf("first word of continuation line = %+v, want CommentCurly", words2[0])
	}
	if words1[len(words1)-1].Kind != CommentCurly {
		t.Errorf("last word on opening line = %+v, want CommentCurly", words1[len(words1)-1])
	}
}

func TestTokenizePointerMerge(t *testing.T) {
	var curly int
	words := Tokenize("RDLONG x,PTRA++", 1, &curly)
	last := words[len(words)-1]
	if last.Text != "PTRA_postinc" {
		t.Errorf("pointer merge: last word = %q, want PTRA_postinc", last.Text)
	}

	words = Tokenize("RDLONG x,++PTRB", 1, &curly)
	last = words[len(words)-1]
	if last.Text != "PTRB_preinc" {
		t.Errorf("pointer merge: last word = %q, want PTRB_preinc", last.Text)
	}
}

func TestTokenizeOperatorsLongestFirst(t *testing.T) {
	var curly int
	words := Tokenize("a <= b", 1, &curly)
	var sawLE bool
	for _, w := range words {
		if w.Text == "<=" {
			sawLE = true
		}
		if w.Text == "<" {
			t.Errorf("'<=' should not be split into '<' and '='")
		}
	}
	if !sawLE {
		t.Errorf("expected a '<=' token, got %+v", words)
	}
}

func TestClassifyConditionAndSuffix(t *testing.T) {
	var curly int
	words := Tokenize("IF_C ADD x,y WC", 1, &curly)
	if words[0].Kind != Condition || !words[0].Has(IsConditional) {
		t.Errorf("words[0] = %+v, want Condition/IsConditional", words[0])
	}
	last := words[len(words)-1]
	if last.Kind != Suffix || !last.Has(IsWCZSuffix) {
		t.Errorf("last word = %+v, want Suffix/IsWCZSuffix", last)
	}
}
