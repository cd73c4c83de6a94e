/*
	   P2 Opcode Encoder/Decoder Test routines.

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
package opcode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := Word{Cond: CondC, Inst: InstAdd, WC: true, WZ: false, Im: true, Dst: 0x1FF, Src: 0x0AB}
	v := Encode(w)
	got := Decode(v)
	if got.Cond != w.Cond || got.Inst != w.Inst || got.WC != w.WC || got.WZ != w.WZ ||
		got.Im != w.Im || got.Dst != w.Dst || got.Src != w.Src {
		t.Errorf("Decode(Encode(w)) = %+v, want %+v", got, w)
	}
}

func TestEncodeFieldPositions(t *testing.T) {
	w := Word{Cond: CondAlways, Inst: InstAdd, WC: true, Dst: 1, Src: 1}
	v := Encode(w)
	if v>>28 != CondAlways {
		t.Errorf("cond field = %#x, want %#x", v>>28, CondAlways)
	}
	if (v>>21)&0x7f != InstAdd {
		t.Errorf("inst field = %#x, want %#x", (v>>21)&0x7f, InstAdd)
	}
	if v>>20&1 != 1 {
		t.Error("wc bit not set")
	}
}

func TestAugsAugdRoundTrip(t *testing.T) {
	w := Word{Cond: CondAlways, Inst: InstAugs, Imm23: 0x7FFFFF}
	v := Encode(w)
	got := Decode(v)
	if got.Inst != InstAugs || got.Imm23 != 0x7FFFFF {
		t.Errorf("Decode(Encode(AUGS)) = %+v, want Imm23=%#x", got, 0x7FFFFF)
	}

	wd := Word{Cond: CondC, Inst: InstAugd, Imm23: 0x123}
	vd := Encode(wd)
	gotD := Decode(vd)
	if gotD.Inst != InstAugd || gotD.Cond != CondC || gotD.Imm23 != 0x123 {
		t.Errorf("Decode(Encode(AUGD)) = %+v, want Inst=InstAugd Cond=CondC Imm23=0x123", gotD)
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	if _, ok := Lookup("add"); !ok {
		t.Error("Lookup(\"add\") should find ADD")
	}
	if _, ok := Lookup("ADD"); !ok {
		t.Error("Lookup(\"ADD\") should find ADD")
	}
	if _, ok := Lookup("NOTAMNEMONIC"); ok {
		t.Error("Lookup of unknown mnemonic should fail")
	}
}

func TestNameRoundTrip(t *testing.T) {
	for name, def := range Mnemonics {
		switch name {
		case "RET", "MODC", "MODZ":
			// Aliases: RET shares InstCalld with CALLD, MODC/MODZ share
			// MODCZ's selector; NameWord prefers the canonical spelling.
			continue
		}
		w := Word{Inst: def.Inst}
		if sel, ok := SubSel[name]; ok {
			w.Src = sel
		}
		if fs, ok := FlagSel[name]; ok {
			w.WC = fs&2 != 0
			w.WZ = fs&1 != 0
		}
		switch name {
		case "TESTB", "TESTBN":
			w.Inst = EncodeTestBit(name == "TESTBN", FlagW)
			w.WC = true
		case "TESTP", "TESTPN":
			w.Src = TestPinSel(name == "TESTPN", FlagW)
			w.WC = true
		}
		got, ok := NameWord(w)
		if !ok {
			t.Errorf("NameWord(%s word) not found", name)
			continue
		}
		if got != name {
			t.Errorf("NameWord round-trip for %s = %s", name, got)
		}
	}
}

func TestBitTestFamilySelection(t *testing.T) {
	// Exactly one of WC/WZ selects the TESTB/TESTBN flavors; both or
	// neither selects the bit-mutate operations.
	w := Word{Inst: EncodeTestBit(false, FlagXor), WZ: true}
	if name, _ := NameWord(w); name != "TESTB" {
		t.Errorf("XOR-flavor word with WZ = %q, want TESTB", name)
	}
	w = Word{Inst: InstBitTest + 6}
	if name, _ := NameWord(w); name != "BITRND" {
		t.Errorf("code 38 with no flags = %q, want BITRND", name)
	}
	w = Word{Inst: InstBitTest, WC: true, WZ: true}
	if name, _ := NameWord(w); name != "BITL" {
		t.Errorf("code 32 with WCZ = %q, want BITL", name)
	}
}

func TestSubSelRoundTripThroughEncode(t *testing.T) {
	w := Word{Cond: CondAlways, Inst: InstMisc, Src: SelGetct, Dst: 9}
	got := Decode(Encode(w))
	if name, ok := NameWord(got); !ok || name != "GETCT" {
		t.Errorf("decoded misc word = %q, want GETCT", name)
	}
	if got.Dst != 9 {
		t.Errorf("Dst = %d, want 9", got.Dst)
	}
}

func TestFlagSelFamilies(t *testing.T) {
	for name, fs := range FlagSel {
		w := Word{Inst: Mnemonics[name].Inst, WC: fs&2 != 0, WZ: fs&1 != 0}
		if got, ok := NameWord(w); !ok || got != name {
			t.Errorf("NameWord for %s = %q", name, got)
		}
	}
}

func TestSignExtend9(t *testing.T) {
	if got := SignExtend9(0x1FF); got != -1 {
		t.Errorf("SignExtend9(0x1FF) = %d, want -1", got)
	}
	if got := SignExtend9(0x0FF); got != 255 {
		t.Errorf("SignExtend9(0x0FF) = %d, want 255", got)
	}
}

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		text string
		op   FlagOp
		c, z bool
	}{
		{"WC", FlagW, true, false},
		{"wz", FlagW, false, true},
		{"WCZ", FlagW, true, true},
		{"ANDC", FlagAnd, true, false},
		{"ORZ", FlagOr, false, true},
		{"XORC", FlagXor, true, false},
	}
	for _, tc := range tests {
		suf, ok := ParseSuffix(tc.text)
		if !ok {
			t.Errorf("ParseSuffix(%q) failed", tc.text)
			continue
		}
		if suf.Op != tc.op || suf.C != tc.c || suf.Z != tc.z {
			t.Errorf("ParseSuffix(%q) = %+v", tc.text, suf)
		}
	}
	if _, ok := ParseSuffix("WQ"); ok {
		t.Error("ParseSuffix should reject unknown suffixes")
	}
}

func TestModczParamTable(t *testing.T) {
	if ModczParam["_SET"] != 0xF || ModczParam["_CLR"] != 0 {
		t.Error("_SET/_CLR predicate codes wrong")
	}
	if ModczName[0xC] != "_C" {
		t.Errorf("ModczName[0xC] = %q, want _C", ModczName[0xC])
	}
}

func TestCondCodeTable(t *testing.T) {
	tests := []struct {
		name string
		code uint8
	}{
		{"_RET_", CondRet},
		{"IF_NZ_AND_NC", CondNcAndNz},
		{"IF_NC", CondNc},
		{"IF_C", CondC},
		{"IF_ALWAYS", CondAlways},
	}
	for _, tc := range tests {
		if got := CondCode[tc.name]; got != tc.code {
			t.Errorf("CondCode[%s] = %#x, want %#x", tc.name, got, tc.code)
		}
	}
}
