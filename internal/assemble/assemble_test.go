/*
	   P2 Two-Pass Assembler Test routines.

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
package assemble

import (
	"errors"
	"testing"

	"github.com/rcornwell/p2dev/internal/disassemble"
	"github.com/rcornwell/p2dev/internal/opcode"
)

// kindOf digs the error kind out of an assembly error.
func kindOf(t *testing.T, err error) ErrKind {
	t.Helper()
	var le *LineError
	if !errors.As(err, &le) {
		t.Fatalf("error %v is not a LineError", err)
	}
	return le.Kind
}

func decodeWord(img []byte, wordIndex int) opcode.Word {
	off := wordIndex * 4
	v := uint32(img[off]) | uint32(img[off+1])<<8 | uint32(img[off+2])<<16 | uint32(img[off+3])<<24
	return opcode.Decode(v)
}

func TestAssembleSimpleInstruction(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tMOV 0,#5\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if len(img) != 4 {
		t.Fatalf("image length = %d, want 4", len(img))
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstMov || w.Src != 5 || !w.Im {
		t.Errorf("decoded word = %+v, want MOV dst=0 src=#5", w)
	}
}

func TestAssembleForwardLabelReference(t *testing.T) {
	// JMP is encoded as an R-bit + 20-bit PC-relative offset, not an
	// absolute D:S split: "label" sits at the JMP's own
	// next-PC, so the offset is 0.
	a := New()
	src := "\tORG 0\n\tJMP label\nlabel\tADD 0,#1\n"
	img, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	sym, ok := a.Syms.Lookup("label", false, 0)
	if !ok {
		t.Fatal("label should be defined after assembly")
	}
	wantTarget := uint32(sym.Value.Uint64())
	if wantTarget != 1 {
		t.Fatalf("label cog address = %d, want 1 (one long in)", wantTarget)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstJmp {
		t.Fatalf("decoded inst = %d, want InstJmp", w.Inst)
	}
	if !w.R {
		t.Errorf("JMP word R flag = false, want true (relative branch)")
	}
	if got := opcode.SignExtend20(w.Rel); got != 0 {
		t.Errorf("JMP offset = %d, want 0 (label immediately follows)", got)
	}
}

func TestAssembleBackwardBranchOffsetMinusOne(t *testing.T) {
	// A self-referencing backward branch:
	// "IF_C JMP #.loop" is a one-word loop body, so the backward branch
	// back to its own address is a 20-bit offset of -1 (one long) from
	// the word following the JMP, with R=1 and condition field 1100 (IF_C).
	a := New()
	src := "\tORG 0\n.loop\tIF_C JMP #.loop\n"
	img, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if !w.R {
		t.Errorf("JMP word R flag = false, want true (relative branch)")
	}
	if got := opcode.SignExtend20(w.Rel); got != -1 {
		t.Errorf("JMP offset = %d, want -1", got)
	}
	if w.Cond != opcode.CondC {
		t.Errorf("Cond = %#x, want CondC (IF_C), 1100", w.Cond)
	}
}

func TestAssembleLocalSymbolResolvesInPass2(t *testing.T) {
	// Regression: pass 2 must replay the same EnterScope sequence pass 1
	// did, or this local-symbol lookup fails only on the emitting pass.
	a := New()
	src := "start\tADD 0,#0\n.loop\tADD 0,#1\n\tJMP .loop\n"
	if _, err := a.Assemble(src); err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
}

func TestAssembleUndefinedMnemonicErrors(t *testing.T) {
	a := New()
	if _, err := a.Assemble("\tFROBNICATE 1,2\n"); err == nil {
		t.Error("undefined mnemonic should produce an error")
	}
}

func TestAssembleByteWordLongData(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tBYTE 1,2,3\n\tWORD $1234\n\tLONG $DEADBEEF\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	want := []byte{1, 2, 3, 0x34, 0x12, 0xEF, 0xBE, 0xAD, 0xDE}
	if len(img) != len(want) {
		t.Fatalf("image length = %d, want %d (%v)", len(img), len(want), img)
	}
	for i := range want {
		if img[i] != want[i] {
			t.Errorf("image[%d] = %#x, want %#x", i, img[i], want[i])
		}
	}
}

func TestAssembleConAssignmentUsedAsImmediate(t *testing.T) {
	a := New()
	src := "FOO = 42\n\tORG 0\n\tMOV 0,#FOO\n"
	img, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Src != 42 || !w.Im {
		t.Errorf("decoded src = %d im=%v, want 42/#true", w.Src, w.Im)
	}
}

func TestAssembleAugsInsertedForLargeImmediate(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tMOV 0,##$12345\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if len(img) != 8 {
		t.Fatalf("image length = %d, want 8 (AUGS + MOV)", len(img))
	}
	aug := decodeWord(img, 0)
	if aug.Inst != opcode.InstAugs {
		t.Fatalf("first word inst = %d, want InstAugs", aug.Inst)
	}
	mov := decodeWord(img, 1)
	full := aug.Imm23<<9 | mov.Src
	if full != 0x12345 {
		t.Errorf("AUGS-extended immediate = %#x, want 0x12345", full)
	}
}

func TestAssembleOrgResetsCogPC(t *testing.T) {
	a := New()
	src := "\tORG $10\nhere\tADD 0,#0\n"
	if _, err := a.Assemble(src); err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	sym, ok := a.Syms.Lookup("here", false, 0)
	if !ok {
		t.Fatal("here should be defined")
	}
	if sym.Value.Uint64() != 0x10 {
		t.Errorf("here cog addr = %d, want %d", sym.Value.Uint64(), 0x10)
	}
}

// TestAssembleCogLabelAsRegisterOperand: a COG-space data label used as
// a plain D operand must resolve to its long index, not a byte-scaled
// address. For ORG 0 / ADD x,#1 WC / x LONG 1, x sits one long in, so
// the ADD's D field is 1 and the symbol carries cog=1, hub=4.
func TestAssembleCogLabelAsRegisterOperand(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tADD x,#1 WC\nx\tLONG $0000_0001\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstAdd || !w.WC {
		t.Fatalf("decoded word = %+v, want ADD with WC", w)
	}
	if w.Dst != 1 {
		t.Errorf("Dst = %d, want 1 (x's cog long index)", w.Dst)
	}
	if w.Src != 1 || !w.Im {
		t.Errorf("Src=%d Im=%v, want #1", w.Src, w.Im)
	}
	sym, ok := a.Syms.Lookup("x", false, 0)
	if !ok {
		t.Fatal("x should be defined")
	}
	if sym.Value.CogAddr() != 1 || sym.Value.HubAddr() != 4 {
		t.Errorf("x = cog %d hub %d, want cog 1 hub 4",
			sym.Value.CogAddr(), sym.Value.HubAddr())
	}
}

func TestAssembleTrailingWCSuffix(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tADD 1,#1 WC\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if !w.WC || w.WZ {
		t.Errorf("WC=%v WZ=%v, want WC only", w.WC, w.WZ)
	}
}

func TestAssembleTestbFlavorSuffix(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tTESTB 1,#2 ANDC\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.EncodeTestBit(false, opcode.FlagAnd) {
		t.Errorf("inst = %d, want AND-flavor TESTB code", w.Inst)
	}
	if !w.WC || w.WZ {
		t.Errorf("WC=%v WZ=%v, want C target only", w.WC, w.WZ)
	}
}

func TestAssembleTestbWithoutSuffixErrors(t *testing.T) {
	a := New()
	if _, err := a.Assemble("\tORG 0\n\tTESTB 1,#2\n"); err == nil {
		t.Error("TESTB without a flag suffix should fail")
	}
}

func TestAssembleTestpSelector(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tTESTP #3 XORC\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstMisc {
		t.Fatalf("inst = %d, want InstMisc", w.Inst)
	}
	if w.Src != opcode.TestPinSel(false, opcode.FlagXor) {
		t.Errorf("selector = %#x, want XOR-flavor TESTP", w.Src)
	}
	if w.Dst != 3 || !w.Im {
		t.Errorf("Dst=%d Im=%v, want #3", w.Dst, w.Im)
	}
}

func TestAssembleSuffixOnPlainMnemonicErrors(t *testing.T) {
	a := New()
	if _, err := a.Assemble("\tORG 0\n\tWRLONG 1,#2 WC\n"); err == nil {
		t.Error("WC on a mnemonic without flag writes should fail")
	}
}

func TestAssembleDuplicateSuffixErrors(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tORG 0\n\tADD 1,#2 WC WC\n")
	if err == nil {
		t.Fatal("duplicate suffix should fail")
	}
	if kindOf(t, err) != SyntaxError {
		t.Errorf("kind = %v, want SyntaxError", kindOf(t, err))
	}
}

func TestAssemblePointerPostIncrement(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tRDLONG 4,PTRA++\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Src != 0x141 || !w.Im {
		t.Errorf("Src=%#x Im=%v, want pointer encoding 0x141", w.Src, w.Im)
	}
}

func TestAssemblePointerIndexed(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tRDWORD 4,PTRB[3]\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Src != 0x183 || !w.Im {
		t.Errorf("Src=%#x Im=%v, want indexed pointer 0x183", w.Src, w.Im)
	}
}

func TestAssemblePointerPreDecrement(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tWRBYTE 4,--PTRA\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if w := decodeWord(img, 0); w.Src != 0x17F {
		t.Errorf("Src = %#x, want 0x17F", w.Src)
	}
}

func TestAssembleDrvhPinOp(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tDRVH #5\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstMisc || w.Src != opcode.SelDrvh || w.Dst != 5 || !w.Im {
		t.Errorf("decoded = %+v, want DRVH #5", w)
	}
}

func TestAssembleEventMnemonic(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tWAITATN\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstMisc || w.Src != opcode.EvWaitatn {
		t.Errorf("decoded = %+v, want WAITATN selector", w)
	}
}

func TestAssembleModczParams(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tMODCZ _SET,_CLR\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Dst != 0xF0 {
		t.Errorf("Dst = %#x, want 0xF0 (_SET high nibble, _CLR low)", w.Dst)
	}
	if !w.WC || !w.WZ {
		t.Error("MODCZ should write both flags")
	}
}

func TestAssembleSetwordIndex(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tSETWORD 4,#$AB,#1\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Src != 0xAB || !w.Im {
		t.Errorf("Src=%#x Im=%v, want #$AB", w.Src, w.Im)
	}
	if w.WC || !w.WZ {
		t.Errorf("index bits WC=%v WZ=%v, want index 1", w.WC, w.WZ)
	}
}

func TestAssembleRepTwoOperands(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tREP #2,#3\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Dst != 2 || w.Src != 3 || !w.Im {
		t.Errorf("decoded = %+v, want REP #2,#3", w)
	}
}

func TestAssembleDjnzEncodesRelative(t *testing.T) {
	a := New()
	src := "\tORG 0\nloop\tADD 0,#0\n\tDJNZ 4,#loop\n"
	img, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 1)
	if got := opcode.SignExtend9(w.Src); got != -2 {
		t.Errorf("DJNZ offset = %d, want -2 (next=2, target word 0)", got)
	}
	if !w.Im {
		t.Error("DJNZ target should set the immediate bit")
	}
}

func TestAssembleFitFailureKind(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tORG 0\n\tRES 600\n\tFIT $10\n")
	if err == nil {
		t.Fatal("FIT past the limit should fail")
	}
	if kindOf(t, err) != AddressOutOfRange {
		t.Errorf("kind = %v, want AddressOutOfRange", kindOf(t, err))
	}
}

func TestAssembleFileSplicesBlob(t *testing.T) {
	a := New()
	a.Blobs["boot"] = []byte{1, 2, 3, 4}
	img, err := a.Assemble("\tFILE \"boot\"\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if len(img) != 4 || img[0] != 1 || img[3] != 4 {
		t.Errorf("image = %v, want the blob contents", img)
	}
}

func TestAssembleFileMissingBlobIsIoError(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tFILE \"nope\"\n")
	if err == nil {
		t.Fatal("missing blob should fail")
	}
	if kindOf(t, err) != IoError {
		t.Errorf("kind = %v, want IoError", kindOf(t, err))
	}
}

func TestAssembleConditionOnPseudoOpErrors(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tIF_C ORG 0\n")
	if err == nil {
		t.Fatal("condition on a pseudo-op should fail")
	}
	if kindOf(t, err) != SyntaxError {
		t.Errorf("kind = %v, want SyntaxError", kindOf(t, err))
	}
}

func TestAssembleUnknownSymbolKind(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tORG 0\n\tMOV 0,#nosuch\n")
	if err == nil {
		t.Fatal("undefined symbol should fail in pass 2")
	}
	if kindOf(t, err) != UnknownSymbol {
		t.Errorf("kind = %v, want UnknownSymbol", kindOf(t, err))
	}
}

func TestAssembleDivideByZeroInAssignment(t *testing.T) {
	a := New()
	_, err := a.Assemble("BROKEN = 5/0\n")
	if err == nil {
		t.Fatal("explicit division by zero in an assignment should fail")
	}
	if kindOf(t, err) != DivideByZero {
		t.Errorf("kind = %v, want DivideByZero", kindOf(t, err))
	}
}

func TestAssembleContinuesPastFailedLine(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tMOV 0,#1\n\tFROBNICATE 9\n\tMOV 0,#2\n")
	if err == nil {
		t.Fatal("unknown mnemonic should fail the assembly")
	}
	if len(img) != 8 {
		t.Errorf("partial image length = %d, want 8 (both MOVs emitted)", len(img))
	}
	if len(a.Errors) != 1 {
		t.Errorf("error count = %d, want 1", len(a.Errors))
	}
}

func TestAssembleSkipWithAugmentedMask(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tSKIP ##$FFFF_FFFF\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	if len(img) != 8 {
		t.Fatalf("image length = %d, want 8 (AUGD + SKIP)", len(img))
	}
	aug := decodeWord(img, 0)
	if aug.Inst != opcode.InstAugd {
		t.Fatalf("first word inst = %d, want InstAugd", aug.Inst)
	}
	w := decodeWord(img, 1)
	if full := aug.Imm23<<9 | w.Dst; full != 0xFFFFFFFF {
		t.Errorf("AUGD-extended mask = %#x, want 0xFFFFFFFF", full)
	}
}

func TestAssembleLocktryImmediateTooLarge(t *testing.T) {
	a := New()
	_, err := a.Assemble("\tORG 0\n\tLOCKTRY #$300 WC\n")
	if err == nil {
		t.Fatal("LOCKTRY with an immediate past 9 bits should fail")
	}
	if kindOf(t, err) != ImmediateOutOfRange {
		t.Errorf("kind = %v, want ImmediateOutOfRange", kindOf(t, err))
	}
}

// TestAssembleDisassembleRoundTrip: the text the disassembler prints
// for every instruction word re-assembles to the identical word, at
// the same addresses.
func TestAssembleDisassembleRoundTrip(t *testing.T) {
	src := "\tORG 0\n" +
		"\tMOV 1,#5\n" +
		"\tADD 1,##$12345\n" +
		"loop\tSUB 2,1 WC\n" +
		"\tIF_C JMP #loop\n" +
		"\tRDLONG 3,PTRA++\n" +
		"\tDJNZ 1,#loop\n" +
		"\tWAITATN\n" +
		"\tDRVH #5\n" +
		"\tMODCZ _SET,_CLR\n" +
		"\tTESTB 1,#2 ANDC\n" +
		"\tREP #2,#3\n" +
		"\tSETWORD 4,#$AB,#1\n" +
		"\tNOP\n"
	a := New()
	img, err := a.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}

	var words []uint32
	for off := 0; off+3 < len(img); off += 4 {
		words = append(words, uint32(img[off])|uint32(img[off+1])<<8|
			uint32(img[off+2])<<16|uint32(img[off+3])<<24)
	}
	regen := "\tORG 0\n"
	for i := 0; i < len(words); i++ {
		w := opcode.Decode(words[i])
		if (w.Inst == opcode.InstAugs || w.Inst == opcode.InstAugd) && i+1 < len(words) {
			text := disassemble.Decode(words[i+1], uint32(i+1), words[i], true).Text()
			regen += "\t" + text + "\n"
			i++
			continue
		}
		regen += "\t" + disassemble.Decode(words[i], uint32(i), 0, false).Text() + "\n"
	}

	b := New()
	img2, err := b.Assemble(regen)
	if err != nil {
		t.Fatalf("re-assemble error: %v\nsource:\n%s", err, regen)
	}
	if len(img2) != len(img) {
		t.Fatalf("round trip image length %d, want %d\nsource:\n%s", len(img2), len(img), regen)
	}
	for i := range img {
		if img[i] != img2[i] {
			t.Fatalf("round trip image differs at byte %d: %#x != %#x\nsource:\n%s",
				i, img2[i], img[i], regen)
		}
	}
}

func TestAssembleAddct1FlagBits(t *testing.T) {
	a := New()
	img, err := a.Assemble("\tORG 0\n\tADDCT2 1,#5\n")
	if err != nil {
		t.Fatalf("Assemble error: %v", err)
	}
	w := decodeWord(img, 0)
	if w.Inst != opcode.InstAddct {
		t.Fatalf("inst = %d, want InstAddct", w.Inst)
	}
	if w.WC || !w.WZ {
		t.Errorf("member bits WC=%v WZ=%v, want ADDCT2 (index 1)", w.WC, w.WZ)
	}
}
