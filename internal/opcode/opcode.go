/*
	   P2 Opcode Encoder/Decoder

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

// Package opcode is the canonical 32-bit P2 instruction encoding shared
// by the assembler, the disassembler and the cog dispatcher: EEEE
// OOOOOOO CZI DDDDDDDDD SSSSSSSSS.
//
// The 7-bit instruction field values below follow the Propeller2
// instruction enumeration (cond/inst layout and the directly-named
// slots: ROR..SAL, ADD..SUBSX, CMP family, the bit/test-bit family,
// AND..MUXNZ, MOV..NEGNZ, INCMOD..TESTN, SETNIB..ROLBYTE, RDLUT/
// RDBYTE/RDWORD/RDLONG, CALLD, CALLP, COGINIT, the absolute-branch
// group and the AUGS/AUGD group). Three slots carry a secondary
// selector instead of a plain operand:
//
//   - Codes 32..39 are shared by the bit-mutate family (BITL..BITNOT)
//     and the TESTB/TESTBN flavors: when exactly one of WC/WZ is set,
//     the code selects a TESTB/TESTBN flag-combine flavor; when both
//     or neither is set, it selects a bit-mutate operation. This is
//     how real hardware folds the two families into one code range.
//   - InstMisc carries its operation in the Src field: SelXxx
//     selectors take a single {#}D operand in Dst, EvXxx selectors
//     take no operand at all.
//   - InstAddct and InstFifo carry their member in the flag bits,
//     which none of their members use for flag writes.
//
// Unlabeled slots are assigned here to instructions real silicon
// reaches via a D-field sub-select this module does not model
// bit-for-bit; see DESIGN.md.
package opcode

import "github.com/rcornwell/p2dev/internal/token"

// Condition codes, EEEE field.
const (
	CondRet = 0x0
	CondNcAndNz = 0x1
	CondNcAndZ = 0x2
	CondNc = 0x3
	CondCAndNz = 0x4
	CondNz = 0x5
	CondCNeZ = 0x6
	CondNcOrNz = 0x7
	CondCAndZ = 0x8
	CondCEqZ = 0x9
	CondZ = 0xA
	CondNcOrZ = 0xB
	CondC = 0xC
	CondCOrNz = 0xD
	CondCOrZ = 0xE
	CondAlways = 0xF
)

// CondName maps a condition code to its canonical mnemonic.
var CondName = map[uint8]string{
	CondRet: "_RET_", CondNcAndNz: "IF_NC_AND_NZ", CondNcAndZ: "IF_NC_AND_Z",
	CondNc: "IF_NC", CondCAndNz: "IF_NZ_AND_C", CondNz: "IF_NZ",
	CondCNeZ: "IF_Z_NE_C", CondNcOrNz: "IF_NZ_OR_NC", CondCAndZ: "IF_Z_AND_C",
	CondCEqZ: "IF_Z_EQ_C", CondZ: "IF_Z", CondNcOrZ: "IF_Z_OR_NC",
	CondC: "IF_C", CondCOrNz: "IF_Z_OR_C", CondCOrZ: "IF_C_OR_Z",
	CondAlways: "",
}

// CondCode maps every accepted spelling (including synonyms) to its code.
var CondCode = map[string]uint8{
	"_RET_": CondRet,
	"IF_NC_AND_NZ": CondNcAndNz, "IF_NZ_AND_NC": CondNcAndNz,
	"IF_NC_AND_Z": CondNcAndZ, "IF_Z_AND_NC": CondNcAndZ,
	"IF_NC": CondNc,
	"IF_NZ_AND_C": CondCAndNz, "IF_C_AND_NZ": CondCAndNz,
	"IF_NZ":       CondNz,
	"IF_Z_NE_C":   CondCNeZ,
	"IF_NZ_OR_NC": CondNcOrNz, "IF_NC_OR_NZ": CondNcOrNz,
	"IF_Z_AND_C": CondCAndZ, "IF_C_AND_Z": CondCAndZ,
	"IF_Z_EQ_C": CondCEqZ, "IF_C_EQ_Z": CondCEqZ,
	"IF_Z":       CondZ,
	"IF_Z_OR_NC": CondNcOrZ, "IF_NC_OR_Z": CondNcOrZ,
	"IF_C":       CondC,
	"IF_Z_OR_C":  CondCOrNz, "IF_C_OR_NZ": CondCOrNz,
	"IF_C_OR_Z": CondCOrZ,
	"IF_ALWAYS": CondAlways,
}

// ModczParam maps a MODCZ flag-operand name (_CLR.._SET) to its 4-bit
// predicate code. The code is a (C,Z) truth table indexed by C*2+Z,
// the same encoding the EEEE conditionals use.
var ModczParam = map[string]uint32{
	"_CLR": 0x0, "_NC_AND_NZ": 0x1, "_NC_AND_Z": 0x2, "_NC": 0x3,
	"_C_AND_NZ": 0x4, "_NZ": 0x5, "_C_NE_Z": 0x6, "_NC_OR_NZ": 0x7,
	"_C_AND_Z": 0x8, "_C_EQ_Z": 0x9, "_Z": 0xA, "_NC_OR_Z": 0xB,
	"_C": 0xC, "_C_OR_NZ": 0xD, "_C_OR_Z": 0xE, "_SET": 0xF,
}

// ModczName is the reverse of ModczParam, for disassembly.
var ModczName = map[uint32]string{}

func init() {
	for name, code := range ModczParam {
		ModczName[code] = name
	}
}

// Instruction field (7 bits), matching the real Propeller2 enumeration.
const (
	InstRor = 0
	InstRol = 1
	InstShr = 2
	InstShl = 3
	InstRcr = 4
	InstRcl = 5
	InstSar = 6
	InstSal = 7

	InstAdd    = 8
	InstAddx   = 9
	InstAdds   = 10
	InstAddsx  = 11
	InstSub    = 12
	InstSubx   = 13
	InstSubs   = 14
	InstSubsx  = 15

	InstCmp    = 16
	InstCmpx   = 17
	InstCmps   = 18
	InstCmpsx  = 19
	InstCmpr   = 20
	InstCmpm   = 21
	InstSubr   = 22
	InstCmpsub = 23

	InstMul  = 24
	InstMuls = 25
	InstSca  = 26
	InstScas = 27

	InstSumc  = 28
	InstSumnc = 29
	InstSumz  = 30
	InstSumnz = 31

	// 32..39: shared bit/test-bit family. With exactly one of WC/WZ
	// set, the code is a TESTB/TESTBN flavor (even=TESTB, odd=TESTBN;
	// the pair index is the flag-combine op W/AND/OR/XOR). Otherwise
	// the code is one of the bit-mutate operations below.
	InstBitTest = 32 // family base
	InstTestb   = 32 // TESTB W flavor / BITL
	InstTestbn  = 33 // TESTBN W flavor / BITH

	InstAnd   = 40
	InstAndn  = 41
	InstOr    = 42
	InstXor   = 43
	InstMuxc  = 44
	InstMuxnc = 45
	InstMuxz  = 46
	InstMuxnz = 47

	InstMov   = 48
	InstNot   = 49
	InstAbs   = 50
	InstNeg   = 51
	InstNegc  = 52
	InstNegnc = 53
	InstNegz  = 54
	InstNegnz = 55

	InstIncmod = 56
	InstDecmod = 57
	InstZerox  = 58
	InstSignx  = 59
	InstEncod  = 60
	InstOnes   = 61
	InstTest   = 62
	InstTestn  = 63

	InstSetnib  = 64
	InstGetnib  = 65
	InstSetword = 66
	InstGetword = 67
	InstAlts    = 68
	InstAltd    = 69

	InstSetbyte = 70
	InstGetbyte = 71
	InstRolbyte = 72

	InstWrbyte = 73
	InstWrword = 74
	InstWrlong = 75
	InstWrlut  = 76
	InstGetqx  = 77
	InstGetqy  = 78
	InstRep    = 79

	InstDjnz    = 80
	InstTjz     = 81
	InstTjnz    = 82
	InstWaitx   = 83
	InstLocknew = 84

	InstRdlut  = 85
	InstRdbyte = 86
	InstRdword = 87

	InstRdlong = 88
	InstCalld  = 89
	InstCallp  = 90

	InstLockret = 91
	InstLocktry = 92
	InstLockrel = 93

	InstNop      = 94 // reserved slot, treated as a no-op.
	InstReserved = 95 // reserved slot, treated as a no-op.

	InstCogstop  = 96
	InstSetq     = 97
	InstQmul     = 98
	InstQdiv     = 99
	InstQfrac    = 100
	InstQsqrt    = 101
	InstQrotate  = 102

	InstCoginit = 103

	InstQvector = 104
	InstQlog    = 105
	InstQexp    = 106

	InstAltsw = 107

	InstJmp   = 108
	InstCall  = 109
	InstCalla = 110
	InstCallb = 111

	InstAltgw = 112

	InstRgbsqz = 113
	InstRgbexp = 114
	InstSeussf = 115
	InstSeussr = 116

	// Codes 120..123 and 124..127 belong entirely to AUGS/AUGD: their
	// 23-bit payload eats the low two bits of the instruction field, so
	// only the top five bits select them. The three families below pack
	// into the last codes before that region: InstAddct and InstFifo
	// sub-select on the flag bits (which none of their members use for
	// flags), InstMisc sub-selects on the Src field.
	InstAddct = 117 // ADDCT1..ADDCT3; member in the flag bits
	InstFifo  = 118 // RDFAST/WRFAST/SETPAT; member in the flag bits
	InstMisc  = 119 // operation selected by Src (SelXxx / EvXxx)

	InstAugs = 120
	InstAugd = 124
)

// InstMisc sub-select values, carried in the Src field. Selectors
// below 0x60 take one {#}D operand: 0..7 are the TESTP/TESTPN
// flag-combine flavors (even=TESTP, odd=TESTPN; pair index =
// W/AND/OR/XOR), 0x40.. the pin drive operations. Selectors from
// 0x60 (EvXxx) take no operand.
const (
	SelTestp  = 0x00 // ..0x07
	SelGetct  = 0x10
	SelGetrnd = 0x11
	SelCogid  = 0x12
	SelCogatn = 0x13
	SelXoro32 = 0x14
	SelSkip   = 0x15
	SelSkipf  = 0x16
	SelPush   = 0x17
	SelPop    = 0x18
	SelSetluts = 0x19
	SelSetscp  = 0x1A
	SelGetscp  = 0x1B
	SelSetint1 = 0x1C
	SelSetint2 = 0x1D
	SelSetint3 = 0x1E
	SelModcz   = 0x1F
	SelWrc     = 0x20
	SelWrnc    = 0x21
	SelWrz     = 0x22
	SelWrnz    = 0x23
	SelSetse1  = 0x24
	SelSetse2  = 0x25
	SelSetse3  = 0x26
	SelSetse4  = 0x27
	SelRfbyte  = 0x28
	SelRfword  = 0x29
	SelRflong  = 0x2A
	SelWfbyte  = 0x2B
	SelWfword  = 0x2C
	SelWflong  = 0x2D

	SelDirl   = 0x40
	SelDirh   = 0x41
	SelOutl   = 0x42
	SelOuth   = 0x43
	SelFltl   = 0x44
	SelFlth   = 0x45
	SelDrvl   = 0x46
	SelDrvh   = 0x47
	SelDrvnot = 0x48
)

// No-operand InstMisc selectors, from 0x60 up.
const (
	EvPollct1 = 0x60
	EvPollct2 = 0x61
	EvPollct3 = 0x62
	EvPollse1 = 0x64
	EvPollse2 = 0x65
	EvPollse3 = 0x66
	EvPollse4 = 0x67
	EvPollpat = 0x68
	EvPollatn = 0x69
	EvPollqmt = 0x6A

	EvWaitct1 = 0x70
	EvWaitct2 = 0x71
	EvWaitct3 = 0x72
	EvWaitse1 = 0x74
	EvWaitse2 = 0x75
	EvWaitse3 = 0x76
	EvWaitse4 = 0x77
	EvWaitpat = 0x78
	EvWaitatn = 0x79

	EvAllowi = 0x80
	EvStalli = 0x81
	EvReta   = 0x82
	EvRetb   = 0x83
	EvReti1  = 0x84
	EvReti2  = 0x85
	EvReti3  = 0x86
)

// Template describes the operand grammar a mnemonic accepts.
type Template int

const (
	TplNone  Template = iota // no operand
	TplD                     // D
	TplImmD                  // {#}D
	TplDS                    // D,{#}S
	TplDRel                  // D,#Rel  (DJNZ/TJZ/TJNZ, 9-bit relative)
	TplRel                   // #Rel    (JMP/CALL/CALLA/CALLB)
	TplDSN                   // D,{#}S,#N (REP, SETNIB/GETNIB, SETWORD/GETWORD)
	TplImm                   // #Imm    (AUGS/AUGD)
	TplModcz                 // c-param,z-param (MODCZ family)
)

// FlagOp is how a flag-write suffix combines the tested bit with the
// current flag: plain write (WC/WZ/WCZ), or AND/OR/XOR combine
// (ANDC/ANDZ, ORC/ORZ, XORC/XORZ), legal only on the test-bit and
// test-pin families.
type FlagOp int

const (
	FlagW FlagOp = iota
	FlagAnd
	FlagOr
	FlagXor
)

// Suffix is one parsed flag-write suffix.
type Suffix struct {
	Op   FlagOp
	C, Z bool
}

// ParseSuffix maps a suffix spelling to its meaning.
func ParseSuffix(text string) (Suffix, bool) {
	switch upper(text) {
	case "WC":
		return Suffix{Op: FlagW, C: true}, true
	case "WZ":
		return Suffix{Op: FlagW, Z: true}, true
	case "WCZ":
		return Suffix{Op: FlagW, C: true, Z: true}, true
	case "ANDC":
		return Suffix{Op: FlagAnd, C: true}, true
	case "ANDZ":
		return Suffix{Op: FlagAnd, Z: true}, true
	case "ORC":
		return Suffix{Op: FlagOr, C: true}, true
	case "ORZ":
		return Suffix{Op: FlagOr, Z: true}, true
	case "XORC":
		return Suffix{Op: FlagXor, C: true}, true
	case "XORZ":
		return Suffix{Op: FlagXor, Z: true}, true
	}
	return Suffix{}, false
}

// Def is one mnemonic's encoding definition. Sub-select mnemonics
// (Inst == InstMisc) carry their Src-field selector in the separate
// SubSel table; the InstAddct/InstFifo members carry theirs in
// FlagSel.
type Def struct {
	Inst     uint32
	Tpl      Template
	AllowWCZ bool
}

// Mnemonics maps upper-case mnemonic text to its encoding definition.
var Mnemonics = map[string]Def{
	"ROR": {InstRor, TplDS, true}, "ROL": {InstRol, TplDS, true},
	"SHR": {InstShr, TplDS, true}, "SHL": {InstShl, TplDS, true},
	"RCR": {InstRcr, TplDS, true}, "RCL": {InstRcl, TplDS, true},
	"SAR": {InstSar, TplDS, true}, "SAL": {InstSal, TplDS, true},

	"ADD": {InstAdd, TplDS, true}, "ADDX": {InstAddx, TplDS, true},
	"ADDS": {InstAdds, TplDS, true}, "ADDSX": {InstAddsx, TplDS, true},
	"SUB": {InstSub, TplDS, true}, "SUBX": {InstSubx, TplDS, true},
	"SUBS": {InstSubs, TplDS, true}, "SUBSX": {InstSubsx, TplDS, true},

	"CMP": {InstCmp, TplDS, true}, "CMPX": {InstCmpx, TplDS, true},
	"CMPS": {InstCmps, TplDS, true}, "CMPSX": {InstCmpsx, TplDS, true},
	"CMPR": {InstCmpr, TplDS, true}, "CMPM": {InstCmpm, TplDS, true},
	"SUBR": {InstSubr, TplDS, true}, "CMPSUB": {InstCmpsub, TplDS, true},

	"MUL": {InstMul, TplDS, true}, "MULS": {InstMuls, TplDS, true},
	"SCA": {InstSca, TplDS, true}, "SCAS": {InstScas, TplDS, true},

	"SUMC": {InstSumc, TplDS, true}, "SUMNC": {InstSumnc, TplDS, true},
	"SUMZ": {InstSumz, TplDS, true}, "SUMNZ": {InstSumnz, TplDS, true},

	// TESTB/TESTBN list their W-flavor codes; the assembler adjusts the
	// code per the parsed flag-combine suffix (EncodeTestBit).
	"TESTB": {InstTestb, TplDS, true}, "TESTBN": {InstTestbn, TplDS, true},

	"BITL": {InstBitTest + 0, TplDS, true}, "BITH": {InstBitTest + 1, TplDS, true},
	"BITC": {InstBitTest + 2, TplDS, true}, "BITNC": {InstBitTest + 3, TplDS, true},
	"BITZ": {InstBitTest + 4, TplDS, true}, "BITNZ": {InstBitTest + 5, TplDS, true},
	"BITRND": {InstBitTest + 6, TplDS, true}, "BITNOT": {InstBitTest + 7, TplDS, true},

	"AND": {InstAnd, TplDS, true}, "ANDN": {InstAndn, TplDS, true},
	"OR": {InstOr, TplDS, true}, "XOR": {InstXor, TplDS, true},
	"MUXC": {InstMuxc, TplDS, true}, "MUXNC": {InstMuxnc, TplDS, true},
	"MUXZ": {InstMuxz, TplDS, true}, "MUXNZ": {InstMuxnz, TplDS, true},

	"MOV": {InstMov, TplDS, true}, "NOT": {InstNot, TplDS, true},
	"ABS": {InstAbs, TplDS, true}, "NEG": {InstNeg, TplDS, true},
	"NEGC": {InstNegc, TplDS, true}, "NEGNC": {InstNegnc, TplDS, true},
	"NEGZ": {InstNegz, TplDS, true}, "NEGNZ": {InstNegnz, TplDS, true},

	"INCMOD": {InstIncmod, TplDS, true}, "DECMOD": {InstDecmod, TplDS, true},
	"ZEROX": {InstZerox, TplDS, true}, "SIGNX": {InstSignx, TplDS, true},
	"ENCOD": {InstEncod, TplDS, true}, "ONES": {InstOnes, TplDS, true},
	"TEST": {InstTest, TplDS, true}, "TESTN": {InstTestn, TplDS, true},

	"SETNIB": {InstSetnib, TplDSN, false}, "GETNIB": {InstGetnib, TplDSN, false},
	"SETWORD": {InstSetword, TplDSN, false}, "GETWORD": {InstGetword, TplDSN, false},
	"ALTS": {InstAlts, TplDS, false}, "ALTD": {InstAltd, TplDS, false},
	"ALTSW": {InstAltsw, TplDS, false}, "ALTGW": {InstAltgw, TplDS, false},

	"SETBYTE": {InstSetbyte, TplDSN, false}, "GETBYTE": {InstGetbyte, TplDSN, false},
	"ROLBYTE": {InstRolbyte, TplDS, true},

	"WRBYTE": {InstWrbyte, TplDS, false}, "WRWORD": {InstWrword, TplDS, false},
	"WRLONG": {InstWrlong, TplDS, false}, "WRLUT": {InstWrlut, TplDS, false},
	"GETQX": {InstGetqx, TplImmD, true}, "GETQY": {InstGetqy, TplImmD, true},
	"REP": {InstRep, TplDSN, false},

	"DJNZ": {InstDjnz, TplDRel, false}, "TJZ": {InstTjz, TplDRel, false},
	"TJNZ": {InstTjnz, TplDRel, false},
	"WAITX": {InstWaitx, TplImmD, true},
	"LOCKNEW": {InstLocknew, TplD, true},

	"RDLUT": {InstRdlut, TplDS, true}, "RDBYTE": {InstRdbyte, TplDS, true},
	"RDWORD": {InstRdword, TplDS, true}, "RDLONG": {InstRdlong, TplDS, true},

	"CALLD": {InstCalld, TplDS, false}, "CALLP": {InstCallp, TplDS, false},

	"LOCKRET": {InstLockret, TplImmD, false}, "LOCKTRY": {InstLocktry, TplImmD, true},
	"LOCKREL": {InstLockrel, TplImmD, true},

	"NOP": {InstNop, TplNone, false},

	"COGSTOP": {InstCogstop, TplImmD, false}, "SETQ": {InstSetq, TplImmD, false},
	"QMUL": {InstQmul, TplDS, false}, "QDIV": {InstQdiv, TplDS, false},
	"QFRAC": {InstQfrac, TplDS, false}, "QSQRT": {InstQsqrt, TplDS, false},
	"QROTATE": {InstQrotate, TplDS, false}, "QVECTOR": {InstQvector, TplDS, false},
	"QLOG": {InstQlog, TplDS, false}, "QEXP": {InstQexp, TplDS, false},

	"COGINIT": {InstCoginit, TplDS, false},

	"JMP": {InstJmp, TplRel, false}, "CALL": {InstCall, TplRel, false},
	"CALLA": {InstCalla, TplRel, false}, "CALLB": {InstCallb, TplRel, false},
	"RET": {InstCalld, TplNone, false},

	"RGBSQZ": {InstRgbsqz, TplDS, true}, "RGBEXP": {InstRgbexp, TplDS, true},
	"SEUSSF": {InstSeussf, TplDS, true}, "SEUSSR": {InstSeussr, TplDS, true},

	"ADDCT1": {InstAddct, TplDS, false}, "ADDCT2": {InstAddct, TplDS, false},
	"ADDCT3": {InstAddct, TplDS, false},

	"RDFAST": {InstFifo, TplDS, false}, "WRFAST": {InstFifo, TplDS, false},
	"SETPAT": {InstFifo, TplDS, false},

	"AUGS": {InstAugs, TplImm, false}, "AUGD": {InstAugd, TplImm, false},

	// InstMisc family, {#}D-operand half: operation in Src.
	"TESTP": {InstMisc, TplImmD, true}, "TESTPN": {InstMisc, TplImmD, true},
	"GETCT": {InstMisc, TplD, false}, "GETRND": {InstMisc, TplD, true},
	"COGID": {InstMisc, TplImmD, true}, "COGATN": {InstMisc, TplImmD, false},
	"XORO32": {InstMisc, TplD, false},
	"SKIP": {InstMisc, TplImmD, false}, "SKIPF": {InstMisc, TplImmD, false},
	"PUSH": {InstMisc, TplImmD, false}, "POP": {InstMisc, TplD, true},
	"SETLUTS": {InstMisc, TplImmD, false},
	"SETSCP": {InstMisc, TplImmD, false}, "GETSCP": {InstMisc, TplD, false},
	"SETINT1": {InstMisc, TplImmD, false}, "SETINT2": {InstMisc, TplImmD, false},
	"SETINT3": {InstMisc, TplImmD, false},
	"MODCZ": {InstMisc, TplModcz, true}, "MODC": {InstMisc, TplModcz, true},
	"MODZ": {InstMisc, TplModcz, true},
	"WRC": {InstMisc, TplD, false}, "WRNC": {InstMisc, TplD, false},
	"WRZ": {InstMisc, TplD, false}, "WRNZ": {InstMisc, TplD, false},
	"SETSE1": {InstMisc, TplImmD, false}, "SETSE2": {InstMisc, TplImmD, false},
	"SETSE3": {InstMisc, TplImmD, false}, "SETSE4": {InstMisc, TplImmD, false},
	"RFBYTE": {InstMisc, TplD, true}, "RFWORD": {InstMisc, TplD, true},
	"RFLONG": {InstMisc, TplD, true},
	"WFBYTE": {InstMisc, TplImmD, false}, "WFWORD": {InstMisc, TplImmD, false},
	"WFLONG": {InstMisc, TplImmD, false},
	"DIRL": {InstMisc, TplImmD, false}, "DIRH": {InstMisc, TplImmD, false},
	"OUTL": {InstMisc, TplImmD, false}, "OUTH": {InstMisc, TplImmD, false},
	"FLTL": {InstMisc, TplImmD, false}, "FLTH": {InstMisc, TplImmD, false},
	"DRVL": {InstMisc, TplImmD, false}, "DRVH": {InstMisc, TplImmD, false},
	"DRVNOT": {InstMisc, TplImmD, false},

	// InstMisc family, no-operand half: operation in Src.
	"POLLCT1": {InstMisc, TplNone, true}, "POLLCT2": {InstMisc, TplNone, true},
	"POLLCT3": {InstMisc, TplNone, true},
	"POLLSE1": {InstMisc, TplNone, true}, "POLLSE2": {InstMisc, TplNone, true},
	"POLLSE3": {InstMisc, TplNone, true}, "POLLSE4": {InstMisc, TplNone, true},
	"POLLPAT": {InstMisc, TplNone, true}, "POLLATN": {InstMisc, TplNone, true},
	"POLLQMT": {InstMisc, TplNone, true},
	"WAITCT1": {InstMisc, TplNone, false}, "WAITCT2": {InstMisc, TplNone, false},
	"WAITCT3": {InstMisc, TplNone, false},
	"WAITSE1": {InstMisc, TplNone, false}, "WAITSE2": {InstMisc, TplNone, false},
	"WAITSE3": {InstMisc, TplNone, false}, "WAITSE4": {InstMisc, TplNone, false},
	"WAITPAT": {InstMisc, TplNone, false}, "WAITATN": {InstMisc, TplNone, false},
	"ALLOWI": {InstMisc, TplNone, false}, "STALLI": {InstMisc, TplNone, false},
	"RETA": {InstMisc, TplNone, false}, "RETB": {InstMisc, TplNone, false},
	"RETI1": {InstMisc, TplNone, false}, "RETI2": {InstMisc, TplNone, false},
	"RETI3": {InstMisc, TplNone, false},
}

// FlagSel maps the mnemonics of the InstAddct and InstFifo families to
// the member index encoded in the flag bits (WC = bit 1, WZ = bit 0).
var FlagSel = map[string]uint32{
	"ADDCT1": 0, "ADDCT2": 1, "ADDCT3": 2,
	"RDFAST": 0, "WRFAST": 1, "SETPAT": 2,
}

// SubSel maps each sub-select mnemonic to the selector encoded in its
// Src field. TESTP/TESTPN list their W-flavor selectors; the assembler
// adjusts per the parsed suffix (TestPinSel).
var SubSel = map[string]uint32{
	"TESTP": SelTestp, "TESTPN": SelTestp + 1,
	"GETCT": SelGetct, "GETRND": SelGetrnd, "COGID": SelCogid,
	"COGATN": SelCogatn, "XORO32": SelXoro32,
	"SKIP": SelSkip, "SKIPF": SelSkipf,
	"PUSH": SelPush, "POP": SelPop,
	"SETLUTS": SelSetluts, "SETSCP": SelSetscp, "GETSCP": SelGetscp,
	"SETINT1": SelSetint1, "SETINT2": SelSetint2, "SETINT3": SelSetint3,
	"MODCZ": SelModcz, "MODC": SelModcz, "MODZ": SelModcz,
	"WRC": SelWrc, "WRNC": SelWrnc, "WRZ": SelWrz, "WRNZ": SelWrnz,
	"SETSE1": SelSetse1, "SETSE2": SelSetse2, "SETSE3": SelSetse3, "SETSE4": SelSetse4,
	"RFBYTE": SelRfbyte, "RFWORD": SelRfword, "RFLONG": SelRflong,
	"WFBYTE": SelWfbyte, "WFWORD": SelWfword, "WFLONG": SelWflong,
	"DIRL": SelDirl, "DIRH": SelDirh, "OUTL": SelOutl, "OUTH": SelOuth,
	"FLTL": SelFltl, "FLTH": SelFlth,
	"DRVL": SelDrvl, "DRVH": SelDrvh, "DRVNOT": SelDrvnot,

	"POLLCT1": EvPollct1, "POLLCT2": EvPollct2, "POLLCT3": EvPollct3,
	"POLLSE1": EvPollse1, "POLLSE2": EvPollse2, "POLLSE3": EvPollse3,
	"POLLSE4": EvPollse4, "POLLPAT": EvPollpat, "POLLATN": EvPollatn,
	"POLLQMT": EvPollqmt,
	"WAITCT1": EvWaitct1, "WAITCT2": EvWaitct2, "WAITCT3": EvWaitct3,
	"WAITSE1": EvWaitse1, "WAITSE2": EvWaitse2, "WAITSE3": EvWaitse3,
	"WAITSE4": EvWaitse4, "WAITPAT": EvWaitpat, "WAITATN": EvWaitatn,
	"ALLOWI": EvAllowi, "STALLI": EvStalli,
	"RETA": EvReta, "RETB": EvRetb,
	"RETI1": EvReti1, "RETI2": EvReti2, "RETI3": EvReti3,
}

// miscName is the reverse selector index, built once.
var miscName = map[uint32]string{}

func init() {
	for name, sel := range SubSel {
		// MODC/MODZ alias MODCZ's selector; keep the canonical name.
		if name == "MODC" || name == "MODZ" {
			continue
		}
		miscName[sel] = name
	}
	miscName[SelTestp] = "TESTP"
	miscName[SelTestp+1] = "TESTPN"
}

// bitOpName indexes the bit-mutate half of the shared 32..39 family.
var bitOpName = [8]string{"BITL", "BITH", "BITC", "BITNC", "BITZ", "BITNZ", "BITRND", "BITNOT"}

// IsBitTestFamily reports whether inst lies in the shared bit/test-bit
// code range 32..39.
func IsBitTestFamily(inst uint32) bool {
	return inst >= InstBitTest && inst < InstBitTest+8
}

// EncodeTestBit returns the 7-bit code for a TESTB/TESTBN flavor:
// pairs (W, AND, OR, XOR) at 32/33, 34/35, 36/37, 38/39.
func EncodeTestBit(negate bool, op FlagOp) uint32 {
	code := uint32(InstBitTest) + uint32(op)*2
	if negate {
		code++
	}
	return code
}

// TestPinSel returns the InstMisc selector for a TESTP/TESTPN flavor.
func TestPinSel(negate bool, op FlagOp) uint32 {
	sel := uint32(SelTestp) + uint32(op)*2
	if negate {
		sel++
	}
	return sel
}

// IsMemOp reports whether the mnemonic is a hub memory access whose S
// operand accepts a PTRA/PTRB pointer expression.
func IsMemOp(name string) bool {
	switch upper(name) {
	case "RDBYTE", "RDWORD", "RDLONG", "WRBYTE", "WRWORD", "WRLONG",
		"RDFAST", "WRFAST":
		return true
	}
	return false
}

func init() {
	token.RegisterMnemonicLookup(func(name string) bool {
		_, ok := Mnemonics[upper(name)]
		return ok
	})
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Word is the decoded form of one 32-bit instruction.
type Word struct {
	Cond  uint8
	Inst  uint32
	WC    bool
	WZ    bool
	Im    bool
	Dst   uint32
	Src   uint32
	Imm23 uint32 // AUGS/AUGD payload only: the 23-bit upper-immediate field.
	R     bool   // TplRel forms only: 1 = Rel is PC-relative, 0 = absolute.
	Rel   uint32 // TplRel forms only: 20-bit address/offset field.
}

// relBranch reports whether inst is one of the absolute/relative branch
// instructions (JMP/CALL/CALLA/CALLB) that use a dedicated R-bit +
// 20-bit address layout instead of the general EEEE OOOOOOO CZI
// DDDDDDDDD SSSSSSSSS field split.
func relBranch(inst uint32) bool {
	switch inst {
	case InstJmp, InstCall, InstCalla, InstCallb:
		return true
	}
	return false
}

// SignExtend20 sign-extends a 20-bit two's-complement field (a TplRel
// Word's Rel, holding an offset rather than an absolute address) to a
// signed 32-bit value.
func SignExtend20(v uint32) int32 {
	v &= 0xfffff
	if v&0x80000 != 0 {
		return int32(v) - (1 << 20)
	}
	return int32(v)
}

// SignExtend9 sign-extends the 9-bit relative field DJNZ/TJZ/TJNZ use.
func SignExtend9(v uint32) int32 {
	v &= 0x1ff
	if v&0x100 != 0 {
		return int32(v) - (1 << 9)
	}
	return int32(v)
}

// augsSel/augdSel are the 5-bit top selectors AUGS/AUGD use in place of
// the general EEEE OOOOOOO CZI DDDDDDDDD SSSSSSSSS layout: real P2
// silicon gives AUGS/AUGD a dedicated format (cond + 5-bit opcode + a
// 23-bit immediate) instead of the 7-bit inst/D/S split, since neither
// carries a D, an S or wc/wz. InstAugs/InstAugd's own 7-bit codes
// (120, 124) share these top-5-bit values with no other defined
// mnemonic, so Decode can distinguish the format unambiguously.
const (
	augsSel = InstAugs >> 2
	augdSel = InstAugd >> 2
)

// Encode packs fields into the canonical 32-bit layout. AUGS/AUGD encode
// their 23-bit Imm23 payload instead of the D/S fields; JMP/CALL/CALLA/
// CALLB encode R + a 20-bit Rel field instead.
func Encode(w Word) uint32 {
	if w.Inst == InstAugs || w.Inst == InstAugd {
		sel := uint32(augsSel)
		if w.Inst == InstAugd {
			sel = augdSel
		}
		return uint32(w.Cond&0xf)<<28 | sel<<23 | (w.Imm23 & 0x7fffff)
	}
	if relBranch(w.Inst) {
		v := uint32(w.Cond&0xf)<<28 | (w.Inst&0x7f)<<21
		if w.R {
			v |= 1 << 20
		}
		v |= w.Rel & 0xfffff
		return v
	}
	var v uint32
	v |= uint32(w.Cond&0xf) << 28
	v |= (w.Inst & 0x7f) << 21
	if w.WC {
		v |= 1 << 20
	}
	if w.WZ {
		v |= 1 << 19
	}
	if w.Im {
		v |= 1 << 18
	}
	v |= (w.Dst & 0x1ff) << 9
	v |= w.Src & 0x1ff
	return v
}

// Decode unpacks a 32-bit instruction word into its fields.
func Decode(v uint32) Word {
	cond := uint8(v >> 28 & 0xf)
	sel := v >> 23 & 0x1f
	switch sel {
	case augsSel:
		return Word{Cond: cond, Inst: InstAugs, Imm23: v & 0x7fffff}
	case augdSel:
		return Word{Cond: cond, Inst: InstAugd, Imm23: v & 0x7fffff}
	}
	inst := v >> 21 & 0x7f
	if relBranch(inst) {
		return Word{
			Cond: cond,
			Inst: inst,
			R:    v>>20&1 != 0,
			Rel:  v & 0xfffff,
		}
	}
	return Word{
		Cond: cond,
		Inst: inst,
		WC:   v>>20&1 != 0,
		WZ:   v>>19&1 != 0,
		Im:   v>>18&1 != 0,
		Dst:  v >> 9 & 0x1ff,
		Src:  v & 0x1ff,
	}
}

// Lookup returns the mnemonic definition by name, case-insensitively.
func Lookup(name string) (Def, bool) {
	d, ok := Mnemonics[upper(name)]
	return d, ok
}

// NameWord resolves a decoded word back to its canonical mnemonic,
// applying the secondary selection rules: the Src selector for the
// InstMisc family, the WC/WZ bits for the InstAddct/InstFifo families,
// and the exactly-one-of-WC/WZ rule
// that splits codes 32..39 between the TESTB/TESTBN flavors and the
// bit-mutate operations.
func NameWord(w Word) (string, bool) {
	flagIdx := uint32(0)
	if w.WC {
		flagIdx |= 2
	}
	if w.WZ {
		flagIdx |= 1
	}
	switch w.Inst {
	case InstMisc:
		name, ok := miscName[w.Src]
		if !ok && w.Src < SelTestp+8 {
			if w.Src%2 == 0 {
				return "TESTP", true
			}
			return "TESTPN", true
		}
		return name, ok
	case InstAddct:
		switch flagIdx {
		case 0:
			return "ADDCT1", true
		case 1:
			return "ADDCT2", true
		case 2:
			return "ADDCT3", true
		}
		return "", false
	case InstFifo:
		switch flagIdx {
		case 0:
			return "RDFAST", true
		case 1:
			return "WRFAST", true
		case 2:
			return "SETPAT", true
		}
		return "", false
	}
	if IsBitTestFamily(w.Inst) {
		if w.WC != w.WZ {
			if w.Inst%2 == 0 {
				return "TESTB", true
			}
			return "TESTBN", true
		}
		return bitOpName[w.Inst-InstBitTest], true
	}
	return Name(w.Inst)
}

// Name returns the canonical mnemonic for an unambiguous instruction
// code. Codes with secondary selection (32..39, InstAddct, InstFifo,
// InstMisc) need NameWord with the full decoded word.
func Name(inst uint32) (string, bool) {
	switch {
	case IsBitTestFamily(inst), inst == InstMisc, inst == InstAddct, inst == InstFifo:
		return "", false
	}
	for name, def := range Mnemonics {
		if def.Inst == inst && name != "RET" {
			return name, true
		}
	}
	return "", false
}
