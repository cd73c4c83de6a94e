/*
	   P2 Cog

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

// Package cog implements one P2 cog: its 512-long register file,
// LUT RAM, condition/augmentation/dispatch/writeback pipeline, the
// event and interrupt machinery, the hub-memory FIFO, and the
// REP/SKIP/SKIPF repeat machinery.
package cog

import (
	"math/bits"

	"github.com/rcornwell/p2dev/internal/hub"
	"github.com/rcornwell/p2dev/internal/opcode"
	"github.com/rcornwell/p2dev/internal/value"
)

const ramSize = 512

// Event/interrupt flags. FBW and the streamer flags
// (XMT/XFI/XRO/XRL) are part of the debug-visible flag word but no
// operation in this module raises them: the streamer is excluded by
// the Non-goals.
const (
	FlagInt uint32 = 1 << iota
	FlagCT1
	FlagCT2
	FlagCT3
	FlagSE1
	FlagSE2
	FlagSE3
	FlagSE4
	FlagPat
	FlagFbw
	FlagXmt
	FlagXfi
	FlagXro
	FlagXrl
	FlagAtn
	FlagQmt
)

// ctEvent is one CT1..CT3 counter-match comparator.
type ctEvent struct {
	target uint32
	armed  bool
}

// seEvent is one SE1..SE4 selectable pin-edge event: mode 0 is off,
// 1 rising, 2 falling, 3 any edge.
type seEvent struct {
	mode int
	pin  int
	prev bool
}

// intCtl is the three-level interrupt controller: per level a source
// event selector and an active bit, plus the STALLI/ALLOWI gate.
type intCtl struct {
	disabled bool
	source   [3]uint8
	active   [3]bool
}

// fifoState is the hub-read FIFO (head address, windex/rindex and a
// 16-long buffer) fed by RDFAST and drained by RFBYTE/RFWORD/RFLONG.
type fifoState struct {
	head   uint32
	buf    [16]uint32
	windex int
	rindex int
	sub    uint32 // byte offset inside buf[rindex]
}

// Cog is the architectural state of one of the eight P2 cores.
type Cog struct {
	Index int

	Ram    [ramSize]uint32
	LutRam [ramSize]uint32
	PC     uint32

	C, Z bool

	Stack [8]uint32
	SP    int

	LockOwned int // index of a held lock, -1 if none

	flags uint32

	ct   [3]ctEvent
	se   [4]seEvent
	intr intCtl

	patMode  bool
	patMask  uint32
	patMatch uint32

	fifo   fifoState
	wfAddr uint32

	augSValid, augDValid bool
	augS, augD           uint32

	altSValid, altDValid bool
	altS, altD           uint32

	sNextValid bool
	sNext      uint32

	repActive         bool
	repStart, repSize uint32
	repTimes          uint32 // 0 means infinite (REP #n,#0)
	repInfinite       bool

	skip  uint32
	skipf uint32

	cordicPending bool
	cordicValid   bool
	cordicCount   uint32

	lutShared bool

	q uint64

	lastIR uint32

	running bool
	stalled int // cycles remaining on a WAITX stall
}

// New returns a cog at rest; Start loads it and begins execution.
func New(index int) *Cog {
	return &Cog{Index: index, LockOwned: -1}
}

// Running reports whether the cog is currently executing (hub.CogRunner).
func (c *Cog) Running() bool { return c.running }

// PTRA/PTRB special-register addresses, matching the assembler's
// specialReg table (internal/assemble), and the interrupt vector and
// return registers IJMP3..IRET1.
const (
	regIjmp3 = 0x1D8
	regIret3 = 0x1D9
	regIjmp2 = 0x1DA
	regIret2 = 0x1DB
	regIjmp1 = 0x1DC
	regIret1 = 0x1DD
	regPTRA  = 0x1E0
	regPTRB  = 0x1E1
)

// ijmpReg/iretReg index the vector registers by interrupt level 0..2
// (INT1..INT3).
var (
	ijmpReg = [3]uint32{regIjmp1, regIjmp2, regIjmp3}
	iretReg = [3]uint32{regIret1, regIret2, regIret3}
)

// sourceFlag maps a SETINTn source selector to the event flag it arms.
var sourceFlag = [16]uint32{
	0, FlagCT1, FlagCT2, FlagCT3,
	FlagSE1, FlagSE2, FlagSE3, FlagSE4,
	FlagPat, FlagFbw, FlagAtn, FlagQmt,
}

// Start begins hub-mode execution at hubAddr (COGINIT/boot
// semantics): PC is the masked hub address, PTRB carries the raw address and
// PTRA carries the caller's setq parameter, the same convention for an
// image boot and for a COGINIT-started cog.
func (c *Cog) Start(hubAddr uint32, param uint32) {
	c.PC = hubAddr &^ 3
	c.Ram[regPTRB] = hubAddr
	c.Ram[regPTRA] = param
	c.running = true
}

// Stop halts the cog (COGSTOP).
func (c *Cog) Stop() { c.running = false }

// LutWrite stores one long into LUT RAM. The hub calls this on the
// partner cog when LUT sharing mirrors a WRLUT (hub.CogRunner).
func (c *Cog) LutWrite(addr, v uint32) { c.LutRam[addr&(ramSize-1)] = v }

// Debug interface.

func (c *Cog) RdPC() uint32    { return c.PC }
func (c *Cog) RdC() bool       { return c.C }
func (c *Cog) RdZ() bool       { return c.Z }
func (c *Cog) RdFlags() uint32 { return c.flags }
func (c *Cog) RdIR() uint32    { return c.lastIR }

func (c *Cog) RdCog(addr uint32) uint32 { return c.Ram[addr&(ramSize-1)] }
func (c *Cog) RdLut(addr uint32) uint32 { return c.LutRam[addr&(ramSize-1)] }

// RdDAug/RdSAug expose the pending AUGD/AUGS latch, if any.
func (c *Cog) RdDAug() (uint32, bool) { return c.augD, c.augDValid }
func (c *Cog) RdSAug() (uint32, bool) { return c.augS, c.augSValid }

// fetch reads the long at pc from COG RAM (pc<0x200), LUT RAM
// (0x200..0x3FF) or hub memory (0x400+).
func (c *Cog) fetch(h *hub.Hub, pc uint32) (uint32, uint32) {
	switch {
	case pc < 0x200:
		return c.Ram[pc], pc + 1
	case pc < 0x400:
		return c.LutRam[pc-0x200], pc + 1
	default:
		return h.ReadLong(pc), pc + 4
	}
}

// pollEvents advances the CT comparators, the PAT comparator, the SE
// pin-edge detectors and the ATN latch against current hub state.
func (c *Cog) pollEvents(h *hub.Hub) {
	now := uint32(h.Counter)
	ctFlag := [3]uint32{FlagCT1, FlagCT2, FlagCT3}
	for i := range c.ct {
		if c.ct[i].armed && int32(now-c.ct[i].target) >= 0 {
			c.flags |= ctFlag[i]
			c.ct[i].armed = false
		}
	}

	if c.patMode && h.PA()&c.patMask == c.patMatch&c.patMask {
		c.flags |= FlagPat
		c.patMode = false
	}

	seFlag := [4]uint32{FlagSE1, FlagSE2, FlagSE3, FlagSE4}
	for i := range c.se {
		ev := &c.se[i]
		if ev.mode == 0 {
			continue
		}
		cur := h.RdPIN(ev.pin)
		rising := cur && !ev.prev
		falling := !cur && ev.prev
		if (ev.mode == 1 && rising) || (ev.mode == 2 && falling) ||
			(ev.mode == 3 && (rising || falling)) {
			c.flags |= seFlag[i]
		}
		ev.prev = cur
	}

	if h.AtnPending[c.Index] {
		h.AtnPending[c.Index] = false
		c.flags |= FlagAtn
	}
}

// promoteInterrupts raises the highest-priority pending interrupt
// whose level is not masked by itself or a higher active level. On
// promotion the (C,Z,PC) triple is stored in IRETn and execution
// vectors through IJMPn.
func (c *Cog) promoteInterrupts() {
	if c.intr.disabled {
		return
	}
	for n := 0; n < 3; n++ {
		blocked := false
		for m := 0; m <= n; m++ {
			if c.intr.active[m] {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		src := c.intr.source[n]
		if src == 0 || int(src) >= len(sourceFlag) || sourceFlag[src] == 0 {
			continue
		}
		if c.flags&sourceFlag[src] == 0 {
			continue
		}
		c.flags &^= sourceFlag[src]
		c.intr.active[n] = true
		c.flags |= FlagInt
		saved := c.PC & 0xFFFFF
		if c.C {
			saved |= 1 << 31
		}
		if c.Z {
			saved |= 1 << 30
		}
		c.Ram[iretReg[n]] = saved
		c.PC = c.Ram[ijmpReg[n]] & 0xFFFFF
		return
	}
}

// Step executes one instruction (or one stall cycle) and returns the
// number of hub clocks it consumed.
func (c *Cog) Step(h *hub.Hub) int {
	if !c.running {
		return 1
	}
	c.pollEvents(h)
	if c.stalled > 0 {
		c.stalled--
		return 1
	}
	if c.cordicPending {
		return 1
	}
	c.promoteInterrupts()

	raw, nextPC := c.fetch(h, c.PC)

	// SKIPF leaps over cancelled instructions entirely by re-fetching
	// until the low bit is clear, then consumes the execute bit; SKIP
	// cancels one instruction in place (still a fetch/dispatch cycle).
	if c.skipf != 0 {
		for c.skipf&1 != 0 {
			c.skipf >>= 1
			c.PC = nextPC
			raw, nextPC = c.fetch(h, c.PC)
		}
		c.skipf >>= 1
	}
	w := opcode.Decode(raw)
	c.lastIR = raw

	skipThis := false
	if c.skip != 0 {
		skipThis = c.skip&1 != 0
		c.skip >>= 1
	}

	if skipThis || !c.testCond(w.Cond) {
		c.PC = nextPC
		c.clearOneShots()
		c.repAdvance(w.Inst)
		return 2
	}

	if w.Inst == opcode.InstAugs {
		c.augS = w.Imm23
		c.augSValid = true
		c.PC = nextPC
		return 2
	}
	if w.Inst == opcode.InstAugd {
		c.augD = w.Imm23
		c.augDValid = true
		c.PC = nextPC
		return 2
	}

	// ALTS/ALTD field substitution: a one-shot override of the next
	// instruction's register index.
	if c.altSValid {
		w.Src = c.altS & 0x1ff
		c.altSValid = false
	}
	if c.altDValid {
		w.Dst = c.altD & 0x1ff
		c.altDValid = false
	}

	name, _ := opcode.NameWord(w)
	def, _ := opcode.Lookup(name)
	dImmediate := w.Im && (def.Tpl == opcode.TplD || def.Tpl == opcode.TplImmD ||
		def.Tpl == opcode.TplNone || def.Tpl == opcode.TplModcz)

	dst := w.Dst
	if dImmediate && c.augDValid {
		dst = (c.augD << 9) | w.Dst
	}
	src := w.Src
	if w.Im && !dImmediate && c.augSValid {
		src = (c.augS << 9) | w.Src
	}

	oldPC := c.PC
	cycles := c.exec(h, w, name, dst, src, dImmediate)
	if w.Cond == opcode.CondRet && c.PC == oldPC {
		// EEEE=0000: execute always, then return if the instruction
		// didn't branch.
		c.PC = c.pop() - 1
	}
	c.clearAug()
	if c.PC == oldPC {
		// exec left PC untouched: normal fall-through.
		c.PC = nextPC
	} else {
		// exec parked a taken branch (or a stalled wait) at target-1;
		// finish the jump here so fetch lands on the real target next step.
		c.PC++
	}
	c.repAdvance(w.Inst)
	return cycles
}

// repAdvance implements the REP loop bookkeeping:
// every instruction other than REP itself advances the block offset;
// reaching the block size either rewinds PC for another pass or, for a
// finite repeat, decrements the remaining count and falls through.
func (c *Cog) repAdvance(inst uint32) {
	if !c.repActive || inst == opcode.InstRep {
		return
	}
	if c.PC != c.repStart+c.repSize {
		return
	}
	if c.repInfinite {
		c.PC = c.repStart
		return
	}
	c.repTimes--
	if c.repTimes == 0 {
		c.repActive = false
		return
	}
	c.PC = c.repStart
}

func (c *Cog) clearAug() {
	c.augSValid = false
	c.augDValid = false
}

// clearOneShots drops every latch a skipped/cancelled instruction
// would have consumed: AUGS/AUGD, ALTS/ALTD and the pending next-S.
func (c *Cog) clearOneShots() {
	c.clearAug()
	c.altSValid = false
	c.altDValid = false
	c.sNextValid = false
}

// testCond evaluates the EEEE field against the current C/Z flags.
func (c *Cog) testCond(cond uint8) bool {
	cc, zz := c.C, c.Z
	switch cond {
	case opcode.CondRet:
		return true
	case opcode.CondNcAndNz:
		return !cc && !zz
	case opcode.CondNcAndZ:
		return !cc && zz
	case opcode.CondNc:
		return !cc
	case opcode.CondCAndNz:
		return cc && !zz
	case opcode.CondNz:
		return !zz
	case opcode.CondCNeZ:
		return cc != zz
	case opcode.CondNcOrNz:
		return !cc || !zz
	case opcode.CondCAndZ:
		return cc && zz
	case opcode.CondCEqZ:
		return cc == zz
	case opcode.CondZ:
		return zz
	case opcode.CondNcOrZ:
		return !cc || zz
	case opcode.CondC:
		return cc
	case opcode.CondCOrNz:
		return cc || !zz
	case opcode.CondCOrZ:
		return cc || zz
	case opcode.CondAlways:
		return true
	}
	return true
}

func (c *Cog) reg(i uint32) uint32 { return c.Ram[i&(ramSize-1)] }

func (c *Cog) setReg(i uint32, v uint32) { c.Ram[i&(ramSize-1)] = v }

// hubCycles is the hub rotation-wait formula: the distance
// from the current hub slot to the slot that serves this cog's
// address, plus the 2-cycle instruction base. In single-slot mode
// (Hubslots() == 0) there is no rotation wait.
func (c *Cog) hubCycles(h *hub.Hub, addr uint32) int {
	if h.Hubslots() == 0 {
		return 2
	}
	wait := (c.Index + int(addr/4) - h.CogIndex()) % 16
	if wait < 0 {
		wait += 16
	}
	return wait + 2
}

// memEA resolves the S operand of a hub access. An immediate S of the
// form 1SUPIIIII is a PTRA/PTRB pointer expression: S selects
// the pointer, U requests an update, P makes the update pre rather
// than post, and I is a signed 5-bit index scaled by the access width.
func (c *Cog) memEA(src uint32, im bool, width uint32) uint32 {
	if !im || src > 0x1ff || src&0x100 == 0 {
		return src
	}
	reg := uint32(regPTRA)
	if src&0x80 != 0 {
		reg = regPTRB
	}
	idx := int32(src & 0x1f)
	if idx&0x10 != 0 {
		idx -= 32
	}
	off := idx * int32(width)
	ptr := c.Ram[reg]
	switch {
	case src&0x40 == 0: // no update: indexed access
		return uint32(int32(ptr) + off)
	case src&0x20 != 0: // pre-update
		ptr = uint32(int32(ptr)+off) & 0xFFFFF
		c.Ram[reg] = ptr
		return ptr
	default: // post-update
		c.Ram[reg] = uint32(int32(ptr)+off) & 0xFFFFF
		return ptr
	}
}

// stall parks PC one word back so the same instruction refetches on
// the next step: the WAIT_* idiom.
func (c *Cog) stall() int {
	c.PC--
	return 1
}

// exec dispatches one decoded instruction; dst/src already carry any
// AUGS/AUGD extension, and name is the NameWord-resolved mnemonic.
func (c *Cog) exec(h *hub.Hub, w opcode.Word, name string, dst, src uint32, dImmediate bool) int {
	d := dst
	if !dImmediate {
		d = c.reg(dst)
	}
	s := src
	if !w.Im || dImmediate {
		s = c.reg(src)
	}
	if w.Inst == opcode.InstMisc {
		// Src is an operation selector, never a register index.
		s = src
	}
	if c.sNextValid {
		s = c.sNext
		c.sNextValid = false
	}

	alu := func(result uint32, carry, zero bool) {
		if !dImmediate {
			c.setReg(dst, result)
		}
		if w.WC {
			c.C = carry
		}
		if w.WZ {
			c.Z = zero
		}
	}
	// n is the byte/word/nibble index TplDSN instructions carry in the
	// flag bits (SETBYTE/GETBYTE, SETNIB/GETNIB, SETWORD/GETWORD).
	n := uint32(0)
	if w.WC {
		n |= 2
	}
	if w.WZ {
		n |= 1
	}

	if opcode.IsBitTestFamily(w.Inst) {
		return c.execBitTest(h, w, name, dst, d, s)
	}

	switch name {
	case "MOV":
		alu(s, s>>31 != 0, s == 0)
	case "NOT":
		r := ^s
		alu(r, r>>31 != 0, r == 0)
	case "ABS":
		v := int32(s)
		if v < 0 {
			v = -v
		}
		alu(uint32(v), s>>31 != 0, v == 0)
	case "NEG":
		r := -s
		alu(r, s>>31 != 0, r == 0)
	case "NEGC":
		alu(c.negIf(s, c.C))
	case "NEGNC":
		alu(c.negIf(s, !c.C))
	case "NEGZ":
		alu(c.negIf(s, c.Z))
	case "NEGNZ":
		alu(c.negIf(s, !c.Z))
	case "ADD":
		sum := uint64(d) + uint64(s)
		alu(uint32(sum), sum>>32 != 0, uint32(sum) == 0)
	case "SUB":
		diff := uint64(d) - uint64(s)
		alu(uint32(diff), d < s, uint32(diff) == 0)
	case "ADDX":
		sum := uint64(d) + uint64(s) + boolU64(c.C)
		alu(uint32(sum), sum>>32 != 0, uint32(sum) == 0 && c.Z)
	case "SUBX":
		diff := int64(uint64(d)) - int64(uint64(s)) - int64(boolU64(c.C))
		alu(uint32(diff), diff < 0, uint32(diff) == 0 && c.Z)
	case "ADDS":
		r := d + s
		alu(r, signedOverflowAdd(d, s, r), r == 0)
	case "ADDSX":
		r := d + s + uint32(boolU64(c.C))
		alu(r, signedOverflowAdd(d, s, r), r == 0 && c.Z)
	case "SUBS":
		r := d - s
		alu(r, signedOverflowSub(d, s, r), r == 0)
	case "SUBSX":
		r := d - s - uint32(boolU64(c.C))
		alu(r, signedOverflowSub(d, s, r), r == 0 && c.Z)
	case "SUBR":
		r := s - d
		alu(r, s < d, r == 0)
	case "CMP":
		diff := uint64(d) - uint64(s)
		c.setCZ(w, d < s, uint32(diff) == 0)
	case "CMPX":
		diff := int64(uint64(d)) - int64(uint64(s)) - int64(boolU64(c.C))
		c.setCZ(w, diff < 0, uint32(diff) == 0 && c.Z)
	case "CMPS":
		c.setCZ(w, int32(d) < int32(s), d == s)
	case "CMPSX":
		diff := int64(int32(d)) - int64(int32(s)) - int64(boolU64(c.C))
		c.setCZ(w, diff < 0, uint32(diff) == 0 && c.Z)
	case "CMPR":
		c.setCZ(w, s < d, d == s)
	case "CMPM":
		diff := d - s
		c.setCZ(w, diff>>31 != 0, diff == 0)
	case "CMPSUB":
		if d >= s {
			r := d - s
			alu(r, true, r == 0)
		} else {
			c.setCZ(w, false, d == 0)
		}
	case "SUMC":
		alu(c.sumIf(d, s, c.C))
	case "SUMNC":
		alu(c.sumIf(d, s, !c.C))
	case "SUMZ":
		alu(c.sumIf(d, s, c.Z))
	case "SUMNZ":
		alu(c.sumIf(d, s, !c.Z))
	case "MUL":
		r := (d & 0xffff) * (s & 0xffff)
		alu(r, c.C, r == 0)
	case "MULS":
		r := uint32(int32(int16(d)) * int32(int16(s)))
		alu(r, c.C, r == 0)
	case "SCA":
		r := uint32(uint64(d&0xffff) * uint64(s&0xffff) >> 16)
		c.sNext = r
		c.sNextValid = true
		if w.WZ {
			c.Z = r == 0
		}
	case "SCAS":
		r := uint32(int64(int16(d)) * int64(int16(s)) >> 14)
		c.sNext = r
		c.sNextValid = true
		if w.WZ {
			c.Z = r == 0
		}
	case "TEST":
		r := d & s
		c.setCZ(w, bits.OnesCount32(r)%2 != 0, r == 0)
	case "TESTN":
		r := d &^ s
		c.setCZ(w, bits.OnesCount32(r)%2 != 0, r == 0)
	case "AND":
		r := d & s
		alu(r, parity(r), r == 0)
	case "ANDN":
		r := d &^ s
		alu(r, parity(r), r == 0)
	case "OR":
		r := d | s
		alu(r, parity(r), r == 0)
	case "XOR":
		r := d ^ s
		alu(r, parity(r), r == 0)
	case "MUXC":
		r := d &^ s
		if c.C {
			r |= s
		}
		alu(r, parity(r), r == 0)
	case "MUXNC":
		r := d &^ s
		if !c.C {
			r |= s
		}
		alu(r, parity(r), r == 0)
	case "MUXZ":
		r := d &^ s
		if c.Z {
			r |= s
		}
		alu(r, parity(r), r == 0)
	case "MUXNZ":
		r := d &^ s
		if !c.Z {
			r |= s
		}
		alu(r, parity(r), r == 0)
	case "SHL":
		nb := s & 31
		r := d << nb
		carry := d>>31 != 0
		if nb != 0 {
			carry = bitAt(d, 32-int(nb))
		}
		alu(r, carry, r == 0)
	case "SHR":
		nb := s & 31
		r := d >> nb
		carry := d&1 != 0
		if nb != 0 {
			carry = bitAt(d, int(nb)-1)
		}
		alu(r, carry, r == 0)
	case "SAR":
		nb := s & 31
		r := uint32(int32(d) >> nb)
		carry := d&1 != 0
		if nb != 0 {
			carry = bitAt(d, int(nb)-1)
		}
		alu(r, carry, r == 0)
	case "SAL":
		// Mirror of SAR: shifts left replicating bit 0 into the vacated
		// positions; C is the last bit shifted out.
		nb := s & 31
		r := d << nb
		if d&1 != 0 && nb != 0 {
			r |= (1 << nb) - 1
		}
		carry := d>>31 != 0
		if nb != 0 {
			carry = bitAt(d, 32-int(nb))
		}
		alu(r, carry, r == 0)
	case "ROL":
		r := bits.RotateLeft32(d, int(s&31))
		alu(r, r&1 != 0, r == 0)
	case "ROR":
		r := bits.RotateLeft32(d, -int(s&31))
		alu(r, r>>31 != 0, r == 0)
	case "RCL":
		// Rotate left through carry: vacated low bits fill with C; the
		// last bit rotated out becomes the new C.
		nb := s & 31
		r := d << nb
		if c.C && nb != 0 {
			r |= (1 << nb) - 1
		}
		carry := d>>31 != 0
		if nb != 0 {
			carry = bitAt(d, 32-int(nb))
		}
		alu(r, carry, r == 0)
	case "RCR":
		nb := s & 31
		r := d >> nb
		if c.C && nb != 0 {
			r |= ^uint32(0) << (32 - nb)
		}
		carry := d&1 != 0
		if nb != 0 {
			carry = bitAt(d, int(nb)-1)
		}
		alu(r, carry, r == 0)
	case "ENCOD":
		r := uint32(value.Encode(s))
		alu(r, s != 0, r == 0)
	case "ONES":
		r := uint32(bits.OnesCount32(s))
		alu(r, r&1 != 0, r == 0)
	case "ZEROX":
		nb := s & 31
		r := d
		if nb < 31 {
			r &= (1 << (nb + 1)) - 1
		}
		alu(r, r>>31 != 0, r == 0)
	case "SIGNX":
		nb := s & 31
		shift := 31 - nb
		r := uint32(int32(d<<shift) >> shift)
		alu(r, r>>31 != 0, r == 0)
	case "INCMOD":
		r := d + 1
		carry := d == s
		if carry {
			r = 0
		}
		alu(r, carry, r == 0)
	case "DECMOD":
		r := d - 1
		carry := d == 0
		if carry {
			r = s
		}
		alu(r, carry, r == 0)
	case "SETNIB":
		shift := (n & 3) * 4
		c.setReg(dst, d&^(0xf<<shift)|(s&0xf)<<shift)
	case "GETNIB":
		c.setReg(dst, s>>((n&3)*4)&0xf)
	case "SETBYTE":
		shift := (n & 3) * 8
		c.setReg(dst, d&^(0xff<<shift)|(s&0xff)<<shift)
	case "GETBYTE":
		c.setReg(dst, s>>((n&3)*8)&0xff)
	case "SETWORD":
		shift := (n & 1) * 16
		c.setReg(dst, d&^(0xffff<<shift)|(s&0xffff)<<shift)
	case "GETWORD":
		c.setReg(dst, s>>((n&1)*16)&0xffff)
	case "ROLBYTE":
		r := d<<8 | s&0xff
		alu(r, c.C, r == 0)
	case "ALTS", "ALTSW":
		c.altS = (d + s) & 0x1ff
		c.altSValid = true
	case "ALTD", "ALTGW":
		c.altD = (d + s) & 0x1ff
		c.altDValid = true
	case "RDBYTE":
		ea := c.memEA(src, w.Im, 1)
		v := uint32(h.ReadByte(ea))
		alu(v, v>>7&1 != 0, v == 0)
		return c.hubCycles(h, ea)
	case "WRBYTE":
		ea := c.memEA(src, w.Im, 1)
		h.WriteByte(ea, byte(d))
		return c.hubCycles(h, ea)
	case "RDWORD":
		ea := c.memEA(src, w.Im, 2)
		v := uint32(h.ReadWord(ea))
		alu(v, v>>15&1 != 0, v == 0)
		return c.hubCycles(h, ea)
	case "WRWORD":
		ea := c.memEA(src, w.Im, 2)
		h.WriteWord(ea, uint16(d))
		return c.hubCycles(h, ea)
	case "RDLONG":
		ea := c.memEA(src, w.Im, 4)
		v := h.ReadLong(ea)
		alu(v, v>>31 != 0, v == 0)
		return c.hubCycles(h, ea)
	case "WRLONG":
		ea := c.memEA(src, w.Im, 4)
		h.WriteLong(ea, d)
		return c.hubCycles(h, ea)
	case "RDFAST":
		ea := c.memEA(src, w.Im, 4)
		c.fifo = fifoState{head: ea}
		return c.hubCycles(h, ea)
	case "WRFAST":
		ea := c.memEA(src, w.Im, 4)
		c.wfAddr = ea
		return c.hubCycles(h, ea)
	case "RDLUT":
		v := c.LutRam[s&(ramSize-1)]
		alu(v, v>>31 != 0, v == 0)
	case "WRLUT":
		c.LutRam[s&(ramSize-1)] = d
		if c.lutShared {
			if partner := h.Cogs[c.Index^1]; partner != nil {
				partner.LutWrite(s, d)
			}
		}
	case "JMP":
		c.PC = branchTarget(c.PC, w.Rel) - 1
	case "CALL", "CALLA", "CALLB":
		c.push(c.PC + 1)
		c.PC = branchTarget(c.PC, w.Rel) - 1
	case "CALLD":
		c.push(c.PC + 1)
	case "CALLP":
		c.push(c.PC + 1)
		c.PC = s - 1
	case "DJNZ":
		r := d - 1
		c.setReg(dst, r)
		if r != 0 {
			c.PC = relTarget9(c.PC, w.Src) - 1
		}
	case "TJZ":
		if d == 0 {
			c.PC = relTarget9(c.PC, w.Src) - 1
		}
	case "TJNZ":
		if d != 0 {
			c.PC = relTarget9(c.PC, w.Src) - 1
		}
	case "WAITX":
		c.stalled = int(d)
	case "NOP":
	case "COGSTOP":
		if idx := int(d); idx == c.Index {
			c.running = false
		} else if idx >= 0 && idx < hub.NumCogs && h.Cogs[idx] != nil {
			h.Cogs[idx].Stop()
		}
	case "COGINIT":
		id := h.Coginit(int(d), s, uint32(c.q))
		alu(uint32(id), id < 0, false)
	case "SETQ":
		c.q = uint64(d)
	case "GETQX":
		if !c.cordicValid {
			c.flags |= FlagQmt
		}
		alu(uint32(c.q), c.C, uint32(c.q) == 0)
	case "GETQY":
		if !c.cordicValid {
			c.flags |= FlagQmt
		}
		alu(uint32(c.q>>32), c.C, c.q>>32 == 0)
	case "QMUL":
		c.postCordic(h, uint64(d)*uint64(s))
	case "QDIV":
		result := c.q
		if s != 0 {
			result = uint64(d/s) | uint64(d%s)<<32
		}
		c.postCordic(h, result)
	case "QFRAC":
		result := c.q
		if s != 0 {
			result = (uint64(d) << 32) / uint64(s)
		}
		c.postCordic(h, result)
	case "QSQRT":
		c.postCordic(h, uint64(isqrt(d)))
	case "QROTATE", "QVECTOR":
		c.postCordic(h, uint64(d)^uint64(s)<<32)
	case "QLOG", "QEXP":
		c.postCordic(h, uint64(d))
	case "LOCKNEW":
		id := h.LockNew(c.Index)
		if id >= 0 {
			c.LockOwned = id
		}
		alu(uint32(id), id < 0, false)
	case "LOCKRET":
		if c.LockOwned >= 0 {
			h.LockRel(c.LockOwned, c.Index)
			c.LockOwned = -1
		}
	case "LOCKTRY":
		ok := h.LockTry(int(d), c.Index)
		if ok {
			c.LockOwned = int(d)
		}
		c.setCZ(w, !ok, false)
	case "LOCKREL":
		wasHeld := h.LockRel(int(d), c.Index)
		if c.LockOwned == int(d) {
			c.LockOwned = -1
		}
		c.setCZ(w, wasHeld, false)
	case "REP":
		// REP D,{#}S: D is the block's instruction count, S the repeat
		// count (0 = REP forever until a branch leaves the block).
		c.repActive = true
		c.repStart = c.PC + 1
		c.repSize = w.Dst
		c.repInfinite = s == 0
		c.repTimes = s
	case "ADDCT1":
		c.addct(0, dst, d, s)
	case "ADDCT2":
		c.addct(1, dst, d, s)
	case "ADDCT3":
		c.addct(2, dst, d, s)
	case "SETPAT":
		c.patMask = d
		c.patMatch = s
		c.patMode = true
	case "RGBSQZ":
		alu(value.RgbSqz(s), c.C, false)
	case "RGBEXP":
		alu(value.RgbExp(s), c.C, false)
	case "SEUSSF":
		alu(value.SeussForward(s), c.C, false)
	case "SEUSSR":
		alu(value.SeussReverse(s), c.C, false)
	default:
		if w.Inst == opcode.InstMisc {
			if w.Src >= opcode.EvPollct1 {
				return c.execEvent(w, name)
			}
			return c.execMiscD(h, w, name, dst, d)
		}
		// Unrecognized opcodes are benign no-ops: the emulator never
		// fails a step.
	}
	return 2
}

// execBitTest handles the shared 32..39 code family: TESTB/TESTBN
// flag-combine flavors when exactly one of WC/WZ is set, bit-mutate
// operations otherwise.
func (c *Cog) execBitTest(h *hub.Hub, w opcode.Word, name string, dst, d, s uint32) int {
	bit := int(s & 31)
	switch name {
	case "TESTB", "TESTBN":
		v := bitAt(d, bit)
		if name == "TESTBN" {
			v = !v
		}
		op := opcode.FlagOp((w.Inst - opcode.InstBitTest) / 2)
		c.applyFlagOp(w, op, v)
		return 2
	}
	prior := bitAt(d, bit)
	var nv bool
	switch name {
	case "BITL":
		nv = false
	case "BITH":
		nv = true
	case "BITC":
		nv = c.C
	case "BITNC":
		nv = !c.C
	case "BITZ":
		nv = c.Z
	case "BITNZ":
		nv = !c.Z
	case "BITRND":
		nv = h.Rand()&1 != 0
	case "BITNOT":
		nv = !prior
	}
	r := d &^ (1 << uint(bit))
	if nv {
		r |= 1 << uint(bit)
	}
	c.setReg(dst, r)
	if w.WC && w.WZ {
		c.C = prior
		c.Z = prior
	}
	return 2
}

// applyFlagOp writes a tested bit into C and/or Z with the suffix's
// combine rule (WC/WZ plain write, ANDx/ORx/XORx combine).
func (c *Cog) applyFlagOp(w opcode.Word, op opcode.FlagOp, bit bool) {
	apply := func(cur bool) bool {
		switch op {
		case opcode.FlagAnd:
			return cur && bit
		case opcode.FlagOr:
			return cur || bit
		case opcode.FlagXor:
			return cur != bit
		}
		return bit
	}
	if w.WC {
		c.C = apply(c.C)
	}
	if w.WZ {
		c.Z = apply(c.Z)
	}
}

// execMiscD handles the {#}D-operand half of the InstMisc sub-select
// family: operation chosen by the Src selector.
func (c *Cog) execMiscD(h *hub.Hub, w opcode.Word, name string, dst, d uint32) int {
	switch name {
	case "TESTP", "TESTPN":
		v := h.RdPIN(int(d & 0x3f))
		if name == "TESTPN" {
			v = !v
		}
		op := opcode.FlagOp((w.Src - opcode.SelTestp) / 2)
		c.applyFlagOp(w, op, v)
	case "DIRL":
		h.WrDIR(int(d&0x3f), false)
	case "DIRH":
		h.WrDIR(int(d&0x3f), true)
	case "OUTL":
		h.WrOUT(int(d&0x3f), false)
	case "OUTH":
		h.WrOUT(int(d&0x3f), true)
	case "FLTL":
		h.WrOUT(int(d&0x3f), false)
		h.WrDIR(int(d&0x3f), false)
	case "FLTH":
		h.WrOUT(int(d&0x3f), true)
		h.WrDIR(int(d&0x3f), false)
	case "DRVL":
		h.WrOUT(int(d&0x3f), false)
		h.WrDIR(int(d&0x3f), true)
	case "DRVH":
		h.WrOUT(int(d&0x3f), true)
		h.WrDIR(int(d&0x3f), true)
	case "DRVNOT":
		pin := int(d & 0x3f)
		h.WrOUT(pin, !h.RdPIN(pin))
		h.WrDIR(pin, true)
	case "GETCT":
		c.setReg(dst, uint32(h.Counter))
	case "GETRND":
		r := h.Rand()
		c.setReg(dst, r)
		if w.WC {
			c.C = r>>31 != 0
		}
		if w.WZ {
			c.Z = r>>30&1 != 0
		}
	case "COGID":
		c.setReg(dst, uint32(c.Index))
		if w.WC {
			c.C = false
		}
	case "COGATN":
		h.CogAtn(d)
	case "XORO32":
		next, result := xoro32(d)
		c.setReg(dst, next)
		c.sNext = result
		c.sNextValid = true
	case "SKIP":
		c.skip = d
	case "SKIPF":
		c.skipf = d
	case "PUSH":
		c.push(d)
	case "POP":
		v := c.pop()
		c.setReg(dst, v)
		if w.WC {
			c.C = v>>31 != 0
		}
		if w.WZ {
			c.Z = v == 0
		}
	case "SETLUTS":
		c.lutShared = d&1 != 0
	case "SETSCP":
		h.SetScope(d)
	case "GETSCP":
		c.setReg(dst, h.Scope())
	case "SETINT1":
		c.intr.source[0] = uint8(d & 0xf)
	case "SETINT2":
		c.intr.source[1] = uint8(d & 0xf)
	case "SETINT3":
		c.intr.source[2] = uint8(d & 0xf)
	case "MODCZ":
		if w.WC {
			c.C = c.modczBit(d >> 4 & 0xf)
		}
		if w.WZ {
			c.Z = c.modczBit(d & 0xf)
		}
	case "WRC":
		c.setReg(dst, boolU32(c.C))
	case "WRNC":
		c.setReg(dst, boolU32(!c.C))
	case "WRZ":
		c.setReg(dst, boolU32(c.Z))
	case "WRNZ":
		c.setReg(dst, boolU32(!c.Z))
	case "SETSE1", "SETSE2", "SETSE3", "SETSE4":
		i := int(w.Src - opcode.SelSetse1)
		c.se[i].mode = int(d >> 6 & 3)
		c.se[i].pin = int(d & 0x3f)
		c.se[i].prev = h.RdPIN(c.se[i].pin)
	case "RFBYTE":
		v := uint32(c.rfByte(h))
		c.setReg(dst, v)
		c.setCZ(w, v>>7&1 != 0, v == 0)
	case "RFWORD":
		v := uint32(c.rfByte(h)) | uint32(c.rfByte(h))<<8
		c.setReg(dst, v)
		c.setCZ(w, v>>15&1 != 0, v == 0)
	case "RFLONG":
		v := uint32(c.rfByte(h)) | uint32(c.rfByte(h))<<8 |
			uint32(c.rfByte(h))<<16 | uint32(c.rfByte(h))<<24
		c.setReg(dst, v)
		c.setCZ(w, v>>31 != 0, v == 0)
	case "WFBYTE":
		h.WriteByte(c.wfAddr, byte(d))
		c.wfAddr++
	case "WFWORD":
		h.WriteWord(c.wfAddr, uint16(d))
		c.wfAddr += 2
	case "WFLONG":
		h.WriteLong(c.wfAddr, d)
		c.wfAddr += 4
	}
	return 2
}

// execEvent handles the no-operand half of the InstMisc sub-select
// family. Polls clear-and-report the event flag; waits stall the cog
// until it raises.
var pollFlags = map[string]uint32{
	"POLLCT1": FlagCT1, "POLLCT2": FlagCT2, "POLLCT3": FlagCT3,
	"POLLSE1": FlagSE1, "POLLSE2": FlagSE2, "POLLSE3": FlagSE3,
	"POLLSE4": FlagSE4, "POLLPAT": FlagPat, "POLLATN": FlagAtn,
	"POLLQMT": FlagQmt,
}

var waitFlags = map[string]uint32{
	"WAITCT1": FlagCT1, "WAITCT2": FlagCT2, "WAITCT3": FlagCT3,
	"WAITSE1": FlagSE1, "WAITSE2": FlagSE2, "WAITSE3": FlagSE3,
	"WAITSE4": FlagSE4, "WAITPAT": FlagPat, "WAITATN": FlagAtn,
}

func (c *Cog) execEvent(w opcode.Word, name string) int {
	if flag, ok := pollFlags[name]; ok {
		was := c.flags&flag != 0
		c.flags &^= flag
		c.setCZ(w, was, was)
		return 2
	}
	if flag, ok := waitFlags[name]; ok {
		if c.flags&flag == 0 {
			return c.stall()
		}
		c.flags &^= flag
		return 2
	}
	switch name {
	case "ALLOWI":
		c.intr.disabled = false
	case "STALLI":
		c.intr.disabled = true
	case "RETA", "RETB":
		c.PC = c.pop() - 1
	case "RETI1", "RETI2", "RETI3":
		n := int(w.Src - opcode.EvReti1)
		v := c.Ram[iretReg[n]]
		c.C = v>>31&1 != 0
		c.Z = v>>30&1 != 0
		c.intr.active[n] = false
		if !c.intr.active[0] && !c.intr.active[1] && !c.intr.active[2] {
			c.flags &^= FlagInt
		}
		c.PC = (v & 0xFFFFF) - 1
	}
	return 2
}

// addct implements ADDCTn D,{#}S: D advances by S and the result arms
// the CTn comparator against the hub counter.
func (c *Cog) addct(i int, dst, d, s uint32) {
	r := d + s
	c.setReg(dst, r)
	c.ct[i].target = r
	c.ct[i].armed = true
}

// modczBit evaluates one 4-bit MODCZ predicate against the current
// flags: the code is a truth table indexed by C*2+Z.
func (c *Cog) modczBit(code uint32) bool {
	idx := boolU32(c.C)<<1 | boolU32(c.Z)
	return code>>idx&1 != 0
}

// rfByte pulls the next byte out of the RDFAST FIFO, refilling the
// 16-long buffer from the head address as it drains.
func (c *Cog) rfByte(h *hub.Hub) byte {
	f := &c.fifo
	if f.rindex == f.windex {
		f.buf[f.windex%len(f.buf)] = h.ReadLong(f.head)
		f.head += 4
		f.windex++
	}
	b := byte(f.buf[f.rindex%len(f.buf)] >> (8 * f.sub))
	f.sub++
	if f.sub == 4 {
		f.sub = 0
		f.rindex++
	}
	return b
}

// negIf returns (result, carry, zero) for the NEGx family: S negated
// when cond holds, passed through otherwise.
func (c *Cog) negIf(s uint32, cond bool) (uint32, bool, bool) {
	r := s
	if cond {
		r = -s
	}
	return r, s>>31 != 0, r == 0
}

// sumIf returns (result, carry, zero) for the SUMx family: D plus or
// minus S by cond, with signed overflow into C.
func (c *Cog) sumIf(d, s uint32, minus bool) (uint32, bool, bool) {
	if minus {
		r := d - s
		return r, signedOverflowSub(d, s, r), r == 0
	}
	r := d + s
	return r, signedOverflowAdd(d, s, r), r == 0
}

// cordicLatency is a functional stand-in for the CORDIC pipeline's
// completion delay. Only one result is in flight per cog; a second Q*
// op before GETQX/GETQY drain the first overwrites it, matching the
// common "one pending request" usage pattern rather than the real
// pipeline's deeper queue.
const cordicLatency = 8

func (c *Cog) postCordic(h *hub.Hub, result uint64) {
	c.cordicPending = true
	c.cordicCount++
	h.Schedule(c.Index, 0, cordicLatency, func(int, int) {
		c.q = result
		c.cordicPending = false
		c.cordicValid = true
		if c.cordicCount > 0 {
			c.cordicCount--
		}
	})
}

func (c *Cog) setCZ(w opcode.Word, carry, zero bool) {
	if w.WC {
		c.C = carry
	}
	if w.WZ {
		c.Z = zero
	}
}

func (c *Cog) push(v uint32) {
	if c.SP < len(c.Stack) {
		c.Stack[c.SP] = v
		c.SP++
	}
}

func (c *Cog) pop() uint32 {
	if c.SP == 0 {
		return 0
	}
	c.SP--
	return c.Stack[c.SP]
}

// branchTarget resolves a TplRel Word's R-bit/20-bit-offset encoding
// against the instruction's own PC: it steps pc the
// same way fetch would (word-indexed in COG/LUT space, +4 in hub
// space) to get the "next PC" the offset is relative to, then adds the
// sign-extended Rel field in that same unit, matching how the
// assembler computed it from the label/PC pair at assembly time.
func branchTarget(pc uint32, rel uint32) uint32 {
	next := pc + 1
	if pc >= 0x400 {
		next = pc + 4
	}
	return uint32(int64(next) + int64(opcode.SignExtend20(rel)))
}

// relTarget9 resolves the 9-bit relative branch field of DJNZ/TJZ/TJNZ
// the same way, in word units.
func relTarget9(pc uint32, rel uint32) uint32 {
	next := pc + 1
	if pc >= 0x400 {
		next = pc + 4
	}
	return uint32(int64(next) + int64(opcode.SignExtend9(rel)))
}

func bitAt(v uint32, bit int) bool {
	if bit < 0 || bit > 31 {
		return false
	}
	return v&(1<<uint(bit)) != 0
}

func parity(v uint32) bool { return bits.OnesCount32(v)%2 != 0 }

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func signedOverflowAdd(d, s, r uint32) bool {
	return (^(d^s)&(d^r))>>31 != 0
}

func signedOverflowSub(d, s, r uint32) bool {
	return ((d^s)&(d^r))>>31 != 0
}

func isqrt(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	r := uint32(1) << 16
	for r*r > v {
		r = (r + v/r) / 2
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

// xoro32 steps a 32-bit xoroshiro generator held in a cog register
// (two 16-bit halves) and returns the next state plus the scrambled
// output that feeds the following instruction's S.
func xoro32(v uint32) (next uint32, result uint32) {
	s0 := uint16(v)
	s1 := uint16(v >> 16)
	out := bits.RotateLeft16(s0+s1, 9) + s0
	s1 ^= s0
	s0 = bits.RotateLeft16(s0, 13) ^ s1 ^ (s1 << 5)
	s1 = bits.RotateLeft16(s1, 10)
	return uint32(s1)<<16 | uint32(s0), uint32(out)<<16 | uint32(out)
}
