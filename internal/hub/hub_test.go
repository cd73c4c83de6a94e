/*
	   P2 Hub Test routines.

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
package hub

import "testing"

// fakeCog is a minimal CogRunner stub so hub tests don't need the real
// internal/cog package (which imports hub; a direct dependency here
// would cycle).
type fakeCog struct {
	running   bool
	steps     int
	cycles    int
	lutWrites int
}

func (f *fakeCog) Step(h *Hub) int { f.steps++; return f.cycles }
func (f *fakeCog) Running() bool   { return f.running }
func (f *fakeCog) Start(hubAddr, param uint32) { f.running = true }
func (f *fakeCog) Stop()                       { f.running = false }
func (f *fakeCog) LutWrite(addr, v uint32)     { f.lutWrites++ }

func TestNewSeedsPRNGAndLocks(t *testing.T) {
	h := New()
	if h.rngState[0] != 1 || h.rngState[1] != 0 {
		t.Errorf("PRNG seed = (%d,%d), want (1,0)", h.rngState[0], h.rngState[1])
	}
	for i, l := range h.Locks {
		if l.Owner != -1 {
			t.Errorf("Locks[%d].Owner = %d, want -1", i, l.Owner)
		}
	}
}

func TestRandIsDeterministic(t *testing.T) {
	a := New()
	b := New()
	for i := 0; i < 8; i++ {
		if got, want := a.Rand(), b.Rand(); got != want {
			t.Errorf("Rand() call %d diverged: %d != %d", i, got, want)
		}
	}
}

func TestScheduleFiresImmediatelyAtZero(t *testing.T) {
	h := New()
	fired := false
	h.Schedule(0, 0, 0, func(cog, arg int) { fired = true })
	if !fired {
		t.Error("Schedule with time<=0 should invoke callback synchronously")
	}
}

func TestScheduleFiresAfterAdvance(t *testing.T) {
	h := New()
	var firedAt = -1
	h.Schedule(1, 42, 8, func(cog, arg int) { firedAt = arg })
	h.advance(4)
	if firedAt != -1 {
		t.Fatal("callback fired before its countdown elapsed")
	}
	h.advance(4)
	if firedAt != 42 {
		t.Errorf("firedAt = %d, want 42", firedAt)
	}
}

func TestScheduleOrdersMultipleEvents(t *testing.T) {
	h := New()
	var order []int
	h.Schedule(0, 1, 10, func(cog, arg int) { order = append(order, arg) })
	h.Schedule(0, 2, 4, func(cog, arg int) { order = append(order, arg) })
	h.advance(10)
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("event order = %v, want [2 1]", order)
	}
}

func TestReadWriteLongLittleEndian(t *testing.T) {
	h := New()
	h.WriteLong(0x100, 0x12345678)
	if got := h.ReadLong(0x100); got != 0x12345678 {
		t.Errorf("ReadLong = %#x, want 0x12345678", got)
	}
	if h.Mem[0x100] != 0x78 || h.Mem[0x103] != 0x12 {
		t.Error("WriteLong did not store little-endian")
	}
}

func TestReadWriteWordAndByte(t *testing.T) {
	h := New()
	h.WriteWord(0x10, 0xBEEF)
	if got := h.ReadWord(0x10); got != 0xBEEF {
		t.Errorf("ReadWord = %#x, want 0xBEEF", got)
	}
	h.WriteByte(0x20, 0x5A)
	if got := h.ReadByte(0x20); got != 0x5A {
		t.Errorf("ReadByte = %#x, want 0x5A", got)
	}
}

func TestPinDrivenVsFloating(t *testing.T) {
	h := New()
	h.WrDIR(0, true)
	h.WrOUT(0, true)
	if !h.RdPIN(0) {
		t.Error("driven pin with OUT=1 should read back 1")
	}
	h.WrOUT(0, false)
	if h.RdPIN(0) {
		t.Error("driven pin with OUT=0 should read back 0")
	}
	h.WrDIR(1, false)
	h.In |= 1 << 1
	if !h.RdPIN(1) {
		t.Error("floating pin should read back In")
	}
}

func TestCoginitFixedCog(t *testing.T) {
	h := New()
	h.Cogs[3] = &fakeCog{}
	idx := h.Coginit(3, 0x1000, 0)
	if idx != 3 {
		t.Errorf("Coginit(fixed) = %d, want 3", idx)
	}
	if !h.Cogs[3].(*fakeCog).running {
		t.Error("fixed Coginit did not start the cog")
	}
}

func TestCoginitAnyFreeCog(t *testing.T) {
	h := New()
	for i := 0; i < numCogs; i++ {
		h.Cogs[i] = &fakeCog{running: i < 2}
	}
	idx := h.Coginit(anyCogSel, 0x1000, 0)
	if idx != 2 {
		t.Errorf("Coginit(any) = %d, want first free index 2", idx)
	}
}

func TestCoginitAnyNoneFree(t *testing.T) {
	h := New()
	for i := 0; i < numCogs; i++ {
		h.Cogs[i] = &fakeCog{running: true}
	}
	if idx := h.Coginit(anyCogSel, 0, 0); idx != -1 {
		t.Errorf("Coginit(any, none free) = %d, want -1", idx)
	}
}

func TestRunDrivesRoundRobinSlot(t *testing.T) {
	h := New()
	c0 := &fakeCog{running: true, cycles: 1}
	h.Cogs[0] = c0
	h.Run(numCogs * 3)
	if c0.steps != 3 {
		t.Errorf("cog 0 stepped %d times in %d cycles, want 3", c0.steps, numCogs*3)
	}
}

func TestLockNewAcquiresLowestFree(t *testing.T) {
	h := New()
	id := h.LockNew(2)
	if id != 0 {
		t.Errorf("LockNew = %d, want 0", id)
	}
	if !h.Lockstate(0) {
		t.Error("lock 0 should be held after LockNew")
	}
}

func TestLockTryAndRelEdge(t *testing.T) {
	h := New()
	if !h.LockTry(5, 1) {
		t.Fatal("first LockTry on a free lock should succeed")
	}
	if h.LockTry(5, 2) {
		t.Error("LockTry on an already-held lock should fail")
	}
	if !h.LockRel(5, 1) {
		t.Error("LockRel should report the previously-held edge as true")
	}
	if h.Lockstate(5) {
		t.Error("lock should be free after LockRel")
	}
}

func TestLockRelWrongOwnerDoesNotRelease(t *testing.T) {
	h := New()
	h.LockTry(0, 1)
	h.LockRel(0, 2)
	if !h.Lockstate(0) {
		t.Error("LockRel by a non-owner should not release the lock")
	}
}

func TestRandomSamplesLatchedOutput(t *testing.T) {
	h := New()
	v := h.Rand()
	for i := 0; i < 32; i++ {
		want := int(v >> uint(i) & 1)
		if got := h.Random(i); got != want {
			t.Errorf("Random(%d) = %d, want bit %d of the latched draw", i, got, want)
		}
	}
}

func TestCogAtnTargetsMaskedCogs(t *testing.T) {
	h := New()
	h.CogAtn(0b0101)
	for i := 0; i < numCogs; i++ {
		want := i == 0 || i == 2
		if h.AtnPending[i] != want {
			t.Errorf("AtnPending[%d] = %v, want %v", i, h.AtnPending[i], want)
		}
	}
}

func TestHubslotsSingleSlotMode(t *testing.T) {
	h := New()
	if h.Hubslots() != numCogs {
		t.Errorf("Hubslots = %d, want %d", h.Hubslots(), numCogs)
	}
	h.SingleSlot = true
	if h.Hubslots() != 0 {
		t.Error("Hubslots should return 0 in single-slot mode")
	}
}

func TestCogIndexTracksRunClock(t *testing.T) {
	h := New()
	if h.CogIndex() != 0 {
		t.Fatalf("CogIndex at rest = %d, want 0", h.CogIndex())
	}
	h.Run(3)
	if h.CogIndex() != 3 {
		t.Errorf("CogIndex after 3 cycles = %d, want 3", h.CogIndex())
	}
}

func TestSetScopeRoundTrip(t *testing.T) {
	h := New()
	h.SetScope(0x40 | 5<<2)
	if !h.ScopeEnable {
		t.Error("SetScope with bit 6 set should enable the scope")
	}
	if h.ScopePins[0] != 5 || h.ScopePins[3] != 8 {
		t.Errorf("ScopePins = %v, want base 5 ramp", h.ScopePins)
	}
	if h.Scope() != 0x40|5<<2 {
		t.Errorf("Scope() = %#x, want %#x", h.Scope(), 0x40|5<<2)
	}
	h.SetScope(5 << 2)
	if h.ScopeEnable {
		t.Error("SetScope without bit 6 should disable the scope")
	}
}

func TestRunCounterAdvancesPerSlot(t *testing.T) {
	h := New()
	h.Run(10)
	if h.Counter != 10 {
		t.Errorf("Counter = %d, want 10", h.Counter)
	}
}
