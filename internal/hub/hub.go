/*
	   P2 Hub

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

// Package hub is the shared P2 hub: 1 MiB of byte-addressable
// memory, the pin/counter/lock/PRNG peripherals every cog shares, the
// delayed-event queue for CORDIC completions, and
// the cooperative round-robin scheduler that steps the eight cogs.
package hub

import (
	"log/slog"
)

// MemSize is the P2 hub RAM size in bytes.
const MemSize = 1 << 20

// NumCogs is the fixed number of cogs on a P2 silicon die.
const NumCogs = 8

const numCogs = NumCogs

// Callback runs when a scheduled event's countdown reaches zero.
type Callback func(cogIndex, arg int)

// event is one node of the delayed-callback list, adapted from the
// teacher's single-linked relative-time event queue.
type event struct {
	time int
	cog  int
	arg  int
	cb   Callback
	next *event
}

// Lock is one of the 16 hub hardware semaphores.
type Lock struct {
	Held     bool
	Owner    int // cog index, valid when Held
	PrevHeld bool // latch captured at the last TRY/NEW edge, for LOCKREL's return
}

// Hub is the state shared by every cog.
type Hub struct {
	Mem      [MemSize]byte
	Dir      uint64
	Out      uint64
	In       uint64
	Counter  uint64
	Locks    [16]Lock
	rngState [2]uint64
	rnd      uint64

	// AtnPending[i] is set by COGATN and consumed by cog i's event poll.
	AtnPending [numCogs]bool

	// SingleSlot models the single-slot hub timing mode: Hubslots
	// returns 0 and memory accesses pay no rotation wait.
	SingleSlot bool

	// Scope MUX state, set by SETSCP: four captured pin numbers and an
	// enable bit (enable-only gating; see DESIGN.md).
	ScopeEnable bool
	ScopePins   [4]int

	events    *event
	cogActive [numCogs]bool
	Cogs      [numCogs]CogRunner

	clock uint64
}

// CogRunner is the subset of internal/cog.Cog the hub needs to drive
// the scheduler, COGINIT and LUT sharing without importing the cog
// package (avoids an import cycle, since cog imports hub).
type CogRunner interface {
	Step(h *Hub) int
	Running() bool
	Start(hubAddr, param uint32)
	Stop()
	LutWrite(addr, v uint32)
}

// New returns a hub with its xoroshiro128+ PRNG seeded to (1,0).
func New() *Hub {
	h := &Hub{}
	h.rngState[0] = 1
	h.rngState[1] = 0
	for i := range h.Locks {
		h.Locks[i].Owner = -1
	}
	return h
}

// LoadImage copies an assembled image into hub RAM at byte offset base.
func (h *Hub) LoadImage(base uint32, image []byte) {
	copy(h.Mem[base:], image)
}

// Schedule adds a delayed callback, time cycles from now, adapted from
// the teacher's relative-time linked event list.
func (h *Hub) Schedule(cogIndex, arg, time int, cb Callback) {
	if time <= 0 {
		cb(cogIndex, arg)
		return
	}
	ev := &event{time: time, cog: cogIndex, arg: arg, cb: cb}
	if h.events == nil {
		h.events = ev
		return
	}
	var prev *event
	cur := h.events
	for cur != nil {
		if ev.time <= cur.time {
			cur.time -= ev.time
			ev.next = cur
			if prev == nil {
				h.events = ev
			} else {
				prev.next = ev
			}
			return
		}
		ev.time -= cur.time
		prev = cur
		cur = cur.next
	}
	prev.next = ev
}

func (h *Hub) advance(cycles int) {
	for h.events != nil && cycles > 0 {
		if h.events.time > cycles {
			h.events.time -= cycles
			return
		}
		cycles -= h.events.time
		ev := h.events
		h.events = ev.next
		ev.cb(ev.cog, ev.arg)
	}
}

// nextRand advances the xoroshiro128+ generator, latching the full
// 64-bit output in rnd and returning its low 32 bits.
func (h *Hub) nextRand() uint32 {
	s0, s1 := h.rngState[0], h.rngState[1]
	result := s0 + s1
	s1 ^= s0
	h.rngState[0] = rotl(s0, 55) ^ s1 ^ (s1 << 14)
	h.rngState[1] = rotl(s1, 36)
	h.rnd = result
	return uint32(result)
}

func rotl(x uint64, k uint) uint64 { return (x << k) | (x >> (64 - k)) }

// Rand returns the next 32-bit hub PRNG value (GETRND source).
func (h *Hub) Rand() uint32 { return h.nextRand() }

// Random returns bit i of the current PRNG output without advancing
// the generator.
func (h *Hub) Random(i int) int { return int(h.rnd >> (uint(i) & 63) & 1) }

// WrDIR sets or clears one bit of the 64-bit DIR mask (port A low 32,
// port B high 32).
func (h *Hub) WrDIR(pin int, bit bool) { h.setBit(&h.Dir, pin, bit) }

// WrOUT sets or clears one bit of the 64-bit OUT mask.
func (h *Hub) WrOUT(pin int, bit bool) { h.setBit(&h.Out, pin, bit) }

func (h *Hub) setBit(reg *uint64, pin int, bit bool) {
	mask := uint64(1) << uint(pin&0x3f)
	if bit {
		*reg |= mask
	} else {
		*reg &^= mask
	}
}

// RdPIN samples pin state: driven pins (DIR=1) read back OUT; floating
// pins read back the externally-driven In register.
func (h *Hub) RdPIN(pin int) bool {
	mask := uint64(1) << uint(pin&0x3f)
	if h.Dir&mask != 0 {
		return h.Out&mask != 0
	}
	return h.In&mask != 0
}

// pinWord returns 32 pins' worth of sampled state starting at base (0
// for PA, 32 for PB): driven pins read OUT, floating pins read In.
func (h *Hub) pinWord(base uint) uint32 {
	dir := uint32(h.Dir >> base)
	out := uint32(h.Out >> base)
	in := uint32(h.In >> base)
	return (dir & out) | (^dir & in)
}

// PA/PB return the low/high 32-bit halves of the pin state, mirroring
// the P2's PA/PB special registers.
func (h *Hub) PA() uint32 { return h.pinWord(0) }
func (h *Hub) PB() uint32 { return h.pinWord(32) }

// Cogindex returns which of the numCogs round-robin slots owns cycle c.
func Cogindex(c uint64) int { return int(c % numCogs) }

// CogIndex returns the slot owner of the hub's current clock, for the
// hub-access rotation-wait formula.
func (h *Hub) CogIndex() int { return Cogindex(h.clock) }

// Hubslots returns the free slot count used by slot-based memory
// timing: 0 in single-slot mode (no rotation wait), numCogs otherwise.
func (h *Hub) Hubslots() int {
	if h.SingleSlot {
		return 0
	}
	return numCogs
}

// CogAtn raises the attention flag of every cog selected by mask
// (COGATN semantics: bit i targets cog i).
func (h *Hub) CogAtn(mask uint32) {
	for i := 0; i < numCogs; i++ {
		if mask&(1<<uint(i)) != 0 {
			h.AtnPending[i] = true
		}
	}
}

// SetScope latches the scope MUX configuration from a SETSCP operand:
// D[5:2] is the base pin of the four captured channels, D[6] enables.
func (h *Hub) SetScope(d uint32) {
	h.ScopeEnable = d&0x40 != 0
	base := int(d >> 2 & 0xf)
	for i := range h.ScopePins {
		h.ScopePins[i] = base + i
	}
}

// Scope returns the SETSCP configuration in its D-operand form, for
// GETSCP.
func (h *Hub) Scope() uint32 {
	v := uint32(h.ScopePins[0]&0xf) << 2
	if h.ScopeEnable {
		v |= 0x40
	}
	return v
}

// anyCogSel is the D-field sentinel (bit 8 of the 9-bit field) COGINIT
// uses to mean "pick the lowest free cog" instead of a specific index.
const anyCogSel = 0x100

// Coginit mirrors the COGINIT instruction: id with its select bit
// set picks the lowest cog that isn't running; otherwise id names the
// cog directly. Returns the started cog's index, or -1 if id named a
// fixed cog that was out of range, or none were free for "any".
func (h *Hub) Coginit(id int, addr uint32, setqParam uint32) int {
	idx := id & 0xf
	if id&anyCogSel != 0 {
		idx = -1
		for i := 0; i < numCogs; i++ {
			if h.Cogs[i] != nil && !h.Cogs[i].Running() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return -1
		}
	}
	if idx < 0 || idx >= numCogs || h.Cogs[idx] == nil {
		return -1
	}
	h.Cogs[idx].Start(addr, setqParam)
	return idx
}

// Run steps the scheduler for cycles hub clocks, giving each cog its
// turn on its round-robin slot, cooperative and single-goroutine like
// the teacher's core.Start loop.
func (h *Hub) Run(cycles int) {
	for i := 0; i < cycles; i++ {
		slot := Cogindex(h.clock)
		if cr := h.Cogs[slot]; cr != nil && cr.Running() {
			spent := cr.Step(h)
			if spent < 1 {
				spent = 1
			}
			h.advance(spent)
		} else {
			h.advance(1)
		}
		h.Counter++
		h.clock++
	}
	slog.Default().Debug("hub run complete", "cycles", cycles)
}

// ReadLong/WriteLong/ReadByte/WriteByte/ReadWord/WriteWord give the cog
// package unaligned little-endian access to hub memory.

func (h *Hub) ReadByte(addr uint32) byte { return h.Mem[addr&(MemSize-1)] }

func (h *Hub) WriteByte(addr uint32, v byte) { h.Mem[addr&(MemSize-1)] = v }

func (h *Hub) ReadWord(addr uint32) uint16 {
	a := addr & (MemSize - 1)
	return uint16(h.Mem[a]) | uint16(h.Mem[a+1])<<8
}

func (h *Hub) WriteWord(addr uint32, v uint16) {
	a := addr & (MemSize - 1)
	h.Mem[a] = byte(v)
	h.Mem[a+1] = byte(v >> 8)
}

func (h *Hub) ReadLong(addr uint32) uint32 {
	a := addr & (MemSize - 1)
	return uint32(h.Mem[a]) | uint32(h.Mem[a+1])<<8 | uint32(h.Mem[a+2])<<16 | uint32(h.Mem[a+3])<<24
}

func (h *Hub) WriteLong(addr uint32, v uint32) {
	a := addr & (MemSize - 1)
	h.Mem[a] = byte(v)
	h.Mem[a+1] = byte(v >> 8)
	h.Mem[a+2] = byte(v >> 16)
	h.Mem[a+3] = byte(v >> 24)
}

// LockNew picks the lowest clear bit of the lock set and acquires it
// for cogIndex (LOCKNEW), returning its index or -1 if all 16 are held.
func (h *Hub) LockNew(cogIndex int) int {
	for i := range h.Locks {
		if !h.Locks[i].Held {
			h.Locks[i].PrevHeld = false
			h.Locks[i].Held = true
			h.Locks[i].Owner = cogIndex
			return i
		}
	}
	return -1
}

// Lockstate reports whether lock id is currently held.
func (h *Hub) Lockstate(id int) bool { return h.Locks[id&0xf].Held }

// LockTry attempts to acquire lock id for cogIndex, latching the prior
// held state so LockRel can report the edge correctly.
func (h *Hub) LockTry(id, cogIndex int) bool {
	l := &h.Locks[id&0xf]
	l.PrevHeld = l.Held
	if l.Held {
		return false
	}
	l.Held = true
	l.Owner = cogIndex
	return true
}

// LockRel releases lock id if cogIndex owns it, returning whether it
// had been held (the latched edge, per original_source's p2hub.cpp).
func (h *Hub) LockRel(id, cogIndex int) bool {
	l := &h.Locks[id&0xf]
	was := l.PrevHeld
	if l.Held && l.Owner == cogIndex {
		l.Held = false
		l.Owner = -1
	}
	l.PrevHeld = l.Held
	return was
}
