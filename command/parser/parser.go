/*
 * P2 - Debug console command parser.
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

// Package parser is the interactive debug console's command grammar:
// pc, cog, lut, mem, reg, flags, step, run, break, quit. Commands may
// be abbreviated to a prefix no shorter than each verb's minimum
// length; the verb set is fixed.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rcornwell/p2dev/internal/cog"
	"github.com/rcornwell/p2dev/internal/disassemble"
	"github.com/rcornwell/p2dev/internal/hub"
	"github.com/rcornwell/p2dev/internal/valfmt"
	"github.com/rcornwell/p2dev/internal/value"
)

// Console holds the state the debug commands act on.
type Console struct {
	Hub         *hub.Hub
	Cogs        []*cog.Cog
	Cur         int
	Breakpoints map[uint32]bool
}

// New returns a console driving the given hub and cog set.
func New(h *hub.Hub, cogs []*cog.Cog) *Console {
	return &Console{Hub: h, Cogs: cogs, Breakpoints: map[uint32]bool{}}
}

type cmdLine struct {
	line string
	pos  int
}

type cmdDef struct {
	name    string
	min     int
	process func(*Console, *cmdLine) (bool, error)
}

var cmdList = []cmdDef{
	{"cog", 3, cmdCog},
	{"pc", 2, cmdPC},
	{"reg", 3, cmdReg},
	{"lut", 3, cmdLut},
	{"mem", 3, cmdMem},
	{"flags", 2, cmdFlags},
	{"step", 4, cmdStep},
	{"run", 3, cmdRun},
	{"break", 5, cmdBreak},
	{"quit", 4, cmdQuit},
}

// flagNames orders the event/interrupt flag bits for the flags command.
var flagNames = []struct {
	bit  uint32
	name string
}{
	{cog.FlagInt, "INT"}, {cog.FlagCT1, "CT1"}, {cog.FlagCT2, "CT2"},
	{cog.FlagCT3, "CT3"}, {cog.FlagSE1, "SE1"}, {cog.FlagSE2, "SE2"},
	{cog.FlagSE3, "SE3"}, {cog.FlagSE4, "SE4"}, {cog.FlagPat, "PAT"},
	{cog.FlagAtn, "ATN"}, {cog.FlagQmt, "QMT"},
}

// Process dispatches one console command line.
func (c *Console) Process(line string) (bool, error) {
	cl := &cmdLine{line: line}
	name := cl.getWord()
	if name == "" {
		return false, nil
	}
	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(c, cl)
}

// CompleteCmd returns the command names a partial line could complete to.
func CompleteCmd(line string) []string {
	cl := &cmdLine{line: line}
	name := strings.ToLower(cl.getWord())
	var out []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, name) {
			out = append(out, m.name)
		}
	}
	return out
}

func matchList(name string) []cmdDef {
	name = strings.ToLower(name)
	var out []cmdDef
	for _, m := range cmdList {
		if matchPrefix(m, name) {
			out = append(out, m)
		}
	}
	return out
}

func matchPrefix(m cmdDef, name string) bool {
	if len(name) < m.min || len(name) > len(m.name) {
		return false
	}
	return m.name[:len(name)] == name
}

func (cl *cmdLine) skipSpace() {
	for cl.pos < len(cl.line) && unicode.IsSpace(rune(cl.line[cl.pos])) {
		cl.pos++
	}
}

func (cl *cmdLine) isEOL() bool { return cl.pos >= len(cl.line) }

func (cl *cmdLine) getWord() string {
	cl.skipSpace()
	start := cl.pos
	for cl.pos < len(cl.line) && !unicode.IsSpace(rune(cl.line[cl.pos])) {
		cl.pos++
	}
	return cl.line[start:cl.pos]
}

func (cl *cmdLine) getHex() (uint32, bool) {
	w := cl.getWord()
	if w == "" {
		return 0, false
	}
	w = strings.TrimPrefix(strings.TrimPrefix(w, "$"), "0x")
	n, err := strconv.ParseUint(w, 16, 32)
	return uint32(n), err == nil
}

func (cl *cmdLine) getDec(def int) int {
	w := cl.getWord()
	if w == "" {
		return def
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return def
	}
	return n
}

func cmdCog(c *Console, cl *cmdLine) (bool, error) {
	if n, ok := cl.getHex(); ok {
		if int(n) >= len(c.Cogs) {
			return false, fmt.Errorf("no such cog %d", n)
		}
		c.Cur = int(n)
	}
	fmt.Printf("cog %d selected\n", c.Cur)
	return false, nil
}

func (c *Console) cur() *cog.Cog { return c.Cogs[c.Cur] }

func cmdPC(c *Console, cl *cmdLine) (bool, error) {
	cg := c.cur()
	if n, ok := cl.getHex(); ok {
		cg.PC = n
	}
	fmt.Println(valfmt.Hex(value.NewLong(cg.PC)))
	return false, nil
}

func cmdReg(c *Console, cl *cmdLine) (bool, error) {
	cg := c.cur()
	if n, ok := cl.getHex(); ok {
		fmt.Printf("reg %s = %s\n", valfmt.Hex(value.NewLong(n)), valfmt.Hex(value.NewLong(cg.Ram[n&0x1ff])))
		return false, nil
	}
	fmt.Printf("C=%v Z=%v PC=%s\n", cg.C, cg.Z, valfmt.Hex(value.NewLong(cg.PC)))
	return false, nil
}

func cmdLut(c *Console, cl *cmdLine) (bool, error) {
	cg := c.cur()
	addr, _ := cl.getHex()
	count := cl.getDec(1)
	for i := 0; i < count; i++ {
		idx := (addr + uint32(i)) & 0x1ff
		fmt.Printf("%s: %s\n", valfmt.Hex(value.NewLong(idx)), valfmt.Hex(value.NewLong(cg.LutRam[idx])))
	}
	return false, nil
}

func cmdMem(c *Console, cl *cmdLine) (bool, error) {
	addr, _ := cl.getHex()
	count := cl.getDec(1)
	for i := 0; i < count; i++ {
		a := addr + uint32(i)*4
		v := c.Hub.ReadLong(a)
		fmt.Printf("%s: %s  %s\n", valfmt.Hex(value.NewLong(a)), valfmt.Hex(value.NewLong(v)), disassemble.Decode(v, a/4, 0, false).Text())
	}
	return false, nil
}

func cmdFlags(c *Console, _ *cmdLine) (bool, error) {
	cg := c.cur()
	fmt.Printf("C=%v Z=%v flags=%s", cg.RdC(), cg.RdZ(), valfmt.Hex(value.NewLong(cg.RdFlags())))
	for _, f := range flagNames {
		if cg.RdFlags()&f.bit != 0 {
			fmt.Printf(" %s", f.name)
		}
	}
	fmt.Println()
	return false, nil
}

func cmdStep(c *Console, cl *cmdLine) (bool, error) {
	n := cl.getDec(1)
	for i := 0; i < n; i++ {
		c.cur().Step(c.Hub)
	}
	fmt.Println("pc=" + valfmt.Hex(value.NewLong(c.cur().PC)))
	return false, nil
}

func cmdRun(c *Console, _ *cmdLine) (bool, error) {
	for {
		any := false
		for _, cg := range c.Cogs {
			if !cg.Running() {
				continue
			}
			any = true
			if c.Breakpoints[cg.PC] {
				fmt.Printf("breakpoint hit at %s\n", valfmt.Hex(value.NewLong(cg.PC)))
				return false, nil
			}
			cg.Step(c.Hub)
		}
		if !any {
			fmt.Println("all cogs halted")
			return false, nil
		}
	}
}

func cmdBreak(c *Console, cl *cmdLine) (bool, error) {
	addr, ok := cl.getHex()
	if !ok {
		return false, errors.New("break requires an address")
	}
	if c.Breakpoints[addr] {
		delete(c.Breakpoints, addr)
		fmt.Println("breakpoint cleared")
		return false, nil
	}
	c.Breakpoints[addr] = true
	fmt.Println("breakpoint set")
	return false, nil
}

func cmdQuit(_ *Console, _ *cmdLine) (bool, error) { return true, nil }
