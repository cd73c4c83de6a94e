/*
 * P2 - Board configuration file parser
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

// Package configparser reads a P2 board configuration file: how many
// cogs to bring up, the board clock, and which hub regions preload
// from which file. Grammar and hand-rolled scanning style follow the
// device .cfg parser this module grew from, trimmed to the directives
// a P2 board actually needs.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Load describes one hub-memory preload.
type Load struct {
	HubAddr uint32
	File    string
}

// CogStart describes one cog brought up at boot.
type CogStart struct {
	Index   int
	HubAddr uint32
	Param   uint32
}

// Board is the parsed configuration.
type Board struct {
	Cogs    int
	ClockHz uint64
	Loads   []Load
	Starts  []CogStart
}

type optionLine struct {
	line string
	pos  int
	num  int
}

// Parse reads a board configuration from r.
func Parse(r io.Reader) (*Board, error) {
	b := &Board{Cogs: 8, ClockHz: 180_000_000}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		ol := &optionLine{line: scanner.Text(), num: lineNumber}
		if err := ol.apply(b); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// ParseFile opens name and parses it as a board configuration.
func ParseFile(name string) (*Board, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (ol *optionLine) apply(b *Board) error {
	ol.skipSpace()
	if ol.isEOL() {
		return nil
	}
	name := ol.getName()
	if name == "" {
		return fmt.Errorf("line %d: expected directive name", ol.num)
	}
	switch strings.ToUpper(name) {
	case "COGS":
		n, err := ol.getInt()
		if err != nil {
			return ol.errf(err)
		}
		b.Cogs = n
	case "CLOCK":
		n, err := ol.getInt()
		if err != nil {
			return ol.errf(err)
		}
		b.ClockHz = uint64(n)
	case "LOAD":
		addr, err := ol.getInt()
		if err != nil {
			return ol.errf(err)
		}
		file, ok := ol.getQuoted()
		if !ok {
			return fmt.Errorf("line %d: LOAD requires a quoted file name", ol.num)
		}
		b.Loads = append(b.Loads, Load{HubAddr: uint32(addr), File: file})
	case "START":
		idx, err := ol.getInt()
		if err != nil {
			return ol.errf(err)
		}
		addr, err := ol.getInt()
		if err != nil {
			return ol.errf(err)
		}
		param := 0
		if !ol.isEOL() {
			param, err = ol.getInt()
			if err != nil {
				return ol.errf(err)
			}
		}
		b.Starts = append(b.Starts, CogStart{Index: idx, HubAddr: uint32(addr), Param: uint32(param)})
	default:
		return fmt.Errorf("line %d: unknown directive %q", ol.num, name)
	}
	return nil
}

func (ol *optionLine) errf(err error) error {
	return fmt.Errorf("line %d: %v", ol.num, err)
}

func (ol *optionLine) skipSpace() {
	for ol.pos < len(ol.line) && unicode.IsSpace(rune(ol.line[ol.pos])) {
		ol.pos++
	}
}

func (ol *optionLine) isEOL() bool {
	if ol.pos >= len(ol.line) {
		return true
	}
	return ol.line[ol.pos] == '#'
}

func (ol *optionLine) getName() string {
	ol.skipSpace()
	start := ol.pos
	for ol.pos < len(ol.line) && (unicode.IsLetter(rune(ol.line[ol.pos])) || ol.line[ol.pos] == '_') {
		ol.pos++
	}
	return ol.line[start:ol.pos]
}

func (ol *optionLine) getInt() (int, error) {
	ol.skipSpace()
	start := ol.pos
	if ol.pos < len(ol.line) && (ol.line[ol.pos] == '-' || ol.line[ol.pos] == '+') {
		ol.pos++
	}
	base := 10
	if strings.HasPrefix(ol.line[ol.pos:], "0x") || strings.HasPrefix(ol.line[ol.pos:], "0X") {
		ol.pos += 2
		base = 16
	}
	for ol.pos < len(ol.line) && isBaseDigit(ol.line[ol.pos], base) {
		ol.pos++
	}
	if ol.pos == start {
		return 0, errors.New("expected a number")
	}
	text := ol.line[start:ol.pos]
	if base == 16 {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
		n, err := strconv.ParseUint(text, 16, 32)
		return int(n), err
	}
	n, err := strconv.Atoi(text)
	return n, err
}

func isBaseDigit(b byte, base int) bool {
	if base == 16 {
		return unicode.IsDigit(rune(b)) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
	}
	return unicode.IsDigit(rune(b))
}

func (ol *optionLine) getQuoted() (string, bool) {
	ol.skipSpace()
	if ol.pos >= len(ol.line) || ol.line[ol.pos] != '"' {
		return "", false
	}
	ol.pos++
	start := ol.pos
	for ol.pos < len(ol.line) && ol.line[ol.pos] != '"' {
		ol.pos++
	}
	if ol.pos >= len(ol.line) {
		return "", false
	}
	s := ol.line[start:ol.pos]
	ol.pos++
	return s, true
}
