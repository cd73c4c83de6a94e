/*
	   P2 Assembler Symbol Table

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

// Package symbol is the assembler's name table: case-insensitive
// global names plus scoped local names that reset at the next
// non-local definition.
package symbol

import (
	"fmt"
	"strings"

	"github.com/rcornwell/p2dev/internal/token"
	"github.com/rcornwell/p2dev/internal/value"
)

// Symbol is one name binding.
type Symbol struct {
	Name       string
	Value      value.Value
	DefLine    int
	Local      bool
	Scope      int // index of the enclosing non-local definition
	References []int
}

// Table holds every binding seen by the assembler.
type Table struct {
	global map[string]*Symbol
	local  map[int]map[string]*Symbol // scope -> name -> symbol
	scope  int
	seq    int
}

// New returns an empty table.
func New() *Table {
	return &Table{
		global: make(map[string]*Symbol),
		local:  map[int]map[string]*Symbol{0: {}},
	}
}

func key(name string) string { return strings.ToUpper(name) }

// EnterScope closes the current local scope and starts a new one; call
// this whenever a non-local label or name is defined.
func (t *Table) EnterScope() {
	t.seq++
	t.scope = t.seq
	if t.local[t.scope] == nil {
		t.local[t.scope] = make(map[string]*Symbol)
	}
}

// Define binds name to v at lineno. A word with Kind==token.LocalSymbol
// is local to the current scope; everything else is global and opens a
// new scope for subsequent locals.
func (t *Table) Define(w token.Word, v value.Value, lineno int) (*Symbol, error) {
	k := key(w.Text)
	if w.Kind == token.LocalSymbol {
		tbl := t.local[t.scope]
		if existing, ok := tbl[k]; ok {
			return nil, fmt.Errorf("symbol %s already defined at line %d", w.Text, existing.DefLine)
		}
		sym := &Symbol{Name: w.Text, Value: v, DefLine: lineno, Local: true, Scope: t.scope}
		tbl[k] = sym
		return sym, nil
	}
	if existing, ok := t.global[k]; ok {
		return nil, fmt.Errorf("symbol %s already defined at line %d", w.Text, existing.DefLine)
	}
	sym := &Symbol{Name: w.Text, Value: v, DefLine: lineno}
	t.global[k] = sym
	t.EnterScope()
	return sym, nil
}

// Redefine overwrites an existing global binding in place (used for
// pass-2 re-evaluation and CON-section re-assignable names).
func (t *Table) Redefine(name string, v value.Value) {
	k := key(name)
	if sym, ok := t.global[k]; ok {
		sym.Value = v
		return
	}
	t.global[k] = &Symbol{Name: name, Value: v}
}

// Lookup resolves name, preferring the current local scope, and
// records the reference line. local indicates the word came from a
// token.LocalSymbol.
func (t *Table) Lookup(name string, local bool, lineno int) (*Symbol, bool) {
	k := key(name)
	if local {
		if sym, ok := t.local[t.scope][k]; ok {
			sym.References = append(sym.References, lineno)
			return sym, true
		}
		return nil, false
	}
	if sym, ok := t.global[k]; ok {
		sym.References = append(sym.References, lineno)
		return sym, true
	}
	return nil, false
}

// Reset rewinds scope numbering to the start of a pass, keeping all
// bindings so pass 2 can re-resolve forward references. Resetting seq
// alongside scope matters: pass 2 must reproduce the exact same
// sequence of EnterScope calls pass 1 made so that a local symbol's
// Scope (assigned once, in pass 1) still matches the scope pass 2
// reaches when it revisits the same source line.
func (t *Table) Reset() {
	t.scope = 0
	t.seq = 0
}

// All returns every global symbol, for listing output.
func (t *Table) All() []*Symbol {
	out := make([]*Symbol, 0, len(t.global))
	for _, s := range t.global {
		out = append(out, s)
	}
	return out
}
