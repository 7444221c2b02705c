// Package classdef provides the concrete default implementation of the
// external services spec.md §6.5 describes as opaque collaborators: the
// class system, symbol-addressed variable tables, and the irep/proc
// record types the dispatch loop in package vm executes against. Built-in
// class libraries (string/array/hash methods, etc.) remain out of scope
// per spec.md §1; this package only supplies enough class-system and
// variable-table machinery for the VM core to be runnable and testable
// on its own, grounded on the teacher's registry package (compiled-unit
// records keyed by name/symbol, map-based method/property tables).
package classdef

import (
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// Irep is the immutable compiled-procedure-body record from spec.md §3:
// instruction sequence, literal pool, symbol table, register count, and
// its position within the owning irep table (used to resolve nested
// ireps by relative index, e.g. LAMBDA's SEQ[idx+b]).
type Irep struct {
	Instructions []opcodes.Instruction
	Pool         []values.Value
	Syms         []values.SymbolID
	NRegs        int
	Idx          int
	Table        *IrepTable
}

// Child resolves a nested irep by the relative index LAMBDA/EPUSH encode
// (spec.md §4.2, §4.7: "index identifying its position in the owning
// irep table, used to resolve nested ireps by relative index").
func (ir *Irep) Child(relIdx int) *Irep {
	if ir.Table == nil {
		return nil
	}
	return ir.Table.Get(ir.Idx + relIdx)
}

// IrepTable is the flat table of all ireps compiled together, the Go
// analogue of mruby's mrb->irep array indexed by irep->idx+Bx.
type IrepTable struct {
	ireps []*Irep
}

func NewIrepTable() *IrepTable { return &IrepTable{} }

// Add appends ir to the table, stamping its Idx and Table fields, and
// returns the assigned index.
func (t *IrepTable) Add(ir *Irep) int {
	ir.Idx = len(t.ireps)
	ir.Table = t
	t.ireps = append(t.ireps, ir)
	return ir.Idx
}

func (t *IrepTable) Get(idx int) *Irep {
	if idx < 0 || idx >= len(t.ireps) {
		return nil
	}
	return t.ireps[idx]
}
