package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// LoadTop installs proc as the base frame without starting the dispatch
// loop, letting an interactive caller (cmd/mrvmdbg) single-step it with
// Step rather than running it to completion with Run.
func (s *State) LoadTop(proc *classdef.Proc, self values.Value) {
	ci := s.curCI()
	ci.Proc = proc
	ci.TargetClass = proc.TargetClass
	ci.Acc = -1
	ci.PC = 0

	nregs := 1
	if proc.Body != nil && proc.Body.NRegs > nregs {
		nregs = proc.Body.NRegs
	}
	s.stackExtend(ci.StackIdx, nregs, 1)
	ci.NRegs = nregs
	s.setReg(ci.StackIdx, 0, self)
}

// Step executes exactly one instruction of the currently active frame,
// the debug-stepper analogue of dispatch's inner loop body (spec.md
// §4.1). Returns halted=true once the base frame has returned or an
// unhandled exception has propagated out.
func (s *State) Step() (halted bool, val values.Value, err error) {
	ci := s.curCI()
	irep := ci.Proc.Body
	if ci.PC < 0 || ci.PC >= len(irep.Instructions) {
		return true, values.Nil(), nil
	}
	inst := irep.Instructions[ci.PC]
	ci.PC++
	s.Profiler.Observe(ci.PC - 1)

	arena := s.ArenaSave()
	res, v := s.exec(ci, irep, inst)

	switch res {
	case stepRaised:
		if !s.unwind() {
			if exc := s.CurrentException(); exc != nil {
				return true, values.Nil(), exc
			}
			return true, values.Nil(), nil
		}
		return false, values.Nil(), nil
	case stepHalt:
		return true, v, nil
	default:
		s.ArenaRestore(arena)
		return false, values.Nil(), nil
	}
}

// Depth returns the current call-info stack depth.
func (s *State) Depth() int { return s.ciDepth() }

// CurrentPC returns the active frame's program counter.
func (s *State) CurrentPC() int { return s.curCI().PC }

// RegisterValue reads a register of the active frame, for inspection.
func (s *State) RegisterValue(idx int) values.Value {
	return s.reg(s.curCI().StackIdx, idx)
}
