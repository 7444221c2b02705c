package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// invokeProc runs proc against self/args/block to completion and
// returns its result, re-entering the dispatch loop for a bytecode body
// or calling straight through for a C-function one (spec.md §5: "an
// operation 'suspends' only when a C-function reenters the VM via
// funcall"). Used for ensure/EPOP invocation and as Funcall's call
// machinery.
func (s *State) invokeProc(proc *classdef.Proc, self values.Value, args []values.Value, block values.Value) (values.Value, error) {
	if proc == nil {
		return values.Nil(), nil
	}
	if proc.Kind == classdef.ProcCFunc {
		val, err := proc.CFn(s, self, args)
		if err != nil {
			return values.Nil(), err
		}
		return val, nil
	}

	parent := s.curCI()
	top := parent.StackIdx + parent.NRegs

	idx := s.pushCallInfo()
	callee := s.ciAt(idx)
	callee.Proc = proc
	callee.TargetClass = proc.TargetClass
	callee.StackIdx = top
	callee.Acc = -1
	callee.PC = 0
	callee.ArgC = len(args)
	callee.Env = nil

	nregs := 3
	if proc.Body != nil && proc.Body.NRegs > nregs {
		nregs = proc.Body.NRegs
	}
	width := len(args) + 2
	if width > nregs {
		nregs = width
	}
	s.stackExtend(top, nregs, width)
	callee.NRegs = nregs

	s.setReg(top, 0, self)
	for i, v := range args {
		s.setReg(top, 1+i, v)
	}
	s.setReg(top, len(args)+1, block)

	entryDepth := s.ciDepth()
	val, err := s.dispatch(entryDepth)
	if err != nil {
		return values.Nil(), err
	}
	if exc := s.CurrentException(); exc != nil {
		s.clearException()
		return values.Nil(), exc
	}
	return val, nil
}

// Funcall implements classdef.Invoker: method resolution plus
// method_missing fallback, the same protocol SEND uses, so a CFunc can
// re-enter the VM to call back into user-level methods (spec.md §6.5
// "funcall(receiver, symbol, args)").
func (s *State) Funcall(self values.Value, mid values.SymbolID, args []values.Value, block values.Value) (values.Value, error) {
	cls := s.Services.ClassOf(self)
	proc, _ := classdef.MethodSearch(cls, mid)
	if proc == nil {
		mmSym := s.Services.Symbols.Intern("method_missing")
		mmProc, _ := classdef.MethodSearch(cls, mmSym)
		if mmProc == nil {
			return values.Nil(), s.raiseNoMethodError("undefined method '%s' for %s", s.Services.Symbols.Name(mid), cls.Name)
		}
		withName := make([]values.Value, 0, len(args)+1)
		withName = append(withName, values.Sym(mid))
		withName = append(withName, args...)
		return s.invokeProc(mmProc, self, withName, block)
	}
	return s.invokeProc(proc, self, args, block)
}
