package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// opSend implements SEND/FSEND/VSEND (and, when tail is true, TAILCALL)
// per spec.md §4.2: resolve the method against class_of(receiver),
// falling back to method_missing with the original symbol prepended,
// then hand off to invoke.
func (s *State) opSend(ci *CallInfo, inst opcodes.Instruction, tail bool) (stepResult, values.Value) {
	base := ci.StackIdx
	a := int(inst.A)
	mid := ci.Proc.Body.Syms[inst.B]
	argc := int(inst.C)
	recv := s.reg(base, a)

	cls := s.Services.ClassOf(recv)
	proc, target := classdef.MethodSearch(cls, mid)
	if proc == nil {
		mmSym := s.Services.Symbols.Intern("method_missing")
		mmProc, mmTarget := classdef.MethodSearch(cls, mmSym)
		if mmProc == nil {
			s.raiseNoMethodError("undefined method '%s' for %s", s.Services.Symbols.Name(mid), cls.Name)
			return stepRaised, values.Nil()
		}
		argc = s.prependMissingName(base, a, argc, mid)
		proc, target, mid = mmProc, mmTarget, mmSym
	}
	return s.invoke(ci, base, a, mid, proc, target, argc, tail)
}

// opSuper implements SUPER: SEND with the receiver fixed to R[0], method
// search starting at the current method's target_class.super, and mid
// inherited from the current CallInfo (spec.md §4.2).
func (s *State) opSuper(ci *CallInfo, inst opcodes.Instruction) (stepResult, values.Value) {
	base := ci.StackIdx
	a := int(inst.A)
	argc := int(inst.C)
	if ci.TargetClass == nil || ci.TargetClass.Super == nil {
		s.raiseNoMethodError("super called outside of method")
		return stepRaised, values.Nil()
	}
	mid := ci.MID
	proc, target := classdef.MethodSearch(ci.TargetClass.Super, mid)
	if proc == nil {
		s.raiseNoMethodError("no superclass method '%s'", s.Services.Symbols.Name(mid))
		return stepRaised, values.Nil()
	}
	s.setReg(base, a, s.reg(base, 0))
	return s.invoke(ci, base, a, mid, proc, target, argc, false)
}

// opCall implements CALL: invoke a captured Proc already sitting in
// self, replacing the current frame's proc/target_class and re-entering
// the callable's irep with self restored from its captured environment
// (spec.md §4.2).
func (s *State) opCall(ci *CallInfo, inst opcodes.Instruction) (stepResult, values.Value) {
	base := ci.StackIdx
	self := s.reg(base, 0)
	proc, ok := self.Ref().(*classdef.Proc)
	if !ok {
		s.raiseTypeError("CALL target is not a Proc")
		return stepRaised, values.Nil()
	}

	ci.Proc = proc
	ci.TargetClass = proc.TargetClass
	if proc.Env != nil {
		// Unconditionally restore self from the captured environment's
		// own R0 (source: `regs[0] = m->env->stack[0];`, vm.c:775) — this
		// frame's R0 currently holds the Proc object itself (read as
		// `self` above), not the lexical self the closure was captured
		// with. Resolved through envStack rather than a cached slice, so
		// this is correct even when Env.Base names a frame other than
		// the current one.
		if home := s.envStack(proc.Env); len(home) > 0 {
			s.setReg(base, 0, home[0])
		}
	}
	if proc.Kind == classdef.ProcCFunc {
		val, err := proc.CFn(s, self, nil)
		return s.finishCFuncInPlace(ci, val, err)
	}
	ci.PC = 0
	nregs := proc.Body.NRegs
	s.stackExtend(base, nregs, ci.NRegs)
	if nregs > ci.NRegs {
		ci.NRegs = nregs
	}
	return stepContinue, values.Nil()
}

// prependMissingName shifts the argument window (and trailing block
// slot) up by one register and writes mid's symbol into the new first
// argument slot, implementing method_missing's "original symbol
// prepended to the argument list" (spec.md §4.2). Returns the new argc.
func (s *State) prependMissingName(base, a, argc int, mid values.SymbolID) int {
	if argc == opcodes.CallMaxArgs {
		if arr, ok := s.reg(base, a+1).Ref().(*values.Array); ok {
			arr.Elems = append([]values.Value{values.Sym(mid)}, arr.Elems...)
		}
		return argc
	}
	s.stackExtend(base, a+argc+3, a+argc+2)
	for i := argc + 1; i >= 1; i-- {
		s.setReg(base, a+i+1, s.reg(base, a+i))
	}
	s.setReg(base, a+1, values.Sym(mid))
	return argc + 1
}

// invoke implements SEND/TAILCALL/SUPER/EXEC's common call machinery:
// push (or, for a tail call, reuse) a CallInfo, shift the register
// window so the callee sees its receiver at R[0], and either run a
// C-function to completion or switch the dispatch loop onto the
// callee's irep (spec.md §4.2 steps 2-5).
func (s *State) invoke(ci *CallInfo, base, a int, mid values.SymbolID, proc *classdef.Proc, target *classdef.Class, argc int, tail bool) (stepResult, values.Value) {
	storedArgc := argc
	packed := argc == opcodes.CallMaxArgs
	if packed {
		storedArgc = -1
	}
	calleeBase := base + a

	if proc.Kind == classdef.ProcCFunc {
		self := s.reg(base, a)
		args := s.gatherArgs(base, a, argc, packed)
		val, err := proc.CFn(s, self, args)
		if err != nil {
			s.ensureExceptionFromErr(err)
			return stepRaised, values.Nil()
		}
		if tail {
			return stepHalt, val
		}
		s.setReg(base, a, val)
		return stepContinue, values.Nil()
	}

	if tail {
		width := argc + 2
		if packed {
			width = 3
		}
		for i := 0; i < width; i++ {
			s.setReg(base, i, s.reg(calleeBase, i))
		}
		ci.Proc = proc
		ci.TargetClass = target
		ci.MID = mid
		ci.ArgC = storedArgc
		ci.PC = 0
		nregs := 3
		if proc.Body != nil && proc.Body.NRegs > nregs {
			nregs = proc.Body.NRegs
		}
		s.stackExtend(base, nregs, width)
		if nregs > ci.NRegs {
			ci.NRegs = nregs
		}
		return stepContinue, values.Nil()
	}

	idx := s.pushCallInfo()
	callee := s.ciAt(idx)
	callee.MID = mid
	callee.Proc = proc
	callee.TargetClass = target
	callee.StackIdx = calleeBase
	callee.ArgC = storedArgc
	callee.Acc = a
	callee.PC = 0
	callee.Env = nil

	nregs := 3
	if proc.Body != nil && proc.Body.NRegs > nregs {
		nregs = proc.Body.NRegs
	}
	keep := argc + 2
	if packed && keep < 3 {
		keep = 3
	}
	s.stackExtend(calleeBase, nregs, keep)
	callee.NRegs = nregs

	return stepContinue, values.Nil()
}

// gatherArgs materializes the argument slice a CFunc receives, handling
// both the inline (argc <= CallMaxArgs) and packed-array forms.
func (s *State) gatherArgs(base, a, argc int, packed bool) []values.Value {
	if packed {
		if arr, ok := s.reg(base, a+1).Ref().(*values.Array); ok {
			return arr.Elems
		}
		return nil
	}
	args := make([]values.Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = s.reg(base, a+1+i)
	}
	return args
}

func (s *State) ensureExceptionFromErr(err error) {
	if err == nil {
		return
	}
	if exc, ok := err.(*values.Exception); ok {
		s.setException(exc)
		return
	}
	s.setException(&values.Exception{ClassName: "RuntimeError", Message: err.Error()})
}

// finishCFuncInPlace is CALL's C-function path: the current frame
// itself was repurposed (not a new one pushed), so completion just
// means treating the C-function's return like an ordinary RETURN
// R_NORMAL from this frame.
func (s *State) finishCFuncInPlace(ci *CallInfo, val values.Value, err error) (stepResult, values.Value) {
	if err != nil {
		s.ensureExceptionFromErr(err)
		return stepRaised, values.Nil()
	}
	s.finishFrame(ci)
	acc := ci.Acc
	s.popCallInfo()
	if acc < 0 {
		return stepHalt, val
	}
	caller := s.curCI()
	s.setReg(caller.StackIdx, acc, val)
	return stepContinue, val
}

// opExec implements EXEC: a specialized SEND that runs a class/module
// body with R[0] = receiver and target_class = the receiver's class
// (spec.md §4.7).
func (s *State) opExec(ci *CallInfo, inst opcodes.Instruction) (stepResult, values.Value) {
	base := ci.StackIdx
	a := int(inst.A)
	recvVal := s.reg(base, a)
	relIdx := int(inst.Bx())

	cls, ok := recvVal.Ref().(*classdef.Class)
	if !ok {
		cls = s.Services.ClassOf(recvVal)
	}
	body := ci.Proc.Body.Child(relIdx)
	proc := classdef.NewBytecodeProc(body, cls, false)

	idx := s.pushCallInfo()
	callee := s.ciAt(idx)
	callee.Proc = proc
	callee.TargetClass = cls
	callee.StackIdx = base + a
	callee.Acc = a
	callee.PC = 0
	callee.ArgC = 0
	nregs := 1
	if body != nil && body.NRegs > nregs {
		nregs = body.NRegs
	}
	s.stackExtend(callee.StackIdx, nregs, 1)
	callee.NRegs = nregs
	s.setReg(callee.StackIdx, 0, recvVal)
	return stepContinue, values.Nil()
}

// opArgAry implements ARGARY: builds the argument array a *args splat
// parameter refers to, reading it either from the current frame's own
// bound rest/post registers (lv == 0) or from an ancestor environment's
// frame (lv levels up the upvalue chain), per the bit layout recovered
// from the reference vm.c (spec.md §C).
func (s *State) opArgAry(ci *CallInfo, inst opcodes.Instruction) {
	spec := opcodes.DecodeArgAry(inst.Bx())
	base := ci.StackIdx
	nregs := ci.NRegs

	if spec.LV == 0 {
		s.setReg(base, int(inst.A), s.buildArgAry(base, nregs, spec))
		return
	}
	env := s.envAt(ci, int(spec.LV))
	if env == nil || !env.Live() {
		s.setReg(base, int(inst.A), values.Object(values.NewArray()))
		return
	}
	s.setReg(base, int(inst.A), s.buildArgAryFromSlice(s.envStack(env), env.Len, spec))
}

func (s *State) buildArgAry(base, nregs int, spec opcodes.ArgArySpec) values.Value {
	return s.buildArgAryFromSlice(s.regs(base), nregs, spec)
}

func (s *State) buildArgAryFromSlice(regs []values.Value, nregs int, spec opcodes.ArgArySpec) values.Value {
	m1 := int(spec.M1)
	m2 := int(spec.M2)
	elems := make([]values.Value, 0, m1+m2+1)
	for i := 0; i < m1 && 1+i < len(regs); i++ {
		elems = append(elems, regs[1+i])
	}
	if spec.R {
		restIdx := 1 + m1
		if restIdx < len(regs) {
			if arr, ok := regs[restIdx].Ref().(*values.Array); ok {
				elems = append(elems, arr.Elems...)
			}
		}
	}
	postBase := 1 + m1
	if spec.R {
		postBase++
	}
	for i := 0; i < m2 && postBase+i < len(regs); i++ {
		elems = append(elems, regs[postBase+i])
	}
	return values.Object(values.NewArray(elems...))
}

// opBlkPush implements BLKPUSH: fetches the block argument via the same
// ARGARY-style bit layout, placing it in A rather than building an
// array from the splat positions.
func (s *State) opBlkPush(ci *CallInfo, inst opcodes.Instruction) {
	spec := opcodes.DecodeArgAry(inst.Bx())
	base := ci.StackIdx
	blockIdx := 1 + int(spec.M1) + int(spec.M2)
	if spec.R {
		blockIdx++
	}
	if spec.LV == 0 {
		s.setReg(base, int(inst.A), s.reg(base, blockIdx))
		return
	}
	env := s.envAt(ci, int(spec.LV))
	if env == nil || !env.Live() {
		s.setReg(base, int(inst.A), values.Nil())
		return
	}
	home := s.envStack(env)
	if blockIdx >= len(home) {
		s.setReg(base, int(inst.A), values.Nil())
		return
	}
	s.setReg(base, int(inst.A), home[blockIdx])
}
