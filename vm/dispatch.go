package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// stepResult tells dispatch what to do after one instruction: keep
// looping, unwind to an exception handler, or stop and hand back a
// value (spec.md §4.1's three exit conditions).
type stepResult int

const (
	stepContinue stepResult = iota
	stepHalt
	stepRaised
)

// Run implements spec.md §4.1's run(proc, self) entry point: install
// proc as the base frame, extend the stack for its register count, and
// dispatch until STOP, an unhandled exception, or a RETURN unwinds past
// the base call-info entry.
func (s *State) Run(proc *classdef.Proc, self values.Value) (values.Value, error) {
	ci := s.curCI()
	ci.Proc = proc
	ci.TargetClass = proc.TargetClass
	ci.Acc = -1
	ci.PC = 0

	if proc.Kind == classdef.ProcCFunc {
		val, err := proc.CFn(s, self, nil)
		if err != nil {
			return values.Nil(), err
		}
		return val, nil
	}

	nregs := 1
	if proc.Body != nil && proc.Body.NRegs > nregs {
		nregs = proc.Body.NRegs
	}
	s.stackExtend(ci.StackIdx, nregs, 1)
	ci.NRegs = nregs
	s.setReg(ci.StackIdx, 0, self)

	return s.dispatch(s.ciDepth())
}

// dispatch is the instruction loop (spec.md §4.1). entryDepth is the
// call-info depth Run started at; a RETURN that pops below it means the
// base frame itself has unwound.
func (s *State) dispatch(entryDepth int) (values.Value, error) {
	for {
		ci := s.curCI()
		irep := ci.Proc.Body
		if ci.PC < 0 || ci.PC >= len(irep.Instructions) {
			return values.Nil(), nil
		}
		inst := irep.Instructions[ci.PC]
		ci.PC++
		s.Profiler.Observe(ci.PC - 1)

		arena := s.ArenaSave()
		res, val := s.exec(ci, irep, inst)

		switch res {
		case stepRaised:
			if !s.unwind() {
				exc := s.CurrentException()
				if exc != nil {
					return values.Nil(), exc
				}
				return values.Nil(), nil
			}
		case stepHalt:
			return val, nil
		default:
			s.ArenaRestore(arena)
		}

		// A nested invocation (CALL, an ensure proc, a method_missing
		// dispatch, ...) may have unwound past the frame this dispatch
		// call started at — e.g. an exception with no handler below it
		// landed in an ancestor's rescue, or a non-local return/break
		// targeted an enclosing frame. Either way, control now belongs to
		// whichever outer dispatch() call owns that frame.
		if s.ciDepth() < entryDepth {
			return val, nil
		}
	}
}

// exec decodes and runs a single instruction against the given frame.
func (s *State) exec(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) (stepResult, values.Value) {
	base := ci.StackIdx

	switch inst.Op {
	case opcodes.OP_NOP:

	case opcodes.OP_MOVE:
		s.setReg(base, int(inst.A), s.reg(base, int(inst.B)))

	case opcodes.OP_LOADL:
		s.setReg(base, int(inst.A), irep.Pool[inst.Bx()])

	case opcodes.OP_LOADI:
		s.setReg(base, int(inst.A), values.Fixnum(int64(inst.B)))

	case opcodes.OP_LOADSYM:
		s.setReg(base, int(inst.A), values.Sym(irep.Syms[inst.Bx()]))

	case opcodes.OP_LOADNIL:
		s.setReg(base, int(inst.A), values.Nil())

	case opcodes.OP_LOADSELF:
		s.setReg(base, int(inst.A), s.reg(base, 0))

	case opcodes.OP_LOADT:
		s.setReg(base, int(inst.A), values.True())

	case opcodes.OP_LOADF:
		s.setReg(base, int(inst.A), values.False())

	case opcodes.OP_GETGLOBAL:
		v, _ := s.Services.Global(irep.Syms[inst.Bx()])
		s.setReg(base, int(inst.A), v)

	case opcodes.OP_SETGLOBAL:
		s.Services.SetGlobal(irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETSPECIAL:
		v, _ := s.Services.Special(irep.Syms[inst.Bx()])
		s.setReg(base, int(inst.A), v)

	case opcodes.OP_SETSPECIAL:
		s.Services.SetSpecial(irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETIV:
		s.setReg(base, int(inst.A), s.getIVar(ci, irep.Syms[inst.Bx()]))

	case opcodes.OP_SETIV:
		s.setIVar(ci, irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETCV:
		v, _ := classdef.CVarGet(ci.TargetClass, irep.Syms[inst.Bx()])
		s.setReg(base, int(inst.A), v)

	case opcodes.OP_SETCV:
		classdef.CVarSet(ci.TargetClass, irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETCONST:
		v, _ := classdef.ConstGet(ci.TargetClass, irep.Syms[inst.Bx()])
		s.setReg(base, int(inst.A), v)

	case opcodes.OP_SETCONST:
		classdef.ConstSet(ci.TargetClass, irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETMCNST:
		recvCls := s.classFromReg(base, int(inst.A))
		v, _ := classdef.ConstGet(recvCls, irep.Syms[inst.Bx()])
		s.setReg(base, int(inst.A), v)

	case opcodes.OP_SETMCNST:
		recvCls := s.classFromReg(base, int(inst.A)+1)
		classdef.ConstSet(recvCls, irep.Syms[inst.Bx()], s.reg(base, int(inst.A)))

	case opcodes.OP_GETUPVAR:
		s.setReg(base, int(inst.A), s.getUpvar(ci, int(inst.B), int(inst.C)))

	case opcodes.OP_SETUPVAR:
		s.setUpvar(ci, int(inst.B), int(inst.C), s.reg(base, int(inst.A)))

	case opcodes.OP_JMP:
		ci.PC += int(inst.SBx())

	case opcodes.OP_JMPIF:
		if s.reg(base, int(inst.A)).Truthy() {
			ci.PC += int(inst.SBx())
		}

	case opcodes.OP_JMPNOT:
		if !s.reg(base, int(inst.A)).Truthy() {
			ci.PC += int(inst.SBx())
		}

	case opcodes.OP_ONERR:
		s.pushRescue(ci.PC + int(inst.SBx()))
		ci.RIdx++

	case opcodes.OP_RESCUE:
		return s.opRescue(ci, inst)

	case opcodes.OP_POPERR:
		n := int(inst.A)
		if n > len(s.rescue) {
			n = len(s.rescue)
		}
		s.popRescueTo(len(s.rescue) - n)
		if ci.RIdx >= n {
			ci.RIdx -= n
		} else {
			ci.RIdx = 0
		}

	case opcodes.OP_RAISE:
		s.opRaiseReg(ci, inst)
		return stepRaised, values.Nil()

	case opcodes.OP_EPUSH:
		s.opEpush(ci, irep, inst)

	case opcodes.OP_EPOP:
		s.opEpop(ci, inst)

	case opcodes.OP_SEND, opcodes.OP_FSEND, opcodes.OP_VSEND:
		return s.opSend(ci, inst, false)

	case opcodes.OP_TAILCALL:
		return s.opSend(ci, inst, true)

	case opcodes.OP_SUPER:
		return s.opSuper(ci, inst)

	case opcodes.OP_CALL:
		return s.opCall(ci, inst)

	case opcodes.OP_ARGARY:
		s.opArgAry(ci, inst)

	case opcodes.OP_ENTER:
		return s.opEnter(ci, irep, inst)

	case opcodes.OP_KARG, opcodes.OP_KDICT:
		// reserved no-ops, spec.md §4.2/§9.

	case opcodes.OP_RETURN:
		return s.opReturn(ci, inst)

	case opcodes.OP_BLKPUSH:
		s.opBlkPush(ci, inst)

	case opcodes.OP_ADD, opcodes.OP_SUB, opcodes.OP_MUL, opcodes.OP_DIV,
		opcodes.OP_ADDI, opcodes.OP_SUBI,
		opcodes.OP_EQ, opcodes.OP_LT, opcodes.OP_LE, opcodes.OP_GT, opcodes.OP_GE:
		return s.opArith(ci, irep, inst)

	case opcodes.OP_ARRAY, opcodes.OP_ARYCAT, opcodes.OP_ARYPUSH,
		opcodes.OP_AREF, opcodes.OP_ASET, opcodes.OP_APOST,
		opcodes.OP_STRING, opcodes.OP_STRCAT, opcodes.OP_HASH, opcodes.OP_RANGE:
		s.opAggregate(ci, irep, inst)

	case opcodes.OP_LAMBDA:
		s.opLambda(ci, irep, inst)

	case opcodes.OP_OCLASS:
		s.setReg(base, int(inst.A), values.Object(s.Services.ObjectClass))

	case opcodes.OP_CLASS, opcodes.OP_MODULE:
		s.opClassModule(ci, irep, inst)

	case opcodes.OP_EXEC:
		return s.opExec(ci, inst)

	case opcodes.OP_METHOD:
		s.opMethod(ci, inst)

	case opcodes.OP_SCLASS:
		s.opSclass(ci, inst)

	case opcodes.OP_TCLASS:
		s.setReg(base, int(inst.A), values.Object(ci.TargetClass))

	case opcodes.OP_DEBUG:
		// no-op observation point; a real embedder would hook tracing here.

	case opcodes.OP_STOP:
		return stepHalt, values.Nil()

	case opcodes.OP_ERR:
		s.raiseNamed("RuntimeError", s.poolMessage(irep, inst))
		return stepRaised, values.Nil()
	}

	return stepContinue, values.Nil()
}

func (s *State) poolMessage(irep *classdef.Irep, inst opcodes.Instruction) string {
	bx := int(inst.Bx())
	if bx < 0 || bx >= len(irep.Pool) {
		return "error"
	}
	v := irep.Pool[bx]
	if str, ok := v.Ref().(*values.String); ok {
		return str.S
	}
	return v.String()
}

// classFromReg resolves the class a GETMCNST/SETMCNST site's receiver
// register names: the register already holds a Class object (the
// compiler emits OCLASS/CLASS/etc. ahead of it), so this simply unwraps
// it, falling back to Object for anything else.
func (s *State) classFromReg(base, idx int) *classdef.Class {
	v := s.reg(base, idx)
	if c, ok := v.Ref().(*classdef.Class); ok {
		return c
	}
	return s.Services.ObjectClass
}

func (s *State) getIVar(ci *CallInfo, sym values.SymbolID) values.Value {
	self := s.reg(ci.StackIdx, 0)
	if inst, ok := self.Ref().(*classdef.Instance); ok {
		if v, ok := inst.IVarGet(sym); ok {
			return v
		}
	}
	return values.Nil()
}

func (s *State) setIVar(ci *CallInfo, sym values.SymbolID, v values.Value) {
	self := s.reg(ci.StackIdx, 0)
	if inst, ok := self.Ref().(*classdef.Instance); ok {
		inst.IVarSet(sym, v)
		s.WriteBarrier(inst)
	}
}
