package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// opAggregate implements the array/hash/range/string construction
// opcodes spec.md §4.7 delegates to the external library: the VM here
// only owns operand decoding and register-window bookkeeping, not the
// collection semantics themselves (Array/Hash/Range are values'
// package's job).
func (s *State) opAggregate(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) {
	base := ci.StackIdx
	switch inst.Op {
	case opcodes.OP_ARRAY:
		n := int(inst.C)
		elems := make([]values.Value, n)
		for i := 0; i < n; i++ {
			elems[i] = s.reg(base, int(inst.B)+i)
		}
		s.setReg(base, int(inst.A), values.Object(values.NewArray(elems...)))
		s.bumpArena()

	case opcodes.OP_ARYCAT:
		if dst, ok := s.reg(base, int(inst.A)).Ref().(*values.Array); ok {
			if src, ok := s.reg(base, int(inst.B)).Ref().(*values.Array); ok {
				dst.Elems = append(dst.Elems, src.Elems...)
			}
		}

	case opcodes.OP_ARYPUSH:
		if dst, ok := s.reg(base, int(inst.A)).Ref().(*values.Array); ok {
			dst.Push(s.reg(base, int(inst.B)))
		}

	case opcodes.OP_AREF:
		if arr, ok := s.reg(base, int(inst.B)).Ref().(*values.Array); ok {
			s.setReg(base, int(inst.A), arr.Get(int(inst.C)))
		} else {
			s.setReg(base, int(inst.A), values.Nil())
		}

	case opcodes.OP_ASET:
		if arr, ok := s.reg(base, int(inst.B)).Ref().(*values.Array); ok {
			arr.Set(int(inst.C), s.reg(base, int(inst.A)))
		}

	case opcodes.OP_APOST:
		s.opApost(ci, inst)

	case opcodes.OP_STRING:
		lit := irep.Pool[inst.Bx()]
		if str, ok := lit.Ref().(*values.String); ok {
			s.setReg(base, int(inst.A), values.Object(values.NewString(str.S)))
		} else {
			s.setReg(base, int(inst.A), lit)
		}
		s.bumpArena()

	case opcodes.OP_STRCAT:
		dst, _ := s.reg(base, int(inst.A)).Ref().(*values.String)
		other := s.reg(base, int(inst.B))
		otherStr := other.String()
		if os, ok := other.Ref().(*values.String); ok {
			otherStr = os.S
		}
		if dst == nil {
			s.setReg(base, int(inst.A), values.Object(values.NewString(otherStr)))
		} else {
			dst.S += otherStr
		}

	case opcodes.OP_HASH:
		n := int(inst.C)
		h := values.NewHash()
		for i := 0; i < n; i++ {
			k := s.reg(base, int(inst.B)+2*i)
			v := s.reg(base, int(inst.B)+2*i+1)
			h.Set(k, v)
		}
		s.setReg(base, int(inst.A), values.Object(h))
		s.bumpArena()

	case opcodes.OP_RANGE:
		low := s.reg(base, int(inst.B))
		high := s.reg(base, int(inst.B)+1)
		s.setReg(base, int(inst.A), values.Object(values.NewRange(low, high, inst.C != 0)))
		s.bumpArena()
	}
}

// opApost implements APOST A pre post: splits the array already bound
// at R(A) by a compiler-emitted multiple-assignment into a rest array
// (left at R(A)) and `post` trailing values (R(A+1)..).
func (s *State) opApost(ci *CallInfo, inst opcodes.Instruction) {
	base := ci.StackIdx
	a, pre, post := int(inst.A), int(inst.B), int(inst.C)
	arr, ok := s.reg(base, a).Ref().(*values.Array)
	if !ok {
		s.setReg(base, a, values.Object(values.NewArray()))
		return
	}
	n := len(arr.Elems)
	restEnd := n - post
	if restEnd < pre {
		restEnd = pre
	}
	lo, hi := min(pre, n), min(restEnd, n)
	rest := values.NewArray(arr.Elems[lo:hi]...)
	s.setReg(base, a, values.Object(rest))
	for i := 0; i < post; i++ {
		idx := restEnd + i
		if idx >= 0 && idx < n {
			s.setReg(base, a+1+i, arr.Elems[idx])
		} else {
			s.setReg(base, a+1+i, values.Nil())
		}
	}
}

// opLambda implements LAMBDA b c (spec.md §4.7, §6.4): builds either a
// closure (capturing the current frame's environment) or a plain
// non-capturing proc, and sets the lambda-strict arity-checking flag
// from the c operand's STRICT bit.
func (s *State) opLambda(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) {
	body := irep.Child(int(inst.LambdaB()))
	flags := inst.LambdaC()
	strict := flags&opcodes.OP_L_STRICT != 0
	proc := classdef.NewBytecodeProc(body, ci.TargetClass, strict)
	proc.LexicalParent = ci.Proc
	if flags&opcodes.OP_L_CAPTURE != 0 {
		proc.Env = s.captureEnv(ci)
	}
	s.setReg(ci.StackIdx, int(inst.A), values.Object(proc))
	s.bumpArena()
}

// opClassModule implements CLASS/MODULE: define (or reopen) a class or
// module named by a symbol under an outer namespace, with an optional
// explicit superclass (spec.md §4.7, §6.5 "define_class/module").
func (s *State) opClassModule(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) {
	base := ci.StackIdx
	outer := s.classFromReg(base, int(inst.A))
	var super *classdef.Class
	if sv := s.reg(base, int(inst.B)); sv.IsObject() {
		if c, ok := sv.Ref().(*classdef.Class); ok {
			super = c
		}
	}
	if super == nil && inst.Op == opcodes.OP_CLASS {
		super = s.Services.ObjectClass
	}
	symIdx := int(inst.C)
	if symIdx < 0 || symIdx >= len(irep.Syms) {
		return
	}
	cls := classdef.DefineClassUnder(outer, super, irep.Syms[symIdx], s.Services.Symbols, inst.Op == opcodes.OP_MODULE)
	s.setReg(base, int(inst.A), values.Object(cls))
	s.bumpArena()
}

// opMethod implements METHOD A B C: installs the Proc in R(B) as
// instance method syms[C] on the class in R(A) (spec.md §6.5
// "define_method").
func (s *State) opMethod(ci *CallInfo, inst opcodes.Instruction) {
	base := ci.StackIdx
	cls := s.classFromReg(base, int(inst.A))
	proc, ok := s.reg(base, int(inst.B)).Ref().(*classdef.Proc)
	if !ok {
		return
	}
	syms := ci.Proc.Body.Syms
	symIdx := int(inst.C)
	if symIdx < 0 || symIdx >= len(syms) {
		return
	}
	cls.DefineMethod(syms[symIdx], proc)
}

// opSclass implements SCLASS A B: R(A) = singleton_class(R(B)).
func (s *State) opSclass(ci *CallInfo, inst opcodes.Instruction) {
	base := ci.StackIdx
	v := s.reg(base, int(inst.B))
	if c, ok := v.Ref().(*classdef.Class); ok {
		s.setReg(base, int(inst.A), values.Object(classdef.SingletonClass(c)))
		return
	}
	s.setReg(base, int(inst.A), values.Object(s.Services.ClassOf(v)))
}
