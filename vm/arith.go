package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// opArith implements ADD/SUB/MUL/DIV/ADDI/SUBI/EQ/LT/LE/GT/GE (spec.md
// §4.6): direct computation for numeric operand pairs (with a string
// fast path for ADD), and otherwise self-rewriting into a SEND of the
// opcode's associated method symbol against the same operand layout.
func (s *State) opArith(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) (stepResult, values.Value) {
	base := ci.StackIdx
	a := int(inst.A)
	lhs := s.reg(base, a)

	if inst.Op == opcodes.OP_ADDI || inst.Op == opcodes.OP_SUBI {
		imm := int64(inst.C)
		if inst.Op == opcodes.OP_SUBI {
			imm = -imm
		}
		switch lhs.Kind() {
		case values.KindFixnum:
			s.setReg(base, a, values.Fixnum(lhs.FixnumValue()+imm))
			return stepContinue, values.Nil()
		case values.KindFloat:
			s.setReg(base, a, values.Float(lhs.AsFloat()+float64(imm)))
			return stepContinue, values.Nil()
		}
		return s.rewriteArithSend(ci, irep, inst, a, values.Fixnum(imm))
	}

	rhs := s.reg(base, a+1)

	if inst.Op == opcodes.OP_ADD {
		if ls, ok := lhs.Ref().(*values.String); ok {
			if rs, ok := rhs.Ref().(*values.String); ok {
				s.setReg(base, a, values.Object(values.NewString(ls.S+rs.S)))
				return stepContinue, values.Nil()
			}
		}
	}

	numeric := (lhs.IsFixnum() || lhs.IsFloat()) && (rhs.IsFixnum() || rhs.IsFloat())
	if !numeric {
		return s.rewriteArithSend(ci, irep, inst, a, rhs)
	}
	bothInt := lhs.IsFixnum() && rhs.IsFixnum()

	switch inst.Op {
	case opcodes.OP_ADD:
		if bothInt {
			s.setReg(base, a, values.Fixnum(lhs.FixnumValue()+rhs.FixnumValue()))
		} else {
			s.setReg(base, a, values.Float(lhs.AsFloat()+rhs.AsFloat()))
		}
	case opcodes.OP_SUB:
		if bothInt {
			s.setReg(base, a, values.Fixnum(lhs.FixnumValue()-rhs.FixnumValue()))
		} else {
			s.setReg(base, a, values.Float(lhs.AsFloat()-rhs.AsFloat()))
		}
	case opcodes.OP_MUL:
		if bothInt {
			s.setReg(base, a, values.Fixnum(lhs.FixnumValue()*rhs.FixnumValue()))
		} else {
			s.setReg(base, a, values.Float(lhs.AsFloat()*rhs.AsFloat()))
		}
	case opcodes.OP_DIV:
		s.setReg(base, a, values.Float(lhs.AsFloat()/rhs.AsFloat()))
	case opcodes.OP_EQ:
		s.setReg(base, a, values.Bool(values.Equal(lhs, rhs)))
	case opcodes.OP_LT:
		s.setReg(base, a, values.Bool(lhs.AsFloat() < rhs.AsFloat()))
	case opcodes.OP_LE:
		s.setReg(base, a, values.Bool(lhs.AsFloat() <= rhs.AsFloat()))
	case opcodes.OP_GT:
		s.setReg(base, a, values.Bool(lhs.AsFloat() > rhs.AsFloat()))
	case opcodes.OP_GE:
		s.setReg(base, a, values.Bool(lhs.AsFloat() >= rhs.AsFloat()))
	}
	return stepContinue, values.Nil()
}

// rewriteArithSend reissues the current instruction as a SEND of its
// associated method symbol (already interned at B), matching the
// reference interpreter's "mutate the current instruction in a local
// variable" trick without actually mutating the irep (spec.md §9).
func (s *State) rewriteArithSend(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction, a int, rhs values.Value) (stepResult, values.Value) {
	s.setReg(ci.StackIdx, a+1, rhs)
	sendInst := opcodes.NewABC(opcodes.OP_SEND, inst.A, inst.B, 1)
	return s.opSend(ci, sendInst, false)
}
