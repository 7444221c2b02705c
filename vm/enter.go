package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// opEnter implements the ENTER argument-binding algorithm (spec.md
// §4.3) exactly: unpack the single-array form if the caller passed more
// than CallMaxArgs-1 arguments, enforce lambda-strict arity, auto-splat
// a single array argument for non-strict procs, then bind required/
// optional/rest/post registers in the precise order and pc-advancement
// the reference interpreter uses so the optional-default JMP chain
// lands on the right block.
func (s *State) opEnter(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) (stepResult, values.Value) {
	spec := opcodes.DecodeEnter(inst.Ax())
	base := ci.StackIdx
	m1, o, m2 := int(spec.M1), int(spec.O), int(spec.M2)
	length := m1 + o + m2
	if spec.R {
		length++
	}

	argc := ci.ArgC
	var packed *values.Array
	if argc == -1 {
		if arr, ok := s.reg(base, 1).Ref().(*values.Array); ok {
			packed = arr
			argc = len(arr.Elems)
		} else {
			argc = 0
		}
	}

	argv := make([]values.Value, argc)
	var block values.Value
	if packed != nil {
		copy(argv, packed.Elems)
		block = s.reg(base, 2)
	} else {
		for i := 0; i < argc; i++ {
			argv[i] = s.reg(base, 1+i)
		}
		// The block register sits immediately past the real argument
		// window at its ORIGINAL width, before auto-splat below can
		// replace argv/argc with an unpacked array's own length — read
		// it now or stackExtend zeroes it out from under us.
		block = s.reg(base, 1+argc)
	}

	if ci.Proc.Strict {
		if argc < m1+m2 || (!spec.R && argc > length) {
			s.raiseArgumentError("wrong number of arguments (%d for %d)", argc, m1+m2)
			return stepRaised, values.Nil()
		}
	} else if length > 1 && argc == 1 {
		if arr, ok := argv[0].Ref().(*values.Array); ok {
			argv = arr.Elems
			argc = len(argv)
		}
	}

	ci.ArgC = length
	get := func(i int) values.Value {
		if i >= 0 && i < len(argv) {
			return argv[i]
		}
		return values.Nil()
	}

	s.stackExtend(base, length+2, 1)
	if packed != nil {
		s.setReg(base, length+2, values.Object(packed))
	}

	if argc < length {
		for i := 0; i < argc-m2; i++ {
			s.setReg(base, 1+i, get(i))
		}
		for i := 0; i < m2; i++ {
			s.setReg(base, length-m2+1+i, get(argc-m2+i))
		}
		if spec.R {
			s.setReg(base, m1+o+1, values.Object(values.NewArray()))
		}
		s.setReg(base, length+1, block)
		ci.PC += argc - m1 - m2 + 1
		return stepContinue, values.Nil()
	}

	for i := 0; i < m1+o; i++ {
		s.setReg(base, 1+i, get(i))
	}
	postBase := m1 + o + 1
	if spec.R {
		rest := make([]values.Value, 0, argc-m1-o-m2)
		for i := m1 + o; i < argc-m2; i++ {
			rest = append(rest, get(i))
		}
		s.setReg(base, postBase, values.Object(values.NewArray(rest...)))
		postBase++
	}
	for i := 0; i < m2; i++ {
		s.setReg(base, postBase+i, get(argc-m2+i))
	}
	s.setReg(base, length+1, block)
	ci.PC += o + 1
	return stepContinue, values.Nil()
}
