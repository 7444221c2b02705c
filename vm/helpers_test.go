package vm

import (
	"testing"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/config"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// newTestState builds a fresh interpreter state with the default sizes,
// the way every test in this package wants one: no shared state between
// cases, matching the teacher's per-test newExecutionContext() pattern.
func newTestState(t *testing.T) *State {
	t.Helper()
	return NewState(config.Default())
}

// simpleProc wraps a hand-built Irep in a non-strict bytecode Proc
// targeting Object, the shape most boundary scenarios need.
func simpleProc(st *State, nregs int, instrs ...opcodes.Instruction) *classdef.Proc {
	ir := &classdef.Irep{NRegs: nregs, Instructions: instrs}
	classdef.NewIrepTable().Add(ir)
	return classdef.NewBytecodeProc(ir, st.Services.ObjectClass, false)
}

// lambdaProc is simpleProc's strict-arity counterpart.
func lambdaProc(st *State, nregs int, instrs ...opcodes.Instruction) *classdef.Proc {
	ir := &classdef.Irep{NRegs: nregs, Instructions: instrs}
	classdef.NewIrepTable().Add(ir)
	return classdef.NewBytecodeProc(ir, st.Services.ObjectClass, true)
}

func fixnums(ns ...int64) []values.Value {
	out := make([]values.Value, len(ns))
	for i, n := range ns {
		out[i] = values.Fixnum(n)
	}
	return out
}

func wantFixnum(t *testing.T, v values.Value, want int64) {
	t.Helper()
	if !v.IsFixnum() {
		t.Fatalf("want Fixnum(%d), got kind %v (%s)", want, v.Kind(), v.String())
	}
	if v.FixnumValue() != want {
		t.Fatalf("want Fixnum(%d), got Fixnum(%d)", want, v.FixnumValue())
	}
}

func wantArray(t *testing.T, v values.Value) *values.Array {
	t.Helper()
	arr, ok := v.Ref().(*values.Array)
	if !ok {
		t.Fatalf("want Array, got kind %v (%s)", v.Kind(), v.String())
	}
	return arr
}
