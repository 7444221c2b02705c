package asm

import (
	"testing"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/config"
	"github.com/ashel/mrvm/values"
	"github.com/ashel/mrvm/vm"
)

// Assembling a small literal/arithmetic program and running it end to
// end exercises the wide (LOADL) and default (LOADI/ADD/RETURN) operand
// shapes in one pass.
func TestAssembleAndRun(t *testing.T) {
	src := `
.nregs 4
.lit int 10
LOADI 1 3
LOADI 2 4
ADD 1 0 0
LOADL 2 0
ADD 1 0 0
RETURN 1 0 0
`
	symbols := values.NewSymbolTable()
	table := classdef.NewIrepTable()
	ir, err := Assemble(src, symbols, table)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if ir.NRegs != 4 {
		t.Fatalf("want NRegs 4, got %d", ir.NRegs)
	}
	if len(ir.Pool) != 1 {
		t.Fatalf("want 1 pool literal, got %d", len(ir.Pool))
	}

	st := vm.NewState(config.Default())
	proc := classdef.NewBytecodeProc(ir, st.Services.ObjectClass, false)
	result, err := st.Run(proc, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsFixnum() || result.FixnumValue() != 17 {
		t.Fatalf("want Fixnum(17) (3+4+10), got %v", result)
	}
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	symbols := values.NewSymbolTable()
	table := classdef.NewIrepTable()
	if _, err := Assemble("BOGUS 1 2 3", symbols, table); err == nil {
		t.Fatalf("want an error for an unknown mnemonic, got nil")
	}
}

// JMP's signed-offset shape must round-trip through the assembler: a
// forward jump over a dead instruction must still land exactly on the
// intended target.
func TestAssembleJumpShape(t *testing.T) {
	src := `
.nregs 3
LOADI 1 1
JMP 0 1
LOADI 1 99
RETURN 1 0 0
`
	symbols := values.NewSymbolTable()
	table := classdef.NewIrepTable()
	ir, err := Assemble(src, symbols, table)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	st := vm.NewState(config.Default())
	proc := classdef.NewBytecodeProc(ir, st.Services.ObjectClass, false)
	result, err := st.Run(proc, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsFixnum() || result.FixnumValue() != 1 {
		t.Fatalf("want Fixnum(1) (JMP must skip the dead LOADI), got %v", result)
	}
}
