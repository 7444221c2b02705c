package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// Scenario 5 (spec.md §8): break executed inside a block handed to
// each transfers control to each's CALLER with the break value, not
// to each itself or to the block's own invocation frame. Both each
// and the block's call site are real pushed frames (each via SEND,
// the block's body via SEND-to-"call" then OP_CALL's in-place irep
// swap), so env.CIOff+1 (each's frame) is provably distinct from the
// block invocation's own frame — the two cannot be confused the way
// they would be if each ran synchronously without its own CallInfo.
func TestBreakTransfersToEachsCaller(t *testing.T) {
	st := newTestState(t)
	eachSym := st.Services.Symbols.Intern("each")
	callSym := st.Services.Symbols.Intern("call")

	// The block: `{ break 42 }`. Ignores whatever it was yielded.
	blockIrep := &classdef.Irep{
		NRegs: 2,
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_LOADI, 1, 42, 0),
			opcodes.NewABC(opcodes.OP_RETURN, 1, int32(opcodes.R_BREAK), 0),
		},
	}

	// Proc#call: self (R0) is the block Proc; OP_CALL swaps this
	// frame's irep for the block's body and re-enters at pc 0.
	callIrep := &classdef.Irep{
		NRegs:        2,
		Instructions: []opcodes.Instruction{opcodes.NewABC(opcodes.OP_CALL, 0, 0, 0)},
	}
	callProc := classdef.NewBytecodeProc(callIrep, st.Services.ProcClass, false)
	st.Services.ProcClass.DefineMethod(callSym, callProc)

	// each(block): R0=self, R1=block. Sends :call to the block, then
	// would move on to whatever comes after — never reached here since
	// the block always breaks.
	eachIrep := &classdef.Irep{
		NRegs: 4,
		Syms:  []values.SymbolID{callSym},
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_MOVE, 2, 1, 0),  // 0: R2 = block
			opcodes.NewABC(opcodes.OP_SEND, 2, 0, 0),  // 1: R2.call()
			opcodes.NewABC(opcodes.OP_MOVE, 3, 2, 0),  // 2: unreached if break fires
			opcodes.NewABC(opcodes.OP_RETURN, 3, int32(opcodes.R_NORMAL), 0),
		},
	}
	eachProc := classdef.NewBytecodeProc(eachIrep, st.Services.NilClass, false)
	st.Services.NilClass.DefineMethod(eachSym, eachProc)

	// driver: R0=self(nil). Builds the block closure, sends :each to
	// self with it, then returns whatever :each produced.
	table := classdef.NewIrepTable()
	driverIrep := &classdef.Irep{
		NRegs: 4,
		Syms:  []values.SymbolID{eachSym},
		Instructions: []opcodes.Instruction{
			opcodes.NewAbc2(opcodes.OP_LAMBDA, 1, 1, opcodes.OP_L_CAPTURE), // 0: R1 = block, capturing this frame
			opcodes.NewABC(opcodes.OP_MOVE, 2, 0, 0),                      // 1: R2 = self
			opcodes.NewABC(opcodes.OP_MOVE, 3, 1, 0),                      // 2: R3 = block (SEND's block slot)
			opcodes.NewABC(opcodes.OP_SEND, 2, 0, 0),                      // 3: R2.each(&R3)
			opcodes.NewABC(opcodes.OP_RETURN, 2, int32(opcodes.R_NORMAL), 0),
		},
	}
	table.Add(driverIrep)
	table.Add(blockIrep)
	driverProc := classdef.NewBytecodeProc(driverIrep, st.Services.ObjectClass, false)

	result, err := st.invokeProc(driverProc, values.Nil(), nil, values.Nil())
	require.NoError(t, err)
	require.True(t, result.IsFixnum())
	require.Equal(t, int64(42), result.FixnumValue())
	require.Equal(t, 0, st.Depth(), "call-info stack must fully unwind")
}
