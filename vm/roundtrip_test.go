package vm

import (
	"testing"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// LOADL followed by MOVE must equal LOADL directly into the
// destination (spec.md §8 round-trip properties).
func TestRoundTripLoadlMove(t *testing.T) {
	st := newTestState(t)
	pool := []values.Value{values.Fixnum(77)}

	viaMove := simpleProc(st, 3,
		opcodes.NewABx(opcodes.OP_LOADL, 1, 0),
		opcodes.NewABC(opcodes.OP_MOVE, 2, 1, 0),
		opcodes.NewABC(opcodes.OP_RETURN, 2, int32(opcodes.R_NORMAL), 0),
	)
	viaMove.Body.Pool = pool

	direct := simpleProc(st, 3,
		opcodes.NewABx(opcodes.OP_LOADL, 2, 0),
		opcodes.NewABC(opcodes.OP_RETURN, 2, int32(opcodes.R_NORMAL), 0),
	)
	direct.Body.Pool = pool

	moved, err := st.invokeProc(viaMove, values.Nil(), nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := st.invokeProc(direct, values.Nil(), nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFixnum(t, moved, 77)
	wantFixnum(t, loaded, 77)
}

// ARRAY then AREF by a constant index must equal reading the source
// register at that offset directly.
func TestRoundTripArrayAref(t *testing.T) {
	st := newTestState(t)
	proc := simpleProc(st, 6,
		opcodes.NewABC(opcodes.OP_LOADI, 1, 5, 0),
		opcodes.NewABC(opcodes.OP_LOADI, 2, 6, 0),
		opcodes.NewABC(opcodes.OP_LOADI, 3, 7, 0),
		opcodes.NewABC(opcodes.OP_ARRAY, 4, 1, 3), // R4 = [R1,R2,R3]
		opcodes.NewABC(opcodes.OP_AREF, 5, 4, 1),  // R5 = R4[1]
		opcodes.NewABC(opcodes.OP_RETURN, 5, int32(opcodes.R_NORMAL), 0),
	)

	result, err := st.invokeProc(proc, values.Nil(), nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// AREF index 1 of [R1,R2,R3] must equal the original R2 (=6), the
	// register that fed the array's slot 1.
	wantFixnum(t, result, 6)
}

// HASH built from pairs, queried by key, returns the corresponding
// value. There is no dedicated opcode for hash lookup in this
// instruction set (spec.md's opcode table omits one), so the query
// half of the round trip goes through the Hash value's own Get,
// exactly as a library method built atop OP_HASH would.
func TestRoundTripHashBuildThenQuery(t *testing.T) {
	st := newTestState(t)
	keySym := st.Services.Symbols.Intern("a")

	proc := simpleProc(st, 4,
		opcodes.NewABx(opcodes.OP_LOADSYM, 1, 0),
		opcodes.NewABC(opcodes.OP_LOADI, 2, 42, 0),
		opcodes.NewABC(opcodes.OP_HASH, 3, 1, 1), // R3 = {R1 => R2}
		opcodes.NewABC(opcodes.OP_RETURN, 3, int32(opcodes.R_NORMAL), 0),
	)
	proc.Body.Syms = []values.SymbolID{keySym}

	result, err := st.invokeProc(proc, values.Nil(), nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, ok := result.Ref().(*values.Hash)
	if !ok {
		t.Fatalf("want Hash, got kind %v", result.Kind())
	}
	got, ok := h.Get(values.Sym(keySym))
	if !ok {
		t.Fatalf("want key :a present in hash")
	}
	wantFixnum(t, got, 42)
}

// LAMBDA then CALL with no arguments runs the closure body; the
// surrounding env is observed through GETUPVAR. CALL reuses the
// current CallInfo in place (spec.md §4.2), so this exercises the
// same-frame env-rebinding path opCall documents.
func TestRoundTripLambdaCallGetupvar(t *testing.T) {
	st := newTestState(t)

	lambdaIrep := &classdef.Irep{
		NRegs: 3,
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_GETUPVAR, 2, 1, 0), // R2 = env[1] (driver's R1), lv 0
			opcodes.NewABC(opcodes.OP_RETURN, 2, int32(opcodes.R_NORMAL), 0),
		},
	}

	driverIrep := &classdef.Irep{
		NRegs: 3,
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_LOADI, 1, 99, 0),                        // 0: R1 = 99 (captured)
			opcodes.NewAbc2(opcodes.OP_LAMBDA, 2, 1, opcodes.OP_L_CAPTURE),    // 1: R2 = closure over this frame
			opcodes.NewABC(opcodes.OP_MOVE, 0, 2, 0),                          // 2: R0 = closure (CALL's self)
			opcodes.NewABC(opcodes.OP_CALL, 0, 0, 0),                          // 3: re-enter closure body in place
		},
	}
	table := classdef.NewIrepTable()
	table.Add(driverIrep)
	table.Add(lambdaIrep)
	driverProc := classdef.NewBytecodeProc(driverIrep, st.Services.ObjectClass, false)

	result, err := st.invokeProc(driverProc, values.Nil(), nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFixnum(t, result, 99)
	if st.Depth() != 0 {
		t.Fatalf("want call-info stack fully unwound, depth = %d", st.Depth())
	}
}

// CALL must restore self from the closure's captured environment, not
// leave whatever self the call-site frame already had (spec.md line 91,
// the original's unconditional `regs[0] = m->env->stack[0];`). The
// closure here is captured in one frame (the driver, whose self is a
// marker fixnum) and invoked via SEND+CALL from a DIFFERENT frame (a
// synthetic Proc#call method, whose own self is the closure object
// itself) — only a real restore-from-env makes LOADSELF inside the
// closure body observe the driver's self rather than the call frame's.
func TestRoundTripCallRestoresSelfFromEnv(t *testing.T) {
	st := newTestState(t)
	callSym := st.Services.Symbols.Intern("call")

	// The closure body: just hands back whatever self it sees.
	closureIrep := &classdef.Irep{
		NRegs: 2,
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_LOADSELF, 1, 0, 0),
			opcodes.NewABC(opcodes.OP_RETURN, 1, int32(opcodes.R_NORMAL), 0),
		},
	}

	// Proc#call: self (R0) is the closure Proc itself; OP_CALL swaps in
	// the closure's body and must overwrite this frame's R0 with the
	// closure's captured self before re-entering.
	callIrep := &classdef.Irep{
		NRegs:        2,
		Instructions: []opcodes.Instruction{opcodes.NewABC(opcodes.OP_CALL, 0, 0, 0)},
	}
	callProc := classdef.NewBytecodeProc(callIrep, st.Services.ProcClass, false)
	st.Services.ProcClass.DefineMethod(callSym, callProc)

	driverIrep := &classdef.Irep{
		NRegs: 3,
		Syms:  []values.SymbolID{callSym},
		Instructions: []opcodes.Instruction{
			opcodes.NewAbc2(opcodes.OP_LAMBDA, 1, 1, opcodes.OP_L_CAPTURE), // 0: R1 = closure over this frame (captures R0)
			opcodes.NewABC(opcodes.OP_SEND, 1, 0, 0),                      // 1: R1.call() -> result back in R1
			opcodes.NewABC(opcodes.OP_RETURN, 1, int32(opcodes.R_NORMAL), 0),
		},
	}
	table := classdef.NewIrepTable()
	table.Add(driverIrep)
	table.Add(closureIrep)
	driverProc := classdef.NewBytecodeProc(driverIrep, st.Services.ObjectClass, false)

	marker := values.Fixnum(777)
	result, err := st.invokeProc(driverProc, marker, nil, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFixnum(t, result, 777)
	if st.Depth() != 1 {
		t.Fatalf("want call-info stack unwound to the base frame, depth = %d", st.Depth())
	}
}
