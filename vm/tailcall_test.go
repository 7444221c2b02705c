package vm

import (
	"testing"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// Scenario 8 (spec.md §8): a self-recursive TAILCALL must reuse the
// current CallInfo in place rather than pushing a new one, so a deep
// iteration count never grows the call-info stack. Builds iter(n, acc):
// counts n down to 0 while acc counts up, self-calling via TAILCALL each
// time, and single-steps the whole run (debug.go's Step, not Run) so
// the call-info depth can be inspected after every instruction.
func TestTailCallDoesNotGrowCallInfoStack(t *testing.T) {
	st := newTestState(t)
	iterSym := st.Services.Symbols.Intern("iter")

	ir := &classdef.Irep{
		NRegs: 10,
		Syms:  []values.SymbolID{iterSym},
		Instructions: []opcodes.Instruction{
			opcodes.NewABC(opcodes.OP_MOVE, 8, 1, 0),    // 0: R8 = n
			opcodes.NewABC(opcodes.OP_LOADI, 9, 0, 0),   // 1: R9 = 0
			opcodes.NewABC(opcodes.OP_EQ, 8, 0, 0),      // 2: R8 = (n == 0)
			opcodes.NewAsBx(opcodes.OP_JMPIF, 8, 7),     // 3: if R8, jump to RETURN at idx 11
			opcodes.NewABC(opcodes.OP_LOADNIL, 4, 0, 0), // 4: R4 = nil (new self)
			opcodes.NewABC(opcodes.OP_MOVE, 5, 1, 0),    // 5: R5 = n
			opcodes.NewABC(opcodes.OP_SUBI, 5, 0, 1),    // 6: R5 = n - 1
			opcodes.NewABC(opcodes.OP_MOVE, 6, 2, 0),    // 7: R6 = acc
			opcodes.NewABC(opcodes.OP_ADDI, 6, 0, 1),    // 8: R6 = acc + 1
			opcodes.NewABC(opcodes.OP_LOADNIL, 7, 0, 0), // 9: R7 = nil (new block)
			opcodes.NewABC(opcodes.OP_TAILCALL, 4, 0, 2), // 10: self.iter(R5, R6)
			opcodes.NewABC(opcodes.OP_RETURN, 2, int32(opcodes.R_NORMAL), 0), // 11: return acc
		},
	}
	classdef.NewIrepTable().Add(ir)
	proc := classdef.NewBytecodeProc(ir, st.Services.NilClass, false)
	st.Services.NilClass.DefineMethod(iterSym, proc)

	st.LoadTop(proc, values.Nil())
	base := st.curCI().StackIdx
	const n = 2000
	st.setReg(base, 1, values.Fixnum(n))
	st.setReg(base, 2, values.Fixnum(0))
	st.setReg(base, 3, values.Nil())

	steps := 0
	for {
		if st.Depth() != 1 {
			t.Fatalf("call-info depth grew to %d after %d steps (TAILCALL must reuse the frame)", st.Depth(), steps)
		}
		halted, val, err := st.Step()
		if err != nil {
			t.Fatalf("unexpected error at step %d: %v", steps, err)
		}
		if halted {
			wantFixnum(t, val, n)
			return
		}
		steps++
		if steps > n*len(ir.Instructions)+100 {
			t.Fatalf("loop did not halt within expected step bound")
		}
	}
}
