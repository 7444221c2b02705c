package vm

import (
	"testing"

	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// Scenario 1 (spec.md §8): a non-strict proc with one optional argument,
// f(a, b, c=20), called with only the required arguments. ENTER's
// underflow branch must bind a, b from the supplied args and fall
// through to the single default-value instruction for c.
func TestEnterOptionalArgumentDefault(t *testing.T) {
	st := newTestState(t)
	enter := opcodes.NewAx(opcodes.OP_ENTER, opcodes.PackEnter(opcodes.EnterSpec{M1: 2, O: 1}))
	proc := simpleProc(st, 6,
		enter,                                     // 0: ENTER m1=2 o=1
		opcodes.NewABC(opcodes.OP_NOP, 0, 0, 0),   // 1: unreachable filler
		opcodes.NewABC(opcodes.OP_LOADI, 3, 20, 0), // 2: R3 = 20 (default for c)
		opcodes.NewABC(opcodes.OP_ARRAY, 4, 1, 3),  // 3: R4 = [R1,R2,R3]
		opcodes.NewABC(opcodes.OP_RETURN, 4, int32(opcodes.R_NORMAL), 0),
	)

	result, err := st.invokeProc(proc, values.Nil(), fixnums(1, 2), values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr := wantArray(t, result)
	if len(arr.Elems) != 3 {
		t.Fatalf("want 3 elements, got %d (%v)", len(arr.Elems), arr.Elems)
	}
	wantFixnum(t, arr.Elems[0], 1)
	wantFixnum(t, arr.Elems[1], 2)
	wantFixnum(t, arr.Elems[2], 20)
}

// Scenario 2: a non-strict proc with a rest parameter, g(a, *rest, b),
// called with enough arguments to exercise ENTER's sufficient branch and
// its rest-array construction.
func TestEnterRestArguments(t *testing.T) {
	st := newTestState(t)
	enter := opcodes.NewAx(opcodes.OP_ENTER, opcodes.PackEnter(opcodes.EnterSpec{M1: 1, R: true, M2: 1}))
	proc := simpleProc(st, 7,
		enter,                                    // 0: ENTER m1=1 r m2=1
		opcodes.NewABC(opcodes.OP_NOP, 0, 0, 0),  // 1: unreachable filler
		opcodes.NewABC(opcodes.OP_ARRAY, 5, 1, 3), // 2: R5 = [R1,R2,R3]
		opcodes.NewABC(opcodes.OP_RETURN, 5, int32(opcodes.R_NORMAL), 0),
	)

	result, err := st.invokeProc(proc, values.Nil(), fixnums(1, 2, 3, 4, 5), values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr := wantArray(t, result)
	if len(arr.Elems) != 3 {
		t.Fatalf("want 3 elements, got %d (%v)", len(arr.Elems), arr.Elems)
	}
	wantFixnum(t, arr.Elems[0], 1)
	rest := wantArray(t, arr.Elems[1])
	if len(rest.Elems) != 3 {
		t.Fatalf("want rest of length 3, got %d (%v)", len(rest.Elems), rest.Elems)
	}
	wantFixnum(t, rest.Elems[0], 2)
	wantFixnum(t, rest.Elems[1], 3)
	wantFixnum(t, rest.Elems[2], 4)
	wantFixnum(t, arr.Elems[2], 5)
}

// Scenario 3: a non-strict proc with two required parameters, called
// with a single Array argument, must auto-splat it across both.
func TestEnterAutoSplat(t *testing.T) {
	st := newTestState(t)
	enter := opcodes.NewAx(opcodes.OP_ENTER, opcodes.PackEnter(opcodes.EnterSpec{M1: 2}))
	proc := simpleProc(st, 4,
		enter,                                    // 0: ENTER m1=2
		opcodes.NewABC(opcodes.OP_NOP, 0, 0, 0),  // 1: unreachable filler
		opcodes.NewABC(opcodes.OP_ARRAY, 3, 1, 2), // 2: R3 = [R1,R2]
		opcodes.NewABC(opcodes.OP_RETURN, 3, int32(opcodes.R_NORMAL), 0),
	)

	single := values.Object(values.NewArray(values.Fixnum(7), values.Fixnum(8)))
	result, err := st.invokeProc(proc, values.Nil(), []values.Value{single}, values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr := wantArray(t, result)
	if len(arr.Elems) != 2 {
		t.Fatalf("want 2 elements, got %d (%v)", len(arr.Elems), arr.Elems)
	}
	wantFixnum(t, arr.Elems[0], 7)
	wantFixnum(t, arr.Elems[1], 8)
}

// Scenario 4: a strict (lambda) proc rejects an arity mismatch outright,
// raising ArgumentError instead of auto-splatting or defaulting.
func TestEnterLambdaStrictArity(t *testing.T) {
	st := newTestState(t)
	enter := opcodes.NewAx(opcodes.OP_ENTER, opcodes.PackEnter(opcodes.EnterSpec{M1: 2}))
	proc := lambdaProc(st, 4,
		enter,
		opcodes.NewABC(opcodes.OP_RETURN, 0, int32(opcodes.R_NORMAL), 0),
	)

	_, err := st.invokeProc(proc, values.Nil(), fixnums(1), values.Nil())
	if err == nil {
		t.Fatalf("want ArgumentError, got nil error")
	}
	exc, ok := err.(*values.Exception)
	if !ok {
		t.Fatalf("want *values.Exception, got %T (%v)", err, err)
	}
	if exc.ClassName != "ArgumentError" {
		t.Fatalf("want ArgumentError, got %s", exc.ClassName)
	}
	want := "wrong number of arguments (1 for 2)"
	if exc.Message != want {
		t.Fatalf("want message %q, got %q", want, exc.Message)
	}
}
