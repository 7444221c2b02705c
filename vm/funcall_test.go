package vm

import (
	"testing"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// Scenario 7 (spec.md §8): calling an undefined method falls back to
// method_missing with the original symbol prepended to the argument
// list, rather than raising NoMethodError directly.
func TestFuncallMethodMissingFallback(t *testing.T) {
	st := newTestState(t)
	mmSym := st.Services.Symbols.Intern("method_missing")
	greetSym := st.Services.Symbols.Intern("greet")

	var gotSelf values.Value
	var gotArgs []values.Value
	st.Services.ObjectClass.DefineMethod(mmSym, classdef.NewCFuncProc(
		func(inv classdef.Invoker, self values.Value, args []values.Value) (values.Value, error) {
			gotSelf = self
			gotArgs = args
			return values.Fixnum(42), nil
		},
		st.Services.ObjectClass,
	))

	self := values.Nil()
	result, err := st.Funcall(self, greetSym, fixnums(1, 2), values.Nil())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFixnum(t, result, 42)

	if gotSelf != self {
		t.Fatalf("method_missing got wrong self")
	}
	if len(gotArgs) != 3 {
		t.Fatalf("want 3 args (symbol + 2 originals), got %d (%v)", len(gotArgs), gotArgs)
	}
	if !gotArgs[0].IsSymbol() || gotArgs[0].SymbolValue() != greetSym {
		t.Fatalf("want args[0] == Sym(greet), got %v", gotArgs[0])
	}
	wantFixnum(t, gotArgs[1], 1)
	wantFixnum(t, gotArgs[2], 2)
}

// Funcall must raise NoMethodError, not panic, when neither the method
// nor method_missing exist.
func TestFuncallUndefinedMethodRaises(t *testing.T) {
	st := newTestState(t)
	mysterySym := st.Services.Symbols.Intern("mystery")

	_, err := st.Funcall(values.Nil(), mysterySym, nil, values.Nil())
	if err == nil {
		t.Fatalf("want NoMethodError, got nil")
	}
	exc, ok := err.(*values.Exception)
	if !ok {
		t.Fatalf("want *values.Exception, got %T", err)
	}
	if exc.ClassName != "NoMethodError" {
		t.Fatalf("want NoMethodError, got %s", exc.ClassName)
	}
}
