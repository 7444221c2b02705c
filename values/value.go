// Package values implements the VM's tagged value representation: the
// nil/false/true/fixnum/float/symbol immediates and the discriminated
// reference to a heap object that spec.md §3 calls "Value".
package values

import (
	"fmt"
	"math"
)

// Kind discriminates the tagged union. Nil and False are the only two
// falsy kinds; everything else is truthy.
type Kind byte

const (
	KindNil Kind = iota
	KindFalse
	KindTrue
	KindFixnum
	KindFloat
	KindSymbol
	KindObject // heap reference; see Value.Ref().ObjectKind() for the object kind
)

// Value is the VM's tagged union. Immediates are stored inline; anything
// heap-backed goes through Ref.
type Value struct {
	kind  Kind
	fix   int64
	flo   float64
	sym   SymbolID
	ref   HeapObject
}

func Nil() Value            { return Value{kind: KindNil} }
func False() Value          { return Value{kind: KindFalse} }
func True() Value           { return Value{kind: KindTrue} }
func Bool(b bool) Value     { if b { return True() }; return False() }
func Fixnum(n int64) Value  { return Value{kind: KindFixnum, fix: n} }
func Float(f float64) Value { return Value{kind: KindFloat, flo: f} }
func Sym(s SymbolID) Value  { return Value{kind: KindSymbol, sym: s} }

// Object wraps any HeapObject (String, Array, Hash, Range, Proc, Class,
// Object, Env, Exception, ...) as a tagged Value.
func Object(ref HeapObject) Value {
	if ref == nil {
		return Nil()
	}
	return Value{kind: KindObject, ref: ref}
}

func (v Value) Kind() Kind { return v.kind }

// Truthy implements spec.md §3: nil and false are falsy, everything else
// (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	return v.kind != KindNil && v.kind != KindFalse
}

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsFixnum() bool { return v.kind == KindFixnum }
func (v Value) IsFloat() bool  { return v.kind == KindFloat }
func (v Value) IsSymbol() bool { return v.kind == KindSymbol }
func (v Value) IsObject() bool { return v.kind == KindObject }

// FixnumValue returns 0 if Kind() != KindFixnum; callers must check first,
// same discipline the teacher's value.go constructors assume of callers.
func (v Value) FixnumValue() int64 { return v.fix }
func (v Value) FloatValue() float64 { return v.flo }
func (v Value) SymbolValue() SymbolID { return v.sym }
func (v Value) Ref() HeapObject       { return v.ref }

// AsFloat promotes a fixnum to float, or returns the float as-is. Returns
// 0 for any other kind; callers gate on IsFixnum()/IsFloat() first.
func (v Value) AsFloat() float64 {
	if v.kind == KindFixnum {
		return float64(v.fix)
	}
	return v.flo
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindFalse:
		return "false"
	case KindTrue:
		return "true"
	case KindFixnum:
		return fmt.Sprintf("%d", v.fix)
	case KindFloat:
		return formatFloat(v.flo)
	case KindSymbol:
		return fmt.Sprintf(":%d", v.sym)
	case KindObject:
		if v.ref == nil {
			return "<nil-ref>"
		}
		return v.ref.Inspect()
	default:
		return "<invalid>"
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%g", f)
}

// HeapObject is the interface every reference-kind payload implements.
// ObjectKind distinguishes String/Array/Hash/... at runtime, the way the
// teacher's values.Value.Type discriminates its Data payload.
type HeapObject interface {
	ObjectKind() ObjectKind
	Inspect() string
}

type ObjectKind byte

const (
	ObjString ObjectKind = iota
	ObjArray
	ObjHash
	ObjRange
	ObjProc
	ObjClass
	ObjInstance
	ObjEnv
	ObjException
)

// Equal implements library equality for the round-trip properties in
// spec.md §8 (HASH built from pairs, queried by key). Fixnum/float cross
// comparison follows Ruby-like numeric equality; symbols and object refs
// compare by identity/kind-specific equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		if (a.kind == KindFixnum && b.kind == KindFloat) || (a.kind == KindFloat && b.kind == KindFixnum) {
			return a.AsFloat() == b.AsFloat()
		}
		return false
	}
	switch a.kind {
	case KindNil, KindFalse, KindTrue:
		return true
	case KindFixnum:
		return a.fix == b.fix
	case KindFloat:
		return a.flo == b.flo
	case KindSymbol:
		return a.sym == b.sym
	case KindObject:
		return equalHeap(a.ref, b.ref)
	}
	return false
}

func equalHeap(a, b HeapObject) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ObjectKind() != b.ObjectKind() {
		return false
	}
	switch av := a.(type) {
	case *String:
		bv := b.(*String)
		return av.S == bv.S
	case *Array:
		bv := b.(*Array)
		if len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
