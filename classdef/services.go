package classdef

import (
	"sync"

	"github.com/ashel/mrvm/values"
)

// Services bundles the external collaborators spec.md §6.5 treats as
// opaque: the symbol intern table, the class system's well-known
// classes, and the global/special variable tables. Grounded on the
// teacher's VariableManager/ClassManager pair (sync.Map-backed symbol
// and class tables reachable from the VM without import cycles), merged
// into one service object the way mrb_state itself bundles them.
type Services struct {
	Symbols *values.SymbolTable

	mu       sync.RWMutex
	globals  map[values.SymbolID]values.Value
	specials map[values.SymbolID]values.Value

	ObjectClass         *Class
	ExceptionClass       *Class
	StandardErrorClass   *Class
	RuntimeErrorClass    *Class
	ArgumentErrorClass   *Class
	LocalJumpErrorClass  *Class
	NoMethodErrorClass   *Class
	TypeErrorClass       *Class

	IntegerClass *Class
	FloatClass   *Class
	StringClass  *Class
	SymbolClass  *Class
	ArrayClass   *Class
	HashClass    *Class
	RangeClass   *Class
	ProcClass    *Class
	NilClass     *Class
	TrueClass    *Class
	FalseClass   *Class
	ClassClass   *Class

	// errorClassesByName lets the default raise/rescue path look up a
	// well-known exception class by the name a RAISE call site used, the
	// way mrb_intern + constant lookup would in the real library.
	errorClassesByName map[string]*Class
}

// NewServices constructs the default well-known-class universe: Object
// at the root, a StandardError hierarchy, and classes for every
// immediate/heap value kind, matching spec.md §3's "references to
// well-known classes (object, runtime-error)".
func NewServices() *Services {
	s := &Services{
		Symbols:            values.NewSymbolTable(),
		globals:            make(map[values.SymbolID]values.Value),
		specials:           make(map[values.SymbolID]values.Value),
		errorClassesByName: make(map[string]*Class),
	}

	s.ObjectClass = NewClass("Object", nil)
	s.ExceptionClass = NewClass("Exception", s.ObjectClass)
	s.StandardErrorClass = NewClass("StandardError", s.ExceptionClass)
	s.RuntimeErrorClass = NewClass("RuntimeError", s.StandardErrorClass)
	s.ArgumentErrorClass = NewClass("ArgumentError", s.StandardErrorClass)
	s.LocalJumpErrorClass = NewClass("LocalJumpError", s.StandardErrorClass)
	s.NoMethodErrorClass = NewClass("NoMethodError", s.StandardErrorClass)
	s.TypeErrorClass = NewClass("TypeError", s.StandardErrorClass)

	s.IntegerClass = NewClass("Integer", s.ObjectClass)
	s.FloatClass = NewClass("Float", s.ObjectClass)
	s.StringClass = NewClass("String", s.ObjectClass)
	s.SymbolClass = NewClass("Symbol", s.ObjectClass)
	s.ArrayClass = NewClass("Array", s.ObjectClass)
	s.HashClass = NewClass("Hash", s.ObjectClass)
	s.RangeClass = NewClass("Range", s.ObjectClass)
	s.ProcClass = NewClass("Proc", s.ObjectClass)
	s.NilClass = NewClass("NilClass", s.ObjectClass)
	s.TrueClass = NewClass("TrueClass", s.ObjectClass)
	s.FalseClass = NewClass("FalseClass", s.ObjectClass)
	s.ClassClass = NewClass("Class", s.ObjectClass)

	for _, c := range []*Class{
		s.ExceptionClass, s.StandardErrorClass, s.RuntimeErrorClass,
		s.ArgumentErrorClass, s.LocalJumpErrorClass, s.NoMethodErrorClass,
		s.TypeErrorClass,
	} {
		s.errorClassesByName[c.Name] = c
	}

	return s
}

// ErrorClass looks up a well-known exception class by name, falling
// back to RuntimeError for an unrecognized name (mirrors mruby raising
// a plain RuntimeError when a C-level raise site doesn't resolve a more
// specific class).
func (s *Services) ErrorClass(name string) *Class {
	if c, ok := s.errorClassesByName[name]; ok {
		return c
	}
	return s.RuntimeErrorClass
}

// RegisterErrorClass lets embedders/tests add additional rescuable
// classes reachable by name from RAISE's className argument.
func (s *Services) RegisterErrorClass(c *Class) {
	s.errorClassesByName[c.Name] = c
}

func (s *Services) Global(sym values.SymbolID) (values.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.globals[sym]
	return v, ok
}

func (s *Services) SetGlobal(sym values.SymbolID, v values.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[sym] = v
}

func (s *Services) Special(sym values.SymbolID) (values.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.specials[sym]
	return v, ok
}

func (s *Services) SetSpecial(sym values.SymbolID, v values.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specials[sym] = v
}

// ClassOf implements spec.md §6.5 "class_of(value)" for every Value
// kind the VM's data model defines (spec.md §3).
func (s *Services) ClassOf(v values.Value) *Class {
	switch v.Kind() {
	case values.KindNil:
		return s.NilClass
	case values.KindFalse:
		return s.FalseClass
	case values.KindTrue:
		return s.TrueClass
	case values.KindFixnum:
		return s.IntegerClass
	case values.KindFloat:
		return s.FloatClass
	case values.KindSymbol:
		return s.SymbolClass
	case values.KindObject:
		return s.classOfHeap(v.Ref())
	}
	return s.ObjectClass
}

func (s *Services) classOfHeap(ref values.HeapObject) *Class {
	switch o := ref.(type) {
	case *values.String:
		return s.StringClass
	case *values.Array:
		return s.ArrayClass
	case *values.Hash:
		return s.HashClass
	case *values.Range:
		return s.RangeClass
	case *values.Exception:
		return s.ErrorClass(o.ClassName)
	case *Proc:
		return s.ProcClass
	case *Class:
		if o.Singleton != nil {
			return o.Singleton
		}
		return s.ClassClass
	case *Instance:
		return o.Class
	default:
		return s.ObjectClass
	}
}

// DefineClassUnder implements spec.md §6.5 "define_class/module(base,
// super, symbol)": registers a new class as a constant of base (or
// reuses an existing one of the same name, matching Ruby's class-reopen
// semantics).
func DefineClassUnder(base *Class, super *Class, sym values.SymbolID, symbols *values.SymbolTable, isModule bool) *Class {
	if existing, ok := ConstGet(base, sym); ok && existing.IsObject() {
		if c, ok := existing.Ref().(*Class); ok {
			return c
		}
	}
	name := symbols.Name(sym)
	var c *Class
	if isModule {
		c = NewModule(name)
	} else {
		c = NewClass(name, super)
	}
	ConstSet(base, sym, values.Object(c))
	return c
}
