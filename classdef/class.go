package classdef

import "github.com/ashel/mrvm/values"

// Class is the minimal class-system record the VM's SEND/SUPER/CLASS
// opcodes address: an ancestor chain (Super), a method table, and a
// constant table, grounded on the teacher's registry.Class (a compiled
// class record keyed by name with a map-based method table) but trimmed
// to what spec.md §6.5's "Class system" contract actually requires.
type Class struct {
	Name      string
	Super     *Class
	IsModule  bool
	Methods   map[values.SymbolID]*Proc
	Consts    map[values.SymbolID]values.Value
	CVars     map[values.SymbolID]values.Value
	Singleton *Class // this class's own singleton (metaclass), lazily created
}

func NewClass(name string, super *Class) *Class {
	return &Class{
		Name:    name,
		Super:   super,
		Methods: make(map[values.SymbolID]*Proc),
		Consts:  make(map[values.SymbolID]values.Value),
		CVars:   make(map[values.SymbolID]values.Value),
	}
}

func NewModule(name string) *Class {
	c := NewClass(name, nil)
	c.IsModule = true
	return c
}

func (*Class) ObjectKind() values.ObjectKind { return values.ObjClass }
func (c *Class) Inspect() string             { return c.Name }

// DefineMethod installs proc into class's method table under mid,
// stamping proc.TargetClass so SUPER resolution works (spec.md §6.5
// "define_method(class, symbol, proc)").
func (c *Class) DefineMethod(mid values.SymbolID, proc *Proc) {
	proc.TargetClass = c
	c.Methods[mid] = proc
}

// MethodSearch walks class_of(receiver)'s ancestor chain for mid,
// returning the proc and the class it was actually defined in (mruby
// mutates the caller's class pointer to the defining class; Go returns
// it instead, which is behaviorally equivalent and avoids an out
// parameter). Returns (nil, nil) if absent anywhere in the chain.
func MethodSearch(start *Class, mid values.SymbolID) (*Proc, *Class) {
	for c := start; c != nil; c = c.Super {
		if p, ok := c.Methods[mid]; ok {
			return p, c
		}
	}
	return nil, nil
}

// ConstGet looks up a constant starting at cls and walking up Super,
// per spec.md §6.5 "const_get/set".
func ConstGet(cls *Class, sym values.SymbolID) (values.Value, bool) {
	for c := cls; c != nil; c = c.Super {
		if v, ok := c.Consts[sym]; ok {
			return v, true
		}
	}
	return values.Nil(), false
}

// ConstSet defines a constant directly on cls.
func ConstSet(cls *Class, sym values.SymbolID, v values.Value) {
	cls.Consts[sym] = v
}

// CVarGet/CVarSet implement class-variable access (GETCV/SETCV),
// inherited up the ancestor chain the way Ruby class variables are.
func CVarGet(cls *Class, sym values.SymbolID) (values.Value, bool) {
	for c := cls; c != nil; c = c.Super {
		if v, ok := c.CVars[sym]; ok {
			return v, true
		}
	}
	return values.Nil(), false
}

func CVarSet(cls *Class, sym values.SymbolID, v values.Value) {
	for c := cls; c != nil; c = c.Super {
		if _, ok := c.CVars[sym]; ok {
			c.CVars[sym] = v
			return
		}
	}
	cls.CVars[sym] = v
}

// SingletonClass returns (creating if necessary) the per-object
// singleton class backing a Class value (spec.md §6.5
// "singleton_class(value)"). Only classes/modules carry a singleton in
// this minimal model; other value kinds return class_of(value) as-is,
// matching the common case where no singleton method has been defined.
func SingletonClass(c *Class) *Class {
	if c.Singleton != nil {
		return c.Singleton
	}
	superSingleton := (*Class)(nil)
	if c.Super != nil {
		superSingleton = SingletonClass(c.Super)
	}
	sc := NewClass("#<Class:"+c.Name+">", superSingleton)
	c.Singleton = sc
	return sc
}

// Instance is a plain object: a class pointer plus an instance-variable
// table (spec.md §6.5 "instance [variable table] (keyed by current
// self)").
type Instance struct {
	Class *Class
	IVars map[values.SymbolID]values.Value
}

func NewInstance(cls *Class) *Instance {
	return &Instance{Class: cls, IVars: make(map[values.SymbolID]values.Value)}
}

func (*Instance) ObjectKind() values.ObjectKind { return values.ObjInstance }
func (o *Instance) Inspect() string             { return "#<" + o.Class.Name + ">" }

func (o *Instance) IVarGet(sym values.SymbolID) (values.Value, bool) {
	v, ok := o.IVars[sym]
	return v, ok
}

func (o *Instance) IVarSet(sym values.SymbolID, v values.Value) {
	o.IVars[sym] = v
}
