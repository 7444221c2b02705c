package classdef

import "github.com/ashel/mrvm/values"

// ProcKind discriminates a Proc's body: a native Go function or a
// bytecode irep (spec.md §3 "Proc").
type ProcKind byte

const (
	ProcBytecode ProcKind = iota
	ProcCFunc
)

// Invoker is the minimal callback surface a CFunc needs to re-enter the
// VM (spec.md §5 "an operation 'suspends' only when a C-function
// reenters the VM via funcall"). The concrete implementation lives in
// package vm; classdef only needs the interface to avoid an import
// cycle between the class system and the dispatch loop.
type Invoker interface {
	Funcall(self values.Value, mid values.SymbolID, args []values.Value, block values.Value) (values.Value, error)
	RaiseRuntimeError(format string, args ...interface{}) error
}

// CFunc is a native method implementation. The VM's call protocol has
// already resolved and copied the argument window before invoking it, so
// a CFunc just receives self and the plain argument slice.
type CFunc func(inv Invoker, self values.Value, args []values.Value) (values.Value, error)

// Proc is a callable body: either a C-function or a bytecode irep, plus
// the metadata spec.md §3 lists (target_class for super resolution, the
// lambda-strict/c-function flags, and an optional captured environment).
type Proc struct {
	Kind        ProcKind
	CFn         CFunc
	Body        *Irep
	TargetClass *Class
	Strict      bool // MRB_PROC_STRICT: lambda arity-checked calling convention
	Env         *REnv
	// LexicalParent is the enclosing proc at definition time, used when a
	// freshly LAMBDA'd closure has no env of its own yet but still needs
	// to resolve upvalues through its lexical parent's chain.
	LexicalParent *Proc
}

func (*Proc) ObjectKind() values.ObjectKind { return values.ObjProc }
func (p *Proc) Inspect() string {
	if p.Kind == ProcCFunc {
		return "#<Proc (cfunc)>"
	}
	return "#<Proc (bytecode)>"
}

// NewBytecodeProc builds a proc whose body is a compiled irep.
func NewBytecodeProc(body *Irep, target *Class, strict bool) *Proc {
	return &Proc{Kind: ProcBytecode, Body: body, TargetClass: target, Strict: strict}
}

// NewCFuncProc builds a proc backed by a native Go function.
func NewCFuncProc(fn CFunc, target *Class) *Proc {
	return &Proc{Kind: ProcCFunc, CFn: fn, TargetClass: target}
}

// REnv is a materialized captured lexical scope (spec.md §3
// "Environment"). Per spec.md's Shared-resource policy ("implementations
// without raw pointer aliasing should model the environment as
// Live{frame_id, base_offset} | Captured(Vec<Value>)"), it never caches a
// slice header across the owning frame's lifetime: the value stack can
// be reallocated by stackExtend at any point, which would silently
// strand a cached slice on the old backing array. While Live, Base is
// an offset into the CURRENT stack array, re-read through the owning
// state on every access; once the frame exits, Capture snapshots the
// window into Captured and the env no longer depends on the stack at
// all.
type REnv struct {
	Base     int // register offset of the owning frame; valid only while Live
	Len      int
	CIOff    int            // call-info index the env was created at; -1 once captured
	Captured []values.Value // private snapshot, set once Capture runs
	MID      values.SymbolID
	HasMID   bool
	// Parent records the capturing proc's own REnv at capture time.
	// GETUPVAR/SETUPVAR do not walk it; their up-level count walks
	// Proc.LexicalParent instead (vm's envAt).
	Parent *REnv
}

func (*REnv) ObjectKind() values.ObjectKind { return values.ObjEnv }
func (e *REnv) Inspect() string             { return "#<Env>" }

// Live reports whether the environment still aliases a live frame.
func (e *REnv) Live() bool { return e.CIOff >= 0 }

// Capture snapshots the environment's registers into a private buffer
// and severs the alias with the live frame stack (spec.md §4.4 step 1,
// invariant 3). live is the owning frame's CURRENT register window,
// re-derived by the caller (package vm, which owns the stack) rather
// than read from a field here.
func (e *REnv) Capture(live []values.Value) {
	if !e.Live() {
		return
	}
	buf := make([]values.Value, e.Len)
	copy(buf, live[:e.Len])
	e.Captured = buf
	e.CIOff = -1
}
