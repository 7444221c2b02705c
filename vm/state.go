// Package vm implements the execution core spec.md describes: the
// instruction-dispatch loop, the call/return and tail-call/super
// protocols, the ENTER argument-binding algorithm, the exception raise/
// rescue/ensure protocol, and upvalue access through chained closure
// environments. Grounded on the teacher's vm.VirtualMachine/
// ExecutionContext split (vm/vm.go, vm/call_stack.go): a small
// dispatcher type plus a mutable per-run state object.
package vm

import (
	"github.com/google/uuid"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/config"
	"github.com/ashel/mrvm/profiler"
	"github.com/ashel/mrvm/values"
)

const (
	defaultStackInit    = 128
	defaultCallInfoInit = 32
)

// State is one interpreter state (spec.md §2): the value stack, the
// call-info/rescue/ensure stacks, the current-exception slot, the arena
// index, and the well-known-class/symbol services. An embedder may hold
// several of these; each gets a UUID handle purely so multi-instance
// embedders have something stable to log against.
type State struct {
	ID uuid.UUID

	Services *classdef.Services
	Config   config.Config
	Profiler *profiler.Profiler

	stack []values.Value // value stack, grows by doubling
	ci    []CallInfo      // call-info stack, grows by doubling

	rescue []int           // saved program counters for active rescue handlers
	ensure []*classdef.Proc // callables to run on frame exit

	exc       *values.Exception // current exception slot (nil = empty)
	arenaIdx  int                // allocator arena watermark
	allocs    int
}

// NewState builds an interpreter state with the default stack/call-info
// sizes from spec.md §5 (STACK_INIT_SIZE=128, CALLINFO_INIT_SIZE=32),
// overridable via cfg.
func NewState(cfg config.Config) *State {
	cfg = cfg.WithDefaults()
	s := &State{
		ID:       uuid.New(),
		Services: classdef.NewServices(),
		Config:   cfg,
		Profiler: profiler.New(),
		stack:    make([]values.Value, cfg.StackInitSize),
		ci:       make([]CallInfo, 1, cfg.CallInfoInitSize),
	}
	s.ci[0] = CallInfo{TargetClass: s.Services.ObjectClass, NRegs: cfg.StackInitSize}
	return s
}

// ArenaSave/ArenaRestore implement the allocator "arena index" hook
// (spec.md §5 "Allocator hook"): a watermark read at loop entry and
// restored after each instruction, bounding the simulated GC root set
// without a real scanning collector.
func (s *State) ArenaSave() int       { return s.arenaIdx }
func (s *State) ArenaRestore(idx int) { s.arenaIdx = idx }

// bumpArena simulates registering a freshly allocated heap object as a
// GC root; every values constructor path the VM itself calls (ARRAY,
// STRING, HASH, ...) goes through this so ArenaSave/Restore has
// something real to bound; it also counts the allocation in allocs.
func (s *State) bumpArena() {
	s.arenaIdx++
	s.allocs++
}

// WriteBarrier is a no-op hook point (spec.md §5 "write barriers are
// invoked whenever a stored value references a heap object through a
// pre-existing heap object"); Go's GC makes the barrier itself
// unnecessary, but upvalue and instance-variable stores call it
// anyway so the instrumentation point spec.md names is observable and
// testable.
func (s *State) WriteBarrier(values.HeapObject) {
	s.Profiler.WriteBarrier()
}

// CurrentException returns the pending exception, or nil.
func (s *State) CurrentException() *values.Exception { return s.exc }

func (s *State) setException(e *values.Exception) { s.exc = e }
func (s *State) clearException()                  { s.exc = nil }
