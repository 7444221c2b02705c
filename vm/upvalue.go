package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// envAt walks the lexical-parent chain lv levels up from the current
// frame's proc and returns that proc's environment (spec.md §4.5,
// grounded on the reference interpreter's uvenv: level 0 is the current
// proc's own env, not its parent's).
func (s *State) envAt(ci *CallInfo, lv int) *classdef.REnv {
	if ci.Proc == nil {
		return nil
	}
	proc := ci.Proc
	for i := 0; i < lv; i++ {
		if proc == nil {
			return nil
		}
		proc = proc.LexicalParent
	}
	if proc == nil {
		return nil
	}
	return proc.Env
}

// captureEnv lazily materializes ci's own environment, recording its
// frame's register offset (spec.md §3 invariant 3) and chaining to the
// enclosing frame's environment so nested closures can walk outward.
// It does NOT cache a slice into the shared stack: stackExtend can
// reallocate that array at any later point, which would strand a
// cached header on stale memory (spec.md's Shared-resource policy).
func (s *State) captureEnv(ci *CallInfo) *classdef.REnv {
	if ci.Env != nil {
		return ci.Env
	}
	env := &classdef.REnv{
		Base:  ci.StackIdx,
		Len:   ci.NRegs,
		CIOff: s.ciDepth() - 1,
	}
	if ci.Proc != nil {
		env.Parent = ci.Proc.Env
	}
	ci.Env = env
	return env
}

// envStack resolves env's current register window: re-derived from the
// owning frame's base offset into the (possibly-reallocated) shared
// stack while still live, or the private snapshot once severed. Never
// cache this slice across a call — re-resolve on every access.
func (s *State) envStack(env *classdef.REnv) []values.Value {
	if env.Live() {
		return s.regs(env.Base)
	}
	return env.Captured
}

// getUpvar/setUpvar implement GETUPVAR/SETUPVAR (spec.md §4.5): absent
// environments or out-of-range indices are a no-op/nil rather than an
// error, since a compiler bug here is not something the VM core can
// usefully diagnose.
func (s *State) getUpvar(ci *CallInfo, b, lv int) values.Value {
	env := s.envAt(ci, lv)
	if env == nil || b < 0 || b >= env.Len {
		return values.Nil()
	}
	return s.envStack(env)[b]
}

func (s *State) setUpvar(ci *CallInfo, b, lv int, v values.Value) {
	env := s.envAt(ci, lv)
	if env == nil || b < 0 || b >= env.Len {
		return
	}
	s.envStack(env)[b] = v
	s.WriteBarrier(env)
}
