package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// CallInfo is the per-activation frame descriptor from spec.md §3.
// ArgC of -1 is the sentinel "arguments packed into a single array in
// R[1]" case (an outgoing call with more than CallMaxArgs-1 arguments).
type CallInfo struct {
	MID         values.SymbolID
	Proc        *classdef.Proc
	StackIdx    int // absolute offset into the value stack of register 0
	NRegs       int
	ArgC        int // -1 means "packed array in R[1]"
	Acc         int // destination register in caller, or -1 for "return from Run"
	PC          int // this frame's own instruction pointer (see note below)
	TargetClass *classdef.Class
	Env         *classdef.REnv
	EIdx        int // ensure-stack watermark on entry
	RIdx        int // rescue-stack watermark on entry
}

// Note on PC: spec.md §3 describes it as "caller's saved instruction
// pointer". Since execution is single-threaded and strictly nested, a
// frame's own PC field already holds the correct resume point the
// instant it stops being the active frame (the dispatch loop advances
// it before ever pushing a child CallInfo) — so there is no need to
// additionally stash the caller's pc into the child's own CallInfo the
// way the source does; reading the parent's own PC back out on return
// is equivalent and simpler.

// pushCallInfo grows the call-info stack (doubling, per spec.md §5) and
// pushes a new frame that inherits nregs/eidx/ridx from its predecessor,
// exactly as mruby's cipush does — this is what keeps ensure/rescue
// watermarks correct for calls that never reach ENTER.
func (s *State) pushCallInfo() int {
	prev := s.ci[len(s.ci)-1]
	s.ci = append(s.ci, CallInfo{
		NRegs: prev.NRegs,
		EIdx:  prev.EIdx,
		RIdx:  prev.RIdx,
	})
	return len(s.ci) - 1
}

// popCallInfo pops the current frame.
func (s *State) popCallInfo() {
	s.ci = s.ci[:len(s.ci)-1]
}

func (s *State) curCI() *CallInfo   { return &s.ci[len(s.ci)-1] }
func (s *State) ciDepth() int       { return len(s.ci) }
func (s *State) ciAt(idx int) *CallInfo { return &s.ci[idx] }
func (s *State) atBase() bool       { return len(s.ci) == 1 }
