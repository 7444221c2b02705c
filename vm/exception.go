package vm

import (
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

// opReturn implements RETURN's three flavors (spec.md §4.4). R_NORMAL
// returns from the current frame; R_BREAK/R_RETURN target the frame
// identified through the running proc's captured environment, raising
// LocalJumpError if that environment is no longer live.
func (s *State) opReturn(ci *CallInfo, inst opcodes.Instruction) (stepResult, values.Value) {
	val := s.reg(ci.StackIdx, int(inst.A))
	mode := opcodes.ReturnMode(inst.B)

	targetIdx := s.ciDepth() - 1
	if mode == opcodes.R_BREAK || mode == opcodes.R_RETURN {
		env := ci.Proc.Env
		if env == nil {
			s.raiseLocalJumpError("unexpected break/return")
			return stepRaised, values.Nil()
		}
		targetIdx = env.CIOff
		if mode == opcodes.R_BREAK {
			targetIdx++
		}
		if targetIdx < 0 || targetIdx >= s.ciDepth() {
			s.raiseLocalJumpError("unexpected break/return")
			return stepRaised, values.Nil()
		}
	}

	for s.ciDepth()-1 > targetIdx {
		s.finishFrame(s.curCI())
		s.popCallInfo()
	}

	target := s.curCI()
	s.finishFrame(target)
	acc := target.Acc
	s.popCallInfo()
	if acc < 0 {
		return stepHalt, val
	}
	caller := s.curCI()
	s.setReg(caller.StackIdx, acc, val)
	return stepContinue, val
}

// finishFrame implements spec.md §4.4's "on any return" sequence for one
// frame: sever the environment alias (if any) by capturing it to the
// heap, then run every ensure proc queued while the frame was active,
// then restore the rescue-stack watermark (invariant 4).
//
// ci is always the still-current top frame (callers invoke this before
// popCallInfo). Its own EIdx/RIdx mirror len(s.ensure)/len(s.rescue)
// exactly while it is current — EPUSH/EPOP and ONERR keep them in sync
// as the frame runs — so they cannot be used as ci's own watermark:
// that would always compare a count against itself and run nothing.
// The correct watermark is the frame BELOW ci, i.e. what s.ensure and
// s.rescue looked like the instant ci was pushed: any entries above
// that belong to ci and must be run/discarded now, on its way out.
func (s *State) finishFrame(ci *CallInfo) {
	if ci.Env != nil && ci.Env.Live() {
		ci.Env.Capture(s.envStack(ci.Env))
	}
	eidx, ridx := 0, 0
	if depth := s.ciDepth(); depth > 1 {
		parent := s.ciAt(depth - 2)
		eidx, ridx = parent.EIdx, parent.RIdx
	}
	s.runEnsures(eidx)
	s.popRescueTo(ridx)
}

// runEnsures invokes, most-recently-queued first, every ensure proc
// above the watermark, truncating the ensure stack as it goes. An
// ensure proc that itself raises wins over whatever exception (if any)
// was already pending, per spec.md §7 "the most recent unhandled
// exception wins".
func (s *State) runEnsures(watermark int) {
	for len(s.ensure) > watermark {
		n := len(s.ensure) - 1
		proc := s.ensure[n]
		s.ensure = s.ensure[:n]
		self := values.Nil()
		if s.ciDepth() > 0 {
			self = s.reg(s.curCI().StackIdx, 0)
		}
		// invokeProc clears a pending exception and hands it back as its
		// error when the ensure completes normally, and returns the
		// ensure's own exception when it raises: re-install either one.
		if _, err := s.invokeProc(proc, self, nil, values.Nil()); err != nil {
			s.ensureExceptionFromErr(err)
		}
	}
}

// opRescue implements RESCUE A: moves the pending exception into
// register A and clears the exception slot, making it user-visible
// (spec.md §4.4 step 2, §7).
func (s *State) opRescue(ci *CallInfo, inst opcodes.Instruction) (stepResult, values.Value) {
	exc := s.CurrentException()
	if exc == nil {
		s.setReg(ci.StackIdx, int(inst.A), values.Nil())
	} else {
		s.setReg(ci.StackIdx, int(inst.A), values.Object(exc))
	}
	s.clearException()
	return stepContinue, values.Nil()
}

// opRaiseReg implements RAISE A: the register at A already holds an
// Exception object (built by library code or a prior LOADL of a raised
// class+message pair); install it as the pending exception so the
// dispatch loop's stepRaised branch performs the unwind.
func (s *State) opRaiseReg(ci *CallInfo, inst opcodes.Instruction) {
	v := s.reg(ci.StackIdx, int(inst.A))
	if exc, ok := v.Ref().(*values.Exception); ok {
		s.setException(exc)
		return
	}
	s.setException(&values.Exception{ClassName: "RuntimeError", Message: v.String()})
}

// opEpush implements EPUSH Bx: build a closure over the nested irep at
// relative index Bx (capturing the current frame's environment) and
// push it onto the ensure stack (spec.md §4.4).
func (s *State) opEpush(ci *CallInfo, irep *classdef.Irep, inst opcodes.Instruction) {
	body := irep.Child(int(inst.Bx()))
	proc := classdef.NewBytecodeProc(body, ci.TargetClass, false)
	proc.Env = s.captureEnv(ci)
	proc.LexicalParent = ci.Proc
	s.pushEnsure(proc)
	ci.EIdx = len(s.ensure)
}

// opEpop implements EPOP A: invoke and pop the top A ensure procs
// immediately (used for `ensure` blocks reached by falling through
// normally, as opposed to on frame exit).
func (s *State) opEpop(ci *CallInfo, inst opcodes.Instruction) {
	n := int(inst.A)
	for i := 0; i < n && len(s.ensure) > 0; i++ {
		top := len(s.ensure) - 1
		proc := s.ensure[top]
		s.ensure = s.ensure[:top]
		self := s.reg(ci.StackIdx, 0)
		_, _ = s.invokeProc(proc, self, nil, values.Nil())
	}
	if ci.EIdx > n {
		ci.EIdx -= n
	} else {
		ci.EIdx = 0
	}
}

// unwind implements spec.md §4.4's exception-unwind walk: pop frames
// while the current one registered no rescue handler of its own, land
// on the first frame that did, and resume at its saved rescue pc.
// Returns false if the walk reaches the base frame with no handler.
func (s *State) unwind() bool {
	for {
		ci := s.curCI()
		if s.atBase() {
			if ci.RIdx == 0 {
				// No handler anywhere, not even a deeper frame to pop: the
				// base frame's own queued ensures still must run before the
				// exception is left pending for the embedder (spec.md §8
				// scenario 6 — ensure runs even when nothing rescues). The
				// base frame has no parent, so its watermark is 0: run
				// everything it queued.
				s.runEnsures(0)
				return false
			}
			break
		}
		parent := s.ciAt(s.ciDepth() - 2)
		if ci.RIdx == parent.RIdx {
			s.finishFrame(ci)
			s.popCallInfo()
			continue
		}
		break
	}

	ci := s.curCI()
	if len(s.rescue) == 0 || ci.RIdx == 0 {
		return false
	}
	pc := s.rescue[len(s.rescue)-1]
	s.popRescueTo(len(s.rescue) - 1)
	ci.RIdx--
	ci.PC = pc
	return true
}
