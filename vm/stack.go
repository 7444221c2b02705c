package vm

import (
	"golang.org/x/exp/slices"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/values"
)

// stackExtend reproduces mruby's stack_extend(room, keep) exactly
// (spec.md §C): if the frame at base needs more room than the backing
// array currently has, the array doubles in size, or — if room alone
// exceeds the current size — grows by exactly room. Registers between
// keep and room are zeroed; registers below keep (the ones the caller
// is explicitly preserving, e.g. already-bound arguments) are left
// alone. Because the VM's value stack never shrinks or reslices from
// the front, growing the backing slice never invalidates StackIdx
// offsets already recorded in CallInfo — only len(s.stack) changes.
func (s *State) stackExtend(base, room, keep int) {
	needed := base + room
	if needed > len(s.stack) {
		size := len(s.stack)
		if room <= size {
			size *= 2
		} else {
			size += room
		}
		newLen := size
		if newLen < needed {
			newLen = needed
		}
		if cap(s.stack) < newLen {
			s.stack = slices.Grow(s.stack, newLen-len(s.stack))
		}
		s.stack = s.stack[:newLen]
	}
	if room > keep {
		for i := base + keep; i < base+room; i++ {
			s.stack[i] = values.Nil()
		}
	}
}

// reg reads/writes a register relative to the current frame's base.
func (s *State) reg(base, idx int) values.Value { return s.stack[base+idx] }
func (s *State) setReg(base, idx int, v values.Value) { s.stack[base+idx] = v }

// regs returns the live register window for a frame as a slice, valid
// only until the next stackExtend call (spec.md §5: cached pointers must
// be recomputed after growth — callers must re-derive this per
// instruction, never cache it across a SEND/CALL/RETURN).
func (s *State) regs(base int) []values.Value { return s.stack[base:] }

// pushRescue/popRescueTo implement the rescue-pointer stack (spec.md §3):
// grows monotonically within a frame, truncated back to the frame's
// entry watermark (RIdx) on any non-exceptional return.
func (s *State) pushRescue(pc int) {
	s.rescue = append(s.rescue, pc)
}

func (s *State) popRescueTo(ridx int) {
	s.rescue = s.rescue[:ridx]
}

// pushEnsure/popEnsureTo implement the ensure-proc stack (spec.md §3):
// EPUSH appends the block to run on frame exit; a frame's own EIdx
// watermark bounds which entries belong to it.
func (s *State) pushEnsure(p *classdef.Proc) {
	s.ensure = append(s.ensure, p)
}

func (s *State) popEnsureTo(eidx int) {
	s.ensure = s.ensure[:eidx]
}
