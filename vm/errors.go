package vm

import (
	"errors"
	"fmt"

	"github.com/ashel/mrvm/values"
)

// Sentinel errors naming VM-internal failure conditions (stack/call-info
// exhaustion, a break/return with no reachable target frame, an invalid
// instruction). No code in this package returns them; a break/return
// without a live target raises LocalJumpError instead. Grounded on the
// teacher's vm/errors.go sentinel-plus-wrapper pattern: a small set of
// errors.New root causes, wrapped with call-site detail through a
// struct implementing Unwrap so callers can still errors.Is/errors.As.
var (
	ErrStackOverflow    = errors.New("mrvm: value stack exhausted")
	ErrCallInfoOverflow = errors.New("mrvm: call-info stack exhausted")
	ErrNoTargetFrame    = errors.New("mrvm: break/return has no reachable target frame")
	ErrBadInstruction   = errors.New("mrvm: invalid instruction for current dispatch state")
)

// VMError wraps a sentinel with the dispatch-time context (instruction
// pointer, call-info depth) that produced it, mirroring the teacher's
// *VMError{Op, Cause} wrapper around its own sentinel errors.
type VMError struct {
	Op    string // the opcode or subsystem that raised this
	PC    int
	Depth int
	Cause error
}

func (e *VMError) Error() string {
	return fmt.Sprintf("mrvm: %s at pc=%d depth=%d: %v", e.Op, e.PC, e.Depth, e.Cause)
}

func (e *VMError) Unwrap() error { return e.Cause }

func (s *State) wrapErr(op string, cause error) error {
	return &VMError{Op: op, PC: s.curCI().PC, Depth: s.ciDepth(), Cause: cause}
}

// RaiseRuntimeError implements classdef.Invoker: it raises a
// RuntimeError carrying a formatted message, matching mrb_raise's
// printf-style call sites throughout vm.c.
func (s *State) RaiseRuntimeError(format string, args ...interface{}) error {
	return s.raiseNamed("RuntimeError", fmt.Sprintf(format, args...))
}

// raiseNamed builds an Exception of the named well-known class and sets
// it as the pending exception (spec.md §7's raise entry point); it
// always returns a non-nil Go error so a Go-level caller (a CFunc, or
// the dispatch loop itself) can propagate it the ordinary Go way while
// the RAISE-unwind loop also honors s.exc.
func (s *State) raiseNamed(className, message string) error {
	exc := &values.Exception{ClassName: className, Message: message}
	s.setException(exc)
	return exc
}

func (s *State) raiseArgumentError(format string, args ...interface{}) error {
	return s.raiseNamed("ArgumentError", fmt.Sprintf(format, args...))
}

func (s *State) raiseLocalJumpError(format string, args ...interface{}) error {
	return s.raiseNamed("LocalJumpError", fmt.Sprintf(format, args...))
}

func (s *State) raiseNoMethodError(format string, args ...interface{}) error {
	return s.raiseNamed("NoMethodError", fmt.Sprintf(format, args...))
}

func (s *State) raiseTypeError(format string, args ...interface{}) error {
	return s.raiseNamed("TypeError", fmt.Sprintf(format, args...))
}
