package process

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies every failure that leaves the acquisition layer
type Kind uint8

const (
	KindFatal Kind = iota
	KindNoSuchProcess
	KindAccessDenied
	KindZombieProcess
	KindTimeout
	KindWaitAbandoned
	KindInterrupted
	KindUnsupported
)

var kindNames = [...]string{
	KindFatal:         "fatal",
	KindNoSuchProcess: "no such process",
	KindAccessDenied:  "access denied",
	KindZombieProcess: "zombie process",
	KindTimeout:       "timeout",
	KindWaitAbandoned: "wait abandoned",
	KindInterrupted:   "interrupted",
	KindUnsupported:   "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrFatal         = &Error{Kind: KindFatal}
	ErrNoSuchProcess = &Error{Kind: KindNoSuchProcess}
	ErrAccessDenied  = &Error{Kind: KindAccessDenied}
	ErrZombieProcess = &Error{Kind: KindZombieProcess}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrWaitAbandoned = &Error{Kind: KindWaitAbandoned}
	ErrInterrupted   = &Error{Kind: KindInterrupted}
	ErrUnsupported   = &Error{Kind: KindUnsupported}
)

// Error is a normalized failure. Native codes never leave the layer on their
// own, they ride along in Code and Err for diagnostics.
type Error struct {
	Kind    Kind
	PID     ProcessID
	Syscall string // native call that failed, if any
	Code    int64  // native status or errno, 0 when not applicable
	Err     error  // underlying native error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("process %d: %s", e.PID, e.Kind)
	if e.Syscall != "" {
		msg += " (" + e.Syscall + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.PID == 0 && t.Syscall == "" && t.Err == nil
}

// NewError builds an Error of the given kind
func NewError(kind Kind, pid ProcessID, syscall string, err error) *Error {
	return &Error{Kind: kind, PID: pid, Syscall: syscall, Code: nativeCode(err), Err: err}
}

// NoSuchProcess is a shorthand used by backends that detect a vanished
// process without a native error code.
func NoSuchProcess(pid ProcessID, syscall string) *Error {
	return NewError(KindNoSuchProcess, pid, syscall, nil)
}

// AccessDenied is a shorthand for the access-denied kind
func AccessDenied(pid ProcessID, syscall string, err error) *Error {
	return NewError(KindAccessDenied, pid, syscall, err)
}

// Unsupported reports an attribute the running platform cannot provide
func Unsupported(pid ProcessID, what string) *Error {
	return NewError(KindUnsupported, pid, what, nil)
}

// Fatal wraps an unclassified failure
func Fatal(pid ProcessID, syscall string, err error) *Error {
	return NewError(KindFatal, pid, syscall, err)
}

// KindOf returns the kind of a normalized error, and false for anything else
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindFatal, false
}

// SyscallError tags a native error with the call that produced it so the
// normalizer can report it. Backends return these unclassified.
type SyscallError struct {
	Syscall string
	Err     error
}

func (e *SyscallError) Error() string {
	return e.Syscall + ": " + e.Err.Error()
}

func (e *SyscallError) Unwrap() error {
	return e.Err
}

// Wrap attaches a syscall name to err. A nil err stays nil.
func Wrap(syscall string, err error) error {
	if err == nil {
		return nil
	}
	return &SyscallError{Syscall: syscall, Err: err}
}

// nativeCode extracts an errno from the wrap chain. Backends with other
// native code types set Error.Code through their Verdict instead.
func nativeCode(err error) int64 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int64(errno)
	}
	return 0
}
