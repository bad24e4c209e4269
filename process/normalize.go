package process

import (
	"errors"
)

// Verdict is a backend's literal reading of a native error code
type Verdict struct {
	Kind Kind
	// Ambiguous marks codes that can mean either "gone" or "not allowed".
	// Such verdicts are only trusted after a liveness check.
	Ambiguous bool
	// Code is the native code, for diagnostics
	Code int64
}

// Classifier maps a native error to a Verdict. It is handed the innermost
// native error of a SyscallError chain.
type Classifier func(err error) Verdict

// Liveness reports whether pid is present in a fresh enumeration
type Liveness func(pid ProcessID) (bool, error)

// ZombieCheck reports whether pid is an exited but unreaped process
type ZombieCheck func(pid ProcessID) bool

// Normalizer turns native failures into *Error values. The zero value is
// not usable; build one with NewNormalizer.
type Normalizer struct {
	classify Classifier
	alive    Liveness
	zombie   ZombieCheck
}

// NewNormalizer returns a Normalizer. zombie may be nil on platforms where
// the native API never reports zombies.
func NewNormalizer(classify Classifier, alive Liveness, zombie ZombieCheck) *Normalizer {
	return &Normalizer{classify: classify, alive: alive, zombie: zombie}
}

// Normalize translates err for pid. syscall names the failing call when err
// does not already carry one. Already normalized errors pass through.
func (n *Normalizer) Normalize(pid ProcessID, syscall string, err error) error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		// a platform gap on a vanished pid is still a vanished pid
		if pe.Kind == KindUnsupported && n.gone(pid) {
			return n.zombieOr(pid, NoSuchProcess(pid, pe.Syscall))
		}
		if pe.PID == 0 && pid != 0 {
			cp := *pe
			cp.PID = pid
			return &cp
		}
		return pe
	}

	native := err
	var se *SyscallError
	if errors.As(err, &se) {
		syscall = se.Syscall
		native = se.Err
	}

	v := n.classify(native)
	kind := n.resolve(pid, v)

	code := v.Code
	if code == 0 {
		code = nativeCode(native)
	}

	return &Error{Kind: kind, PID: pid, Syscall: syscall, Code: code, Err: native}
}

// resolve applies the liveness rule. Ambiguous and unclassified codes are
// re-checked against the process table before they are believed, and so is
// an unsupported call, since a gone pid wins over a platform gap.
func (n *Normalizer) resolve(pid ProcessID, v Verdict) Kind {
	kind := v.Kind

	if (v.Ambiguous || kind == KindFatal || kind == KindUnsupported) && n.gone(pid) {
		kind = KindNoSuchProcess
	}

	if kind == KindNoSuchProcess && n.zombie != nil && n.zombie(pid) {
		kind = KindZombieProcess
	}

	return kind
}

// gone is true only when a successful enumeration lacks pid
func (n *Normalizer) gone(pid ProcessID) bool {
	if n.alive == nil {
		return false
	}
	alive, err := n.alive(pid)
	return err == nil && !alive
}

func (n *Normalizer) zombieOr(pid ProcessID, e *Error) *Error {
	if n.zombie != nil && n.zombie(pid) {
		e.Kind = KindZombieProcess
	}
	return e
}
