//go:build linux || darwin

package process

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ClassifyErrno is the errno table shared by the unix backends. EPERM and
// EACCES are ambiguous: a process that exits mid-query leaves /proc entries
// that refuse access before they disappear.
func ClassifyErrno(err error) Verdict {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		if errors.Is(err, fs.ErrNotExist) {
			return Verdict{Kind: KindNoSuchProcess}
		}
		if errors.Is(err, fs.ErrPermission) {
			return Verdict{Kind: KindAccessDenied, Ambiguous: true}
		}
		return Verdict{Kind: KindFatal}
	}

	v := Verdict{Code: int64(errno)}
	switch errno {
	case unix.ESRCH, unix.ENOENT:
		v.Kind = KindNoSuchProcess
	case unix.EPERM, unix.EACCES:
		v.Kind = KindAccessDenied
		v.Ambiguous = true
	case unix.EINTR:
		v.Kind = KindInterrupted
	case unix.ETIMEDOUT:
		v.Kind = KindTimeout
	case unix.ENOSYS, unix.EOPNOTSUPP:
		v.Kind = KindUnsupported
	default:
		v.Kind = KindFatal
	}
	return v
}
