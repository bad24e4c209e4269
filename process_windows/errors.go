//go:build windows

package process_windows

import (
	"errors"

	"procscope/process"

	"golang.org/x/sys/windows"
)

// Classify reads Win32 and NTSTATUS codes literally. Access denied is
// ambiguous: protected and already exited processes both produce it.
func (b *WindowsBackend) Classify(err error) process.Verdict {
	var status windows.NTStatus
	if errors.As(err, &status) {
		return classifyStatus(status)
	}

	var errno windows.Errno
	if !errors.As(err, &errno) {
		return process.Verdict{Kind: process.KindFatal}
	}

	v := process.Verdict{Code: int64(errno)}
	switch errno {
	case windows.ERROR_INVALID_PARAMETER:
		v.Kind = process.KindNoSuchProcess
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_PARTIAL_COPY:
		v.Kind = process.KindAccessDenied
		v.Ambiguous = true
	case windows.ERROR_PRIVILEGE_NOT_HELD, windows.ERROR_NONE_MAPPED:
		v.Kind = process.KindAccessDenied
	case windows.WAIT_TIMEOUT:
		v.Kind = process.KindTimeout
	case windows.ERROR_NOT_SUPPORTED, windows.ERROR_CALL_NOT_IMPLEMENTED:
		v.Kind = process.KindUnsupported
	default:
		v.Kind = process.KindFatal
	}
	return v
}

func classifyStatus(status windows.NTStatus) process.Verdict {
	v := process.Verdict{Code: int64(status)}
	switch status {
	case windows.STATUS_INVALID_CID, windows.STATUS_INVALID_PARAMETER, windows.STATUS_PROCESS_IS_TERMINATING:
		v.Kind = process.KindNoSuchProcess
	case windows.STATUS_ACCESS_DENIED, windows.STATUS_PARTIAL_COPY:
		v.Kind = process.KindAccessDenied
		v.Ambiguous = true
	case windows.STATUS_NOT_IMPLEMENTED, windows.STATUS_NOT_SUPPORTED, windows.STATUS_INVALID_INFO_CLASS:
		v.Kind = process.KindUnsupported
	default:
		v.Kind = process.KindFatal
	}
	return v
}

// tooSmall reports the codes variable-length NT and Win32 queries use to
// ask for a larger buffer
func tooSmall(err error) bool {
	switch {
	case errors.Is(err, windows.STATUS_INFO_LENGTH_MISMATCH),
		errors.Is(err, windows.STATUS_BUFFER_TOO_SMALL),
		errors.Is(err, windows.STATUS_BUFFER_OVERFLOW),
		errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER),
		errors.Is(err, windows.ERROR_MORE_DATA):
		return true
	}
	return false
}
