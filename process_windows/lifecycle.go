//go:build windows

package process_windows

import (
	"errors"
	"time"

	"procscope/process"

	"golang.org/x/sys/windows"
)

// exit code handed to TerminateProcess, SIGTERM as on unix
const terminateExitCode = 15

// Kill terminates pid. ERROR_ACCESS_DENIED is what TerminateProcess
// returns for a process that exited after it was opened, so it counts as
// killed. A pid OpenProcess cannot find is NoSuchProcess.
func (b *WindowsBackend) Kill(pid process.ProcessID) error {
	h, err := b.acquire(pid, windows.PROCESS_TERMINATE)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	err = windows.TerminateProcess(h, terminateExitCode)
	if err == nil || errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return nil
	}
	return process.Wrap("TerminateProcess", err)
}

func (b *WindowsBackend) SuspendOrResume(pid process.ProcessID, suspend bool) error {
	h, err := b.acquire(pid, windows.PROCESS_SUSPEND_RESUME)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	proc, name := procNtResumeProcess, "NtResumeProcess"
	if suspend {
		proc, name = procNtSuspendProcess, "NtSuspendProcess"
	}
	return process.Wrap(name, callNT(proc, uintptr(h)))
}

// Wait blocks on the process handle. A process that is gone before the
// wait starts reports an unknown exit code.
func (b *WindowsBackend) Wait(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	h, err := b.acquire(pid, windows.SYNCHRONIZE|windows.PROCESS_QUERY_INFORMATION)
	if err != nil {
		if kind, ok := process.KindOf(err); ok && kind == process.KindNoSuchProcess {
			return process.ExitedUnknown(), nil
		}
		return process.WaitResult{}, err
	}
	defer windows.CloseHandle(h)

	event, err := windows.WaitForSingleObject(h, waitMillis(timeout))
	switch {
	case err != nil:
		return process.WaitResult{}, process.WaitOutcome(pid, "WaitForSingleObject", process.WaitFailed, err)
	case event == uint32(windows.WAIT_TIMEOUT):
		return process.WaitResult{}, process.WaitOutcome(pid, "WaitForSingleObject", process.WaitTimedOut, nil)
	case event == windows.WAIT_ABANDONED:
		return process.WaitResult{}, process.WaitOutcome(pid, "WaitForSingleObject", process.WaitAbandoned, nil)
	}

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil || code == stillActive {
		return process.ExitedUnknown(), nil
	}
	return process.Exited(int(code)), nil
}

// waitMillis converts a timeout to WaitForSingleObject milliseconds. Finite
// timeouts stay below INFINITE.
func waitMillis(timeout time.Duration) uint32 {
	if timeout < 0 {
		return windows.INFINITE
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms >= windows.INFINITE {
		return windows.INFINITE - 1
	}
	return uint32(ms)
}
