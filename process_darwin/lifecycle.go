//go:build darwin

package process_darwin

import (
	"errors"
	"time"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// Kill sends SIGKILL. A process that is already gone counts as killed.
func (b *DarwinBackend) Kill(pid process.ProcessID) error {
	err := unix.Kill(int(pid), unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return process.Wrap("kill", err)
}

func (b *DarwinBackend) SuspendOrResume(pid process.ProcessID, suspend bool) error {
	sig := unix.SIGCONT
	if suspend {
		sig = unix.SIGSTOP
	}
	return process.Wrap("kill", unix.Kill(int(pid), sig))
}

// Wait registers an EVFILT_PROC NOTE_EXIT filter on a private kqueue. The
// exit code is only collected for our own children.
func (b *DarwinBackend) Wait(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return process.WaitResult{}, process.Wrap("kqueue", err)
	}
	defer unix.Close(kq)

	var change unix.Kevent_t
	unix.SetKevent(&change, int(pid), unix.EVFILT_PROC, unix.EV_ADD|unix.EV_ONESHOT)
	change.Fflags = unix.NOTE_EXIT

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	changes := []unix.Kevent_t{change}
	events := make([]unix.Kevent_t, 1)
	for {
		var ts *unix.Timespec
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left < 0 {
				left = 0
			}
			t := unix.NsecToTimespec(left.Nanoseconds())
			ts = &t
		}

		n, err := unix.Kevent(kq, changes, events, ts)
		switch {
		case errors.Is(err, unix.EINTR):
			// the filter is registered, don't add it twice
			changes = nil
			continue
		case errors.Is(err, unix.ESRCH):
			return reap(pid), nil
		case err != nil:
			return process.WaitResult{}, process.WaitOutcome(pid, "kevent", process.WaitFailed, err)
		case n == 0:
			return process.WaitResult{}, process.WaitOutcome(pid, "kevent", process.WaitTimedOut, nil)
		}

		// registration failures come back as an EV_ERROR event
		if ev := events[0]; ev.Flags&unix.EV_ERROR != 0 {
			errno := unix.Errno(ev.Data)
			if errno == unix.ESRCH {
				return reap(pid), nil
			}
			return process.WaitResult{}, process.WaitOutcome(pid, "kevent", process.WaitFailed, errno)
		}
		return reap(pid), nil
	}
}

// reap collects the exit status if pid is our child
func reap(pid process.ProcessID) process.WaitResult {
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(int(pid), &ws, unix.WNOHANG, nil)
	if err != nil || wpid != int(pid) {
		return process.ExitedUnknown()
	}
	switch {
	case ws.Exited():
		return process.Exited(ws.ExitStatus())
	case ws.Signaled():
		return process.Exited(-int(ws.Signal()))
	default:
		return process.ExitedUnknown()
	}
}
