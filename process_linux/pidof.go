//go:build linux

package process_linux

import (
	"errors"
	"math"
	"time"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// Kill sends SIGKILL. A process that is already gone counts as killed.
func (b *LinuxBackend) Kill(pid process.ProcessID) error {
	return signal(pid, unix.SIGKILL, true)
}

// SuspendOrResume sends SIGSTOP or SIGCONT
func (b *LinuxBackend) SuspendOrResume(pid process.ProcessID, suspend bool) error {
	sig := unix.SIGCONT
	if suspend {
		sig = unix.SIGSTOP
	}
	return signal(pid, sig, false)
}

func signal(pid process.ProcessID, sig unix.Signal, goneIsOK bool) error {
	// Use raw kill so it works for non-child processes.
	err := unix.Kill(int(pid), sig)
	if err == nil {
		return nil
	}
	if goneIsOK && errors.Is(err, unix.ESRCH) {
		return nil
	}
	return process.Wrap("kill", err)
}

// Wait blocks until pid exits or timeout elapses. It waits on a pidfd where
// the kernel has them and polls /proc otherwise. The exit code is only
// known for our own children.
func (b *LinuxBackend) Wait(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	fd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		switch {
		case errors.Is(err, unix.ESRCH):
			return reap(pid), nil
		case errors.Is(err, unix.ENOSYS):
			b.log.Warn("pidfd_open unavailable, polling /proc for pid ", pid)
			return b.waitClose(pid, timeout)
		default:
			return process.WaitResult{}, process.Wrap("pidfd_open", err)
		}
	}
	defer unix.Close(fd)

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollTimeout(deadline))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return process.WaitResult{}, process.WaitOutcome(pid, "poll", process.WaitFailed, err)
		}
		if n == 0 {
			return process.WaitResult{}, process.WaitOutcome(pid, "poll", process.WaitTimedOut, nil)
		}
		return reap(pid), nil
	}
}

// pollTimeout converts a deadline to poll milliseconds, -1 for none
func pollTimeout(deadline time.Time) int {
	if deadline.IsZero() {
		return -1
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0
	}
	ms := (left + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// reap collects the exit status if pid is our child. Signal deaths are
// reported as the negated signal number.
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

// waitClose waits until the PID disappears from /proc, turns into a zombie,
// or the timeout elapses.
func (b *LinuxBackend) waitClose(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	tick := 25 * time.Millisecond
	for {
		alive, err := b.PidExists(pid)
		if err != nil {
			return process.WaitResult{}, err
		}
		if !alive || b.IsZombie(pid) {
			return reap(pid), nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return process.WaitResult{}, process.WaitOutcome(pid, "waitpid", process.WaitTimedOut, nil)
		}
		time.Sleep(tick)
		// back off to 250ms
		if tick < 250*time.Millisecond {
			tick += 10 * time.Millisecond
		}
	}
}
