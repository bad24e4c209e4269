//go:build linux

package process_linux

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// Pids lists every numeric entry under the proc root in directory order
func (b *LinuxBackend) Pids() ([]process.ProcessID, error) {
	procs, err := b.fs.AllProcs()
	if err != nil {
		return nil, process.Fatal(0, "readdir", err)
	}

	pids := make([]process.ProcessID, 0, len(procs))
	for _, p := range procs {
		if p.PID <= 0 {
			continue
		}
		pids = append(pids, process.ProcessID(p.PID))
	}
	return pids, nil
}

// Snapshot reads the parent and name of every process from one directory
// listing. Processes that exit during the walk are dropped from both the
// PID list and the parent map so the two stay consistent.
func (b *LinuxBackend) Snapshot() (*process.Snapshot, error) {
	procs, err := b.fs.AllProcs()
	if err != nil {
		return nil, process.Fatal(0, "readdir", err)
	}

	pids := make([]process.ProcessID, 0, len(procs))
	parents := make(map[process.ProcessID]process.ProcessID, len(procs))
	names := make(map[process.ProcessID]string, len(procs))

	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}
		pid := process.ProcessID(p.PID)
		pids = append(pids, pid)
		parents[pid] = process.ProcessID(stat.PPID)
		names[pid] = stat.Comm
	}

	s := process.NewSnapshot(pids, parents)
	s.Names = names
	return s, nil
}

// PidExists stats /proc/<pid>, falling back to kill 0 for transient errors
func (b *LinuxBackend) PidExists(pid process.ProcessID) (bool, error) {
	if pid == 0 {
		return false, nil
	}
	_, err := os.Stat(b.path(pid, ""))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	err = unix.Kill(int(pid), 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, process.Wrap("kill", err)
	}
}

// IsZombie reports a process in state Z
func (b *LinuxBackend) IsZombie(pid process.ProcessID) bool {
	state, err := b.state(pid)
	return err == nil && state.IsZombie()
}

func (b *LinuxBackend) state(pid process.ProcessID) (process.ProcessState, error) {
	p, err := b.proc(pid)
	if err != nil {
		return "", err
	}
	stat, err := p.Stat()
	if err != nil {
		return "", process.Wrap("stat", err)
	}
	return process.ProcessState(stat.State), nil
}

// Name returns comm, the kernel's 15 character process name
func (b *LinuxBackend) Name(pid process.ProcessID) (string, error) {
	p, err := b.proc(pid)
	if err != nil {
		return "", err
	}
	comm, err := p.Comm()
	if err != nil {
		return "", process.Wrap("comm", err)
	}
	return strings.TrimSpace(comm), nil
}
