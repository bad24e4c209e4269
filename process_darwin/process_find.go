//go:build darwin

package process_darwin

import (
	"errors"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// Pids lists kern.proc.all in kernel order
func (b *DarwinBackend) Pids() ([]process.ProcessID, error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, process.Fatal(0, "sysctl kern.proc.all", err)
	}
	pids := make([]process.ProcessID, 0, len(procs))
	for i := range procs {
		pids = append(pids, process.ProcessID(procs[i].Proc.P_pid))
	}
	return pids, nil
}

// Snapshot takes pids, parents and names from one kern.proc.all call
func (b *DarwinBackend) Snapshot() (*process.Snapshot, error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, process.Fatal(0, "sysctl kern.proc.all", err)
	}

	pids := make([]process.ProcessID, 0, len(procs))
	parents := make(map[process.ProcessID]process.ProcessID, len(procs))
	names := make(map[process.ProcessID]string, len(procs))
	for i := range procs {
		kp := &procs[i]
		pid := process.ProcessID(kp.Proc.P_pid)
		pids = append(pids, pid)
		parents[pid] = process.ProcessID(kp.Eproc.Ppid)
		names[pid] = unix.ByteSliceToString(kp.Proc.P_comm[:])
	}

	s := process.NewSnapshot(pids, parents)
	s.Names = names
	return s, nil
}

// PidExists sends signal 0. EPERM means the process exists but is not ours.
// pid 0 is the kernel task and always exists.
func (b *DarwinBackend) PidExists(pid process.ProcessID) (bool, error) {
	if pid == 0 {
		return true, nil
	}
	err := unix.Kill(int(pid), 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, process.Wrap("kill", err)
	}
}

func (b *DarwinBackend) IsZombie(pid process.ProcessID) bool {
	kp, err := b.kinfo(pid)
	return err == nil && kp.Proc.P_stat == statZombie
}

// Name returns p_comm, truncated by the kernel to 16 bytes
func (b *DarwinBackend) Name(pid process.ProcessID) (string, error) {
	kp, err := b.kinfo(pid)
	if err != nil {
		return "", err
	}
	return unix.ByteSliceToString(kp.Proc.P_comm[:]), nil
}
