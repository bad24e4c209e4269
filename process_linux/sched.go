//go:build linux

package process_linux

import (
	"procscope/process"

	"golang.org/x/sys/unix"
)

const ioprioWhoProcess = 1

// Priority returns the nice value. The raw syscall reports 20-nice.
func (b *LinuxBackend) Priority(pid process.ProcessID) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, process.Wrap("getpriority", err)
	}
	return 20 - prio, nil
}

func (b *LinuxBackend) SetPriority(pid process.ProcessID, priority int) error {
	return process.Wrap("setpriority", unix.Setpriority(unix.PRIO_PROCESS, int(pid), priority))
}

// IOPriority returns the raw ioprio value, class in the bits above 13 and
// level in the bits below.
func (b *LinuxBackend) IOPriority(pid process.ProcessID) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOPRIO_GET, ioprioWhoProcess, uintptr(pid), 0)
	if errno != 0 {
		return 0, process.Wrap("ioprio_get", errno)
	}
	return int(r), nil
}

func (b *LinuxBackend) SetIOPriority(pid process.ProcessID, priority int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, uintptr(pid), uintptr(priority))
	if errno != 0 {
		return process.Wrap("ioprio_set", errno)
	}
	return nil
}

// CPUAffinity returns the allowed cpus as a bitmask of the first 64 cpus
func (b *LinuxBackend) CPUAffinity(pid process.ProcessID) (uint64, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(int(pid), &set); err != nil {
		return 0, process.Wrap("sched_getaffinity", err)
	}
	var mask uint64
	for cpu := 0; cpu < 64; cpu++ {
		if set.IsSet(cpu) {
			mask |= 1 << cpu
		}
	}
	return mask, nil
}

func (b *LinuxBackend) SetCPUAffinity(pid process.ProcessID, mask uint64) error {
	var set unix.CPUSet
	for cpu := 0; cpu < 64; cpu++ {
		if mask&(1<<cpu) != 0 {
			set.Set(cpu)
		}
	}
	return process.Wrap("sched_setaffinity", unix.SchedSetaffinity(int(pid), &set))
}
