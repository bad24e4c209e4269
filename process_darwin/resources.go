//go:build darwin

package process_darwin

import (
	"errors"
	"time"

	"procscope/process"
	"procscope/process/memory_map"

	"golang.org/x/sys/unix"
)

// Times takes the creation time from kinfo_proc and the cpu counters from
// the task info.
func (b *DarwinBackend) Times(pid process.ProcessID) (process.Times, error) {
	kp, err := b.kinfo(pid)
	if err != nil {
		return process.Times{}, err
	}
	ti, err := b.taskInfo(pid)
	if err != nil {
		return process.Times{}, err
	}

	start := timevalTime(kp.Proc.P_starttime)
	return process.Times{
		User:   float64(ti.TotalUser) * b.tickNanos / float64(time.Second),
		System: float64(ti.TotalSystem) * b.tickNanos / float64(time.Second),
		Create: float64(start.UnixNano()) / float64(time.Second),
	}, nil
}

// MemoryInfo maps the task info onto the working set fields. Private is
// the physical footprint when rusage is readable.
func (b *DarwinBackend) MemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	ti, err := b.taskInfo(pid)
	if err != nil {
		return process.MemoryInfo{}, err
	}

	mi := process.MemoryInfo{
		PageFaults: uint64(ti.Faults),
		WorkingSet: ti.ResidentSize,
		Virtual:    ti.VirtualSize,
	}
	if ri, err := b.rusage(pid); err == nil {
		mi.Private = ri.PhysFootprint
	}
	return mi, nil
}

// UniqueSetSize sums the resident private pages of every private or
// copy-on-write region.
func (b *DarwinBackend) UniqueSetSize(pid process.ProcessID) (uint64, error) {
	var pages uint64
	err := b.regions(pid, func(r procRegionWithPathInfo) {
		switch r.Region.ShareMode {
		case smCOW, smPrivate, smPrivateAliased:
			pages += uint64(r.Region.PrivatePagesResident)
		}
	})
	if err != nil {
		return 0, err
	}
	return pages * uint64(b.cfg.PageSize), nil
}

// IOCounters has byte counts only; darwin keeps no operation counts
func (b *DarwinBackend) IOCounters(pid process.ProcessID) (process.IOCounters, error) {
	ri, err := b.rusage(pid)
	if err != nil {
		return process.IOCounters{}, err
	}
	return process.IOCounters{
		ReadBytes:  ri.DiskioBytesRead,
		WriteBytes: ri.DiskioBytesWritten,
	}, nil
}

// OpenFiles returns the vnode descriptors that resolve to a path
func (b *DarwinBackend) OpenFiles(pid process.ProcessID) ([]process.OpenFile, error) {
	fds, err := b.fds(pid)
	if err != nil {
		return nil, err
	}

	var files []process.OpenFile
	for _, fd := range fds {
		if fd.FDType != proxFDTypeVnode {
			continue
		}
		if path, ok := b.fdPath(pid, fd.FD); ok {
			files = append(files, process.OpenFile{Path: path, FD: int64(fd.FD)})
		}
	}
	return files, nil
}

// share modes from mach/vm_region.h
const (
	smCOW            = 1
	smPrivate        = 2
	smPrivateAliased = 6
)

// regions walks the address space with PROC_PIDREGIONPATHINFO
func (b *DarwinBackend) regions(pid process.ProcessID, visit func(procRegionWithPathInfo)) error {
	_, err := memory_map.Scan(func(addr uint64) (memory_map.MemoryRegion, bool, error) {
		ri, err := b.regionAt(pid, addr)
		if err != nil {
			return memory_map.MemoryRegion{}, false, err
		}
		visit(ri)
		return memory_map.MemoryRegion{Address: ri.Region.Address, Size: ri.Region.Size}, true, nil
	})
	return err
}

func (b *DarwinBackend) MemoryMaps(pid process.ProcessID) ([]memory_map.MemoryRegion, error) {
	var out []memory_map.MemoryRegion
	err := b.regions(pid, func(r procRegionWithPathInfo) {
		out = append(out, memory_map.MemoryRegion{
			Address:    r.Region.Address,
			Size:       r.Region.Size,
			Protection: memory_map.ProtectionFromMach(r.Region.Protection, r.Region.ShareMode),
			Path:       r.Vnode.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NumHandles counts open descriptors
func (b *DarwinBackend) NumHandles(pid process.ProcessID) (uint32, error) {
	fds, err := b.fds(pid)
	if err != nil {
		return 0, err
	}
	return uint32(len(fds)), nil
}

// threadInfos reads PROC_PIDTHREADINFO for every thread. Threads that exit
// during the walk are skipped.
func (b *DarwinBackend) threadInfos(pid process.ProcessID) ([]procThreadInfo, error) {
	ti, err := b.taskInfo(pid)
	if err != nil {
		return nil, err
	}
	handles, err := b.threadHandles(pid, ti.Threadnum)
	if err != nil {
		return nil, err
	}

	infos := make([]procThreadInfo, 0, len(handles))
	for _, h := range handles {
		th, err := pidInfo[procThreadInfo](b.libc, pid, procPidThreadInfo, h)
		if err != nil {
			if errors.Is(err, unix.ESRCH) && len(infos) == 0 {
				return nil, err
			}
			continue
		}
		infos = append(infos, th)
	}
	return infos, nil
}

// Threads numbers threads from 1 in kernel order. Thread handles are
// pthread addresses and do not fit the id field.
func (b *DarwinBackend) Threads(pid process.ProcessID) ([]process.Thread, error) {
	infos, err := b.threadInfos(pid)
	if err != nil {
		return nil, err
	}
	threads := make([]process.Thread, 0, len(infos))
	for i, th := range infos {
		threads = append(threads, process.Thread{
			ID:     uint32(i + 1),
			User:   float64(th.UserTime) / float64(time.Second),
			System: float64(th.SystemTime) / float64(time.Second),
		})
	}
	return threads, nil
}

// ThreadStates reports each thread as suspended when the process is
// stopped or the thread itself is. Without access to the task info a
// stopped process is reported as one suspended pseudo-thread.
func (b *DarwinBackend) ThreadStates(pid process.ProcessID) ([]process.ThreadState, error) {
	kp, err := b.kinfo(pid)
	if err != nil {
		return nil, err
	}
	stopped := kp.Proc.P_stat == statStopped

	infos, err := b.threadInfos(pid)
	if err != nil {
		if v := b.Classify(err); v.Kind != process.KindAccessDenied {
			return nil, err
		}
		return []process.ThreadState{{ID: uint32(pid), Suspended: stopped}}, nil
	}

	states := make([]process.ThreadState, 0, len(infos))
	for i, th := range infos {
		states = append(states, process.ThreadState{
			ID:        uint32(i + 1),
			Suspended: stopped || th.RunState == thStateStopped,
		})
	}
	return states, nil
}

// Priority returns the nice value
func (b *DarwinBackend) Priority(pid process.ProcessID) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, process.Wrap("getpriority", err)
	}
	return prio, nil
}

func (b *DarwinBackend) SetPriority(pid process.ProcessID, priority int) error {
	return process.Wrap("setpriority", unix.Setpriority(unix.PRIO_PROCESS, int(pid), priority))
}

// unsupported checks pid first, so a gone process is NoSuchProcess rather
// than a platform gap
func (b *DarwinBackend) unsupported(pid process.ProcessID, what string) error {
	if _, err := b.kinfo(pid); err != nil {
		return err
	}
	return process.Unsupported(pid, what)
}

// getiopolicy_np only answers for the calling thread or process
func (b *DarwinBackend) IOPriority(pid process.ProcessID) (int, error) {
	return 0, b.unsupported(pid, "io priority")
}

func (b *DarwinBackend) SetIOPriority(pid process.ProcessID, priority int) error {
	return b.unsupported(pid, "io priority")
}

// darwin has no cpu affinity for processes
func (b *DarwinBackend) CPUAffinity(pid process.ProcessID) (uint64, error) {
	return 0, b.unsupported(pid, "cpu affinity")
}

func (b *DarwinBackend) SetCPUAffinity(pid process.ProcessID, mask uint64) error {
	return b.unsupported(pid, "cpu affinity")
}
