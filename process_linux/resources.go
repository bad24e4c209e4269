//go:build linux

package process_linux

import (
	"os"
	"path/filepath"
	"strconv"

	"procscope/process"
	"procscope/process/memory_map"
)

// Times reads utime, stime and starttime from /proc/<pid>/stat
func (b *LinuxBackend) Times(pid process.ProcessID) (process.Times, error) {
	p, err := b.proc(pid)
	if err != nil {
		return process.Times{}, err
	}
	stat, err := p.Stat()
	if err != nil {
		return process.Times{}, process.Wrap("read stat", err)
	}

	ticks := b.cfg.ClockTicks
	t := process.Times{
		User:   process.JiffiesToSeconds(uint64(stat.UTime), ticks),
		System: process.JiffiesToSeconds(uint64(stat.STime), ticks),
		Create: process.JiffiesToSeconds(stat.Starttime, ticks),
	}
	if !b.cfg.BootTime.IsZero() {
		t.Create += float64(b.cfg.BootTime.Unix())
	}
	return t, nil
}

// MemoryInfo combines the fault counters of stat with the Vm* lines of
// status. The pool counters have no Linux equivalent and stay zero.
func (b *LinuxBackend) MemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	p, err := b.proc(pid)
	if err != nil {
		return process.MemoryInfo{}, err
	}
	stat, err := p.Stat()
	if err != nil {
		return process.MemoryInfo{}, process.Wrap("read stat", err)
	}
	status, err := p.NewStatus()
	if err != nil {
		return process.MemoryInfo{}, process.Wrap("read status", err)
	}

	return process.MemoryInfo{
		PageFaults:     uint64(stat.MinFlt + stat.MajFlt),
		PeakWorkingSet: status.VmHWM,
		WorkingSet:     status.VmRSS,
		Pagefile:       status.VmSwap,
		Private:        status.RssAnon,
		Virtual:        status.VmSize,
	}, nil
}

// UniqueSetSize sums the private pages of smaps_rollup. The kernel counts a
// page as private when it has a single mapper, the same rule the working
// set accounting uses on Windows.
func (b *LinuxBackend) UniqueSetSize(pid process.ProcessID) (uint64, error) {
	p, err := b.proc(pid)
	if err != nil {
		return 0, err
	}
	rollup, err := p.ProcSMapsRollup()
	if err != nil {
		return 0, process.Wrap("read smaps_rollup", err)
	}
	return rollup.PrivateClean + rollup.PrivateDirty, nil
}

func (b *LinuxBackend) IOCounters(pid process.ProcessID) (process.IOCounters, error) {
	p, err := b.proc(pid)
	if err != nil {
		return process.IOCounters{}, err
	}
	io, err := p.IO()
	if err != nil {
		return process.IOCounters{}, process.Wrap("read io", err)
	}
	return process.IOCounters{
		ReadCount:  io.SyscR,
		WriteCount: io.SyscW,
		ReadBytes:  io.ReadBytes,
		WriteBytes: io.WriteBytes,
	}, nil
}

// OpenFiles resolves each /proc/<pid>/fd entry. Sockets, pipes, anonymous
// inodes and descriptors closed during the walk are skipped.
func (b *LinuxBackend) OpenFiles(pid process.ProcessID) ([]process.OpenFile, error) {
	p, err := b.proc(pid)
	if err != nil {
		return nil, err
	}
	fds, err := p.FileDescriptors()
	if err != nil {
		return nil, process.Wrap("readdir fd", err)
	}

	var files []process.OpenFile
	for _, fd := range fds {
		target, err := os.Readlink(b.path(pid, "fd/"+strconv.FormatUint(uint64(fd), 10)))
		if err != nil {
			b.log.Debugln("Skipping fd", fd, "of pid", pid, err)
			continue
		}
		if !filepath.IsAbs(target) {
			continue
		}
		if fi, err := os.Stat(target); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, process.OpenFile{Path: target, FD: int64(fd)})
	}
	return files, nil
}

func (b *LinuxBackend) MemoryMaps(pid process.ProcessID) ([]memory_map.MemoryRegion, error) {
	p, err := b.proc(pid)
	if err != nil {
		return nil, err
	}
	regions, err := memory_map.ReadProcMaps(p)
	if err != nil {
		return nil, process.Wrap("read maps", err)
	}
	return regions, nil
}

// NumHandles counts open file descriptors
func (b *LinuxBackend) NumHandles(pid process.ProcessID) (uint32, error) {
	p, err := b.proc(pid)
	if err != nil {
		return 0, err
	}
	n, err := p.FileDescriptorsLen()
	if err != nil {
		return 0, process.Wrap("readdir fd", err)
	}
	return uint32(n), nil
}

// Threads lists /proc/<pid>/task. Threads that exit during the walk are skipped.
func (b *LinuxBackend) Threads(pid process.ProcessID) ([]process.Thread, error) {
	tasks, err := b.fs.AllThreads(int(pid))
	if err != nil {
		return nil, process.Wrap("readdir task", err)
	}

	threads := make([]process.Thread, 0, len(tasks))
	for _, task := range tasks {
		stat, err := task.Stat()
		if err != nil {
			b.log.Debugln("Skipping thread", task.PID, "of pid", pid, err)
			continue
		}
		threads = append(threads, process.Thread{
			ID:     uint32(task.PID),
			User:   process.JiffiesToSeconds(uint64(stat.UTime), b.cfg.ClockTicks),
			System: process.JiffiesToSeconds(uint64(stat.STime), b.cfg.ClockTicks),
		})
	}
	return threads, nil
}

// ThreadStates marks a task suspended when it is stopped by a signal or tracer
func (b *LinuxBackend) ThreadStates(pid process.ProcessID) ([]process.ThreadState, error) {
	tasks, err := b.fs.AllThreads(int(pid))
	if err != nil {
		return nil, process.Wrap("readdir task", err)
	}

	states := make([]process.ThreadState, 0, len(tasks))
	for _, task := range tasks {
		stat, err := task.Stat()
		if err != nil {
			continue
		}
		states = append(states, process.ThreadState{
			ID:        uint32(task.PID),
			Suspended: process.ProcessState(stat.State).IsStopped(),
		})
	}
	return states, nil
}
