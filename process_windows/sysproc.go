//go:build windows

package process_windows

import (
	"errors"
	"slices"
	"unsafe"

	"procscope/process"
	"procscope/process/buffer"

	"golang.org/x/sys/windows"
)

// systemThreadInformation mirrors SYSTEM_THREAD_INFORMATION
type systemThreadInformation struct {
	KernelTime      int64
	UserTime        int64
	CreateTime      int64
	WaitTime        uint32
	StartAddress    uintptr
	UniqueProcess   uintptr
	UniqueThread    uintptr
	Priority        int32
	BasePriority    int32
	ContextSwitches uint32
	ThreadState     uint32
	WaitReason      uint32
}

// systemProcess is one record of a SystemProcessInformation snapshot. The
// kernel fills it for every process regardless of the caller's rights.
type systemProcess struct {
	info    windows.SYSTEM_PROCESS_INFORMATION
	threads []systemThreadInformation
}

// systemProcessInformation reads one snapshot of every process
func (b *WindowsBackend) systemProcessInformation() ([]byte, error) {
	buf, used, err := buffer.Read(buffer.Policy{
		Syscall:  "NtQuerySystemInformation",
		Initial:  0x40000,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		var need uint32
		err := windows.NtQuerySystemInformation(windows.SystemProcessInformation,
			unsafe.Pointer(&buf[0]), uint32(len(buf)), &need)
		return int(need), err
	})
	if err != nil {
		return nil, process.Wrap("NtQuerySystemInformation", err)
	}
	return buf[:used], nil
}

// findSystemProcess walks the NextEntryOffset chain of a snapshot to pid.
// Thread records that would run past the buffer are dropped.
func findSystemProcess(buf []byte, pid process.ProcessID) (*systemProcess, bool) {
	const procSize = int(unsafe.Sizeof(windows.SYSTEM_PROCESS_INFORMATION{}))
	const threadSize = int(unsafe.Sizeof(systemThreadInformation{}))

	off := 0
	for off+procSize <= len(buf) {
		spi := (*windows.SYSTEM_PROCESS_INFORMATION)(unsafe.Pointer(&buf[off]))
		if process.ProcessID(spi.UniqueProcessID) == pid {
			sp := &systemProcess{info: *spi}
			n := int(spi.NumberOfThreads)
			if room := (len(buf) - off - procSize) / threadSize; n > room {
				n = room
			}
			if n > 0 {
				sp.threads = slices.Clone(unsafe.Slice((*systemThreadInformation)(unsafe.Pointer(&buf[off+procSize])), n))
			}
			return sp, true
		}
		if spi.NextEntryOffset == 0 {
			break
		}
		off += int(spi.NextEntryOffset)
	}
	return nil, false
}

func (b *WindowsBackend) systemProcess(pid process.ProcessID) (*systemProcess, error) {
	buf, err := b.systemProcessInformation()
	if err != nil {
		return nil, err
	}
	sp, ok := findSystemProcess(buf, pid)
	if !ok {
		return nil, process.NoSuchProcess(pid, "NtQuerySystemInformation")
	}
	return sp, nil
}

// withFallback answers from the snapshot when the handle based query was
// refused with ERROR_ACCESS_DENIED. Pid 0 keeps its denial.
func withFallback[T any](b *WindowsBackend, pid process.ProcessID, v T, err error, from func(*systemProcess) T) (T, error) {
	if err == nil || pid == 0 || !errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return v, err
	}
	sp, serr := b.systemProcess(pid)
	if serr != nil {
		if kind, ok := process.KindOf(serr); ok && kind == process.KindNoSuchProcess {
			return v, serr
		}
		return v, err
	}
	b.log.Debugln("Access denied for pid", pid, "answered from SystemProcessInformation")
	return from(sp), nil
}

func (sp *systemProcess) times() process.Times {
	return process.Times{
		User:   process.TicksToSeconds(uint64(sp.info.UserTime)),
		System: process.TicksToSeconds(uint64(sp.info.KernelTime)),
		Create: process.FiletimeToUnix(uint64(sp.info.CreateTime)),
	}
}

func (sp *systemProcess) memoryInfo() process.MemoryInfo {
	i := &sp.info
	return process.MemoryInfo{
		PageFaults:       uint64(i.PageFaultCount),
		PeakWorkingSet:   uint64(i.PeakWorkingSetSize),
		WorkingSet:       uint64(i.WorkingSetSize),
		PeakPagedPool:    uint64(i.QuotaPeakPagedPoolUsage),
		PagedPool:        uint64(i.QuotaPagedPoolUsage),
		PeakNonPagedPool: uint64(i.QuotaPeakNonPagedPoolUsage),
		NonPagedPool:     uint64(i.QuotaNonPagedPoolUsage),
		Pagefile:         uint64(i.PagefileUsage),
		PeakPagefile:     uint64(i.PeakPagefileUsage),
		Private:          uint64(i.PrivatePageCount),
		Virtual:          uint64(i.VirtualSize),
	}
}

func (sp *systemProcess) ioCounters() process.IOCounters {
	i := &sp.info
	return process.IOCounters{
		ReadCount:  uint64(i.ReadOperationCount),
		WriteCount: uint64(i.WriteOperationCount),
		OtherCount: uint64(i.OtherOperationCount),
		ReadBytes:  uint64(i.ReadTransferCount),
		WriteBytes: uint64(i.WriteTransferCount),
		OtherBytes: uint64(i.OtherTransferCount),
	}
}

func (sp *systemProcess) numHandles() uint32 {
	return sp.info.HandleCount
}

func (sp *systemProcess) threadStates() []process.ThreadState {
	states := make([]process.ThreadState, 0, len(sp.threads))
	for _, t := range sp.threads {
		states = append(states, process.ThreadState{
			ID:        uint32(t.UniqueThread),
			Suspended: t.ThreadState == threadStateWaiting && t.WaitReason == waitReasonSuspended,
		})
	}
	return states
}
