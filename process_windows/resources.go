//go:build windows

package process_windows

import (
	"errors"
	"unsafe"

	"procscope/process"
	"procscope/process/buffer"
	"procscope/process/memory_map"
	"procscope/process/workingset"

	"golang.org/x/sys/windows"
)

// processMemoryCountersEx mirrors PROCESS_MEMORY_COUNTERS_EX
type processMemoryCountersEx struct {
	CB                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
	PrivateUsage               uintptr
}

// Times, MemoryInfo, IOCounters and NumHandles fall back to the
// SystemProcessInformation snapshot when the process cannot be opened

func (b *WindowsBackend) Times(pid process.ProcessID) (process.Times, error) {
	t, err := b.handleTimes(pid)
	return withFallback(b, pid, t, err, (*systemProcess).times)
}

func (b *WindowsBackend) handleTimes(pid process.ProcessID) (process.Times, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return process.Times{}, err
	}
	defer windows.CloseHandle(h)

	var create, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &create, &exit, &kernel, &user); err != nil {
		return process.Times{}, process.Wrap("GetProcessTimes", err)
	}
	return process.Times{
		User:   process.TicksToSeconds(filetimeTicks(user)),
		System: process.TicksToSeconds(filetimeTicks(kernel)),
		Create: process.FiletimeToUnix(filetimeTicks(create)),
	}, nil
}

func (b *WindowsBackend) MemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	mi, err := b.handleMemoryInfo(pid)
	return withFallback(b, pid, mi, err, (*systemProcess).memoryInfo)
}

func (b *WindowsBackend) handleMemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return process.MemoryInfo{}, err
	}
	defer windows.CloseHandle(h)

	var c processMemoryCountersEx
	c.CB = uint32(unsafe.Sizeof(c))
	if err := callBool(procGetProcessMemoryInfo, uintptr(h), uintptr(unsafe.Pointer(&c)), uintptr(c.CB)); err != nil {
		return process.MemoryInfo{}, process.Wrap("GetProcessMemoryInfo", err)
	}
	return process.MemoryInfo{
		PageFaults:       uint64(c.PageFaultCount),
		PeakWorkingSet:   uint64(c.PeakWorkingSetSize),
		WorkingSet:       uint64(c.WorkingSetSize),
		PeakPagedPool:    uint64(c.QuotaPeakPagedPoolUsage),
		PagedPool:        uint64(c.QuotaPagedPoolUsage),
		PeakNonPagedPool: uint64(c.QuotaPeakNonPagedPoolUsage),
		NonPagedPool:     uint64(c.QuotaNonPagedPoolUsage),
		Pagefile:         uint64(c.PagefileUsage),
		PeakPagefile:     uint64(c.PeakPagefileUsage),
		Private:          uint64(c.PrivateUsage),
	}, nil
}

// UniqueSetSize counts the private pages of the working set
func (b *WindowsBackend) UniqueSetSize(pid process.ProcessID) (uint64, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	buf, used, err := buffer.Read(buffer.Policy{
		Syscall:  "NtQueryVirtualMemory",
		Initial:  0x8000,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		var need uintptr
		err := callNT(procNtQueryVirtualMemory, uintptr(h), 0, memoryWorkingSetInformation,
			uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), uintptr(unsafe.Pointer(&need)))
		return int(need), err
	})
	if err != nil {
		return 0, process.Wrap("NtQueryVirtualMemory", err)
	}

	uss, err := workingset.UniqueSetSize(buf[:used], int(unsafe.Sizeof(uintptr(0))), b.cfg.PageSize)
	if err != nil {
		return 0, process.Fatal(pid, "NtQueryVirtualMemory", err)
	}
	return uss, nil
}

func (b *WindowsBackend) IOCounters(pid process.ProcessID) (process.IOCounters, error) {
	c, err := b.handleIOCounters(pid)
	return withFallback(b, pid, c, err, (*systemProcess).ioCounters)
}

func (b *WindowsBackend) handleIOCounters(pid process.ProcessID) (process.IOCounters, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return process.IOCounters{}, err
	}
	defer windows.CloseHandle(h)

	var c windows.IO_COUNTERS
	if err := callBool(procGetProcessIoCounters, uintptr(h), uintptr(unsafe.Pointer(&c))); err != nil {
		return process.IOCounters{}, process.Wrap("GetProcessIoCounters", err)
	}
	return process.IOCounters{
		ReadCount:  c.ReadOperationCount,
		WriteCount: c.WriteOperationCount,
		OtherCount: c.OtherOperationCount,
		ReadBytes:  c.ReadTransferCount,
		WriteBytes: c.WriteTransferCount,
		OtherBytes: c.OtherTransferCount,
	}, nil
}

func (b *WindowsBackend) NumHandles(pid process.ProcessID) (uint32, error) {
	n, err := b.handleCount(pid)
	return withFallback(b, pid, n, err, (*systemProcess).numHandles)
}

func (b *WindowsBackend) handleCount(pid process.ProcessID) (uint32, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	var count uint32
	if err := callBool(procGetProcessHandleCount, uintptr(h), uintptr(unsafe.Pointer(&count))); err != nil {
		return 0, process.Wrap("GetProcessHandleCount", err)
	}
	return count, nil
}

// MemoryMaps walks the user address range and keeps the file backed regions
func (b *WindowsBackend) MemoryMaps(pid process.ProcessID) ([]memory_map.MemoryRegion, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	devs := loadDevices()
	name := make([]uint16, windows.MAX_PATH)
	regions, err := memory_map.Walk(h, b.cfg.MinAddress, b.cfg.MaxAddress, func(base uintptr) (string, bool) {
		n, _, _ := procGetMappedFileNameW.Call(uintptr(h), base, uintptr(unsafe.Pointer(&name[0])), uintptr(len(name)))
		if n == 0 {
			return "", false
		}
		return devs.dosPath(windows.UTF16ToString(name[:n])), true
	})
	if err != nil {
		return nil, process.Wrap("VirtualQueryEx", err)
	}
	return regions, nil
}

// processHandleTableEntry mirrors PROCESS_HANDLE_TABLE_ENTRY_INFO
type processHandleTableEntry struct {
	HandleValue      windows.Handle
	HandleCount      uintptr
	PointerCount     uintptr
	GrantedAccess    uint32
	ObjectTypeIndex  uint32
	HandleAttributes uint32
	_                uint32
}

// processHandleSnapshot is the header of PROCESS_HANDLE_SNAPSHOT_INFORMATION
type processHandleSnapshot struct {
	NumberOfHandles uintptr
	_               uintptr
}

// OpenFiles duplicates every handle of pid and keeps the ones that are
// disk files. Handles that cannot be duplicated or named are skipped.
func (b *WindowsBackend) OpenFiles(pid process.ProcessID) ([]process.OpenFile, error) {
	h, err := b.acquire(pid, windows.PROCESS_DUP_HANDLE|windows.PROCESS_QUERY_INFORMATION)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "NtQueryInformationProcess",
		Initial:  0x1000,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		var need uint32
		err := windows.NtQueryInformationProcess(h, windows.ProcessHandleInformation,
			unsafe.Pointer(&buf[0]), uint32(len(buf)), &need)
		return int(need), err
	})
	if err != nil {
		return nil, process.Wrap("NtQueryInformationProcess", err)
	}

	head := (*processHandleSnapshot)(unsafe.Pointer(&buf[0]))
	room := (len(buf) - int(unsafe.Sizeof(*head))) / int(unsafe.Sizeof(processHandleTableEntry{}))
	count := min(int(head.NumberOfHandles), room)
	if count <= 0 {
		return []process.OpenFile{}, nil
	}
	entries := unsafe.Slice((*processHandleTableEntry)(unsafe.Pointer(&buf[unsafe.Sizeof(*head)])), count)

	self := windows.CurrentProcess()
	path := make([]uint16, windows.MAX_PATH)
	files := []process.OpenFile{}
	for _, e := range entries {
		var dup windows.Handle
		if err := windows.DuplicateHandle(h, e.HandleValue, self, &dup, 0, false, windows.DUPLICATE_SAME_ACCESS); err != nil {
			continue
		}
		p, ok := b.diskFilePath(dup, &path)
		windows.CloseHandle(dup)
		if !ok {
			continue
		}
		files = append(files, process.OpenFile{Path: p, FD: int64(e.HandleValue)})
	}
	return files, nil
}

// diskFilePath names a duplicated handle if it is a disk file. The type
// check comes first because naming a pipe handle can block.
func (b *WindowsBackend) diskFilePath(h windows.Handle, path *[]uint16) (string, bool) {
	t, err := windows.GetFileType(h)
	if err != nil || t != windows.FILE_TYPE_DISK {
		return "", false
	}
	for {
		n, err := windows.GetFinalPathNameByHandle(h, &(*path)[0], uint32(len(*path)), 0)
		if err != nil {
			b.log.Debugln("Skipping handle", h, err)
			return "", false
		}
		if int(n) < len(*path) {
			return trimLongPrefix(windows.UTF16ToString((*path)[:n])), true
		}
		*path = make([]uint16, n+1)
	}
}

// threadTimes reads the times of one thread. Threads that exit or refuse
// access are reported as not ok.
func threadTimes(tid uint32) (user, kernel float64, ok bool) {
	th, err := windows.OpenThread(windows.THREAD_QUERY_LIMITED_INFORMATION, false, tid)
	if err != nil {
		return 0, 0, false
	}
	defer windows.CloseHandle(th)

	var create, exit, k, u windows.Filetime
	err = callBool(procGetThreadTimes, uintptr(th),
		uintptr(unsafe.Pointer(&create)), uintptr(unsafe.Pointer(&exit)),
		uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(&u)))
	if err != nil {
		return 0, 0, false
	}
	return process.TicksToSeconds(filetimeTicks(u)), process.TicksToSeconds(filetimeTicks(k)), true
}

// Threads walks a Toolhelp thread snapshot
func (b *WindowsBackend) Threads(pid process.ProcessID) ([]process.Thread, error) {
	// verifies the process exists and is reachable
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return nil, err
	}
	windows.CloseHandle(h)

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return nil, process.Wrap("CreateToolhelp32Snapshot", err)
	}
	defer windows.CloseHandle(snap)

	threads := []process.Thread{}
	var entry windows.ThreadEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	err = windows.Thread32First(snap, &entry)
	for err == nil {
		if entry.OwnerProcessID == uint32(pid) {
			if user, kernel, ok := threadTimes(entry.ThreadID); ok {
				threads = append(threads, process.Thread{ID: entry.ThreadID, User: user, System: kernel})
			} else {
				b.log.Debugln("Skipping thread", entry.ThreadID, "of pid", pid)
			}
		}
		err = windows.Thread32Next(snap, &entry)
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, process.Wrap("Thread32Next", err)
	}
	return threads, nil
}
