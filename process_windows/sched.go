//go:build windows

package process_windows

import (
	"unsafe"

	"procscope/process"

	"golang.org/x/sys/windows"
)

// KTHREAD_STATE and KWAIT_REASON values for a suspended thread
const (
	threadStateWaiting  = 5
	waitReasonSuspended = 5
)

// ThreadStates reads the state of each thread of pid from a
// SystemProcessInformation snapshot
func (b *WindowsBackend) ThreadStates(pid process.ProcessID) ([]process.ThreadState, error) {
	if pid == 0 {
		return nil, process.AccessDenied(pid, "NtQuerySystemInformation", nil)
	}
	sp, err := b.systemProcess(pid)
	if err != nil {
		return nil, err
	}
	return sp.threadStates(), nil
}

// Priority returns the priority class
func (b *WindowsBackend) Priority(pid process.ProcessID) (int, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	class, err := windows.GetPriorityClass(h)
	if err != nil {
		return 0, process.Wrap("GetPriorityClass", err)
	}
	return int(class), nil
}

func (b *WindowsBackend) SetPriority(pid process.ProcessID, priority int) error {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_SET_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	return process.Wrap("SetPriorityClass", windows.SetPriorityClass(h, uint32(priority)))
}

// IOPriority returns the IO_PRIORITY_HINT, 0 (very low) to 3 (high)
func (b *WindowsBackend) IOPriority(pid process.ProcessID) (int, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	var prio uint32
	err = windows.NtQueryInformationProcess(h, windows.ProcessIoPriority,
		unsafe.Pointer(&prio), uint32(unsafe.Sizeof(prio)), nil)
	if err != nil {
		return 0, process.Wrap("NtQueryInformationProcess", err)
	}
	return int(prio), nil
}

func (b *WindowsBackend) SetIOPriority(pid process.ProcessID, priority int) error {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_SET_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	prio := uint32(priority)
	err = windows.NtSetInformationProcess(h, windows.ProcessIoPriority,
		unsafe.Pointer(&prio), uint32(unsafe.Sizeof(prio)))
	return process.Wrap("NtSetInformationProcess", err)
}

// CPUAffinity returns the process affinity mask. On 32 bit builds only the
// low 32 cpus can be expressed.
func (b *WindowsBackend) CPUAffinity(pid process.ProcessID) (uint64, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)

	var procMask, sysMask uintptr
	err = callBool(procGetProcessAffinityMask, uintptr(h),
		uintptr(unsafe.Pointer(&procMask)), uintptr(unsafe.Pointer(&sysMask)))
	if err != nil {
		return 0, process.Wrap("GetProcessAffinityMask", err)
	}
	return uint64(procMask), nil
}

func (b *WindowsBackend) SetCPUAffinity(pid process.ProcessID, mask uint64) error {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_SET_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	return process.Wrap("SetProcessAffinityMask", callBool(procSetProcessAffinityMask, uintptr(h), uintptr(mask)))
}
