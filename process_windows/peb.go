//go:build windows

package process_windows

import (
	"fmt"
	"unsafe"

	"procscope/process"

	"golang.org/x/sys/windows"
)

// Local mirrors of the PEB structures. The x/sys versions hold Go pointers,
// which must never carry addresses of another process.

type unicodeString struct {
	Length        uint16
	MaximumLength uint16
	Buffer        uintptr
}

type curdir struct {
	DosPath unicodeString
	Handle  uintptr
}

type driveLetterCurdir struct {
	Flags     uint16
	Length    uint16
	TimeStamp uint32
	DosPath   unicodeString
}

type userProcessParameters struct {
	MaximumLength, Length uint32
	Flags, DebugFlags     uint32
	ConsoleHandle         uintptr
	ConsoleFlags          uint32
	StandardInput         uintptr
	StandardOutput        uintptr
	StandardError         uintptr
	CurrentDirectory      curdir
	DllPath               unicodeString
	ImagePathName         unicodeString
	CommandLine           unicodeString
	Environment           uintptr
	StartingX, StartingY  uint32
	CountX, CountY        uint32
	CountCharsX           uint32
	CountCharsY           uint32
	FillAttribute         uint32
	WindowFlags           uint32
	ShowWindowFlags       uint32
	WindowTitle           unicodeString
	DesktopInfo           unicodeString
	ShellInfo             unicodeString
	RuntimeData           unicodeString
	CurrentDirectories    [32]driveLetterCurdir
	EnvironmentSize       uintptr
}

type peb struct {
	InheritedAddressSpace    byte
	ReadImageFileExecOptions byte
	BeingDebugged            byte
	BitField                 byte
	Mutant                   uintptr
	ImageBaseAddress         uintptr
	Ldr                      uintptr
	ProcessParameters        uintptr
}

type processBasicInformation struct {
	ExitStatus                   windows.NTStatus
	PebBaseAddress               uintptr
	AffinityMask                 uintptr
	BasePriority                 int32
	UniqueProcessId              uintptr
	InheritedFromUniqueProcessId uintptr
}

// memoryReader reads another address space through ReadProcessMemory
type memoryReader struct {
	h windows.Handle
}

var (
	_ process.MemoryReader = memoryReader{}
	_ process.MemoryAccess = (*WindowsBackend)(nil)
)

func (r memoryReader) PointerSize() int {
	return int(unsafe.Sizeof(uintptr(0)))
}

func (r memoryReader) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, size)
	var read uintptr
	err := windows.ReadProcessMemory(r.h, uintptr(addr), &buf[0], uintptr(size), &read)
	if err != nil {
		return nil, process.Wrap("ReadProcessMemory", err)
	}
	if read != uintptr(size) {
		return buf[:read], fmt.Errorf("read incomplete at %s: expected %d, got %d: %w", addr, size, read, process.ErrShortRead)
	}
	return buf, nil
}

// OpenMemory returns a reader holding its own handle. The handle lives as
// long as the reader; call Close on it when done.
func (b *WindowsBackend) OpenMemory(pid process.ProcessID) (process.MemoryReader, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ)
	if err != nil {
		return nil, err
	}
	return &ownedReader{memoryReader{h}}, nil
}

type ownedReader struct {
	memoryReader
}

func (r *ownedReader) Close() error {
	return windows.CloseHandle(r.h)
}

// sameBitness rejects targets whose PEB layout differs from ours
func (b *WindowsBackend) sameBitness(pid process.ProcessID, h windows.Handle) error {
	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err != nil {
		return process.Wrap("IsWow64Process", err)
	}
	if wow64 != b.wow64 {
		b.log.Warn("pid ", pid, " has a different pointer width, PEB not readable")
		return process.Unsupported(pid, "PEB of a WOW64 process")
	}
	return nil
}

// processParameters reads RTL_USER_PROCESS_PARAMETERS through the PEB
func (b *WindowsBackend) processParameters(pid process.ProcessID, h windows.Handle) (userProcessParameters, error) {
	var params userProcessParameters
	if err := b.sameBitness(pid, h); err != nil {
		return params, err
	}

	var pbi processBasicInformation
	err := windows.NtQueryInformationProcess(h, windows.ProcessBasicInformation,
		unsafe.Pointer(&pbi), uint32(unsafe.Sizeof(pbi)), nil)
	if err != nil {
		return params, process.Wrap("NtQueryInformationProcess", err)
	}
	if pbi.PebBaseAddress == 0 {
		return params, process.AccessDenied(pid, "NtQueryInformationProcess", process.ErrInvalidPointer)
	}

	r := memoryReader{h}
	params, err = process.ReadPath[userProcessParameters](r,
		process.ProcessMemoryAddress(pbi.PebBaseAddress),
		process.ProcessMemorySize(unsafe.Offsetof(peb{}.ProcessParameters)), 0)
	if err != nil {
		return params, err
	}
	return params, nil
}

// readUTF16 copies size bytes of UTF-16 text out of the target
func readUTF16(r process.MemoryReader, addr uintptr, size int) ([]uint16, error) {
	if size == 0 {
		return nil, nil
	}
	data, err := r.ReadMemory(process.ProcessMemoryAddress(addr), process.ProcessMemorySize(size))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), len(data)/2), nil
}
