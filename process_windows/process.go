//go:build windows

// Package process_windows implements process.Backend with NT native calls
// and Win32.
package process_windows

import (
	"time"
	"unsafe"

	"procscope/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	modntdll    = windows.NewLazySystemDLL("ntdll.dll")

	procGetProcessMemoryInfo   = modkernel32.NewProc("K32GetProcessMemoryInfo")
	procGetMappedFileNameW     = modkernel32.NewProc("K32GetMappedFileNameW")
	procGetProcessIoCounters   = modkernel32.NewProc("GetProcessIoCounters")
	procGetProcessHandleCount  = modkernel32.NewProc("GetProcessHandleCount")
	procGetProcessAffinityMask = modkernel32.NewProc("GetProcessAffinityMask")
	procSetProcessAffinityMask = modkernel32.NewProc("SetProcessAffinityMask")
	procGetThreadTimes         = modkernel32.NewProc("GetThreadTimes")
	procGetSystemInfo          = modkernel32.NewProc("GetSystemInfo")

	procNtQueryVirtualMemory = modntdll.NewProc("NtQueryVirtualMemory")
	procNtSuspendProcess     = modntdll.NewProc("NtSuspendProcess")
	procNtResumeProcess      = modntdll.NewProc("NtResumeProcess")
)

const (
	// STILL_ACTIVE is the exit code of a running process
	stillActive = 259

	systemProcessIdInformation  = 0x58
	memoryWorkingSetInformation = 1
)

// systemInfo mirrors SYSTEM_INFO
type systemInfo struct {
	ProcessorArchitecture     uint16
	_                         uint16
	PageSize                  uint32
	MinimumApplicationAddress uintptr
	MaximumApplicationAddress uintptr
	ActiveProcessorMask       uintptr
	NumberOfProcessors        uint32
	ProcessorType             uint32
	AllocationGranularity     uint32
	ProcessorLevel            uint16
	ProcessorRevision         uint16
}

// WindowsBackend implements process.Backend for Windows systems
type WindowsBackend struct {
	cfg  process.SystemConfig
	log  *logger.Logger
	wow64 bool // this process runs under WOW64
}

var _ process.Backend = (*WindowsBackend)(nil)

// Option configures a WindowsBackend
type Option func(*WindowsBackend)

// WithLogger replaces the backend logger
func WithLogger(log *logger.Logger) Option {
	return func(b *WindowsBackend) {
		b.log = log
	}
}

// New creates a WindowsBackend and loads the static system configuration
func New(opts ...Option) (*WindowsBackend, error) {
	b := &WindowsBackend{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "backend-windows")),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.cfg = process.DefaultSystemConfig()

	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	if si.PageSize != 0 {
		b.cfg.PageSize = int(si.PageSize)
	}
	b.cfg.MinAddress = si.MinimumApplicationAddress
	b.cfg.MaxAddress = si.MaximumApplicationAddress
	if si.NumberOfProcessors != 0 {
		b.cfg.NumCPU = int(si.NumberOfProcessors)
	}
	b.cfg.BootTime = time.Now().Add(-windows.DurationSinceBoot())

	if err := windows.IsWow64Process(windows.CurrentProcess(), &b.wow64); err != nil {
		b.log.Warn("IsWow64Process failed: ", err)
	}

	b.log.Infoln("Backend ready, page size", b.cfg.PageSize, "address range", process.ProcessMemoryAddress(b.cfg.MinAddress), "-", process.ProcessMemoryAddress(b.cfg.MaxAddress))
	return b, nil
}

func (b *WindowsBackend) Platform() string {
	return "windows"
}

func (b *WindowsBackend) System() process.SystemConfig {
	return b.cfg
}

// IsZombie is always false: a process object whose handles are still open
// has left the process table already.
func (b *WindowsBackend) IsZombie(pid process.ProcessID) bool {
	return false
}

// callBool invokes a lazy proc returning BOOL
func callBool(proc *windows.LazyProc, args ...uintptr) error {
	r1, _, err := proc.Call(args...)
	if r1 == 0 {
		return err
	}
	return nil
}

// callNT invokes a lazy proc returning NTSTATUS
func callNT(proc *windows.LazyProc, args ...uintptr) error {
	r1, _, _ := proc.Call(args...)
	if status := windows.NTStatus(r1); status != windows.STATUS_SUCCESS {
		return status
	}
	return nil
}

func filetimeTicks(ft windows.Filetime) uint64 {
	return uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
}
