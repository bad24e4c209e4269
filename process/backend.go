package process

import (
	"time"

	"procscope/process/memory_map"
)

// Backend is the capability interface each platform implements. Methods
// return raw native failures (wrapped with Wrap) or already normalized
// *Error values; the caller runs everything through Normalizer. Backends
// hold no mutable state and may be shared between goroutines.
type Backend interface {
	// Platform identifies the backend in logs
	Platform() string

	// System returns the static configuration loaded at construction
	System() SystemConfig

	// Classify reads a native error literally
	Classify(err error) Verdict

	// IsZombie reports exited but unreaped processes, false where unknown
	IsZombie(pid ProcessID) bool

	Enumerator
	Lifecycle
	Identity
	Resources
	Scheduling
}

// Enumerator lists processes. Enumeration failures are always fatal.
type Enumerator interface {
	Pids() ([]ProcessID, error)
	Snapshot() (*Snapshot, error)
	PidExists(pid ProcessID) (bool, error)
}

// Lifecycle acts on a process
type Lifecycle interface {
	Kill(pid ProcessID) error
	Wait(pid ProcessID, timeout time.Duration) (WaitResult, error)
	SuspendOrResume(pid ProcessID, suspend bool) error
}

// Identity answers who and what a process is
type Identity interface {
	Name(pid ProcessID) (string, error)
	Exe(pid ProcessID) (string, error)
	Cmdline(pid ProcessID) ([]string, error)
	Environ(pid ProcessID) ([]string, error)
	Cwd(pid ProcessID) (string, error)
	Username(pid ProcessID) (Username, error)
}

// Resources reports what a process consumes
type Resources interface {
	Times(pid ProcessID) (Times, error)
	MemoryInfo(pid ProcessID) (MemoryInfo, error)
	UniqueSetSize(pid ProcessID) (uint64, error)
	IOCounters(pid ProcessID) (IOCounters, error)
	OpenFiles(pid ProcessID) ([]OpenFile, error)
	MemoryMaps(pid ProcessID) ([]memory_map.MemoryRegion, error)
	NumHandles(pid ProcessID) (uint32, error)
	Threads(pid ProcessID) ([]Thread, error)
	ThreadStates(pid ProcessID) ([]ThreadState, error)
}

// Scheduling reads and changes priorities and affinity
type Scheduling interface {
	Priority(pid ProcessID) (int, error)
	SetPriority(pid ProcessID, priority int) error
	IOPriority(pid ProcessID) (int, error)
	SetIOPriority(pid ProcessID, priority int) error
	CPUAffinity(pid ProcessID) (uint64, error)
	SetCPUAffinity(pid ProcessID, mask uint64) error
}

// MemoryAccess is implemented by backends that can read another process's
// address space. Callers type-assert for it.
type MemoryAccess interface {
	OpenMemory(pid ProcessID) (MemoryReader, error)
}
