//go:build darwin

package process_darwin

import (
	"unsafe"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// proc_pidinfo and proc_pidfdinfo flavors from sys/proc_info.h
const (
	procPidListFDs         = 1
	procPidTaskInfo        = 4
	procPidThreadInfo      = 5
	procPidListThreads     = 6
	procPidRegionPathInfo  = 8
	procPidVnodePathInfo   = 9
	procPidFDVnodePathInfo = 2

	proxFDTypeVnode = 1
	rusageInfoV2    = 2

	// TH_STATE_STOPPED of a thread under thread_suspend
	thStateStopped = 2

	maxPathLen = 1024
)

// procTaskInfo mirrors struct proc_taskinfo. The time fields are in mach
// absolute time units.
type procTaskInfo struct {
	VirtualSize      uint64
	ResidentSize     uint64
	TotalUser        uint64
	TotalSystem      uint64
	ThreadsUser      uint64
	ThreadsSystem    uint64
	Policy           int32
	Faults           int32
	Pageins          int32
	CowFaults        int32
	MessagesSent     int32
	MessagesReceived int32
	SyscallsMach     int32
	SyscallsUnix     int32
	Csw              int32
	Threadnum        int32
	Numrunning       int32
	Priority         int32
}

// vnodeInfoPath mirrors struct vnode_info_path. Only the path is read.
type vnodeInfoPath struct {
	_    [152]byte // struct vnode_info
	Path [maxPathLen]byte
}

func (v *vnodeInfoPath) String() string {
	return unix.ByteSliceToString(v.Path[:])
}

// procVnodePathInfo mirrors struct proc_vnodepathinfo
type procVnodePathInfo struct {
	Cdir vnodeInfoPath
	Rdir vnodeInfoPath
}

// procFDInfo mirrors struct proc_fdinfo
type procFDInfo struct {
	FD     int32
	FDType uint32
}

// vnodeFDInfoWithPath mirrors struct vnode_fdinfowithpath
type vnodeFDInfoWithPath struct {
	_    [24]byte // struct proc_fileinfo
	Path vnodeInfoPath
}

// procThreadInfo mirrors struct proc_threadinfo. Times are nanoseconds.
type procThreadInfo struct {
	UserTime    uint64
	SystemTime  uint64
	CPUUsage    int32
	Policy      int32
	RunState    int32
	Flags       int32
	SleepTime   int32
	CurPri      int32
	Priority    int32
	MaxPriority int32
	Name        [64]byte
}

// procRegionInfo mirrors struct proc_regioninfo
type procRegionInfo struct {
	Protection            uint32
	MaxProtection         uint32
	Inheritance           uint32
	Flags                 uint32
	Offset                uint64
	Behavior              uint32
	UserWiredCount        uint32
	UserTag               uint32
	PagesResident         uint32
	PagesSharedNowPrivate uint32
	PagesSwappedOut       uint32
	PagesDirtied          uint32
	RefCount              uint32
	ShadowDepth           uint32
	ShareMode             uint32
	PrivatePagesResident  uint32
	SharedPagesResident   uint32
	ObjID                 uint32
	Depth                 uint32
	Address               uint64
	Size                  uint64
}

// procRegionWithPathInfo mirrors struct proc_regionwithpathinfo
type procRegionWithPathInfo struct {
	Region procRegionInfo
	Vnode  vnodeInfoPath
}

// rusageInfoV2 mirrors struct rusage_info_v2
type rusageInfoV2 struct {
	UUID                [16]byte
	UserTime            uint64
	SystemTime          uint64
	PkgIdleWkups        uint64
	InterruptWkups      uint64
	Pageins             uint64
	WiredSize           uint64
	ResidentSize        uint64
	PhysFootprint       uint64
	ProcStartAbstime    uint64
	ProcExitAbstime     uint64
	ChildUserTime       uint64
	ChildSystemTime     uint64
	ChildPkgIdleWkups   uint64
	ChildInterruptWkups uint64
	ChildPageins        uint64
	ChildElapsedAbstime uint64
	DiskioBytesRead     uint64
	DiskioBytesWritten  uint64
}

func (b *DarwinBackend) taskInfo(pid process.ProcessID) (procTaskInfo, error) {
	return pidInfo[procTaskInfo](b.libc, pid, procPidTaskInfo, 0)
}

func (b *DarwinBackend) rusage(pid process.ProcessID) (rusageInfoV2, error) {
	var ri rusageInfoV2
	r, errno := b.libc.errcall(func() int32 {
		return b.libc.procPidRusage(int32(pid), rusageInfoV2, unsafe.Pointer(&ri))
	})
	if r != 0 {
		if errno == 0 {
			errno = unix.ESRCH
		}
		return ri, process.Wrap("proc_pid_rusage", errno)
	}
	return ri, nil
}

// fds lists the descriptor table. A NULL buffer makes the kernel answer
// with the size it would need.
func (b *DarwinBackend) fds(pid process.ProcessID) ([]procFDInfo, error) {
	const elem = int(unsafe.Sizeof(procFDInfo{}))

	hint, errno := b.libc.errcall(func() int32 {
		return b.libc.procPidInfo(int32(pid), procPidListFDs, 0, nil, 0)
	})
	if hint <= 0 && errno != 0 {
		return nil, process.Wrap("proc_pidinfo", errno)
	}

	buf, err := b.pidList(pid, procPidListFDs, elem, int(hint)+16*elem)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*procFDInfo)(unsafe.Pointer(&buf[0])), len(buf)/elem), nil
}

// fdPath resolves a vnode descriptor. ok is false when the descriptor was
// closed in the meantime or is not a file.
func (b *DarwinBackend) fdPath(pid process.ProcessID, fd int32) (path string, ok bool) {
	var vi vnodeFDInfoWithPath
	size := int32(unsafe.Sizeof(vi))
	n, _ := b.libc.errcall(func() int32 {
		return b.libc.procPidFDInfo(int32(pid), fd, procPidFDVnodePathInfo, unsafe.Pointer(&vi), size)
	})
	if n < size {
		return "", false
	}
	path = vi.Path.String()
	return path, path != ""
}

// threadHandles lists the thread handles PROC_PIDTHREADINFO accepts
func (b *DarwinBackend) threadHandles(pid process.ProcessID, hint int32) ([]uint64, error) {
	const elem = int(unsafe.Sizeof(uint64(0)))

	buf, err := b.pidList(pid, procPidListThreads, elem, (int(hint)+16)*elem)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&buf[0])), len(buf)/elem), nil
}

// regionAt returns the first region at or above addr
func (b *DarwinBackend) regionAt(pid process.ProcessID, addr uint64) (procRegionWithPathInfo, error) {
	return pidInfo[procRegionWithPathInfo](b.libc, pid, procPidRegionPathInfo, addr)
}
