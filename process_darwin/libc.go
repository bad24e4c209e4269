//go:build darwin

package process_darwin

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"procscope/process"
	"procscope/process/buffer"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

const libSystemPath = "/usr/lib/libSystem.B.dylib"

// libc holds the libSystem entry points that x/sys/unix does not wrap. The
// functions are bound once in New and never change afterwards.
type libc struct {
	procPidInfo   func(pid, flavor int32, arg uint64, buf unsafe.Pointer, size int32) int32
	procPidFDInfo func(pid, fd, flavor int32, buf unsafe.Pointer, size int32) int32
	procPidRusage func(pid, flavor int32, buf unsafe.Pointer) int32
	sysctl        func(mib *int32, n uint32, oldp unsafe.Pointer, oldlen *uintptr, newp unsafe.Pointer, newlen uintptr) int32
	timebaseInfo  func(info *machTimebaseInfo) int32
	errnoLocation func() unsafe.Pointer
}

type machTimebaseInfo struct {
	Numer uint32
	Denom uint32
}

func openLibc() (*libc, error) {
	lib, err := purego.Dlopen(libSystemPath, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", libSystemPath, err)
	}

	l := &libc{}
	symbols := []struct {
		name string
		fptr any
	}{
		{"proc_pidinfo", &l.procPidInfo},
		{"proc_pidfdinfo", &l.procPidFDInfo},
		{"proc_pid_rusage", &l.procPidRusage},
		{"sysctl", &l.sysctl},
		{"mach_timebase_info", &l.timebaseInfo},
		{"__error", &l.errnoLocation},
	}
	for _, s := range symbols {
		sym, err := purego.Dlsym(lib, s.name)
		if err != nil {
			return nil, fmt.Errorf("dlsym %s: %w", s.name, err)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	return l, nil
}

// tickNanos is the length of one mach absolute time unit in nanoseconds.
// It is 1 on Intel and 125/3 on Apple silicon.
func (l *libc) tickNanos() float64 {
	var tb machTimebaseInfo
	if l.timebaseInfo(&tb) != 0 || tb.Denom == 0 {
		return 1
	}
	return float64(tb.Numer) / float64(tb.Denom)
}

// errcall runs fn with errno cleared and returns the errno it left. The
// thread is locked so errno is read where it was written.
func (l *libc) errcall(fn func() int32) (int32, unix.Errno) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	errno := (*int32)(l.errnoLocation())
	*errno = 0
	r := fn()
	return r, unix.Errno(*errno)
}

// pidInfo fills out with one fixed size proc_pidinfo flavor. The kernel
// answers short, with no errno, for processes it will not describe; that is
// reported as EPERM so the liveness check decides between gone and denied.
func (l *libc) pidInfo(pid process.ProcessID, flavor int32, arg uint64, out unsafe.Pointer, size int) error {
	n, errno := l.errcall(func() int32 {
		return l.procPidInfo(int32(pid), flavor, arg, out, int32(size))
	})
	switch {
	case n <= 0 && errno != 0:
		return process.Wrap("proc_pidinfo", errno)
	case int(n) < size:
		return process.Wrap("proc_pidinfo", unix.EPERM)
	}
	return nil
}

func pidInfo[T any](l *libc, pid process.ProcessID, flavor int32, arg uint64) (T, error) {
	var v T
	err := l.pidInfo(pid, flavor, arg, unsafe.Pointer(&v), int(unsafe.Sizeof(v)))
	return v, err
}

// errFull marks a list answer that filled the whole buffer. The kernel
// truncates lists silently, so a full buffer may be missing entries.
var errFull = errors.New("list filled the buffer")

// pidList reads a variable length proc_pidinfo flavor made of elem sized
// records, starting from initial bytes.
func (b *DarwinBackend) pidList(pid process.ProcessID, flavor int32, elem, initial int) ([]byte, error) {
	filled := 0
	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "proc_pidinfo",
		Initial:  initial,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: func(err error) bool { return errors.Is(err, errFull) },
	}, func(buf []byte) (int, error) {
		n, errno := b.libc.errcall(func() int32 {
			return b.libc.procPidInfo(int32(pid), flavor, 0, unsafe.Pointer(&buf[0]), int32(len(buf)))
		})
		switch {
		case n <= 0 && errno != 0:
			return 0, process.Wrap("proc_pidinfo", errno)
		case int(n) >= len(buf):
			return 0, errFull
		}
		filled = max(int(n), 0)
		return filled, nil
	})
	if err != nil {
		return nil, err
	}
	return buf[:filled-filled%elem], nil
}

// sysctl reads a raw mib through buffer.Read, growing on ENOMEM
func (b *DarwinBackend) sysctl(name string, mib []int32, initial int) ([]byte, error) {
	filled := 0
	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "sysctl " + name,
		Initial:  initial,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: func(err error) bool { return errors.Is(err, unix.ENOMEM) },
	}, func(buf []byte) (int, error) {
		size := uintptr(len(buf))
		r, errno := b.libc.errcall(func() int32 {
			return b.libc.sysctl(&mib[0], uint32(len(mib)), unsafe.Pointer(&buf[0]), &size, nil, 0)
		})
		if r != 0 {
			if errno == 0 {
				errno = unix.EINVAL
			}
			return 0, errno
		}
		filled = int(size)
		return filled, nil
	})
	if err != nil {
		return nil, err
	}
	return buf[:filled], nil
}
