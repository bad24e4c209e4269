//go:build darwin

// Package process_darwin implements process.Backend on top of sysctl and
// libproc. libSystem is bound at run time with purego, so no cgo is needed.
package process_darwin

import (
	"errors"
	"fmt"
	"time"

	"procscope/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"
)

// ARG_MAX of sys/syslimits.h
const defaultArgMax = 1024 * 1024

// p_stat values from sys/proc.h
const (
	statStopped = 4 // SSTOP
	statZombie  = 5 // SZOMB
)

// DarwinBackend implements process.Backend for macOS
type DarwinBackend struct {
	cfg  process.SystemConfig
	log  *logger.Logger
	libc *libc

	// nanoseconds per mach absolute time unit
	tickNanos float64
	// kern.argmax, the largest procargs2 answer
	argmax int
}

var _ process.Backend = (*DarwinBackend)(nil)

// Option configures a DarwinBackend
type Option func(*DarwinBackend)

// WithLogger replaces the backend logger
func WithLogger(log *logger.Logger) Option {
	return func(b *DarwinBackend) {
		b.log = log
	}
}

// New creates a DarwinBackend and loads the static system configuration
func New(opts ...Option) (*DarwinBackend, error) {
	b := &DarwinBackend{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "backend-darwin")),
	}
	for _, opt := range opts {
		opt(b)
	}

	l, err := openLibc()
	if err != nil {
		return nil, fmt.Errorf("process_darwin: %w", err)
	}
	b.libc = l
	b.tickNanos = l.tickNanos()

	b.cfg = process.DefaultSystemConfig()
	b.argmax = defaultArgMax
	if v, err := unix.SysctlUint32("kern.argmax"); err == nil && v > 0 {
		b.argmax = int(v)
	} else {
		b.log.Warn("kern.argmax unavailable, using ", defaultArgMax)
	}
	if tv, err := unix.SysctlTimeval("kern.boottime"); err == nil {
		b.cfg.BootTime = timevalTime(*tv)
	} else {
		b.log.Warn("kern.boottime unavailable: ", err)
	}

	b.log.Infoln("Backend ready, page size", b.cfg.PageSize)
	return b, nil
}

func (b *DarwinBackend) Platform() string {
	return "darwin"
}

func (b *DarwinBackend) System() process.SystemConfig {
	return b.cfg
}

// Classify extends the shared errno table with the sysctl quirks: EINVAL
// from kern.procargs2 means gone, zombie or not ours, and EIO means the
// kernel refused to copy another user's arguments.
func (b *DarwinBackend) Classify(err error) process.Verdict {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EINVAL:
			return process.Verdict{Kind: process.KindAccessDenied, Ambiguous: true, Code: int64(errno)}
		case unix.EIO:
			return process.Verdict{Kind: process.KindAccessDenied, Code: int64(errno)}
		}
	}
	return process.ClassifyErrno(err)
}

// kinfo fetches the kinfo_proc of one pid. SysctlKinfoProc reports a
// missing pid as EIO because the kernel copies out zero bytes.
func (b *DarwinBackend) kinfo(pid process.ProcessID) (*unix.KinfoProc, error) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", int(pid))
	if err != nil {
		if errors.Is(err, unix.EIO) {
			return nil, process.NoSuchProcess(pid, "sysctl kern.proc.pid")
		}
		return nil, process.Wrap("sysctl kern.proc.pid", err)
	}
	if kp.Proc.P_pid != int32(pid) {
		return nil, process.NoSuchProcess(pid, "sysctl kern.proc.pid")
	}
	return kp, nil
}

func timevalTime(tv unix.Timeval) time.Time {
	return time.Unix(tv.Unix())
}
