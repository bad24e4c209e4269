//go:build linux

// Package process_linux implements process.Backend on top of /proc.
package process_linux

import (
	"fmt"
	"strconv"
	"time"

	"procscope/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/prometheus/procfs"
)

// LinuxBackend implements process.Backend for Linux systems
type LinuxBackend struct {
	fs   procfs.FS
	root string
	cfg  process.SystemConfig
	log  *logger.Logger
}

var _ process.Backend = (*LinuxBackend)(nil)

// Option configures a LinuxBackend
type Option func(*LinuxBackend)

// WithProcRoot reads process data from a proc mount other than /proc
func WithProcRoot(root string) Option {
	return func(b *LinuxBackend) {
		b.root = root
	}
}

// WithLogger replaces the backend logger
func WithLogger(log *logger.Logger) Option {
	return func(b *LinuxBackend) {
		b.log = log
	}
}

// New creates a LinuxBackend and loads the static system configuration
func New(opts ...Option) (*LinuxBackend, error) {
	b := &LinuxBackend{
		root: procfs.DefaultMountPoint,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "backend-linux")),
	}
	for _, opt := range opts {
		opt(b)
	}

	fs, err := procfs.NewFS(b.root)
	if err != nil {
		return nil, fmt.Errorf("open proc mount %s: %w", b.root, err)
	}
	b.fs = fs

	b.cfg = process.DefaultSystemConfig()
	if stat, err := fs.Stat(); err == nil {
		b.cfg.BootTime = time.Unix(int64(stat.BootTime), 0)
	} else {
		b.log.Warn("boot time unavailable, start times will be relative: ", err)
	}

	b.log.Infoln("Backend ready, proc root", b.root, "page size", b.cfg.PageSize)
	return b, nil
}

func (b *LinuxBackend) Platform() string {
	return "linux"
}

func (b *LinuxBackend) System() process.SystemConfig {
	return b.cfg
}

func (b *LinuxBackend) Classify(err error) process.Verdict {
	return process.ClassifyErrno(err)
}

// proc returns the procfs handle for pid. procfs stats /proc/<pid> first,
// so a vanished process surfaces as ENOENT here.
func (b *LinuxBackend) proc(pid process.ProcessID) (procfs.Proc, error) {
	p, err := b.fs.Proc(int(pid))
	if err != nil {
		return procfs.Proc{}, process.Wrap("stat", err)
	}
	return p, nil
}

// path joins a file under /proc/<pid>
func (b *LinuxBackend) path(pid process.ProcessID, name string) string {
	return b.root + "/" + strconv.FormatUint(uint64(pid), 10) + "/" + name
}
