//go:build linux

package process_linux

import (
	"errors"
	"os"
	"os/user"
	"strconv"

	"procscope/process"
	"procscope/process/buffer"
	"procscope/process/decode"

	"golang.org/x/sys/unix"
)

// errLinkTruncated marks a readlink result that filled the whole buffer
var errLinkTruncated = errors.New("readlink: result may be truncated")

// readlink resolves a /proc symlink of any length
func (b *LinuxBackend) readlink(path string) (string, error) {
	buf, used, err := buffer.Read(buffer.Policy{
		Syscall:  "readlink",
		Initial:  unix.PathMax,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: func(err error) bool { return errors.Is(err, errLinkTruncated) },
	}, func(buf []byte) (int, error) {
		n, err := unix.Readlink(path, buf)
		if err != nil {
			return 0, err
		}
		if n >= len(buf) {
			return 0, errLinkTruncated
		}
		return n, nil
	})
	if err != nil {
		return "", process.Wrap("readlink", err)
	}
	if used == len(buf) {
		return "", nil
	}
	return string(buf[:used]), nil
}

// Exe resolves /proc/<pid>/exe. Kernel threads have no executable and
// report an empty path rather than an error.
func (b *LinuxBackend) Exe(pid process.ProcessID) (string, error) {
	exe, err := b.readlink(b.path(pid, "exe"))
	if err == nil {
		return exe, nil
	}
	if errors.Is(err, unix.ENOENT) {
		if alive, _ := b.PidExists(pid); alive && !b.IsZombie(pid) {
			return "", nil
		}
	}
	return "", err
}

// Cmdline reads /proc/<pid>/cmdline. The kernel may cut it short, in which
// case the last argument is returned as far as it goes.
func (b *LinuxBackend) Cmdline(pid process.ProcessID) ([]string, error) {
	data, err := os.ReadFile(b.path(pid, "cmdline"))
	if err != nil {
		return nil, process.Wrap("read cmdline", err)
	}
	return decode.SplitNUL(data), nil
}

func (b *LinuxBackend) Environ(pid process.ProcessID) ([]string, error) {
	p, err := b.proc(pid)
	if err != nil {
		return nil, err
	}
	env, err := p.Environ()
	if err != nil {
		return nil, process.Wrap("read environ", err)
	}
	return env, nil
}

func (b *LinuxBackend) Cwd(pid process.ProcessID) (string, error) {
	p, err := b.proc(pid)
	if err != nil {
		return "", err
	}
	cwd, err := p.Cwd()
	if err != nil {
		return "", process.Wrap("readlink cwd", err)
	}
	return cwd, nil
}

// Username resolves the real uid of the process. An uid without a passwd
// entry is returned as its decimal string.
func (b *LinuxBackend) Username(pid process.ProcessID) (process.Username, error) {
	p, err := b.proc(pid)
	if err != nil {
		return process.Username{}, err
	}
	status, err := p.NewStatus()
	if err != nil {
		return process.Username{}, process.Wrap("read status", err)
	}
	return lookupUID(status.UIDs[0]), nil
}

func lookupUID(uid uint64) process.Username {
	id := strconv.FormatUint(uid, 10)
	u, err := user.LookupId(id)
	if err != nil {
		return process.Username{Name: id}
	}
	return process.Username{Name: u.Username}
}
