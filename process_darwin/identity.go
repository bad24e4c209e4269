//go:build darwin

package process_darwin

import (
	"errors"
	"os/user"
	"strconv"

	"procscope/process"
	"procscope/process/decode"

	"golang.org/x/sys/unix"
)

// CTL_KERN and KERN_PROCARGS2 from sys/sysctl.h
const (
	ctlKern       = 1
	kernProcArgs2 = 49
)

// procargs reads kern.procargs2: argc, exec path, argv, then envp. The
// answer never exceeds kern.argmax, which sizes the first buffer. EINVAL is
// returned both for exited processes and for zombies, so zombies are told
// apart here.
func (b *DarwinBackend) procargs(pid process.ProcessID) ([]byte, error) {
	buf, err := b.sysctl("kern.procargs2", []int32{ctlKern, kernProcArgs2, int32(pid)}, b.argmax)
	if err == nil {
		return buf, nil
	}
	if _, ok := process.KindOf(err); ok {
		return nil, err
	}
	if errors.Is(err, unix.EINVAL) && b.IsZombie(pid) {
		return nil, process.NewError(process.KindZombieProcess, pid, "sysctl kern.procargs2", err)
	}
	return nil, process.Wrap("sysctl kern.procargs2", err)
}

// Exe is the exec path recorded at the head of procargs2
func (b *DarwinBackend) Exe(pid process.ProcessID) (string, error) {
	buf, err := b.procargs(pid)
	if err != nil {
		return "", err
	}
	exe, err := decode.ExecPath(buf)
	if err != nil {
		return "", process.Fatal(pid, "decode procargs2", err)
	}
	return exe, nil
}

func (b *DarwinBackend) Cmdline(pid process.ProcessID) ([]string, error) {
	buf, err := b.procargs(pid)
	if err != nil {
		return nil, err
	}
	argv, err := decode.Argv(buf)
	if err != nil {
		return nil, process.Fatal(pid, "decode procargs2", err)
	}
	return argv, nil
}

func (b *DarwinBackend) Environ(pid process.ProcessID) ([]string, error) {
	buf, err := b.procargs(pid)
	if err != nil {
		return nil, err
	}
	env, err := decode.Environ(buf)
	if err != nil {
		return nil, process.Fatal(pid, "decode procargs2", err)
	}
	return env, nil
}

// Cwd is the current directory vnode of PROC_PIDVNODEPATHINFO
func (b *DarwinBackend) Cwd(pid process.ProcessID) (string, error) {
	vi, err := pidInfo[procVnodePathInfo](b.libc, pid, procPidVnodePathInfo, 0)
	if err != nil {
		return "", err
	}
	return vi.Cdir.String(), nil
}

// Username resolves the real uid from the kinfo_proc credentials
func (b *DarwinBackend) Username(pid process.ProcessID) (process.Username, error) {
	kp, err := b.kinfo(pid)
	if err != nil {
		return process.Username{}, err
	}
	id := strconv.FormatUint(uint64(kp.Eproc.Pcred.P_ruid), 10)
	u, err := user.LookupId(id)
	if err != nil {
		return process.Username{Name: id}, nil
	}
	return process.Username{Name: u.Username}, nil
}
