//go:build windows

package process_windows

import (
	"errors"
	"strings"
	"unsafe"

	"procscope/process"
	"procscope/process/buffer"
	"procscope/process/decode"

	"golang.org/x/sys/windows"
)

// systemProcessIdInformation input and output. ImageName.Buffer points
// into a caller supplied buffer.
type processIdInformation struct {
	ProcessId uintptr
	ImageName windows.NTUnicodeString
}

// Exe asks the kernel for the image path by pid, which needs no handle and
// works for protected processes. The reported size is tried first, then
// the buffer doubles because the reported size is sometimes too small.
func (b *WindowsBackend) Exe(pid process.ProcessID) (string, error) {
	if pid == 0 {
		return "", process.AccessDenied(pid, "NtQuerySystemInformation", nil)
	}

	var length uint16
	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "NtQuerySystemInformation",
		Initial:  0x104 * 2,
		Ceiling:  0x7FFF * 2,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		info := processIdInformation{
			ProcessId: uintptr(pid),
			ImageName: windows.NTUnicodeString{
				MaximumLength: uint16(len(buf)),
				Buffer:        (*uint16)(unsafe.Pointer(&buf[0])),
			},
		}
		err := windows.NtQuerySystemInformation(systemProcessIdInformation,
			unsafe.Pointer(&info), uint32(unsafe.Sizeof(info)), nil)
		if err != nil {
			return int(info.ImageName.MaximumLength), err
		}
		length = info.ImageName.Length
		return int(length), nil
	})
	if err != nil {
		return "", process.Wrap("NtQuerySystemInformation", err)
	}
	if length == 0 {
		// System (pid 4) has no image file
		return "", nil
	}

	name := windows.UTF16ToString(unsafe.Slice((*uint16)(unsafe.Pointer(&buf[0])), length/2))
	return loadDevices().dosPath(name), nil
}

// Cmdline reads ProcessCommandLineInformation and splits it the way the
// C runtime does
func (b *WindowsBackend) Cmdline(pid process.ProcessID) ([]string, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "NtQueryInformationProcess",
		Initial:  0x200,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		var need uint32
		err := windows.NtQueryInformationProcess(h, windows.ProcessCommandLineInformation,
			unsafe.Pointer(&buf[0]), uint32(len(buf)), &need)
		return int(need), err
	})
	if err != nil {
		return nil, process.Wrap("NtQueryInformationProcess", err)
	}

	us := (*windows.NTUnicodeString)(unsafe.Pointer(&buf[0]))
	if us.Length == 0 || us.Buffer == nil {
		return []string{}, nil
	}
	line := windows.UTF16ToString(unsafe.Slice(us.Buffer, us.Length/2))

	argv, err := windows.DecomposeCommandLine(line)
	if err != nil {
		return nil, process.Fatal(pid, "DecomposeCommandLine", err)
	}
	return argv, nil
}

// Environ reads the environment block of the target through its PEB
func (b *WindowsBackend) Environ(pid process.ProcessID) ([]string, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	params, err := b.processParameters(pid, h)
	if err != nil {
		return nil, err
	}
	if params.Environment == 0 {
		return []string{}, nil
	}

	block, err := readUTF16(memoryReader{h}, params.Environment, int(params.EnvironmentSize))
	if err != nil {
		return nil, err
	}
	return decode.UTF16Block(block), nil
}

// Cwd reads the current directory of the target through its PEB
func (b *WindowsBackend) Cwd(pid process.ProcessID) (string, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	params, err := b.processParameters(pid, h)
	if err != nil {
		return "", err
	}

	dos := params.CurrentDirectory.DosPath
	text, err := readUTF16(memoryReader{h}, dos.Buffer, int(dos.Length))
	if err != nil {
		return "", err
	}
	cwd := windows.UTF16ToString(text)
	if len(cwd) > 3 {
		cwd = strings.TrimSuffix(cwd, `\`)
	}
	return cwd, nil
}

// Username resolves the token user of pid to DOMAIN\name
func (b *WindowsBackend) Username(pid process.ProcessID) (process.Username, error) {
	h, err := b.acquire(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	if err != nil {
		return process.Username{}, err
	}
	defer windows.CloseHandle(h)

	var token windows.Token
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return process.Username{}, process.Wrap("OpenProcessToken", err)
	}
	defer token.Close()

	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "GetTokenInformation",
		Initial:  0x100,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		var need uint32
		err := windows.GetTokenInformation(token, windows.TokenUser, &buf[0], uint32(len(buf)), &need)
		return int(need), err
	})
	if err != nil {
		return process.Username{}, process.Wrap("GetTokenInformation", err)
	}
	user := (*windows.Tokenuser)(unsafe.Pointer(&buf[0]))

	domain, name, err := b.lookupAccount(user.User.Sid)
	if err != nil {
		if errors.Is(err, windows.ERROR_NONE_MAPPED) {
			return process.Username{}, process.AccessDenied(pid, "LookupAccountSid", err)
		}
		return process.Username{}, process.Wrap("LookupAccountSid", err)
	}
	return process.Username{Domain: domain, Name: name}, nil
}

// lookupAccount runs LookupAccountSid with both name buffers carved out of
// one adaptive buffer, each half sized for the larger of the two requests
func (b *WindowsBackend) lookupAccount(sid *windows.SID) (domain, name string, err error) {
	var nameLen, domainLen uint32
	buf, _, err := buffer.Read(buffer.Policy{
		Syscall:  "LookupAccountSid",
		Initial:  0x100 * 4,
		Ceiling:  0x10000 * 4,
		TooSmall: tooSmall,
	}, func(buf []byte) (int, error) {
		half := uint32(len(buf) / 4)
		names := unsafe.Slice((*uint16)(unsafe.Pointer(&buf[0])), 2*half)
		nameLen, domainLen = half, half
		var use uint32
		err := windows.LookupAccountSid(nil, sid, &names[0], &nameLen, &names[half], &domainLen, &use)
		if err != nil {
			return 4 * int(max(nameLen, domainLen)), err
		}
		return 0, nil
	})
	if err != nil {
		return "", "", err
	}

	half := uint32(len(buf) / 4)
	names := unsafe.Slice((*uint16)(unsafe.Pointer(&buf[0])), 2*half)
	return windows.UTF16ToString(names[half : half+domainLen]), windows.UTF16ToString(names[:nameLen]), nil
}
