//go:build windows

package process_windows

import (
	"errors"
	"slices"
	"unsafe"

	"procscope/process"
	"procscope/process/buffer"

	"golang.org/x/sys/windows"
)

// errPidsFull is reported when EnumProcesses filled the whole buffer,
// which is the only way it signals truncation
var errPidsFull = errors.New("EnumProcesses: buffer full")

// Pids grows an EnumProcesses buffer until the returned count is smaller
// than the buffer
func (b *WindowsBackend) Pids() ([]process.ProcessID, error) {
	buf, used, err := buffer.Read(buffer.Policy{
		Syscall:  "EnumProcesses",
		Initial:  1024 * 4,
		Ceiling:  b.cfg.BufferCeiling,
		TooSmall: func(err error) bool { return errors.Is(err, errPidsFull) },
	}, func(buf []byte) (int, error) {
		ids := unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), len(buf)/4)
		var returned uint32
		if err := windows.EnumProcesses(ids, &returned); err != nil {
			return 0, err
		}
		if int(returned) >= len(buf) {
			return 0, errPidsFull
		}
		return int(returned), nil
	})
	if err != nil {
		if _, ok := process.KindOf(err); ok {
			return nil, err
		}
		return nil, process.Fatal(0, "EnumProcesses", err)
	}

	ids := unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), used/4)
	pids := make([]process.ProcessID, len(ids))
	for i, id := range ids {
		pids[i] = process.ProcessID(id)
	}
	return pids, nil
}

// Snapshot walks a Toolhelp process snapshot, which records the parent of
// every process at the moment the snapshot is taken
func (b *WindowsBackend) Snapshot() (*process.Snapshot, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, process.Fatal(0, "CreateToolhelp32Snapshot", err)
	}
	defer windows.CloseHandle(snap)

	var pids []process.ProcessID
	parents := make(map[process.ProcessID]process.ProcessID)
	names := make(map[process.ProcessID]string)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	err = windows.Process32First(snap, &entry)
	for err == nil {
		pid := process.ProcessID(entry.ProcessID)
		pids = append(pids, pid)
		parents[pid] = process.ProcessID(entry.ParentProcessID)
		names[pid] = windows.UTF16ToString(entry.ExeFile[:])
		err = windows.Process32Next(snap, &entry)
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, process.Fatal(0, "Process32Next", err)
	}

	s := process.NewSnapshot(pids, parents)
	s.Names = names
	return s, nil
}

// PidExists opens the process for limited query. When that is refused, or
// the handle belongs to an exited process, membership in a fresh
// enumeration decides.
func (b *WindowsBackend) PidExists(pid process.ProcessID) (bool, error) {
	if pid == 0 {
		return true, nil
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	switch {
	case err == nil:
		defer windows.CloseHandle(h)
		var code uint32
		if err := windows.GetExitCodeProcess(h, &code); err == nil && code == stillActive {
			return true, nil
		}
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return false, nil
	case !errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return false, process.Wrap("OpenProcess", err)
	}

	pids, err := b.Pids()
	if err != nil {
		return false, err
	}
	return slices.Contains(pids, pid), nil
}

// Name returns the image name recorded in a process snapshot
func (b *WindowsBackend) Name(pid process.ProcessID) (string, error) {
	s, err := b.Snapshot()
	if err != nil {
		return "", err
	}
	if !s.Contains(pid) {
		return "", process.NoSuchProcess(pid, "CreateToolhelp32Snapshot")
	}
	return s.Name(pid), nil
}
