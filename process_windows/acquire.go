//go:build windows

package process_windows

import (
	"errors"
	"slices"

	"procscope/process"

	"golang.org/x/sys/windows"
)

const queryRights = windows.PROCESS_QUERY_LIMITED_INFORMATION | windows.PROCESS_QUERY_INFORMATION

// acquire opens pid with rights. The handle must be closed by the caller
// on every path. pid 0, the idle process, can never be opened. When the
// rights allow it the exit code is checked, because an open handle keeps
// the process object of an exited process around.
func (b *WindowsBackend) acquire(pid process.ProcessID, rights uint32) (windows.Handle, error) {
	if pid == 0 {
		return 0, process.AccessDenied(pid, "OpenProcess", nil)
	}

	h, err := windows.OpenProcess(rights, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return 0, process.NoSuchProcess(pid, "OpenProcess")
		}
		return 0, process.Wrap("OpenProcess", err)
	}

	if rights&queryRights == 0 {
		return h, nil
	}

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil || code == stillActive {
		return h, nil
	}

	// the exit code can legitimately be 259, only trust the table
	if pids, err := b.Pids(); err == nil && !slices.Contains(pids, pid) {
		windows.CloseHandle(h)
		return 0, process.NoSuchProcess(pid, "GetExitCodeProcess")
	}
	return h, nil
}
