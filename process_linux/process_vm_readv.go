//go:build linux

package process_linux

import (
	"fmt"
	"strconv"

	"procscope/process"

	"golang.org/x/sys/unix"
)

// memoryReader reads another address space with process_vm_readv. It
// assumes the target has the reader's pointer width.
type memoryReader struct {
	pid process.ProcessID
}

var (
	_ process.MemoryReader = memoryReader{}
	_ process.MemoryAccess = (*LinuxBackend)(nil)
)

// OpenMemory returns a reader for pid. Nothing is opened; every read is
// one syscall against the PID.
func (b *LinuxBackend) OpenMemory(pid process.ProcessID) (process.MemoryReader, error) {
	if _, err := b.proc(pid); err != nil {
		return nil, err
	}
	return memoryReader{pid: pid}, nil
}

func (r memoryReader) PointerSize() int {
	return strconv.IntSize / 8
}

func (r memoryReader) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)

	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(int(r.pid), local, remote, 0)
	if err != nil {
		return nil, process.Wrap("process_vm_readv", err)
	}
	if n != len(buf) {
		return buf[:n], fmt.Errorf("partial read at %s: %d of %d bytes: %w", addr, n, size, process.ErrShortRead)
	}
	return buf, nil
}
