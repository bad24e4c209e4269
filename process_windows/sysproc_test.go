//go:build windows

package process_windows

import (
	"testing"
	"time"
	"unsafe"

	"procscope/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestFindSystemProcess(t *testing.T) {
	const procSize = int(unsafe.Sizeof(windows.SYSTEM_PROCESS_INFORMATION{}))
	const threadSize = int(unsafe.Sizeof(systemThreadInformation{}))

	buf := make([]byte, 2*procSize+2*threadSize)

	first := (*windows.SYSTEM_PROCESS_INFORMATION)(unsafe.Pointer(&buf[0]))
	first.NextEntryOffset = uint32(procSize)
	first.UniqueProcessID = 4
	first.HandleCount = 100

	second := (*windows.SYSTEM_PROCESS_INFORMATION)(unsafe.Pointer(&buf[procSize]))
	second.UniqueProcessID = 1234
	second.NumberOfThreads = 3 // one more than the buffer holds
	second.HandleCount = 7
	second.UserTime = 20_000_000
	second.KernelTime = 5_000_000
	second.WorkingSetSize = 4096
	second.PageFaultCount = 12
	second.ReadOperationCount = 9
	second.WriteTransferCount = 512

	threads := unsafe.Slice((*systemThreadInformation)(unsafe.Pointer(&buf[2*procSize])), 2)
	threads[0] = systemThreadInformation{UniqueThread: 11, ThreadState: threadStateWaiting, WaitReason: waitReasonSuspended}
	threads[1] = systemThreadInformation{UniqueThread: 12, ThreadState: 2}

	sp, ok := findSystemProcess(buf, 1234)
	require.True(t, ok)

	times := sp.times()
	assert.InDelta(t, 2.0, times.User, 1e-9)
	assert.InDelta(t, 0.5, times.System, 1e-9)

	mi := sp.memoryInfo()
	assert.Equal(t, uint64(4096), mi.WorkingSet)
	assert.Equal(t, uint64(12), mi.PageFaults)

	io := sp.ioCounters()
	assert.Equal(t, uint64(9), io.ReadCount)
	assert.Equal(t, uint64(512), io.WriteBytes)

	assert.Equal(t, uint32(7), sp.numHandles())
	assert.Equal(t, []process.ThreadState{{ID: 11, Suspended: true}, {ID: 12}}, sp.threadStates())

	_, ok = findSystemProcess(buf, 99)
	assert.False(t, ok)
	_, ok = findSystemProcess(buf[:procSize-1], 4)
	assert.False(t, ok)
}

func TestAccessDeniedFallback(t *testing.T) {
	b := newTestBackend(t)
	denied := process.Wrap("OpenProcess", windows.ERROR_ACCESS_DENIED)

	t.Run("answers_from_snapshot", func(t *testing.T) {
		n, err := withFallback(b, self(), 0, denied, (*systemProcess).numHandles)
		require.NoError(t, err)
		assert.NotZero(t, n)

		times, err := withFallback(b, self(), process.Times{}, denied, (*systemProcess).times)
		require.NoError(t, err)
		assert.InDelta(t, float64(time.Now().Unix()), times.Create, 3600)

		mi, err := withFallback(b, self(), process.MemoryInfo{}, denied, (*systemProcess).memoryInfo)
		require.NoError(t, err)
		assert.NotZero(t, mi.WorkingSet)
	})

	t.Run("gone_is_no_such_process", func(t *testing.T) {
		_, err := withFallback(b, reapedPID(t), process.IOCounters{}, denied, (*systemProcess).ioCounters)
		assert.ErrorIs(t, err, process.ErrNoSuchProcess)
	})

	t.Run("pid_zero_keeps_denial", func(t *testing.T) {
		_, err := withFallback(b, 0, 0, denied, (*systemProcess).numHandles)
		assert.ErrorIs(t, err, windows.ERROR_ACCESS_DENIED)
	})

	t.Run("other_errors_pass_through", func(t *testing.T) {
		other := process.Wrap("GetProcessTimes", windows.ERROR_INVALID_HANDLE)
		_, err := withFallback(b, self(), process.Times{}, other, (*systemProcess).times)
		assert.ErrorIs(t, err, windows.ERROR_INVALID_HANDLE)
	})
}
