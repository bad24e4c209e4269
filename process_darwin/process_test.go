//go:build darwin

package process_darwin

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
	"unsafe"

	"procscope/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *DarwinBackend {
	t.Helper()
	b, err := New()
	require.NoError(t, err)
	return b
}

func reapedPID(t *testing.T) process.ProcessID {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return process.ProcessID(cmd.Process.Pid)
}

func TestSnapshot(t *testing.T) {
	b := newTestBackend(t)

	s, err := b.Snapshot()
	require.NoError(t, err)
	self := process.ProcessID(os.Getpid())
	require.True(t, s.Contains(self))
	assert.Equal(t, process.ProcessID(os.Getppid()), s.Parents[self])
	assert.Len(t, s.Parents, len(s.PIDs))

	alive, err := b.PidExists(0)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestSelf(t *testing.T) {
	b := newTestBackend(t)
	pid := process.ProcessID(os.Getpid())

	argv, err := b.Cmdline(pid)
	require.NoError(t, err)
	assert.Equal(t, os.Args, argv)

	env, err := b.Environ(pid)
	require.NoError(t, err)
	assert.NotEmpty(t, env)

	times, err := b.Times(pid)
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Now().Unix()), times.Create, 3600)
	assert.Greater(t, times.User+times.System, 0.0)

	wd, err := os.Getwd()
	require.NoError(t, err)
	wd, err = filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	cwd, err := b.Cwd(pid)
	require.NoError(t, err)
	assert.Equal(t, wd, cwd)
}

func TestSelfResources(t *testing.T) {
	b := newTestBackend(t)
	pid := process.ProcessID(os.Getpid())

	t.Run("memory_info", func(t *testing.T) {
		mi, err := b.MemoryInfo(pid)
		require.NoError(t, err)
		assert.NotZero(t, mi.WorkingSet)
		assert.GreaterOrEqual(t, mi.Virtual, mi.WorkingSet)
	})

	t.Run("uss", func(t *testing.T) {
		uss, err := b.UniqueSetSize(pid)
		require.NoError(t, err)
		assert.NotZero(t, uss)
	})

	t.Run("io_counters", func(t *testing.T) {
		_, err := b.IOCounters(pid)
		assert.NoError(t, err)
	})

	t.Run("open_files", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "open")
		require.NoError(t, err)
		defer f.Close()

		files, err := b.OpenFiles(pid)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(f.Name())
		require.NoError(t, err)

		found := false
		for _, of := range files {
			if of.Path == want && of.FD == int64(f.Fd()) {
				found = true
			}
		}
		assert.True(t, found, "%s not in %v", want, files)

		n, err := b.NumHandles(pid)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int(n), len(files))
	})

	t.Run("memory_maps", func(t *testing.T) {
		regions, err := b.MemoryMaps(pid)
		require.NoError(t, err)
		require.NotEmpty(t, regions)
		for i := 1; i < len(regions); i++ {
			assert.GreaterOrEqual(t, regions[i].Address, regions[i-1].End())
		}
	})

	t.Run("threads", func(t *testing.T) {
		threads, err := b.Threads(pid)
		require.NoError(t, err)
		assert.NotEmpty(t, threads)

		states, err := b.ThreadStates(pid)
		require.NoError(t, err)
		assert.False(t, process.AllThreadsSuspended(states))
	})

	t.Run("affinity_unsupported", func(t *testing.T) {
		_, err := b.CPUAffinity(pid)
		assert.ErrorIs(t, err, process.ErrUnsupported)
	})
}

func TestProcargsCeiling(t *testing.T) {
	b := newTestBackend(t)
	require.Greater(t, b.argmax, 64)
	b.cfg.BufferCeiling = 64

	_, err := b.Cmdline(process.ProcessID(os.Getpid()))
	assert.ErrorIs(t, err, process.ErrBufferCeiling)
}

func TestStructLayout(t *testing.T) {
	assert.Equal(t, uintptr(96), unsafe.Sizeof(procTaskInfo{}))
	assert.Equal(t, uintptr(1176), unsafe.Sizeof(vnodeInfoPath{}))
	assert.Equal(t, uintptr(2352), unsafe.Sizeof(procVnodePathInfo{}))
	assert.Equal(t, uintptr(1200), unsafe.Sizeof(vnodeFDInfoWithPath{}))
	assert.Equal(t, uintptr(112), unsafe.Sizeof(procThreadInfo{}))
	assert.Equal(t, uintptr(96), unsafe.Sizeof(procRegionInfo{}))
	assert.Equal(t, uintptr(1272), unsafe.Sizeof(procRegionWithPathInfo{}))
	assert.Equal(t, uintptr(160), unsafe.Sizeof(rusageInfoV2{}))
}

func TestGoneProcess(t *testing.T) {
	b := newTestBackend(t)
	n := process.NewNormalizer(b.Classify, b.PidExists, b.IsZombie)
	pid := reapedPID(t)

	queries := map[string]func() error{
		"name":            func() error { _, err := b.Name(pid); return err },
		"exe":             func() error { _, err := b.Exe(pid); return err },
		"cmdline":         func() error { _, err := b.Cmdline(pid); return err },
		"cwd":             func() error { _, err := b.Cwd(pid); return err },
		"username":        func() error { _, err := b.Username(pid); return err },
		"times":           func() error { _, err := b.Times(pid); return err },
		"memory_info":     func() error { _, err := b.MemoryInfo(pid); return err },
		"uss":             func() error { _, err := b.UniqueSetSize(pid); return err },
		"io_counters":     func() error { _, err := b.IOCounters(pid); return err },
		"open_files":      func() error { _, err := b.OpenFiles(pid); return err },
		"memory_maps":     func() error { _, err := b.MemoryMaps(pid); return err },
		"num_handles":     func() error { _, err := b.NumHandles(pid); return err },
		"threads":         func() error { _, err := b.Threads(pid); return err },
		"thread_states":   func() error { _, err := b.ThreadStates(pid); return err },
		"io_priority":     func() error { _, err := b.IOPriority(pid); return err },
		"set_io_priority": func() error { return b.SetIOPriority(pid, 0) },
		"affinity":        func() error { _, err := b.CPUAffinity(pid); return err },
		"set_affinity":    func() error { return b.SetCPUAffinity(pid, 1) },
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			err := q()
			require.Error(t, err)
			assert.ErrorIs(t, n.Normalize(pid, name, err), process.ErrNoSuchProcess)
		})
	}

	assert.NoError(t, b.Kill(pid))

	res, err := b.Wait(pid, time.Second)
	require.NoError(t, err)
	assert.False(t, res.Known)
}

func TestWaitChild(t *testing.T) {
	b := newTestBackend(t)

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := process.ProcessID(cmd.Process.Pid)

	_, err := b.Wait(pid, 20*time.Millisecond)
	assert.ErrorIs(t, err, process.ErrTimeout)

	require.NoError(t, b.Kill(pid))
	res, err := b.Wait(pid, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, process.Exited(-9), res)
}
