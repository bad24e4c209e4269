package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errGoneOrDenied = errors.New("ambiguous")
	errGone         = errors.New("gone")
	errWeird        = errors.New("weird")
)

func testClassify(err error) Verdict {
	switch {
	case errors.Is(err, errGoneOrDenied):
		return Verdict{Kind: KindAccessDenied, Ambiguous: true, Code: 5}
	case errors.Is(err, errGone):
		return Verdict{Kind: KindNoSuchProcess, Code: 87}
	default:
		return Verdict{Kind: KindFatal}
	}
}

type fakeTable struct {
	alive   map[ProcessID]bool
	zombies map[ProcessID]bool
	checks  int
	fail    bool
}

func (f *fakeTable) exists(pid ProcessID) (bool, error) {
	f.checks++
	if f.fail {
		return false, errors.New("enumeration failed")
	}
	return f.alive[pid], nil
}

func (f *fakeTable) zombie(pid ProcessID) bool {
	return f.zombies[pid]
}

func TestNormalize(t *testing.T) {
	t.Run("ambiguous_and_gone_is_no_such_process", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{}}
		n := NewNormalizer(testClassify, table.exists, table.zombie)

		err := n.Normalize(42, "OpenProcess", errGoneOrDenied)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSuchProcess)
		assert.Equal(t, 1, table.checks)

		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ProcessID(42), pe.PID)
		assert.Equal(t, "OpenProcess", pe.Syscall)
		assert.Equal(t, int64(5), pe.Code)
	})

	t.Run("ambiguous_and_alive_keeps_literal_kind", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{42: true}}
		n := NewNormalizer(testClassify, table.exists, nil)

		err := n.Normalize(42, "OpenProcess", errGoneOrDenied)
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.Equal(t, 1, table.checks)
	})

	t.Run("unambiguous_skips_liveness", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{42: true}}
		n := NewNormalizer(testClassify, table.exists, nil)

		err := n.Normalize(42, "OpenProcess", errGone)
		assert.ErrorIs(t, err, ErrNoSuchProcess)
		assert.Zero(t, table.checks)
	})

	t.Run("fatal_rechecks_liveness", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{}}
		n := NewNormalizer(testClassify, table.exists, nil)

		assert.ErrorIs(t, n.Normalize(7, "Query", errWeird), ErrNoSuchProcess)

		table.alive[7] = true
		err := n.Normalize(7, "Query", errWeird)
		assert.ErrorIs(t, err, ErrFatal)
		assert.ErrorIs(t, err, errWeird)
	})

	t.Run("liveness_failure_keeps_literal_kind", func(t *testing.T) {
		table := &fakeTable{fail: true}
		n := NewNormalizer(testClassify, table.exists, nil)
		assert.ErrorIs(t, n.Normalize(9, "Query", errGoneOrDenied), ErrAccessDenied)
	})

	t.Run("zombie_upgrade", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{}, zombies: map[ProcessID]bool{11: true}}
		n := NewNormalizer(testClassify, table.exists, table.zombie)
		assert.ErrorIs(t, n.Normalize(11, "readlink", errGone), ErrZombieProcess)
	})

	t.Run("syscall_error_carries_name", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{3: true}}
		n := NewNormalizer(testClassify, table.exists, nil)

		err := n.Normalize(3, "fallback", fmt.Errorf("reading: %w", Wrap("NtQueryInformationProcess", errGoneOrDenied)))
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "NtQueryInformationProcess", pe.Syscall)
		assert.Equal(t, KindAccessDenied, pe.Kind)
	})

	t.Run("normalized_errors_pass_through", func(t *testing.T) {
		table := &fakeTable{}
		n := NewNormalizer(testClassify, table.exists, nil)

		err := n.Normalize(5, "x", NewError(KindTimeout, 0, "WaitForSingleObject", nil))
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, KindTimeout, pe.Kind)
		assert.Equal(t, ProcessID(5), pe.PID)
		assert.Zero(t, table.checks)
	})

	t.Run("unsupported_on_gone_pid_is_no_such_process", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{}}
		n := NewNormalizer(testClassify, table.exists, nil)

		err := n.Normalize(424242, "memory_info", Unsupported(424242, "memory info"))
		assert.ErrorIs(t, err, ErrNoSuchProcess)
		assert.NotErrorIs(t, err, ErrUnsupported)
		assert.Equal(t, 1, table.checks)
	})

	t.Run("unsupported_on_zombie_is_zombie", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{}, zombies: map[ProcessID]bool{7: true}}
		n := NewNormalizer(testClassify, table.exists, table.zombie)

		assert.ErrorIs(t, n.Normalize(7, "threads", Unsupported(7, "threads")), ErrZombieProcess)
	})

	t.Run("unsupported_on_live_pid_stays_unsupported", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{42: true}}
		n := NewNormalizer(testClassify, table.exists, nil)

		assert.ErrorIs(t, n.Normalize(42, "cpu_affinity", Unsupported(42, "cpu affinity")), ErrUnsupported)

		table.fail = true
		assert.ErrorIs(t, n.Normalize(42, "cpu_affinity", Unsupported(42, "cpu affinity")), ErrUnsupported)
	})

	t.Run("errno_code_recorded", func(t *testing.T) {
		table := &fakeTable{alive: map[ProcessID]bool{1: true}}
		n := NewNormalizer(testClassify, table.exists, nil)

		var pe *Error
		require.ErrorAs(t, n.Normalize(1, "kill", syscall.Errno(1)), &pe)
		assert.Equal(t, int64(1), pe.Code)
	})

	t.Run("nil_is_nil", func(t *testing.T) {
		n := NewNormalizer(testClassify, nil, nil)
		assert.NoError(t, n.Normalize(1, "x", nil))
	})
}

func TestErrorIs(t *testing.T) {
	err := NewError(KindAccessDenied, 10, "OpenProcess", errors.New("denied"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrNoSuchProcess)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "OpenProcess")

	kind, ok := KindOf(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, KindAccessDenied, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWaitOutcome(t *testing.T) {
	assert.NoError(t, WaitOutcome(1, "WaitForSingleObject", WaitExited, nil))
	assert.ErrorIs(t, WaitOutcome(1, "WaitForSingleObject", WaitTimedOut, nil), ErrTimeout)

	abandoned := WaitOutcome(1, "WaitForSingleObject", WaitAbandoned, nil)
	assert.ErrorIs(t, abandoned, ErrWaitAbandoned)
	assert.NotErrorIs(t, abandoned, ErrTimeout)

	boom := errors.New("boom")
	failed := WaitOutcome(1, "WaitForSingleObject", WaitFailed, boom)
	assert.ErrorIs(t, failed, boom)
	var se *SyscallError
	assert.ErrorAs(t, failed, &se)
}

func TestTimes(t *testing.T) {
	assert.InDelta(t, 1.5, TicksToSeconds(15_000_000), 1e-9)
	assert.InDelta(t, 0, FiletimeToUnix(filetimeUnixOffset), 1e-9)
	assert.InDelta(t, 86400, FiletimeToUnix(filetimeUnixOffset+86400*10_000_000), 1e-6)
	assert.Zero(t, FiletimeToUnix(1))
	assert.InDelta(t, 2.5, JiffiesToSeconds(250, 100), 1e-9)
	assert.InDelta(t, 1, JiffiesToSeconds(100, 0), 1e-9)

	tm := Times{Create: 1700000000.5}
	assert.Equal(t, int64(1700000000), tm.CreateTime().Unix())
}

func TestAllThreadsSuspended(t *testing.T) {
	assert.True(t, AllThreadsSuspended(nil))
	assert.True(t, AllThreadsSuspended([]ThreadState{{ID: 1, Suspended: true}, {ID: 2, Suspended: true}}))
	assert.False(t, AllThreadsSuspended([]ThreadState{{ID: 1, Suspended: true}, {ID: 2}}))
	assert.True(t, ProcessStopped.IsStopped())
	assert.True(t, ProcessZombie.IsZombie())
	assert.False(t, ProcessRunning.IsStopped())
}

func TestSystemConfig(t *testing.T) {
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("CLK_TCK", "")
	t.Setenv("PROCSCOPE_BUFFER_CEILING", "")
	cfg := DefaultSystemConfig()
	assert.Greater(t, cfg.PageSize, 0)
	assert.Equal(t, 100, cfg.ClockTicks)
	assert.Equal(t, DefaultBufferCeiling, cfg.BufferCeiling)

	t.Setenv("PAGE_SIZE", "16384")
	t.Setenv("CLK_TCK", "250")
	t.Setenv("PROCSCOPE_BUFFER_CEILING", "4096")
	cfg = DefaultSystemConfig()
	assert.Equal(t, 16384, cfg.PageSize)
	assert.Equal(t, 250, cfg.ClockTicks)
	assert.Equal(t, 4096, cfg.BufferCeiling)

	t.Setenv("PAGE_SIZE", "bogus")
	assert.Equal(t, os.Getpagesize(), DefaultSystemConfig().PageSize)
}
