package query

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"procscope/process"

	gops "github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAgreesWithGopsutil checks the platform backend against an independent
// implementation for the current process.
func TestAgreesWithGopsutil(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Skip("no backend on this platform: ", err)
	}
	pid := process.ProcessID(os.Getpid())

	ref, err := gops.NewProcess(int32(pid))
	require.NoError(t, err)

	t.Run("parent", func(t *testing.T) {
		want, err := ref.Ppid()
		require.NoError(t, err)
		s, err := c.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, process.ProcessID(want), s.Parents[pid])
	})

	t.Run("exe", func(t *testing.T) {
		want, err := ref.Exe()
		require.NoError(t, err)
		got, err := c.Exe(pid)
		require.NoError(t, err)
		assert.True(t, strings.EqualFold(filepath.Clean(want), filepath.Clean(got)), "%s != %s", want, got)
	})

	t.Run("cmdline", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("argv splitting rules differ")
		}
		want, err := ref.CmdlineSlice()
		require.NoError(t, err)
		got, err := c.Cmdline(pid)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("create_time", func(t *testing.T) {
		wantMillis, err := ref.CreateTime()
		require.NoError(t, err)
		times, err := c.Times(pid)
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(times.Create-float64(wantMillis)/1000), 1.0)
	})

	t.Run("username", func(t *testing.T) {
		want, err := ref.Username()
		require.NoError(t, err)
		got, err := c.Username(pid)
		require.NoError(t, err)
		assert.True(t, strings.EqualFold(want, got.String()), "%s != %s", want, got)
	})
}
