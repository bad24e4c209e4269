package decode

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// procargs builds a procargs2-style buffer
func procargs(argc int32, exec string, padding int, fields ...string) []byte {
	buf := binary.NativeEndian.AppendUint32(nil, uint32(argc))
	buf = append(buf, exec...)
	buf = append(buf, 0)
	buf = append(buf, make([]byte, padding)...)
	for _, f := range fields {
		buf = append(buf, f...)
		buf = append(buf, 0)
	}
	return buf
}

func TestArgv(t *testing.T) {
	t.Run("full_vector", func(t *testing.T) {
		buf := procargs(3, "/bin/ls", 5, "ls", "-l", "/tmp", "HOME=/root", "")
		argv, err := Argv(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"ls", "-l", "/tmp"}, argv)
	})

	t.Run("count_exceeds_fields", func(t *testing.T) {
		buf := procargs(5, "/bin/sh", 3, "sh", "-c")
		argv, err := Argv(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"sh", "-c"}, argv)
	})

	t.Run("unterminated_tail_dropped", func(t *testing.T) {
		buf := procargs(3, "/bin/sh", 0, "sh")
		buf = append(buf, "trunc"...)
		argv, err := Argv(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"sh"}, argv)
	})

	t.Run("idempotent", func(t *testing.T) {
		buf := procargs(2, "/usr/bin/env", 2, "env", "-i")
		first, err := Argv(buf)
		require.NoError(t, err)
		second, err := Argv(buf)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("short_buffer", func(t *testing.T) {
		_, err := Argv([]byte{1, 0})
		assert.ErrorIs(t, err, ErrShortBuffer)
	})

	t.Run("header_only", func(t *testing.T) {
		argv, err := Argv(binary.NativeEndian.AppendUint32(nil, 4))
		require.NoError(t, err)
		assert.Empty(t, argv)
	})

	t.Run("negative_count", func(t *testing.T) {
		argv, err := Argv(procargs(-1, "/bin/x", 0, "x"))
		require.NoError(t, err)
		assert.Empty(t, argv)
	})
}

func TestEnviron(t *testing.T) {
	t.Run("skips_exec_path_and_args", func(t *testing.T) {
		buf := procargs(2, "/bin/ls", 4, "ls", "-a", "HOME=/root", "TERM=xterm", "", "garbage")
		env, err := Environ(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"HOME=/root", "TERM=xterm"}, env)
	})

	t.Run("truncated_inside_args", func(t *testing.T) {
		buf := procargs(5, "/bin/ls", 0, "ls", "-a")
		env, err := Environ(buf)
		require.NoError(t, err)
		assert.Empty(t, env)
	})

	t.Run("no_terminating_empty_entry", func(t *testing.T) {
		buf := procargs(1, "/bin/ls", 0, "ls", "A=1", "B=2")
		env, err := Environ(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"A=1", "B=2"}, env)
	})
}

func TestExecPath(t *testing.T) {
	p, err := ExecPath(procargs(1, "/sbin/launchd", 3, "launchd"))
	require.NoError(t, err)
	assert.Equal(t, "/sbin/launchd", p)
}

func TestSplitNUL(t *testing.T) {
	assert.Equal(t, []string{"bash", "-c", "echo hi"}, SplitNUL([]byte("bash\x00-c\x00echo hi\x00")))
	assert.Equal(t, []string{"bash", "partial"}, SplitNUL([]byte("bash\x00partial")))
	assert.Nil(t, SplitNUL(nil))
}

func TestUTF16Block(t *testing.T) {
	var block []uint16
	for _, s := range []string{"PATH=C:\\Windows", "USERNAME=ünï"} {
		block = append(block, utf16.Encode([]rune(s))...)
		block = append(block, 0)
	}
	block = append(block, 0, 'X', 0)

	assert.Equal(t, []string{"PATH=C:\\Windows", "USERNAME=ünï"}, UTF16Block(block))
}

func TestFields(t *testing.T) {
	got := Fields([]byte("a\x00b\x00c\x00"), 2, false)
	require.Len(t, got, 2)
	assert.Equal(t, "b", string(got[1]))
}
