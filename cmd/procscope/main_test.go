package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"text/tabwriter"

	"procscope/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePID(t *testing.T) {
	pid, err := parsePID("4242")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessID(4242), pid)

	for _, bad := range []string{"", "-1", "abc", "4294967296"} {
		_, err := parsePID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAddress(t *testing.T) {
	for _, in := range []string{"0x7ffd1000", "7ffd1000", "0X7FFD1000"} {
		addr, err := parseAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, process.ProcessMemoryAddress(0x7ffd1000), addr)
	}
	_, err := parseAddress("0xzz")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitNoSuch, exitCode(process.NoSuchProcess(5, "kill")))
	assert.Equal(t, exitDenied, exitCode(fmt.Errorf("wrapped: %w", process.AccessDenied(5, "open", nil))))
	assert.Equal(t, exitTimeout, exitCode(process.WaitOutcome(5, "wait", process.WaitTimedOut, nil)))
	assert.Equal(t, exitFailure, exitCode(errors.New("plain")))
}

func TestDescribe(t *testing.T) {
	err := &process.Error{Kind: process.KindAccessDenied, PID: 7, Syscall: "OpenProcess", Code: 5}

	quiet := &app{}
	assert.Equal(t, err.Error(), quiet.describe(err))

	loud := &app{verbose: true}
	assert.Contains(t, loud.describe(err), `syscall="OpenProcess" code=0x5`)
	assert.Equal(t, "plain", loud.describe(errors.New("plain")))
}

func TestEmit(t *testing.T) {
	var out bytes.Buffer
	a := &app{out: &out}
	require.NoError(t, a.emit([]int{1}, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "PID\tPPID")
		fmt.Fprintln(w, "1\t0")
	}))
	assert.Equal(t, "PID  PPID\n1    0\n", out.String())

	out.Reset()
	a.json = true
	require.NoError(t, a.emit(process.WaitResult{ExitCode: 3, Known: true}, nil))
	assert.JSONEq(t, `{"exit_code":3,"known":true}`, out.String())
}

func TestPrintTree(t *testing.T) {
	s := process.NewSnapshot(
		[]process.ProcessID{1, 10, 11, 20},
		map[process.ProcessID]process.ProcessID{10: 1, 11: 10, 20: 1},
	)
	s.Names = map[process.ProcessID]string{1: "init", 10: "sshd", 11: "bash", 20: "cron"}

	var out bytes.Buffer
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	printTree(w, s, s.Tree(1), 0)
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "1 "))
	assert.True(t, strings.HasPrefix(lines[1], "  10"))
	assert.True(t, strings.HasPrefix(lines[2], "    11"))
	assert.Contains(t, lines[2], "bash")
}

func TestPrintInfo(t *testing.T) {
	prio := 0
	info := &processInfo{
		PID:      42,
		Name:     "sleep",
		Cmdline:  []string{"sleep", "30"},
		Priority: &prio,
		Errors:   map[string]string{"uss": "denied", "cwd": "denied"},
	}

	var out bytes.Buffer
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	printInfo(w, info)
	require.NoError(t, w.Flush())

	text := out.String()
	assert.Contains(t, text, "sleep 30")
	assert.Contains(t, text, "priority")
	assert.Less(t, strings.Index(text, "cwd: denied"), strings.Index(text, "uss: denied"))
	assert.NotContains(t, text, "rss")
}

func TestPrintInfoHumanizesBytes(t *testing.T) {
	info := &processInfo{
		PID:    1,
		Memory: &process.MemoryInfo{WorkingSet: 3 << 20, PageFaults: 12345},
		USS:    1536,
	}

	var out bytes.Buffer
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	printInfo(w, info)
	require.NoError(t, w.Flush())

	assert.Contains(t, out.String(), "3.0 MiB")
	assert.Contains(t, out.String(), "1.5 KiB")
	assert.Contains(t, out.String(), "12,345")
}
