// Package query is the flat call surface over the platform backends. Every
// per-process call applies the pid 0 rule, runs the backend, and hands any
// failure to the normalizer, so callers only ever see *process.Error.
package query

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"procscope/process"
	"procscope/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Client answers process queries. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	backend process.Backend
	norm    *process.Normalizer
	log     *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBackend replaces the platform backend, mostly for tests
func WithBackend(b process.Backend) Option {
	return func(c *Client) {
		c.backend = b
	}
}

// WithLogger replaces the client logger. The platform backend keeps its own.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client on the backend for the running platform
func New(opts ...Option) (*Client, error) {
	c := &Client{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "query")),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.backend == nil {
		b, err := newBackend()
		if err != nil {
			return nil, fmt.Errorf("query: create backend: %w", err)
		}
		c.backend = b
	}

	c.norm = process.NewNormalizer(c.backend.Classify, c.backend.PidExists, c.backend.IsZombie)
	c.log.Debugln("Client ready on", c.backend.Platform())
	return c, nil
}

// Backend returns the backend the client dispatches to
func (c *Client) Backend() process.Backend {
	return c.backend
}

// System returns the static configuration of the backend
func (c *Client) System() process.SystemConfig {
	return c.backend.System()
}

// guard rejects pid 0 before any native call. No liveness check is made.
func guard(pid process.ProcessID, what string) error {
	if pid == 0 {
		return process.AccessDenied(0, what, nil)
	}
	return nil
}

// call runs one per-process query through the guard and the normalizer
func call[T any](c *Client, pid process.ProcessID, what string, fn func(process.ProcessID) (T, error)) (T, error) {
	if err := guard(pid, what); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(pid)
	if err != nil {
		var zero T
		err = c.norm.Normalize(pid, what, err)
		c.log.Debugln("Query", what, "for pid", pid, "failed:", err)
		return zero, err
	}
	return v, nil
}

// do is call for queries without a result value
func do(c *Client, pid process.ProcessID, what string, fn func(process.ProcessID) error) error {
	_, err := call(c, pid, what, func(pid process.ProcessID) (struct{}, error) {
		return struct{}{}, fn(pid)
	})
	return err
}

// fatal normalizes an enumeration failure, which is never process specific
func fatal(what string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := process.KindOf(err); ok {
		return err
	}
	return process.Fatal(0, what, err)
}

// Enumeration

func (c *Client) Pids() ([]process.ProcessID, error) {
	pids, err := c.backend.Pids()
	return pids, fatal("pids", err)
}

// ParentMap returns pid -> parent pid from one enumeration
func (c *Client) ParentMap() (map[process.ProcessID]process.ProcessID, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Parents, nil
}

func (c *Client) Snapshot() (*process.Snapshot, error) {
	s, err := c.backend.Snapshot()
	return s, fatal("snapshot", err)
}

func (c *Client) PidExists(pid process.ProcessID) (bool, error) {
	alive, err := c.backend.PidExists(pid)
	return alive, fatal("pid_exists", err)
}

// Children returns the direct children of pid
func (c *Client) Children(pid process.ProcessID) ([]process.ProcessID, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Children(pid), nil
}

// Descendants returns every process below pid, breadth first
func (c *Client) Descendants(pid process.ProcessID) ([]process.ProcessID, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Descendants(pid), nil
}

// Tree returns the process tree rooted at pid
func (c *Client) Tree(pid process.ProcessID) (*process.ProcessTreeNode, error) {
	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	tree := s.Tree(pid)
	if tree == nil {
		return nil, process.NoSuchProcess(pid, "snapshot")
	}
	return tree, nil
}

// trimExtensions makes name matching ignore the image extension. Only
// Windows image names carry one.
var trimExtensions = runtime.GOOS == "windows"

// FindByName returns the pids whose image name is name. On Windows the
// comparison also accepts the name without its extension, so "notepad"
// finds notepad.exe.
func (c *Client) FindByName(name string) ([]process.ProcessID, error) {
	return c.FindByNamePattern("^" + regexp.QuoteMeta(name) + "$")
}

// FindByNamePattern returns the pids whose image name matches pattern
func (c *Client) FindByNamePattern(pattern string) ([]process.ProcessID, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	s, err := c.Snapshot()
	if err != nil {
		return nil, err
	}

	var found []process.ProcessID
	for _, pid := range s.PIDs {
		name := s.Name(pid)
		if name == "" {
			continue
		}
		switch {
		case re.MatchString(name):
			found = append(found, pid)
		case trimExtensions && re.MatchString(strings.TrimSuffix(name, filepath.Ext(name))):
			found = append(found, pid)
		}
	}
	return found, nil
}

// Lifecycle

func (c *Client) Kill(pid process.ProcessID) error {
	return do(c, pid, "kill", c.backend.Kill)
}

// Wait blocks until pid exits or timeout elapses; process.Infinite waits
// forever. Timeout and abandoned waits are distinct error kinds.
func (c *Client) Wait(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	return call(c, pid, "wait", func(pid process.ProcessID) (process.WaitResult, error) {
		return c.backend.Wait(pid, timeout)
	})
}

func (c *Client) SuspendOrResume(pid process.ProcessID, suspend bool) error {
	return do(c, pid, "suspend_or_resume", func(pid process.ProcessID) error {
		return c.backend.SuspendOrResume(pid, suspend)
	})
}

func (c *Client) Suspend(pid process.ProcessID) error {
	return c.SuspendOrResume(pid, true)
}

func (c *Client) Resume(pid process.ProcessID) error {
	return c.SuspendOrResume(pid, false)
}

// Identity

func (c *Client) Name(pid process.ProcessID) (string, error) {
	return call(c, pid, "name", c.backend.Name)
}

func (c *Client) Exe(pid process.ProcessID) (string, error) {
	return call(c, pid, "exe", c.backend.Exe)
}

func (c *Client) Cmdline(pid process.ProcessID) ([]string, error) {
	return call(c, pid, "cmdline", c.backend.Cmdline)
}

func (c *Client) Environ(pid process.ProcessID) ([]string, error) {
	return call(c, pid, "environ", c.backend.Environ)
}

func (c *Client) Cwd(pid process.ProcessID) (string, error) {
	return call(c, pid, "cwd", c.backend.Cwd)
}

func (c *Client) Username(pid process.ProcessID) (process.Username, error) {
	return call(c, pid, "username", c.backend.Username)
}

// Resources

func (c *Client) Times(pid process.ProcessID) (process.Times, error) {
	return call(c, pid, "times", c.backend.Times)
}

func (c *Client) MemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	return call(c, pid, "memory_info", c.backend.MemoryInfo)
}

// USS is the unique set size in bytes: memory that would be freed if the
// process exited now
func (c *Client) USS(pid process.ProcessID) (uint64, error) {
	return call(c, pid, "uss", c.backend.UniqueSetSize)
}

func (c *Client) IOCounters(pid process.ProcessID) (process.IOCounters, error) {
	return call(c, pid, "io_counters", c.backend.IOCounters)
}

func (c *Client) OpenFiles(pid process.ProcessID) ([]process.OpenFile, error) {
	return call(c, pid, "open_files", c.backend.OpenFiles)
}

func (c *Client) MemoryMaps(pid process.ProcessID) ([]memory_map.MemoryRegion, error) {
	return call(c, pid, "memory_maps", c.backend.MemoryMaps)
}

func (c *Client) NumHandles(pid process.ProcessID) (uint32, error) {
	return call(c, pid, "num_handles", c.backend.NumHandles)
}

func (c *Client) Threads(pid process.ProcessID) ([]process.Thread, error) {
	return call(c, pid, "threads", c.backend.Threads)
}

// IsSuspended reports whether every thread of pid is suspended
func (c *Client) IsSuspended(pid process.ProcessID) (bool, error) {
	states, err := call(c, pid, "thread_states", c.backend.ThreadStates)
	if err != nil {
		return false, err
	}
	return process.AllThreadsSuspended(states), nil
}

// Scheduling

func (c *Client) Priority(pid process.ProcessID) (int, error) {
	return call(c, pid, "priority", c.backend.Priority)
}

func (c *Client) SetPriority(pid process.ProcessID, priority int) error {
	return do(c, pid, "set_priority", func(pid process.ProcessID) error {
		return c.backend.SetPriority(pid, priority)
	})
}

func (c *Client) IOPriority(pid process.ProcessID) (int, error) {
	return call(c, pid, "io_priority", c.backend.IOPriority)
}

func (c *Client) SetIOPriority(pid process.ProcessID, priority int) error {
	return do(c, pid, "set_io_priority", func(pid process.ProcessID) error {
		return c.backend.SetIOPriority(pid, priority)
	})
}

func (c *Client) CPUAffinity(pid process.ProcessID) (uint64, error) {
	return call(c, pid, "cpu_affinity", c.backend.CPUAffinity)
}

func (c *Client) SetCPUAffinity(pid process.ProcessID, mask uint64) error {
	return do(c, pid, "set_cpu_affinity", func(pid process.ProcessID) error {
		return c.backend.SetCPUAffinity(pid, mask)
	})
}

// Memory

// ReadMemory copies size bytes at addr out of pid. Backends without
// address space access report Unsupported.
func (c *Client) ReadMemory(pid process.ProcessID, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	return call(c, pid, "read_memory", func(pid process.ProcessID) ([]byte, error) {
		access, ok := c.backend.(process.MemoryAccess)
		if !ok {
			return nil, process.Unsupported(pid, "read_memory")
		}
		r, err := access.OpenMemory(pid)
		if err != nil {
			return nil, err
		}
		if closer, ok := r.(io.Closer); ok {
			defer closer.Close()
		}
		return r.ReadMemory(addr, size)
	})
}
