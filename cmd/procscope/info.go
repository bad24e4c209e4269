package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"procscope/process"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// processInfo is everything info could collect about one process. Fields
// that failed are left empty and, in verbose mode, listed in Errors.
type processInfo struct {
	PID        process.ProcessID   `json:"pid"`
	Name       string              `json:"name,omitempty"`
	Exe        string              `json:"exe,omitempty"`
	Cmdline    []string            `json:"cmdline,omitempty"`
	Cwd        string              `json:"cwd,omitempty"`
	User       string              `json:"user,omitempty"`
	Times      *process.Times      `json:"times,omitempty"`
	Memory     *process.MemoryInfo `json:"memory,omitempty"`
	USS        uint64              `json:"uss,omitempty"`
	IO         *process.IOCounters `json:"io,omitempty"`
	Handles    uint32              `json:"handles,omitempty"`
	Threads    int                 `json:"threads,omitempty"`
	Suspended  bool                `json:"suspended"`
	Priority   *int                `json:"priority,omitempty"`
	IOPriority *int                `json:"io_priority,omitempty"`
	Affinity   uint64              `json:"affinity,omitempty"`
	Environ    []string            `json:"environ,omitempty"`
	Errors     map[string]string   `json:"errors,omitempty"`

	mu sync.Mutex
}

func (p *processInfo) fail(field string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Errors == nil {
		p.Errors = make(map[string]string)
	}
	p.Errors[field] = err.Error()
}

// field runs one query. A vanished process aborts the whole collection,
// any other failure only drops the field.
func field[T any](p *processInfo, name string, get func(process.ProcessID) (T, error), set func(T)) func() error {
	return func() error {
		v, err := get(p.PID)
		switch {
		case errors.Is(err, process.ErrNoSuchProcess):
			return err
		case err != nil:
			p.fail(name, err)
		default:
			set(v)
		}
		return nil
	}
}

func newInfoCommand(a *app) *cobra.Command {
	var env bool
	cmd := &cobra.Command{
		Use:   "info <pid>",
		Short: "Show identity and resource usage of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			info, err := a.collect(pid, env)
			if err != nil {
				return err
			}
			if !a.verbose {
				info.Errors = nil
			}
			return a.emit(info, func(w *tabwriter.Writer) {
				printInfo(w, info)
			})
		},
	}
	cmd.Flags().BoolVar(&env, "env", false, "include the environment block")
	return cmd
}

func (a *app) collect(pid process.ProcessID, env bool) (*processInfo, error) {
	c := a.client
	info := &processInfo{PID: pid}

	var eg errgroup.Group
	eg.SetLimit(4)
	eg.Go(field(info, "name", c.Name, func(v string) { info.Name = v }))
	eg.Go(field(info, "exe", c.Exe, func(v string) { info.Exe = v }))
	eg.Go(field(info, "cmdline", c.Cmdline, func(v []string) { info.Cmdline = v }))
	eg.Go(field(info, "cwd", c.Cwd, func(v string) { info.Cwd = v }))
	eg.Go(field(info, "username", c.Username, func(v process.Username) { info.User = v.String() }))
	eg.Go(field(info, "times", c.Times, func(v process.Times) { info.Times = &v }))
	eg.Go(field(info, "memory_info", c.MemoryInfo, func(v process.MemoryInfo) { info.Memory = &v }))
	eg.Go(field(info, "uss", c.USS, func(v uint64) { info.USS = v }))
	eg.Go(field(info, "io_counters", c.IOCounters, func(v process.IOCounters) { info.IO = &v }))
	eg.Go(field(info, "num_handles", c.NumHandles, func(v uint32) { info.Handles = v }))
	eg.Go(field(info, "threads", c.Threads, func(v []process.Thread) { info.Threads = len(v) }))
	eg.Go(field(info, "suspended", c.IsSuspended, func(v bool) { info.Suspended = v }))
	eg.Go(field(info, "priority", c.Priority, func(v int) { info.Priority = &v }))
	eg.Go(field(info, "io_priority", c.IOPriority, func(v int) { info.IOPriority = &v }))
	eg.Go(field(info, "cpu_affinity", c.CPUAffinity, func(v uint64) { info.Affinity = v }))
	if env {
		eg.Go(field(info, "environ", c.Environ, func(v []string) { info.Environ = v }))
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

func printInfo(w *tabwriter.Writer, p *processInfo) {
	row := func(k string, format string, v ...any) {
		fmt.Fprintf(w, "%s\t"+format+"\n", append([]any{k}, v...)...)
	}

	row("pid", "%d", p.PID)
	row("name", "%s", p.Name)
	row("exe", "%s", p.Exe)
	row("cmdline", "%s", strings.Join(p.Cmdline, " "))
	row("cwd", "%s", p.Cwd)
	row("user", "%s", p.User)
	if p.Times != nil {
		row("created", "%s", p.Times.CreateTime().Format(time.RFC3339))
		row("cpu", "user %.2fs, system %.2fs", p.Times.User, p.Times.System)
	}
	if p.Memory != nil {
		row("rss", "%s", humanize.IBytes(p.Memory.WorkingSet))
		row("peak rss", "%s", humanize.IBytes(p.Memory.PeakWorkingSet))
		row("private", "%s", humanize.IBytes(p.Memory.Private))
		row("virtual", "%s", humanize.IBytes(p.Memory.Virtual))
		row("page faults", "%s", humanize.Comma(int64(p.Memory.PageFaults)))
	}
	if p.USS != 0 {
		row("uss", "%s", humanize.IBytes(p.USS))
	}
	if p.IO != nil {
		row("io read", "%s ops, %s", humanize.Comma(int64(p.IO.ReadCount)), humanize.IBytes(p.IO.ReadBytes))
		row("io write", "%s ops, %s", humanize.Comma(int64(p.IO.WriteCount)), humanize.IBytes(p.IO.WriteBytes))
	}
	row("handles", "%d", p.Handles)
	row("threads", "%d", p.Threads)
	row("suspended", "%t", p.Suspended)
	if p.Priority != nil {
		row("priority", "%d", *p.Priority)
	}
	if p.IOPriority != nil {
		row("io priority", "%d", *p.IOPriority)
	}
	if p.Affinity != 0 {
		row("affinity", "%#x", p.Affinity)
	}
	for _, kv := range p.Environ {
		row("env", "%s", kv)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Errors)) {
		row("error", "%s: %s", k, p.Errors[k])
	}
}
