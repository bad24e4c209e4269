package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"procscope/process"

	"github.com/spf13/cobra"
)

func newPidsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pids",
		Short: "List the running process ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := a.client.Pids()
			if err != nil {
				return err
			}
			return a.emit(pids, func(w *tabwriter.Writer) {
				for _, pid := range pids {
					fmt.Fprintln(w, pid)
				}
			})
		},
	}
}

type parentEntry struct {
	PID    process.ProcessID `json:"pid"`
	Parent process.ProcessID `json:"ppid"`
	Name   string            `json:"name,omitempty"`
}

func newPpidsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ppids",
		Short: "List every process with its parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Snapshot()
			if err != nil {
				return err
			}
			entries := make([]parentEntry, 0, len(s.PIDs))
			for _, pid := range s.PIDs {
				entries = append(entries, parentEntry{PID: pid, Parent: s.Parents[pid], Name: s.Name(pid)})
			}
			slices.SortFunc(entries, func(x, y parentEntry) int {
				return int(x.PID) - int(y.PID)
			})
			return a.emit(entries, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PID\tPPID\tNAME")
				for _, e := range entries {
					fmt.Fprintf(w, "%d\t%d\t%s\n", e.PID, e.Parent, e.Name)
				}
			})
		},
	}
}

func newTreeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <pid>",
		Short: "Show the process tree below a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			s, err := a.client.Snapshot()
			if err != nil {
				return err
			}
			tree := s.Tree(pid)
			if tree == nil {
				return process.NoSuchProcess(pid, "snapshot")
			}
			return a.emit(tree, func(w *tabwriter.Writer) {
				printTree(w, s, tree, 0)
			})
		},
	}
}

func printTree(w *tabwriter.Writer, s *process.Snapshot, node *process.ProcessTreeNode, depth int) {
	fmt.Fprintf(w, "%s%d\t%s\n", strings.Repeat("  ", depth), node.PID, s.Name(node.PID))
	for _, child := range node.Children {
		printTree(w, s, child, depth+1)
	}
}

func newFindCommand(a *app) *cobra.Command {
	var pattern bool
	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Find processes by image name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			find := a.client.FindByName
			if pattern {
				find = a.client.FindByNamePattern
			}
			pids, err := find(args[0])
			if err != nil {
				return err
			}
			if len(pids) == 0 {
				return fmt.Errorf("no process named %q", args[0])
			}
			return a.emit(pids, func(w *tabwriter.Writer) {
				for _, pid := range pids {
					fmt.Fprintln(w, pid)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&pattern, "regexp", "e", false, "treat name as a regular expression")
	return cmd
}

func newKillCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <pid>...",
		Short: "Terminate processes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				pid, err := parsePID(arg)
				if err != nil {
					return err
				}
				if err := a.client.Kill(pid); err != nil {
					return err
				}
				if a.verbose {
					a.log.Infoln("Killed", pid)
				}
			}
			return nil
		},
	}
}

func newWaitCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <pid>",
		Short: "Wait for a process to exit and print its exit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = process.Infinite
			}
			res, err := a.client.Wait(pid, timeout)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				if res.Known {
					fmt.Fprintln(w, res.ExitCode)
				} else {
					fmt.Fprintln(w, "exited, code unknown")
				}
			})
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "give up after this long, 0 waits forever")
	return cmd
}

func newSuspendCommand(a *app, suspend bool) *cobra.Command {
	use, short := "resume <pid>", "Resume a suspended process"
	if suspend {
		use, short = "suspend <pid>", "Suspend every thread of a process"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return a.client.SuspendOrResume(pid, suspend)
		},
	}
}
