package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"procscope/process"
	"procscope/query"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
)

// exit codes a script can branch on
const (
	exitFailure = 1
	exitNoSuch  = 3
	exitDenied  = 4
	exitTimeout = 124
)

type app struct {
	client  *query.Client
	log     *logger.Logger
	out     io.Writer
	json    bool
	verbose bool
}

func main() {
	a := &app{
		out: os.Stdout,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "procscope")),
	}

	root := &cobra.Command{
		Use:   "procscope",
		Short: "Inspect running processes",
		Long: `procscope queries the process table and per-process telemetry of the
local machine: identity, cpu and memory counters, open files, threads,
scheduling, and lifecycle control. Failures are reported as one of a small
set of kinds (no such process, access denied, zombie, timeout, unsupported).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := query.New(query.WithLogger(a.log))
			if err != nil {
				return err
			}
			a.client = c
			if a.verbose {
				a.log.Infoln("Using", c.Backend().Platform(), "backend")
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.json, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "report native call details and per-field failures")

	root.AddCommand(
		newPidsCommand(a),
		newPpidsCommand(a),
		newTreeCommand(a),
		newFindCommand(a),
		newInfoCommand(a),
		newKillCommand(a),
		newWaitCommand(a),
		newSuspendCommand(a, true),
		newSuspendCommand(a, false),
		newPeekCommand(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "procscope:", a.describe(err))
		os.Exit(exitCode(err))
	}
}

// describe renders err, adding the native call and code in verbose mode
func (a *app) describe(err error) string {
	var perr *process.Error
	if !a.verbose || !errors.As(err, &perr) {
		return err.Error()
	}
	msg := err.Error()
	if perr.Syscall != "" || perr.Code != 0 {
		msg += fmt.Sprintf(" [kind=%s syscall=%q code=%#x]", perr.Kind, perr.Syscall, perr.Code)
	}
	return msg
}

func exitCode(err error) int {
	kind, _ := process.KindOf(err)
	switch kind {
	case process.KindNoSuchProcess, process.KindZombieProcess:
		return exitNoSuch
	case process.KindAccessDenied:
		return exitDenied
	case process.KindTimeout:
		return exitTimeout
	default:
		return exitFailure
	}
}

// emit prints v as JSON, or calls text with a tabwriter
func (a *app) emit(v any, text func(w *tabwriter.Writer)) error {
	if a.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	text(w)
	return w.Flush()
}

func parsePID(s string) (process.ProcessID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return process.ProcessID(v), nil
}

// parseAddress accepts hex with or without a 0x prefix
func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return process.ProcessMemoryAddress(v), nil
}
