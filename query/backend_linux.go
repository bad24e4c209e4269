//go:build linux

package query

import (
	"os"

	"procscope/process"
	"procscope/process_linux"
)

// PROCSCOPE_PROC_ROOT points the backend at another proc mount, such as a
// host /proc bind mounted into a container
func newBackend() (process.Backend, error) {
	var opts []process_linux.Option
	if root := os.Getenv("PROCSCOPE_PROC_ROOT"); root != "" {
		opts = append(opts, process_linux.WithProcRoot(root))
	}
	return process_linux.New(opts...)
}
