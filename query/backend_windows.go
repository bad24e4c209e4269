//go:build windows

package query

import (
	"procscope/process"
	"procscope/process_windows"
)

func newBackend() (process.Backend, error) {
	return process_windows.New()
}
