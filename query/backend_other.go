//go:build !linux && !windows && !darwin

package query

import (
	"errors"
	"runtime"

	"procscope/process"
)

func newBackend() (process.Backend, error) {
	return nil, errors.New("no process backend for " + runtime.GOOS)
}
