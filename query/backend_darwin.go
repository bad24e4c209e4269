//go:build darwin

package query

import (
	"procscope/process"
	"procscope/process_darwin"
)

func newBackend() (process.Backend, error) {
	return process_darwin.New()
}
