// Package process provides the backend-agnostic core of the acquisition layer:
// identifiers, result types, the error taxonomy and its normalizer, process
// snapshots and the capability interface every platform backend implements.
package process

import "errors"

// The per-OS backends live in process_linux, process_windows and
// process_darwin. Everything in this package builds on every platform.

var (
	// ErrBufferCeiling is wrapped by a Fatal error when a variable-length query
	// asks for more memory than its growth ceiling allows.
	ErrBufferCeiling = errors.New("process: buffer growth ceiling exceeded")

	// ErrShortRead is returned when a remote memory read returns fewer bytes than requested.
	ErrShortRead = errors.New("process: short remote read")

	ErrInvalidPointer = errors.New("process: invalid pointer read")
)
