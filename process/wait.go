package process

import "time"

// ExitCodeUnknown is reported when a process has exited but its exit code
// cannot be collected (it is not our child, or it was gone before the wait).
const ExitCodeUnknown = -1

// Infinite is the wait timeout meaning "block until the process exits"
const Infinite time.Duration = -1

// WaitEvent is the backend-neutral result of a native wait primitive
type WaitEvent uint8

const (
	WaitExited WaitEvent = iota
	WaitTimedOut
	WaitAbandoned
	WaitFailed
)

// WaitResult is the outcome of a successful wait
type WaitResult struct {
	ExitCode int  `json:"exit_code"`
	Known    bool `json:"known"` // false when ExitCode is ExitCodeUnknown
}

// Exited builds a WaitResult carrying a collected exit code
func Exited(code int) WaitResult {
	return WaitResult{ExitCode: code, Known: true}
}

// ExitedUnknown builds a WaitResult for a process whose code is unavailable
func ExitedUnknown() WaitResult {
	return WaitResult{ExitCode: ExitCodeUnknown}
}

// WaitOutcome maps a native wait event to the taxonomy. Timeout and
// abandoned stay distinct; WaitFailed returns err classified as fatal so the
// normalizer can still apply the liveness rule.
func WaitOutcome(pid ProcessID, syscall string, ev WaitEvent, err error) error {
	switch ev {
	case WaitExited:
		return nil
	case WaitTimedOut:
		return NewError(KindTimeout, pid, syscall, nil)
	case WaitAbandoned:
		return NewError(KindWaitAbandoned, pid, syscall, nil)
	default:
		if err == nil {
			return Fatal(pid, syscall, nil)
		}
		return Wrap(syscall, err)
	}
}
