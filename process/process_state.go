package process

// ProcessState is the one-letter scheduler state reported by /proc/<pid>/stat
type ProcessState string

const (
	ProcessRunning    ProcessState = "R" // Running
	ProcessSleeping   ProcessState = "S" // Sleeping in an interruptible wait
	ProcessWaiting    ProcessState = "D" // Waiting in uninterruptible disk sleep
	ProcessZombie     ProcessState = "Z" // Zombie
	ProcessStopped    ProcessState = "T" // Stopped (on a signal)
	ProcessTracingStp ProcessState = "t" // Tracing stop
	ProcessDead       ProcessState = "X" // Dead
	ProcessIdle       ProcessState = "I" // Idle kernel thread
)

// IsZombie reports whether the process has exited but not been reaped
func (s ProcessState) IsZombie() bool {
	return s == ProcessZombie
}

// IsStopped reports whether the task is stopped by a signal or a tracer
func (s ProcessState) IsStopped() bool {
	return s == ProcessStopped || s == ProcessTracingStp
}

// AllThreadsSuspended reports whether every thread is in a suspended wait.
// A process with no visible threads counts as suspended.
func AllThreadsSuspended(states []ThreadState) bool {
	for _, st := range states {
		if !st.Suspended {
			return false
		}
	}
	return true
}
