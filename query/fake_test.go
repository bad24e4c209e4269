package query

import (
	"errors"
	"time"

	"procscope/process"
	"procscope/process/memory_map"
)

var (
	errGone    = errors.New("gone")
	errRefused = errors.New("refused")
)

// fakeBackend is an in-memory process table. Every per-process method
// fails with errGone for unknown pids and errRefused for pids in denied.
type fakeBackend struct {
	procs    map[process.ProcessID]fakeProc
	order    []process.ProcessID
	denied   map[process.ProcessID]bool
	zombies  map[process.ProcessID]bool
	calls    int // backend calls of any kind
	liveness int // PidExists calls
	wait     func(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error)
	killed   []process.ProcessID
}

type fakeProc struct {
	parent    process.ProcessID
	name      string
	suspended bool
}

func newFake() *fakeBackend {
	f := &fakeBackend{
		procs:   map[process.ProcessID]fakeProc{},
		denied:  map[process.ProcessID]bool{},
		zombies: map[process.ProcessID]bool{},
	}
	f.add(1, 0, "init")
	f.add(10, 1, "sshd")
	f.add(11, 10, "bash")
	f.add(12, 11, "notepad.exe")
	f.add(20, 1, "cron")
	return f
}

func (f *fakeBackend) add(pid, parent process.ProcessID, name string) {
	f.procs[pid] = fakeProc{parent: parent, name: name}
	f.order = append(f.order, pid)
}

func (f *fakeBackend) remove(pid process.ProcessID) {
	delete(f.procs, pid)
	for i, p := range f.order {
		if p == pid {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeBackend) lookup(pid process.ProcessID) (fakeProc, error) {
	f.calls++
	if f.denied[pid] {
		return fakeProc{}, process.Wrap("open", errRefused)
	}
	p, ok := f.procs[pid]
	if !ok {
		return fakeProc{}, process.Wrap("open", errGone)
	}
	return p, nil
}

func (f *fakeBackend) Platform() string             { return "fake" }
func (f *fakeBackend) System() process.SystemConfig { return process.SystemConfig{PageSize: 4096} }

func (f *fakeBackend) Classify(err error) process.Verdict {
	switch {
	case errors.Is(err, errGone):
		return process.Verdict{Kind: process.KindNoSuchProcess}
	case errors.Is(err, errRefused):
		return process.Verdict{Kind: process.KindAccessDenied, Ambiguous: true}
	}
	return process.Verdict{Kind: process.KindFatal}
}

func (f *fakeBackend) IsZombie(pid process.ProcessID) bool { return f.zombies[pid] }

func (f *fakeBackend) Pids() ([]process.ProcessID, error) {
	f.calls++
	return append([]process.ProcessID(nil), f.order...), nil
}

func (f *fakeBackend) Snapshot() (*process.Snapshot, error) {
	f.calls++
	parents := map[process.ProcessID]process.ProcessID{}
	names := map[process.ProcessID]string{}
	for pid, p := range f.procs {
		parents[pid] = p.parent
		names[pid] = p.name
	}
	s := process.NewSnapshot(append([]process.ProcessID(nil), f.order...), parents)
	s.Names = names
	return s, nil
}

func (f *fakeBackend) PidExists(pid process.ProcessID) (bool, error) {
	f.liveness++
	_, ok := f.procs[pid]
	return ok, nil
}

// Kill treats a vanished target as killed, as the unix backends do for ESRCH
func (f *fakeBackend) Kill(pid process.ProcessID) error {
	if _, err := f.lookup(pid); err != nil {
		if errors.Is(err, errGone) {
			return nil
		}
		return err
	}
	f.killed = append(f.killed, pid)
	return nil
}

func (f *fakeBackend) Wait(pid process.ProcessID, timeout time.Duration) (process.WaitResult, error) {
	f.calls++
	if f.wait != nil {
		return f.wait(pid, timeout)
	}
	return process.Exited(0), nil
}

func (f *fakeBackend) SuspendOrResume(pid process.ProcessID, suspend bool) error {
	p, err := f.lookup(pid)
	if err != nil {
		return err
	}
	p.suspended = suspend
	f.procs[pid] = p
	return nil
}

func (f *fakeBackend) Name(pid process.ProcessID) (string, error) {
	p, err := f.lookup(pid)
	return p.name, err
}

func (f *fakeBackend) Exe(pid process.ProcessID) (string, error) {
	p, err := f.lookup(pid)
	return "/bin/" + p.name, err
}

func (f *fakeBackend) Cmdline(pid process.ProcessID) ([]string, error) {
	p, err := f.lookup(pid)
	return []string{p.name}, err
}

func (f *fakeBackend) Environ(pid process.ProcessID) ([]string, error) {
	_, err := f.lookup(pid)
	return []string{"HOME=/"}, err
}

func (f *fakeBackend) Cwd(pid process.ProcessID) (string, error) {
	_, err := f.lookup(pid)
	return "/", err
}

func (f *fakeBackend) Username(pid process.ProcessID) (process.Username, error) {
	_, err := f.lookup(pid)
	return process.Username{Name: "root"}, err
}

func (f *fakeBackend) Times(pid process.ProcessID) (process.Times, error) {
	_, err := f.lookup(pid)
	return process.Times{User: 1, System: 2, Create: 3}, err
}

func (f *fakeBackend) MemoryInfo(pid process.ProcessID) (process.MemoryInfo, error) {
	_, err := f.lookup(pid)
	return process.MemoryInfo{WorkingSet: 4096}, err
}

func (f *fakeBackend) UniqueSetSize(pid process.ProcessID) (uint64, error) {
	_, err := f.lookup(pid)
	return 8192, err
}

func (f *fakeBackend) IOCounters(pid process.ProcessID) (process.IOCounters, error) {
	_, err := f.lookup(pid)
	return process.IOCounters{ReadCount: 1}, err
}

func (f *fakeBackend) OpenFiles(pid process.ProcessID) ([]process.OpenFile, error) {
	_, err := f.lookup(pid)
	return []process.OpenFile{{Path: "/tmp/x", FD: 3}}, err
}

func (f *fakeBackend) MemoryMaps(pid process.ProcessID) ([]memory_map.MemoryRegion, error) {
	_, err := f.lookup(pid)
	return []memory_map.MemoryRegion{{Address: 0x1000, Size: 0x1000, Protection: memory_map.ProtRead}}, err
}

func (f *fakeBackend) NumHandles(pid process.ProcessID) (uint32, error) {
	_, err := f.lookup(pid)
	return 4, err
}

func (f *fakeBackend) Threads(pid process.ProcessID) ([]process.Thread, error) {
	_, err := f.lookup(pid)
	return []process.Thread{{ID: uint32(pid)}}, err
}

func (f *fakeBackend) ThreadStates(pid process.ProcessID) ([]process.ThreadState, error) {
	p, err := f.lookup(pid)
	return []process.ThreadState{{ID: uint32(pid), Suspended: p.suspended}}, err
}

func (f *fakeBackend) Priority(pid process.ProcessID) (int, error) {
	_, err := f.lookup(pid)
	return 0, err
}

func (f *fakeBackend) SetPriority(pid process.ProcessID, priority int) error {
	_, err := f.lookup(pid)
	return err
}

func (f *fakeBackend) IOPriority(pid process.ProcessID) (int, error) {
	_, err := f.lookup(pid)
	return 0, err
}

func (f *fakeBackend) SetIOPriority(pid process.ProcessID, priority int) error {
	_, err := f.lookup(pid)
	return err
}

func (f *fakeBackend) CPUAffinity(pid process.ProcessID) (uint64, error) {
	_, err := f.lookup(pid)
	return 1, err
}

func (f *fakeBackend) SetCPUAffinity(pid process.ProcessID, mask uint64) error {
	_, err := f.lookup(pid)
	return err
}
