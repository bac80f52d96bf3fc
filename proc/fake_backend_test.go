package proc

import (
	"sync"

	"golang.org/x/sys/unix"
)

// fakeState is the kernel-side truth the fake backend serves for one PID.
type fakeState struct {
	ctime   float64
	name    string
	status  Status
	ppid    int32
	nice    int
	cmdline []string
}

// fakeBackend is a controllable in-memory Backend. Tests mutate its
// process table to simulate exits and PID reuse, and read the per-PID
// fetch counters to observe oneshot cache behavior.
type fakeBackend struct {
	mu      sync.Mutex
	procs   map[int32]fakeState
	fetches map[int32]int
	// failNext holds a one-shot error injected into the next record fetch
	// for a PID.
	failNext map[int32]error
	// listErr fails every PidCreateTimes call when set.
	listErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		procs:    make(map[int32]fakeState),
		fetches:  make(map[int32]int),
		failNext: make(map[int32]error),
	}
}

func (b *fakeBackend) set(pid int32, st fakeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.procs[pid] = st
}

func (b *fakeBackend) remove(pid int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.procs, pid)
}

func (b *fakeBackend) failNextFetch(pid int32, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[pid] = err
}

func (b *fakeBackend) fetchCount(pid int32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches[pid]
}

func (b *fakeBackend) fetch(pid int32) (fakeState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fetches[pid]++
	if err, ok := b.failNext[pid]; ok {
		delete(b.failNext, pid)
		return fakeState{}, err
	}
	st, ok := b.procs[pid]
	if !ok {
		return fakeState{}, unix.ESRCH
	}
	return st, nil
}

func (b *fakeBackend) fetchState(p *Process) (fakeState, error) {
	return fetchCached(p, KindKinfo, func() (fakeState, error) {
		return b.fetch(p.pid)
	})
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Pids() ([]int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pids := make([]int32, 0, len(b.procs))
	for pid := range b.procs {
		pids = append(pids, pid)
	}
	return pids, nil
}

func (b *fakeBackend) PidCreateTime(pid int32) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.procs[pid]
	if !ok {
		return 0, unix.ESRCH
	}
	return st.ctime, nil
}

func (b *fakeBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	entries := make([]PidEntry, 0, len(b.procs))
	for pid, st := range b.procs {
		entries = append(entries, PidEntry{Pid: pid, CreateTime: st.ctime})
	}
	return entries, nil
}

func (b *fakeBackend) TranslateCreateTime(raw float64) float64 { return raw }

var fakeGroupTable = GroupTable{
	KindKinfo: {"name", "status", "ppid", "nice", "create_time"},
}

func (b *fakeBackend) GroupTable() GroupTable { return fakeGroupTable }

func (b *fakeBackend) ProcName(p *Process) (string, error) {
	st, err := b.fetchState(p)
	return st.name, err
}

func (b *fakeBackend) ProcStatus(p *Process) (Status, error) {
	st, err := b.fetchState(p)
	return st.status, err
}

func (b *fakeBackend) ProcPpid(p *Process) (int32, error) {
	st, err := b.fetchState(p)
	return st.ppid, err
}

func (b *fakeBackend) ProcPgid(p *Process) (int32, error) {
	st, err := b.fetchState(p)
	return st.ppid, err
}

func (b *fakeBackend) ProcSid(p *Process) (int32, error) {
	st, err := b.fetchState(p)
	return st.ppid, err
}

func (b *fakeBackend) ProcUids(p *Process) (Uids, error) {
	_, err := b.fetchState(p)
	return Uids{Real: 1000, Effective: 1000, Saved: 1000}, err
}

func (b *fakeBackend) ProcGids(p *Process) (Gids, error) {
	_, err := b.fetchState(p)
	return Gids{Real: 1000, Effective: 1000, Saved: 1000}, err
}

func (b *fakeBackend) ProcGroups(p *Process) ([]uint32, error) {
	_, err := b.fetchState(p)
	return []uint32{1000}, err
}

func (b *fakeBackend) ProcNice(p *Process) (int, error) {
	st, err := b.fetchState(p)
	return st.nice, err
}

func (b *fakeBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	_, err := b.fetchState(p)
	return 0, false, err
}

func (b *fakeBackend) ProcCmdline(p *Process) ([]string, error) {
	st, err := b.fetchState(p)
	return st.cmdline, err
}

// fakeRlimitBackend extends fakeBackend with an in-memory resource limit
// table whose reported atomicity is configurable.
type fakeRlimitBackend struct {
	*fakeBackend
	limits map[int]Rlimit
	atomic bool
}

func (b *fakeRlimitBackend) ProcRlimit(p *Process, resource int, set *Rlimit) (Rlimit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.procs[p.pid]; !ok {
		return Rlimit{}, unix.ESRCH
	}
	old, ok := b.limits[resource]
	if !ok {
		return Rlimit{}, unix.EINVAL
	}
	if set != nil {
		b.limits[resource] = Rlimit{Soft: set.Soft, Hard: set.Hard}
	}
	old.Atomic = b.atomic
	return old, nil
}

func (b *fakeRlimitBackend) RlimitAtomic() bool { return b.atomic }
