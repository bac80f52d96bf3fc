package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Process is a handle on one kernel process: a PID paired with the raw
// creation token captured when the handle was built. The pair is
// immutable; if the kernel recycles the PID for a new process, this
// handle goes stale and its guard-checked methods fail with
// NoSuchProcessError rather than touch the impostor.
//
// A handle is not designed for concurrent use by multiple goroutines;
// confine it to one goroutine or synchronize externally.
type Process struct {
	pid        int32
	createTime float64
	backend    Backend

	mu         sync.Mutex
	dead       bool
	exitStatus *int
	cache      map[RawKind]any

	// reapMu serializes blocking reaps the way mu serializes
	// non-blocking ones; holding mu across a blocking wait4 would stall
	// every other accessor on the handle.
	reapMu sync.Mutex
}

// NewProcess builds a handle for pid, validating that the PID currently
// resolves and capturing its creation token. Fails with
// NoSuchProcessError if it does not.
func NewProcess(pid int32) (*Process, error) {
	return newProcessWithBackend(activeBackend, pid)
}

// Self returns a handle on the calling process.
func Self() (*Process, error) {
	return NewProcess(int32(os.Getpid()))
}

func newProcessWithBackend(b Backend, pid int32) (*Process, error) {
	if pid < 0 {
		return nil, &NoSuchProcessError{Pid: pid}
	}

	ctime, err := b.PidCreateTime(pid)
	if err != nil {
		return nil, translateError(pid, err)
	}

	return &Process{pid: pid, createTime: ctime, backend: b}, nil
}

// newEnumeratedProcess builds a handle from a (pid, token) pair captured
// during enumeration, skipping the extra creation-time fetch.
func newEnumeratedProcess(b Backend, pid int32, ctime float64) *Process {
	return &Process{pid: pid, createTime: ctime, backend: b}
}

// Pid returns the process ID. Valid for zombies.
func (p *Process) Pid() int32 {
	return p.pid
}

// CreateTime returns the process creation time as wall-clock seconds
// since the Unix epoch.
func (p *Process) CreateTime() float64 {
	return p.backend.TranslateCreateTime(p.createTime)
}

// Equal reports whether other refers to the same kernel process: same PID
// and same creation token.
func (p *Process) Equal(other *Process) bool {
	return other != nil && p.pid == other.pid && p.createTime == other.createTime
}

func (p *Process) String() string {
	return fmt.Sprintf("Process(pid=%d)", p.pid)
}

// IsRunning reports whether the handle still names a live kernel process.
// It re-fetches the live creation token and compares it with the stored
// one; a fetch failure counts as not running. Once a handle has been seen
// dead it stays dead, even if the PID is later reused.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunningLocked()
}

func (p *Process) isRunningLocked() bool {
	if p.dead {
		return false
	}

	ctime, err := p.backend.PidCreateTime(p.pid)
	if err != nil || ctime != p.createTime {
		p.dead = true
	}

	return !p.dead
}

// checkRunning is the reuse guard: every mutator and every
// identity-traversal accessor calls it immediately before the kernel
// call. It narrows the reuse race to the window between this check and
// the kernel action; it does not eliminate it.
func (p *Process) checkRunning() error {
	if !p.IsRunning() {
		return &NoSuchProcessError{Pid: p.pid}
	}
	return nil
}

// ExitStatus returns the exit status recorded by a previous Wait, if any.
// Only child processes ever yield a status; a negative value means the
// child was terminated by that signal number.
func (p *Process) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitStatus == nil {
		return 0, false
	}
	return *p.exitStatus, true
}

// Ppid returns the parent process ID. Valid for zombies.
func (p *Process) Ppid() (int32, error) {
	v, err := p.backend.ProcPpid(p)
	return v, translateError(p.pid, err)
}

// Parent returns a handle on the current parent process, or nil if the
// process has no parent. Guard-checked: fails with NoSuchProcessError if
// this handle is stale, so a reused PID can never graft onto the new
// process's ancestry.
func (p *Process) Parent() (*Process, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}
	return p.parentUnchecked()
}

func (p *Process) parentUnchecked() (*Process, error) {
	ppid, err := p.Ppid()
	if err != nil {
		return nil, err
	}
	if ppid <= 0 {
		return nil, nil
	}

	parent, err := newProcessWithBackend(p.backend, ppid)
	if IsNoSuchProcess(err) {
		return nil, nil
	}
	return parent, err
}

// Parents returns the chain of ancestors, nearest first. Guard-checked.
func (p *Process) Parents() ([]*Process, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}

	var parents []*Process
	cur := p
	for {
		parent, err := cur.parentUnchecked()
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return parents, nil
		}
		parents = append(parents, parent)
		cur = parent
	}
}

// Children returns the processes whose parent is this process. With
// recursive set, grandchildren and deeper descendants are included.
// Guard-checked.
func (p *Process) Children(recursive bool) ([]*Process, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}

	procs, err := processesWithBackend(p.backend)
	if err != nil {
		return nil, err
	}

	if !recursive {
		var children []*Process
		for _, proc := range procs {
			ppid, err := proc.Ppid()
			if err != nil {
				if IsNoSuchProcess(err) {
					continue
				}
				return nil, err
			}
			if ppid == p.pid {
				children = append(children, proc)
			}
		}
		return children, nil
	}

	// Walk the parent relation transitively. Enumerated handles carry
	// tokens captured by the same kernel read, so parent identity is
	// checked by token, not bare PID.
	searchParents := map[int32]*Process{p.pid: p}
	seen := map[int32]bool{}
	var children []*Process

	for len(searchParents) > 0 {
		next := map[int32]*Process{}
		for _, proc := range procs {
			parent, err := proc.parentUnchecked()
			if err != nil || parent == nil {
				continue
			}
			want, ok := searchParents[parent.pid]
			if !ok || !want.Equal(parent) || seen[proc.pid] {
				continue
			}
			children = append(children, proc)
			seen[proc.pid] = true
			next[proc.pid] = proc
		}
		searchParents = next
	}

	return children, nil
}

// Name returns the process name (the kernel's comm field).
func (p *Process) Name() (string, error) {
	v, err := p.backend.ProcName(p)
	return v, translateError(p.pid, err)
}

// Status returns the kernel scheduling state.
func (p *Process) Status() (Status, error) {
	v, err := p.backend.ProcStatus(p)
	return v, translateError(p.pid, err)
}

// Cmdline returns the process argument vector. Fails with
// ZombieProcessError where the platform stores no arguments for zombies.
func (p *Process) Cmdline() ([]string, error) {
	cb, ok := p.backend.(cmdlineBackend)
	if !ok {
		return nil, ErrNotSupported
	}
	v, err := cb.ProcCmdline(p)
	return v, translateError(p.pid, err)
}

// Exe returns the path to the process executable. On platforms without an
// executable-path primitive it falls back to resolving Cmdline()[0]
// against the target's PATH.
func (p *Process) Exe() (string, error) {
	if eb, ok := p.backend.(exeBackend); ok {
		v, err := eb.ProcExe(p)
		return v, translateError(p.pid, err)
	}

	cmdline, err := p.Cmdline()
	if err != nil || len(cmdline) == 0 {
		return "", err
	}

	if strings.Contains(cmdline[0], "/") {
		return cmdline[0], nil
	}

	pathEnv := os.Getenv("PATH")
	if env, err := p.Environ(); err == nil {
		if v, ok := env["PATH"]; ok {
			pathEnv = v
		}
	}

	return searchPath(cmdline[0], pathEnv), nil
}

func searchPath(file, pathEnv string) string {
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, file)
		if info, err := os.Stat(candidate); err == nil &&
			info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return candidate
		}
	}
	return ""
}

// Cwd returns the process working directory.
func (p *Process) Cwd() (string, error) {
	cb, ok := p.backend.(cwdBackend)
	if !ok {
		return "", ErrNotSupported
	}
	v, err := cb.ProcCwd(p)
	return v, translateError(p.pid, err)
}

// Environ returns the process environment as captured at the last exec.
func (p *Process) Environ() (map[string]string, error) {
	eb, ok := p.backend.(environBackend)
	if !ok {
		return nil, ErrNotSupported
	}
	v, err := eb.ProcEnviron(p)
	return v, translateError(p.pid, err)
}

// Pgid returns the process group ID.
func (p *Process) Pgid() (int32, error) {
	v, err := p.backend.ProcPgid(p)
	return v, translateError(p.pid, err)
}

// Sid returns the session ID.
func (p *Process) Sid() (int32, error) {
	v, err := p.backend.ProcSid(p)
	return v, translateError(p.pid, err)
}

// Uids returns the real, effective and saved user IDs.
func (p *Process) Uids() (Uids, error) {
	v, err := p.backend.ProcUids(p)
	return v, translateError(p.pid, err)
}

// Gids returns the real, effective and saved group IDs.
func (p *Process) Gids() (Gids, error) {
	v, err := p.backend.ProcGids(p)
	return v, translateError(p.pid, err)
}

// Groups returns the supplementary group list.
func (p *Process) Groups() ([]uint32, error) {
	v, err := p.backend.ProcGroups(p)
	return v, translateError(p.pid, err)
}

// Username resolves the real UID to a name, falling back to the numeric
// string when no passwd entry exists.
func (p *Process) Username() (string, error) {
	uids, err := p.Uids()
	if err != nil {
		return "", err
	}
	return lookupUsername(uids.Real), nil
}

// Umask returns the process umask.
func (p *Process) Umask() (uint32, error) {
	ub, ok := p.backend.(umaskBackend)
	if !ok {
		return 0, ErrNotSupported
	}
	v, err := ub.ProcUmask(p)
	return v, translateError(p.pid, err)
}

// SignalMasks returns the per-process signal dispositions.
func (p *Process) SignalMasks() (SignalMasks, error) {
	sb, ok := p.backend.(sigmasksBackend)
	if !ok {
		return SignalMasks{}, ErrNotSupported
	}
	v, err := sb.ProcSignalMasks(p)
	return v, translateError(p.pid, err)
}

// CPUTimes returns accumulated CPU time in seconds.
func (p *Process) CPUTimes() (CPUTimes, error) {
	cb, ok := p.backend.(cpuTimesBackend)
	if !ok {
		return CPUTimes{}, ErrNotSupported
	}
	v, err := cb.ProcCPUTimes(p)
	return v, translateError(p.pid, err)
}

// MemoryInfo returns memory usage in bytes.
func (p *Process) MemoryInfo() (MemoryInfo, error) {
	mb, ok := p.backend.(memoryBackend)
	if !ok {
		return MemoryInfo{}, ErrNotSupported
	}
	v, err := mb.ProcMemoryInfo(p)
	return v, translateError(p.pid, err)
}

// NumThreads returns the thread count.
func (p *Process) NumThreads() (int32, error) {
	tb, ok := p.backend.(threadsBackend)
	if !ok {
		return 0, ErrNotSupported
	}
	v, err := tb.ProcNumThreads(p)
	return v, translateError(p.pid, err)
}

// Threads lists the process threads with their CPU times.
func (p *Process) Threads() ([]ThreadInfo, error) {
	tb, ok := p.backend.(threadListBackend)
	if !ok {
		return nil, ErrNotSupported
	}
	v, err := tb.ProcThreads(p)
	return v, translateError(p.pid, err)
}

// NumFDs returns the number of open file descriptors.
func (p *Process) NumFDs() (int32, error) {
	fb, ok := p.backend.(fdBackend)
	if !ok {
		return 0, ErrNotSupported
	}
	v, err := fb.ProcNumFDs(p)
	return v, translateError(p.pid, err)
}

// OpenFiles lists the regular files the process has open.
func (p *Process) OpenFiles() ([]OpenFile, error) {
	ob, ok := p.backend.(openFilesBackend)
	if !ok {
		return nil, ErrNotSupported
	}
	v, err := ob.ProcOpenFiles(p)
	return v, translateError(p.pid, err)
}

// Terminal returns the path of the controlling terminal, or "" if the
// process has none.
func (p *Process) Terminal() (string, error) {
	rdev, ok, err := p.backend.ProcTerminalDevice(p)
	if err != nil {
		return "", translateError(p.pid, err)
	}
	if !ok {
		return "", nil
	}
	return terminalPath(rdev), nil
}

// terminalPath scans /dev/pts and then /dev for a terminal device with
// the given device number.
func terminalPath(rdev uint64) string {
	if entries, err := os.ReadDir("/dev/pts"); err == nil {
		for _, entry := range entries {
			path := filepath.Join("/dev/pts", entry.Name())
			if devRdev(path) == rdev {
				return path
			}
		}
	}

	entries, err := os.ReadDir("/dev")
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "tty") || len(entry.Name()) <= 3 {
			continue
		}
		path := filepath.Join("/dev", entry.Name())
		if devRdev(path) == rdev {
			return path
		}
	}
	return ""
}

func devRdev(path string) uint64 {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0
	}
	return uint64(st.Rdev)
}

// Nice returns the process nice value.
func (p *Process) Nice() (int, error) {
	v, err := p.backend.ProcNice(p)
	return v, translateError(p.pid, err)
}

// SetNice sets the process nice value. Guard-checked mutator.
func (p *Process) SetNice(nice int) error {
	if p.pid == 0 {
		// Can't change the kernel's priority.
		return &AccessDeniedError{Pid: p.pid}
	}
	if err := p.checkRunning(); err != nil {
		return err
	}
	return translateError(p.pid, unix.Setpriority(unix.PRIO_PROCESS, int(p.pid), nice))
}

// Rlimit reads one resource limit pair. The result's Atomic field reports
// whether the backend captured both values in one kernel call.
func (p *Process) Rlimit(resource int) (Rlimit, error) {
	rb, ok := p.backend.(rlimitBackend)
	if !ok {
		return Rlimit{}, ErrNotSupported
	}
	v, err := rb.ProcRlimit(p, resource, nil)
	return v, translateError(p.pid, err)
}

// SetRlimit replaces one resource limit pair and returns the previous
// values. Guard-checked mutator.
func (p *Process) SetRlimit(resource int, limits Rlimit) (Rlimit, error) {
	rb, ok := p.backend.(rlimitBackend)
	if !ok {
		return Rlimit{}, ErrNotSupported
	}

	if limits.Hard != RlimInfinity && limits.Soft > limits.Hard {
		return Rlimit{}, fmt.Errorf("current limit %d exceeds maximum limit %d",
			limits.Soft, limits.Hard)
	}

	if err := p.checkRunning(); err != nil {
		return Rlimit{}, err
	}

	v, err := rb.ProcRlimit(p, resource, &limits)
	return v, translateError(p.pid, err)
}

// CPUAffinity returns the set of CPUs the process may run on.
func (p *Process) CPUAffinity() ([]int, error) {
	ab, ok := p.backend.(affinityBackend)
	if !ok {
		return nil, ErrNotSupported
	}
	v, err := ab.ProcCPUAffinity(p)
	return v, translateError(p.pid, err)
}

// SetCPUAffinity restricts the process to the given CPUs. Guard-checked
// mutator.
func (p *Process) SetCPUAffinity(cpus []int) error {
	ab, ok := p.backend.(affinityBackend)
	if !ok {
		return ErrNotSupported
	}
	if err := p.checkRunning(); err != nil {
		return err
	}
	return translateError(p.pid, ab.SetProcCPUAffinity(p, cpus))
}

// SendSignal delivers sig to the process. Guard-checked mutator: a stale
// handle fails with NoSuchProcessError instead of signalling whatever
// process now owns the PID.
func (p *Process) SendSignal(sig syscall.Signal) error {
	if p.pid == 0 {
		// Can't send signals to the kernel.
		return &AccessDeniedError{Pid: p.pid}
	}
	if err := p.checkRunning(); err != nil {
		return err
	}
	return translateError(p.pid, unix.Kill(int(p.pid), sig))
}

// Suspend stops the process with SIGSTOP.
func (p *Process) Suspend() error {
	return p.SendSignal(unix.SIGSTOP)
}

// Resume continues the process with SIGCONT.
func (p *Process) Resume() error {
	return p.SendSignal(unix.SIGCONT)
}

// Terminate asks the process to exit with SIGTERM.
func (p *Process) Terminate() error {
	return p.SendSignal(unix.SIGTERM)
}

// Kill forcibly ends the process with SIGKILL.
func (p *Process) Kill() error {
	return p.SendSignal(unix.SIGKILL)
}
