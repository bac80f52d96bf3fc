package proc

// RawKind names one kind of raw per-process record a backend can fetch in
// a single kernel read. The oneshot cache is keyed by RawKind.
type RawKind int

const (
	// KindStat is the Linux /proc/<pid>/stat field vector.
	KindStat RawKind = iota
	// KindStatus is the Linux /proc/<pid>/status text.
	KindStatus
	// KindKinfo is the kinfo_proc (or kinfo_proc2) record on the
	// sysctl-based platforms.
	KindKinfo
)

func (k RawKind) String() string {
	switch k {
	case KindStat:
		return "stat"
	case KindStatus:
		return "status"
	case KindKinfo:
		return "kinfo"
	}
	return "unknown"
}

// GroupTable is static per-backend metadata describing which logical
// fields one consolidated fetch of each record kind yields. Accessors for
// fields listed under the same kind share a single underlying read inside
// an open oneshot scope.
type GroupTable map[RawKind][]string

// Backend is the per-OS capability set. Exactly one implementation is
// constructed at startup and never replaced; all identity and record
// fetching logic is written against this interface.
//
// Methods that take a *Process consult the handle's oneshot cache through
// fetchCached, so repeated calls inside a scope share one kernel read.
// Methods must fail with raw OS errors or taxonomy errors; translation to
// the public taxonomy happens at the accessor boundary.
type Backend interface {
	Name() string

	// Pids lists the PIDs currently known to the kernel.
	Pids() ([]int32, error)

	// PidCreateTime returns the raw creation token for pid. The token is
	// backend-defined (seconds since boot on Linux, an absolute start
	// timeval on the BSDs and macOS) and is only guaranteed stable and
	// comparable for the same kernel process.
	PidCreateTime(pid int32) (float64, error)

	// PidCreateTimes captures (pid, token) pairs for all processes, from
	// one kernel read where the platform allows it. With skipPermError
	// set, processes whose token cannot be read for permission reasons
	// are silently dropped instead of failing the enumeration.
	PidCreateTimes(skipPermError bool) ([]PidEntry, error)

	// TranslateCreateTime converts a raw creation token to wall-clock
	// seconds since the Unix epoch.
	TranslateCreateTime(raw float64) float64

	// GroupTable returns the backend's static fetch-grouping metadata.
	GroupTable() GroupTable

	ProcName(p *Process) (string, error)
	ProcStatus(p *Process) (Status, error)
	ProcPpid(p *Process) (int32, error)
	ProcPgid(p *Process) (int32, error)
	ProcSid(p *Process) (int32, error)
	ProcUids(p *Process) (Uids, error)
	ProcGids(p *Process) (Gids, error)
	ProcGroups(p *Process) ([]uint32, error)
	ProcNice(p *Process) (int, error)

	// ProcTerminalDevice returns the controlling terminal's device
	// number; ok is false when the process has no controlling terminal.
	ProcTerminalDevice(p *Process) (rdev uint64, ok bool, err error)
}

// Optional capabilities. A backend that does not implement one of these
// is a platform where the kernel offers no primitive for it; the public
// accessor then returns ErrNotSupported.

type cmdlineBackend interface {
	ProcCmdline(p *Process) ([]string, error)
}

type environBackend interface {
	ProcEnviron(p *Process) (map[string]string, error)
}

type exeBackend interface {
	ProcExe(p *Process) (string, error)
}

type cwdBackend interface {
	ProcCwd(p *Process) (string, error)
}

type umaskBackend interface {
	ProcUmask(p *Process) (uint32, error)
}

type sigmasksBackend interface {
	ProcSignalMasks(p *Process) (SignalMasks, error)
}

type cpuTimesBackend interface {
	ProcCPUTimes(p *Process) (CPUTimes, error)
}

type memoryBackend interface {
	ProcMemoryInfo(p *Process) (MemoryInfo, error)
}

type threadsBackend interface {
	ProcNumThreads(p *Process) (int32, error)
}

type threadListBackend interface {
	ProcThreads(p *Process) ([]ThreadInfo, error)
}

type fdBackend interface {
	ProcNumFDs(p *Process) (int32, error)
}

type openFilesBackend interface {
	ProcOpenFiles(p *Process) ([]OpenFile, error)
}

type rlimitBackend interface {
	// ProcRlimit reads, and when set is non-nil also replaces, one
	// resource limit pair, returning the previous values.
	ProcRlimit(p *Process, resource int, set *Rlimit) (Rlimit, error)

	// RlimitAtomic reports whether the backend captures soft and hard
	// limits in one kernel call.
	RlimitAtomic() bool
}

type affinityBackend interface {
	ProcCPUAffinity(p *Process) ([]int, error)
	SetProcCPUAffinity(p *Process, cpus []int) error
}
