//go:build freebsd

package proc

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"procview/proc/kinfo"
)

func newPlatformBackend() Backend {
	return &freebsdBackend{}
}

// freebsdBackend reads process state through the kern.proc sysctl tree.
// One kinfo_proc fetch answers most queries; the remaining per-PID nodes
// cover arguments, environment, paths, umask and resource limits.
type freebsdBackend struct{}

const (
	freebsdCtlKern        = 1
	freebsdKernProc       = 14
	freebsdKernProcRlimit = 37
)

func (b *freebsdBackend) Name() string { return "freebsd" }

func freebsdKinfoForPid(pid int32) (kinfo.FreeBSDProc, error) {
	buf, err := unix.SysctlRaw("kern.proc.pid", int(pid))
	if err != nil {
		return kinfo.FreeBSDProc{}, err
	}
	if len(buf) == 0 {
		return kinfo.FreeBSDProc{}, unix.ESRCH
	}
	return kinfo.DecodeFreeBSDProc(buf)
}

func (b *freebsdBackend) fetchKinfo(p *Process) (kinfo.FreeBSDProc, error) {
	return fetchCached(p, KindKinfo, func() (kinfo.FreeBSDProc, error) {
		return freebsdKinfoForPid(p.pid)
	})
}

func freebsdListKinfo() ([]kinfo.FreeBSDProc, error) {
	// kern.proc.proc lists processes once each, without their threads.
	buf, err := unix.SysctlRaw("kern.proc.proc")
	if err != nil {
		return nil, err
	}
	return kinfo.DecodeFreeBSDProcs(buf)
}

func (b *freebsdBackend) Pids() ([]int32, error) {
	procs, err := freebsdListKinfo()
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, k := range procs {
		pids = append(pids, k.Pid)
	}
	return pids, nil
}

func (b *freebsdBackend) PidCreateTime(pid int32) (float64, error) {
	k, err := freebsdKinfoForPid(pid)
	if err != nil {
		return 0, err
	}
	return k.Start, nil
}

func (b *freebsdBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	procs, err := freebsdListKinfo()
	if err != nil {
		return nil, err
	}
	entries := make([]PidEntry, 0, len(procs))
	for _, k := range procs {
		entries = append(entries, PidEntry{Pid: k.Pid, CreateTime: k.Start})
	}
	return entries, nil
}

// TranslateCreateTime is the identity: ki_start is already wall-clock
// seconds since the epoch.
func (b *freebsdBackend) TranslateCreateTime(raw float64) float64 { return raw }

var freebsdGroupTable = GroupTable{
	KindKinfo: {
		"name", "status", "ppid", "pgid", "sid", "terminal",
		"uids", "gids", "groups", "nice", "signal_masks",
		"cpu_times", "memory_info", "num_threads", "create_time",
	},
}

func (b *freebsdBackend) GroupTable() GroupTable { return freebsdGroupTable }

func (b *freebsdBackend) ProcName(p *Process) (string, error) {
	k, err := b.fetchKinfo(p)
	return k.Comm, err
}

func (b *freebsdBackend) ProcStatus(p *Process) (Status, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return "", err
	}
	return Status(kinfo.FreeBSDStatusName(k.State)), nil
}

func (b *freebsdBackend) isZombie(p *Process) bool {
	k, err := b.fetchKinfo(p)
	return err == nil && k.State == 5
}

func (b *freebsdBackend) ProcPpid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Ppid, err
}

func (b *freebsdBackend) ProcPgid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Pgid, err
}

func (b *freebsdBackend) ProcSid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Sid, err
}

func (b *freebsdBackend) ProcUids(p *Process) (Uids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Uids{}, err
	}
	return Uids{Real: k.RUID, Effective: k.EUID, Saved: k.SvUID}, nil
}

func (b *freebsdBackend) ProcGids(p *Process) (Gids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Gids{}, err
	}
	return Gids{Real: k.RGID, Effective: k.EGID, Saved: k.SvGID}, nil
}

func (b *freebsdBackend) ProcGroups(p *Process) ([]uint32, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return nil, err
	}
	if !k.GroupsOverflowed {
		return k.Groups, nil
	}

	// The record's inline list was truncated; the dedicated sysctl
	// returns the full set.
	buf, err := unix.SysctlRaw("kern.proc.groups", int(p.pid))
	if err != nil {
		return nil, err
	}
	groups := make([]uint32, 0, len(buf)/4)
	for i := 0; i+4 <= len(buf); i += 4 {
		groups = append(groups, binary.LittleEndian.Uint32(buf[i:]))
	}
	return groups, nil
}

func (b *freebsdBackend) ProcNice(p *Process) (int, error) {
	if p.pid == 0 {
		k, err := b.fetchKinfo(p)
		return int(k.Nice), err
	}
	return unix.Getpriority(unix.PRIO_PROCESS, int(p.pid))
}

func (b *freebsdBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return 0, false, err
	}
	return k.TTYDev, k.HasTTY, nil
}

func (b *freebsdBackend) ProcCmdline(p *Process) ([]string, error) {
	buf, err := unix.SysctlRaw("kern.proc.args", int(p.pid))
	if err != nil {
		return nil, err
	}
	args := kinfo.ParseArgs(buf)
	if len(args) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return args, nil
}

func (b *freebsdBackend) ProcEnviron(p *Process) (map[string]string, error) {
	buf, err := unix.SysctlRaw("kern.proc.env", int(p.pid))
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return kinfo.ParseEnv(buf), nil
}

func (b *freebsdBackend) ProcExe(p *Process) (string, error) {
	buf, err := unix.SysctlRaw("kern.proc.pathname", int(p.pid))
	if err != nil {
		return "", err
	}
	return trimNul(buf), nil
}

func (b *freebsdBackend) ProcCwd(p *Process) (string, error) {
	buf, err := unix.SysctlRaw("kern.proc.cwd", int(p.pid))
	if err != nil {
		return "", err
	}
	return kinfo.DecodeFreeBSDFilePath(buf)
}

func (b *freebsdBackend) ProcUmask(p *Process) (uint32, error) {
	if p.pid == 0 {
		// PID 0 addresses the calling process for this sysctl.
		return 0, &AccessDeniedError{Pid: p.pid}
	}
	buf, err := unix.SysctlRaw("kern.proc.umask", int(p.pid))
	if err != nil {
		return 0, err
	}
	if len(buf) < 2 {
		return 0, unix.EINVAL
	}
	return uint32(binary.LittleEndian.Uint16(buf)), nil
}

func (b *freebsdBackend) ProcSignalMasks(p *Process) (SignalMasks, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return SignalMasks{}, err
	}
	return SignalMasks{
		Pending: expandSigBitmask(k.SigPending),
		Blocked: expandSigBitmask(k.SigBlocked),
		Ignored: expandSigBitmask(k.SigIgnored),
		Caught:  expandSigBitmask(k.SigCaught),
	}, nil
}

func (b *freebsdBackend) ProcCPUTimes(p *Process) (CPUTimes, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return CPUTimes{}, err
	}
	return CPUTimes{
		User:           k.UserTime,
		System:         k.SystemTime,
		ChildrenUser:   k.ChildUserTime,
		ChildrenSystem: k.ChildSystemTime,
	}, nil
}

func (b *freebsdBackend) ProcMemoryInfo(p *Process) (MemoryInfo, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return MemoryInfo{}, err
	}
	return MemoryInfo{
		RSS:   pagesToBytes(k.RSSPages),
		VMS:   k.VirtualSize,
		Text:  pagesToBytes(k.TextPages),
		Data:  pagesToBytes(k.DataPages),
		Stack: pagesToBytes(k.StackPages),
	}, nil
}

func (b *freebsdBackend) ProcNumThreads(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.NumThreads, err
}

func (b *freebsdBackend) ProcRlimit(p *Process, resource int, set *Rlimit) (Rlimit, error) {
	mib := []int32{freebsdCtlKern, freebsdKernProc, freebsdKernProcRlimit, p.pid, int32(resource)}

	var newBuf []byte
	if set != nil {
		newBuf = make([]byte, 16)
		binary.LittleEndian.PutUint64(newBuf[0:], toBSDRlim(set.Soft))
		binary.LittleEndian.PutUint64(newBuf[8:], toBSDRlim(set.Hard))
	}

	old := make([]byte, 16)
	if _, err := sysctlMib(mib, old, newBuf); err != nil {
		return Rlimit{}, err
	}
	return Rlimit{
		Soft:   fromBSDRlim(binary.LittleEndian.Uint64(old[0:])),
		Hard:   fromBSDRlim(binary.LittleEndian.Uint64(old[8:])),
		Atomic: true,
	}, nil
}

func (b *freebsdBackend) RlimitAtomic() bool { return true }
