//go:build netbsd

package proc

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"procview/proc/kinfo"
)

func newPlatformBackend() Backend {
	return &netbsdBackend{}
}

// netbsdBackend reads process state through the kern.proc2 sysctl.
// Executable path and working directory come from kern.proc_args, which
// on NetBSD also serves PATHNAME and CWD requests.
type netbsdBackend struct{}

const (
	netbsdCtlKern          = 1
	netbsdKernProc2        = 47
	netbsdKernProcArgs     = 48
	netbsdKernProcAll      = 0
	netbsdKernProcPid      = 1
	netbsdKernProcArgv     = 1
	netbsdKernProcEnv      = 3
	netbsdKernProcPathname = 5
	netbsdKernProcCwd      = 6

	netbsdCtlProc       = 10
	netbsdProcPidLimit  = 2
	netbsdProcLimitSoft = 1
	netbsdProcLimitHard = 2

	netbsdNZero = 20
)

func (b *netbsdBackend) Name() string { return "netbsd" }

func netbsdKinfoForPid(pid int32) (kinfo.NetBSDProc, error) {
	mib := []int32{netbsdCtlKern, netbsdKernProc2, netbsdKernProcPid, pid,
		kinfo.NetBSDProc2Size, 1}

	buf := make([]byte, kinfo.NetBSDProc2Size)
	n, err := sysctlMib(mib, buf, nil)
	if err != nil {
		return kinfo.NetBSDProc{}, err
	}
	if n == 0 {
		return kinfo.NetBSDProc{}, unix.ESRCH
	}
	return kinfo.DecodeNetBSDProc(buf[:n])
}

func (b *netbsdBackend) fetchKinfo(p *Process) (kinfo.NetBSDProc, error) {
	return fetchCached(p, KindKinfo, func() (kinfo.NetBSDProc, error) {
		return netbsdKinfoForPid(p.pid)
	})
}

func netbsdListKinfo() ([]kinfo.NetBSDProc, error) {
	for {
		probe := []int32{netbsdCtlKern, netbsdKernProc2, netbsdKernProcAll, 0,
			kinfo.NetBSDProc2Size, 1000000}
		n, err := sysctlMib(probe, nil, nil)
		if err != nil {
			return nil, err
		}
		nprocs := n / kinfo.NetBSDProc2Size

		mib := []int32{netbsdCtlKern, netbsdKernProc2, netbsdKernProcAll, 0,
			kinfo.NetBSDProc2Size, int32(nprocs)}
		buf := make([]byte, nprocs*kinfo.NetBSDProc2Size)
		m, err := sysctlMib(mib, buf, nil)
		if err == unix.ENOMEM {
			continue
		}
		if err != nil {
			return nil, err
		}
		return kinfo.DecodeNetBSDProcs(buf[:m])
	}
}

func (b *netbsdBackend) Pids() ([]int32, error) {
	procs, err := netbsdListKinfo()
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, k := range procs {
		pids = append(pids, k.Pid)
	}
	return pids, nil
}

func (b *netbsdBackend) PidCreateTime(pid int32) (float64, error) {
	k, err := netbsdKinfoForPid(pid)
	if err != nil {
		return 0, err
	}
	return k.Start, nil
}

func (b *netbsdBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	procs, err := netbsdListKinfo()
	if err != nil {
		return nil, err
	}
	entries := make([]PidEntry, 0, len(procs))
	for _, k := range procs {
		entries = append(entries, PidEntry{Pid: k.Pid, CreateTime: k.Start})
	}
	return entries, nil
}

func (b *netbsdBackend) TranslateCreateTime(raw float64) float64 { return raw }

var netbsdGroupTable = GroupTable{
	KindKinfo: {
		"name", "status", "ppid", "pgid", "sid", "terminal",
		"uids", "gids", "groups", "nice", "signal_masks",
		"cpu_times", "memory_info", "num_threads", "create_time",
	},
}

func (b *netbsdBackend) GroupTable() GroupTable { return netbsdGroupTable }

func (b *netbsdBackend) ProcName(p *Process) (string, error) {
	k, err := b.fetchKinfo(p)
	return k.Comm, err
}

func (b *netbsdBackend) ProcStatus(p *Process) (Status, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return "", err
	}
	return Status(kinfo.NetBSDStatusName(k.State)), nil
}

func (b *netbsdBackend) isZombie(p *Process) bool {
	k, err := b.fetchKinfo(p)
	return err == nil && k.State == 5
}

func (b *netbsdBackend) ProcPpid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Ppid, err
}

func (b *netbsdBackend) ProcPgid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Pgid, err
}

func (b *netbsdBackend) ProcSid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Sid, err
}

func (b *netbsdBackend) ProcUids(p *Process) (Uids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Uids{}, err
	}
	return Uids{Real: k.RUID, Effective: k.EUID, Saved: k.SvUID}, nil
}

func (b *netbsdBackend) ProcGids(p *Process) (Gids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Gids{}, err
	}
	return Gids{Real: k.RGID, Effective: k.EGID, Saved: k.SvGID}, nil
}

func (b *netbsdBackend) ProcGroups(p *Process) ([]uint32, error) {
	k, err := b.fetchKinfo(p)
	return k.Groups, err
}

func (b *netbsdBackend) ProcNice(p *Process) (int, error) {
	if p.pid == 0 {
		k, err := b.fetchKinfo(p)
		return int(k.Nice) - netbsdNZero, err
	}
	return unix.Getpriority(unix.PRIO_PROCESS, int(p.pid))
}

func (b *netbsdBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return 0, false, err
	}
	return uint64(k.TTYDev), k.HasTTY, nil
}

func (b *netbsdBackend) procArgs(p *Process, op int32) ([]byte, error) {
	mib := []int32{netbsdCtlKern, netbsdKernProcArgs, p.pid, op}
	return sysctlMibBytes(mib)
}

func (b *netbsdBackend) ProcCmdline(p *Process) ([]string, error) {
	buf, err := b.procArgs(p, netbsdKernProcArgv)
	if err != nil {
		return nil, err
	}
	args := kinfo.ParseArgs(buf)
	if len(args) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return args, nil
}

func (b *netbsdBackend) ProcEnviron(p *Process) (map[string]string, error) {
	buf, err := b.procArgs(p, netbsdKernProcEnv)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return kinfo.ParseEnv(buf), nil
}

func (b *netbsdBackend) ProcExe(p *Process) (string, error) {
	buf, err := b.procArgs(p, netbsdKernProcPathname)
	if err != nil {
		return "", err
	}
	return trimNul(buf), nil
}

func (b *netbsdBackend) ProcCwd(p *Process) (string, error) {
	buf, err := b.procArgs(p, netbsdKernProcCwd)
	if err != nil {
		return "", err
	}
	return trimNul(buf), nil
}

func (b *netbsdBackend) ProcSignalMasks(p *Process) (SignalMasks, error) {
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

func (b *netbsdBackend) ProcCPUTimes(p *Process) (CPUTimes, error) {
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

func (b *netbsdBackend) ProcMemoryInfo(p *Process) (MemoryInfo, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return MemoryInfo{}, err
	}
	return MemoryInfo{
		RSS:   pagesToBytes(k.RSSPages),
		VMS:   pagesToBytes(k.VirtualPages),
		Text:  pagesToBytes(k.TextPages),
		Data:  pagesToBytes(k.DataPages),
		Stack: pagesToBytes(k.StackPages),
	}, nil
}

func (b *netbsdBackend) ProcNumThreads(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.NumThreads, err
}

// netbsdRlimitOne reads or writes one half of a limit pair through the
// proc.<pid>.rlimit sysctl tree.
func netbsdRlimitOne(pid int32, resource int, half int32, set *uint64) (uint64, error) {
	mib := []int32{netbsdCtlProc, pid, netbsdProcPidLimit, int32(resource) + 1, half}

	var newv []byte
	if set != nil {
		newv = make([]byte, 8)
		binary.LittleEndian.PutUint64(newv, toBSDRlim(*set))
	}

	old := make([]byte, 8)
	n, err := sysctlMib(mib, old, newv)
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, unix.EINVAL
	}
	return fromBSDRlim(binary.LittleEndian.Uint64(old)), nil
}

// ProcRlimit reads the soft and hard limits with two separate kernel
// calls; the pair is reported as non-atomic.
func (b *netbsdBackend) ProcRlimit(p *Process, resource int, set *Rlimit) (Rlimit, error) {
	var softSet, hardSet *uint64
	if set != nil {
		softSet, hardSet = &set.Soft, &set.Hard
	}

	soft, err := netbsdRlimitOne(p.pid, resource, netbsdProcLimitSoft, softSet)
	if err != nil {
		return Rlimit{}, err
	}
	hard, err := netbsdRlimitOne(p.pid, resource, netbsdProcLimitHard, hardSet)
	if err != nil {
		return Rlimit{}, err
	}
	return Rlimit{Soft: soft, Hard: hard, Atomic: false}, nil
}

func (b *netbsdBackend) RlimitAtomic() bool { return false }
