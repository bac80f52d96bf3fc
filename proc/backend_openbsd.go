//go:build openbsd

package proc

import (
	"encoding/binary"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"procview/proc/kinfo"
)

func newPlatformBackend() Backend {
	return &openbsdBackend{}
}

// openbsdBackend reads process state through the kern.proc sysctl. The
// kernel has no per-process executable path, umask or resource-limit
// interface, so those accessors stay unimplemented here.
type openbsdBackend struct{}

const (
	openbsdCtlKern         = 1
	openbsdKernProc        = 66
	openbsdKernProcArgs    = 55
	openbsdKernProcCwd     = 78
	openbsdKernProcPid     = 1
	openbsdKernProcKthread = 7
	openbsdKernProcArgv    = 1
	openbsdKernProcEnv     = 3

	// p_nice carries the scheduler bias; subtract to get the nice value.
	openbsdNZero = 20
)

func (b *openbsdBackend) Name() string { return "openbsd" }

func openbsdKinfoForPid(pid int32) (kinfo.OpenBSDProc, error) {
	mib := []int32{openbsdCtlKern, openbsdKernProc, openbsdKernProcPid, pid,
		kinfo.OpenBSDProcSize, 1}

	buf := make([]byte, kinfo.OpenBSDProcSize)
	n, err := sysctlMib(mib, buf, nil)
	if err != nil {
		return kinfo.OpenBSDProc{}, err
	}
	if n == 0 {
		return kinfo.OpenBSDProc{}, unix.ESRCH
	}
	return kinfo.DecodeOpenBSDProc(buf[:n])
}

func (b *openbsdBackend) fetchKinfo(p *Process) (kinfo.OpenBSDProc, error) {
	return fetchCached(p, KindKinfo, func() (kinfo.OpenBSDProc, error) {
		return openbsdKinfoForPid(p.pid)
	})
}

func openbsdListKinfo() ([]kinfo.OpenBSDProc, error) {
	for {
		// Probe with an unbounded count to size the result.
		probe := []int32{openbsdCtlKern, openbsdKernProc, openbsdKernProcKthread, 0,
			kinfo.OpenBSDProcSize, 1000000}
		n, err := sysctlMib(probe, nil, nil)
		if err != nil {
			return nil, err
		}
		nprocs := n / kinfo.OpenBSDProcSize

		mib := []int32{openbsdCtlKern, openbsdKernProc, openbsdKernProcKthread, 0,
			kinfo.OpenBSDProcSize, int32(nprocs)}
		buf := make([]byte, nprocs*kinfo.OpenBSDProcSize)
		m, err := sysctlMib(mib, buf, nil)
		if err == unix.ENOMEM {
			// The process table grew between the calls.
			continue
		}
		if err != nil {
			return nil, err
		}
		return kinfo.DecodeOpenBSDProcs(buf[:m])
	}
}

func (b *openbsdBackend) Pids() ([]int32, error) {
	procs, err := openbsdListKinfo()
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, k := range procs {
		pids = append(pids, k.Pid)
	}
	return pids, nil
}

func (b *openbsdBackend) PidCreateTime(pid int32) (float64, error) {
	k, err := openbsdKinfoForPid(pid)
	if err != nil {
		return 0, err
	}
	return k.Start, nil
}

func (b *openbsdBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	procs, err := openbsdListKinfo()
	if err != nil {
		return nil, err
	}
	entries := make([]PidEntry, 0, len(procs))
	for _, k := range procs {
		entries = append(entries, PidEntry{Pid: k.Pid, CreateTime: k.Start})
	}
	return entries, nil
}

func (b *openbsdBackend) TranslateCreateTime(raw float64) float64 { return raw }

var openbsdGroupTable = GroupTable{
	KindKinfo: {
		"name", "status", "ppid", "pgid", "sid", "terminal",
		"uids", "gids", "groups", "nice", "signal_masks",
		"cpu_times", "memory_info", "create_time",
	},
}

func (b *openbsdBackend) GroupTable() GroupTable { return openbsdGroupTable }

func (b *openbsdBackend) ProcName(p *Process) (string, error) {
	k, err := b.fetchKinfo(p)
	return k.Comm, err
}

func (b *openbsdBackend) ProcStatus(p *Process) (Status, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return "", err
	}
	return Status(kinfo.OpenBSDStatusName(k.State)), nil
}

func (b *openbsdBackend) isZombie(p *Process) bool {
	k, err := b.fetchKinfo(p)
	return err == nil && k.State == 5
}

func (b *openbsdBackend) ProcPpid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Ppid, err
}

func (b *openbsdBackend) ProcPgid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Pgid, err
}

func (b *openbsdBackend) ProcSid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Sid, err
}

func (b *openbsdBackend) ProcUids(p *Process) (Uids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Uids{}, err
	}
	return Uids{Real: k.RUID, Effective: k.EUID, Saved: k.SvUID}, nil
}

func (b *openbsdBackend) ProcGids(p *Process) (Gids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Gids{}, err
	}
	return Gids{Real: k.RGID, Effective: k.EGID, Saved: k.SvGID}, nil
}

func (b *openbsdBackend) ProcGroups(p *Process) ([]uint32, error) {
	k, err := b.fetchKinfo(p)
	return k.Groups, err
}

func (b *openbsdBackend) ProcNice(p *Process) (int, error) {
	if p.pid == 0 {
		k, err := b.fetchKinfo(p)
		return int(k.Nice) - openbsdNZero, err
	}
	return unix.Getpriority(unix.PRIO_PROCESS, int(p.pid))
}

func (b *openbsdBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return 0, false, err
	}
	return uint64(k.TTYDev), k.HasTTY, nil
}

// parseArgVector decodes a kern.proc.args result: a NULL-terminated
// pointer array followed by the strings, with the pointers rewritten by
// the kernel to point into the caller's buffer.
func parseArgVector(buf []byte) []string {
	if len(buf) < 8 {
		return nil
	}
	base := uintptr(unsafe.Pointer(&buf[0]))

	var args []string
	for off := 0; off+8 <= len(buf); off += 8 {
		ptr := uintptr(binary.LittleEndian.Uint64(buf[off:]))
		if ptr == 0 {
			break
		}
		strOff := int(ptr - base)
		if strOff <= 0 || strOff >= len(buf) {
			break
		}
		args = append(args, trimNul(buf[strOff:]))
	}
	return args
}

func (b *openbsdBackend) procArgs(p *Process, op int32) ([]string, error) {
	mib := []int32{openbsdCtlKern, openbsdKernProcArgs, p.pid, op}
	buf, err := sysctlMibBytes(mib)
	if err != nil {
		return nil, err
	}
	return parseArgVector(buf), nil
}

func (b *openbsdBackend) ProcCmdline(p *Process) ([]string, error) {
	args, err := b.procArgs(p, openbsdKernProcArgv)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return args, nil
}

func (b *openbsdBackend) ProcEnviron(p *Process) (map[string]string, error) {
	entries, err := b.procArgs(p, openbsdKernProcEnv)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}

	env := make(map[string]string)
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env, nil
}

func (b *openbsdBackend) ProcCwd(p *Process) (string, error) {
	mib := []int32{openbsdCtlKern, openbsdKernProcCwd, p.pid}
	buf, err := sysctlMibBytes(mib)
	if err != nil {
		return "", err
	}
	return trimNul(buf), nil
}

func (b *openbsdBackend) ProcSignalMasks(p *Process) (SignalMasks, error) {
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

func (b *openbsdBackend) ProcCPUTimes(p *Process) (CPUTimes, error) {
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

func (b *openbsdBackend) ProcMemoryInfo(p *Process) (MemoryInfo, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return MemoryInfo{}, err
	}
	return MemoryInfo{
		RSS:   pagesToBytes(k.RSSPages),
		VMS:   k.VirtualSize,
		Data:  pagesToBytes(k.DataPages),
		Stack: pagesToBytes(k.StackPages),
	}, nil
}
