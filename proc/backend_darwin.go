//go:build darwin

package proc

import (
	"golang.org/x/sys/unix"
)

func newPlatformBackend() Backend {
	return &darwinBackend{}
}

// darwinBackend reads the BSD half of the XNU process table through the
// kern.proc sysctl. The Mach side (task ports) is needed for CPU times,
// memory and threads and requires entitlements, so those accessors are
// not offered here.
type darwinBackend struct{}

func (b *darwinBackend) Name() string { return "darwin" }

func darwinKinfoForPid(pid int32) (unix.KinfoProc, error) {
	k, err := unix.SysctlKinfoProc("kern.proc.pid", int(pid))
	if err != nil {
		// The kernel answers a dead PID with a short read.
		if err == unix.EIO || err == unix.ENOMEM {
			return unix.KinfoProc{}, unix.ESRCH
		}
		return unix.KinfoProc{}, err
	}
	if k.Proc.P_pid != pid {
		return unix.KinfoProc{}, unix.ESRCH
	}
	return *k, nil
}

func (b *darwinBackend) fetchKinfo(p *Process) (unix.KinfoProc, error) {
	return fetchCached(p, KindKinfo, func() (unix.KinfoProc, error) {
		return darwinKinfoForPid(p.pid)
	})
}

func (b *darwinBackend) Pids() ([]int32, error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(procs))
	for _, k := range procs {
		pids = append(pids, k.Proc.P_pid)
	}
	return pids, nil
}

func darwinStartTime(k *unix.KinfoProc) float64 {
	tv := k.Proc.P_starttime
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

func (b *darwinBackend) PidCreateTime(pid int32) (float64, error) {
	k, err := darwinKinfoForPid(pid)
	if err != nil {
		return 0, err
	}
	return darwinStartTime(&k), nil
}

func (b *darwinBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, err
	}
	entries := make([]PidEntry, 0, len(procs))
	for _, k := range procs {
		entries = append(entries, PidEntry{
			Pid:        k.Proc.P_pid,
			CreateTime: darwinStartTime(&k),
		})
	}
	return entries, nil
}

func (b *darwinBackend) TranslateCreateTime(raw float64) float64 { return raw }

var darwinGroupTable = GroupTable{
	KindKinfo: {
		"name", "status", "ppid", "pgid", "terminal",
		"uids", "gids", "groups", "signal_masks", "create_time",
	},
}

func (b *darwinBackend) GroupTable() GroupTable { return darwinGroupTable }

func darwinStatusName(state int8) string {
	switch state {
	case 1:
		return "idle"
	case 2:
		return "running"
	case 3:
		return "sleeping"
	case 4:
		return "stopped"
	case 5:
		return "zombie"
	}
	return "?"
}

func (b *darwinBackend) ProcName(p *Process) (string, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return "", err
	}
	return unix.ByteSliceToString(k.Proc.P_comm[:]), nil
}

func (b *darwinBackend) ProcStatus(p *Process) (Status, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return "", err
	}
	return Status(darwinStatusName(k.Proc.P_stat)), nil
}

func (b *darwinBackend) ProcPpid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Eproc.Ppid, err
}

func (b *darwinBackend) ProcPgid(p *Process) (int32, error) {
	k, err := b.fetchKinfo(p)
	return k.Eproc.Pgid, err
}

func (b *darwinBackend) ProcSid(p *Process) (int32, error) {
	sid, err := unix.Getsid(int(p.pid))
	if err != nil {
		return 0, err
	}
	return int32(sid), nil
}

func (b *darwinBackend) ProcUids(p *Process) (Uids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Uids{}, err
	}
	return Uids{
		Real:      k.Eproc.Pcred.P_ruid,
		Effective: k.Eproc.Ucred.Uid,
		Saved:     k.Eproc.Pcred.P_svuid,
	}, nil
}

func (b *darwinBackend) ProcGids(p *Process) (Gids, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return Gids{}, err
	}
	gids := Gids{
		Real:  k.Eproc.Pcred.P_rgid,
		Saved: k.Eproc.Pcred.P_svgid,
	}
	if k.Eproc.Ucred.Ngroups > 0 {
		gids.Effective = k.Eproc.Ucred.Groups[0]
	}
	return gids, nil
}

func (b *darwinBackend) ProcGroups(p *Process) ([]uint32, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return nil, err
	}
	n := int(k.Eproc.Ucred.Ngroups)
	if n < 0 || n > len(k.Eproc.Ucred.Groups) {
		n = len(k.Eproc.Ucred.Groups)
	}
	groups := make([]uint32, n)
	copy(groups, k.Eproc.Ucred.Groups[:n])
	return groups, nil
}

func (b *darwinBackend) ProcNice(p *Process) (int, error) {
	if p.pid == 0 {
		k, err := b.fetchKinfo(p)
		return int(k.Proc.P_nice), err
	}
	return unix.Getpriority(unix.PRIO_PROCESS, int(p.pid))
}

func (b *darwinBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return 0, false, err
	}
	tdev := k.Eproc.Tdev
	if tdev == -1 {
		return 0, false, nil
	}
	return uint64(uint32(tdev)), true, nil
}

// ProcSignalMasks reports the ignored and caught dispositions only. The
// pending and blocked sets live on the Mach thread side and are not
// present in the BSD kinfo record.
func (b *darwinBackend) ProcSignalMasks(p *Process) (SignalMasks, error) {
	k, err := b.fetchKinfo(p)
	if err != nil {
		return SignalMasks{}, err
	}
	return SignalMasks{
		Ignored: expandSigBitmask(uint64(k.Proc.P_sigignore)),
		Caught:  expandSigBitmask(uint64(k.Proc.P_sigcatch)),
	}, nil
}
