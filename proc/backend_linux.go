//go:build linux

package proc

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"procview/proc/procfs"
)

func newPlatformBackend() Backend {
	return &linuxBackend{}
}

// linuxBackend reads process state from procfs. All file access goes
// through the configured afero filesystem so the whole backend can be
// exercised against synthetic trees.
type linuxBackend struct {
	bootOnce sync.Once
	bootTime float64
}

func (b *linuxBackend) Name() string { return "linux" }

func procPath(elem ...string) string {
	return filepath.Join(append([]string{ProcFSPath()}, elem...)...)
}

func readProcFile(pid int32, name string) ([]byte, error) {
	return afero.ReadFile(procFS(), procPath(strconv.Itoa(int(pid)), name))
}

// fetchStat serves the decoded stat record through the oneshot cache.
func (b *linuxBackend) fetchStat(p *Process) (procfs.Stat, error) {
	return fetchCached(p, KindStat, func() (procfs.Stat, error) {
		data, err := readProcFile(p.pid, "stat")
		if err != nil {
			return procfs.Stat{}, err
		}
		return procfs.ParseStat(string(data))
	})
}

// fetchStatus serves the decoded status record through the oneshot cache.
func (b *linuxBackend) fetchStatus(p *Process) (procfs.Status, error) {
	return fetchCached(p, KindStatus, func() (procfs.Status, error) {
		data, err := readProcFile(p.pid, "status")
		if err != nil {
			return procfs.Status{}, err
		}
		return procfs.ParseStatus(string(data))
	})
}

func (b *linuxBackend) Pids() ([]int32, error) {
	entries, err := afero.ReadDir(procFS(), ProcFSPath())
	if err != nil {
		return nil, errors.Wrap(err, "listing procfs")
	}

	var pids []int32
	for _, entry := range entries {
		pid, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids, nil
}

// PidCreateTime returns the creation token: start time in seconds since
// boot. Tick resolution makes the token stable across reads while still
// distinguishing a recycled PID from the process it replaced.
func (b *linuxBackend) PidCreateTime(pid int32) (float64, error) {
	if pid < 0 {
		return 0, unix.ESRCH
	}
	data, err := readProcFile(pid, "stat")
	if err != nil {
		return 0, err
	}
	st, err := procfs.ParseStat(string(data))
	if err != nil {
		return 0, err
	}
	return ticksToSeconds(st.StartTime), nil
}

func (b *linuxBackend) PidCreateTimes(skipPermError bool) ([]PidEntry, error) {
	pids, err := b.Pids()
	if err != nil {
		return nil, err
	}

	entries := make([]PidEntry, 0, len(pids))
	for _, pid := range pids {
		ctime, err := b.PidCreateTime(pid)
		if err != nil {
			if isNoProcessErrno(err) {
				continue
			}
			if skipPermError && isPermissionErrno(err) {
				continue
			}
			return nil, translateError(pid, err)
		}
		entries = append(entries, PidEntry{Pid: pid, CreateTime: ctime})
	}
	return entries, nil
}

func (b *linuxBackend) bootTimeSeconds() float64 {
	b.bootOnce.Do(func() {
		data, err := afero.ReadFile(procFS(), procPath("stat"))
		if err != nil {
			return
		}
		if bt, err := procfs.ParseBootTime(string(data)); err == nil {
			b.bootTime = float64(bt)
		}
	})
	return b.bootTime
}

func (b *linuxBackend) TranslateCreateTime(raw float64) float64 {
	return b.bootTimeSeconds() + raw
}

var linuxGroupTable = GroupTable{
	KindStat: {
		"name", "status", "ppid", "pgid", "sid", "terminal",
		"cpu_times", "num_threads", "nice", "create_time",
	},
	KindStatus: {
		"uids", "gids", "groups", "umask", "signal_masks",
	},
}

func (b *linuxBackend) GroupTable() GroupTable { return linuxGroupTable }

func (b *linuxBackend) ProcName(p *Process) (string, error) {
	st, err := b.fetchStat(p)
	return st.Comm, err
}

func (b *linuxBackend) ProcStatus(p *Process) (Status, error) {
	st, err := b.fetchStat(p)
	if err != nil {
		return "", err
	}
	return Status(procfs.StatusName(st.State)), nil
}

func (b *linuxBackend) isZombie(p *Process) bool {
	st, err := b.fetchStat(p)
	return err == nil && st.State == 'Z'
}

func (b *linuxBackend) ProcPpid(p *Process) (int32, error) {
	st, err := b.fetchStat(p)
	return st.Ppid, err
}

func (b *linuxBackend) ProcPgid(p *Process) (int32, error) {
	st, err := b.fetchStat(p)
	return st.Pgrp, err
}

func (b *linuxBackend) ProcSid(p *Process) (int32, error) {
	st, err := b.fetchStat(p)
	return st.Session, err
}

func (b *linuxBackend) ProcUids(p *Process) (Uids, error) {
	st, err := b.fetchStatus(p)
	if err != nil {
		return Uids{}, err
	}
	return Uids{Real: st.Uids[0], Effective: st.Uids[1], Saved: st.Uids[2]}, nil
}

func (b *linuxBackend) ProcGids(p *Process) (Gids, error) {
	st, err := b.fetchStatus(p)
	if err != nil {
		return Gids{}, err
	}
	return Gids{Real: st.Gids[0], Effective: st.Gids[1], Saved: st.Gids[2]}, nil
}

func (b *linuxBackend) ProcGroups(p *Process) ([]uint32, error) {
	st, err := b.fetchStatus(p)
	return st.Groups, err
}

func (b *linuxBackend) ProcNice(p *Process) (int, error) {
	// The raw getpriority syscall returns a biased value; the stat field
	// carries the plain nice number.
	st, err := b.fetchStat(p)
	return int(st.Nice), err
}

func (b *linuxBackend) ProcTerminalDevice(p *Process) (uint64, bool, error) {
	st, err := b.fetchStat(p)
	if err != nil {
		return 0, false, err
	}
	if st.TTYNr == 0 {
		return 0, false, nil
	}
	return uint64(uint32(st.TTYNr)), true, nil
}

func (b *linuxBackend) ProcCmdline(p *Process) ([]string, error) {
	data, err := readProcFile(p.pid, "cmdline")
	if err != nil {
		return nil, err
	}
	args := procfs.ParseNulList(data)
	if len(args) == 0 && b.isZombie(p) {
		// The kernel drops the argument vector when a process turns
		// zombie; an empty read is then a state, not a value.
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return args, nil
}

func (b *linuxBackend) ProcEnviron(p *Process) (map[string]string, error) {
	data, err := readProcFile(p.pid, "environ")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 && b.isZombie(p) {
		return nil, &ZombieProcessError{Pid: p.pid}
	}
	return procfs.ParseEnviron(data), nil
}

// fsReadlink resolves a symlink through the configured filesystem.
// Filesystems without symlink support (such as the in-memory trees the
// tests install) report ErrNotSupported.
func fsReadlink(path string) (string, error) {
	lr, ok := procFS().(afero.LinkReader)
	if !ok {
		return "", ErrNotSupported
	}
	return lr.ReadlinkIfPossible(path)
}

func (b *linuxBackend) readProcLink(p *Process, name string) (string, error) {
	target, err := fsReadlink(procPath(strconv.Itoa(int(p.pid)), name))
	if err != nil {
		if isNoProcessErrno(err) && b.isZombie(p) {
			return "", &ZombieProcessError{Pid: p.pid}
		}
		return "", err
	}
	return target, nil
}

func (b *linuxBackend) ProcExe(p *Process) (string, error) {
	target, err := b.readProcLink(p, "exe")
	if err != nil {
		return "", err
	}
	// An unlinked binary keeps running; the kernel marks the stale path.
	target = strings.TrimSuffix(target, " (deleted)")
	return target, nil
}

func (b *linuxBackend) ProcCwd(p *Process) (string, error) {
	return b.readProcLink(p, "cwd")
}

func (b *linuxBackend) ProcUmask(p *Process) (uint32, error) {
	st, err := b.fetchStatus(p)
	if err != nil {
		return 0, err
	}
	if !st.HasUmask {
		// Kernels before 4.7 do not expose the umask.
		return 0, ErrNotSupported
	}
	return st.Umask, nil
}

func (b *linuxBackend) ProcSignalMasks(p *Process) (SignalMasks, error) {
	st, err := b.fetchStatus(p)
	if err != nil {
		return SignalMasks{}, err
	}
	return SignalMasks{
		ProcessPending: expandSigBitmask(st.ShdPending),
		Pending:        expandSigBitmask(st.SigPending),
		Blocked:        expandSigBitmask(st.SigBlocked),
		Ignored:        expandSigBitmask(st.SigIgnored),
		Caught:         expandSigBitmask(st.SigCaught),
	}, nil
}

func (b *linuxBackend) ProcCPUTimes(p *Process) (CPUTimes, error) {
	st, err := b.fetchStat(p)
	if err != nil {
		return CPUTimes{}, err
	}
	return CPUTimes{
		User:           ticksToSeconds(st.UTime),
		System:         ticksToSeconds(st.STime),
		ChildrenUser:   ticksToSeconds(st.CUTime),
		ChildrenSystem: ticksToSeconds(st.CSTime),
	}, nil
}

func (b *linuxBackend) ProcMemoryInfo(p *Process) (MemoryInfo, error) {
	data, err := readProcFile(p.pid, "statm")
	if err != nil {
		return MemoryInfo{}, err
	}
	sm, err := procfs.ParseStatm(string(data))
	if err != nil {
		return MemoryInfo{}, err
	}
	return MemoryInfo{
		RSS:    pagesToBytes(sm.Resident),
		VMS:    pagesToBytes(sm.Size),
		Shared: pagesToBytes(sm.Shared),
		Text:   pagesToBytes(sm.Text),
		Data:   pagesToBytes(sm.Data),
	}, nil
}

func (b *linuxBackend) ProcNumThreads(p *Process) (int32, error) {
	st, err := b.fetchStat(p)
	return st.Threads, err
}

func (b *linuxBackend) ProcThreads(p *Process) ([]ThreadInfo, error) {
	taskDir := procPath(strconv.Itoa(int(p.pid)), "task")
	entries, err := afero.ReadDir(procFS(), taskDir)
	if err != nil {
		return nil, err
	}

	var threads []ThreadInfo
	for _, entry := range entries {
		tid, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		data, err := afero.ReadFile(procFS(), filepath.Join(taskDir, entry.Name(), "stat"))
		if err != nil {
			// The thread exited between the listing and the read.
			continue
		}
		st, err := procfs.ParseStat(string(data))
		if err != nil {
			return nil, err
		}
		threads = append(threads, ThreadInfo{
			ID:         int32(tid),
			UserTime:   ticksToSeconds(st.UTime),
			SystemTime: ticksToSeconds(st.STime),
		})
	}
	return threads, nil
}

func (b *linuxBackend) ProcNumFDs(p *Process) (int32, error) {
	entries, err := afero.ReadDir(procFS(), procPath(strconv.Itoa(int(p.pid)), "fd"))
	if err != nil {
		return 0, err
	}
	return int32(len(entries)), nil
}

func (b *linuxBackend) ProcOpenFiles(p *Process) ([]OpenFile, error) {
	fdDir := procPath(strconv.Itoa(int(p.pid)), "fd")
	entries, err := afero.ReadDir(procFS(), fdDir)
	if err != nil {
		return nil, err
	}

	var files []OpenFile
	for _, entry := range entries {
		fd, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		target, err := fsReadlink(filepath.Join(fdDir, entry.Name()))
		if err != nil || !strings.HasPrefix(target, "/") {
			// Sockets, pipes and vanished descriptors are not files.
			continue
		}
		if strings.HasSuffix(target, " (deleted)") {
			continue
		}

		pos, flags := readFdinfo(p.pid, entry.Name())
		files = append(files, OpenFile{
			Path:     target,
			Fd:       int32(fd),
			Position: pos,
			Flags:    flags,
		})
	}
	return files, nil
}

// readFdinfo extracts the file position and open flags of one
// descriptor; missing fdinfo yields zeros rather than an error.
func readFdinfo(pid int32, fd string) (pos int64, flags int) {
	data, err := afero.ReadFile(procFS(), procPath(strconv.Itoa(int(pid)), "fdinfo", fd))
	if err != nil {
		return 0, 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch name {
		case "pos":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				pos = v
			}
		case "flags":
			if v, err := strconv.ParseInt(value, 8, 64); err == nil {
				flags = int(v)
			}
		}
	}
	return pos, flags
}

func (b *linuxBackend) ProcRlimit(p *Process, resource int, set *Rlimit) (Rlimit, error) {
	var newLimit *unix.Rlimit
	if set != nil {
		newLimit = &unix.Rlimit{Cur: set.Soft, Max: set.Hard}
	}

	var old unix.Rlimit
	if err := unix.Prlimit(int(p.pid), resource, newLimit, &old); err != nil {
		return Rlimit{}, err
	}
	return Rlimit{Soft: old.Cur, Hard: old.Max, Atomic: true}, nil
}

func (b *linuxBackend) RlimitAtomic() bool { return true }

func (b *linuxBackend) ProcCPUAffinity(p *Process) ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(int(p.pid), &set); err != nil {
		return nil, err
	}

	var cpus []int
	for cpu := 0; cpu < len(set)*64; cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

func (b *linuxBackend) SetProcCPUAffinity(p *Process, cpus []int) error {
	if len(cpus) == 0 {
		return errors.New("empty CPU set")
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		if cpu < 0 || cpu >= len(set)*64 {
			return errors.Errorf("CPU %d out of range", cpu)
		}
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(int(p.pid), &set)
}
