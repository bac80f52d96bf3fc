//go:build linux

package sysinfo

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"procview/proc"
	"procview/proc/procfs"
)

// fsys is the filesystem the accessors read through; tests substitute an
// in-memory filesystem holding synthetic procfs files.
var (
	fsysMu sync.RWMutex
	fsys   afero.Fs = afero.NewOsFs()
)

func procFS() afero.Fs {
	fsysMu.RLock()
	defer fsysMu.RUnlock()
	return fsys
}

func setProcFS(fs afero.Fs) {
	fsysMu.Lock()
	defer fsysMu.Unlock()
	fsys = fs
}

func readProcFile(name string) (string, error) {
	data, err := afero.ReadFile(procFS(), filepath.Join(proc.ProcFSPath(), name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// bootTime derives the boot instant from CLOCK_BOOTTIME against the wall
// clock. The btime field of /proc/stat is whole seconds only; the clock
// pair keeps sub-second resolution.
func bootTime() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return time.Time{}, err
	}
	sinceBoot := time.Duration(ts.Nano())
	return time.Now().Add(-sinceBoot), nil
}

func uptime() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return 0, err
	}
	return time.Duration(ts.Nano()), nil
}

func virtualMemory() (VirtualMemoryStat, error) {
	text, err := readProcFile("meminfo")
	if err != nil {
		return VirtualMemoryStat{}, err
	}
	info, err := procfs.ParseMeminfo(text)
	if err != nil {
		return VirtualMemoryStat{}, err
	}

	st := VirtualMemoryStat{
		Total:    info["MemTotal"],
		Free:     info["MemFree"],
		Active:   info["Active"],
		Inactive: info["Inactive"],
		Buffers:  info["Buffers"],
		Cached:   info["Cached"] + info["SReclaimable"],
		Shared:   info["Shmem"],
		Slab:     info["Slab"],
	}

	if avail, ok := info["MemAvailable"]; ok {
		st.Available = avail
	} else {
		// Pre-3.14 kernels lack MemAvailable.
		st.Available = st.Free + st.Buffers + st.Cached
	}

	used := st.Total - st.Free - st.Buffers - st.Cached
	if used > st.Total {
		used = st.Total - st.Free
	}
	st.Used = used
	st.UsedPercent = usedPercent(st.Used, st.Total)
	return st, nil
}

func swapMemory() (SwapMemoryStat, error) {
	text, err := readProcFile("meminfo")
	if err != nil {
		return SwapMemoryStat{}, err
	}
	info, err := procfs.ParseMeminfo(text)
	if err != nil {
		return SwapMemoryStat{}, err
	}

	st := SwapMemoryStat{
		Total: info["SwapTotal"],
		Free:  info["SwapFree"],
	}
	st.Used = st.Total - st.Free
	st.UsedPercent = usedPercent(st.Used, st.Total)

	// Swap-in/out counters live in vmstat, in pages.
	if text, err := readProcFile("vmstat"); err == nil {
		if stats, err := procfs.ParseVmstat(text); err == nil {
			page := uint64(proc.PageSize())
			st.Sin = stats["pswpin"] * page
			st.Sout = stats["pswpout"] * page
		}
	}
	return st, nil
}

func cpuTimes() (CPUTimesStat, error) {
	text, err := readProcFile("stat")
	if err != nil {
		return CPUTimesStat{}, err
	}
	cpu, err := procfs.ParseCPUStat(text)
	if err != nil {
		return CPUTimesStat{}, err
	}

	tick := float64(proc.ClockTicksPerSecond())
	return CPUTimesStat{
		User:      float64(cpu.User) / tick,
		Nice:      float64(cpu.Nice) / tick,
		System:    float64(cpu.System) / tick,
		Idle:      float64(cpu.Idle) / tick,
		IOWait:    float64(cpu.IOWait) / tick,
		IRQ:       float64(cpu.IRQ) / tick,
		SoftIRQ:   float64(cpu.SoftIRQ) / tick,
		Steal:     float64(cpu.Steal) / tick,
		Guest:     float64(cpu.Guest) / tick,
		GuestNice: float64(cpu.GuestNice) / tick,
	}, nil
}

func statfsCounts(path string) (bsize, blocks, bfree, bavail uint64, err error) {
	var fs unix.Statfs_t
	if err = unix.Statfs(path, &fs); err != nil {
		return 0, 0, 0, 0, err
	}
	return uint64(fs.Bsize), fs.Blocks, fs.Bfree, fs.Bavail, nil
}
