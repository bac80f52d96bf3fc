// Package sysinfo provides stateless system-wide accessors: boot time,
// uptime, memory and CPU accounting, and filesystem usage. Unlike the
// proc package there is no identity or caching layer here; every call is
// one fresh kernel read.
package sysinfo

import (
	"time"

	"procview/proc"
)

// VirtualMemoryStat holds system memory usage in bytes. Available is the
// kernel's estimate of memory obtainable without swapping; UsedPercent is
// computed against Total.
type VirtualMemoryStat struct {
	Total       uint64
	Available   uint64
	Used        uint64
	Free        uint64
	Active      uint64
	Inactive    uint64
	Buffers     uint64
	Cached      uint64
	Shared      uint64
	Slab        uint64
	UsedPercent float64
}

// SwapMemoryStat holds swap usage in bytes. Sin and Sout count bytes
// swapped in and out since boot.
type SwapMemoryStat struct {
	Total       uint64
	Used        uint64
	Free        uint64
	Sin         uint64
	Sout        uint64
	UsedPercent float64
}

// CPUTimesStat holds accumulated system-wide CPU time, in seconds.
type CPUTimesStat struct {
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	IOWait    float64
	IRQ       float64
	SoftIRQ   float64
	Steal     float64
	Guest     float64
	GuestNice float64
}

// DiskUsageStat holds filesystem usage for one mount point. Used and
// UsedPercent are computed against the space available to unprivileged
// users, matching df(1).
type DiskUsageStat struct {
	Total       uint64
	Free        uint64
	Used        uint64
	UsedPercent float64
}

// ErrNotSupported is returned by accessors the current platform has no
// kernel primitive for.
var ErrNotSupported = proc.ErrNotSupported

// BootTime returns the time the system booted.
func BootTime() (time.Time, error) {
	return bootTime()
}

// Uptime returns the time elapsed since boot.
func Uptime() (time.Duration, error) {
	return uptime()
}

// TimeSinceBoot returns the time elapsed since boot as seconds.
func TimeSinceBoot() (float64, error) {
	d, err := uptime()
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// VirtualMemory returns system memory usage.
func VirtualMemory() (VirtualMemoryStat, error) {
	return virtualMemory()
}

// SwapMemory returns swap usage.
func SwapMemory() (SwapMemoryStat, error) {
	return swapMemory()
}

// CPUTimes returns accumulated system-wide CPU time.
func CPUTimes() (CPUTimesStat, error) {
	return cpuTimes()
}

// DiskUsage returns usage statistics for the filesystem containing path.
func DiskUsage(path string) (DiskUsageStat, error) {
	bsize, blocks, bfree, bavail, err := statfsCounts(path)
	if err != nil {
		return DiskUsageStat{}, err
	}

	total := blocks * bsize
	free := bavail * bsize
	used := (blocks - bfree) * bsize

	var pct float64
	if used+free > 0 {
		pct = float64(used) / float64(used+free) * 100
	}
	return DiskUsageStat{Total: total, Free: free, Used: used, UsedPercent: pct}, nil
}

func usedPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
