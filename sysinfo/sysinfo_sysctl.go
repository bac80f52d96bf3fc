//go:build darwin || freebsd || openbsd || netbsd

package sysinfo

import (
	"time"

	"golang.org/x/sys/unix"
)

// bootTime reads the kern.boottime timeval.
func bootTime() (time.Time, error) {
	tv, err := unix.SysctlTimeval("kern.boottime")
	if err != nil {
		return time.Time{}, err
	}
	sec := float64(tv.Sec) + float64(tv.Usec)/1e6
	return time.Unix(0, int64(sec*float64(time.Second))), nil
}

func uptime() (time.Duration, error) {
	boot, err := bootTime()
	if err != nil {
		return 0, err
	}
	return time.Since(boot), nil
}

func virtualMemory() (VirtualMemoryStat, error) {
	return VirtualMemoryStat{}, ErrNotSupported
}

func swapMemory() (SwapMemoryStat, error) {
	return SwapMemoryStat{}, ErrNotSupported
}

func cpuTimes() (CPUTimesStat, error) {
	return CPUTimesStat{}, ErrNotSupported
}
