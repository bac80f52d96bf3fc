package proc

import (
	"os"
	"sync"

	"github.com/tklauser/go-sysconf"
)

// Centralized numeric-unit conversion. Clock-tick and page-size rates are
// queried from the runtime once; every decoder converts through these
// helpers so that no two call sites can disagree on the unit tables.

var (
	unitOnce sync.Once
	clkTck   int64
	pageSize int64
)

func initUnits() {
	unitOnce.Do(func() {
		clkTck = 100
		if v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && v > 0 {
			clkTck = v
		}
		pageSize = int64(os.Getpagesize())
	})
}

// ClockTicksPerSecond returns the kernel's tick rate for the fields that
// /proc and kern.cp_time report in clock ticks.
func ClockTicksPerSecond() int64 {
	initUnits()
	return clkTck
}

// PageSize returns the system memory page size in bytes.
func PageSize() int64 {
	initUnits()
	return pageSize
}

// ticksToSeconds converts a clock-tick count to seconds.
func ticksToSeconds(ticks int64) float64 {
	return float64(ticks) / float64(ClockTicksPerSecond())
}

// pagesToBytes converts a page count to bytes.
func pagesToBytes(pages int64) uint64 {
	if pages < 0 {
		return 0
	}
	return uint64(pages) * uint64(PageSize())
}
