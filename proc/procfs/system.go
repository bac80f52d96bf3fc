package procfs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CPUStat holds one "cpu" line of /proc/stat, in clock ticks. Fields the
// running kernel is too old to report are zero.
type CPUStat struct {
	User      int64
	Nice      int64
	System    int64
	Idle      int64
	IOWait    int64
	IRQ       int64
	SoftIRQ   int64
	Steal     int64
	Guest     int64
	GuestNice int64
}

// ParseBootTime extracts the btime entry of /proc/stat, in seconds since
// the epoch.
func ParseBootTime(text string) (int64, error) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "btime ") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(line[len("btime "):]), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "procfs: btime")
		}
		return v, nil
	}
	return 0, errors.New("procfs: no btime entry in stat")
}

// ParseCPUStat extracts the aggregate "cpu" line of /proc/stat.
func ParseCPUStat(text string) (CPUStat, error) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)[1:]
		if len(fields) < 4 {
			return CPUStat{}, errors.Errorf("procfs: cpu line has %d fields", len(fields))
		}

		vals := make([]int64, 10)
		for i := 0; i < len(vals) && i < len(fields); i++ {
			v, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return CPUStat{}, errors.Wrapf(err, "procfs: cpu field %d", i)
			}
			vals[i] = v
		}

		return CPUStat{
			User:      vals[0],
			Nice:      vals[1],
			System:    vals[2],
			Idle:      vals[3],
			IOWait:    vals[4],
			IRQ:       vals[5],
			SoftIRQ:   vals[6],
			Steal:     vals[7],
			Guest:     vals[8],
			GuestNice: vals[9],
		}, nil
	}
	return CPUStat{}, errors.New("procfs: no cpu entry in stat")
}

// ParseUptime decodes /proc/uptime, returning uptime seconds.
func ParseUptime(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) < 1 {
		return 0, errors.New("procfs: empty uptime")
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Wrap(err, "procfs: uptime")
	}
	return v, nil
}

// ParseMeminfo decodes /proc/meminfo into a map of entry name to bytes.
// Entries carrying a "kB" suffix are scaled; bare counters pass through.
func ParseMeminfo(text string) (map[string]uint64, error) {
	info := make(map[string]uint64)

	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "procfs: meminfo entry %s", name)
		}
		if len(fields) > 1 && fields[1] == "kB" {
			v *= 1024
		}
		info[name] = v
	}

	return info, nil
}

// ParseVmstat decodes /proc/vmstat into a map of raw counters.
func ParseVmstat(text string) (map[string]uint64, error) {
	stats := make(map[string]uint64)

	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "procfs: vmstat entry %s", name)
		}
		stats[name] = v
	}

	return stats, nil
}
