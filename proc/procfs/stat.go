// Package procfs decodes the Linux procfs text formats. The decoders are
// pure functions over file contents so they can be tested against
// synthetic trees; callers own the reads and the unit conversions.
package procfs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stat holds the fields of /proc/<pid>/stat this package exposes. Time
// fields are in clock ticks, memory fields in pages, exactly as the
// kernel reports them.
type Stat struct {
	Comm      string
	State     byte
	Ppid      int32
	Pgrp      int32
	Session   int32
	TTYNr     int32
	UTime     int64
	STime     int64
	CUTime    int64
	CSTime    int64
	Priority  int64
	Nice      int64
	Threads   int32
	StartTime int64
	Processor int32
}

// ParseStat decodes one /proc/<pid>/stat (or task/<tid>/stat) line. The
// comm field is delimited by the first '(' and the last ')' so embedded
// spaces and parentheses in the process name cannot shift the remaining
// fields.
func ParseStat(line string) (Stat, error) {
	line = strings.TrimSpace(line)

	lparen := strings.IndexByte(line, '(')
	rparen := strings.LastIndexByte(line, ')')
	if lparen < 0 || rparen < lparen {
		return Stat{}, errors.Errorf("procfs: malformed stat line %q", line)
	}

	comm := line[lparen+1 : rparen]
	rest := strings.Fields(line[rparen+1:])

	// rest[0] is field 3 (state); indices below are offsets from there.
	const minFields = 39
	if len(rest) < minFields {
		return Stat{}, errors.Errorf("procfs: stat line has %d fields, want at least %d", len(rest)+2, minFields+2)
	}

	var st Stat
	st.Comm = comm
	st.State = rest[0][0]

	geti := func(idx int) (int64, error) {
		return strconv.ParseInt(rest[idx], 10, 64)
	}
	getu := func(idx int) (uint64, error) {
		return strconv.ParseUint(rest[idx], 10, 64)
	}

	fields := []struct {
		idx int
		dst func(int64)
	}{
		{1, func(v int64) { st.Ppid = int32(v) }},
		{2, func(v int64) { st.Pgrp = int32(v) }},
		{3, func(v int64) { st.Session = int32(v) }},
		{4, func(v int64) { st.TTYNr = int32(v) }},
		{11, func(v int64) { st.UTime = v }},
		{12, func(v int64) { st.STime = v }},
		{13, func(v int64) { st.CUTime = v }},
		{14, func(v int64) { st.CSTime = v }},
		{15, func(v int64) { st.Priority = v }},
		{16, func(v int64) { st.Nice = v }},
		{17, func(v int64) { st.Threads = int32(v) }},
		{36, func(v int64) { st.Processor = int32(v) }},
	}
	for _, f := range fields {
		v, err := geti(f.idx)
		if err != nil {
			return Stat{}, errors.Wrapf(err, "procfs: stat field %d", f.idx+3)
		}
		f.dst(v)
	}

	start, err := getu(19)
	if err != nil {
		return Stat{}, errors.Wrap(err, "procfs: stat starttime")
	}
	st.StartTime = int64(start)

	return st, nil
}

// statusForState maps the stat/status single-letter state codes to the
// portable status names.
var statusForState = map[byte]string{
	'R': "running",
	'S': "sleeping",
	'D': "disk-sleep",
	'Z': "zombie",
	'T': "stopped",
	't': "tracing-stop",
	'X': "dead",
	'x': "dead",
	'K': "wake-kill",
	'W': "waking",
	'P': "parked",
	'I': "idle",
}

// StatusName translates a kernel state code; unknown codes map to "?".
func StatusName(state byte) string {
	if name, ok := statusForState[state]; ok {
		return name
	}
	return "?"
}
