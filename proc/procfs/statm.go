package procfs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Statm holds /proc/<pid>/statm, in pages.
type Statm struct {
	Size     int64
	Resident int64
	Shared   int64
	Text     int64
	Data     int64
}

// ParseStatm decodes /proc/<pid>/statm.
func ParseStatm(text string) (Statm, error) {
	fields := strings.Fields(text)
	if len(fields) < 7 {
		return Statm{}, errors.Errorf("procfs: statm has %d fields, want 7", len(fields))
	}

	vals := make([]int64, 7)
	for i := range vals {
		v, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return Statm{}, errors.Wrapf(err, "procfs: statm field %d", i)
		}
		vals[i] = v
	}

	return Statm{
		Size:     vals[0],
		Resident: vals[1],
		Shared:   vals[2],
		Text:     vals[3],
		Data:     vals[5],
	}, nil
}

// ParseNulList splits NUL-delimited data such as /proc/<pid>/cmdline and
// environ. A trailing NUL does not produce an empty final element; empty
// data yields an empty slice.
func ParseNulList(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	s = strings.TrimSuffix(s, "\x00")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\x00")
}

// ParseEnviron decodes /proc/<pid>/environ into a map. Entries without
// an '=' are dropped; later duplicates win, matching getenv behavior.
func ParseEnviron(data []byte) map[string]string {
	env := make(map[string]string)
	for _, entry := range ParseNulList(data) {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env
}
