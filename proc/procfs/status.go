package procfs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Status holds the subset of /proc/<pid>/status this package decodes.
// Signal sets are raw kernel bitmasks; Umask is only present on kernels
// 4.7 and later, signalled by HasUmask.
type Status struct {
	Name     string
	Umask    uint32
	HasUmask bool
	Uids     [4]uint32
	Gids     [4]uint32
	Groups   []uint32
	Threads  int32

	SigPending uint64 // per-thread pending (SigPnd)
	ShdPending uint64 // process-wide pending (ShdPnd)
	SigBlocked uint64
	SigIgnored uint64
	SigCaught  uint64
}

// ParseStatus decodes /proc/<pid>/status. Unknown entries are skipped;
// the format gains entries across kernel versions.
func ParseStatus(text string) (Status, error) {
	var st Status

	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		var err error
		switch name {
		case "Name":
			st.Name = value
		case "Umask":
			var v uint64
			v, err = strconv.ParseUint(value, 8, 32)
			st.Umask = uint32(v)
			st.HasUmask = true
		case "Uid":
			st.Uids, err = parseIDQuad(value)
		case "Gid":
			st.Gids, err = parseIDQuad(value)
		case "Groups":
			st.Groups, err = parseIDList(value)
		case "Threads":
			var v int64
			v, err = strconv.ParseInt(value, 10, 32)
			st.Threads = int32(v)
		case "SigPnd":
			st.SigPending, err = strconv.ParseUint(value, 16, 64)
		case "ShdPnd":
			st.ShdPending, err = strconv.ParseUint(value, 16, 64)
		case "SigBlk":
			st.SigBlocked, err = strconv.ParseUint(value, 16, 64)
		case "SigIgn":
			st.SigIgnored, err = strconv.ParseUint(value, 16, 64)
		case "SigCgt":
			st.SigCaught, err = strconv.ParseUint(value, 16, 64)
		}
		if err != nil {
			return Status{}, errors.Wrapf(err, "procfs: status entry %s", name)
		}
	}

	return st, nil
}

func parseIDQuad(value string) ([4]uint32, error) {
	var quad [4]uint32

	fields := strings.Fields(value)
	if len(fields) != 4 {
		return quad, errors.Errorf("procfs: want 4 IDs, got %q", value)
	}
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return quad, err
		}
		quad[i] = uint32(v)
	}
	return quad, nil
}

func parseIDList(value string) ([]uint32, error) {
	fields := strings.Fields(value)
	ids := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
}
