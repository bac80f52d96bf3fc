package kinfo

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// FreeBSDProcSize is sizeof(struct kinfo_proc) on 64-bit FreeBSD. The
// kernel stamps the same value into ki_structsize, which is verified on
// every decode.
const FreeBSDProcSize = 1088

// KI_CRF_GRP_OVERFLOW in ki_cr_flags: the group list was truncated.
const freebsdCrGrpOverflow = 0x80000000

const freebsdNoDev = ^uint64(0)

type freebsdTimeval struct {
	Sec  int64
	Usec int64
}

type freebsdRusage struct {
	UTime  freebsdTimeval
	STime  freebsdTimeval
	Fields [14]int64
}

// freebsdRawProc mirrors struct kinfo_proc byte for byte; the 64-bit C
// layout has no internal padding, so the packed binary read lines up.
type freebsdRawProc struct {
	Structsize    int32
	Layout        int32
	Ptrs          [8]uint64
	Pid           int32
	Ppid          int32
	Pgid          int32
	Tpgid         int32
	Sid           int32
	Tsid          int32
	Jobc          int16
	SpareShort1   int16
	TdevFreebsd11 uint32
	Siglist       [4]uint32
	Sigmask       [4]uint32
	Sigignore     [4]uint32
	Sigcatch      [4]uint32
	UID           uint32
	Ruid          uint32
	Svuid         uint32
	Rgid          uint32
	Svgid         uint32
	Ngroups       int16
	SpareShort2   int16
	Groups        [16]uint32
	Size          uint64
	Rssize        int64
	Swrss         int64
	Tsize         int64
	Dsize         int64
	Ssize         int64
	Xstat         uint16
	Acflag        uint16
	Pctcpu        uint32
	Estcpu        uint32
	Slptime       uint32
	Swtime        uint32
	Cow           int32
	Runtime       uint64
	Start         freebsdTimeval
	Childtime     freebsdTimeval
	Flag          int64
	Kiflag        int64
	Traceflag     int32
	Stat          int8
	Nice          int8
	Lock          int8
	Rqindex       int8
	OncpuOld      uint8
	LastcpuOld    uint8
	Tdname        [17]byte
	Wmesg         [9]byte
	Login         [18]byte
	Lockname      [9]byte
	Comm          [20]byte
	Emul          [17]byte
	Loginclass    [18]byte
	Moretdname    [4]byte
	Sparestrings  [46]byte
	Spareints     [2]int32
	Tdev          uint64
	Oncpu         int32
	Lastcpu       int32
	Tracer        int32
	Flag2         int32
	Fibnum        int32
	CrFlags       uint32
	Jid           int32
	Numthreads    int32
	Tid           int32
	Pri           [4]uint8
	Rusage        freebsdRusage
	RusageCh      freebsdRusage
	Pcb           uint64
	Kstack        uint64
	Udata         uint64
	Tdaddr        uint64
	Spareptrs     [6]uint64
	Sparelongs    [12]uint64
	Sflag         int64
	Tdflags       int64
}

// FreeBSDProc is the decoded view of one FreeBSD process record.
type FreeBSDProc struct {
	Pid  int32
	Ppid int32
	Pgid int32
	Sid  int32

	TTYDev uint64
	HasTTY bool

	SigPending uint64
	SigBlocked uint64
	SigIgnored uint64
	SigCaught  uint64

	RUID  uint32
	EUID  uint32
	SvUID uint32
	RGID  uint32
	EGID  uint32
	SvGID uint32

	// Groups is truncated by the kernel when GroupsOverflowed is set;
	// the full list then needs a separate kern.proc.groups query.
	Groups           []uint32
	GroupsOverflowed bool

	VirtualSize uint64
	RSSPages    int64
	TextPages   int64
	DataPages   int64
	StackPages  int64

	Start           float64
	UserTime        float64
	SystemTime      float64
	ChildUserTime   float64
	ChildSystemTime float64

	State      int8
	Nice       int8
	Comm       string
	NumThreads int32
}

// DecodeFreeBSDProc decodes one kinfo_proc record.
func DecodeFreeBSDProc(buf []byte) (FreeBSDProc, error) {
	if err := checkRecordSize("freebsd proc", len(buf), FreeBSDProcSize); err != nil {
		return FreeBSDProc{}, err
	}

	var raw freebsdRawProc
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return FreeBSDProc{}, errors.Wrap(err, "kinfo: decoding freebsd proc")
	}
	if int(raw.Structsize) != FreeBSDProcSize {
		return FreeBSDProc{}, errors.Errorf("kinfo: ki_structsize is %d, want %d", raw.Structsize, FreeBSDProcSize)
	}

	ngroups := int(raw.Ngroups)
	if ngroups < 0 || ngroups > len(raw.Groups) {
		ngroups = len(raw.Groups)
	}
	groups := make([]uint32, ngroups)
	copy(groups, raw.Groups[:ngroups])

	// FreeBSD 12 widened ki_tdev; the old narrow field is kept for
	// compatibility and is authoritative when the wide one is zero.
	tdev := raw.Tdev
	if tdev == 0 {
		tdev = uint64(raw.TdevFreebsd11)
	}

	return FreeBSDProc{
		Pid:              raw.Pid,
		Ppid:             raw.Ppid,
		Pgid:             raw.Pgid,
		Sid:              raw.Sid,
		TTYDev:           tdev,
		HasTTY:           tdev != freebsdNoDev && uint32(tdev) != ^uint32(0),
		SigPending:       uint64(raw.Siglist[0]),
		SigBlocked:       uint64(raw.Sigmask[0]),
		SigIgnored:       uint64(raw.Sigignore[0]),
		SigCaught:        uint64(raw.Sigcatch[0]),
		RUID:             raw.Ruid,
		EUID:             raw.UID,
		SvUID:            raw.Svuid,
		RGID:             raw.Rgid,
		EGID:             raw.Groups[0],
		SvGID:            raw.Svgid,
		Groups:           groups,
		GroupsOverflowed: raw.CrFlags&freebsdCrGrpOverflow != 0,
		VirtualSize:      raw.Size,
		RSSPages:         raw.Rssize,
		TextPages:        raw.Tsize,
		DataPages:        raw.Dsize,
		StackPages:       raw.Ssize,
		Start:            tvSeconds(raw.Start.Sec, raw.Start.Usec),
		UserTime:         tvSeconds(raw.Rusage.UTime.Sec, raw.Rusage.UTime.Usec),
		SystemTime:       tvSeconds(raw.Rusage.STime.Sec, raw.Rusage.STime.Usec),
		ChildUserTime:    tvSeconds(raw.RusageCh.UTime.Sec, raw.RusageCh.UTime.Usec),
		ChildSystemTime:  tvSeconds(raw.RusageCh.STime.Sec, raw.RusageCh.STime.Usec),
		State:            raw.Stat,
		Nice:             raw.Nice,
		Comm:             cstring(raw.Comm[:]),
		NumThreads:       raw.Numthreads,
	}, nil
}

// DecodeFreeBSDProcs decodes a kern.proc.all result buffer.
func DecodeFreeBSDProcs(buf []byte) ([]FreeBSDProc, error) {
	n, err := checkBufferMultiple("freebsd proc", len(buf), FreeBSDProcSize)
	if err != nil {
		return nil, err
	}

	procs := make([]FreeBSDProc, 0, n)
	for i := 0; i < n; i++ {
		p, err := DecodeFreeBSDProc(buf[i*FreeBSDProcSize : (i+1)*FreeBSDProcSize])
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// FreeBSDFileSize is sizeof(struct kinfo_file) on 64-bit FreeBSD, with
// kf_path occupying the final PATH_MAX bytes.
const (
	FreeBSDFileSize       = 1392
	freebsdFilePathOffset = FreeBSDFileSize - 1024
)

// DecodeFreeBSDFilePath extracts kf_path from a kinfo_file record, as
// returned by the per-process cwd sysctl.
func DecodeFreeBSDFilePath(buf []byte) (string, error) {
	if len(buf) < FreeBSDFileSize {
		return "", errors.Errorf("kinfo: freebsd file record is %d bytes, want %d", len(buf), FreeBSDFileSize)
	}
	structsize := int(int32(binary.LittleEndian.Uint32(buf)))
	if structsize <= 0 || structsize > len(buf) {
		return "", errors.Errorf("kinfo: kf_structsize %d out of range", structsize)
	}
	return cstring(buf[freebsdFilePathOffset:FreeBSDFileSize]), nil
}

// FreeBSDStatusName maps a ki_stat code to the portable status name.
func FreeBSDStatusName(state int8) string {
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
	case 6:
		return "waiting"
	case 7:
		return "locked"
	}
	return "?"
}
