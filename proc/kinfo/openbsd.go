package kinfo

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// OpenBSDProcSize is sizeof(struct kinfo_proc) on 64-bit OpenBSD. The
// sysctl call is issued with this as the per-element size, so the kernel
// rejects the request outright on a layout mismatch.
const OpenBSDProcSize = 640

const openbsdNoDev = ^uint32(0)

// openbsdRawProc mirrors struct kinfo_proc; the 64-bit layout is fully
// packed.
type openbsdRawProc struct {
	Forw       uint64
	Back       uint64
	Paddr      uint64
	Addr       uint64
	Fd         uint64
	Stats      uint64
	Limit      uint64
	Vmspace    uint64
	Sigacts    uint64
	Sess       uint64
	Tsess      uint64
	Ru         uint64
	Eflag      int32
	Exitsig    int32
	Flag       int32
	Pid        int32
	Ppid       int32
	Sid        int32
	Pgid       int32
	Tpgid      int32
	UID        uint32
	Ruid       uint32
	GID        uint32
	Rgid       uint32
	Groups     [16]uint32
	Ngroups    int16
	Jobc       int16
	Tdev       uint32
	Estcpu     uint32
	RtimeSec   uint32
	RtimeUsec  uint32
	Cpticks    int32
	Cptcpu     uint32
	Swtime     uint32
	Slptime    uint32
	Schedflags int32
	Uticks     uint64
	Sticks     uint64
	Iticks     uint64
	Tracep     uint64
	Traceflag  int32
	Holdcnt    int32
	Siglist    int32
	Sigmask    uint32
	Sigignore  uint32
	Sigcatch   uint32
	Stat       int8
	Priority   uint8
	Usrpri     uint8
	Nice       uint8
	Xstat      uint16
	Acflag     uint16
	Comm       [24]byte
	Wmesg      [8]byte
	Wchan      uint64
	Login      [32]byte
	VmRssize   int32
	VmTsize    int32
	VmDsize    int32
	VmSsize    int32
	Uvalid     int64
	UstartSec  uint64
	UstartUsec uint64
	UutimeSec  uint32
	UutimeUsec uint32
	UstimeSec  uint32
	UstimeUsec uint32
	Uru        [14]uint64
	Uctime     [4]uint32
	Psflags    int32
	Spare      int32
	Svuid      uint32
	Svgid      uint32
	Emul       [16]byte
	RlimRssCur uint64
	Cpuid      uint64
	VmMapSize  uint64
	Tid        int32
	Rtableid   uint32
	Pledge     uint64
}

// OpenBSDProc is the decoded view of one OpenBSD process record.
type OpenBSDProc struct {
	Pid  int32
	Ppid int32
	Pgid int32
	Sid  int32

	TTYDev uint32
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

	Groups []uint32

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

	State int8
	Nice  uint8
	Comm  string
}

// DecodeOpenBSDProc decodes one kinfo_proc record.
func DecodeOpenBSDProc(buf []byte) (OpenBSDProc, error) {
	if err := checkRecordSize("openbsd proc", len(buf), OpenBSDProcSize); err != nil {
		return OpenBSDProc{}, err
	}

	var raw openbsdRawProc
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return OpenBSDProc{}, errors.Wrap(err, "kinfo: decoding openbsd proc")
	}

	ngroups := int(raw.Ngroups)
	if ngroups < 0 || ngroups > len(raw.Groups) {
		ngroups = len(raw.Groups)
	}
	groups := make([]uint32, ngroups)
	copy(groups, raw.Groups[:ngroups])

	return OpenBSDProc{
		Pid:             raw.Pid,
		Ppid:            raw.Ppid,
		Pgid:            raw.Pgid,
		Sid:             raw.Sid,
		TTYDev:          raw.Tdev,
		HasTTY:          raw.Tdev != openbsdNoDev,
		SigPending:      uint64(uint32(raw.Siglist)),
		SigBlocked:      uint64(raw.Sigmask),
		SigIgnored:      uint64(raw.Sigignore),
		SigCaught:       uint64(raw.Sigcatch),
		RUID:            raw.Ruid,
		EUID:            raw.UID,
		SvUID:           raw.Svuid,
		RGID:            raw.Rgid,
		EGID:            raw.GID,
		SvGID:           raw.Svgid,
		Groups:          groups,
		VirtualSize:     raw.VmMapSize,
		RSSPages:        int64(raw.VmRssize),
		TextPages:       int64(raw.VmTsize),
		DataPages:       int64(raw.VmDsize),
		StackPages:      int64(raw.VmSsize),
		Start:           tvSeconds(int64(raw.UstartSec), int64(raw.UstartUsec)),
		UserTime:        tvSeconds(int64(raw.UutimeSec), int64(raw.UutimeUsec)),
		SystemTime:      tvSeconds(int64(raw.UstimeSec), int64(raw.UstimeUsec)),
		ChildUserTime:   tvSeconds(int64(raw.Uctime[0]), int64(raw.Uctime[1])),
		ChildSystemTime: tvSeconds(int64(raw.Uctime[0]), int64(raw.Uctime[1])),
		State:           raw.Stat,
		Nice:            raw.Nice,
		Comm:            cstring(raw.Comm[:]),
	}, nil
}

// DecodeOpenBSDProcs decodes a multi-record result buffer.
func DecodeOpenBSDProcs(buf []byte) ([]OpenBSDProc, error) {
	n, err := checkBufferMultiple("openbsd proc", len(buf), OpenBSDProcSize)
	if err != nil {
		return nil, err
	}

	procs := make([]OpenBSDProc, 0, n)
	for i := 0; i < n; i++ {
		p, err := DecodeOpenBSDProc(buf[i*OpenBSDProcSize : (i+1)*OpenBSDProcSize])
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// OpenBSDStatusName maps a p_stat code to the portable status name. The
// kernel reports an on-CPU process as a distinct state; it is running.
func OpenBSDStatusName(state int8) string {
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
		return "dead"
	case 7:
		return "running"
	}
	return "?"
}
