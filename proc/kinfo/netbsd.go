package kinfo

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// NetBSDProc2Size is sizeof(struct kinfo_proc2) on 64-bit NetBSD. The
// kern.proc2 sysctl takes the element size as a MIB argument, so a
// mismatched layout fails at the kernel boundary.
const NetBSDProc2Size = 688

const netbsdNoDev = ^uint32(0)

// netbsdRawProc2 mirrors struct kinfo_proc2; the 64-bit layout is fully
// packed.
type netbsdRawProc2 struct {
	Forw       uint64
	Back       uint64
	Paddr      uint64
	Addr       uint64
	Fd         uint64
	Cwdi       uint64
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
	Siglist    [4]uint32
	Sigmask    [4]uint32
	Sigignore  [4]uint32
	Sigcatch   [4]uint32
	Stat       int8
	Priority   uint8
	Usrpri     uint8
	Nice       uint8
	Xstat      uint16
	Acflag     uint16
	Comm       [24]byte
	Wmesg      [8]byte
	Wchan      uint64
	Login      [24]byte
	VmRssize   int32
	VmTsize    int32
	VmDsize    int32
	VmSsize    int32
	Uvalid     int64
	UstartSec  uint32
	UstartUsec uint32
	UutimeSec  uint32
	UutimeUsec uint32
	UstimeSec  uint32
	UstimeUsec uint32
	Uru        [14]uint64
	UctimeSec  uint32
	UctimeUsec uint32
	Cpuid      uint64
	Realflag   uint64
	Nlwps      uint64
	Nrlwps     uint64
	Realstat   uint64
	Svuid      uint64
	Svgid      uint64
	Ename      [16]byte
	VmVsize    int64
	VmMsize    int64
}

// NetBSDProc is the decoded view of one NetBSD process record.
type NetBSDProc struct {
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

	VirtualPages int64
	RSSPages     int64
	TextPages    int64
	DataPages    int64
	StackPages   int64

	Start           float64
	UserTime        float64
	SystemTime      float64
	ChildUserTime   float64
	ChildSystemTime float64

	State      int8
	Nice       uint8
	Comm       string
	NumThreads int32
}

// DecodeNetBSDProc decodes one kinfo_proc2 record.
func DecodeNetBSDProc(buf []byte) (NetBSDProc, error) {
	if err := checkRecordSize("netbsd proc2", len(buf), NetBSDProc2Size); err != nil {
		return NetBSDProc{}, err
	}

	var raw netbsdRawProc2
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return NetBSDProc{}, errors.Wrap(err, "kinfo: decoding netbsd proc2")
	}

	ngroups := int(raw.Ngroups)
	if ngroups < 0 || ngroups > len(raw.Groups) {
		ngroups = len(raw.Groups)
	}
	groups := make([]uint32, ngroups)
	copy(groups, raw.Groups[:ngroups])

	return NetBSDProc{
		Pid:             raw.Pid,
		Ppid:            raw.Ppid,
		Pgid:            raw.Pgid,
		Sid:             raw.Sid,
		TTYDev:          raw.Tdev,
		HasTTY:          raw.Tdev != netbsdNoDev,
		SigPending:      uint64(raw.Siglist[0]),
		SigBlocked:      uint64(raw.Sigmask[0]),
		SigIgnored:      uint64(raw.Sigignore[0]),
		SigCaught:       uint64(raw.Sigcatch[0]),
		RUID:            raw.Ruid,
		EUID:            raw.UID,
		SvUID:           uint32(raw.Svuid),
		RGID:            raw.Rgid,
		EGID:            raw.GID,
		SvGID:           uint32(raw.Svgid),
		Groups:          groups,
		VirtualPages:    raw.VmVsize,
		RSSPages:        int64(raw.VmRssize),
		TextPages:       int64(raw.VmTsize),
		DataPages:       int64(raw.VmDsize),
		StackPages:      int64(raw.VmSsize),
		Start:           tvSeconds(int64(raw.UstartSec), int64(raw.UstartUsec)),
		UserTime:        tvSeconds(int64(raw.UutimeSec), int64(raw.UutimeUsec)),
		SystemTime:      tvSeconds(int64(raw.UstimeSec), int64(raw.UstimeUsec)),
		ChildUserTime:   tvSeconds(int64(raw.UctimeSec), int64(raw.UctimeUsec)),
		ChildSystemTime: tvSeconds(int64(raw.UctimeSec), int64(raw.UctimeUsec)),
		State:           raw.Stat,
		Nice:            raw.Nice,
		Comm:            cstring(raw.Comm[:]),
		NumThreads:      int32(raw.Nlwps),
	}, nil
}

// DecodeNetBSDProcs decodes a multi-record result buffer.
func DecodeNetBSDProcs(buf []byte) ([]NetBSDProc, error) {
	n, err := checkBufferMultiple("netbsd proc2", len(buf), NetBSDProc2Size)
	if err != nil {
		return nil, err
	}

	procs := make([]NetBSDProc, 0, n)
	for i := 0; i < n; i++ {
		p, err := DecodeNetBSDProc(buf[i*NetBSDProc2Size : (i+1)*NetBSDProc2Size])
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// NetBSDStatusName maps a p_stat code to the portable status name.
func NetBSDStatusName(state int8) string {
	switch state {
	case 1:
		return "idle"
	case 2:
		return "running"
	case 3, 4:
		return "stopped"
	case 5:
		return "zombie"
	case 6:
		return "dead"
	}
	return "?"
}
