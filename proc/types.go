package proc

import (
	"sort"
	"syscall"
)

// Status describes the kernel scheduling state of a process.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSleeping    Status = "sleeping"
	StatusDiskSleep   Status = "disk-sleep"
	StatusZombie      Status = "zombie"
	StatusStopped     Status = "stopped"
	StatusTracingStop Status = "tracing-stop"
	StatusDead        Status = "dead"
	StatusWakeKill    Status = "wake-kill"
	StatusWaking      Status = "waking"
	StatusParked      Status = "parked"
	StatusIdle        Status = "idle"
	StatusLocked      Status = "locked"
	StatusWaiting     Status = "waiting"
)

// Uids holds the real, effective and saved user IDs of a process.
type Uids struct {
	Real      uint32
	Effective uint32
	Saved     uint32
}

// Gids holds the real, effective and saved group IDs of a process.
type Gids struct {
	Real      uint32
	Effective uint32
	Saved     uint32
}

// CPUTimes holds accumulated CPU time, in seconds. Tick/timeval conversion
// happens in the backend decoders before this struct is constructed.
type CPUTimes struct {
	User           float64
	System         float64
	ChildrenUser   float64
	ChildrenSystem float64
}

// MemoryInfo holds memory usage in bytes. Page-to-byte conversion happens
// in the backend decoders. Fields a platform cannot report are zero:
// Shared and Text are absent on OpenBSD and NetBSD, Stack is absent on
// Linux and FreeBSD.
type MemoryInfo struct {
	RSS    uint64
	VMS    uint64
	Shared uint64
	Text   uint64
	Data   uint64
	Stack  uint64
}

// SignalMasks holds the per-process signal dispositions. Availability
// varies by platform: ProcessPending is Linux-only (the shared pending
// set), Pending and Blocked are absent on macOS.
type SignalMasks struct {
	ProcessPending []syscall.Signal
	Pending        []syscall.Signal
	Blocked        []syscall.Signal
	Ignored        []syscall.Signal
	Caught         []syscall.Signal
}

// ThreadInfo describes one kernel thread of a process.
type ThreadInfo struct {
	ID         int32
	UserTime   float64
	SystemTime float64
}

// OpenFile describes one regular file open in a process.
type OpenFile struct {
	Path     string
	Fd       int32
	Position int64
	Flags    int
}

// RlimInfinity is the portable "no limit" value.
const RlimInfinity = ^uint64(0)

// Rlimit holds one soft/hard resource limit pair.
//
// Atomic reports whether both values were captured by a single kernel
// call. NetBSD fetches the soft and hard limits with two separate sysctl
// reads, so a concurrent limit change there can be observed as a mix of
// the old and new pairs; the flag makes this visible to callers instead
// of pretending to an atomicity the kernel does not provide.
type Rlimit struct {
	Soft   uint64
	Hard   uint64
	Atomic bool
}

// PidEntry pairs a PID with its raw creation token, as captured by one
// enumeration pass.
type PidEntry struct {
	Pid        int32
	CreateTime float64
}

// expandSigBitmask converts a kernel signal bitmask into a sorted signal
// list. Bit 0 corresponds to signal 1; every supported kernel uses this
// representation, only the mask width varies.
func expandSigBitmask(mask uint64) []syscall.Signal {
	var sigs []syscall.Signal

	for sig := 1; mask != 0; sig++ {
		if mask&1 != 0 {
			sigs = append(sigs, syscall.Signal(sig))
		}
		mask >>= 1
	}

	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })
	return sigs
}
