//go:build freebsd || openbsd || netbsd

package proc

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// trimNul returns the bytes before the first NUL, as a string.
func trimNul(buf []byte) string {
	for i, c := range buf {
		if c == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// bsdRlimInfinity is the kernels' "no limit" sentinel, which differs
// from the portable RlimInfinity.
const bsdRlimInfinity = uint64(1)<<63 - 1

func fromBSDRlim(v uint64) uint64 {
	if v == bsdRlimInfinity {
		return RlimInfinity
	}
	return v
}

func toBSDRlim(v uint64) uint64 {
	if v == RlimInfinity {
		return bsdRlimInfinity
	}
	return v
}

// sysctlMib issues the raw sysctl syscall with a numeric MIB, for the
// nodes x/sys has no name-based path to (anonymous per-PID nodes, and
// writes). Returns the length the kernel produced, or would produce
// when old is nil.
func sysctlMib(mib []int32, old, newv []byte) (int, error) {
	var oldp, newp unsafe.Pointer
	oldlen := uintptr(len(old))
	if len(old) > 0 {
		oldp = unsafe.Pointer(&old[0])
	}
	if len(newv) > 0 {
		newp = unsafe.Pointer(&newv[0])
	}

	_, _, errno := unix.Syscall6(unix.SYS___SYSCTL,
		uintptr(unsafe.Pointer(&mib[0])), uintptr(len(mib)),
		uintptr(oldp), uintptr(unsafe.Pointer(&oldlen)),
		uintptr(newp), uintptr(len(newv)))
	if errno != 0 {
		return 0, errno
	}
	return int(oldlen), nil
}

// sysctlMibBytes reads a variable-length sysctl result, sizing from a
// probe call and retrying while the data outgrows the buffer.
func sysctlMibBytes(mib []int32) ([]byte, error) {
	for {
		n, err := sysctlMib(mib, nil, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}

		// Headroom for growth between the probe and the read.
		buf := make([]byte, n+n/8+64)
		m, err := sysctlMib(mib, buf, nil)
		if errors.Is(err, unix.ENOMEM) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:m], nil
	}
}
