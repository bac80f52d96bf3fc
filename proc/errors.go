// Package proc provides a uniform view of per-process operating system
// state across Linux, macOS, FreeBSD, OpenBSD and NetBSD.
//
// A Process handle pairs a PID with the kernel's creation time for that
// PID, so that a handle held across time can detect PID reuse and refuse
// to operate on an unrelated process that happens to have been assigned
// the same number.
package proc

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNotSupported is returned by accessors whose underlying primitive does
// not exist on the active platform. This is a permanent capability gap, not
// a transient failure.
var ErrNotSupported = errors.New("operation not supported on this platform")

// NoSuchProcessError reports that a PID does not currently resolve to a
// live process, including the case where the handle's PID has been reused
// by a different process.
type NoSuchProcessError struct {
	Pid int32
}

func (e *NoSuchProcessError) Error() string {
	return fmt.Sprintf("no such process (pid=%d)", e.Pid)
}

// ZombieProcessError reports that a process exists only as an
// exited-but-unreaped kernel record and the requested data cannot be
// produced for that state. It unwraps to NoSuchProcessError, so
// errors.As with a *NoSuchProcessError target matches it too.
type ZombieProcessError struct {
	Pid int32
}

func (e *ZombieProcessError) Error() string {
	return fmt.Sprintf("process is a zombie (pid=%d)", e.Pid)
}

func (e *ZombieProcessError) Unwrap() error {
	return &NoSuchProcessError{Pid: e.Pid}
}

// AccessDeniedError reports that the kernel refused permission for the
// requested operation on the target process.
type AccessDeniedError struct {
	Pid int32
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied (pid=%d)", e.Pid)
}

// TimeoutExpiredError reports that a bounded wait did not complete in time.
type TimeoutExpiredError struct {
	Timeout time.Duration
	Pid     int32
}

func (e *TimeoutExpiredError) Error() string {
	return fmt.Sprintf("timeout after %v (pid=%d)", e.Timeout, e.Pid)
}

// IsNoSuchProcess reports whether err is a NoSuchProcessError or a
// ZombieProcessError.
func IsNoSuchProcess(err error) bool {
	var nsp *NoSuchProcessError
	return errors.As(err, &nsp)
}

// IsZombieProcess reports whether err is a ZombieProcessError.
func IsZombieProcess(err error) bool {
	var zp *ZombieProcessError
	return errors.As(err, &zp)
}

// IsAccessDenied reports whether err is an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var ad *AccessDeniedError
	return errors.As(err, &ad)
}

// IsTimeoutExpired reports whether err is a TimeoutExpiredError.
func IsTimeoutExpired(err error) bool {
	var te *TimeoutExpiredError
	return errors.As(err, &te)
}

// isNoProcessErrno reports whether err is the raw kernel form of "the
// process is gone": ESRCH from syscalls, ENOENT from procfs reads.
func isNoProcessErrno(err error) bool {
	return errors.Is(err, unix.ESRCH) || errors.Is(err, unix.ENOENT)
}

// isPermissionErrno reports whether err is a raw kernel permission error.
func isPermissionErrno(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}

// translateError maps raw kernel errors onto the public taxonomy at the
// accessor boundary. Errors that are already part of the taxonomy pass
// through unchanged.
func translateError(pid int32, err error) error {
	if err == nil {
		return nil
	}

	var nsp *NoSuchProcessError
	var ad *AccessDeniedError
	if errors.As(err, &nsp) || errors.As(err, &ad) ||
		errors.Is(err, ErrNotSupported) {
		return err
	}

	switch {
	case isNoProcessErrno(err):
		return &NoSuchProcessError{Pid: pid}
	case isPermissionErrno(err):
		return &AccessDeniedError{Pid: pid}
	}

	return err
}
