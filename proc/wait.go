package proc

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"golang.org/x/sys/unix"
)

// waitClock drives all wait-engine timing; swapped for a mock in tests.
var waitClock quartz.Clock = quartz.NewReal()

// newPollBackoff builds the adaptive polling schedule for processes we
// have no reap rights on: near-immediate at first, doubling toward a
// bounded ceiling.
func newPollBackoff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// waitStatusToExit converts a wait4 status into the exit status
// convention used here: non-negative for a normal exit code, negative
// for the terminating signal number.
func waitStatusToExit(ws unix.WaitStatus) int {
	if ws.Signaled() {
		return -int(ws.Signal())
	}
	return ws.ExitStatus()
}

// reapNonblock attempts a non-blocking reap of pid. isChild is false
// when pid is not a child of the calling process (no reap rights).
func reapNonblock(pid int32) (status int, reaped bool, isChild bool) {
	for {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(int(pid), &ws, unix.WNOHANG, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, false, !errors.Is(err, unix.ECHILD)
		}
		if wpid == 0 {
			return 0, false, true
		}
		return waitStatusToExit(ws), true, true
	}
}

// reapBlock blocks until pid is reaped. isChild is false when pid is not
// a child, in which case the caller must fall back to polling.
func reapBlock(pid int32) (status int, isChild bool) {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(int(pid), &ws, 0, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, false
		}
		return waitStatusToExit(ws), true
	}
}

// poll makes one non-blocking exit check, recording the exit status when
// the process turns out to have exited. Children are checked via the
// kernel reap primitive; foreign processes via the identity guard.
func (p *Process) poll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dead {
		return true
	}

	status, reaped, isChild := reapNonblock(p.pid)
	if isChild {
		if reaped {
			p.dead = true
			p.exitStatus = &status
			return true
		}
		return false
	}

	return !p.isRunningLocked()
}

// Wait blocks until the process exits or timeout elapses, and returns
// the exit status when one is available. Only direct children yield a
// status (ok=true); a negative status means the child was terminated by
// that signal. Foreign processes are detected by adaptive polling and
// yield ok=false. A negative timeout waits without deadline; on deadline
// expiry the error is a TimeoutExpiredError.
func (p *Process) Wait(timeout time.Duration) (status int, ok bool, err error) {
	if !p.IsRunning() {
		// Already known dead; checking up front also means the PID still
		// named the right process when we last looked, so a reap below
		// cannot land on a recycled PID.
		st, has := p.ExitStatus()
		return st, has, nil
	}

	start := waitClock.Now()

	if timeout < 0 {
		// No deadline: children can use the blocking reap primitive and
		// skip polling entirely.
		p.reapMu.Lock()
		st, isChild := reapBlock(p.pid)
		if isChild {
			p.mu.Lock()
			p.dead = true
			p.exitStatus = &st
			p.mu.Unlock()
			p.reapMu.Unlock()
			return st, true, nil
		}
		p.reapMu.Unlock()
	}

	eb := newPollBackoff()
	for {
		if p.poll() {
			st, has := p.ExitStatus()
			return st, has, nil
		}

		interval := eb.NextBackOff()
		if timeout >= 0 {
			remaining := timeout - waitClock.Since(start)
			if remaining <= 0 {
				return 0, false, &TimeoutExpiredError{Timeout: timeout, Pid: p.pid}
			}
			if interval > remaining/2 {
				interval = remaining / 2
			}
			if interval < time.Millisecond {
				interval = time.Millisecond
			}
		}

		timer := waitClock.NewTimer(interval)
		<-timer.C
	}
}

// WaitProcs waits for a set of processes to exit, multiplexing child
// reaps and foreign-process existence polls on one polling tick. It
// returns the partition of handles into exited ("gone") and still-alive
// sets; deadline expiry simply stops the wait early and returns the
// current partition, it never produces an error. A negative timeout
// waits until every process has exited.
//
// When callback is non-nil it fires synchronously, once per process,
// immediately after that process is determined to have exited and its
// exit status (if any) has been recorded.
func WaitProcs(procs []*Process, timeout time.Duration, callback func(*Process)) (gone, alive []*Process) {
	start := waitClock.Now()
	alive = append(alive, procs...)

	eb := newPollBackoff()
	for len(alive) > 0 {
		still := alive[:0]
		for _, p := range alive {
			if p.poll() {
				gone = append(gone, p)
				if callback != nil {
					callback(p)
				}
			} else {
				still = append(still, p)
			}
		}
		alive = still

		if len(alive) == 0 {
			break
		}

		interval := eb.NextBackOff()
		if timeout >= 0 {
			remaining := timeout - waitClock.Since(start)
			if remaining <= 0 {
				break
			}
			if interval > remaining/2 {
				interval = remaining / 2
			}
			if interval < time.Millisecond {
				interval = time.Millisecond
			}
		}

		timer := waitClock.NewTimer(interval)
		<-timer.C
	}

	return gone, alive
}
