package proc

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// activeBackend is the process-wide capability set, chosen once from OS
// detection at startup and never replaced. newPlatformBackend is defined
// per platform in the build-tagged backend files.
var activeBackend Backend = newPlatformBackend()

// BackendName returns the name of the active platform backend.
func BackendName() string {
	return activeBackend.Name()
}

// Pids lists the PIDs currently known to the kernel. This is a racy,
// read-only enumeration: PIDs may vanish or appear before the caller
// acts on them.
func Pids() ([]int32, error) {
	return activeBackend.Pids()
}

// Processes returns handles for all live processes. Unlike
// ProcessesAvailable, an unreadable process surfaces as an
// AccessDeniedError instead of being silently dropped.
func Processes() ([]*Process, error) {
	return processesImpl(activeBackend, false)
}

// ProcessesAvailable returns handles for all processes whose creation
// token could be read, silently skipping those the caller lacks
// permission to inspect.
func ProcessesAvailable() ([]*Process, error) {
	return processesImpl(activeBackend, true)
}

func processesWithBackend(b Backend) ([]*Process, error) {
	return processesImpl(b, false)
}

// enumCache reuses handles across enumeration passes: as long as the
// live creation token matches, the same *Process is handed back, so
// equality and recorded exit status survive repeated listing.
var (
	enumCacheMu sync.Mutex
	enumCache   = map[int32]*Process{}
)

func processesImpl(b Backend, skipPermError bool) ([]*Process, error) {
	entries, err := b.PidCreateTimes(skipPermError)
	if err != nil {
		// Backends attach the offending pid where they know it; a raw
		// kernel error from a whole-table read carries none.
		return nil, translateError(-1, err)
	}

	seen := make(map[int32]bool, len(entries))
	procs := make([]*Process, 0, len(entries))

	for _, entry := range entries {
		seen[entry.Pid] = true

		enumCacheMu.Lock()
		cached, ok := enumCache[entry.Pid]
		enumCacheMu.Unlock()

		if ok && cached.backend == b && cached.createTime == entry.CreateTime {
			procs = append(procs, cached)
			continue
		}

		proc := newEnumeratedProcess(b, entry.Pid, entry.CreateTime)
		enumCacheMu.Lock()
		enumCache[entry.Pid] = proc
		enumCacheMu.Unlock()
		procs = append(procs, proc)
	}

	// Drop cache entries whose PIDs are gone.
	enumCacheMu.Lock()
	for pid := range enumCache {
		if !seen[pid] {
			delete(enumCache, pid)
		}
	}
	enumCacheMu.Unlock()

	return procs, nil
}

// PidExists reports whether pid currently resolves to a process. A
// permission error counts as existing.
func PidExists(pid int32) bool {
	if pid < 0 {
		return false
	}

	if pid == 0 {
		// Signal 0 cannot probe PID 0 portably; ask the backend.
		_, err := activeBackend.PidCreateTime(0)
		return err == nil || IsAccessDenied(translateError(0, err))
	}

	err := unix.Kill(int(pid), 0)
	switch {
	case err == nil:
		return true
	case errors.Is(err, unix.EPERM):
		return true
	default:
		return false
	}
}
