package proc

import (
	"sync"

	"github.com/spf13/afero"
)

// Process-wide virtual-filesystem configuration. The path defaults to the
// conventional mount point and is read fresh at each call site, so it may
// be changed between accessor calls (but not during one). It only affects
// the Linux backend.

var (
	configMu   sync.RWMutex
	procfsPath = "/proc"

	// fsys is the filesystem the Linux backend reads through; tests
	// substitute an in-memory filesystem holding synthetic procfs trees.
	fsys afero.Fs = afero.NewOsFs()
)

// ProcFSPath returns the current procfs mount point.
func ProcFSPath() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return procfsPath
}

// SetProcFSPath overrides the procfs mount point. Safe to call only
// between accessor calls.
func SetProcFSPath(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	procfsPath = path
}

func procFS() afero.Fs {
	configMu.RLock()
	defer configMu.RUnlock()
	return fsys
}

func setProcFS(fs afero.Fs) {
	configMu.Lock()
	defer configMu.Unlock()
	fsys = fs
}
