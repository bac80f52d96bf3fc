//go:build openbsd

package sysinfo

import "golang.org/x/sys/unix"

func statfsCounts(path string) (bsize, blocks, bfree, bavail uint64, err error) {
	var fs unix.Statfs_t
	if err = unix.Statfs(path, &fs); err != nil {
		return 0, 0, 0, 0, err
	}
	avail := fs.F_bavail
	if avail < 0 {
		avail = 0
	}
	return uint64(fs.F_bsize), fs.F_blocks, fs.F_bfree, uint64(avail), nil
}
