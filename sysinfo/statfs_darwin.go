//go:build darwin

package sysinfo

import "golang.org/x/sys/unix"

func statfsCounts(path string) (bsize, blocks, bfree, bavail uint64, err error) {
	var fs unix.Statfs_t
	if err = unix.Statfs(path, &fs); err != nil {
		return 0, 0, 0, 0, err
	}
	return uint64(fs.Bsize), fs.Blocks, fs.Bfree, fs.Bavail, nil
}
