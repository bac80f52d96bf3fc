//go:build netbsd

package sysinfo

// NetBSD replaced statfs with statvfs, which golang.org/x/sys does not
// wrap; filesystem usage is not offered there.
func statfsCounts(path string) (bsize, blocks, bfree, bavail uint64, err error) {
	return 0, 0, 0, 0, ErrNotSupported
}
