// Package kinfo decodes the fixed-layout process records returned by the
// sysctl interfaces of FreeBSD, OpenBSD and NetBSD. The decoders are
// pure functions over byte buffers; callers own the sysctl reads.
//
// Layouts are the 64-bit little-endian ones. Every decoder validates the
// kernel-reported length against the expected record size before reading
// a single field; a kernel running a different struct revision fails
// loudly instead of yielding garbage.
package kinfo

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// cstring returns the bytes before the first NUL, as a string.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// tvSeconds converts a seconds/microseconds pair to float seconds.
func tvSeconds(sec int64, usec int64) float64 {
	return float64(sec) + float64(usec)/1e6
}

func checkRecordSize(what string, got, want int) error {
	if got != want {
		return errors.Errorf("kinfo: %s record is %d bytes, want %d", what, got, want)
	}
	return nil
}

func checkBufferMultiple(what string, length, size int) (int, error) {
	if length%size != 0 {
		return 0, errors.Errorf("kinfo: %s buffer of %d bytes is not a multiple of %d", what, length, size)
	}
	return length / size, nil
}

// ParseArgs splits the NUL-delimited buffer returned by the argument and
// environment sysctls into strings. A trailing NUL does not produce an
// empty final element.
func ParseArgs(buf []byte) []string {
	if len(buf) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(buf), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}

// ParseEnv decodes a NUL-delimited environment buffer into a map,
// dropping entries without an '='.
func ParseEnv(buf []byte) map[string]string {
	env := make(map[string]string)
	for _, entry := range ParseArgs(buf) {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env
}
