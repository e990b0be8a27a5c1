//go:build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate grows f to exactly size bytes using the fastest mechanism the
// host offers. This mirrors original_source/src/core/storage/wal.c's
// "#ifdef __linux__ fallocate(...) #else ftruncate(...) #endif" — x/sys/unix
// exposes Fallocate and Fdatasync on Linux, which this build tag covers;
// every other platform gets platform_other.go's Truncate/Sync fallback.
func preallocate(f *os.File, size int64) error {
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err != nil {
		// Fast preallocation unavailable (e.g. the filesystem doesn't
		// support it).
		// Sparse preallocation via Truncate still satisfies the contract:
		// total length must be `size` after the call.
		return f.Truncate(size)
	}
	return nil
}

// dataSync flushes f's data without necessarily forcing metadata to disk,
// the distinction spec.md's Flush(wait_for_sync=false) leaves room for.
// Falls back to a full Sync if the host doesn't expose fdatasync.
func dataSync(f *os.File) error {
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return f.Sync()
	}
	return nil
}
