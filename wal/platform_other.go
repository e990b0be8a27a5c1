//go:build !linux

package wal

import "os"

// preallocate grows f to exactly size bytes. Outside Linux (darwin, the
// BSDs, Windows) x/sys/unix offers no Fallocate, so this falls back
// directly to sparse preallocation via Truncate, matching the C source's
// non-Linux branch (`ftruncate_compat`).
func preallocate(f *os.File, size int64) error {
	return f.Truncate(size)
}

// dataSync has no data-only variant available portably on this build, so
// it just performs a full sync.
func dataSync(f *os.File) error {
	return f.Sync()
}
