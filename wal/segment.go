package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// segmentState mirrors spec.md's Empty -> Active -> Full -> Archived
// lifecycle. Only one segment is ever Active at a time.
type segmentState int

const (
	segmentEmpty segmentState = iota
	segmentActive
	segmentFull
	segmentArchived
)

// segment owns one fixed-size on-disk segment file.
type segment struct {
	num     uint32
	path    string
	file    *os.File
	offset  uint32 // next byte position where a header may begin
	state   segmentState
}

// segmentFilename derives the three 8-hex-digit fields from a segment
// number: hi = n >> 32, mid = (n >> 16) & 0xFFFF, lo = n & 0xFFFF, computed
// via shifts on a widened uint64 (per spec.md's design note fixing the
// original's `n / 0xFFFFFFFF` arithmetic bug). With a 32-bit counter hi is
// always zero. The low field equals the segment's true number only below
// 65536; from 65536 up the number is split across mid and lo, and
// parseSegmentFilename, which reads only the low field, does not recover it.
func segmentFilename(n uint32) string {
	wide := uint64(n)
	hi := wide >> 32
	mid := (wide >> 16) & 0xFFFF
	lo := wide & 0xFFFF
	return fmt.Sprintf("%08X_%08X_%08X", hi, mid, lo)
}

// parseSegmentFilename parses a filename of the documented three-hex-field
// shape and returns the segment number encoded in its low field. It accepts
// any separator between fields and any case, per spec.md §6's requirement
// to "accept any filename that parses as three hex fields."
func parseSegmentFilename(name string) (uint32, bool) {
	fields := splitHexFields(name)
	if len(fields) != 3 {
		return 0, false
	}
	lo, err := strconv.ParseUint(fields[2], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(lo), true
}

// splitHexFields extracts exactly the hex runs from name, in order,
// tolerating any non-hex separator (underscore, dash, dot). Fields with no
// separator between them merge into a single run.
func splitHexFields(name string) []string {
	var fields []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range name {
		if isHexDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return fields
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// segmentManager owns on-disk segment files: allocation, preallocation,
// rollover, and read-back. It is not exported; wal.Context is the public
// handle that embeds one.
type segmentManager struct {
	dir         string
	segmentSize uint32
	current     *segment
	nextNum     uint32 // segment numbers are dense starting at 1; 0 means "none"
	log         *logrus.Entry
}

func newSegmentManager(dir string, segmentSize uint32, log *logrus.Entry) *segmentManager {
	return &segmentManager{dir: dir, segmentSize: segmentSize, log: log}
}

// openOrCreateDirectory ensures dir exists and is a directory.
func openOrCreateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return newErr(KindDirectoryUnavailable, "OpenOrCreateDirectory",
				fmt.Errorf("%s exists and is not a directory", dir))
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return newErr(KindDirectoryUnavailable, "OpenOrCreateDirectory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newErr(KindDirectoryUnavailable, "OpenOrCreateDirectory", err)
	}
	return nil
}

// allocateSegment creates (or reopens) the file for segment number n, opens
// it read/write, and preallocates exactly size bytes. State transitions
// Empty -> Active.
func (sm *segmentManager) allocateSegment(n uint32) (*segment, error) {
	path := filepath.Join(sm.dir, segmentFilename(n))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, newErr(KindIoError, "AllocateSegment", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newErr(KindIoError, "AllocateSegment", err)
	}

	offset := uint32(0)
	if info.Size() >= int64(sm.segmentSize) {
		// Reused from a prior run (e.g. recovery re-opening the last
		// segment); preallocation already happened, don't re-extend.
	} else if err := preallocate(f, int64(sm.segmentSize)); err != nil {
		f.Close()
		return nil, newErr(KindIoError, "AllocateSegment", err)
	}

	sm.log.WithFields(logrus.Fields{
		"segment": n,
		"size":    humanize.Bytes(uint64(sm.segmentSize)),
	}).Debug("[Segment] allocated")

	return &segment{num: n, path: path, file: f, offset: offset, state: segmentActive}, nil
}

// ensureCurrent allocates segment 1 as the initial active segment if none
// exists yet (fresh WAL directory).
func (sm *segmentManager) ensureCurrent() error {
	if sm.current != nil {
		return nil
	}
	if sm.nextNum == 0 {
		sm.nextNum = 1
	}
	seg, err := sm.allocateSegment(sm.nextNum)
	if err != nil {
		return err
	}
	sm.current = seg
	sm.nextNum++
	return nil
}

// rolloverIfNeeded marks the current segment Full and allocates the next
// one if recordSize would not fit in the remaining space.
func (sm *segmentManager) rolloverIfNeeded(recordSize uint32) error {
	if sm.current == nil {
		if err := sm.ensureCurrent(); err != nil {
			return err
		}
	}
	if sm.current.offset+recordSize <= sm.segmentSize {
		return nil
	}

	sm.current.state = segmentFull
	full := sm.current
	if err := full.file.Close(); err != nil {
		return newErr(KindIoError, "RolloverIfNeeded", err)
	}
	sm.log.WithField("segment", full.num).Debug("[Segment] sealed full segment")

	next, err := sm.allocateSegment(sm.nextNum)
	if err != nil {
		return err
	}
	sm.current = next
	sm.nextNum++
	return nil
}

// openForRead returns a read-only handle to segment n. If n is the current
// active segment, its handle is reused rather than opening a second fd.
func (sm *segmentManager) openForRead(n uint32) (*os.File, bool, error) {
	if sm.current != nil && sm.current.num == n {
		return sm.current.file, false, nil
	}
	path := filepath.Join(sm.dir, segmentFilename(n))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, newErr(KindNotFound, "OpenForRead", err)
		}
		return nil, false, newErr(KindIoError, "OpenForRead", err)
	}
	return f, true, nil
}

// discoverSegments enumerates wal_dir and returns the sorted list of
// segment numbers found there, per spec.md Phase R1.
func discoverSegments(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, newErr(KindIoError, "DiscoverSegments", err)
	}
	var nums []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := parseSegmentFilename(e.Name()); ok {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums, nil
}

func (sm *segmentManager) close() error {
	if sm.current == nil {
		return nil
	}
	err := sm.current.file.Close()
	sm.current = nil
	if err != nil {
		return newErr(KindIoError, "Shutdown", err)
	}
	return nil
}
