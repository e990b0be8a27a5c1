// Package wal implements an append-only, checksum-verified write-ahead log:
// segment files on disk, a single-in-flight-record writer, and a two-pass
// recovery scan. It deliberately knows nothing about pages, tables, or any
// other storage layout — callers hand it opaque payloads and get back
// locations, and recovery hands payloads back out through handlers the
// caller supplies.
package wal

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config configures a Context at Init time.
type Config struct {
	// Dir is the directory holding segment files. Created if absent.
	Dir string
	// SegmentSize is the fixed size of every segment file, in bytes. Must be
	// at least large enough for an empty record (header plus CRC); records
	// that do not fit in one segment are rejected by BeginRecord. Defaults to
	// DefaultSegmentSize when zero.
	SegmentSize uint32
	// Logger receives structured diagnostics. Defaults to logrus.StandardLogger().
	Logger *logrus.Logger
	// Cache, when non-nil, enables a read-through cache in front of
	// ReadRecord. The recovery scan does not use it. See NewCache.
	Cache *Cache
}

// Context is the public handle to one open write-ahead log. It is not safe
// for concurrent use by multiple goroutines without external synchronization
// of BeginRecord/EndRecord pairs — spec.md models the engine as single-writer
// by construction. Each method takes an internal mutex, so individual calls
// do not race, but a BeginRecord/EndRecord pair is not atomic.
type Context struct {
	mu sync.Mutex

	dir         string
	segmentSize uint32
	sm          *segmentManager
	lastWrite   Location
	inFlight    *recordBuffer
	cache       *Cache
	log         *logrus.Entry
	closed      bool
}

// Init opens (creating if necessary) the WAL directory described by cfg and
// returns a ready-to-use Context. If segment files already exist, the newest
// one is reopened as the active segment, positioned just past its last valid
// record (found by scanSegmentTail, not from the file length); callers that
// need recovery should run Recover before issuing new writes.
func Init(cfg Config) (*Context, error) {
	if cfg.Dir == "" {
		return nil, newErr(KindInvalidArgument, "Init", nil)
	}
	segSize := cfg.SegmentSize
	if segSize == 0 {
		segSize = DefaultSegmentSize
	}
	if segSize < uint32(headerSize+crcSize) {
		return nil, newErr(KindInvalidArgument, "Init", nil)
	}

	if err := openOrCreateDirectory(cfg.Dir); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "wal")

	sm := newSegmentManager(cfg.Dir, segSize, entry)

	nums, err := discoverSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	c := &Context{
		dir:         cfg.Dir,
		segmentSize: segSize,
		sm:          sm,
		cache:       cfg.Cache,
		log:         entry,
	}

	if len(nums) == 0 {
		if err := sm.ensureCurrent(); err != nil {
			return nil, err
		}
		entry.Info("[Init] new WAL directory initialized")
		return c, nil
	}

	last := nums[len(nums)-1]
	seg, err := sm.allocateSegment(last)
	if err != nil {
		return nil, err
	}
	size, tail, err := scanSegmentTail(seg.file, last, segSize)
	if err != nil {
		seg.file.Close()
		return nil, err
	}
	seg.offset = size
	sm.current = seg
	sm.nextNum = last + 1
	c.lastWrite = tail

	entry.WithFields(logrus.Fields{
		"segments":     len(nums),
		"activeOffset": seg.offset,
	}).Info("[Init] reopened existing WAL directory")

	return c, nil
}

// scanSegmentTail walks every well-formed record from the start of f to find
// the true end of written data and the location of the last record seen,
// since the file itself is always preallocated to segmentSize and so can't
// be used to infer either from its length alone.
func scanSegmentTail(f *os.File, segNum uint32, segmentSize uint32) (uint32, Location, error) {
	var offset uint32
	var lastLoc Location
	hdr := make([]byte, headerSize)
	for {
		if offset+uint32(headerSize) > segmentSize {
			break
		}
		n, err := f.ReadAt(hdr, int64(offset))
		if err == io.EOF && n < headerSize {
			break
		}
		if err != nil && err != io.EOF {
			return 0, Location{}, newErr(KindIoError, "ScanSegmentTail", err)
		}
		h := decodeHeader(hdr)
		if h.TotalLen == 0 || !h.Type.Valid() || h.TotalLen != recordTotalLen(int(h.DataLen)) {
			break
		}
		if offset+h.TotalLen > segmentSize {
			break
		}
		rec := make([]byte, h.TotalLen)
		if _, err := f.ReadAt(rec, int64(offset)); err != nil {
			break
		}
		if checksum(rec[:headerSize+int(h.DataLen)]) != decodeUint32(rec[headerSize+int(h.DataLen):]) {
			break
		}
		lastLoc = Location{Segment: segNum, Offset: offset}
		offset += h.TotalLen
	}
	return offset, lastLoc, nil
}

func decodeUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Shutdown flushes and closes every open segment handle. The Context must
// not be used afterward.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.sm.current != nil {
		if err := c.sm.current.file.Sync(); err != nil {
			c.log.WithError(err).Warn("[Shutdown] final sync failed")
		}
	}
	err := c.sm.close()
	c.closed = true
	if c.cache != nil {
		c.cache.Close()
	}
	c.log.Info("[Shutdown] WAL context closed")
	return err
}

// ReadRecord reads back the record at loc, validating its header and CRC.
// It returns the record's type, transaction id, and payload.
func (c *Context) ReadRecord(loc Location) (RecordType, uint32, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0, nil, newErr(KindNotInitialized, "ReadRecord", nil)
	}
	if c.cache != nil {
		if typ, xid, payload, ok := c.cache.get(loc); ok {
			return typ, xid, payload, nil
		}
	}

	f, owned, err := c.sm.openForRead(loc.Segment)
	if err != nil {
		return 0, 0, nil, err
	}
	if owned {
		defer f.Close()
	}

	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, int64(loc.Offset)); err != nil {
		return 0, 0, nil, newErr(KindCorruption, "ReadRecord", err)
	}
	h := decodeHeader(hdr)
	if !h.Type.Valid() || h.TotalLen < uint32(headerSize+crcSize) || h.TotalLen != recordTotalLen(int(h.DataLen)) {
		return 0, 0, nil, newErr(KindCorruption, "ReadRecord", nil)
	}

	rec := make([]byte, h.TotalLen)
	if _, err := f.ReadAt(rec, int64(loc.Offset)); err != nil {
		return 0, 0, nil, newErr(KindCorruption, "ReadRecord", err)
	}
	payload := rec[headerSize : headerSize+int(h.DataLen)]
	wantCRC := decodeUint32(rec[headerSize+int(h.DataLen):])
	if checksum(rec[:headerSize+int(h.DataLen)]) != wantCRC {
		return 0, 0, nil, newErr(KindCorruption, "ReadRecord", nil)
	}

	if c.cache != nil {
		c.cache.put(loc, h.Type, h.Xid, payload)
	}
	return h.Type, h.Xid, payload, nil
}

// LastWriteLocation returns the location most recently returned by
// EndRecord. Before the first EndRecord it is the location of the last valid
// record Init found in the newest existing segment, or the zero Location if
// there was none.
func (c *Context) LastWriteLocation() Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWrite
}
