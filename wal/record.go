package wal

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// recordBuffer is the engine's sole in-flight record buffer. At most one
// exists at a time; BeginRecord replaces it (abandoning whatever was there
// before) and EndRecord consumes it.
type recordBuffer struct {
	buf     []byte // header || payload || crc, fully sized up front
	dataLen uint16
}

// PayloadSlot is a scoped loan of the in-flight record's payload region.
// Its validity ends at the matching EndRecord call, or earlier if a new
// BeginRecord abandons it first; callers must not retain the slice returned
// by Bytes() past that point. There is no lifetime system to enforce this,
// so the slot tracks the exact recordBuffer it was loaned from and refuses
// to hand out bytes once that buffer is no longer the one in flight —
// whether because it was finalized by EndRecord or abandoned by a
// subsequent BeginRecord.
type PayloadSlot struct {
	ctx  *Context
	buf  *recordBuffer
	data []byte
}

// Bytes returns the mutable payload region to write into. It returns nil if
// the record this slot was loaned for has already been finalized or
// abandoned.
func (p *PayloadSlot) Bytes() []byte {
	if p.ctx == nil || p.buf == nil || p.ctx.inFlight != p.buf {
		return nil
	}
	return p.data
}

func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.TotalLen)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Type))
	binary.LittleEndian.PutUint32(buf[8:12], h.Xid)
	binary.LittleEndian.PutUint32(buf[12:16], h.Prev.Segment)
	binary.LittleEndian.PutUint32(buf[16:20], h.Prev.Offset)
	binary.LittleEndian.PutUint16(buf[20:22], h.DataLen)
	buf[22] = 0
	buf[23] = 0
}

func decodeHeader(buf []byte) Header {
	return Header{
		TotalLen: binary.LittleEndian.Uint32(buf[0:4]),
		Type:     RecordType(binary.LittleEndian.Uint32(buf[4:8])),
		Xid:      binary.LittleEndian.Uint32(buf[8:12]),
		Prev: Location{
			Segment: binary.LittleEndian.Uint32(buf[12:16]),
			Offset:  binary.LittleEndian.Uint32(buf[16:20]),
		},
		DataLen: binary.LittleEndian.Uint16(buf[20:22]),
	}
}

// BeginRecord reserves the engine's single in-flight buffer, fills in its
// header, and returns a payload slot of exactly dataLen bytes for the
// caller to write into in place.
//
// If a previous BeginRecord was never matched by EndRecord, its buffer is
// discarded — only one record may be under construction at a time. This is
// the diagnostic hazard flagged by spec.md §4.2; this implementation logs a
// warning when it happens.
func (c *Context) BeginRecord(typ RecordType, xid uint32, dataLen uint16) (*PayloadSlot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginRecordLocked(typ, xid, dataLen)
}

// beginRecordLocked is BeginRecord's body, callable with c.mu already held.
func (c *Context) beginRecordLocked(typ RecordType, xid uint32, dataLen uint16) (*PayloadSlot, error) {
	if c.closed {
		return nil, newErr(KindNotInitialized, "BeginRecord", nil)
	}
	if !typ.Valid() {
		return nil, newErr(KindInvalidArgument, "BeginRecord", nil)
	}
	if int(dataLen) > maxDataLen {
		return nil, newErr(KindPayloadTooLarge, "BeginRecord", nil)
	}
	total := recordTotalLen(int(dataLen))
	if total > c.segmentSize {
		return nil, newErr(KindPayloadTooLarge, "BeginRecord", nil)
	}

	if c.inFlight != nil {
		c.log.Warn("[Writer] BeginRecord called with a record already in flight — abandoning it")
	}

	raw := make([]byte, total)
	encodeHeader(raw, Header{
		TotalLen: total,
		Type:     typ,
		Xid:      xid,
		Prev:     c.lastWrite,
		DataLen:  dataLen,
	})

	rb := &recordBuffer{buf: raw, dataLen: dataLen}
	c.inFlight = rb
	return &PayloadSlot{ctx: c, buf: rb, data: raw[headerSize : headerSize+int(dataLen)]}, nil
}

// EndRecord computes the record's CRC, rolls the segment over if needed,
// writes the record with a single contiguous write, and — only on success —
// advances current_offset and last_write_location.
func (c *Context) EndRecord() (Location, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endRecordLocked()
}

// endRecordLocked is EndRecord's body, callable with c.mu already held.
func (c *Context) endRecordLocked() (Location, error) {
	if c.closed {
		return Location{}, newErr(KindNotInitialized, "EndRecord", nil)
	}
	rb := c.inFlight
	if rb == nil {
		return Location{}, newErr(KindNoRecordInFlight, "EndRecord", nil)
	}
	// From here on the buffer is consumed regardless of outcome: on
	// failure the caller must re-Begin, per spec.md §4.2.
	c.inFlight = nil

	crcRegion := rb.buf[:headerSize+int(rb.dataLen)]
	crc := checksum(crcRegion)
	binary.LittleEndian.PutUint32(rb.buf[headerSize+int(rb.dataLen):], crc)

	total := uint32(len(rb.buf))
	if err := c.sm.rolloverIfNeeded(total); err != nil {
		return Location{}, err
	}

	seg := c.sm.current
	n, err := seg.file.WriteAt(rb.buf, int64(seg.offset))
	if err != nil || n != len(rb.buf) {
		if err == nil {
			err = errShortWrite
		}
		return Location{}, newErr(KindIoError, "EndRecord", err)
	}

	loc := Location{Segment: seg.num, Offset: seg.offset}
	seg.offset += total
	c.lastWrite = loc

	c.log.WithFields(logrus.Fields{
		"location": loc.String(),
		"type":     RecordType(binary.LittleEndian.Uint32(rb.buf[4:8])).String(),
	}).Trace("[Writer] record written")

	return loc, nil
}

var errShortWrite = shortWriteError{}

type shortWriteError struct{}

func (shortWriteError) Error() string { return "short write" }

// Flush issues a sync call against the active segment's file descriptor.
// When waitForSync is true it blocks for a full sync; when false it issues
// a data-only sync if the host provides one and falls back to a full sync
// otherwise. Per spec.md's preserved Open Question resolution, Flush(false)
// still always performs some sync call — it never returns before any
// durability guarantee.
func (c *Context) Flush(waitForSync bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newErr(KindNotInitialized, "Flush", nil)
	}
	if c.sm.current == nil {
		return newErr(KindIoError, "Flush", nil)
	}
	var err error
	if waitForSync {
		err = c.sm.current.file.Sync()
	} else {
		err = dataSync(c.sm.current.file)
	}
	if err != nil {
		return newErr(KindIoError, "Flush", err)
	}
	return nil
}

// Checkpoint atomically (from the caller's viewpoint) writes a Checkpoint
// record tagged as user-origin, then performs a blocking Flush. On success
// the checkpoint location is durable and will be findable by recovery — but,
// being user-origin rather than recovery-origin, it never anchors a future
// Recover call; see checkpointLocked for the counterpart that does.
func (c *Context) Checkpoint() error {
	c.mu.Lock()
	loc, err := c.writeCheckpointLocked(checkpointOriginUser)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if err := c.Flush(true); err != nil {
		return err
	}
	c.log.WithField("location", loc.String()).Info("[Checkpoint] written")
	return nil
}
