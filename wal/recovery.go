package wal

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Handler is registered per RecordType and applies one redone record's
// effect to whatever state the caller owns. Handlers for control record
// types (Null, Checkpoint, XactCommit, XactAbort) are never consulted —
// those types are recovery-internal.
//
// A handler returning false aborts recovery with KindHandlerFailed, per
// the R4 dispatch contract.
type Handler func(header Header, payload []byte) bool

// RecoveryStats summarizes one Recover call: transactions are counted as
// Committed/Aborted/Incomplete, data-bearing records as Applied/Skipped.
type RecoveryStats struct {
	SegmentsProcessed      int
	RecordsProcessed       int
	BytesProcessed         int64
	RecordsApplied         int
	RecordsSkipped         int
	CommittedTransactions  int
	AbortedTransactions    int
	IncompleteTransactions int
	CheckpointLocation     Location
	Corrupted              bool
	CorruptionLocation     Location
	Elapsed                time.Duration
}

type scannedRecord struct {
	loc     Location
	header  Header
	payload []byte
}

// checkpointOrigin distinguishes a Checkpoint record written by a caller's
// explicit Checkpoint() call from one written by Recover's own R5 step.
// Only the latter is safe to use as a start anchor for a later recovery:
// it is the one case where everything before it is known to have already
// been redone by this engine, rather than merely flushed by the caller at
// some arbitrary point in an in-progress transaction stream.
type checkpointOrigin byte

const (
	checkpointOriginUser     checkpointOrigin = 0
	checkpointOriginRecovery checkpointOrigin = 1
)

// writeCheckpointLocked appends a Checkpoint record tagged with origin.
// Callable with c.mu already held.
func (c *Context) writeCheckpointLocked(origin checkpointOrigin) (Location, error) {
	slot, err := c.beginRecordLocked(RecordCheckpoint, 0, 1)
	if err != nil {
		return Location{}, err
	}
	slot.Bytes()[0] = byte(origin)
	return c.endRecordLocked()
}

// checkpointLocked is Recover's R5 step, callable while c.mu is already
// held (Recover holds it for the whole R1-R5 sequence). The checkpoint it
// writes is tagged as recovery-origin so a later Recover call can anchor to
// it; Checkpoint (record.go) tags its own writes as user-origin precisely
// so they are never mistaken for that anchor.
func (c *Context) checkpointLocked() error {
	loc, err := c.writeCheckpointLocked(checkpointOriginRecovery)
	if err != nil {
		return err
	}
	if err := c.sm.current.file.Sync(); err != nil {
		return newErr(KindIoError, "Checkpoint", err)
	}
	c.log.WithField("location", loc.String()).Info("[Checkpoint] written")
	return nil
}

// Recover performs the R1-R5 recovery sequence: discover segments bounded
// by endLocation, scan validating every header and CRC, locate the most
// recent recovery-origin checkpoint as the start anchor, dispatch every
// committed record from that anchor onward to the matching handler, and
// finish by writing a fresh recovery-origin checkpoint so a second Recover
// call over the same, unchanged log applies nothing new.
//
// endLocation bounds how far the scan runs: the zero Location means
// recover the entire log, matching the original engine's {0,0} convention
// for "no upper bound." A non-zero endLocation recovers only records
// strictly before it, for replaying a log up to a known-good point; such a
// bounded run writes no recovery-origin checkpoint, since records at or
// after endLocation have not been redone.
func (c *Context) Recover(endLocation Location, handlers map[RecordType]Handler) (*RecoveryStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, newErr(KindNotInitialized, "Recover", nil)
	}

	start := time.Now()
	lastProgress := start

	// R1: segment discovery, bounded by endLocation when one is given.
	nums, err := discoverSegments(c.dir)
	if err != nil {
		return nil, err
	}

	stats := &RecoveryStats{}
	bounded := !endLocation.IsZero()

	// Full forward scan of every valid record up to the bound. Running out
	// of well-formed records because the rest of a segment is unwritten
	// preallocated space is the ordinary end of the log. A record whose
	// header is nonsense or whose CRC fails is different: that is
	// corruption, and the scan stops there and reports it rather than
	// silently treating the rest of the log as absent.
	var all []scannedRecord
scan:
	for _, n := range nums {
		if bounded && n > endLocation.Segment {
			break scan
		}
		f, owned, err := c.sm.openForRead(n)
		if err != nil {
			return nil, err
		}
		recs, corruptLoc, scanErr := scanValidRecords(f, n, c.segmentSize)
		if owned {
			f.Close()
		}
		if scanErr != nil {
			return nil, scanErr
		}
		stats.SegmentsProcessed++

		for _, r := range recs {
			if bounded && !r.loc.Before(endLocation) {
				break scan
			}
			all = append(all, r)
			stats.RecordsProcessed++
			stats.BytesProcessed += int64(r.header.TotalLen)
		}

		if corruptLoc != nil {
			stats.Corrupted = true
			stats.CorruptionLocation = *corruptLoc
			break scan
		}

		if time.Since(lastProgress) >= 5*time.Second {
			c.log.WithFields(logrus.Fields{
				"segmentsScanned": n,
				"recordsScanned":  stats.RecordsProcessed,
			}).Info("[Recovery] scanning")
			lastProgress = time.Now()
		}
	}

	// R2: start anchor. Only a recovery-origin checkpoint — one this engine
	// itself wrote after a prior, successful Recover — is trustworthy as a
	// bound on replay distance: everything before it is already reflected
	// in whatever state that prior recovery applied. A checkpoint the
	// caller wrote explicitly mid-stream carries no such guarantee, so it
	// is never used as an anchor; absent any recovery-origin checkpoint,
	// the anchor is the very start of the log.
	anchor := Location{Segment: 1, Offset: 0}
	for _, r := range all {
		if r.header.Type == RecordCheckpoint && len(r.payload) >= 1 &&
			checkpointOrigin(r.payload[0]) == checkpointOriginRecovery {
			anchor = r.loc
		}
	}
	stats.CheckpointLocation = anchor

	// R3: transaction map, built only over records from the anchor forward —
	// anything before it is already reflected in whatever state a prior
	// recovery applied and must not be re-evaluated.
	var tail []scannedRecord
	for _, r := range all {
		if anchor.Before(r.loc) || anchor == r.loc {
			tail = append(tail, r)
		}
	}

	committed := make(map[uint32]bool)
	aborted := make(map[uint32]bool)
	seen := make(map[uint32]bool)
	for _, r := range tail {
		if r.header.Xid == 0 {
			continue
		}
		seen[r.header.Xid] = true
		switch r.header.Type {
		case RecordXactCommit:
			committed[r.header.Xid] = true
		case RecordXactAbort:
			aborted[r.header.Xid] = true
		}
	}
	for xid := range committed {
		stats.CommittedTransactions++
		delete(seen, xid)
	}
	for xid := range aborted {
		stats.AbortedTransactions++
		delete(seen, xid)
	}
	stats.IncompleteTransactions = len(seen) // never reached Commit or Abort before the scan ended

	// R4: redo, in log order, from the anchor forward. Records belonging to
	// a transaction that never reached XactCommit are skipped rather than
	// undone — since this pass never speculatively applies anything, there
	// is nothing to undo.
	for _, r := range tail {
		if r.header.Type.isControl() {
			continue
		}
		if r.header.Xid != 0 && !committed[r.header.Xid] {
			stats.RecordsSkipped++
			continue
		}
		h := handlers[r.header.Type]
		if h == nil {
			continue
		}
		if !h(r.header, r.payload) {
			return stats, newErr(KindHandlerFailed, "Recover", nil)
		}
		stats.RecordsApplied++
	}

	// R5: mark recovery complete with a fresh recovery-origin checkpoint,
	// unless corruption was found — a fresh checkpoint past a corrupted
	// record would make the corruption unreachable on the next recovery
	// pass — or the run was bounded, since the checkpoint lands at the end
	// of the log, past records this run did not redo.
	if stats.Corrupted {
		stats.Elapsed = time.Since(start)
		c.log.WithField("location", stats.CorruptionLocation.String()).
			Warn("[Recovery] stopped at corrupted record")
		return stats, newErr(KindCorruption, "Recover", nil)
	}
	if !bounded {
		if err := c.checkpointLocked(); err != nil {
			return stats, err
		}
	}

	stats.Elapsed = time.Since(start)
	c.log.WithFields(logrus.Fields{
		"segmentsProcessed": stats.SegmentsProcessed,
		"recordsProcessed":  stats.RecordsProcessed,
		"bytesProcessed":    stats.BytesProcessed,
		"committed":         stats.CommittedTransactions,
		"aborted":           stats.AbortedTransactions,
		"incomplete":        stats.IncompleteTransactions,
		"applied":           stats.RecordsApplied,
		"skipped":           stats.RecordsSkipped,
		"elapsed":           stats.Elapsed.String(),
	}).Info("[Recovery] complete")

	return stats, nil
}

// scanValidRecords walks every well-formed, checksum-valid record in f
// starting at offset 0. It returns the records found plus, if it stopped
// because of actual corruption rather than simply running off the end of
// written data, the location of the corrupt record.
//
// A header of all zeros (total_len == 0) is read as unwritten preallocated
// space — the ordinary end of this segment's data. Anything else that
// fails to parse as a valid header, or whose CRC doesn't match, is
// corruption.
func scanValidRecords(f interface {
	ReadAt(b []byte, off int64) (int, error)
}, segNum uint32, segmentSize uint32) ([]scannedRecord, *Location, error) {
	var out []scannedRecord
	var offset uint32
	hdr := make([]byte, headerSize)
	for offset+uint32(headerSize) <= segmentSize {
		if _, err := f.ReadAt(hdr, int64(offset)); err != nil {
			break
		}
		h := decodeHeader(hdr)
		if h.TotalLen == 0 {
			break
		}
		loc := Location{Segment: segNum, Offset: offset}
		if !h.Type.Valid() || h.TotalLen < uint32(headerSize+crcSize) || h.TotalLen != recordTotalLen(int(h.DataLen)) || offset+h.TotalLen > segmentSize {
			return out, &loc, nil
		}
		rec := make([]byte, h.TotalLen)
		if _, err := f.ReadAt(rec, int64(offset)); err != nil {
			return out, &loc, nil
		}
		wantCRC := decodeUint32(rec[headerSize+int(h.DataLen):])
		if checksum(rec[:headerSize+int(h.DataLen)]) != wantCRC {
			return out, &loc, nil
		}
		out = append(out, scannedRecord{
			loc:     loc,
			header:  h,
			payload: rec[headerSize : headerSize+int(h.DataLen)],
		})
		offset += h.TotalLen
	}
	return out, nil, nil
}
