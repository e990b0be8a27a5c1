package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	c, err := Init(Config{Dir: dir, SegmentSize: 4096})
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown() })
	return c
}

// A record written then read back by location round-trips its type, xid,
// and payload bytes exactly.
func TestRoundTrip(t *testing.T) {
	c := testContext(t)

	payload := []byte("TELL users TO ADD RECORD WITH id = 1")
	slot, err := c.BeginRecord(RecordInsert, 7, uint16(len(payload)))
	require.NoError(t, err)
	copy(slot.Bytes(), payload)
	loc, err := c.EndRecord()
	require.NoError(t, err)

	typ, xid, got, err := c.ReadRecord(loc)
	require.NoError(t, err)
	require.Equal(t, RecordInsert, typ)
	require.EqualValues(t, 7, xid)
	require.Equal(t, payload, got)
}

// Flipping a single byte inside a committed record's payload must be
// caught as corruption on the next read, not silently accepted.
func TestCRCIntegrity(t *testing.T) {
	c := testContext(t)

	payload := []byte("TELL users TO REMOVE WHERE id = 1")
	slot, err := c.BeginRecord(RecordDelete, 1, uint16(len(payload)))
	require.NoError(t, err)
	copy(slot.Bytes(), payload)
	loc, err := c.EndRecord()
	require.NoError(t, err)

	seg := c.sm.current
	corrupt := make([]byte, 1)
	_, err = seg.file.ReadAt(corrupt, int64(loc.Offset)+int64(headerSize))
	require.NoError(t, err)
	corrupt[0] ^= 0xFF
	_, err = seg.file.WriteAt(corrupt, int64(loc.Offset)+int64(headerSize))
	require.NoError(t, err)

	_, _, _, err = c.ReadRecord(loc)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindCorruption, kind)
}

// A record too large to fit in the remaining space of the current segment
// forces a rollover to a new segment rather than splitting across two.
func TestSegmentRollover(t *testing.T) {
	c := testContext(t)

	payload := make([]byte, 64)
	var locs []Location
	for i := 0; i < 100; i++ {
		slot, err := c.BeginRecord(RecordInsert, uint32(i+1), uint16(len(payload)))
		require.NoError(t, err)
		copy(slot.Bytes(), payload)
		loc, err := c.EndRecord()
		require.NoError(t, err)
		locs = append(locs, loc)
	}

	var sawSecondSegment bool
	for _, l := range locs {
		if l.Segment == 2 {
			sawSecondSegment = true
		}
	}
	require.True(t, sawSecondSegment, "writing past one segment's capacity should roll over")

	for _, l := range locs {
		typ, _, got, err := c.ReadRecord(l)
		require.NoError(t, err)
		require.Equal(t, RecordInsert, typ)
		require.Len(t, got, len(payload))
	}
}

// prev_record forms a single global write-order chain across every record,
// independent of which transaction (xid) each record belongs to.
func TestOrderingChain(t *testing.T) {
	c := testContext(t)

	write := func(xid uint32) Location {
		slot, err := c.BeginRecord(RecordInsert, xid, 4)
		require.NoError(t, err)
		copy(slot.Bytes(), []byte("abcd"))
		loc, err := c.EndRecord()
		require.NoError(t, err)
		return loc
	}

	locA := write(1)
	locB := write(2) // different transaction, but still chained after locA

	_, _, _, err := c.ReadRecord(locB)
	require.NoError(t, err)

	hdr := make([]byte, headerSize)
	seg := c.sm.current
	_, err = seg.file.ReadAt(hdr, int64(locB.Offset))
	require.NoError(t, err)
	h := decodeHeader(hdr)
	require.Equal(t, locA, h.Prev)
}

// A second BeginRecord before the first's EndRecord abandons the first
// slot. The abandoned slot's Bytes() must report that by returning nil,
// not by continuing to hand out its now-abandoned backing array.
func TestPayloadSlotAbandonedByNextBeginRecord(t *testing.T) {
	c := testContext(t)

	first, err := c.BeginRecord(RecordInsert, 1, 4)
	require.NoError(t, err)
	require.NotNil(t, first.Bytes())

	_, err = c.BeginRecord(RecordInsert, 2, 4)
	require.NoError(t, err)

	require.Nil(t, first.Bytes())
}

// A slot's Bytes() also returns nil after its own EndRecord has finalized
// it — the loan ends there even without a competing BeginRecord.
func TestPayloadSlotInvalidatedByEndRecord(t *testing.T) {
	c := testContext(t)

	slot, err := c.BeginRecord(RecordInsert, 1, 4)
	require.NoError(t, err)
	copy(slot.Bytes(), []byte("abcd"))
	_, err = c.EndRecord()
	require.NoError(t, err)

	require.Nil(t, slot.Bytes())
}

// Recovery applies only records belonging to committed transactions and
// skips aborted or never-finished ones, per the R3/R4 classification.
func TestRecoveryFiltersByTransactionOutcome(t *testing.T) {
	c := testContext(t)

	appendRecord := func(typ RecordType, xid uint32, payload string) {
		slot, err := c.BeginRecord(typ, xid, uint16(len(payload)))
		require.NoError(t, err)
		copy(slot.Bytes(), payload)
		_, err = c.EndRecord()
		require.NoError(t, err)
	}

	// xid 1: committed.
	appendRecord(RecordInsert, 1, "committed-row")
	appendRecord(RecordXactCommit, 1, "")

	// xid 2: aborted.
	appendRecord(RecordInsert, 2, "aborted-row")
	appendRecord(RecordXactAbort, 2, "")

	// xid 3: never finished.
	appendRecord(RecordInsert, 3, "incomplete-row")

	require.NoError(t, c.Flush(true))

	var applied []string
	handlers := map[RecordType]Handler{
		RecordInsert: func(h Header, payload []byte) bool {
			applied = append(applied, string(payload))
			return true
		},
	}

	stats, err := c.Recover(ZeroLocation, handlers)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CommittedTransactions)
	require.Equal(t, 1, stats.AbortedTransactions)
	require.Equal(t, 1, stats.IncompleteTransactions)
	require.Equal(t, []string{"committed-row"}, applied)
}

// Running Recover a second time over an already-recovered, idle log applies
// nothing new — the recovery-origin checkpoint the first call wrote anchors
// the second call past everything already redone.
func TestRecoveryIsIdempotent(t *testing.T) {
	c := testContext(t)

	slot, err := c.BeginRecord(RecordInsert, 1, 4)
	require.NoError(t, err)
	copy(slot.Bytes(), []byte("abcd"))
	_, err = c.EndRecord()
	require.NoError(t, err)
	slot, err = c.BeginRecord(RecordXactCommit, 1, 0)
	require.NoError(t, err)
	_ = slot
	_, err = c.EndRecord()
	require.NoError(t, err)
	require.NoError(t, c.Flush(true))

	var firstApplied int
	stats, err := c.Recover(ZeroLocation, map[RecordType]Handler{
		RecordInsert: func(Header, []byte) bool { firstApplied++; return true },
	})
	require.NoError(t, err)
	require.Equal(t, 1, firstApplied)
	require.Equal(t, 1, stats.CommittedTransactions)

	var secondApplied int
	stats, err = c.Recover(ZeroLocation, map[RecordType]Handler{
		RecordInsert: func(Header, []byte) bool { secondApplied++; return true },
	})
	require.NoError(t, err)
	require.Equal(t, 0, secondApplied)
	require.Equal(t, 0, stats.CommittedTransactions)
}

// Write a record, commit it, call Checkpoint explicitly, then Recover. The
// checkpoint written by that explicit call is user-origin, not the kind
// Recover anchors to, so it never excludes the committed record that
// precedes it: the Insert handler must still fire exactly once.
func TestRecoveryRedoesRecordsWrittenBeforeAnExplicitCheckpoint(t *testing.T) {
	c := testContext(t)

	payload := []byte("committed-before-checkpoint")
	slot, err := c.BeginRecord(RecordInsert, 1, uint16(len(payload)))
	require.NoError(t, err)
	copy(slot.Bytes(), payload)
	_, err = c.EndRecord()
	require.NoError(t, err)

	slot, err = c.BeginRecord(RecordXactCommit, 1, 0)
	require.NoError(t, err)
	_ = slot
	_, err = c.EndRecord()
	require.NoError(t, err)

	require.NoError(t, c.Checkpoint())

	var applied []string
	stats, err := c.Recover(ZeroLocation, map[RecordType]Handler{
		RecordInsert: func(h Header, payload []byte) bool {
			applied = append(applied, string(payload))
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"committed-before-checkpoint"}, applied)
	require.Equal(t, 1, stats.CommittedTransactions)
}

// A Recover call given an explicit endLocation bounds the scan to records
// strictly before it: with two committed transactions in the log and the
// bound at the second one's Insert, only the first is redone — a
// partial/bounded recovery honors the caller's requested upper bound rather
// than always replaying to the end of the log.
func TestRecoverHonorsEndLocation(t *testing.T) {
	c := testContext(t)

	write := func(typ RecordType, xid uint32, payload string) Location {
		slot, err := c.BeginRecord(typ, xid, uint16(len(payload)))
		require.NoError(t, err)
		copy(slot.Bytes(), payload)
		loc, err := c.EndRecord()
		require.NoError(t, err)
		return loc
	}

	write(RecordInsert, 1, "first-row")
	write(RecordXactCommit, 1, "")
	boundary := write(RecordInsert, 2, "second-row")
	write(RecordXactCommit, 2, "")
	require.NoError(t, c.Flush(true))

	var applied []string
	stats, err := c.Recover(boundary, map[RecordType]Handler{
		RecordInsert: func(h Header, payload []byte) bool {
			applied = append(applied, string(payload))
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"first-row"}, applied)
	require.Equal(t, 1, stats.CommittedTransactions) // xid 2's records sit at/after the bound, excluded
}
