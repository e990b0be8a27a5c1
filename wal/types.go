package wal

import "fmt"

// RecordType is a closed, stable tagged set. The numeric values are part of
// the on-disk format and must never change.
type RecordType uint32

const (
	RecordNull        RecordType = 0
	RecordCheckpoint  RecordType = 1
	RecordXactCommit  RecordType = 2
	RecordXactAbort   RecordType = 3
	RecordInsert      RecordType = 4
	RecordUpdate      RecordType = 5
	RecordDelete      RecordType = 6
	RecordNewPage     RecordType = 7
	RecordSchema      RecordType = 8
)

func (t RecordType) String() string {
	switch t {
	case RecordNull:
		return "Null"
	case RecordCheckpoint:
		return "Checkpoint"
	case RecordXactCommit:
		return "XactCommit"
	case RecordXactAbort:
		return "XactAbort"
	case RecordInsert:
		return "Insert"
	case RecordUpdate:
		return "Update"
	case RecordDelete:
		return "Delete"
	case RecordNewPage:
		return "NewPage"
	case RecordSchema:
		return "Schema"
	default:
		return fmt.Sprintf("RecordType(%d)", uint32(t))
	}
}

// Valid reports whether t is one of the closed set of record types.
func (t RecordType) Valid() bool {
	return t <= RecordSchema
}

// isControl reports whether t is handled internally by the recovery engine;
// caller-registered handlers for these types are always ignored.
func (t RecordType) isControl() bool {
	switch t {
	case RecordNull, RecordCheckpoint, RecordXactCommit, RecordXactAbort:
		return true
	default:
		return false
	}
}

// Location is an ordered pair (segment, offset). The zero value (0, 0) is
// the sentinel meaning "unset / beginning of log".
type Location struct {
	Segment uint32
	Offset  uint32
}

// ZeroLocation is the "unset" sentinel.
var ZeroLocation = Location{}

// IsZero reports whether loc is the unset sentinel.
func (loc Location) IsZero() bool {
	return loc.Segment == 0 && loc.Offset == 0
}

// Before reports whether loc sorts strictly before other under the total
// lexicographic order on (segment, offset).
func (loc Location) Before(other Location) bool {
	if loc.Segment != other.Segment {
		return loc.Segment < other.Segment
	}
	return loc.Offset < other.Offset
}

func (loc Location) String() string {
	return fmt.Sprintf("(%d,%d)", loc.Segment, loc.Offset)
}

const (
	// headerSize is sizeof(RecordHeader) on the wire: total_len(4) +
	// type(4) + xid(4) + prev_segment(4) + prev_offset(4) + data_len(2) +
	// 2 bytes of reserved padding.
	headerSize = 24
	// crcSize is the width of the trailing checksum.
	crcSize = 4
	// maxDataLen is the largest payload data_len can encode.
	maxDataLen = 1<<16 - 1

	// DefaultSegmentSize is used when Config.SegmentSize is left at zero.
	DefaultSegmentSize uint32 = 16 * 1024 * 1024
)

// Header is the on-disk prefix of every record, native little-endian.
type Header struct {
	TotalLen uint32
	Type     RecordType
	Xid      uint32
	Prev     Location
	DataLen  uint16
	// _ reserved [2]byte implicit padding, never stored in this struct;
	// encode/decode re-materialize it as zero bytes on the wire.
}

// recordTotalLen computes header+payload+crc for a payload of length
// dataLen, matching the invariant total_len == sizeof(header)+data_len+4.
func recordTotalLen(dataLen int) uint32 {
	return uint32(headerSize + dataLen + crcSize)
}
