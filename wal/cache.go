package wal

import (
	"github.com/dgraph-io/ristretto/v2"
)

// cacheEntry is what Cache stores per location: enough to answer ReadRecord
// without touching disk.
type cacheEntry struct {
	typ     RecordType
	xid     uint32
	payload []byte
}

// Cache is a read-through cache in front of Context.ReadRecord, for callers
// that re-read recent history. Only ReadRecord consults or fills it; the
// recovery scan reads segment files directly and does not use it.
// ristretto's cost-aware admission means frequently read records tend to
// stay resident without any manual eviction policy.
type Cache struct {
	c *ristretto.Cache[uint64, cacheEntry]
}

// locationKey packs a Location's two uint32 fields into a single uint64 so
// it satisfies ristretto's Key constraint.
func locationKey(loc Location) uint64 {
	return uint64(loc.Segment)<<32 | uint64(loc.Offset)
}

// NewCache builds a Cache sized off segmentSize: capacity scales with how
// many records of average size ~256B a segment can hold, giving the cache
// roughly one full segment's worth of recent records of headroom.
func NewCache(segmentSize uint32) (*Cache, error) {
	numCounters := int64(segmentSize/256) * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	maxCost := int64(segmentSize)

	c, err := ristretto.NewCache(&ristretto.Config[uint64, cacheEntry]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, newErr(KindIoError, "NewCache", err)
	}
	return &Cache{c: c}, nil
}

func (c *Cache) get(loc Location) (RecordType, uint32, []byte, bool) {
	if c == nil || c.c == nil {
		return 0, 0, nil, false
	}
	e, ok := c.c.Get(locationKey(loc))
	if !ok {
		return 0, 0, nil, false
	}
	return e.typ, e.xid, e.payload, true
}

func (c *Cache) put(loc Location, typ RecordType, xid uint32, payload []byte) {
	if c == nil || c.c == nil {
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	cost := int64(headerSize + len(cp) + crcSize)
	c.c.Set(locationKey(loc), cacheEntry{typ: typ, xid: xid, payload: cp}, cost)
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	if c == nil || c.c == nil {
		return
	}
	c.c.Close()
}
