package wal

import "hash/crc32"

// crcTable is the reflected CRC-32 table, polynomial 0xEDB88320 — the same
// table Go's standard library builds for crc32.IEEE, and the same table the
// teacher's own wal_manager/helpers.go builds by hand via crc32.NewIEEE().
// Built once at package init instead of per-call, matching the C source's
// static crc32_table built once in wal_init.
var crcTable = crc32.MakeTable(crc32.IEEE)

// checksum computes a CRC-32 (reflected, poly 0xEDB88320, initial 0xFFFFFFFF,
// final XOR 0xFFFFFFFF) over buf. This is the canonical CRC-32 variant;
// crc32.Checksum already applies the initial/final XOR internally.
func checksum(buf []byte) uint32 {
	return crc32.Checksum(buf, crcTable)
}
