// Package page implements a fixed-capacity slotted page for packing
// variable-length records into one flat block.
//
// A page is a single byte buffer divided into three regions:
//
//	+-----------------+------------------+------------------+----------------+
//	| Header          | Offset table     | Free space       | Record area    |
//	+-----------------+------------------+------------------+----------------+
//
// The header holds two offsets bounding the free region. The offset
// table grows upward from the low end, one fixed-width entry per
// record, where entry i is the position of record i's length-prefixed
// payload. Records are packed downward from the high end. The two
// regions meet in the middle; when they would cross, the page is full.
//
// Because records never move once written, insertion is O(1) and
// indices are stable for the lifetime of the page. Deletion is not
// supported - reclaiming space from removed records would require
// compaction or tombstones, and this package implements neither.
// [Page.Clear] discards all records at once instead.
//
// # Offsets
//
// Offsets are 2 bytes for capacities up to 16384 bytes and 4 bytes
// above that. Each record is stored as a length prefix of the same
// width followed by the payload, so one insert consumes
// len(payload) + 2*offset-width bytes of free space.
//
// # Serialization
//
// Page implements [io.WriterTo] and [io.ReaderFrom]. The wire image is
// the header (both offsets, little-endian) followed by the data buffer
// verbatim - always exactly Capacity bytes, including free and stale
// regions. The format is not self-describing: the reader must
// construct the destination page with the same capacity used at write
// time, since capacity determines both the offset width and the
// buffer length.
//
// # Aliasing
//
// [Page.At] returns a sub-slice of the page's internal buffer, not a
// copy. Callers may mutate the returned bytes in place and the change
// is visible to later reads of the same index. This zero-copy contract
// is deliberate; copy the slice if you need an independent snapshot.
//
// A Page is not safe for concurrent use. The surrounding buffer
// manager is responsible for any latching.
package page
