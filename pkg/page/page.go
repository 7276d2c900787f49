package page

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"io"
)

// Compile-time interface satisfaction checks.
var (
	_ io.WriterTo   = (*Page)(nil)
	_ io.ReaderFrom = (*Page)(nil)
)

const (
	// smallPageMax is the largest capacity addressable with 2-byte offsets.
	smallPageMax = 16384

	// maxCapacity is the largest capacity addressable with 4-byte offsets.
	maxCapacity = 1<<32 - 1
)

// Page is a fixed-capacity slotted container for variable-length byte
// records. See the package documentation for the layout.
//
// The zero value is not usable; construct pages with [New].
type Page struct {
	capacity int
	offWidth int

	// freeStart and freeEnd bound the free region. freeStart carries
	// the header size as a bias: the offset table for n records spans
	// data[0 : n*offWidth], and freeStart = headerSize + n*offWidth.
	// freeEnd is the position in data where the lowest record begins.
	freeStart int
	freeEnd   int

	// data is the page body: offset table, free space and record area.
	// Its length is capacity minus the header size.
	data []byte
}

// New creates an empty page of the given capacity in bytes.
//
// The capacity fixes the offset width (2 bytes up to 16384, 4 bytes
// above) and therefore the serialized layout. Returns ErrInvalidInput
// if the capacity cannot hold a header plus a non-empty free region,
// or exceeds the largest addressable size.
func New(capacity int) (*Page, error) {
	if capacity > maxCapacity {
		return nil, fmt.Errorf("capacity %d exceeds maximum %d: %w", capacity, maxCapacity, ErrInvalidInput)
	}

	width := offsetWidth(capacity)
	if capacity < 4*width {
		return nil, fmt.Errorf("capacity %d is below minimum %d: %w", capacity, 4*width, ErrInvalidInput)
	}

	p := &Page{
		capacity: capacity,
		offWidth: width,
		data:     make([]byte, capacity-2*width),
	}
	p.Clear()

	return p, nil
}

// offsetWidth returns the intra-page offset width for a capacity.
func offsetWidth(capacity int) int {
	if capacity <= smallPageMax {
		return 2
	}

	return 4
}

// headerSize is the serialized size of the two free-region offsets.
func (p *Page) headerSize() int {
	return 2 * p.offWidth
}

// Capacity returns the total serialized size of the page in bytes.
func (p *Page) Capacity() int {
	return p.capacity
}

// Size returns the number of records stored in the page.
func (p *Page) Size() int {
	return (p.freeStart - p.headerSize()) / p.offWidth
}

// Empty reports whether the page holds no records.
func (p *Page) Empty() bool {
	return p.Size() == 0
}

// Contains reports whether index refers to a stored record.
func (p *Page) Contains(index int) bool {
	return index >= 0 && index < p.Size()
}

// FreeSpace returns the number of unused bytes between the offset
// table and the record area.
func (p *Page) FreeSpace() int {
	return p.freeEnd - p.freeStart
}

// Fits reports whether n bytes fit in the current free space.
//
// Note that inserting a record of n payload bytes needs
// n + 2*offset-width bytes; Fits reports raw free space, exactly as
// much as FreeSpace.
func (p *Page) Fits(n int) bool {
	return p.FreeSpace() >= n
}

// Insert appends data as a new record and returns its index.
//
// Indices are assigned sequentially starting at zero and remain valid
// for the lifetime of the page. The payload is copied; the caller's
// slice is not retained. Returns ErrFull, leaving the page unmodified,
// if the payload plus its offset-table entry and length prefix exceed
// the free space.
func (p *Page) Insert(data []byte) (int, error) {
	need := len(data) + 2*p.offWidth
	if !p.Fits(need) {
		return 0, fmt.Errorf("record of %d bytes needs %d free bytes, have %d: %w",
			len(data), need, p.FreeSpace(), ErrFull)
	}

	// Write the length-prefixed payload just below the record area.
	start := p.freeEnd - len(data) - p.offWidth
	p.putOffset(start, len(data))
	copy(p.data[start+p.offWidth:], data)

	// Append the offset-table entry and shrink the free region from
	// both ends.
	index := p.Size()
	p.putOffset(index*p.offWidth, start)
	p.freeStart += p.offWidth
	p.freeEnd = start

	return index, nil
}

// InsertValue renders a value to bytes and inserts it.
//
// Byte slices and strings are inserted verbatim; values implementing
// [encoding.TextMarshaler] or [fmt.Stringer] use their canonical text
// form; anything else is formatted with the fmt default verb. This is
// a convenience over [Page.Insert], which is the primitive.
func (p *Page) InsertValue(value any) (int, error) {
	switch v := value.(type) {
	case []byte:
		return p.Insert(v)
	case string:
		return p.Insert([]byte(v))
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return 0, fmt.Errorf("render value to bytes: %w", err)
		}

		return p.Insert(text)
	case fmt.Stringer:
		return p.Insert([]byte(v.String()))
	default:
		return p.Insert(fmt.Append(nil, value))
	}
}

// At returns the record stored at index.
//
// The returned slice aliases the page's internal buffer: mutations
// through it are visible to later calls to At for the same index, and
// it is invalidated by Clear. Returns ErrOutOfRange if index does not
// refer to a stored record, or ErrCorrupt if the stored offset or
// length points outside the page (possible only after deserializing a
// damaged image).
func (p *Page) At(index int) ([]byte, error) {
	if !p.Contains(index) {
		return nil, fmt.Errorf("index %d, size %d: %w", index, p.Size(), ErrOutOfRange)
	}

	start := p.getOffset(index * p.offWidth)
	if start+p.offWidth > len(p.data) {
		return nil, fmt.Errorf("slot %d offset %d overruns data region of %d bytes: %w",
			index, start, len(p.data), ErrCorrupt)
	}

	length := p.getOffset(start)
	payload := start + p.offWidth

	if length > len(p.data)-payload {
		return nil, fmt.Errorf("slot %d length %d at offset %d overruns data region of %d bytes: %w",
			index, length, start, len(p.data), ErrCorrupt)
	}

	return p.data[payload : payload+length], nil
}

// Clear discards all records, resetting the page to its empty state.
//
// Only the free-region offsets are reset; stale payload bytes remain
// in the buffer until overwritten and are carried along by WriteTo.
func (p *Page) Clear() {
	p.freeStart = p.headerSize()
	p.freeEnd = len(p.data)
}

// WriteTo serializes the page to w: both free-region offsets in fixed
// order, then the data buffer verbatim. It writes exactly Capacity
// bytes on success. The in-memory page is unaffected by a failed
// write.
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	header := make([]byte, p.headerSize())
	putOffset(header, p.offWidth, p.freeStart)
	putOffset(header[p.offWidth:], p.offWidth, p.freeEnd)

	n, err := w.Write(header)
	written := int64(n)

	if err != nil {
		return written, fmt.Errorf("write page header: %w", err)
	}

	n, err = w.Write(p.data)
	written += int64(n)

	if err != nil {
		return written, fmt.Errorf("write page data: %w", err)
	}

	return written, nil
}

// ReadFrom deserializes a page image from r, replacing the page's
// contents. The source must have been written by a page of the same
// capacity.
//
// There is no atomicity across a partial read: the page reflects
// whatever bytes arrived before the stream error, and its contents
// must be treated as unreliable by the caller. A fully-read header
// whose offsets violate the region invariant yields ErrCorrupt.
func (p *Page) ReadFrom(r io.Reader) (int64, error) {
	header := make([]byte, p.headerSize())

	n, err := io.ReadFull(r, header)
	read := int64(n)

	// Apply whatever arrived, per the no-atomicity contract.
	p.freeStart = getOffset(header, p.offWidth)
	p.freeEnd = getOffset(header[p.offWidth:], p.offWidth)

	if err != nil {
		return read, fmt.Errorf("read page header: %w", err)
	}

	n, err = io.ReadFull(r, p.data)
	read += int64(n)

	if err != nil {
		return read, fmt.Errorf("read page data: %w", err)
	}

	if err := p.validateHeader(); err != nil {
		return read, err
	}

	return read, nil
}

// validateHeader checks the free-region invariant
// header <= free_region_start <= free_region_end <= data size
// and offset-table alignment after deserialization.
func (p *Page) validateHeader() error {
	if p.freeStart < p.headerSize() || p.freeEnd < p.freeStart || p.freeEnd > len(p.data) {
		return fmt.Errorf("free region [%d, %d) outside [%d, %d]: %w",
			p.freeStart, p.freeEnd, p.headerSize(), len(p.data), ErrCorrupt)
	}

	if (p.freeStart-p.headerSize())%p.offWidth != 0 {
		return fmt.Errorf("free region start %d misaligns the offset table: %w", p.freeStart, ErrCorrupt)
	}

	return nil
}

// putOffset stores v at position pos of the data buffer using the
// page's offset width.
func (p *Page) putOffset(pos, v int) {
	putOffset(p.data[pos:], p.offWidth, v)
}

// getOffset reads the offset stored at position pos of the data buffer.
func (p *Page) getOffset(pos int) int {
	return getOffset(p.data[pos:], p.offWidth)
}

func putOffset(b []byte, width, v int) {
	if width == 2 {
		binary.LittleEndian.PutUint16(b, uint16(v))

		return
	}

	binary.LittleEndian.PutUint32(b, uint32(v))
}

func getOffset(b []byte, width int) int {
	if width == 2 {
		return int(binary.LittleEndian.Uint16(b))
	}

	return int(binary.LittleEndian.Uint32(b))
}
