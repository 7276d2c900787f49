package page_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cmaruan/simpledb/pkg/page"
)

func TestWriteTo_ReadFrom_RoundTrip(t *testing.T) {
	t.Parallel()

	// 20000 crosses into the 4-byte offset layout.
	for _, capacity := range []int{16, 128, 4096, 16384, 20000} {
		t.Run(fmt.Sprintf("capacity %d", capacity), func(t *testing.T) {
			t.Parallel()

			src := mustNew(t, capacity)

			records := []string{"Hello", "World", "", "a longer record with some bytes in it"}
			for _, r := range records {
				if _, err := src.Insert([]byte(r)); err != nil {
					t.Fatalf("Insert(%q) failed: %v", r, err)
				}
			}

			var buf bytes.Buffer

			n, err := src.WriteTo(&buf)
			if err != nil {
				t.Fatalf("WriteTo failed: %v", err)
			}

			// The wire image is always exactly the capacity.
			if n != int64(capacity) {
				t.Fatalf("WriteTo wrote %d bytes, want %d", n, capacity)
			}

			dst := mustNew(t, capacity)

			n, err = dst.ReadFrom(&buf)
			if err != nil {
				t.Fatalf("ReadFrom failed: %v", err)
			}

			if n != int64(capacity) {
				t.Fatalf("ReadFrom read %d bytes, want %d", n, capacity)
			}

			if got, want := dst.Size(), len(records); got != want {
				t.Fatalf("Size() = %d after round trip, want %d", got, want)
			}

			if got, want := dst.FreeSpace(), src.FreeSpace(); got != want {
				t.Errorf("FreeSpace() = %d after round trip, want %d", got, want)
			}

			for i, want := range records {
				got, err := dst.At(i)
				if err != nil {
					t.Fatalf("At(%d) failed: %v", i, err)
				}

				if diff := cmp.Diff(want, string(got)); diff != "" {
					t.Errorf("record %d mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestWriteTo_IdenticalImages(t *testing.T) {
	t.Parallel()

	p := mustNew(t, 128)

	if _, err := p.Insert([]byte("stable")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var first, second bytes.Buffer

	if _, err := p.WriteTo(&first); err != nil {
		t.Fatalf("first WriteTo failed: %v", err)
	}

	if _, err := p.WriteTo(&second); err != nil {
		t.Fatalf("second WriteTo failed: %v", err)
	}

	if diff := cmp.Diff(first.Bytes(), second.Bytes()); diff != "" {
		t.Errorf("WriteTo is not deterministic (-first +second):\n%s", diff)
	}
}

func TestWriteTo_FailedWriteLeavesPageUsable(t *testing.T) {
	t.Parallel()

	p := mustNew(t, 128)

	if _, err := p.Insert([]byte("keep")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	errBroken := errors.New("pipe broken")
	w := &failWriter{limit: 10, err: errBroken}

	if _, err := p.WriteTo(w); !errors.Is(err, errBroken) {
		t.Fatalf("WriteTo error = %v, want %v", err, errBroken)
	}

	// The failed write must not have touched the page.
	assertRecord(t, p, 0, "keep")

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo after failed write failed: %v", err)
	}

	if buf.Len() != 128 {
		t.Errorf("retried WriteTo wrote %d bytes, want 128", buf.Len())
	}
}

func TestReadFrom_EmptyStream(t *testing.T) {
	t.Parallel()

	p := mustNew(t, 128)

	_, err := p.ReadFrom(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("ReadFrom(empty) error = %v, want io.EOF", err)
	}
}

func TestReadFrom_TruncatedStream(t *testing.T) {
	t.Parallel()

	src := mustNew(t, 128)

	if _, err := src.Insert([]byte("payload")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var buf bytes.Buffer
	if _, err := src.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	for _, keep := range []int{1, 3, 64, 127} {
		t.Run(fmt.Sprintf("%d of 128 bytes", keep), func(t *testing.T) {
			t.Parallel()

			dst := mustNew(t, 128)

			_, err := dst.ReadFrom(bytes.NewReader(buf.Bytes()[:keep]))
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatalf("ReadFrom(truncated) error = %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestReadFrom_CorruptHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		freeStart uint16
		freeEnd   uint16
	}{
		{"start below header", 2, 100},
		{"end before start", 50, 10},
		{"end past data region", 4, 200},
		{"misaligned table", 5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := make([]byte, 128)
			binary.LittleEndian.PutUint16(img[0:], tt.freeStart)
			binary.LittleEndian.PutUint16(img[2:], tt.freeEnd)

			p := mustNew(t, 128)

			_, err := p.ReadFrom(bytes.NewReader(img))
			if !errors.Is(err, page.ErrCorrupt) {
				t.Fatalf("ReadFrom error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestAt_CorruptSlot(t *testing.T) {
	t.Parallel()

	// A well-formed header claiming one record whose table entry points
	// past the data region.
	img := make([]byte, 128)
	binary.LittleEndian.PutUint16(img[0:], 6)   // header + one table entry
	binary.LittleEndian.PutUint16(img[2:], 100) // plausible free end
	binary.LittleEndian.PutUint16(img[4:], 5000)

	p := mustNew(t, 128)

	if _, err := p.ReadFrom(bytes.NewReader(img)); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}

	if _, err := p.At(0); !errors.Is(err, page.ErrCorrupt) {
		t.Fatalf("At(0) error = %v, want ErrCorrupt", err)
	}
}

func TestAt_CorruptLength(t *testing.T) {
	t.Parallel()

	img := make([]byte, 128)
	binary.LittleEndian.PutUint16(img[0:], 6)
	binary.LittleEndian.PutUint16(img[2:], 100)
	binary.LittleEndian.PutUint16(img[4:], 110)    // table entry: record at 110
	binary.LittleEndian.PutUint16(img[4+110:], 60000) // absurd length prefix

	p := mustNew(t, 128)

	if _, err := p.ReadFrom(bytes.NewReader(img)); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}

	if _, err := p.At(0); !errors.Is(err, page.ErrCorrupt) {
		t.Fatalf("At(0) error = %v, want ErrCorrupt", err)
	}
}

// failWriter accepts up to limit bytes, then fails.
type failWriter struct {
	limit   int
	written int
	err     error
}

func (w *failWriter) Write(p []byte) (int, error) {
	if w.written+len(p) > w.limit {
		n := w.limit - w.written
		w.written = w.limit

		return n, w.err
	}

	w.written += len(p)

	return len(p), nil
}
