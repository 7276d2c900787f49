package page

import "errors"

// Sentinel errors returned by page operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, page.ErrFull) {
//	    // allocate a fresh page and retry there
//	}
var (
	// ErrFull indicates a record does not fit in the page's free space.
	//
	// The required space is the payload length plus one offset-table
	// entry and one length prefix. The page is left unmodified.
	//
	// Recovery: insert into a different page, or reject the record.
	ErrFull = errors.New("page: full")

	// ErrOutOfRange indicates an index >= Size was passed to [Page.At].
	//
	// This is a programming error.
	ErrOutOfRange = errors.New("page: index out of range")

	// ErrInvalidInput indicates invalid construction arguments, such as
	// a capacity too small to hold the header or beyond the largest
	// addressable size.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("page: invalid input")

	// ErrCorrupt indicates a stored offset or length fails bounds
	// validation. This can only happen to pages deserialized from a
	// damaged or truncated byte stream.
	//
	// Recovery: discard the page and re-read it from its source.
	ErrCorrupt = errors.New("page: corrupt")
)
