// Package errs defines the sentinel errors returned across the secdb packages.
//
// Callers should use errors.Is against these sentinels rather than comparing
// error strings, since wrapped errors (e.g. with offset or tag context) still
// satisfy errors.Is.
package errs

import "errors"

var (
	// ErrNotFound is returned when a requested (symbol, date) file does not exist.
	ErrNotFound = errors.New("secdb: file not found")

	// ErrIncompatibleHeader is returned when Open for append is given options
	// that disagree with the header already stored in an existing file.
	ErrIncompatibleHeader = errors.New("secdb: incompatible header options")

	// ErrCorruptStream is returned when the event stream cannot be decoded:
	// an unknown tag, a delta record with no prior full snapshot, a bitmask
	// referencing levels beyond depth, or a field that overflows on decode.
	ErrCorruptStream = errors.New("secdb: corrupt event stream")

	// ErrOutOfOrder is returned by Append when an event's timestamp is less
	// than the timestamp of the previously appended event.
	ErrOutOfOrder = errors.New("secdb: event timestamp out of order")

	// ErrOutOfRange is returned by Append when an event's timestamp falls
	// outside the file's UTC day.
	ErrOutOfRange = errors.New("secdb: event timestamp outside file day")

	// ErrIOError wraps underlying I/O failures from the filesystem.
	ErrIOError = errors.New("secdb: I/O error")

	// ErrFilterError is returned when a filter step panics or reports an
	// internal error; it aborts iteration.
	ErrFilterError = errors.New("secdb: filter error")

	// ErrInvalidDepth is returned when depth is outside the 1..32 range.
	ErrInvalidDepth = errors.New("secdb: depth must be between 1 and 32")

	// ErrInvalidScale is returned when scale is not a positive integer.
	ErrInvalidScale = errors.New("secdb: scale must be a positive integer")

	// ErrInvalidChunkSize is returned when chunk_size is not a positive
	// millisecond interval.
	ErrInvalidChunkSize = errors.New("secdb: chunk_size must be positive")

	// ErrInvalidSymbol is returned when a symbol is empty.
	ErrInvalidSymbol = errors.New("secdb: symbol must not be empty")

	// ErrInvalidDate is returned when a date string cannot be parsed as
	// YYYY-MM-DD, YYYY/MM/DD, or YYYY.MM.DD.
	ErrInvalidDate = errors.New("secdb: invalid date")

	// ErrUnknownTag is returned when a record's leading tag byte does not
	// match any known record kind.
	ErrUnknownTag = errors.New("secdb: unknown record tag")

	// ErrDeltaWithoutAnchor is returned when a delta MD record is
	// encountered before any full MD has been decoded.
	ErrDeltaWithoutAnchor = errors.New("secdb: delta MD without a full-MD anchor")

	// ErrInvalidBitmask is returned when a delta MD's change bitmask
	// references a level beyond 2*depth.
	ErrInvalidBitmask = errors.New("secdb: delta MD bitmask out of range")

	// ErrVarintOverflow is returned when a variable-length integer has no
	// terminating byte within the 10 bytes a 64-bit value can need. A varint
	// cut short by the end of the data is a torn tail, not this error.
	ErrVarintOverflow = errors.New("secdb: varint decode overflow")

	// ErrHeaderTooLarge guards against a pathological or corrupt header
	// block that never terminates with a blank line.
	ErrHeaderTooLarge = errors.New("secdb: header block exceeds maximum size")

	// ErrMissingHeaderKey is returned when a required header key is absent.
	ErrMissingHeaderKey = errors.New("secdb: missing required header key")

	// ErrAlreadyClosed is returned when Append is called on an Appender that
	// has already been closed. A repeated Close returns nil.
	ErrAlreadyClosed = errors.New("secdb: handle already closed")

	// ErrInvalidRoot is returned when a discovery root is empty.
	ErrInvalidRoot = errors.New("secdb: root directory must not be empty")

	// ErrDigestMismatch is returned when a sealed archive's payload does
	// not hash to the digest recorded in its header.
	ErrDigestMismatch = errors.New("secdb: archive digest mismatch")

	// ErrBadArchive is returned when a sealed archive's header is missing
	// or does not start with the expected magic bytes.
	ErrBadArchive = errors.New("secdb: not a sealed secdb archive")
)
