// Package format defines the physical layout of a .secdb file: the
// key=value header block, the fixed-size chunkmap that follows it, and the
// offset arithmetic that locates the event stream.
package format

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/3liv/secdb/errs"
)

// CurrentVersion is the header version written by this implementation.
const CurrentVersion = 2

// Defaults applied by open_append when the caller omits an option.
const (
	DefaultDepth     = 1
	DefaultScale     = 100
	DefaultChunkSize = 5 * 60 * 1000 // 5 minutes, in ms
)

// MillisPerDay is the number of milliseconds in one UTC day; it sizes the
// chunkmap.
const MillisPerDay = 24 * 60 * 60 * 1000

// MaxHeaderBytes bounds how far ParseHeader will scan looking for the
// blank-line terminator before giving up on a corrupt or truncated file.
const MaxHeaderBytes = 64 * 1024

// Options are the caller-supplied, creation-time-only parameters of a
// secdb file.
type Options struct {
	Depth     int
	Scale     int
	ChunkSize int64
}

// WithDefaults returns a copy of o with zero fields replaced by the
// documented defaults.
func (o Options) WithDefaults() Options {
	if o.Depth == 0 {
		o.Depth = DefaultDepth
	}
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}

	return o
}

// Validate checks the option ranges: depth 1..32, positive
// scale, positive chunk_size.
func (o Options) Validate() error {
	if o.Depth < 1 || o.Depth > 32 {
		return fmt.Errorf("%w: got %d", errs.ErrInvalidDepth, o.Depth)
	}
	if o.Scale <= 0 {
		return fmt.Errorf("%w: got %d", errs.ErrInvalidScale, o.Scale)
	}
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: got %d", errs.ErrInvalidChunkSize, o.ChunkSize)
	}

	return nil
}

// Header is the immutable, once-written set of fields at the start of a
// secdb file.
type Header struct {
	Version int
	Symbol  string
	Date    string // YYYY-MM-DD
	Options

	// headerSize is the exact byte length of the encoded header block,
	// including the terminating blank line. It is set by Encode or
	// ParseHeader and used to locate the chunkmap.
	headerSize int
}

// NewHeader creates a header for a freshly-created file, applying defaults
// and validating the result.
func NewHeader(symbol, date string, opts Options) (*Header, error) {
	if symbol == "" {
		return nil, errs.ErrInvalidSymbol
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidDate, date)
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Header{
		Version: CurrentVersion,
		Symbol:  symbol,
		Date:    date,
		Options: opts,
	}, nil
}

// ChunkCount returns N = ceil(86_400_000 / chunk_size), the number of
// chunkmap entries.
func (h *Header) ChunkCount() int {
	return int((MillisPerDay + h.ChunkSize - 1) / h.ChunkSize)
}

// HeaderSize returns the exact byte length of the encoded header block.
// It is only valid after Encode or ParseHeader has run.
func (h *Header) HeaderSize() int {
	return h.headerSize
}

// ChunkmapOffset returns the byte offset of the chunkmap within the file:
// it equals the header's encoded size.
func (h *Header) ChunkmapOffset() int64 {
	return int64(h.headerSize)
}

// ChunkmapBytes returns the total byte size of the chunkmap: 4 bytes per
// entry times ChunkCount.
func (h *Header) ChunkmapBytes() int64 {
	return int64(h.ChunkCount()) * ChunkEntrySize
}

// EventStreamOffset returns the byte offset at which the event stream
// begins: chunkmap_offset + 4*N.
func (h *Header) EventStreamOffset() int64 {
	return h.ChunkmapOffset() + h.ChunkmapBytes()
}

// Bucket returns the chunk index that msOfDay (milliseconds since 00:00:00
// UTC of the file's date) falls into: floor(msOfDay / chunk_size).
func (h *Header) Bucket(msOfDay int64) int {
	return int(msOfDay / h.ChunkSize)
}

// MsOfDay returns the time of day, in milliseconds, that an absolute
// Unix-epoch millisecond timestamp falls at, given the header's Date.
func (h *Header) MsOfDay(timestampMs int64) (int64, error) {
	dayStart, err := h.DayStartMs()
	if err != nil {
		return 0, err
	}

	return timestampMs - dayStart, nil
}

// DayStartMs returns the Unix-epoch millisecond timestamp of 00:00:00 UTC
// on the header's Date.
func (h *Header) DayStartMs() (int64, error) {
	t, err := time.Parse("2006-01-02", h.Date)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidDate, h.Date)
	}

	return t.UTC().UnixMilli(), nil
}

// Encode serializes the header as a sequence of "key=value\n" ASCII lines
// terminated by an empty line. Required keys are written in
// a fixed order for deterministic output.
func (h *Header) Encode() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "version=%d\n", h.Version)
	fmt.Fprintf(&buf, "symbol=%s\n", h.Symbol)
	fmt.Fprintf(&buf, "date=%s\n", h.Date)
	fmt.Fprintf(&buf, "depth=%d\n", h.Depth)
	fmt.Fprintf(&buf, "scale=%d\n", h.Scale)
	fmt.Fprintf(&buf, "chunk_size=%d\n", h.ChunkSize)
	buf.WriteByte('\n')

	h.headerSize = buf.Len()

	return buf.Bytes()
}

// ParseHeader parses the header block starting at data[0]. It returns the
// decoded Header, whose HeaderSize records the exact number of bytes
// consumed (including the blank-line terminator), so the caller can locate
// the chunkmap immediately after.
//
// Unknown keys are ignored. Missing required keys are an error.
func ParseHeader(data []byte) (*Header, error) {
	limit := len(data)
	if limit > MaxHeaderBytes {
		limit = MaxHeaderBytes
	}

	term := bytes.Index(data[:limit], []byte("\n\n"))
	if term < 0 {
		if len(data) > MaxHeaderBytes {
			return nil, errs.ErrHeaderTooLarge
		}

		return nil, fmt.Errorf("%w: no blank-line terminator found", errs.ErrMissingHeaderKey)
	}

	block := string(data[:term])
	consumed := term + 2

	fields := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		fields[k] = v
	}

	h := &Header{headerSize: consumed}

	var err error
	if h.Version, err = requireInt(fields, "version"); err != nil {
		return nil, err
	}
	if h.Symbol, err = requireString(fields, "symbol"); err != nil {
		return nil, err
	}
	if h.Date, err = requireString(fields, "date"); err != nil {
		return nil, err
	}
	if h.Depth, err = requireInt(fields, "depth"); err != nil {
		return nil, err
	}
	if h.Scale, err = requireInt(fields, "scale"); err != nil {
		return nil, err
	}

	chunkSize, err := requireInt(fields, "chunk_size")
	if err != nil {
		return nil, err
	}
	h.ChunkSize = int64(chunkSize)

	if err := h.Options.Validate(); err != nil {
		return nil, err
	}

	return h, nil
}

func requireString(fields map[string]string, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", errs.ErrMissingHeaderKey, key)
	}

	return v, nil
}

func requireInt(fields map[string]string, key string) (int, error) {
	v, err := requireString(fields, key)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer: %v", errs.ErrMissingHeaderKey, key, err)
	}

	return n, nil
}

// SameOptions reports whether two headers share the immutable, per-file
// creation options: Open fails with ErrIncompatibleHeader if the
// requested options differ from what was stored at creation.
func SameOptions(a, b *Header) bool {
	return a.Depth == b.Depth && a.Scale == b.Scale && a.ChunkSize == b.ChunkSize
}
