// Package appender implements the append-mode state machine: it
// writes the header and chunkmap once, maintains the last full snapshot
// seen so it can emit deltas, and anchors each chunk bucket with a full MD
// the first time an MD lands in it.
//
// State is tracked with explicit offset/position fields updated inline as
// each record is emitted, a pooled output buffer, and a Close after which
// the handle rejects further appends.
package appender

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/3liv/secdb/codec"
	"github.com/3liv/secdb/endian"
	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/format"
	"github.com/3liv/secdb/internal/pool"
)

// Option configures the format.Options used when creating a new file.
// Applying an Option to an existing file has no effect on its stored
// header; Open instead checks the requested options against it and fails
// with errs.ErrIncompatibleHeader on a mismatch.
type Option func(*format.Options)

// WithDepth sets the number of quote levels stored per side (default 1).
func WithDepth(d int) Option {
	return func(o *format.Options) { o.Depth = d }
}

// WithScale sets the fixed-point price multiplier (default 100).
func WithScale(s int) Option {
	return func(o *format.Options) { o.Scale = s }
}

// WithChunkSize sets the chunk bucket width in milliseconds (default 5 minutes).
func WithChunkSize(ms int64) Option {
	return func(o *format.Options) { o.ChunkSize = ms }
}

const noChunk = -1

// Appender is a single-owner, write-only handle for one .secdb file. It is
// not safe for concurrent use.
type Appender struct {
	file   *os.File
	w      *bufio.Writer
	header *format.Header
	cmap   *format.Chunkmap

	lastMD       *event.MD
	currentChunk int
	hasLast      bool
	lastTS       int64

	writeOffset int64
	dayStartMs  int64

	buf    *pool.RecordBuffer
	closed bool
}

// Open opens path for append, creating it (and its parent directories) if
// it does not already exist.
//
// For a new file: the header and a zeroed chunkmap are written immediately
// and symbol/date/opts become the file's permanent options. For an
// existing file: the stored header is parsed, the requested options are
// checked against it (errs.ErrIncompatibleHeader on mismatch), the
// chunkmap is loaded, and the event stream is scanned to recover LastMD
// and the active chunk bucket.
func Open(path, symbol, date string, opts ...Option) (*Appender, error) {
	var built format.Options
	for _, opt := range opts {
		opt(&built)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return openExisting(path, symbol, date, built.WithDefaults())
	case os.IsNotExist(err):
		return createNew(path, symbol, date, built)
	default:
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
}

func createNew(path, symbol, date string, opts format.Options) (*Appender, error) {
	header, err := format.NewHeader(symbol, date, opts)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	headerBytes := header.Encode()
	cmap := format.NewChunkmap(header.ChunkCount())

	if _, err := f.Write(headerBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	if _, err := f.Write(cmap.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	dayStart, err := header.DayStartMs()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Appender{
		file:         f,
		w:            bufio.NewWriter(f),
		header:       header,
		cmap:         cmap,
		currentChunk: noChunk,
		writeOffset:  header.EventStreamOffset(),
		dayStartMs:   dayStart,
		buf:          pool.GetRecordBuffer(),
	}, nil
}

func openExisting(path, symbol, date string, requested format.Options) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	header, err := format.ParseHeader(data)
	if err != nil {
		f.Close()
		return nil, err
	}

	if header.Symbol != symbol || header.Date != date {
		f.Close()
		return nil, fmt.Errorf("%w: file is for (%s, %s)", errs.ErrIncompatibleHeader, header.Symbol, header.Date)
	}

	if !format.SameOptions(header, &format.Header{Options: requested}) {
		f.Close()
		return nil, errs.ErrIncompatibleHeader
	}

	cmapOff := header.ChunkmapOffset()
	cmapLen := header.ChunkmapBytes()
	if int64(len(data)) < cmapOff+cmapLen {
		f.Close()
		return nil, fmt.Errorf("%w: truncated chunkmap", errs.ErrCorruptStream)
	}

	cmap := format.DecodeChunkmap(data[cmapOff:cmapOff+cmapLen], header.ChunkCount())

	dayStart, err := header.DayStartMs()
	if err != nil {
		f.Close()
		return nil, err
	}

	a := &Appender{
		file:         f,
		header:       header,
		cmap:         cmap,
		currentChunk: noChunk,
		dayStartMs:   dayStart,
		buf:          pool.GetRecordBuffer(),
	}

	streamStart := header.EventStreamOffset()
	if err := a.recover(data, streamStart); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.Truncate(a.writeOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	if _, err := f.Seek(a.writeOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	a.w = bufio.NewWriter(f)

	return a, nil
}

// recover replays the event stream starting at streamStart, rebuilding
// LastMD and the active chunk bucket. A torn trailing record stops the
// scan at the last complete record's end; Open truncates the file to that
// point so the next Append resumes cleanly.
func (a *Appender) recover(data []byte, streamStart int64) error {
	offset := int(streamStart)
	var lastMD *event.MD
	currentChunk := noChunk
	var lastTS int64
	hasLast := false

	for offset < len(data) {
		ev, next, ok, err := codec.DecodeRecord(data, offset, a.header.Depth, lastMD)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
		}
		if !ok {
			break // torn tail, tolerated
		}

		if ev.Kind == event.KindMD {
			md := ev.MD
			lastMD = &md

			msOfDay, mErr := a.header.MsOfDay(ev.Timestamp())
			if mErr != nil {
				return mErr
			}
			currentChunk = a.header.Bucket(msOfDay)
		}

		lastTS = ev.Timestamp()
		hasLast = true
		offset = next
	}

	a.lastMD = lastMD
	a.currentChunk = currentChunk
	a.lastTS = lastTS
	a.hasLast = hasLast
	a.writeOffset = int64(offset)

	return nil
}

// Append writes ev to the file, choosing a full or delta MD encoding (or a
// Trade record) per the append state machine.
func (a *Appender) Append(ev event.Event) error {
	if a.closed {
		return errs.ErrAlreadyClosed
	}

	ts := ev.Timestamp()
	msOfDay := ts - a.dayStartMs
	if msOfDay < 0 || msOfDay >= format.MillisPerDay {
		return fmt.Errorf("%w: timestamp %d", errs.ErrOutOfRange, ts)
	}

	if a.hasLast && ts < a.lastTS {
		return fmt.Errorf("%w: %d < %d", errs.ErrOutOfOrder, ts, a.lastTS)
	}

	bucket := a.header.Bucket(msOfDay)

	switch ev.Kind {
	case event.KindMD:
		if err := a.appendMD(ev.MD, bucket); err != nil {
			return err
		}
	case event.KindTrade:
		if err := a.appendTrade(ev.Trade); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unrecognized event kind", errs.ErrCorruptStream)
	}

	a.lastTS = ts
	a.hasLast = true

	return nil
}

func (a *Appender) appendMD(md event.MD, bucket int) error {
	if len(md.Bid) != a.header.Depth || len(md.Ask) != a.header.Depth {
		return fmt.Errorf("%w: MD has %d/%d levels, depth is %d", errs.ErrCorruptStream, len(md.Bid), len(md.Ask), a.header.Depth)
	}

	if a.currentChunk != bucket || a.lastMD == nil {
		if a.cmap.Get(bucket) == 0 {
			if err := a.writeChunkEntry(bucket, uint32(a.writeOffset)); err != nil {
				return err
			}
			a.cmap.Set(bucket, uint32(a.writeOffset))
		}

		a.buf.Reset()
		a.buf.Grow(codec.FullMDMaxSize(a.header.Depth))
		a.buf.B = codec.EncodeFullMD(a.buf.B, md, a.header.Depth)
		if err := a.writeRecord(a.buf.Bytes()); err != nil {
			return err
		}

		cloned := md.Clone()
		a.lastMD = &cloned
		a.currentChunk = bucket

		return nil
	}

	a.buf.Reset()
	a.buf.B = codec.EncodeDeltaMD(a.buf.B, *a.lastMD, md, a.header.Depth)
	if err := a.writeRecord(a.buf.Bytes()); err != nil {
		return err
	}

	cloned := md.Clone()
	a.lastMD = &cloned

	return nil
}

func (a *Appender) appendTrade(t event.Trade) error {
	a.buf.Reset()
	a.buf.B = codec.EncodeTrade(a.buf.B, t)

	return a.writeRecord(a.buf.Bytes())
}

func (a *Appender) writeRecord(record []byte) error {
	n, err := a.w.Write(record)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	a.writeOffset += int64(n)

	return nil
}

// writeChunkEntry patches the chunkmap entry for bucket directly via
// WriteAt, bypassing the sequential bufio.Writer so the event stream's
// buffered-but-unflushed bytes are never disturbed.
func (a *Appender) writeChunkEntry(bucket int, offset uint32) error {
	entry := make([]byte, format.ChunkEntrySize)
	endian.BigEndian.PutUint32(entry, offset)

	pos := format.EntryOffset(a.header.ChunkmapOffset(), bucket)
	if _, err := a.file.WriteAt(entry, pos); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	return nil
}

// Header returns the file's immutable header options.
func (a *Appender) Header() *format.Header {
	return a.header
}

// Close flushes buffered writes, fsyncs, and closes the underlying file.
// Close is idempotent.
func (a *Appender) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	if err := a.w.Flush(); err != nil {
		firstErr = fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	if err := a.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}
	if err := a.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	pool.PutRecordBuffer(a.buf)
	a.buf = nil

	return firstErr
}
