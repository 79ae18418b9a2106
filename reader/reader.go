// Package reader implements the read-mode scanner: it loads the header and
// chunkmap, materializes the event stream into memory so the resulting
// ReaderState is detached from the filesystem, and exposes a pull-based
// Iterator that reconstructs snapshots from deltas and supports seeking by
// timestamp via the chunkmap.
//
// Loading happens header, then chunkmap, then payload; the header and
// chunkmap are decoded once up front, while events are decoded lazily by
// the Iterator as it is consumed.
package reader

import (
	"fmt"
	"iter"
	"os"

	"github.com/3liv/secdb/codec"
	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/format"
)

// ReaderState is the immutable, materialized state produced by OpenRead.
// It owns no file descriptor: once constructed, deleting or moving the
// underlying file has no effect on it. This trades memory for independence
// from the filesystem.
type ReaderState struct {
	header *format.Header
	cmap   *format.Chunkmap
	data   []byte // event-stream bytes only; index 0 == EventStreamOffset in the file
}

// OpenRead reads path in full, parses its header and chunkmap, and returns
// a detached ReaderState ready for iteration.
func OpenRead(path string) (*ReaderState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.ErrNotFound
		}

		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	return newReaderState(data)
}

// FromBytes builds a ReaderState directly from a full file image, useful
// for tests and for rehydrating a ReaderState shipped to another node
// after archive.Unseal has verified its digest.
func FromBytes(data []byte) (*ReaderState, error) {
	return newReaderState(data)
}

func newReaderState(data []byte) (*ReaderState, error) {
	header, err := format.ParseHeader(data)
	if err != nil {
		return nil, err
	}

	cmapOff := header.ChunkmapOffset()
	cmapLen := header.ChunkmapBytes()
	streamStart := header.EventStreamOffset()

	if int64(len(data)) < streamStart {
		return nil, fmt.Errorf("%w: file shorter than its own header+chunkmap", errs.ErrCorruptStream)
	}

	cmap := format.DecodeChunkmap(data[cmapOff:cmapOff+cmapLen], header.ChunkCount())

	return &ReaderState{
		header: header,
		cmap:   cmap,
		data:   data[streamStart:],
	}, nil
}

// Header returns the file's header.
func (rs *ReaderState) Header() *format.Header {
	return rs.header
}

// Chunkmap returns the file's loaded chunkmap.
func (rs *ReaderState) Chunkmap() *format.Chunkmap {
	return rs.cmap
}

// Close is a no-op: ReaderState holds no file descriptor once constructed.
// It exists for symmetry with Appender.Close in the programmatic surface.
func (rs *ReaderState) Close() error {
	return nil
}

// NewIterator returns an Iterator positioned at the start of the event
// stream.
func (rs *ReaderState) NewIterator() *Iterator {
	return &Iterator{rs: rs}
}

// Seek returns an Iterator positioned at the first event with timestamp >=
// timestampMs. It finds the largest chunk bucket at or before
// floor(timestampMs_of_day / chunk_size) that has a recorded anchor, then
// scans forward from there discarding events earlier than timestampMs
// while still feeding them through delta reconstruction so the returned
// iterator's LastMD is correct.
func (rs *ReaderState) Seek(timestampMs int64) (*Iterator, error) {
	msOfDay, err := rs.header.MsOfDay(timestampMs)
	if err != nil {
		return nil, err
	}

	bucket := rs.header.Bucket(msOfDay)

	pos := 0
	if b, ok := rs.cmap.FloorBucket(bucket); ok {
		pos = int(rs.cmap.Get(b)) - int(rs.header.EventStreamOffset())
		if pos < 0 {
			pos = 0
		}
	}

	it := &Iterator{rs: rs, pos: pos}

	for {
		ev, next, ok, err := codec.DecodeRecord(rs.data, it.pos, rs.header.Depth, it.lastMD)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if ev.Timestamp() >= timestampMs {
			break
		}

		if ev.Kind == event.KindMD {
			md := ev.MD
			it.lastMD = &md
		}

		it.pos = next
	}

	return it, nil
}

// Events decodes and returns every event in the stream, in order. It is
// the convenience wrapper backing the events(symbol, date) call.
func (rs *ReaderState) Events() ([]event.Event, error) {
	it := rs.NewIterator()

	var out []event.Event
	for {
		ev, ok, err := it.ReadOne()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}

		out = append(out, ev)
	}
}

// Iterator is a lazy, finite, non-restartable pull cursor over a
// ReaderState's event stream.
type Iterator struct {
	rs     *ReaderState
	pos    int
	lastMD *event.MD
}

// ReadOne decodes and returns the next event.
//
// Return convention: ok==false, err==nil signals end-of-stream, including
// a torn trailing record that is tolerated rather than treated as an
// error. ok==false, err!=nil signals genuine corruption (unknown tag,
// delta with no anchor, invalid bitmask).
func (it *Iterator) ReadOne() (event.Event, bool, error) {
	ev, next, ok, err := codec.DecodeRecord(it.rs.data, it.pos, it.rs.header.Depth, it.lastMD)
	if err != nil {
		return event.Event{}, false, err
	}
	if !ok {
		return event.Event{}, false, nil
	}

	if ev.Kind == event.KindMD {
		md := ev.MD
		it.lastMD = &md
	}

	it.pos = next

	return ev, true, nil
}

// All returns a standard iter.Seq2 view over the remaining events, so
// callers can use range-over-func: for ev, err := range it.All() { ... }.
// Iteration stops after the first error or at end-of-stream.
func (it *Iterator) All() iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for {
			ev, ok, err := it.ReadOne()
			if err != nil {
				yield(event.Event{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// CollectAll drains the iterator into a slice.
func (it *Iterator) CollectAll() ([]event.Event, error) {
	var out []event.Event
	for ev, err := range it.All() {
		if err != nil {
			return out, err
		}

		out = append(out, ev)
	}

	return out, nil
}
