// Package secdb provides a compact, append-only, self-indexing file
// format for per-symbol, per-day equity market microstructure events:
// order-book top-of-book snapshots and trades.
//
// # Core features
//
//   - Append-only writer that emits full snapshots at chunk boundaries and
//     delta snapshots in between, plus trade records that never disturb
//     the delta chain
//   - A fixed-size chunkmap lets a reader seek to any timestamp without
//     scanning from the start of the file
//   - A composable filter pipeline (time-range clipping, candle
//     aggregation) that runs over the same pull-based Iterator the raw
//     reader exposes
//   - Optional sealed-archive compression (Zstd, S2, LZ4) with an xxHash64
//     integrity digest, for cold storage or shipping a file to another
//     node
//   - File discovery: mapping (symbol, date) to a path under a root
//     directory, and listing symbols/dates/common dates present there
//
// # Basic usage
//
// Appending a session's events:
//
//	app, err := secdb.OpenAppend("AAPL", "2024-01-15", secdb.WithDepth(5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	app.Append(event.NewMDEvent(md))
//	app.Append(event.NewTradeEvent(trade))
//
// Reading them back, optionally through a filter pipeline:
//
//	events, err := secdb.Events("AAPL", "2024-01-15", filter.NewRange(from, to))
//
// # Package structure
//
// This package provides convenient top-level wrappers around the
// appender, reader, filter, and discovery packages, covering the common
// cases. Sealed archives are handled by the archive package, which has no
// wrapper here. For fine-grained control, use those packages directly.
package secdb

import (
	"fmt"

	"github.com/3liv/secdb/appender"
	"github.com/3liv/secdb/discovery"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/filter"
	"github.com/3liv/secdb/format"
	"github.com/3liv/secdb/reader"
)

// Root is the process-wide base directory used to resolve (symbol, date)
// pairs to paths. It is read-once configuration: set it at startup, if at
// all, before calling any discovery-backed function; it is not safe to
// mutate concurrently with those calls.
var Root = discovery.DefaultRoot

// Option configures depth, scale, and chunk_size when opening an
// Appender. See appender.WithDepth, appender.WithScale,
// appender.WithChunkSize.
type Option = appender.Option

// WithDepth sets the number of book levels stored per side.
func WithDepth(depth int) Option { return appender.WithDepth(depth) }

// WithScale sets the fixed multiplier used to convert real prices to
// stored integers.
func WithScale(scale int) Option { return appender.WithScale(scale) }

// WithChunkSize sets the chunk bucket width, in milliseconds.
func WithChunkSize(ms int64) Option { return appender.WithChunkSize(ms) }

// OpenAppend opens or resumes an append-mode handle for (symbol, date)
// under Root, creating the file and its parent directories if it does not
// exist yet.
func OpenAppend(symbol, date string, opts ...Option) (*appender.Appender, error) {
	norm, err := discovery.ParseDate(date)
	if err != nil {
		return nil, err
	}

	path, err := discovery.Path(Root, symbol, norm)
	if err != nil {
		return nil, err
	}

	return appender.Open(path, symbol, norm, opts...)
}

// Append writes ev through app. It is a thin wrapper kept for symmetry
// with the language-neutral append(Appender, Event) call; most callers
// will just call app.Append directly.
func Append(app *appender.Appender, ev event.Event) error {
	return app.Append(ev)
}

// OpenRead materializes a detached ReaderState for (symbol, date) under
// Root.
func OpenRead(symbol, date string) (*reader.ReaderState, error) {
	path, err := discovery.Path(Root, symbol, date)
	if err != nil {
		return nil, err
	}

	return reader.OpenRead(path)
}

// InitReader builds a Pipeline over rs's raw event stream, running every
// event through filters in order.
func InitReader(rs *reader.ReaderState, filters ...filter.Filter) *filter.Pipeline {
	return filter.New(rs.NewIterator(), filters...)
}

// ReadEvent pulls the next event out of p. ok is false at end-of-stream.
func ReadEvent(p *filter.Pipeline) (ev event.Event, ok bool, err error) {
	return p.ReadOne()
}

// Events opens (symbol, date) under Root, runs its stream through
// filters, and collects every resulting event. It is the one-shot
// convenience wrapper around OpenRead + InitReader + ReadEvent.
func Events(symbol, date string, filters ...filter.Filter) ([]event.Event, error) {
	rs, err := OpenRead(symbol, date)
	if err != nil {
		return nil, err
	}

	if len(filters) == 0 {
		return rs.Events()
	}

	return filter.Collect(InitReader(rs, filters...))
}

// Stocks lists every distinct symbol with at least one file under Root.
func Stocks() ([]string, error) {
	return discovery.Symbols(Root)
}

// Dates lists every date with a file for symbol under Root.
func Dates(symbol string) ([]string, error) {
	return discovery.Dates(Root, symbol)
}

// CommonDates returns the sorted intersection of Dates(s) across symbols.
func CommonDates(symbols []string) ([]string, error) {
	return discovery.CommonDates(Root, symbols)
}

// Presence describes which chunk buckets hold at least one recorded MD.
type Presence struct {
	ChunkCount int
	Present    []int
}

// Info describes a file's identity, format options, and chunk presence.
type Info struct {
	Path     string
	Symbol   string
	Date     string
	Version  int
	Scale    int
	Depth    int
	Interval int64
	Presence Presence
}

// InfoOf reports Info for (symbol, date) under Root, without decoding any
// event.
func InfoOf(symbol, date string) (Info, error) {
	path, err := discovery.Path(Root, symbol, date)
	if err != nil {
		return Info{}, err
	}

	rs, err := reader.OpenRead(path)
	if err != nil {
		return Info{}, fmt.Errorf("secdb: info: %w", err)
	}

	return infoFrom(path, rs.Header(), rs.Chunkmap()), nil
}

func infoFrom(path string, h *format.Header, cmap *format.Chunkmap) Info {
	return Info{
		Path:     path,
		Symbol:   h.Symbol,
		Date:     h.Date,
		Version:  h.Version,
		Scale:    h.Scale,
		Depth:    h.Depth,
		Interval: h.ChunkSize,
		Presence: Presence{
			ChunkCount: h.ChunkCount(),
			Present:    cmap.PresentBuckets(),
		},
	}
}
