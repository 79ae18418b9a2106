package filter

import (
	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/format"
	"github.com/3liv/secdb/reader"
)

// TimeSpec names a point in time as either an absolute Unix-epoch
// millisecond timestamp or a time-of-day offset resolved against a
// Header's Date at pipeline construction.
type TimeSpec struct {
	// Absolute is used verbatim unless the TimeSpec was built with
	// AtTimeOfDay.
	Absolute int64

	// TimeOfDayMs is milliseconds since 00:00:00 UTC of the header's date.
	// Only consulted for a TimeSpec built with AtTimeOfDay.
	TimeOfDayMs int64

	// useTimeOfDay marks a TimeSpec built with AtTimeOfDay, so that
	// AtTimeOfDay(0) means midnight of the header's date while the zero
	// TimeSpec resolves to absolute 0, which SeekRange treats as an open
	// bound.
	useTimeOfDay bool
}

// At returns a TimeSpec for an absolute Unix-epoch millisecond timestamp.
func At(timestampMs int64) TimeSpec {
	return TimeSpec{Absolute: timestampMs}
}

// AtTimeOfDay returns a TimeSpec anchored to msOfDay on whatever date the
// pipeline's header names.
func AtTimeOfDay(msOfDay int64) TimeSpec {
	return TimeSpec{TimeOfDayMs: msOfDay, useTimeOfDay: true}
}

func (t TimeSpec) resolve(h *format.Header) (int64, error) {
	if !t.useTimeOfDay {
		return t.Absolute, nil
	}

	dayStart, err := h.DayStartMs()
	if err != nil {
		return 0, err
	}

	return dayStart + t.TimeOfDayMs, nil
}

// Range clips a stream to [From, To) by absolute timestamp, Step-compatible
// with any position in a pipeline. Construct it with NewRange for cascaded
// use behind other filters; a Range placed directly on a Reader should
// instead go through SeekRange, which skips the leading clip for free via
// the chunkmap instead of scanning and discarding it.
type Range struct {
	from, to int64
	done     bool
}

// NewRange returns a Range filter that passes through only events with
// fromMs <= timestamp < toMs. A zero toMs means unbounded.
func NewRange(fromMs, toMs int64) *Range {
	return &Range{from: fromMs, to: toMs}
}

// Step implements Filter.
func (r *Range) Step(ev *event.Event) ([]event.Event, error) {
	if ev == nil {
		return nil, nil
	}

	if r.done {
		return nil, nil
	}

	ts := ev.Timestamp()
	if ts < r.from {
		return nil, nil
	}

	if r.to != 0 && ts >= r.to {
		r.done = true
		return nil, nil
	}

	return []event.Event{*ev}, nil
}

// SeekRange returns a Pipeline over rs clipped to [from, to), resolving
// both bounds against rs's header and landing the cursor at the first
// qualifying chunk bucket via ReaderState.Seek instead of scanning the
// whole stream from the front. to, if bounded, is still enforced by a
// cascaded Range so the pipeline stops exactly at the right event.
func SeekRange(rs *reader.ReaderState, from, to TimeSpec) (*Pipeline, error) {
	if rs == nil {
		return nil, errs.ErrInvalidRoot
	}

	fromMs, err := from.resolve(rs.Header())
	if err != nil {
		return nil, err
	}

	it, err := rs.Seek(fromMs)
	if err != nil {
		return nil, err
	}

	toMs := int64(0)
	if to.Absolute != 0 || to.useTimeOfDay {
		toMs, err = to.resolve(rs.Header())
		if err != nil {
			return nil, err
		}
	}

	if toMs == 0 {
		return New(it), nil
	}

	return New(it, NewRange(0, toMs)), nil
}
