// Package filter implements the composable stream-transform stage of the
// read path: a Filter consumes events one at a time and may emit zero,
// one, or several events per input, plus whatever it is still holding when
// the stream ends. A Pipeline stacks any number of Filters in front of a
// Source and exposes the result as a single pull cursor, so a candle
// aggregation can sit downstream of a time-range clip without either stage
// knowing about the other.
package filter

import (
	"fmt"

	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
)

// Filter transforms a stream of events. Step is called once per event in
// source order; ev is nil exactly once, at end-of-stream, giving the
// filter a chance to flush anything it is buffering (an in-progress
// candle bucket, for instance). A Filter must not retain ev beyond the
// call: callers may reuse the pointee.
type Filter interface {
	Step(ev *event.Event) ([]event.Event, error)
}

// Source is anything a Pipeline can pull raw events from. *reader.Iterator
// satisfies this via its ReadOne method.
type Source interface {
	ReadOne() (event.Event, bool, error)
}

// Pipeline pulls from a Source through a stack of Filters, applied in the
// order given to New, and exposes the combined result through ReadOne so a
// caller cannot tell a filtered stream from a raw one.
type Pipeline struct {
	src     Source
	filters []Filter
	queue   []event.Event
	srcDone bool
	flushed bool
}

// New builds a Pipeline that pulls from src and pushes every event through
// filters in order before handing it to the caller.
func New(src Source, filters ...Filter) *Pipeline {
	return &Pipeline{src: src, filters: filters}
}

// ReadOne returns the next event out of the pipeline, or ok==false at
// end-of-stream. Errors from the source or from any filter stage abort the
// pipeline immediately.
func (p *Pipeline) ReadOne() (event.Event, bool, error) {
	for len(p.queue) == 0 {
		if p.flushed {
			return event.Event{}, false, nil
		}

		if p.srcDone {
			out, err := runStage(p.filters, 0, nil, true)
			if err != nil {
				return event.Event{}, false, err
			}

			p.queue = out
			p.flushed = true

			continue
		}

		ev, ok, err := p.src.ReadOne()
		if err != nil {
			return event.Event{}, false, err
		}
		if !ok {
			p.srcDone = true
			continue
		}

		out, err := runStage(p.filters, 0, []event.Event{ev}, false)
		if err != nil {
			return event.Event{}, false, err
		}

		p.queue = out
	}

	next := p.queue[0]
	p.queue = p.queue[1:]

	return next, true, nil
}

// runStage feeds events through filters[idx:] in order. isEnd signals the
// final end-of-stream flush: events is empty and every filter still gets
// exactly one nil-event Step call, in stage order, so each stage's flushed
// output cascades into the next stage's own flush. An error returned by a
// stage, or a panic inside one, is reported wrapped in errs.ErrFilterError.
func runStage(filters []Filter, idx int, events []event.Event, isEnd bool) (produced []event.Event, err error) {
	if idx >= len(filters) {
		return events, nil
	}

	f := filters[idx]

	defer func() {
		if r := recover(); r != nil {
			produced, err = nil, fmt.Errorf("%w: stage %d panicked: %v", errs.ErrFilterError, idx, r)
		}
	}()

	for i := range events {
		out, err := f.Step(&events[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrFilterError, err)
		}

		produced = append(produced, out...)
	}

	if isEnd {
		out, err := f.Step(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrFilterError, err)
		}

		produced = append(produced, out...)
	}

	return runStage(filters, idx+1, produced, isEnd)
}

// Collect drains p into a slice.
func Collect(p *Pipeline) ([]event.Event, error) {
	var out []event.Event

	for {
		ev, ok, err := p.ReadOne()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}

		out = append(out, ev)
	}
}
