// Package event defines the domain types exchanged between the codec,
// appender, reader, and filter packages: order-book snapshots, trades, and
// the tagged union that streams through the pipeline.
package event

import "fmt"

// Kind identifies which variant of the Event tagged union is populated.
type Kind uint8

const (
	// KindMD marks an Event as an order-book snapshot (full or reconstructed-from-delta).
	KindMD Kind = iota + 1
	// KindTrade marks an Event as an executed trade.
	KindTrade
	// KindCandle marks an Event as a candle emitted by the candle filter.
	// It never appears in a raw Reader stream; only filter pipelines that
	// include a candle stage produce it.
	KindCandle
)

func (k Kind) String() string {
	switch k {
	case KindMD:
		return "MD"
	case KindTrade:
		return "Trade"
	case KindCandle:
		return "Candle"
	default:
		return "Unknown"
	}
}

// Level is a single price level on one side of the book: a scaled integer
// price and an integer size. A missing level is the zero value (0, 0).
type Level struct {
	Price int64
	Size  uint64
}

// MD is a full order-book snapshot: exactly Depth levels per side, ordered
// best-to-worst (level 0 is best bid / best ask).
type MD struct {
	Timestamp int64
	Bid       []Level
	Ask       []Level
}

// Clone returns a deep copy of the MD, safe to retain across appends/reads
// that reuse backing slices.
func (m MD) Clone() MD {
	out := MD{Timestamp: m.Timestamp}
	out.Bid = append(out.Bid, m.Bid...)
	out.Ask = append(out.Ask, m.Ask...)

	return out
}

// Mid returns the mid-price between the best bid and best ask as a float64
// in scaled-price units. It returns false if either side's best level is
// absent (zero price and size).
func (m MD) Mid() (float64, bool) {
	if len(m.Bid) == 0 || len(m.Ask) == 0 {
		return 0, false
	}

	bid, ask := m.Bid[0], m.Ask[0]
	if bid.Price == 0 && bid.Size == 0 {
		return 0, false
	}

	if ask.Price == 0 && ask.Size == 0 {
		return 0, false
	}

	return (float64(bid.Price) + float64(ask.Price)) / 2, true
}

// Trade is an executed transaction.
type Trade struct {
	Timestamp int64
	TradeID   uint64
	Price     int64
	Volume    uint64
}

// Event is a tagged union threading through the filter pipeline: a raw
// Reader only ever produces KindMD/KindTrade events, but a pipeline with a
// candle stage emits KindCandle events in their place.
type Event struct {
	Kind       Kind
	MD         MD
	Trade      Trade
	CandleData Candle
}

// Timestamp returns the timestamp of whichever variant is populated.
func (e Event) Timestamp() int64 {
	switch e.Kind {
	case KindTrade:
		return e.Trade.Timestamp
	case KindCandle:
		return e.CandleData.Time
	default:
		return e.MD.Timestamp
	}
}

// NewMDEvent wraps an MD snapshot as an Event.
func NewMDEvent(md MD) Event {
	return Event{Kind: KindMD, MD: md}
}

// NewTradeEvent wraps a Trade as an Event.
func NewTradeEvent(t Trade) Event {
	return Event{Kind: KindTrade, Trade: t}
}

// NewCandleEvent wraps a Candle as an Event.
func NewCandleEvent(c Candle) Event {
	return Event{Kind: KindCandle, CandleData: c}
}

func (e Event) String() string {
	switch e.Kind {
	case KindMD:
		return fmt.Sprintf("MD{ts=%d, bid0=%v, ask0=%v}", e.MD.Timestamp, first(e.MD.Bid), first(e.MD.Ask))
	case KindTrade:
		return fmt.Sprintf("Trade{ts=%d, id=%d, price=%d, vol=%d}", e.Trade.Timestamp, e.Trade.TradeID, e.Trade.Price, e.Trade.Volume)
	case KindCandle:
		c := e.CandleData
		return fmt.Sprintf("Candle{t=%d, o=%.4f, h=%.4f, l=%.4f, c=%.4f, v=%d}", c.Time, c.Open, c.High, c.Low, c.Close, c.Volume)
	default:
		return "Event{unknown}"
	}
}

func first(levels []Level) Level {
	if len(levels) == 0 {
		return Level{}
	}

	return levels[0]
}

// Candle is an OHLC+volume aggregate over a time bucket, produced by the
// candle filter.
type Candle struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume uint64
}
