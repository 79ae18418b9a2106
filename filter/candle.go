package filter

import "github.com/3liv/secdb/event"

// Candle aggregates MD and Trade events into fixed-width OHLCV buckets
// aligned to Unix-epoch time, not to any particular trading session.
//
// Open and close track the book's mid-price across the bucket and only
// fall back to trade prices when the bucket saw no MD with a usable mid
// (both best levels present): quote
// marks are smoother than print-to-print prices. High and low do the
// opposite, preferring trade prices whenever at least one trade landed in
// the bucket, since actual executions can trade through the quoted mid in
// either direction; only a bucket with no trades falls back to the mid's
// own running extremes.
type Candle struct {
	bucketMs int64
	scale    float64

	started     bool
	bucketStart int64

	hasMD    bool
	mdOpen   float64
	mdClose  float64
	mdHigh   float64
	mdLow    float64

	hasTrade   bool
	tradeOpen  float64
	tradeClose float64
	tradeHigh  float64
	tradeLow   float64

	volume uint64
}

// NewCandle returns a Candle filter bucketing by bucketMs and dividing raw
// scaled integer prices by scale to recover real price units. A scale of
// 0 is treated as 1 (no rescaling). A bucketMs of 0 collapses the entire
// stream into a single candle, emitted at end-of-stream with the first
// event's timestamp.
func NewCandle(bucketMs int64, scale int) *Candle {
	if scale == 0 {
		scale = 1
	}

	return &Candle{bucketMs: bucketMs, scale: float64(scale)}
}

// Step implements Filter.
func (c *Candle) Step(ev *event.Event) ([]event.Event, error) {
	if ev == nil {
		if !c.started {
			return nil, nil
		}

		out := []event.Event{c.emit()}
		c.reset()

		return out, nil
	}

	bucket := ev.Timestamp()
	if c.bucketMs > 0 {
		bucket = (ev.Timestamp() / c.bucketMs) * c.bucketMs
	} else if c.started {
		bucket = c.bucketStart
	}

	var out []event.Event

	if c.started && bucket != c.bucketStart {
		out = append(out, c.emit())
		c.reset()
	}

	if !c.started {
		c.bucketStart = bucket
		c.started = true
	}

	switch ev.Kind {
	case event.KindMD:
		c.absorbMD(ev.MD)
	case event.KindTrade:
		c.absorbTrade(ev.Trade)
	}

	return out, nil
}

func (c *Candle) absorbMD(md event.MD) {
	mid, ok := md.Mid()
	if !ok {
		return
	}

	price := mid / c.scale

	if !c.hasMD {
		c.mdOpen = price
		c.mdHigh = price
		c.mdLow = price
		c.hasMD = true
	} else {
		if price > c.mdHigh {
			c.mdHigh = price
		}
		if price < c.mdLow {
			c.mdLow = price
		}
	}

	c.mdClose = price
}

func (c *Candle) absorbTrade(t event.Trade) {
	price := float64(t.Price) / c.scale

	if !c.hasTrade {
		c.tradeOpen = price
		c.tradeHigh = price
		c.tradeLow = price
		c.hasTrade = true
	} else {
		if price > c.tradeHigh {
			c.tradeHigh = price
		}
		if price < c.tradeLow {
			c.tradeLow = price
		}
	}

	c.tradeClose = price
	c.volume += t.Volume
}

func (c *Candle) emit() event.Event {
	openPx, closePx := c.tradeOpen, c.tradeClose
	if c.hasMD {
		openPx, closePx = c.mdOpen, c.mdClose
	}

	high, low := c.mdHigh, c.mdLow
	if c.hasTrade {
		high, low = c.tradeHigh, c.tradeLow
	}

	return event.NewCandleEvent(event.Candle{
		Time:   c.bucketStart,
		Open:   openPx,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: c.volume,
	})
}

func (c *Candle) reset() {
	*c = Candle{bucketMs: c.bucketMs, scale: c.scale}
}
