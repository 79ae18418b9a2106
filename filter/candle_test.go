package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3liv/secdb/event"
)

func feedTrade(t *testing.T, c *Candle, ts, price int64, volume uint64) []event.Event {
	t.Helper()

	ev := event.NewTradeEvent(event.Trade{Timestamp: ts, TradeID: 1, Price: price, Volume: volume})
	out, err := c.Step(&ev)
	require.NoError(t, err)

	return out
}

func feedMD(t *testing.T, c *Candle, ts, bidPx, askPx int64) []event.Event {
	t.Helper()

	ev := event.NewMDEvent(event.MD{
		Timestamp: ts,
		Bid:       []event.Level{{Price: bidPx, Size: 1}},
		Ask:       []event.Level{{Price: askPx, Size: 1}},
	})
	out, err := c.Step(&ev)
	require.NoError(t, err)

	return out
}

func TestCandleTradeOnlyBucketing(t *testing.T) {
	c := NewCandle(3_600_000, 1)

	require.Empty(t, feedTrade(t, c, 1, 10, 5))
	require.Empty(t, feedTrade(t, c, 1000, 12, 3))

	out := feedTrade(t, c, 3_600_001, 9, 1)
	require.Len(t, out, 1)

	first := out[0].CandleData
	require.Equal(t, int64(0), first.Time)
	require.Equal(t, 10.0, first.Open)
	require.Equal(t, 12.0, first.High)
	require.Equal(t, 10.0, first.Low)
	require.Equal(t, 12.0, first.Close)
	require.Equal(t, uint64(8), first.Volume)

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	second := out[0].CandleData
	require.Equal(t, int64(3_600_000), second.Time)
	require.Equal(t, 9.0, second.Open)
	require.Equal(t, 9.0, second.High)
	require.Equal(t, 9.0, second.Low)
	require.Equal(t, 9.0, second.Close)
	require.Equal(t, uint64(1), second.Volume)
}

func TestCandlePrefersMDForOpenClose(t *testing.T) {
	c := NewCandle(60_000, 1)

	require.Empty(t, feedMD(t, c, 0, 100, 102)) // mid = 101
	require.Empty(t, feedTrade(t, c, 10, 90, 1))
	require.Empty(t, feedMD(t, c, 20, 105, 107)) // mid = 106

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	cd := out[0].CandleData
	require.Equal(t, 101.0, cd.Open)
	require.Equal(t, 106.0, cd.Close)
}

func TestCandlePrefersTradeForHighLowWhenTradesPresent(t *testing.T) {
	c := NewCandle(60_000, 1)

	require.Empty(t, feedMD(t, c, 0, 100, 102)) // mid = 101, would bound high/low to 101
	require.Empty(t, feedTrade(t, c, 10, 80, 1))
	require.Empty(t, feedTrade(t, c, 20, 130, 1))

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	cd := out[0].CandleData
	require.Equal(t, 130.0, cd.High)
	require.Equal(t, 80.0, cd.Low)
}

func TestCandleFallsBackToMDExtremesWithNoTrades(t *testing.T) {
	c := NewCandle(60_000, 1)

	require.Empty(t, feedMD(t, c, 0, 100, 102))  // mid 101
	require.Empty(t, feedMD(t, c, 10, 90, 92))    // mid 91
	require.Empty(t, feedMD(t, c, 20, 110, 112))  // mid 111

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	cd := out[0].CandleData
	require.Equal(t, 111.0, cd.High)
	require.Equal(t, 91.0, cd.Low)
}

func TestCandleZeroPeriodCollapsesWholeStream(t *testing.T) {
	c := NewCandle(0, 1)

	require.Empty(t, feedTrade(t, c, 1, 10, 5))
	require.Empty(t, feedTrade(t, c, 3_600_001, 12, 3))
	require.Empty(t, feedTrade(t, c, 86_000_000, 9, 1))

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	cd := out[0].CandleData
	require.Equal(t, int64(1), cd.Time)
	require.Equal(t, 10.0, cd.Open)
	require.Equal(t, 12.0, cd.High)
	require.Equal(t, 9.0, cd.Low)
	require.Equal(t, 9.0, cd.Close)
	require.Equal(t, uint64(9), cd.Volume)
}

func TestCandleEmptyStreamFlushesNothing(t *testing.T) {
	c := NewCandle(60_000, 1)

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestCandleScaleDividesPrices(t *testing.T) {
	c := NewCandle(60_000, 100)

	require.Empty(t, feedTrade(t, c, 0, 10050, 1)) // 100.50

	out, err := c.Step(nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.InDelta(t, 100.50, out[0].CandleData.Open, 0.0001)
}
