package secdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/filter"
)

func withTempRoot(t *testing.T) {
	t.Helper()

	prev := Root
	Root = t.TempDir()
	t.Cleanup(func() { Root = prev })
}

func md(ts, bidPx, askPx int64) event.Event {
	return event.NewMDEvent(event.MD{
		Timestamp: ts,
		Bid:       []event.Level{{Price: bidPx, Size: 1}},
		Ask:       []event.Level{{Price: askPx, Size: 1}},
	})
}

func TestOpenAppendAndReadRoundTrip(t *testing.T) {
	withTempRoot(t)

	app, err := OpenAppend("AAPL", "2024-01-02", WithChunkSize(60_000))
	require.NoError(t, err)

	base := int64(1704153600000)
	require.NoError(t, Append(app, md(base+1_000, 100, 101)))
	require.NoError(t, app.Close())

	events, err := Events("AAPL", "2024-01-02")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestOpenAppendNormalizesDateLayout(t *testing.T) {
	withTempRoot(t)

	app, err := OpenAppend("AAPL", "2024/01/02")
	require.NoError(t, err)
	require.NoError(t, Append(app, md(1704153600000+1_000, 100, 101)))
	require.NoError(t, app.Close())

	// The dotted form resolves to the same file.
	events, err := Events("AAPL", "2024.01.02")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestEventsWithFilterPipeline(t *testing.T) {
	withTempRoot(t)

	app, err := OpenAppend("AAPL", "2024-01-02", WithChunkSize(60_000))
	require.NoError(t, err)

	base := int64(1704153600000)
	require.NoError(t, Append(app, md(base+1_000, 100, 101)))
	require.NoError(t, Append(app, md(base+61_000, 200, 201)))
	require.NoError(t, app.Close())

	events, err := Events("AAPL", "2024-01-02", filter.NewRange(base+61_000, 0))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, base+61_000, events[0].Timestamp())
}

func TestStocksDatesCommonDates(t *testing.T) {
	withTempRoot(t)

	for _, sym := range []string{"AAPL", "MSFT"} {
		app, err := OpenAppend(sym, "2024-01-02")
		require.NoError(t, err)
		require.NoError(t, Append(app, md(1704153600000+1_000, 100, 101)))
		require.NoError(t, app.Close())
	}

	stocks, err := Stocks()
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, stocks)

	dates, err := Dates("AAPL")
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-02"}, dates)

	common, err := CommonDates(stocks)
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-02"}, common)
}

func TestInfoOfReportsHeaderAndPresence(t *testing.T) {
	withTempRoot(t)

	app, err := OpenAppend("AAPL", "2024-01-02", WithDepth(2), WithChunkSize(60_000))
	require.NoError(t, err)

	base := int64(1704153600000)
	level2 := event.MD{
		Timestamp: base + 1_000,
		Bid:       []event.Level{{Price: 100, Size: 1}, {Price: 99, Size: 1}},
		Ask:       []event.Level{{Price: 101, Size: 1}, {Price: 102, Size: 1}},
	}
	require.NoError(t, Append(app, event.NewMDEvent(level2)))
	require.NoError(t, app.Close())

	info, err := InfoOf("AAPL", "2024-01-02")
	require.NoError(t, err)
	require.Equal(t, "AAPL", info.Symbol)
	require.Equal(t, "2024-01-02", info.Date)
	require.Equal(t, 2, info.Depth)
	require.Equal(t, []int{0}, info.Presence.Present)
}

func TestInitReaderAndReadEvent(t *testing.T) {
	withTempRoot(t)

	app, err := OpenAppend("AAPL", "2024-01-02")
	require.NoError(t, err)
	require.NoError(t, Append(app, md(1704153600000+1_000, 100, 101)))
	require.NoError(t, app.Close())

	rs, err := OpenRead("AAPL", "2024-01-02")
	require.NoError(t, err)

	p := InitReader(rs)
	ev, ok, err := ReadEvent(p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.KindMD, ev.Kind)

	_, ok, err = ReadEvent(p)
	require.NoError(t, err)
	require.False(t, ok)
}
