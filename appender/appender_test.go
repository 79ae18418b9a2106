package appender

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/reader"
)

func md(ts int64, bidPx, askPx int64) event.Event {
	return event.NewMDEvent(event.MD{
		Timestamp: ts,
		Bid:       []event.Level{{Price: bidPx, Size: 10}},
		Ask:       []event.Level{{Price: askPx, Size: 20}},
	})
}

func trade(ts int64, px int64) event.Event {
	return event.NewTradeEvent(event.Trade{Timestamp: ts, TradeID: 1, Price: px, Volume: 1})
}

// dayStart is the Unix-epoch millisecond timestamp of 2024-01-02T00:00:00Z,
// matching the date used by every test file in this package.
func dayStart(t *testing.T) int64 {
	t.Helper()
	return 1704153600000
}

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02", WithDepth(1), WithChunkSize(60_000))
	require.NoError(t, err)

	base := dayStart(t)
	require.NoError(t, a.Append(md(base+1000, 100, 101)))
	require.NoError(t, a.Append(trade(base+1500, 100)))
	require.NoError(t, a.Append(md(base+2000, 102, 103)))
	require.NoError(t, a.Close())

	rs, err := reader.OpenRead(path)
	require.NoError(t, err)

	events, err := rs.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, event.KindMD, events[0].Kind)
	require.Equal(t, event.KindTrade, events[1].Kind)
	require.Equal(t, event.KindMD, events[2].Kind)
	require.Equal(t, int64(102), events[2].MD.Bid[0].Price)
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02")
	require.NoError(t, err)
	defer a.Close()

	base := dayStart(t)
	require.NoError(t, a.Append(md(base+5000, 100, 101)))

	err = a.Append(md(base+1000, 100, 101))
	require.ErrorIs(t, err, errs.ErrOutOfOrder)
}

func TestAppendRejectsOutOfDayRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02")
	require.NoError(t, err)
	defer a.Close()

	err = a.Append(md(dayStart(t)+100_000_000, 100, 101))
	require.ErrorIs(t, err, errs.ErrOutOfRange)
}

func TestOpenRejectsIncompatibleOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02", WithDepth(1))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = Open(path, "AAPL", "2024-01-02", WithDepth(2))
	require.ErrorIs(t, err, errs.ErrIncompatibleHeader)
}

func TestReopenRecoversLastMDAndChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	base := dayStart(t)

	a, err := Open(path, "AAPL", "2024-01-02", WithChunkSize(60_000))
	require.NoError(t, err)
	require.NoError(t, a.Append(md(base+1000, 100, 101)))
	require.NoError(t, a.Close())

	a2, err := Open(path, "AAPL", "2024-01-02", WithChunkSize(60_000))
	require.NoError(t, err)
	defer a2.Close()

	// Delta-eligible: same chunk bucket, so this should encode as a delta,
	// not a second full MD.
	require.NoError(t, a2.Append(md(base+2000, 105, 101)))
	require.NoError(t, a2.Close())

	rs, err := reader.OpenRead(path)
	require.NoError(t, err)
	events, err := rs.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(105), events[1].MD.Bid[0].Price)
}

func TestAppendRejectsDepthMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02", WithDepth(2))
	require.NoError(t, err)
	defer a.Close()

	err = a.Append(md(dayStart(t)+1000, 100, 101)) // only 1 level, depth is 2
	require.Error(t, err)
}

func TestAppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := Open(path, "AAPL", "2024-01-02")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	err = a.Append(md(dayStart(t)+1000, 100, 101))
	require.ErrorIs(t, err, errs.ErrAlreadyClosed)

	require.NoError(t, a.Close()) // idempotent
}

func TestNewChunkBoundaryForcesFullMD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	base := dayStart(t)

	a, err := Open(path, "AAPL", "2024-01-02", WithChunkSize(60_000))
	require.NoError(t, err)
	require.NoError(t, a.Append(md(base+1000, 100, 101)))
	require.NoError(t, a.Append(md(base+61_000, 110, 111))) // next chunk bucket
	require.NoError(t, a.Close())

	rs, err := reader.OpenRead(path)
	require.NoError(t, err)

	cmap := rs.Chunkmap()
	require.NotZero(t, cmap.Get(0))
	require.NotZero(t, cmap.Get(1))
}
