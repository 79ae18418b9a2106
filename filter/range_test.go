package filter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3liv/secdb/appender"
	"github.com/3liv/secdb/event"
	"github.com/3liv/secdb/reader"
)

const rangeTestDayStart = int64(1704153600000) // 2024-01-02T00:00:00Z

func mdEvent(ts, bidPx, askPx int64) event.Event {
	return event.NewMDEvent(event.MD{
		Timestamp: ts,
		Bid:       []event.Level{{Price: bidPx, Size: 1}},
		Ask:       []event.Level{{Price: askPx, Size: 1}},
	})
}

func buildRangeFile(t *testing.T, events ...event.Event) *reader.ReaderState {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "AAPL.secdb")

	a, err := appender.Open(path, "AAPL", "2024-01-02", appender.WithChunkSize(60_000))
	require.NoError(t, err)

	for _, ev := range events {
		require.NoError(t, a.Append(ev))
	}
	require.NoError(t, a.Close())

	rs, err := reader.OpenRead(path)
	require.NoError(t, err)

	return rs
}

func TestRangeStepClipsToBounds(t *testing.T) {
	r := NewRange(100, 200)

	ev := mdEvent(50, 1, 2)
	out, err := r.Step(&ev)
	require.NoError(t, err)
	require.Empty(t, out)

	ev = mdEvent(150, 1, 2)
	out, err = r.Step(&ev)
	require.NoError(t, err)
	require.Len(t, out, 1)

	ev = mdEvent(200, 1, 2)
	out, err = r.Step(&ev)
	require.NoError(t, err)
	require.Empty(t, out)

	// Once past `to`, Range stays done even for an earlier timestamp.
	ev = mdEvent(150, 1, 2)
	out, err = r.Step(&ev)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRangeUnboundedTo(t *testing.T) {
	r := NewRange(100, 0)

	ev := mdEvent(10_000_000, 1, 2)
	out, err := r.Step(&ev)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestSeekRangeClipsUsingChunkmap(t *testing.T) {
	rs := buildRangeFile(t,
		mdEvent(rangeTestDayStart+1_000, 100, 101),
		mdEvent(rangeTestDayStart+61_000, 110, 111),
		mdEvent(rangeTestDayStart+121_000, 120, 121),
		mdEvent(rangeTestDayStart+181_000, 130, 131),
	)

	p, err := SeekRange(rs, At(rangeTestDayStart+61_000), At(rangeTestDayStart+181_000))
	require.NoError(t, err)

	out, err := Collect(p)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, rangeTestDayStart+61_000, out[0].Timestamp())
	require.Equal(t, rangeTestDayStart+121_000, out[1].Timestamp())
}

func TestSeekRangeUnboundedTo(t *testing.T) {
	rs := buildRangeFile(t,
		mdEvent(rangeTestDayStart+1_000, 100, 101),
		mdEvent(rangeTestDayStart+61_000, 110, 111),
	)

	p, err := SeekRange(rs, At(rangeTestDayStart+61_000), TimeSpec{})
	require.NoError(t, err)

	out, err := Collect(p)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestSeekRangeMatchesCascadedRange(t *testing.T) {
	events := []event.Event{
		mdEvent(rangeTestDayStart+1_000, 100, 101),
		mdEvent(rangeTestDayStart+61_000, 110, 111),
		mdEvent(rangeTestDayStart+121_000, 120, 121),
		mdEvent(rangeTestDayStart+181_000, 130, 131),
	}

	rs := buildRangeFile(t, events...)
	p, err := SeekRange(rs, At(rangeTestDayStart+61_000), At(rangeTestDayStart+181_000))
	require.NoError(t, err)

	viaSeek, err := Collect(p)
	require.NoError(t, err)

	rs2 := buildRangeFile(t, events...)
	viaCascade, err := Collect(New(rs2.NewIterator(),
		NewRange(rangeTestDayStart+61_000, rangeTestDayStart+181_000)))
	require.NoError(t, err)

	require.Equal(t, viaCascade, viaSeek)
}

func TestAtTimeOfDayResolvesAgainstHeaderDate(t *testing.T) {
	rs := buildRangeFile(t, mdEvent(rangeTestDayStart+5_000, 100, 101))

	p, err := SeekRange(rs, AtTimeOfDay(0), TimeSpec{})
	require.NoError(t, err)

	out, err := Collect(p)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
