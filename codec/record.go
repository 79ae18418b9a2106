package codec

import (
	"fmt"

	"github.com/3liv/secdb/endian"
	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/event"
)

// Record tag bytes. Chosen so each is unambiguous as the first byte of any
// record: they occupy disjoint high-bit patterns and never collide with a
// varint continuation byte because they are read positionally, not scanned.
const (
	TagFullMD  byte = 0xC0
	TagDeltaMD byte = 0x80
	TagTrade   byte = 0xA0
)

// TimestampFieldSize is the width, in bytes, of the fixed big-endian
// timestamp field in full-MD and Trade records.
const TimestampFieldSize = 8

// bitmaskSize returns the number of whole bytes needed to hold one bit per
// level per side: ceil(2*depth / 8).
func bitmaskSize(depth int) int {
	return (2*depth + 7) / 8
}

// EncodeFullMD appends a full MD record for md to buf. md.Bid and md.Ask
// must each have exactly depth levels.
func EncodeFullMD(buf []byte, md event.MD, depth int) []byte {
	buf = append(buf, TagFullMD)
	buf = endian.BigEndian.AppendUint64(buf, uint64(md.Timestamp))

	for i := 0; i < depth; i++ {
		buf = AppendSvarint(buf, md.Bid[i].Price)
		buf = AppendUvarint(buf, md.Bid[i].Size)
	}

	for i := 0; i < depth; i++ {
		buf = AppendSvarint(buf, md.Ask[i].Price)
		buf = AppendUvarint(buf, md.Ask[i].Size)
	}

	return buf
}

// EncodeDeltaMD appends a delta MD record for cur against prev to buf.
// Only levels that changed (price or size differs from prev) are written;
// a leading bitmask marks which levels those are. prev and cur must each
// have exactly depth levels per side.
func EncodeDeltaMD(buf []byte, prev, cur event.MD, depth int) []byte {
	buf = append(buf, TagDeltaMD)
	buf = AppendUvarint(buf, uint64(cur.Timestamp-prev.Timestamp))

	maskLen := bitmaskSize(depth)
	maskPos := len(buf)
	buf = append(buf, make([]byte, maskLen)...)

	setBit := func(bit int) {
		buf[maskPos+bit/8] |= 1 << uint(bit%8)
	}

	for i := 0; i < depth; i++ {
		if cur.Bid[i] != prev.Bid[i] {
			setBit(i)
			buf = AppendSvarint(buf, cur.Bid[i].Price-prev.Bid[i].Price)
			buf = AppendSvarint(buf, int64(cur.Bid[i].Size)-int64(prev.Bid[i].Size))
		}
	}

	for i := 0; i < depth; i++ {
		if cur.Ask[i] != prev.Ask[i] {
			setBit(depth + i)
			buf = AppendSvarint(buf, cur.Ask[i].Price-prev.Ask[i].Price)
			buf = AppendSvarint(buf, int64(cur.Ask[i].Size)-int64(prev.Ask[i].Size))
		}
	}

	return buf
}

// EncodeTrade appends a Trade record for t to buf.
func EncodeTrade(buf []byte, t event.Trade) []byte {
	buf = append(buf, TagTrade)
	buf = endian.BigEndian.AppendUint64(buf, uint64(t.Timestamp))
	buf = AppendUvarint(buf, t.TradeID)
	buf = AppendSvarint(buf, t.Price)
	buf = AppendUvarint(buf, t.Volume)

	return buf
}

// DecodeRecord decodes the record at data[offset:], given the file's
// depth and, for delta MDs, the previously decoded MD (anchor).
//
// Return convention:
//   - ok==true: ev and next are valid, err is nil.
//   - ok==false, err==nil: data is truncated at offset (torn tail); the
//     caller should treat this as end-of-stream, not corruption.
//   - ok==false, err!=nil: offset holds a malformed record (unknown tag,
//     delta with no anchor, bitmask out of range, varint overflow); err
//     wraps both errs.ErrCorruptStream and the specific sentinel.
func DecodeRecord(data []byte, offset int, depth int, prev *event.MD) (ev event.Event, next int, ok bool, err error) {
	if offset >= len(data) {
		return event.Event{}, offset, false, nil
	}

	tag := data[offset]
	switch tag {
	case TagFullMD:
		ev, next, ok, err = decodeFullMD(data, offset, depth)
	case TagDeltaMD:
		ev, next, ok, err = decodeDeltaMD(data, offset, depth, prev)
	case TagTrade:
		ev, next, ok, err = decodeTrade(data, offset)
	default:
		err = fmt.Errorf("%w: tag 0x%02x at offset %d", errs.ErrUnknownTag, tag, offset)
	}

	if err != nil {
		return event.Event{}, offset, false, fmt.Errorf("%w: %w", errs.ErrCorruptStream, err)
	}

	return ev, next, ok, nil
}

func decodeFullMD(data []byte, offset int, depth int) (event.Event, int, bool, error) {
	pos := offset + 1
	if pos+TimestampFieldSize > len(data) {
		return event.Event{}, offset, false, nil
	}

	ts := int64(endian.BigEndian.Uint64(data[pos : pos+TimestampFieldSize]))
	pos += TimestampFieldSize

	md := event.MD{Timestamp: ts, Bid: make([]event.Level, depth), Ask: make([]event.Level, depth)}

	pos, truncated, err := readLevels(data, pos, md.Bid)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if truncated {
		return event.Event{}, offset, false, nil
	}

	pos, truncated, err = readLevels(data, pos, md.Ask)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if truncated {
		return event.Event{}, offset, false, nil
	}

	return event.NewMDEvent(md), pos, true, nil
}

func readLevels(data []byte, pos int, levels []event.Level) (next int, truncated bool, err error) {
	for i := range levels {
		price, n, ok, err := ReadSvarint(data, pos)
		if err != nil {
			return pos, false, err
		}
		if !ok {
			return pos, true, nil
		}
		pos = n

		size, n, ok, err := ReadUvarint(data, pos)
		if err != nil {
			return pos, false, err
		}
		if !ok {
			return pos, true, nil
		}
		pos = n

		levels[i] = event.Level{Price: price, Size: size}
	}

	return pos, false, nil
}

func decodeDeltaMD(data []byte, offset int, depth int, prev *event.MD) (event.Event, int, bool, error) {
	if prev == nil {
		return event.Event{}, offset, false, fmt.Errorf("%w: at offset %d", errs.ErrDeltaWithoutAnchor, offset)
	}

	pos := offset + 1

	deltaTS, next, ok, err := ReadUvarint(data, pos)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if !ok {
		return event.Event{}, offset, false, nil
	}
	pos = next

	maskLen := bitmaskSize(depth)
	if pos+maskLen > len(data) {
		return event.Event{}, offset, false, nil
	}

	mask := data[pos : pos+maskLen]
	pos += maskLen

	maxBit := 2 * depth
	for bytePos, b := range mask {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) == 0 {
				continue
			}
			if bytePos*8+bit >= maxBit {
				return event.Event{}, offset, false, fmt.Errorf("%w: bit %d at offset %d", errs.ErrInvalidBitmask, bytePos*8+bit, offset)
			}
		}
	}

	md := event.MD{Timestamp: prev.Timestamp + int64(deltaTS), Bid: append([]event.Level(nil), prev.Bid...), Ask: append([]event.Level(nil), prev.Ask...)}

	bitSet := func(bit int) bool {
		return mask[bit/8]&(1<<uint(bit%8)) != 0
	}

	for i := 0; i < depth; i++ {
		if !bitSet(i) {
			continue
		}

		dPrice, n, ok, err := ReadSvarint(data, pos)
		if err != nil {
			return event.Event{}, offset, false, err
		}
		if !ok {
			return event.Event{}, offset, false, nil
		}
		pos = n

		dSize, n, ok, err := ReadSvarint(data, pos)
		if err != nil {
			return event.Event{}, offset, false, err
		}
		if !ok {
			return event.Event{}, offset, false, nil
		}
		pos = n

		md.Bid[i] = event.Level{Price: prev.Bid[i].Price + dPrice, Size: uint64(int64(prev.Bid[i].Size) + dSize)}
	}

	for i := 0; i < depth; i++ {
		if !bitSet(depth + i) {
			continue
		}

		dPrice, n, ok, err := ReadSvarint(data, pos)
		if err != nil {
			return event.Event{}, offset, false, err
		}
		if !ok {
			return event.Event{}, offset, false, nil
		}
		pos = n

		dSize, n, ok, err := ReadSvarint(data, pos)
		if err != nil {
			return event.Event{}, offset, false, err
		}
		if !ok {
			return event.Event{}, offset, false, nil
		}
		pos = n

		md.Ask[i] = event.Level{Price: prev.Ask[i].Price + dPrice, Size: uint64(int64(prev.Ask[i].Size) + dSize)}
	}

	return event.NewMDEvent(md), pos, true, nil
}

func decodeTrade(data []byte, offset int) (event.Event, int, bool, error) {
	pos := offset + 1
	if pos+TimestampFieldSize > len(data) {
		return event.Event{}, offset, false, nil
	}

	ts := int64(endian.BigEndian.Uint64(data[pos : pos+TimestampFieldSize]))
	pos += TimestampFieldSize

	tradeID, next, ok, err := ReadUvarint(data, pos)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if !ok {
		return event.Event{}, offset, false, nil
	}
	pos = next

	price, next, ok, err := ReadSvarint(data, pos)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if !ok {
		return event.Event{}, offset, false, nil
	}
	pos = next

	volume, next, ok, err := ReadUvarint(data, pos)
	if err != nil {
		return event.Event{}, offset, false, err
	}
	if !ok {
		return event.Event{}, offset, false, nil
	}
	pos = next

	return event.NewTradeEvent(event.Trade{Timestamp: ts, TradeID: tradeID, Price: price, Volume: volume}), pos, true, nil
}

// FullMDMaxSize returns the worst-case number of bytes EncodeFullMD could
// write for an MD with the given depth, without allocating. Appenders use
// it to pre-grow their output buffer once per full MD instead of letting
// append reallocate mid-encode.
func FullMDMaxSize(depth int) int {
	// tag + timestamp + 2*depth levels, each up to MaxVarintLen64*2 bytes worst case.
	return 1 + TimestampFieldSize + 2*depth*2*10
}
