package archive

import "github.com/klauspost/compress/s2"

// S2Codec compresses with S2, klauspost's Snappy-compatible extension
// tuned for high throughput on already mostly-sequential data such as a
// secdb event stream. Decompression writes straight into a buffer sized
// from the archive header.
type S2Codec struct{}

var _ Codec = S2Codec{}

func (S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

func (S2Codec) Decompress(data []byte, originalLen int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(make([]byte, originalLen), data)
}
