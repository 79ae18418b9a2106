package archive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec compresses with Zstandard, the default choice for sealing a
// finished day's file for cold storage: best ratio of the available
// codecs, at a compression-time cost that's irrelevant for a file that is
// only sealed once.
//
// Coders are constructed per call and closed when done. A seal or unseal
// is a one-shot, whole-file operation, so there is no hot loop for a
// pooled, warmed-up coder to pay off in; releasing the coder's window
// memory immediately matters more.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

func (ZstdCodec) Compress(data []byte) ([]byte, error) {
	e, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: zstd encoder: %w", err)
	}
	defer e.Close()

	return e.EncodeAll(data, nil), nil
}

func (ZstdCodec) Decompress(data []byte, originalLen int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("archive: zstd decoder: %w", err)
	}
	defer d.Close()

	out, err := d.DecodeAll(data, make([]byte, 0, originalLen))
	if err != nil {
		return nil, fmt.Errorf("archive: zstd decompression failed: %w", err)
	}

	return out, nil
}
