package archive

import "github.com/pierrec/lz4/v4"

// LZ4Codec compresses with LZ4 block format: fast, moderate ratio, a good
// default for files that will be decompressed far more often than sealed.
//
// Sealing happens at most once per file, so the compressor's hash table
// is built fresh per call rather than kept warm in a pool; and because
// the archive header records the uncompressed size, decompression never
// needs the block format's usual grow-and-retry dance.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

func (LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := c.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

func (LZ4Codec) Decompress(data []byte, originalLen int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	buf := make([]byte, originalLen)

	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}
