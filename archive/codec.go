// Package archive implements sealed-file cold storage for .secdb files:
// compressing a file's full on-disk bytes for long-term storage or
// transfer to another node, and verifying the round trip with an xxhash
// digest so a corrupted or truncated transfer is caught before a reader
// ever sees it.
package archive

import "fmt"

// CompressionType identifies a sealed archive's compression algorithm. It
// is stored in the archive header so Open can pick the matching codec
// without the caller having to remember which one Seal used.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Compressor compresses a full buffer in one call.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a full buffer in one call. originalLen is the
// exact uncompressed size recorded in the archive header, so every codec
// can allocate its output once instead of guessing.
type Decompressor interface {
	Decompress(data []byte, originalLen int) ([]byte, error)
}

// Codec combines both directions of one compression algorithm.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[CompressionType]Codec{
	CompressionNone: NoOpCodec{},
	CompressionZstd: ZstdCodec{},
	CompressionS2:   S2Codec{},
	CompressionLZ4:  LZ4Codec{},
}

// GetCodec returns the built-in Codec for compressionType.
func GetCodec(compressionType CompressionType) (Codec, error) {
	if c, ok := builtinCodecs[compressionType]; ok {
		return c, nil
	}

	return nil, fmt.Errorf("archive: unsupported compression type %d", compressionType)
}
