package archive

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/3liv/secdb/errs"
	"github.com/3liv/secdb/internal/hash"
)

// magic identifies a sealed archive: "SDBZ" followed by a format version.
var magic = [5]byte{'S', 'D', 'B', 'Z', 1}

// headerSize is magic(5) + compression type(1) + digest(8) + original
// length(8).
const headerSize = 5 + 1 + 8 + 8

// maxUnsealedSize caps the original length a header may claim. A single
// day's event stream stays well under this even at maximum depth.
const maxUnsealedSize = 16 << 30

// Seal reads srcPath in full, compresses it with the given codec, and
// writes a sealed archive to dstPath: a small fixed header carrying the
// codec used, the xxHash64 digest of the original bytes, and the original
// length, followed by the compressed payload. Open reverses this and
// verifies the digest before returning the data.
func Seal(srcPath, dstPath string, compressionType CompressionType) error {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	codec, err := GetCodec(compressionType)
	if err != nil {
		return err
	}

	compressed, err := codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}

	out := make([]byte, headerSize+len(compressed))
	copy(out, magic[:])
	out[5] = byte(compressionType)
	binary.BigEndian.PutUint64(out[6:14], hash.Sum(raw))
	binary.BigEndian.PutUint64(out[14:22], uint64(len(raw)))
	copy(out[headerSize:], compressed)

	if err := os.WriteFile(dstPath, out, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	return nil
}

// Open reads a sealed archive from path, decompresses it, and verifies
// that it hashes to the digest recorded in the header. It returns the
// original, uncompressed bytes — typically a full .secdb file image
// suitable for reader.FromBytes.
func Open(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.ErrNotFound
		}

		return nil, fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	return Unseal(data)
}

// Unseal decompresses and verifies an in-memory sealed archive image, for
// callers that already have the bytes (e.g. received over the network
// rather than read from a local file).
func Unseal(data []byte) ([]byte, error) {
	if len(data) < headerSize || data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] || data[4] != magic[4] {
		return nil, errs.ErrBadArchive
	}

	compressionType := CompressionType(data[5])
	wantDigest := binary.BigEndian.Uint64(data[6:14])
	origLen := binary.BigEndian.Uint64(data[14:22])

	// The recorded length sizes the decompression buffer, so a corrupt
	// header must not be allowed to demand an absurd allocation.
	if origLen > maxUnsealedSize {
		return nil, fmt.Errorf("%w: recorded length %d exceeds limit", errs.ErrBadArchive, origLen)
	}

	codec, err := GetCodec(compressionType)
	if err != nil {
		return nil, err
	}

	raw, err := codec.Decompress(data[headerSize:], int(origLen))
	if err != nil {
		return nil, fmt.Errorf("archive: decompress: %w", err)
	}

	if uint64(len(raw)) != origLen {
		return nil, fmt.Errorf("%w: length %d, want %d", errs.ErrDigestMismatch, len(raw), origLen)
	}

	if hash.Sum(raw) != wantDigest {
		return nil, errs.ErrDigestMismatch
	}

	return raw, nil
}
