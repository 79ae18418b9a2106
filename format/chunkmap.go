package format

import "github.com/3liv/secdb/endian"

// ChunkEntrySize is the on-disk width of one chunkmap entry: a big-endian
// uint32 byte offset.
const ChunkEntrySize = 4

// Chunkmap is the in-memory form of the file's fixed-size time index: one
// entry per chunk bucket, holding the absolute byte offset of the first MD
// in that bucket, or 0 if no MD has landed there yet.
type Chunkmap struct {
	entries []uint32
}

// NewChunkmap returns a zeroed chunkmap with n entries, as written at
// file-creation time.
func NewChunkmap(n int) *Chunkmap {
	return &Chunkmap{entries: make([]uint32, n)}
}

// DecodeChunkmap parses a chunkmap from its on-disk big-endian uint32 array.
func DecodeChunkmap(data []byte, n int) *Chunkmap {
	cm := NewChunkmap(n)
	for i := 0; i < n && (i+1)*ChunkEntrySize <= len(data); i++ {
		cm.entries[i] = endian.BigEndian.Uint32(data[i*ChunkEntrySize : (i+1)*ChunkEntrySize])
	}

	return cm
}

// Bytes serializes the chunkmap as a flat array of big-endian uint32
// entries, suitable for writing verbatim at ChunkmapOffset.
func (c *Chunkmap) Bytes() []byte {
	buf := make([]byte, len(c.entries)*ChunkEntrySize)
	for i, v := range c.entries {
		endian.BigEndian.PutUint32(buf[i*ChunkEntrySize:(i+1)*ChunkEntrySize], v)
	}

	return buf
}

// Len returns the number of chunk buckets.
func (c *Chunkmap) Len() int {
	return len(c.entries)
}

// Get returns the stored byte offset for bucket b, or 0 if absent.
func (c *Chunkmap) Get(b int) uint32 {
	if b < 0 || b >= len(c.entries) {
		return 0
	}

	return c.entries[b]
}

// Set records offset as the first-MD offset for bucket b. It does not
// check for a prior value; callers should only call it when Get(b) == 0.
func (c *Chunkmap) Set(b int, offset uint32) {
	if b < 0 || b >= len(c.entries) {
		return
	}

	c.entries[b] = offset
}

// EntryOffset returns the absolute byte offset within the file of the
// chunkmap entry for bucket b, given the chunkmap's own start offset.
func EntryOffset(chunkmapOffset int64, b int) int64 {
	return chunkmapOffset + int64(b)*ChunkEntrySize
}

// PresentBuckets returns the indices of every non-absent bucket, in
// ascending order. It backs the `presence` field reported by info().
func (c *Chunkmap) PresentBuckets() []int {
	var out []int
	for i, v := range c.entries {
		if v != 0 {
			out = append(out, i)
		}
	}

	return out
}

// FloorBucket returns the largest bucket b <= bucket whose entry is
// non-absent, and true if one exists. This is the seek landing rule: find
// the nearest anchored bucket at or before the target and scan forward
// from there.
func (c *Chunkmap) FloorBucket(bucket int) (int, bool) {
	if bucket >= len(c.entries) {
		bucket = len(c.entries) - 1
	}

	for b := bucket; b >= 0; b-- {
		if c.entries[b] != 0 {
			return b, true
		}
	}

	return 0, false
}
