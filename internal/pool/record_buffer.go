// Package pool recycles the per-record encode buffer used on the append
// path.
//
// secdb records are small and bounded: the largest record the codec can
// emit is a full MD at maximum depth, a little over a kilobyte in the
// worst case, and typical records are tens of bytes. The pool therefore
// hands out buffers of a single fixed size class that already fits the
// worst case, rather than managing a general growth curve; Grow exists
// only as a safety valve and doubles to the requested size when it fires.
package pool

import "sync"

// recordSizeClass is the capacity of every pooled buffer. It must be at
// least codec.FullMDMaxSize(32), the largest record the format allows.
const recordSizeClass = 2048

// oversizeThreshold is the capacity beyond which a returned buffer is
// dropped instead of pooled, so one pathological Grow does not pin a
// large allocation for the life of the process.
const oversizeThreshold = 8 * recordSizeClass

// RecordBuffer is the reusable byte slice an Appender encodes one record
// into before handing it to the buffered writer.
type RecordBuffer struct {
	// B is the underlying byte slice, appended to directly by the codec.
	B []byte
}

// Bytes returns the encoded record.
func (rb *RecordBuffer) Bytes() []byte {
	return rb.B
}

// Reset empties the buffer, retaining its capacity.
func (rb *RecordBuffer) Reset() {
	rb.B = rb.B[:0]
}

// Grow ensures requiredBytes more bytes fit without reallocating. Pooled
// buffers already hold any legal record, so this only reallocates when a
// caller has accumulated more than one record in the buffer; it then
// doubles from the current capacity until the request fits.
func (rb *RecordBuffer) Grow(requiredBytes int) {
	if cap(rb.B)-len(rb.B) >= requiredBytes {
		return
	}

	newCap := cap(rb.B)
	if newCap == 0 {
		newCap = recordSizeClass
	}
	for newCap < len(rb.B)+requiredBytes {
		newCap *= 2
	}

	grown := make([]byte, len(rb.B), newCap)
	copy(grown, rb.B)
	rb.B = grown
}

var recordPool = sync.Pool{
	New: func() any {
		return &RecordBuffer{B: make([]byte, 0, recordSizeClass)}
	},
}

// GetRecordBuffer retrieves an empty, record-sized buffer from the pool.
func GetRecordBuffer() *RecordBuffer {
	return recordPool.Get().(*RecordBuffer)
}

// PutRecordBuffer returns rb to the pool. Buffers that outgrew the size
// class are discarded.
func PutRecordBuffer(rb *RecordBuffer) {
	if rb == nil || cap(rb.B) > oversizeThreshold {
		return
	}

	rb.Reset()
	recordPool.Put(rb)
}
