// Package endian provides the byte-order engine used for fixed-width fields
// in the secdb file format.
//
// Unlike a general-purpose encoding library, the secdb wire format is fixed
// to big-endian for every fixed-width field (timestamps, chunkmap entries):
// this package exists so the rest of the codebase names the engine rather
// than sprinkling binary.BigEndian through call sites, and so a reader on
// any host reconstructs identical bytes regardless of native byte order.
package endian

import "encoding/binary"

// Engine combines ByteOrder and AppendByteOrder from encoding/binary into a
// single interface, matching binary.BigEndian's method set.
type Engine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// BigEndian is the sole wire-format engine for secdb files.
var BigEndian Engine = binary.BigEndian
