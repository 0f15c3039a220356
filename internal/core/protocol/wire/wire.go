// If you are AI: This file implements big/little-endian integer helpers shared by
// the chunk-stream and AMF codecs.

package wire

// BE24 decodes a 24-bit big-endian unsigned integer from the first 3 bytes of b.
func BE24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutBE24 encodes v into the first 3 bytes of b as big-endian. v above 2^24-1 is truncated.
func PutBE24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// BE32 decodes a 32-bit big-endian unsigned integer from the first 4 bytes of b.
func BE32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutBE32 encodes v into the first 4 bytes of b as big-endian.
func PutBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// LE32 decodes a 32-bit little-endian unsigned integer from the first 4 bytes of b.
// RTMP's chunk message-stream-id field is the one multi-byte field on the wire that
// is little-endian while everything else is big-endian.
func LE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PutLE32 encodes v into the first 4 bytes of b as little-endian.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// BE16 decodes a 16-bit big-endian unsigned integer from the first 2 bytes of b.
func BE16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutBE16 encodes v into the first 2 bytes of b as big-endian.
func PutBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
