// If you are AI: This file handles RTMP message parsing and creation.
// Messages are parsed from chunk data and converted to appropriate types.

package rtmp

import (
	"io"

	"rtmprelay/internal/core/protocol/wire"
)

// Message represents a parsed RTMP message.
type Message struct {
	Type      byte
	Length    uint32
	Timestamp uint32
	StreamID  uint32
	Body      []byte
}

// ParseSetChunkSize parses a Set Chunk Size message.
func ParseSetChunkSize(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	size := wire.BE32(body[0:4])
	if size > MaxChunkSize {
		return 0, ErrChunkTooLarge
	}
	return size, nil
}

// CreateSetChunkSize creates a Set Chunk Size message body.
func CreateSetChunkSize(size uint32) []byte {
	body := make([]byte, 4)
	wire.PutBE32(body, size)
	return body
}

// CreateWindowAckSize creates a Window Acknowledgement Size message body.
func CreateWindowAckSize(size uint32) []byte {
	body := make([]byte, 4)
	wire.PutBE32(body, size)
	return body
}

// CreateSetPeerBandwidth creates a Set Peer Bandwidth message body.
func CreateSetPeerBandwidth(size uint32, limitType byte) []byte {
	body := make([]byte, 5)
	wire.PutBE32(body[0:4], size)
	body[4] = limitType
	return body
}

// CreateStreamBegin creates a Stream Begin control message for the given
// message stream ID.
func CreateStreamBegin(streamID uint32) []byte {
	body := make([]byte, 6)
	wire.PutBE16(body[0:2], ControlStreamBegin)
	wire.PutBE32(body[2:6], streamID)
	return body
}

// CreateUserControl creates a user control message body carrying a single
// 4-byte parameter (the common case for StreamEOF, StreamDry, and similar
// stream-scoped events).
func CreateUserControl(event uint16, param uint32) []byte {
	body := make([]byte, 6)
	wire.PutBE16(body[0:2], event)
	wire.PutBE32(body[2:6], param)
	return body
}

// WriteChunk writes a message as RTMP chunks.
// Allocation: Uses pre-allocated buffers, minimal allocations.
// NOTE: If w implements Flusher, call Flush() after writing to ensure immediate transmission.
func WriteChunk(w io.Writer, csID uint32, msgType byte, timestamp uint32, streamID uint32, body []byte, chunkSize uint32) error {
	if timestamp >= ExtendedTimestampMarker {
		return ErrExtendedTimestamp
	}

	bodyLen := uint32(len(body))
	offset := uint32(0)

	for offset < bodyLen || bodyLen == 0 {
		var chunkFmt byte
		if offset == 0 {
			chunkFmt = ChunkFmt0
		} else {
			chunkFmt = ChunkFmt3
		}

		if err := writeBasicHeader(w, chunkFmt, csID); err != nil {
			return err
		}

		if chunkFmt == ChunkFmt0 {
			var header [11]byte
			wire.PutBE24(header[0:3], timestamp)
			wire.PutBE24(header[3:6], bodyLen)
			header[6] = msgType
			// Stream ID is little-endian in RTMP (per go2rtc reference)
			wire.PutLE32(header[7:11], streamID)
			if _, err := w.Write(header[:]); err != nil {
				return err
			}
		}

		chunkLen := chunkSize
		if offset+chunkLen > bodyLen {
			chunkLen = bodyLen - offset
		}
		if chunkLen > 0 {
			if _, err := w.Write(body[offset : offset+chunkLen]); err != nil {
				return err
			}
		}
		offset += chunkLen
		if bodyLen == 0 {
			break
		}
	}

	// Flush if the writer supports it (e.g., net.Conn, bufio.Writer)
	if flusher, ok := w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}

	return nil
}

// writeBasicHeader writes the 1, 2, or 3-byte chunk basic header for the given
// format and chunk stream ID.
func writeBasicHeader(w io.Writer, chunkFmt byte, csID uint32) error {
	basic := chunkFmt << 6
	switch {
	case csID < 64:
		_, err := w.Write([]byte{basic | byte(csID)})
		return err
	case csID < 64+256:
		_, err := w.Write([]byte{basic | csIDExtend1Byte, byte(csID - 64)})
		return err
	default:
		var ext [2]byte
		wire.PutBE16(ext[:], uint16(csID-64))
		_, err := w.Write([]byte{basic | csIDExtend2Byte, ext[0], ext[1]})
		return err
	}
}
