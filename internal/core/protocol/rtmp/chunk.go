// If you are AI: This file implements RTMP chunk parsing and reassembly.
// Chunk reassembly uses pooled buffers to avoid allocations in hot loops.

package rtmp

import (
	"errors"
	"io"
	"sync"

	"rtmprelay/internal/core/protocol/wire"
)

var (
	ErrInvalidChunkHeader  = errors.New("invalid chunk header")
	ErrChunkTooLarge       = errors.New("chunk size too large")
	ErrExtendedTimestamp   = errors.New("rtmp: extended (32-bit) timestamps are not supported")
	ErrUnknownChunkStream  = errors.New("rtmp: fmt3 chunk for unseen chunk stream")
)

// ChunkStream holds message-reassembly state for one chunk stream ID. A parser
// owns one of these per chunk stream ID it has seen.
type ChunkStream struct {
	seen           bool // has received at least one fmt0/1/2 header
	messageType    byte
	messageLength  uint32
	streamID       uint32
	timestamp      uint32
	timestampDelta uint32
	buffer         []byte
	bytesRead      uint32
}

// ChunkParser parses RTMP chunks and reassembles messages for a single
// connection. A ChunkParser is owned by exactly one goroutine (the session's
// reader loop) and is not safe for concurrent use.
type ChunkParser struct {
	streams    []*ChunkStream // indexed directly by chunk stream ID, grown on demand
	chunkSize  uint32
	bufferPool sync.Pool
}

// NewChunkParser creates a new chunk parser.
func NewChunkParser() *ChunkParser {
	return &ChunkParser{
		chunkSize: DefaultChunkSize,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, 4096)
			},
		},
	}
}

// SetChunkSize sets the chunk size used to bound how much payload is expected
// per chunk when reading.
func (p *ChunkParser) SetChunkSize(size uint32) {
	p.chunkSize = size
}

func (p *ChunkParser) streamFor(csID uint32) *ChunkStream {
	if int(csID) >= len(p.streams) {
		grown := make([]*ChunkStream, csID+1)
		copy(grown, p.streams)
		p.streams = grown
	}
	cs := p.streams[csID]
	if cs == nil {
		cs = &ChunkStream{}
		p.streams[csID] = cs
	}
	return cs
}

// ReadChunk reads and parses one chunk from r, returning the chunk stream ID
// it belongs to.
func (p *ChunkParser) ReadChunk(r io.Reader) (uint32, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}

	format := (first[0] >> 6) & 0x03
	csID := uint32(first[0] & 0x3f)

	switch csID {
	case csIDExtend1Byte:
		var ext [1]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, err
		}
		csID = uint32(ext[0]) + 64
	case csIDExtend2Byte:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, err
		}
		csID = uint32(wire.BE16(ext[:])) + 64
	}

	cs := p.streamFor(csID)
	if format == ChunkFmt3 && !cs.seen {
		return csID, ErrUnknownChunkStream
	}
	if err := p.readMessageHeader(r, cs, format); err != nil {
		return csID, err
	}

	if cs.bytesRead == 0 {
		cs.buffer = p.bufferPool.Get().([]byte)[:0]
	}

	remaining := cs.messageLength - cs.bytesRead
	payloadSize := p.chunkSize
	if remaining < payloadSize {
		payloadSize = remaining
	}

	start := len(cs.buffer)
	cs.buffer = append(cs.buffer, make([]byte, payloadSize)...)
	if _, err := io.ReadFull(r, cs.buffer[start:]); err != nil {
		return csID, err
	}
	cs.bytesRead += payloadSize

	return csID, nil
}

// readMessageHeader reads the message header for the given chunk format,
// updating cs's timestamp and (for fmt0/fmt1) message length and type.
func (p *ChunkParser) readMessageHeader(r io.Reader, cs *ChunkStream, format byte) error {
	switch format {
	case ChunkFmt0:
		var header [11]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return err
		}
		ts := wire.BE24(header[0:3])
		if ts == ExtendedTimestampMarker {
			return ErrExtendedTimestamp
		}
		cs.timestamp = ts
		cs.timestampDelta = 0
		cs.messageLength = wire.BE24(header[3:6])
		cs.messageType = header[6]
		cs.streamID = wire.LE32(header[7:11])
		cs.bytesRead = 0
		cs.seen = true

	case ChunkFmt1:
		var header [7]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return err
		}
		delta := wire.BE24(header[0:3])
		if delta == ExtendedTimestampMarker {
			return ErrExtendedTimestamp
		}
		cs.timestampDelta = delta
		cs.timestamp += delta
		cs.messageLength = wire.BE24(header[3:6])
		cs.messageType = header[6]
		cs.bytesRead = 0
		cs.seen = true

	case ChunkFmt2:
		var header [3]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return err
		}
		delta := wire.BE24(header[:])
		if delta == ExtendedTimestampMarker {
			return ErrExtendedTimestamp
		}
		cs.timestampDelta = delta
		cs.timestamp += delta
		cs.bytesRead = 0
		cs.seen = true

	case ChunkFmt3:
		if cs.bytesRead == 0 {
			// A new message continues with the same timestamp delta as the
			// chunk stream's last fmt0/1/2 header.
			cs.timestamp += cs.timestampDelta
		}
	}

	return nil
}

// GetCompleteMessage returns the complete message for csID if reassembly has
// finished, along with its message type, timestamp, and RTMP message stream ID.
// It resets the chunk stream's reassembly state for the next message.
func (p *ChunkParser) GetCompleteMessage(csID uint32) ([]byte, byte, uint32, uint32, bool) {
	if int(csID) >= len(p.streams) || p.streams[csID] == nil {
		return nil, 0, 0, 0, false
	}
	cs := p.streams[csID]
	if cs.messageLength == 0 || cs.bytesRead < cs.messageLength {
		return nil, 0, 0, 0, false
	}

	msg := cs.buffer
	msgType := cs.messageType
	timestamp := cs.timestamp
	streamID := cs.streamID

	cs.bytesRead = 0
	cs.messageLength = 0

	return msg, msgType, timestamp, streamID, true
}

// ReleaseMessage returns a message buffer obtained from GetCompleteMessage to
// the parser's internal pool once the caller is done with it.
func (p *ChunkParser) ReleaseMessage(msg []byte) {
	//nolint:staticcheck // buffer is reused verbatim, capacity intact
	p.bufferPool.Put(msg[:0])
}
