// If you are AI: This file implements WebSocket-FLV subscriber that reads from bus and writes FLV.
// Subscriber manages the WebSocket connection lifecycle and message processing.

package wsflv

import (
	"runtime"

	"rtmprelay/internal/core/bus"
	"rtmprelay/internal/core/protocol/flv"
)

// Subscriber represents a WebSocket-FLV client subscriber.
// Reads messages from bus and writes FLV tags to WebSocket connection.
// Keyframe gating happens centrally in the bus (a subscriber's buffer
// withholds audio/video until a keyframe arrives), so this subscriber only
// needs to rebase timestamps to a per-connection zero point.
type Subscriber struct {
	conn          WebSocketConn
	busSubscriber *bus.Subscriber
	stream        *bus.Stream
	subscriberID  uint64
	headerWritten bool
	tsOffset      uint32 // First delivered timestamp, subtracted from all subsequent
	tsBaseSet     bool   // True after tsOffset is captured
}

// WebSocketConn defines the interface for WebSocket operations.
// This allows for easier testing and abstraction.
type WebSocketConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// NewSubscriber creates a new WebSocket-FLV subscriber.
func NewSubscriber(conn WebSocketConn, stream *bus.Stream) *Subscriber {
	return &Subscriber{
		conn:   conn,
		stream: stream,
	}
}

// WriteHeader writes the FLV file header as the first WebSocket frame.
// Must be called before writing any tags.
func (s *Subscriber) WriteHeader(hasAudio, hasVideo bool) error {
	if s.headerWritten {
		return nil
	}

	header := flv.NewHeader(hasAudio, hasVideo)
	headerBytes := header.Bytes()

	// Write previous tag size (0 for first tag)
	prevSize := make([]byte, 4)

	// Combine header and previous tag size into single frame
	frame := make([]byte, len(headerBytes)+len(prevSize))
	copy(frame, headerBytes)
	copy(frame[len(headerBytes):], prevSize)

	// Write as binary WebSocket frame
	if err := s.conn.WriteMessage(2, frame); err != nil {
		return err
	}

	s.headerWritten = true
	return nil
}

// ProcessMessages processes messages from the subscriber buffer and writes FLV tags.
// This runs in a loop until the connection is closed or an error occurs.
// Keyframe gating already happened before the message reached this
// subscriber's buffer (see bus.Stream.deliverTo), so every message read here
// is safe to forward as-is. Timestamps are rebased so the subscriber's
// stream starts at ts=0.
// Allocation: Tag creation allocates header, but payloads are reused from bus.
// NOTE: This blocks until client disconnects. WebSocket connection close detection
// happens at the write level.
func (s *Subscriber) ProcessMessages() error {
	if s.busSubscriber == nil {
		return nil
	}

	for {
		msg, ok := s.busSubscriber.Buffer().Read()
		if !ok {
			// Buffer empty — yield to avoid busy-wait CPU burn
			runtime.Gosched()
			continue
		}

		// Convert to FLV tag
		tag := flv.MuxMessage(msg)
		if tag == nil {
			msg.Release()
			continue
		}

		// Rebase timestamp so stream starts at ts=0 for this subscriber
		tag.Timestamp = s.rebaseTimestamp(msg.Timestamp)

		// Write tag as binary WebSocket frame (each FLV tag = one frame)
		err := s.conn.WriteMessage(2, tag.Bytes())
		msg.Release()
		if err != nil {
			return err
		}
	}
}

// rebaseTimestamp adjusts a message timestamp so the subscriber's stream
// starts at ts=0. The first delivered timestamp becomes the offset that is
// subtracted from all subsequent timestamps.
func (s *Subscriber) rebaseTimestamp(timestamp uint32) uint32 {
	if !s.tsBaseSet {
		s.tsOffset = timestamp
		s.tsBaseSet = true
	}
	if timestamp < s.tsOffset {
		return 0 // Guard against underflow
	}
	return timestamp - s.tsOffset
}

// Attach attaches the subscriber to the stream.
// Returns the subscriber ID for later detach.
// Backpressure strategy: DropOldest - same as HTTP-FLV to ensure consistency.
// Slow WebSocket clients drop oldest frames to prevent blocking publisher.
func (s *Subscriber) Attach() uint64 {
	// Attach with bounded buffer and drop oldest strategy
	// This ensures publisher never blocks on slow WebSocket clients
	busSub, id := s.stream.AttachSubscriber(1000, bus.BackpressureDropOldest)
	s.busSubscriber = busSub
	s.subscriberID = id
	return id
}

// Detach detaches the subscriber from the stream.
func (s *Subscriber) Detach() {
	if s.stream != nil && s.subscriberID != 0 {
		s.stream.DetachSubscriber(s.subscriberID)
		s.subscriberID = 0
		s.busSubscriber = nil
	}
}
