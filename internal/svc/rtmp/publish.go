// If you are AI: This file handles RTMP publish lifecycle and integration with the bus.
// Manages publisher attachment and media message publishing.

package rtmp

import (
	"rtmprelay/internal/core/bus"
)

// Publisher binds an RTMP session's incoming audio/video/metadata messages
// to the stream it is publishing to.
type Publisher struct {
	stream      *bus.Stream
	streamKey   bus.StreamKey
	publisherID uint32
}

// NewPublisher creates a publisher for stream, identified by the RTMP
// message stream ID the client is publishing on.
func NewPublisher(stream *bus.Stream, key bus.StreamKey, publisherID uint32) *Publisher {
	return &Publisher{
		stream:      stream,
		streamKey:   key,
		publisherID: publisherID,
	}
}

// Publish hands a freshly-received audio, video, or metadata payload off to
// the stream for fanout. The payload is copied into a pooled buffer; the
// caller's body slice is not retained.
func (p *Publisher) Publish(msgType bus.MessageType, timestamp uint32, payload []byte) {
	msg := bus.AcquireMessage()
	msg.Type = msgType
	msg.Timestamp = timestamp
	msg.SetPayload(payload)
	p.stream.Publish(msg)
}

// Detach detaches the publisher from the stream.
func (p *Publisher) Detach() {
	if p.stream != nil {
		p.stream.DetachPublisher()
	}
}

// StreamKey returns the stream key for this publisher.
func (p *Publisher) StreamKey() bus.StreamKey {
	return p.streamKey
}
