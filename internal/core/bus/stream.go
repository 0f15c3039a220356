// If you are AI: This file implements the Stream type that manages publisher and subscribers.
// A stream allows exactly one publisher and multiple subscribers with efficient fanout.

package bus

import (
	"sync"
)

// Stream represents a live media stream instance.
// It manages one publisher and multiple subscribers with efficient message fanout.
// Lock expectations: Uses mutex for publisher/subscriber management.
// Allocation: Pre-allocated subscriber map, no per-message allocations in fanout.
type Stream struct {
	key         StreamKey
	mu          sync.RWMutex
	publisher   *Publisher
	subscribers map[uint64]*Subscriber
	nextSubID   uint64

	// cache holds the most recent metadata and codec sequence headers so a
	// subscriber attaching mid-stream can be brought up to date immediately,
	// without waiting for the publisher to resend them.
	cacheMu   sync.Mutex
	metadata  *MediaMessage
	videoSeq  *MediaMessage
	audioSeq  *MediaMessage
}

// Publisher represents a stream publisher.
// Only one publisher can be attached to a stream at a time.
type Publisher struct {
	id uint64 // Unique publisher ID
}

// NewStream creates a new stream with the given key.
func NewStream(key StreamKey) *Stream {
	return &Stream{
		key:         key,
		subscribers: make(map[uint64]*Subscriber),
		nextSubID:   1,
	}
}

// Key returns the stream's key.
func (s *Stream) Key() StreamKey {
	return s.key
}

// AttachPublisher attaches a publisher to the stream.
// Returns true if attached, false if a publisher is already attached.
func (s *Stream) AttachPublisher(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publisher != nil {
		return false
	}

	s.publisher = &Publisher{id: id}
	return true
}

// DetachPublisher detaches the current publisher from the stream and clears
// any cached metadata/sequence headers, since they belong to that publisher's
// session and must not be replayed to a future, unrelated publisher.
func (s *Stream) DetachPublisher() {
	s.mu.Lock()
	s.publisher = nil
	s.mu.Unlock()

	s.cacheMu.Lock()
	cached := []*MediaMessage{s.metadata, s.videoSeq, s.audioSeq}
	s.metadata, s.videoSeq, s.audioSeq = nil, nil, nil
	s.cacheMu.Unlock()

	for _, msg := range cached {
		if msg != nil {
			msg.Release()
		}
	}
}

// HasPublisher returns true if a publisher is currently attached.
func (s *Stream) HasPublisher() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publisher != nil
}

// AttachSubscriber attaches a new subscriber to the stream and replays any
// cached codec sequence headers to it directly, so the subscriber has decoder
// configuration before the first live frame arrives. The subscriber still
// must wait for a live video keyframe (see IsReady) before ordinary
// audio/video fanout begins. Cached metadata is not replayed here: callers
// that need it synchronized with their own protocol handshake (e.g. RTMP's
// onStatus/RtmpSampleAccess sequence on play) should fetch it explicitly via
// CachedMetadata instead.
func (s *Stream) AttachSubscriber(capacity uint32, strategy BackpressureStrategy) (*Subscriber, uint64) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	sub := NewSubscriber(id, capacity, strategy)
	s.subscribers[id] = sub
	s.mu.Unlock()

	s.cacheMu.Lock()
	cached := make([]*MediaMessage, 0, 2)
	for _, msg := range []*MediaMessage{s.videoSeq, s.audioSeq} {
		if msg != nil {
			cached = append(cached, msg)
		}
	}
	s.cacheMu.Unlock()

	for _, msg := range cached {
		clone := msg.Clone()
		clone.retain(1)
		if !sub.Buffer().Write(clone) {
			clone.Release()
		}
	}

	return sub, id
}

// CachedMetadata returns a retained clone of the stream's most recently
// published onMetaData message, or nil if the publisher hasn't sent one yet.
// The caller must Release the returned message once done with it.
func (s *Stream) CachedMetadata() *MediaMessage {
	s.cacheMu.Lock()
	msg := s.metadata
	s.cacheMu.Unlock()
	if msg == nil {
		return nil
	}
	clone := msg.Clone()
	clone.retain(1)
	return clone
}

// DetachSubscriber detaches a subscriber from the stream.
func (s *Stream) DetachSubscriber(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

// Publish delivers a message to all subscribers.
// This is the hot path - must be allocation-free in steady state beyond the
// cached-message bookkeeping below, which only runs for metadata and sequence
// header frames (a tiny fraction of the stream).
// Lock expectations: Read lock held during fanout (non-blocking for subscribers).
func (s *Stream) Publish(msg *MediaMessage) {
	if msg == nil {
		return
	}

	s.maybeCache(msg)

	s.mu.RLock()
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	if len(subs) == 0 {
		msg.Release()
		return
	}

	msg.retain(int32(len(subs)))
	for _, sub := range subs {
		if !s.deliverTo(sub, msg) {
			msg.Release()
		}
	}
}

// deliverTo applies keyframe gating and writes msg to sub's buffer, returning
// whether the message was actually handed off. Metadata always passes through.
// Audio and video are withheld until the subscriber has seen a video keyframe,
// so a subscriber never starts mid-GOP.
func (s *Stream) deliverTo(sub *Subscriber, msg *MediaMessage) bool {
	switch msg.Type {
	case MessageTypeMetadata:
		return sub.Buffer().Write(msg)
	case MessageTypeVideo:
		if !sub.IsReady() {
			if !isKeyframe(msg.Payload) {
				return false
			}
			sub.ready.Store(true)
			sub.becameReady.Store(true)
		}
		return sub.Buffer().Write(msg)
	default: // MessageTypeAudio
		if !sub.IsReady() {
			return false
		}
		return sub.Buffer().Write(msg)
	}
}

// maybeCache updates the stream's cached metadata/sequence-header messages
// when msg is one of them. AVC and AAC sequence headers are identified by the
// second payload byte (AVCPacketType / AACPacketType) being 0.
func (s *Stream) maybeCache(msg *MediaMessage) {
	var slot **MediaMessage
	switch {
	case msg.Type == MessageTypeMetadata:
		slot = &s.metadata
	case msg.Type == MessageTypeVideo && len(msg.Payload) >= 2 && msg.Payload[1] == 0:
		slot = &s.videoSeq
	case msg.Type == MessageTypeAudio && len(msg.Payload) >= 2 && msg.Payload[1] == 0:
		slot = &s.audioSeq
	default:
		return
	}

	clone := msg.Clone()
	s.cacheMu.Lock()
	old := *slot
	*slot = clone
	s.cacheMu.Unlock()
	if old != nil {
		old.Release()
	}
}

// isKeyframe reports whether an FLV VIDEODATA payload's frame-type nibble
// marks it as a key frame (including AVC sequence headers, which FLV also
// tags as frame type 1).
func isKeyframe(payload []byte) bool {
	return len(payload) >= 1 && payload[0]>>4 == 1
}

// SubscriberCount returns the number of active subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// IsEmpty returns true if the stream has no publisher and no subscribers.
func (s *Stream) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publisher == nil && len(s.subscribers) == 0
}
