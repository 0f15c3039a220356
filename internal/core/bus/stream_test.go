// If you are AI: This file contains unit tests for stream lifecycle and publisher exclusivity.

package bus

import (
	"testing"
)

func TestStreamKey(t *testing.T) {
	key := NewStreamKey("live", "mystream")
	if key.App != "live" {
		t.Errorf("Expected app 'live', got '%s'", key.App)
	}
	if key.Name != "mystream" {
		t.Errorf("Expected name 'mystream', got '%s'", key.Name)
	}

	str := key.String()
	expected := "live/mystream"
	if str != expected {
		t.Errorf("Expected string '%s', got '%s'", expected, str)
	}
}

func TestStreamLifecycle(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	if stream.Key() != key {
		t.Error("Stream key mismatch")
	}

	if stream.HasPublisher() {
		t.Error("New stream should not have publisher")
	}

	if stream.SubscriberCount() != 0 {
		t.Error("New stream should have no subscribers")
	}

	if !stream.IsEmpty() {
		t.Error("New stream should be empty")
	}
}

func TestPublisherExclusivity(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	// First publisher should attach
	if !stream.AttachPublisher(1) {
		t.Error("First publisher should attach successfully")
	}

	if !stream.HasPublisher() {
		t.Error("Stream should have publisher after attach")
	}

	// Second publisher should fail
	if stream.AttachPublisher(2) {
		t.Error("Second publisher should not attach")
	}

	// Detach publisher
	stream.DetachPublisher()
	if stream.HasPublisher() {
		t.Error("Stream should not have publisher after detach")
	}

	// After detach, new publisher should attach
	if !stream.AttachPublisher(3) {
		t.Error("Publisher should attach after previous detach")
	}
}

func TestSubscriberAttachDetach(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	// Attach first subscriber
	sub1, id1 := stream.AttachSubscriber(100, BackpressureDropOldest)
	if sub1 == nil {
		t.Error("Subscriber should be created")
	}
	if id1 == 0 {
		t.Error("Subscriber ID should be non-zero")
	}
	if stream.SubscriberCount() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", stream.SubscriberCount())
	}

	// Attach second subscriber
	_, id2 := stream.AttachSubscriber(100, BackpressureDropOldest)
	if id2 == id1 {
		t.Error("Subscriber IDs should be unique")
	}
	if stream.SubscriberCount() != 2 {
		t.Errorf("Expected 2 subscribers, got %d", stream.SubscriberCount())
	}

	// Detach first subscriber
	stream.DetachSubscriber(id1)
	if stream.SubscriberCount() != 1 {
		t.Errorf("Expected 1 subscriber after detach, got %d", stream.SubscriberCount())
	}

	// Detach second subscriber
	stream.DetachSubscriber(id2)
	if stream.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", stream.SubscriberCount())
	}

	if !stream.IsEmpty() {
		t.Error("Stream should be empty after removing all subscribers")
	}
}

func TestPublishFanout(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	// Attach two subscribers
	sub1, id1 := stream.AttachSubscriber(10, BackpressureDropOldest)
	sub2, id2 := stream.AttachSubscriber(10, BackpressureDropOldest)
	_ = id1
	_ = id2

	// A keyframe-tagged video message so both (not-yet-ready) subscribers
	// unblock and receive it.
	msg := AcquireMessage()
	msg.Type = MessageTypeVideo
	msg.Timestamp = 1000
	msg.SetPayload([]byte{0x17, 0x01, 0, 0, 0})

	stream.Publish(msg)

	read1, ok1 := sub1.Buffer().Read()
	if !ok1 {
		t.Error("Subscriber 1 should receive message")
	}
	if read1.Type != MessageTypeVideo {
		t.Error("Message type mismatch for subscriber 1")
	}
	read1.Release()

	read2, ok2 := sub2.Buffer().Read()
	if !ok2 {
		t.Error("Subscriber 2 should receive message")
	}
	if read2.Type != MessageTypeVideo {
		t.Error("Message type mismatch for subscriber 2")
	}
	read2.Release()
}

func TestPublishWithholdsAudioVideoUntilKeyframe(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)
	sub, _ := stream.AttachSubscriber(10, BackpressureDropOldest)

	interFrame := AcquireMessage()
	interFrame.Type = MessageTypeVideo
	interFrame.SetPayload([]byte{0x27, 0x01, 0, 0, 0}) // frame type 2 = inter frame
	stream.Publish(interFrame)

	if _, ok := sub.Buffer().Read(); ok {
		t.Fatal("inter frame should be withheld before the first keyframe")
	}
	if sub.IsReady() {
		t.Fatal("subscriber should not be ready yet")
	}

	audio := AcquireMessage()
	audio.Type = MessageTypeAudio
	audio.SetPayload([]byte{0xAF, 0x01, 0, 0})
	stream.Publish(audio)
	if _, ok := sub.Buffer().Read(); ok {
		t.Fatal("audio should be withheld before the first keyframe")
	}

	keyFrame := AcquireMessage()
	keyFrame.Type = MessageTypeVideo
	keyFrame.SetPayload([]byte{0x17, 0x01, 0, 0, 0}) // frame type 1 = keyframe
	stream.Publish(keyFrame)

	msg, ok := sub.Buffer().Read()
	if !ok {
		t.Fatal("keyframe should be delivered")
	}
	msg.Release()
	if !sub.IsReady() {
		t.Fatal("subscriber should be ready after a keyframe")
	}
	if !sub.ConsumeReadyTransition() {
		t.Fatal("expected a ready transition to be reported exactly once")
	}
	if sub.ConsumeReadyTransition() {
		t.Fatal("ready transition should only be reported once")
	}
}

func TestAttachSubscriberReplaysCachedSequenceHeadersNotMetadata(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	meta := AcquireMessage()
	meta.Type = MessageTypeMetadata
	meta.SetPayload([]byte("onMetaData"))
	stream.Publish(meta)

	videoSeq := AcquireMessage()
	videoSeq.Type = MessageTypeVideo
	videoSeq.SetPayload([]byte{0x17, 0x00, 0, 0, 0, 0x01, 0x42})
	stream.Publish(videoSeq)

	sub, _ := stream.AttachSubscriber(10, BackpressureDropOldest)

	// Metadata is fetched explicitly by callers (via CachedMetadata), not
	// auto-replayed into the subscriber's buffer, so only the sequence header
	// shows up here.
	first, ok := sub.Buffer().Read()
	if !ok || first.Type != MessageTypeVideo {
		t.Fatalf("expected cached video sequence header first, got %+v ok=%v", first, ok)
	}
	first.Release()

	if sub.IsReady() {
		t.Fatal("replaying cached headers must not itself mark the subscriber ready")
	}

	if _, ok := sub.Buffer().Read(); ok {
		t.Fatal("no further messages expected until a live keyframe arrives")
	}

	cached := stream.CachedMetadata()
	if cached == nil || string(cached.Payload) != "onMetaData" {
		t.Fatalf("expected CachedMetadata to return the published metadata, got %+v", cached)
	}
	cached.Release()
}

func TestStreamWithPublisherAndSubscribers(t *testing.T) {
	key := NewStreamKey("live", "test")
	stream := NewStream(key)

	// Attach publisher
	stream.AttachPublisher(1)

	// Attach subscribers
	stream.AttachSubscriber(10, BackpressureDropOldest)
	stream.AttachSubscriber(10, BackpressureDropOldest)

	// Stream should not be empty
	if stream.IsEmpty() {
		t.Error("Stream with publisher and subscribers should not be empty")
	}

	// Detach publisher
	stream.DetachPublisher()

	// Stream should still not be empty (has subscribers)
	if stream.IsEmpty() {
		t.Error("Stream with subscribers should not be empty")
	}
}
