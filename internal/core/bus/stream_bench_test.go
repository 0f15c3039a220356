// If you are AI: This file contains benchmarks for publish/fanout performance.
// Benchmarks must prove stable allocations and predictable throughput.

package bus

import (
	"testing"
)

// keyframePayload is a minimal FLV VIDEODATA payload tagged as a key frame, so
// benchmarked subscribers pass gating on the very first published message.
func keyframePayload(size int) []byte {
	buf := make([]byte, size)
	buf[0] = 0x17 // frame type 1 (key frame), codec AVC
	if len(buf) > 1 {
		buf[1] = 0x01 // AVCPacketType NALU, not a sequence header
	}
	return buf
}

// publishOwnedMessage acquires a fresh pooled message each call, matching the
// ownership contract Publish expects: the caller hands the message off and
// does not touch it again.
func publishOwnedMessage(stream *Stream, payload []byte, timestamp uint32) {
	msg := AcquireMessage()
	msg.Type = MessageTypeVideo
	msg.Timestamp = timestamp
	msg.SetPayload(payload)
	stream.Publish(msg)
}

// BenchmarkPublishSingleSubscriber benchmarks publish to a single subscriber.
// This measures the hot path for single consumer scenarios.
func BenchmarkPublishSingleSubscriber(b *testing.B) {
	key := NewStreamKey("live", "bench")
	stream := NewStream(key)
	stream.AttachPublisher(1)

	sub, _ := stream.AttachSubscriber(1000, BackpressureDropOldest)
	payload := keyframePayload(1024)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		publishOwnedMessage(stream, payload, uint32(i*1000))
		if msg, ok := sub.Buffer().Read(); ok {
			msg.Release()
		}
	}
}

// BenchmarkPublishMultipleSubscribers benchmarks publish to multiple subscribers.
// This measures fanout performance with concurrent consumers.
func BenchmarkPublishMultipleSubscribers(b *testing.B) {
	key := NewStreamKey("live", "bench")
	stream := NewStream(key)
	stream.AttachPublisher(1)

	subs := make([]*Subscriber, 10)
	for i := 0; i < 10; i++ {
		sub, _ := stream.AttachSubscriber(1000, BackpressureDropOldest)
		subs[i] = sub
	}
	payload := keyframePayload(1024)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		publishOwnedMessage(stream, payload, uint32(i*1000))
		for _, sub := range subs {
			if msg, ok := sub.Buffer().Read(); ok {
				msg.Release()
			}
		}
	}
}

// BenchmarkPublishFanoutOnly benchmarks the fanout operation without reading.
// This isolates the publish/fanout overhead; buffers are sized large enough
// that no backpressure drop occurs during the run.
func BenchmarkPublishFanoutOnly(b *testing.B) {
	key := NewStreamKey("live", "bench")
	stream := NewStream(key)
	stream.AttachPublisher(1)

	for i := 0; i < 10; i++ {
		stream.AttachSubscriber(uint32(b.N+1), BackpressureDropOldest)
	}
	payload := keyframePayload(1024)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		publishOwnedMessage(stream, payload, uint32(i*1000))
	}
}

// BenchmarkMessagePool benchmarks message acquisition and release.
// This verifies the pool eliminates allocations in steady state.
func BenchmarkMessagePool(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		msg := AcquireMessage()
		msg.Type = MessageTypeVideo
		msg.Timestamp = uint32(i)
		ReleaseMessage(msg)
	}
}

// BenchmarkPayloadPool benchmarks payload buffer acquisition and release.
// This verifies the payload pool eliminates allocations.
func BenchmarkPayloadPool(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf := AcquirePayload()
		buf = append(buf, make([]byte, 1024)...)
		ReleasePayload(buf)
	}
}
