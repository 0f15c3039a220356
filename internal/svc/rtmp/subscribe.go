// If you are AI: This file handles RTMP play/play2 subscriptions: attaching a
// session to a stream as a subscriber and forwarding its fanned-out media
// back onto the connection.

package rtmp

import (
	"runtime"
	"sync/atomic"

	"rtmprelay/internal/core/bus"
	rtmpprotocol "rtmprelay/internal/core/protocol/rtmp"
)

// subscription binds an RTMP session playing a stream to the bus subscriber
// receiving that stream's fanned-out media, and runs the goroutine that
// forwards delivered messages back onto the connection.
type subscription struct {
	session      *ServiceSession
	stream       *bus.Stream
	streamKey    bus.StreamKey
	streamID     uint32
	busSub       *bus.Subscriber
	subscriberID uint64

	paused atomic.Bool
	done   chan struct{}
}

func newSubscription(session *ServiceSession, stream *bus.Stream, key bus.StreamKey, streamID uint32) *subscription {
	busSub, id := stream.AttachSubscriber(session.cfg.SubscriberBuffer, bus.BackpressureDropOldest)
	return &subscription{
		session:      session,
		stream:       stream,
		streamKey:    key,
		streamID:     streamID,
		busSub:       busSub,
		subscriberID: id,
		done:         make(chan struct{}),
	}
}

// start launches the forwarding goroutine.
func (sub *subscription) start() {
	go sub.pump()
}

// setPaused toggles whether delivered messages are forwarded or silently
// released. The bus subscription itself stays attached while paused, so
// resuming picks up with whatever is currently live rather than replaying a
// backlog.
func (sub *subscription) setPaused(paused bool) {
	sub.paused.Store(paused)
}

// stop ends the forwarding goroutine and detaches from the stream.
func (sub *subscription) stop() {
	select {
	case <-sub.done:
	default:
		close(sub.done)
	}
	sub.stream.DetachSubscriber(sub.subscriberID)
}

// pump reads messages fanned out to this subscriber and forwards them to the
// session's outgoing queue as RTMP chunks, until stop is called.
func (sub *subscription) pump() {
	for {
		select {
		case <-sub.done:
			return
		default:
		}

		msg, ok := sub.busSub.Buffer().Read()
		if !ok {
			runtime.Gosched()
			continue
		}

		// Re-announce StreamBegin the moment gating lifts: some players reset
		// their decode buffer on seeing it, which keeps them from trying to
		// decode the keyframe as a delta against frames they never received.
		if sub.busSub.ConsumeReadyTransition() {
			sub.session.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeUserCtrl, 0, 0,
				rtmpprotocol.CreateUserControl(rtmpprotocol.ControlStreamBegin, sub.streamID), false)
		}

		if sub.paused.Load() {
			msg.Release()
			continue
		}

		csID, msgType := outgoingKindFor(msg.Type)
		sub.session.queue.push(outgoingChunk{
			csID:      csID,
			msgType:   msgType,
			timestamp: msg.Timestamp,
			streamID:  sub.streamID,
			body:      msg.Payload,
			mediaMsg:  msg,
		})
	}
}

// outgoingKindFor maps a bus message type to the chunk stream ID and RTMP
// message type this server uses when forwarding it to a player.
func outgoingKindFor(t bus.MessageType) (uint32, byte) {
	switch t {
	case bus.MessageTypeAudio:
		return csIDAudio, rtmpprotocol.MessageTypeAudio
	case bus.MessageTypeVideo:
		return csIDVideo, rtmpprotocol.MessageTypeVideo
	default:
		return csIDData, rtmpprotocol.MessageTypeDataAMF0
	}
}
