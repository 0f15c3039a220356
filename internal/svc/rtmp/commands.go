// If you are AI: This file dispatches and handles RTMP AMF0 command messages:
// connect, the publish family, and the play family.

package rtmp

import (
	"fmt"
	"log"

	"rtmprelay/internal/core/bus"
	"rtmprelay/internal/core/protocol/amf"
	rtmpprotocol "rtmprelay/internal/core/protocol/rtmp"
)

// handleCommand decodes an AMF0 command message and dispatches it by name.
// streamID is the RTMP message stream ID the command arrived on.
func (s *ServiceSession) handleCommand(body []byte, streamID uint32) error {
	values, err := amf.DecodeCommand(body)
	if err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if len(values) == 0 || values[0].Type() != amf.TypeString {
		return nil
	}

	name := values[0].AsString()
	switch name {
	case "connect":
		return s.handleConnect(values)
	case "releaseStream":
		return s.handleReleaseStream(values)
	case "FCPublish":
		return s.handleFCPublish(values)
	case "createStream":
		return s.handleCreateStream(values)
	case "publish":
		return s.handlePublish(values, streamID)
	case "play":
		return s.handlePlay(values, streamID)
	case "play2":
		return s.handlePlay2(values, streamID)
	case "pause":
		return s.handlePause(values, streamID)
	case "deleteStream", "closeStream":
		s.Close()
		return nil
	case "FCUnpublish":
		return nil
	default:
		log.Printf("rtmp: unhandled command %q", name)
		return nil
	}
}

func transactionID(values []amf.Value) float64 {
	if len(values) < 2 || values[1].Type() != amf.TypeNumber {
		return 0
	}
	return values[1].AsNumber()
}

func commandObject(values []amf.Value) *amf.Object {
	if len(values) < 3 || values[2].Type() != amf.TypeObject {
		return nil
	}
	return values[2].AsObject()
}

// handleConnect negotiates the application name and acknowledges the
// connection. Only the "live" application is accepted: this server has no
// concept of VOD or recorded applications.
func (s *ServiceSession) handleConnect(values []amf.Value) error {
	app := "live"
	if obj := commandObject(values); obj != nil {
		if v, ok := obj.Get("app"); ok && v.Type() == amf.TypeString {
			app = v.AsString()
		}
	}
	if app != "live" {
		body, err := encodeCommand(amf.String("_error"), amf.Number(transactionID(values)), amf.Null(),
			statusObject("error", "NetConnection.Connect.InvalidApp", "Only the live application is served"))
		if err != nil {
			return err
		}
		s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, 0, body, true)
		return fmt.Errorf("rejected connect for app %q", app)
	}
	s.setApp(app)

	s.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeWinAckSize, 0, 0,
		rtmpprotocol.CreateWindowAckSize(rtmpprotocol.DefaultWindowAckSize), true)
	s.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeSetPeerBandwidth, 0, 0,
		rtmpprotocol.CreateSetPeerBandwidth(rtmpprotocol.DefaultPeerBandwidth, rtmpprotocol.PeerBandwidthDynamic), true)
	s.SetChunkSize(s.cfg.DefaultChunkSize)
	s.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeSetChunkSize, 0, 0,
		rtmpprotocol.CreateSetChunkSize(s.cfg.DefaultChunkSize), true)

	result := amf.NewObject()
	result.Set("fmsVer", amf.String("FMS/3,0,1,123"))
	result.Set("capabilities", amf.Number(31))
	info := amf.NewObject()
	info.Set("level", amf.String("status"))
	info.Set("code", amf.String("NetConnection.Connect.Success"))
	info.Set("description", amf.String("Connection succeeded."))
	info.Set("objectEncoding", amf.Number(3))

	body, err := encodeCommand(amf.String("_result"), amf.Number(1), amf.FromObject(result), amf.FromObject(info))
	if err != nil {
		return err
	}
	s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, 0, body, true)
	return nil
}

// handleReleaseStream acknowledges the (FFmpeg-specific) releaseStream
// preamble to createStream.
func (s *ServiceSession) handleReleaseStream(values []amf.Value) error {
	body, err := encodeCommand(amf.String("_result"), amf.Number(transactionID(values)), amf.Null())
	if err != nil {
		return err
	}
	s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, 0, body, true)
	return nil
}

// handleFCPublish sends onFCPublish, the notification some encoders (FFmpeg
// included) wait for before proceeding to createStream/publish. It also
// claims the stream's publisher slot immediately: waiting until the later
// publish command to enforce exclusivity would let two racing FCPublish
// attempts both see success before either reaches publish.
func (s *ServiceSession) handleFCPublish(values []amf.Value) error {
	if name := publishStreamName(values); name != "" {
		app := s.getApp()
		if app == "" {
			return fmt.Errorf("FCPublish: connect was never completed")
		}

		key := bus.NewStreamKey(app, name)
		stream, _ := s.registry.GetOrCreate(key)
		if !stream.AttachPublisher(0) {
			return fmt.Errorf("FCPublish: stream %s already has a publisher", key)
		}

		s.mu.Lock()
		s.pendingPublishStream = stream
		s.pendingPublishKey = key
		s.mu.Unlock()
	}

	body, err := encodeCommand(amf.String("onFCPublish"), amf.Number(0), amf.Null(),
		statusObject("status", "NetStream.Publish.Start", "FCPublish"))
	if err != nil {
		return err
	}
	s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, 0, body, true)
	return nil
}

// handleCreateStream allocates a new RTMP message stream ID for the
// subsequent publish/play command.
func (s *ServiceSession) handleCreateStream(values []amf.Value) error {
	streamID := s.allocateStreamID()
	body, err := encodeCommand(amf.String("_result"), amf.Number(transactionID(values)), amf.Null(), amf.Number(float64(streamID)))
	if err != nil {
		return err
	}
	s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, 0, body, true)
	return nil
}

// publishStreamName extracts the stream name from a publish command's
// arguments: ["publish", txnID, null, streamName, publishType].
func publishStreamName(values []amf.Value) string {
	if len(values) >= 4 && values[3].Type() == amf.TypeString {
		return values[3].AsString()
	}
	if len(values) >= 3 && values[2].Type() == amf.TypeString {
		return values[2].AsString()
	}
	return ""
}

// handlePublish attaches this session as the stream's publisher.
func (s *ServiceSession) handlePublish(values []amf.Value, streamID uint32) error {
	name := publishStreamName(values)
	if name == "" {
		return fmt.Errorf("publish: missing stream name")
	}
	app := s.getApp()
	if app == "" {
		return fmt.Errorf("publish: connect was never completed")
	}

	key := bus.NewStreamKey(app, name)

	s.mu.Lock()
	alreadyPublishing := s.publisher != nil
	reservedStream := s.pendingPublishStream
	reservedKey := s.pendingPublishKey
	s.mu.Unlock()
	if alreadyPublishing {
		return fmt.Errorf("publish: session is already publishing")
	}

	// An FCPublish for this same stream already claimed the publisher slot;
	// reuse that claim instead of attaching (and failing) a second time.
	var stream *bus.Stream
	if reservedStream != nil && reservedKey == key {
		stream = reservedStream
	} else {
		stream, _ = s.registry.GetOrCreate(key)
		if !stream.AttachPublisher(uint64(streamID)) {
			s.sendOnStatus(streamID, "error", "NetStream.Publish.BadName", "Stream already has a publisher")
			return fmt.Errorf("publish: stream %s already has a publisher", key)
		}
	}

	pub := NewPublisher(stream, key, streamID)
	s.mu.Lock()
	s.publisher = pub
	s.pendingPublishStream = nil
	s.pendingPublishKey = bus.StreamKey{}
	s.mu.Unlock()

	s.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeUserCtrl, 0, 0,
		rtmpprotocol.CreateUserControl(rtmpprotocol.ControlStreamBegin, streamID), true)
	return s.sendOnStatus(streamID, "status", "NetStream.Publish.Start", "Start publishing")
}

// playStreamName extracts the stream name from a play command's arguments:
// ["play", txnID, null, streamName, start, duration, reset].
func playStreamName(values []amf.Value) string {
	if len(values) >= 4 && values[3].Type() == amf.TypeString {
		return values[3].AsString()
	}
	return ""
}

// handlePlay attaches this session as a subscriber and starts forwarding the
// stream's media once a keyframe arrives.
func (s *ServiceSession) handlePlay(values []amf.Value, streamID uint32) error {
	name := playStreamName(values)
	if name == "" {
		return fmt.Errorf("play: missing stream name")
	}
	app := s.getApp()
	if app == "" {
		return fmt.Errorf("play: connect was never completed")
	}

	key := bus.NewStreamKey(app, name)
	stream, _ := s.registry.GetOrCreate(key)

	s.mu.Lock()
	alreadySubscribed := s.subscription != nil
	s.mu.Unlock()
	if alreadySubscribed {
		return fmt.Errorf("play: session is already subscribed")
	}

	sub := newSubscription(s, stream, key, streamID)
	s.mu.Lock()
	s.subscription = sub
	s.mu.Unlock()
	sub.start()

	s.enqueue(csIDProtocolControl, rtmpprotocol.MessageTypeUserCtrl, 0, 0,
		rtmpprotocol.CreateUserControl(rtmpprotocol.ControlStreamBegin, streamID), true)
	return s.sendPlayStartSequence(stream, streamID)
}

// sendPlayStartSequence sends the status/notify sequence a player expects
// once it starts (or resumes) receiving a stream: onStatus
// NetStream.Play.Reset, onStatus NetStream.Play.Start, a |RtmpSampleAccess
// notify granting sample access, and a replay of the cached onMetaData if the
// publisher has sent one, so a player that attached mid-stream still learns
// the stream's codec/dimension metadata.
func (s *ServiceSession) sendPlayStartSequence(stream *bus.Stream, streamID uint32) error {
	if err := s.sendOnStatus(streamID, "status", "NetStream.Play.Reset", "Playing and resetting"); err != nil {
		return err
	}
	if err := s.sendOnStatus(streamID, "status", "NetStream.Play.Start", "Start playing"); err != nil {
		return err
	}

	sampleAccessBody, err := encodeCommand(amf.String("|RtmpSampleAccess"), amf.Boolean(true), amf.Boolean(true))
	if err != nil {
		return err
	}
	s.enqueue(csIDData, rtmpprotocol.MessageTypeDataAMF0, 0, streamID, sampleAccessBody, true)

	if meta := stream.CachedMetadata(); meta != nil {
		s.queue.push(outgoingChunk{
			csID:      csIDData,
			msgType:   rtmpprotocol.MessageTypeDataAMF0,
			timestamp: meta.Timestamp,
			streamID:  streamID,
			body:      meta.Payload,
			mediaMsg:  meta,
		})
	}

	return nil
}

// handlePlay2 is play's richer-argument sibling (a single options object
// instead of positional arguments); this server only needs the stream name
// out of it, so it delegates to the same subscription path as play.
func (s *ServiceSession) handlePlay2(values []amf.Value, streamID uint32) error {
	if len(values) < 3 || values[2].Type() != amf.TypeObject {
		return fmt.Errorf("play2: missing options object")
	}
	obj := values[2].AsObject()
	name, ok := obj.Get("streamName")
	if !ok || name.Type() != amf.TypeString {
		return fmt.Errorf("play2: missing streamName")
	}
	synthetic := []amf.Value{amf.String("play"), amf.Number(transactionID(values)), amf.Null(), name}
	return s.handlePlay(synthetic, streamID)
}

// handlePause handles pause(true) and pause(false) (resume): ["pause",
// txnID, null, pause bool, position].
func (s *ServiceSession) handlePause(values []amf.Value, streamID uint32) error {
	s.mu.Lock()
	sub := s.subscription
	s.mu.Unlock()
	if sub == nil {
		return nil
	}

	paused := len(values) >= 4 && values[3].Type() == amf.TypeBoolean && values[3].AsBoolean()
	sub.setPaused(paused)

	if paused {
		return s.sendOnStatus(streamID, "status", "NetStream.Pause.Notify", "Paused")
	}

	if err := s.sendOnStatus(streamID, "status", "NetStream.Unpause.Notify", "Unpaused"); err != nil {
		return err
	}
	return s.sendPlayStartSequence(sub.stream, streamID)
}

// sendOnStatus enqueues an onStatus notification on the given message stream ID.
func (s *ServiceSession) sendOnStatus(streamID uint32, level, code, description string) error {
	body, err := encodeCommand(amf.String("onStatus"), amf.Number(0), amf.Null(), statusObject(level, code, description))
	if err != nil {
		return err
	}
	s.enqueue(csIDCommand, rtmpprotocol.MessageTypeCommandAMF0, 0, streamID, body, true)
	return nil
}

func statusObject(level, code, description string) amf.Value {
	obj := amf.NewObject()
	obj.Set("level", amf.String(level))
	obj.Set("code", amf.String(code))
	obj.Set("description", amf.String(description))
	return amf.FromObject(obj)
}

func encodeCommand(values ...amf.Value) ([]byte, error) {
	return amf.EncodeCommand(values)
}

// unwrapDataFrame decodes an incoming Data (notify) message body. Encoders
// wrap metadata in a "@setDataFrame" envelope so the server knows to cache it
// for later subscribers; this strips that envelope and re-encodes the body as
// a plain onMetaData notify, which is what both the bus's cache and every
// subscriber protocol (RTMP, HTTP-FLV, WS-FLV) actually expect to fan out.
// Notifies that aren't a "@setDataFrame" envelope are passed through
// unchanged, since an encoder may also send onMetaData directly.
func unwrapDataFrame(body []byte) ([]byte, error) {
	values, err := amf.DecodeCommand(body)
	if err != nil {
		return nil, fmt.Errorf("decode notify: %w", err)
	}
	if len(values) < 2 || values[0].Type() != amf.TypeString || values[0].AsString() != "@setDataFrame" {
		return body, nil
	}
	if values[1].Type() != amf.TypeString {
		return nil, fmt.Errorf("notify: @setDataFrame with non-string frame name")
	}
	if values[1].AsString() != "onMetaData" {
		return nil, fmt.Errorf("notify: @setDataFrame for unsupported frame %q", values[1].AsString())
	}
	return amf.EncodeCommand(values[1:])
}
