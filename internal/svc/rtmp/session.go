// If you are AI: This file manages a single RTMP connection's lifecycle:
// handshake, the reader loop, the dedicated writer goroutine, and the state
// needed to dispatch commands and forward media.

package rtmp

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"rtmprelay/internal/core/bus"
	rtmpprotocol "rtmprelay/internal/core/protocol/rtmp"
	"rtmprelay/internal/core/protocol/wire"
)

// Chunk stream IDs this server uses for its own outgoing traffic. Incoming
// chunk stream IDs are whatever the client chooses; these only govern what
// this server picks when it is the one framing a message.
const (
	csIDProtocolControl = 2
	csIDCommand         = 3
	csIDData            = 4
	csIDAudio           = 5
	csIDVideo           = 6
)

// SessionConfig carries the fan-out tuning knobs a session needs, sourced
// from the process configuration.
type SessionConfig struct {
	DefaultChunkSize uint32
	SubscriberBuffer uint32
	SendQueueBytes   int
}

// ServiceSession binds a raw RTMP protocol session to this server's stream
// registry, and owns the goroutines and state needed to publish or play a
// stream over that connection.
type ServiceSession struct {
	*rtmpprotocol.Session

	registry *bus.Registry
	cfg      SessionConfig

	mu                   sync.Mutex
	app                  string
	nextStreamID         uint32
	publisher            *Publisher
	subscription         *subscription
	pendingPublishStream *bus.Stream
	pendingPublishKey    bus.StreamKey

	queue *sendQueue
	done  chan struct{}
}

// NewServiceSession creates a session wrapping conn, ready to perform the
// handshake and dispatch RTMP commands.
func NewServiceSession(conn io.ReadWriter, registry *bus.Registry, cfg SessionConfig) *ServiceSession {
	return &ServiceSession{
		Session:      rtmpprotocol.NewSession(conn),
		registry:     registry,
		cfg:          cfg,
		nextStreamID: 1,
		queue:        newSendQueue(cfg.SendQueueBytes),
		done:         make(chan struct{}),
	}
}

// Run performs the handshake, starts the writer goroutine, and then runs the
// chunk-reading loop until the connection ends or an unrecoverable error
// occurs. It returns once the session is fully torn down.
func (s *ServiceSession) Run() {
	defer s.Close()

	if err := s.PerformHandshake(); err != nil {
		if !errors.Is(err, rtmpprotocol.ErrInvalidVersion) {
			log.Printf("rtmp: handshake failed: %v", err)
		}
		return
	}

	go s.writerLoop()
	s.readerLoop()
}

func (s *ServiceSession) writerLoop() {
	for {
		item, ok := s.queue.pop()
		if !ok {
			return
		}
		err := s.WriteMessage(item.csID, item.msgType, item.timestamp, item.streamID, item.body)
		if item.mediaMsg != nil {
			item.mediaMsg.Release()
		}
		if err != nil {
			s.Close()
			return
		}
	}
}

func (s *ServiceSession) readerLoop() {
	for {
		csID, err := s.ReadChunk()
		if err != nil {
			if err != io.EOF {
				log.Printf("rtmp: read chunk error: %v", err)
			}
			return
		}

		body, msgType, timestamp, streamID, complete := s.GetCompleteMessage(csID)
		if !complete {
			continue
		}

		if err := s.dispatch(msgType, timestamp, streamID, body); err != nil {
			log.Printf("rtmp: dispatch error: %v", err)
			s.ReleaseMessage(body)
			return
		}
		s.ReleaseMessage(body)
	}
}

func (s *ServiceSession) dispatch(msgType byte, timestamp, streamID uint32, body []byte) error {
	switch msgType {
	case rtmpprotocol.MessageTypeSetChunkSize:
		size, err := rtmpprotocol.ParseSetChunkSize(body)
		if err != nil {
			return err
		}
		s.SetReadChunkSize(size)
		return nil

	case rtmpprotocol.MessageTypeAck:
		if len(body) < 4 {
			return fmt.Errorf("rtmp: short bytes-read message")
		}
		_, err := s.RecordBytesReceived(wire.BE32(body[0:4]))
		return err

	case rtmpprotocol.MessageTypeWinAckSize, rtmpprotocol.MessageTypeUserCtrl,
		rtmpprotocol.MessageTypeAbortMessage:
		return nil

	case rtmpprotocol.MessageTypeCommandAMF0:
		return s.handleCommand(body, streamID)

	case rtmpprotocol.MessageTypeAudio:
		return s.publishMedia(bus.MessageTypeAudio, timestamp, body)
	case rtmpprotocol.MessageTypeVideo:
		return s.publishMedia(bus.MessageTypeVideo, timestamp, body)
	case rtmpprotocol.MessageTypeDataAMF0:
		unwrapped, err := unwrapDataFrame(body)
		if err != nil {
			return err
		}
		if unwrapped == nil {
			return nil
		}
		return s.publishMedia(bus.MessageTypeMetadata, timestamp, unwrapped)

	case rtmpprotocol.MessageTypeFLVData:
		return fmt.Errorf("rtmp: rejected FLV-tunneled message (type 0x16)")

	default:
		return nil
	}
}

// enqueue hands a fully-formed outgoing message to the writer goroutine.
func (s *ServiceSession) enqueue(csID uint32, msgType byte, timestamp, streamID uint32, body []byte, control bool) {
	s.queue.push(outgoingChunk{
		csID:      csID,
		msgType:   msgType,
		timestamp: timestamp,
		streamID:  streamID,
		body:      body,
		control:   control,
	})
}

func (s *ServiceSession) setApp(app string) {
	s.mu.Lock()
	s.app = app
	s.mu.Unlock()
}

func (s *ServiceSession) getApp() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app
}

func (s *ServiceSession) allocateStreamID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextStreamID
	s.nextStreamID++
	return id
}

// publishMedia forwards an incoming audio/video/metadata message to this
// session's publisher. A session that sends media without having completed
// publish is a protocol violation, not something to silently ignore, so the
// caller is expected to close the connection on the returned error.
func (s *ServiceSession) publishMedia(msgType bus.MessageType, timestamp uint32, body []byte) error {
	s.mu.Lock()
	pub := s.publisher
	s.mu.Unlock()
	if pub == nil {
		return fmt.Errorf("rtmp: media sent by a session with no attached publisher")
	}
	pub.Publish(msgType, timestamp, body)
	return nil
}

// Close tears down the session: detaches any publisher/subscription, stops
// the writer goroutine, and closes the underlying connection. Safe to call
// more than once.
func (s *ServiceSession) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}

	s.mu.Lock()
	pub := s.publisher
	sub := s.subscription
	pendingStream := s.pendingPublishStream
	pendingKey := s.pendingPublishKey
	s.publisher = nil
	s.subscription = nil
	s.pendingPublishStream = nil
	s.pendingPublishKey = bus.StreamKey{}
	s.mu.Unlock()

	if pub != nil {
		pub.Detach()
		s.registry.RemoveIfEmpty(pub.StreamKey())
	}
	if sub != nil {
		sub.stop()
		s.registry.RemoveIfEmpty(sub.streamKey)
	}
	// FCPublish reserves the publisher slot ahead of the actual publish
	// command; release it if the session disconnects before claiming it.
	if pendingStream != nil && pub == nil {
		pendingStream.DetachPublisher()
		s.registry.RemoveIfEmpty(pendingKey)
	}

	s.queue.Close()
	s.Session.Close()
}
