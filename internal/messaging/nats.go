// Package messaging provides a NATS client wrapper for fanning stream
// events out across comment server instances. Every accepted comment and
// viewer count change is published to the stream's subject; each instance
// subscribes to the subjects of the streams its local viewers are watching.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/danmaku/live-comments/internal/comment"
)

// SubjectStreamEvents is the subject prefix for per-stream events.
// The full subject is stream.<streamID>.events.
const SubjectStreamEvents = "stream"

// Event types carried on a stream's subject.
const (
	EventNewComment  = "new_comment"
	EventViewerCount = "viewer_count"
	EventStreamEnded = "stream_ended"
)

// StreamEvent is the payload published on stream.<id>.events.
type StreamEvent struct {
	Type     string           `json:"type"`
	StreamID string           `json:"stream_id"`
	Comment  *comment.Comment `json:"comment,omitempty"`
	Count    int              `json:"count,omitempty"`
	Ts       int64            `json:"ts"`
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
// It implements pipeline.Broadcaster.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "commentserver",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// StreamSubject returns the NATS subject carrying a stream's events.
func StreamSubject(streamID string) string {
	return SubjectStreamEvents + "." + streamID + ".events"
}

// BroadcastComment publishes an accepted comment to the stream's subject.
func (c *NATSClient) BroadcastComment(streamID string, cm *comment.Comment) error {
	return c.publishEvent(StreamEvent{
		Type:     EventNewComment,
		StreamID: streamID,
		Comment:  cm,
		Ts:       time.Now().UnixMilli(),
	})
}

// BroadcastViewerCount publishes the stream's current viewer count.
func (c *NATSClient) BroadcastViewerCount(streamID string, count int) error {
	return c.publishEvent(StreamEvent{
		Type:     EventViewerCount,
		StreamID: streamID,
		Count:    count,
		Ts:       time.Now().UnixMilli(),
	})
}

// BroadcastStreamEnded announces that a stream has ended.
func (c *NATSClient) BroadcastStreamEnded(streamID string) error {
	return c.publishEvent(StreamEvent{
		Type:     EventStreamEnded,
		StreamID: streamID,
		Ts:       time.Now().UnixMilli(),
	})
}

func (c *NATSClient) publishEvent(ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nats marshal event: %w", err)
	}
	subject := StreamSubject(ev.StreamID)
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeStream subscribes to a stream's events and passes each decoded
// event to the handler. Malformed payloads are logged and skipped. Calling
// SubscribeStream again for the same stream is a no-op.
func (c *NATSClient) SubscribeStream(streamID string, handler func(ev StreamEvent)) error {
	subject := StreamSubject(streamID)

	c.mu.Lock()
	if _, ok := c.subs[subject]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev StreamEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[nats] bad event on %s: %v", msg.Subject, err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// UnsubscribeStream removes a stream subscription. It is a no-op when no
// subscription exists, since stream teardown may race with viewer leaves.
func (c *NATSClient) UnsubscribeStream(streamID string) error {
	subject := StreamSubject(streamID)

	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
