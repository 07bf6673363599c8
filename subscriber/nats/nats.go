// Package nats is the bundled nats.go-backed subscriber.Subscriber driver.
package nats

import (
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
	"github.com/relaymesh/githook-worker/subscriber"
)

func init() {
	subscriber.Register("nats", New)
}

// Subscriber consumes a subject through a plain nats.Conn subscription.
type Subscriber struct {
	cfg subscriber.Config

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// New builds a nats Subscriber from cfg.
func New(cfg subscriber.Config) (subscriber.Subscriber, error) {
	if cfg.Nats.URL == "" {
		return nil, errors.New("nats subscriber: url is required")
	}
	return &Subscriber{cfg: cfg}, nil
}

// Start connects and subscribes to topic (optionally prefixed), delivering
// each message to handler, until ctx is canceled or Close is called.
func (s *Subscriber) Start(ctx context.Context, topic string, handler subscriber.MessageHandler) error {
	if handler == nil {
		return errors.New("nats subscriber: handler is required")
	}

	closed := make(chan struct{})
	conn, err := nats.Connect(s.cfg.Nats.URL, nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	subject := topic
	if s.cfg.Nats.SubjectPrefix != "" {
		subject = s.cfg.Nats.SubjectPrefix + topic
	}

	var consumed int
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		md := make(map[string]string, len(msg.Header))
		for k := range msg.Header {
			md[k] = msg.Header.Get(k)
		}
		if _, ok := md[metadata.KeyDriver]; !ok {
			md[metadata.KeyDriver] = "nats"
		}
		handler(event.Coerce(msg.Subject, msg.Data, md, ""))

		consumed++
		if s.cfg.Nats.MaxMessages > 0 && consumed >= s.cfg.Nats.MaxMessages {
			_ = s.Close()
		}
	})
	if err != nil {
		conn.Close()
		return err
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return s.Close()
	case <-closed:
		return nil
	}
}

// Close unsubscribes and closes the connection, unblocking Start.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}
