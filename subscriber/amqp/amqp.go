// Package amqp is the bundled amqp091-go-backed subscriber.Subscriber
// driver. It is the only bundled driver whose MessageHandler return value
// (requeue) has an effect: a true return nacks the delivery with requeue.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
	"github.com/relaymesh/githook-worker/subscriber"
)

func init() {
	subscriber.Register("amqp", New)
}

// Subscriber consumes a queue bound to an exchange through a single AMQP
// channel.
type Subscriber struct {
	cfg subscriber.Config

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New builds an amqp Subscriber from cfg.
func New(cfg subscriber.Config) (subscriber.Subscriber, error) {
	if cfg.Amqp.URL == "" {
		return nil, errors.New("amqp subscriber: url is required")
	}
	return &Subscriber{cfg: cfg}, nil
}

// Start declares (if configured) the exchange/queue binding, using
// RoutingKeyTemplate with topic substituted for "%s", and consumes until
// ctx is canceled or Close is called.
func (s *Subscriber) Start(ctx context.Context, topic string, handler subscriber.MessageHandler) error {
	if handler == nil {
		return errors.New("amqp subscriber: handler is required")
	}

	conn, err := amqp.Dial(s.cfg.Amqp.URL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()

	queue := s.cfg.Amqp.Queue
	if queue == "" {
		queue = topic
	}

	if s.cfg.Amqp.Exchange != "" {
		routingKey := topic
		if s.cfg.Amqp.RoutingKeyTemplate != "" {
			routingKey = fmt.Sprintf(s.cfg.Amqp.RoutingKeyTemplate, topic)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(queue, routingKey, s.cfg.Amqp.Exchange, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := ch.Consume(queue, "", s.cfg.Amqp.AutoAck, false, false, false, nil)
	if err != nil {
		return err
	}

	consumed := 0
	for {
		select {
		case <-ctx.Done():
			return s.Close()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			md := make(map[string]string, len(d.Headers)+1)
			for k, v := range d.Headers {
				md[k] = fmt.Sprintf("%v", v)
			}
			if _, ok := md[metadata.KeyDriver]; !ok {
				md[metadata.KeyDriver] = "amqp"
			}

			requeue := handler(event.Coerce(topic, d.Body, md, d.ContentType))
			if !s.cfg.Amqp.AutoAck {
				if requeue {
					_ = d.Nack(false, true)
				} else {
					_ = d.Ack(false)
				}
			}

			consumed++
			if s.cfg.Amqp.MaxMessages > 0 && consumed >= s.cfg.Amqp.MaxMessages {
				return s.Close()
			}
		}
	}
}

// Close closes the channel and connection, unblocking Start.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
