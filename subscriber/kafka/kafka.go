// Package kafka is the bundled sarama-backed subscriber.Subscriber driver.
package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
	"github.com/relaymesh/githook-worker/subscriber"
)

func init() {
	subscriber.Register("kafka", New)
}

// Subscriber consumes a topic through a sarama consumer group.
type Subscriber struct {
	cfg subscriber.Config

	mu    sync.Mutex
	group sarama.ConsumerGroup
}

// New builds a kafka Subscriber from cfg.
func New(cfg subscriber.Config) (subscriber.Subscriber, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 && cfg.Kafka.Broker != "" {
		brokers = []string{cfg.Kafka.Broker}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka subscriber: brokers are required")
	}
	return &Subscriber{cfg: cfg}, nil
}

// Start joins the consumer group for topic (optionally prefixed) and
// blocks until ctx is canceled or the consumer group returns a
// non-retriable error.
func (s *Subscriber) Start(ctx context.Context, topic string, handler subscriber.MessageHandler) error {
	if handler == nil {
		return errors.New("kafka subscriber: handler is required")
	}

	brokers := s.cfg.Kafka.Brokers
	if len(brokers) == 0 && s.cfg.Kafka.Broker != "" {
		brokers = []string{s.cfg.Kafka.Broker}
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, s.cfg.Kafka.GroupID, saramaCfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.group = group
	s.mu.Unlock()

	kafkaTopic := topic
	if s.cfg.Kafka.TopicPrefix != "" {
		kafkaTopic = s.cfg.Kafka.TopicPrefix + topic
	}

	consumed := 0
	h := &groupHandler{
		handler: handler,
		topic:   topic,
		onMessage: func() bool {
			consumed++
			return s.cfg.Kafka.MaxMessages > 0 && consumed >= s.cfg.Kafka.MaxMessages
		},
	}

	for {
		if err := group.Consume(ctx, []string{kafkaTopic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if h.limitReached {
			return nil
		}
	}
}

// Close closes the consumer group, unblocking Start.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return nil
	}
	return s.group.Close()
}

type groupHandler struct {
	handler      subscriber.MessageHandler
	topic        string
	onMessage    func() bool
	limitReached bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		md := make(map[string]string, len(msg.Headers)+1)
		for _, hdr := range msg.Headers {
			md[string(hdr.Key)] = string(hdr.Value)
		}
		if _, ok := md[metadata.KeyDriver]; !ok {
			md[metadata.KeyDriver] = "kafka"
		}

		raw := event.Coerce(msg.Topic, msg.Value, md, "")
		h.handler(raw)
		session.MarkMessage(msg, "")

		if h.onMessage() {
			h.limitReached = true
			return nil
		}
	}
	return nil
}

var _ sarama.ConsumerGroupHandler = (*groupHandler)(nil)
