// Package subscriber defines the contract a message bus driver implements
// to feed raw deliveries into the dispatch engine, along with the
// JSON-sourced configuration shapes for the bundled drivers.
package subscriber

import (
	"encoding/json"
	"strings"
)

// KafkaConfig configures the bundled sarama-backed Kafka subscriber.
type KafkaConfig struct {
	Brokers     []string
	Broker      string
	GroupID     string
	TopicPrefix string
	MaxMessages int
}

// NatsConfig configures the bundled nats.go-backed NATS subscriber.
type NatsConfig struct {
	URL           string
	SubjectPrefix string
	MaxMessages   int
}

// AmqpConfig configures the bundled amqp091-go-backed AMQP subscriber.
type AmqpConfig struct {
	URL                string
	Exchange           string
	RoutingKeyTemplate string
	Queue              string
	AutoAck            bool
	MaxMessages        int
}

// Config is the parsed subscriber configuration for a single worker. Driver
// selects a single-driver subscriber; Drivers (when non-empty, together
// with or instead of Driver) builds a fan-out MultiSubscriber over more
// than one driver for the same topic set.
type Config struct {
	Driver  string
	Drivers []string

	Kafka KafkaConfig
	Nats  NatsConfig
	Amqp  AmqpConfig
}

// FromDriverJSON builds a Config for a single driver from its raw JSON
// configuration blob (the shape each control-plane DriverRecord carries).
func FromDriverJSON(driver, raw string) (Config, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		return Config{}, errRequired("driver")
	}
	cfg := Config{Driver: driver}
	if err := ApplyDriverJSON(&cfg, driver, raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDriverJSON parses raw (a JSON object, tolerant of an empty string)
// into the sub-config matching name.
func ApplyDriverJSON(cfg *Config, name, raw string) error {
	if cfg == nil {
		return errRequired("config")
	}
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "amqp":
		applyAmqpConfig(&cfg.Amqp, data)
	case "nats":
		applyNatsConfig(&cfg.Nats, data)
	case "kafka":
		applyKafkaConfig(&cfg.Kafka, data)
	default:
		return errUnsupportedDriver(name)
	}
	return nil
}

func applyAmqpConfig(cfg *AmqpConfig, data map[string]any) {
	cfg.URL = readString(data, "url")
	cfg.Exchange = readString(data, "exchange")
	cfg.RoutingKeyTemplate = readString(data, "routing_key_template", "routingKeyTemplate")
	cfg.Queue = readString(data, "queue")
	cfg.AutoAck = readBool(data, "auto_ack", "autoAck")
	cfg.MaxMessages = readInt(data, "max_messages", "maxMessages")
}

func applyNatsConfig(cfg *NatsConfig, data map[string]any) {
	cfg.URL = readString(data, "url")
	cfg.SubjectPrefix = readString(data, "subject_prefix", "subjectPrefix")
	cfg.MaxMessages = readInt(data, "max_messages", "maxMessages")
}

func applyKafkaConfig(cfg *KafkaConfig, data map[string]any) {
	brokers := readStringList(data, "brokers")
	broker := readString(data, "broker")
	if len(brokers) == 0 && broker != "" {
		brokers = []string{broker}
	}
	cfg.Brokers = brokers
	cfg.Broker = broker
	cfg.GroupID = readString(data, "group_id", "groupId")
	cfg.TopicPrefix = readString(data, "topic_prefix", "topicPrefix")
	cfg.MaxMessages = readInt(data, "max_messages", "maxMessages")
}

func readString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok {
			return v
		}
	}
	return ""
}

func readBool(data map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := data[k].(bool); ok {
			return v
		}
	}
	return false
}

func readInt(data map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := data[k].(float64); ok {
			return int(v)
		}
	}
	return 0
}

func readStringList(data map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := data[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// UniqueStrings lowercases, trims, and de-duplicates values, preserving
// first-seen order. Empty values are dropped.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := strings.ToLower(strings.TrimSpace(v))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
