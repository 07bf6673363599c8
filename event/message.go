// Package event holds the raw bus message and decoded event record types
// that flow through the dispatch pipeline.
package event

// RawMessage is a single bus delivery before decoding. Metadata keys are
// case-sensitive; payload may be empty.
type RawMessage struct {
	Topic       string
	Payload     []byte
	Metadata    map[string]string
	ContentType string
}

// Coerce builds a RawMessage from a loosely-typed driver delivery, the way
// every default Subscriber implementation normalizes whatever its client
// library handed it before entering the dispatch pipeline.
func Coerce(topic string, payload []byte, md map[string]string, contentType string) RawMessage {
	if md == nil {
		md = map[string]string{}
	}
	return RawMessage{
		Topic:       topic,
		Payload:     payload,
		Metadata:    md,
		ContentType: contentType,
	}
}
