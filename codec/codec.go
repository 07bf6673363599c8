// Package codec decodes a bus RawMessage into an Event. The default codec
// tries a protobuf envelope first, falls back to a legacy JSON envelope,
// and backfills provider/type from metadata when neither carries them.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
)

// Codec decodes a RawMessage into an Event. topic, when non-empty, wins
// over the message's own topic field.
type Codec interface {
	Decode(topic string, msg event.RawMessage) (*event.Event, error)
}

// DefaultCodec is the bundled Codec: brotli decompression pre-pass,
// protobuf-envelope-first decode with a JSON-envelope fallback, and
// metadata-driven provider/type backfill.
type DefaultCodec struct{}

func (DefaultCodec) Decode(topic string, msg event.RawMessage) (*event.Event, error) {
	if msg.Payload == nil {
		return nil, fmt.Errorf("codec: message payload is required")
	}

	rawPayload, err := maybeDecompress(msg.ContentType, msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("codec: decompress payload: %w", err)
	}

	provider, eventName, normalized, payload := decodeEnvelope(rawPayload)

	md := msg.Metadata
	if md == nil {
		md = map[string]string{}
	}
	if provider == "" {
		provider = md[metadata.KeyProvider]
	}
	if eventName == "" {
		eventName = md[metadata.KeyEvent]
	}

	return &event.Event{
		Provider:       provider,
		Type:           eventName,
		Topic:          resolveTopic(topic, msg.Topic),
		Metadata:       md,
		Payload:        payload,
		Normalized:     normalized,
		RequestID:      md[metadata.KeyRequestID],
		InstallationID: md[metadata.KeyInstallationID],
		LogID:          md[metadata.KeyLogID],
	}, nil
}

// decodeEnvelope tries the protobuf envelope first; on any parse failure it
// falls back to the legacy JSON envelope shape {"provider","name","data"}.
// Whichever succeeds, it also attempts to parse the remaining raw payload
// as a JSON object for Event.Normalized when the envelope itself didn't
// already produce one.
func decodeEnvelope(raw []byte) (provider, eventName string, normalized map[string]any, payload []byte) {
	if env, ok := parseProtoEnvelope(raw); ok {
		payload = env.Payload
		if payload == nil {
			payload = []byte{}
		}
		return env.Provider, env.Name, parseJSONObject(payload), payload
	}

	payload = raw
	if legacy, ok := parseJSONValue(raw).(map[string]any); ok {
		if p, ok := legacy["provider"].(string); ok {
			provider = p
		}
		if n, ok := legacy["name"].(string); ok {
			eventName = n
		}
		if data, ok := legacy["data"].(map[string]any); ok {
			normalized = data
		}
	}
	if normalized == nil {
		normalized = parseJSONObject(payload)
	}
	return provider, eventName, normalized, payload
}

func resolveTopic(topic, msgTopic string) string {
	if trimmed := strings.TrimSpace(topic); trimmed != "" {
		return trimmed
	}
	return msgTopic
}

func parseJSONObject(data []byte) map[string]any {
	if v, ok := parseJSONValue(data).(map[string]any); ok {
		return v
	}
	return nil
}

func parseJSONValue(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}
