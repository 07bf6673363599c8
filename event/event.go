package event

// Event is the decoded, normalized record a handler receives. It lives for
// the duration of a single dispatch; handlers and listeners must not retain
// a reference beyond the call.
type Event struct {
	Provider string
	Type     string
	Topic    string

	Metadata map[string]string
	Payload  []byte

	// Normalized holds the parsed JSON body, when the codec could produce
	// one. It is nil when decoding yielded only a raw payload.
	Normalized map[string]any

	RequestID      string
	InstallationID string
	LogID          string

	// Client is the auxiliary object a ClientProvider attached before
	// dispatch (for example an SCM API client). It is opaque to the
	// dispatch engine.
	Client any
}
