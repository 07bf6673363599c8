// Package metadata defines the canonical message metadata keys and event
// log status tokens shared by the codec, worker, and control-plane client.
package metadata

// Canonical metadata keys. Lookups against RawMessage.Metadata are
// exact-match against these strings.
const (
	KeyProvider            = "provider"
	KeyEvent               = "event"
	KeyRequestID           = "request_id"
	KeyInstallationID      = "installation_id"
	KeyLogID               = "log_id"
	KeyProviderInstanceKey = "provider_instance_key"
	KeyDriver              = "driver"
)

// Event log status tokens reported to the control-plane EventLogsService.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AmqpDriverName is the only driver name whose requeue decision is honored
// by the bus; every other driver suppresses the requeue flag.
const AmqpDriverName = "amqp"
