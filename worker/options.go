package worker

import (
	"strings"
	"time"

	"github.com/relaymesh/githook-worker/clientprovider"
	"github.com/relaymesh/githook-worker/codec"
	"github.com/relaymesh/githook-worker/controlplane"
	"github.com/relaymesh/githook-worker/listener"
	"github.com/relaymesh/githook-worker/retry"
	"github.com/relaymesh/githook-worker/subscriber"
	"github.com/relaymesh/githook-worker/wlog"
)

// Option mutates a Worker before Run. Each corresponds to one enumerated
// configuration option in spec.md §4.1.
type Option func(*Worker)

// WithSubscriber injects a single pre-built Subscriber, bypassing
// per-driver construction from control-plane Driver records entirely.
func WithSubscriber(sub subscriber.Subscriber) Option {
	return func(w *Worker) { w.subscriber = sub }
}

// WithTopics pre-declares the allowed-topics set. Once non-empty, a
// HandleTopic call for any other topic is rejected (logged and dropped).
func WithTopics(topics ...string) Option {
	return func(w *Worker) {
		for _, t := range topics {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			w.allowedTopics[t] = struct{}{}
		}
	}
}

// WithCodec overrides the default protobuf/JSON codec.
func WithCodec(c codec.Codec) Option {
	return func(w *Worker) { w.codec = c }
}

// WithLogger sets the structured key/value log sink used throughout
// dispatch. There is no printf-style logger adapter.
func WithLogger(l wlog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithConcurrency sizes the semaphore bounding concurrent handler
// invocations. Values below 1 are clamped to 1.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n < 1 {
			n = 1
		}
		w.concurrency = n
	}
}

// WithMiddleware appends middleware, outer-to-inner in the order given
// across calls: the first one ever registered is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(w *Worker) { w.middleware = append(w.middleware, mw...) }
}

// WithRetryPolicy overrides the default NoRetry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Worker) { w.retryPolicy = p }
}

// WithRetryCount sets the number of retry attempts beyond the first; total
// handler invocations for a failing message is RetryCount+1. Negative
// values are clamped to 0.
func WithRetryCount(n int) Option {
	return func(w *Worker) {
		if n < 0 {
			n = 0
		}
		w.retryCount = n
	}
}

// WithListener registers an additional lifecycle observer, notified in
// registration order alongside any other registered listener.
func WithListener(l listener.Listener) Option {
	return func(w *Worker) {
		w.listeners.Add(l)
		w.hasListener = true
	}
}

// WithClientProvider attaches an auxiliary client to each event before
// handler dispatch.
func WithClientProvider(p clientprovider.Provider) Option {
	return func(w *Worker) { w.clientProvider = p }
}

// WithEndpoint sets the control-plane base URL (falls back to
// GITHOOK_ENDPOINT/GITHOOK_API_BASE_URL when empty).
func WithEndpoint(endpoint string) Option {
	return func(w *Worker) { w.endpoint = endpoint }
}

// WithAPIKey sets the control-plane API key (falls back to
// GITHOOK_API_KEY when empty).
func WithAPIKey(key string) Option {
	return func(w *Worker) { w.apiKey = key }
}

// WithOAuth2Config configures client-credentials auth for the control-plane
// client, used only when no API key is configured.
func WithOAuth2Config(cfg *controlplane.OAuth2Config) Option {
	return func(w *Worker) { w.oauth2Config = cfg }
}

// WithTenantID sets the X-Tenant-ID sent on every control-plane request
// (falls back to GITHOOK_TENANT_ID when empty).
func WithTenantID(tenantID string) Option {
	return func(w *Worker) { w.tenantID = tenantID }
}

// WithDefaultDriverID sets the driver id used for topics registered without
// an explicit one.
func WithDefaultDriverID(id string) Option {
	return func(w *Worker) { w.defaultDriverID = id }
}

// WithValidateTopics toggles pre-flight topic validation against
// control-plane rules. Defaults to true.
func WithValidateTopics(v bool) Option {
	return func(w *Worker) { w.validateTopics = v }
}

// WithRules overrides the default control-plane-backed RuleLister, for
// tests or an alternate rules source.
func WithRules(r RuleLister) Option {
	return func(w *Worker) { w.rules = r }
}

// WithDrivers overrides the default control-plane-backed DriverLister.
func WithDrivers(d DriverLister) Option {
	return func(w *Worker) { w.drivers = d }
}

// WithEventLogs overrides the default control-plane-backed
// EventLogReporter.
func WithEventLogs(e EventLogReporter) Option {
	return func(w *Worker) { w.eventLogs = e }
}

// WithAuditStore attaches a local, append-only audit trail of per-message
// outcomes, independent of control-plane EventLogs reporting.
func WithAuditStore(a AuditStore) Option {
	return func(w *Worker) { w.auditStore = a }
}

// WithCloseTimeout bounds how long the fan-out waits for every Subscriber's
// Close to return before giving up and logging. It does not bound the wait
// for Start to return: Run still waits for every Start call.
func WithCloseTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.closeTimeout = d
		}
	}
}
