// Package retry classifies a dispatch failure into a bus requeue decision.
// It is distinct from the worker's attempt loop (WorkerOptions.RetryCount):
// the Policy here runs once, after all handler attempts are exhausted (or
// decoding/client-attachment failed), and only decides whether the bus
// should redeliver the message.
package retry

import (
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

// Decision reports whether the bus should redeliver (Retry) and whether the
// delivery should be nacked (Nack). The worker translates `Retry || Nack`
// into the requeue flag it hands back to the Subscriber.
type Decision struct {
	Retry bool
	Nack  bool
}

// Default is the decision used by NoRetry: no retry, nack.
func Default() Decision {
	return Decision{Retry: false, Nack: true}
}

// Policy decides what to do with a message after a decode, client-attach,
// or handler failure. evt is nil when the failure happened before an event
// could be decoded.
//
// The original implementation this was ported from also tolerated a policy
// returning a plain dict with "retry"/"nack" keys. That dynamic-typing
// convenience is intentionally dropped here: a statically typed rewrite
// requires the structured Decision value.
type Policy interface {
	OnError(ctx *wcontext.Context, evt *event.Event, err error) Decision
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(ctx *wcontext.Context, evt *event.Event, err error) Decision

// OnError implements Policy.
func (f PolicyFunc) OnError(ctx *wcontext.Context, evt *event.Event, err error) Decision {
	return f(ctx, evt, err)
}

// NoRetry is the default policy: never retry, always nack.
type NoRetry struct{}

// OnError implements Policy.
func (NoRetry) OnError(_ *wcontext.Context, _ *event.Event, _ error) Decision {
	return Default()
}

// Call invokes policy, falling back to NoRetry when nil (an unconfigured
// worker still has a retry policy to consult).
func Call(policy Policy, wctx *wcontext.Context, evt *event.Event, err error) Decision {
	if policy == nil {
		policy = NoRetry{}
	}
	return policy.OnError(wctx, evt, err)
}

// Requeue combines the two decision fields the way the worker does: the bus
// should be asked to redeliver if either flag is set.
func (d Decision) Requeue() bool {
	return d.Retry || d.Nack
}
