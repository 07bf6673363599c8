// Package clientprovider attaches an auxiliary client (typically an SCM API
// client) to an event before it reaches a handler.
package clientprovider

import (
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

// Provider builds the client attached to an event's Client field. It runs
// once per message, after decoding and before the handler is resolved.
type Provider interface {
	Client(ctx *wcontext.Context, evt *event.Event) (any, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx *wcontext.Context, evt *event.Event) (any, error)

// Client implements Provider.
func (f Func) Client(ctx *wcontext.Context, evt *event.Event) (any, error) {
	return f(ctx, evt)
}
