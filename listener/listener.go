// Package listener defines the observer hooks a Worker notifies across a
// message's lifecycle, and a no-op base other listeners can embed.
package listener

import (
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

// Listener receives lifecycle notifications from a Worker. A worker may be
// configured with more than one; each is called in registration order and a
// listener's own error (there is none to return) can never fail dispatch.
//
// The original implementation exposed each hook under two names (on_start
// and OnStart, etc). That dual naming collapses here to one canonical
// exported method per hook.
type Listener interface {
	OnStart(ctx *wcontext.Context)
	OnExit(ctx *wcontext.Context)
	OnMessageStart(ctx *wcontext.Context, evt *event.Event)
	OnMessageFinish(ctx *wcontext.Context, evt *event.Event, err error)
	OnError(ctx *wcontext.Context, evt *event.Event, err error)
}

// Base is a Listener whose every hook is a no-op. Embed it to implement only
// the hooks a concrete listener cares about.
type Base struct{}

func (Base) OnStart(_ *wcontext.Context)                                  {}
func (Base) OnExit(_ *wcontext.Context)                                   {}
func (Base) OnMessageStart(_ *wcontext.Context, _ *event.Event)           {}
func (Base) OnMessageFinish(_ *wcontext.Context, _ *event.Event, _ error) {}
func (Base) OnError(_ *wcontext.Context, _ *event.Event, _ error)         {}

// Notify fans a hook call out to every registered listener. The worker uses
// this instead of calling listeners directly so that the lifecycle points
// stay in one place.
type Notifier struct {
	listeners []Listener
}

// NewNotifier builds a Notifier over the given listeners, in call order.
func NewNotifier(listeners ...Listener) *Notifier {
	return &Notifier{listeners: listeners}
}

func (n *Notifier) Add(l Listener) {
	n.listeners = append(n.listeners, l)
}

func (n *Notifier) Start(ctx *wcontext.Context) {
	for _, l := range n.listeners {
		l.OnStart(ctx)
	}
}

func (n *Notifier) Exit(ctx *wcontext.Context) {
	for _, l := range n.listeners {
		l.OnExit(ctx)
	}
}

func (n *Notifier) MessageStart(ctx *wcontext.Context, evt *event.Event) {
	for _, l := range n.listeners {
		l.OnMessageStart(ctx, evt)
	}
}

func (n *Notifier) MessageFinish(ctx *wcontext.Context, evt *event.Event, err error) {
	for _, l := range n.listeners {
		l.OnMessageFinish(ctx, evt, err)
	}
}

func (n *Notifier) Error(ctx *wcontext.Context, evt *event.Event, err error) {
	for _, l := range n.listeners {
		l.OnError(ctx, evt, err)
	}
}
