package worker

import (
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

// Handler is the single canonical signature every registered handler has.
//
// The original implementation this was ported from inspected whether a
// handler took one or two positional parameters and adapted at call time.
// A statically typed rewrite has no such ambiguity to resolve, so only this
// one signature exists; Only below is the thin adapter for callers who want
// an event-only callback, replacing the original's reflection-based arity
// detection (spec.md §9).
type Handler func(ctx *wcontext.Context, evt *event.Event) (any, error)

// Only adapts an event-only function into a Handler for callers who don't
// need the dispatch context.
func Only(f func(evt *event.Event) (any, error)) Handler {
	return func(_ *wcontext.Context, evt *event.Event) (any, error) {
		return f(evt)
	}
}

// Middleware wraps a Handler with additional behavior. Middleware
// registered as [M1, M2, M3] wraps a handler H as M1(M2(M3(H))) — the
// first-registered middleware is outermost.
type Middleware func(Handler) Handler

func chain(middleware []Middleware, h Handler) Handler {
	wrapped := h
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}
	return wrapped
}
