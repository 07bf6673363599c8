// Package wcontext provides the worker's request-scoped context, a thin
// wrapper distinct from context.Context that carries tenant, topic, and
// request/log identifiers alongside the cancellation signal used by the
// dispatch engine's shutdown protocol.
package wcontext

import "context"

// Context is the per-dispatch context passed to handlers, middleware, the
// client provider, and the retry policy. Child contexts inherit the tenant
// id and cancellation signal from their root; topic/request_id/log_id are
// set per message.
type Context struct {
	ctx context.Context

	TenantID  string
	Topic     string
	RequestID string
	LogID     string
}

// New creates a root Context wrapping ctx (or context.Background() if nil)
// for the given tenant.
func New(ctx context.Context, tenantID string) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, TenantID: tenantID}
}

// Context returns the underlying context.Context, for cancellation and
// deadline propagation into blocking calls (control-plane HTTP, handlers).
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// WithTopic returns a child Context scoped to a message: same tenant and
// cancellation signal, new topic/request_id/log_id.
func (c *Context) WithTopic(topic, requestID, logID string) *Context {
	return &Context{
		ctx:       c.ctx,
		TenantID:  c.TenantID,
		Topic:     topic,
		RequestID: requestID,
		LogID:     logID,
	}
}

// WithCancel returns a child Context carrying the given context.Context,
// used to attach the worker's root cancellation signal.
func (c *Context) WithCancel(ctx context.Context) *Context {
	cp := *c
	cp.ctx = ctx
	return &cp
}
