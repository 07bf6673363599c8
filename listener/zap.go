package listener

import (
	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
	"github.com/relaymesh/githook-worker/wlog"
)

// LogListener is the default Listener a Worker installs when none is
// configured: it logs each lifecycle point at a level proportional to its
// severity and otherwise does nothing.
type LogListener struct {
	Base
	log wlog.Logger
}

// NewLogListener builds a LogListener. A nil logger falls back to wlog.Noop.
func NewLogListener(log wlog.Logger) *LogListener {
	if log == nil {
		log = wlog.Noop
	}
	return &LogListener{log: log}
}

func (l *LogListener) OnStart(ctx *wcontext.Context) {
	l.log.Info("worker started", "tenant_id", ctx.TenantID)
}

func (l *LogListener) OnExit(ctx *wcontext.Context) {
	l.log.Info("worker exiting", "tenant_id", ctx.TenantID)
}

func (l *LogListener) OnMessageStart(ctx *wcontext.Context, evt *event.Event) {
	l.log.Debug("message dispatch started",
		"topic", ctx.Topic, "request_id", ctx.RequestID, "log_id", ctx.LogID)
}

func (l *LogListener) OnMessageFinish(ctx *wcontext.Context, evt *event.Event, err error) {
	if err != nil {
		l.log.Warn("message dispatch finished with error",
			"topic", ctx.Topic, "request_id", ctx.RequestID, "error", err)
		return
	}
	l.log.Debug("message dispatch finished",
		"topic", ctx.Topic, "request_id", ctx.RequestID)
}

func (l *LogListener) OnError(ctx *wcontext.Context, evt *event.Event, err error) {
	l.log.Error("dispatch error", "topic", ctx.Topic, "request_id", ctx.RequestID, "error", err)
}
