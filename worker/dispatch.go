package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
	"github.com/relaymesh/githook-worker/retry"
	"github.com/relaymesh/githook-worker/subscriber"
	"github.com/relaymesh/githook-worker/wcontext"
)

type fanoutTask struct {
	sub     subscriber.Subscriber
	topic   string
	handler subscriber.MessageHandler
}

func (w *Worker) newTask(sub subscriber.Subscriber, topic string) fanoutTask {
	return fanoutTask{sub: sub, topic: topic, handler: w.makeHandler(topic)}
}

func (w *Worker) makeHandler(topic string) subscriber.MessageHandler {
	return func(msg event.RawMessage) bool {
		return w.dispatch(topic, msg)
	}
}

// dispatch runs the full per-message pipeline described in spec.md §4.1
// steps 1-11 and returns the requeue flag to hand back to the Subscriber.
func (w *Worker) dispatch(topic string, msg event.RawMessage) bool {
	logID := msg.Metadata[metadata.KeyLogID]
	driverMeta := msg.Metadata[metadata.KeyDriver]

	evt, err := w.codec.Decode(topic, msg)
	if err != nil {
		w.logger.Error("worker: decode failed", "topic", topic, "error", err)
		w.reportStatus(w.root, topic, logID, nil, err, 0)
		w.listeners.Error(w.root, nil, err)
		decision := retry.Call(w.retryPolicy, w.root, nil, err)
		return w.requeue(decision, driverMeta)
	}

	wctx := w.root.WithTopic(topic, evt.RequestID, evt.LogID)

	if w.clientProvider != nil {
		client, err := w.clientProvider.Client(wctx, evt)
		if err != nil {
			w.logger.Error("worker: client attach failed", "topic", topic, "error", err)
			w.reportStatus(wctx, topic, evt.LogID, evt, err, 0)
			w.listeners.Error(wctx, evt, err)
			decision := retry.Call(w.retryPolicy, wctx, evt, err)
			return w.requeue(decision, driverMeta)
		}
		evt.Client = client
	}

	if evt.RequestID != "" {
		w.logger.Info("worker: dispatching request", "request_id", evt.RequestID, "topic", topic)
	}

	w.listeners.MessageStart(wctx, evt)

	handler, ok := w.resolveHandler(topic, evt.Type)
	if !ok {
		w.logger.Warn("worker: no handler registered", "topic", topic, "type", evt.Type)
		w.listeners.MessageFinish(wctx, evt, nil)
		w.reportStatus(wctx, topic, evt.LogID, evt, nil, 0)
		return false
	}

	wrapped := chain(w.middleware, handler)

	var lastErr error
	attempts := w.retryCount + 1
	attempt := 0
	for ; attempt < attempts; attempt++ {
		lastErr = w.invoke(wctx, evt, wrapped)
		if lastErr == nil {
			break
		}
	}

	if lastErr == nil {
		w.listeners.MessageFinish(wctx, evt, nil)
		w.reportStatus(wctx, topic, evt.LogID, evt, nil, attempt+1)
		return false
	}

	w.listeners.MessageFinish(wctx, evt, lastErr)
	w.listeners.Error(wctx, evt, lastErr)
	w.reportStatus(wctx, topic, evt.LogID, evt, lastErr, attempt)
	decision := retry.Call(w.retryPolicy, wctx, evt, lastErr)
	return w.requeue(decision, driverMeta)
}

// invoke acquires the concurrency semaphore for the duration of a single
// handler attempt. Only handler invocation is gated; decode and client
// attachment above run unbounded, per spec.md §5.
func (w *Worker) invoke(ctx *wcontext.Context, evt *event.Event, h Handler) (err error) {
	w.sem <- struct{}{}
	defer func() { <-w.sem }()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: handler panicked: %v", r)
		}
	}()
	_, err = h(ctx, evt)
	return err
}

func (w *Worker) resolveHandler(topic, eventType string) (Handler, bool) {
	if h, ok := w.topicHandler[topic]; ok {
		return h, true
	}
	if eventType != "" {
		if h, ok := w.typeHandler[eventType]; ok {
			return h, true
		}
	}
	return nil, false
}

// requeue translates a retry decision into the bus-level requeue signal.
// Only the amqp driver honors requeue semantics; it is identified from the
// delivered message's own "driver" metadata key (spec.md §6), not from the
// topic's registered driver id.
func (w *Worker) requeue(d retry.Decision, driverMeta string) bool {
	if !d.Requeue() {
		return false
	}
	return strings.EqualFold(driverMeta, metadata.AmqpDriverName)
}

// reportStatus issues the control-plane EventLogs status update (when logID
// is non-empty) and appends to the local audit store, if configured. Both
// are best-effort: a failure here is logged and swallowed, never masking
// the dispatch outcome that produced it (spec.md §7).
func (w *Worker) reportStatus(ctx *wcontext.Context, topic, logID string, evt *event.Event, dispatchErr error, attempts int) {
	status := metadata.StatusSuccess
	errMsg := ""
	if dispatchErr != nil {
		status = metadata.StatusFailed
		errMsg = dispatchErr.Error()
	}

	if logID != "" && w.eventLogs != nil {
		if err := w.eventLogs.UpdateEventLogStatus(ctx, logID, status, errMsg); err != nil {
			w.logger.Warn("worker: event log status update failed", "log_id", logID, "error", err)
		}
	}

	if w.auditStore == nil {
		return
	}
	rec := AuditRecord{
		Topic:     topic,
		LogID:     logID,
		Status:    status,
		Error:     errMsg,
		Attempts:  attempts,
		Timestamp: time.Now(),
	}
	if evt != nil {
		rec.Provider = evt.Provider
		rec.Type = evt.Type
	}
	if err := w.auditStore.Record(rec); err != nil {
		w.logger.Warn("worker: audit record failed", "log_id", logID, "error", err)
	}
}
