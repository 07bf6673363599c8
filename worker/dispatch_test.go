package worker

import (
	"errors"
	"testing"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/listener"
	"github.com/relaymesh/githook-worker/retry"
	"github.com/relaymesh/githook-worker/wcontext"
)

type statusCall struct {
	logID  string
	status string
	errMsg string
}

type stubEventLogs struct {
	calls []statusCall
}

func (s *stubEventLogs) UpdateEventLogStatus(_ *wcontext.Context, logID, status, errMessage string) error {
	s.calls = append(s.calls, statusCall{logID, status, errMessage})
	return nil
}

type recordingListener struct {
	listener.Base
	starts  int
	finishes int
	errs    int
	lastFinishErr error
	lastErrErr    error
	lastErrEvtNil bool
}

func (r *recordingListener) OnMessageStart(_ *wcontext.Context, _ *event.Event) { r.starts++ }
func (r *recordingListener) OnMessageFinish(_ *wcontext.Context, _ *event.Event, err error) {
	r.finishes++
	r.lastFinishErr = err
}
func (r *recordingListener) OnError(_ *wcontext.Context, evt *event.Event, err error) {
	r.errs++
	r.lastErrErr = err
	r.lastErrEvtNil = evt == nil
}

func newTestWorker(t *testing.T, opts ...Option) (*Worker, *stubEventLogs, *recordingListener) {
	t.Helper()
	logs := &stubEventLogs{}
	rec := &recordingListener{}
	w := New(append([]Option{WithEventLogs(logs), WithListener(rec)}, opts...)...)
	w.root = wcontext.New(nil, "tenant")
	return w, logs, rec
}

func rawMsg(topic, logID string, metaExtra map[string]string) event.RawMessage {
	md := map[string]string{"log_id": logID}
	for k, v := range metaExtra {
		md[k] = v
	}
	return event.RawMessage{Topic: topic, Payload: []byte(`{"a":1}`), Metadata: md}
}

// Scenario 1: success path.
func TestDispatchSuccessPath(t *testing.T) {
	policyCalled := false
	w, logs, rec := newTestWorker(t, WithRetryPolicy(retry.PolicyFunc(func(_ *wcontext.Context, _ *event.Event, _ error) retry.Decision {
		policyCalled = true
		return retry.Default()
	})))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		return nil, nil
	})

	requeue := w.dispatch("t", rawMsg("t", "L1", nil))

	if requeue {
		t.Error("expected no requeue")
	}
	if policyCalled {
		t.Error("retry policy should not be consulted on success")
	}
	if len(logs.calls) != 1 || logs.calls[0] != (statusCall{"L1", "SUCCESS", ""}) {
		t.Errorf("unexpected status calls: %+v", logs.calls)
	}
	if rec.finishes != 1 || rec.lastFinishErr != nil {
		t.Errorf("expected one nil-error finish, got %d (%v)", rec.finishes, rec.lastFinishErr)
	}
	if rec.errs != 0 {
		t.Errorf("expected no OnError calls, got %d", rec.errs)
	}
	if rec.starts != 1 {
		t.Errorf("expected one OnMessageStart call, got %d", rec.starts)
	}
}

// Scenario 2: handler failure, no retry, amqp driver requeues.
func TestDispatchHandlerFailureNoRetry(t *testing.T) {
	calls := 0
	w, logs, rec := newTestWorker(t, WithRetryCount(0), WithRetryPolicy(retry.PolicyFunc(func(_ *wcontext.Context, _ *event.Event, _ error) retry.Decision {
		return retry.Decision{Retry: false, Nack: true}
	})))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		calls++
		return nil, errors.New("boom")
	})

	requeue := w.dispatch("t", rawMsg("t", "L1", map[string]string{"driver": "amqp"}))

	if calls != 1 {
		t.Errorf("expected exactly one handler invocation, got %d", calls)
	}
	if !requeue {
		t.Error("expected requeue=true for amqp driver")
	}
	if len(logs.calls) != 1 || logs.calls[0] != (statusCall{"L1", "FAILED", "boom"}) {
		t.Errorf("unexpected status calls: %+v", logs.calls)
	}
	if rec.errs != 1 || rec.lastErrErr == nil || rec.lastErrErr.Error() != "boom" {
		t.Errorf("expected one OnError(boom), got %d (%v)", rec.errs, rec.lastErrErr)
	}
}

// Scenario 5: same as 2 but a non-amqp driver suppresses requeue.
func TestDispatchNonAmqpSuppressesRequeue(t *testing.T) {
	w, _, _ := newTestWorker(t, WithRetryCount(0), WithRetryPolicy(retry.PolicyFunc(func(_ *wcontext.Context, _ *event.Event, _ error) retry.Decision {
		return retry.Decision{Retry: true, Nack: false}
	})))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		return nil, errors.New("boom")
	})

	requeue := w.dispatch("t", rawMsg("t", "L1", map[string]string{"driver": "kafka"}))

	if requeue {
		t.Error("expected requeue=false for a non-amqp driver even though the decision requeues")
	}
}

// Scenario 3: retry_count=2, success on the third attempt.
func TestDispatchRetriesThenSucceeds(t *testing.T) {
	calls := 0
	policyCalled := false
	w, logs, rec := newTestWorker(t, WithRetryCount(2), WithRetryPolicy(retry.PolicyFunc(func(_ *wcontext.Context, _ *event.Event, _ error) retry.Decision {
		policyCalled = true
		return retry.Default()
	})))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return nil, nil
	})

	requeue := w.dispatch("t", rawMsg("t", "L1", nil))

	if calls != 3 {
		t.Errorf("expected exactly 3 handler calls, got %d", calls)
	}
	if requeue {
		t.Error("expected no requeue on eventual success")
	}
	if policyCalled {
		t.Error("retry policy should not be consulted when a later attempt succeeds")
	}
	if len(logs.calls) != 1 || logs.calls[0].status != "SUCCESS" {
		t.Errorf("unexpected status calls: %+v", logs.calls)
	}
	if rec.finishes != 1 || rec.lastFinishErr != nil {
		t.Errorf("expected nil-error finish, got %v", rec.lastFinishErr)
	}
}

// Scenario 4: decode failure.
func TestDispatchDecodeFailure(t *testing.T) {
	w, logs, rec := newTestWorker(t)
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		t.Fatal("handler must not be invoked on decode failure")
		return nil, nil
	})

	msg := event.RawMessage{Topic: "t", Payload: nil, Metadata: map[string]string{"log_id": "L3"}}
	requeue := w.dispatch("t", msg)

	if requeue {
		t.Error("expected default NoRetry policy to nack without requeue for a non-amqp driver")
	}
	if len(logs.calls) != 1 || logs.calls[0].logID != "L3" || logs.calls[0].status != "FAILED" {
		t.Errorf("unexpected status calls: %+v", logs.calls)
	}
	if rec.errs != 1 || !rec.lastErrEvtNil {
		t.Errorf("expected OnError with a nil event, got errs=%d nilEvt=%v", rec.errs, rec.lastErrEvtNil)
	}
	if rec.starts != 0 {
		t.Error("OnMessageStart must not fire when decode fails")
	}
}

func TestDispatchNoHandlerFound(t *testing.T) {
	w, logs, rec := newTestWorker(t)
	// no HandleTopic/HandleType registered at all

	requeue := w.dispatch("unregistered", rawMsg("unregistered", "L5", nil))

	if requeue {
		t.Error("expected no requeue when no handler matches")
	}
	if len(logs.calls) != 1 || logs.calls[0] != (statusCall{"L5", "SUCCESS", ""}) {
		t.Errorf("expected a SUCCESS status update even with no handler, got %+v", logs.calls)
	}
	if rec.finishes != 1 || rec.lastFinishErr != nil {
		t.Error("expected MessageFinish(nil) when no handler matches")
	}
	if rec.errs != 0 {
		t.Error("OnError must not fire when no handler matches")
	}
}

// Topic handler takes priority over a type handler for the same message
// (spec.md §9, Open Question 2).
func TestDispatchTopicHandlerWinsOverType(t *testing.T) {
	w, _, _ := newTestWorker(t)
	topicCalled, typeCalled := false, false
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		topicCalled = true
		return nil, nil
	})
	w.HandleType("push", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		typeCalled = true
		return nil, nil
	})

	// codec leaves Type empty here since nothing in the payload/metadata
	// names it; set it via metadata to exercise the type path meaningfully.
	w.dispatch("t", rawMsg("t", "L1", map[string]string{"event": "push"}))

	if !topicCalled || typeCalled {
		t.Errorf("expected topic handler to win: topic=%v type=%v", topicCalled, typeCalled)
	}
}

func TestMiddlewareOrdering(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx *wcontext.Context, evt *event.Event) (any, error) {
				order = append(order, name+":in")
				v, err := next(ctx, evt)
				order = append(order, name+":out")
				return v, err
			}
		}
	}
	w, _, _ := newTestWorker(t, WithMiddleware(mw("M1"), mw("M2"), mw("M3")))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		order = append(order, "H")
		return nil, nil
	})

	w.dispatch("t", rawMsg("t", "", nil))

	want := []string{"M1:in", "M2:in", "M3:in", "H", "M3:out", "M2:out", "M1:out"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestConcurrencyBound(t *testing.T) {
	const concurrency = 2
	var mu int32
	inflight := 0
	maxInflight := 0
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	w, _, _ := newTestWorker(t, WithConcurrency(concurrency), WithRetryPolicy(retry.NoRetry{}))
	w.HandleTopic("t", "drv", func(_ *wcontext.Context, _ *event.Event) (any, error) {
		_ = mu
		inflight++
		if inflight > maxInflight {
			maxInflight = inflight
		}
		started <- struct{}{}
		<-release
		inflight--
		return nil, nil
	})

	const total = 5
	done := make(chan struct{}, total)
	for i := 0; i < total; i++ {
		go func() {
			w.dispatch("t", rawMsg("t", "", nil))
			done <- struct{}{}
		}()
	}

	for i := 0; i < concurrency; i++ {
		<-started
	}
	close(release)
	for i := 0; i < total; i++ {
		<-done
	}

	if maxInflight > concurrency {
		t.Errorf("observed %d concurrent handlers, want <= %d", maxInflight, concurrency)
	}
}
