package retry

import (
	"errors"
	"testing"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

func TestNoRetry(t *testing.T) {
	t.Run("never retries and always nacks", func(t *testing.T) {
		d := NoRetry{}.OnError(wcontext.New(nil, "tenant"), nil, errors.New("boom"))

		if d.Retry {
			t.Error("expected Retry to be false")
		}
		if !d.Nack {
			t.Error("expected Nack to be true")
		}
	})
}

func TestDecisionRequeue(t *testing.T) {
	cases := []struct {
		name  string
		d     Decision
		want  bool
	}{
		{"neither set", Decision{Retry: false, Nack: false}, false},
		{"retry only", Decision{Retry: true, Nack: false}, true},
		{"nack only", Decision{Retry: false, Nack: true}, true},
		{"both set", Decision{Retry: true, Nack: true}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.Requeue(); got != tc.want {
				t.Errorf("Requeue() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPolicyFunc(t *testing.T) {
	t.Run("adapts a plain function", func(t *testing.T) {
		var gotErr error
		pf := PolicyFunc(func(ctx *wcontext.Context, evt *event.Event, err error) Decision {
			gotErr = err
			return Decision{Retry: true, Nack: false}
		})

		testErr := errors.New("transient")
		d := pf.OnError(wcontext.New(nil, "tenant"), &event.Event{Topic: "t"}, testErr)

		if !d.Retry || d.Nack {
			t.Errorf("unexpected decision: %+v", d)
		}
		if gotErr != testErr {
			t.Error("function was not invoked with the given error")
		}
	})
}

func TestCall(t *testing.T) {
	t.Run("falls back to NoRetry when policy is nil", func(t *testing.T) {
		d := Call(nil, wcontext.New(nil, "tenant"), nil, errors.New("boom"))

		if d.Retry {
			t.Error("expected Retry to be false")
		}
		if !d.Nack {
			t.Error("expected Nack to be true")
		}
	})

	t.Run("delegates to the given policy", func(t *testing.T) {
		called := false
		pf := PolicyFunc(func(ctx *wcontext.Context, evt *event.Event, err error) Decision {
			called = true
			return Decision{Retry: true, Nack: true}
		})

		d := Call(pf, wcontext.New(nil, "tenant"), nil, errors.New("boom"))

		if !called {
			t.Error("expected policy to be invoked")
		}
		if !d.Retry || !d.Nack {
			t.Errorf("unexpected decision: %+v", d)
		}
	})
}
