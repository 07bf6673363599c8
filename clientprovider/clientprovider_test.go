package clientprovider

import (
	"errors"
	"testing"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/wcontext"
)

type stubClient struct{ name string }

func TestFunc(t *testing.T) {
	t.Run("adapts a plain function into a Provider", func(t *testing.T) {
		var p Provider = Func(func(ctx *wcontext.Context, evt *event.Event) (any, error) {
			return &stubClient{name: evt.Provider}, nil
		})

		evt := &event.Event{Provider: "github"}
		got, err := p.Client(wcontext.New(nil, "tenant"), evt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sc, ok := got.(*stubClient)
		if !ok || sc.name != "github" {
			t.Errorf("unexpected client: %#v", got)
		}
	})

	t.Run("propagates the function's error", func(t *testing.T) {
		wantErr := errors.New("no installation token")
		p := Func(func(ctx *wcontext.Context, evt *event.Event) (any, error) {
			return nil, wantErr
		})

		_, err := p.Client(wcontext.New(nil, "tenant"), &event.Event{})
		if err != wantErr {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
	})
}
