package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaymesh/githook-worker/event"
)

// MessageHandler is invoked once per delivery. A true return asks the
// subscriber to nack/requeue the delivery; the concrete meaning of that is
// driver-specific (for example, AMQP is the only bundled driver that acts
// on it — see metadata.AmqpDriverName).
type MessageHandler func(msg event.RawMessage) bool

// Subscriber is the contract a bus driver implements to feed raw deliveries
// into the dispatch engine. Start blocks until ctx is canceled or the
// underlying client gives up; Close asks it to stop and is safe to call
// more than once.
type Subscriber interface {
	Start(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// Factory builds a Subscriber for one driver from its Config.
type Factory func(cfg Config) (Subscriber, error)

// Registry maps driver names to Factory constructors. The bundled amqp,
// nats, and kafka driver packages each register themselves from an init(),
// the way the teacher's plugin.go registers named plugins into a global
// registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var defaultRegistry = &Registry{factories: make(map[string]Factory)}

// Register adds a Factory under name to the default registry. It panics on
// a duplicate name, since that can only be a programming error (two driver
// packages claiming the same name).
func Register(name string, f Factory) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, exists := defaultRegistry.factories[name]; exists {
		panic(fmt.Sprintf("subscriber: driver %q already registered", name))
	}
	defaultRegistry.factories[name] = f
}

func lookup(name string) (Factory, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	f, ok := defaultRegistry.factories[name]
	return f, ok
}

// Build constructs a Subscriber for cfg. When more than one driver is
// named (via Drivers, optionally combined with Driver), it returns a
// MultiSubscriber fanning the same topic/handler out to each.
func Build(cfg Config) (Subscriber, error) {
	drivers := UniqueStrings(cfg.Drivers)
	if cfg.Driver != "" {
		drivers = UniqueStrings(append(append([]string{}, drivers...), cfg.Driver))
	}
	if len(drivers) == 0 {
		return nil, errRequired("at least one driver")
	}
	if len(drivers) == 1 {
		return buildOne(drivers[0], cfg)
	}

	subs := make([]Subscriber, 0, len(drivers))
	for _, d := range drivers {
		sub, err := buildOne(d, cfg)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return NewMultiSubscriber(subs), nil
}

func buildOne(driver string, cfg Config) (Subscriber, error) {
	f, ok := lookup(driver)
	if !ok {
		return nil, errUnsupportedDriver(driver)
	}
	return f(cfg)
}

// MultiSubscriber fans a single topic/handler pair out to several
// underlying Subscribers, running each on its own goroutine.
type MultiSubscriber struct {
	subs []Subscriber
}

// NewMultiSubscriber wraps subs for concurrent Start/Close.
func NewMultiSubscriber(subs []Subscriber) *MultiSubscriber {
	return &MultiSubscriber{subs: subs}
}

// Start runs every underlying Subscriber concurrently and blocks until all
// of them return. The first non-nil error is returned; the rest are
// discarded, matching the original's fire-and-forget thread-per-driver fan
// out (which had no error channel at all).
func (m *MultiSubscriber) Start(ctx context.Context, topic string, handler MessageHandler) error {
	if len(m.subs) == 0 {
		return errRequired("configured subscribers")
	}
	if handler == nil {
		return errRequired("handler")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(m.subs))
	for i, sub := range m.subs {
		wg.Add(1)
		go func(i int, sub Subscriber) {
			defer wg.Done()
			errs[i] = sub.Start(ctx, topic, handler)
		}(i, sub)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes every underlying Subscriber, collecting the first error but
// always attempting every Close so one stuck driver doesn't block the rest
// from shutting down.
func (m *MultiSubscriber) Close() error {
	var first error
	for _, sub := range m.subs {
		if err := sub.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
