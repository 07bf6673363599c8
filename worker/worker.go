// Package worker is the dispatch engine: it owns the topic/type/rule
// handler registry, configures per-driver Subscribers from control-plane
// Driver records, and runs the per-message pipeline — decode, client
// attach, middleware, retry, listener notification, status reporting —
// under bounded concurrency.
package worker

import (
	"strings"
	"time"

	"github.com/relaymesh/githook-worker/clientprovider"
	"github.com/relaymesh/githook-worker/codec"
	"github.com/relaymesh/githook-worker/controlplane"
	"github.com/relaymesh/githook-worker/listener"
	"github.com/relaymesh/githook-worker/retry"
	"github.com/relaymesh/githook-worker/subscriber"
	"github.com/relaymesh/githook-worker/wcontext"
	"github.com/relaymesh/githook-worker/wlog"
)

const defaultCloseTimeout = 10 * time.Second

// Worker is the dispatch engine. Build one with New, register handlers with
// HandleTopic/HandleType/HandleRule, then call Run. The registry maps,
// driver-subscriber map, semaphore, and listener list are exclusively
// owned by the Worker; they are mutated only before Run begins and are
// read-only for the remainder of its life.
type Worker struct {
	logger         wlog.Logger
	codec          codec.Codec
	retryPolicy    retry.Policy
	retryCount     int
	concurrency    int
	middleware     []Middleware
	listeners      *listener.Notifier
	hasListener    bool
	clientProvider clientprovider.Provider
	validateTopics bool
	closeTimeout   time.Duration

	endpoint     string
	apiKey       string
	oauth2Config *controlplane.OAuth2Config
	tenantID     string

	defaultDriverID string

	subscriber subscriber.Subscriber

	allowedTopics map[string]struct{}

	topicHandler map[string]Handler
	topicDriver  map[string]string
	topicOrder   []string
	topicSeen    map[string]struct{}

	typeHandler map[string]Handler

	ruleHandlers map[string]Handler
	ruleOrder    []string

	rules     RuleLister
	drivers   DriverLister
	eventLogs EventLogReporter

	auditStore AuditStore

	driverSubs map[string]subscriber.Subscriber

	sem chan struct{}

	root *wcontext.Context
}

// New builds a Worker with opts applied. Concurrency and retry count are
// clamped to their minimums (1 and 0 respectively) after options run, and a
// default LogListener is installed when no listener was configured.
func New(opts ...Option) *Worker {
	w := &Worker{
		logger:         wlog.Noop,
		codec:          codec.DefaultCodec{},
		retryPolicy:    retry.NoRetry{},
		concurrency:    1,
		listeners:      listener.NewNotifier(),
		validateTopics: true,
		closeTimeout:   defaultCloseTimeout,
		allowedTopics:  make(map[string]struct{}),
		topicHandler:   make(map[string]Handler),
		topicDriver:    make(map[string]string),
		topicSeen:      make(map[string]struct{}),
		typeHandler:    make(map[string]Handler),
		ruleHandlers:   make(map[string]Handler),
		driverSubs:     make(map[string]subscriber.Subscriber),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.retryCount < 0 {
		w.retryCount = 0
	}
	if !w.hasListener {
		w.listeners.Add(listener.NewLogListener(w.logger))
	}
	w.sem = make(chan struct{}, w.concurrency)
	return w
}

// HandleTopic registers h for an exact topic match, taking priority over
// any type handler for messages delivered on that topic (spec.md §9, Open
// Question 2). driverID may be empty, in which case the worker's
// default-driver-id option is used. If an allowed-topics set was
// configured (WithTopics) and topic is not in it, the registration is
// logged and dropped.
func (w *Worker) HandleTopic(topic, driverID string, h Handler) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		w.logger.Warn("worker: ignoring handle_topic with empty topic")
		return
	}
	if len(w.allowedTopics) > 0 {
		if _, ok := w.allowedTopics[topic]; !ok {
			w.logger.Warn("worker: topic not in allowed topics, dropping registration", "topic", topic)
			return
		}
	}
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		driverID = w.defaultDriverID
	}
	w.topicHandler[topic] = h
	w.topicDriver[topic] = driverID
	w.rememberTopic(topic)
}

// HandleType registers h for a decoded event type, consulted only when no
// topic handler matches the message's topic.
func (w *Worker) HandleType(eventType string, h Handler) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		w.logger.Warn("worker: ignoring handle_type with empty type")
		return
	}
	w.typeHandler[eventType] = h
}

// HandleRule queues h to be bound during the Run prologue to the topic and
// driver resolved from the control-plane rule ruleID. If that topic already
// has a binding (from HandleTopic or an earlier rule), the rule's binding
// wins and a warning is logged (spec.md §9).
func (w *Worker) HandleRule(ruleID string, h Handler) {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		w.logger.Warn("worker: ignoring handle_rule with empty rule id")
		return
	}
	if _, exists := w.ruleHandlers[ruleID]; !exists {
		w.ruleOrder = append(w.ruleOrder, ruleID)
	}
	w.ruleHandlers[ruleID] = h
}

func (w *Worker) rememberTopic(topic string) {
	if _, ok := w.topicSeen[topic]; ok {
		return
	}
	w.topicSeen[topic] = struct{}{}
	w.topicOrder = append(w.topicOrder, topic)
}
