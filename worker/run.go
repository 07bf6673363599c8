package worker

import (
	"context"
	"fmt"

	"github.com/relaymesh/githook-worker/controlplane"
	"github.com/relaymesh/githook-worker/subscriber"
	"github.com/relaymesh/githook-worker/wcontext"
)

// Run resolves a root context from ctx (background, with no cancellation,
// when nil), runs the rule-binding prologue, constructs subscribers — a
// single injected one, or one per distinct driver id grouped from the
// topic registry — validates the configured topic set against
// control-plane rules unless disabled, and fans every (subscriber, topic)
// pair out onto its own goroutine. It blocks until every task returns; when
// ctx is canceled or a task fails, every subscriber is closed so the
// remaining tasks return. The first observed task error is returned.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w.ensureControlPlane()

	tenantID := controlplane.ResolveTenantID(w.tenantID)
	w.root = wcontext.New(ctx, tenantID)

	w.listeners.Start(w.root)
	defer w.listeners.Exit(w.root)

	if err := w.runRulePrologue(); err != nil {
		return err
	}

	if len(w.topicOrder) == 0 {
		return fmt.Errorf("worker: at least one topic is required")
	}

	var tasks []fanoutTask
	var closers []subscriber.Subscriber

	if w.subscriber != nil {
		if w.validateTopics {
			if err := w.validateTopicsSingle(); err != nil {
				return err
			}
		}
		closers = []subscriber.Subscriber{w.subscriber}
		for _, topic := range w.topicOrder {
			tasks = append(tasks, w.newTask(w.subscriber, topic))
		}
	} else {
		topicsByDriver, err := w.groupTopicsByDriver()
		if err != nil {
			return err
		}
		if err := w.buildDriverSubscribers(topicsByDriver); err != nil {
			return err
		}
		if w.validateTopics {
			if err := w.validateTopicsPerDriver(topicsByDriver); err != nil {
				return err
			}
		}
		for driverID, topics := range topicsByDriver {
			sub := w.driverSubs[driverID]
			closers = append(closers, sub)
			for _, topic := range topics {
				tasks = append(tasks, w.newTask(sub, topic))
			}
		}
	}

	return w.runFanout(ctx, tasks, closers)
}

// ensureControlPlane lazily builds the default control-plane-backed
// RuleLister/DriverLister/EventLogReporter for any of the three not already
// overridden via WithRules/WithDrivers/WithEventLogs.
func (w *Worker) ensureControlPlane() {
	if w.rules != nil && w.drivers != nil && w.eventLogs != nil {
		return
	}
	opts := controlplane.APIClientOptions{
		BaseURL:      w.endpoint,
		APIKey:       w.apiKey,
		OAuth2Config: w.oauth2Config,
		TenantID:     w.tenantID,
	}
	client := controlplane.NewClient(opts, controlplane.NewTokenInjector())
	if w.rules == nil {
		w.rules = controlplane.NewRulesClient(client)
	}
	if w.drivers == nil {
		w.drivers = controlplane.NewDriversClient(client)
	}
	if w.eventLogs == nil {
		w.eventLogs = controlplane.NewEventLogsClient(client)
	}
}

func (w *Worker) runRulePrologue() error {
	for _, ruleID := range w.ruleOrder {
		handler := w.ruleHandlers[ruleID]
		rule, err := w.rules.GetRule(w.root, ruleID)
		if err != nil {
			return fmt.Errorf("worker: fetching rule %s: %w", ruleID, err)
		}
		if len(rule.Emit) == 0 || rule.Emit[0] == "" {
			return fmt.Errorf("worker: rule %s has no emit topic", ruleID)
		}
		if rule.DriverID == "" {
			return fmt.Errorf("worker: rule %s has no driver id", ruleID)
		}
		topic := rule.Emit[0]
		if _, exists := w.topicHandler[topic]; exists {
			w.logger.Warn("worker: rule handler overrides existing topic binding",
				"topic", topic, "rule_id", ruleID)
		}
		w.topicHandler[topic] = handler
		w.topicDriver[topic] = rule.DriverID
		w.rememberTopic(topic)
	}
	return nil
}

func (w *Worker) groupTopicsByDriver() (map[string][]string, error) {
	grouped := make(map[string][]string)
	for _, topic := range w.topicOrder {
		driverID := w.topicDriver[topic]
		if driverID == "" {
			return nil, fmt.Errorf("worker: topic %s has no driver id and no default driver is configured", topic)
		}
		grouped[driverID] = append(grouped[driverID], topic)
	}
	return grouped, nil
}

func (w *Worker) buildDriverSubscribers(topicsByDriver map[string][]string) error {
	for driverID := range topicsByDriver {
		if _, ok := w.driverSubs[driverID]; ok {
			continue
		}
		rec, found, err := w.driverByID(driverID)
		if err != nil {
			return fmt.Errorf("worker: looking up driver %s: %w", driverID, err)
		}
		if !found {
			return fmt.Errorf("worker: unknown driver %s", driverID)
		}
		if !rec.Enabled {
			return fmt.Errorf("worker: driver %s is disabled", driverID)
		}
		cfg, err := subscriber.FromDriverJSON(rec.Name, rec.ConfigJSON)
		if err != nil {
			return fmt.Errorf("worker: driver %s config: %w", driverID, err)
		}
		sub, err := subscriber.Build(cfg)
		if err != nil {
			return fmt.Errorf("worker: building subscriber for driver %s: %w", driverID, err)
		}
		w.driverSubs[driverID] = sub
	}
	return nil
}

func (w *Worker) driverByID(id string) (controlplane.DriverRecord, bool, error) {
	drivers, err := w.drivers.ListDrivers(w.root)
	if err != nil {
		return controlplane.DriverRecord{}, false, err
	}
	for _, d := range drivers {
		if d.ID == id {
			return d, true, nil
		}
	}
	return controlplane.DriverRecord{}, false, nil
}

func (w *Worker) validateTopicsSingle() error {
	rules, err := w.rules.ListRules(w.root)
	if err != nil {
		return fmt.Errorf("worker: listing rules for topic validation: %w", err)
	}
	allowed := make(map[string]struct{})
	for _, r := range rules {
		for _, t := range r.Emit {
			allowed[t] = struct{}{}
		}
	}
	for _, topic := range w.topicOrder {
		if _, ok := allowed[topic]; !ok {
			return fmt.Errorf("worker: topic %s not configured", topic)
		}
	}
	return nil
}

func (w *Worker) validateTopicsPerDriver(topicsByDriver map[string][]string) error {
	rules, err := w.rules.ListRules(w.root)
	if err != nil {
		return fmt.Errorf("worker: listing rules for topic validation: %w", err)
	}
	allowed := make(map[string]map[string]struct{})
	for _, r := range rules {
		set := allowed[r.DriverID]
		if set == nil {
			set = make(map[string]struct{})
			allowed[r.DriverID] = set
		}
		for _, t := range r.Emit {
			set[t] = struct{}{}
		}
	}
	for driverID, topics := range topicsByDriver {
		set := allowed[driverID]
		for _, topic := range topics {
			if _, ok := set[topic]; !ok {
				return fmt.Errorf("worker: topic %s not configured for driver %s", topic, driverID)
			}
		}
	}
	return nil
}
