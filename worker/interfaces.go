package worker

import (
	"time"

	"github.com/relaymesh/githook-worker/controlplane"
	"github.com/relaymesh/githook-worker/wcontext"
)

// RuleLister is the slice of the control-plane RulesService the worker
// consumes: resolving rule-bound handlers and, when topic validation is on,
// listing every rule to compute the allowed topic set. Satisfied by
// *controlplane.RulesClient; tests and integrators may supply any other
// implementation.
type RuleLister interface {
	ListRules(wctx *wcontext.Context) ([]controlplane.RuleRecord, error)
	GetRule(wctx *wcontext.Context, id string) (controlplane.RuleRecord, error)
}

// DriverLister is the slice of the control-plane DriversService the worker
// consumes to resolve a driver id to its name and JSON config before
// building a Subscriber. Satisfied by *controlplane.DriversClient.
type DriverLister interface {
	ListDrivers(wctx *wcontext.Context) ([]controlplane.DriverRecord, error)
}

// EventLogReporter is the slice of the control-plane EventLogsService the
// worker consumes to report per-message outcome. Satisfied by
// *controlplane.EventLogsClient.
type EventLogReporter interface {
	UpdateEventLogStatus(wctx *wcontext.Context, logID, status, errMessage string) error
}

// AuditRecord is one local, append-only record of a dispatch outcome. It
// exists purely for local debugging/offline test runs alongside (not
// instead of) control-plane EventLogs reporting — see AuditStore.
type AuditRecord struct {
	Topic     string
	Provider  string
	Type      string
	LogID     string
	Status    string
	Error     string
	Attempts  int
	Timestamp time.Time
}

// AuditStore persists AuditRecords. It never influences dispatch outcome or
// requeue behavior and is never required for correctness; the bundled
// implementation is auditlog.Store (gorm + SQLite).
type AuditStore interface {
	Record(rec AuditRecord) error
}
