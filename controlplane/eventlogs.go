package controlplane

import "github.com/relaymesh/githook-worker/wcontext"

// EventLogsClient is the control-plane EventLogsService client: the sole
// consumer of this is the worker's post-dispatch status report.
type EventLogsClient struct {
	c *Client
}

// NewEventLogsClient wraps c for EventLogsService calls.
func NewEventLogsClient(c *Client) *EventLogsClient {
	return &EventLogsClient{c: c}
}

// UpdateEventLogStatus calls cloud.v1.EventLogsService/UpdateEventLogStatus.
// Callers are expected to log and swallow any returned error rather than
// let a status-report failure mask the original dispatch outcome (spec.md
// §7).
func (e *EventLogsClient) UpdateEventLogStatus(wctx *wcontext.Context, logID, status, errMessage string) error {
	_, err := e.c.postJSON(wctx, "/cloud.v1.EventLogsService/UpdateEventLogStatus", map[string]any{
		"log_id":        logID,
		"status":        status,
		"error_message": errMessage,
	})
	return err
}
