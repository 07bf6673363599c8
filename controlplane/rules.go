package controlplane

import "github.com/relaymesh/githook-worker/wcontext"

// RulesClient is the control-plane RulesService client: list/get routing
// rules that bind an event selector to emitted bus topics and a driver.
type RulesClient struct {
	c *Client
}

// NewRulesClient wraps c for RulesService calls.
func NewRulesClient(c *Client) *RulesClient {
	return &RulesClient{c: c}
}

// ListRules calls cloud.v1.RulesService/ListRules.
func (r *RulesClient) ListRules(wctx *wcontext.Context) ([]RuleRecord, error) {
	resp, err := r.c.postJSON(wctx, "/cloud.v1.RulesService/ListRules", map[string]any{})
	if err != nil {
		return nil, err
	}
	raw := readArray(resp, "rules")
	out := make([]RuleRecord, 0, len(raw))
	for _, rec := range raw {
		out = append(out, decodeRule(rec))
	}
	return out, nil
}

// GetRule calls cloud.v1.RulesService/GetRule.
func (r *RulesClient) GetRule(wctx *wcontext.Context, id string) (RuleRecord, error) {
	resp, err := r.c.postJSON(wctx, "/cloud.v1.RulesService/GetRule", map[string]any{"id": id})
	if err != nil {
		return RuleRecord{}, err
	}
	rule := readObject(resp, "rule")
	if rule == nil {
		rule = resp
	}
	return decodeRule(rule), nil
}

func decodeRule(rec map[string]any) RuleRecord {
	return RuleRecord{
		ID:       readString(rec, "id"),
		When:     readString(rec, "when"),
		Emit:     readStringArray(rec, "emit"),
		DriverID: readString(rec, "driver_id", "driverId"),
	}
}
