package controlplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaymesh/githook-worker/wcontext"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(APIClientOptions{BaseURL: srv.URL, APIKey: "test-key"}, nil)
	return srv, client
}

func TestRulesClientListRules(t *testing.T) {
	var gotPath string
	var gotAPIKey string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rules": []map[string]any{
				{"id": "r1", "when": "push", "emit": []string{"topic-a", "topic-b"}, "driver_id": "d1"},
				{"id": "r2", "when": "pr", "emit": []string{"topic-c"}, "driverId": "d2"},
			},
		})
	})

	rules, err := NewRulesClient(client).ListRules(wcontext.New(nil, "tenant-a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/cloud.v1.RulesService/ListRules" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("expected X-API-Key header to be set, got %q", gotAPIKey)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "r1" || rules[0].DriverID != "d1" || len(rules[0].Emit) != 2 {
		t.Errorf("unexpected rule[0]: %+v", rules[0])
	}
	if rules[1].DriverID != "d2" {
		t.Errorf("expected camelCase driverId to be tolerated, got %+v", rules[1])
	}
}

func TestRulesClientGetRule(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["id"] != "r1" {
			t.Errorf("expected request body id=r1, got %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rule": map[string]any{"id": "r1", "emit": []string{"topic-a"}, "driver_id": "d1"},
		})
	})

	rule, err := NewRulesClient(client).GetRule(wcontext.New(nil, "tenant-a"), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ID != "r1" || rule.DriverID != "d1" {
		t.Errorf("unexpected rule: %+v", rule)
	}
}

func TestDriversClientListAndGetByID(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"drivers": []map[string]any{
				{"id": "d1", "name": "amqp", "config_json": `{"url":"amqp://x"}`, "enabled": true},
				{"id": "d2", "name": "kafka", "configJson": `{"brokers":["b1"]}`, "enabled": false},
			},
		})
	})

	dc := NewDriversClient(client)
	all, err := dc.ListDrivers(wcontext.New(nil, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(all))
	}
	if all[1].ConfigJSON != `{"brokers":["b1"]}` {
		t.Errorf("expected camelCase configJson to be tolerated, got %+v", all[1])
	}

	found, ok, err := dc.GetDriver(wcontext.New(nil, ""), "d2")
	if err != nil || !ok {
		t.Fatalf("expected to find driver d2, err=%v ok=%v", err, ok)
	}
	if found.Name != "kafka" || found.Enabled {
		t.Errorf("unexpected driver: %+v", found)
	}

	_, ok, err = dc.GetDriver(wcontext.New(nil, ""), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for an unknown driver id")
	}
}

func TestEventLogsClientUpdateStatus(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	err := NewEventLogsClient(client).UpdateEventLogStatus(wcontext.New(nil, ""), "log-1", "FAILED", "boom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["log_id"] != "log-1" || gotBody["status"] != "FAILED" || gotBody["error_message"] != "boom" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestClientPropagatesNonSuccessStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server exploded"))
	})

	_, err := NewRulesClient(client).ListRules(wcontext.New(nil, ""))
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
