package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relaymesh/githook-worker/wcontext"
)

// Client is the shared low-level HTTP layer every control-plane service
// client wraps. It uses the standard net/http client for outbound calls —
// none of the example repos reach for an HTTP client library for simple
// first-party JSON POSTs, so this is one of the few stdlib-only pieces of
// the module (see DESIGN.md).
type Client struct {
	opts       APIClientOptions
	httpClient *http.Client
	tokens     *TokenInjector
}

// NewClient builds a Client. tokens may be nil; a nil injector means no
// OAuth2 bearer token is ever attached (only X-API-Key, if configured).
func NewClient(opts APIClientOptions, tokens *TokenInjector) *Client {
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.timeoutOrDefault()},
		tokens:     tokens,
	}
}

func (c *Client) postJSON(wctx *wcontext.Context, path string, body map[string]any) (map[string]any, error) {
	base := ResolveEndpoint(c.opts.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("controlplane: base url is required")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if wctx != nil {
		ctx = wctx.Context()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.applyAuthHeaders(req); err != nil {
		return nil, err
	}
	if tenantID := resolveRequestTenant(wctx, c.opts.TenantID); tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("controlplane: request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("controlplane: reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("controlplane: request failed (%d): %s", resp.StatusCode, string(payload))
	}

	if len(payload) == 0 {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return map[string]any{}, nil
	}
	return decoded, nil
}

func (c *Client) applyAuthHeaders(req *http.Request) error {
	if apiKey := ResolveAPIKey(c.opts.APIKey); apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
		return nil
	}
	if c.tokens == nil {
		return nil
	}
	cfg := ResolveOAuth2Config(c.opts.OAuth2Config)
	if cfg == nil {
		return nil
	}
	token, err := c.tokens.Token(req.Context(), cfg)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func resolveRequestTenant(wctx *wcontext.Context, fallback string) string {
	if wctx != nil && wctx.TenantID != "" {
		return wctx.TenantID
	}
	return fallback
}

func readString(record map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := record[k].(string); ok {
			return v
		}
	}
	return ""
}

func readStringArray(record map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := record[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	}
	return nil
}

func readBool(record map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := record[k].(bool); ok {
			return v
		}
	}
	return false
}

func readArray(record map[string]any, keys ...string) []map[string]any {
	for _, k := range keys {
		v, ok := record[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func readObject(record map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := record[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func parseDatetime(record map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		value, ok := record[k]
		if !ok {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return &t
			}
			continue
		}
		if obj, ok := value.(map[string]any); ok {
			if secs, ok := obj["seconds"].(float64); ok {
				t := time.Unix(int64(secs), 0).UTC()
				return &t
			}
		}
	}
	return nil
}
