package controlplane

import "github.com/relaymesh/githook-worker/wcontext"

// SCMClient is the control-plane SCMService client: it issues short-lived
// credential sets for building a concrete SCM API client. The concrete
// GitHub/GitLab/Bitbucket clients themselves are out of scope (spec.md §1);
// this is the in-scope issuance call they would be built from.
type SCMClient struct {
	c *Client
}

// NewSCMClient wraps c for SCMService calls.
func NewSCMClient(c *Client) *SCMClient {
	return &SCMClient{c: c}
}

// GetSCMClient calls cloud.v1.SCMService/GetSCMClient.
func (s *SCMClient) GetSCMClient(wctx *wcontext.Context, provider, installationID, providerInstanceKey string) (SCMClientRecord, error) {
	resp, err := s.c.postJSON(wctx, "/cloud.v1.SCMService/GetSCMClient", map[string]any{
		"provider":              provider,
		"installation_id":       installationID,
		"provider_instance_key": providerInstanceKey,
	})
	if err != nil {
		return SCMClientRecord{}, err
	}
	rec := readObject(resp, "client")
	if rec == nil {
		rec = resp
	}
	return SCMClientRecord{
		Provider:            readString(rec, "provider"),
		APIBaseURL:          readString(rec, "api_base_url", "apiBaseUrl"),
		AccessToken:         readString(rec, "access_token", "accessToken"),
		ProviderInstanceKey: readString(rec, "provider_instance_key", "providerInstanceKey"),
		ExpiresAt:           parseDatetime(rec, "expires_at", "expiresAt"),
	}, nil
}
