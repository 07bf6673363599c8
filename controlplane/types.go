// Package controlplane is the HTTP client for the control-plane services a
// worker consults: rules, drivers, event log status, and SCM client
// issuance. It also hosts the default OAuth2 client-credentials auth
// injector and a caching SCM-backed clientprovider.Provider. It has no
// installations client; InstallationRecord is a data type only.
package controlplane

import "time"

// RuleRecord is a single routing rule: events matching the When selector
// are emitted to the Emit topics on the bus driver DriverID.
type RuleRecord struct {
	ID       string
	When     string
	Emit     []string
	DriverID string
}

// DriverRecord is a configured bus driver: its name selects the subscriber
// implementation, ConfigJSON is driver-specific JSON (see the subscriber
// package's Config field readers), Enabled gates whether the worker should
// subscribe to it at all.
type DriverRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Enabled    bool
}

// InstallationRecord is a provider account's installation and the
// credentials the control plane holds for it.
type InstallationRecord struct {
	Provider            string
	AccountID           string
	AccountName         string
	InstallationID      string
	ProviderInstanceKey string
	EnterpriseID        string
	EnterpriseSlug      string
	EnterpriseName      string
	AccessToken         string
	RefreshToken        string
	ExpiresAt           *time.Time
}

// SCMClientRecord is the short-lived credential set the control plane
// issues for building a concrete SCM API client.
type SCMClientRecord struct {
	Provider            string
	APIBaseURL          string
	AccessToken         string
	ProviderInstanceKey string
	ExpiresAt           *time.Time
}

// APIClientOptions configures every control-plane client in this package.
type APIClientOptions struct {
	BaseURL      string
	APIKey       string
	OAuth2Config *OAuth2Config
	TenantID     string
	Timeout      time.Duration
}

func (o APIClientOptions) timeoutOrDefault() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 10 * time.Second
}
