package controlplane

import (
	"os"
	"strings"
)

const (
	envEndpoint    = "GITHOOK_ENDPOINT"
	envAPIBaseURL  = "GITHOOK_API_BASE_URL"
	envAPIKey      = "GITHOOK_API_KEY"
	envTenantID    = "GITHOOK_TENANT_ID"
	defaultEndpoint = "http://localhost:8080"
)

// ResolveEndpoint returns explicit, trimmed of a trailing slash, falling
// back to GITHOOK_ENDPOINT, then GITHOOK_API_BASE_URL, then a localhost
// default.
func ResolveEndpoint(explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return strings.TrimRight(trimmed, "/")
	}
	if v := envValue(envEndpoint); v != "" {
		return v
	}
	if v := envValue(envAPIBaseURL); v != "" {
		return v
	}
	return defaultEndpoint
}

// ResolveAPIKey returns explicit, falling back to GITHOOK_API_KEY.
func ResolveAPIKey(explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	return envValue(envAPIKey)
}

// ResolveTenantID returns explicit, falling back to GITHOOK_TENANT_ID.
func ResolveTenantID(explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	return envValue(envTenantID)
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
