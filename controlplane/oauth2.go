package controlplane

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Config describes a client-credentials grant. Most fields beyond
// TokenURL/ClientID/ClientSecret/Scopes/Audience exist for parity with the
// ported configuration shape (issuer/jwks/required-claims are consumed by
// the inbound-auth surface this worker does not implement — see the
// out-of-scope list in SPEC_FULL.md §1) and are carried through unused by
// TokenInjector.
type OAuth2Config struct {
	Enabled         bool
	Issuer          string
	Audience        string
	RequiredScopes  []string
	RequiredRoles   []string
	RequiredGroups  []string
	Mode            string
	ClientID        string
	ClientSecret    string
	Scopes          []string
	RedirectURL     string
	AuthorizeURL    string
	TokenURL        string
	JWKSURL         string
}

const (
	envOAuth2TokenURL     = "GITHOOK_OAUTH2_TOKEN_URL"
	envOAuth2ClientID     = "GITHOOK_OAUTH2_CLIENT_ID"
	envOAuth2ClientSecret = "GITHOOK_OAUTH2_CLIENT_SECRET"
	envOAuth2Scopes       = "GITHOOK_OAUTH2_SCOPES"
	envOAuth2Audience     = "GITHOOK_OAUTH2_AUDIENCE"
)

// ResolveOAuth2Config returns explicit unchanged, or builds a config from
// GITHOOK_OAUTH2_* environment variables when explicit is nil and a token
// URL is set in the environment. It returns nil when neither source yields
// a usable config.
func ResolveOAuth2Config(explicit *OAuth2Config) *OAuth2Config {
	if explicit != nil {
		return explicit
	}
	tokenURL := envValue(envOAuth2TokenURL)
	if tokenURL == "" {
		return nil
	}
	return &OAuth2Config{
		Enabled:      true,
		TokenURL:     tokenURL,
		ClientID:     envValue(envOAuth2ClientID),
		ClientSecret: envValue(envOAuth2ClientSecret),
		Scopes:       splitCSV(envValue(envOAuth2Scopes)),
		Audience:     envValue(envOAuth2Audience),
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type tokenCacheEntry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenInjector resolves and caches client-credentials access tokens. The
// cache lives on the injector instance (not a package-level global), so a
// process hosting more than one worker does not share state across them
// unless deliberately configured to via WithRedisTokenCache.
type TokenInjector struct {
	mu    sync.Mutex
	cache map[string]tokenCacheEntry

	redis       *redis.Client
	redisPrefix string
}

// NewTokenInjector builds an instance-scoped token injector.
func NewTokenInjector() *TokenInjector {
	return &TokenInjector{cache: make(map[string]tokenCacheEntry)}
}

// WithRedisTokenCache backs the injector's cache with Redis (in addition to
// its in-memory map) so multiple worker processes share acquired tokens,
// grounded in the teacher's connection.go use of redis/go-redis for shared
// runtime state.
func (t *TokenInjector) WithRedisTokenCache(client *redis.Client, keyPrefix string) *TokenInjector {
	t.redis = client
	t.redisPrefix = keyPrefix
	return t
}

// Token returns a bearer token for cfg, using a cached value when one is
// present and not within 30s of expiry. It returns "" (not an error) when
// cfg is nil, disabled, or missing required fields — mirroring the
// original's "no usable config means no auth header" behavior.
func (t *TokenInjector) Token(ctx context.Context, cfg *OAuth2Config) (string, error) {
	if cfg == nil || !cfg.Enabled {
		return "", nil
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if tokenURL == "" || clientID == "" || clientSecret == "" {
		return "", nil
	}

	key := buildCacheKey(cfg)
	now := time.Now()

	if entry, ok := t.readCache(ctx, key); ok && entry.Token != "" && entry.ExpiresAt.After(now.Add(30*time.Second)) {
		return entry.Token, nil
	}

	ccCfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       cfg.Scopes,
	}
	if cfg.Audience != "" {
		ccCfg.EndpointParams = map[string][]string{"audience": {cfg.Audience}}
	}

	tok, err := ccCfg.Token(ctx)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", nil
	}

	entry := tokenCacheEntry{Token: tok.AccessToken, ExpiresAt: tok.Expiry}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = now.Add(30 * time.Minute)
	}
	t.writeCache(ctx, key, entry)
	return entry.Token, nil
}

func buildCacheKey(cfg *OAuth2Config) string {
	return strings.Join([]string{
		strings.TrimSpace(cfg.TokenURL),
		strings.TrimSpace(cfg.ClientID),
		strings.Join(cfg.Scopes, " "),
		strings.TrimSpace(cfg.Audience),
	}, "|")
}

func (t *TokenInjector) readCache(ctx context.Context, key string) (tokenCacheEntry, bool) {
	t.mu.Lock()
	entry, ok := t.cache[key]
	t.mu.Unlock()
	if ok {
		return entry, true
	}

	if t.redis == nil {
		return tokenCacheEntry{}, false
	}
	raw, err := t.redis.Get(ctx, t.redisPrefix+key).Bytes()
	if err != nil {
		return tokenCacheEntry{}, false
	}
	var cached tokenCacheEntry
	if err := json.Unmarshal(raw, &cached); err != nil {
		return tokenCacheEntry{}, false
	}
	return cached, true
}

func (t *TokenInjector) writeCache(ctx context.Context, key string, entry tokenCacheEntry) {
	t.mu.Lock()
	t.cache[key] = entry
	t.mu.Unlock()

	if t.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}
	t.redis.Set(ctx, t.redisPrefix+key, raw, ttl)
}
