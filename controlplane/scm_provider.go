package controlplane

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymesh/githook-worker/event"
	"github.com/relaymesh/githook-worker/metadata"
	"github.com/relaymesh/githook-worker/wcontext"
)

// ControlPlaneSCMProvider is the default clientprovider.Provider: it calls
// SCMService.GetSCMClient for the event's provider/installation and caches
// the result (in memory, or in Redis when WithRedisCache is used) keyed by
// provider|installation_id|provider_instance_key, refreshing when
// ExpiresAt is within 30s. Grounded in original_source's
// scm_client_provider.py caching behavior.
type ControlPlaneSCMProvider struct {
	scm *SCMClient

	mu    sync.Mutex
	cache map[string]SCMClientRecord

	redis       *redis.Client
	redisPrefix string

	// NewClient builds the opaque client attached to event.Event.Client from
	// a resolved SCMClientRecord. The concrete SCM HTTP clients (GitHub,
	// GitLab, Bitbucket) are out of scope (spec.md §1); callers supply this
	// to turn the record into whichever client their handlers expect. A nil
	// NewClient attaches the SCMClientRecord itself.
	NewClient func(SCMClientRecord) (any, error)
}

// NewControlPlaneSCMProvider builds a caching SCM client provider over scm.
func NewControlPlaneSCMProvider(scm *SCMClient) *ControlPlaneSCMProvider {
	return &ControlPlaneSCMProvider{scm: scm, cache: make(map[string]SCMClientRecord)}
}

// WithRedisCache backs the provider's cache with Redis in addition to its
// in-memory map, mirroring TokenInjector.WithRedisTokenCache.
func (p *ControlPlaneSCMProvider) WithRedisCache(client *redis.Client, keyPrefix string) *ControlPlaneSCMProvider {
	p.redis = client
	p.redisPrefix = keyPrefix
	return p
}

// Client implements clientprovider.Provider.
func (p *ControlPlaneSCMProvider) Client(wctx *wcontext.Context, evt *event.Event) (any, error) {
	provider := evt.Provider
	installationID := evt.InstallationID
	providerInstanceKey := evt.Metadata[metadata.KeyProviderInstanceKey]

	key := strings.Join([]string{provider, installationID, providerInstanceKey}, "|")
	ctx := wctx.Context()

	if rec, ok := p.readCache(ctx, key); ok && !expiringSoon(rec.ExpiresAt) {
		return p.build(rec)
	}

	rec, err := p.scm.GetSCMClient(wctx, provider, installationID, providerInstanceKey)
	if err != nil {
		return nil, err
	}
	p.writeCache(ctx, key, rec)
	return p.build(rec)
}

func (p *ControlPlaneSCMProvider) build(rec SCMClientRecord) (any, error) {
	if p.NewClient == nil {
		return rec, nil
	}
	return p.NewClient(rec)
}

func expiringSoon(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return expiresAt.Before(time.Now().Add(30 * time.Second))
}

func (p *ControlPlaneSCMProvider) readCache(ctx context.Context, key string) (SCMClientRecord, bool) {
	p.mu.Lock()
	rec, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return rec, true
	}

	if p.redis == nil {
		return SCMClientRecord{}, false
	}
	raw, err := p.redis.Get(ctx, p.redisPrefix+key).Bytes()
	if err != nil {
		return SCMClientRecord{}, false
	}
	var cached SCMClientRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return SCMClientRecord{}, false
	}
	return cached, true
}

func (p *ControlPlaneSCMProvider) writeCache(ctx context.Context, key string, rec SCMClientRecord) {
	p.mu.Lock()
	p.cache[key] = rec
	p.mu.Unlock()

	if p.redis == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	ttl := time.Hour
	if rec.ExpiresAt != nil {
		if d := time.Until(*rec.ExpiresAt); d > 0 {
			ttl = d
		}
	}
	p.redis.Set(ctx, p.redisPrefix+key, raw, ttl)
}
