package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"fleet-track/ingestion/internal/config"
	"fleet-track/ingestion/internal/store"
)

// Binding ties an API key to the asset it reports for.
type Binding struct {
	AccountID string
	AssetID   string
}

type cacheEntry struct {
	binding   Binding
	expiresAt time.Time
}

type Authenticator struct {
	localCache sync.Map
	redis      *store.RedisStore
	ttl        time.Duration
	staticKeys map[string]Binding
}

func NewAuthenticator(cfg *config.Config, redis *store.RedisStore) *Authenticator {
	// Static keys are "key=account/asset" entries from config.
	staticKeys := make(map[string]Binding, len(cfg.ValidAPIKeys))
	for _, entry := range cfg.ValidAPIKeys {
		key, val, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		if b, ok := parseBinding(val); ok {
			staticKeys[key] = b
		}
	}

	return &Authenticator{
		redis:      redis,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

// Authenticate resolves an API key to its asset binding. Lookup order:
// static config keys, in-memory cache, Redis.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (Binding, bool) {
	if b, ok := a.staticKeys[apiKey]; ok {
		return b, true
	}

	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.binding, true
		}
		a.localCache.Delete(apiKey)
	}

	if a.redis == nil {
		return Binding{}, false
	}
	val, err := a.redis.LookupAPIKey(ctx, apiKey)
	if err != nil || val == "" {
		return Binding{}, false
	}
	b, ok := parseBinding(val)
	if !ok {
		return Binding{}, false
	}

	a.localCache.Store(apiKey, cacheEntry{
		binding:   b,
		expiresAt: time.Now().Add(a.ttl),
	})

	return b, true
}

func parseBinding(s string) (Binding, bool) {
	account, asset, ok := strings.Cut(s, "/")
	if !ok || account == "" || asset == "" {
		return Binding{}, false
	}
	return Binding{AccountID: account, AssetID: asset}, true
}
