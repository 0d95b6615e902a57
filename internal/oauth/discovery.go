package oauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/sync/singleflight"

	pkgoauth "portal/pkg/oauth"
	"portal/pkg/logging"
)

// DefaultDiscoveryTTL is how long a discovery document is reused.
const DefaultDiscoveryTTL = time.Hour

// providerInfo is a loaded discovery document.
type providerInfo struct {
	provider  *oidc.Provider
	metadata  pkgoauth.ProviderMetadata
	fetchedAt time.Time
}

// discoveryCache loads discovery documents, de-duplicating concurrent
// requests for the same issuer.
type discoveryCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*providerInfo
}

func newDiscoveryCache(ttl time.Duration, now func() time.Time) *discoveryCache {
	return &discoveryCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*providerInfo),
	}
}

func (d *discoveryCache) get(ctx context.Context, issuer string, httpClient *http.Client) (*providerInfo, error) {
	d.mu.Lock()
	if entry, ok := d.entries[issuer]; ok && d.now().Sub(entry.fetchedAt) < d.ttl {
		d.mu.Unlock()
		return entry, nil
	}
	d.mu.Unlock()

	v, err, shared := d.group.Do(issuer, func() (interface{}, error) {
		logging.Debug("OAuthClient", "Loading discovery document for %s", issuer)

		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
		if err != nil {
			return nil, err
		}

		var metadata pkgoauth.ProviderMetadata
		if err := provider.Claims(&metadata); err != nil {
			return nil, err
		}

		entry := &providerInfo{
			provider:  provider,
			metadata:  metadata,
			fetchedAt: d.now(),
		}
		d.mu.Lock()
		d.entries[issuer] = entry
		d.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("OAuthClient", "Shared in-flight discovery for %s", issuer)
	}
	return v.(*providerInfo), nil
}

func (d *discoveryCache) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*providerInfo)
}
