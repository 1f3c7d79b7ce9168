package sites

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"geoattend-backend/internal/model"
	"geoattend-backend/internal/store"
)

const cacheKey = "sites"

// Provider is the engine's read-only view of the admin-managed geofence
// sites. Zone membership is re-evaluated on every position update, so
// reads go through a short-lived cache instead of hitting the database
// each time.
type Provider struct {
	store store.Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewProvider creates a site provider with the given cache TTL.
func NewProvider(s store.Store, ttl time.Duration) *Provider {
	return &Provider{
		store: s,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Sites returns the current geofence list, serving from cache when fresh.
func (p *Provider) Sites(ctx context.Context) ([]model.Site, error) {
	if cached, found := p.cache.Get(cacheKey); found {
		return cached.([]model.Site), nil
	}

	sites, err := p.store.Sites(ctx)
	if err != nil {
		return nil, err
	}
	p.cache.Set(cacheKey, sites, p.ttl)
	return sites, nil
}

// Invalidate drops the cached site list. Used after admin edits land.
func (p *Provider) Invalidate() {
	p.cache.Delete(cacheKey)
}
