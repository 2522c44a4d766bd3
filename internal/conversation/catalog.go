package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carbonledger/analyst/internal/emissions"
	"github.com/carbonledger/analyst/internal/hermes"
)

// CatalogCache keeps each organization's taxonomy for a TTL. Concurrent misses
// for the same organization share one load.
type CatalogCache struct {
	source CatalogSource
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cachedCatalog
}

type cachedCatalog struct {
	catalog emissions.Catalog
	loaded  time.Time
}

func NewCatalogCache(source CatalogSource, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	return &CatalogCache{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cachedCatalog),
	}
}

// catalogLoadTimeout bounds a shared load, which outlives any single caller.
const catalogLoadTimeout = 10 * time.Second

// Get returns the organization's catalog. A shared load runs detached from
// the callers' contexts, so one caller giving up only abandons its own wait.
func (c *CatalogCache) Get(ctx context.Context, organizationID string) (emissions.Catalog, error) {
	c.mu.RLock()
	e, ok := c.entries[organizationID]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.loaded) < c.ttl {
		return e.catalog, nil
	}

	ch := c.group.DoChan(organizationID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogLoadTimeout)
		defer cancel()

		cat, err := c.source.GetCatalog(loadCtx, organizationID)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		c.mu.Lock()
		c.entries[organizationID] = cachedCatalog{catalog: cat, loaded: c.now()}
		c.mu.Unlock()
		return cat, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return emissions.Catalog{}, r.Err
		}
		return r.Val.(emissions.Catalog), nil
	case <-ctx.Done():
		return emissions.Catalog{}, ctx.Err()
	}
}

// Invalidate drops the cached catalog of one organization, or of all of them
// when organizationID is empty.
func (c *CatalogCache) Invalidate(organizationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if organizationID == "" {
		c.entries = make(map[string]cachedCatalog)
		return
	}
	delete(c.entries, organizationID)
}

// HandleTaxonomyUpdated is the NATS handler for emissions.taxonomy.updated.
func (c *CatalogCache) HandleTaxonomyUpdated(subject string, data []byte) {
	var evt hermes.TaxonomyUpdated
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to parse taxonomy event", "subject", subject, "error", err)
		return
	}
	c.Invalidate(evt.OrganizationID)
	c.logger.Info("catalog invalidated", "organization_id", evt.OrganizationID)
}
