// Package cache decorates stores with an in-process expiring LRU.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// Ensure IdentityMappingCache implements the interface.
var _ driven.IdentityMappingStore = (*IdentityMappingCache)(nil)

const (
	DefaultSize = 1024
	DefaultTTL  = 5 * time.Minute
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountlink_mapping_cache_lookups_total",
		Help: "Identity mapping lookups by subject, by cache result",
	},
	[]string{"result"},
)

// IdentityMappingCache caches GetBySubject results in front of another store.
// Writes through the cache evict the subject's entry before and after the
// backing call. A read that overlaps any write is returned but not cached.
// Misses are not cached.
//
// Writes made by other processes against a shared backing store are only
// seen once the entry expires.
type IdentityMappingCache struct {
	next driven.IdentityMappingStore
	lru  *expirable.LRU[string, domain.IdentityMapping]

	mu       sync.Mutex
	writes   uint64
	inFlight int
}

// NewIdentityMappingCache wraps next. Non-positive size or ttl use the defaults.
func NewIdentityMappingCache(next driven.IdentityMappingStore, size int, ttl time.Duration) *IdentityMappingCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &IdentityMappingCache{
		next: next,
		lru:  expirable.NewLRU[string, domain.IdentityMapping](size, nil, ttl),
	}
}

func (c *IdentityMappingCache) Upsert(ctx context.Context, subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error) {
	c.beginWrite(subjectID)
	defer c.endWrite(subjectID)
	return c.next.Upsert(ctx, subjectID, externalAccountID, now)
}

func (c *IdentityMappingCache) GetBySubject(ctx context.Context, subjectID string) (*domain.IdentityMapping, error) {
	if mapping, ok := c.lru.Get(subjectID); ok {
		lookups.WithLabelValues("hit").Inc()
		return &mapping, nil
	}
	lookups.WithLabelValues("miss").Inc()

	c.mu.Lock()
	seen := c.writes
	c.mu.Unlock()

	mapping, err := c.next.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.inFlight == 0 && c.writes == seen {
		c.lru.Add(subjectID, *mapping)
	}
	c.mu.Unlock()
	return mapping, nil
}

// GetByExternalAccount is not cached.
func (c *IdentityMappingCache) GetByExternalAccount(ctx context.Context, externalAccountID string) (*domain.IdentityMapping, error) {
	return c.next.GetByExternalAccount(ctx, externalAccountID)
}

func (c *IdentityMappingCache) SaveCredentials(ctx context.Context, subjectID string, creds *domain.ProviderCredentials) error {
	c.beginWrite(subjectID)
	defer c.endWrite(subjectID)
	return c.next.SaveCredentials(ctx, subjectID, creds)
}

func (c *IdentityMappingCache) Deactivate(ctx context.Context, subjectID string) error {
	c.beginWrite(subjectID)
	defer c.endWrite(subjectID)
	return c.next.Deactivate(ctx, subjectID)
}

// beginWrite and endWrite bracket a backing write. Both bump the write
// counter so reads that started before either point do not populate the cache.
func (c *IdentityMappingCache) beginWrite(subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.inFlight++
	c.lru.Remove(subjectID)
}

func (c *IdentityMappingCache) endWrite(subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.inFlight--
	c.lru.Remove(subjectID)
}

func (c *IdentityMappingCache) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Len returns the number of cached subjects.
func (c *IdentityMappingCache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached entry.
func (c *IdentityMappingCache) Purge() {
	c.lru.Purge()
}
