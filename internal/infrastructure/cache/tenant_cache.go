package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTenantTTL is how long a resolved tenant is served without a directory lookup
	DefaultTenantTTL = 5 * time.Minute
	// DefaultSweepInterval is the eviction period of the background sweep
	DefaultSweepInterval = 60 * time.Second
)

// CacheMetrics receives cache events. Implementations must be safe for
// concurrent use.
type CacheMetrics interface {
	CacheHit(ctx context.Context)
	CacheMiss(ctx context.Context)
	CacheEvicted(ctx context.Context, n int)
}

type nopMetrics struct{}

func (nopMetrics) CacheHit(context.Context)          {}
func (nopMetrics) CacheMiss(context.Context)         {}
func (nopMetrics) CacheEvicted(context.Context, int) {}

// tenantEntry is replaced as a whole on refresh; it is never mutated in place.
type tenantEntry struct {
	tenant     *identity.Tenant
	insertedAt time.Time
}

// TenantCache memoizes active tenants in front of the tenant directory.
//
// Only active tenants are cached. Unknown or inactive tenants and directory
// failures are never stored, so a tenant that becomes active is visible on
// the next lookup. An entry is fresh while now-insertedAt <= TTL; stale
// entries are refreshed on access and evicted by Sweep.
type TenantCache struct {
	directory     identity.TenantDirectory
	clock         clock.Clock
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger
	metrics       CacheMetrics

	mu         sync.RWMutex
	entries    map[string]*tenantEntry
	subdomains map[string]string // subdomain -> tenant id

	lookups singleflight.Group

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// TenantCacheOption is a functional option for configuring the cache
type TenantCacheOption func(*TenantCache)

// WithTTL sets the entry lifetime
func WithTTL(ttl time.Duration) TenantCacheOption {
	return func(c *TenantCache) {
		c.ttl = ttl
	}
}

// WithSweepInterval sets the eviction period
func WithSweepInterval(interval time.Duration) TenantCacheOption {
	return func(c *TenantCache) {
		c.sweepInterval = interval
	}
}

// WithClock replaces the wall clock, mostly for tests
func WithClock(clk clock.Clock) TenantCacheOption {
	return func(c *TenantCache) {
		c.clock = clk
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) TenantCacheOption {
	return func(c *TenantCache) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the metrics sink
func WithCacheMetrics(m CacheMetrics) TenantCacheOption {
	return func(c *TenantCache) {
		c.metrics = m
	}
}

// NewTenantCache creates a cache over directory. The sweep does not run until
// Start is called.
func NewTenantCache(directory identity.TenantDirectory, opts ...TenantCacheOption) (*TenantCache, error) {
	c := &TenantCache{
		directory:     directory,
		clock:         clock.New(),
		ttl:           DefaultTenantTTL,
		sweepInterval: DefaultSweepInterval,
		logger:        zap.NewNop(),
		metrics:       nopMetrics{},
		entries:       make(map[string]*tenantEntry),
		subdomains:    make(map[string]string),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.ttl <= 0 {
		return nil, fmt.Errorf("tenant cache ttl must be positive, got %s", c.ttl)
	}
	if c.sweepInterval <= 0 || c.sweepInterval > c.ttl/2 {
		return nil, fmt.Errorf("tenant cache sweep interval %s must be positive and at most half the ttl %s", c.sweepInterval, c.ttl)
	}
	c.logger = c.logger.Named("tenant_cache")
	return c, nil
}

// Resolve returns the active tenant with the given id.
func (c *TenantCache) Resolve(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, shared.ErrUnknownOrInactiveTenant
	}

	c.mu.RLock()
	entry := c.entries[tenantID]
	c.mu.RUnlock()
	if c.fresh(entry) {
		c.metrics.CacheHit(ctx)
		return entry.tenant.Clone(), nil
	}

	c.metrics.CacheMiss(ctx)
	return c.load(ctx, "id:"+tenantID, tenantID, func(ctx context.Context) (*identity.Tenant, error) {
		return c.directory.FindByID(ctx, tenantID)
	})
}

// ResolveSubdomain returns the active tenant owning subdomain.
func (c *TenantCache) ResolveSubdomain(ctx context.Context, subdomain string) (*identity.Tenant, error) {
	sub := identity.NormalizeSubdomain(subdomain)
	if sub == "" {
		return nil, shared.ErrUnknownOrInactiveTenant
	}

	c.mu.RLock()
	var entry *tenantEntry
	if id, ok := c.subdomains[sub]; ok {
		entry = c.entries[id]
	}
	c.mu.RUnlock()
	if c.fresh(entry) && entry.tenant.Subdomain == sub {
		c.metrics.CacheHit(ctx)
		return entry.tenant.Clone(), nil
	}

	c.metrics.CacheMiss(ctx)
	return c.load(ctx, "sub:"+sub, "", func(ctx context.Context) (*identity.Tenant, error) {
		return c.directory.FindBySubdomain(ctx, sub)
	})
}

// load coalesces concurrent directory lookups for key. The shared lookup is
// detached from the leader's cancellation; each caller still honors its own
// ctx.
func (c *TenantCache) load(ctx context.Context, key, tenantID string, find func(context.Context) (*identity.Tenant, error)) (*identity.Tenant, error) {
	ch := c.lookups.DoChan(key, func() (interface{}, error) {
		t, err := find(context.WithoutCancel(ctx))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				if tenantID != "" {
					c.Invalidate(tenantID)
				}
				return nil, shared.ErrUnknownOrInactiveTenant
			}
			if !errors.Is(err, shared.ErrTenantDirectoryUnavailable) {
				err = fmt.Errorf("%w: %v", shared.ErrTenantDirectoryUnavailable, err)
			}
			c.logger.Warn("Tenant lookup failed", zap.String("key", key), zap.Error(err))
			return nil, err
		}
		if !t.IsActive() {
			c.Invalidate(t.ID)
			return nil, shared.ErrUnknownOrInactiveTenant
		}
		c.store(t)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrTenantDirectoryUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*identity.Tenant).Clone(), nil
	}
}

func (c *TenantCache) store(t *identity.Tenant) {
	entry := &tenantEntry{tenant: t.Clone(), insertedAt: c.clock.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[t.ID]; ok && old.tenant.Subdomain != entry.tenant.Subdomain {
		c.unindex(old.tenant)
	}
	c.entries[t.ID] = entry
	c.subdomains[entry.tenant.Subdomain] = t.ID
}

// Invalidate drops the entry of tenantID.
func (c *TenantCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[tenantID]; ok {
		c.unindex(old.tenant)
		delete(c.entries, tenantID)
	}
}

// unindex must be called with mu held.
func (c *TenantCache) unindex(t *identity.Tenant) {
	if c.subdomains[t.Subdomain] == t.ID {
		delete(c.subdomains, t.Subdomain)
	}
}

// Sweep evicts every stale entry and returns how many were removed.
func (c *TenantCache) Sweep() int {
	now := c.clock.Now()
	removed := 0

	c.mu.Lock()
	for id, entry := range c.entries {
		if now.Sub(entry.insertedAt) > c.ttl {
			c.unindex(entry.tenant)
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.metrics.CacheEvicted(context.Background(), removed)
		c.logger.Debug("Evicted stale tenant cache entries", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of cached tenants, stale ones included.
func (c *TenantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start launches the background sweep.
func (c *TenantCache) Start() {
	c.startOnce.Do(func() {
		ticker := c.clock.Ticker(c.sweepInterval)
		go func() {
			defer close(c.done)
			defer ticker.Stop()
			for {
				select {
				case <-c.stopCh:
					return
				case <-ticker.C:
					func() {
						defer func() {
							if r := recover(); r != nil {
								c.logger.Error("Panic in tenant cache sweep", zap.Any("panic", r))
							}
						}()
						c.Sweep()
					}()
				}
			}
		}()
	})
}

// Close stops the background sweep and waits for it to exit.
func (c *TenantCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	started := true
	c.startOnce.Do(func() {
		started = false
		close(c.done)
	})
	if started {
		<-c.done
	}
	return nil
}

func (c *TenantCache) fresh(entry *tenantEntry) bool {
	return entry != nil && c.clock.Now().Sub(entry.insertedAt) <= c.ttl
}

// Ensure TenantCache implements TenantResolver
var _ identity.TenantResolver = (*TenantCache)(nil)
