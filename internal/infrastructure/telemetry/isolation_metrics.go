package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// IsolationMetrics counts tenant cache traffic, isolation denials and audit
// write failures. It satisfies the metrics ports of the tenant cache, the
// enforcer and the audit trail.
type IsolationMetrics struct {
	cacheHits      *Counter
	cacheMisses    *Counter
	cacheEvictions *Counter
	denials        *Counter
	auditFailures  *Counter
}

// NewIsolationMetrics registers the isolation instruments on meter.
func NewIsolationMetrics(meter metric.Meter) (*IsolationMetrics, error) {
	m := &IsolationMetrics{}
	var err error

	if m.cacheHits, err = NewCounter(meter, "tenant_cache_hits_total", "Tenant lookups served from cache", "{lookup}"); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = NewCounter(meter, "tenant_cache_misses_total", "Tenant lookups that reached the directory", "{lookup}"); err != nil {
		return nil, err
	}
	if m.cacheEvictions, err = NewCounter(meter, "tenant_cache_evictions_total", "Stale tenant entries removed by the sweep", "{entry}"); err != nil {
		return nil, err
	}
	if m.denials, err = NewCounter(meter, "isolation_denials_total", "Statements rejected by the isolation enforcer", "{statement}"); err != nil {
		return nil, err
	}
	if m.auditFailures, err = NewCounter(meter, "audit_write_failures_total", "Failed audit store writes", "{write}"); err != nil {
		return nil, err
	}
	return m, nil
}

// CacheHit implements cache.CacheMetrics
func (m *IsolationMetrics) CacheHit(ctx context.Context) { m.cacheHits.Inc(ctx) }

// CacheMiss implements cache.CacheMetrics
func (m *IsolationMetrics) CacheMiss(ctx context.Context) { m.cacheMisses.Inc(ctx) }

// CacheEvicted implements cache.CacheMetrics
func (m *IsolationMetrics) CacheEvicted(ctx context.Context, n int) {
	m.cacheEvictions.Add(ctx, int64(n))
}

// Denied implements tenant.DenialCounter
func (m *IsolationMetrics) Denied(ctx context.Context, reason string) {
	m.denials.Inc(ctx, AttrReason.String(reason))
}

// AuditWriteFailed implements audittrail.Metrics
func (m *IsolationMetrics) AuditWriteFailed(ctx context.Context) { m.auditFailures.Inc(ctx) }
