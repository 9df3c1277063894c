// Package fetcher wraps source adapter calls with caching, rate limiting,
// credential validation, retry, circuit breaking, and stale-on-error
// fallback. A misbehaving source degrades to stale or empty data; it never
// surfaces an error to the aggregation path.
package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/NeverShitty/chittyfinance-sub000/internal/cache"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/internal/resilience"
	"github.com/NeverShitty/chittyfinance-sub000/internal/source"
)

// Status describes how a fetch result was produced. Expected fallback
// conditions are values here, not errors.
type Status string

const (
	// StatusFresh means the adapter was called and succeeded.
	StatusFresh Status = "fresh"
	// StatusCached means a non-expired cache entry was served without a
	// network call.
	StatusCached Status = "cached"
	// StatusStale means the fetch failed or was rate limited and an expired
	// cache entry was served instead.
	StatusStale Status = "stale"
	// StatusEmpty means nothing could be served; the snapshot is empty.
	StatusEmpty Status = "empty"
)

// Result is the outcome of one source fetch. Snapshot is never nil.
type Result struct {
	Snapshot *model.PartialSnapshot
	Status   Status
}

// Options configures a CachedFetcher.
type Options struct {
	// Cache is the snapshot cache instance to use. Nil builds a fresh one
	// from TTL. Injected rather than package-global so tests and
	// multi-tenant deployments stay isolated.
	Cache *cache.SnapshotCache
	// TTL for cached snapshots when Cache is nil. Default: 5 minutes.
	TTL time.Duration
	// Timeout bounds each adapter call. Default: 30s.
	Timeout time.Duration
	// RateLimits maps service type to requests per minute. Nil uses
	// DefaultRateLimits.
	RateLimits map[string]int
	// Retry overrides the adapter retry policy. Zero value uses
	// resilience.SourceFetchRetryConfig.
	Retry resilience.RetryConfig
	// Breaker overrides the per-source circuit breaker config.
	Breaker resilience.CircuitBreakerConfig
}

// CachedFetcher resolves adapters through the registry and serves snapshots
// through the cache. Safe for concurrent use.
type CachedFetcher struct {
	registry *source.Registry
	cache    *cache.SnapshotCache
	gates    *serviceGates
	breakers *resilience.SourceBreakers
	retry    resilience.RetryConfig
	timeout  time.Duration
	group    singleflight.Group
}

// New creates a CachedFetcher over the given adapter registry.
func New(registry *source.Registry, opts Options) *CachedFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimits == nil {
		opts.RateLimits = DefaultRateLimits()
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.SourceFetchRetryConfig()
	}
	breaker := opts.Breaker
	if breaker.FailureThreshold == 0 {
		breaker = resilience.DefaultCircuitBreakerConfig()
	}
	c := opts.Cache
	if c == nil {
		c = cache.New(opts.TTL)
	}
	return &CachedFetcher{
		registry: registry,
		cache:    c,
		gates:    newServiceGates(opts.RateLimits),
		breakers: resilience.NewSourceBreakers(breaker),
		retry:    retry,
		timeout:  opts.Timeout,
	}
}

// Fetch returns the snapshot for a source. The primary path is a cache hit;
// otherwise the adapter is called and failures degrade to stale or empty.
// Fetch never returns an error.
func (f *CachedFetcher) Fetch(ctx context.Context, src model.Source) Result {
	key := src.Key()
	service := string(src.ServiceType)

	if snap, ok := f.cache.Get(key); ok {
		return Result{Snapshot: snap, Status: StatusCached}
	}

	// Local rate gate. An exhausted window is an expected condition, served
	// from stale cache without logging an error.
	if !f.gates.allow(service) {
		zap.L().Debug("local rate limit exceeded",
			zap.String("source", key),
		)
		return f.fallback(key, src, nil)
	}

	if err := source.ValidateCredentials(src); err != nil {
		zap.L().Warn("skipping fetch: invalid credentials",
			zap.String("source", key),
			zap.String("error_class", errorClass(err)),
			zap.Error(err),
		)
		return Result{Snapshot: emptySnapshot(src), Status: StatusEmpty}
	}

	adapter := f.registry.Get(src.ServiceType)
	if adapter == nil {
		zap.L().Warn("no adapter registered for source",
			zap.String("service", service),
		)
		return Result{Snapshot: emptySnapshot(src), Status: StatusEmpty}
	}

	// Single-flight: concurrent callers that miss the cache for the same
	// key share one upstream call.
	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.callAdapter(ctx, adapter, src)
	})
	if err != nil {
		return f.fallback(key, src, err)
	}

	snap := v.(*model.PartialSnapshot)
	f.cache.Put(key, snap)
	return Result{Snapshot: snap, Status: StatusFresh}
}

// callAdapter runs the adapter through the per-source circuit breaker and
// the retry policy. Retries apply only to upstream rate-limit responses;
// the backoff sleep is scoped to this call and does not block other fetches.
func (f *CachedFetcher) callAdapter(ctx context.Context, adapter source.Adapter, src model.Source) (*model.PartialSnapshot, error) {
	cb := f.breakers.Get(src.Key())
	return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*model.PartialSnapshot, error) {
		retry := f.retry
		retry.OnRetry = resilience.RetryLogger(string(src.ServiceType), "fetch_snapshot")
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.PartialSnapshot, error) {
			ctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			snap, err := adapter.FetchSnapshot(ctx, src)
			if err != nil {
				return nil, err
			}
			if snap == nil {
				snap = &model.PartialSnapshot{}
			}
			snap.Source = src.Label()
			return snap, nil
		})
	})
}

// fallback serves an expired cache entry if one exists, else an empty
// snapshot. err is nil when the fallback is due to the local rate gate.
func (f *CachedFetcher) fallback(key string, src model.Source, err error) Result {
	if snap, ok := f.cache.GetStale(key); ok {
		if err != nil {
			zap.L().Warn("fetch failed, serving stale fallback",
				zap.String("source", key),
				zap.String("error_class", errorClass(err)),
				zap.Error(err),
			)
		}
		return Result{Snapshot: snap, Status: StatusStale}
	}
	if err != nil {
		zap.L().Warn("fetch failed, no cache entry, serving empty snapshot",
			zap.String("source", key),
			zap.String("error_class", errorClass(err)),
			zap.Error(err),
		)
	}
	return Result{Snapshot: emptySnapshot(src), Status: StatusEmpty}
}

// OnSourceUpdated handles a webhook notification that a provider has new
// data: all cache entries for that service are dropped so the next fetch
// goes to network.
func (f *CachedFetcher) OnSourceUpdated(serviceType string) int {
	return f.cache.Invalidate(serviceType)
}

// Stats proxies the cache occupancy counters.
func (f *CachedFetcher) Stats() cache.Stats {
	return f.cache.Stats()
}

func emptySnapshot(src model.Source) *model.PartialSnapshot {
	return &model.PartialSnapshot{Source: src.Label()}
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case resilience.IsAuth(err):
		return "auth"
	case resilience.IsRateLimit(err):
		return "rate_limit"
	case resilience.IsTransient(err):
		return "transient"
	default:
		return "other"
	}
}
