// Package aggregate merges per-source financial snapshots into one coherent
// picture. Fetches fan out concurrently; the merge itself is a sequential
// reduction in the order sources were supplied, so results are reproducible
// across runs.
package aggregate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NeverShitty/chittyfinance-sub000/internal/cache"
	"github.com/NeverShitty/chittyfinance-sub000/internal/fetcher"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// maxConcurrentFetches bounds the fan-out so a long source list does not
// open unbounded upstream connections at once.
const maxConcurrentFetches = 8

// Part pairs one source's snapshot with the identity that produced it.
// Parts are ordered the way the sources were supplied.
type Part struct {
	Key      string
	Label    string
	Snapshot *model.PartialSnapshot
	Status   fetcher.Status
}

// Snapshots extracts the snapshot list from parts, for detection.
func Snapshots(parts []Part) []*model.PartialSnapshot {
	out := make([]*model.PartialSnapshot, len(parts))
	for i, p := range parts {
		out[i] = p.Snapshot
	}
	return out
}

// Aggregator fans out snapshot fetches across connected sources and merges
// the results. Stateless between calls; the only shared state is the
// fetcher's cache.
type Aggregator struct {
	fetcher *fetcher.CachedFetcher
	nowFunc func() time.Time
}

// New creates an Aggregator over the given fetcher.
func New(f *fetcher.CachedFetcher) *Aggregator {
	return &Aggregator{
		fetcher: f,
		nowFunc: time.Now,
	}
}

// WithNow overrides the clock. For tests.
func (a *Aggregator) WithNow(now func() time.Time) *Aggregator {
	a.nowFunc = now
	return a
}

// FetchAll fetches every connected source concurrently and returns the
// per-source parts in supplied order. Disconnected sources are skipped
// entirely. A failing source degrades to stale or empty data inside the
// fetcher and never blocks the others; FetchAll itself cannot fail.
func (a *Aggregator) FetchAll(ctx context.Context, sources []model.Source) []Part {
	parts := make([]Part, 0, len(sources))
	for _, src := range sources {
		if !src.Connected {
			continue
		}
		parts = append(parts, Part{Key: src.Key(), Label: src.Label()})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	idx := 0
	for _, src := range sources {
		if !src.Connected {
			continue
		}
		i, s := idx, src
		idx++
		g.Go(func() error {
			r := a.fetcher.Fetch(ctx, s)
			parts[i].Snapshot = r.Snapshot
			parts[i].Status = r.Status
			return nil
		})
	}
	// Workers never return errors; every failure degrades inside the fetcher.
	_ = g.Wait()

	statuses := map[fetcher.Status]int{}
	for _, p := range parts {
		statuses[p.Status]++
	}
	zap.L().Info("fetched sources",
		zap.Int("sources", len(parts)),
		zap.Int("fresh", statuses[fetcher.StatusFresh]),
		zap.Int("cached", statuses[fetcher.StatusCached]),
		zap.Int("stale", statuses[fetcher.StatusStale]),
		zap.Int("empty", statuses[fetcher.StatusEmpty]),
	)
	return parts
}

// Aggregate fetches every connected source and merges the snapshots.
func (a *Aggregator) Aggregate(ctx context.Context, sources []model.Source) *model.FinancialSnapshot {
	return Merge(a.FetchAll(ctx, sources), a.nowFunc())
}

// CacheStats proxies the fetcher's cache occupancy counters.
func (a *Aggregator) CacheStats() cache.Stats {
	return a.fetcher.Stats()
}

// OnSourceUpdated invalidates cached snapshots for a service so the next
// aggregation refetches it.
func (a *Aggregator) OnSourceUpdated(serviceType string) int {
	return a.fetcher.OnSourceUpdated(serviceType)
}
