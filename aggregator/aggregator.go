// Package aggregator fans a search out to every configured provider and
// merges the results into one priority-ordered list.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"melodex/config"
	"melodex/models"
)

// ErrNoResults is returned only when every provider failed or came back
// empty. A single healthy provider is enough for a successful search.
var ErrNoResults = errors.New("no provider returned results")

// Adapter is the contract each provider client satisfies.
type Adapter interface {
	Name() models.Provider
	Search(ctx context.Context, query string, limit int) ([]models.Track, error)
}

type Aggregator struct {
	adapters []Adapter
	order    []models.Provider
	timeout  time.Duration
	limiters map[models.Provider]*rate.Limiter
	logger   *log.Entry
}

type providerResult struct {
	provider models.Provider
	tracks   []models.Track
	err      error
}

func New(adapters ...Adapter) *Aggregator {
	limiters := make(map[models.Provider]*rate.Limiter, len(adapters))
	rps := rate.Limit(config.Config.Options.ProviderRPS)
	for _, a := range adapters {
		limiters[a.Name()] = rate.NewLimiter(rps, config.Config.Options.ProviderRPS)
	}
	return &Aggregator{
		adapters: adapters,
		order:    config.Config.Options.ProviderOrder,
		timeout:  time.Duration(config.Config.Options.ProviderTimeout) * time.Second,
		limiters: limiters,
		logger:   log.WithFields(log.Fields{"module": "aggregator"}),
	}
}

// Search queries all providers concurrently. A slow or failing provider
// cannot hold up or sink the rest; its slot just comes back empty.
func (a *Aggregator) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "aggregator.search")
	span.Description = "Fan out search to providers"
	span.SetTag("query", query)
	defer span.Finish()

	results := make(chan providerResult, len(a.adapters))
	var wg sync.WaitGroup

	for _, adapter := range a.adapters {
		wg.Add(1)
		go func(adapter Adapter) {
			defer wg.Done()
			results <- a.searchOne(ctx, adapter, query, limit)
		}(adapter)
	}
	wg.Wait()
	close(results)

	byProvider := make(map[models.Provider][]models.Track, len(a.adapters))
	failures := 0
	for res := range results {
		if res.err != nil {
			failures++
			a.logger.Warnf("Provider %s failed: %v", res.provider, res.err)
			continue
		}
		byProvider[res.provider] = res.tracks
	}

	merged := a.merge(byProvider)
	span.SetData("track_count", len(merged))

	if len(merged) == 0 && failures == len(a.adapters) {
		span.Status = sentry.SpanStatusUnavailable
		return nil, ErrNoResults
	}
	span.Status = sentry.SpanStatusOK
	return merged, nil
}

func (a *Aggregator) searchOne(ctx context.Context, adapter Adapter, query string, limit int) providerResult {
	name := adapter.Name()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if limiter := a.limiters[name]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return providerResult{provider: name, err: err}
		}
	}

	start := time.Now()
	tracks, err := adapter.Search(ctx, query, limit)
	if err != nil {
		return providerResult{provider: name, err: err}
	}
	a.logger.Debugf("Provider %s: %d tracks in %s", name, len(tracks), time.Since(start).Round(time.Millisecond))
	return providerResult{provider: name, tracks: tracks}
}

// merge concatenates per-provider results in the configured priority
// order, deduplicating by track identity within each provider.
func (a *Aggregator) merge(byProvider map[models.Provider][]models.Track) []models.Track {
	merged := make([]models.Track, 0)
	for _, provider := range a.order {
		seen := make(map[models.TrackID]bool)
		for _, track := range byProvider[provider] {
			if track.ID.IsZero() || seen[track.ID] {
				continue
			}
			seen[track.ID] = true
			merged = append(merged, track)
		}
	}
	return merged
}
