package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"melodex/models"
)

type stubAdapter struct {
	name   models.Provider
	tracks []models.Track
	err    error
	delay  time.Duration
}

func (s stubAdapter) Name() models.Provider { return s.name }

func (s stubAdapter) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.tracks, s.err
}

func track(p models.Provider, id, title string) models.Track {
	return models.Track{
		ID:        models.TrackID{Provider: p, ID: id},
		Title:     title,
		StreamURL: "https://example.com/" + id,
	}
}

func newTestAggregator(timeout time.Duration, order []models.Provider, adapters ...Adapter) *Aggregator {
	limiters := make(map[models.Provider]*rate.Limiter, len(adapters))
	for _, a := range adapters {
		limiters[a.Name()] = rate.NewLimiter(rate.Inf, 1)
	}
	return &Aggregator{
		adapters: adapters,
		order:    order,
		timeout:  timeout,
		limiters: limiters,
		logger:   log.WithFields(log.Fields{"module": "aggregator"}),
	}
}

func TestPartialFailureStillReturnsResults(t *testing.T) {
	agg := newTestAggregator(time.Second, models.AllProviders,
		stubAdapter{name: models.ProviderSpotify, err: errors.New("rate limited")},
		stubAdapter{name: models.ProviderJamendo, tracks: []models.Track{track(models.ProviderJamendo, "1", "Drift")}},
	)

	tracks, err := agg.Search(context.Background(), "lofi", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Drift" {
		t.Errorf("tracks = %+v, want the healthy provider's result", tracks)
	}
}

func TestAllProvidersFailing(t *testing.T) {
	agg := newTestAggregator(time.Second, models.AllProviders,
		stubAdapter{name: models.ProviderSpotify, err: errors.New("down")},
		stubAdapter{name: models.ProviderJamendo, err: errors.New("down")},
	)

	_, err := agg.Search(context.Background(), "lofi", 10)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

// With nothing configured there is no provider to even try, which is the
// same outage the caller sees when every provider fails.
func TestNoAdaptersBehavesLikeTotalOutage(t *testing.T) {
	agg := newTestAggregator(time.Second, models.AllProviders)

	_, err := agg.Search(context.Background(), "lofi", 10)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

func TestEmptyResultsWithoutFailuresIsNotAnError(t *testing.T) {
	agg := newTestAggregator(time.Second, models.AllProviders,
		stubAdapter{name: models.ProviderSpotify},
		stubAdapter{name: models.ProviderJamendo},
	)

	tracks, err := agg.Search(context.Background(), "zxqj", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("got %d tracks, want 0", len(tracks))
	}
}

func TestMergePreservesPriorityOrder(t *testing.T) {
	// Jamendo finishes instantly, Spotify slowly; the merged order must
	// still follow the configured priority, not completion order.
	agg := newTestAggregator(time.Second,
		[]models.Provider{models.ProviderSpotify, models.ProviderJamendo},
		stubAdapter{name: models.ProviderJamendo, tracks: []models.Track{track(models.ProviderJamendo, "j1", "B")}},
		stubAdapter{name: models.ProviderSpotify, delay: 50 * time.Millisecond, tracks: []models.Track{track(models.ProviderSpotify, "s1", "A")}},
	)

	tracks, err := agg.Search(context.Background(), "piano", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].ID.Provider != models.ProviderSpotify || tracks[1].ID.Provider != models.ProviderJamendo {
		t.Errorf("order = [%s, %s], want [spotify, jamendo]", tracks[0].ID.Provider, tracks[1].ID.Provider)
	}
}

func TestDuplicateIDsWithinProviderCollapse(t *testing.T) {
	agg := newTestAggregator(time.Second, models.AllProviders,
		stubAdapter{name: models.ProviderJamendo, tracks: []models.Track{
			track(models.ProviderJamendo, "1", "Drift"),
			track(models.ProviderJamendo, "1", "Drift (dup)"),
			track(models.ProviderJamendo, "2", "Haze"),
		}},
	)

	tracks, err := agg.Search(context.Background(), "chill", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("got %d tracks, want 2 after dedup", len(tracks))
	}
}

func TestSlowProviderIsCutOffByTimeout(t *testing.T) {
	agg := newTestAggregator(50*time.Millisecond, models.AllProviders,
		stubAdapter{name: models.ProviderSpotify, delay: 5 * time.Second, tracks: []models.Track{track(models.ProviderSpotify, "s1", "Late")}},
		stubAdapter{name: models.ProviderJamendo, tracks: []models.Track{track(models.ProviderJamendo, "j1", "Fast")}},
	)

	start := time.Now()
	tracks, err := agg.Search(context.Background(), "focus", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("search took %s, timeout did not bound the slow provider", elapsed)
	}
	if len(tracks) != 1 || tracks[0].Title != "Fast" {
		t.Errorf("tracks = %+v, want only the fast provider's result", tracks)
	}
}
