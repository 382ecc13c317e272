package discover

import (
	"context"
	"errors"
	"sync"
	"testing"

	"melodex/config"
	"melodex/models"
)

type stubSearcher struct {
	gotQuery string
	tracks   []models.Track
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	s.gotQuery = query
	return s.tracks, s.err
}

type stubCatalog struct {
	gotTags string
	tracks  []models.Track
	err     error
}

func (s *stubCatalog) Instrumental(ctx context.Context, limit int) ([]models.Track, error) {
	return s.tracks, s.err
}

func (s *stubCatalog) ByTags(ctx context.Context, tags string, limit int) ([]models.Track, error) {
	s.gotTags = tags
	return s.tracks, s.err
}

func (s *stubCatalog) Popular(ctx context.Context, limit int) ([]models.Track, error) {
	return s.tracks, s.err
}

func instrumental(title string) models.Track {
	v := 0.9
	return models.Track{
		ID:               models.TrackID{Provider: models.ProviderJamendo, ID: title},
		Title:            title,
		Instrumentalness: &v,
	}
}

func vocal(title string) models.Track {
	t := instrumental(title)
	t.HasLyrics = true
	return t
}

func setup(t *testing.T) {
	t.Helper()
	config.NewConfig()
}

func TestInstrumentalFiltersVocalTracks(t *testing.T) {
	setup(t)
	searcher := &stubSearcher{tracks: []models.Track{
		instrumental("Deep Focus Beats"),
		vocal("Heartbreak Ballad"),
	}}
	svc := New(searcher, &stubCatalog{}, nil)

	tracks, err := svc.Instrumental(context.Background(), 10)
	if err != nil {
		t.Fatalf("Instrumental: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Deep Focus Beats" {
		t.Errorf("tracks = %+v, vocal track should be filtered out", tracks)
	}
	if searcher.gotQuery == "" {
		t.Error("no search query was issued")
	}
}

func TestInstrumentalQueryComesFromRotation(t *testing.T) {
	setup(t)
	searcher := &stubSearcher{}
	svc := New(searcher, &stubCatalog{}, nil)

	if _, err := svc.Instrumental(context.Background(), 10); err != nil {
		t.Fatalf("Instrumental: %v", err)
	}

	found := false
	for _, q := range instrumentalQueries {
		if q == searcher.gotQuery {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("query %q is not in the rotation list", searcher.gotQuery)
	}
}

func TestByGenreUsesCatalogTags(t *testing.T) {
	setup(t)
	catalog := &stubCatalog{tracks: []models.Track{instrumental("Nocturne")}}
	svc := New(&stubSearcher{}, catalog, nil)

	tracks, err := svc.ByGenre(context.Background(), "Piano", 10)
	if err != nil {
		t.Fatalf("ByGenre: %v", err)
	}
	if catalog.gotTags != "piano classical" {
		t.Errorf("tags = %q, want mapped tag query", catalog.gotTags)
	}
	if len(tracks) != 1 {
		t.Errorf("got %d tracks", len(tracks))
	}
}

func TestByGenreFallsBackToSearch(t *testing.T) {
	setup(t)
	searcher := &stubSearcher{tracks: []models.Track{instrumental("Synthwave Drive")}}
	catalog := &stubCatalog{err: errors.New("catalog down")}
	svc := New(searcher, catalog, nil)

	tracks, err := svc.ByGenre(context.Background(), "synthwave", 10)
	if err != nil {
		t.Fatalf("ByGenre: %v", err)
	}
	if searcher.gotQuery != "synthwave instrumental" {
		t.Errorf("fallback query = %q", searcher.gotQuery)
	}
	if len(tracks) != 1 {
		t.Errorf("got %d tracks", len(tracks))
	}
}

type stubLyricsIndex struct {
	mu      sync.Mutex
	hits    map[string]bool
	lookups []string
}

func (s *stubLyricsIndex) Exists(ctx context.Context, title, artist string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, title)
	return s.hits[title]
}

func TestInstrumentalEnrichesWithLyricsLookup(t *testing.T) {
	setup(t)
	unsignaled := models.Track{
		ID:    models.TrackID{Provider: models.ProviderSoundCloud, ID: "1"},
		Title: "Ocean Drive Piano",
	}
	sungAlong := models.Track{
		ID:    models.TrackID{Provider: models.ProviderSoundCloud, ID: "2"},
		Title: "Summer Anthem Piano",
	}
	searcher := &stubSearcher{tracks: []models.Track{
		instrumental("Deep Focus Beats"),
		unsignaled,
		sungAlong,
	}}
	idx := &stubLyricsIndex{hits: map[string]bool{"Summer Anthem Piano": true}}
	svc := New(searcher, &stubCatalog{}, idx)

	tracks, err := svc.Instrumental(context.Background(), 10)
	if err != nil {
		t.Fatalf("Instrumental: %v", err)
	}

	for _, title := range idx.lookups {
		if title == "Deep Focus Beats" {
			t.Error("track with an instrumentalness score was looked up")
		}
	}
	for _, tr := range tracks {
		if tr.Title == "Summer Anthem Piano" {
			t.Error("lyrics hit did not exclude the track from the feed")
		}
	}
	found := false
	for _, tr := range tracks {
		if tr.Title == "Ocean Drive Piano" {
			found = true
		}
	}
	if !found {
		t.Error("track without a lyrics hit was dropped from the feed")
	}
}
