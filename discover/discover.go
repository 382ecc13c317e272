// Package discover serves the browse surfaces: instrumental picks, genre
// and mood feeds, and trending tracks.
package discover

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"melodex/classifier"
	"melodex/config"
	"melodex/models"
)

// Searcher is the cross-provider search entry point.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Track, error)
}

// Catalog exposes the browse feeds of a provider with editorial tagging.
type Catalog interface {
	Instrumental(ctx context.Context, limit int) ([]models.Track, error)
	ByTags(ctx context.Context, tags string, limit int) ([]models.Track, error)
	Popular(ctx context.Context, limit int) ([]models.Track, error)
}

// LyricsIndex reports whether published lyrics exist for a song. A hit is
// a vocal signal for tracks whose provider reports neither a lyrics flag
// nor an instrumentalness score. May be nil, which disables enrichment.
type LyricsIndex interface {
	Exists(ctx context.Context, title, artist string) bool
}

// genreTags maps friendly genre names to catalog tag queries.
var genreTags = map[string]string{
	"lofi":         "chillout lofi",
	"piano":        "piano classical",
	"ambient":      "ambient electronic",
	"classical":    "classical",
	"jazz":         "jazz",
	"electronic":   "electronic",
	"acoustic":     "acoustic folk",
	"instrumental": "instrumental",
}

// instrumentalQueries rotate so repeat visits to the discover page don't
// serve the same list every time.
var instrumentalQueries = []string{
	"instrumental piano",
	"ambient instrumental",
	"lofi instrumental",
	"chill instrumental",
	"study music instrumental",
	"acoustic instrumental",
	"jazz instrumental",
	"classical piano",
	"relaxing instrumental",
	"meditation music",
	"background music instrumental",
	"focus music",
}

type Service struct {
	searcher  Searcher
	catalog   Catalog
	lyricsIdx LyricsIndex
	rng       *rand.Rand
	logger    *log.Entry
}

func New(searcher Searcher, catalog Catalog, lyricsIdx LyricsIndex) *Service {
	return &Service{
		searcher:  searcher,
		catalog:   catalog,
		lyricsIdx: lyricsIdx,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    log.WithFields(log.Fields{"module": "discover"}),
	}
}

// Instrumental returns a fresh instrumental selection, filtered so vocal
// tracks that slip through provider search don't reach the feed.
func (s *Service) Instrumental(ctx context.Context, limit int) ([]models.Track, error) {
	query := s.generateQuery(ctx)
	if query == "" {
		query = instrumentalQueries[s.rng.Intn(len(instrumentalQueries))]
	}
	s.logger.Debugf("Fetching instrumental feed with query '%s'", query)

	tracks, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.enrichLyrics(ctx, tracks)
	return classifier.Filter(tracks), nil
}

// enrichLyrics fills in the lyrics-present flag before filtering, so
// tracks that came back with no vocal signal at all still get one. Only
// tracks missing both the flag and an instrumentalness score are looked
// up; everything else already has something for the filter to act on.
func (s *Service) enrichLyrics(ctx context.Context, tracks []models.Track) {
	if s.lyricsIdx == nil {
		return
	}

	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup
	for i := range tracks {
		if tracks[i].HasLyrics || tracks[i].Instrumentalness != nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(t *models.Track) {
			defer wg.Done()
			defer func() { <-sem }()
			if s.lyricsIdx.Exists(ctx, t.Title, t.Artist) {
				t.HasLyrics = true
			}
		}(&tracks[i])
	}
	wg.Wait()
}

// ByGenre serves a genre feed from the tagged catalog, falling back to a
// cross-provider search for genres the catalog has no tags for.
func (s *Service) ByGenre(ctx context.Context, genre string, limit int) ([]models.Track, error) {
	if tags, ok := genreTags[strings.ToLower(genre)]; ok {
		tracks, err := s.catalog.ByTags(ctx, tags, limit)
		if err == nil && len(tracks) > 0 {
			return tracks, nil
		}
		if err != nil {
			s.logger.Warnf("Catalog genre feed failed, falling back to search: %v", err)
		}
	}
	tracks, err := s.searcher.Search(ctx, genre+" instrumental", limit)
	if err != nil {
		return nil, err
	}
	return classifier.Filter(tracks), nil
}

// Trending returns the catalog's popular tracks for this month.
func (s *Service) Trending(ctx context.Context, limit int) ([]models.Track, error) {
	return s.catalog.Popular(ctx, limit)
}

// CatalogInstrumental returns editorially tagged instrumental tracks,
// skipping the keyword heuristics entirely.
func (s *Service) CatalogInstrumental(ctx context.Context, limit int) ([]models.Track, error) {
	return s.catalog.Instrumental(ctx, limit)
}

// generateQuery asks Gemini for a search query when enabled. Any failure
// degrades to the rotation list.
func (s *Service) generateQuery(ctx context.Context) string {
	if !config.Config.Gemini.Enabled {
		return ""
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.Config.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		s.logger.Errorf("failed to create genai client: %v", err)
		return ""
	}

	prompt := `Suggest one short search query for finding instrumental music
to study or focus to. Vary the instrument, genre, or mood. Respond with the
query only, no punctuation or explanation.`

	resp, err := client.Models.GenerateContent(ctx, "gemini-2.0-flash", genai.Text(prompt), nil)
	if err != nil {
		s.logger.Errorf("failed to generate query: %v", err)
		return ""
	}

	query := strings.TrimSpace(resp.Text())
	if strings.Count(query, " ") > 6 {
		// Model rambled; not usable as a search query.
		return ""
	}
	return query
}
