// Package soundcloud adapts the public SoundCloud api-v2. The API needs a
// client_id that SoundCloud does not hand out anymore; we scrape one from
// the web player's JS bundles and refresh it when it expires.
package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"melodex/models"
)

const (
	webURL = "https://soundcloud.com"
	apiURL = "https://api-v2.soundcloud.com"
)

// Keyword signal strengths for the title heuristic. SoundCloud exposes no
// audio analysis, so these are weaker than catalog tags.
const (
	keywordHitSignal  = 0.8
	keywordMissSignal = 0.3
)

var clientIDPattern = regexp.MustCompile(`client_id:"([a-zA-Z0-9]+)"`)

var instrumentalHints = []string{
	"instrumental", "inst.", "inst ", "piano", "guitar", "violin",
	"acoustic", "ambient", "background", "lofi", "lo-fi", "chill",
	"beats", "classical", "jazz", "meditation", "study", "focus",
	"relaxing", "calm", "peaceful", "no vocals", "karaoke",
}

// noisePattern matches decorations stripped from titles before display.
var noisePattern = regexp.MustCompile(`(?i)\(instrumental\)|\[instrumental\]|- instrumental|\(official audio\)|\[official audio\]|\(official\)|\[official\]`)

type Client struct {
	httpClient *http.Client
	logger     *log.Entry

	mu       sync.Mutex
	clientID string
}

type searchResponse struct {
	Collection []apiTrack `json:"collection"`
}

type apiTrack struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ArtworkURL string `json:"artwork_url"`
	DurationMS int64  `json:"duration"`
	User       struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user"`
	Media struct {
		Transcodings []transcoding `json:"transcodings"`
	} `json:"media"`
	PermalinkURL string `json:"permalink_url"`
}

type transcoding struct {
	URL    string `json:"url"`
	Format struct {
		Protocol string `json:"protocol"`
	} `json:"format"`
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.WithFields(log.Fields{"module": "soundcloud"}),
	}
}

func (c *Client) Name() models.Provider { return models.ProviderSoundCloud }

func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "soundcloud.search")
	span.Description = "Search SoundCloud api-v2"
	span.SetTag("query", query)
	defer span.Finish()

	tracks, err := c.search(ctx, query, limit)
	if errors.Is(err, errUnauthorized) {
		// Stale client_id; scrape a fresh one and retry once.
		c.mu.Lock()
		c.clientID = ""
		c.mu.Unlock()
		tracks, err = c.search(ctx, query, limit)
	}
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.Status = sentry.SpanStatusOK
	return tracks, nil
}

var errUnauthorized = errors.New("soundcloud rejected client_id")

func (c *Client) search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	clientID, err := c.ensureClientID(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":         {query},
		"client_id": {clientID},
		"limit":     {fmt.Sprintf("%d", limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/search/tracks?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soundcloud search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("soundcloud returned HTTP %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding soundcloud response: %w", err)
	}

	tracks := make([]models.Track, 0, len(body.Collection))
	for _, item := range body.Collection {
		track := mapTrack(item)
		// Progressive transcodings resolve to a plain mp3 URL; tracks
		// that only offer HLS are skipped.
		streamURL, err := c.resolveStream(ctx, item, clientID)
		if err != nil {
			c.logger.Tracef("No progressive stream for %q: %v", item.Title, err)
			continue
		}
		track.StreamURL = streamURL
		tracks = append(tracks, track)
	}
	c.logger.Debugf("Resolved %d/%d tracks for '%s'", len(tracks), len(body.Collection), query)
	return tracks, nil
}

func (c *Client) resolveStream(ctx context.Context, item apiTrack, clientID string) (string, error) {
	var progressive string
	for _, t := range item.Media.Transcodings {
		if t.Format.Protocol == "progressive" {
			progressive = t.URL
			break
		}
	}
	if progressive == "" {
		return "", errors.New("no progressive transcoding")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, progressive+"?client_id="+clientID, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcoding resolve returned HTTP %d", resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("empty stream URL")
	}
	return out.URL, nil
}

// ensureClientID returns a cached client_id or scrapes one from the web
// player: the homepage references a handful of JS bundles, one of which
// embeds the id.
func (c *Client) ensureClientID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientID != "" {
		return c.clientID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, webURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching soundcloud homepage: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing soundcloud homepage: %w", err)
	}

	var scripts []string
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.Contains(src, "sndcdn.com") {
			scripts = append(scripts, src)
		}
	})

	// The id usually lives in one of the last bundles, so walk backwards.
	for i := len(scripts) - 1; i >= 0; i-- {
		id, err := c.scanBundle(ctx, scripts[i])
		if err != nil {
			continue
		}
		if id != "" {
			c.logger.Debugf("Discovered client_id from %s", scripts[i])
			c.clientID = id
			return id, nil
		}
	}
	return "", errors.New("no client_id found in web player bundles")
}

func (c *Client) scanBundle(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if m := clientIDPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", nil
}

func mapTrack(item apiTrack) models.Track {
	albumArt := item.ArtworkURL
	if albumArt == "" {
		albumArt = item.User.AvatarURL
	}
	if albumArt == "" {
		albumArt = models.PlaceholderAlbumArt
	}

	title := cleanTitle(item.Title)
	signal := keywordMissSignal
	if looksInstrumental(item.Title) {
		signal = keywordHitSignal
	}

	return models.Track{
		ID:               models.TrackID{Provider: models.ProviderSoundCloud, ID: fmt.Sprintf("%d", item.ID)},
		Title:            title,
		Artist:           item.User.Username,
		Album:            "SoundCloud",
		AlbumArt:         albumArt,
		DurationSeconds:  int(item.DurationMS / 1000),
		PreviewURL:       item.PermalinkURL,
		Instrumentalness: &signal,
	}
}

func looksInstrumental(title string) bool {
	lower := strings.ToLower(title)
	for _, hint := range instrumentalHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func cleanTitle(title string) string {
	return strings.TrimSpace(noisePattern.ReplaceAllString(title, ""))
}
