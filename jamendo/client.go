// Package jamendo adapts the Jamendo v3.0 API. Jamendo serves full
// Creative Commons streams, so results carry a direct stream URL.
package jamendo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"melodex/config"
	"melodex/models"
)

const baseURL = "https://api.jamendo.com/v3.0"

// Signal values assigned from Jamendo's own vocal/instrumental tag. The
// catalog tags tracks editorially, so the signal is strong either way.
const (
	instrumentalSignal = 0.95
	vocalSignal        = 0.1
)

type Client struct {
	clientID   string
	httpClient *http.Client
	logger     *log.Entry
}

type apiResponse struct {
	Results []apiTrack `json:"results"`
}

type apiTrack struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ArtistName        string `json:"artist_name"`
	AlbumName         string `json:"album_name"`
	AlbumImage        string `json:"album_image"`
	Image             string `json:"image"`
	Duration          int    `json:"duration"`
	Audio             string `json:"audio"`
	AudioDownload     string `json:"audiodownload"`
	VocalInstrumental string `json:"vocalinstrumental"`
}

func NewClient() *Client {
	return &Client{
		clientID:   config.Config.Jamendo.ClientID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.WithFields(log.Fields{"module": "jamendo"}),
	}
}

func (c *Client) Name() models.Provider { return models.ProviderJamendo }

func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "jamendo.search")
	span.Description = "Search Jamendo API"
	span.SetTag("query", query)
	defer span.Finish()

	tracks, err := c.fetchTracks(ctx, url.Values{
		"search": {query},
		"boost":  {"popularity_total"},
	}, limit)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.Status = sentry.SpanStatusOK
	return tracks, nil
}

// Instrumental returns the catalog's editorially tagged instrumental
// tracks, most popular first.
func (c *Client) Instrumental(ctx context.Context, limit int) ([]models.Track, error) {
	return c.fetchTracks(ctx, url.Values{
		"vocalinstrumental": {"instrumental"},
		"order":             {"popularity_total"},
	}, limit)
}

// ByTags searches the catalog by space-separated tags, used for the
// genre and mood discovery feeds.
func (c *Client) ByTags(ctx context.Context, tags string, limit int) ([]models.Track, error) {
	return c.fetchTracks(ctx, url.Values{
		"tags":  {tags},
		"order": {"popularity_total"},
	}, limit)
}

// Popular returns this month's trending tracks.
func (c *Client) Popular(ctx context.Context, limit int) ([]models.Track, error) {
	return c.fetchTracks(ctx, url.Values{
		"order": {"popularity_month"},
		"boost": {"popularity_month"},
	}, limit)
}

func (c *Client) fetchTracks(ctx context.Context, params url.Values, limit int) ([]models.Track, error) {
	params.Set("client_id", c.clientID)
	params.Set("format", "json")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("include", "musicinfo")
	params.Set("audioformat", "mp32")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/tracks?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("jamendo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jamendo returned HTTP %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding jamendo response: %w", err)
	}

	tracks := make([]models.Track, 0, len(body.Results))
	for _, item := range body.Results {
		tracks = append(tracks, mapTrack(item))
	}
	c.logger.Debugf("Fetched %d tracks", len(tracks))
	return tracks, nil
}

func mapTrack(item apiTrack) models.Track {
	album := item.AlbumName
	if album == "" {
		album = "Single"
	}

	albumArt := item.AlbumImage
	if albumArt == "" {
		albumArt = item.Image
	}
	if albumArt == "" {
		albumArt = models.PlaceholderAlbumArt
	}

	streamURL := item.Audio
	if streamURL == "" {
		streamURL = item.AudioDownload
	}

	signal := vocalSignal
	if item.VocalInstrumental == "instrumental" {
		signal = instrumentalSignal
	}

	return models.Track{
		ID:               models.TrackID{Provider: models.ProviderJamendo, ID: item.ID},
		Title:            item.Name,
		Artist:           item.ArtistName,
		Album:            album,
		AlbumArt:         albumArt,
		DurationSeconds:  item.Duration,
		StreamURL:        streamURL,
		PreviewURL:       item.Audio,
		Instrumentalness: &signal,
	}
}
