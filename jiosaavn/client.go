// Package jiosaavn adapts JioSaavn's unofficial api.php endpoints. Streams
// come from an auth-token exchange and the CDN refuses browser origins, so
// every result is marked for proxied playback.
package jiosaavn

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"melodex/config"
	"melodex/models"
)

const baseURL = "https://www.jiosaavn.com/api.php"

// Catalog is overwhelmingly vocal film music; absent any per-track signal
// this is the prior.
const defaultSignal = 0.1

type Client struct {
	httpClient *http.Client
	bitrate    string
	logger     *log.Entry
}

type autocompleteResponse struct {
	Songs struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"songs"`
}

type songDetails struct {
	ID                string `json:"id"`
	Song              string `json:"song"`
	PrimaryArtists    string `json:"primary_artists"`
	Singers           string `json:"singers"`
	Album             string `json:"album"`
	Image             string `json:"image"`
	Duration          string `json:"duration"`
	EncryptedMediaURL string `json:"encrypted_media_url"`
	HasLyrics         string `json:"has_lyrics"`
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		bitrate:    strconv.Itoa(config.Config.JioSaavn.Bitrate),
		logger:     log.WithFields(log.Fields{"module": "jiosaavn"}),
	}
}

func (c *Client) Name() models.Provider { return models.ProviderJioSaavn }

// Search runs autocomplete for candidate IDs, then fetches details and
// exchanges the encrypted media URL for a streamable one per song. Songs
// whose detail fetch fails are dropped, not fatal.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "jiosaavn.search")
	span.Description = "Search JioSaavn API"
	span.SetTag("query", query)
	defer span.Finish()

	var auto autocompleteResponse
	err := c.call(ctx, url.Values{
		"__call":          {"autocomplete.get"},
		"cc":              {"in"},
		"includeMetaTags": {"1"},
		"query":           {query},
	}, &auto)
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	ids := auto.Songs.Data
	if len(ids) > limit {
		ids = ids[:limit]
	}

	tracks := make([]models.Track, 0, len(ids))
	for _, entry := range ids {
		track, err := c.songByID(ctx, entry.ID)
		if err != nil {
			c.logger.Warnf("Skipping song %s: %v", entry.ID, err)
			continue
		}
		tracks = append(tracks, track)
	}

	c.logger.Debugf("Resolved %d/%d songs for '%s'", len(tracks), len(ids), query)
	span.Status = sentry.SpanStatusOK
	return tracks, nil
}

func (c *Client) songByID(ctx context.Context, id string) (models.Track, error) {
	var details map[string]json.RawMessage
	err := c.call(ctx, url.Values{
		"__call": {"song.getDetails"},
		"cc":     {"in"},
		"pids":   {id},
	}, &details)
	if err != nil {
		return models.Track{}, err
	}

	raw, ok := details[id]
	if !ok {
		return models.Track{}, fmt.Errorf("song %s missing from details response", id)
	}
	var song songDetails
	if err := json.Unmarshal(raw, &song); err != nil {
		return models.Track{}, fmt.Errorf("decoding song %s: %w", id, err)
	}

	streamURL := c.exchangeAuthToken(ctx, song.EncryptedMediaURL)
	return mapTrack(song, streamURL), nil
}

// exchangeAuthToken trades the encrypted media URL for a CDN URL at the
// configured bitrate. On failure the encrypted URL is returned as-is,
// matching the endpoint's own fallback behavior.
func (c *Client) exchangeAuthToken(ctx context.Context, encryptedURL string) string {
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	err := c.call(ctx, url.Values{
		"__call":  {"song.generateAuthToken"},
		"url":     {encryptedURL},
		"bitrate": {c.bitrate},
	}, &out)
	if err != nil || out.AuthURL == "" {
		c.logger.Warnf("Auth token exchange failed, using encrypted URL: %v", err)
		return encryptedURL
	}
	return out.AuthURL
}

func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("_format", "json")
	params.Set("_marker", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jiosaavn request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jiosaavn returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding jiosaavn response: %w", err)
	}
	return nil
}

func mapTrack(song songDetails, streamURL string) models.Track {
	artist := song.PrimaryArtists
	if artist == "" {
		artist = song.Singers
	}

	album := html.UnescapeString(song.Album)
	if album == "" {
		album = "JioSaavn"
	}

	// The API hands out thumbnail art; the CDN serves the same path at
	// higher resolutions.
	albumArt := strings.Replace(song.Image, "150x150", "500x500", 1)
	if albumArt == "" {
		albumArt = models.PlaceholderAlbumArt
	}

	duration, _ := strconv.Atoi(song.Duration)
	signal := defaultSignal

	return models.Track{
		ID:               models.TrackID{Provider: models.ProviderJioSaavn, ID: song.ID},
		Title:            html.UnescapeString(song.Song),
		Artist:           html.UnescapeString(artist),
		Album:            album,
		AlbumArt:         albumArt,
		DurationSeconds:  duration,
		StreamURL:        streamURL,
		PreviewURL:       streamURL,
		HasLyrics:        song.HasLyrics == "true",
		Instrumentalness: &signal,
	}
}
