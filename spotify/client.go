// Package spotify adapts the Spotify Web API to the common track model.
// Spotify never exposes full streams over client credentials, so every
// result carries a 30-second preview URL and no stream URL.
package spotify

import (
	"context"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"melodex/config"
	"melodex/models"
)

type Client struct {
	api *spotifyclient.Client

	// defaultInstrumentalness stands in when the audio-features endpoint
	// fails or omits a track.
	defaultInstrumentalness float64

	logger *log.Entry
}

func NewClient(ctx context.Context) (*Client, error) {
	creds := &clientcredentials.Config{
		ClientID:     config.Config.Spotify.ClientID,
		ClientSecret: config.Config.Spotify.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := creds.Token(ctx)
	if err != nil {
		sentry.CaptureException(err)
		return nil, err
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &Client{
		api:                     spotifyclient.New(httpClient),
		defaultInstrumentalness: config.Config.Spotify.DefaultInstrumentalness,
		logger:                  log.WithFields(log.Fields{"module": "spotify"}),
	}, nil
}

func (c *Client) Name() models.Provider { return models.ProviderSpotify }

// Search returns preview-playable tracks. Tracks without a preview URL
// are dropped rather than surfaced as unplayable entries.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "spotify.search")
	span.Description = "Search Spotify API"
	span.SetTag("query", query)
	defer span.Finish()

	results, err := c.api.Search(ctx, query, spotifyclient.SearchTypeTrack, spotifyclient.Limit(limit))
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	tracks := make([]models.Track, 0, limit)
	ids := make([]spotifyclient.ID, 0, limit)
	if results.Tracks != nil {
		for _, item := range results.Tracks.Tracks {
			if item.PreviewURL == "" {
				continue
			}
			tracks = append(tracks, mapTrack(item))
			ids = append(ids, item.ID)
		}
	}

	c.attachInstrumentalness(ctx, tracks, ids)

	c.logger.Debugf("Found %d previewable tracks for '%s'", len(tracks), query)
	span.Status = sentry.SpanStatusOK
	return tracks, nil
}

// attachInstrumentalness batches one audio-features call for the whole
// result page. A failed call degrades to the configured default instead of
// failing the search.
func (c *Client) attachInstrumentalness(ctx context.Context, tracks []models.Track, ids []spotifyclient.ID) {
	for i := range tracks {
		v := c.defaultInstrumentalness
		tracks[i].Instrumentalness = &v
	}
	if len(ids) == 0 {
		return
	}

	span := sentry.StartSpan(ctx, "spotify.audio_features")
	span.Description = "Get audio features from Spotify API"
	defer span.Finish()

	features, err := c.api.GetAudioFeatures(ctx, ids...)
	if err != nil {
		c.logger.Warnf("Audio features unavailable, using default %.2f: %v", c.defaultInstrumentalness, err)
		span.Status = sentry.SpanStatusInternalError
		return
	}

	byID := make(map[spotifyclient.ID]float64, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		byID[f.ID] = float64(f.Instrumentalness)
	}
	for i := range tracks {
		if v, ok := byID[spotifyclient.ID(tracks[i].ID.ID)]; ok {
			tracks[i].Instrumentalness = &v
		}
	}
	span.Status = sentry.SpanStatusOK
}

func mapTrack(item spotifyclient.FullTrack) models.Track {
	artists := make([]string, 0, len(item.Artists))
	for _, artist := range item.Artists {
		artists = append(artists, artist.Name)
	}

	albumArt := models.PlaceholderAlbumArt
	if len(item.Album.Images) > 0 {
		albumArt = item.Album.Images[0].URL
	}

	return models.Track{
		ID:              models.TrackID{Provider: models.ProviderSpotify, ID: string(item.ID)},
		Title:           item.Name,
		Artist:          strings.Join(artists, ", "),
		Album:           item.Album.Name,
		AlbumArt:        albumArt,
		DurationSeconds: int(item.Duration) / 1000,
		PreviewURL:      item.PreviewURL,
	}
}
