// Package lyrics looks up song lyrics on lrclib.net. The discovery feed
// also uses a lookup hit as a vocal signal for tracks whose provider
// reports neither a lyrics flag nor an instrumentalness score.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://lrclib.net"

var timestampPattern = regexp.MustCompile(`\[\d+:\d+\.\d+\]`)

type SearchResult struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	AlbumName    string `json:"albumName"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search returns the lyrics text and a "Title — Artist" attribution for
// the best match. Both are empty when nothing matches.
func (c *Client) Search(ctx context.Context, title, artist string) (string, string, error) {
	query := strings.TrimSpace(title + " " + artist)
	u := fmt.Sprintf("%s/api/search?q=%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("lrclib API returned status %d", resp.StatusCode)
	}

	var results []SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", "", err
	}
	if len(results) == 0 {
		return "", "", nil
	}

	res := results[0]
	lyrics := res.PlainLyrics
	if lyrics == "" && res.SyncedLyrics != "" {
		lyrics = strings.TrimSpace(timestampPattern.ReplaceAllString(res.SyncedLyrics, ""))
	}

	trackInfo := res.TrackName + " — " + res.ArtistName
	return lyrics, trackInfo, nil
}

// Exists reports whether any lyrics are published for the song. Errors
// count as "unknown" and report false.
func (c *Client) Exists(ctx context.Context, title, artist string) bool {
	lyrics, _, err := c.Search(ctx, title, artist)
	return err == nil && lyrics != ""
}
