package resolver

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"melodex/models"
)

func TestResolve(t *testing.T) {
	r := New("/api/proxy/audio")

	tests := []struct {
		name      string
		track     models.Track
		wantURL   string
		wantProxy bool
		wantErr   error
	}{
		{
			name: "restricted provider routes through proxy",
			track: models.Track{
				ID:        models.TrackID{Provider: models.ProviderJioSaavn, ID: "x1"},
				StreamURL: "https://aac.saavncdn.com/song.mp4?token=a b",
			},
			wantURL:   "/api/proxy/audio?url=" + url.QueryEscape("https://aac.saavncdn.com/song.mp4?token=a b"),
			wantProxy: true,
		},
		{
			name: "open provider streams directly",
			track: models.Track{
				ID:        models.TrackID{Provider: models.ProviderJamendo, ID: "x2"},
				StreamURL: "https://mp3d.jamendo.com/track.mp3",
			},
			wantURL: "https://mp3d.jamendo.com/track.mp3",
		},
		{
			name: "preview fallback",
			track: models.Track{
				ID:         models.TrackID{Provider: models.ProviderSpotify, ID: "x3"},
				PreviewURL: "https://p.scdn.co/mp3-preview/abc",
			},
			wantURL: "https://p.scdn.co/mp3-preview/abc",
		},
		{
			name: "restricted provider with only preview stays direct",
			track: models.Track{
				ID:         models.TrackID{Provider: models.ProviderJioSaavn, ID: "x4"},
				PreviewURL: "https://aac.saavncdn.com/preview.mp4",
			},
			wantURL: "https://aac.saavncdn.com/preview.mp4",
		},
		{
			name: "no urls at all",
			track: models.Track{
				ID: models.TrackID{Provider: models.ProviderSpotify, ID: "x5"},
			},
			wantErr: ErrNotPlayable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.track)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got.URL != tt.wantURL {
				t.Errorf("Resolve().URL = %q; want %q", got.URL, tt.wantURL)
			}
			if got.RequiresProxy != tt.wantProxy {
				t.Errorf("Resolve().RequiresProxy = %v; want %v", got.RequiresProxy, tt.wantProxy)
			}
		})
	}
}

func TestResolveProxyURLRoundTrips(t *testing.T) {
	r := New("/api/proxy/audio")
	original := "https://aac.saavncdn.com/079/song.mp4?Expires=123&Signature=q+v/z="

	res, err := r.Resolve(models.Track{
		ID:        models.TrackID{Provider: models.ProviderJioSaavn, ID: "t"},
		StreamURL: original,
	})
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("proxied URL does not parse: %v", err)
	}
	if got := parsed.Query().Get("url"); got != original {
		t.Errorf("decoded url param = %q; want %q", got, original)
	}
	if !strings.HasPrefix(res.URL, "/api/proxy/audio?url=") {
		t.Errorf("proxied URL %q does not target the proxy endpoint", res.URL)
	}
}
