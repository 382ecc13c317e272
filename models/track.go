package models

// Provider identifies one external music source.
type Provider string

const (
	ProviderSpotify    Provider = "spotify"
	ProviderJamendo    Provider = "jamendo"
	ProviderSoundCloud Provider = "soundcloud"
	ProviderJioSaavn   Provider = "jiosaavn"
)

// AllProviders is the default priority order used when PROVIDER_ORDER is
// not set. It matches the concatenation order of the combined search.
var AllProviders = []Provider{
	ProviderSpotify,
	ProviderJioSaavn,
	ProviderSoundCloud,
	ProviderJamendo,
}

// RequiresProxy reports whether streams from this provider must be routed
// through the same-origin proxy. JioSaavn media hosts reject cross-origin
// requests without their auth cookies.
func (p Provider) RequiresProxy() bool {
	return p == ProviderJioSaavn
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderSpotify, ProviderJamendo, ProviderSoundCloud, ProviderJioSaavn:
		return true
	}
	return false
}

// TrackID is a provider-qualified identity. IDs are never compared across
// providers: two providers returning "the same song" are two tracks.
type TrackID struct {
	Provider Provider `json:"provider"`
	ID       string   `json:"id"`
}

func (id TrackID) String() string {
	return string(id.Provider) + ":" + id.ID
}

func (id TrackID) IsZero() bool {
	return id.ID == ""
}

// PlaceholderAlbumArt is used when a provider returns no artwork.
const PlaceholderAlbumArt = "https://via.placeholder.com/300"

// Track is the canonical, provider-agnostic song record produced by the
// adapters. Instances are immutable value objects: once a Track enters a
// queue or the database it is never mutated.
type Track struct {
	ID              TrackID  `json:"identity"`
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`
	Album           string   `json:"album"`
	AlbumArt        string   `json:"albumArt"`
	DurationSeconds int      `json:"duration"`
	StreamURL       string   `json:"streamUrl,omitempty"`
	PreviewURL      string   `json:"previewUrl,omitempty"`
	HasLyrics       bool     `json:"hasLyrics"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
}

// Playable reports whether the track carries at least one fetchable URL.
// Tracks with neither a stream nor a preview must never reach playback.
func (t Track) Playable() bool {
	return t.StreamURL != "" || t.PreviewURL != ""
}

// Signal returns a pointer to v, for populating Instrumentalness inline.
func Signal(v float64) *float64 {
	return &v
}
