// Package resolver decides which URL to actually fetch for a track and
// whether it must be routed through the same-origin proxy.
package resolver

import (
	"errors"
	"net/url"

	"melodex/models"
)

// ErrNotPlayable means the track carries neither a stream nor a preview
// URL. Callers must not attempt playback.
var ErrNotPlayable = errors.New("track has no playable stream")

// Resolution is the playback decision for one track.
type Resolution struct {
	URL           string `json:"url"`
	RequiresProxy bool   `json:"requiresProxy"`
}

// Resolver rewrites stream URLs against a proxy endpoint. It holds no
// other state and is safe for concurrent use.
type Resolver struct {
	proxyPath string
}

// New returns a Resolver that routes credentialed streams through
// proxyPath, e.g. "/api/proxy/audio".
func New(proxyPath string) *Resolver {
	return &Resolver{proxyPath: proxyPath}
}

// Resolve applies the resolution policy in order: proxied stream for
// providers with cross-origin restrictions, then direct stream, then
// preview. Previews are always directly fetchable.
func (r *Resolver) Resolve(track models.Track) (Resolution, error) {
	switch {
	case track.ID.Provider.RequiresProxy() && track.StreamURL != "":
		return Resolution{
			URL:           r.proxyPath + "?url=" + url.QueryEscape(track.StreamURL),
			RequiresProxy: true,
		}, nil
	case track.StreamURL != "":
		return Resolution{URL: track.StreamURL}, nil
	case track.PreviewURL != "":
		return Resolution{URL: track.PreviewURL}, nil
	}
	return Resolution{}, ErrNotPlayable
}
