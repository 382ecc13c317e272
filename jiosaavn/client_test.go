package jiosaavn

import (
	"testing"

	"melodex/models"
)

func TestMapTrack(t *testing.T) {
	song := songDetails{
		ID:             "5WXAlMNt",
		Song:           "Tum Hi Ho &quot;Unplugged&quot;",
		PrimaryArtists: "Arijit Singh &amp; Mithoon",
		Album:          "Aashiqui 2",
		Image:          "https://c.saavncdn.com/album/Aashiqui-2_150x150.jpg",
		Duration:       "262",
		HasLyrics:      "true",
	}

	track := mapTrack(song, "https://aac.saavncdn.com/song.mp4")

	if track.ID.Provider != models.ProviderJioSaavn {
		t.Errorf("provider = %q", track.ID.Provider)
	}
	if track.Title != `Tum Hi Ho "Unplugged"` {
		t.Errorf("title = %q, entities should be decoded", track.Title)
	}
	if track.Artist != "Arijit Singh & Mithoon" {
		t.Errorf("artist = %q", track.Artist)
	}
	if track.AlbumArt != "https://c.saavncdn.com/album/Aashiqui-2_500x500.jpg" {
		t.Errorf("album art = %q, want 500x500 upgrade", track.AlbumArt)
	}
	if track.DurationSeconds != 262 {
		t.Errorf("duration = %d", track.DurationSeconds)
	}
	if !track.HasLyrics {
		t.Error("has_lyrics flag should carry through")
	}
	if !track.ID.Provider.RequiresProxy() {
		t.Error("jiosaavn tracks must be marked for proxied playback")
	}
}

func TestMapTrackFallbacks(t *testing.T) {
	song := songDetails{
		ID:       "x1",
		Song:     "Raag Bhairavi",
		Singers:  "Hariprasad Chaurasia",
		Duration: "not-a-number",
	}

	track := mapTrack(song, "")

	if track.Artist != "Hariprasad Chaurasia" {
		t.Errorf("artist should fall back to singers, got %q", track.Artist)
	}
	if track.Album != "JioSaavn" {
		t.Errorf("album = %q, want JioSaavn default", track.Album)
	}
	if track.AlbumArt != models.PlaceholderAlbumArt {
		t.Errorf("album art = %q, want placeholder", track.AlbumArt)
	}
	if track.DurationSeconds != 0 {
		t.Errorf("duration = %d, want 0 for unparseable input", track.DurationSeconds)
	}
	if track.Playable() {
		t.Error("track with no stream should not be playable")
	}
}
