package soundcloud

import (
	"testing"

	"melodex/models"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rainy Mood (Instrumental)", "Rainy Mood"},
		{"Rainy Mood [INSTRUMENTAL]", "Rainy Mood"},
		{"Midnight Drive (Official Audio)", "Midnight Drive"},
		{"Midnight Drive [Official]", "Midnight Drive"},
		{"Plain Title", "Plain Title"},
		{"Stacked (Official) (Instrumental)", "Stacked"},
	}
	for _, tt := range tests {
		if got := cleanTitle(tt.in); got != tt.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLooksInstrumental(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Lofi Beats to Study To", true},
		{"Classical Piano Sonata", true},
		{"Summer Anthem ft. MC Vox", false},
		{"AMBIENT soundscape", true},
	}
	for _, tt := range tests {
		if got := looksInstrumental(tt.title); got != tt.want {
			t.Errorf("looksInstrumental(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestMapTrack(t *testing.T) {
	item := apiTrack{
		ID:         293,
		Title:      "Night Rain (Instrumental)",
		DurationMS: 245678,
	}
	item.User.Username = "cloudsmith"
	item.User.AvatarURL = "https://i1.sndcdn.com/avatars-abc-large.jpg"

	track := mapTrack(item)

	if track.ID.Provider != models.ProviderSoundCloud || track.ID.ID != "293" {
		t.Errorf("id = %+v", track.ID)
	}
	if track.Title != "Night Rain" {
		t.Errorf("title = %q, want cleaned title", track.Title)
	}
	if track.DurationSeconds != 245 {
		t.Errorf("duration = %d, want 245", track.DurationSeconds)
	}
	if track.AlbumArt != "https://i1.sndcdn.com/avatars-abc-large.jpg" {
		t.Errorf("album art should fall back to avatar, got %q", track.AlbumArt)
	}
	if track.Instrumentalness == nil || *track.Instrumentalness != keywordHitSignal {
		t.Errorf("instrumentalness = %v, want %v", track.Instrumentalness, keywordHitSignal)
	}
}

func TestClientIDPattern(t *testing.T) {
	bundle := []byte(`var t={oauth_token:null,client_id:"a3dd183a357fcff9a6943c0d65664087"};`)
	m := clientIDPattern.FindSubmatch(bundle)
	if m == nil {
		t.Fatal("pattern did not match bundle")
	}
	if string(m[1]) != "a3dd183a357fcff9a6943c0d65664087" {
		t.Errorf("extracted %q", m[1])
	}
}
