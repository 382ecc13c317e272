package classifier

import (
	"testing"

	"melodex/models"
)

func TestIsInstrumental(t *testing.T) {
	tests := []struct {
		name  string
		track models.Track
		want  bool
	}{
		{
			name:  "instrumental in title wins",
			track: models.Track{Title: "Relaxing Piano Instrumental Study Music"},
			want:  true,
		},
		{
			name: "instrumental in title beats low signal",
			track: models.Track{
				Title:            "Rainy Day Instrumental",
				Instrumentalness: models.Signal(0.1),
			},
			want: true,
		},
		{
			name:  "vocal keyword in title",
			track: models.Track{Title: "Heartbreak (feat. Singer) - Official Video"},
			want:  false,
		},
		{
			name: "vocal keyword in album",
			track: models.Track{
				Title: "Moonlight Sonata",
				Album: "Live Performance at the Roxy",
			},
			want: false,
		},
		{
			name: "lyrics flag excludes",
			track: models.Track{
				Title:     "Evening Raga on Guitar",
				HasLyrics: true,
			},
			want: false,
		},
		{
			name: "low signal excludes",
			track: models.Track{
				Title:            "Summer Nights",
				Instrumentalness: models.Signal(0.2),
			},
			want: false,
		},
		{
			name: "high signal still needs a keyword",
			track: models.Track{
				Title:            "Summer Nights",
				Instrumentalness: models.Signal(0.9),
			},
			want: false,
		},
		{
			name:  "instrumental keyword without signal",
			track: models.Track{Title: "Deep Focus Beats"},
			want:  true,
		},
		{
			name: "keyword in artist",
			track: models.Track{
				Title:  "Opus 35",
				Artist: "City Orchestra",
			},
			want: true,
		},
		{
			name:  "plain title no keywords",
			track: models.Track{Title: "Summer Nights"},
			want:  false,
		},
		{
			name:  "empty track",
			track: models.Track{},
			want:  false,
		},
		{
			name:  "case insensitive",
			track: models.Track{Title: "LOFI CHILL MIX"},
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInstrumental(tt.track); got != tt.want {
				t.Errorf("IsInstrumental(%q) = %v; want %v", tt.track.Title, got, tt.want)
			}
		})
	}
}

func TestIsInstrumentalDeterministic(t *testing.T) {
	track := models.Track{
		Title:            "Deep Focus Beats",
		Artist:           "Nocturne",
		Instrumentalness: models.Signal(0.7),
	}
	first := IsInstrumental(track)
	for i := 0; i < 100; i++ {
		if IsInstrumental(track) != first {
			t.Fatal("verdict changed between calls for identical input")
		}
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	tracks := []models.Track{
		{ID: models.TrackID{Provider: models.ProviderJamendo, ID: "1"}, Title: "Piano Dawn"},
		{ID: models.TrackID{Provider: models.ProviderJamendo, ID: "2"}, Title: "Karaoke Night"},
		{ID: models.TrackID{Provider: models.ProviderJamendo, ID: "3"}, Title: "Ambient Drift"},
		{ID: models.TrackID{Provider: models.ProviderJamendo, ID: "4"}, Title: "Summer Nights"},
		{ID: models.TrackID{Provider: models.ProviderJamendo, ID: "5"}, Title: "Lofi Study Session"},
	}

	got := Filter(tracks)
	wantIDs := []string{"1", "3", "5"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Filter returned %d tracks; want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID.ID != id {
			t.Errorf("Filter[%d].ID = %s; want %s", i, got[i].ID.ID, id)
		}
	}
}

func TestFilterEmpty(t *testing.T) {
	if got := Filter(nil); len(got) != 0 {
		t.Errorf("Filter(nil) = %v; want empty", got)
	}
}
