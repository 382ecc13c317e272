package config

import (
	"testing"

	"melodex/models"
)

func TestGetProviderTimeout(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 30},
		{"invalid", "abc", 30},
		{"zero", "0", 30},
		{"negative", "-5", 30},
		{"valid", "10", 10},
		{"default", "30", 30},
		{"capped", "600", 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROVIDER_TIMEOUT_SECONDS", tt.env)
			if got := getProviderTimeout(); got != tt.want {
				t.Errorf("getProviderTimeout() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetProviderRPS(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 5},
		{"invalid", "foo", 5},
		{"zero", "0", 5},
		{"valid", "10", 10},
		{"capped", "500", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROVIDER_RPS", tt.env)
			if got := getProviderRPS(); got != tt.want {
				t.Errorf("getProviderRPS() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetProviderOrder(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []models.Provider
	}{
		{"empty", "", models.AllProviders},
		{"garbage", "youtube,tidal", models.AllProviders},
		{"single", "jamendo", []models.Provider{models.ProviderJamendo}},
		{
			"reordered",
			"jamendo, soundcloud,spotify",
			[]models.Provider{models.ProviderJamendo, models.ProviderSoundCloud, models.ProviderSpotify},
		},
		{
			"mixed_case_and_dupes",
			"Spotify,spotify,JIOSAAVN",
			[]models.Provider{models.ProviderSpotify, models.ProviderJioSaavn},
		},
		{
			"unknown_dropped",
			"napster,jamendo",
			[]models.Provider{models.ProviderJamendo},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROVIDER_ORDER", tt.env)
			got := getProviderOrder()
			if len(got) != len(tt.want) {
				t.Fatalf("getProviderOrder() = %v; want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("getProviderOrder()[%d] = %s; want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetDefaultInstrumentalness(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want float64
	}{
		{"empty", "", 0.3},
		{"invalid", "abc", 0.3},
		{"negative", "-0.5", 0.3},
		{"valid", "0.5", 0.5},
		{"zero_allowed", "0", 0},
		{"clamped", "1.5", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPOTIFY_DEFAULT_INSTRUMENTALNESS", tt.env)
			if got := getDefaultInstrumentalness(); got != tt.want {
				t.Errorf("getDefaultInstrumentalness() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestGetJioSaavnBitrate(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 320},
		{"invalid", "fast", 320},
		{"unsupported_tier", "128", 320},
		{"low", "96", 96},
		{"mid", "160", 160},
		{"high", "320", 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JIOSAAVN_BITRATE", tt.env)
			if got := getJioSaavnBitrate(); got != tt.want {
				t.Errorf("getJioSaavnBitrate() = %d; want %d", got, tt.want)
			}
		})
	}
}
