package config

import (
	"os"
	"strconv"
	"strings"

	"melodex/models"
)

type ConfigStruct struct {
	Options    Options
	Database   DatabaseConfig
	Auth       AuthConfig
	Spotify    SpotifyConfig
	Jamendo    JamendoConfig
	SoundCloud SoundCloudConfig
	JioSaavn   JioSaavnConfig
	Gemini     GeminiConfig
}

type Options struct {
	Port            string
	ProviderTimeout int // per-adapter search timeout in seconds
	ProviderRPS     int // per-adapter rate limit, requests per second
	ProviderOrder   []models.Provider
	SearchLimit     int
	PlayerEnabled   bool
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Enabled      bool
	// DefaultInstrumentalness is assigned when the audio-features endpoint
	// is unavailable for a track. Kept configurable rather than a silent
	// constant.
	DefaultInstrumentalness float64
}

type JamendoConfig struct {
	ClientID string
	Enabled  bool
}

type SoundCloudConfig struct {
	// ClientID may be left empty, in which case the adapter discovers one
	// by scraping the SoundCloud web app's script bundles.
	ClientID string
	Enabled  bool
}

type JioSaavnConfig struct {
	Enabled bool
	Bitrate int
}

type GeminiConfig struct {
	Enabled bool
	APIKey  string
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Options: Options{
			Port:            os.Getenv("PORT"),
			ProviderTimeout: getProviderTimeout(),
			ProviderRPS:     getProviderRPS(),
			ProviderOrder:   getProviderOrder(),
			SearchLimit:     getSearchLimit(),
			PlayerEnabled:   os.Getenv("PLAYER_ENABLED") == "true",
		},
		Database: DatabaseConfig{
			Path: os.Getenv("DB_PATH"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			TokenTTLHours: getTokenTTLHours(),
		},
		Spotify: SpotifyConfig{
			ClientID:                os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret:            os.Getenv("SPOTIFY_CLIENT_SECRET"),
			Enabled:                 os.Getenv("SPOTIFY_ENABLED") == "true",
			DefaultInstrumentalness: getDefaultInstrumentalness(),
		},
		Jamendo: JamendoConfig{
			ClientID: os.Getenv("JAMENDO_CLIENT_ID"),
			Enabled:  os.Getenv("JAMENDO_ENABLED") == "true",
		},
		SoundCloud: SoundCloudConfig{
			ClientID: os.Getenv("SOUNDCLOUD_CLIENT_ID"),
			Enabled:  os.Getenv("SOUNDCLOUD_ENABLED") == "true",
		},
		JioSaavn: JioSaavnConfig{
			Enabled: os.Getenv("JIOSAAVN_ENABLED") == "true",
			Bitrate: getJioSaavnBitrate(),
		},
		Gemini: GeminiConfig{
			Enabled: os.Getenv("GEMINI_ENABLED") == "true",
			APIKey:  os.Getenv("GEMINI_API_KEY"),
		},
	}

	Config = config
}

func getProviderTimeout() int {
	timeoutStr := os.Getenv("PROVIDER_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		return 30
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 30
	}
	if timeout > 120 {
		return 120 // anything longer just holds the query open
	}
	return timeout
}

func getProviderRPS() int {
	rpsStr := os.Getenv("PROVIDER_RPS")
	if rpsStr == "" {
		return 5
	}
	rps, err := strconv.Atoi(rpsStr)
	if err != nil || rps <= 0 {
		return 5
	}
	if rps > 50 {
		return 50
	}
	return rps
}

// getProviderOrder parses PROVIDER_ORDER, a comma-separated provider list.
// Unknown names and duplicates are dropped; an empty or fully invalid value
// falls back to the default priority order.
func getProviderOrder() []models.Provider {
	orderStr := os.Getenv("PROVIDER_ORDER")
	if orderStr == "" {
		return models.AllProviders
	}

	var order []models.Provider
	seen := make(map[models.Provider]bool)
	for _, part := range strings.Split(orderStr, ",") {
		p := models.Provider(strings.ToLower(strings.TrimSpace(part)))
		if p.Valid() && !seen[p] {
			order = append(order, p)
			seen[p] = true
		}
	}
	if len(order) == 0 {
		return models.AllProviders
	}
	return order
}

func getSearchLimit() int {
	limitStr := os.Getenv("SEARCH_LIMIT")
	if limitStr == "" {
		return 10
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50 // cap for API and performance reasons
	}
	return limit
}

func getTokenTTLHours() int {
	ttlStr := os.Getenv("TOKEN_TTL_HOURS")
	if ttlStr == "" {
		return 720 // 30 days
	}
	ttl, err := strconv.Atoi(ttlStr)
	if err != nil || ttl <= 0 {
		return 720
	}
	return ttl
}

func getDefaultInstrumentalness() float64 {
	valStr := os.Getenv("SPOTIFY_DEFAULT_INSTRUMENTALNESS")
	if valStr == "" {
		return 0.3
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val < 0 {
		return 0.3
	}
	if val > 1 {
		return 1
	}
	return val
}

func getJioSaavnBitrate() int {
	bitrateStr := os.Getenv("JIOSAAVN_BITRATE")
	if bitrateStr == "" {
		return 320
	}
	bitrate, err := strconv.Atoi(bitrateStr)
	if err != nil {
		return 320
	}
	// JioSaavn only serves these tiers
	switch bitrate {
	case 96, 160, 320:
		return bitrate
	}
	return 320
}
