// Package classifier decides whether a track is instrumental from its
// text metadata and optional provider signals. The verdict is a heuristic:
// false positives and negatives are expected, determinism is the contract.
package classifier

import (
	"strings"

	"melodex/models"
)

// Keywords that indicate a track likely has vocals (excluded).
var vocalKeywords = []string{
	"lyrics",
	"karaoke",
	"vocal",
	"singing",
	"song version",
	"official video",
	"music video",
	"ft.",
	"feat.",
	"featuring",
	"remix with vocals",
	"live performance",
	"concert",
}

// Keywords that indicate instrumental music (included).
var instrumentalKeywords = []string{
	"instrumental",
	"piano",
	"guitar",
	"violin",
	"saxophone",
	"flute",
	"drum",
	"orchestra",
	"classical",
	"jazz",
	"lofi",
	"beats",
	"ambient",
	"meditation",
	"relaxing",
	"study music",
	"background music",
	"bgm",
	"ost",
	"soundtrack",
	"acoustic",
	"cover instrumental",
}

// signalThreshold is the instrumentalness score below which a track is
// treated as vocal when no keyword decided first.
const signalThreshold = 0.5

// IsInstrumental applies the decision policy in precedence order, first
// match wins:
//
//  1. title contains "instrumental"           -> true
//  2. combined text has a vocal keyword       -> false
//  3. lyrics-present metadata flag            -> false
//  4. instrumentalness signal below threshold -> false
//  5. combined text has an instrumental keyword, else false
func IsInstrumental(track models.Track) bool {
	title := strings.ToLower(track.Title)
	fullText := title + " " + strings.ToLower(track.Artist) + " " + strings.ToLower(track.Album)

	if strings.Contains(title, "instrumental") {
		return true
	}

	for _, keyword := range vocalKeywords {
		if strings.Contains(fullText, keyword) {
			return false
		}
	}

	if track.HasLyrics {
		return false
	}

	if track.Instrumentalness != nil && *track.Instrumentalness < signalThreshold {
		return false
	}

	for _, keyword := range instrumentalKeywords {
		if strings.Contains(fullText, keyword) {
			return true
		}
	}
	return false
}

// Filter returns the instrumental subset of tracks, preserving order.
func Filter(tracks []models.Track) []models.Track {
	filtered := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if IsInstrumental(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
