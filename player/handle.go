package player

import "errors"

// ErrAborted is how a media handle settles a play operation that was
// superseded by a newer load. It reflects deliberate supersession, not a
// real fault, and the engine swallows it.
var ErrAborted = errors.New("playback superseded by a newer request")

type EventType string

const (
	EventReady      EventType = "ready"
	EventTimeUpdate EventType = "timeupdate"
	EventEnded      EventType = "ended"
	EventError      EventType = "error"
)

// Event is a typed notification from the media handle. Position and
// Duration are seconds; Duration may be zero when unknown. Err is set only
// for EventError.
type Event struct {
	Type     EventType
	Position float64
	Duration float64
	Err      error
}

// MediaHandle is the narrow playback primitive the engine is written
// against, so the concrete backing technology is swappable (and fakeable
// in tests).
//
// Load replaces the current source and begins fetching it; the handle
// emits EventReady once playback can start. Play is asynchronous: the
// returned channel settles exactly once, with nil when playback started,
// ErrAborted when a newer Load superseded it, or another error on failure.
// The position/duration clock is owned by the handle and reported through
// EventTimeUpdate; the engine never guesses it.
type MediaHandle interface {
	Load(url string)
	Play() <-chan error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	Events() <-chan Event
	Close() error
}
