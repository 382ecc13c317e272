// Package player owns the single "now playing" slot: queue, transport
// controls, and the suspension/resume protocol around the media handle.
package player

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"melodex/models"
	"melodex/resolver"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusErrored Status = "errored"
)

// ErrEngineActive is returned when a second engine is constructed while
// one is live. The media handle is a single owned resource.
var ErrEngineActive = errors.New("a playback engine is already active")

// restartThreshold is the position past which "previous" restarts the
// current track instead of moving back through the queue.
const restartThreshold = 3.0

// Session is the playback state owned exclusively by the engine. Snapshots
// returned by Engine.Session are copies.
type Session struct {
	Queue           []models.Track `json:"queue"`
	CurrentIndex    int            `json:"currentIndex"` // -1 when queue is empty
	Status          Status         `json:"status"`
	PositionSeconds float64        `json:"position"`
	DurationSeconds float64        `json:"duration"`
	Volume          float64        `json:"volume"`
	Muted           bool           `json:"muted"`
	RepeatOne       bool           `json:"repeatOne"`
	Shuffle         bool           `json:"shuffle"`
	LastError       string         `json:"lastError,omitempty"`
}

// CurrentTrack returns the track CurrentIndex refers to, if any.
func (s Session) CurrentTrack() (models.Track, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Queue) {
		return models.Track{}, false
	}
	return s.Queue[s.CurrentIndex], true
}

// inflight tracks one pending play operation. done is closed when the
// handle settles it.
type inflight struct {
	done chan struct{}
	err  error
}

// Engine is the playback state machine. It is a reducer over media-handle
// events plus explicit user commands; all mutation happens under mu.
type Engine struct {
	mu      sync.Mutex
	handle  MediaHandle
	resolve *resolver.Resolver
	session Session

	// loadSeq is bumped on every load; late-arriving completions of a
	// stale load compare against it and are ignored.
	loadSeq uint64
	pending *inflight

	rng    *rand.Rand
	logger *log.Entry
	done   chan struct{}
	closed bool
}

var engineActive atomic.Bool

// NewEngine wires the engine to its media handle and stream resolver.
// Only one engine may be live per process; Close releases the slot.
func NewEngine(handle MediaHandle, res *resolver.Resolver) (*Engine, error) {
	if !engineActive.CompareAndSwap(false, true) {
		return nil, ErrEngineActive
	}
	e := &Engine{
		handle:  handle,
		resolve: res,
		session: Session{
			CurrentIndex: -1,
			Status:       StatusIdle,
			Volume:       0.7,
		},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: log.WithFields(log.Fields{"module": "player"}),
		done:   make(chan struct{}),
	}
	go e.listen()
	return e, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.done)
	engineActive.Store(false)
	return e.handle.Close()
}

// Session returns a snapshot of the current playback state.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.session
	snapshot.Queue = append([]models.Track(nil), e.session.Queue...)
	return snapshot
}

// Play is the selection entry point. Selecting the track already marked
// current toggles pause/resume instead of reloading: reloading the same
// stream is wasted work and causes an audible glitch. Otherwise the queue
// is replaced (when one is given) and the track is loaded.
func (e *Engine) Play(track models.Track, queue []models.Track) error {
	e.mu.Lock()
	current, ok := e.session.CurrentTrack()
	if ok && current.ID == track.ID && e.session.Status != StatusIdle && e.session.Status != StatusErrored {
		e.mu.Unlock()
		e.TogglePlayPause()
		return nil
	}

	if len(queue) > 0 {
		e.session.Queue = append([]models.Track(nil), queue...)
	}
	index := -1
	for i, t := range e.session.Queue {
		if t.ID == track.ID {
			index = i
			break
		}
	}
	if index == -1 {
		e.session.Queue = []models.Track{track}
		index = 0
	}
	e.session.CurrentIndex = index
	e.mu.Unlock()

	return e.load(track)
}

// load resolves the track and starts fetching it. Resolution failure goes
// to Errored without ever entering Loading.
func (e *Engine) load(track models.Track) error {
	res, err := e.resolve.Resolve(track)
	if err != nil {
		e.logger.Warnf("cannot play %q: %v", track.Title, err)
		e.mu.Lock()
		e.session.Status = StatusErrored
		e.session.LastError = "This track cannot be played. No audio stream available."
		e.mu.Unlock()
		return err
	}

	e.logger.Debugf("loading %q from %s (proxy=%t)", track.Title, track.ID.Provider, res.RequiresProxy)

	e.mu.Lock()
	e.loadSeq++
	e.session.Status = StatusLoading
	e.session.PositionSeconds = 0
	e.session.DurationSeconds = float64(track.DurationSeconds)
	e.session.LastError = ""
	e.mu.Unlock()

	e.handle.Load(res.URL)
	return nil
}

// TogglePlayPause pauses a playing track or starts/resumes a paused one.
// No-op while Loading. If a play operation is still settling, it waits for
// the settlement before issuing the opposing command.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	if e.session.Status == StatusLoading {
		e.mu.Unlock()
		return
	}
	pending := e.pending
	e.mu.Unlock()

	if pending != nil {
		<-pending.done
	}

	e.mu.Lock()
	switch e.session.Status {
	case StatusPlaying:
		e.handle.Pause()
		e.session.Status = StatusPaused
		e.mu.Unlock()
	case StatusPaused, StatusReady:
		seq := e.loadSeq
		e.mu.Unlock()
		e.startPlayback(seq)
	default:
		e.mu.Unlock()
	}
}

// startPlayback issues an asynchronous play for load generation seq and
// records its settlement. A settlement for a superseded generation is
// ignored; an ErrAborted settlement is swallowed entirely.
func (e *Engine) startPlayback(seq uint64) {
	e.mu.Lock()
	if e.loadSeq != seq {
		e.mu.Unlock()
		return
	}
	settle := e.handle.Play()
	fl := &inflight{done: make(chan struct{})}
	e.pending = fl
	e.mu.Unlock()

	go func() {
		err := <-settle
		e.mu.Lock()
		defer e.mu.Unlock()

		fl.err = err
		close(fl.done)
		if e.pending == fl {
			e.pending = nil
		}
		if e.loadSeq != seq {
			return // stale load, a newer track owns the handle now
		}
		if err != nil {
			if errors.Is(err, ErrAborted) {
				e.logger.Trace("play superseded by newer request")
				return
			}
			e.logger.Errorf("playback failed: %v", err)
			sentry.CaptureException(err)
			e.session.Status = StatusErrored
			e.session.LastError = "Something went wrong while playing this track."
			return
		}
		e.session.Status = StatusPlaying
	}()
}

// PlayNext advances one position through the queue, wrapping at the end.
// A manual skip always moves in queue order; shuffle only randomizes the
// automatic advance when a track ends.
func (e *Engine) PlayNext() error {
	return e.advance(false)
}

func (e *Engine) advance(shuffled bool) error {
	e.mu.Lock()
	if len(e.session.Queue) == 0 {
		e.mu.Unlock()
		return nil
	}
	next := e.nextIndex(shuffled)
	e.session.CurrentIndex = next
	track := e.session.Queue[next]
	e.mu.Unlock()

	return e.load(track)
}

// nextIndex must be called with mu held. With shuffle honored the next
// index is random, excluding the current track when the queue has more
// than one entry.
func (e *Engine) nextIndex(shuffled bool) int {
	n := len(e.session.Queue)
	if shuffled && e.session.Shuffle && n > 1 {
		next := e.rng.Intn(n - 1)
		if next >= e.session.CurrentIndex {
			next++
		}
		return next
	}
	return (e.session.CurrentIndex + 1) % n
}

// PlayPrevious restarts the current track when more than three seconds in,
// otherwise retreats one queue position, wrapping at the front.
func (e *Engine) PlayPrevious() error {
	e.mu.Lock()
	if len(e.session.Queue) == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.session.PositionSeconds > restartThreshold {
		e.session.PositionSeconds = 0
		e.mu.Unlock()
		e.handle.Seek(0)
		return nil
	}
	n := len(e.session.Queue)
	prev := (e.session.CurrentIndex - 1 + n) % n
	e.session.CurrentIndex = prev
	track := e.session.Queue[prev]
	e.mu.Unlock()

	return e.load(track)
}

// SeekTo moves the clock to t seconds. Non-finite or out-of-range targets
// are ignored.
func (e *Engine) SeekTo(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 || t > e.session.DurationSeconds {
		return
	}
	e.handle.Seek(t)
	e.session.PositionSeconds = t
}

// SetVolume stores v clamped to [0,1] and applies the effective output
// volume, which is zero while muted.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.session.Volume = v
	e.applyVolume()
}

// ToggleMute flips mute without touching the stored volume, so unmuting
// restores it exactly.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Muted = !e.session.Muted
	e.applyVolume()
}

// applyVolume must be called with mu held.
func (e *Engine) applyVolume() {
	effective := e.session.Volume
	if e.session.Muted {
		effective = 0
	}
	e.handle.SetVolume(effective)
}

func (e *Engine) ToggleRepeatOne() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.RepeatOne = !e.session.RepeatOne
}

func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Shuffle = !e.session.Shuffle
}

// listen consumes media handle events until the engine is closed.
func (e *Engine) listen() {
	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-e.handle.Events():
			if !ok {
				return
			}
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) handleEvent(ev Event) {
	switch ev.Type {
	case EventReady:
		// Ready is not a resting state: it immediately triggers play.
		e.mu.Lock()
		if e.session.Status != StatusLoading {
			e.mu.Unlock()
			return
		}
		e.session.Status = StatusReady
		if ev.Duration > 0 {
			e.session.DurationSeconds = ev.Duration
		}
		seq := e.loadSeq
		e.mu.Unlock()
		e.startPlayback(seq)

	case EventTimeUpdate:
		e.mu.Lock()
		e.session.PositionSeconds = ev.Position
		if ev.Duration > 0 {
			e.session.DurationSeconds = ev.Duration
		}
		e.mu.Unlock()

	case EventEnded:
		e.mu.Lock()
		if e.session.RepeatOne {
			e.session.PositionSeconds = 0
			seq := e.loadSeq
			e.mu.Unlock()
			e.handle.Seek(0)
			e.startPlayback(seq)
			return
		}
		e.mu.Unlock()
		if err := e.advance(true); err != nil {
			e.logger.Warnf("advancing after track end: %v", err)
		}

	case EventError:
		e.logger.Errorf("media error: %v", ev.Err)
		if ev.Err != nil {
			sentry.CaptureException(ev.Err)
		}
		e.mu.Lock()
		e.session.Status = StatusErrored
		e.session.LastError = "Something went wrong while playing this track."
		e.mu.Unlock()
	}
}
