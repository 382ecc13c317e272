// Package media implements the playback primitive behind the engine: an
// HTTP mp3 source decoded with beep and rendered through the speaker.
package media

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	log "github.com/sirupsen/logrus"

	"melodex/player"
)

// Ensure Handle implements the engine's boundary at compile time.
var _ player.MediaHandle = (*Handle)(nil)

// Handle downloads a stream fully before decoding. Buffering the whole
// file trades memory for a seekable source and reliable duration; decoding
// straight off the socket made seeks impossible and stalled on slow CDNs.
type Handle struct {
	mu         sync.Mutex
	events     chan player.Event
	httpClient *http.Client

	streamer   beep.StreamSeekCloser
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	sampleRate beep.SampleRate

	gain    float64
	loadSeq int
	// drained is set when the current source finishes; replaying it needs
	// the speaker queue re-armed, not just an unpause.
	drained bool
	// pendingPlay holds a Play settlement issued before the source was
	// ready; a newer Load settles it with ErrAborted.
	pendingPlay chan error
	// drainCh carries drain notifications out of the speaker callback.
	// The callback runs on the speaker goroutine with its mutex held, so
	// it must never touch mu itself; the tick loop picks these up.
	drainCh chan int

	done   chan struct{}
	closed bool
	logger *log.Entry
}

func NewHandle() *Handle {
	h := &Handle{
		events:     make(chan player.Event, 32),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		drainCh:    make(chan int, 4),
		gain:       0.7,
		done:       make(chan struct{}),
		logger:     log.WithFields(log.Fields{"module": "media"}),
	}
	go h.tick()
	return h
}

func (h *Handle) Events() <-chan player.Event { return h.events }

// Load replaces the current source. The fetch and decode run off the
// caller's goroutine; EventReady or EventError follows. A Load supersedes
// any earlier load still in flight.
func (h *Handle) Load(url string) {
	h.mu.Lock()
	h.loadSeq++
	seq := h.loadSeq
	if h.pendingPlay != nil {
		h.pendingPlay <- player.ErrAborted
		h.pendingPlay = nil
	}
	h.stopLocked()
	h.mu.Unlock()

	go func() {
		streamer, format, err := h.fetch(url)
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.loadSeq != seq || h.closed {
			if streamer != nil {
				streamer.Close()
			}
			return // superseded while downloading
		}
		if err != nil {
			h.logger.Errorf("loading %s: %v", url, err)
			h.emit(player.Event{Type: player.EventError, Err: err})
			return
		}

		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			h.emit(player.Event{Type: player.EventError, Err: fmt.Errorf("speaker init: %w", err)})
			streamer.Close()
			return
		}

		h.streamer = streamer
		h.sampleRate = format.SampleRate
		h.ctrl = &beep.Ctrl{Streamer: streamer, Paused: true}
		h.volume = &effects.Volume{
			Streamer: h.ctrl,
			Base:     2,
			Volume:   h.gain*2 - 1,
			Silent:   h.gain == 0,
		}
		h.drained = false
		h.armSpeaker(seq)

		h.emit(player.Event{
			Type:     player.EventReady,
			Duration: format.SampleRate.D(streamer.Len()).Seconds(),
		})
		if h.pendingPlay != nil {
			h.ctrl.Paused = false
			h.pendingPlay <- nil
			h.pendingPlay = nil
		}
	}()
}

func (h *Handle) fetch(url string) (beep.StreamSeekCloser, beep.Format, error) {
	resp, err := h.httpClient.Get(url)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("fetching stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, fmt.Errorf("stream returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("buffering stream: %w", err)
	}
	h.logger.Debugf("buffered %.2f MB", float64(len(data))/(1024*1024))

	streamer, format, err := mp3.Decode(nopSeekCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decoding mp3: %w", err)
	}
	return streamer, format, nil
}

// armSpeaker queues the current source for playback. The drain callback
// fires inside the speaker's mixing loop while the speaker mutex is held;
// taking mu there would invert the lock order against tick and the
// transport methods, so it only hands the sequence number off. Caller
// holds mu.
func (h *Handle) armSpeaker(seq int) {
	speaker.Play(beep.Seq(h.volume, beep.Callback(func() {
		select {
		case h.drainCh <- seq:
		default:
		}
	})))
}

// onDrained marks the source finished and reports Ended, unless a newer
// load has replaced it.
func (h *Handle) onDrained(seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loadSeq != seq || h.closed {
		return
	}
	h.drained = true
	h.emit(player.Event{Type: player.EventEnded})
}

// Play settles immediately when a source is loaded; before that the
// settlement stays open until the load finishes or a newer one aborts it.
func (h *Handle) Play() <-chan error {
	ch := make(chan error, 1)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl == nil {
		if h.pendingPlay != nil {
			h.pendingPlay <- player.ErrAborted
		}
		h.pendingPlay = ch
		return ch
	}

	if h.drained {
		// The speaker queue ran out when the track finished; replaying
		// (after a Seek back) needs the source queued again.
		h.drained = false
		h.armSpeaker(h.loadSeq)
	}
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	ch <- nil
	return ch
}

func (h *Handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil {
		return
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
}

func (h *Handle) Seek(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return
	}
	speaker.Lock()
	defer speaker.Unlock()
	if err := h.streamer.Seek(h.sampleRate.N(time.Duration(seconds * float64(time.Second)))); err != nil {
		h.logger.Warnf("seek to %.1fs: %v", seconds, err)
	}
}

func (h *Handle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gain = v
	if h.volume == nil {
		return
	}
	speaker.Lock()
	h.volume.Volume = v*2 - 1
	h.volume.Silent = v == 0
	speaker.Unlock()
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	h.stopLocked()
	close(h.events)
	return nil
}

// stopLocked tears down the current source. Caller holds mu.
func (h *Handle) stopLocked() {
	if h.streamer == nil {
		return
	}
	speaker.Clear()
	h.streamer.Close()
	h.streamer = nil
	h.ctrl = nil
	h.volume = nil
}

// tick reports the playback clock while audio is rolling and delivers
// drain notifications handed off by the speaker callback.
func (h *Handle) tick() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case seq := <-h.drainCh:
			h.onDrained(seq)
		case <-ticker.C:
			h.mu.Lock()
			if h.streamer != nil && h.ctrl != nil && !h.ctrl.Paused {
				speaker.Lock()
				pos := h.streamer.Position()
				length := h.streamer.Len()
				speaker.Unlock()
				h.emit(player.Event{
					Type:     player.EventTimeUpdate,
					Position: h.sampleRate.D(pos).Seconds(),
					Duration: h.sampleRate.D(length).Seconds(),
				})
			}
			h.mu.Unlock()
		}
	}
}

// emit drops events when the consumer lags; the clock will catch up on the
// next tick. Caller holds mu.
func (h *Handle) emit(ev player.Event) {
	select {
	case h.events <- ev:
	default:
	}
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
