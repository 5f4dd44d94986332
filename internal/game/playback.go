package game

import (
	"time"

	"songbingo/internal/domain"
)

// CancelTimer is the handle of an armed auto-pause timer.
type CancelTimer interface {
	Stop() bool
}

// TimerFactory schedules fn after d. Production wiring uses StdTimer;
// tests substitute a manual trigger.
type TimerFactory func(d time.Duration, fn func()) CancelTimer

// StdTimer backs TimerFactory with time.AfterFunc.
func StdTimer(d time.Duration, fn func()) CancelTimer {
	return time.AfterFunc(d, fn)
}

// TrackUpdate is the playback snapshot broadcast to a session room on
// every transition.
type TrackUpdate struct {
	PreviewURL string `json:"previewUrl"`
	Label      string `json:"label"`
	IsPlaying  bool   `json:"isPlaying"`
}

// Playback drives the now-playing state machine for one session:
// Idle(-1) -> Playing(i) <-> Paused(i), advancing modulo the catalog.
// Tracks with a preview resource arm an auto-pause timer; arming always
// cancels the previous timer first, so at most one is live.
//
// Methods are not self-synchronizing. The owner must serialize calls,
// including the expire callback handed out through ExpireFunc.
type Playback struct {
	catalog  []domain.Track
	preview  time.Duration
	newTimer TimerFactory

	CurrentIndex int
	IsPlaying    bool

	timer CancelTimer
	gen   uint64
}

// ExpireFunc applies a pending auto-pause under the owner's lock. The
// returned update is only valid when ok is true; a stale timer (one
// superseded by a newer admin command) reports ok=false and changes
// nothing.
type ExpireFunc func() (TrackUpdate, bool)

func NewPlayback(catalog []domain.Track, preview time.Duration, newTimer TimerFactory) *Playback {
	if newTimer == nil {
		newTimer = StdTimer
	}
	return &Playback{
		catalog:      catalog,
		preview:      preview,
		newTimer:     newTimer,
		CurrentIndex: -1,
	}
}

// Play enters Playing: from Idle it starts at index 0, from Paused it
// resumes the same index.
func (p *Playback) Play(onExpire func(ExpireFunc)) TrackUpdate {
	if p.CurrentIndex < 0 {
		p.CurrentIndex = 0
	}
	p.IsPlaying = true
	p.arm(onExpire)
	return p.Update()
}

// Pause cancels the timer and holds the current index.
func (p *Playback) Pause() TrackUpdate {
	p.disarm()
	p.IsPlaying = false
	return p.Update()
}

// Next advances to the following track, wrapping to the start, and
// enters Playing.
func (p *Playback) Next(onExpire func(ExpireFunc)) TrackUpdate {
	p.CurrentIndex = (p.CurrentIndex + 1) % len(p.catalog)
	p.IsPlaying = true
	p.arm(onExpire)
	return p.Update()
}

// Stop releases the timer on session teardown. Safe to call twice.
func (p *Playback) Stop() {
	p.disarm()
	p.IsPlaying = false
}

// ActiveTrack returns the track marks are validated against.
func (p *Playback) ActiveTrack() (domain.Track, bool) {
	if p.CurrentIndex < 0 || p.CurrentIndex >= len(p.catalog) {
		return domain.Track{}, false
	}
	return p.catalog[p.CurrentIndex], true
}

// Update snapshots the current state for broadcast.
func (p *Playback) Update() TrackUpdate {
	t, ok := p.ActiveTrack()
	if !ok {
		return TrackUpdate{IsPlaying: p.IsPlaying}
	}
	return TrackUpdate{
		PreviewURL: t.PreviewURL,
		Label:      t.Label(),
		IsPlaying:  p.IsPlaying,
	}
}

// arm replaces any live timer with a fresh one for the active track.
// Tracks without a preview resource get no timer: there is nothing to
// auto-pause.
func (p *Playback) arm(onExpire func(ExpireFunc)) {
	p.disarm()
	t, ok := p.ActiveTrack()
	if !ok || t.PreviewURL == "" || onExpire == nil {
		return
	}
	p.gen++
	gen := p.gen
	p.timer = p.newTimer(p.preview, func() {
		onExpire(func() (TrackUpdate, bool) { return p.expire(gen) })
	})
}

func (p *Playback) disarm() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	// Invalidate callbacks that already left the timer but have not
	// taken the session lock yet.
	p.gen++
}

func (p *Playback) expire(gen uint64) (TrackUpdate, bool) {
	if gen != p.gen || !p.IsPlaying {
		return TrackUpdate{}, false
	}
	p.IsPlaying = false
	return p.Update(), true
}
