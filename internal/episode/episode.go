// Package episode groups a stream of observations into time-bounded episodes.
//
// An episode is a coherent span of activity under one primary app, activity
// and platform. Analysis happens per closed episode instead of per tick,
// which is most of what keeps AI calls rare.
//
// Lifecycle: ACTIVE -> CLOSED -> PROCESSED. Both transitions happen exactly
// once; there is no way back.
package episode

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// State is the lifecycle state of an episode.
type State string

const (
	StateActive    State = "active"
	StateClosed    State = "closed"
	StateProcessed State = "processed"
)

var (
	// ErrEpisodeActive is returned when opening an episode while another is still active.
	ErrEpisodeActive = errors.New("episode: previous episode is still active")
	// ErrNoActiveEpisode is returned when an observation has nowhere to go.
	ErrNoActiveEpisode = errors.New("episode: no active episode")
	// ErrInvalidTransition is returned for any lifecycle move other than the two allowed ones.
	ErrInvalidTransition = errors.New("episode: invalid state transition")
)

// Observation is one tick inside an episode. Owned by exactly one episode.
type Observation struct {
	Timestamp   time.Time
	WindowTitle string
	AppName     string
	Features    signal.ContextFeatures
	HasImage    bool
	HasAudio    bool
}

// Episode is a coherent window of user activity.
//
// Only the Aggregator mutates an ACTIVE episode. Once CLOSED the observation
// list and aggregates are frozen; the only remaining change is MarkProcessed.
type Episode struct {
	mu sync.RWMutex

	seq       int64
	id        string
	createdAt time.Time

	state     State
	startTime time.Time
	endTime   time.Time
	total     time.Duration

	primaryApp      string
	primaryActivity signal.ActivityType
	primaryPlatform string

	observations []Observation

	keyboardActive bool
	mouseActive    bool
	isPassive      bool
	isFocused      bool

	image []byte
	audio []byte
}

// open builds a fresh ACTIVE episode seeded from its first observation.
// prev is the episode it replaces; it must be nil or already closed.
func open(prev *Episode, seq int64, first Observation) (*Episode, error) {
	if prev != nil && prev.State() == StateActive {
		return nil, ErrEpisodeActive
	}
	start := first.Timestamp
	return &Episode{
		seq:             seq,
		id:              fmt.Sprintf("ep_%d_%d", seq, start.Unix()),
		createdAt:       start,
		state:           StateActive,
		startTime:       start,
		primaryApp:      first.AppName,
		primaryActivity: first.Features.Activity,
		primaryPlatform: first.Features.Title.Platform,
	}, nil
}

// ID returns the episode identifier, "ep_<seq>_<unix>".
func (e *Episode) ID() string { return e.id }

// Seq returns the monotonic sequence number of the episode.
func (e *Episode) Seq() int64 { return e.seq }

// CreatedAt returns the creation time.
func (e *Episode) CreatedAt() time.Time { return e.createdAt }

// State returns the current lifecycle state.
func (e *Episode) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// StartTime returns when the episode was opened.
func (e *Episode) StartTime() time.Time { return e.startTime }

// EndTime returns when the episode was closed, or the zero time.
func (e *Episode) EndTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endTime
}

// TotalDuration returns the closed episode's length, or zero while active.
func (e *Episode) TotalDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.total
}

// PrimaryApp returns the app the episode was opened for.
func (e *Episode) PrimaryApp() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primaryApp
}

// PrimaryActivity returns the most specific activity seen so far.
func (e *Episode) PrimaryActivity() signal.ActivityType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primaryActivity
}

// PrimaryPlatform returns the platform of the episode, if any.
func (e *Episode) PrimaryPlatform() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primaryPlatform
}

// ObservationCount returns how many observations the episode holds.
// A nil episode has none.
func (e *Episode) ObservationCount() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.observations)
}

// LastObservedAt returns the timestamp of the newest observation, or the
// start time when there is none.
func (e *Episode) LastObservedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n := len(e.observations); n > 0 {
		return e.observations[n-1].Timestamp
	}
	return e.startTime
}

// Observations returns a copy of the observations in temporal order.
func (e *Episode) Observations() []Observation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Observation, len(e.observations))
	copy(out, e.observations)
	return out
}

// KeyboardActive reports whether any observation had keyboard input.
func (e *Episode) KeyboardActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.keyboardActive
}

// MouseActive reports whether any observation had mouse input.
func (e *Episode) MouseActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mouseActive
}

// IsPassive is sticky: true once any observation was passive.
func (e *Episode) IsPassive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isPassive
}

// IsFocused is sticky: true once any observation was focused.
func (e *Episode) IsFocused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isFocused
}

// Image returns the representative screenshot, the first one seen.
func (e *Episode) Image() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.image
}

// Audio returns the representative audio sample, the first one seen.
func (e *Episode) Audio() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.audio
}

// Duration returns the elapsed time: total duration once closed, otherwise
// the time from start to now.
func (e *Episode) Duration(now time.Time) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateActive {
		return e.total
	}
	return now.Sub(e.startTime)
}

// MarkProcessed moves a CLOSED episode to PROCESSED.
func (e *Episode) MarkProcessed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateClosed {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, e.state, StateProcessed, e.id)
	}
	e.state = StateProcessed
	return nil
}

// add appends an observation and folds it into the aggregates.
func (e *Episode) add(obs Observation, image, audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return fmt.Errorf("%w: %s is %s", ErrNoActiveEpisode, e.id, e.state)
	}

	e.observations = append(e.observations, obs)

	f := obs.Features
	if f.Input.Keyboard {
		e.keyboardActive = true
	}
	if f.Input.Mouse {
		e.mouseActive = true
	}
	if f.IsPassive {
		e.isPassive = true
	}
	if f.IsFocused {
		e.isFocused = true
	}
	if f.Activity != "" && f.Activity != signal.ActivityGeneral {
		e.primaryActivity = f.Activity
	}
	if e.primaryPlatform == "" && f.Title.Platform != "" {
		e.primaryPlatform = f.Title.Platform
	}
	if e.primaryApp == "" && obs.AppName != "" {
		e.primaryApp = obs.AppName
	}

	if e.image == nil && image != nil {
		e.image = image
	}
	if e.audio == nil && audio != nil {
		e.audio = audio
	}
	return nil
}

// close finalizes the episode at the given time.
func (e *Episode) close(at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidTransition, e.state, StateClosed, e.id)
	}
	if at.Before(e.startTime) {
		at = e.startTime
	}
	e.endTime = at
	e.total = at.Sub(e.startTime)
	e.state = StateClosed
	return nil
}

// Summary is the compact view of an episode used for logs and UIs.
type Summary struct {
	ID               string              `json:"id"`
	DurationMinutes  float64             `json:"duration_minutes"`
	ObservationCount int                 `json:"observations"`
	App              string              `json:"app"`
	Activity         signal.ActivityType `json:"activity"`
	Platform         string              `json:"platform"`
	Passive          bool                `json:"passive"`
	Focused          bool                `json:"focused"`
	State            State               `json:"state"`
}

// Summary returns the episode summary, with duration measured to now for
// active episodes.
func (e *Episode) Summary(now time.Time) Summary {
	d := e.Duration(now)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Summary{
		ID:               e.id,
		DurationMinutes:  math.Round(d.Minutes()*10) / 10,
		ObservationCount: len(e.observations),
		App:              e.primaryApp,
		Activity:         e.primaryActivity,
		Platform:         e.primaryPlatform,
		Passive:          e.isPassive,
		Focused:          e.isFocused,
		State:            e.state,
	}
}
