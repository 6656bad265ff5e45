package episode

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// Config bounds episode length and retention.
type Config struct {
	MaxDuration time.Duration `yaml:"max_duration"`
	MinDuration time.Duration `yaml:"min_duration"`
	HistorySize int           `yaml:"history_size"`
}

// DefaultConfig returns a 10 minute cap, 30 second floor and 50 closed
// episodes of history.
func DefaultConfig() Config {
	return Config{
		MaxDuration: 600 * time.Second,
		MinDuration: 30 * time.Second,
		HistorySize: 50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxDuration <= 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.MinDuration <= 0 {
		c.MinDuration = d.MinDuration
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// Aggregator turns the observation stream into episodes.
//
// A single mutex serializes every mutation, so several producers may share
// one Aggregator; observations must still arrive in timestamp order.
type Aggregator struct {
	cfg    Config
	now    func() time.Time
	tick   time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	current *Episode
	counter int64
	history []*Episode // oldest first, at most cfg.HistorySize
	pending []*Episode
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock sets the fallback clock used when features carry no timestamp.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// WithTickInterval sets the sampler cadence. A forced close or a summary of
// the active episode never reaches past the last observation by more than
// one tick.
func WithTickInterval(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.tick = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg Config, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		tick:   time.Second,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("fog")
	return a
}

// AddObservation records one tick. If the tick closes the active episode the
// closed episode is returned; it is also queued for GetPendingEpisodes.
// The tick itself always lands in the episode that is active afterwards.
func (a *Aggregator) AddObservation(title, app string, f signal.ContextFeatures, image, audio []byte) (*Episode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := f.Timestamp
	if now.IsZero() {
		now = a.now()
		f.Timestamp = now
	}

	obs := Observation{
		Timestamp:   now,
		WindowTitle: title,
		AppName:     app,
		Features:    f,
		HasImage:    image != nil,
		HasAudio:    audio != nil,
	}

	var closed *Episode
	if a.current != nil {
		if reason := a.closeReason(a.current, obs); reason != "" {
			closed = a.current
			if err := a.finalize(a.endAt(closed, now), reason); err != nil {
				return nil, err
			}
		}
	}

	if a.current == nil {
		ep, err := open(closed, a.counter+1, obs)
		if err != nil {
			return closed, fmt.Errorf("open episode: %w", err)
		}
		a.counter++
		a.current = ep
		a.logger.Info("episode opened",
			zap.String("id", ep.ID()),
			zap.String("app", ep.PrimaryApp()),
			zap.String("activity", ep.PrimaryActivity().String()),
			zap.String("platform", ep.PrimaryPlatform()))
	}

	if err := a.current.add(obs, image, audio); err != nil {
		return closed, err
	}
	return closed, nil
}

// closeReason returns why ep should close before obs is added, or "".
func (a *Aggregator) closeReason(ep *Episode, obs Observation) string {
	elapsed := obs.Timestamp.Sub(ep.StartTime())
	if elapsed > a.cfg.MaxDuration {
		return "max_duration"
	}
	if elapsed > a.cfg.MinDuration && significantChange(ep, obs) {
		return "significant_change"
	}
	return ""
}

// significantChange compares obs to the episode's primary attributes.
// Empty app or platform on the new tick means "not captured", which is not
// a change. passive->active counts; active->passive does not.
func significantChange(ep *Episode, obs Observation) bool {
	f := obs.Features
	switch {
	case obs.AppName != "" && obs.AppName != ep.PrimaryApp():
		return true
	case f.Activity != ep.PrimaryActivity():
		return true
	case f.Title.Platform != "" && f.Title.Platform != ep.PrimaryPlatform():
		return true
	case ep.IsPassive() && !f.IsPassive:
		return true
	}
	return false
}

// finalize closes the current episode and queues it. Caller holds a.mu.
func (a *Aggregator) finalize(at time.Time, reason string) error {
	ep := a.current
	if err := ep.close(at); err != nil {
		return err
	}
	a.current = nil

	a.history = append(a.history, ep)
	if over := len(a.history) - a.cfg.HistorySize; over > 0 {
		a.history = a.history[over:]
	}
	a.pending = append(a.pending, ep)

	a.logger.Info("episode closed",
		zap.String("id", ep.ID()),
		zap.String("reason", reason),
		zap.Duration("duration", ep.TotalDuration()),
		zap.Int("observations", ep.ObservationCount()),
		zap.String("activity", ep.PrimaryActivity().String()))
	return nil
}

// ForceCloseCurrent closes the active episode regardless of duration.
// It returns nil when nothing is active.
func (a *Aggregator) ForceCloseCurrent() (*Episode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return nil, nil
	}
	ep := a.current
	if err := a.finalize(a.asOf(ep), "forced"); err != nil {
		return nil, err
	}
	return ep, nil
}

// endAt caps a close time at one tick past ep's last observation. Ticks
// that never reached the aggregator (excluded apps, a locked screen) do not
// count toward the episode.
func (a *Aggregator) endAt(ep *Episode, at time.Time) time.Time {
	if limit := ep.LastObservedAt().Add(a.tick); at.After(limit) {
		return limit
	}
	return at
}

// asOf is the clock reading for ep, held within one tick after its last
// observation so replayed streams stay consistent with their own timeline.
func (a *Aggregator) asOf(ep *Episode) time.Time {
	now := a.now()
	if last := ep.LastObservedAt(); now.Before(last) {
		return last
	}
	return a.endAt(ep, now)
}

// GetPendingEpisodes drains the queue of closed episodes awaiting analysis.
func (a *Aggregator) GetPendingEpisodes() []*Episode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.pending
	a.pending = nil
	return out
}

// Current returns the active episode, or nil.
func (a *Aggregator) Current() *Episode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// CurrentSummary returns the summary of the active episode, if any.
func (a *Aggregator) CurrentSummary() (Summary, bool) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return Summary{}, false
	}
	return cur.Summary(a.asOf(cur)), true
}

// History returns the retained closed episodes, oldest first.
func (a *Aggregator) History() []*Episode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Episode, len(a.history))
	copy(out, a.history)
	return out
}

// Stats is a point-in-time snapshot of the aggregator.
type Stats struct {
	TotalEpisodes int64    `json:"total_episodes"`
	Current       *Summary `json:"current_episode,omitempty"`
	PendingCount  int      `json:"pending_episodes"`
	HistoryCount  int      `json:"history_count"`
}

// Stats returns counters for logs and the CLI.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	s := Stats{
		TotalEpisodes: a.counter,
		PendingCount:  len(a.pending),
		HistoryCount:  len(a.history),
	}
	cur := a.current
	a.mu.Unlock()

	if cur != nil {
		sum := cur.Summary(a.asOf(cur))
		s.Current = &sum
	}
	return s
}
