// Package daemon provides the Manager that drives the observation pipeline.
//
// Each tick from the capture source flows Extractor → Aggregator → Gate
// under one mutex. A separate batch loop drains closed episodes into the
// archive. Background tasks (baseline hot reload, keyboard reader) run
// alongside under the same errgroup.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/config"
	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/gate"
	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// shutdownTimeout bounds the final flush after the run context is gone.
const shutdownTimeout = 5 * time.Second

// Archive persists closed episodes.
type Archive interface {
	ArchiveEpisode(ctx context.Context, ep *episode.Episode, runID string) error
	PruneEpisodes(ctx context.Context, retention time.Duration) (int64, error)
}

// ReactionStore remembers reactions so the gate can reuse them.
type ReactionStore interface {
	CacheReaction(ctx context.Context, app, title, contextType, reaction string) error
}

// Notifier shows a reaction to the user.
type Notifier interface {
	Notify(ctx context.Context, title, body string, interrupt bool) error
}

// Manager orchestrates the pipeline.
type Manager struct {
	cfg        *config.Config
	source     capture.Source
	extractor  *signal.Extractor
	aggregator *episode.Aggregator
	gate       *gate.Gate
	reactor    Reactor
	archive    Archive
	reactions  ReactionStore
	notifier   Notifier
	background []func(ctx context.Context) error
	logger     *zap.Logger
	runID      string
	now        func() time.Time

	// mu serializes the per-tick pipeline.
	mu       sync.Mutex
	counters Counters
	spokenAt map[string]time.Time // by policy name

	shutdownOnce sync.Once
}

// Counters are the manager's own tick counters.
type Counters struct {
	Ticks     int `json:"ticks"`
	Excluded  int `json:"excluded"`
	Rejected  int `json:"rejected"`
	AICalls   int `json:"ai_calls"`
	Cached    int `json:"cached_reactions"`
	Spoken    int `json:"spoken"`
	Processed int `json:"episodes_processed"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithReactor sets the AI provider consulted on escalation.
func WithReactor(r Reactor) Option {
	return func(m *Manager) { m.reactor = r }
}

// WithArchive sets where closed episodes are written.
func WithArchive(a Archive) Option {
	return func(m *Manager) { m.archive = a }
}

// WithReactionStore caches reactions produced after an escalation.
func WithReactionStore(s ReactionStore) Option {
	return func(m *Manager) { m.reactions = s }
}

// WithNotifier delivers reactions to the user.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithBackground adds a task that runs until the run context is done.
func WithBackground(fn func(ctx context.Context) error) Option {
	return func(m *Manager) { m.background = append(m.background, fn) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the clock used by the aggregator and extractor.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager reading from src and deciding with g.
func NewManager(cfg *config.Config, src capture.Source, g *gate.Gate, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		source:   src,
		gate:     g,
		logger:   zap.NewNop(),
		runID:    uuid.NewString(),
		now:      time.Now,
		spokenAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	root := m.logger
	m.logger = root.Named("daemon").With(zap.String("run_id", m.runID))
	if m.reactor == nil {
		m.reactor = NewLogReactor(root)
	}
	m.extractor = signal.NewExtractor(cfg.Signal, signal.WithClock(m.now), signal.WithLogger(root))
	m.aggregator = episode.NewAggregator(cfg.Episode, episode.WithClock(m.now),
		episode.WithTickInterval(cfg.Sampler.Interval),
		episode.WithLogger(root))
	return m
}

// RunID identifies this daemon run in the episode archive.
func (m *Manager) RunID() string { return m.runID }

// Aggregator exposes the episode aggregator for status reporting.
func (m *Manager) Aggregator() *episode.Aggregator { return m.aggregator }

// Run drives the pipeline until ctx is done or a finite source is
// exhausted, then flushes the last episode.
func (m *Manager) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.logger.Info("starting pipeline",
		zap.String("source", m.source.Name()),
		zap.Duration("batch_interval", m.cfg.Batch.Interval))

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return m.tickLoop(gctx, cancel) })
	g.Go(func() error { return m.batchLoop(gctx) })
	for _, fn := range m.background {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	err := g.Wait()

	m.Shutdown()
	m.logger.Info("pipeline stopped", zap.Any("counters", m.Counters()))
	return err
}

func (m *Manager) tickLoop(ctx context.Context, stop context.CancelFunc) error {
	for {
		tick, err := m.source.Next(ctx)
		switch {
		case errors.Is(err, capture.ErrExhausted):
			m.logger.Info("source exhausted")
			stop()
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			m.logger.Warn("tick failed", zap.Error(err))
			continue
		}
		if _, err := m.ProcessTick(ctx, tick); err != nil {
			m.logger.Warn("tick rejected", zap.Error(err))
		}
	}
}

func (m *Manager) batchLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Batch.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Drain(ctx)
			m.prune(ctx)
		}
	}
}

// TickOutcome describes what the pipeline did with one tick.
type TickOutcome struct {
	Excluded bool
	Features signal.ContextFeatures
	Episode  *episode.Episode // the episode the tick landed in
	Closed   *episode.Episode // the episode this tick closed, if any
	Gate     gate.Result
	Reaction string
}

// ProcessTick runs one tick through the pipeline. Ticks from excluded apps
// are dropped before extraction. An error means the aggregator rejected
// the observation; the pipeline stays usable.
func (m *Manager) ProcessTick(ctx context.Context, tick capture.Tick) (TickOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters.Ticks++
	if m.cfg.IsExcluded(tick.AppName) {
		m.counters.Excluded++
		m.logger.Debug("tick excluded", zap.String("app", tick.AppName))
		return TickOutcome{Excluded: true}, nil
	}

	f := m.extractor.Extract(tick.Raw())

	closed, err := m.aggregator.AddObservation(tick.Title, tick.AppName, f, tick.Image, tick.Audio)
	if err != nil {
		m.counters.Rejected++
		return TickOutcome{Features: f}, err
	}
	ep := m.aggregator.Current()

	res := m.gate.Check(ctx, tick.Title, tick.AppName, f, ep, false)
	out := TickOutcome{Features: f, Episode: ep, Closed: closed, Gate: res, Reaction: res.Reaction}

	m.logger.Debug("tick",
		zap.String("episode", ep.ID()),
		zap.String("activity", string(f.Activity)),
		zap.String("decision", string(res.Decision)),
		zap.String("reason", res.Reason))

	if !res.ShouldCallAI {
		if res.Reaction != "" {
			m.deliver(ctx, res, res.Reaction, f.Timestamp)
		}
		return out, nil
	}

	m.counters.AICalls++
	m.logger.Info("escalating to AI",
		zap.String("episode", ep.ID()),
		zap.String("app", tick.AppName),
		zap.String("reason", res.Reason))

	reaction, err := m.reactor.React(ctx, Request{
		Title:    tick.Title,
		App:      tick.AppName,
		Features: f,
		Episode:  ep.Summary(f.Timestamp),
		Gate:     res,
		Image:    tick.Image,
		Audio:    tick.Audio,
	})
	if err != nil {
		m.logger.Warn("reactor failed", zap.Error(err))
		return out, nil
	}
	out.Reaction = reaction
	if reaction == "" {
		return out, nil
	}
	m.deliver(ctx, res, reaction, f.Timestamp)
	if m.reactions == nil {
		return out, nil
	}
	if err := m.reactions.CacheReaction(ctx, tick.AppName, tick.Title, string(f.Activity), reaction); err != nil {
		m.logger.Warn("cache reaction failed", zap.Error(err))
		return out, nil
	}
	m.counters.Cached++
	return out, nil
}

// deliver shows a reaction unless its policy is silent or still cooling
// down. Caller holds m.mu.
func (m *Manager) deliver(ctx context.Context, res gate.Result, reaction string, at time.Time) {
	policy := knowledge.DefaultPolicy()
	if res.Policy != nil {
		policy = *res.Policy
	}
	if !policy.Speak {
		m.logger.Debug("reaction suppressed by policy", zap.String("policy", policy.Name))
		return
	}
	cooldown := time.Duration(policy.CooldownSeconds) * time.Second
	if last, ok := m.spokenAt[policy.Name]; ok && at.Sub(last) < cooldown {
		m.logger.Debug("reaction in cooldown",
			zap.String("policy", policy.Name),
			zap.Duration("remaining", cooldown-at.Sub(last)))
		return
	}
	m.spokenAt[policy.Name] = at
	m.counters.Spoken++

	m.logger.Info("reaction",
		zap.String("decision", string(res.Decision)),
		zap.String("policy", policy.Name),
		zap.String("text", reaction))
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, "rin", reaction, policy.Interrupt); err != nil {
		m.logger.Warn("notify failed", zap.Error(err))
	}
}

// Drain archives and marks processed every pending episode. It returns how
// many were processed.
func (m *Manager) Drain(ctx context.Context) int {
	pending := m.aggregator.GetPendingEpisodes()
	n := 0
	for _, ep := range pending {
		if m.archive != nil {
			if err := m.archive.ArchiveEpisode(ctx, ep, m.runID); err != nil {
				m.logger.Warn("archive episode failed", zap.String("episode", ep.ID()), zap.Error(err))
				continue
			}
		}
		if err := ep.MarkProcessed(); err != nil {
			m.logger.Warn("mark processed failed", zap.String("episode", ep.ID()), zap.Error(err))
			continue
		}
		n++
		m.logger.Info("episode processed", zap.Any("episode", ep.Summary(ep.EndTime())))
	}

	m.mu.Lock()
	m.counters.Processed += n
	m.mu.Unlock()
	return n
}

func (m *Manager) prune(ctx context.Context) {
	if m.archive == nil {
		return
	}
	n, err := m.archive.PruneEpisodes(ctx, m.cfg.Batch.Retention)
	if err != nil {
		m.logger.Warn("prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("pruned episodes", zap.Int64("count", n))
	}
}

// Shutdown closes the active episode and drains it. Only the first call
// does anything.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		ep, err := m.aggregator.ForceCloseCurrent()
		m.mu.Unlock()

		switch {
		case err != nil:
			m.logger.Warn("force close failed", zap.Error(err))
		case ep == nil:
			m.logger.Debug("no active episode at shutdown")
		default:
			m.logger.Info("flushed active episode", zap.String("episode", ep.ID()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		m.Drain(ctx)
	})
}

// Counters returns a snapshot of the tick counters.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}
