// Package gate decides, per observation, whether the AI provider is needed.
//
// Every check walks the knowledge chain first. Only contexts nobody knows
// anything about reach the provider, and only when they look significant;
// the rest are answered from templates, the reaction cache, or deferred to
// batch analysis of closed episodes.
package gate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// Decision is the gate's verdict for one observation.
type Decision string

const (
	KnownUseCache    Decision = "known_cache"
	KnownUseTemplate Decision = "known_template"
	KnownSkip        Decision = "known_skip"
	UnknownQueue     Decision = "unknown_queue"
	UnknownUrgent    Decision = "unknown_urgent"
)

// Known reports whether the decision came from existing knowledge.
func (d Decision) Known() bool {
	switch d {
	case KnownUseCache, KnownUseTemplate, KnownSkip:
		return true
	case UnknownQueue, UnknownUrgent:
		return false
	}
	return false
}

// Result is what the orchestrator acts on.
type Result struct {
	Decision     Decision               `json:"decision"`
	Source       knowledge.Source       `json:"source,omitempty"`
	Reaction     string                 `json:"reaction,omitempty"`
	App          *knowledge.AppInfo     `json:"app_info,omitempty"`
	Context      *knowledge.ContextInfo `json:"context_info,omitempty"`
	Policy       *knowledge.Policy      `json:"behavior_policy,omitempty"`
	ShouldCallAI bool                   `json:"should_call_ai"`
	Reason       string                 `json:"reason"`
}

// Resolver is the knowledge chain the gate consults.
type Resolver interface {
	Lookup(ctx context.Context, app, title string) (knowledge.Match, error)
}

// ReactionCache holds reactions the AI provider produced earlier.
type ReactionCache interface {
	CachedReaction(ctx context.Context, app, title string) (string, bool, error)
}

// Gate is safe for concurrent use; counters are updated under one mutex.
type Gate struct {
	resolver     Resolver
	policies     knowledge.PolicyProvider
	capabilities knowledge.CapabilityProvider
	cache        ReactionCache
	logger       *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// Option configures a Gate.
type Option func(*Gate)

// WithCache enables the reaction cache consulted after a knowledge miss.
func WithCache(c ReactionCache) Option {
	return func(g *Gate) { g.cache = c }
}

// WithCapabilities sets the capability routing table.
func WithCapabilities(c knowledge.CapabilityProvider) Option {
	return func(g *Gate) { g.capabilities = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

type defaultPolicies struct{}

func (defaultPolicies) Policy(string) knowledge.Policy { return knowledge.DefaultPolicy() }

// New creates a Gate. policies may be nil, in which case every behavior
// gets knowledge.DefaultPolicy.
func New(resolver Resolver, policies knowledge.PolicyProvider, opts ...Option) *Gate {
	if policies == nil {
		policies = defaultPolicies{}
	}
	g := &Gate{
		resolver: resolver,
		policies: policies,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("gate")
	return g
}

// Check classifies one observation. ep is the episode the observation
// landed in, or nil. With forceCall set the knowledge chain is skipped and
// the result is always UnknownUrgent. Check does not fail: resolver and
// cache errors count as "not found".
func (g *Gate) Check(ctx context.Context, title, app string, f signal.ContextFeatures, ep *episode.Episode, forceCall bool) Result {
	g.count(func(s *Stats) { s.TotalChecks++ })

	if forceCall {
		return Result{
			Decision:     UnknownUrgent,
			ShouldCallAI: true,
			Reason:       "forced AI call requested",
		}
	}

	match, err := g.resolver.Lookup(ctx, app, title)
	if err != nil {
		g.logger.Warn("knowledge lookup failed, treating as unknown", zap.String("app", app), zap.Error(err))
		match = knowledge.Match{}
	}

	if match.Found {
		g.count(func(s *Stats) {
			s.KnownHits++
			s.CallsAvoided++
		})
		res := Result{
			Source:  match.Source,
			App:     match.App,
			Context: match.Context,
		}
		if name := match.Behavior(); name != "" {
			p := g.policies.Policy(name)
			res.Policy = &p
		}
		if match.Reaction != "" {
			res.Decision = KnownUseTemplate
			res.Reaction = match.Reaction
			res.Reason = fmt.Sprintf("found in %s knowledge with reaction", match.Source)
		} else {
			res.Decision = KnownSkip
			res.Reason = fmt.Sprintf("found in %s knowledge, no reaction needed", match.Source)
		}
		return res
	}

	if g.cache != nil {
		reaction, ok, err := g.cache.CachedReaction(ctx, app, title)
		switch {
		case err != nil:
			g.logger.Warn("reaction cache lookup failed", zap.String("app", app), zap.Error(err))
		case ok:
			g.count(func(s *Stats) {
				s.KnownHits++
				s.CallsAvoided++
			})
			return Result{
				Decision: KnownUseCache,
				Reaction: reaction,
				Reason:   "reaction cached from an earlier AI call",
			}
		}
	}

	if urgent(f, ep) {
		g.count(func(s *Stats) { s.UnknownUrgent++ })
		g.logger.Info("unknown context, escalating",
			zap.String("app", app),
			zap.String("activity", f.Activity.String()),
			zap.Bool("focused", f.IsFocused))
		return Result{
			Decision:     UnknownUrgent,
			ShouldCallAI: true,
			Reason:       "unknown context with high significance",
		}
	}

	g.count(func(s *Stats) { s.UnknownQueued++ })
	return Result{
		Decision: UnknownQueue,
		Reason:   "unknown context, queued for batch processing",
	}
}

// urgent: focused work, the first tick of an episode, or creative activity.
func urgent(f signal.ContextFeatures, ep *episode.Episode) bool {
	if f.IsFocused {
		return true
	}
	if ep != nil && ep.ObservationCount() <= 1 {
		return true
	}
	return f.Activity.IsCreative()
}

// ShouldCallAIForTask reports whether a task needs the AI provider by
// itself. Tasks routed "if_unknown" return false; Check decides those.
// Unknown tasks, or a gate without a routing table, return true.
func (g *Gate) ShouldCallAIForTask(task string) bool {
	if g.capabilities == nil {
		return true
	}
	c, ok := g.capabilities.Capability(task)
	if !ok {
		return true
	}
	switch c.RequiresAI {
	case knowledge.RequireNever, knowledge.RequireIfUnknown:
		return false
	case knowledge.RequireAlways:
		return true
	}
	return true
}

// Stats are the gate counters.
type Stats struct {
	TotalChecks    int64   `json:"total_checks"`
	KnownHits      int64   `json:"known_hits"`
	UnknownQueued  int64   `json:"unknown_queued"`
	UnknownUrgent  int64   `json:"unknown_urgent"`
	CallsAvoided   int64   `json:"calls_avoided"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

func (g *Gate) count(fn func(*Stats)) {
	g.mu.Lock()
	fn(&g.stats)
	g.mu.Unlock()
}

// Stats returns a snapshot of the counters with the hit rate rounded to
// one decimal.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	s := g.stats
	g.mu.Unlock()
	if s.TotalChecks > 0 {
		s.HitRatePercent = math.Round(float64(s.KnownHits)/float64(s.TotalChecks)*1000) / 10
	}
	return s
}

// ResetStats zeroes the counters.
func (g *Gate) ResetStats() {
	g.mu.Lock()
	g.stats = Stats{}
	g.mu.Unlock()
}
