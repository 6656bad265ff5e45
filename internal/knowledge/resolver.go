package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Tier is one level of the knowledge chain.
type Tier interface {
	Source() Source
	// Lookup returns the best entry for app and title in this tier.
	Lookup(ctx context.Context, app, title string) (Entry, bool, error)
}

// Resolver consults tiers in priority order and returns the first match.
// For a fixed snapshot of its tiers the result is deterministic.
type Resolver struct {
	tiers  []Tier
	logger *zap.Logger
}

// NewResolver creates a Resolver. Tiers are consulted in the order given,
// which should be user, shared, baseline.
func NewResolver(logger *zap.Logger, tiers ...Tier) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{tiers: tiers, logger: logger.Named("knowledge")}
}

// Lookup finds knowledge about app and title.
//
// A failing tier is skipped. The error is non-nil only when every tier
// failed; the returned Match is then not found.
func (r *Resolver) Lookup(ctx context.Context, app, title string) (Match, error) {
	var errs []error
	for _, t := range r.tiers {
		e, ok, err := t.Lookup(ctx, app, title)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, ctx.Err()
			}
			r.logger.Warn("tier lookup failed",
				zap.String("tier", string(t.Source())),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Source(), err))
			continue
		}
		if ok {
			r.logger.Debug("knowledge hit",
				zap.String("tier", string(t.Source())),
				zap.String("id", e.ID),
				zap.String("app", app))
			return newMatch(t.Source(), e, app), nil
		}
	}
	if len(errs) > 0 && len(errs) == len(r.tiers) {
		return Match{}, errors.Join(errs...)
	}
	return Match{}, nil
}

// Tiers returns the configured tiers in priority order.
func (r *Resolver) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}
