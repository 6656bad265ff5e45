package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/gate"
	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// Request is everything the AI provider gets for one escalation.
type Request struct {
	Title    string
	App      string
	Features signal.ContextFeatures
	Episode  episode.Summary
	Gate     gate.Result
	Image    []byte
	Audio    []byte
}

// Reactor is the AI provider. It returns the reaction text to show the
// user, or "" for nothing to say.
type Reactor interface {
	React(ctx context.Context, req Request) (string, error)
}

// LogReactor records escalations without calling any model.
type LogReactor struct {
	logger *zap.Logger
}

// NewLogReactor creates a LogReactor.
func NewLogReactor(logger *zap.Logger) *LogReactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReactor{logger: logger.Named("reactor")}
}

// React implements Reactor.
func (r *LogReactor) React(_ context.Context, req Request) (string, error) {
	r.logger.Info("AI call requested",
		zap.String("app", req.App),
		zap.String("title", req.Title),
		zap.String("activity", string(req.Features.Activity)),
		zap.String("episode", req.Episode.ID),
		zap.Bool("has_image", req.Image != nil),
		zap.Bool("has_audio", req.Audio != nil))
	return "", nil
}
