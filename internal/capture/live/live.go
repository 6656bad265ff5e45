// Package live samples the real desktop: one Tick per interval, built from
// the window, screen, audio and input capturers available on this machine.
package live

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/capture/audio"
	"github.com/Atharva-Kanherkar/rin/internal/capture/input"
	"github.com/Atharva-Kanherkar/rin/internal/capture/screen"
	"github.com/Atharva-Kanherkar/rin/internal/capture/window"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// Options selects which channels are sampled.
type Options struct {
	Interval time.Duration
	Screen   bool
	Audio    bool
	Mouse    bool
	Keyboard bool

	// KeyboardDevice overrides evdev autodetection.
	KeyboardDevice string
	// SampleRate is passed to the audio recorder.
	SampleRate int
}

// KeyActivity reports recent key presses.
type KeyActivity interface {
	ActiveWithin(d time.Duration) bool
}

// Source is a capture.Source over the live desktop.
type Source struct {
	interval time.Duration
	logger   *zap.Logger

	window capture.Capturer
	screen capture.Capturer
	audio  capture.Capturer
	mouse  capture.Capturer
	keys   KeyActivity
	differ *screen.Differ

	runKeyboard func(ctx context.Context) error

	mu     sync.Mutex
	ticks  int
	ticker *time.Ticker
}

// New wires the capturers the platform supports. Channels that are
// disabled or unavailable are left out and their fields stay zero.
func New(plat *platform.Platform, opts Options, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	s := &Source{
		interval: opts.Interval,
		logger:   logger.Named("capture"),
		differ:   screen.NewDiffer(),
	}

	if w := window.New(plat); w.Available() {
		s.window = w
	}
	if opts.Screen {
		if c := screen.New(plat); c.Available() {
			s.screen = c
		}
	}
	if opts.Audio {
		a := audio.New(plat)
		if opts.SampleRate > 0 {
			a.SampleRate = opts.SampleRate
		}
		// Recording must finish inside one tick.
		a.SetDuration(opts.Interval / 2)
		a.Enable()
		if a.Available() {
			s.audio = a
		}
	}
	if opts.Mouse {
		if m := input.NewCursorTracker(plat); m.Available() {
			s.mouse = m
		}
	}
	if opts.Keyboard {
		if k := input.NewKeyboardTracker(opts.KeyboardDevice, s.logger); k.Available() {
			s.keys = k
			s.runKeyboard = k.Run
		}
	}

	s.logger.Info("live capture configured",
		zap.String("platform", plat.String()),
		zap.Strings("channels", s.Channels()))
	return s
}

// Channels lists the active channel names.
func (s *Source) Channels() []string {
	var out []string
	for _, c := range []capture.Capturer{s.window, s.screen, s.audio, s.mouse} {
		if c != nil {
			out = append(out, c.Name())
		}
	}
	if s.keys != nil {
		out = append(out, "keyboard")
	}
	return out
}

// Name implements capture.Source.
func (s *Source) Name() string { return "live" }

// Available implements capture.Source. Without a window channel there is
// nothing to key episodes on.
func (s *Source) Available() bool { return s.window != nil }

// Run drives background readers (the keyboard) until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	if s.runKeyboard == nil {
		<-ctx.Done()
		return nil
	}
	return s.runKeyboard(ctx)
}

// Next implements capture.Source. The first tick is immediate; later ticks
// are paced by the interval. Channel failures are logged and the channel
// is left empty for that tick.
func (s *Source) Next(ctx context.Context) (capture.Tick, error) {
	if err := s.wait(ctx); err != nil {
		return capture.Tick{}, err
	}

	tick := capture.Tick{Timestamp: time.Now()}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	sample := func(c capture.Capturer, apply func(*capture.Result)) {
		if c == nil {
			return
		}
		g.Go(func() error {
			res, err := c.Capture(gctx)
			if err != nil {
				s.logger.Warn("capture failed", zap.String("channel", c.Name()), zap.Error(err))
				return nil
			}
			mu.Lock()
			apply(res)
			mu.Unlock()
			return nil
		})
	}

	sample(s.window, func(r *capture.Result) {
		tick.Title = r.TextData
		tick.AppName = r.Metadata["app_class"]
	})
	sample(s.screen, func(r *capture.Result) {
		tick.Image = r.RawData
	})
	sample(s.audio, func(r *capture.Result) {
		tick.Audio = r.RawData
	})
	sample(s.mouse, func(r *capture.Result) {
		tick.Mouse, _ = strconv.ParseBool(r.Metadata["moved"])
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return capture.Tick{}, err
	}
	if tick.Image != nil {
		diff, err := s.differ.Diff(tick.Image)
		if err != nil {
			s.logger.Warn("frame diff failed", zap.Error(err))
		}
		tick.VisualDiff = diff
	}
	if s.keys != nil {
		tick.Keyboard = s.keys.ActiveWithin(s.interval)
	}
	return tick, nil
}

func (s *Source) wait(ctx context.Context) error {
	s.mu.Lock()
	first := s.ticks == 0
	s.ticks++
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.interval)
	}
	ticker := s.ticker
	s.mu.Unlock()

	if first {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}

// Close stops the pacing ticker.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
	}
}
