// Package capture defines where observations come from.
//
// A Source yields one Tick per sampling interval. Live sources are built
// from Capturers, one per channel (window, screen, audio, input); the
// scripted source replays a YAML file and is what tests and demos use.
package capture

import (
	"context"
	"io"
	"time"

	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

// ErrExhausted is returned by Next when a finite source has no more ticks.
var ErrExhausted = io.EOF

// Tick is one sampled observation.
type Tick struct {
	Timestamp  time.Time
	Title      string
	AppName    string
	Audio      []byte  // s16le mono PCM, nil when not sampled
	Image      []byte  // PNG screenshot, nil when not sampled
	VisualDiff float64 // percent of the screen that changed since the last tick
	Keyboard   bool
	Mouse      bool
}

// Raw converts the tick into signal extractor input.
func (t Tick) Raw() signal.Raw {
	return signal.Raw{
		Timestamp:  t.Timestamp,
		Title:      t.Title,
		AppName:    t.AppName,
		Audio:      t.Audio,
		VisualDiff: t.VisualDiff,
		Keyboard:   t.Keyboard,
		Mouse:      t.Mouse,
	}
}

// Source supplies ticks.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Available reports whether the source can run on this system.
	Available() bool

	// Next blocks until the next tick is ready, ctx is done, or the source
	// is exhausted (ErrExhausted).
	Next(ctx context.Context) (Tick, error)
}

// Capturer samples a single channel.
type Capturer interface {
	// Name returns the channel identifier (e.g., "screen", "window", "audio").
	Name() string

	// Available checks if this capturer can run on the current system.
	Available() bool

	// Capture takes a snapshot. The context cancels any helper process.
	Capture(ctx context.Context) (*Result, error)
}

// Result holds the output of one capture.
type Result struct {
	Source    string
	Timestamp time.Time

	// RawData holds binary data (screenshots, PCM). Nil for text-only captures.
	RawData []byte

	// TextData holds text content such as the window title.
	TextData string

	// Metadata holds channel-specific key-value data.
	Metadata map[string]string
}

// NewResult creates a Result with the timestamp set to now.
func NewResult(source string) *Result {
	return &Result{
		Source:    source,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// SetMetadata sets a metadata key and returns r for chaining.
func (r *Result) SetMetadata(key, value string) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}
