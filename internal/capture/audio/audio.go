// Package audio records short PCM snippets for the signal analyzer.
//
// Uses PipeWire's pw-record, falling back to PulseAudio's parecord. Both
// write raw s16le mono PCM to stdout. Capture is opt-in.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// Capturer captures audio snippets.
type Capturer struct {
	platform *platform.Platform

	// Duration is how long each snippet records.
	Duration time.Duration

	// SampleRate must match the signal thresholds' sample rate.
	SampleRate int

	// Enabled must be explicitly set (opt-in).
	Enabled bool
}

// New creates an audio Capturer recording one second at 44.1kHz.
// Capture is disabled until Enable is called.
func New(plat *platform.Platform) *Capturer {
	return &Capturer{
		platform:   plat,
		Duration:   time.Second,
		SampleRate: 44100,
	}
}

// Name returns the capturer identifier.
func (c *Capturer) Name() string {
	return "audio"
}

// Available checks if audio capture is enabled and possible.
func (c *Capturer) Available() bool {
	return c.Enabled && c.platform.CanCaptureAudio()
}

// Enable turns on audio capture.
func (c *Capturer) Enable() {
	c.Enabled = true
}

// Capture records one snippet.
func (c *Capturer) Capture(ctx context.Context) (*capture.Result, error) {
	if !c.Enabled {
		return nil, fmt.Errorf("audio capture is disabled")
	}

	args := c.command()
	if args == nil {
		return nil, fmt.Errorf("no audio capture tool available (need pw-record or parecord)")
	}

	data, err := c.record(ctx, args[0], args[1:]...)
	if err != nil {
		return nil, err
	}

	result := capture.NewResult("audio")
	result.RawData = data
	result.SetMetadata("format", "s16le").
		SetMetadata("sample_rate", fmt.Sprintf("%d", c.SampleRate)).
		SetMetadata("channels", "1").
		SetMetadata("duration_ms", fmt.Sprintf("%d", c.Duration.Milliseconds()))
	return result, nil
}

func (c *Capturer) command() []string {
	rate := fmt.Sprintf("%d", c.SampleRate)
	switch {
	case c.platform.HasPWRecord:
		return []string{"pw-record", "--rate", rate, "--channels", "1", "--format", "s16", "-"}
	case c.platform.HasParecord:
		return []string{"parecord", "--rate", rate, "--channels", "1", "--format", "s16le", "--raw"}
	}
	return nil
}

// record runs the recorder for Duration and kills it. Killing is the
// normal way these tools stop, so Wait's error is ignored.
func (c *Capturer) record(ctx context.Context, name string, args ...string) ([]byte, error) {
	recordCtx, cancel := context.WithTimeout(ctx, c.Duration+2*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(recordCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	timer := time.NewTimer(c.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		_ = cmd.Process.Kill()
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, ctx.Err()
	}
	_ = cmd.Wait()

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no audio data captured (stderr: %s)", stderr.String())
	}
	return stdout.Bytes(), nil
}

// SetDuration sets the recording duration, clamped to [250ms, 10s].
func (c *Capturer) SetDuration(d time.Duration) {
	c.Duration = min(max(d, 250*time.Millisecond), 10*time.Second)
}
