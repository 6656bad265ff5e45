// Package screen takes screenshots and measures how much of the screen
// changed between consecutive frames.
//
// On Wayland compositors we use grim, restricted to the focused monitor
// on Hyprland. On X11 we use ImageMagick's import.
package screen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// Capturer captures screenshots.
type Capturer struct {
	platform *platform.Platform

	// CaptureAllMonitors captures every output instead of the focused one.
	CaptureAllMonitors bool

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New creates a screen Capturer.
func New(plat *platform.Platform) *Capturer {
	return &Capturer{platform: plat, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w (stderr: %s)", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Name returns the capturer identifier.
func (c *Capturer) Name() string {
	return "screen"
}

// Available checks if screen capture is possible.
func (c *Capturer) Available() bool {
	return c.platform.CanCaptureScreen()
}

// Capture takes a PNG screenshot.
func (c *Capturer) Capture(ctx context.Context) (*capture.Result, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case c.platform.IsWayland():
		data, err = c.run(ctx, "grim", c.grimArgs(ctx)...)
		if err != nil {
			return nil, fmt.Errorf("grim failed: %w", err)
		}
	case c.platform.DisplayServer == platform.DisplayServerX11:
		data, err = c.run(ctx, "import", "-window", "root", "png:-")
		if err != nil {
			return nil, fmt.Errorf("import failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported display server: %s", c.platform.DisplayServer)
	}

	result := capture.NewResult("screen")
	result.RawData = data
	result.SetMetadata("format", "png").
		SetMetadata("size_bytes", fmt.Sprintf("%d", len(data)))
	return result, nil
}

// Monitor represents a display output.
type Monitor struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Focused bool   `json:"focused"`
}

// grimArgs falls back to all outputs when the focused monitor can't be found.
func (c *Capturer) grimArgs(ctx context.Context) []string {
	if c.CaptureAllMonitors || c.platform.DisplayServer != platform.DisplayServerHyprland {
		return []string{"-"}
	}
	out, err := c.run(ctx, "hyprctl", "monitors", "-j")
	if err != nil {
		return []string{"-"}
	}
	if name := focusedMonitor(out); name != "" {
		return []string{"-o", name, "-"}
	}
	return []string{"-"}
}

func focusedMonitor(out []byte) string {
	var monitors []Monitor
	if err := json.Unmarshal(out, &monitors); err != nil {
		return ""
	}
	for _, m := range monitors {
		if m.Focused {
			return m.Name
		}
	}
	return ""
}
