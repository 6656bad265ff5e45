// Package window captures the focused window's title and application.
//
// On Hyprland it asks hyprctl for the active window as JSON. On X11 it
// uses xdotool for the window name and class.
package window

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// Capturer captures active window information.
type Capturer struct {
	platform *platform.Platform
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New creates a window Capturer.
func New(plat *platform.Platform) *Capturer {
	return &Capturer{platform: plat, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Name returns the capturer identifier.
func (c *Capturer) Name() string {
	return "window"
}

// Available checks if window capture is possible on this system.
func (c *Capturer) Available() bool {
	return c.platform.CanCaptureWindow()
}

// Capture gets the current active window. TextData is the title and
// Metadata["app_class"] the application.
func (c *Capturer) Capture(ctx context.Context) (*capture.Result, error) {
	switch c.platform.DisplayServer {
	case platform.DisplayServerHyprland:
		return c.captureHyprland(ctx)
	case platform.DisplayServerX11:
		return c.captureX11(ctx)
	default:
		return nil, fmt.Errorf("unsupported display server: %s", c.platform.DisplayServer)
	}
}

// HyprlandWindow is the part of `hyprctl activewindow -j` we use.
type HyprlandWindow struct {
	Address    string `json:"address"`
	Class      string `json:"class"`
	Title      string `json:"title"`
	PID        int    `json:"pid"`
	Fullscreen int    `json:"fullscreen"`
	Workspace  struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"workspace"`
}

func (c *Capturer) captureHyprland(ctx context.Context) (*capture.Result, error) {
	output, err := c.run(ctx, "hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, fmt.Errorf("hyprctl failed: %w", err)
	}
	return parseHyprland(output)
}

func parseHyprland(output []byte) (*capture.Result, error) {
	result := capture.NewResult("window")

	// No focused window prints "Invalid" instead of JSON.
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" || trimmed == "{}" || !strings.HasPrefix(trimmed, "{") {
		return result, nil
	}

	var w HyprlandWindow
	if err := json.Unmarshal(output, &w); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl output: %w", err)
	}

	result.TextData = w.Title
	result.SetMetadata("app_class", w.Class).
		SetMetadata("address", w.Address).
		SetMetadata("pid", fmt.Sprintf("%d", w.PID)).
		SetMetadata("workspace", w.Workspace.Name).
		SetMetadata("fullscreen", fmt.Sprintf("%t", w.Fullscreen > 0))
	return result, nil
}

func (c *Capturer) captureX11(ctx context.Context) (*capture.Result, error) {
	title, err := c.run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return nil, fmt.Errorf("xdotool getwindowname failed: %w", err)
	}
	class, err := c.run(ctx, "xdotool", "getactivewindow", "getwindowclassname")
	if err != nil {
		return nil, fmt.Errorf("xdotool getwindowclassname failed: %w", err)
	}

	result := capture.NewResult("window")
	result.TextData = strings.TrimSpace(string(title))
	result.SetMetadata("app_class", strings.TrimSpace(string(class)))
	return result, nil
}
