// Package input reports whether the mouse and keyboard were used during
// the last sampling interval.
//
// On Wayland we can't observe other clients' input, so mouse activity is
// inferred from cursor movement polled through hyprctl (or xdotool on X11).
// Keyboard activity comes from evdev and needs the user in the 'input'
// group. Only timing is recorded, never which key was pressed.
package input

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// CursorTracker detects cursor movement between captures.
type CursorTracker struct {
	platform *platform.Platform
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu       sync.Mutex
	lastX    int
	lastY    int
	havePrev bool
}

// NewCursorTracker creates a CursorTracker.
func NewCursorTracker(plat *platform.Platform) *CursorTracker {
	return &CursorTracker{
		platform: plat,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Name returns the capturer identifier.
func (c *CursorTracker) Name() string {
	return "mouse"
}

// Available checks if the cursor position can be polled.
func (c *CursorTracker) Available() bool {
	return c.platform.CanTrackCursor()
}

// Capture polls the cursor. Metadata["moved"] is "true" when the position
// differs from the previous poll; the first poll never counts as movement.
func (c *CursorTracker) Capture(ctx context.Context) (*capture.Result, error) {
	x, y, err := c.position(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	moved := c.havePrev && (x != c.lastX || y != c.lastY)
	c.lastX, c.lastY, c.havePrev = x, y, true
	c.mu.Unlock()

	result := capture.NewResult("mouse")
	result.SetMetadata("cursor_x", strconv.Itoa(x)).
		SetMetadata("cursor_y", strconv.Itoa(y)).
		SetMetadata("moved", strconv.FormatBool(moved))
	return result, nil
}

// hyprlandCursorPos is the output of `hyprctl cursorpos -j`.
type hyprlandCursorPos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c *CursorTracker) position(ctx context.Context) (int, int, error) {
	switch c.platform.DisplayServer {
	case platform.DisplayServerHyprland:
		out, err := c.run(ctx, "hyprctl", "cursorpos", "-j")
		if err != nil {
			return 0, 0, fmt.Errorf("hyprctl cursorpos failed: %w", err)
		}
		var pos hyprlandCursorPos
		if err := json.Unmarshal(out, &pos); err != nil {
			return 0, 0, fmt.Errorf("failed to parse cursor position: %w", err)
		}
		return pos.X, pos.Y, nil
	case platform.DisplayServerX11:
		out, err := c.run(ctx, "xdotool", "getmouselocation", "--shell")
		if err != nil {
			return 0, 0, fmt.Errorf("xdotool getmouselocation failed: %w", err)
		}
		return parseXdotoolLocation(string(out))
	}
	return 0, 0, fmt.Errorf("cursor tracking not supported on %s", c.platform.DisplayServer)
}

// parseXdotoolLocation reads the X= and Y= lines of --shell output.
func parseXdotoolLocation(out string) (int, int, error) {
	var x, y int
	var seenX, seenY bool
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			x, seenX = n, true
		case "Y":
			y, seenY = n, true
		}
	}
	if !seenX || !seenY {
		return 0, 0, fmt.Errorf("unexpected xdotool output %q", out)
	}
	return x, y, nil
}
