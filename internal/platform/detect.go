// Package platform detects the operating system, display server and the
// helper tools the live capturers shell out to.
//
// - Active window: hyprctl on Hyprland, xdotool on X11
// - Screenshots: grim on Wayland, import (ImageMagick) on X11
// - Audio: pw-record on PipeWire, parecord on PulseAudio
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// DisplayServer represents the display server type.
type DisplayServer string

const (
	DisplayServerHyprland DisplayServer = "hyprland"
	DisplayServerSway     DisplayServer = "sway"
	DisplayServerWayland  DisplayServer = "wayland" // Generic Wayland (GNOME, KDE)
	DisplayServerX11      DisplayServer = "x11"
	DisplayServerMacOS    DisplayServer = "macos"
	DisplayServerUnknown  DisplayServer = "unknown"
)

// Platform holds information about the detected platform.
type Platform struct {
	OS            string
	DisplayServer DisplayServer

	HasHyprctl  bool
	HasGrim     bool
	HasXdotool  bool
	HasImport   bool
	HasPWRecord bool
	HasParecord bool
}

// String returns "os/display".
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.DisplayServer)
}

// Detect figures out what platform we're running on.
func Detect() *Platform {
	return detect(os.Getenv, commandExists)
}

func detect(getenv func(string) string, has func(string) bool) *Platform {
	return &Platform{
		OS:            runtime.GOOS,
		DisplayServer: detectDisplayServer(runtime.GOOS, getenv),
		HasHyprctl:    has("hyprctl"),
		HasGrim:       has("grim"),
		HasXdotool:    has("xdotool"),
		HasImport:     has("import"),
		HasPWRecord:   has("pw-record"),
		HasParecord:   has("parecord"),
	}
}

// detectDisplayServer checks the most specific signal first.
func detectDisplayServer(goos string, getenv func(string) string) DisplayServer {
	if goos == "darwin" {
		return DisplayServerMacOS
	}
	if getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return DisplayServerHyprland
	}
	if getenv("SWAYSOCK") != "" {
		return DisplayServerSway
	}

	sessionType := getenv("XDG_SESSION_TYPE")
	if sessionType == "wayland" || getenv("WAYLAND_DISPLAY") != "" {
		return DisplayServerWayland
	}
	if sessionType == "x11" || getenv("DISPLAY") != "" {
		return DisplayServerX11
	}
	return DisplayServerUnknown
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// IsWayland reports whether this is any Wayland compositor.
func (p *Platform) IsWayland() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland, DisplayServerSway, DisplayServerWayland:
		return true
	}
	return false
}

// CanCaptureWindow reports whether the active window can be queried.
func (p *Platform) CanCaptureWindow() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		return p.HasHyprctl
	case DisplayServerX11:
		return p.HasXdotool
	}
	return false
}

// CanCaptureScreen reports whether screenshots can be taken.
func (p *Platform) CanCaptureScreen() bool {
	if p.IsWayland() {
		return p.HasGrim
	}
	if p.DisplayServer == DisplayServerX11 {
		return p.HasImport
	}
	return false
}

// CanCaptureAudio reports whether a PCM recorder is installed.
func (p *Platform) CanCaptureAudio() bool {
	return p.HasPWRecord || p.HasParecord
}

// CanTrackCursor reports whether cursor position can be polled.
func (p *Platform) CanTrackCursor() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		return p.HasHyprctl
	case DisplayServerX11:
		return p.HasXdotool
	}
	return false
}
