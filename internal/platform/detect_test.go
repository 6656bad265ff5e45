package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDetectDisplayServer(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want DisplayServer
	}{
		{"macos", "darwin", nil, DisplayServerMacOS},
		{"hyprland beats wayland", "linux", map[string]string{"HYPRLAND_INSTANCE_SIGNATURE": "x", "WAYLAND_DISPLAY": "wayland-1"}, DisplayServerHyprland},
		{"sway", "linux", map[string]string{"SWAYSOCK": "/run/sway"}, DisplayServerSway},
		{"generic wayland", "linux", map[string]string{"XDG_SESSION_TYPE": "wayland"}, DisplayServerWayland},
		{"x11 via DISPLAY", "linux", map[string]string{"DISPLAY": ":0"}, DisplayServerX11},
		{"nothing", "linux", nil, DisplayServerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDisplayServer(tt.goos, env(tt.env)))
		})
	}
}

func TestCapabilities(t *testing.T) {
	hypr := &Platform{DisplayServer: DisplayServerHyprland, HasHyprctl: true, HasGrim: true}
	assert.True(t, hypr.CanCaptureWindow())
	assert.True(t, hypr.CanCaptureScreen())
	assert.True(t, hypr.CanTrackCursor())
	assert.False(t, hypr.CanCaptureAudio())

	x11 := &Platform{DisplayServer: DisplayServerX11, HasXdotool: true, HasParecord: true}
	assert.True(t, x11.CanCaptureWindow())
	assert.False(t, x11.CanCaptureScreen())
	assert.True(t, x11.CanCaptureAudio())

	gnome := &Platform{DisplayServer: DisplayServerWayland, HasGrim: true}
	assert.False(t, gnome.CanCaptureWindow())
	assert.True(t, gnome.IsWayland())

	p := detect(env(nil), func(string) bool { return true })
	assert.True(t, p.HasGrim)
	assert.True(t, p.HasPWRecord)
}
