package screen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

// frame returns a w*h PNG, black except for the first `white` rows.
func frame(t *testing.T, w, h, white int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if y < white {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDiffer(t *testing.T) {
	d := &Differ{Stride: 1, Tolerance: 16}

	got, err := d.Diff(frame(t, 10, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 100.0, got, "first frame")

	got, err = d.Diff(frame(t, 10, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = d.Diff(frame(t, 10, 10, 3))
	require.NoError(t, err)
	assert.InDelta(t, 30.0, got, 1e-9)

	got, err = d.Diff(frame(t, 20, 10, 3))
	require.NoError(t, err)
	assert.Equal(t, 100.0, got, "resolution change")

	d.Reset()
	got, err = d.Diff(frame(t, 20, 10, 3))
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	_, err = d.Diff([]byte("not a png"))
	assert.Error(t, err)
}

func TestFocusedMonitor(t *testing.T) {
	out := []byte(`[{"id":0,"name":"eDP-1","focused":false},{"id":1,"name":"DP-2","focused":true}]`)
	assert.Equal(t, "DP-2", focusedMonitor(out))
	assert.Empty(t, focusedMonitor([]byte("garbage")))
}

func TestCapture_Commands(t *testing.T) {
	var calls [][]string
	c := New(&platform.Platform{DisplayServer: platform.DisplayServerHyprland, HasHyprctl: true, HasGrim: true})
	c.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if name == "hyprctl" {
			return []byte(`[{"name":"HDMI-A-1","focused":true}]`), nil
		}
		return []byte("png-bytes"), nil
	}

	res, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), res.RawData)
	assert.Equal(t, []string{"grim", "-o", "HDMI-A-1", "-"}, calls[1])

	calls = nil
	c.platform = &platform.Platform{DisplayServer: platform.DisplayServerX11, HasImport: true}
	_, err = c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"import", "-window", "root", "png:-"}, calls[0])
}
