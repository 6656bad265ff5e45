package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

const sampleScript = `
start: 2026-10-14T09:00:00Z
interval: 2s
ticks:
  - title: "main.py - myproj - Visual Studio Code"
    app: Code.exe
    visual_diff: 0.1
    keyboard: true
    repeat: 3
  - at: 1m
    title: "Lo-fi Beats - YouTube"
    app: chrome.exe
    visual_diff: 4
    image: frame.png
    audio: {kind: tone, hz: [3000, 5000, 7000], amplitude: 0.3}
`

func TestParseScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.png"), []byte("png"), 0o600))

	src, err := ParseScript([]byte(sampleScript), dir)
	require.NoError(t, err)
	require.Equal(t, 4, src.Len())
	assert.True(t, src.Available())

	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	var ticks []Tick
	for {
		tick, err := src.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		require.NoError(t, err)
		ticks = append(ticks, tick)
	}
	require.Len(t, ticks, 4)

	assert.True(t, start.Equal(ticks[0].Timestamp))
	assert.True(t, start.Add(4*time.Second).Equal(ticks[2].Timestamp))
	assert.True(t, start.Add(time.Minute).Equal(ticks[3].Timestamp))
	assert.True(t, ticks[1].Keyboard)
	assert.Nil(t, ticks[0].Audio)
	assert.Equal(t, []byte("png"), ticks[3].Image)
	assert.Len(t, ticks[3].Audio, defaultSamples*2)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestParseScript_Errors(t *testing.T) {
	_, err := ParseScript([]byte("ticks:\n  - at: 10s\n  - at: 5s\n"), "")
	assert.ErrorContains(t, err, "back in time")

	_, err = ParseScript([]byte("ticks:\n  - audio: {kind: chirp}\n"), "")
	assert.ErrorContains(t, err, "unknown audio kind")

	_, err = ParseScript([]byte("ticks:\n  - image: missing.png\n"), t.TempDir())
	assert.Error(t, err)
}

func TestScriptSource_ContextCancel(t *testing.T) {
	src, err := ParseScript([]byte("realtime: true\ninterval: 1h\nticks:\n  - title: a\n  - title: b\n"), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = src.Next(ctx)
	require.NoError(t, err)

	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAudioSpec_FeedsSignalClassifier(t *testing.T) {
	a := signal.NewAudioAnalyzer(signal.DefaultThresholds())

	music, err := AudioSpec{Kind: "tone", Hz: []float64{3000, 5000, 7000}}.Synthesize(0)
	require.NoError(t, err)
	got := a.Analyze(music)
	assert.True(t, got.HasAudio)
	assert.True(t, got.IsMusicLike)

	speech, err := AudioSpec{Kind: "tone", Hz: []float64{300}}.Synthesize(0)
	require.NoError(t, err)
	assert.True(t, a.Analyze(speech).IsSpeechLike)

	silence, err := AudioSpec{Kind: "silence"}.Synthesize(0)
	require.NoError(t, err)
	assert.True(t, a.Analyze(silence).IsSilent)

	_, err = AudioSpec{Kind: "tone"}.Synthesize(0)
	assert.Error(t, err)
}

func TestTick_Raw(t *testing.T) {
	tick := Tick{Title: "t", AppName: "a", VisualDiff: 3, Keyboard: true, Audio: []byte{1, 2}}
	raw := tick.Raw()
	assert.Equal(t, signal.Raw{Title: "t", AppName: "a", VisualDiff: 3, Keyboard: true, Audio: []byte{1, 2}}, raw)
}
