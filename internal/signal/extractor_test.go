package signal

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 4096

// tone renders bin-centred sine waves so the spectrum has no leakage.
func tone(amplitude float64, bins ...int) []byte {
	buf := make([]byte, window*2)
	for i := 0; i < window; i++ {
		var v float64
		for _, k := range bins {
			v += math.Sin(2 * math.Pi * float64(k) * float64(i) / window)
		}
		v = v / float64(len(bins)) * amplitude
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*32767)))
	}
	return buf
}

// constant renders a flat signal at the given level.
func constant(level float64, n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(level*32767)))
	}
	return buf
}

// Bin 30 is ~323 Hz, inside the voice band. Bins 279/465/650 are ~3-7 kHz.
var (
	speechPCM = tone(0.3, 30)
	musicPCM  = tone(0.3, 279, 465, 650)
)

func TestAudioAnalyzer_SilenceAndAbsence(t *testing.T) {
	a := NewAudioAnalyzer(DefaultThresholds())

	for name, pcm := range map[string][]byte{
		"nil":       nil,
		"too short": make([]byte, 10),
		"zeros":     make([]byte, 2048),
		"quiet":     constant(0.001, 2048),
	} {
		t.Run(name, func(t *testing.T) {
			got := a.Analyze(pcm)
			assert.True(t, got.IsSilent)
			assert.False(t, got.HasAudio)
			assert.Less(t, got.VolumeLevel, 0.02)
			assert.False(t, got.IsMusicLike)
			assert.False(t, got.IsSpeechLike)
		})
	}
}

func TestAudioAnalyzer_SilenceThresholdBoundary(t *testing.T) {
	a := NewAudioAnalyzer(DefaultThresholds())

	// rms*10 just under 0.02 must be silent, never "has audio".
	got := a.Analyze(constant(0.0019, 2048))
	assert.True(t, got.IsSilent)
	assert.False(t, got.HasAudio)

	got = a.Analyze(constant(0.01, 2048))
	assert.False(t, got.IsSilent)
	assert.True(t, got.HasAudio)
	assert.InDelta(t, 0.1, got.VolumeLevel, 0.001)
}

func TestAudioAnalyzer_VolumeDelta(t *testing.T) {
	a := NewAudioAnalyzer(DefaultThresholds())

	first := a.Analyze(constant(0.01, 2048))
	assert.InDelta(t, first.VolumeLevel, first.VolumeDelta, 1e-9)

	second := a.Analyze(constant(0.2, 2048))
	assert.InDelta(t, 1.0, second.VolumeLevel, 1e-9, "scaled volume clamps to 1")
	assert.InDelta(t, 1.0-first.VolumeLevel, second.VolumeDelta, 1e-9)

	// Absent audio leaves the previous volume in place.
	a.Analyze(nil)
	third := a.Analyze(constant(0.2, 2048))
	assert.InDelta(t, 0.0, third.VolumeDelta, 1e-9)

	assert.Len(t, a.VolumeHistory(), 3)
}

func TestAudioAnalyzer_SpectrumClassification(t *testing.T) {
	a := NewAudioAnalyzer(DefaultThresholds())

	speech := a.Analyze(speechPCM)
	require.True(t, speech.HasAudio)
	assert.True(t, speech.IsSpeechLike)
	assert.False(t, speech.IsMusicLike)

	music := a.Analyze(musicPCM)
	require.True(t, music.HasAudio)
	assert.True(t, music.IsMusicLike)
	assert.False(t, music.IsSpeechLike)
}

func TestAudioAnalyzer_ShortSampleSkipsSpectrum(t *testing.T) {
	a := NewAudioAnalyzer(DefaultThresholds())

	got := a.Analyze(speechPCM[:1000]) // 500 samples, below the spectrum minimum
	assert.True(t, got.HasAudio)
	assert.False(t, got.IsSpeechLike)
	assert.False(t, got.IsMusicLike)
}

func TestVisualAnalyzer(t *testing.T) {
	v := NewVisualAnalyzer(DefaultThresholds())

	got := v.Analyze(0.1)
	assert.True(t, got.IsStable)
	assert.False(t, got.IsVideoPlaying, "needs a full window of history")

	v.Reset()
	var last VisualFeatures
	for _, d := range []float64{4, 5, 3, 4, 6} {
		last = v.Analyze(d)
	}
	assert.True(t, last.IsVideoPlaying)
	assert.False(t, last.IsStable)

	// Erratic change (dragging a window) has a large spread.
	v.Reset()
	for _, d := range []float64{0, 60, 0, 70, 1} {
		last = v.Analyze(d)
	}
	assert.False(t, last.IsVideoPlaying)

	got = v.Analyze(math.NaN())
	assert.Equal(t, 0.0, got.ChangePercentage)
	assert.True(t, got.IsStable)
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestExtractor_CodingScenario(t *testing.T) {
	e := NewExtractor(DefaultThresholds(), WithClock(fixedClock()))

	f := e.Extract(Raw{
		Title:      "main.py - myproj - Visual Studio Code",
		AppName:    "Code.exe",
		VisualDiff: 0.1,
		Keyboard:   true,
	})

	assert.Equal(t, ActivityCoding, f.Activity)
	assert.True(t, f.IsFocused)
	assert.False(t, f.IsPassive)
	assert.Equal(t, fixedClock()(), f.Timestamp)
	assert.Equal(t, "myproj", f.Title.ProjectName)
}

func TestExtractor_TickTimestampWins(t *testing.T) {
	e := NewExtractor(DefaultThresholds(), WithClock(fixedClock()))
	ts := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)

	f := e.Extract(Raw{Timestamp: ts, Title: "notes.txt - Notepad"})
	assert.Equal(t, ts, f.Timestamp)
}

func TestExtractor_MediaScenario(t *testing.T) {
	e := NewExtractor(DefaultThresholds())

	var f ContextFeatures
	for _, d := range []float64{4, 5, 3, 4, 6} {
		f = e.Extract(Raw{
			Title:      "Lo-fi Beats - YouTube",
			AppName:    "chrome.exe",
			Audio:      musicPCM,
			VisualDiff: d,
		})
	}

	require.Equal(t, "YouTube", f.Title.Platform)
	require.True(t, f.Visual.IsVideoPlaying)
	require.True(t, f.Audio.IsMusicLike)
	assert.Equal(t, ActivityMedia, f.Activity)
	assert.True(t, f.IsPassive)
	assert.False(t, f.IsFocused)
}

func TestExtractor_DecisionListPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		raw   Raw
		audio []byte
		video bool
		want  ActivityType
	}{
		{
			name: "code file beats platform",
			raw:  Raw{Title: "youtube_dl.py - tools - Visual Studio Code"},
			want: ActivityCoding,
		},
		{
			name:  "video plus music without platform is media",
			raw:   Raw{Title: "Player"},
			audio: musicPCM,
			video: true,
			want:  ActivityMedia,
		},
		{
			name:  "music-like audio without video is music",
			raw:   Raw{Title: "Some Window"},
			audio: musicPCM,
			want:  ActivityMusic,
		},
		{
			name: "chat app by process name",
			raw:  Raw{Title: "Friends", AppName: "Discord.exe"},
			want: ActivityCommunication,
		},
		{
			name: "chat app with a blank title",
			raw:  Raw{Title: "", AppName: "Discord.exe"},
			want: ActivityCommunication,
		},
		{
			name: "research platform",
			raw:  Raw{Title: "How to parse - Stack Overflow - Google Chrome"},
			want: ActivityResearch,
		},
		{
			name: "domain with mouse only is browsing",
			raw:  Raw{Title: "r/golang - Reddit", Mouse: true},
			want: ActivityBrowsing,
		},
		{
			name: "domain with typing is general",
			raw:  Raw{Title: "r/golang - Reddit", Mouse: true, Keyboard: true},
			want: ActivityGeneral,
		},
		{
			name:  "video with speech and no typing is gaming",
			raw:   Raw{Title: "Game"},
			audio: speechPCM,
			video: true,
			want:  ActivityGaming,
		},
		{
			name: "nothing known",
			raw:  Raw{Title: "Untitled", Keyboard: true},
			want: ActivityGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(DefaultThresholds())
			if tt.video {
				for _, d := range []float64{5, 5, 5, 5} {
					e.Extract(Raw{VisualDiff: d})
				}
				tt.raw.VisualDiff = 5
			}
			tt.raw.Audio = tt.audio
			f := e.Extract(tt.raw)
			assert.Equal(t, tt.want, f.Activity)
			assert.True(t, f.Activity.Valid())
		})
	}
}

func TestExtractor_FocusNeedsAllChannels(t *testing.T) {
	base := Raw{
		Title:      "main.go - rin - Visual Studio Code",
		AppName:    "code",
		VisualDiff: 0.5,
		Keyboard:   true,
	}

	e := NewExtractor(DefaultThresholds())
	assert.True(t, e.Extract(base).IsFocused)

	noKeys := base
	noKeys.Keyboard = false
	assert.False(t, e.Extract(noKeys).IsFocused)

	withAudio := base
	withAudio.Audio = speechPCM
	assert.False(t, e.Extract(withAudio).IsFocused)

	unstable := base
	unstable.VisualDiff = 25
	assert.False(t, e.Extract(unstable).IsFocused)

	notCode := base
	notCode.Title = "notes.txt - Notepad"
	assert.False(t, e.Extract(notCode).IsFocused)
}

func TestExtractor_PassiveMusicWithoutTyping(t *testing.T) {
	e := NewExtractor(DefaultThresholds())

	f := e.Extract(Raw{Title: "Some Window", Audio: musicPCM})
	assert.True(t, f.IsPassive)

	f = e.Extract(Raw{Title: "Some Window", Audio: musicPCM, Keyboard: true})
	assert.False(t, f.IsPassive)
}

func TestActivityType_IsCreative(t *testing.T) {
	assert.True(t, ActivityCoding.IsCreative())
	assert.True(t, ActivityWriting.IsCreative())
	assert.False(t, ActivityMedia.IsCreative())
	assert.False(t, ActivityType("cooking").Valid())
}
