package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is the YAML replay format.
//
//	start: 2026-10-14T09:00:00Z
//	interval: 1s
//	ticks:
//	  - title: "main.py - myproj - Visual Studio Code"
//	    app: Code.exe
//	    visual_diff: 0.1
//	    keyboard: true
//	    repeat: 40
//	  - at: 2m
//	    title: "Lo-fi Beats - YouTube"
//	    audio: {kind: tone, hz: [3000, 5000, 7000], amplitude: 0.3}
type Script struct {
	Start      time.Time     `yaml:"start"`
	Interval   time.Duration `yaml:"interval"`
	SampleRate int           `yaml:"sample_rate"`
	Realtime   bool          `yaml:"realtime"`
	Ticks      []ScriptTick  `yaml:"ticks"`
}

// ScriptTick is one entry of a script. Repeat expands it into several
// ticks spaced by the script interval.
type ScriptTick struct {
	At         *time.Duration `yaml:"at"`
	Title      string         `yaml:"title"`
	App        string         `yaml:"app"`
	VisualDiff float64        `yaml:"visual_diff"`
	Keyboard   bool           `yaml:"keyboard"`
	Mouse      bool           `yaml:"mouse"`
	Audio      *AudioSpec     `yaml:"audio"`
	Image      string         `yaml:"image"`
	Repeat     int            `yaml:"repeat"`
}

// AudioSpec describes synthetic PCM for a tick.
type AudioSpec struct {
	Kind      string    `yaml:"kind"` // tone, noise or silence
	Hz        []float64 `yaml:"hz"`
	Amplitude float64   `yaml:"amplitude"`
	Samples   int       `yaml:"samples"`
}

const (
	defaultSampleRate = 44100
	defaultSamples    = 4096
)

// Synthesize renders the tone as s16le mono PCM.
func (a AudioSpec) Synthesize(sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	n := a.Samples
	if n <= 0 {
		n = defaultSamples
	}
	amp := a.Amplitude
	if amp <= 0 {
		amp = 0.3
	}
	amp = math.Min(amp, 1)

	buf := make([]byte, n*2)
	switch a.Kind {
	case "silence":
		return buf, nil
	case "tone":
		if len(a.Hz) == 0 {
			return nil, fmt.Errorf("tone needs at least one frequency")
		}
		for i := 0; i < n; i++ {
			var v float64
			for _, hz := range a.Hz {
				v += math.Sin(2 * math.Pi * hz * float64(i) / float64(sampleRate))
			}
			putSample(buf, i, v/float64(len(a.Hz))*amp)
		}
	case "noise":
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < n; i++ {
			putSample(buf, i, (rng.Float64()*2-1)*amp)
		}
	default:
		return nil, fmt.Errorf("unknown audio kind %q", a.Kind)
	}
	return buf, nil
}

func putSample(buf []byte, i int, v float64) {
	binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*math.MaxInt16)))
}

// ScriptSource replays a Script.
type ScriptSource struct {
	name     string
	ticks    []Tick
	interval time.Duration
	realtime bool
	pos      int
}

// LoadScript reads a script file. Image paths are relative to the file.
func LoadScript(path string) (*ScriptSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	src, err := ParseScript(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.name = "script:" + filepath.Base(path)
	return src, nil
}

// ParseScript decodes a script; dir resolves relative image paths.
func ParseScript(data []byte, dir string) (*ScriptSource, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if s.Interval <= 0 {
		s.Interval = time.Second
	}
	if s.Start.IsZero() {
		s.Start = time.Now().Truncate(time.Second)
	}

	src := &ScriptSource{name: "script", interval: s.Interval, realtime: s.Realtime}
	offset := -s.Interval
	for i, st := range s.Ticks {
		if st.At != nil {
			if *st.At < offset {
				return nil, fmt.Errorf("tick %d: at %s goes back in time", i, *st.At)
			}
			offset = *st.At - s.Interval
		}

		var audio, image []byte
		if st.Audio != nil {
			var err error
			if audio, err = st.Audio.Synthesize(s.SampleRate); err != nil {
				return nil, fmt.Errorf("tick %d: %w", i, err)
			}
		}
		if st.Image != "" {
			p := st.Image
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			var err error
			if image, err = os.ReadFile(p); err != nil {
				return nil, fmt.Errorf("tick %d: %w", i, err)
			}
		}

		repeat := st.Repeat
		if repeat <= 0 {
			repeat = 1
		}
		for r := 0; r < repeat; r++ {
			offset += s.Interval
			src.ticks = append(src.ticks, Tick{
				Timestamp:  s.Start.Add(offset),
				Title:      st.Title,
				AppName:    st.App,
				Audio:      audio,
				Image:      image,
				VisualDiff: st.VisualDiff,
				Keyboard:   st.Keyboard,
				Mouse:      st.Mouse,
			})
		}
	}
	return src, nil
}

// Name implements Source.
func (s *ScriptSource) Name() string { return s.name }

// Available implements Source.
func (s *ScriptSource) Available() bool { return true }

// Len returns the total number of ticks in the script.
func (s *ScriptSource) Len() int { return len(s.ticks) }

// Next implements Source. In realtime mode it waits one interval between
// ticks; otherwise it returns immediately with the scripted timestamps.
func (s *ScriptSource) Next(ctx context.Context) (Tick, error) {
	if err := ctx.Err(); err != nil {
		return Tick{}, err
	}
	if s.pos >= len(s.ticks) {
		return Tick{}, ErrExhausted
	}
	if s.realtime && s.pos > 0 {
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Tick{}, ctx.Err()
		case <-t.C:
		}
	}
	tick := s.ticks[s.pos]
	s.pos++
	return tick, nil
}
