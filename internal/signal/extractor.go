package signal

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Platform groups used by the activity decision list.
var (
	mediaPlatforms    = map[string]bool{"YouTube": true, "Twitch": true, "Netflix": true}
	passivePlatforms  = map[string]bool{"YouTube": true, "Twitch": true, "Netflix": true}
	musicPlatforms    = map[string]bool{"Spotify": true}
	chatPlatforms     = map[string]bool{"Discord": true, "Slack": true}
	researchPlatforms = map[string]bool{"GitHub": true, "Stack Overflow": true}
)

// chatApps are matched as substrings of the lower-cased app name so that
// process names like "Discord.exe" count.
var chatApps = []string{"discord", "slack", "teams", "telegram"}

// Raw is one tick of raw observation as handed to the extractor.
type Raw struct {
	// Timestamp is the tick time; zero means the extractor clock.
	Timestamp  time.Time
	Title      string
	AppName    string
	Audio      []byte  // s16le mono PCM, nil when not sampled
	VisualDiff float64 // percent of pixels changed since the previous frame
	Keyboard   bool
	Mouse      bool
}

// Extractor combines the title, audio and visual analyzers.
// All methods are safe for concurrent use.
type Extractor struct {
	mu     sync.Mutex
	title  *TitleParser
	audio  *AudioAnalyzer
	visual *VisualAnalyzer
	now    func() time.Time
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used to timestamp features.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(th Thresholds, opts ...Option) *Extractor {
	e := &Extractor{
		title:  NewTitleParser(),
		audio:  NewAudioAnalyzer(th),
		visual: NewVisualAnalyzer(th),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("signal")
	return e
}

// Extract converts one raw tick into ContextFeatures. It never fails:
// missing pieces degrade to silence, stability and an empty title.
func (e *Extractor) Extract(raw Raw) ContextFeatures {
	e.mu.Lock()
	defer e.mu.Unlock()

	title := e.title.Parse(raw.Title, raw.AppName)
	audio := e.audio.Analyze(raw.Audio)
	if raw.Audio != nil && len(raw.Audio) < e.audio.th.MinAudioBytes {
		e.logger.Debug("audio sample too short, treating as silence", zap.Int("bytes", len(raw.Audio)))
	}
	visual := e.visual.Analyze(raw.VisualDiff)
	input := Input{Keyboard: raw.Keyboard, Mouse: raw.Mouse}
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	f := ContextFeatures{
		Title:     title,
		Audio:     audio,
		Visual:    visual,
		Input:     input,
		Timestamp: ts,
	}
	f.Activity = classifyActivity(title, raw.AppName, audio, visual, input)
	f.IsPassive = isPassive(title, audio, visual, input)
	f.IsFocused = isFocused(title, audio, visual, input)

	e.logger.Debug("features",
		zap.String("app", title.AppName),
		zap.String("platform", title.Platform),
		zap.String("activity", f.Activity.String()),
		zap.Float64("volume", audio.VolumeLevel),
		zap.Float64("change", visual.ChangePercentage),
		zap.Bool("passive", f.IsPassive),
		zap.Bool("focused", f.IsFocused))

	return f
}

// Reset clears the rolling audio and visual history.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio.Reset()
	e.visual.Reset()
}

// classifyActivity is a fixed-precedence decision list; the first match wins.
// app is the captured process name, which survives a blank title.
func classifyActivity(t ParsedTitle, app string, a AudioFeatures, v VisualFeatures, in Input) ActivityType {
	switch {
	case t.HasCodeFile():
		return ActivityCoding
	case mediaPlatforms[t.Platform], v.IsVideoPlaying && a.IsMusicLike:
		return ActivityMedia
	case musicPlatforms[t.Platform], a.IsMusicLike && !v.IsVideoPlaying:
		return ActivityMusic
	case chatPlatforms[t.Platform], isChatApp(app), isChatApp(t.AppName):
		return ActivityCommunication
	case researchPlatforms[t.Platform]:
		return ActivityResearch
	case t.URLDomain != "" && in.Mouse && !in.Keyboard:
		return ActivityBrowsing
	case v.IsVideoPlaying && a.HasAudio && !in.Keyboard:
		return ActivityGaming
	default:
		return ActivityGeneral
	}
}

func isPassive(t ParsedTitle, a AudioFeatures, v VisualFeatures, in Input) bool {
	return v.IsVideoPlaying ||
		(a.IsMusicLike && !in.Keyboard) ||
		passivePlatforms[t.Platform]
}

// isFocused needs agreement across all three channels.
func isFocused(t ParsedTitle, a AudioFeatures, v VisualFeatures, in Input) bool {
	return in.Keyboard &&
		!a.HasAudio &&
		v.IsStable &&
		t.HasCodeFile()
}

func isChatApp(app string) bool {
	lower := strings.ToLower(app)
	if lower == "" {
		return false
	}
	for _, c := range chatApps {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
