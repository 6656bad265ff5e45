// Package signal turns raw per-tick observations into structured features.
//
// Nothing here calls out to an AI provider or touches the disk. The only
// state is a small rolling history (previous volume, recent screen-change
// percentages) so the same inputs always produce the same features for a
// given history.
//
// Optional fields use the empty string for "absent". Features are plain
// values: they are created once per tick and passed by value downstream.
package signal

import "time"

// ActivityType is the derived classification of what the user is doing.
type ActivityType string

const (
	ActivityCoding        ActivityType = "coding"
	ActivityWriting       ActivityType = "writing" // only ever supplied by knowledge tiers
	ActivityMedia         ActivityType = "media"
	ActivityMusic         ActivityType = "music"
	ActivityCommunication ActivityType = "communication"
	ActivityResearch      ActivityType = "research"
	ActivityBrowsing      ActivityType = "browsing"
	ActivityGaming        ActivityType = "gaming"
	ActivityGeneral       ActivityType = "general"
)

// Valid reports whether a is one of the known activity types.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityCoding, ActivityWriting, ActivityMedia, ActivityMusic,
		ActivityCommunication, ActivityResearch, ActivityBrowsing,
		ActivityGaming, ActivityGeneral:
		return true
	}
	return false
}

// IsCreative reports whether a is an active-creation activity.
func (a ActivityType) IsCreative() bool {
	switch a {
	case ActivityCoding, ActivityWriting:
		return true
	default:
		return false
	}
}

func (a ActivityType) String() string {
	return string(a)
}

// ParsedTitle is the structured form of a window title.
type ParsedTitle struct {
	Raw           string
	AppName       string
	FileName      string
	FileExtension string // lower-cased, with leading dot, only for whitelisted extensions
	ProjectName   string
	URLDomain     string
	Platform      string // YouTube, GitHub, ...
	ContentTitle  string // video name, page title, channel
}

// HasCodeFile reports whether the title resolved to a known code-file extension.
func (p ParsedTitle) HasCodeFile() bool {
	_, ok := codeExtensions[p.FileExtension]
	return ok
}

// AudioFeatures describes one tick of ambient audio.
type AudioFeatures struct {
	HasAudio     bool
	IsSilent     bool
	VolumeLevel  float64 // 0.0 to 1.0
	VolumeDelta  float64 // change since the previous analysed sample
	IsMusicLike  bool    // broad frequency spread
	IsSpeechLike bool    // energy concentrated in voice frequencies
}

// silentAudio is what absent or malformed audio degrades to.
func silentAudio() AudioFeatures {
	return AudioFeatures{IsSilent: true}
}

// VisualFeatures describes the screen-change signal for one tick.
type VisualFeatures struct {
	ChangePercentage float64
	IsStable         bool
	IsVideoPlaying   bool
}

// Input records which input devices were active during the tick.
type Input struct {
	Keyboard bool
	Mouse    bool
}

// ContextFeatures combines everything extracted from one tick.
type ContextFeatures struct {
	Title     ParsedTitle
	Audio     AudioFeatures
	Visual    VisualFeatures
	Input     Input
	Timestamp time.Time

	Activity  ActivityType
	IsPassive bool // consuming, not creating
	IsFocused bool // deep work: keyboard, no audio, stable screen, code file
}
