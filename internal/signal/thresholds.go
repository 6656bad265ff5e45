package signal

// Thresholds holds the tunable constants of the extractor.
// The music/speech ratio cutoffs are empirical, so they live here rather
// than being baked into the classifier.
type Thresholds struct {
	// Audio
	SampleRate       int     `yaml:"sample_rate"`
	MinAudioBytes    int     `yaml:"min_audio_bytes"`
	VolumeScale      float64 `yaml:"volume_scale"`
	SilenceLevel     float64 `yaml:"silence_level"`
	MinSpectrumSize  int     `yaml:"min_spectrum_samples"`
	AnalysisWindow   int     `yaml:"analysis_window"`
	VoiceBandLowHz   float64 `yaml:"voice_band_low_hz"`
	VoiceBandHighHz  float64 `yaml:"voice_band_high_hz"`
	SpeechRatio      float64 `yaml:"speech_ratio"`
	MusicRatio       float64 `yaml:"music_ratio"`
	MusicMinEnergy   float64 `yaml:"music_min_energy"`
	VolumeHistoryMax int     `yaml:"volume_history_max"`

	// Visual
	StableChange     float64 `yaml:"stable_change"`
	VideoWindow      int     `yaml:"video_window"`
	VideoMeanChange  float64 `yaml:"video_mean_change"`
	VideoMaxStdDev   float64 `yaml:"video_max_stddev"`
	ChangeHistoryMax int     `yaml:"change_history_max"`
}

// DefaultThresholds returns the values the classifier was tuned with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SampleRate:       44100,
		MinAudioBytes:    100,
		VolumeScale:      10,
		SilenceLevel:     0.02,
		MinSpectrumSize:  1024,
		AnalysisWindow:   4096,
		VoiceBandLowHz:   80,
		VoiceBandHighHz:  1100,
		SpeechRatio:      0.5,
		MusicRatio:       0.4,
		MusicMinEnergy:   100,
		VolumeHistoryMax: 100,

		StableChange:     2.0,
		VideoWindow:      5,
		VideoMeanChange:  3.0,
		VideoMaxStdDev:   15.0,
		ChangeHistoryMax: 20,
	}
}

// withDefaults fills zero fields from DefaultThresholds so a partially
// specified config section still yields a usable extractor.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.SampleRate <= 0 {
		t.SampleRate = d.SampleRate
	}
	if t.MinAudioBytes <= 0 {
		t.MinAudioBytes = d.MinAudioBytes
	}
	if t.VolumeScale <= 0 {
		t.VolumeScale = d.VolumeScale
	}
	if t.SilenceLevel <= 0 {
		t.SilenceLevel = d.SilenceLevel
	}
	if t.MinSpectrumSize <= 0 {
		t.MinSpectrumSize = d.MinSpectrumSize
	}
	if t.AnalysisWindow <= 0 {
		t.AnalysisWindow = d.AnalysisWindow
	}
	if t.VoiceBandLowHz <= 0 {
		t.VoiceBandLowHz = d.VoiceBandLowHz
	}
	if t.VoiceBandHighHz <= t.VoiceBandLowHz {
		t.VoiceBandHighHz = d.VoiceBandHighHz
	}
	if t.SpeechRatio <= 0 {
		t.SpeechRatio = d.SpeechRatio
	}
	if t.MusicRatio <= 0 {
		t.MusicRatio = d.MusicRatio
	}
	if t.MusicMinEnergy <= 0 {
		t.MusicMinEnergy = d.MusicMinEnergy
	}
	if t.VolumeHistoryMax <= 0 {
		t.VolumeHistoryMax = d.VolumeHistoryMax
	}
	if t.StableChange <= 0 {
		t.StableChange = d.StableChange
	}
	if t.VideoWindow <= 0 {
		t.VideoWindow = d.VideoWindow
	}
	if t.VideoMeanChange <= 0 {
		t.VideoMeanChange = d.VideoMeanChange
	}
	if t.VideoMaxStdDev <= 0 {
		t.VideoMaxStdDev = d.VideoMaxStdDev
	}
	if t.ChangeHistoryMax < t.VideoWindow {
		t.ChangeHistoryMax = max(d.ChangeHistoryMax, t.VideoWindow)
	}
	return t
}
