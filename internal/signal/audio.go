package signal

import (
	"encoding/binary"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AudioAnalyzer classifies raw 16-bit little-endian mono PCM.
//
// It keeps the previous volume (for the delta) and a bounded volume history.
// Not safe for concurrent use; the Extractor serializes access.
type AudioAnalyzer struct {
	th Thresholds

	lastVolume    float64
	volumeHistory []float64

	// FFT plans are reused across ticks keyed by window length.
	ffts map[int]*fourier.FFT
}

// NewAudioAnalyzer creates an AudioAnalyzer with the given thresholds.
func NewAudioAnalyzer(th Thresholds) *AudioAnalyzer {
	return &AudioAnalyzer{
		th:   th.withDefaults(),
		ffts: make(map[int]*fourier.FFT),
	}
}

// Analyze extracts audio features. Absent or too-short input degrades to
// silence and leaves the rolling state untouched.
func (a *AudioAnalyzer) Analyze(pcm []byte) AudioFeatures {
	result := silentAudio()
	if len(pcm) < a.th.MinAudioBytes {
		return result
	}

	samples := decodePCM16(pcm)
	if len(samples) == 0 {
		return result
	}

	var sumSquares float64
	for _, s := range samples {
		sumSquares += s * s
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	result.VolumeLevel = math.Min(1.0, rms*a.th.VolumeScale)
	result.IsSilent = result.VolumeLevel < a.th.SilenceLevel
	result.HasAudio = !result.IsSilent

	result.VolumeDelta = result.VolumeLevel - a.lastVolume
	a.lastVolume = result.VolumeLevel

	a.volumeHistory = append(a.volumeHistory, result.VolumeLevel)
	if over := len(a.volumeHistory) - a.th.VolumeHistoryMax; over > 0 {
		a.volumeHistory = a.volumeHistory[over:]
	}

	if result.HasAudio && len(samples) >= a.th.MinSpectrumSize {
		result.IsMusicLike, result.IsSpeechLike = a.classifySpectrum(samples)
	}

	return result
}

// classifySpectrum computes the share of spectral magnitude inside the voice
// band over the analysis window. Speech concentrates there; music spreads.
func (a *AudioAnalyzer) classifySpectrum(samples []float64) (music, speech bool) {
	n := min(len(samples), a.th.AnalysisWindow)
	window := samples[:n]

	fft, ok := a.ffts[n]
	if !ok {
		fft = fourier.NewFFT(n)
		a.ffts[n] = fft
	}
	coeffs := fft.Coefficients(nil, window)

	var voice, total float64
	rate := float64(a.th.SampleRate)
	for i, c := range coeffs {
		mag := cmplx.Abs(c)
		total += mag
		hz := fft.Freq(i) * rate
		if hz >= a.th.VoiceBandLowHz && hz <= a.th.VoiceBandHighHz {
			voice += mag
		}
	}
	if total <= 0 {
		return false, false
	}

	ratio := voice / total
	speech = ratio > a.th.SpeechRatio
	music = ratio < a.th.MusicRatio && total > a.th.MusicMinEnergy
	return music, speech
}

// VolumeHistory returns a copy of the recent volume levels, oldest first.
func (a *AudioAnalyzer) VolumeHistory() []float64 {
	out := make([]float64, len(a.volumeHistory))
	copy(out, a.volumeHistory)
	return out
}

// Reset clears the rolling state.
func (a *AudioAnalyzer) Reset() {
	a.lastVolume = 0
	a.volumeHistory = nil
}

// decodePCM16 converts s16le bytes to samples in [-1, 1). A trailing odd
// byte is dropped.
func decodePCM16(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = float64(v) / 32768.0
	}
	return out
}
