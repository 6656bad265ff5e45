package signal

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// VisualAnalyzer classifies the screen-change percentage of each tick.
//
// Steady playback shows up as a consistently moderate change with little
// spread; dragging a window is just as large on average but erratic.
type VisualAnalyzer struct {
	th            Thresholds
	changeHistory []float64
}

// NewVisualAnalyzer creates a VisualAnalyzer with the given thresholds.
func NewVisualAnalyzer(th Thresholds) *VisualAnalyzer {
	return &VisualAnalyzer{th: th.withDefaults()}
}

// Analyze records diff in the rolling history and classifies it.
// Negative or non-finite diffs are treated as no change.
func (v *VisualAnalyzer) Analyze(diff float64) VisualFeatures {
	if math.IsNaN(diff) || math.IsInf(diff, 0) || diff < 0 {
		diff = 0
	}

	v.changeHistory = append(v.changeHistory, diff)
	if over := len(v.changeHistory) - v.th.ChangeHistoryMax; over > 0 {
		v.changeHistory = v.changeHistory[over:]
	}

	result := VisualFeatures{
		ChangePercentage: diff,
		IsStable:         diff < v.th.StableChange,
	}

	if len(v.changeHistory) >= v.th.VideoWindow {
		recent := v.changeHistory[len(v.changeHistory)-v.th.VideoWindow:]
		mean, std := stat.PopMeanStdDev(recent, nil)
		result.IsVideoPlaying = mean > v.th.VideoMeanChange && std < v.th.VideoMaxStdDev
	}

	return result
}

// Reset clears the change history.
func (v *VisualAnalyzer) Reset() {
	v.changeHistory = nil
}
