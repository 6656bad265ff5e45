package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// Differ computes the visual_diff channel: the percentage of sampled
// pixels that changed since the previous frame.
type Differ struct {
	// Stride samples every Nth pixel in both directions.
	Stride int
	// Tolerance is the per-channel difference (0-255) below which a pixel
	// counts as unchanged.
	Tolerance uint8

	mu   sync.Mutex
	prev image.Image
}

// NewDiffer returns a Differ sampling every 4th pixel with tolerance 16.
func NewDiffer() *Differ {
	return &Differ{Stride: 4, Tolerance: 16}
}

// Diff decodes a PNG frame and compares it with the previous one. The first
// frame, or a frame whose size differs from the previous one, reports 100.
func (d *Differ) Diff(frame []byte) (float64, error) {
	img, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return 0, fmt.Errorf("decode frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.prev
	d.prev = img
	if prev == nil || prev.Bounds() != img.Bounds() {
		return 100, nil
	}
	return changedPercent(prev, img, max(d.Stride, 1), uint32(d.Tolerance)), nil
}

// Reset forgets the previous frame.
func (d *Differ) Reset() {
	d.mu.Lock()
	d.prev = nil
	d.mu.Unlock()
}

func changedPercent(a, b image.Image, stride int, tol uint32) float64 {
	bounds := a.Bounds()
	var total, changed int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			total++
			if pixelChanged(a.At(x, y), b.At(x, y), tol) {
				changed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(changed) / float64(total) * 100
}

func pixelChanged(p, q color.Color, tol uint32) bool {
	ar, ag, ab, _ := p.RGBA()
	br, bg, bb, _ := q.RGBA()
	// RGBA returns 16-bit channels.
	return absDiff(ar, br)>>8 > tol || absDiff(ag, bg)>>8 > tol || absDiff(ab, bb)>>8 > tol
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
