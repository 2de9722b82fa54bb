// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Sharpness scoring via variance of the Laplacian, the classic blur
// detection heuristic: a smooth image has few second-derivative edges and
// therefore low variance.
package blur

import (
	"gonum.org/v1/gonum/stat"
)

// Filter gates frames on their sharpness score.
type Filter struct {
	threshold *float64
}

// New creates a Filter. A nil threshold disables the filter entirely.
func New(threshold *float64) *Filter {
	return &Filter{threshold: threshold}
}

// Enabled reports whether a threshold is configured.
func (f *Filter) Enabled() bool {
	return f.threshold != nil
}

// Threshold returns the configured threshold, 0 when disabled.
func (f *Filter) Threshold() float64 {
	if f.threshold == nil {
		return 0
	}
	return *f.threshold
}

// IsBlurry scores the frame and compares against the threshold. Verdict is
// true iff score < threshold. With the filter disabled every frame passes
// and the score is reported as 0 without being computed.
func (f *Filter) IsBlurry(pix []byte, width, height int) (score float64, blurry bool) {
	if f.threshold == nil {
		return 0, false
	}
	score = Score(pix, width, height)
	return score, score < *f.threshold
}

// Score computes the sharpness score of an RGBA pixel buffer: variance of a
// 4-neighbor discrete Laplacian applied to the BT.601 luminance plane.
// Higher is sharper. Frames too small to have interior pixels score 0.
func Score(pix []byte, width, height int) float64 {
	if width < 3 || height < 3 || len(pix) < width*height*4 {
		return 0
	}

	luma := make([]float64, width*height)
	for i := 0; i < width*height; i++ {
		r := float64(pix[i*4])
		g := float64(pix[i*4+1])
		b := float64(pix[i*4+2])
		luma[i] = 0.299*r + 0.587*g + 0.114*b
	}

	// Laplacian kernel [0 1 0; 1 -4 1; 0 1 0] over interior pixels.
	lap := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := y*width + x
			lap = append(lap, luma[c-width]+luma[c+width]+luma[c-1]+luma[c+1]-4*luma[c])
		}
	}

	return stat.Variance(lap, nil)
}
