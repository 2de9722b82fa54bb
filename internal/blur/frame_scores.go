// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Per-frame sharpness score series and its JSON round-trip. This is the
// interchange format between extraction runs and the scoreplot subcommand.

package blur

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FrameScore is the sharpness score of a single evaluated frame.
type FrameScore struct {
	Index       int
	TimestampMS float64
	Score       float64
	// Kept is false when the frame was dropped for scoring under the
	// threshold.
	Kept bool
}

type FrameScores []FrameScore

func (fs *FrameScores) FromJSON(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("FromJSON() read from io.Reader: %w", err)
	}

	if err := json.Unmarshal(data, fs); err != nil {
		return fmt.Errorf("FromJSON() JSON unmarshal: %w", err)
	}

	return nil
}

func (fs FrameScores) ToJSON(w io.Writer) error {
	jDoc, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fmt.Errorf("ToJSON() marshal: %w", err)
	}

	if _, err := w.Write(jDoc); err != nil {
		return fmt.Errorf("ToJSON() write to Writer: %w", err)
	}

	return nil
}

// Values returns the bare score series.
func (fs FrameScores) Values() []float64 {
	out := make([]float64, len(fs))
	for i, v := range fs {
		out[i] = v.Score
	}
	return out
}

// Aggregate holds summary statistics over a score series.
type Aggregate struct {
	Min   float64
	Max   float64
	Mean  float64
	StDev float64
}

// Aggregate computes summary statistics of the score series. Zero value for
// an empty series.
func (fs FrameScores) Aggregate() Aggregate {
	if len(fs) == 0 {
		return Aggregate{}
	}

	v := fs.Values()
	var agg Aggregate
	agg.Min = floats.Min(v)
	agg.Max = floats.Max(v)
	agg.Mean, agg.StDev = stat.MeanStdDev(v, nil)
	if len(v) == 1 {
		// MeanStdDev is sample based and yields NaN for a single value.
		agg.StDev = 0
	}
	return agg
}
