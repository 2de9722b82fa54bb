// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Plot generation for per-frame sharpness score series.

package analysis

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/StarFishzt/images-from-videos/internal/blur"
)

var (
	defaultPlotWidth  = vg.Centimeter * 24
	defaultPlotHeight = vg.Centimeter * 7
)

// A custom color palette: color1 as base color and color2 as a darker variant.
var ColorPalette = []color.RGBA{
	// red1
	{R: 230, G: 57, B: 70, A: 255},
	// red2
	{R: 143, G: 35, B: 43, A: 255},
	// green1
	{R: 84, G: 184, B: 50, A: 255},
	// green2
	{R: 50, G: 110, B: 30, A: 255},
	// blue1
	{R: 63, G: 55, B: 201, A: 255},
	// blue2
	{R: 51, G: 45, B: 163, A: 255},
	// purple1
	{R: 86, G: 11, B: 173, A: 255},
	// purple2
	{R: 62, G: 8, B: 125, A: 255},
	// cyan1
	{R: 31, G: 180, B: 206, A: 255},
	// cyan2
	{R: 11, G: 123, B: 143, A: 255},
	// orange1
	{R: 255, G: 174, B: 0, A: 255},
	// orange2
	{R: 173, G: 118, B: 0, A: 255},
}

// CreateScorePlot creates a sharpness score over time plot.
//
// Kept and rejected frames are drawn as separate scatters so that the effect
// of the threshold is visible at a glance. When threshold is non-nil it is
// rendered as a labeled horizontal line.
func CreateScorePlot(scores blur.FrameScores, threshold *float64) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Time (seconds)"
	p.Y.Label.Text = "Laplacian variance"
	p.Y.Min = 0

	if len(scores) == 0 {
		return p, errors.New("CreateScorePlot() empty score series")
	}

	var keptXY, droppedXY plotter.XYs
	var xMax float64
	for _, s := range scores {
		xy := plotter.XY{X: s.TimestampMS / 1000, Y: s.Score}
		if xy.X > xMax {
			xMax = xy.X
		}
		if s.Kept {
			keptXY = append(keptXY, xy)
		} else {
			droppedXY = append(droppedXY, xy)
		}
	}

	if len(keptXY) > 0 {
		keptScatter, err := plotter.NewScatter(keptXY)
		if err != nil {
			return p, fmt.Errorf("CreateScorePlot() creating kept scatter: %w", err)
		}
		keptScatter.Color = ColorPalette[2]
		p.Add(keptScatter)
		p.Legend.Add("kept", keptScatter)
	}
	if len(droppedXY) > 0 {
		droppedScatter, err := plotter.NewScatter(droppedXY)
		if err != nil {
			return p, fmt.Errorf("CreateScorePlot() creating dropped scatter: %w", err)
		}
		droppedScatter.Color = ColorPalette[0]
		p.Add(droppedScatter)
		p.Legend.Add("blurry", droppedScatter)
	}

	if threshold != nil {
		tLine, tLabel := horizontalLineWithLabel(*threshold, 0, xMax,
			fmt.Sprintf("threshold=%.2f", *threshold))
		p.Add(tLine, tLabel)
	}

	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// CreateHistogramPlot creates histogram plot for given sharpness values.
func CreateHistogramPlot(values []float64, name string) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = name
	p.Y.Label.Text = "N"

	// We are going to mutate values slice, so make a copy to avoid mangling
	// underlying array and creating unexpected sideffect in caller's scope.
	lValues := make([]float64, len(values))
	copy(lValues, values)

	// A number of bins to use for histogram.
	var bins int = 100
	if len(lValues) < bins {
		bins = len(lValues)
	}

	// Make sure values are sorted.
	sort.Float64s(lValues)

	pHist, err := plotter.NewHist(plotter.Values(lValues), bins)
	if err != nil {
		return p, fmt.Errorf("CreateHistogramPlot() creating new histogram: %w", err)
	}
	pHist.Color = color.Transparent
	pHist.FillColor = ColorPalette[7]

	p.Add(pHist)
	p.Add(plotter.NewGrid())

	return p, nil
}

// CreateCDFPlot creates Cumulative Distribution Function plot for given
// sharpness values.
func CreateCDFPlot(values []float64, name string) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = name
	p.Y.Label.Text = "Probability"
	p.Y.Min = 0

	// We are going to mutate values slice, so make a copy to avoid mangling
	// underlying array and creating unexpected sideffect in caller's scope.
	lValues := make([]float64, len(values))
	copy(lValues, values)
	// Make sure values are sorted
	sort.Float64s(lValues)

	// Have to transform lValues to something that implements plotter.XYer
	// interface so it can be used later on to construct plot.
	cdfValues := make(plotter.XYs, len(lValues))
	for i, v := range lValues {
		cdfValues[i].X = v
		cdfValues[i].Y = stat.CDF(v, stat.Empirical, lValues, nil)
	}

	cdfLine, err := plotter.NewLine(cdfValues)
	if err != nil {
		return p, fmt.Errorf("CreateCDFPlot() creating new Line: %w", err)
	}
	cdfLine.Color = ColorPalette[2]

	p.Add(cdfLine, plotter.NewGrid())
	p.Add(createQuantileLines(p, lValues, 0.01, 0.05, 0.5, 0.95)...)

	return p, nil
}

// MultiPlotScores will create a sharpness multi plot and save it to a file.
//
// Resulting plot includes the score over time plot, score histogram and CDF
// plot all in one canvas.
func MultiPlotScores(scores blur.FrameScores, threshold *float64, title, outFile string) (err error) {
	values := scores.Values()

	// Create a 2D slice to hold subplots. This is the sad state of gonum's API
	// at this point unfortunately.
	const rows, cols = 3, 1
	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, cols)
	}

	plots[0][0], err = CreateScorePlot(scores, threshold)
	if err != nil {
		return err
	}

	plots[1][0], err = CreateHistogramPlot(values, "Laplacian variance")
	if err != nil {
		return err
	}

	plots[2][0], err = CreateCDFPlot(values, "Laplacian variance")
	if err != nil {
		return err
	}

	// Tweak titles and labels to have better layout and make plots less busy.
	plots[0][0].Title.Text = title + "\n\nPer frame sharpness"
	plots[1][0].Title.Text = "Sharpness Histogram"
	plots[1][0].X.Label.Text = ""
	plots[2][0].Title.Text = "Cumulative Distribution Function (CDF)"

	img := vgimg.New(defaultPlotWidth, defaultPlotHeight*rows)
	dc := draw.New(img)

	t := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadY: vg.Points(10),
	}

	canvases := plot.Align(plots, t, dc)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			if plots[j][i] != nil {
				plots[j][i].Draw(canvases[j][i])
			}
		}
	}

	w, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("MultiPlotScores() error from os.Create(): %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("MultiPlotScores() failed writing png file: %w", err)
	}

	return nil
}

// verticalLine is helper to create a vertical line.
func verticalLine(x, ymin, ymax float64) *plotter.Line {
	line, err := plotter.NewLine(plotter.XYs{
		{X: x, Y: ymin},
		{X: x, Y: ymax},
	})
	// Unlikely to have error here - so just panic in that case.
	if err != nil {
		log.Panic(err)
	}
	return line
}

// horizontalLine is helper to create a horizontal line.
func horizontalLine(y, xmin, xmax float64) *plotter.Line {
	line, err := plotter.NewLine(plotter.XYs{
		{X: xmin, Y: y},
		{X: xmax, Y: y},
	})
	// Unlikely to have error here - so just panic in that case.
	if err != nil {
		log.Panic(err)
	}
	return line
}

// horizontalLineWithLabel wraps horizontalLine and adds label.
func horizontalLineWithLabel(y, xMin, xMax float64, label string) (*plotter.Line, *plotter.Labels) {
	hLine := horizontalLine(y, xMin, xMax)
	hLine.Color = color.RGBA{156, 67, 162, 255}
	hLabel, _ := plotter.NewLabels(plotter.XYLabels{
		XYs: plotter.XYs{
			{X: 0, Y: y},
		},
		Labels: []string{
			label,
		},
	})
	hLabel.Offset.X = 5
	hLabel.Offset.Y = 5

	return hLine, hLabel
}

// createQuantileLines is helper to create vertical Quantile lines.
func createQuantileLines(p *plot.Plot, values []float64, quantiles ...float64) []plot.Plotter {
	var plotters []plot.Plotter
	colorCount := len(ColorPalette)
	for i, q := range quantiles {
		qVal := stat.Quantile(q, stat.Empirical, values, nil)
		qLine := verticalLine(qVal, p.Y.Min, p.Y.Max)
		qLine.LineStyle.Width = vg.Points(1)
		qLine.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		// Safe index with step=2 into ColorPalette with wrap-around to avoid
		// panic in case of bounds check fails.
		qLine.Color = ColorPalette[i*5%colorCount]

		labels, _ := plotter.NewLabels(plotter.XYLabels{
			XYs: plotter.XYs{
				{X: qVal, Y: q},
			},
			Labels: []string{
				fmt.Sprintf("q(%.2f)=%.3f", q, qVal),
			},
		})
		labels.Offset.X = 5
		labels.Offset.Y = -5

		plotters = append(plotters, qLine, labels)
	}
	// Also add mean/average line.
	meanVal := stat.Mean(values, nil)
	meanLine := verticalLine(meanVal, p.Y.Min, p.Y.Max)
	meanLine.Color = ColorPalette[len(ColorPalette)-1]
	qValMean := stat.CDF(meanVal, stat.Empirical, values, nil)
	meanLabel, _ := plotter.NewLabels(plotter.XYLabels{
		XYs: plotter.XYs{
			{X: meanVal, Y: qValMean},
		},
		Labels: []string{
			fmt.Sprintf("mean=%.3f", meanVal),
		},
	})
	meanLabel.Offset.X = 5
	meanLabel.Offset.Y = -5
	plotters = append(plotters, meanLine, meanLabel)

	return plotters
}
