// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// ifv tool's scoreplot subcommand implementation.

package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/StarFishzt/images-from-videos/internal/analysis"
	"github.com/StarFishzt/images-from-videos/internal/blur"
	"github.com/StarFishzt/images-from-videos/internal/logging"
)

// Make sure ScorePlotApp implements Commander interface.
var _ Commander = (*ScorePlotApp)(nil)

// ScorePlotApp is scoreplot subcommand context that implements Commander interface.
type ScorePlotApp struct {
	// FlagSet instance
	fs *flag.FlagSet
	// Input sharpness scores JSON file
	flInFile string
	// Plot output file
	flOutFile string
	// Optional threshold to render as horizontal line
	flThreshold float64
	// Global flags
	gf globalFlags
}

// CreateScorePlotCommand will create Commander instance from ScorePlotApp.
func CreateScorePlotCommand() Commander {
	longHelp := `Subcommand "scoreplot" will create a sharpness multi-plot from a scores JSON
file produced by "extract" with the -blur flag enabled.

Examples:

  ifv scoreplot -i results/video_scores.json
  ifv scoreplot -i results/video_scores.json -o sharpness.png -threshold 100`

	app := &ScorePlotApp{
		fs: flag.NewFlagSet("scoreplot", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInFile, "i", "", "Input sharpness scores JSON file (mandatory)")
	app.fs.StringVar(&app.flOutFile, "o", "", "File to save plot to")
	app.fs.Float64Var(&app.flThreshold, "threshold", -1, "Draw threshold line at this value (negative means none)")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

func (a *ScorePlotApp) Name() string {
	return a.fs.Name()
}

func (a *ScorePlotApp) Help() {
	a.fs.Usage()
}

// Run is main entry point into ScorePlotApp execution.
func (a *ScorePlotApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	if a.flInFile == "" {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}

	if a.flOutFile == "" {
		base := path.Base(a.flInFile)
		base = strings.TrimSuffix(base, path.Ext(base))
		a.flOutFile = base + ".png"
	}

	logging.Infof("Output will be written to:\n\t%s\n", a.flOutFile)

	f, err := os.Open(a.flInFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("opening scores file: %s", err)}
	}
	defer f.Close()

	var scores blur.FrameScores
	if err := scores.FromJSON(f); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("parsing scores file: %s", err)}
	}

	var threshold *float64
	if a.flThreshold >= 0 {
		threshold = &a.flThreshold
	}

	base := path.Base(a.flInFile)
	if err := analysis.MultiPlotScores(scores, threshold, base, a.flOutFile); err != nil {
		return &AppError{
			exitCode: 1,
			msg:      err.Error(),
		}
	}

	return nil
}
