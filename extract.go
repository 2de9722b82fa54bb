// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// ifv tool's extract subcommand implementation.

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"

	"github.com/StarFishzt/images-from-videos/internal/extraction"
	"github.com/StarFishzt/images-from-videos/internal/logging"
	"github.com/StarFishzt/images-from-videos/internal/output"
	"github.com/StarFishzt/images-from-videos/internal/selector"
)

// optionalInt is a flag that may be given bare taking a preset value, or with
// an explicit value attached, e.g. -skip-frame or -skip-frame=5. Space
// separated form is not supported for such flags.
type optionalInt struct {
	set   bool
	value int64
	// Value assumed when the flag is given bare.
	bare int64
}

func (o *optionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatInt(o.value, 10)
}

func (o *optionalInt) Set(s string) error {
	// Bare flag occurrence arrives as the literal "true".
	if s == "true" {
		o.value = o.bare
		o.set = true
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *optionalInt) IsBoolFlag() bool { return true }

// optionalFloat is optionalInt's float64 counterpart.
type optionalFloat struct {
	set   bool
	value float64
	bare  float64
}

func (o *optionalFloat) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatFloat(o.value, 'f', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	if s == "true" {
		o.value = o.bare
		o.set = true
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *optionalFloat) IsBoolFlag() bool { return true }

// Make sure ExtractApp implements Commander interface.
var _ Commander = (*ExtractApp)(nil)

// ExtractApp is extract subcommand context that implements Commander interface.
type ExtractApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Input video file or directory with video files
	flInput string
	// Output directory for extracted images
	flOutDir string
	// Image file extension
	flExt string
	// Use flat output layout instead of per-video subdirectories
	flFlat bool
	// Descend into subdirectories when input is a directory
	flRecursive bool
	// Extraction window bounds in milliseconds, -1 means unset
	flStart int64
	flEnd   int64
	// Keep every Nth frame
	flSkipFrame optionalInt
	// Minimum milliseconds between kept frames
	flSkipTime optionalInt
	// Blur filter threshold
	flBlur optionalFloat
	// Videos processed concurrently
	flWorkers int
	// Per-video processing time budget
	flVideoTimeout time.Duration
	// List videos and resolved options without extracting
	flDryRun bool
	// Global flags
	gf globalFlags
}

// CreateExtractCommand will create Commander instance from ExtractApp.
func CreateExtractCommand() Commander {
	longHelp := `Subcommand "extract" will decode video files and save selected frames as images.

By default every decoded frame is kept. Sampling flags thin the selection:
-skip-frame keeps every Nth frame, -skip-time enforces a minimum time gap
between kept frames. The two are mutually exclusive. Both accept a bare form
with a preset value or an attached value, e.g. -skip-frame or -skip-frame=10.

The -blur flag enables a sharpness filter: frames whose Laplacian variance
falls below the threshold are rejected.

Examples:

  ifv extract -i video.mp4
  ifv extract -i videos/ -recursive -out frames -skip-time=500
  ifv extract -i video.mp4 -start 5000 -end 60000 -blur=120 -flat`

	app := &ExtractApp{
		fs: flag.NewFlagSet("extract", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInput, "i", "", "Input video file or directory (mandatory)")
	app.fs.StringVar(&app.flOutDir, "out", "results", "Output directory for extracted images")
	app.fs.StringVar(&app.flExt, "ext", "jpg", "Image extension, jpg or png")
	app.fs.BoolVar(&app.flFlat, "flat", false, "Save all images directly in output directory with video name prefix")
	app.fs.BoolVar(&app.flRecursive, "recursive", false, "Descend into subdirectories when input is a directory")
	app.fs.Int64Var(&app.flStart, "start", -1, "Start extracting at this time in milliseconds")
	app.fs.Int64Var(&app.flEnd, "end", -1, "Stop extracting at this time in milliseconds")
	app.flSkipFrame = optionalInt{bare: 1}
	app.fs.Var(&app.flSkipFrame, "skip-frame", "Keep only every Nth frame, e.g. -skip-frame=10 (bare flag means 1)")
	app.flSkipTime = optionalInt{bare: 1000}
	app.fs.Var(&app.flSkipTime, "skip-time", "Minimum milliseconds between kept frames, e.g. -skip-time=500 (bare flag means 1000)")
	app.flBlur = optionalFloat{bare: 100}
	app.fs.Var(&app.flBlur, "blur", "Reject frames with Laplacian variance below threshold, e.g. -blur=250 (bare flag means 100)")
	app.fs.IntVar(&app.flWorkers, "workers", 1, "Number of videos to process concurrently")
	app.fs.DurationVar(&app.flVideoTimeout, "video-timeout", 0, "Per-video processing time budget, e.g. 10m (0 means unlimited)")
	app.fs.BoolVar(&app.flDryRun, "dry-run", false, "Resolve inputs and options but do not extract anything")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

func (a *ExtractApp) Name() string {
	return a.fs.Name()
}

func (a *ExtractApp) Help() {
	a.fs.Usage()
}

// init will do App state initialization.
func (a *ExtractApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.Name()),
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	if a.flInput == "" {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}

	// Frame based and time based sampling cannot be combined, their cursors
	// would fight over which frame is due next.
	if a.flSkipFrame.set && a.flSkipTime.set {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "options -skip-frame and -skip-time are mutually exclusive",
		}
	}

	if !output.ExtensionSupported(a.flExt) {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg: fmt.Sprintf("unsupported image extension %q, supported: %s",
				a.flExt, strings.Join(output.SupportedExtensions, ", ")),
		}
	}

	if a.flWorkers < 1 {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "option -workers must be at least 1",
		}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	return nil
}

// selectionConfig assembles the frame selection policy from parsed flags.
func (a *ExtractApp) selectionConfig() (selector.Config, error) {
	cfg := selector.Config{Sampling: selector.SampleAll()}

	if a.flStart >= 0 {
		start := a.flStart
		cfg.StartMS = &start
	}
	if a.flEnd >= 0 {
		end := a.flEnd
		cfg.EndMS = &end
	}
	if a.flSkipFrame.set {
		mode, err := selector.EveryNthFrame(int(a.flSkipFrame.value))
		if err != nil {
			return cfg, err
		}
		cfg.Sampling = mode
	}
	if a.flSkipTime.set {
		mode, err := selector.MinInterval(a.flSkipTime.value)
		if err != nil {
			return cfg, err
		}
		cfg.Sampling = mode
	}
	if a.flBlur.set {
		threshold := a.flBlur.value
		cfg.BlurThreshold = &threshold
	}

	return cfg, cfg.Validate()
}

// csvRecord is one row of the extraction report.
type csvRecord struct {
	RunID string
	extraction.Result
}

// saveReport writes per-video extraction results to CSV report file.
func (a *ExtractApp) saveReport(runID string, results []extraction.Result) error {
	report := make([]csvRecord, 0, len(results))
	for _, r := range results {
		report = append(report, csvRecord{RunID: runID, Result: r})
	}

	reportPath := path.Join(a.flOutDir, a.cfg.ReportFileName.Value())
	reportOut, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("creating CSV report file: %w", err)
	}
	defer reportOut.Close()

	w := csv.NewWriter(reportOut)
	if err := csvutil.NewEncoder(w).Encode(report); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	w.Flush()

	logging.Infof("Extraction report written to %s", reportPath)
	return w.Error()
}

// Run is main entry point into ExtractApp execution.
func (a *ExtractApp) Run(args []string) error {
	logging.Infof("ifv version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	selection, err := a.selectionConfig()
	if err != nil {
		return &AppError{exitCode: 2, msg: err.Error()}
	}

	videos, err := findVideos(a.flInput, a.flRecursive)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	if len(videos) == 0 {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("no video files found in %s", a.flInput)}
	}
	logging.Infof("Found %d video(s) to process", len(videos))

	layout := output.Nested
	if a.flFlat {
		layout = output.Flat
	}
	logging.Debugf("Selection policy: window=[%v, %v] sampling=%v blur=%v",
		a.flStart, a.flEnd, selection.Sampling, a.flBlur.String())

	// Early return in "dry run" mode.
	if a.flDryRun {
		for _, v := range videos {
			logging.Infof("Would process: %s", v)
		}
		logging.Info("Dry run mode finished!")
		return nil
	}

	if err := os.MkdirAll(a.flOutDir, 0o755); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("creating output directory: %s", err)}
	}

	runID := uuid.NewString()
	logging.Infof("Extraction run ID: %s", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := extraction.New(extraction.Options{
		OutDir:       a.flOutDir,
		Extension:    a.flExt,
		Layout:       layout,
		Selection:    selection,
		Workers:      a.flWorkers,
		VideoTimeout: a.flVideoTimeout,
	}, logging.Current())

	results, runErr := pipeline.Run(ctx, videos)

	var totalKept, totalDecoded, skipped int
	for _, r := range results {
		totalKept += r.Kept
		totalDecoded += r.Decoded
		if r.Unsupported {
			skipped++
		}
	}
	logging.Infof("Processed %d video(s): %d frame(s) decoded, %d image(s) saved, %d file(s) skipped",
		len(results)-skipped, totalDecoded, totalKept, skipped)

	if len(results) > 0 {
		if err := a.saveReport(runID, results); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
	}

	if runErr != nil {
		return &AppError{exitCode: 1, msg: runErr.Error()}
	}

	return nil
}
