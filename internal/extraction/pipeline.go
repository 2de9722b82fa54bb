// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Extraction pipeline: drives decode -> frame selection -> blur gate ->
// path planning -> image write for each video, and sequences or pools
// videos for a whole run.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/StarFishzt/images-from-videos/internal/blur"
	"github.com/StarFishzt/images-from-videos/internal/logging"
	"github.com/StarFishzt/images-from-videos/internal/output"
	"github.com/StarFishzt/images-from-videos/internal/selector"
	"github.com/StarFishzt/images-from-videos/internal/source"
	"github.com/StarFishzt/images-from-videos/internal/video"
)

// ErrBoundsExceeded means a configured start/end bound lies beyond a
// video's duration. This is a user configuration mistake against a known
// input set, so it fails the whole run rather than one video (see
// DESIGN.md for the policy discussion).
var ErrBoundsExceeded = errors.New("time bounds exceed video duration")

// Decoder is the sequential decode contract the pipeline consumes. The
// production implementation is source.Source; tests substitute in-memory
// fakes.
type Decoder interface {
	Metadata() video.Metadata
	Next() (source.Frame, bool)
	Close()
}

// Opener starts a decode session for a path.
type Opener func(path string) (Decoder, error)

func defaultOpener(path string) (Decoder, error) {
	return source.Open(path)
}

// Options configure a run. Shared read-only across all videos.
type Options struct {
	// Output root directory.
	OutDir string
	// Image extension, one of output.SupportedExtensions.
	Extension string
	Layout    output.Layout
	Selection selector.Config
	// Number of videos processed concurrently, minimum 1.
	Workers int
	// Optional wall-clock budget per video, guards against decoder hangs.
	VideoTimeout time.Duration
}

// Result summarizes extraction of one video.
type Result struct {
	Video       string
	Stem        string
	FPS         float64
	FrameCount  int
	DurationMS  float64
	Decoded     int
	Kept        int
	OutOfWindow int
	Sampled     int
	Blurry      int
	// Unsupported is set when the decoder could not open the file and the
	// video was skipped.
	Unsupported bool
	// Human friendly representation of Elapsed.
	HElapsed string
	Elapsed  time.Duration
	// Sharpness score aggregate, all zero when the blur filter is off.
	ScoreMin   float64
	ScoreMax   float64
	ScoreMean  float64
	ScoreStDev float64
}

// Pipeline executes extraction runs. The logger is injected at
// construction, the pipeline itself holds no global state.
type Pipeline struct {
	opts Options
	log  *logging.Log
	open Opener
	// Injectable image writer, defaults to output.WriteImage.
	writeImage func(path string, width, height int, pix []byte) error
	// Injectable scores sink, defaults to a JSON file next to the images.
	writeScores func(stem string, scores blur.FrameScores) error
}

func New(opts Options, log *logging.Log) *Pipeline {
	p := &Pipeline{
		opts:       opts,
		log:        log,
		open:       defaultOpener,
		writeImage: output.WriteImage,
	}
	p.writeScores = p.writeScoresFile
	return p
}

// Run processes all videos and returns one Result per processed video.
//
// Non-fatal conditions (unsupported format) are recorded in the Result and
// logged; fatal ones (bounds exceeded) cancel the rest of the run and are
// returned. Results of videos finished before the failure are returned
// alongside the error.
func (p *Pipeline) Run(ctx context.Context, paths []string) ([]Result, error) {
	workers := p.opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	store := NewStore()

	if workers == 1 {
		// Baseline mode: one video start-to-finish before the next begins.
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			res, err := p.ExtractVideo(ctx, path)
			store.Insert(res)
			if err != nil {
				return store.All(), err
			}
		}
		return store.All(), nil
	}

	// Worker pool mode. Per-video pipelines are independent: disjoint
	// decode sessions and output paths, shared state is only the read-only
	// Options and the mutex-guarded Store.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		fatalErr error
	)
	tasks := make(chan string)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range tasks {
				res, err := p.ExtractVideo(ctx, path)
				store.Insert(res)
				if err != nil {
					errOnce.Do(func() {
						fatalErr = err
						cancel()
					})
					return
				}
			}
		}()
	}

feed:
	for _, path := range paths {
		select {
		case tasks <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	return store.All(), fatalErr
}

// ExtractVideo runs the per-frame decision loop for a single video.
//
// An unsupported input is not an error: it is logged as a warning and
// reported via Result.Unsupported. The decode session is closed on every
// exit path, including cancellation and mid-stream decode failures.
func (p *Pipeline) ExtractVideo(ctx context.Context, path string) (Result, error) {
	res := Result{Video: path, Stem: video.Task{Path: path}.Stem()}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		res.HElapsed = res.Elapsed.String()
	}()

	if p.opts.VideoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.VideoTimeout)
		defer cancel()
	}

	dec, err := p.open(path)
	if err != nil {
		res.Unsupported = true
		p.log.Warnf("'%s' is not a supported video format, skipping", path)
		p.log.Debugf("open failure: %v", err)
		return res, nil
	}
	defer dec.Close()

	meta := dec.Metadata()
	task := video.Task{Path: path, Meta: meta}
	res.FPS = meta.FrameRate
	res.FrameCount = meta.FrameCount
	res.DurationMS = meta.DurationMS()
	p.log.Infof("Process '%s' | FPS: %g", path, meta.FrameRate)
	p.log.Infof("Total frames: %d | Duration: %g ms", meta.FrameCount, res.DurationMS)

	if err := checkBounds(p.opts.Selection, res.DurationMS); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	sel := selector.New(p.opts.Selection)
	filter := blur.New(p.opts.Selection.BlurThreshold)
	planner := output.NewPlanner(p.opts.OutDir, task.Stem(), p.opts.Extension, p.opts.Layout)
	var scores blur.FrameScores

	for {
		// Stop signal is honored between frames; the deferred Close still
		// releases the decode session.
		if ctx.Err() != nil {
			p.log.Infof("Extraction of '%s' cancelled", path)
			break
		}

		frame, ok := dec.Next()
		if !ok {
			break
		}
		res.Decoded++

		verdict := sel.Judge(frame.Index, frame.TimestampMS)
		if verdict == selector.SkipAfterEnd {
			break
		}
		switch verdict {
		case selector.SkipBeforeStart:
			res.OutOfWindow++
			continue
		case selector.SkipBySampling:
			res.Sampled++
			continue
		}

		score, blurry := filter.IsBlurry(frame.Pix, frame.Width, frame.Height)
		if filter.Enabled() {
			scores = append(scores, blur.FrameScore{
				Index:       frame.Index,
				TimestampMS: frame.TimestampMS,
				Score:       score,
				Kept:        !blurry,
			})
		}
		if blurry {
			res.Blurry++
			p.log.Infof("Skip frame %d since laplacian variance is lower than the threshold (%g < %g) [blurry frame]",
				frame.Index, score, filter.Threshold())
			continue
		}

		dst, err := planner.Plan(frame.Index)
		if err != nil {
			return res, err
		}
		if err := p.writeImage(dst, frame.Width, frame.Height, frame.Pix); err != nil {
			return res, err
		}
		sel.Commit(frame.Index, frame.TimestampMS)
		res.Kept++
		p.log.Infof("Saved '%s'", dst)
	}

	if filter.Enabled() && len(scores) > 0 {
		agg := scores.Aggregate()
		res.ScoreMin = agg.Min
		res.ScoreMax = agg.Max
		res.ScoreMean = agg.Mean
		res.ScoreStDev = agg.StDev
		if err := p.writeScores(task.Stem(), scores); err != nil {
			return res, err
		}
	}

	p.log.Infof("Finish process '%s'", path)
	return res, nil
}

// checkBounds validates the configured window against a specific video's
// duration.
func checkBounds(cfg selector.Config, durationMS float64) error {
	if cfg.StartMS != nil && float64(*cfg.StartMS) > durationMS {
		return fmt.Errorf("start time cannot exceed the video duration (%g ms): %w", durationMS, ErrBoundsExceeded)
	}
	if cfg.EndMS != nil && float64(*cfg.EndMS) > durationMS {
		return fmt.Errorf("end time cannot exceed the video duration (%g ms): %w", durationMS, ErrBoundsExceeded)
	}
	return nil
}

// writeScoresFile stores the per-frame score series as {stem}_scores.json
// in the output root, the input expected by the scoreplot subcommand.
func (p *Pipeline) writeScoresFile(stem string, scores blur.FrameScores) error {
	path := filepath.Join(p.opts.OutDir, stem+"_scores.json")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scores file: %w", err)
	}
	defer f.Close()

	if err := scores.ToJSON(f); err != nil {
		return fmt.Errorf("writing scores file: %w", err)
	}
	p.log.Debugf("Sharpness scores written to '%s'", path)
	return nil
}
