// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Per-frame keep/skip policy: time window bounds, sampling gate and the
// cursor state the time-based gate depends on.
package selector

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid selection config")

// Decision is the verdict for a single frame candidate.
type Decision int

const (
	// Keep means the candidate passed window and sampling gates. The blur
	// gate, when enabled, still runs after this verdict.
	Keep Decision = iota
	// SkipBeforeStart: candidate is before the requested window.
	SkipBeforeStart
	// SkipAfterEnd: candidate is at or past the window end. Terminal for
	// the video, no further candidates should be evaluated.
	SkipAfterEnd
	// SkipBySampling: candidate is inside the window but rejected by the
	// active sampling mode.
	SkipBySampling
	// SkipByBlur: candidate passed all gates but scored under the blur
	// threshold. Issued by the pipeline, never by Judge.
	SkipByBlur
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case SkipBeforeStart:
		return "skip-before-start"
	case SkipAfterEnd:
		return "skip-after-end"
	case SkipBySampling:
		return "skip-by-sampling"
	case SkipByBlur:
		return "skip-by-blur"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// cursor tracks the most recently kept frame of one video.
type cursor struct {
	kept            bool
	lastIndex       int
	lastTimestampMS float64
}

// SamplingMode selects which in-window frames are retained. It is a closed
// set of variants (SampleAll, EveryNthFrame, MinInterval) so that the
// "frame-based and time-based sampling both active" state cannot be
// represented at all.
type SamplingMode interface {
	fmt.Stringer
	// admit reports whether the candidate passes the sampling gate given
	// the cursor of the previously kept frame.
	admit(index int, timestampMS float64, cur cursor) bool
}

type sampleAll struct{}

func (sampleAll) admit(int, float64, cursor) bool { return true }
func (sampleAll) String() string                  { return "all frames" }

type everyNth struct{ n int }

// The index is the absolute decode sequence number, counted from the start
// of the stream rather than from the first in-window frame. See DESIGN.md.
func (m everyNth) admit(index int, _ float64, _ cursor) bool { return index%m.n == 0 }
func (m everyNth) String() string                            { return fmt.Sprintf("every %d frame(s)", m.n) }

type minInterval struct{ ms int64 }

// The first eligible candidate is always admitted, regardless of interval.
func (m minInterval) admit(_ int, timestampMS float64, cur cursor) bool {
	if !cur.kept {
		return true
	}
	return timestampMS-cur.lastTimestampMS >= float64(m.ms)
}

func (m minInterval) String() string { return fmt.Sprintf("every %d ms", m.ms) }

// SampleAll retains every in-window frame.
func SampleAll() SamplingMode { return sampleAll{} }

// EveryNthFrame retains frames whose stream index is a multiple of n.
func EveryNthFrame(n int) (SamplingMode, error) {
	if n < 1 {
		return nil, fmt.Errorf("skip frame count must be a positive integer, got %d: %w", n, ErrInvalidConfig)
	}
	return everyNth{n: n}, nil
}

// MinInterval retains a frame only when at least ms milliseconds of stream
// time passed since the previously kept frame.
func MinInterval(ms int64) (SamplingMode, error) {
	if ms < 1 {
		return nil, fmt.Errorf("skip time must be a positive interval, got %d ms: %w", ms, ErrInvalidConfig)
	}
	return minInterval{ms: ms}, nil
}

// Config is the per-run selection policy, shared read-only across videos.
type Config struct {
	// Window bounds in stream milliseconds, nil means unbounded.
	StartMS *int64
	EndMS   *int64
	// Active sampling mode, nil is equivalent to SampleAll.
	Sampling SamplingMode
	// Laplacian variance threshold, nil disables the blur gate.
	BlurThreshold *float64
}

// Validate checks configuration-time invariants. Per-video conditions, like
// bounds exceeding a particular video's duration, are not checked here.
func (c *Config) Validate() error {
	if c.StartMS != nil && *c.StartMS < 0 {
		return fmt.Errorf("start time must be non-negative: %w", ErrInvalidConfig)
	}
	if c.EndMS != nil && *c.EndMS < 0 {
		return fmt.Errorf("end time must be non-negative: %w", ErrInvalidConfig)
	}
	if c.StartMS != nil && c.EndMS != nil && *c.EndMS <= *c.StartMS {
		return fmt.Errorf("end time cannot be less than or equal to start time: %w", ErrInvalidConfig)
	}
	if c.BlurThreshold != nil && *c.BlurThreshold < 0 {
		return fmt.Errorf("blur threshold must be non-negative: %w", ErrInvalidConfig)
	}
	return nil
}

// sampling returns the effective sampling mode.
func (c *Config) sampling() SamplingMode {
	if c.Sampling == nil {
		return sampleAll{}
	}
	return c.Sampling
}

// Selector decides Keep/Skip for a sequence of frame candidates of a single
// video. Not shared across videos: the cursor is per decode session.
type Selector struct {
	cfg Config
	cur cursor
}

func New(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// Judge runs the window and sampling gates in fixed order, short-circuiting
// at the first skip verdict:
//
//  1. before-start bound
//  2. after-end bound (terminal)
//  3. sampling gate
//
// Bounds run first so the sampling gate only ever sees in-window candidates.
// The blur gate is evaluated by the caller after a Keep verdict, so that
// frames rejected by cheap gates never pay for the score computation; a
// kept frame must then be confirmed via Commit.
func (s *Selector) Judge(index int, timestampMS float64) Decision {
	if s.cfg.StartMS != nil && timestampMS < float64(*s.cfg.StartMS) {
		return SkipBeforeStart
	}
	if s.cfg.EndMS != nil && timestampMS >= float64(*s.cfg.EndMS) {
		return SkipAfterEnd
	}
	if !s.cfg.sampling().admit(index, timestampMS, s.cur) {
		return SkipBySampling
	}
	return Keep
}

// Commit records the candidate as kept, advancing the sampling cursor. Only
// call for candidates that passed Judge and the blur gate: a frame dropped
// as blurry does not consume the sampling interval.
func (s *Selector) Commit(index int, timestampMS float64) {
	s.cur = cursor{kept: true, lastIndex: index, lastTimestampMS: timestampMS}
}

// LastKept returns the cursor of the most recently kept frame. The second
// return value is false while nothing has been kept yet.
func (s *Selector) LastKept() (index int, timestampMS float64, ok bool) {
	return s.cur.lastIndex, s.cur.lastTimestampMS, s.cur.kept
}
