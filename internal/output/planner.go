// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Destination path planning for kept frames.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Layout selects how kept frames of different videos share the output root.
type Layout int

const (
	// Nested puts each video's images under {root}/{stem}/.
	Nested Layout = iota
	// Flat puts all images directly under {root}, stem-prefixed.
	Flat
)

func (l Layout) String() string {
	switch l {
	case Nested:
		return "nested"
	case Flat:
		return "flat"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Planner computes unique destination paths for kept frames of one video.
//
// Paths embed a wall-clock capture instant so that repeated runs into the
// same output root do not collide; within one run the frame index keeps the
// set collision free. Under Nested layout the per-video directory is
// created lazily on first use.
type Planner struct {
	root   string
	stem   string
	ext    string
	layout Layout
	// Injectable clock, defaults to time.Now.
	now      func() time.Time
	dirReady bool
}

func NewPlanner(root, stem, ext string, layout Layout) *Planner {
	return &Planner{
		root:   root,
		stem:   stem,
		ext:    ext,
		layout: layout,
		now:    time.Now,
	}
}

// Plan returns the destination path for the frame with given stream index.
// Under Nested layout it also makes sure the per-video directory exists
// (create-if-absent, no error when it is already there).
func (p *Planner) Plan(frameIndex int) (string, error) {
	instant := p.now().UnixMilli()
	imageName := fmt.Sprintf("%d-%d.%s", instant, frameIndex, p.ext)

	if p.layout == Flat {
		return filepath.Join(p.root, fmt.Sprintf("%s-%s", p.stem, imageName)), nil
	}

	dir := filepath.Join(p.root, p.stem)
	if !p.dirReady {
		if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
			return "", fmt.Errorf("Plan() creating video directory: %w", err)
		}
		p.dirReady = true
	}
	return filepath.Join(dir, imageName), nil
}
