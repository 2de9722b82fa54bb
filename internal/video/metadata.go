// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Video stream metadata related constructs.

package video

import (
	"path/filepath"
	"strings"
)

// Metadata type contains useful video stream metadata.
type Metadata struct {
	CodecName  string  `json:"codec_name,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	FrameCount int     `json:"frame_count,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
}

// DurationMS derives stream duration in milliseconds from frame count and
// frame rate. Derived rather than read from the container so that time
// window validation agrees with what sequential decode will actually yield.
func (m Metadata) DurationMS() float64 {
	if m.FrameRate <= 0 {
		return 0
	}
	return float64(m.FrameCount) / m.FrameRate * 1000
}

// Task describes a single input video queued for extraction. Created once
// per input file and not shared across videos.
type Task struct {
	Path string
	Meta Metadata
}

// Stem returns the video file name without directory and extension, used as
// the base for output image names.
func (t Task) Stem() string {
	base := filepath.Base(t.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
