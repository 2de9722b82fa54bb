// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Metadata_DurationMS(t *testing.T) {
	tests := map[string]struct {
		given Metadata
		want  float64
	}{
		"10 frames at 10 fps is 1 second": {
			given: Metadata{FrameRate: 10, FrameCount: 10},
			want:  1000,
		},
		"25 fps one minute": {
			given: Metadata{FrameRate: 25, FrameCount: 1500},
			want:  60000,
		},
		"zero frame rate yields zero duration": {
			given: Metadata{FrameRate: 0, FrameCount: 100},
			want:  0,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.given.DurationMS(), 1e-9)
		})
	}
}

func Test_Task_Stem(t *testing.T) {
	tests := map[string]struct {
		given string
		want  string
	}{
		"plain file":          {given: "movie.mp4", want: "movie"},
		"nested path":         {given: "videos/clips/take 2.mkv", want: "take 2"},
		"no extension":        {given: "raw", want: "raw"},
		"dot in middle":       {given: "a.b.mp4", want: "a.b"},
		"hidden-ish filename": {given: "dir/.config.avi", want: ".config"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Task{Path: tc.given}.Stem())
		})
	}
}
