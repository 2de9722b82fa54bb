// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for reusable parts of ifv application and subcommand infrastructure.
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixVideoTree creates a directory tree with video and non-video files.
//
//	root/
//	  a.mp4
//	  b.MOV
//	  notes.txt
//	  sub/
//	    c.mkv
//	    thumb.jpg
func fixVideoTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	for _, f := range []string{"a.mp4", "b.MOV", "notes.txt", "sub/c.mkv", "sub/thumb.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("x"), 0o600))
	}
	return root
}

func Test_findVideos(t *testing.T) {
	root := fixVideoTree(t)

	t.Run("Single file is returned as-is", func(t *testing.T) {
		// Extension filter does not apply to explicitly named files.
		got, err := findVideos(filepath.Join(root, "notes.txt"), false)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "notes.txt")}, got)
	})

	t.Run("Directory scan is non-recursive by default", func(t *testing.T) {
		got, err := findVideos(root, false)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.mp4"),
			filepath.Join(root, "b.MOV"),
		}, got)
	})

	t.Run("Recursive scan descends into subdirectories", func(t *testing.T) {
		got, err := findVideos(root, true)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.mp4"),
			filepath.Join(root, "b.MOV"),
			filepath.Join(root, "sub/c.mkv"),
		}, got)
	})

	t.Run("Missing input is an error", func(t *testing.T) {
		_, err := findVideos(filepath.Join(root, "nope"), false)
		assert.Error(t, err)
	})
}

func Test_hasVideoExtension(t *testing.T) {
	tests := map[string]struct {
		given string
		want  bool
	}{
		"mp4":             {"clip.mp4", true},
		"uppercase":       {"CLIP.MKV", true},
		"image":           {"frame.jpg", false},
		"no extension":    {"clip", false},
		"dot only prefix": {".mp4", true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, hasVideoExtension(tc.given))
		})
	}
}

func Test_AppError(t *testing.T) {
	err := &AppError{msg: "boom", exitCode: 2}
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 2, err.ExitCode())
}
