// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StarFishzt/images-from-videos/internal/blur"
	"github.com/StarFishzt/images-from-videos/internal/logging"
	"github.com/StarFishzt/images-from-videos/internal/output"
	"github.com/StarFishzt/images-from-videos/internal/selector"
	"github.com/StarFishzt/images-from-videos/internal/source"
	"github.com/StarFishzt/images-from-videos/internal/video"
)

// fakeDecoder replays a fixed frame sequence and records Close calls.
type fakeDecoder struct {
	meta   video.Metadata
	frames []source.Frame
	pos    int
	closed bool
}

func (d *fakeDecoder) Metadata() video.Metadata { return d.meta }

func (d *fakeDecoder) Next() (source.Frame, bool) {
	if d.pos >= len(d.frames) {
		return source.Frame{}, false
	}
	f := d.frames[d.pos]
	d.pos++
	return f, true
}

func (d *fakeDecoder) Close() { d.closed = true }

// fixFrames produces count frames at the given frame rate with a uniform
// gray payload of sz x sz pixels.
func fixFrames(count int, fps float64, sz int) []source.Frame {
	frames := make([]source.Frame, count)
	pix := make([]byte, sz*sz*4)
	for i := range pix {
		pix[i] = 128
	}
	for i := 0; i < count; i++ {
		frames[i] = source.Frame{
			Index:       i,
			TimestampMS: float64(i) / fps * 1000,
			Pix:         pix,
			Width:       sz,
			Height:      sz,
		}
	}
	return frames
}

// fixPipeline wires a Pipeline to fake decoders and in-memory sinks.
// Returned maps capture written image paths and score series per stem.
func fixPipeline(opts Options, decoders map[string]*fakeDecoder) (*Pipeline, *[]string, map[string]blur.FrameScores) {
	p := New(opts, logging.Discard())

	var mu sync.Mutex
	written := &[]string{}
	scores := map[string]blur.FrameScores{}

	p.open = func(path string) (Decoder, error) {
		d, ok := decoders[path]
		if !ok {
			return nil, fmt.Errorf("open %s: %w", path, source.ErrUnsupportedFormat)
		}
		return d, nil
	}
	p.writeImage = func(path string, width, height int, pix []byte) error {
		mu.Lock()
		defer mu.Unlock()
		*written = append(*written, path)
		return nil
	}
	p.writeScores = func(stem string, s blur.FrameScores) error {
		mu.Lock()
		defer mu.Unlock()
		scores[stem] = s
		return nil
	}
	return p, written, scores
}

func Test_ExtractVideo_KeepsAllWithoutPolicies(t *testing.T) {
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 5},
		frames: fixFrames(5, 10, 8),
	}
	p, written, _ := fixPipeline(Options{OutDir: t.TempDir(), Extension: "jpg"},
		map[string]*fakeDecoder{"clip.mp4": dec})

	res, err := p.ExtractVideo(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Decoded)
	assert.Equal(t, 5, res.Kept)
	assert.Len(t, *written, 5)
	assert.True(t, dec.closed, "decode session must be closed")
}

func Test_ExtractVideo_UnsupportedFormatSkipsVideo(t *testing.T) {
	p, written, _ := fixPipeline(Options{OutDir: t.TempDir(), Extension: "jpg"},
		map[string]*fakeDecoder{})

	res, err := p.ExtractVideo(context.Background(), "notes.txt")
	require.NoError(t, err, "unsupported input is not a run failure")
	assert.True(t, res.Unsupported)
	assert.Zero(t, res.Kept)
	assert.Empty(t, *written)
}

func Test_ExtractVideo_EndBoundStopsDecoding(t *testing.T) {
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 10},
		frames: fixFrames(10, 10, 8),
	}
	end := int64(500)
	p, written, _ := fixPipeline(Options{
		OutDir:    t.TempDir(),
		Extension: "jpg",
		Selection: selector.Config{EndMS: &end},
	}, map[string]*fakeDecoder{"clip.mp4": dec})

	res, err := p.ExtractVideo(context.Background(), "clip.mp4")
	require.NoError(t, err)
	// Frames 0..4 kept, frame 5 (t=500ms) triggers the stop.
	assert.Equal(t, 5, res.Kept)
	assert.Equal(t, 6, res.Decoded, "decoding stops at the first frame past the end bound")
	assert.Len(t, *written, 5)
	assert.True(t, dec.closed)
}

func Test_ExtractVideo_BoundsExceededIsFatal(t *testing.T) {
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 10},
		frames: fixFrames(10, 10, 8),
	}
	start := int64(5000) // video is only 1000 ms long
	p, written, _ := fixPipeline(Options{
		OutDir:    t.TempDir(),
		Extension: "jpg",
		Selection: selector.Config{StartMS: &start},
	}, map[string]*fakeDecoder{"clip.mp4": dec})

	_, err := p.ExtractVideo(context.Background(), "clip.mp4")
	require.ErrorIs(t, err, ErrBoundsExceeded)
	assert.Empty(t, *written)
	assert.True(t, dec.closed, "session is closed even on fatal validation")
}

func Test_ExtractVideo_BlurryFramesAreDropped(t *testing.T) {
	// Uniform frames score 0, any positive threshold rejects them all.
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 4},
		frames: fixFrames(4, 10, 8),
	}
	threshold := 100.0
	p, written, scores := fixPipeline(Options{
		OutDir:    t.TempDir(),
		Extension: "jpg",
		Selection: selector.Config{BlurThreshold: &threshold},
	}, map[string]*fakeDecoder{"clip.mp4": dec})

	res, err := p.ExtractVideo(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Zero(t, res.Kept)
	assert.Equal(t, 4, res.Blurry)
	assert.Empty(t, *written)

	series, ok := scores["clip"]
	require.True(t, ok, "score series is recorded when the filter is on")
	assert.Len(t, series, 4)
	for _, s := range series {
		assert.False(t, s.Kept)
	}
}

func Test_ExtractVideo_CancellationClosesSession(t *testing.T) {
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 100},
		frames: fixFrames(100, 10, 8),
	}
	p, written, _ := fixPipeline(Options{OutDir: t.TempDir(), Extension: "jpg"},
		map[string]*fakeDecoder{"clip.mp4": dec})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.ExtractVideo(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Zero(t, res.Decoded)
	assert.Empty(t, *written)
	assert.True(t, dec.closed)
}

func Test_Run_UnsupportedFileDoesNotStopRun(t *testing.T) {
	good := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 3},
		frames: fixFrames(3, 10, 8),
	}
	p, written, _ := fixPipeline(Options{OutDir: t.TempDir(), Extension: "jpg"},
		map[string]*fakeDecoder{"good.mp4": good})

	results, err := p.Run(context.Background(), []string{"broken.bin", "good.mp4"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Unsupported)
	assert.Equal(t, 3, results[1].Kept)
	assert.Len(t, *written, 3)
}

func Test_Run_FatalErrorCancelsRemainingWork(t *testing.T) {
	start := int64(99999)
	decoders := map[string]*fakeDecoder{}
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = fmt.Sprintf("clip%d.mp4", i)
		decoders[paths[i]] = &fakeDecoder{
			meta:   video.Metadata{FrameRate: 10, FrameCount: 10},
			frames: fixFrames(10, 10, 8),
		}
	}
	p, _, _ := fixPipeline(Options{
		OutDir:    t.TempDir(),
		Extension: "jpg",
		Selection: selector.Config{StartMS: &start},
		Workers:   1,
	}, decoders)

	results, err := p.Run(context.Background(), paths)
	require.ErrorIs(t, err, ErrBoundsExceeded)
	assert.Less(t, len(results), len(paths), "run stops at the first fatal error")
}

func Test_Run_WorkerPoolProcessesAllVideos(t *testing.T) {
	decoders := map[string]*fakeDecoder{}
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = fmt.Sprintf("clip%d.mp4", i)
		decoders[paths[i]] = &fakeDecoder{
			meta:   video.Metadata{FrameRate: 10, FrameCount: 2},
			frames: fixFrames(2, 10, 8),
		}
	}
	p, written, _ := fixPipeline(Options{
		OutDir:    t.TempDir(),
		Extension: "jpg",
		Layout:    output.Nested,
		Workers:   4,
	}, decoders)

	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for _, r := range results {
		assert.Equal(t, 2, r.Kept, r.Video)
	}
	assert.Len(t, *written, 16)
	for _, d := range decoders {
		assert.True(t, d.closed)
	}
}

func Test_Run_VideoTimeoutBoundsSlowDecoding(t *testing.T) {
	dec := &fakeDecoder{
		meta:   video.Metadata{FrameRate: 10, FrameCount: 3},
		frames: fixFrames(3, 10, 8),
	}
	p, _, _ := fixPipeline(Options{
		OutDir:       t.TempDir(),
		Extension:    "jpg",
		VideoTimeout: time.Minute,
	}, map[string]*fakeDecoder{"clip.mp4": dec})

	res, err := p.ExtractVideo(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Kept, "generous timeout does not interfere with extraction")
}

func Test_checkBounds(t *testing.T) {
	ms := func(v int64) *int64 { return &v }

	tests := map[string]struct {
		cfg      selector.Config
		duration float64
		wantErr  bool
	}{
		"no bounds":           {selector.Config{}, 1000, false},
		"start within":        {selector.Config{StartMS: ms(500)}, 1000, false},
		"start beyond":        {selector.Config{StartMS: ms(1500)}, 1000, true},
		"end within":          {selector.Config{EndMS: ms(900)}, 1000, false},
		"end beyond":          {selector.Config{EndMS: ms(1001)}, 1000, true},
		"both at exact limit": {selector.Config{StartMS: ms(0), EndMS: ms(1000)}, 1000, false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := checkBounds(tc.cfg, tc.duration)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBoundsExceeded)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_fakeOpener_ErrorWrapsUnsupported(t *testing.T) {
	p, _, _ := fixPipeline(Options{OutDir: t.TempDir(), Extension: "jpg"},
		map[string]*fakeDecoder{})
	_, err := p.open("nope.gif")
	assert.True(t, errors.Is(err, source.ErrUnsupportedFormat))
}
