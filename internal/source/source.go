// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Sequential video decode session built on top of Vidio (which in turn
// drives ffmpeg/ffprobe subprocesses).
package source

import (
	"errors"
	"fmt"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/StarFishzt/images-from-videos/internal/video"
)

// ErrUnsupportedFormat marks files the decoder cannot open. Callers are
// expected to treat this as a per-file condition, not a run failure.
var ErrUnsupportedFormat = errors.New("unsupported video format")

// Frame is a single decoded frame candidate.
//
// Pix is the RGBA pixel buffer and is only valid until the next call to
// Next() on the producing Source: the decision pipeline consumes a frame
// immediately and never retains it.
type Frame struct {
	// 0-based decode sequence number, counted from the start of the stream.
	Index int
	// Stream position of this frame.
	TimestampMS float64
	Pix         []byte
	Width       int
	Height      int
}

// Source wraps one decode session. Decoding is strictly sequential and
// forward-only: time window bounds are enforced by looking at each decoded
// frame's timestamp, never by seeking (seeking per sample interval proved
// to be far slower than just decoding through).
type Source struct {
	path   string
	vid    *vidio.Video
	meta   video.Metadata
	next   int
	closed bool
}

// Open starts a decode session for the given file.
//
// Any file the decoder cannot make sense of (missing, not a media file, no
// video stream) is reported as ErrUnsupportedFormat.
func Open(path string) (*Source, error) {
	vid, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w (%s)", path, ErrUnsupportedFormat, err)
	}

	meta := video.Metadata{
		CodecName:  vid.Codec(),
		FrameRate:  vid.FPS(),
		FrameCount: vid.Frames(),
		Width:      vid.Width(),
		Height:     vid.Height(),
	}
	return &Source{path: path, vid: vid, meta: meta}, nil
}

// Metadata returns stream metadata, valid while the Source is open.
func (s *Source) Metadata() video.Metadata {
	return s.meta
}

// Next decodes the next frame. Returns false at end of stream; a decode
// failure mid-stream is indistinguishable from end of stream on purpose,
// whatever was extracted up to that point stands.
func (s *Source) Next() (Frame, bool) {
	if s.closed || !s.vid.Read() {
		return Frame{}, false
	}

	f := Frame{
		Index:  s.next,
		Pix:    s.vid.FrameBuffer(),
		Width:  s.meta.Width,
		Height: s.meta.Height,
	}
	if s.meta.FrameRate > 0 {
		f.TimestampMS = float64(f.Index) / s.meta.FrameRate * 1000
	}
	s.next++
	return f, true
}

// Close releases the decode session. Safe to call more than once, but the
// pipeline calls it exactly once per session on every exit path.
func (s *Source) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.vid.Close()
}
