// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffprobe based stream metadata extraction.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"text/template"

	"github.com/StarFishzt/images-from-videos/internal/logging"
	"github.com/StarFishzt/images-from-videos/internal/lw"
	"github.com/StarFishzt/images-from-videos/internal/video"
	"github.com/google/shlex"
)

// DefaultFfprobeTemplate is the ffprobe invocation used for metadata queries.
// Exposed via application configuration so that exotic inputs can be probed
// with different flags.
var DefaultFfprobeTemplate = "-v error -threads 0 -select_streams v " +
	"-count_frames -of json -show_format -show_streams {{.VideoFile}}"

// Cap on captured ffprobe stderr, a misbehaving probe should not be able to
// balloon memory.
const stderrBufferSize = 256 * 1024

// FfprobeExtractMetadata will query video file metadata via ffprobe.
//
// cmdTemplate is a text/template producing the argument string, with
// {{.VideoFile}} as the only placeholder.
func FfprobeExtractMetadata(videoFile, ffprobePath, cmdTemplate string) (video.Metadata, error) {
	var vmeta video.Metadata

	if _, err := os.Stat(videoFile); os.IsNotExist(err) {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() os.Stat: %w", err)
	}

	tplContext := struct{ VideoFile string }{VideoFile: videoFile}
	tpl, err := template.New("ffprobe").Parse(cmdTemplate)
	if err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() parse template: %w", err)
	}
	var argStr strings.Builder
	if err := tpl.Execute(&argStr, tplContext); err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() execute template: %w", err)
	}
	ffprobeArgs, err := shlex.Split(argStr.String())
	if err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() prepare command: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.Command(ffprobePath, ffprobeArgs...) //#nosec G204
	cmd.Stderr = lw.Truncate(&stderr, stderrBufferSize)
	logging.Debugf("Running: %s\n", cmd)
	out, err := cmd.Output()
	if err != nil {
		logging.Debugf("ffprobe stderr:\n%s", stderr.Bytes())
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() exec error: %w", err)
	}

	// A temporary structure to unmarshal JSON from ffprobe output.
	type stream struct {
		CodecName  string `json:"codec_name,omitempty"`
		FrameRate  string `json:"r_frame_rate,omitempty"`
		Width      int    `json:"width,omitempty"`
		Height     int    `json:"height,omitempty"`
		FrameCount int    `json:"nb_read_frames,omitempty,string"`
	}
	meta := &struct {
		Streams []stream
	}{}
	if err := json.Unmarshal(out, &meta); err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() json.Unmarshal: %w", err)
	}
	if len(meta.Streams) == 0 {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() no video streams in %s", videoFile)
	}

	s := meta.Streams[0]
	fps, err := ParseFraction(s.FrameRate)
	if err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() frame rate: %w", err)
	}
	vmeta = video.Metadata{
		CodecName:  s.CodecName,
		FrameRate:  fps,
		FrameCount: s.FrameCount,
		Width:      s.Width,
		Height:     s.Height,
	}
	logging.Debugf("%s %+v", videoFile, vmeta)

	return vmeta, nil
}

// ParseFraction converts a fraction-as-string as reported by ffprobe (e.g.
// r_frame_rate "30000/1001") to float64.
func ParseFraction(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing numerator of %q: %w", s, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing denominator of %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}
