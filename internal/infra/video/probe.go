package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// probe reads container metadata for the first video stream.
func probe(ctx context.Context, path string) (entity.VideoMeta, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate,avg_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return entity.VideoMeta{}, fmt.Errorf("ffprobe: %w, output: %s", err, exitErr.Stderr)
		}
		return entity.VideoMeta{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (entity.VideoMeta, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return entity.VideoMeta{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return entity.VideoMeta{}, errors.New("no video stream")
	}
	s := out.Streams[0]

	fps, err := parseRate(s.RFrameRate)
	if err != nil || fps <= 0 {
		fps, err = parseRate(s.AvgFrameRate)
		if err != nil || fps <= 0 {
			return entity.VideoMeta{}, fmt.Errorf("unusable frame rate %q / %q", s.RFrameRate, s.AvgFrameRate)
		}
	}

	duration := 0.0
	if out.Format.Duration != "" {
		duration, err = strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return entity.VideoMeta{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
	}

	// Some containers declare the frame count; for the rest, estimate from
	// duration at the stream frame rate.
	frameCount := 0
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		frameCount = n
	} else if duration > 0 {
		frameCount = int(duration * fps)
	}

	return entity.VideoMeta{
		FrameCount: frameCount,
		FPS:        fps,
		Width:      s.Width,
		Height:     s.Height,
		Duration:   duration,
	}, nil
}

// parseRate parses ffprobe's rational frame rates such as "30000/1001" or
// "25/1"; a bare number is accepted too.
func parseRate(rate string) (float64, error) {
	if rate == "" {
		return 0, errors.New("empty frame rate")
	}
	num, den, found := strings.Cut(rate, "/")
	if !found {
		return strconv.ParseFloat(rate, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", rate, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", rate, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("frame rate %q has zero denominator", rate)
	}
	return n / d, nil
}
