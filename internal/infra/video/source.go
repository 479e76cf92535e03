// Package video opens local video files through ffprobe and ffmpeg and
// exposes them as sampled frame streams.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/ozaner/garbage-detector/internal/domain/port"
	"github.com/ozaner/garbage-detector/internal/timecode"
	"go.uber.org/zap"
)

type Opener struct {
	log *zap.Logger
}

func NewOpener(log *zap.Logger) *Opener {
	return &Opener{log: log}
}

// Open validates the path, probes the container, and returns a source bound
// to it. The caller owns the source and must Close it on every exit path.
func (o *Opener) Open(ctx context.Context, path string) (port.VideoSource, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", port.ErrSourceNotFound, path)
	}

	meta, err := probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", port.ErrSourceUnreadable, path, err)
	}
	if meta.Width <= 0 || meta.Height <= 0 || meta.FPS <= 0 {
		return nil, fmt.Errorf("%w: %s: no decodable video stream", port.ErrSourceUnreadable, path)
	}
	if meta.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: %s: cannot determine frame count", port.ErrSourceUnreadable, path)
	}

	o.log.Debug("video opened",
		zap.String("path", path),
		zap.Int("frame_count", meta.FrameCount),
		zap.Float64("fps", meta.FPS),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
	)

	return &Source{path: path, meta: meta, log: o.log}, nil
}

// Source is one opened video file. Metadata accessors are cheap and
// read-only; FrameAt and Frames spawn decoder processes. A source holds at
// most one live stream, and Close reaps it.
type Source struct {
	path   string
	meta   entity.VideoMeta
	stream *rawStream
	log    *zap.Logger
}

func (s *Source) Meta() entity.VideoMeta {
	return s.meta
}

func (s *Source) checkRange(n int) error {
	if n < 0 || n >= s.meta.FrameCount {
		return fmt.Errorf("%w: frame %d, frame count %d", port.ErrOutOfRange, n, s.meta.FrameCount)
	}
	return nil
}

func (s *Source) TimestampOf(n int) (string, error) {
	if err := s.checkRange(n); err != nil {
		return "", err
	}
	return timecode.Timestamp(n, s.meta.FPS), nil
}

func (s *Source) Progress(n int) (float64, error) {
	if err := s.checkRange(n); err != nil {
		return 0, err
	}
	return timecode.Percent(n, s.meta.FrameCount), nil
}

// FrameAt decodes exactly one frame. It runs a dedicated decoder process, so
// it is far more expensive per frame than Frames and exists for spot checks.
func (s *Source) FrameAt(ctx context.Context, n int) (*image.RGBA, error) {
	if err := s.checkRange(n); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", s.path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", n),
		"-vframes", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("decode frame %d: %w, output: %s", n, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("decode frame %d: %w", n, err)
	}

	frameSize := s.meta.Width * s.meta.Height * 4
	if len(out) < frameSize {
		return nil, fmt.Errorf("decode frame %d: got %d of %d bytes", n, len(out), frameSize)
	}

	return &image.RGBA{
		Pix:    out[:frameSize],
		Stride: s.meta.Width * 4,
		Rect:   image.Rect(0, 0, s.meta.Width, s.meta.Height),
	}, nil
}

// Frames starts one sequential decode of the whole file and returns a
// single-pass stream of every interval-th frame. The previous stream, if
// any, is closed: the decoder cursor belongs to one consumer at a time.
func (s *Source) Frames(ctx context.Context, interval int) (port.FrameStream, error) {
	if interval < 1 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", interval)
	}
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", s.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	s.stream = &rawStream{
		fr:     newFrameReader(stdout, s.meta, interval),
		cmd:    cmd,
		stdout: stdout,
		log:    s.log,
	}
	return s.stream, nil
}

func (s *Source) Close() error {
	if s.stream != nil {
		err := s.stream.Close()
		s.stream = nil
		return err
	}
	return nil
}

// rawStream feeds a frameReader from a live ffmpeg process and reaps the
// process when the stream ends or is closed.
type rawStream struct {
	fr     *frameReader
	cmd    *exec.Cmd
	stdout io.ReadCloser
	closed bool
	log    *zap.Logger
}

func (st *rawStream) Next(ctx context.Context) (*entity.SampledFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.closed {
		return nil, io.EOF
	}

	frame, err := st.fr.Next()
	if errors.Is(err, io.EOF) {
		if st.fr.pos < st.fr.total {
			// Truncated trailing data; everything read so far stays usable.
			st.log.Debug("video stream ended early",
				zap.Int("frames_read", st.fr.pos),
				zap.Int("frame_count", st.fr.total),
			)
		}
		st.Close()
		return nil, io.EOF
	}
	return frame, err
}

func (st *rawStream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	st.stdout.Close()
	if st.cmd.Process != nil {
		st.cmd.Process.Kill()
	}
	st.cmd.Wait()
	return nil
}

// frameReader slices a raw RGBA byte stream into sampled frames. It is pure
// reader logic: process management lives in rawStream.
type frameReader struct {
	r         io.Reader
	width     int
	height    int
	frameSize int
	interval  int
	next      int
	pos       int
	total     int
	scratch   []byte
}

func newFrameReader(r io.Reader, meta entity.VideoMeta, interval int) *frameReader {
	frameSize := meta.Width * meta.Height * 4
	return &frameReader{
		r:         r,
		width:     meta.Width,
		height:    meta.Height,
		frameSize: frameSize,
		interval:  interval,
		total:     meta.FrameCount,
		scratch:   make([]byte, frameSize),
	}
}

// Next returns the next sampled frame or io.EOF. Frame numbers run
// 0, interval, 2*interval, ... and stay below the declared frame count even
// when the decoder produces extra frames. A partial trailing frame is
// treated as end of stream.
func (fr *frameReader) Next() (*entity.SampledFrame, error) {
	for {
		if fr.total > 0 && fr.pos >= fr.total {
			return nil, io.EOF
		}

		keep := fr.pos == fr.next
		buf := fr.scratch
		if keep {
			buf = make([]byte, fr.frameSize)
		}

		if _, err := io.ReadFull(fr.r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read frame %d: %w", fr.pos, err)
		}

		num := fr.pos
		fr.pos++

		if keep {
			fr.next += fr.interval
			return &entity.SampledFrame{
				Number: num,
				Image: &image.RGBA{
					Pix:    buf,
					Stride: fr.width * 4,
					Rect:   image.Rect(0, 0, fr.width, fr.height),
				},
			}, nil
		}
	}
}
