package port

import (
	"context"
	"errors"
	"image"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

var (
	// ErrSourceNotFound means the path does not reference a readable file.
	ErrSourceNotFound = errors.New("video source not found")
	// ErrSourceUnreadable means the container or codec cannot be decoded.
	ErrSourceUnreadable = errors.New("video source unreadable")
	// ErrOutOfRange means a frame index outside [0, FrameCount). Indicates a
	// bug in index math, not a runtime condition.
	ErrOutOfRange = errors.New("frame number out of range")
)

type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoSource, error)
}

// VideoSource is an opened video. The metadata accessors are safe anywhere;
// Frames and FrameAt consume the underlying decoder and belong to a single
// goroutine. Close releases any live decoder and is required on every exit
// path.
type VideoSource interface {
	Meta() entity.VideoMeta
	FrameAt(ctx context.Context, n int) (*image.RGBA, error)
	Frames(ctx context.Context, interval int) (FrameStream, error)
	TimestampOf(n int) (string, error)
	Progress(n int) (float64, error)
	Close() error
}

// FrameStream is a single-pass sequence of sampled frames. Next returns
// io.EOF once the stream ends; truncated trailing data also ends the stream
// cleanly. Restarting requires a fresh Frames call.
type FrameStream interface {
	Next(ctx context.Context) (*entity.SampledFrame, error)
	Close() error
}
