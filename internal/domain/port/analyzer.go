package port

import (
	"context"
	"image"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// FrameAnalyzer inspects one frame and returns zero or more safety issues.
// Implementations may be slow (network-bound) and may fail; callers bound
// each call with a context deadline.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame *image.RGBA) (entity.Analysis, error)
}
