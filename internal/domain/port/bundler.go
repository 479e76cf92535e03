package port

import "context"

// FrameBundler packs flagged-frame snapshots into a single archive for
// review.
type FrameBundler interface {
	Bundle(ctx context.Context, filePaths []string, outputPath string) error
}
