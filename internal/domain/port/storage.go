package port

import (
	"context"
	"io"
)

// VideoStorage moves scan artifacts between the worker and object storage.
// Downloads land at a caller-chosen local path; uploads stream the JSON
// report and the flagged-frame bundle to their respective buckets.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadReport(ctx context.Context, objectKey string, reader io.Reader, size int64) error
	UploadBundle(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
