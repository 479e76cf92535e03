package port

import (
	"context"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// FailureNotifier tells the submitting user their scan permanently failed.
// The job carries the identifiers and the final error for the message body.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, job *entity.ScanJob) error
}
