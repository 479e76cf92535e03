package port

import (
	"context"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// StatusPublisher emits scan job status transitions for downstream
// consumers. Implementations own the wire encoding.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.ScanStatusMessage) error
}

// DLQPublisher parks poison or permanently failed messages with a reason.
// The payload is the raw inbound body so operators can replay it verbatim.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
