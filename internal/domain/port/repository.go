package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

type ScanJobRepository interface {
	Create(ctx context.Context, job *entity.ScanJob) error
	Update(ctx context.Context, job *entity.ScanJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ScanJob, error)
}
