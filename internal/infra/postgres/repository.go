package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

type ScanJobRepository struct {
	pool *pgxpool.Pool
}

func NewScanJobRepository(pool *pgxpool.Pool) *ScanJobRepository {
	return &ScanJobRepository{pool: pool}
}

func (r *ScanJobRepository) Create(ctx context.Context, job *entity.ScanJob) error {
	query := `
		INSERT INTO scan_jobs (
			id, user_id, video_key, report_key, bundle_key, status,
			frame_interval, frames_analyzed, issues_detected, analysis_errors,
			file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.ReportKey, job.BundleKey, string(job.Status),
		job.FrameInterval, job.FramesAnalyzed, job.IssuesDetected, job.AnalysisErrors,
		job.FileSize, job.VideoDuration, job.Attempt, job.MaxAttempts,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan job: %w", err)
	}
	return nil
}

func (r *ScanJobRepository) Update(ctx context.Context, job *entity.ScanJob) error {
	query := `
		UPDATE scan_jobs SET
			status=$2, report_key=$3, bundle_key=$4,
			frames_analyzed=$5, issues_detected=$6, analysis_errors=$7,
			video_duration=$8, attempt=$9, error_message=$10,
			updated_at=$11, completed_at=$12
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ReportKey, job.BundleKey,
		job.FramesAnalyzed, job.IssuesDetected, job.AnalysisErrors,
		job.VideoDuration, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update scan job: %w", err)
	}
	return nil
}

func (r *ScanJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ScanJob, error) {
	query := `
		SELECT id, user_id, video_key, report_key, bundle_key, status,
			frame_interval, frames_analyzed, issues_detected, analysis_errors,
			file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM scan_jobs WHERE id=$1`

	job := &entity.ScanJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.ReportKey, &job.BundleKey, &status,
		&job.FrameInterval, &job.FramesAnalyzed, &job.IssuesDetected, &job.AnalysisErrors,
		&job.FileSize, &job.VideoDuration, &job.Attempt, &job.MaxAttempts,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find scan job by id: %w", err)
	}
	job.Status = entity.ScanJobStatus(status)
	return job, nil
}
