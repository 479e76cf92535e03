package entity

import (
	"time"

	"github.com/google/uuid"
)

type ScanJobStatus string

const (
	ScanJobStatusPending    ScanJobStatus = "PENDING"
	ScanJobStatusProcessing ScanJobStatus = "PROCESSING"
	ScanJobStatusCompleted  ScanJobStatus = "COMPLETED"
	ScanJobStatusFailed     ScanJobStatus = "FAILED"
)

type ScanJob struct {
	ID             uuid.UUID
	UserID         string
	VideoKey       string
	ReportKey      string
	BundleKey      string
	Status         ScanJobStatus
	FrameInterval  int
	FramesAnalyzed int
	IssuesDetected int
	AnalysisErrors int
	FileSize       int64
	VideoDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewScanJob(userID, videoKey string, fileSize int64, frameInterval, maxAttempts int) *ScanJob {
	now := time.Now().UTC()
	return &ScanJob{
		ID:            uuid.New(),
		UserID:        userID,
		VideoKey:      videoKey,
		FileSize:      fileSize,
		FrameInterval: frameInterval,
		Status:        ScanJobStatusPending,
		Attempt:       0,
		MaxAttempts:   maxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (j *ScanJob) MarkProcessing() {
	j.Status = ScanJobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *ScanJob) MarkCompleted(reportKey, bundleKey string, summary *ScanSummary) {
	now := time.Now().UTC()
	j.Status = ScanJobStatusCompleted
	j.ReportKey = reportKey
	j.BundleKey = bundleKey
	j.FramesAnalyzed = summary.FramesAnalyzed
	j.IssuesDetected = summary.IssuesDetected
	j.AnalysisErrors = summary.AnalysisErrors
	j.VideoDuration = summary.VideoDuration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ScanJob) MarkFailed(errMsg string) {
	j.Status = ScanJobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *ScanJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
