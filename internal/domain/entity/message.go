package entity

import "github.com/google/uuid"

// ScanRequestMessage is the inbound message from the video.scan queue.
// FrameInterval overrides the worker default when positive.
type ScanRequestMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	UserID        string    `json:"user_id"`
	VideoKey      string    `json:"video_key"`
	FileSize      int64     `json:"file_size"`
	UserEmail     string    `json:"user_email"`
	FrameInterval int       `json:"frame_interval,omitempty"`
}

// ScanStatusMessage is the outbound message published to the
// video.scan.status queue.
type ScanStatusMessage struct {
	JobID          uuid.UUID     `json:"job_id"`
	UserID         string        `json:"user_id"`
	Status         ScanJobStatus `json:"status"`
	VideoKey       string        `json:"video_key"`
	ReportKey      string        `json:"report_key,omitempty"`
	BundleKey      string        `json:"bundle_key,omitempty"`
	FramesAnalyzed int           `json:"frames_analyzed,omitempty"`
	IssuesDetected int           `json:"issues_detected,omitempty"`
	AnalysisErrors int           `json:"analysis_errors,omitempty"`
	Duration       float64       `json:"duration_seconds,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Attempt        int           `json:"attempt"`
	MaxAttempts    int           `json:"max_attempts"`
}
