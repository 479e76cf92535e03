package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/ozaner/garbage-detector/internal/domain/port"
	"github.com/ozaner/garbage-detector/internal/infra/metrics"
)

// ProcessScanJobUseCase consumes scan job messages: it downloads the video,
// runs the scan pipeline, uploads the report and the flagged-frame bundle,
// and tracks job state. Per-frame analysis failures are contained inside the
// scan and never fail the job; only infrastructure failures do.
type ProcessScanJobUseCase struct {
	repo      port.ScanJobRepository
	storage   port.VideoStorage
	scanner   *ScanVideoUseCase
	bundler   port.FrameBundler
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
	interval  int
	workers   int
	saveAll   bool
}

type ProcessScanJobConfig struct {
	TempDir       string
	MaxRetries    int
	FrameInterval int
	ScanWorkers   int
	SaveAllFrames bool
}

func NewProcessScanJobUseCase(
	repo port.ScanJobRepository,
	storage port.VideoStorage,
	scanner *ScanVideoUseCase,
	bundler port.FrameBundler,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessScanJobConfig,
) *ProcessScanJobUseCase {
	interval := cfg.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &ProcessScanJobUseCase{
		repo:      repo,
		storage:   storage,
		scanner:   scanner,
		bundler:   bundler,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
		interval:  interval,
		workers:   cfg.ScanWorkers,
		saveAll:   cfg.SaveAllFrames,
	}
}

func (uc *ProcessScanJobUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessScanJobUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.ScanRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		interval := msg.FrameInterval
		if interval <= 0 {
			interval = uc.interval
		}
		job = entity.NewScanJob(msg.UserID, msg.VideoKey, msg.FileSize, interval, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.scanPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.ScanStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ProcessScanJobUseCase) scanPipeline(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from object storage
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.ScanStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Run the scan pipeline
	scanStart := time.Now()
	ctx3, spanScan := tracer.Start(ctx, "scan_video")
	reportPath := filepath.Join(workDir, "safety_report.json")
	allFramesDir := ""
	if uc.saveAll {
		allFramesDir = filepath.Join(workDir, "all_frames")
	}
	summary, err := uc.scanner.Execute(ctx3, ScanRequest{
		VideoPath:      videoPath,
		VideoLabel:     msg.VideoKey,
		ReportPath:     reportPath,
		FrameInterval:  job.FrameInterval,
		Workers:        uc.workers,
		IssueFramesDir: filepath.Join(workDir, "detected_frames"),
		AllFramesDir:   allFramesDir,
	})
	if err != nil {
		spanScan.End()
		log.Error("video scan failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "scan_video: "+err.Error(), log)
	}
	spanScan.End()
	metrics.ScanStageDuration.WithLabelValues("scan").Observe(time.Since(scanStart).Seconds())

	// Upload report
	upStart := time.Now()
	ctx4, spanUp := tracer.Start(ctx, "upload_report")
	reportKey := fmt.Sprintf("%s/safety_report_%s.json", msg.UserID, job.ID.String())
	if err := uc.uploadFile(ctx4, reportKey, reportPath, uc.storage.UploadReport); err != nil {
		spanUp.End()
		log.Error("report upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_report: "+err.Error(), log)
	}
	spanUp.End()
	metrics.ScanStageDuration.WithLabelValues("upload_report").Observe(time.Since(upStart).Seconds())

	// Bundle and upload flagged frames, when any were saved
	bundleKey := ""
	if len(summary.IssueFrames) > 0 {
		bundleStart := time.Now()
		ctx5, spanBundle := tracer.Start(ctx, "upload_bundle")
		bundlePath := filepath.Join(workDir, "flagged_frames.zip")
		if err := uc.bundler.Bundle(ctx5, summary.IssueFrames, bundlePath); err != nil {
			spanBundle.End()
			log.Error("frame bundle creation failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "bundle_frames: "+err.Error(), log)
		}
		bundleKey = fmt.Sprintf("%s/flagged_frames_%s.zip", msg.UserID, job.ID.String())
		if err := uc.uploadFile(ctx5, bundleKey, bundlePath, uc.storage.UploadBundle); err != nil {
			spanBundle.End()
			log.Error("frame bundle upload failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_bundle: "+err.Error(), log)
		}
		spanBundle.End()
		metrics.ScanStageDuration.WithLabelValues("bundle").Observe(time.Since(bundleStart).Seconds())
	}

	// Mark completed
	job.MarkCompleted(reportKey, bundleKey, summary)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("scan job completed",
		zap.Int("frames_analyzed", summary.FramesAnalyzed),
		zap.Int("issues_detected", summary.IssuesDetected),
		zap.Int("analysis_errors", summary.AnalysisErrors),
		zap.String("report_key", reportKey),
		zap.String("bundle_key", bundleKey),
	)

	return nil
}

type uploadFunc func(ctx context.Context, objectKey string, reader io.Reader, size int64) error

func (uc *ProcessScanJobUseCase) uploadFile(ctx context.Context, key, path string, upload uploadFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return upload(ctx, key, f, info.Size())
}

func (uc *ProcessScanJobUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessScanJobUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ScanJob,
	msg entity.ScanRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job)
	}

	return nil
}

func (uc *ProcessScanJobUseCase) publishStatus(ctx context.Context, job *entity.ScanJob, log *zap.Logger) {
	statusMsg := entity.ScanStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		ReportKey:      job.ReportKey,
		BundleKey:      job.BundleKey,
		FramesAnalyzed: job.FramesAnalyzed,
		IssuesDetected: job.IssuesDetected,
		AnalysisErrors: job.AnalysisErrors,
		Duration:       job.VideoDuration,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
