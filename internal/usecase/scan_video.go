package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ozaner/garbage-detector/internal/dispatch"
	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/ozaner/garbage-detector/internal/domain/port"
	"github.com/ozaner/garbage-detector/internal/infra/metrics"
	"github.com/ozaner/garbage-detector/internal/report"
	"github.com/ozaner/garbage-detector/internal/timecode"
)

const DefaultFrameInterval = 30

// ScanRequest configures one video scan.
type ScanRequest struct {
	VideoPath  string
	ReportPath string
	// VideoLabel is the name recorded in the report. Empty means VideoPath.
	// Workers scanning a downloaded copy set this to the original object key.
	VideoLabel string
	// FrameInterval is the sampling stride. Zero means DefaultFrameInterval.
	FrameInterval int
	// Workers and QueueDepth tune the analysis pool; zero means the pool
	// defaults.
	Workers    int
	QueueDepth int
	// IssueFramesDir receives snapshots of frames with detected issues.
	// Empty disables saving.
	IssueFramesDir string
	// AllFramesDir receives a snapshot of every sampled frame. Empty
	// disables saving.
	AllFramesDir string
	// Progress, when set, is called once per analyzed frame with the frame
	// number and how far through the video it sits. Calls arrive in
	// completion order from a single goroutine.
	Progress func(frameNumber int, percent float64)
}

// ScanVideoUseCase runs the frame sampling, bounded-parallel analysis, and
// report aggregation pipeline for one video at a time.
type ScanVideoUseCase struct {
	opener   port.VideoOpener
	analyzer port.FrameAnalyzer
	timeout  time.Duration
	log      *zap.Logger
}

func NewScanVideoUseCase(
	opener port.VideoOpener,
	analyzer port.FrameAnalyzer,
	analysisTimeout time.Duration,
	log *zap.Logger,
) *ScanVideoUseCase {
	return &ScanVideoUseCase{
		opener:   opener,
		analyzer: analyzer,
		timeout:  analysisTimeout,
		log:      log,
	}
}

func (uc *ScanVideoUseCase) Execute(ctx context.Context, req ScanRequest) (*entity.ScanSummary, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ScanVideoUseCase.Execute")
	defer span.End()

	interval := req.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	log := uc.log.With(zap.String("video", req.VideoPath), zap.Int("frame_interval", interval))

	src, err := uc.opener.Open(ctx, req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	meta := src.Meta()
	span.SetAttributes(
		attribute.Int("video.frame_count", meta.FrameCount),
		attribute.Float64("video.fps", meta.FPS),
	)
	log.Info("video opened",
		zap.Int("frame_count", meta.FrameCount),
		zap.Float64("fps", meta.FPS),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
	)

	var issueSaver *report.SnapshotSaver
	if req.IssueFramesDir != "" {
		issueSaver, err = report.NewSnapshotSaver(req.IssueFramesDir)
		if err != nil {
			return nil, fmt.Errorf("issue frames dir: %w", err)
		}
	}
	var allSaver dispatch.FrameSaver
	if req.AllFramesDir != "" {
		saver, err := report.NewSnapshotSaver(req.AllFramesDir)
		if err != nil {
			return nil, fmt.Errorf("all frames dir: %w", err)
		}
		allSaver = saver
	}

	stream, err := src.Frames(ctx, interval)
	if err != nil {
		return nil, fmt.Errorf("start frame stream: %w", err)
	}
	defer stream.Close()

	pool := dispatch.NewPool(dispatch.Config{
		Workers:         req.Workers,
		QueueDepth:      req.QueueDepth,
		AnalysisTimeout: uc.timeout,
	}, uc.analyzer, allSaver, log)

	label := req.VideoLabel
	if label == "" {
		label = req.VideoPath
	}
	builder := report.NewBuilder(label, interval)
	summary := &entity.ScanSummary{
		FrameCount:    meta.FrameCount,
		VideoDuration: meta.Duration,
	}

	// The drain callback runs on this goroutine only; it is the sole writer
	// of the builder and the summary.
	stats, err := pool.Run(ctx, &frameTaskSource{stream: stream, fps: meta.FPS}, func(res dispatch.Result) {
		metrics.FramesAnalyzedTotal.Inc()
		if res.Analysis.Failed() {
			metrics.AnalysisErrorsTotal.Inc()
		}

		if n := builder.Record(res.FrameNumber, res.Timestamp, res.Analysis); n > 0 {
			log.Info("safety issues detected",
				zap.Int("frame", res.FrameNumber),
				zap.String("timestamp", res.Timestamp),
				zap.Int("issues", n),
			)
			for _, issue := range res.Analysis.Issues {
				metrics.IssuesDetectedTotal.WithLabelValues(issue.IssueType).Inc()
			}
			if issueSaver != nil {
				path, err := issueSaver.Save(res.Image, res.FrameNumber, res.Timestamp)
				if err != nil {
					log.Warn("issue frame snapshot failed",
						zap.Int("frame", res.FrameNumber),
						zap.Error(err),
					)
				} else {
					summary.IssueFrames = append(summary.IssueFrames, path)
				}
			}
		}

		if req.Progress != nil {
			req.Progress(res.FrameNumber, timecode.Percent(res.FrameNumber, meta.FrameCount))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("analyze frames: %w", err)
	}

	summary.FramesAnalyzed = stats.Frames
	summary.IssuesDetected = stats.Issues
	summary.AnalysisErrors = stats.Errors

	if err := report.Write(builder.Finalize(), req.ReportPath); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	log.Info("scan complete",
		zap.Int("frames_analyzed", summary.FramesAnalyzed),
		zap.Int("issues_detected", summary.IssuesDetected),
		zap.Int("analysis_errors", summary.AnalysisErrors),
		zap.String("report", req.ReportPath),
	)
	return summary, nil
}

// frameTaskSource adapts a frame stream to the dispatch source, stamping
// each task with its submission-time timestamp. Only the pool's producer
// goroutine touches it, matching the stream's single-reader contract.
type frameTaskSource struct {
	stream port.FrameStream
	fps    float64
}

func (s *frameTaskSource) Next(ctx context.Context) (*dispatch.Task, error) {
	frame, err := s.stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	return &dispatch.Task{
		FrameNumber: frame.Number,
		Timestamp:   timecode.Timestamp(frame.Number, s.fps),
		Image:       frame.Image,
	}, nil
}
