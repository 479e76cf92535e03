package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ozaner/garbage-detector/internal/dispatch"
	"github.com/ozaner/garbage-detector/internal/infra/openai"
	"github.com/ozaner/garbage-detector/internal/infra/video"
	"github.com/ozaner/garbage-detector/internal/usecase"
	"github.com/ozaner/garbage-detector/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

type envConfig struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

func main() {
	os.Exit(run())
}

func run() int {
	reportPath := flag.String("report", "safety_report.json", "path of the JSON report to write")
	interval := flag.Int("interval", usecase.DefaultFrameInterval, "analyze every Nth frame")
	workers := flag.Int("workers", dispatch.DefaultWorkers, "concurrent analysis calls")
	batchSize := flag.Int("batch-size", dispatch.DefaultQueueDepth, "frames buffered ahead of the analyzers")
	timeout := flag.Duration("timeout", 60*time.Second, "per-frame analysis timeout")
	saveIssueFrames := flag.Bool("save-issue-frames", true, "save snapshots of flagged frames")
	issueFramesDir := flag.String("issue-frames-dir", "detected_frames", "directory for flagged frame snapshots")
	saveAllFrames := flag.Bool("save-all-frames", false, "save a snapshot of every sampled frame")
	allFramesDir := flag.String("all-frames-dir", "all_frames", "directory for sampled frame snapshots")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return 2
	}
	videoPath := flag.Arg(0)

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return 1
	}
	defer log.Sync()

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		fmt.Fprintln(os.Stderr, "parse environment:", err)
		return 1
	}

	analyzer, err := openai.NewAnalyzer(openai.Config{
		APIKey:  ec.OpenAIAPIKey,
		Model:   ec.OpenAIModel,
		BaseURL: ec.OpenAIBaseURL,
	}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uc := usecase.NewScanVideoUseCase(video.NewOpener(log), analyzer, *timeout, log)

	req := usecase.ScanRequest{
		VideoPath:     videoPath,
		ReportPath:    *reportPath,
		FrameInterval: *interval,
		Workers:       *workers,
		QueueDepth:    *batchSize,
	}
	if *saveIssueFrames {
		req.IssueFramesDir = *issueFramesDir
	}
	if *saveAllFrames {
		req.AllFramesDir = *allFramesDir
	}

	bar := progressbar.Default(100, "analyzing")
	req.Progress = func(_ int, percent float64) {
		_ = bar.Set(int(percent))
	}

	summary, err := uc.Execute(ctx, req)
	_ = bar.Finish()
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", err)
		return 1
	}

	fmt.Printf("Frames analyzed: %d of %d (every %d frames)\n",
		summary.FramesAnalyzed, summary.FrameCount, *interval)
	fmt.Printf("Issues detected: %d\n", summary.IssuesDetected)
	fmt.Printf("Analysis errors: %d\n", summary.AnalysisErrors)
	fmt.Printf("Report written:  %s\n", *reportPath)
	if len(summary.IssueFrames) > 0 {
		fmt.Printf("Flagged frames:  %d saved under %s\n", len(summary.IssueFrames), *issueFramesDir)
	}
	return 0
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <video-file>\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(out, "Scans a video for safety hazards with a vision model and writes a JSON report.\n")
	fmt.Fprintf(out, "Requires OPENAI_API_KEY. OPENAI_MODEL and OPENAI_BASE_URL are optional.\n\nFlags:\n")
	flag.PrintDefaults()
}
