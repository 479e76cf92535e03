package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ozaner/garbage-detector/internal/infra/archive"
	"github.com/ozaner/garbage-detector/internal/infra/config"
	"github.com/ozaner/garbage-detector/internal/infra/email"
	"github.com/ozaner/garbage-detector/internal/infra/metrics"
	miniostorage "github.com/ozaner/garbage-detector/internal/infra/minio"
	"github.com/ozaner/garbage-detector/internal/infra/openai"
	"github.com/ozaner/garbage-detector/internal/infra/postgres"
	"github.com/ozaner/garbage-detector/internal/infra/rabbitmq"
	"github.com/ozaner/garbage-detector/internal/infra/tracing"
	"github.com/ozaner/garbage-detector/internal/infra/video"
	"github.com/ozaner/garbage-detector/internal/usecase"
	"github.com/ozaner/garbage-detector/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting garbage-detector worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		VideoBucket:  cfg.MinIOVideoBucket,
		ReportBucket: cfg.MinIOReportBucket,
		BundleBucket: cfg.MinIOBundleBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewScanJobRepository(pool)
	opener := video.NewOpener(log)
	analyzer, err := openai.NewAnalyzer(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, log)
	fatalOnErr(err, "create frame analyzer")
	bundler := archive.NewZipBundler()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use cases
	scanner := usecase.NewScanVideoUseCase(
		opener, analyzer,
		time.Duration(cfg.AnalysisTimeoutMs)*time.Millisecond,
		log,
	)
	uc := usecase.NewProcessScanJobUseCase(
		repo, storage, scanner, bundler,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessScanJobConfig{
			TempDir:       cfg.TempDir,
			MaxRetries:    cfg.MaxRetries,
			FrameInterval: cfg.FrameInterval,
			ScanWorkers:   cfg.ScanWorkers,
			SaveAllFrames: cfg.SaveAllFrames,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQScanQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("garbage-detector worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("garbage-detector worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
