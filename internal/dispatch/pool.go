// Package dispatch fans sampled frames out to the analyzer under a bounded
// worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/ozaner/garbage-detector/internal/domain/port"
	"go.uber.org/zap"
)

const (
	DefaultWorkers    = 4
	DefaultQueueDepth = 10
)

// Task is one frame queued for analysis. Timestamp is captured at submission
// time from the frame number and travels with the task; it is never
// recomputed at completion.
type Task struct {
	FrameNumber int
	Timestamp   string
	Image       *image.RGBA
}

// Result pairs an analysis outcome with the task that produced it. Results
// surface in completion order, not submission order.
type Result struct {
	FrameNumber int
	Timestamp   string
	Analysis    entity.Analysis
	Image       *image.RGBA
}

// Source supplies tasks one at a time and returns io.EOF when the sequence
// ends. Only the pool's producer goroutine calls Next, so implementations
// backed by a video decoder cursor need no locking.
type Source interface {
	Next(ctx context.Context) (*Task, error)
}

// SliceSource serves a fixed, already-materialized batch.
type SliceSource struct {
	tasks []Task
	pos   int
}

func NewSliceSource(tasks []Task) *SliceSource {
	return &SliceSource{tasks: tasks}
}

func (s *SliceSource) Next(_ context.Context) (*Task, error) {
	if s.pos >= len(s.tasks) {
		return nil, io.EOF
	}
	t := s.tasks[s.pos]
	s.pos++
	return &t, nil
}

// FrameSaver persists one frame snapshot to disk.
type FrameSaver interface {
	Save(frame image.Image, frameNumber int, timestamp string) (string, error)
}

// Stats summarizes one dispatch run.
type Stats struct {
	Frames int
	Issues int
	Errors int
}

type Config struct {
	// Workers is the hard cap on analyses in flight. Defaults to 4.
	Workers int
	// QueueDepth bounds how many decoded frames wait for a free worker.
	// Defaults to 10.
	QueueDepth int
	// AnalysisTimeout bounds a single analyzer call. Zero means no timeout.
	AnalysisTimeout time.Duration
}

// Pool runs the analyzer over a stream of sampled frames with at most
// Workers calls in flight. Frames are pulled from the source one at a time
// as queue space frees, so long videos never materialize fully in memory.
type Pool struct {
	workers  int
	depth    int
	timeout  time.Duration
	analyzer port.FrameAnalyzer
	saveAll  FrameSaver
	log      *zap.Logger
}

// NewPool builds a pool. saveAll is optional; when set, every dispatched
// frame is snapshotted inside the worker before analysis.
func NewPool(cfg Config, analyzer port.FrameAnalyzer, saveAll FrameSaver, log *zap.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Pool{
		workers:  workers,
		depth:    depth,
		timeout:  cfg.AnalysisTimeout,
		analyzer: analyzer,
		saveAll:  saveAll,
		log:      log,
	}
}

// Run drains src through the worker pool and invokes onResult exactly once
// per dispatched task, always from this goroutine, in the order results
// become available. Cancellation is checked between submissions; a cancelled
// run returns the context error along with the stats accumulated so far.
func (p *Pool) Run(ctx context.Context, src Source, onResult func(Result)) (Stats, error) {
	tasks := make(chan Task, p.depth)
	results := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, results, &wg)
	}

	// Single producer owns the source cursor.
	prodErr := make(chan error, 1)
	go func() {
		defer close(tasks)
		prodErr <- p.produce(ctx, src, tasks)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	for res := range results {
		stats.Frames++
		stats.Issues += len(res.Analysis.Issues)
		if res.Analysis.Failed() {
			stats.Errors++
		}
		onResult(res)
	}

	if err := <-prodErr; err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pool) produce(ctx context.Context, src Source, tasks chan<- Task) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next frame: %w", err)
		}

		select {
		case tasks <- *task:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	log := p.log.With(zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}

			if p.saveAll != nil {
				// Snapshot before analysis so the frame lands on disk even if
				// analysis fails. A failed snapshot only costs the file.
				if _, err := p.saveAll.Save(task.Image, task.FrameNumber, task.Timestamp); err != nil {
					log.Warn("frame snapshot failed",
						zap.Int("frame", task.FrameNumber),
						zap.Error(err),
					)
				}
			}

			res := Result{
				FrameNumber: task.FrameNumber,
				Timestamp:   task.Timestamp,
				Analysis:    p.analyze(ctx, task, log),
				Image:       task.Image,
			}

			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// analyze contains failures at the dispatch boundary: an analyzer error,
// timeout, or panic becomes an error result for that frame alone and never
// aborts the batch. Failed frames are final; retrying is the analyzer's
// business if it wants to.
func (p *Pool) analyze(ctx context.Context, task Task, log *zap.Logger) (res entity.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("analyzer panicked",
				zap.Int("frame", task.FrameNumber),
				zap.Any("panic", r),
			)
			res = entity.Analysis{Err: fmt.Sprintf("analyzer panic: %v", r)}
		}
	}()

	actx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	analysis, err := p.analyzer.Analyze(actx, task.Image)
	if err != nil {
		log.Warn("frame analysis failed",
			zap.Int("frame", task.FrameNumber),
			zap.Error(err),
		)
		return entity.Analysis{Err: err.Error()}
	}
	return analysis
}
