package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/ozaner/garbage-detector/internal/domain/port"
	"github.com/ozaner/garbage-detector/internal/timecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// frameImage tags the first pixel byte with the frame number so analyzer
// fakes can key behavior off frame content, the only thing a real analyzer
// ever sees.
func frameImage(n int, meta entity.VideoMeta) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, meta.Width, meta.Height))
	img.Pix[0] = byte(n)
	return img
}

type fakeStream struct {
	frames []*entity.SampledFrame
	pos    int
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) (*entity.SampledFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeVideo struct {
	meta        entity.VideoMeta
	closed      bool
	gotInterval int
	lastStream  *fakeStream
}

func newFakeVideo(frameCount int, fps float64) *fakeVideo {
	return &fakeVideo{meta: entity.VideoMeta{
		FrameCount: frameCount,
		FPS:        fps,
		Width:      4,
		Height:     4,
		Duration:   float64(frameCount) / fps,
	}}
}

func (v *fakeVideo) Meta() entity.VideoMeta { return v.meta }

func (v *fakeVideo) FrameAt(_ context.Context, n int) (*image.RGBA, error) {
	if n < 0 || n >= v.meta.FrameCount {
		return nil, port.ErrOutOfRange
	}
	return frameImage(n, v.meta), nil
}

func (v *fakeVideo) Frames(_ context.Context, interval int) (port.FrameStream, error) {
	v.gotInterval = interval
	var frames []*entity.SampledFrame
	for n := 0; n < v.meta.FrameCount; n += interval {
		frames = append(frames, &entity.SampledFrame{Number: n, Image: frameImage(n, v.meta)})
	}
	v.lastStream = &fakeStream{frames: frames}
	return v.lastStream, nil
}

func (v *fakeVideo) TimestampOf(n int) (string, error) {
	if n < 0 || n >= v.meta.FrameCount {
		return "", port.ErrOutOfRange
	}
	return timecode.Timestamp(n, v.meta.FPS), nil
}

func (v *fakeVideo) Progress(n int) (float64, error) {
	if n < 0 || n >= v.meta.FrameCount {
		return 0, port.ErrOutOfRange
	}
	return timecode.Percent(n, v.meta.FrameCount), nil
}

func (v *fakeVideo) Close() error {
	v.closed = true
	return nil
}

type fakeOpener struct {
	video      *fakeVideo
	err        error
	openedPath string
}

func (o *fakeOpener) Open(_ context.Context, path string) (port.VideoSource, error) {
	o.openedPath = path
	if o.err != nil {
		return nil, o.err
	}
	return o.video, nil
}

// stubAnalyzer keys canned results off the frame number carried in the first
// pixel byte.
type stubAnalyzer struct {
	mu       sync.Mutex
	issuesAt map[int][]entity.SafetyIssue
	errAt    map[int]error
	calls    int
}

func (a *stubAnalyzer) Analyze(_ context.Context, frame *image.RGBA) (entity.Analysis, error) {
	n := int(frame.Pix[0])
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if err := a.errAt[n]; err != nil {
		return entity.Analysis{}, err
	}
	return entity.Analysis{Issues: a.issuesAt[n]}, nil
}

func fireIssue() []entity.SafetyIssue {
	return []entity.SafetyIssue{{IssueType: "fire", Location: "left", Description: "smoke from a trash can"}}
}

func readReport(t *testing.T, path string) entity.SafetyReport {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var r entity.SafetyReport
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestScanVideoHappyPath(t *testing.T) {
	// 100 frames at 10 fps sampled every 30 frames: 0, 30, 60, 90.
	video := newFakeVideo(100, 10)
	analyzer := &stubAnalyzer{issuesAt: map[int][]entity.SafetyIssue{30: fireIssue()}}
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, analyzer, 0, zap.NewNop())

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "safety_report.json")
	issueDir := filepath.Join(dir, "detected_frames")

	var mu sync.Mutex
	var percents []float64
	summary, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:      "route42.mp4",
		ReportPath:     reportPath,
		FrameInterval:  30,
		Workers:        4,
		IssueFramesDir: issueDir,
		Progress: func(_ int, percent float64) {
			mu.Lock()
			percents = append(percents, percent)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 100, summary.FrameCount)
	assert.Equal(t, 4, summary.FramesAnalyzed)
	assert.Equal(t, 1, summary.IssuesDetected)
	assert.Zero(t, summary.AnalysisErrors)
	assert.Equal(t, 4, analyzer.calls)

	r := readReport(t, reportPath)
	assert.Equal(t, "route42.mp4", r.VideoFile)
	assert.Equal(t, 30, r.FrameInterval)
	require.Len(t, r.DetectedIssues, 1)
	assert.Equal(t, 30, r.DetectedIssues[0].FrameNumber)
	assert.Equal(t, "00:00:03", r.DetectedIssues[0].Timestamp)
	assert.Equal(t, "fire", r.DetectedIssues[0].Details.IssueType)

	// Only the flagged frame gets a snapshot.
	entries, err := os.ReadDir(issueDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "frame_000030_00_00_03.jpg", entries[0].Name())
	require.Len(t, summary.IssueFrames, 1)
	assert.Equal(t, filepath.Join(issueDir, "frame_000030_00_00_03.jpg"), summary.IssueFrames[0])

	// Progress fires once per frame; completion order varies but the set of
	// positions does not.
	sort.Float64s(percents)
	assert.Equal(t, []float64{0, 30, 60, 90}, percents)
}

func TestScanVideoIsolatesAnalysisFailure(t *testing.T) {
	video := newFakeVideo(100, 10)
	analyzer := &stubAnalyzer{
		issuesAt: map[int][]entity.SafetyIssue{30: fireIssue()},
		errAt:    map[int]error{60: errors.New("rate limited")},
	}
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, analyzer, 0, zap.NewNop())

	reportPath := filepath.Join(t.TempDir(), "safety_report.json")
	summary, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "route42.mp4",
		ReportPath:    reportPath,
		FrameInterval: 30,
		Workers:       2,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.FramesAnalyzed)
	assert.Equal(t, 1, summary.AnalysisErrors)
	assert.Equal(t, 1, summary.IssuesDetected)

	r := readReport(t, reportPath)
	require.Len(t, r.DetectedIssues, 1, "the failed frame contributes no entries")
	assert.Equal(t, 30, r.DetectedIssues[0].FrameNumber)
}

func TestScanVideoSavesAllFramesThroughFailures(t *testing.T) {
	video := newFakeVideo(100, 10)
	analyzer := &stubAnalyzer{errAt: map[int]error{60: errors.New("bad gateway")}}
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, analyzer, 0, zap.NewNop())

	dir := t.TempDir()
	allDir := filepath.Join(dir, "all_frames")
	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "route42.mp4",
		ReportPath:    filepath.Join(dir, "safety_report.json"),
		FrameInterval: 30,
		AllFramesDir:  allDir,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(allDir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "every sampled frame is saved, failed analysis included")
}

func TestScanVideoCleanRun(t *testing.T) {
	video := newFakeVideo(100, 10)
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, &stubAnalyzer{}, 0, zap.NewNop())

	dir := t.TempDir()
	issueDir := filepath.Join(dir, "detected_frames")
	reportPath := filepath.Join(dir, "safety_report.json")
	summary, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:      "route42.mp4",
		ReportPath:     reportPath,
		FrameInterval:  30,
		IssueFramesDir: issueDir,
	})
	require.NoError(t, err)

	assert.Zero(t, summary.IssuesDetected)
	assert.Empty(t, summary.IssueFrames)
	assert.Empty(t, readReport(t, reportPath).DetectedIssues)

	entries, err := os.ReadDir(issueDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanVideoReportSortedByFrame(t *testing.T) {
	video := newFakeVideo(100, 10)
	analyzer := &stubAnalyzer{issuesAt: map[int][]entity.SafetyIssue{
		0: fireIssue(), 30: fireIssue(), 60: fireIssue(), 90: fireIssue(),
	}}
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, analyzer, 0, zap.NewNop())

	reportPath := filepath.Join(t.TempDir(), "safety_report.json")
	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "route42.mp4",
		ReportPath:    reportPath,
		FrameInterval: 30,
		Workers:       4,
	})
	require.NoError(t, err)

	r := readReport(t, reportPath)
	require.Len(t, r.DetectedIssues, 4)
	for i := 1; i < len(r.DetectedIssues); i++ {
		assert.GreaterOrEqual(t, r.DetectedIssues[i].FrameNumber, r.DetectedIssues[i-1].FrameNumber)
	}
}

func TestScanVideoDefaultInterval(t *testing.T) {
	video := newFakeVideo(100, 10)
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, &stubAnalyzer{}, 0, zap.NewNop())

	reportPath := filepath.Join(t.TempDir(), "safety_report.json")
	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:  "route42.mp4",
		ReportPath: reportPath,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultFrameInterval, video.gotInterval)
	assert.Equal(t, DefaultFrameInterval, readReport(t, reportPath).FrameInterval)
}

func TestScanVideoLabelOverridesPath(t *testing.T) {
	video := newFakeVideo(100, 10)
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, &stubAnalyzer{}, 0, zap.NewNop())

	reportPath := filepath.Join(t.TempDir(), "safety_report.json")
	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "/tmp/scratch/input.mp4",
		VideoLabel:    "hauler-7/route42.mp4",
		ReportPath:    reportPath,
		FrameInterval: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, "hauler-7/route42.mp4", readReport(t, reportPath).VideoFile)
}

func TestScanVideoOpenFailure(t *testing.T) {
	opener := &fakeOpener{err: fmt.Errorf("%w: gone.mp4", port.ErrSourceNotFound)}
	uc := NewScanVideoUseCase(opener, &stubAnalyzer{}, 0, zap.NewNop())

	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:  "gone.mp4",
		ReportPath: filepath.Join(t.TempDir(), "safety_report.json"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrSourceNotFound))
}

func TestScanVideoReportWriteFailureIsFatal(t *testing.T) {
	video := newFakeVideo(100, 10)
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, &stubAnalyzer{}, 0, zap.NewNop())

	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "route42.mp4",
		ReportPath:    filepath.Join(t.TempDir(), "missing", "safety_report.json"),
		FrameInterval: 30,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}

func TestScanVideoReleasesSource(t *testing.T) {
	video := newFakeVideo(100, 10)
	uc := NewScanVideoUseCase(&fakeOpener{video: video}, &stubAnalyzer{}, 0, zap.NewNop())

	_, err := uc.Execute(context.Background(), ScanRequest{
		VideoPath:     "route42.mp4",
		ReportPath:    filepath.Join(t.TempDir(), "safety_report.json"),
		FrameInterval: 30,
	})
	require.NoError(t, err)

	assert.True(t, video.closed)
	assert.True(t, video.lastStream.closed)
}
