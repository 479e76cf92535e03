// Package report assembles per-frame analysis results into the final safety
// report and writes frame snapshots for review.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// Builder accumulates detected issues for one video. It is not safe for
// concurrent use: only the goroutine draining dispatch results records into
// it.
type Builder struct {
	videoFile     string
	frameInterval int
	entries       []entity.ReportEntry
	now           func() time.Time
}

func NewBuilder(videoFile string, frameInterval int) *Builder {
	return &Builder{
		videoFile:     videoFile,
		frameInterval: frameInterval,
		now:           time.Now,
	}
}

// Record appends one report entry per issue in the result and returns how
// many were appended. Results without issues, failed analyses included,
// append nothing; failures surface through counters and logs, not the report
// body.
func (b *Builder) Record(frameNumber int, timestamp string, res entity.Analysis) int {
	for _, issue := range res.Issues {
		b.entries = append(b.entries, entity.ReportEntry{
			FrameNumber: frameNumber,
			Timestamp:   timestamp,
			Details:     issue,
		})
	}
	return len(res.Issues)
}

// Len returns the number of entries recorded so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Finalize stamps the report with the local wall-clock time and returns it
// with detected issues sorted ascending by frame number. Issues found on the
// same frame keep their recorded order. Results may arrive in any completion
// order; consumers always see frame order.
func (b *Builder) Finalize() *entity.SafetyReport {
	entries := make([]entity.ReportEntry, len(b.entries))
	copy(entries, b.entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FrameNumber < entries[j].FrameNumber
	})

	return &entity.SafetyReport{
		VideoFile:         b.videoFile,
		AnalysisTimestamp: b.now().Format("2006-01-02 15:04:05"),
		FrameInterval:     b.frameInterval,
		DetectedIssues:    entries,
	}
}

// Write serializes the report as indented JSON at path. The file appears
// atomically: content goes to a temp file in the destination directory first,
// then a rename, so an interrupted write never leaves a malformed report
// behind.
func Write(r *entity.SafetyReport, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp report file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}
