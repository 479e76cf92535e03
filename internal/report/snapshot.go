package report

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
)

const snapshotQuality = 90

// SnapshotSaver writes frame snapshots as JPEG files into one directory.
// File names embed the frame number, so concurrent saves of distinct frames
// never collide.
type SnapshotSaver struct {
	dir string
}

func NewSnapshotSaver(dir string) (*SnapshotSaver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &SnapshotSaver{dir: dir}, nil
}

func (s *SnapshotSaver) Dir() string {
	return s.dir
}

// Save writes the frame as frame_<number>_<timestamp>.jpg and returns the
// path. Colons are invalid in filenames on some filesystems, so the
// timestamp's are replaced with underscores.
func (s *SnapshotSaver) Save(frame image.Image, frameNumber int, timestamp string) (string, error) {
	name := fmt.Sprintf("frame_%06d_%s.jpg", frameNumber, strings.ReplaceAll(timestamp, ":", "_"))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot %s: %w", path, err)
	}
	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot %s: %w", path, err)
	}
	return path, nil
}
