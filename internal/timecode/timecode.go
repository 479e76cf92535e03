// Package timecode maps frame numbers to human-readable positions within a
// video.
package timecode

import "fmt"

// Timestamp formats the position of frame n at the given frame rate as
// zero-padded "HH:MM:SS", truncating the sub-second remainder. fps must be
// positive for a meaningful result; sources reject zero-fps containers at
// open.
func Timestamp(n int, fps float64) string {
	if fps <= 0 {
		return "00:00:00"
	}
	total := int(float64(n) / fps)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Percent returns how far frame n is through a video of total frames, in
// [0, 100].
func Percent(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
