package report

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	return img
}

func TestSnapshotSaverCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "detected_frames")
	_, err := NewSnapshotSaver(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSnapshotSaverFilenameFormat(t *testing.T) {
	saver, err := NewSnapshotSaver(t.TempDir())
	require.NoError(t, err)

	path, err := saver.Save(testFrame(), 30, "00:00:03")
	require.NoError(t, err)
	assert.Equal(t, "frame_000030_00_00_03.jpg", filepath.Base(path))

	path, err = saver.Save(testFrame(), 123456, "01:02:03")
	require.NoError(t, err)
	assert.Equal(t, "frame_123456_01_02_03.jpg", filepath.Base(path))
}

func TestSnapshotSaverWritesDecodableJPEG(t *testing.T) {
	saver, err := NewSnapshotSaver(t.TempDir())
	require.NoError(t, err)

	path, err := saver.Save(testFrame(), 0, "00:00:00")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestSnapshotSaverDistinctFramesDistinctFiles(t *testing.T) {
	saver, err := NewSnapshotSaver(t.TempDir())
	require.NoError(t, err)

	p1, err := saver.Save(testFrame(), 0, "00:00:00")
	require.NoError(t, err)
	p2, err := saver.Save(testFrame(), 30, "00:00:03")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	entries, err := os.ReadDir(saver.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSnapshotSaverFailsOnUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	saver, err := NewSnapshotSaver(filepath.Join(dir, "nested"))
	if err != nil {
		return // MkdirAll already failed, which is also acceptable
	}
	_, err = saver.Save(testFrame(), 0, "00:00:00")
	assert.Error(t, err)
}
