package video

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFrames builds a raw RGBA byte stream of count frames where every byte
// of frame i has value i, so tests can tell frames apart by content.
func rawFrames(meta entity.VideoMeta, count int) []byte {
	frameSize := meta.Width * meta.Height * 4
	data := make([]byte, 0, frameSize*count)
	for i := 0; i < count; i++ {
		frame := bytes.Repeat([]byte{byte(i)}, frameSize)
		data = append(data, frame...)
	}
	return data
}

func testMeta(frameCount int) entity.VideoMeta {
	return entity.VideoMeta{FrameCount: frameCount, FPS: 10, Width: 4, Height: 2}
}

func collect(t *testing.T, fr *frameReader) []*entity.SampledFrame {
	t.Helper()
	var frames []*entity.SampledFrame
	for {
		frame, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
}

func frameNumbers(frames []*entity.SampledFrame) []int {
	nums := make([]int, len(frames))
	for i, f := range frames {
		nums[i] = f.Number
	}
	return nums
}

func TestFrameReaderSamplesAtInterval(t *testing.T) {
	meta := testMeta(10)
	fr := newFrameReader(bytes.NewReader(rawFrames(meta, 10)), meta, 3)

	frames := collect(t, fr)
	assert.Equal(t, []int{0, 3, 6, 9}, frameNumbers(frames))

	// Content must belong to the right source frame.
	for _, f := range frames {
		assert.Equal(t, byte(f.Number), f.Image.Pix[0], "frame %d", f.Number)
	}
}

func TestFrameReaderIntervalOne(t *testing.T) {
	meta := testMeta(5)
	fr := newFrameReader(bytes.NewReader(rawFrames(meta, 5)), meta, 1)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, frameNumbers(collect(t, fr)))
}

func TestFrameReaderIntervalBeyondCount(t *testing.T) {
	meta := testMeta(5)
	fr := newFrameReader(bytes.NewReader(rawFrames(meta, 5)), meta, 30)
	assert.Equal(t, []int{0}, frameNumbers(collect(t, fr)))
}

func TestFrameReaderYieldsCeilOfCountOverInterval(t *testing.T) {
	// ceil(F/s) sampled frames for assorted F and s.
	cases := []struct {
		frames, interval, want int
	}{
		{100, 30, 4},
		{100, 1, 100},
		{100, 100, 1},
		{99, 33, 3},
		{1, 1, 1},
		{7, 2, 4},
	}
	for _, c := range cases {
		meta := testMeta(c.frames)
		fr := newFrameReader(bytes.NewReader(rawFrames(meta, c.frames)), meta, c.interval)
		got := collect(t, fr)
		assert.Len(t, got, c.want, "F=%d s=%d", c.frames, c.interval)
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].Number, got[i-1].Number)
		}
	}
}

func TestFrameReaderTruncatedTailIsEndOfStream(t *testing.T) {
	meta := testMeta(10)
	data := rawFrames(meta, 10)
	// Chop the last frame in half: frame 9 is no longer decodable.
	data = data[:len(data)-meta.Width*meta.Height*2]

	fr := newFrameReader(bytes.NewReader(data), meta, 3)
	frames := collect(t, fr)
	assert.Equal(t, []int{0, 3, 6}, frameNumbers(frames))
}

func TestFrameReaderStopsAtDeclaredCount(t *testing.T) {
	// The decoder may produce more frames than the container declared; the
	// stream must still stay below the declared count.
	meta := testMeta(10)
	fr := newFrameReader(bytes.NewReader(rawFrames(meta, 12)), meta, 5)
	assert.Equal(t, []int{0, 5}, frameNumbers(collect(t, fr)))
}

func TestFrameReaderEmptyStream(t *testing.T) {
	meta := testMeta(10)
	fr := newFrameReader(bytes.NewReader(nil), meta, 3)
	assert.Empty(t, collect(t, fr))
}

func TestFrameReaderImageGeometry(t *testing.T) {
	meta := testMeta(3)
	fr := newFrameReader(bytes.NewReader(rawFrames(meta, 3)), meta, 1)

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, meta.Width, frame.Image.Rect.Dx())
	assert.Equal(t, meta.Height, frame.Image.Rect.Dy())
	assert.Equal(t, meta.Width*4, frame.Image.Stride)
	assert.Len(t, frame.Image.Pix, meta.Width*meta.Height*4)
}
