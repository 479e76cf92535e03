package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{
				"codec_type": "video",
				"width": 1920,
				"height": 1080,
				"r_frame_rate": "30/1",
				"avg_frame_rate": "30/1",
				"nb_frames": "300"
			}
		],
		"format": {"duration": "10.000000"}
	}`)

	meta, err := parseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 300, meta.FrameCount)
	assert.Equal(t, 30.0, meta.FPS)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.Equal(t, 10.0, meta.Duration)
}

func TestParseProbeEstimatesFrameCount(t *testing.T) {
	// MKV and friends rarely declare nb_frames.
	data := []byte(`{
		"streams": [
			{
				"codec_type": "video",
				"width": 640,
				"height": 480,
				"r_frame_rate": "10/1",
				"avg_frame_rate": "10/1"
			}
		],
		"format": {"duration": "10.0"}
	}`)

	meta, err := parseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 100, meta.FrameCount)
}

func TestParseProbeRationalRate(t *testing.T) {
	data := []byte(`{
		"streams": [
			{
				"codec_type": "video",
				"width": 1280,
				"height": 720,
				"r_frame_rate": "30000/1001",
				"avg_frame_rate": "30000/1001",
				"nb_frames": "450"
			}
		],
		"format": {"duration": "15.015000"}
	}`)

	meta, err := parseProbe(data)
	require.NoError(t, err)
	assert.InDelta(t, 29.97, meta.FPS, 0.01)
	assert.Equal(t, 450, meta.FrameCount)
}

func TestParseProbeFallsBackToAvgRate(t *testing.T) {
	data := []byte(`{
		"streams": [
			{
				"codec_type": "video",
				"width": 640,
				"height": 480,
				"r_frame_rate": "0/0",
				"avg_frame_rate": "25/1",
				"nb_frames": "50"
			}
		],
		"format": {"duration": "2.0"}
	}`)

	meta, err := parseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 25.0, meta.FPS)
}

func TestParseProbeNoStreams(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams": [], "format": {"duration": "1.0"}}`))
	assert.Error(t, err)
}

func TestParseProbeGarbage(t *testing.T) {
	_, err := parseProbe([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"0/1", 0},
	}
	for _, c := range cases {
		got, err := parseRate(c.in)
		require.NoError(t, err, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}

	for _, bad := range []string{"", "abc", "1/0", "x/y"} {
		_, err := parseRate(bad)
		assert.Error(t, err, bad)
	}
}
