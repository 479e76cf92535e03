package entity

import "image"

// VideoMeta describes an opened video source. FPS comes from the container's
// rational frame rate and is always positive for a usable source.
type VideoMeta struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
	Duration   float64
}

// SampledFrame is one decoded frame selected for analysis. Number is a
// multiple of the sampling interval and strictly increases across a stream.
// The pixel buffer is immutable once produced and safe to share across
// goroutines.
type SampledFrame struct {
	Number int
	Image  *image.RGBA
}
