package capture

import (
	"image"
)

// Defaults for the black-frame heuristic. Dark scenes can trip it; the
// values are tunable through config.CaptureConfig.
const (
	DefaultSampleCount      = 100
	DefaultChannelThreshold = 10
	DefaultMinNonBlackRatio = 0.05
)

// BlackDetector classifies a frame as DRM-blanked by sampling evenly strided
// pixels. A sample is non-black when any of R, G, B exceeds ChannelThreshold;
// the frame is black when fewer than MinNonBlackRatio of samples are non-black.
type BlackDetector struct {
	SampleCount      int
	ChannelThreshold uint8
	MinNonBlackRatio float64
}

// NewBlackDetector returns a detector with the default tuning
func NewBlackDetector() BlackDetector {
	return BlackDetector{
		SampleCount:      DefaultSampleCount,
		ChannelThreshold: DefaultChannelThreshold,
		MinNonBlackRatio: DefaultMinNonBlackRatio,
	}
}

// IsBlack reports whether the surface reads back as solid black
func (d BlackDetector) IsBlack(surface *image.RGBA) bool {
	total := surface.Bounds().Dx() * surface.Bounds().Dy()
	if total <= 0 {
		return true
	}

	samples := d.SampleCount
	if samples <= 0 {
		samples = DefaultSampleCount
	}
	if samples > total {
		samples = total
	}
	step := total / samples

	width := surface.Bounds().Dx()
	nonBlack := 0
	for i := 0; i < samples; i++ {
		idx := i * step
		x := idx % width
		y := idx / width
		off := surface.PixOffset(surface.Bounds().Min.X+x, surface.Bounds().Min.Y+y)
		r, g, b := surface.Pix[off], surface.Pix[off+1], surface.Pix[off+2]
		if r > d.ChannelThreshold || g > d.ChannelThreshold || b > d.ChannelThreshold {
			nonBlack++
		}
	}

	return float64(nonBlack) < float64(samples)*d.MinNonBlackRatio
}
