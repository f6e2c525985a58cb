package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Compositor burns subtitles into a captured surface. It is best-effort and
// never fails the capture.
type Compositor interface {
	Composite(ctx context.Context, surface *image.RGBA, video dom.Video)
}

// FrameCapturer reads the current video frame at native resolution
type FrameCapturer struct {
	detector   BlackDetector
	encoder    *Encoder
	compositor Compositor
}

// NewFrameCapturer wires the black detector, encoder and (optional) compositor
func NewFrameCapturer(detector BlackDetector, encoder *Encoder, compositor Compositor) *FrameCapturer {
	if encoder == nil {
		encoder = NewEncoder(DefaultJPEGQuality)
	}
	return &FrameCapturer{
		detector:   detector,
		encoder:    encoder,
		compositor: compositor,
	}
}

// CaptureFrame draws the video's current frame into a surface of its
// intrinsic size. Black frames return WasBlack with no image so the caller
// can switch to the viewport fallback; otherwise subtitles are composited
// when requested and the surface is encoded.
func (f *FrameCapturer) CaptureFrame(ctx context.Context, video dom.Video, opts models.CaptureOptions) (*models.CaptureResult, error) {
	if video == nil {
		return nil, models.ErrNoVideo
	}
	if video.ReadyState() < models.HaveCurrentData {
		return nil, models.ErrNotReady
	}

	width, height := video.VideoWidth(), video.VideoHeight()
	surface := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := video.DrawFrame(surface); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNotReady, err)
	}

	if f.detector.IsBlack(surface) {
		return &models.CaptureResult{WasBlack: true}, nil
	}

	if opts.IncludeSubtitles && f.compositor != nil {
		f.compositor.Composite(ctx, surface, video)
	}

	encoded, err := f.encoder.Encode(surface, opts.Format)
	if err != nil {
		return nil, err
	}

	return &models.CaptureResult{Image: encoded}, nil
}
