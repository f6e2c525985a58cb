package capture

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// ComputeBounds returns the on-screen area that actually shows video
// content. When the intrinsic aspect ratio is wider than the element box the
// content is letterboxed (bars above and below); when narrower it is
// pillarboxed (bars left and right).
func ComputeBounds(video dom.Video, viewport models.Viewport) (*models.CaptureBounds, error) {
	if video == nil {
		return nil, models.ErrNoVideo
	}

	rect := video.Rect()
	if rect.Empty() || video.VideoWidth() <= 0 || video.VideoHeight() <= 0 {
		return nil, fmt.Errorf("%w: element %gx%g, intrinsic %dx%d",
			models.ErrNoBounds, rect.Width, rect.Height, video.VideoWidth(), video.VideoHeight())
	}

	bounds := ContentBounds(rect, video.VideoWidth(), video.VideoHeight())
	bounds.DevicePixelRatio = viewport.DevicePixelRatio
	if bounds.DevicePixelRatio <= 0 {
		bounds.DevicePixelRatio = 1
	}
	return &bounds, nil
}

// ContentBounds fits a videoWidth x videoHeight picture into rect, centred,
// and returns the picture's rectangle.
func ContentBounds(rect models.Rect, videoWidth, videoHeight int) models.CaptureBounds {
	videoAspect := float64(videoWidth) / float64(videoHeight)
	boxAspect := rect.Width / rect.Height

	bounds := models.CaptureBounds{
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
	}

	switch {
	case videoAspect > boxAspect:
		height := rect.Width / videoAspect
		bounds.Y = rect.Y + (rect.Height-height)/2
		bounds.Height = height
	case videoAspect < boxAspect:
		width := rect.Height * videoAspect
		bounds.X = rect.X + (rect.Width-width)/2
		bounds.Width = width
	}

	return bounds
}
