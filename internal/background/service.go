// Package background is the privileged context: it can see the screen but
// not the page's DOM or decoded video pixels.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/capture"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/tracing"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Service answers privileged-context requests
type Service struct {
	screen  Screen
	encoder *capture.Encoder
	logger  *logging.Logger
}

// NewService creates the background service over screen
func NewService(screen Screen, jpegQuality int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		screen:  screen,
		encoder: capture.NewEncoder(jpegQuality),
		logger:  logger.WithComponent("background"),
	}
}

// SnapshotViewport captures everything visible in the tab, encoded in format.
// Any failure to obtain the pixels is ErrCaptureDenied.
func (s *Service) SnapshotViewport(ctx context.Context, tabID string, format models.Format) (*models.EncodedImage, error) {
	span, ctx := tracing.StartSpan(ctx, "background.snapshot_viewport")
	defer tracing.FinishSpan(span)

	start := time.Now()
	img, err := s.screen.Grab(ctx, tabID)
	if err != nil {
		tracing.LogError(span, err)
		s.logger.WithError(err).WithTabID(tabID).Warn("viewport capture failed")
		return nil, fmt.Errorf("%w: %v", models.ErrCaptureDenied, err)
	}

	encoded, err := s.encoder.Encode(img, format)
	if err != nil {
		return nil, err
	}

	s.logger.WithTabID(tabID).Debugf("viewport captured in %s", time.Since(start))
	return encoded, nil
}

// Crop cuts bounds (scaled by the device pixel ratio) out of a viewport
// snapshot and re-encodes it in the snapshot's own format.
func (s *Service) Crop(ctx context.Context, snapshot *models.EncodedImage, bounds models.CaptureBounds) (*models.EncodedImage, error) {
	span, _ := tracing.StartSpan(ctx, "background.crop")
	defer tracing.FinishSpan(span)

	img, err := capture.Decode(snapshot)
	if err != nil {
		tracing.LogError(span, err)
		return nil, fmt.Errorf("%w: %v", models.ErrEncodeFailed, err)
	}

	cropped, err := capture.Crop(img, bounds)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}

	return s.encoder.Encode(cropped, snapshot.Format)
}

// CaptureAndCrop grabs the screen and crops it to bounds, encoding once
func (s *Service) CaptureAndCrop(ctx context.Context, tabID string, bounds models.CaptureBounds, format models.Format) (*models.EncodedImage, error) {
	span, ctx := tracing.StartSpan(ctx, "background.capture_and_crop")
	defer tracing.FinishSpan(span)

	if !bounds.Valid() {
		return nil, models.ErrNoBounds
	}

	img, err := s.screen.Grab(ctx, tabID)
	if err != nil {
		tracing.LogError(span, err)
		s.logger.WithError(err).WithTabID(tabID).Warn("viewport capture failed")
		return nil, fmt.Errorf("%w: %v", models.ErrCaptureDenied, err)
	}

	cropped, err := capture.Crop(img, bounds)
	if err != nil {
		return nil, err
	}
	return s.encoder.Encode(cropped, format)
}
