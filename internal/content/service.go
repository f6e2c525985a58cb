// Package content is the page context: it can read the DOM and draw the
// video, but never sees the screen. Everything it returns crosses the bridge
// as plain data.
package content

import (
	"context"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/capture"
	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/substills/internal/tracing"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Options configures a page service
type Options struct {
	Detector    capture.BlackDetector
	JPEGQuality int
	Selectors   []string
	Logger      *logging.Logger
}

// Service answers page-context requests for one tab
type Service struct {
	tabID  string
	doc    dom.Document
	frames *capture.FrameCapturer
	logger *logging.Logger

	// captures share the document's inline styles and the compositor's
	// font cache
	captureMu sync.Mutex

	hiddenMu sync.Mutex
	hidden   map[string][]any       // handle -> element keys
	hiddenBy map[any]*hiddenElement // element key -> restore state
	released map[string]time.Time   // handles already shown
}

// NewService creates the page service for doc
func NewService(tabID string, doc dom.Document, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithTabID(tabID).WithComponent("content")

	detector := opts.Detector
	if detector.SampleCount == 0 {
		detector = capture.NewBlackDetector()
	}

	compositor := subtitle.NewCompositor(doc, logger)
	if len(opts.Selectors) > 0 {
		compositor.WithSelectors(opts.Selectors)
	}

	return &Service{
		tabID:    tabID,
		doc:      doc,
		frames:   capture.NewFrameCapturer(detector, capture.NewEncoder(opts.JPEGQuality), compositor),
		logger:   logger,
		hidden:   make(map[string][]any),
		hiddenBy: make(map[any]*hiddenElement),
		released: make(map[string]time.Time),
	}
}

// TabID returns the tab this service reads
func (s *Service) TabID() string {
	return s.tabID
}

// Capture grabs the best video's current frame. A black frame comes back as
// WasBlack with no image.
func (s *Service) Capture(ctx context.Context, opts models.CaptureOptions) (*models.CaptureResult, error) {
	span, ctx := tracing.StartSpan(ctx, "content.capture")
	defer tracing.FinishSpan(span)

	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	start := time.Now()
	video := capture.FindBestVideo(s.doc)
	if video == nil {
		tracing.LogError(span, models.ErrNoVideo)
		return nil, models.ErrNoVideo
	}

	result, err := s.frames.CaptureFrame(ctx, video, opts)
	if err != nil {
		tracing.LogError(span, err)
		s.logger.WithError(err).Debug("frame capture failed")
		return nil, err
	}

	tracing.SetTag(span, "black", result.WasBlack)
	s.logger.WithFields(map[string]interface{}{
		"black":       result.WasBlack,
		"subtitles":   opts.IncludeSubtitles,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("frame captured")
	return result, nil
}

// GetBounds returns the visible content area of the best video
func (s *Service) GetBounds(ctx context.Context) (*models.CaptureBounds, error) {
	return capture.ComputeBounds(capture.FindBestVideo(s.doc), s.doc.Viewport())
}

// GetVideoMeta returns the title and playback position used to name files
func (s *Service) GetVideoMeta(ctx context.Context) (*models.VideoMeta, error) {
	video := capture.FindBestVideo(s.doc)
	if video == nil {
		return nil, models.ErrNoVideo
	}
	return &models.VideoMeta{
		Title:     VideoTitle(s.doc),
		Timestamp: models.FormatTimestamp(video.CurrentTime()),
	}, nil
}
