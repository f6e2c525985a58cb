// Package controller drives a capture from the caller's side: it asks the
// page for a frame, falls back to a cropped viewport snapshot when the frame
// is DRM-blanked, names the result and hands it to the configured sinks.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/therealutkarshpriyadarshi/substills/internal/bridge"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/internal/tracing"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// DefaultSettleDelay lets the page repaint after its controls are hidden
const DefaultSettleDelay = 100 * time.Millisecond

// ErrUnknownCommand is returned for commands other than take-screenshot
var ErrUnknownCommand = errors.New("unknown command")

// PreferenceStore reads the persisted user settings
type PreferenceStore interface {
	GetPreferences(ctx context.Context) (models.Preferences, error)
}

// ImageSink stores a finished capture and returns where it went
type ImageSink interface {
	SaveCapture(ctx context.Context, capture *models.Capture) (string, error)
}

// HistoryRecorder keeps a record of finished captures
type HistoryRecorder interface {
	CreateCapture(ctx context.Context, capture *models.Capture) error
}

// LastCaptureStore retains the most recent capture for re-download and copy
type LastCaptureStore interface {
	SetLastCapture(ctx context.Context, capture *models.Capture) error
}

// Options wires the optional collaborators
type Options struct {
	Preferences PreferenceStore
	Sink        ImageSink
	History     HistoryRecorder
	Last        LastCaptureStore
	SettleDelay time.Duration
	Logger      *logging.Logger
}

// Request describes one capture
type Request struct {
	TabID        string
	Options      models.CaptureOptions
	AutoDownload bool
	// GenericName skips the metadata lookup and uses a timestamped name
	GenericName bool
}

// Controller runs captures one at a time
type Controller struct {
	pages   bridge.PageResolver
	bg      bridge.BackgroundService
	prefs   PreferenceStore
	sink    ImageSink
	history HistoryRecorder
	last    LastCaptureStore
	settle  time.Duration
	logger  *logging.Logger
	now     func() time.Time

	mu sync.Mutex
}

// New creates a controller over the two contexts
func New(pages bridge.PageResolver, bg bridge.BackgroundService, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	settle := opts.SettleDelay
	if settle < 0 {
		settle = 0
	}
	return &Controller{
		pages:   pages,
		bg:      bg,
		prefs:   opts.Preferences,
		sink:    opts.Sink,
		history: opts.History,
		last:    opts.Last,
		settle:  settle,
		logger:  logger.WithComponent("controller"),
		now:     time.Now,
	}
}

// Preferences returns the stored preferences, or the defaults when no store
// is configured.
func (c *Controller) Preferences(ctx context.Context) (models.Preferences, error) {
	if c.prefs == nil {
		return models.DefaultPreferences(), nil
	}
	return c.prefs.GetPreferences(ctx)
}

// CaptureWithPreferences captures tabID the way the popup does: stored
// options, auto-download per preference, metadata-derived filename.
func (c *Controller) CaptureWithPreferences(ctx context.Context, tabID string) (*models.Capture, error) {
	prefs, err := c.Preferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return c.Capture(ctx, Request{
		TabID:        tabID,
		Options:      prefs.CaptureOptions(),
		AutoDownload: prefs.AutoDownload,
	})
}

// HandleCommand runs a keyboard-shortcut command. take-screenshot always
// saves, under a generic timestamped name.
func (c *Controller) HandleCommand(ctx context.Context, cmd models.Command) (*models.Capture, error) {
	if cmd.Name != models.CommandTakeScreenshot {
		metrics.RecordCommand("unknown", "rejected")
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}

	prefs, err := c.Preferences(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Falling back to default preferences")
		prefs = models.DefaultPreferences()
	}

	captured, err := c.Capture(ctx, Request{
		TabID:        cmd.TabID,
		Options:      prefs.CaptureOptions(),
		AutoDownload: true,
		GenericName:  true,
	})
	if err != nil {
		metrics.RecordCommand(cmd.Name, "failed")
		return nil, err
	}
	metrics.RecordCommand(cmd.Name, "success")
	return captured, nil
}

// Capture runs the full pipeline for one tab
func (c *Controller) Capture(ctx context.Context, req Request) (*models.Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "controller.capture")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "tab_id", req.TabID)

	id := uuid.NewString()
	logger := c.logger.WithCaptureID(id).WithTabID(req.TabID)
	start := time.Now()

	opts := req.Options
	if opts.Format == "" {
		opts.Format = models.FormatPNG
	}

	page, err := c.pages(req.TabID)
	if err != nil {
		return nil, c.fail(span, logger, err)
	}

	result, err := page.Capture(ctx, opts)
	if err != nil {
		return nil, c.fail(span, logger, err)
	}

	source := models.CaptureSourceDirect
	img := result.Image
	if result.WasBlack {
		metrics.RecordBlackFrame()
		logger.LogCaptureEvent(id, "black_frame", source, nil)
		source = models.CaptureSourceFallback
		img, err = c.fallback(ctx, page, req.TabID, opts, logger)
		if err != nil {
			return nil, c.fail(span, logger, err)
		}
	}
	tracing.SetTag(span, "source", source)

	captured := &models.Capture{
		ID:               id,
		TabID:            req.TabID,
		Format:           img.Format,
		MIMEType:         img.MIMEType,
		Width:            img.Width,
		Height:           img.Height,
		Size:             int64(len(img.Data)),
		Source:           source,
		IncludeSubtitles: opts.IncludeSubtitles,
		CreatedAt:        c.now().UTC(),
		Data:             img.Data,
	}
	c.name(ctx, page, captured, req.GenericName)

	metrics.RecordCapture(source, string(captured.Format), len(img.Data), time.Since(start).Seconds())
	logger.LogCaptureEvent(id, "captured", source, map[string]interface{}{
		"filename": captured.Filename,
		"size":     captured.Size,
	})

	c.deliver(ctx, logger, captured, req.AutoDownload)
	return captured, nil
}

// fallback hides the player UI, snapshots the viewport and crops it to the
// video content. Restoring the UI is attempted on every path, a failed
// hide included.
func (c *Controller) fallback(ctx context.Context, page bridge.PageService, tabID string, opts models.CaptureOptions, logger *logging.Logger) (*models.EncodedImage, error) {
	span, ctx := tracing.StartStage(ctx, "fallback", tabID)
	defer tracing.FinishSpan(span)

	// the handle is ours, so a hide whose answer was lost can still be undone
	handle := uuid.NewString()
	restored := false
	restore := func() {
		if restored {
			return
		}
		restored = true
		if err := page.ShowUI(context.WithoutCancel(ctx), handle); err != nil {
			logger.WithError(err).Warn("Failed to restore player controls")
		}
	}
	defer restore()

	if err := page.HideUI(ctx, handle, !opts.IncludeSubtitles); err != nil {
		return nil, fmt.Errorf("failed to hide player controls: %w", err)
	}

	if c.settle > 0 {
		timer := time.NewTimer(c.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	bounds, err := page.GetBounds(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.bg.SnapshotViewport(ctx, tabID, opts.Format)
	if err != nil {
		return nil, err
	}
	restore()

	return c.bg.Crop(ctx, snapshot, *bounds)
}

func (c *Controller) name(ctx context.Context, page bridge.PageService, captured *models.Capture, generic bool) {
	if generic {
		captured.Filename = models.GenericFilename(captured.Format, captured.CreatedAt)
		return
	}

	meta, err := page.GetVideoMeta(ctx)
	if err != nil {
		c.logger.WithCaptureID(captured.ID).WithError(err).Debug("Video metadata unavailable")
		meta = nil
	}
	if meta != nil {
		captured.Title = meta.Title
		captured.Timestamp = meta.Timestamp
	}
	captured.Filename = models.Filename(meta, captured.Format, captured.CreatedAt)
}

// deliver hands the capture to the sinks; their failures do not undo it
func (c *Controller) deliver(ctx context.Context, logger *logging.Logger, captured *models.Capture, autoDownload bool) {
	if autoDownload && c.sink != nil {
		key, err := c.sink.SaveCapture(ctx, captured)
		if err != nil {
			metrics.RecordError("sink", "save_capture")
			logger.WithError(err).Error("Failed to save capture")
		} else {
			captured.ObjectKey = key
		}
	}

	if c.history != nil {
		if err := c.history.CreateCapture(ctx, captured); err != nil {
			metrics.RecordError("history", "create_capture")
			logger.WithError(err).Error("Failed to record capture")
		}
	}

	if c.last != nil {
		if err := c.last.SetLastCapture(ctx, captured); err != nil {
			metrics.RecordError("cache", "set_last_capture")
			logger.WithError(err).Warn("Failed to cache last capture")
		}
	}
}

func (c *Controller) fail(span opentracing.Span, logger *logging.Logger, err error) error {
	code := models.ErrorCode(err)
	metrics.RecordCaptureFailure(code)
	tracing.LogError(span, err)
	logger.WithError(err).WithField("code", code).Warn("Capture failed")
	return err
}
