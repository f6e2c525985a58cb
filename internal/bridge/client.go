package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

type caller struct {
	transport Transport
	logger    *logging.Logger
}

func (c caller) call(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	start := time.Now()
	resp, err := c.transport.RoundTrip(ctx, req)
	if err == nil {
		err = resp.Err()
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start)
	metrics.RecordBridgeMessage(req.Action, status, duration.Seconds())
	c.logger.LogBridgeMessage(req.Action, req.TabID, duration, err)

	return resp, err
}

func newCaller(transport Transport, logger *logging.Logger) caller {
	if logger == nil {
		logger = logging.Nop()
	}
	return caller{transport: transport, logger: logger.WithComponent("bridge")}
}

// PageClient reaches one tab's page context over a transport
type PageClient struct {
	caller
	tabID string
}

// NewPageClient creates a page client bound to tabID
func NewPageClient(transport Transport, tabID string, logger *logging.Logger) *PageClient {
	return &PageClient{caller: newCaller(transport, logger), tabID: tabID}
}

// TabID returns the tab this client talks to
func (p *PageClient) TabID() string {
	return p.tabID
}

// Capture asks the page for the current frame
func (p *PageClient) Capture(ctx context.Context, opts models.CaptureOptions) (*models.CaptureResult, error) {
	resp, err := p.call(ctx, Request{Action: ActionCaptureScreenshot, TabID: p.tabID, Options: &opts})
	if err != nil {
		return nil, err
	}
	if !resp.IsBlack && resp.Image == nil {
		return nil, fmt.Errorf("%w: page returned no image", models.ErrEncodeFailed)
	}
	return &models.CaptureResult{Image: resp.Image, WasBlack: resp.IsBlack}, nil
}

// GetBounds asks the page for the video content bounds
func (p *PageClient) GetBounds(ctx context.Context) (*models.CaptureBounds, error) {
	resp, err := p.call(ctx, Request{Action: ActionGetVideoBounds, TabID: p.tabID})
	if err != nil {
		return nil, err
	}
	if resp.Bounds == nil {
		return nil, models.ErrNoBounds
	}
	return resp.Bounds, nil
}

// GetVideoMeta asks the page for title and playback position
func (p *PageClient) GetVideoMeta(ctx context.Context) (*models.VideoMeta, error) {
	resp, err := p.call(ctx, Request{Action: ActionGetVideoInfo, TabID: p.tabID})
	if err != nil {
		return nil, err
	}
	if resp.Meta == nil {
		return nil, models.ErrNoVideo
	}
	return resp.Meta, nil
}

// HideUI hides player chrome under handle
func (p *PageClient) HideUI(ctx context.Context, handle string, hideSubtitles bool) error {
	_, err := p.call(ctx, Request{Action: ActionHideControls, TabID: p.tabID, Handle: handle, HideSubtitles: hideSubtitles})
	return err
}

// ShowUI restores what HideUI hid
func (p *PageClient) ShowUI(ctx context.Context, handle string) error {
	_, err := p.call(ctx, Request{Action: ActionShowControls, TabID: p.tabID, Handle: handle})
	return err
}

// BackgroundClient reaches the privileged context over a transport
type BackgroundClient struct {
	caller
}

// NewBackgroundClient creates a background client
func NewBackgroundClient(transport Transport, logger *logging.Logger) *BackgroundClient {
	return &BackgroundClient{caller: newCaller(transport, logger)}
}

func (b *BackgroundClient) image(ctx context.Context, req Request) (*models.EncodedImage, error) {
	resp, err := b.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Image == nil {
		return nil, fmt.Errorf("%w: background returned no image", models.ErrCaptureDenied)
	}
	return resp.Image, nil
}

// SnapshotViewport captures the tab's visible viewport
func (b *BackgroundClient) SnapshotViewport(ctx context.Context, tabID string, format models.Format) (*models.EncodedImage, error) {
	return b.image(ctx, Request{Action: ActionSnapshotViewport, TabID: tabID, Format: format})
}

// Crop crops a viewport snapshot to bounds
func (b *BackgroundClient) Crop(ctx context.Context, snapshot *models.EncodedImage, bounds models.CaptureBounds) (*models.EncodedImage, error) {
	return b.image(ctx, Request{Action: ActionCropImage, Image: snapshot, Bounds: &bounds})
}

// CaptureAndCrop captures the viewport and crops it in one round trip
func (b *BackgroundClient) CaptureAndCrop(ctx context.Context, tabID string, bounds models.CaptureBounds, format models.Format) (*models.EncodedImage, error) {
	return b.image(ctx, Request{Action: ActionCaptureVisibleTab, TabID: tabID, Bounds: &bounds, Format: format})
}
