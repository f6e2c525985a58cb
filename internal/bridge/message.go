// Package bridge carries requests between the page context and the
// privileged context. The two sides share no memory: every call is a
// serialized request answered by a serialized response.
package bridge

import (
	"context"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Page-context actions
const (
	ActionCaptureScreenshot = "captureScreenshot"
	ActionGetVideoBounds    = "getVideoBounds"
	ActionGetVideoInfo      = "getVideoInfo"
	ActionHideControls      = "hideControls"
	ActionShowControls      = "showControls"
)

// Privileged-context actions
const (
	ActionSnapshotViewport  = "snapshotViewport"
	ActionCropImage         = "cropImage"
	ActionCaptureVisibleTab = "captureVisibleTab"
)

// Request is one message to either context
type Request struct {
	ID            string                 `json:"id,omitempty"`
	Action        string                 `json:"action"`
	TabID         string                 `json:"tab_id,omitempty"`
	Options       *models.CaptureOptions `json:"options,omitempty"`
	Format        models.Format          `json:"format,omitempty"`
	Bounds        *models.CaptureBounds  `json:"bounds,omitempty"`
	Image         *models.EncodedImage   `json:"image,omitempty"`
	HideSubtitles bool                   `json:"hide_subtitles,omitempty"`
	Handle        string                 `json:"handle,omitempty"`
}

// Response answers a Request. Failures carry a human-readable Error and a
// stable Code that maps back onto the error taxonomy.
type Response struct {
	ID      string                `json:"id,omitempty"`
	Success bool                  `json:"success"`
	Image   *models.EncodedImage  `json:"image,omitempty"`
	IsBlack bool                  `json:"is_black,omitempty"`
	Bounds  *models.CaptureBounds `json:"bounds,omitempty"`
	Meta    *models.VideoMeta     `json:"meta,omitempty"`
	Handle  string                `json:"handle,omitempty"`
	Error   string                `json:"error,omitempty"`
	Code    string                `json:"code,omitempty"`
}

// Err rebuilds the error carried by a failed response
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return models.ErrorFromCode(r.Code, r.Error)
}

func failure(id string, err error) Response {
	return Response{
		ID:    id,
		Error: err.Error(),
		Code:  models.ErrorCode(err),
	}
}

// PageService is what the page context offers: DOM and video access
type PageService interface {
	Capture(ctx context.Context, opts models.CaptureOptions) (*models.CaptureResult, error)
	GetBounds(ctx context.Context) (*models.CaptureBounds, error)
	GetVideoMeta(ctx context.Context) (*models.VideoMeta, error)
	HideUI(ctx context.Context, handle string, hideSubtitles bool) error
	ShowUI(ctx context.Context, handle string) error
}

// BackgroundService is what the privileged context offers: screen access
type BackgroundService interface {
	SnapshotViewport(ctx context.Context, tabID string, format models.Format) (*models.EncodedImage, error)
	Crop(ctx context.Context, snapshot *models.EncodedImage, bounds models.CaptureBounds) (*models.EncodedImage, error)
	CaptureAndCrop(ctx context.Context, tabID string, bounds models.CaptureBounds, format models.Format) (*models.EncodedImage, error)
}

// Handler serves one request
type Handler func(ctx context.Context, req Request) Response

// Transport delivers a request to the other context and waits for its answer
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}
