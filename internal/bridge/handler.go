package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// ErrUnknownAction is returned for actions the receiving context does not serve
var ErrUnknownAction = errors.New("unknown bridge action")

// PageResolver finds the page service for a tab
type PageResolver func(tabID string) (PageService, error)

// StaticPage resolves every tab to the same page service
func StaticPage(svc PageService) PageResolver {
	return func(string) (PageService, error) {
		return svc, nil
	}
}

// PageHandler dispatches page-context requests
func PageHandler(resolve PageResolver) Handler {
	return func(ctx context.Context, req Request) Response {
		svc, err := resolve(req.TabID)
		if err != nil {
			return failure(req.ID, err)
		}

		switch req.Action {
		case ActionCaptureScreenshot:
			opts := models.CaptureOptions{}
			if req.Options != nil {
				opts = *req.Options
			}
			result, err := svc.Capture(ctx, opts)
			if err != nil {
				return failure(req.ID, err)
			}
			return Response{ID: req.ID, Success: true, Image: result.Image, IsBlack: result.WasBlack}

		case ActionGetVideoBounds:
			bounds, err := svc.GetBounds(ctx)
			if err != nil {
				return failure(req.ID, err)
			}
			return Response{ID: req.ID, Success: true, Bounds: bounds}

		case ActionGetVideoInfo:
			meta, err := svc.GetVideoMeta(ctx)
			if err != nil {
				return failure(req.ID, err)
			}
			return Response{ID: req.ID, Success: true, Meta: meta}

		case ActionHideControls:
			if err := svc.HideUI(ctx, req.Handle, req.HideSubtitles); err != nil {
				return failure(req.ID, err)
			}
			return Response{ID: req.ID, Success: true, Handle: req.Handle}

		case ActionShowControls:
			if err := svc.ShowUI(ctx, req.Handle); err != nil {
				return failure(req.ID, err)
			}
			return Response{ID: req.ID, Success: true}
		}

		return failure(req.ID, fmt.Errorf("%w: %s", ErrUnknownAction, req.Action))
	}
}

// BackgroundHandler dispatches privileged-context requests
func BackgroundHandler(svc BackgroundService) Handler {
	return func(ctx context.Context, req Request) Response {
		var (
			img *models.EncodedImage
			err error
		)

		switch req.Action {
		case ActionSnapshotViewport:
			img, err = svc.SnapshotViewport(ctx, req.TabID, req.Format)

		case ActionCropImage:
			if req.Bounds == nil {
				return failure(req.ID, models.ErrNoBounds)
			}
			img, err = svc.Crop(ctx, req.Image, *req.Bounds)

		case ActionCaptureVisibleTab:
			if req.Bounds == nil {
				return failure(req.ID, models.ErrNoBounds)
			}
			img, err = svc.CaptureAndCrop(ctx, req.TabID, *req.Bounds, req.Format)

		default:
			err = fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
		}

		if err != nil {
			return failure(req.ID, err)
		}
		return Response{ID: req.ID, Success: true, Image: img}
	}
}
