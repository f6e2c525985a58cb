package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/substills/internal/background"
	"github.com/therealutkarshpriyadarshi/substills/internal/content"
	"github.com/therealutkarshpriyadarshi/substills/internal/dom/domtest"
	"github.com/therealutkarshpriyadarshi/substills/internal/middleware"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func pageService(t *testing.T) *content.Service {
	t.Helper()
	vs := domtest.PlayingVideo(domtest.Gradient(320, 180), models.Rect{Width: 640, Height: 360})
	doc := domtest.NewPage(1280, 720, 1).WithTitle("Clip - YouTube").AddVideo(vs).Document()
	return content.NewService("tab-1", doc, content.Options{})
}

func backgroundService() (*background.Service, *background.StaticScreen) {
	screen := background.NewStaticScreen()
	screen.Set("tab-1", domtest.PNG(domtest.Gradient(1280, 720)))
	return background.NewService(screen, 92, nil), screen
}

func TestInProcessPageRoundTrip(t *testing.T) {
	transport := NewInProcess(PageHandler(StaticPage(pageService(t))))
	defer transport.Close()
	client := NewPageClient(transport, "tab-1", nil)
	ctx := context.Background()

	res, err := client.Capture(ctx, models.CaptureOptions{Format: models.FormatPNG})
	require.NoError(t, err)
	require.NotNil(t, res.Image)
	assert.False(t, res.WasBlack)
	assert.Equal(t, 320, res.Image.Width)

	bounds, err := client.GetBounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 640.0, bounds.Width)
	assert.Equal(t, 360.0, bounds.Height)

	meta, err := client.GetVideoMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Clip", meta.Title)

	require.NoError(t, client.HideUI(ctx, "hide-1", false))
	assert.NoError(t, client.ShowUI(ctx, "hide-1"))
	assert.Equal(t, "tab-1", client.TabID())
}

func TestInProcessBackgroundRoundTrip(t *testing.T) {
	svc, _ := backgroundService()
	transport := NewInProcess(BackgroundHandler(svc))
	defer transport.Close()
	client := NewBackgroundClient(transport, nil)
	ctx := context.Background()

	snap, err := client.SnapshotViewport(ctx, "tab-1", models.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, 1280, snap.Width)

	bounds := models.CaptureBounds{X: 100, Y: 50, Width: 400, Height: 300, DevicePixelRatio: 1}
	cropped, err := client.Crop(ctx, snap, bounds)
	require.NoError(t, err)
	assert.Equal(t, 400, cropped.Width)
	assert.Equal(t, 300, cropped.Height)

	direct, err := client.CaptureAndCrop(ctx, "tab-1", bounds, models.FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, direct.Format)
	assert.Equal(t, 400, direct.Width)
}

func TestErrorsKeepTheirIdentity(t *testing.T) {
	empty := content.NewService("tab-1", domtest.NewPage(800, 600, 1).Document(), content.Options{})
	page := NewInProcess(PageHandler(StaticPage(empty)))
	defer page.Close()

	_, err := NewPageClient(page, "tab-1", nil).Capture(context.Background(), models.CaptureOptions{})
	assert.True(t, errors.Is(err, models.ErrNoVideo))

	svc, _ := backgroundService()
	bg := NewInProcess(BackgroundHandler(svc))
	defer bg.Close()

	_, err = NewBackgroundClient(bg, nil).SnapshotViewport(context.Background(), "tab-unknown", models.FormatPNG)
	assert.True(t, errors.Is(err, models.ErrCaptureDenied))

	resp, err := bg.RoundTrip(context.Background(), Request{Action: ActionCropImage})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.CodeNoBounds, resp.Code)

	resp, err = bg.RoundTrip(context.Background(), Request{Action: "launchMissiles"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "launchMissiles")
}

func TestPageResolverFailure(t *testing.T) {
	sessions := content.NewSessions(content.Options{})
	handler := PageHandler(func(tabID string) (PageService, error) {
		return sessions.Get(tabID)
	})

	resp := handler(context.Background(), Request{ID: "r1", Action: ActionGetVideoBounds, TabID: "nope"})
	assert.False(t, resp.Success)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, models.CodeInternal, resp.Code)
}

func TestInProcessClose(t *testing.T) {
	transport := NewInProcess(func(ctx context.Context, req Request) Response {
		return Response{ID: req.ID, Success: true}
	})
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	_, err := transport.RoundTrip(context.Background(), Request{Action: ActionGetVideoInfo})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInProcessContextCancel(t *testing.T) {
	release := make(chan struct{})
	transport := NewInProcess(func(ctx context.Context, req Request) Response {
		<-release
		return Response{Success: true}
	})
	defer transport.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := transport.RoundTrip(ctx, Request{Action: ActionGetVideoInfo})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInProcessCopiesMessages(t *testing.T) {
	var seen *models.EncodedImage
	transport := NewInProcess(func(ctx context.Context, req Request) Response {
		seen = req.Image
		return Response{Success: true, Image: req.Image}
	})
	defer transport.Close()

	img := &models.EncodedImage{Format: models.FormatPNG, Data: []byte{1, 2, 3}}
	resp, err := transport.RoundTrip(context.Background(), Request{Action: ActionCropImage, Image: img})
	require.NoError(t, err)

	assert.NotSame(t, img, seen)
	assert.NotSame(t, img, resp.Image)
	assert.Equal(t, img.Data, resp.Image.Data)
}

func newBridgeServer(t *testing.T, auth *middleware.BridgeAuth) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc, _ := backgroundService()
	RegisterRoutes(router, auth, StaticPage(pageService(t)), svc)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPTransport(t *testing.T) {
	server := newBridgeServer(t, middleware.NewBridgeAuth(""))
	ctx := context.Background()

	page := NewPageClient(NewHTTPTransport(server.URL+PagePath, "", 5*time.Second), "tab-1", nil)
	res, err := page.Capture(ctx, models.CaptureOptions{Format: models.FormatJPEG})
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, res.Image.Format)

	bg := NewBackgroundClient(NewHTTPTransport(server.URL+BackgroundPath, "", 5*time.Second), nil)
	img, err := bg.CaptureAndCrop(ctx, "tab-1", models.CaptureBounds{Width: 64, Height: 32, DevicePixelRatio: 2}, models.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Width)
	assert.Equal(t, 64, img.Height)
}

func TestHTTPTransportAuth(t *testing.T) {
	auth := middleware.NewBridgeAuth("bridge-secret")
	server := newBridgeServer(t, auth)
	ctx := context.Background()

	_, err := NewHTTPTransport(server.URL+PagePath, "", time.Second).RoundTrip(ctx, Request{Action: ActionGetVideoInfo})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	pageToken, err := auth.GenerateToken("agent", middleware.RolePage, time.Minute)
	require.NoError(t, err)
	_, err = NewHTTPTransport(server.URL+PagePath, pageToken, time.Second).RoundTrip(ctx, Request{Action: ActionGetVideoInfo})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	token, err := auth.GenerateToken("popup", middleware.RoleController, time.Minute)
	require.NoError(t, err)
	meta, err := NewPageClient(NewHTTPTransport(server.URL+PagePath+"/", token, time.Second), "tab-1", nil).GetVideoMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Clip", meta.Title)
}

func TestServeHandlerRejectsBadBodies(t *testing.T) {
	server := newBridgeServer(t, middleware.NewBridgeAuth(""))

	resp, err := http.Post(server.URL+PagePath, "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+PagePath, "application/json", strings.NewReader(`{"tab_id":"tab-1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFormatAliasesCrossTheBridge(t *testing.T) {
	server := newBridgeServer(t, middleware.NewBridgeAuth(""))

	post := func(path, body string) Response {
		resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	res := post(PagePath, `{"action":"captureScreenshot","tab_id":"tab-1","options":{"format":"lossy"}}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, models.FormatJPEG, res.Image.Format)
	assert.Equal(t, "image/jpeg", res.Image.MIMEType)

	res = post(BackgroundPath, `{"action":"snapshotViewport","tab_id":"tab-1","format":"lossless"}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, models.FormatPNG, res.Image.Format)

	transport := NewInProcess(PageHandler(StaticPage(pageService(t))))
	defer transport.Close()
	captured, err := NewPageClient(transport, "tab-1", nil).Capture(context.Background(), models.CaptureOptions{Format: "lossy"})
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, captured.Image.Format)
}
