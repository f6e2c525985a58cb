package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/substills/internal/background"
	"github.com/therealutkarshpriyadarshi/substills/internal/cache"
	"github.com/therealutkarshpriyadarshi/substills/internal/content"
	"github.com/therealutkarshpriyadarshi/substills/internal/controller"
	"github.com/therealutkarshpriyadarshi/substills/internal/database"
	"github.com/therealutkarshpriyadarshi/substills/internal/dom/domtest"
	"github.com/therealutkarshpriyadarshi/substills/internal/middleware"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHistory struct {
	mu      sync.Mutex
	records map[string]*models.Capture
	order   []string
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[string]*models.Capture)}
}

func (h *fakeHistory) CreateCapture(ctx context.Context, c *models.Capture) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	record := *c
	h.records[c.ID] = &record
	h.order = append(h.order, c.ID)
	return nil
}

func (h *fakeHistory) GetCapture(ctx context.Context, id string) (*models.Capture, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	record := *c
	return &record, nil
}

func (h *fakeHistory) ListCaptures(ctx context.Context, filter database.CaptureFilter) ([]*models.Capture, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*models.Capture
	for i := len(h.order) - 1; i >= 0; i-- {
		c, ok := h.records[h.order[i]]
		if !ok || (filter.TabID != "" && c.TabID != filter.TabID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *fakeHistory) SetObjectKey(ctx context.Context, id, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.records[id]
	if !ok {
		return database.ErrNotFound
	}
	c.ObjectKey = key
	return nil
}

func (h *fakeHistory) DeleteCapture(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[id]; !ok {
		return database.ErrNotFound
	}
	delete(h.records, id)
	return nil
}

func (h *fakeHistory) Stats(ctx context.Context) (*database.CaptureStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := &database.CaptureStats{BySource: make(map[string]int64)}
	for _, c := range h.records {
		stats.Total++
		stats.BySource[c.Source]++
		stats.TotalBytes += c.Size
	}
	return stats, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (o *fakeObjects) SaveCapture(ctx context.Context, c *models.Capture) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := "captures/" + c.ID + "/" + c.Filename
	o.objects[key] = c.Data
	return key, nil
}

func (o *fakeObjects) DownloadURL(ctx context.Context, key, filename string) (string, error) {
	return "https://objects.test/" + key + "?signed=1", nil
}

func (o *fakeObjects) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *fakeObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

type fakePublisher struct {
	published []*models.Command
}

func (p *fakePublisher) PublishCommand(ctx context.Context, cmd *models.Command) error {
	p.published = append(p.published, cmd)
	return nil
}

type failingCheck struct{}

func (failingCheck) Health(ctx context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router  *gin.Engine
	prefs   *cache.Memory
	history *fakeHistory
	objects *fakeObjects
}

func newTestServer(t *testing.T, configure func(*Deps)) *testServer {
	t.Helper()
	prefs := cache.NewMemory(models.DefaultPreferences())
	ts := &testServer{
		prefs:   prefs,
		history: newFakeHistory(),
		objects: newFakeObjects(),
	}

	screen := background.NewStaticScreen()
	deps := Deps{
		Sessions:    content.NewSessions(content.Options{}),
		Screen:      screen,
		Background:  background.NewService(screen, 95, nil),
		Preferences: prefs,
		Last:        prefs,
		History:     ts.history,
		Objects:     ts.objects,
	}
	if configure != nil {
		configure(&deps)
	}

	api := NewAPI(deps, controller.Options{SettleDelay: time.Millisecond})
	ts.router = setupRouter(api)
	return ts
}

func (ts *testServer) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func moviePage(protected bool) *models.PageSnapshot {
	vs := domtest.PlayingVideo(domtest.Gradient(320, 180), models.Rect{X: 40, Y: 20, Width: 640, Height: 360})
	vs.Protected = protected
	page := domtest.NewPage(1280, 720, 1).
		WithTitle("Watch Pilot - Netflix").
		WithScreen(domtest.PNG(domtest.Gradient(1280, 720))).
		AddVideo(vs)
	return page.Snapshot()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCaptureFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "tab-1", decode(t, w)["tab_id"])

	w = ts.do(http.MethodGet, "/api/v1/tabs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"tab-1"}, decode(t, w)["tabs"])

	w = ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	assert.True(t, strings.HasPrefix(resp["data_url"].(string), "data:image/png;base64,"))

	captured := resp["capture"].(map[string]interface{})
	assert.Equal(t, "Pilot_00-00-42.png", captured["filename"])
	assert.Equal(t, models.CaptureSourceDirect, captured["source"])
	assert.NotEmpty(t, captured["object_key"], "auto-download is on by default")
	assert.Equal(t, 1, ts.objects.count())

	w = ts.do(http.MethodGet, "/api/v1/captures/last/image", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes()[:4])

	w = ts.do(http.MethodGet, "/api/v1/captures", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestCaptureFallbackOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(true), "").Code)

	w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", gin.H{"format": "jpeg", "auto_download": false}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	captured := decode(t, w)["capture"].(map[string]interface{})
	assert.Equal(t, models.CaptureSourceFallback, captured["source"])
	assert.Equal(t, "Pilot_00-00-42.jpeg", captured["filename"])
	assert.EqualValues(t, 640, captured["width"])
	assert.EqualValues(t, 360, captured["height"])
	assert.Zero(t, ts.objects.count())
}

func TestUpdateScreen(t *testing.T) {
	ts := newTestServer(t, nil)
	screen := domtest.PNG(domtest.Solid(1280, 720, color.RGBA{R: 200, G: 30, B: 60, A: 255}))

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/v1/tabs/tab-1/screen", gin.H{"screen": screen}, "").Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(true), "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/v1/tabs/tab-1/screen", gin.H{"screen": []byte("nope")}, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/v1/tabs/tab-1/screen", gin.H{}, "").Code)
	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPut, "/api/v1/tabs/tab-1/screen", gin.H{"screen": screen}, "").Code)

	w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", gin.H{"format": "png", "auto_download": false}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.CaptureSourceFallback, decode(t, w)["capture"].(map[string]interface{})["source"])

	w = ts.do(http.MethodGet, "/api/v1/captures/last/image", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, []uint32{200, 30, 60}, []uint32{r >> 8, g >> 8, b >> 8})

	// the session survived the screen update
	w = ts.do(http.MethodGet, "/api/v1/tabs", nil, "")
	assert.Equal(t, []interface{}{"tab-1"}, decode(t, w)["tabs"])
}

func TestUpdateScreenWithoutStaticScreen(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Screen = nil })
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPut, "/api/v1/tabs/tab-1/screen", gin.H{"screen": []byte{1}}, "").Code)
}

func TestCaptureErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/v1/tabs/missing/captures", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	empty := domtest.NewPage(1280, 720, 1).Snapshot()
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/empty", empty, "").Code)
	w = ts.do(http.MethodPost, "/api/v1/tabs/empty/captures", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrorCode(models.ErrNoVideo), decode(t, w)["code"])

	w = ts.do(http.MethodPost, "/api/v1/tabs/empty/captures", gin.H{"format": "webp"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/v1/tabs/bad", "not a snapshot", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseTab(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/tabs/tab-1", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "").Code)
}

func TestPreferencesEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/v1/preferences", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", decode(t, w)["format"])

	w = ts.do(http.MethodPut, "/api/v1/preferences", gin.H{"format": "jpeg", "auto_download": false}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	prefs, err := ts.prefs.GetPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.FormatJPEG, prefs.Format)
	assert.False(t, prefs.AutoDownload)
	assert.True(t, prefs.IncludeSubtitles, "fields left out are kept")

	w = ts.do(http.MethodPut, "/api/v1/preferences", gin.H{"format": "webp"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferencesDriveCaptures(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.prefs.SetPreferences(context.Background(), models.Preferences{Format: models.FormatJPEG}))
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)

	w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	captured := decode(t, w)["capture"].(map[string]interface{})
	assert.Equal(t, "jpeg", captured["format"])
	assert.Nil(t, captured["object_key"], "auto-download is off")
	assert.Zero(t, ts.objects.count())

	w = ts.do(http.MethodPost, "/api/v1/captures/last/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key := decode(t, w)["object_key"].(string)
	assert.Equal(t, 1, ts.objects.count())

	id := captured["id"].(string)
	record, err := ts.history.GetCapture(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, key, record.ObjectKey)
}

func TestCommands(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		ts := newTestServer(t, nil)
		require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)

		w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/commands", gin.H{"name": models.CommandTakeScreenshot}, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		captured := decode(t, w)["capture"].(map[string]interface{})
		assert.True(t, strings.HasPrefix(captured["filename"].(string), "video-screenshot-"))
		assert.Equal(t, 1, ts.objects.count(), "shortcuts always download")

		w = ts.do(http.MethodPost, "/api/v1/tabs/tab-1/commands", gin.H{"name": "toggle-subtitles"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("queued", func(t *testing.T) {
		publisher := &fakePublisher{}
		ts := newTestServer(t, func(d *Deps) { d.Commands = publisher })

		w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/commands", nil, "")
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		require.Len(t, publisher.published, 1)
		assert.Equal(t, "tab-1", publisher.published[0].TabID)
		assert.Equal(t, models.CommandTakeScreenshot, publisher.published[0].Name)

		w = ts.do(http.MethodPost, "/api/v1/tabs/tab-1/commands", gin.H{"name": "toggle-subtitles"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, publisher.published, 1)
	})
}

func TestCaptureHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)

	w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["capture"].(map[string]interface{})["id"].(string)

	w = ts.do(http.MethodGet, "/api/v1/captures/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = ts.do(http.MethodGet, "/api/v1/captures/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = ts.do(http.MethodGet, "/api/v1/captures/"+id+"/download", nil, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "signed=1")

	w = ts.do(http.MethodGet, "/api/v1/captures/"+id+"/download?redirect=false", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pilot_00-00-42.png", decode(t, w)["filename"])

	w = ts.do(http.MethodGet, "/api/v1/captures?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/captures/"+id, nil, "").Code)
	assert.Zero(t, ts.objects.count())
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/captures/"+id, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/captures/"+id, nil, "").Code)
}

func TestOptionalFeaturesUnavailable(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.History = nil
		d.Objects = nil
	})

	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/api/v1/captures", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/api/v1/captures/stats", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/api/v1/captures/last/download", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/captures/last", nil, "").Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)
	w := ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "")
	require.Equal(t, http.StatusOK, w.Code, "captures work without history or storage")

	w = ts.do(http.MethodGet, "/api/v1/captures/last", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pilot_00-00-42.png", decode(t, w)["filename"])
}

func TestAuthRoles(t *testing.T) {
	auth := middleware.NewBridgeAuth("test-secret")
	ts := newTestServer(t, func(d *Deps) { d.Auth = auth })

	token := func(role string) string {
		tok, err := auth.GenerateToken("tester", role, time.Hour)
		require.NoError(t, err)
		return tok
	}

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), token(middleware.RoleController)).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), token(middleware.RolePage)).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, token(middleware.RolePage)).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, token(middleware.RoleController)).Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/preferences", nil, token(middleware.RolePage)).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, "/api/v1/preferences", gin.H{"format": "jpeg"}, token(middleware.RolePage)).Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Limiter = middleware.NewRateLimiter(0.001, 1) })
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "").Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	ts = newTestServer(t, func(d *Deps) {
		d.Checks = map[string]healthChecker{"database": failingCheck{}}
	})
	w = ts.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	components := decode(t, w)["components"].(map[string]interface{})
	assert.Equal(t, "connection refused", components["database"])
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{content.ErrUnknownTab, http.StatusNotFound},
		{database.ErrNotFound, http.StatusNotFound},
		{models.ErrNoVideo, http.StatusNotFound},
		{models.ErrNotReady, http.StatusConflict},
		{models.ErrNoBounds, http.StatusUnprocessableEntity},
		{fmt.Errorf("snapshot: %w", models.ErrCaptureDenied), http.StatusForbidden},
		{controller.ErrUnknownCommand, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/v1/tabs/tab-1", moviePage(false), "").Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/tabs/tab-1/captures", nil, "").Code)

	w := ts.do(http.MethodGet, "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.EqualValues(t, 1, status["open_tabs"])
	assert.EqualValues(t, 1, status["captures"])
}
