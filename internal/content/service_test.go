package content

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/substills/internal/capture"
	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/internal/dom/domtest"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func shown(x, y, w, h float64) models.NodeLayout {
	return models.NodeLayout{
		Rect:  models.Rect{X: x, Y: y, Width: w, Height: h},
		Style: models.ComputedStyle{Display: "block", Visibility: "visible", Opacity: "1"},
	}
}

func playerPage() *domtest.Page {
	vs := domtest.PlayingVideo(domtest.Gradient(320, 180), models.Rect{X: 0, Y: 0, Width: 640, Height: 360})
	vs.CurrentTime = 3723.9
	return domtest.NewPage(1280, 720, 2).AddVideo(vs)
}

func TestCapture(t *testing.T) {
	svc := NewService("tab-1", playerPage().Document(), Options{})

	res, err := svc.Capture(context.Background(), models.CaptureOptions{Format: models.FormatPNG})
	require.NoError(t, err)
	require.NotNil(t, res.Image)
	assert.False(t, res.WasBlack)
	assert.Equal(t, 320, res.Image.Width)
	assert.Equal(t, 180, res.Image.Height)
	assert.Equal(t, "tab-1", svc.TabID())
}

func TestCaptureBlackAndMissing(t *testing.T) {
	vs := domtest.PlayingVideo(domtest.Gradient(64, 36), models.Rect{Width: 640, Height: 360})
	vs.Protected = true
	svc := NewService("tab-1", domtest.NewPage(1280, 720, 1).AddVideo(vs).Document(), Options{})

	res, err := svc.Capture(context.Background(), models.CaptureOptions{IncludeSubtitles: true})
	require.NoError(t, err)
	assert.True(t, res.WasBlack)
	assert.Nil(t, res.Image)

	empty := NewService("tab-2", domtest.NewPage(1280, 720, 1).Document(), Options{})
	_, err = empty.Capture(context.Background(), models.CaptureOptions{})
	assert.True(t, errors.Is(err, models.ErrNoVideo))

	_, err = empty.GetBounds(context.Background())
	assert.True(t, errors.Is(err, models.ErrNoVideo))

	_, err = empty.GetVideoMeta(context.Background())
	assert.True(t, errors.Is(err, models.ErrNoVideo))
}

func TestCaptureUsesConfiguredDetector(t *testing.T) {
	// samples fall on column 0 of each row; light up 10 of the 100
	frame := domtest.Solid(100, 100, color.RGBA{R: 5, G: 5, B: 5, A: 255})
	for y := 0; y < 10; y++ {
		frame.SetRGBA(0, y, color.RGBA{R: 200, A: 255})
	}
	vs := domtest.PlayingVideo(frame, models.Rect{Width: 100, Height: 100})
	doc := domtest.NewPage(100, 100, 1).AddVideo(vs).Document()

	lenient := NewService("tab", doc, Options{})
	res, err := lenient.Capture(context.Background(), models.CaptureOptions{})
	require.NoError(t, err)
	assert.False(t, res.WasBlack)

	strict := NewService("tab", doc, Options{Detector: capture.BlackDetector{
		SampleCount: 100, ChannelThreshold: 10, MinNonBlackRatio: 0.5,
	}})
	res, err = strict.Capture(context.Background(), models.CaptureOptions{})
	require.NoError(t, err)
	assert.True(t, res.WasBlack)
}

func TestGetBounds(t *testing.T) {
	svc := NewService("tab-1", playerPage().Document(), Options{})

	bounds, err := svc.GetBounds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CaptureBounds{X: 0, Y: 0, Width: 640, Height: 360, DevicePixelRatio: 2}, *bounds)
}

func TestGetVideoMeta(t *testing.T) {
	page := playerPage().
		WithTitle("Watch Some Show - Netflix").
		AddElement("div", "video-title", "", shown(0, 0, 10, 10))

	svc := NewService("tab-1", page.Document(), Options{})
	meta, err := svc.GetVideoMeta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "01-02-03", meta.Timestamp)
	assert.Equal(t, "Some Show", meta.Title)
}

func TestVideoTitle(t *testing.T) {
	tests := []struct {
		name string
		page *domtest.Page
		want string
	}{
		{
			name: "player title element wins",
			page: domtest.NewPage(100, 100, 1).
				WithTitle("Ignored - Netflix").
				AddRaw(`<div class="video-title"><h4>Stranger: Things?</h4></div>`),
			want: "Stranger Things",
		},
		{
			name: "youtube heading",
			page: domtest.NewPage(100, 100, 1).
				AddRaw(`<h1 class="ytd-video-primary-info-renderer">  A   talk </h1>`),
			want: "A talk",
		},
		{
			name: "document title suffix removed",
			page: domtest.NewPage(100, 100, 1).WithTitle("Cats compilation - YouTube"),
			want: "Cats compilation",
		},
		{
			name: "bare site name rejected",
			page: domtest.NewPage(100, 100, 1).WithTitle("Netflix"),
			want: "video",
		},
		{
			name: "nothing known",
			page: domtest.NewPage(100, 100, 1),
			want: "video",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoTitle(tt.page.Document()))
		})
	}
}

func TestCleanDocumentTitle(t *testing.T) {
	assert.Equal(t, "The Crown", CleanDocumentTitle("Watch The Crown | Netflix"))
	assert.Equal(t, "Andor", CleanDocumentTitle("Andor — Disney+"))
	assert.Equal(t, "Show", CleanDocumentTitle("Show - Prime Video: stream now"))
	assert.Equal(t, "Succession", CleanDocumentTitle("Succession - HBO Max"))
	assert.Equal(t, "", CleanDocumentTitle("  Netflix  "))
}

func hiddenState(t *testing.T, doc dom.Document, selector string) []bool {
	t.Helper()
	els, err := doc.QuerySelectorAll(selector)
	require.NoError(t, err)
	out := make([]bool, len(els))
	for i, el := range els {
		out[i] = !dom.IsVisible(el)
	}
	return out
}

func TestHideAndShowUI(t *testing.T) {
	doc := playerPage().
		AddElement("div", "ytp-chrome-bottom", "", shown(0, 320, 640, 40)).
		AddElement("div", "player-controls caption-button", "", shown(0, 0, 20, 20)).
		AddElement("div", "player-timedtext", "hello", shown(0, 280, 640, 30)).
		Document()
	svc := NewService("tab-1", doc, Options{})
	ctx := context.Background()

	handle := "hide-1"
	require.NoError(t, svc.HideUI(ctx, handle, false))

	assert.Equal(t, []bool{true}, hiddenState(t, doc, ".ytp-chrome-bottom"))
	// subtitle-looking elements survive when subtitles are kept
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".caption-button"))
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".player-timedtext"))

	require.NoError(t, svc.ShowUI(ctx, handle))
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".ytp-chrome-bottom"))

	// second restore with the same handle is a no-op
	require.NoError(t, svc.ShowUI(ctx, handle))
	require.NoError(t, svc.ShowUI(ctx, "unknown"))
}

func TestHideUIWithSubtitles(t *testing.T) {
	doc := playerPage().
		AddElement("div", "player-timedtext", "hello", shown(0, 280, 640, 30)).
		Document()
	svc := NewService("tab-1", doc, Options{})
	ctx := context.Background()

	handle := "hide-subs"
	require.NoError(t, svc.HideUI(ctx, handle, true))
	assert.Equal(t, []bool{true}, hiddenState(t, doc, ".player-timedtext"))

	els, _ := doc.QuerySelectorAll(".player-timedtext")
	assert.Equal(t, "-10000", els[0].InlineStyle().ZIndex)

	require.NoError(t, svc.ShowUI(ctx, handle))
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".player-timedtext"))
	assert.Equal(t, dom.InlineStyle{}, els[0].InlineStyle())
}

func TestShowUIRestoresOriginalInlineStyle(t *testing.T) {
	doc := playerPage().
		AddElement("div", "vjs-control-bar", "", shown(0, 320, 640, 40)).
		Document()
	els, _ := doc.QuerySelectorAll(".vjs-control-bar")
	original := dom.InlineStyle{Opacity: "0.8"}
	els[0].SetInlineStyle(original)

	svc := NewService("tab-1", doc, Options{})
	require.NoError(t, svc.HideUI(context.Background(), "h", false))
	assert.Equal(t, "none", els[0].InlineStyle().Display)

	require.NoError(t, svc.ShowUI(context.Background(), "h"))
	assert.Equal(t, original, els[0].InlineStyle())
}

func TestOverlappingHides(t *testing.T) {
	doc := playerPage().
		AddElement("div", "vjs-control-bar", "", shown(0, 320, 640, 40)).
		Document()
	els, _ := doc.QuerySelectorAll(".vjs-control-bar")
	original := dom.InlineStyle{Opacity: "0.8"}
	els[0].SetInlineStyle(original)

	svc := NewService("tab-1", doc, Options{})
	ctx := context.Background()
	require.NoError(t, svc.HideUI(ctx, "first", false))
	require.NoError(t, svc.HideUI(ctx, "second", false))

	// restored in acquisition order: hidden until the last handle goes
	require.NoError(t, svc.ShowUI(ctx, "first"))
	assert.Equal(t, []bool{true}, hiddenState(t, doc, ".vjs-control-bar"))
	require.NoError(t, svc.ShowUI(ctx, "second"))
	assert.Equal(t, original, els[0].InlineStyle())

	// and in reverse order
	require.NoError(t, svc.HideUI(ctx, "third", false))
	require.NoError(t, svc.HideUI(ctx, "fourth", false))
	require.NoError(t, svc.ShowUI(ctx, "fourth"))
	assert.Equal(t, []bool{true}, hiddenState(t, doc, ".vjs-control-bar"))
	require.NoError(t, svc.ShowUI(ctx, "third"))
	assert.Equal(t, original, els[0].InlineStyle())
}

func TestHideUIHandles(t *testing.T) {
	doc := playerPage().
		AddElement("div", "ytp-chrome-bottom", "", shown(0, 320, 640, 40)).
		Document()
	svc := NewService("tab-1", doc, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.HideUI(ctx, "", false), ErrMissingHandle)

	// a repeated hide is absorbed by the first one
	require.NoError(t, svc.HideUI(ctx, "retry", false))
	require.NoError(t, svc.HideUI(ctx, "retry", false))
	require.NoError(t, svc.ShowUI(ctx, "retry"))
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".ytp-chrome-bottom"))

	// a hide arriving after its restore does nothing
	require.NoError(t, svc.ShowUI(ctx, "late"))
	require.NoError(t, svc.HideUI(ctx, "late", false))
	assert.Equal(t, []bool{false}, hiddenState(t, doc, ".ytp-chrome-bottom"))
}
