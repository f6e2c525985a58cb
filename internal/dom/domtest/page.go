// Package domtest builds page snapshots for tests.
package domtest

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Page accumulates markup, layout and videos for a snapshot
type Page struct {
	title    string
	viewport models.Viewport
	body     strings.Builder
	nodes    map[string]models.NodeLayout
	videos   []models.VideoSnapshot
	screen   []byte
	next     int
}

// NewPage starts a page with the given viewport
func NewPage(width, height, dpr float64) *Page {
	return &Page{
		viewport: models.Viewport{Width: width, Height: height, DevicePixelRatio: dpr},
		nodes:    make(map[string]models.NodeLayout),
	}
}

// WithTitle sets the document title
func (p *Page) WithTitle(title string) *Page {
	p.title = title
	return p
}

// WithScreen attaches an encoded viewport image
func (p *Page) WithScreen(encoded []byte) *Page {
	p.screen = encoded
	return p
}

// AddVideo appends a video element
func (p *Page) AddVideo(v models.VideoSnapshot) *Page {
	p.videos = append(p.videos, v)
	return p
}

// AddElement appends <tag class="class">text</tag> with the given layout.
// Newlines in text become <br>.
func (p *Page) AddElement(tag, class, text string, layout models.NodeLayout) *Page {
	p.AddRaw(fmt.Sprintf(`<%s class="%s" %s="%s">%s</%s>`,
		tag, html.EscapeString(class), models.NodeIDAttr, p.allocate(layout), markupText(text), tag))
	return p
}

// AddRaw appends raw markup; use NodeID to reference layouts from it
func (p *Page) AddRaw(markup string) *Page {
	p.body.WriteString(markup)
	return p
}

// NodeID registers a layout and returns the id to put in markup
func (p *Page) NodeID(layout models.NodeLayout) string {
	return p.allocate(layout)
}

func (p *Page) allocate(layout models.NodeLayout) string {
	p.next++
	id := fmt.Sprintf("n%d", p.next)
	p.nodes[id] = layout
	return id
}

// Snapshot returns the wire form of the page
func (p *Page) Snapshot() *models.PageSnapshot {
	return &models.PageSnapshot{
		TabID:    "tab-test",
		Title:    p.title,
		HTML:     "<html><body>" + p.body.String() + "</body></html>",
		Viewport: p.viewport,
		Nodes:    p.nodes,
		Videos:   p.videos,
		Screen:   p.screen,
	}
}

// Document parses the page into a dom.Snapshot, panicking on bad markup
func (p *Page) Document() *dom.Snapshot {
	doc, err := dom.NewSnapshot(p.Snapshot())
	if err != nil {
		panic(err)
	}
	return doc
}

func markupText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = html.EscapeString(line)
	}
	return strings.Join(lines, "<br>")
}

// Solid returns a w x h image filled with c
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Gradient returns a w x h image whose pixels are all distinct-ish and
// bright enough never to classify as black.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(40 + x*200/max(w, 1)),
				G: uint8(40 + y*200/max(h, 1)),
				B: uint8(60 + (x+y)%120),
				A: 255,
			})
		}
	}
	return img
}

// PNG encodes img
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PlayingVideo returns a ready, playing video of the given intrinsic size,
// rendered at rect, whose frame is img.
func PlayingVideo(img image.Image, rect models.Rect) models.VideoSnapshot {
	b := img.Bounds()
	return models.VideoSnapshot{
		Rect:        rect,
		VideoWidth:  b.Dx(),
		VideoHeight: b.Dy(),
		ReadyState:  models.HaveEnoughData,
		CurrentTime: 42,
		Frame:       PNG(img),
	}
}
