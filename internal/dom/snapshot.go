package dom

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/net/html"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Snapshot is a Document backed by a serialized page. Selectors run against
// the snapshot markup; geometry and style come from the layout side table.
// Inline style writes are kept in memory so hide/show round-trips work.
type Snapshot struct {
	data   *models.PageSnapshot
	root   *html.Node
	videos []Video

	mu     sync.RWMutex
	inline map[any]InlineStyle
}

// NewSnapshot parses the snapshot markup
func NewSnapshot(data *models.PageSnapshot) (*Snapshot, error) {
	if data == nil {
		return nil, errors.New("nil page snapshot")
	}

	root, err := html.Parse(strings.NewReader(data.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	s := &Snapshot{
		data:   data,
		root:   root,
		inline: make(map[any]InlineStyle),
	}

	for i := range data.Videos {
		s.videos = append(s.videos, &snapshotVideo{
			snapshotElement: snapshotElement{doc: s, key: videoKey(i), layout: s.videoLayout(&data.Videos[i])},
			data:            &data.Videos[i],
		})
	}

	return s, nil
}

type videoKey int

// Title returns the document title
func (s *Snapshot) Title() string {
	return s.data.Title
}

// Viewport returns the viewport size and device pixel ratio
func (s *Snapshot) Viewport() models.Viewport {
	vp := s.data.Viewport
	if vp.DevicePixelRatio <= 0 {
		vp.DevicePixelRatio = 1
	}
	return vp
}

// Videos returns every video element in the page
func (s *Snapshot) Videos() []Video {
	return s.videos
}

// Screen returns the encoded viewport image shipped with the snapshot
func (s *Snapshot) Screen() []byte {
	return s.data.Screen
}

// QuerySelectorAll runs a CSS selector over the snapshot markup
func (s *Snapshot) QuerySelectorAll(selector string) ([]Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	nodes := sel.MatchAll(s.root)
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &snapshotElement{
			doc:    s,
			key:    n,
			node:   n,
			layout: s.nodeLayout(n),
		})
	}
	return elements, nil
}

func (s *Snapshot) nodeLayout(n *html.Node) models.NodeLayout {
	id := attr(n, models.NodeIDAttr)
	if id == "" {
		return models.NodeLayout{}
	}
	return s.data.Nodes[id]
}

func (s *Snapshot) videoLayout(v *models.VideoSnapshot) models.NodeLayout {
	layout := models.NodeLayout{}
	if v.NodeID != "" {
		layout = s.data.Nodes[v.NodeID]
	}
	layout.Rect = v.Rect
	return layout
}

func (s *Snapshot) inlineStyle(key any) InlineStyle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inline[key]
}

func (s *Snapshot) setInlineStyle(key any, style InlineStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if style == (InlineStyle{}) {
		delete(s.inline, key)
		return
	}
	s.inline[key] = style
}

type snapshotElement struct {
	doc    *Snapshot
	key    any
	node   *html.Node
	layout models.NodeLayout
}

func (e *snapshotElement) Rect() models.Rect {
	return e.layout.Rect
}

func (e *snapshotElement) ComputedStyle() models.ComputedStyle {
	style := e.layout.Style
	inline := e.doc.inlineStyle(e.key)
	if inline.Display != "" {
		style.Display = inline.Display
	}
	if inline.Visibility != "" {
		style.Visibility = inline.Visibility
	}
	if inline.Opacity != "" {
		style.Opacity = inline.Opacity
	}
	return style
}

func (e *snapshotElement) Text() string {
	if e.layout.Text != nil {
		return *e.layout.Text
	}
	if e.node == nil {
		return ""
	}
	var b strings.Builder
	textContent(e.node, &b)
	return b.String()
}

func (e *snapshotElement) ClassName() string {
	if e.node == nil {
		return ""
	}
	return attr(e.node, "class")
}

func (e *snapshotElement) InlineStyle() InlineStyle {
	return e.doc.inlineStyle(e.key)
}

func (e *snapshotElement) SetInlineStyle(style InlineStyle) {
	e.doc.setInlineStyle(e.key, style)
}

func (e *snapshotElement) Key() any {
	return e.key
}

type snapshotVideo struct {
	snapshotElement
	data *models.VideoSnapshot

	once  sync.Once
	frame image.Image
	err   error
}

func (v *snapshotVideo) VideoWidth() int               { return v.data.VideoWidth }
func (v *snapshotVideo) VideoHeight() int              { return v.data.VideoHeight }
func (v *snapshotVideo) Paused() bool                  { return v.data.Paused }
func (v *snapshotVideo) ReadyState() models.ReadyState { return v.data.ReadyState }
func (v *snapshotVideo) CurrentTime() float64          { return v.data.CurrentTime }
func (v *snapshotVideo) ClassName() string             { return "" }
func (v *snapshotVideo) Text() string                  { return "" }

func (v *snapshotVideo) TextTracks() []TextTrack {
	tracks := make([]TextTrack, 0, len(v.data.TextTracks))
	for _, t := range v.data.TextTracks {
		tracks = append(tracks, TextTrack{
			Kind:       t.Kind,
			Label:      t.Label,
			Language:   t.Language,
			Mode:       t.Mode,
			ActiveCues: append([]string(nil), t.ActiveCues...),
		})
	}
	return tracks
}

// DrawFrame paints the current frame onto dst. Protected videos paint solid
// black, which is what a normal read-back of a DRM surface yields.
func (v *snapshotVideo) DrawFrame(dst draw.Image) error {
	bounds := dst.Bounds()
	if v.data.Protected {
		draw.Draw(dst, bounds, image.Black, image.Point{}, draw.Src)
		return nil
	}

	v.once.Do(func() {
		if len(v.data.Frame) == 0 {
			v.err = errors.New("video has no decoded frame")
			return
		}
		v.frame, _, v.err = image.Decode(bytes.NewReader(v.data.Frame))
	})
	if v.err != nil {
		return fmt.Errorf("failed to decode video frame: %w", v.err)
	}

	src := v.frame.Bounds()
	if src.Dx() == bounds.Dx() && src.Dy() == bounds.Dy() {
		draw.Draw(dst, bounds, v.frame, src.Min, draw.Src)
		return nil
	}
	xdraw.CatmullRom.Scale(dst, bounds, v.frame, src, xdraw.Src, nil)
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node, b *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		return
	case n.Type == html.ElementNode && n.Data == "br":
		b.WriteByte('\n')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textContent(c, b)
	}
}
