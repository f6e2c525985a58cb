// Package dom is the read-side view of a browser page used by the page
// context: video elements, CSS-selectable elements with their rendered
// geometry and computed style, and inline style overrides used to hide
// player chrome.
package dom

import (
	"image/draw"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Document is a live view of one page
type Document interface {
	Title() string
	Viewport() models.Viewport
	Videos() []Video
	// QuerySelectorAll returns the elements matching selector in document
	// order, or an error for selectors that do not parse.
	QuerySelectorAll(selector string) ([]Element, error)
}

// Element is a rendered DOM element
type Element interface {
	Rect() models.Rect
	ComputedStyle() models.ComputedStyle
	// Text is the rendered text, lines separated by "\n"
	Text() string
	ClassName() string
	InlineStyle() InlineStyle
	SetInlineStyle(InlineStyle)
	// Key identifies the underlying node; elements returned by separate
	// queries for the same node share it
	Key() any
}

// InlineStyle is the writable subset of an element's inline style. Empty
// values mean "not set", falling back to the computed style.
type InlineStyle struct {
	Display    string
	Visibility string
	Opacity    string
	ZIndex     string
}

// Video is a <video> element
type Video interface {
	Element
	VideoWidth() int
	VideoHeight() int
	Paused() bool
	ReadyState() models.ReadyState
	CurrentTime() float64
	TextTracks() []TextTrack
	// DrawFrame paints the current frame scaled onto dst's bounds
	DrawFrame(dst draw.Image) error
}

// TextTrack is a media text track with its currently active cues
type TextTrack struct {
	Kind       string
	Label      string
	Language   string
	Mode       models.TrackMode
	ActiveCues []string
}

// IsVisible reports whether el is rendered: not display:none, not hidden,
// not fully transparent, and with a non-empty box.
func IsVisible(el Element) bool {
	if el == nil {
		return false
	}
	style := el.ComputedStyle()
	if style.Display == "none" || style.Visibility == "hidden" || isZeroOpacity(style.Opacity) {
		return false
	}
	return !el.Rect().Empty()
}

func isZeroOpacity(v string) bool {
	switch v {
	case "0", "0.0", "0.00":
		return true
	}
	return false
}
