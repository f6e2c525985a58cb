package subtitle

import (
	"image/color"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

var (
	defaultBackground = color.NRGBA{A: 191} // rgba(0, 0, 0, 0.75)
	defaultText       = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	outline           = color.NRGBA{A: 255}
)

// parseColor parses a computed CSS colour, returning fallback when the value
// is empty or unparseable.
func parseColor(value string, fallback color.NRGBA) color.NRGBA {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	c, err := csscolorparser.Parse(value)
	if err != nil {
		return fallback
	}
	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// backgroundColor resolves an element's computed background, substituting the
// default translucent black for transparent backgrounds.
func backgroundColor(value string) color.NRGBA {
	c := parseColor(value, defaultBackground)
	if c.A == 0 {
		return defaultBackground
	}
	return c
}
