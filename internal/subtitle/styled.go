package subtitle

import (
	"image"
	"strings"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Layout of DOM-derived cues, anchored at the element's top edge
const (
	styledLineHeight  = 1.3
	styledPadding     = 8.0
	styledStrokeWidth = 2.0
)

type textAlign int

const (
	alignLeft textAlign = iota
	alignCenter
	alignRight
)

func parseAlign(value string) textAlign {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "center", "-webkit-center":
		return alignCenter
	case "right", "end", "-webkit-right":
		return alignRight
	default:
		return alignLeft
	}
}

// drawStyledCue renders a DOM-derived cue at its video-relative position.
// Lines stack downward from the element's top; blank lines only advance.
func (c *Compositor) drawStyledCue(surface *image.RGBA, cue models.SubtitleCue) error {
	style := cue.Style
	b := surface.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	size := style.FontSize
	if size <= 0 {
		size = defaultFontSize(height)
	}
	face, err := c.fonts.face(kindFor(style.FontFamily, style.FontWeight), size)
	if err != nil {
		return err
	}

	fill := parseColor(style.Color, defaultText)
	background := backgroundColor(style.BackgroundColor)
	align := parseAlign(style.TextAlign)

	x := float64(b.Min.X) + style.RelX*width
	y := float64(b.Min.Y) + style.RelY*height
	boxWidth := style.RelWidth * width
	lineHeight := size * styledLineHeight

	for _, raw := range strings.Split(cue.Text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			y += lineHeight
			continue
		}

		textWidth := measure(face, line)
		left := x
		switch align {
		case alignCenter:
			left = x + boxWidth/2 - textWidth/2
		case alignRight:
			left = x + boxWidth - textWidth
		}

		fillRect(surface, rectF{
			x: left - styledPadding,
			y: y - styledPadding/2,
			w: textWidth + styledPadding*2,
			h: size + styledPadding,
		}, background)

		outlinedString(surface, face, left, y+ascent(face), line, fill, styledStrokeWidth)

		y += lineHeight
	}
	return nil
}
