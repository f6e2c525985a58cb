package subtitle

import (
	"image"
	"math"
	"strings"
)

// Layout of native text-track cues, anchored at the bottom centre
const (
	trackFontScale    = 0.04
	minFontSize       = 16.0
	trackLineHeight   = 1.2
	trackPadding      = 10.0
	trackBottomMargin = 0.1
	trackMaxWidth     = 0.9
	trackStrokeWidth  = 3.0
)

// defaultFontSize is the cue size used when nothing better is known
func defaultFontSize(surfaceHeight float64) float64 {
	return math.Max(surfaceHeight*trackFontScale, minFontSize)
}

// drawTrackCue renders one native cue. Lines are laid out from the last one
// upward so the final line sits on the bottom margin.
func (c *Compositor) drawTrackCue(surface *image.RGBA, text string) error {
	b := surface.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())
	originX, originY := float64(b.Min.X), float64(b.Min.Y)

	size := defaultFontSize(height)
	lineHeight := size * trackLineHeight
	maxWidth := width * trackMaxWidth
	y := originY + height - height*trackBottomMargin

	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		face, err := c.fonts.face(fontSansBold, size)
		if err != nil {
			return err
		}
		textWidth := measure(face, line)
		if textWidth > maxWidth {
			face, err = c.fonts.face(fontSansBold, size*maxWidth/textWidth)
			if err != nil {
				return err
			}
			textWidth = math.Min(measure(face, line), maxWidth)
		}

		left := originX + (width-textWidth)/2
		fillRect(surface, rectF{
			x: left - trackPadding,
			y: y - size - trackPadding/2,
			w: textWidth + trackPadding*2,
			h: size + trackPadding,
		}, defaultBackground)

		// y is the bottom of the line box; glyphs sit on the baseline above
		// the descent
		outlinedString(surface, face, left, y-descent(face), line, defaultText, trackStrokeWidth)

		y -= lineHeight
	}
	return nil
}
