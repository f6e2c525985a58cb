package subtitle

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type rectF struct {
	x, y, w, h float64
}

// fillRect alpha-blends c over the pixels covered by r
func fillRect(dst draw.Image, r rectF, c color.NRGBA) {
	rect := image.Rect(
		int(math.Floor(r.x)), int(math.Floor(r.y)),
		int(math.Ceil(r.x+r.w)), int(math.Ceil(r.y+r.h)),
	).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// drawString draws s with its left edge at x and its baseline at y
func drawString(dst draw.Image, face font.Face, x, y float64, s string, c color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))},
	}
	d.DrawString(s)
}

// strokeString outlines s by drawing it at every whole-pixel offset within
// half the stroke width.
func strokeString(dst draw.Image, face font.Face, x, y float64, s string, c color.NRGBA, width float64) {
	r := width / 2
	reach := int(math.Ceil(r))
	limit := r*r + 0.5
	for dy := -reach; dy <= reach; dy++ {
		for dx := -reach; dx <= reach; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if float64(dx*dx+dy*dy) > limit {
				continue
			}
			drawString(dst, face, x+float64(dx), y+float64(dy), s, c)
		}
	}
}

// outlinedString draws s with a stroke then a fill, like a canvas
// strokeText/fillText pair.
func outlinedString(dst draw.Image, face font.Face, x, y float64, s string, fill color.NRGBA, strokeWidth float64) {
	strokeString(dst, face, x, y, s, outline, strokeWidth)
	drawString(dst, face, x, y, s, fill)
}

func ascent(face font.Face) float64 {
	return toFloat(face.Metrics().Ascent)
}

func descent(face font.Face) float64 {
	return toFloat(face.Metrics().Descent)
}
