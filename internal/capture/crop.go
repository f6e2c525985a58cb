package capture

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Crop cuts the bounds (scaled by their device pixel ratio) out of a
// viewport snapshot into a new surface of the scaled size. Pixel-aligned
// crops are copied verbatim; fractional ones are resampled.
func Crop(src image.Image, bounds models.CaptureBounds) (*image.RGBA, error) {
	if !bounds.Valid() {
		return nil, models.ErrNoBounds
	}

	dpr := bounds.Scale()
	sx, sy := bounds.X*dpr, bounds.Y*dpr
	sw, sh := bounds.Width*dpr, bounds.Height*dpr

	dw, dh := int(math.Round(sw)), int(math.Round(sh))
	if dw <= 0 || dh <= 0 {
		return nil, fmt.Errorf("%w: scaled size %dx%d", models.ErrNoBounds, dw, dh)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	origin := src.Bounds().Min

	if isWhole(sx) && isWhole(sy) && isWhole(sw) && isWhole(sh) {
		sp := image.Pt(origin.X+int(sx), origin.Y+int(sy))
		draw.Draw(dst, dst.Bounds(), src, sp, draw.Src)
		return dst, nil
	}

	// map the exact scaled rectangle onto dst; srcRect only bounds sampling
	x0, y0 := float64(origin.X)+sx, float64(origin.Y)+sy
	kx, ky := float64(dw)/sw, float64(dh)/sh
	m := f64.Aff3{
		kx, 0, -x0 * kx,
		0, ky, -y0 * ky,
	}
	srcRect := image.Rect(
		int(math.Floor(x0)),
		int(math.Floor(y0)),
		int(math.Ceil(x0+sw)),
		int(math.Ceil(y0+sh)),
	)
	xdraw.CatmullRom.Transform(dst, m, src, srcRect, xdraw.Src, nil)
	return dst, nil
}

func isWhole(v float64) bool {
	return v == math.Trunc(v)
}
