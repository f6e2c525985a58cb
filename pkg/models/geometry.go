package models

// Rect is a rectangle in CSS pixels, viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Left returns the left edge of the rectangle
func (r Rect) Left() float64 { return r.X }

// Top returns the top edge of the rectangle
func (r Rect) Top() float64 { return r.Y }

// Right returns the right edge of the rectangle
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the bottom edge of the rectangle
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Viewport describes the visible area of a tab
type Viewport struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

// CaptureBounds is the visible content area of a video (letterbox bars
// excluded) in viewport coordinates, plus the device pixel ratio needed to
// map it onto a viewport snapshot.
type CaptureBounds struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

// Scale returns the device pixel ratio, defaulting to 1
func (b CaptureBounds) Scale() float64 {
	if b.DevicePixelRatio <= 0 {
		return 1
	}
	return b.DevicePixelRatio
}

// Valid reports whether the bounds describe a non-empty area
func (b CaptureBounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}
