package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// DefaultJPEGQuality is the fixed quality used for lossy output
const DefaultJPEGQuality = 95

// Encoder turns raster surfaces into transportable image payloads
type Encoder struct {
	jpegQuality int
}

// NewEncoder creates an encoder; quality <= 0 selects DefaultJPEGQuality
func NewEncoder(jpegQuality int) *Encoder {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Encoder{jpegQuality: jpegQuality}
}

// Encode serializes img in the requested format
func (e *Encoder) Encode(img image.Image, format models.Format) (*models.EncodedImage, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil surface", models.ErrEncodeFailed)
	}
	format, err := models.ParseFormat(string(format))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncodeFailed, err)
	}

	var buf bytes.Buffer
	switch format {
	case models.FormatPNG:
		err = png.Encode(&buf, img)
	case models.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncodeFailed, err)
	}

	b := img.Bounds()
	return &models.EncodedImage{
		Format:   format,
		MIMEType: format.MIMEType(),
		Data:     buf.Bytes(),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// Decode parses an encoded payload back into an RGBA surface
func Decode(enc *models.EncodedImage) (*image.RGBA, error) {
	if enc == nil || len(enc.Data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	img, _, err := image.Decode(bytes.NewReader(enc.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return toRGBA(img), nil
}

// DecodeConfig reads the dimensions of an encoded payload
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
