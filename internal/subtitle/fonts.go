package subtitle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type fontKind int

const (
	fontSans fontKind = iota
	fontSansBold
	fontMono
	fontMonoBold
)

var fontData = map[fontKind][]byte{
	fontSans:     goregular.TTF,
	fontSansBold: gobold.TTF,
	fontMono:     gomono.TTF,
	fontMonoBold: gomonobold.TTF,
}

// maxFaces bounds the sized faces kept per compositor
const maxFaces = 64

type faceKey struct {
	kind fontKind
	size float64
}

// fonts caches parsed fonts and sized faces. Faces are not safe for
// concurrent use; the compositor serializes access.
type fonts struct {
	mu     sync.Mutex
	parsed map[fontKind]*opentype.Font
	faces  *lru.Cache[faceKey, font.Face]
}

func newFonts() *fonts {
	faces, err := lru.New[faceKey, font.Face](maxFaces)
	if err != nil {
		panic(err)
	}
	return &fonts{
		parsed: make(map[fontKind]*opentype.Font),
		faces:  faces,
	}
}

func (f *fonts) face(kind fontKind, size float64) (font.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// quarter-pixel buckets keep the cache small across capture sizes
	key := faceKey{kind: kind, size: math.Round(size*4) / 4}
	if face, ok := f.faces.Get(key); ok {
		return face, nil
	}

	parsed, ok := f.parsed[kind]
	if !ok {
		var err error
		parsed, err = opentype.Parse(fontData[kind])
		if err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		f.parsed[kind] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    key.size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	f.faces.Add(key, face)
	return face, nil
}

// kindFor maps a CSS font-family list and font-weight onto a Go font
func kindFor(family, weight string) fontKind {
	mono := false
	lower := strings.ToLower(family)
	for _, hint := range []string{"mono", "courier", "consolas", "menlo"} {
		if strings.Contains(lower, hint) {
			mono = true
			break
		}
	}

	bold := isBold(weight)
	switch {
	case mono && bold:
		return fontMonoBold
	case mono:
		return fontMono
	case bold:
		return fontSansBold
	default:
		return fontSans
	}
}

func isBold(weight string) bool {
	weight = strings.ToLower(strings.TrimSpace(weight))
	switch weight {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func measure(face font.Face, s string) float64 {
	return toFloat(font.MeasureString(face, s))
}
