package background

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// Screen produces what a tab currently shows on screen
type Screen interface {
	Grab(ctx context.Context, tabID string) (image.Image, error)
}

// DisplayScreen grabs a physical display. The tab is assumed to fill it, as
// with a fullscreen player.
type DisplayScreen struct {
	Display int
}

// Grab captures the whole display
func (d DisplayScreen) Grab(ctx context.Context, tabID string) (image.Image, error) {
	if n := screenshot.NumActiveDisplays(); d.Display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", d.Display, n)
	}

	bounds := screenshot.GetDisplayBounds(d.Display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}

// StaticScreen serves the last viewport image each tab pushed
type StaticScreen struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

// NewStaticScreen creates an empty static screen
func NewStaticScreen() *StaticScreen {
	return &StaticScreen{frames: make(map[string][]byte)}
}

// Set stores an encoded viewport image for tabID; nil clears it
func (s *StaticScreen) Set(tabID string, encoded []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(encoded) == 0 {
		delete(s.frames, tabID)
		return
	}
	s.frames[tabID] = append([]byte(nil), encoded...)
}

// Grab decodes the stored viewport image
func (s *StaticScreen) Grab(ctx context.Context, tabID string) (image.Image, error) {
	s.mu.RLock()
	data, ok := s.frames[tabID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.New("no viewport image for tab")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode viewport image: %w", err)
	}
	return img, nil
}
