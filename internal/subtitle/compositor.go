// Package subtitle burns the subtitles visible at capture time into a frame.
// Native text-track cues get a fixed bottom-centred layout; DOM overlays keep
// their own position and style, mapped from CSS pixels to frame pixels.
package subtitle

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/internal/tracing"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Overlays whose top-left corner lies further than this outside the video,
// as a fraction of its size, belong to page chrome and are not drawn.
const boundsTolerance = 0.1

// Compositor draws subtitle cues onto captured surfaces
type Compositor struct {
	doc       dom.Document
	selectors []string
	fonts     *fonts
	logger    *logging.Logger

	mu sync.Mutex
}

// NewCompositor creates a compositor reading DOM overlays from doc. A nil doc
// limits it to native text tracks.
func NewCompositor(doc dom.Document, logger *logging.Logger) *Compositor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Compositor{
		doc:       doc,
		selectors: DefaultSelectors,
		fonts:     newFonts(),
		logger:    logger.WithComponent("subtitle"),
	}
}

// WithSelectors replaces the overlay selector list
func (c *Compositor) WithSelectors(selectors []string) *Compositor {
	c.selectors = selectors
	return c
}

// Composite draws every visible cue onto surface. Failures are logged and
// skipped per cue; the surface is always left usable.
func (c *Compositor) Composite(ctx context.Context, surface *image.RGBA, video dom.Video) {
	span, _ := tracing.StartSpan(ctx, "subtitle.composite")
	defer tracing.FinishSpan(span)

	if surface == nil || video == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b := surface.Bounds()
	cues := append(TrackCues(video), c.OverlayCues(video, b.Dx(), b.Dy())...)

	drawn := map[string]int{}
	for _, cue := range cues {
		if err := c.drawCue(surface, cue); err != nil {
			c.logger.WithError(err).Debugf("skipping %s cue", cue.Source)
			continue
		}
		drawn[cue.Source]++
	}

	for source, n := range drawn {
		metrics.RecordSubtitleCues(source, n)
	}
	tracing.SetTag(span, "cues", len(cues))
}

func (c *Compositor) drawCue(surface *image.RGBA, cue models.SubtitleCue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cue rendering panicked: %v", r)
		}
	}()

	if cue.Style == nil {
		return c.drawTrackCue(surface, cue.Text)
	}
	return c.drawStyledCue(surface, cue)
}

// TrackCues returns the active cues of every showing text track
func TrackCues(video dom.Video) []models.SubtitleCue {
	var cues []models.SubtitleCue
	for _, track := range video.TextTracks() {
		if track.Mode != models.TrackModeShowing {
			continue
		}
		for _, text := range track.ActiveCues {
			if strings.TrimSpace(text) == "" {
				continue
			}
			cues = append(cues, models.SubtitleCue{Text: text, Source: models.SubtitleSourceTrack})
		}
	}
	return cues
}

// OverlayCues reads visible subtitle overlays around video and positions them
// for a surface of the given size. Selectors that fail to parse and elements
// that fail to read are skipped.
func (c *Compositor) OverlayCues(video dom.Video, surfaceWidth, surfaceHeight int) []models.SubtitleCue {
	if c.doc == nil {
		return nil
	}

	videoRect := video.Rect()
	if videoRect.Width <= 0 || videoRect.Height <= 0 {
		return nil
	}

	var cues []models.SubtitleCue
	seen := make(map[string]bool)
	for _, selector := range c.selectors {
		elements, err := c.doc.QuerySelectorAll(selector)
		if err != nil {
			c.logger.WithError(err).Debugf("skipping subtitle selector %q", selector)
			continue
		}

		for _, el := range elements {
			cue, ok, err := overlayCue(el, videoRect, float64(surfaceWidth))
			if err != nil {
				c.logger.WithError(err).Debug("skipping subtitle element")
				continue
			}
			if !ok {
				continue
			}

			// nested matches of the same box would otherwise draw twice
			key := fmt.Sprintf("%v|%s", el.Rect(), cue.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			cues = append(cues, cue)
		}
	}
	return cues
}

func overlayCue(el dom.Element, videoRect models.Rect, surfaceWidth float64) (cue models.SubtitleCue, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading subtitle element panicked: %v", r)
		}
	}()

	if !dom.IsVisible(el) {
		return cue, false, nil
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		return cue, false, nil
	}

	rect := el.Rect()
	relX := (rect.X - videoRect.X) / videoRect.Width
	relY := (rect.Y - videoRect.Y) / videoRect.Height
	if !withinVideo(relX) || !withinVideo(relY) {
		return cue, false, nil
	}

	style := el.ComputedStyle()
	return models.SubtitleCue{
		Text:   text,
		Source: models.SubtitleSourceDOM,
		Style: &models.SubtitleStyle{
			RelX:            relX,
			RelY:            relY,
			RelWidth:        rect.Width / videoRect.Width,
			FontSize:        style.FontSize * surfaceWidth / videoRect.Width,
			FontFamily:      style.FontFamily,
			FontWeight:      style.FontWeight,
			Color:           style.Color,
			BackgroundColor: style.BackgroundColor,
			TextAlign:       style.TextAlign,
		},
	}, true, nil
}

func withinVideo(rel float64) bool {
	return rel >= -boundsTolerance && rel <= 1+boundsTolerance
}
