package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
)

// ControlSelectors match player chrome that must not appear in a viewport
// snapshot
var ControlSelectors = []string{
	// Netflix
	`[class*="PlayerControlsNeo"]`,
	`[class*="watch-video--bottom-controls"]`,
	".watch-video--bottom-controls-container",
	`[class*="ltr-"]>[class*="medium"]`,
	// YouTube
	".ytp-chrome-bottom",
	".ytp-chrome-top",
	".ytp-gradient-bottom",
	".ytp-gradient-top",
	// Generic
	`[class*="control-bar"]`,
	`[class*="controls-bar"]`,
	`[class*="player-controls"]`,
	`[class*="video-controls"]`,
	".vjs-control-bar",
	`[class*="cursor"]`,
	"#controller",
	// Video Speed Controller extension
	"vsc-controller",
	".vsc-controller",
}

// SubtitleSelectors match subtitle overlays, hidden only on request
var SubtitleSelectors = []string{
	".player-timedtext",
	".player-timedtext-text-container",
	".ytp-caption-window-container",
	".caption-window",
	".captions-text",
	`[class*="subtitle"]`,
	`[class*="caption"]`,
	`[class*="timedtext"]`,
}

// ErrMissingHandle is returned when a hide request carries no handle
var ErrMissingHandle = errors.New("hide handle is required")

var hiddenStyle = dom.InlineStyle{
	Display:    "none",
	Visibility: "hidden",
	Opacity:    "0",
	ZIndex:     "-10000",
}

// releasedTTL is how long a shown handle is remembered, so a hide request
// that arrives after its own restore does not take effect
const releasedTTL = time.Minute

type hiddenElement struct {
	element  dom.Element
	original dom.InlineStyle
	refs     int
}

// HideUI hides player chrome under handle, and subtitle overlays too when
// hideSubtitles is set. Repeating a handle is a no-op. An element hidden by
// several handles keeps its first-seen style until the last one is shown.
func (s *Service) HideUI(ctx context.Context, handle string, hideSubtitles bool) error {
	if handle == "" {
		return ErrMissingHandle
	}

	selectors := ControlSelectors
	if hideSubtitles {
		selectors = append(append([]string(nil), ControlSelectors...), SubtitleSelectors...)
	}

	s.hiddenMu.Lock()
	defer s.hiddenMu.Unlock()

	if _, ok := s.hidden[handle]; ok {
		return nil
	}
	if _, ok := s.released[handle]; ok {
		s.logger.Debugf("hide for restored handle %s ignored", handle)
		return nil
	}

	var keys []any
	seen := make(map[any]bool)
	for _, selector := range selectors {
		elements, err := s.doc.QuerySelectorAll(selector)
		if err != nil {
			s.logger.WithError(err).Debugf("skipping control selector %q", selector)
			continue
		}
		for _, el := range elements {
			key := el.Key()
			if seen[key] || (!hideSubtitles && isSubtitleElement(el)) {
				continue
			}
			seen[key] = true
			keys = append(keys, key)

			if state, ok := s.hiddenBy[key]; ok {
				state.refs++
				continue
			}
			s.hiddenBy[key] = &hiddenElement{element: el, original: el.InlineStyle(), refs: 1}
			el.SetInlineStyle(hiddenStyle)
		}
	}
	s.hidden[handle] = keys

	s.logger.Debugf("hid %d elements", len(keys))
	return nil
}

// ShowUI restores the elements hidden under handle. Unknown or already
// restored handles are ignored.
func (s *Service) ShowUI(ctx context.Context, handle string) error {
	s.hiddenMu.Lock()
	defer s.hiddenMu.Unlock()

	now := time.Now()
	for h, at := range s.released {
		if now.Sub(at) > releasedTTL {
			delete(s.released, h)
		}
	}
	s.released[handle] = now

	keys, ok := s.hidden[handle]
	if !ok {
		return nil
	}
	delete(s.hidden, handle)

	for _, key := range keys {
		state := s.hiddenBy[key]
		state.refs--
		if state.refs == 0 {
			state.element.SetInlineStyle(state.original)
			delete(s.hiddenBy, key)
		}
	}
	return nil
}

func isSubtitleElement(el dom.Element) bool {
	class := strings.ToLower(el.ClassName())
	return strings.Contains(class, "timedtext") ||
		strings.Contains(class, "caption") ||
		strings.Contains(class, "subtitle")
}
