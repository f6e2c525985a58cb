package models

// SubtitleCue is one piece of subtitle text read from the page at the moment
// of capture. Native text-track cues carry no Style and are laid out at the
// bottom centre of the frame; DOM-derived cues carry their own geometry.
type SubtitleCue struct {
	Text   string         `json:"text"`
	Source string         `json:"source"`
	Style  *SubtitleStyle `json:"style,omitempty"`
}

// SubtitleStyle positions a DOM-derived cue on the surface. X, Y and Width
// are relative to the on-screen video (0..1 inside the frame); FontSize is
// already scaled to surface pixels.
type SubtitleStyle struct {
	RelX            float64 `json:"rel_x"`
	RelY            float64 `json:"rel_y"`
	RelWidth        float64 `json:"rel_width"`
	FontSize        float64 `json:"font_size"`
	FontFamily      string  `json:"font_family"`
	FontWeight      string  `json:"font_weight,omitempty"`
	Color           string  `json:"color"`
	BackgroundColor string  `json:"background_color"`
	TextAlign       string  `json:"text_align"`
}

// SubtitleSource constants
const (
	SubtitleSourceTrack = "track"
	SubtitleSourceDOM   = "dom"
)

// TrackMode mirrors the HTML text track modes
type TrackMode string

// TrackMode constants
const (
	TrackModeDisabled TrackMode = "disabled"
	TrackModeHidden   TrackMode = "hidden"
	TrackModeShowing  TrackMode = "showing"
)
