package models

// ReadyState mirrors HTMLMediaElement.readyState
type ReadyState int

// ReadyState constants
const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// VideoMeta is used to name the output file
type VideoMeta struct {
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PageSnapshot is the serialized state of a tab as shipped by the page-side
// shim: the document markup, per-node layout, the video elements with their
// current frames, and optionally what the viewport looked like on screen.
type PageSnapshot struct {
	TabID    string                `json:"tab_id"`
	Title    string                `json:"title"`
	HTML     string                `json:"html"`
	Viewport Viewport              `json:"viewport"`
	Nodes    map[string]NodeLayout `json:"nodes"`
	Videos   []VideoSnapshot       `json:"videos"`
	Screen   []byte                `json:"screen,omitempty"`
}

// NodeIDAttr is the attribute that ties markup nodes to their layout entry
const NodeIDAttr = "data-node-id"

// NodeLayout is the rendered geometry and computed style of one node
type NodeLayout struct {
	Rect  Rect          `json:"rect"`
	Style ComputedStyle `json:"style"`
	Text  *string       `json:"text,omitempty"`
}

// ComputedStyle holds the subset of computed CSS the pipeline reads
type ComputedStyle struct {
	Display         string  `json:"display,omitempty"`
	Visibility      string  `json:"visibility,omitempty"`
	Opacity         string  `json:"opacity,omitempty"`
	FontSize        float64 `json:"font_size,omitempty"`
	FontFamily      string  `json:"font_family,omitempty"`
	FontWeight      string  `json:"font_weight,omitempty"`
	Color           string  `json:"color,omitempty"`
	BackgroundColor string  `json:"background_color,omitempty"`
	TextAlign       string  `json:"text_align,omitempty"`
}

// VideoSnapshot is one <video> element. Frame is the current decoded frame
// as PNG or JPEG; Protected marks DRM output that reads back black.
type VideoSnapshot struct {
	NodeID      string              `json:"node_id,omitempty"`
	Rect        Rect                `json:"rect"`
	VideoWidth  int                 `json:"video_width"`
	VideoHeight int                 `json:"video_height"`
	Paused      bool                `json:"paused"`
	ReadyState  ReadyState          `json:"ready_state"`
	CurrentTime float64             `json:"current_time"`
	Frame       []byte              `json:"frame,omitempty"`
	Protected   bool                `json:"protected"`
	TextTracks  []TextTrackSnapshot `json:"text_tracks,omitempty"`
}

// TextTrackSnapshot is a text track and its currently active cues
type TextTrackSnapshot struct {
	Kind       string    `json:"kind"`
	Label      string    `json:"label,omitempty"`
	Language   string    `json:"language,omitempty"`
	Mode       TrackMode `json:"mode"`
	ActiveCues []string  `json:"active_cues,omitempty"`
}
