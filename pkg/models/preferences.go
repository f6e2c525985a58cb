package models

import "time"

// Preferences are the persisted user settings
type Preferences struct {
	IncludeSubtitles bool   `json:"include_subtitles" mapstructure:"includeSubtitles"`
	AutoDownload     bool   `json:"auto_download" mapstructure:"autoDownload"`
	Format           Format `json:"format" mapstructure:"format"`
}

// DefaultPreferences returns the install-time defaults
func DefaultPreferences() Preferences {
	return Preferences{
		IncludeSubtitles: true,
		AutoDownload:     true,
		Format:           FormatPNG,
	}
}

// CaptureOptions derives the per-capture options from the preferences
func (p Preferences) CaptureOptions() CaptureOptions {
	format := p.Format
	if format == "" {
		format = FormatPNG
	}
	return CaptureOptions{
		IncludeSubtitles: p.IncludeSubtitles,
		Format:           format,
	}
}

// Command is a keyboard shortcut or remote trigger delivered to the worker
type Command struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	TabID    string    `json:"tab_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Command names
const (
	CommandTakeScreenshot = "take-screenshot"
)
