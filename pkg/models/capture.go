package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format is the encoding requested for a captured frame
type Format string

// Format constants
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts the wire names and the lossless/lossy aliases
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png", "lossless":
		return FormatPNG, nil
	case "jpeg", "jpg", "lossy":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// Normalize maps aliases onto their wire name; unknown values are returned
// unchanged so the encoder can reject them
func (f Format) Normalize() Format {
	if parsed, err := ParseFormat(string(f)); err == nil {
		return parsed
	}
	return f
}

// UnmarshalJSON accepts every name ParseFormat does
func (f *Format) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Format(s).Normalize()
	return nil
}

// Lossless reports whether the format preserves pixels exactly
func (f Format) Lossless() bool {
	return f.Normalize() == FormatPNG
}

// MIMEType returns the content type for the format
func (f Format) MIMEType() string {
	if f.Normalize() == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the filename extension for the format
func (f Format) Extension() string {
	if f.Normalize() == FormatJPEG {
		return "jpeg"
	}
	return "png"
}

// CaptureOptions controls a single capture
type CaptureOptions struct {
	IncludeSubtitles bool   `json:"include_subtitles"`
	Format           Format `json:"format"`
}

// EncodedImage is a self-contained encoded image payload
type EncodedImage struct {
	Format   Format `json:"format"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// DataURL renders the image as a data: URI
func (e *EncodedImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MIMEType, base64.StdEncoding.EncodeToString(e.Data))
}

// CaptureResult is the outcome of a frame capture. WasBlack means the frame
// read back as solid black and the caller must use the fallback capturer;
// Image is nil in that case.
type CaptureResult struct {
	Image    *EncodedImage `json:"image,omitempty"`
	WasBlack bool          `json:"was_black"`
}

// Capture is a finished screenshot as recorded in history
type Capture struct {
	ID               string    `json:"id" db:"id"`
	TabID            string    `json:"tab_id" db:"tab_id"`
	Filename         string    `json:"filename" db:"filename"`
	Format           Format    `json:"format" db:"format"`
	MIMEType         string    `json:"mime_type" db:"mime_type"`
	Width            int       `json:"width" db:"width"`
	Height           int       `json:"height" db:"height"`
	Size             int64     `json:"size" db:"size"`
	Source           string    `json:"source" db:"source"`
	IncludeSubtitles bool      `json:"include_subtitles" db:"include_subtitles"`
	Title            string    `json:"title,omitempty" db:"title"`
	Timestamp        string    `json:"timestamp,omitempty" db:"timestamp"`
	ObjectKey        string    `json:"object_key,omitempty" db:"object_key"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`

	Data []byte `json:"-" db:"-"`
}

// CaptureSource constants
const (
	CaptureSourceDirect   = "direct"
	CaptureSourceFallback = "fallback"
)
