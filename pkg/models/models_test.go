package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"lossless", FormatPNG, false},
		{"", FormatPNG, false},
		{"JPEG", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"lossy", FormatJPEG, false},
		{"webp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatProperties(t *testing.T) {
	assert.True(t, FormatPNG.Lossless())
	assert.False(t, FormatJPEG.Lossless())
	assert.Equal(t, "image/png", FormatPNG.MIMEType())
	assert.Equal(t, "image/jpeg", FormatJPEG.MIMEType())
	assert.Equal(t, "jpeg", FormatJPEG.Extension())

	assert.True(t, Format("lossless").Lossless())
	assert.False(t, Format("lossy").Lossless())
	assert.False(t, Format("webp").Lossless())
	assert.Equal(t, "image/jpeg", Format("lossy").MIMEType())
	assert.Equal(t, "png", Format("lossless").Extension())
}

func TestFormatUnmarshalAliases(t *testing.T) {
	var opts CaptureOptions
	require.NoError(t, json.Unmarshal([]byte(`{"format":"lossy"}`), &opts))
	assert.Equal(t, FormatJPEG, opts.Format)

	require.NoError(t, json.Unmarshal([]byte(`{"format":"LOSSLESS"}`), &opts))
	assert.Equal(t, FormatPNG, opts.Format)

	// unknown names survive decoding so the encoder can reject them
	require.NoError(t, json.Unmarshal([]byte(`{"format":"webp"}`), &opts))
	assert.Equal(t, Format("webp"), opts.Format)

	assert.Error(t, json.Unmarshal([]byte(`{"format":7}`), &opts))
}

func TestEncodedImageDataURL(t *testing.T) {
	img := &EncodedImage{Format: FormatPNG, MIMEType: "image/png", Data: []byte{1, 2, 3}}
	assert.Equal(t, "data:image/png;base64,AQID", img.DataURL())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Episode 1 Pilot", SanitizeFilename(`  Episode  1: "Pilot"?  `))
	assert.Equal(t, "ab", SanitizeFilename(`a<>/\|*b`))

	long := strings.Repeat("x", 150)
	assert.Len(t, SanitizeFilename(long), 100)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00-00-00", FormatTimestamp(0))
	assert.Equal(t, "00-01-05", FormatTimestamp(65.9))
	assert.Equal(t, "01-02-03", FormatTimestamp(3723))
	assert.Equal(t, "00-00-00", FormatTimestamp(-4))
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 20, 30, 123000000, time.UTC)

	assert.Equal(t, "Show_00-10-00.png",
		Filename(&VideoMeta{Title: "Show", Timestamp: "00-10-00"}, FormatPNG, now))
	assert.Equal(t, "video_00-10-00.jpeg",
		Filename(&VideoMeta{Timestamp: "00-10-00"}, FormatJPEG, now))
	assert.Equal(t, "video-screenshot-2024-03-05T10-20-30-123Z.png",
		Filename(nil, FormatPNG, now))
}

func TestErrorCodeRoundTrip(t *testing.T) {
	sentinels := []error{ErrNoVideo, ErrNotReady, ErrBlackFrame, ErrNoBounds, ErrCaptureDenied, ErrEncodeFailed}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("capture step: %w", sentinel)
			code := ErrorCode(wrapped)
			assert.NotEqual(t, CodeInternal, code)

			rebuilt := ErrorFromCode(code, wrapped.Error())
			assert.True(t, errors.Is(rebuilt, sentinel))
			assert.Equal(t, wrapped.Error(), rebuilt.Error())
		})
	}

	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
	assert.EqualError(t, ErrorFromCode(CodeInternal, "boom"), "boom")
}

func TestPreferencesDefaults(t *testing.T) {
	prefs := DefaultPreferences()
	assert.True(t, prefs.IncludeSubtitles)
	assert.True(t, prefs.AutoDownload)
	assert.Equal(t, FormatPNG, prefs.Format)

	opts := Preferences{IncludeSubtitles: false}.CaptureOptions()
	assert.Equal(t, FormatPNG, opts.Format)
	assert.False(t, opts.IncludeSubtitles)
}

func TestPageSnapshotJSON(t *testing.T) {
	text := "hello"
	snap := PageSnapshot{
		TabID: "tab-1",
		Nodes: map[string]NodeLayout{"n1": {Rect: Rect{Width: 10, Height: 5}, Text: &text}},
		Videos: []VideoSnapshot{{
			VideoWidth: 640, VideoHeight: 360, Frame: []byte{0x89, 'P', 'N', 'G'},
			TextTracks: []TextTrackSnapshot{{Mode: TrackModeShowing, ActiveCues: []string{"hi"}}},
		}},
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded PageSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, snap.Videos[0].Frame, decoded.Videos[0].Frame)
	assert.Equal(t, "hello", *decoded.Nodes["n1"].Text)
	assert.Equal(t, TrackModeShowing, decoded.Videos[0].TextTracks[0].Mode)
}
