package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const maxFilenameLength = 100

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips characters that are not allowed in filenames,
// collapses whitespace and caps the length.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	runes := []rune(name)
	if len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
	}
	return name
}

// FormatTimestamp renders a media position as HH-MM-SS
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d-%02d-%02d", total/3600, (total%3600)/60, total%60)
}

// Filename builds the output filename for a capture:
// {title}_{timestamp}.{ext}, video_{timestamp}.{ext}, or a generic
// timestamped name when nothing is known about the video.
func Filename(meta *VideoMeta, format Format, now time.Time) string {
	ext := format.Extension()
	switch {
	case meta != nil && meta.Title != "" && meta.Timestamp != "":
		return fmt.Sprintf("%s_%s.%s", meta.Title, meta.Timestamp, ext)
	case meta != nil && meta.Timestamp != "":
		return fmt.Sprintf("video_%s.%s", meta.Timestamp, ext)
	default:
		return GenericFilename(format, now)
	}
}

// GenericFilename is used when no video metadata is available
func GenericFilename(format Format, now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("video-screenshot-%s.%s", stamp, format.Extension())
}
