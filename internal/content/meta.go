package content

import (
	"regexp"
	"strings"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// TitleSelectors locate the playing title in player UIs, in priority order
var TitleSelectors = []string{
	// Netflix
	`[class*="video-title"] h4`,
	`[class*="video-title"] span`,
	`[data-uia="video-title"]`,
	".watch-video--evidence-title",
	`h4[class*="previewModal--player-titleTreatment"]`,
	".title-logo",
	`[class*="ellipsize-text"]`,
	// YouTube
	"h1.ytd-video-primary-info-renderer",
	"h1.ytd-watch-metadata yt-formatted-string",
}

const fallbackTitle = "video"

var titleCleanups = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*Watch\s+`),
	regexp.MustCompile(`(?i)\s*[-|–—]\s*Netflix.*$`),
	regexp.MustCompile(`(?i)\s*[-|–—]\s*YouTube.*$`),
	regexp.MustCompile(`(?i)\s*[-|–—]\s*Prime Video.*$`),
	regexp.MustCompile(`(?i)\s*[-|–—]\s*Disney\+.*$`),
	regexp.MustCompile(`(?i)\s*[-|–—]\s*HBO.*$`),
}

// VideoTitle finds a filename-safe title for the page: a player title
// element, else the cleaned document title, else "video".
func VideoTitle(doc dom.Document) string {
	for _, selector := range TitleSelectors {
		elements, err := doc.QuerySelectorAll(selector)
		if err != nil || len(elements) == 0 {
			continue
		}
		if text := strings.TrimSpace(elements[0].Text()); text != "" {
			if title := models.SanitizeFilename(text); title != "" {
				return title
			}
		}
	}

	if title := CleanDocumentTitle(doc.Title()); title != "" {
		return title
	}
	return fallbackTitle
}

// CleanDocumentTitle strips streaming-site decoration from a document title.
// A title that is only the site name yields "".
func CleanDocumentTitle(title string) string {
	for _, re := range titleCleanups {
		title = re.ReplaceAllString(title, "")
	}
	title = strings.TrimSpace(title)
	if title == "" || title == "Netflix" {
		return ""
	}
	return models.SanitizeFilename(title)
}
