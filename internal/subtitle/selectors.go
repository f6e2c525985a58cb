package subtitle

// DefaultSelectors match subtitle overlays rendered by common players
var DefaultSelectors = []string{
	// YouTube
	".ytp-caption-segment",
	".caption-window",
	".captions-text",
	// Netflix
	".player-timedtext-text-container",
	".player-timedtext span",
	// Vimeo
	".vp-captions",
	// video.js and generic players
	".vjs-text-track-display",
	`[class*="subtitle"]`,
	`[class*="caption"]`,
	`[class*="captions"]`,
	// Prime Video
	".atvwebplayersdk-captions-text",
	// Disney+
	".btm-media-overlays-container",
	// HBO Max
	`[class*="Subtitle"]`,
}
