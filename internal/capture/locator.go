package capture

import (
	"sort"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
)

// FindBestVideo picks the video to capture: only videos with known intrinsic
// dimensions qualify; playing beats paused, then larger intrinsic area wins.
// Returns nil when nothing qualifies. Callers look the video up again for
// every capture since players swap elements (ads, quality switches).
func FindBestVideo(doc dom.Document) dom.Video {
	if doc == nil {
		return nil
	}

	candidates := make([]dom.Video, 0)
	for _, v := range doc.Videos() {
		if v.VideoWidth() > 0 && v.VideoHeight() > 0 {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Paused() != b.Paused() {
			return !a.Paused()
		}
		return area(a) > area(b)
	})

	return candidates[0]
}

func area(v dom.Video) int {
	return v.VideoWidth() * v.VideoHeight()
}
