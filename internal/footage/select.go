package footage

import (
	"math"
	"sort"
	"strings"

	"reelforge/internal/queue"
	"reelforge/internal/services/pexels"
)

// clipFromVideo converts one provider result into a clip candidate. The
// second return is the download link for the chosen rendition. Videos with
// no usable rendition, too little footage, or the wrong orientation are
// rejected.
func clipFromVideo(video pexels.Video, minSeconds float64, orientation string) (queue.FootageClip, bool) {
	if video.Duration < minSeconds {
		return queue.FootageClip{}, false
	}
	file, ok := video.BestFile()
	if !ok || strings.TrimSpace(file.Link) == "" {
		return queue.FootageClip{}, false
	}
	width, height := file.Width, file.Height
	if width == 0 || height == 0 {
		width, height = video.Width, video.Height
	}
	switch orientation {
	case "landscape":
		if width <= height {
			return queue.FootageClip{}, false
		}
	default:
		if height <= width {
			return queue.FootageClip{}, false
		}
	}
	return queue.FootageClip{
		SourceID: pexels.SourceID(video.ID),
		URL:      file.Link,
		Width:    width,
		Height:   height,
		Seconds:  video.Duration,
	}, true
}

// rankClips orders candidates by score descending, then shorter duration
// first so assembly trims less. Order is otherwise stable.
func rankClips(clips []queue.FootageClip) {
	sort.SliceStable(clips, func(a, b int) bool {
		if clips[a].Score != clips[b].Score {
			return clips[a].Score > clips[b].Score
		}
		return clips[a].Seconds < clips[b].Seconds
	})
}

// clipBudget decides how many clips the reel needs: the target duration
// divided by the average usable seconds per candidate, where usable time is
// capped by the per-segment maximum. Clamped to maxClips and to what is
// actually available.
func clipBudget(clips []queue.FootageClip, targetSeconds, segmentMax float64, maxClips int) int {
	if len(clips) == 0 {
		return 0
	}
	usable := 0.0
	for _, clip := range clips {
		usable += math.Min(clip.Seconds, segmentMax)
	}
	avg := usable / float64(len(clips))
	needed := len(clips)
	if avg > 0 {
		needed = int(math.Ceil(targetSeconds / avg))
	}
	if needed < 1 {
		needed = 1
	}
	if maxClips > 0 && needed > maxClips {
		needed = maxClips
	}
	if needed > len(clips) {
		needed = len(clips)
	}
	return needed
}
