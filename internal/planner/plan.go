package planner

import (
	"errors"
	"fmt"
	"math"

	"reelforge/internal/queue"
)

// remainderEpsilon is the audio coverage slack in seconds. Anything closer
// than this counts as fully covered; it keeps float accumulation from
// emitting a final micro-segment.
const remainderEpsilon = 0.05

// buildPlan assigns in-clip time ranges walking the clips in selection
// order. Each segment takes at most segMax seconds; the final segment
// carries whatever remainder is left, even below segMin. When the clips
// cannot cover the audio in one pass the walk cycles, consuming fresh
// material from each clip before wrapping back to its start.
func buildPlan(clips []queue.FootageClip, audioFile string, audioSeconds, segMin, segMax float64) (queue.AssemblyPlan, error) {
	var empty queue.AssemblyPlan
	if audioSeconds <= 0 {
		return empty, errors.New("narration duration must be positive")
	}
	if segMin <= 0 || segMax < segMin {
		return empty, fmt.Errorf("segment window [%v, %v] is invalid", segMin, segMax)
	}

	usable := make([]queue.FootageClip, 0, len(clips))
	for _, clip := range clips {
		if clip.Seconds >= segMin {
			usable = append(usable, clip)
		}
	}
	if len(usable) == 0 {
		return empty, errors.New("no clip is long enough for the segment minimum")
	}

	maxSegments := int(math.Ceil(audioSeconds/segMin)) + len(usable) + 8
	consumed := make([]float64, len(usable))
	segments := make([]queue.PlanSegment, 0, maxSegments)
	remaining := audioSeconds
	for i := 0; remaining > remainderEpsilon; i++ {
		if len(segments) >= maxSegments {
			return empty, fmt.Errorf("plan exceeds %d segments for %.1fs of narration", maxSegments, audioSeconds)
		}
		idx := i % len(usable)
		clip := usable[idx]
		start := consumed[idx]
		if clip.Seconds-start < segMin {
			start = 0
		}
		take := math.Min(segMax, math.Min(clip.Seconds-start, remaining))
		segments = append(segments, queue.PlanSegment{Clip: clip, Start: start, End: start + take})
		consumed[idx] = start + take
		remaining -= take
	}
	return queue.AssemblyPlan{
		Segments:     segments,
		AudioFile:    audioFile,
		TotalSeconds: audioSeconds,
	}, nil
}
