// Package assembly renders the final reel with ffmpeg.
//
// The assembling stage cuts each plan segment out of its source clip,
// normalizes it to the configured portrait geometry, concatenates the
// segments with the concat demuxer, and muxes the narration track. Output is
// written to a temp file and renamed, then verified against the plan
// duration with ffprobe. A segment render failure identifies the offending
// clip so its cache entry can be dropped and refetched on retry.
package assembly
