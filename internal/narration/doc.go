// Package narration turns an admitted prompt into spoken audio.
//
// The script_pending stage drafts a narration script sized to the target
// duration, renders it with the configured TTS engine, and measures the
// result. Audio outside the configured tolerance earns one redraft with an
// adjusted word budget before the stage reports a duration mismatch. Script
// and audio are produced under the asset cache keyed by the job fingerprint,
// so resubmitted prompts reuse finished narration.
package narration
