// Package tts shells out to the configured text-to-speech engine to render
// narration audio.
//
// The engine command is a template with {text_file}, {voice}, and {output}
// placeholders substituted per invocation. The client validates that the
// engine produced a non-empty file and, when a duration probe is supplied,
// reports the rendered length so callers can check pacing.
package tts
