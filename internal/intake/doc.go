// Package intake admits freshly submitted reel requests into the pipeline.
//
// The queued stage validates the prompt, freezes generation parameters with
// configured defaults, fingerprints the request for asset cache reuse, derives
// the display title, and provisions the per-job working directory. Later
// stages rely on every one of these fields being populated.
package intake
