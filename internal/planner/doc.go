// Package planner turns selected clips and measured narration into an
// assembly plan.
//
// The audio_ready stage walks the clips in selection order and cuts in-clip
// ranges bounded by the configured segment window until the segments cover
// the narration, cycling through the clips when footage runs short.
// The plan is provenance: it is stored on the job and consumed verbatim by
// assembly.
package planner
