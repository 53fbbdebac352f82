// Package uploader publishes assembled reels for the uploading stage.
//
// A storage backend stores the finished file under a name derived from the
// job ID and returns the reference recorded on the job. The local backend
// moves the reel into the configured output directory; the HTTP backend
// posts it to a Supabase-style object storage endpoint.
package uploader
