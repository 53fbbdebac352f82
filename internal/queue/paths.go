package queue

import (
	"path/filepath"
	"strings"

	"reelforge/internal/textutil"
)

// StagingRoot returns the per-job working directory rooted at base. The job
// id keys the directory so redelivered stages reuse their workspace while
// concurrent jobs for the same prompt never collide.
func (j Job) StagingRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, "job-"+sanitizeSegment(j.ID))
}

func sanitizeSegment(value string) string {
	value = textutil.SanitizeFileName(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.Trim(value, "-_")
	if value == "" {
		return "job"
	}
	return value
}
