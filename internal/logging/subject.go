package logging

import "strings"

// FormatSubject builds the lane/job/stage subject string used in console output.
// Job IDs are shortened to their first UUID group to keep lines scannable.
func FormatSubject(lane, jobID, stage string) string {
	lane = strings.TrimSpace(lane)
	jobID = ShortJobID(jobID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 3)
	if lane != "" {
		var formattedLane string
		if len(lane) > 1 {
			formattedLane = strings.ToUpper(lane[:1]) + strings.ToLower(lane[1:])
		} else {
			formattedLane = strings.ToUpper(lane)
		}
		parts = append(parts, formattedLane)
	}
	switch {
	case jobID != "" && stage != "":
		parts = append(parts, "Job "+jobID+" ("+stage+")")
	case jobID != "":
		parts = append(parts, "Job "+jobID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}

// ShortJobID trims a UUID job identifier to its leading group for display.
func ShortJobID(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if idx := strings.IndexByte(jobID, '-'); idx > 0 {
		return jobID[:idx]
	}
	if len(jobID) > 8 {
		return jobID[:8]
	}
	return jobID
}
