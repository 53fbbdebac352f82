package api

import (
	"encoding/json"
	"slices"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/stage"
	"reelforge/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Reel {
	if job == nil {
		return Reel{}
	}

	dto := Reel{
		ID:      job.ID,
		Title:   job.Title,
		Prompt:  job.Prompt,
		Stage:   string(job.Stage),
		Status:  string(job.Status),
		Lane:    string(queue.LaneForJob(job)),
		Attempt: job.Attempt,
		Progress: Progress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		Error:           job.LastError,
		ResultRef:       job.ResultRef,
		AudioFile:       job.AudioFile,
		AssembledFile:   job.AssembledFile,
		WorkDir:         job.WorkDir,
		JobLogPath:      job.JobLogPath,
		CancelRequested: job.CancelRequested,
	}
	if job.Status == queue.StatusSucceeded {
		dto.Progress.Stage = "Succeeded"
		dto.Progress.Percent = 100
	}
	if dto.Progress.Stage == "" {
		dto.Progress.Stage = displayStatus(job.Status)
	}
	if raw := job.ParamsJSON; raw != "" {
		dto.Params = json.RawMessage(raw)
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

var statusTitler = cases.Title(language.Und)

func displayStatus(status queue.Status) string {
	if status == "" {
		return ""
	}
	return statusTitler.String(string(status))
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Reel {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Reel, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastReel = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromLogEvents converts hub log events into their transport form.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		details := make([]DetailField, 0, len(evt.Details))
		for _, detail := range evt.Details {
			details = append(details, DetailField{Label: detail.Label, Value: detail.Value})
		}
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: FormatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			JobID:     evt.JobID,
			Fields:    evt.Fields,
			Details:   details,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
