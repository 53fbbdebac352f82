package api

import (
	"encoding/json"

	"reelforge/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Reel describes a queue job in a transport-friendly format.
type Reel struct {
	ID              string          `json:"id"`
	Title           string          `json:"title,omitempty"`
	Prompt          string          `json:"prompt"`
	Stage           string          `json:"stage"`
	Status          string          `json:"status"`
	Lane            string          `json:"lane"`
	Attempt         int             `json:"attempt"`
	Progress        Progress        `json:"progress"`
	Error           string          `json:"error,omitempty"`
	ResultRef       string          `json:"result_ref,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
	AudioFile       string          `json:"audio_file,omitempty"`
	AssembledFile   string          `json:"assembled_file,omitempty"`
	WorkDir         string          `json:"work_dir,omitempty"`
	JobLogPath      string          `json:"job_log_path,omitempty"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

// Progress captures stage progress information for a reel.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// SubmitRequest is the payload for creating a new reel job.
type SubmitRequest struct {
	Prompt string           `json:"prompt"`
	Params queue.ReelParams `json:"params"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	LastReel    *Reel          `json:"last_reel,omitempty"`
	StageHealth []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of reels for API responses.
type QueueListResponse struct {
	Reels []Reel `json:"reels"`
}

// ClearedResponse reports how many rows a queue maintenance call removed.
type ClearedResponse struct {
	Removed int64 `json:"removed"`
}

// RetryRequest names the failed jobs to requeue; empty means all of them.
type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// RetryResponse reports how many jobs a retry call requeued.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// LogEvent is the transport form of a streamed log record.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	JobID     string            `json:"job_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogStreamResponse carries a page of log events plus the follow cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
