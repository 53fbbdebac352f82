package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReel inserts a freshly submitted reel request. The job starts in the
// queued stage with status pending and is immediately eligible for intake.
func (s *Store) NewReel(ctx context.Context, prompt string, params ReelParams) (*Job, error) {
	ctx = ensureContext(ctx)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	paramsJSON, err := params.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx, `
INSERT INTO jobs (id, prompt, params_json, stage, status, attempt, created_at, updated_at, next_run_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, prompt, paramsJSON, StageQueued, StatusPending, now, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by id. Returns (nil, nil) when no row exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByFingerprint returns the most recent job carrying the given
// fingerprint, or (nil, nil) when none matches.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Job, error) {
	ctx = ensureContext(ctx)
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE fingerprint = ? ORDER BY created_at DESC LIMIT 1",
		fingerprint,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job by fingerprint: %w", err)
	}
	return job, nil
}

// Update persists every mutable column of the job and refreshes UpdatedAt.
// Lifecycle code must use the transition operations instead; Update exists
// for progress persistence and administrative edits.
func (s *Store) Update(ctx context.Context, job *Job) error {
	ctx = ensureContext(ctx)
	if job == nil || job.ID == "" {
		return errors.New("job is missing an id")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    prompt = ?,
    params_json = ?,
    fingerprint = ?,
    title = ?,
    stage = ?,
    status = ?,
    attempt = ?,
    last_error = ?,
    result_ref = ?,
    script_json = ?,
    clips_json = ?,
    plan_json = ?,
    audio_file = ?,
    assembled_file = ?,
    work_dir = ?,
    progress_stage = ?,
    progress_percent = ?,
    progress_message = ?,
    job_log_path = ?,
    cancel_requested = ?,
    updated_at = ?,
    next_run_at = ?,
    last_heartbeat = ?
WHERE id = ?`,
		job.Prompt,
		nullableString(job.ParamsJSON),
		nullableString(job.Fingerprint),
		nullableString(job.Title),
		job.Stage,
		job.Status,
		job.Attempt,
		nullableString(job.LastError),
		nullableString(job.ResultRef),
		nullableString(job.ScriptJSON),
		nullableString(job.ClipsJSON),
		nullableString(job.PlanJSON),
		nullableString(job.AudioFile),
		nullableString(job.AssembledFile),
		nullableString(job.WorkDir),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.JobLogPath),
		boolToInt(job.CancelRequested),
		now.Format(time.RFC3339Nano),
		job.NextRunAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	job.UpdatedAt = now
	return nil
}

// List returns jobs ordered by creation time, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobsByStage returns jobs currently in the given stage, oldest first.
func (s *Store) JobsByStage(ctx context.Context, stage Stage) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE stage = ? ORDER BY created_at",
		stage,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs by stage: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextForStages returns the oldest pending job in one of the given stages
// that is due to run. Jobs with a cancel request pending surface regardless
// of their scheduled time so the lane can finalize the cancellation.
// Returns (nil, nil) when nothing is eligible.
func (s *Store) NextForStages(ctx context.Context, stages ...Stage) (*Job, error) {
	ctx = ensureContext(ctx)
	if len(stages) == 0 {
		return nil, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args := make([]any, 0, len(stages)+2)
	args = append(args, StatusPending)
	for _, stage := range stages {
		args = append(args, stage)
	}
	args = append(args, now)

	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE status = ? AND stage IN ("+makePlaceholders(len(stages))+") AND (next_run_at <= ? OR cancel_requested = 1) ORDER BY created_at LIMIT 1",
		args...,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next job: %w", err)
	}
	return job, nil
}

// Remove deletes a job row outright.
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	if err := s.execWithoutResultRetry(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}
