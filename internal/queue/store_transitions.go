package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimForStage attempts to take ownership of a pending job for one stage
// attempt. The claim succeeds only when the job is still pending in the
// expected stage, is due to run, and has no cancel request; the attempt
// counter increments and the heartbeat starts on success. Returns the
// refreshed job, or (nil, nil) when the claim was lost to another worker.
func (s *Store) ClaimForStage(ctx context.Context, id string, stage Stage) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    attempt = attempt + 1,
    last_heartbeat = ?,
    updated_at = ?
WHERE id = ? AND stage = ? AND status = ? AND cancel_requested = 0 AND next_run_at <= ?`,
		StatusRunning, now, now,
		id, stage, StatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job rows: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// AdvanceStage records a successful stage attempt and moves the job to the
// next stage with a fresh attempt budget. Stage outputs accumulated on the
// job (artifacts, title, work dir, progress) persist in the same update. The
// final edge into the succeeded stage also flips the status to succeeded and
// requires a result reference. Returns false when the job was reclaimed or
// cancelled underneath the worker; the caller discards its result.
func (s *Store) AdvanceStage(ctx context.Context, job *Job) (bool, error) {
	ctx = ensureContext(ctx)
	if job == nil || job.ID == "" {
		return false, errors.New("job is missing an id")
	}
	next, ok := NextStage(job.Stage)
	if !ok {
		return false, fmt.Errorf("stage %s has no successor", job.Stage)
	}
	nextStatus := StatusPending
	if next == StageSucceeded {
		if strings.TrimSpace(job.ResultRef) == "" {
			return false, errors.New("cannot advance to succeeded without a result reference")
		}
		nextStatus = StatusSucceeded
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    stage = ?,
    status = ?,
    attempt = 0,
    last_error = '',
    params_json = ?,
    fingerprint = ?,
    title = ?,
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
    next_run_at = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE id = ? AND stage = ? AND status = ? AND cancel_requested = 0`,
		next,
		nextStatus,
		nullableString(job.ParamsJSON),
		nullableString(job.Fingerprint),
		nullableString(job.Title),
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
		nowStr,
		nowStr,
		job.ID, job.Stage, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("advance job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance job rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	job.Stage = next
	job.Status = nextStatus
	job.Attempt = 0
	job.LastError = ""
	job.LastHeartbeat = nil
	job.NextRunAt = now
	job.UpdatedAt = now
	return true, nil
}

// RetryStage schedules another attempt of the current stage after the given
// delay, recording the error that triggered it. The attempt counter keeps
// the value set at claim time so the retry budget erodes per delivery.
// Returns false when the job was reclaimed underneath the worker.
func (s *Store) RetryStage(ctx context.Context, job *Job, cause string, delay time.Duration) (bool, error) {
	ctx = ensureContext(ctx)
	if job == nil || job.ID == "" {
		return false, errors.New("job is missing an id")
	}
	now := time.Now().UTC()
	nextRun := now.Add(delay)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    last_error = ?,
    progress_message = ?,
    next_run_at = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE id = ? AND stage = ? AND status = ?`,
		StatusPending,
		nullableString(cause),
		nullableString(cause),
		nextRun.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		job.ID, job.Stage, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retry job rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	job.Status = StatusPending
	job.LastError = cause
	job.ProgressMessage = cause
	job.NextRunAt = nextRun
	job.LastHeartbeat = nil
	job.UpdatedAt = now
	return true, nil
}

// MarkFailed terminally fails the current stage attempt, recording the error
// verbatim for status output. Returns false when the job was reclaimed
// underneath the worker.
func (s *Store) MarkFailed(ctx context.Context, job *Job, cause string) (bool, error) {
	ctx = ensureContext(ctx)
	if job == nil || job.ID == "" {
		return false, errors.New("job is missing an id")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    last_error = ?,
    progress_stage = 'Failed',
    progress_percent = 0,
    progress_message = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE id = ? AND stage = ? AND status = ?`,
		StatusFailed,
		nullableString(cause),
		nullableString(cause),
		now.Format(time.RFC3339Nano),
		job.ID, job.Stage, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail job rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	job.SetFailed(cause)
	job.UpdatedAt = now
	return true, nil
}

// RequestCancel flags a job for cancellation. The flag is observed by the
// claim path and after any in-flight stage completes; the request is
// acknowledged immediately. Returns false when the job is already terminal
// or does not exist.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET cancel_requested = 1, updated_at = ?
WHERE id = ? AND status IN (?, ?)`,
		now, id, StatusPending, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request cancel rows: %w", err)
	}
	return rows > 0, nil
}

// FinalizeCancel moves a cancel-requested job into the cancelled state. The
// lane calls this instead of claiming, and after a mid-flight stage returns
// so its result is discarded rather than advanced. Returns false when the
// job is not awaiting cancellation.
func (s *Store) FinalizeCancel(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    progress_stage = 'Cancelled',
    progress_percent = 0,
    progress_message = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE id = ? AND status IN (?, ?) AND cancel_requested = 1`,
		StatusCancelled,
		CancelledByUserMessage,
		now,
		id, StatusPending, StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("finalize cancel: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize cancel rows: %w", err)
	}
	return rows > 0, nil
}

// UpdateHeartbeat refreshes the liveness marker for a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		"UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?",
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// UpdateProgress persists progress fields for a running job without touching
// its lifecycle columns, refreshing the heartbeat in the same write.
func (s *Store) UpdateProgress(ctx context.Context, id, stage, message string, percent float64) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx, `
UPDATE jobs SET
    progress_stage = ?,
    progress_percent = ?,
    progress_message = ?,
    last_heartbeat = ?,
    updated_at = ?
WHERE id = ? AND status = ?`,
		nullableString(stage), percent, nullableString(message), now, now,
		id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ReclaimStale rolls running jobs whose heartbeat predates the cutoff back
// to pending in the same stage so another worker redelivers the stage. The
// attempt counter is preserved; a crash-looping stage eventually exhausts
// its budget instead of spinning forever.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    next_run_at = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending, now, now,
		StatusRunning, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetRunning rolls every running job back to pending. Called once at
// daemon startup before the lanes spin up, so work interrupted by a crash
// or hard stop is redelivered.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE jobs SET
    status = ?,
    next_run_at = ?,
    last_heartbeat = NULL,
    updated_at = ?
WHERE status = ?`,
		StatusPending, now, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed returns failed jobs to pending with a fresh attempt budget.
// With no ids every failed job is retried; otherwise only the named ones.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
UPDATE jobs SET
    status = ?,
    attempt = 0,
    last_error = '',
    progress_stage = '',
    progress_percent = 0,
    progress_message = '',
    cancel_requested = 0,
    next_run_at = ?,
    updated_at = ?
WHERE status = ?`
	args := []any{StatusPending, now, now, StatusFailed}
	if len(ids) > 0 {
		query += " AND id IN (" + makePlaceholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}
