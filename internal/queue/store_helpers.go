package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, prompt, params_json, fingerprint, title, stage, status, attempt, last_error, result_ref, script_json, clips_json, plan_json, audio_file, assembled_file, work_dir, progress_stage, progress_percent, progress_message, job_log_path, cancel_requested, created_at, updated_at, next_run_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		prompt           string
		paramsJSON       sql.NullString
		fingerprint      sql.NullString
		title            sql.NullString
		stageStr         string
		statusStr        string
		attempt          int
		lastError        sql.NullString
		resultRef        sql.NullString
		scriptJSON       sql.NullString
		clipsJSON        sql.NullString
		planJSON         sql.NullString
		audioFile        sql.NullString
		assembledFile    sql.NullString
		workDir          sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		jobLogPath       sql.NullString
		cancelRequested  sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		nextRunRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&prompt,
		&paramsJSON,
		&fingerprint,
		&title,
		&stageStr,
		&statusStr,
		&attempt,
		&lastError,
		&resultRef,
		&scriptJSON,
		&clipsJSON,
		&planJSON,
		&audioFile,
		&assembledFile,
		&workDir,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&jobLogPath,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&nextRunRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Prompt:          prompt,
		ParamsJSON:      paramsJSON.String,
		Fingerprint:     fingerprint.String,
		Title:           title.String,
		Stage:           Stage(stageStr),
		Status:          Status(statusStr),
		Attempt:         attempt,
		LastError:       lastError.String,
		ResultRef:       resultRef.String,
		ScriptJSON:      scriptJSON.String,
		ClipsJSON:       clipsJSON.String,
		PlanJSON:        planJSON.String,
		AudioFile:       audioFile.String,
		AssembledFile:   assembledFile.String,
		WorkDir:         workDir.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		JobLogPath:      jobLogPath.String,
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if nextRun, err := parseTimeString(nextRunRaw.String); err == nil {
		job.NextRunAt = nextRun
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
