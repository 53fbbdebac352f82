package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
)

// JobLogger manages dedicated log files for reel job processing. Each job
// writes to a single file named after its ID, so retries of a stage append
// to the same history.
type JobLogger struct {
	baseDir string
	hub     *logging.StreamHub
	cfg     *config.Config
}

// NewJobLogger creates a new job logger.
func NewJobLogger(cfg *config.Config, hub *logging.StreamHub) *JobLogger {
	dir := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		dir = filepath.Join(cfg.LogDir(), "jobs")
	}
	return &JobLogger{
		baseDir: dir,
		hub:     hub,
		cfg:     cfg,
	}
}

// Ensure prepares the log directory and file path for a job. The path is
// recorded on the job so status output can point readers at the file.
func (j *JobLogger) Ensure(job *queue.Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("queue job is nil")
	}
	if strings.TrimSpace(j.baseDir) == "" {
		return "", fmt.Errorf("job log directory not configured")
	}
	if strings.TrimSpace(job.JobLogPath) == "" {
		job.JobLogPath = filepath.Join(j.baseDir, job.ID+".log")
	}
	if err := os.MkdirAll(filepath.Dir(job.JobLogPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure job log directory: %w", err)
	}
	return job.JobLogPath, nil
}

// CreateHandler builds a slog.Handler writing to the specified path.
func (j *JobLogger) CreateHandler(path string) (slog.Handler, error) {
	level := "info"
	format := "json"
	if j.cfg != nil {
		if strings.TrimSpace(j.cfg.Logging.Level) != "" {
			level = j.cfg.Logging.Level
		}
		if strings.TrimSpace(j.cfg.Logging.Format) != "" {
			format = j.cfg.Logging.Format
		}
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
		Development:      false,
		// Job logs write to per-job files, but still publish to the daemon
		// stream so `reelforge show --follow` observes live progress.
		Stream: j.hub,
	})
	if err != nil {
		return nil, err
	}
	return logger.Handler(), nil
}
