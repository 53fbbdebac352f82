package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
)

// workDirPrefix matches the per-job directory naming used by Job.StagingRoot.
const workDirPrefix = "job-"

// JobChecker looks up queue records during staging sweeps.
type JobChecker interface {
	GetByID(ctx context.Context, id string) (*queue.Job, error)
}

// SweepResult contains the outcome of a staging sweep.
type SweepResult struct {
	Removed []string
	Kept    int
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Sweep removes per-job staging directories whose owning job is terminal or
// no longer in the queue. Directories that do not follow the job-<id> naming
// belong to someone else and are left alone. Active jobs keep their
// workspaces so redelivered stages can resume.
func Sweep(ctx context.Context, stagingDir string, jobs JobChecker, logger *slog.Logger) SweepResult {
	var result SweepResult

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || jobs == nil {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, workDirPrefix) {
			continue
		}
		dirPath := filepath.Join(stagingDir, name)

		job, err := jobs.GetByID(ctx, strings.TrimPrefix(name, workDirPrefix))
		switch {
		case err != nil:
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
		case job != nil && !job.Status.Terminal():
			result.Kept++
		default:
			reason := "job finished"
			if job == nil {
				reason = "job no longer queued"
			}
			result.reclaim(dirPath, reason, logger)
		}
	}
	return result
}

// reclaim deletes one workspace and records the outcome.
func (r *SweepResult) reclaim(dirPath, reason string, logger *slog.Logger) {
	if err := os.RemoveAll(dirPath); err != nil {
		r.Errors = append(r.Errors, CleanupError{Path: dirPath, Error: err})
		if logger != nil {
			logger.Warn("failed to remove staging directory",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
		return
	}
	r.Removed = append(r.Removed, dirPath)
	if logger != nil {
		logger.Info("removed staging directory",
			logging.String("path", dirPath),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
}

// DirInfo contains metadata about a staging directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns all directories in the staging directory with their metadata.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(stagingDir, entry.Name())
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    dirSize(dirPath),
		})
	}
	return dirs, nil
}

// dirSize sums file sizes under path, ignoring entries that disappear
// mid-walk.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
