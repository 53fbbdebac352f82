package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusSucceeded:
			health.Succeeded += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// deleteJobs runs a DELETE with the given predicate and reports rows removed.
func (s *Store) deleteJobs(ctx context.Context, label, where string, args ...any) (int64, error) {
	ctx = ensureContext(ctx)
	query := "DELETE FROM jobs"
	if where != "" {
		query += " WHERE " + where
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return res.RowsAffected()
}

// Clear removes every job row.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteJobs(ctx, "clear queue", "")
}

// ClearCompleted removes jobs that finished without needing attention,
// meaning both the succeeded and the cancelled ones.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.deleteJobs(ctx, "clear completed jobs", "status IN (?, ?)", StatusSucceeded, StatusCancelled)
}

// ClearFailed removes terminally failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.deleteJobs(ctx, "clear failed jobs", "status = ?", StatusFailed)
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: "current",
	}

	exists, err := databaseFilePresent(s.path)
	if err != nil || !exists {
		return health, err
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.inspectJobsTable(connCtx, &health); err != nil {
		health.Error = err.Error()
		return health, err
	}

	intact, err := s.integrityCheck(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.IntegrityCheck = intact
	return health, nil
}

func databaseFilePresent(path string) (bool, error) {
	if path == "" {
		return false, errors.New("queue database path is unknown")
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("queue database path %q is a directory", path)
	}
	return true, nil
}

// inspectJobsTable fills in table presence, the live column inventory, and
// the row count when the jobs table exists.
func (s *Store) inspectJobsTable(ctx context.Context, health *DatabaseHealth) error {
	var tableName string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'",
	).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	columns, err := s.tableColumns(ctx, "jobs")
	if err != nil {
		return err
	}
	health.ColumnsPresent = columns
	health.MissingColumns = missingJobColumns(columns)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&health.TotalJobs); err != nil {
		return fmt.Errorf("count jobs: %w", err)
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typeName   string
			defaultValue     any
		)
		if err := rows.Scan(&cid, &name, &typeName, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return columns, nil
}

// missingJobColumns reports schema columns absent from the live table.
func missingJobColumns(present []string) []string {
	want := make(map[string]struct{})
	for _, col := range strings.Split(jobColumns, ", ") {
		want[col] = struct{}{}
	}
	for _, col := range present {
		delete(want, col)
	}
	var missing []string
	for col := range want {
		missing = append(missing, col)
	}
	return missing
}

func (s *Store) integrityCheck(ctx context.Context) (bool, error) {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return false, fmt.Errorf("integrity check: %w", err)
	}
	return strings.EqualFold(result, "ok"), nil
}
