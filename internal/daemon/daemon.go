package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/preflight"
	"reelforge/internal/queue"
	"reelforge/internal/staging"
	"reelforge/internal/workflow"
)

// ErrPromptRequired rejects submissions with an empty prompt.
var ErrPromptRequired = errors.New("prompt is required")

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service
	logPath  string
	logHub   *logging.StreamHub
	archive  *logging.EventArchive

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	wf *workflow.Manager,
	logPath string,
	logHub *logging.StreamHub,
	archive *logging.EventArchive,
	notifier notifications.Service,
) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.LogDir(), "reelforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		notifier: notifier,
		logPath:  logPath,
		logHub:   logHub,
		archive:  archive,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, logger, d)
	if err != nil {
		return nil, fmt.Errorf("configure api server: %w", err)
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, verifies the host can assemble reels, and
// launches the workflow manager and API listener. Jobs left running by a
// previous shutdown go back to pending before stage processing begins.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelforge daemon instance is already running")
	}

	if missing := preflight.RequiredBinaryFailures(d.cfg); len(missing) > 0 {
		_ = d.lock.Unlock()
		return fmt.Errorf("required binaries unavailable: %s", strings.Join(missing, ", "))
	}
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if !result.Passed {
			d.logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
		}
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if requeued, err := d.store.ResetRunning(d.ctx); err != nil {
		d.logger.Warn("failed to requeue interrupted jobs", logging.Error(err))
	} else if requeued > 0 {
		d.logger.Info("requeued interrupted jobs", logging.Int64("count", requeued))
	}

	sweep := staging.Sweep(d.ctx, d.cfg.Paths.StagingDir, d.store, d.logger)
	for _, sweepErr := range sweep.Errors {
		d.logger.Warn("staging sweep error",
			logging.String("path", sweepErr.Path),
			logging.Error(sweepErr.Error),
		)
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.teardownLocked()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.workflow.Stop()
			d.teardownLocked()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	attrs := []any{logging.String("lock", d.lockPath)}
	if d.api != nil {
		attrs = append(attrs, logging.String("api", d.api.address()))
	}
	d.logger.Info("reelforge daemon started", attrs...)
	return nil
}

func (d *Daemon) teardownLocked() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reelforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit validates and enqueues a new reel job, returning the stored record.
func (d *Daemon) Submit(ctx context.Context, prompt string, params queue.ReelParams) (*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	job, err := d.store.NewReel(ctx, prompt, params)
	if err != nil {
		return nil, fmt.Errorf("enqueue reel: %w", err)
	}
	d.logger.Info("reel submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
	)
	if err := d.notifier.NotifyReelSubmitted(ctx, job.Title); err != nil {
		d.logger.Warn("submit notification failed", logging.Error(err))
	}
	return job, nil
}

// Cancel requests cancellation for a job. It returns the refreshed record and
// whether the request was accepted; a nil job means the id is unknown.
func (d *Daemon) Cancel(ctx context.Context, id string) (*queue.Job, bool, error) {
	if d.store == nil {
		return nil, false, errors.New("queue store unavailable")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, errors.New("job id is required")
	}

	job, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, nil
	}

	accepted, err := d.store.RequestCancel(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if accepted {
		d.logger.Info("cancel requested",
			logging.String(logging.FieldJobID, id),
			logging.String("status", string(job.Status)),
		)
	}
	refreshed, err := d.store.GetByID(ctx, id)
	if err != nil || refreshed == nil {
		return job, accepted, err
	}
	return refreshed, accepted, nil
}

// Describe fetches a single job by id.
func (d *Daemon) Describe(ctx context.Context, id string) (*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// QueueStats returns aggregate queue counts keyed by status.
func (d *Daemon) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.Stats(ctx)
}

// ClearQueue removes all jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes succeeded and cancelled jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// RetryFailed resets failed jobs (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log hub, if configured.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// LogArchive returns the on-disk event archive, if configured.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.archive
}

// APIAddress returns the bound API listener address, empty when disabled.
func (d *Daemon) APIAddress() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		QueueDBPath:  filepath.Join(d.cfg.LogDir(), "queue.db"),
		LockFilePath: d.lockPath,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
