package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	maxAttempts  int
	retryBase    time.Duration
	retryCap     time.Duration

	heartbeat *HeartbeatMonitor
	jobLogs   *JobLogger

	lanes     map[queue.ProcessingLane]*laneState
	laneOrder []queue.ProcessingLane

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithOptions(cfg, store, logger, notifications.NewService(cfg), nil)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return NewManagerWithOptions(cfg, store, logger, notifier, nil)
}

// NewManagerWithOptions constructs a workflow manager with full wiring. The
// stream hub, when provided, mirrors per-job log records into the daemon's
// live log feed.
func NewManagerWithOptions(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, logHub *logging.StreamHub) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Queue.PollInterval) * time.Second,
		maxAttempts:  cfg.Queue.MaxAttempts,
		retryBase:    time.Duration(cfg.Queue.RetryBaseSeconds) * time.Second,
		retryCap:     time.Duration(cfg.Queue.RetryCapSeconds) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		),
		jobLogs: NewJobLogger(cfg, logHub),
		lanes:   make(map[queue.ProcessingLane]*laneState),
	}
}
