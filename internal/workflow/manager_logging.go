package workflow

import (
	"context"
	"log/slog"
	"strings"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// laneLabel names a lane for logs, preferring the configured name.
func laneLabel(lane *laneState) string {
	if lane == nil {
		return ""
	}
	if name := strings.TrimSpace(lane.name); name != "" {
		return name
	}
	return string(lane.lane)
}

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	label := laneLabel(lane)
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-"+label+"-runner"),
		logging.String(logging.FieldLane, label),
	)
}

func (m *Manager) stageLoggerForLane(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *queue.Job) *slog.Logger {
	base := laneLogger
	if base == nil {
		base = m.logger
	}
	if base == nil {
		base = logging.NewNop()
	}
	if job != nil {
		base = m.attachJobLog(base, job)
	}

	logger := logging.WithContext(ctx, base)
	stageName, ok := services.StageFromContext(ctx)
	if !ok || m.cfg == nil {
		return logger
	}
	if override := stageOverrideLevel(m.cfg.Logging.StageOverrides, stageName); override != "" {
		logger = logging.WithLevelOverride(logger, parseStageLevel(override))
	}
	return logger
}

// attachJobLog swaps the logger onto the per-job log file. Job processing
// writes only there; the stream hub mirrors those records into the daemon's
// live feed.
func (m *Manager) attachJobLog(base *slog.Logger, job *queue.Job) *slog.Logger {
	path, err := m.jobLogs.Ensure(job)
	if err != nil {
		base.Warn("job log unavailable", logging.Error(err))
		return base
	}
	handler, err := m.jobLogs.CreateHandler(path)
	if err != nil {
		base.Warn("failed to create job log writer", logging.Error(err))
		return base
	}
	return slog.New(handler)
}

func stageOverrideLevel(overrides map[string]string, stageName string) string {
	stageName = strings.TrimSpace(stageName)
	if stageName == "" {
		return ""
	}
	for key, value := range overrides {
		if strings.EqualFold(strings.TrimSpace(key), stageName) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseStageLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func withStageContext(ctx context.Context, lane *laneState, stageName string, job *queue.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lane != nil {
		ctx = services.WithLane(ctx, laneLabel(lane))
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
