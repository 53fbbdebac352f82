package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reelforge/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := m.activeLanesLocked()
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
	}
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, lane := range lanes {
		go m.runLane(runCtx, lane)
	}
	return nil
}

// activeLanesLocked returns the lanes with at least one registered stage, in
// scheduling order. Callers hold m.mu.
func (m *Manager) activeLanesLocked() []*laneState {
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, lane := range m.laneOrder {
		if state := m.lanes[lane]; state != nil && len(state.stageOrder) > 0 {
			lanes = append(lanes, state)
		}
	}
	return lanes
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	if lane == nil {
		return
	}
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	for ctx.Err() == nil {
		if !m.laneTick(ctx, lane, logger) {
			return
		}
	}
}

// laneTick runs one scheduling pass: reclaim stale work, claim the next job,
// and drive it through its stage. A false return stops the lane.
func (m *Manager) laneTick(ctx context.Context, lane *laneState, logger *slog.Logger) bool {
	if err := m.heartbeat.Reclaim(ctx, logger); err != nil {
		logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	job, err := m.store.NextForStages(ctx, lane.stageOrder...)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to fetch next queue job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.idle(ctx)
		return true
	}
	if job == nil {
		m.idle(ctx)
		return true
	}

	err = m.processJob(ctx, lane, logger, job)
	return !errors.Is(err, context.Canceled)
}

// idle sleeps one poll interval or until shutdown.
func (m *Manager) idle(ctx context.Context) {
	interval := m.pollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
