package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *queue.Job) error {
	if laneLogger == nil {
		laneLogger = m.logger
	}

	// Cancel requests surface through the poll query even when the retry
	// delay has not elapsed, so they finalize without claiming the stage.
	if job.CancelRequested {
		m.finalizeCancel(ctx, laneLogger, job, "before stage claim")
		return nil
	}

	binding, ok := lane.bindingForStage(job.Stage)
	if !ok {
		laneLogger.Warn("no handler configured for stage", logging.String(logging.FieldStage, string(job.Stage)))
		m.idle(ctx)
		return nil
	}

	claimed, err := m.store.ClaimForStage(ctx, job.ID, job.Stage)
	if err != nil {
		m.setLastError(err)
		laneLogger.Error("failed to claim job for stage",
			logging.Error(err),
			logging.String(logging.FieldEventType, "claim_failed"),
		)
		return err
	}
	if claimed == nil {
		// Another worker won the claim or the job moved on. Nothing to do.
		return nil
	}
	job = claimed

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, binding.name, job, requestID)
	stageLogger := m.stageLoggerForLane(stageCtx, lane, laneLogger, job)
	if aware, ok := binding.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	return m.executeStage(stageCtx, stageLogger, binding, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, binding stageBinding, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(job.Title)),
		logging.Int("attempt", job.Attempt),
		logging.Int("max_attempts", m.maxAttempts),
	)

	if err := binding.handler.Prepare(ctx, job); err != nil {
		// Same race as a failing Execute: a cancel requested during
		// preparation wins over the failure path.
		if m.finalizeCancel(ctx, stageLogger, job, "after failed preparation") {
			return nil
		}
		m.resolveStageFailure(ctx, stageLogger, binding, job, err)
		m.setLastError(err)
		return err
	}
	m.persistPrepareProgress(ctx, stageLogger, job)

	execErr := m.executeWithHeartbeat(ctx, binding.handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		// A cancel that raced the failing attempt wins over the retry path.
		if m.finalizeCancel(ctx, stageLogger, job, "after failed attempt") {
			return nil
		}
		m.resolveStageFailure(ctx, stageLogger, binding, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if m.finalizeCancel(ctx, stageLogger, job, "stage result discarded") {
		return nil
	}
	advanced, err := m.store.AdvanceStage(ctx, job)
	if err != nil {
		m.setLastError(err)
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("daemon shutting down, could not persist stage result")
			return err
		}
		stageLogger.Error("failed to persist stage result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "advance_failed"),
		)
		return err
	}
	if !advanced {
		// AdvanceStage refuses to move a job whose cancel flag was set
		// mid-flight; finalize the cancel rather than report a lost claim.
		if m.finalizeCancel(ctx, stageLogger, job, "stage result discarded") {
			return nil
		}
		stageLogger.Warn("stage result discarded; job was reclaimed by another worker",
			logging.String(logging.FieldEventType, "advance_lost"),
		)
		return nil
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_stage", string(job.Stage)),
		logging.String(logging.FieldProgressMessage, strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	if job.Stage == queue.StageSucceeded {
		m.notifyCompleted(ctx, job)
	}
	return nil
}

// persistPrepareProgress makes Prepare's progress reset visible to status
// readers before Execute starts. Failure to persist is not fatal; Execute
// reports progress again as it runs.
func (m *Manager) persistPrepareProgress(ctx context.Context, stageLogger *slog.Logger, job *queue.Job) {
	err := m.store.UpdateProgress(ctx, job.ID, job.ProgressStage, job.ProgressMessage, job.ProgressPercent)
	if err != nil && !errors.Is(err, context.Canceled) {
		stageLogger.Debug("failed to persist stage preparation", logging.Error(err))
	}
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// finalizeCancel converts a pending cancel request into the terminal
// cancelled state. It reports whether the job was cancelled; false means no
// cancel was requested or another worker already finalized it.
func (m *Manager) finalizeCancel(ctx context.Context, logger *slog.Logger, job *queue.Job, detail string) bool {
	finalized, err := m.store.FinalizeCancel(ctx, job.ID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("failed to finalize cancel request", logging.Error(err))
		}
		return false
	}
	if !finalized {
		return false
	}
	job.Status = queue.StatusCancelled
	job.ProgressStage = "Cancelled"
	job.ProgressPercent = 0
	job.ProgressMessage = queue.CancelledByUserMessage
	job.LastHeartbeat = nil
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
		logging.String("detail", detail),
	)
	m.setLastJob(job)
	m.notifyCancelled(ctx, job)
	return true
}
