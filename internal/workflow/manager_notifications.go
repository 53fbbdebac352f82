package workflow

import (
	"context"
	"errors"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
)

// Notification failures never affect job state; they log at debug and move on.

func (m *Manager) notifyCompleted(ctx context.Context, job *queue.Job) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyReelCompleted(ctx, job.Title, job.ResultRef); err != nil {
		m.logNotifyFailure(ctx, "completion", err)
	}
}

func (m *Manager) notifyFailed(ctx context.Context, job *queue.Job, reason string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyReelFailed(ctx, job.Title, reason); err != nil {
		m.logNotifyFailure(ctx, "failure", err)
	}
}

func (m *Manager) notifyCancelled(ctx context.Context, job *queue.Job) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyReelCancelled(ctx, job.Title); err != nil {
		m.logNotifyFailure(ctx, "cancellation", err)
	}
}

func (m *Manager) logNotifyFailure(ctx context.Context, kind string, err error) {
	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
	if errors.Is(err, context.Canceled) {
		logger.Debug("daemon shutting down, could not send " + kind + " notification")
		return
	}
	logger.Debug(kind+" notification failed", logging.Error(err))
}
