package api

import (
	"context"

	"reelforge/internal/queue"
)

// QueueActionService captures queue operations needed by per-reel retry/cancel workflows.
type QueueActionService interface {
	Describe(ctx context.Context, id string) (*Reel, error)
	Retry(ctx context.Context, ids []string) (int64, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

type RetryReelOutcome string

const (
	RetryReelUpdated   RetryReelOutcome = "retried"
	RetryReelNotFound  RetryReelOutcome = "not_found"
	RetryReelNotFailed RetryReelOutcome = "not_failed"
)

type RetryReelResult struct {
	ID      string           `json:"id"`
	Outcome RetryReelOutcome `json:"outcome"`
}

type RetryReelsResult struct {
	UpdatedCount int64             `json:"updated_count"`
	Reels        []RetryReelResult `json:"reels"`
}

type CancelReelOutcome string

const (
	CancelReelRequested       CancelReelOutcome = "cancel_requested"
	CancelReelNotFound        CancelReelOutcome = "not_found"
	CancelReelAlreadyFinished CancelReelOutcome = "already_finished"
)

type CancelReelResult struct {
	ID          string            `json:"id"`
	Outcome     CancelReelOutcome `json:"outcome"`
	PriorStatus string            `json:"prior_status,omitempty"`
}

type CancelReelsResult struct {
	UpdatedCount int64              `json:"updated_count"`
	Reels        []CancelReelResult `json:"reels"`
}

// RetryFailedReelsByID validates IDs and retries only failed reels.
func RetryFailedReelsByID(ctx context.Context, service QueueActionService, ids []string) (RetryReelsResult, error) {
	result := RetryReelsResult{Reels: make([]RetryReelResult, 0, len(ids))}
	for _, id := range ids {
		reel, err := service.Describe(ctx, id)
		if err != nil {
			return RetryReelsResult{}, err
		}
		if reel == nil {
			result.Reels = append(result.Reels, RetryReelResult{ID: id, Outcome: RetryReelNotFound})
			continue
		}
		status, ok := queue.ParseStatus(reel.Status)
		if !ok || status != queue.StatusFailed {
			result.Reels = append(result.Reels, RetryReelResult{ID: id, Outcome: RetryReelNotFailed})
			continue
		}
		updated, err := service.Retry(ctx, []string{id})
		if err != nil {
			return RetryReelsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Reels = append(result.Reels, RetryReelResult{ID: id, Outcome: RetryReelUpdated})
			continue
		}
		result.Reels = append(result.Reels, RetryReelResult{ID: id, Outcome: RetryReelNotFailed})
	}
	return result, nil
}

// CancelReelsByID validates IDs and requests cancellation unless already terminal.
func CancelReelsByID(ctx context.Context, service QueueActionService, ids []string) (CancelReelsResult, error) {
	result := CancelReelsResult{Reels: make([]CancelReelResult, 0, len(ids))}
	for _, id := range ids {
		reel, err := service.Describe(ctx, id)
		if err != nil {
			return CancelReelsResult{}, err
		}
		if reel == nil {
			result.Reels = append(result.Reels, CancelReelResult{ID: id, Outcome: CancelReelNotFound})
			continue
		}
		status := reel.Status
		if parsed, ok := queue.ParseStatus(status); ok && parsed.Terminal() {
			result.Reels = append(result.Reels, CancelReelResult{ID: id, Outcome: CancelReelAlreadyFinished, PriorStatus: status})
			continue
		}

		accepted, err := service.Cancel(ctx, id)
		if err != nil {
			return CancelReelsResult{}, err
		}
		if accepted {
			result.UpdatedCount++
			result.Reels = append(result.Reels, CancelReelResult{ID: id, Outcome: CancelReelRequested, PriorStatus: status})
			continue
		}
		result.Reels = append(result.Reels, CancelReelResult{ID: id, Outcome: CancelReelAlreadyFinished, PriorStatus: status})
	}
	return result, nil
}
