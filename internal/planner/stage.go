package planner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/footage"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/pexels"
	"reelforge/internal/stage"
)

// Handler builds the assembly plan for the audio_ready stage.
type Handler struct {
	cfg        *config.Config
	store      *queue.Store
	cache      *assetcache.Cache
	downloader footage.Downloader
	logger     *slog.Logger
}

// NewHandler constructs the planner with the real provider download client.
func NewHandler(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger) (*Handler, error) {
	downloader, err := pexels.New(cfg.Footage.APIKey, cfg.Footage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("planner downloader: %w", err)
	}
	return NewHandlerWithDependencies(cfg, store, cache, logger, downloader), nil
}

// NewHandlerWithDependencies allows injecting custom dependencies (used for tests).
func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger, downloader footage.Downloader) *Handler {
	h := &Handler{cfg: cfg, store: store, cache: cache, downloader: downloader}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "planner")
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Plan", "Planning the edit")
	return nil
}

// Execute validates artifacts from the earlier stages, restores any evicted
// clip files, and stores the assembly plan on the job.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	script, err := stage.Script(job)
	if err != nil {
		return err
	}
	clips, err := stage.Clips(job)
	if err != nil {
		return err
	}

	audioFile := strings.TrimSpace(job.AudioFile)
	if audioFile == "" {
		audioFile = strings.TrimSpace(script.AudioFile)
	}
	if audioFile == "" {
		return services.Wrap(services.ErrValidation, "planner", "check audio",
			"Narration audio reference missing; rerun the narration stage", nil)
	}
	if _, err := os.Stat(audioFile); err != nil {
		return services.Wrap(services.ErrValidation, "planner", "check audio",
			"Narration audio file is gone from the cache. Resubmit the reel to regenerate it", err)
	}
	if script.AudioSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "planner", "check audio",
			"Narration has no measured duration; rerun the narration stage", nil)
	}

	h.reportProgress(ctx, job, "Checking clip files", 25)
	restored := 0
	for i, clip := range clips {
		ensured, err := footage.EnsureLocal(ctx, h.cache, h.downloader, clip)
		if err != nil {
			return services.Wrap(services.ErrTransient, "planner", "restore clip",
				fmt.Sprintf("Clip %s could not be restored from the provider", clip.SourceID), err)
		}
		if ensured.LocalFile != clip.LocalFile {
			restored++
		}
		clips[i] = ensured
	}

	h.reportProgress(ctx, job, "Cutting segments", 60)
	plan, err := buildPlan(clips, audioFile, script.AudioSeconds,
		h.cfg.Assembly.SegmentMinSeconds, h.cfg.Assembly.SegmentMaxSeconds)
	if err != nil {
		return services.Wrap(services.ErrValidation, "planner", "build plan",
			"The selected clips cannot cover the narration. Adjust assembly segment bounds or footage.min_clip_seconds", err)
	}

	encoded, err := plan.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "planner", "encode plan",
			"Assembly plan could not be serialized", err)
	}
	job.PlanJSON = encoded
	job.SetProgressComplete("Plan", fmt.Sprintf("%d segments planned", len(plan.Segments)))

	attrs := append(logging.DecisionAttrs("edit_plan", "built", "segment_walk"),
		logging.Int("segments", len(plan.Segments)),
		logging.Int("clips", len(clips)),
		logging.Int("restored_clips", restored),
		logging.Float64("total_seconds", plan.TotalSeconds),
	)
	logger.Info("plan decision", logging.Args(attrs...)...)
	return nil
}

func (h *Handler) reportProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	job.SetProgress("Plan", message, percent)
	if h.store == nil {
		return
	}
	if err := h.store.UpdateProgress(ctx, job.ID, "Plan", message, percent); err != nil {
		logging.WithContext(ctx, h.logger).Debug("progress update failed", logging.Error(err))
	}
}

// HealthCheck verifies the planner configuration.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "planner"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if h.cfg.Assembly.SegmentMinSeconds <= 0 || h.cfg.Assembly.SegmentMaxSeconds < h.cfg.Assembly.SegmentMinSeconds {
		return stage.Unhealthy(name, "assembly segment bounds are invalid")
	}
	if h.cache == nil {
		return stage.Unhealthy(name, "asset cache unavailable")
	}
	return stage.Healthy(name)
}
