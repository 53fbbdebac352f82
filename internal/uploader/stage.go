package uploader

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/stage"
)

// Handler publishes assembled reels for the uploading stage.
type Handler struct {
	cfg     *config.Config
	store   *queue.Store
	backend Backend
	logger  *slog.Logger
}

// NewHandler constructs the upload handler with the configured storage
// backend.
func NewHandler(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Handler, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewHandlerWithDependencies(cfg, store, logger, backend), nil
}

// NewHandlerWithDependencies allows injecting custom dependencies (used for tests).
func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, backend Backend) *Handler {
	h := &Handler{cfg: cfg, store: store, backend: backend}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "uploader")
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Upload", "Preparing publish")
	return nil
}

// Execute stores the assembled reel through the backend and stamps the job
// with the resulting reference. The object name derives from the job ID, so
// a retried upload overwrites its own earlier attempt.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	assembled := strings.TrimSpace(job.AssembledFile)
	if assembled == "" {
		return services.Wrap(services.ErrValidation, "upload", "check inputs",
			"No assembled reel present; the assembly stage must complete first", nil)
	}
	objectName := job.ID + ".mp4"
	if _, err := os.Stat(assembled); err != nil {
		// A redelivered stage can run after the backend consumed the staging
		// copy but before the success transition persisted. The object name
		// is deterministic, so an already published copy is this job's own.
		if ref, ok := h.backend.Published(ctx, objectName); ok {
			job.ResultRef = ref
			job.SetProgressComplete("Upload", "Reel published")
			attrs := append(logging.DecisionAttrs("upload_destination", h.backend.Name(), "already_published"),
				logging.String("result_ref", ref),
			)
			logger.Info("upload decision", logging.Args(attrs...)...)
			return nil
		}
		return services.Wrap(services.ErrValidation, "upload", "check inputs",
			"Assembled reel is gone from staging. Resubmit the reel to rebuild it", err)
	}

	h.reportProgress(ctx, job, "Publishing reel", 30)
	ref, err := h.backend.Store(ctx, assembled, objectName)
	if err != nil {
		return err
	}

	job.ResultRef = ref
	job.SetProgressComplete("Upload", "Reel published")

	attrs := append(logging.DecisionAttrs("upload_destination", h.backend.Name(), "storage_backend"),
		logging.String("result_ref", ref),
	)
	logger.Info("upload decision", logging.Args(attrs...)...)
	return nil
}

func (h *Handler) reportProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	job.SetProgress("Upload", message, percent)
	if h.store == nil {
		return
	}
	if err := h.store.UpdateProgress(ctx, job.ID, "Upload", message, percent); err != nil {
		logging.WithContext(ctx, h.logger).Debug("progress update failed", logging.Error(err))
	}
}

// HealthCheck verifies the storage backend prerequisites.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "uploader"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if h.backend == nil {
		return stage.Unhealthy(name, "storage backend unavailable")
	}
	switch strings.ToLower(strings.TrimSpace(h.cfg.Storage.Backend)) {
	case "", backendLocal:
		if strings.TrimSpace(h.cfg.Paths.OutputDir) == "" {
			return stage.Unhealthy(name, "paths.output_dir not configured")
		}
	case backendHTTP, "supabase":
		if strings.TrimSpace(h.cfg.Storage.URL) == "" {
			return stage.Unhealthy(name, "storage.url not configured")
		}
		if strings.TrimSpace(h.cfg.Storage.Bucket) == "" {
			return stage.Unhealthy(name, "storage.bucket not configured")
		}
		if strings.TrimSpace(h.cfg.Storage.ServiceKey) == "" {
			return stage.Unhealthy(name, "storage.service_key not configured")
		}
	}
	return stage.Healthy(name)
}
