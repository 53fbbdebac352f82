package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/footage"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/pexels"
	"reelforge/internal/stage"
)

// Handler renders the reel for the assembling stage.
type Handler struct {
	cfg        *config.Config
	store      *queue.Store
	cache      *assetcache.Cache
	downloader footage.Downloader
	renderer   *Renderer
	logger     *slog.Logger
	sampler    *logging.ProgressSampler
}

// NewHandler constructs the assembly handler with the real ffmpeg renderer
// and provider download client.
func NewHandler(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger) (*Handler, error) {
	downloader, err := pexels.New(cfg.Footage.APIKey, cfg.Footage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("assembly downloader: %w", err)
	}
	return NewHandlerWithDependencies(cfg, store, cache, logger, downloader, NewRenderer(cfg, logger)), nil
}

// NewHandlerWithDependencies allows injecting custom dependencies (used for tests).
func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger, downloader footage.Downloader, renderer *Renderer) *Handler {
	h := &Handler{
		cfg:        cfg,
		store:      store,
		cache:      cache,
		downloader: downloader,
		renderer:   renderer,
		sampler:    logging.NewProgressSampler(0),
	}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "assembly")
	if h.renderer != nil {
		h.renderer.SetLogger(logger)
	}
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Assemble", "Preparing render")
	h.sampler.Reset()
	return nil
}

// Execute renders the plan into <workdir>/reel.mp4 and stamps the job. A
// failed segment drops the offending clip's cache entry so the stage retry
// refetches fresh bytes.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	plan, err := stage.Plan(job)
	if err != nil {
		return err
	}
	if _, err := os.Stat(plan.AudioFile); err != nil {
		return services.Wrap(services.ErrValidation, "assembly", "check audio",
			"Narration audio file is gone from the cache. Resubmit the reel to regenerate it", err)
	}

	workDir := strings.TrimSpace(job.WorkDir)
	if workDir == "" {
		workDir = job.StagingRoot(h.cfg.Paths.StagingDir)
	}
	if workDir == "" {
		return services.Wrap(services.ErrConfiguration, "assembly", "resolve workdir",
			"Staging directory is not configured. Set paths.staging_dir in config.toml", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "assembly", "create workdir",
			"Could not create the job working directory. Check staging permissions", err)
	}

	h.reportProgress(ctx, job, "Checking clip files", 5)
	restoredPaths := make(map[string]string, len(plan.Segments))
	for i := range plan.Segments {
		clip := plan.Segments[i].Clip
		if path, ok := restoredPaths[clip.SourceID]; ok {
			plan.Segments[i].Clip.LocalFile = path
			continue
		}
		restored, err := footage.EnsureLocal(ctx, h.cache, h.downloader, clip)
		if err != nil {
			return services.Wrap(services.ErrTransient, "assembly", "restore clip",
				fmt.Sprintf("Clip %s could not be restored from the provider", clip.SourceID), err)
		}
		restoredPaths[clip.SourceID] = restored.LocalFile
		plan.Segments[i].Clip.LocalFile = restored.LocalFile
	}

	renderCtx := ctx
	if h.cfg.Assembly.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, time.Duration(h.cfg.Assembly.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	output, err := h.renderer.Render(renderCtx, plan, workDir, func(message string, percent float64) {
		h.reportProgress(ctx, job, message, percent)
	})
	if err != nil {
		if errors.Is(renderCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "assembly", "render reel",
				"Assembly exceeded assembly.timeout_seconds. Raise the limit or shorten the reel", err)
		}
		var segErr *SegmentError
		if errors.As(err, &segErr) {
			if invErr := h.cache.Invalidate(assetcache.ClipKey(segErr.SourceID)); invErr != nil {
				logging.WarnWithContext(logger, "clip invalidation failed", "assembly_invalidate",
					logging.Error(invErr),
					logging.String("source_id", segErr.SourceID),
					logging.String(logging.FieldImpact, "retry may reuse the corrupt cached clip"),
				)
			}
			return services.Wrap(services.ErrAssembly, "assembly", "render segment",
				fmt.Sprintf("Rendering clip %s failed; its cache entry was dropped so the retry refetches it", segErr.SourceID), err)
		}
		return services.Wrap(services.ErrAssembly, "assembly", "render reel",
			"ffmpeg failed to assemble the reel. Check the job log for ffmpeg output", err)
	}

	job.AssembledFile = output
	job.SetProgressComplete("Assemble", "Reel rendered")

	attrs := append(logging.DecisionAttrs("assembly", "rendered", "plan_executed"),
		logging.Int("segments", len(plan.Segments)),
		logging.Float64("plan_seconds", plan.TotalSeconds),
		logging.String("output", output),
	)
	logger.Info("assembly decision", logging.Args(attrs...)...)
	return nil
}

// reportProgress records every update on the job and store; the log line is
// sampled so long segment runs do not flood the log.
func (h *Handler) reportProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	job.SetProgress("Assemble", message, percent)
	if h.sampler.ShouldLog(percent, "Assemble", message) {
		logging.WithContext(ctx, h.logger).Info("render progress",
			logging.String(logging.FieldProgressStage, "Assemble"),
			logging.String(logging.FieldProgressMessage, message),
			logging.Float64(logging.FieldProgressPercent, percent),
		)
	}
	if h.store == nil {
		return
	}
	if err := h.store.UpdateProgress(ctx, job.ID, "Assemble", message, percent); err != nil {
		logging.WithContext(ctx, h.logger).Debug("progress update failed", logging.Error(err))
	}
}

// HealthCheck verifies ffmpeg and ffprobe are reachable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "assembly"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if _, err := exec.LookPath(h.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg not found: %v", err))
	}
	if _, err := exec.LookPath(h.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffprobe not found: %v", err))
	}
	if h.cache == nil {
		return stage.Unhealthy(name, "asset cache unavailable")
	}
	return stage.Healthy(name)
}
