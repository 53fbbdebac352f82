package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/stage"
)

const (
	// Target durations outside this window produce unusable reels: shorter
	// than 5s leaves no room for narration, longer than 120s exceeds the
	// platform's reel limit.
	minTargetSeconds = 5
	maxTargetSeconds = 120
)

// Handler admits submitted requests into the pipeline. It validates the
// prompt, freezes generation parameters with configured defaults, computes
// the cache fingerprint, derives the display title, and provisions the
// per-job working directory.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandler creates the intake stage handler.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	h := &Handler{cfg: cfg}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "intake")
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Intake", "Validating request")
	return nil
}

// Execute stamps the job with its canonical parameters, fingerprint, display
// title, and working directory. Every later stage relies on these fields.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	prompt := strings.TrimSpace(job.Prompt)
	if prompt == "" {
		return services.Wrap(services.ErrValidation, "intake", "validate prompt",
			"Prompt is empty. Resubmit with a short description of the reel you want", nil)
	}

	params := queue.ParamsFromJSON(job.ParamsJSON).
		WithDefaults(h.cfg.Narration.TargetSeconds, h.cfg.TTS.Voice)
	if params.TargetDuration < minTargetSeconds || params.TargetDuration > maxTargetSeconds {
		return services.Wrap(services.ErrValidation, "intake", "validate params",
			fmt.Sprintf("Target duration %.0fs is outside the supported %d-%ds range",
				params.TargetDuration, minTargetSeconds, maxTargetSeconds), nil)
	}
	encoded, err := params.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "intake", "encode params",
			"Generation parameters could not be serialized", err)
	}

	workDir := job.StagingRoot(h.cfg.Paths.StagingDir)
	if workDir == "" {
		return services.Wrap(services.ErrConfiguration, "intake", "resolve workdir",
			"Staging directory is not configured. Set paths.staging_dir in config.toml", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "intake", "create workdir",
			"Could not create the job working directory. Check staging directory permissions", err)
	}

	job.ParamsJSON = encoded
	job.Fingerprint = assetcache.Fingerprint(prompt, params)
	job.Title = deriveTitle(prompt)
	job.WorkDir = workDir
	job.SetProgressComplete("Intake", "Request validated")

	logger.Info("request admitted",
		logging.String(logging.FieldEventType, "intake_complete"),
		logging.String("title", job.Title),
		logging.String("fingerprint", job.Fingerprint),
		logging.Float64("target_seconds", params.TargetDuration),
		logging.String("orientation", params.Orientation),
	)
	return nil
}

// HealthCheck verifies the staging directory is usable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.cfg == nil {
		return stage.Unhealthy("intake", "configuration unavailable")
	}
	staging := strings.TrimSpace(h.cfg.Paths.StagingDir)
	if staging == "" {
		return stage.Unhealthy("intake", "staging directory not configured")
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return stage.Unhealthy("intake", fmt.Sprintf("staging directory: %v", err))
	}
	return stage.Healthy("intake")
}
