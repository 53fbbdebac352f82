package narration

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/llm"
	"reelforge/internal/services/tts"
	"reelforge/internal/stage"
)

// Generator drafts narration scripts for a brief.
type Generator interface {
	DraftScript(ctx context.Context, brief llm.ScriptBrief) (llm.ScriptDraft, error)
}

// Synthesizer renders narration text to an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Result, error)
}

// Handler produces narration script and audio for the script_pending stage.
type Handler struct {
	cfg       *config.Config
	store     *queue.Store
	cache     *assetcache.Cache
	generator Generator
	synth     Synthesizer
	logger    *slog.Logger
}

// NewHandler constructs the narration handler with the real LLM and TTS
// clients.
func NewHandler(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger) *Handler {
	generator := llm.NewClient(llm.Config(cfg.NarrationLLM()))
	probe := func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds(), nil
	}
	synth := tts.NewCLI(cfg.TTSCommand(), tts.WithDurationProbe(probe))
	return NewHandlerWithDependencies(cfg, store, cache, logger, generator, synth)
}

// NewHandlerWithDependencies allows injecting custom dependencies (used for tests).
func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger, generator Generator, synth Synthesizer) *Handler {
	h := &Handler{cfg: cfg, store: store, cache: cache, generator: generator, synth: synth}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "narration")
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Narration", "Drafting narration")
	return nil
}

// Execute drafts, renders, and measures the narration, storing the script
// asset and audio path on the job. The whole production runs under the asset
// cache so identical requests reuse finished narration.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	fingerprint := strings.TrimSpace(job.Fingerprint)
	if fingerprint == "" {
		return services.Wrap(services.ErrValidation, "narration", "check fingerprint",
			"Job fingerprint missing; rerun the intake stage", nil)
	}
	params := queue.ParamsFromJSON(job.ParamsJSON).
		WithDefaults(h.cfg.Narration.TargetSeconds, h.cfg.TTS.Voice)

	produced := false
	script, err := h.cache.GetOrCreateScript(ctx, fingerprint, func(ctx context.Context, dir string) (queue.ScriptAsset, error) {
		produced = true
		return h.produceScript(ctx, job, params, dir)
	})
	if err != nil {
		return err
	}

	encoded, err := script.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "narration", "encode script",
			"Narration artifact could not be serialized", err)
	}
	job.ScriptJSON = encoded
	job.AudioFile = script.AudioFile
	job.SetProgressComplete("Narration", fmt.Sprintf("Narration ready (%.1fs)", script.AudioSeconds))

	result := "produced"
	if !produced {
		result = "cache_hit"
	}
	attrs := append(logging.DecisionAttrs("narration_source", result, "fingerprint_lookup"),
		logging.Int("word_count", script.WordCount),
		logging.Float64("audio_seconds", script.AudioSeconds),
	)
	logger.Info("narration decision", logging.Args(attrs...)...)
	return nil
}

// produceScript runs the draft/render/measure loop inside the cache producer.
// One redraft with a proportionally adjusted target is allowed before the
// duration mismatch becomes the attempt's failure.
func (h *Handler) produceScript(ctx context.Context, job *queue.Job, params queue.ReelParams, dir string) (queue.ScriptAsset, error) {
	logger := logging.WithContext(ctx, h.logger)
	var empty queue.ScriptAsset

	target := params.TargetDuration
	tolerance := h.cfg.Narration.Tolerance
	brief := llm.ScriptBrief{
		Prompt:         job.Prompt,
		Style:          params.Style,
		TargetSeconds:  target,
		WordsPerMinute: h.cfg.Narration.WordsPerMinute,
	}

	attemptTarget := target
	for attempt := 1; attempt <= 2; attempt++ {
		brief.TargetSeconds = attemptTarget
		h.reportProgress(ctx, job, "Drafting narration script", 20)
		draft, err := h.generator.DraftScript(ctx, brief)
		if err != nil {
			return empty, services.Wrap(services.ErrTransient, "narration", "draft script",
				"The narration LLM request failed. Check connectivity and narration.api_key", err)
		}

		h.reportProgress(ctx, job, "Rendering narration audio", 55)
		result, err := h.synth.Synthesize(ctx, tts.Request{
			Text:       draft.Narration,
			Voice:      params.Voice,
			OutputPath: filepath.Join(dir, "narration.wav"),
		})
		if err != nil {
			return empty, services.Wrap(services.ErrExternalTool, "narration", "synthesize audio",
				"The TTS engine failed. Verify tts.command points at an installed binary", err)
		}
		if result.Seconds <= 0 {
			return empty, services.Wrap(services.ErrExternalTool, "narration", "measure audio",
				"Rendered narration has no measurable duration. Check that ffprobe is installed", nil)
		}

		deviation := math.Abs(result.Seconds-target) / target
		if deviation <= tolerance {
			return queue.ScriptAsset{
				Fingerprint:  job.Fingerprint,
				Narration:    draft.Narration,
				AudioFile:    result.AudioPath,
				WordCount:    len(strings.Fields(draft.Narration)),
				AudioSeconds: result.Seconds,
				GeneratedAt:  time.Now().UTC(),
			}, nil
		}
		if attempt == 1 {
			attemptTarget = target * target / result.Seconds
			attrs := append(logging.DecisionAttrs("narration_length", "redraft", "out_of_tolerance"),
				logging.Float64("measured_seconds", result.Seconds),
				logging.Float64("target_seconds", target),
				logging.Float64("adjusted_target_seconds", attemptTarget),
			)
			logger.Info("narration duration decision", logging.Args(attrs...)...)
			continue
		}
		return empty, services.Wrap(services.ErrDurationMismatch, "narration", "fit duration",
			fmt.Sprintf("Narration measured %.1fs against a %.1fs target after one redraft. Adjust the prompt or raise narration.tolerance", result.Seconds, target), nil)
	}
	return empty, nil
}

func (h *Handler) reportProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	job.SetProgress("Narration", message, percent)
	if h.store == nil {
		return
	}
	if err := h.store.UpdateProgress(ctx, job.ID, "Narration", message, percent); err != nil {
		logging.WithContext(ctx, h.logger).Debug("progress update failed", logging.Error(err))
	}
}

// HealthCheck verifies the narration dependencies are configured.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "narration"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(h.cfg.Narration.APIKey) == "" {
		return stage.Unhealthy(name, "narration.api_key not configured")
	}
	if strings.TrimSpace(h.cfg.TTSCommand()) == "" {
		return stage.Unhealthy(name, "tts.command not configured")
	}
	if h.cache == nil {
		return stage.Unhealthy(name, "asset cache unavailable")
	}
	return stage.Healthy(name)
}
