package footage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/llm"
	"reelforge/internal/services/pexels"
	"reelforge/internal/stage"
	"reelforge/internal/textutil"
)

// KeywordSuggester extracts stock search terms from narration text.
type KeywordSuggester interface {
	SuggestKeywords(ctx context.Context, narration string, limit int) ([]string, error)
}

// Handler selects and downloads stock clips for the footage_pending stage.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	cache    *assetcache.Cache
	keywords KeywordSuggester
	provider pexels.Searcher
	logger   *slog.Logger
}

// NewHandler constructs the footage handler with the real LLM and provider
// clients.
func NewHandler(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger) (*Handler, error) {
	provider, err := pexels.New(cfg.Footage.APIKey, cfg.Footage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("footage provider: %w", err)
	}
	suggester := llm.NewClient(llm.Config(cfg.NarrationLLM()))
	return NewHandlerWithDependencies(cfg, store, cache, logger, suggester, provider), nil
}

// NewHandlerWithDependencies allows injecting custom dependencies (used for tests).
func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, cache *assetcache.Cache, logger *slog.Logger, keywords KeywordSuggester, provider pexels.Searcher) *Handler {
	h := &Handler{cfg: cfg, store: store, cache: cache, keywords: keywords, provider: provider}
	h.SetLogger(logger)
	return h
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "footage")
}

// Prepare initializes progress messaging prior to Execute.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	job.InitProgress("Footage", "Selecting stock footage")
	return nil
}

// Execute extracts keywords, searches the provider, ranks candidates, and
// downloads the selected clips through the asset cache.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	script, err := stage.Script(job)
	if err != nil {
		return err
	}
	params := queue.ParamsFromJSON(job.ParamsJSON).
		WithDefaults(h.cfg.Narration.TargetSeconds, h.cfg.TTS.Voice)

	keywords := h.extractKeywords(ctx, logger, script.Narration)
	if len(keywords) == 0 {
		return services.Wrap(services.ErrValidation, "footage", "extract keywords",
			"No search keywords could be derived from the narration", nil)
	}

	h.reportProgress(ctx, job, "Searching stock footage", 20)
	candidates, searchErrs := h.searchCandidates(ctx, keywords, params.Orientation)
	if len(candidates) == 0 {
		if len(searchErrs) > 0 {
			return services.Wrap(services.ErrTransient, "footage", "search clips",
				"The stock footage provider is unavailable. Check connectivity and footage.api_key", errors.Join(searchErrs...))
		}
		return services.Wrap(services.ErrNotFound, "footage", "search clips",
			"No stock clips matched the narration keywords. Try a more visual prompt", nil)
	}

	rankClips(candidates)
	needed := clipBudget(candidates, params.TargetDuration, h.cfg.Assembly.SegmentMaxSeconds, h.cfg.Footage.MaxClips)
	selected := candidates[:needed]

	downloaded, err := h.downloadClips(ctx, job, selected)
	if err != nil {
		return err
	}

	encoded, err := queue.EncodeClips(downloaded)
	if err != nil {
		return services.Wrap(services.ErrValidation, "footage", "encode clips",
			"Clip selection could not be serialized", err)
	}
	job.ClipsJSON = encoded
	job.SetProgressComplete("Footage", fmt.Sprintf("%d clips ready", len(downloaded)))

	attrs := append(logging.DecisionAttrs("clip_selection", "selected", "score_then_duration"),
		logging.Int("keywords", len(keywords)),
		logging.Int("candidates", len(candidates)),
		logging.Int("selected", len(downloaded)),
	)
	logger.Info("footage decision", logging.Args(attrs...)...)
	return nil
}

// extractKeywords asks the LLM for search terms and falls back to token
// frequency over the narration when the model fails or returns nothing.
func (h *Handler) extractKeywords(ctx context.Context, logger *slog.Logger, narration string) []string {
	limit := h.cfg.Footage.KeywordLimit
	keywords, err := h.keywords.SuggestKeywords(ctx, narration, limit)
	if err == nil && len(keywords) > 0 {
		attrs := append(logging.DecisionAttrs("keyword_source", "llm", "model_suggestion"),
			logging.Int("keywords", len(keywords)),
		)
		logger.Info("keyword decision", logging.Args(attrs...)...)
		return keywords
	}
	if err != nil {
		logging.WarnWithContext(logger, "keyword suggestion failed", "keyword_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "falling back to narration token frequency"),
			logging.String(logging.FieldImpact, "clip search uses literal narration terms"),
		)
	}
	keywords = textutil.Keywords(narration, limit)
	if len(keywords) == 0 {
		fields := strings.Fields(narration)
		if len(fields) > limit {
			fields = fields[:limit]
		}
		keywords = fields
	}
	attrs := append(logging.DecisionAttrs("keyword_source", "fallback", "token_frequency"),
		logging.Int("keywords", len(keywords)),
	)
	logger.Info("keyword decision", logging.Args(attrs...)...)
	return keywords
}

// searchCandidates queries the provider per keyword and merges results,
// deduplicating by source id. Score counts how many search terms surfaced
// the clip.
func (h *Handler) searchCandidates(ctx context.Context, keywords []string, orientation string) ([]queue.FootageClip, []error) {
	opts := pexels.SearchOptions{
		Orientation: orientation,
		PerPage:     h.cfg.Footage.PerPage,
		MinDuration: int(h.cfg.Footage.MinClipSeconds),
	}
	minSeconds := h.cfg.Footage.MinClipSeconds

	merged := make(map[string]int)
	candidates := make([]queue.FootageClip, 0, len(keywords)*opts.PerPage)
	var searchErrs []error
	for _, keyword := range keywords {
		resp, err := h.provider.SearchVideos(ctx, keyword, opts)
		if err != nil {
			searchErrs = append(searchErrs, fmt.Errorf("search %q: %w", keyword, err))
			continue
		}
		for _, video := range resp.Videos {
			clip, ok := clipFromVideo(video, minSeconds, orientation)
			if !ok {
				continue
			}
			if idx, seen := merged[clip.SourceID]; seen {
				candidates[idx].Score++
				continue
			}
			clip.Score = 1
			merged[clip.SourceID] = len(candidates)
			candidates = append(candidates, clip)
		}
	}
	return candidates, searchErrs
}

// downloadClips fetches the selected renditions through the asset cache with
// bounded concurrency. Already cached clips skip the network entirely.
func (h *Handler) downloadClips(ctx context.Context, job *queue.Job, selected []queue.FootageClip) ([]queue.FootageClip, error) {
	total := len(selected)
	downloaded := make([]queue.FootageClip, total)
	var done atomic.Int64
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Footage.DownloadConcurrency)
	for i, candidate := range selected {
		i, candidate := i, candidate
		g.Go(func() error {
			cached, err := h.cache.GetOrCreateClip(gctx, candidate.SourceID, func(ctx context.Context, dir string) (queue.FootageClip, error) {
				dest := filepath.Join(dir, "clip.mp4")
				if err := h.provider.Download(ctx, candidate.URL, dest); err != nil {
					return queue.FootageClip{}, err
				}
				produced := candidate
				produced.LocalFile = dest
				return produced, nil
			})
			if err != nil {
				return fmt.Errorf("clip %s: %w", candidate.SourceID, err)
			}
			// Cached payloads may predate this search; keep the fresh
			// metadata and only adopt the cached file location.
			merged := candidate
			merged.LocalFile = cached.LocalFile
			downloaded[i] = merged

			finished := done.Add(1)
			progressMu.Lock()
			h.reportProgress(gctx, job, fmt.Sprintf("Downloading clips (%d/%d)", finished, total),
				40+55*float64(finished)/float64(total))
			progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "footage", "download clips",
			"Clip download failed. The provider CDN may be flaky; the stage will retry", err)
	}
	return downloaded, nil
}

func (h *Handler) reportProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	job.SetProgress("Footage", message, percent)
	if h.store == nil {
		return
	}
	if err := h.store.UpdateProgress(ctx, job.ID, "Footage", message, percent); err != nil {
		logging.WithContext(ctx, h.logger).Debug("progress update failed", logging.Error(err))
	}
}

// HealthCheck verifies the footage dependencies are configured.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "footage"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(h.cfg.Footage.APIKey) == "" {
		return stage.Unhealthy(name, "footage.api_key not configured")
	}
	if h.provider == nil {
		return stage.Unhealthy(name, "provider client unavailable")
	}
	if h.cache == nil {
		return stage.Unhealthy(name, "asset cache unavailable")
	}
	return stage.Healthy(name)
}
