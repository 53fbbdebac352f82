package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNarration(); err != nil {
		return err
	}
	if err := c.validateFootage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNarration() error {
	if c.Narration.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelforge/config.toml"
		}
		return fmt.Errorf("narration.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'reelforge config init')", defaultPath)
	}
	if err := ensurePositiveMap(map[string]int{
		"narration.timeout_seconds":  c.Narration.TimeoutSeconds,
		"narration.words_per_minute": c.Narration.WordsPerMinute,
	}); err != nil {
		return err
	}
	if c.Narration.TargetSeconds <= 0 {
		return errors.New("narration.target_seconds must be positive")
	}
	if c.Narration.Tolerance <= 0 || c.Narration.Tolerance >= 1 {
		return errors.New("narration.tolerance must be between 0 and 1 exclusive")
	}
	return nil
}

func (c *Config) validateFootage() error {
	if c.Footage.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelforge/config.toml"
		}
		return fmt.Errorf("footage.api_key is required. Set PEXELS_API_KEY env var or edit %s (create with 'reelforge config init')", defaultPath)
	}
	if err := ensurePositiveMap(map[string]int{
		"footage.per_page":             c.Footage.PerPage,
		"footage.max_clips":            c.Footage.MaxClips,
		"footage.keyword_limit":        c.Footage.KeywordLimit,
		"footage.download_concurrency": c.Footage.DownloadConcurrency,
	}); err != nil {
		return err
	}
	if c.Footage.PerPage > 80 {
		return errors.New("footage.per_page must be at most 80")
	}
	if c.Footage.MinClipSeconds <= 0 {
		return errors.New("footage.min_clip_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.max_attempts":       c.Queue.MaxAttempts,
		"queue.retry_base_seconds": c.Queue.RetryBaseSeconds,
	}); err != nil {
		return err
	}
	if c.Queue.RetryCapSeconds < c.Queue.RetryBaseSeconds {
		return errors.New("queue.retry_cap_seconds must be at least queue.retry_base_seconds")
	}
	if c.Queue.HeartbeatInterval <= 0 {
		return errors.New("queue.heartbeat_interval must be positive")
	}
	if c.Queue.HeartbeatTimeout <= 0 {
		return errors.New("queue.heartbeat_timeout must be positive")
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if strings.TrimSpace(c.TTS.Command) == "" {
		return errors.New("tts.command must be set")
	}
	for _, placeholder := range []string{"{text_file}", "{output}"} {
		if !strings.Contains(c.TTS.Command, placeholder) {
			return fmt.Errorf("tts.command must include the %s placeholder", placeholder)
		}
	}
	if c.TTS.TimeoutSeconds <= 0 {
		return errors.New("tts.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if err := ensurePositiveMap(map[string]int{
		"assembly.width":           c.Assembly.Width,
		"assembly.height":          c.Assembly.Height,
		"assembly.fps":             c.Assembly.FPS,
		"assembly.timeout_seconds": c.Assembly.TimeoutSeconds,
	}); err != nil {
		return err
	}
	// yuv420p chroma subsampling requires even frame dimensions.
	if c.Assembly.Width%2 != 0 || c.Assembly.Height%2 != 0 {
		return errors.New("assembly.width and assembly.height must be even")
	}
	if c.Assembly.SegmentMinSeconds <= 0 {
		return errors.New("assembly.segment_min_seconds must be positive")
	}
	if c.Assembly.SegmentMaxSeconds < c.Assembly.SegmentMinSeconds {
		return errors.New("assembly.segment_max_seconds must be at least assembly.segment_min_seconds")
	}
	if c.Assembly.DurationToleranceSeconds < 0 {
		return errors.New("assembly.duration_tolerance_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		if strings.TrimSpace(c.Paths.OutputDir) == "" {
			return errors.New("paths.output_dir must be set when storage.backend is local")
		}
	case "http":
		if strings.TrimSpace(c.Storage.URL) == "" {
			return errors.New("storage.url must be set when storage.backend is http")
		}
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage.bucket must be set when storage.backend is http")
		}
		if strings.TrimSpace(c.Storage.ServiceKey) == "" {
			return errors.New("storage.service_key must be set when storage.backend is http (or set SUPABASE_SERVICE_KEY)")
		}
	default:
		return fmt.Errorf("storage.backend must be local or http, got %q", c.Storage.Backend)
	}
	if c.Storage.TimeoutSeconds <= 0 {
		return errors.New("storage.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
