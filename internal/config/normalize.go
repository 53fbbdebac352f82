package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNarration()
	c.normalizeTTS()
	c.normalizeFootage()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeNarration() {
	c.Narration.APIKey = strings.TrimSpace(c.Narration.APIKey)
	if value := firstEnv("OPENROUTER_API_KEY", "DEEPSEEK_API_KEY"); value != "" {
		c.Narration.APIKey = value
	}
	c.Narration.BaseURL = strings.TrimSpace(c.Narration.BaseURL)
	if c.Narration.BaseURL == "" {
		c.Narration.BaseURL = defaultLLMBaseURL
	}
	c.Narration.Model = strings.TrimSpace(c.Narration.Model)
	if c.Narration.Model == "" {
		c.Narration.Model = defaultLLMModel
	}
	c.Narration.Referer = strings.TrimSpace(c.Narration.Referer)
	if c.Narration.Referer == "" {
		c.Narration.Referer = defaultLLMReferer
	}
	c.Narration.Title = strings.TrimSpace(c.Narration.Title)
	if c.Narration.Title == "" {
		c.Narration.Title = defaultLLMTitle
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Command = strings.TrimSpace(c.TTS.Command)
	if c.TTS.Command == "" {
		c.TTS.Command = defaultTTSCommand
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
}

func (c *Config) normalizeFootage() {
	c.Footage.APIKey = strings.TrimSpace(c.Footage.APIKey)
	if value := firstEnv("PEXELS_API_KEY"); value != "" {
		c.Footage.APIKey = value
	}
	c.Footage.BaseURL = strings.TrimSpace(c.Footage.BaseURL)
	if c.Footage.BaseURL == "" {
		c.Footage.BaseURL = defaultFootageBaseURL
	}
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	if c.Cache.TTLDays < 0 {
		c.Cache.TTLDays = 0
	}
	if c.Cache.MaxMiB < 0 {
		c.Cache.MaxMiB = 0
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.URL = strings.TrimSpace(c.Storage.URL)
	if value := firstEnv("SUPABASE_URL"); value != "" && c.Storage.URL == "" {
		c.Storage.URL = value
	}
	c.Storage.ServiceKey = strings.TrimSpace(c.Storage.ServiceKey)
	if value := firstEnv("SUPABASE_SERVICE_KEY", "SUPABASE_KEY"); value != "" {
		c.Storage.ServiceKey = value
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultStorageBucket
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// firstEnv returns the first non-empty value among the named environment
// variables. Environment values take precedence over file-sourced keys so
// deployments can inject credentials without editing config.toml.
func firstEnv(names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
