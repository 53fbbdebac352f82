package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Queue contains polling cadence, heartbeat timing, and the retry policy
// applied when a stage fails.
type Queue struct {
	PollInterval      int `toml:"poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
	MaxAttempts       int `toml:"max_attempts"`
	RetryBaseSeconds  int `toml:"retry_base_seconds"`
	RetryCapSeconds   int `toml:"retry_cap_seconds"`
}

// Narration contains the LLM connection used to draft scripts plus the
// sizing targets the narration stage enforces.
type Narration struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	TargetSeconds  float64 `toml:"target_seconds"`
	// Tolerance is the accepted relative deviation between measured audio
	// length and the target, e.g. 0.15 for +/-15%.
	Tolerance      float64 `toml:"tolerance"`
	WordsPerMinute int     `toml:"words_per_minute"`
}

// TTS contains the text-to-speech engine invocation settings. Command is a
// template; {text_file}, {voice}, and {output} are substituted per call.
type TTS struct {
	Command        string `toml:"command"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Footage contains the stock footage provider connection and clip selection
// constraints.
type Footage struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	PerPage             int     `toml:"per_page"`
	MinClipSeconds      float64 `toml:"min_clip_seconds"`
	MaxClips            int     `toml:"max_clips"`
	KeywordLimit        int     `toml:"keyword_limit"`
	DownloadConcurrency int     `toml:"download_concurrency"`
}

// Assembly contains render geometry and ffmpeg limits.
type Assembly struct {
	Width                    int     `toml:"width"`
	Height                   int     `toml:"height"`
	FPS                      int     `toml:"fps"`
	SegmentMinSeconds        float64 `toml:"segment_min_seconds"`
	SegmentMaxSeconds        float64 `toml:"segment_max_seconds"`
	TimeoutSeconds           int     `toml:"timeout_seconds"`
	DurationToleranceSeconds float64 `toml:"duration_tolerance_seconds"`
}

// Cache contains asset cache placement and retention settings. A ttl_days or
// max_mib of zero disables the corresponding limit.
type Cache struct {
	Dir     string `toml:"dir"`
	TTLDays int    `toml:"ttl_days"`
	MaxMiB  int    `toml:"max_mib"`
}

// Storage contains the upload backend for finished reels.
type Storage struct {
	Backend        string `toml:"backend"`
	URL            string `toml:"url"`
	Bucket         string `toml:"bucket"`
	ServiceKey     string `toml:"service_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	// StageOverrides raises or lowers the log level for a single stage,
	// keyed by stage handler name (for example narration = "debug").
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Queue: poll cadence, heartbeats, and retry policy
//   - Narration: LLM connection and script sizing
//   - TTS: speech synthesis engine command
//   - Footage: stock footage provider and clip constraints
//   - Assembly: render geometry and ffmpeg limits
//   - Cache: reusable asset cache placement and retention
//   - Storage: upload backend for finished reels
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Narration     Narration     `toml:"narration"`
	TTS           TTS           `toml:"tts"`
	Footage       Footage       `toml:"footage"`
	Assembly      Assembly      `toml:"assembly"`
	Cache         Cache         `toml:"cache"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/reelforge/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// output storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	if strings.TrimSpace(c.Cache.Dir) != "" {
		if err := os.MkdirAll(c.Cache.Dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory %q: %w", c.Cache.Dir, err)
		}
	}
	return nil
}

// LogDir returns the resolved log directory.
func (c *Config) LogDir() string {
	return c.Paths.LogDir
}

// FFmpegBinary returns the ffmpeg executable name used for assembly.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// TTSCommand returns the speech engine command template.
func (c *Config) TTSCommand() string {
	return strings.TrimSpace(c.TTS.Command)
}

// CacheTTL returns the asset cache entry lifetime. Zero disables expiry.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLDays <= 0 {
		return 0
	}
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// CacheMaxBytes returns the asset cache capacity in bytes. Zero disables the cap.
func (c *Config) CacheMaxBytes() int64 {
	if c.Cache.MaxMiB <= 0 {
		return 0
	}
	return int64(c.Cache.MaxMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "reelforge", "assets")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/reelforge/assets"
	}
	return filepath.Join(home, ".cache", "reelforge", "assets")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM connection settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// NarrationLLM returns the LLM connection settings for script drafting and
// keyword extraction.
func (c *Config) NarrationLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.Narration.APIKey),
		BaseURL:        strings.TrimSpace(c.Narration.BaseURL),
		Model:          strings.TrimSpace(c.Narration.Model),
		Referer:        strings.TrimSpace(c.Narration.Referer),
		Title:          strings.TrimSpace(c.Narration.Title),
		TimeoutSeconds: c.Narration.TimeoutSeconds,
	}
}
