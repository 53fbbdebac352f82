package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-llm-key")
	t.Setenv("PEXELS_API_KEY", "test-footage-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tempHome, ".cache"))

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "reelforge", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "reels") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7680" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Narration.APIKey != "test-llm-key" {
		t.Fatalf("expected narration key from env, got %q", cfg.Narration.APIKey)
	}
	if cfg.Footage.APIKey != "test-footage-key" {
		t.Fatalf("expected footage key from env, got %q", cfg.Footage.APIKey)
	}
	if cfg.Narration.BaseURL != config.Default().Narration.BaseURL {
		t.Fatalf("unexpected narration base url: %q", cfg.Narration.BaseURL)
	}
	if cfg.Footage.BaseURL != "https://api.pexels.com" {
		t.Fatalf("unexpected footage base url: %q", cfg.Footage.BaseURL)
	}
	if cfg.Queue.PollInterval != 2 {
		t.Fatalf("unexpected poll interval: %d", cfg.Queue.PollInterval)
	}
	if cfg.Queue.HeartbeatInterval != config.Default().Queue.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Queue.HeartbeatInterval)
	}
	if cfg.Queue.HeartbeatTimeout != config.Default().Queue.HeartbeatTimeout {
		t.Fatalf("unexpected heartbeat timeout: %d", cfg.Queue.HeartbeatTimeout)
	}
	if cfg.Narration.TargetSeconds != 30 {
		t.Fatalf("unexpected target seconds: %v", cfg.Narration.TargetSeconds)
	}
	if cfg.Narration.Tolerance != 0.15 {
		t.Fatalf("unexpected tolerance: %v", cfg.Narration.Tolerance)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("unexpected storage backend: %q", cfg.Storage.Backend)
	}
	if cfg.CacheTTL() != 14*24*time.Hour {
		t.Fatalf("unexpected cache ttl: %v", cfg.CacheTTL())
	}
	if cfg.CacheMaxBytes() != 256*1024*1024 {
		t.Fatalf("unexpected cache capacity: %d", cfg.CacheMaxBytes())
	}
	if !strings.Contains(cfg.Cache.Dir, "reelforge") {
		t.Fatalf("unexpected cache dir: %q", cfg.Cache.Dir)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Cache.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelforge.toml")

	type payload struct {
		Narration struct {
			APIKey        string  `toml:"api_key"`
			Model         string  `toml:"model"`
			TargetSeconds float64 `toml:"target_seconds"`
		} `toml:"narration"`
		Footage struct {
			APIKey   string `toml:"api_key"`
			MaxClips int    `toml:"max_clips"`
		} `toml:"footage"`
		Queue struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"queue"`
		Assembly struct {
			FPS int `toml:"fps"`
		} `toml:"assembly"`
	}
	custom := payload{}
	custom.Narration.APIKey = "file-llm"
	custom.Narration.Model = "openai/gpt-4o"
	custom.Narration.TargetSeconds = 45
	custom.Footage.APIKey = "file-pexels"
	custom.Footage.MaxClips = 9
	custom.Queue.HeartbeatInterval = 20
	custom.Queue.HeartbeatTimeout = 200
	custom.Assembly.FPS = 24
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Narration.Model != "openai/gpt-4o" {
		t.Fatalf("expected model override, got %q", cfg.Narration.Model)
	}
	if cfg.Narration.TargetSeconds != 45 {
		t.Fatalf("expected target override, got %v", cfg.Narration.TargetSeconds)
	}
	if cfg.Footage.MaxClips != 9 {
		t.Fatalf("expected max clips override, got %d", cfg.Footage.MaxClips)
	}
	if cfg.Queue.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Queue.HeartbeatInterval)
	}
	if cfg.Queue.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Queue.HeartbeatTimeout)
	}
	if cfg.Assembly.FPS != 24 {
		t.Fatalf("expected fps override, got %d", cfg.Assembly.FPS)
	}
	if cfg.Footage.PerPage != config.Default().Footage.PerPage {
		t.Fatalf("expected per_page default, got %d", cfg.Footage.PerPage)
	}
}

func TestEnvVarOverridesConfigFileForAPIKeys(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelforge.toml")

	type payload struct {
		Narration struct {
			APIKey string `toml:"api_key"`
		} `toml:"narration"`
		Footage struct {
			APIKey string `toml:"api_key"`
		} `toml:"footage"`
		Storage struct {
			Backend    string `toml:"backend"`
			URL        string `toml:"url"`
			ServiceKey string `toml:"service_key"`
		} `toml:"storage"`
	}
	custom := payload{}
	custom.Narration.APIKey = "file-llm"
	custom.Footage.APIKey = "file-pexels"
	custom.Storage.Backend = "http"
	custom.Storage.URL = "https://file.example.co"
	custom.Storage.ServiceKey = "file-service"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "env-llm")
	t.Setenv("PEXELS_API_KEY", "env-pexels")
	t.Setenv("SUPABASE_SERVICE_KEY", "env-service")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Narration.APIKey != "env-llm" {
		t.Errorf("expected narration key from env, got %q", cfg.Narration.APIKey)
	}
	if cfg.Footage.APIKey != "env-pexels" {
		t.Errorf("expected footage key from env, got %q", cfg.Footage.APIKey)
	}
	if cfg.Storage.ServiceKey != "env-service" {
		t.Errorf("expected service key from env, got %q", cfg.Storage.ServiceKey)
	}
	if cfg.Storage.URL != "https://file.example.co" {
		t.Errorf("expected storage url from file, got %q", cfg.Storage.URL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_openrouter_api_key_here") {
		t.Fatalf("sample config missing placeholder LLM key: %s", contents)
	}
	if !strings.Contains(string(contents), "your_pexels_api_key_here") {
		t.Fatalf("sample config missing placeholder footage key: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	// On Windows join uses backslashes; skip path expectation specifics when running there to avoid
	// differences in drive letters during CI.
	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.StagingDir, "reelforge") {
			t.Fatalf("expected staging dir to contain reelforge, got %q", cfg.Paths.StagingDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Narration.APIKey = "llm-key"
		cfg.Footage.APIKey = "footage-key"
		return cfg
	}

	cfg := valid()
	cfg.Queue.HeartbeatInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat interval")
	}

	cfg = valid()
	cfg.Queue.HeartbeatTimeout = cfg.Queue.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = valid()
	cfg.Queue.RetryCapSeconds = cfg.Queue.RetryBaseSeconds - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when retry cap below base")
	}

	cfg = valid()
	cfg.Narration.Tolerance = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tolerance out of range")
	}

	cfg = valid()
	cfg.TTS.Command = "engine --out {output}"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tts command missing {text_file}")
	}

	cfg = valid()
	cfg.Footage.PerPage = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for per_page")
	}

	cfg = valid()
	cfg.Assembly.Width = 1079
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for odd frame width")
	}

	cfg = valid()
	cfg.Assembly.SegmentMaxSeconds = cfg.Assembly.SegmentMinSeconds - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when segment max below min")
	}

	cfg = valid()
	cfg.Storage.Backend = "http"
	cfg.Storage.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when http storage lacks url")
	}

	cfg = valid()
	cfg.Storage.Backend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestMissingProviderKeysRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Footage.APIKey = "footage-key"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "narration.api_key") {
		t.Fatalf("expected narration key error, got %v", err)
	}

	cfg = config.Default()
	cfg.Narration.APIKey = "llm-key"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "footage.api_key") {
		t.Fatalf("expected footage key error, got %v", err)
	}
}
