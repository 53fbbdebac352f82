package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/stage"
	"reelforge/internal/testsupport"
	"reelforge/internal/workflow"
)

type cliStage struct {
	name string
	gate <-chan struct{}
	err  error
}

func (s *cliStage) Prepare(context.Context, *queue.Job) error { return nil }

func (s *cliStage) Execute(ctx context.Context, job *queue.Job) error {
	if s.err != nil {
		return s.err
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *cliStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

// gatedStageSet blocks intake until the gate opens so submitted reels stay
// observable in pending or running state.
func gatedStageSet(gate <-chan struct{}) workflow.StageSet {
	return workflow.StageSet{
		Intake:    &cliStage{name: "intake", gate: gate},
		Narration: &cliStage{name: "narration"},
		Footage:   &cliStage{name: "footage"},
		Planner:   &cliStage{name: "planner"},
		Assembly:  &cliStage{name: "assembly"},
		Upload:    &cliStage{name: "upload"},
	}
}

// failingStageSet fails intake permanently so submissions land in failed
// state on the first attempt.
func failingStageSet() workflow.StageSet {
	set := gatedStageSet(nil)
	set.Intake = &cliStage{
		name: "intake",
		err:  services.Wrap(services.ErrPermanent, "intake", "execute", "synthetic failure", nil),
	}
	return set
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	hub        *logging.StreamHub
	apiAddr    string
	configPath string
	openGate   func()
}

// setupOfflineEnv prepares a config file and store without a daemon. The
// configured API bind points at a closed port so commands fall back to
// direct store access.
func setupOfflineEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIBind = deadAPIAddr(t)
	configPath := writeTestConfig(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		apiAddr:    cfg.Paths.APIBind,
		configPath: configPath,
	}
}

// setupDaemonEnv boots a daemon with the given stages (gated by default) and
// writes a matching config file for the CLI.
func setupDaemonEnv(t *testing.T, stages *workflow.StageSet) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := writeTestConfig(t, cfg)

	// The CLI re-loads the validated file; the in-process daemon runs on a
	// mutated copy with fast polling and no service keys so preflight stays
	// offline.
	cfg.Narration.APIKey = ""
	cfg.Footage.APIKey = ""
	cfg.Queue.PollInterval = 0
	cfg.Queue.RetryBaseSeconds = 0

	store := testsupport.MustOpenStore(t, cfg)
	gate := make(chan struct{})
	set := gatedStageSet(gate)
	if stages != nil {
		set = *stages
	}
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)

	hub := logging.NewStreamHub(64)
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr, "", hub, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	openGate := sync.OnceFunc(func() { close(gate) })
	t.Cleanup(openGate)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		hub:        hub,
		apiAddr:    d.APIAddress(),
		configPath: configPath,
		openGate:   openGate,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", env.configPath}
	if env.apiAddr != "" {
		flags = append(flags, "--api", env.apiAddr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	encoded, err := toml.Marshal(*cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// deadAPIAddr reserves an ephemeral port and releases it so connections are
// refused.
func deadAPIAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("release port: %v", err)
	}
	return addr
}

func waitForReelStatus(t *testing.T, env *cliTestEnv, id string, want queue.Status) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := env.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get reel %s: %v", id, err)
		}
		if job != nil && job.Status == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("reel %s never reached status %s", id, want)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
