package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/assembly"
	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/deps"
	"reelforge/internal/footage"
	"reelforge/internal/intake"
	"reelforge/internal/logging"
	"reelforge/internal/narration"
	"reelforge/internal/notifications"
	"reelforge/internal/planner"
	"reelforge/internal/queue"
	"reelforge/internal/uploader"
	"reelforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the reelforge daemon runtime loop and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logs, err := openRunLogs(cfg, opts)
	if err != nil {
		return err
	}
	logDependencySnapshot(logs.logger, cfg)
	pruneOldRunLogs(logs, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logs.logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	workflowManager := workflow.NewManagerWithOptions(cfg, store, logs.logger, notifier, logs.hub)
	if err := registerStages(workflowManager, cfg, store, logs.logger); err != nil {
		logs.logger.Error("configure workflow stages", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logs.logger, workflowManager, logs.logPath, logs.hub, logs.archive, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// The HTTP API only exists once Start succeeds, so a refused start is
	// fatal rather than a degraded-but-queryable state.
	if err := d.Start(signalCtx); err != nil {
		logs.logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, binaries, and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logs.logger.Info("reelforge daemon shutting down")
	return nil
}

// registerStages builds the production stage handlers and hands them to the
// manager. The asset cache is shared by every stage that touches remote
// artifacts so narration audio and clip downloads dedupe across jobs.
func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) error {
	if mgr == nil || cfg == nil {
		return fmt.Errorf("workflow manager is not configured")
	}

	cache, err := assetcache.New(cfg.Cache.Dir, cfg.CacheMaxBytes(), cfg.CacheTTL(), logger)
	if err != nil {
		return fmt.Errorf("open asset cache: %w", err)
	}
	footageStage, err := footage.NewHandler(cfg, store, cache, logger)
	if err != nil {
		return fmt.Errorf("configure footage stage: %w", err)
	}
	plannerStage, err := planner.NewHandler(cfg, store, cache, logger)
	if err != nil {
		return fmt.Errorf("configure planner stage: %w", err)
	}
	assemblyStage, err := assembly.NewHandler(cfg, store, cache, logger)
	if err != nil {
		return fmt.Errorf("configure assembly stage: %w", err)
	}
	uploadStage, err := uploader.NewHandler(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("configure upload stage: %w", err)
	}

	mgr.ConfigureStages(workflow.StageSet{
		Intake:    intake.NewHandler(cfg, logger),
		Narration: narration.NewHandler(cfg, store, cache, logger),
		Footage:   footageStage,
		Planner:   plannerStage,
		Assembly:  assemblyStage,
		Upload:    uploadStage,
	})
	return nil
}

// runLogs bundles the logging surfaces a daemon run wires together: the
// console and file logger, the in-memory hub behind the HTTP log API, and
// the on-disk event archive that backs scrollback past the hub window.
type runLogs struct {
	logger     *slog.Logger
	hub        *logging.StreamHub
	archive    *logging.EventArchive
	logPath    string
	eventsPath string
}

func openRunLogs(cfg *config.Config, opts Options) (*runLogs, error) {
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logs := &runLogs{
		hub:        logging.NewStreamHub(4096),
		logPath:    filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelforge-%s.log", runID)),
		eventsPath: filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelforge-%s.events", runID)),
	}
	archive, err := logging.NewEventArchive(logs.eventsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", err)
	} else if archive != nil {
		logs.archive = archive
		logs.hub.AddSink(archive)
	}

	var sessionID, debugLogPath string
	if opts.Diagnostic {
		sessionID = uuid.NewString()
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return nil, fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath = filepath.Join(debugDir, filepath.Base(logs.logPath))
	}

	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logs.logPath},
		ErrorOutputPaths: []string{"stderr", logs.logPath},
		Development:      opts.Development,
		Stream:           logs.hub,
		SessionID:        sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if opts.Diagnostic {
		logger = attachDiagnosticLogger(logger, cfg, sessionID, debugLogPath)
	}
	logs.logger = logger

	if err := pointCurrentLog(cfg.Paths.LogDir, logs.logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelforge.log link: %v\n", err)
	}
	return logs, nil
}

// attachDiagnosticLogger tees a verbose JSON logger next to the main one so a
// diagnostic session captures debug records without changing console output.
func attachDiagnosticLogger(logger *slog.Logger, cfg *config.Config, sessionID, debugLogPath string) *slog.Logger {
	debugLogger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{debugLogPath},
		ErrorOutputPaths: []string{debugLogPath},
		Development:      true,
		SessionID:        sessionID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
	} else {
		logger = logging.TeeLogger(logger, debugLogger.Handler())
		if err := pointCurrentLog(filepath.Join(cfg.Paths.LogDir, "debug"), debugLogPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update debug/reelforge.log link: %v\n", err)
		}
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

func pruneOldRunLogs(logs *runLogs, cfg *config.Config) {
	logging.CleanupOldLogs(logs.logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reelforge-*.log", Exclude: []string{logs.logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reelforge-*.events", Exclude: []string{logs.eventsPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "jobs"), Pattern: "*.log"},
	)
}

// pointCurrentLog repoints the stable reelforge.log name at this run's file.
// Hard links cover filesystems that refuse symlinks.
func pointCurrentLog(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	link := filepath.Join(logDir, "reelforge.log")
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if os.Symlink(target, link) == nil {
		return nil
	}
	if err := os.Link(target, link); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("narration_key_present", strings.TrimSpace(cfg.Narration.APIKey) != ""),
		logging.Bool("footage_key_present", strings.TrimSpace(cfg.Footage.APIKey) != ""),
	}
	for _, bin := range []struct{ name, command string }{
		{"ffmpeg", cfg.FFmpegBinary()},
		{"ffprobe", cfg.FFprobeBinary()},
		{"tts", deps.HeadCommand(cfg.TTSCommand())},
	} {
		attrs = append(attrs,
			logging.Bool(bin.name+"_available", deps.Available(bin.command)),
			logging.String(bin.name+"_binary", bin.command),
		)
	}
	attrs = append(attrs, logging.String("storage_backend", strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))))
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
