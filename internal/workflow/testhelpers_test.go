package workflow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/stage"
	"reelforge/internal/testsupport"
	"reelforge/internal/workflow"
)

type stubStage struct {
	name        string
	prepareErr  error
	executeErr  error
	prepareHook func(*queue.Job)
	executeHook func(*queue.Job) error
	health      stage.Health
	executions  atomic.Int64
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, job *queue.Job) error {
	s.executions.Add(1)
	if s.executeHook != nil {
		return s.executeHook(job)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

// stubStages bundles one stub per pipeline stage. The intake stub titles the
// job and the upload stub records a result reference, matching the minimum
// the real handlers contribute for a job to reach the succeeded stage.
type stubStages struct {
	intake    *stubStage
	narration *stubStage
	footage   *stubStage
	planner   *stubStage
	assembly  *stubStage
	upload    *stubStage
}

func newStubStages() *stubStages {
	s := &stubStages{
		intake:    newStubStage("intake"),
		narration: newStubStage("narration"),
		footage:   newStubStage("footage"),
		planner:   newStubStage("planner"),
		assembly:  newStubStage("assembly"),
		upload:    newStubStage("upload"),
	}
	s.intake.executeHook = func(job *queue.Job) error {
		job.Title = "Stub Reel"
		return nil
	}
	s.upload.executeHook = func(job *queue.Job) error {
		job.ResultRef = "/published/" + job.ID + ".mp4"
		return nil
	}
	return s
}

func (s *stubStages) set() workflow.StageSet {
	return workflow.StageSet{
		Intake:    s.intake,
		Narration: s.narration,
		Footage:   s.footage,
		Planner:   s.planner,
		Assembly:  s.assembly,
		Upload:    s.upload,
	}
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	refs      []string
	failed    []string
	reasons   []string
	cancelled []string
}

func (r *recordingNotifier) NotifyReelSubmitted(context.Context, string) error { return nil }

func (r *recordingNotifier) NotifyReelCompleted(_ context.Context, title, resultRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, title)
	r.refs = append(r.refs, resultRef)
	return nil
}

func (r *recordingNotifier) NotifyReelFailed(_ context.Context, title, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, title)
	r.reasons = append(r.reasons, reason)
	return nil
}

func (r *recordingNotifier) NotifyReelCancelled(_ context.Context, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, title)
	return nil
}

func (r *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) counts() (completed, failed, cancelled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), len(r.failed), len(r.cancelled)
}

func (r *recordingNotifier) lastRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.refs) == 0 {
		return ""
	}
	return r.refs[len(r.refs)-1]
}

func (r *recordingNotifier) lastReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reasons) == 0 {
		return ""
	}
	return r.reasons[len(r.reasons)-1]
}

// workflowConfig shrinks the poll and retry timings so multi-stage runs
// finish quickly under test.
func workflowConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Queue.PollInterval = 0
	cfg.Queue.RetryBaseSeconds = 0
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store, set workflow.StageSet) (*workflow.Manager, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)
	return mgr, notifier
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func awaitJob(t *testing.T, store *queue.Store, id string, want func(*queue.Job) bool) *queue.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s", id)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && want(job) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}
