package queue

import (
	"strings"
	"time"
)

// Stage identifies the pipeline step a job is currently in. Stages advance
// strictly in the order of stageOrder; a stage is only ever re-entered as a
// retry of itself.
type Stage string

const (
	StageQueued         Stage = "queued"
	StageScriptPending  Stage = "script_pending"
	StageFootagePending Stage = "footage_pending"
	StageAudioReady     Stage = "audio_ready"
	StageAssembling     Stage = "assembling"
	StageUploading      Stage = "uploading"
	StageSucceeded      Stage = "succeeded"
)

// Status tracks worker execution within a stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CancelledByUserMessage is the progress message recorded when a cancel
// request is finalized.
const CancelledByUserMessage = "Cancelled by user"

var stageOrder = []Stage{
	StageQueued,
	StageScriptPending,
	StageFootagePending,
	StageAudioReady,
	StageAssembling,
	StageUploading,
	StageSucceeded,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(stageOrder))
	for _, stage := range stageOrder {
		set[stage] = struct{}{}
	}
	return set
}()

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of pipeline stages.
func AllStages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// AllStatuses returns the list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// NextStage returns the stage that follows the given one. The second return
// is false for the final stage and for unknown values.
func NextStage(stage Stage) (Stage, bool) {
	for i, candidate := range stageOrder {
		if candidate == stage {
			if i+1 < len(stageOrder) {
				return stageOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status ends a job's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ProcessingLane partitions the pipeline into the network-bound generate
// stages and the CPU/disk-bound render stages. Each lane runs its own poll
// loop so a long assembly never starves script or footage work.
type ProcessingLane string

const (
	LaneGenerate ProcessingLane = "generate"
	LaneRender   ProcessingLane = "render"
)

var laneStages = map[ProcessingLane][]Stage{
	LaneGenerate: {StageQueued, StageScriptPending, StageFootagePending, StageAudioReady},
	LaneRender:   {StageAssembling, StageUploading},
}

// StagesForLane returns the stages serviced by a lane, in pipeline order.
func StagesForLane(lane ProcessingLane) []Stage {
	stages := laneStages[lane]
	cp := make([]Stage, len(stages))
	copy(cp, stages)
	return cp
}

// LaneForStage maps a stage to the lane that services it.
func LaneForStage(stage Stage) ProcessingLane {
	switch stage {
	case StageAssembling, StageUploading, StageSucceeded:
		return LaneRender
	default:
		return LaneGenerate
	}
}

// LaneForJob maps a job to its processing lane for observability purposes.
func LaneForJob(job *Job) ProcessingLane {
	if job == nil {
		return LaneGenerate
	}
	return LaneForStage(job.Stage)
}

// Job represents a reel request persisted in SQLite. The stage and status
// columns are mutated only through the Store's transition operations; the
// remaining columns capture request parameters, per-stage artifacts, and
// progress so stages can coordinate without additional state.
type Job struct {
	ID              string
	Prompt          string
	ParamsJSON      string
	Fingerprint     string
	Title           string
	Stage           Stage
	Status          Status
	Attempt         int
	LastError       string
	ResultRef       string
	ScriptJSON      string
	ClipsJSON       string
	PlanJSON        string
	AudioFile       string
	AssembledFile   string
	WorkDir         string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	JobLogPath      string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	NextRunAt       time.Time
	LastHeartbeat   *time.Time
}

// Terminal reports whether the job has reached a final state.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}

// IsProcessing reports whether a worker currently owns the job.
func (j Job) IsProcessing() bool {
	return j.Status == StatusRunning
}

// InitProgress resets progress fields at the start of a stage attempt.
// The previous error is cleared so status output reflects the live attempt.
func (j *Job) InitProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.LastError = ""
}

// SetProgress updates all three progress fields together. Use this instead
// of setting ProgressStage, ProgressPercent, and ProgressMessage one by one.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed with the given error message. Clears the
// heartbeat and sets progress fields appropriately.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.LastError = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
	j.ProgressStage = "Failed"
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Cancelled int
}
