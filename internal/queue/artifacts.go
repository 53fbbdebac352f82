package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// ScriptAsset is the narration artifact produced by the script stage and
// mirrored into the script_json column. Cached copies are immutable once
// written; the fingerprint keys cache reuse across jobs.
type ScriptAsset struct {
	Fingerprint  string    `json:"fingerprint"`
	Narration    string    `json:"narration"`
	AudioFile    string    `json:"audio_file"`
	WordCount    int       `json:"word_count"`
	AudioSeconds float64   `json:"audio_seconds"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Encode serializes the asset for storage on the job row.
func (a ScriptAsset) Encode() (string, error) {
	encoded, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeScriptAsset parses stored script JSON. An empty or unparseable
// payload is an error; stages treat it as a missing upstream artifact.
func DecodeScriptAsset(data string) (ScriptAsset, error) {
	var asset ScriptAsset
	if data == "" {
		return asset, errors.New("script asset missing")
	}
	if err := json.Unmarshal([]byte(data), &asset); err != nil {
		return ScriptAsset{}, err
	}
	if asset.Narration == "" {
		return ScriptAsset{}, errors.New("script asset has no narration")
	}
	return asset, nil
}

// FootageClip describes one stock clip selected for a reel and mirrored into
// the clips_json column. LocalFile is set once the clip bytes are cached.
type FootageClip struct {
	SourceID  string  `json:"source_id"`
	URL       string  `json:"url"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Seconds   float64 `json:"seconds"`
	Score     float64 `json:"score,omitempty"`
	LocalFile string  `json:"local_file,omitempty"`
}

// EncodeClips serializes the selected clips for storage on the job row.
func EncodeClips(clips []FootageClip) (string, error) {
	encoded, err := json.Marshal(clips)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeClips parses stored clip JSON.
func DecodeClips(data string) ([]FootageClip, error) {
	if data == "" {
		return nil, errors.New("footage clips missing")
	}
	var clips []FootageClip
	if err := json.Unmarshal([]byte(data), &clips); err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, errors.New("footage clip list empty")
	}
	return clips, nil
}

// PlanSegment cuts [Start, End) seconds out of Clip's source file. Segments
// render in order against the narration track; the timeline position of a
// segment is the sum of the durations before it.
type PlanSegment struct {
	Clip  FootageClip `json:"clip"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
}

// Duration returns the segment length in seconds.
func (s PlanSegment) Duration() float64 {
	return s.End - s.Start
}

// AssemblyPlan is the complete recipe for rendering a reel. It is built once
// per job and retained in the plan_json column as provenance. Assembly is
// deterministic given the same plan and the same underlying clip bytes.
type AssemblyPlan struct {
	Segments     []PlanSegment `json:"segments"`
	AudioFile    string        `json:"audio_file"`
	TotalSeconds float64       `json:"total_seconds"`
}

// Encode serializes the plan for storage on the job row.
func (p AssemblyPlan) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeAssemblyPlan parses stored plan JSON.
func DecodeAssemblyPlan(data string) (AssemblyPlan, error) {
	var plan AssemblyPlan
	if data == "" {
		return plan, errors.New("assembly plan missing")
	}
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return AssemblyPlan{}, err
	}
	if len(plan.Segments) == 0 {
		return AssemblyPlan{}, errors.New("assembly plan has no segments")
	}
	return plan, nil
}

// Digest returns a stable content address for the plan. Assembly output
// paths derive from it so a redelivered stage overwrites its own work
// instead of duplicating it.
func (p AssemblyPlan) Digest() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
