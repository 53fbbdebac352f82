package stage

import (
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// Script returns the narration artifact stored on the job. On failure it
// returns a services.ErrValidation suitable for stage Execute methods.
func Script(job *queue.Job) (queue.ScriptAsset, error) {
	asset, err := queue.DecodeScriptAsset(job.ScriptJSON)
	if err != nil {
		return queue.ScriptAsset{}, services.Wrap(
			services.ErrValidation, "stage", "decode script",
			"Narration artifact missing or invalid; rerun the script stage", err)
	}
	return asset, nil
}

// Clips returns the footage selection stored on the job.
func Clips(job *queue.Job) ([]queue.FootageClip, error) {
	clips, err := queue.DecodeClips(job.ClipsJSON)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "decode clips",
			"Footage selection missing or invalid; rerun the footage stage", err)
	}
	return clips, nil
}

// Plan returns the assembly plan stored on the job.
func Plan(job *queue.Job) (queue.AssemblyPlan, error) {
	plan, err := queue.DecodeAssemblyPlan(job.PlanJSON)
	if err != nil {
		return queue.AssemblyPlan{}, services.Wrap(
			services.ErrValidation, "stage", "decode plan",
			"Assembly plan missing or invalid; rerun the planning stage", err)
	}
	return plan, nil
}
