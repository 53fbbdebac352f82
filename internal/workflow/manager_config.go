package workflow

import "reelforge/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// A handler left nil drops its stage from the poll set; jobs parked at that
// stage stay pending until a handler is registered.
func (m *Manager) ConfigureStages(set StageSet) {
	generate := &laneState{lane: queue.LaneGenerate, name: string(queue.LaneGenerate)}
	render := &laneState{lane: queue.LaneRender, name: string(queue.LaneRender)}

	if set.Intake != nil {
		generate.bindings = append(generate.bindings, stageBinding{
			name:    "intake",
			stage:   queue.StageQueued,
			handler: set.Intake,
		})
	}
	if set.Narration != nil {
		generate.bindings = append(generate.bindings, stageBinding{
			name:    "narration",
			stage:   queue.StageScriptPending,
			handler: set.Narration,
		})
	}
	if set.Footage != nil {
		generate.bindings = append(generate.bindings, stageBinding{
			name:    "footage",
			stage:   queue.StageFootagePending,
			handler: set.Footage,
		})
	}
	if set.Planner != nil {
		generate.bindings = append(generate.bindings, stageBinding{
			name:    "planner",
			stage:   queue.StageAudioReady,
			handler: set.Planner,
		})
	}
	if set.Assembly != nil {
		render.bindings = append(render.bindings, stageBinding{
			name:    "assembly",
			stage:   queue.StageAssembling,
			handler: set.Assembly,
		})
	}
	if set.Upload != nil {
		render.bindings = append(render.bindings, stageBinding{
			name:    "upload",
			stage:   queue.StageUploading,
			handler: set.Upload,
		})
	}

	lanes := make(map[queue.ProcessingLane]*laneState)
	order := make([]queue.ProcessingLane, 0, 2)

	if len(generate.bindings) > 0 {
		generate.finalize()
		lanes[generate.lane] = generate
		order = append(order, generate.lane)
	}
	if len(render.bindings) > 0 {
		render.finalize()
		lanes[render.lane] = render
		order = append(order, render.lane)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
