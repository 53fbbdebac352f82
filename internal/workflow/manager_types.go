package workflow

import (
	"log/slog"

	"reelforge/internal/queue"
	"reelforge/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Intake    stage.Handler
	Narration stage.Handler
	Footage   stage.Handler
	Planner   stage.Handler
	Assembly  stage.Handler
	Upload    stage.Handler
}

// stageBinding ties a handler to the stage whose pending jobs it services.
type stageBinding struct {
	name    string
	stage   queue.Stage
	handler stage.Handler
}

type laneState struct {
	lane         queue.ProcessingLane
	name         string
	bindings     []stageBinding
	stageOrder   []queue.Stage
	bindingsByID map[queue.Stage]stageBinding
	logger       *slog.Logger
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.bindingsByID = make(map[queue.Stage]stageBinding, len(l.bindings))
	l.stageOrder = make([]queue.Stage, 0, len(l.bindings))
	for _, binding := range l.bindings {
		l.bindingsByID[binding.stage] = binding
		l.stageOrder = append(l.stageOrder, binding.stage)
	}
}

func (l *laneState) bindingForStage(stg queue.Stage) (stageBinding, bool) {
	if l == nil {
		return stageBinding{}, false
	}
	binding, ok := l.bindingsByID[stg]
	return binding, ok
}
