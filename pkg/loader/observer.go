package loader

import "time"

// Stage names of the fixed loader topology, in order.
const (
	StageSample  = "sample"
	StagePrepare = "prepare"
	StageCollate = "collate"
)

// StageInfo describes one loader stage.
type StageInfo struct {
	Name       string
	Concurrent int
}

// Observer receives lifecycle events of a loader run. Implementations must
// tolerate concurrent OnStageOutput calls.
type Observer interface {
	// New runs once per loader run with the stages in topological order.
	New(stages []*StageInfo) error
	// OnStageOutput runs every time a stage pushes an element downstream.
	// iterationDuration covers the whole receive-process-send cycle,
	// computationDuration only the stage's own work.
	OnStageOutput(stage *StageInfo, iterationDuration, computationDuration time.Duration) error
	// Finish runs after the run drained, with its total duration.
	Finish(totalDuration time.Duration) error
}
