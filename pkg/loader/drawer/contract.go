package drawer

import "time"

// Drawer renders the loader stage topology.
type Drawer interface {
	// AddStage adds a stage vertex.
	AddStage(name string) error
	// AddLink adds a directed link between two stages.
	AddLink(parentName, childName string) error
	// SetStageLatency attaches the stage's average work and wait time.
	SetStageLatency(name string, avgWork, avgWait time.Duration) error
	// Draw writes the topology file.
	Draw() error
}
