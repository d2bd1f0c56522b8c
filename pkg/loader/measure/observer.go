package measure

import (
	"time"

	"github.com/student-shriman/torch-io/pkg/loader"
)

type loaderMeasure struct {
	Measure
}

func (lm *loaderMeasure) New(stages []*loader.StageInfo) error {
	for _, stage := range stages {
		lm.AddMetric(stage.Name, stage.Concurrent)
	}
	return nil
}

func (lm *loaderMeasure) OnStageOutput(stage *loader.StageInfo, iterationDuration, computationDuration time.Duration) error {
	mt := lm.GetMetric(stage.Name)
	mt.AddDuration(computationDuration)
	mt.AddWaitDuration(iterationDuration)
	return nil
}

func (lm *loaderMeasure) Finish(totalDuration time.Duration) error {
	for _, mt := range lm.AllMetrics() {
		mt.SetTotalDuration(totalDuration)
	}
	return nil
}

// LoaderMeasure wraps a Measure as a loader observer.
func LoaderMeasure(m Measure) loader.Observer {
	return &loaderMeasure{m}
}
