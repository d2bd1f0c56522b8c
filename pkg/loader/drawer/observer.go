package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/loader"
	"github.com/student-shriman/torch-io/pkg/loader/measure"
)

type loaderDrawer struct {
	Drawer
	m      measure.Measure
	stages []*loader.StageInfo
}

func (ld *loaderDrawer) New(stages []*loader.StageInfo) error {
	ld.stages = stages
	for i, stage := range stages {
		if err := ld.AddStage(stage.Name); err != nil {
			return errors.Wrap(err, "unable to add stage to drawer")
		}
		if i > 0 {
			if err := ld.AddLink(stages[i-1].Name, stage.Name); err != nil {
				return errors.Wrap(err, "unable to link stages")
			}
		}
	}
	return nil
}

func (ld *loaderDrawer) OnStageOutput(*loader.StageInfo, time.Duration, time.Duration) error {
	return nil
}

func (ld *loaderDrawer) Finish(time.Duration) error {
	if ld.m != nil {
		for _, stage := range ld.stages {
			mt := ld.m.GetMetric(stage.Name)
			if mt == nil || mt.Count() == 0 {
				continue
			}
			if err := ld.SetStageLatency(stage.Name, mt.AVGDuration(), mt.AVGWaitDuration()); err != nil {
				return errors.Wrap(err, "unable to set stage latency")
			}
		}
	}
	return errors.Wrap(ld.Draw(), "unable to draw loader topology")
}

// LoaderDrawer wraps a Drawer as a loader observer. When m is non-nil the
// drawn stages carry the latencies it collected; attach both observers to
// the same loader for that.
func LoaderDrawer(d Drawer, m measure.Measure) loader.Observer {
	return &loaderDrawer{Drawer: d, m: m}
}
