package measure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/student-shriman/torch-io/pkg/loader"
)

func TestDefaultMetric(t *testing.T) {
	m := NewDefaultMeasure()
	mt := m.AddMetric(loader.StagePrepare, 2)

	mt.AddDuration(10 * time.Millisecond)
	mt.AddDuration(30 * time.Millisecond)
	mt.AddWaitDuration(40 * time.Millisecond)
	mt.AddWaitDuration(40 * time.Millisecond)
	mt.SetTotalDuration(time.Second)

	assert.Equal(t, int64(2), mt.Count())
	assert.Equal(t, 20*time.Millisecond, mt.AVGDuration())
	// cycle time halves with two concurrent workers
	assert.Equal(t, 20*time.Millisecond, mt.AVGWaitDuration())
	assert.Equal(t, time.Second, mt.TotalDuration())
}

func TestDefaultMetricEmpty(t *testing.T) {
	mt := &DefaultMetric{concurrent: 1}
	assert.Equal(t, time.Duration(0), mt.AVGDuration())
	assert.Equal(t, time.Duration(0), mt.AVGWaitDuration())
	assert.Equal(t, int64(0), mt.Count())
}

func TestDefaultMeasureLookup(t *testing.T) {
	m := NewDefaultMeasure()
	m.AddMetric(loader.StageSample, 1)
	m.AddMetric(loader.StageCollate, 1)

	assert.NotNil(t, m.GetMetric(loader.StageSample))
	assert.Nil(t, m.GetMetric("unknown"))
	assert.Len(t, m.AllMetrics(), 2)
}

func TestLoaderMeasureObserver(t *testing.T) {
	m := NewDefaultMeasure()
	obs := LoaderMeasure(m)

	stages := []*loader.StageInfo{
		{Name: loader.StageSample, Concurrent: 1},
		{Name: loader.StagePrepare, Concurrent: 4},
	}
	require.NoError(t, obs.New(stages))

	require.NoError(t, obs.OnStageOutput(stages[1], 8*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, obs.OnStageOutput(stages[1], 8*time.Millisecond, 4*time.Millisecond))
	require.NoError(t, obs.Finish(time.Minute))

	mt := m.GetMetric(loader.StagePrepare)
	require.NotNil(t, mt)
	assert.Equal(t, int64(2), mt.Count())
	assert.Equal(t, 3*time.Millisecond, mt.AVGDuration())
	assert.Equal(t, 2*time.Millisecond, mt.AVGWaitDuration())
	assert.Equal(t, time.Minute, mt.TotalDuration())

	sample := m.GetMetric(loader.StageSample)
	require.NotNil(t, sample)
	assert.Equal(t, time.Minute, sample.TotalDuration())
}
