package drawer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/student-shriman/torch-io/pkg/loader"
	"github.com/student-shriman/torch-io/pkg/loader/measure"
)

func TestDOTDrawerDraw(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "topology.dot")
	d := NewDOTDrawer(fileName)

	require.NoError(t, d.AddStage(loader.StageSample))
	require.NoError(t, d.AddStage(loader.StagePrepare))
	require.NoError(t, d.AddLink(loader.StageSample, loader.StagePrepare))
	require.NoError(t, d.SetStageLatency(loader.StagePrepare, 5*time.Millisecond, time.Millisecond))
	require.NoError(t, d.Draw())

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)
	got := string(content)
	assert.Contains(t, got, "strict digraph")
	assert.Contains(t, got, loader.StageSample)
	assert.Contains(t, got, loader.StagePrepare)
	assert.Contains(t, got, `"sample" -> "prepare"`)
	assert.Contains(t, got, "work 5ms, wait 1ms")
	assert.Contains(t, got, "color=")
}

func TestDOTDrawerErrors(t *testing.T) {
	d := NewDOTDrawer(filepath.Join(t.TempDir(), "topology.dot"))
	require.NoError(t, d.AddStage("a"))

	assert.Error(t, d.AddStage("a"), "duplicate vertex")
	assert.Error(t, d.AddLink("a", "missing"))
	assert.Error(t, d.SetStageLatency("missing", time.Millisecond, 0))
}

func TestLoaderDrawerObserver(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "topology.dot")
	m := measure.NewDefaultMeasure()
	mObs := measure.LoaderMeasure(m)
	dObs := LoaderDrawer(NewDOTDrawer(fileName), m)

	stages := []*loader.StageInfo{
		{Name: loader.StageSample, Concurrent: 1},
		{Name: loader.StagePrepare, Concurrent: 2},
		{Name: loader.StageCollate, Concurrent: 1},
	}
	require.NoError(t, mObs.New(stages))
	require.NoError(t, dObs.New(stages))
	require.NoError(t, mObs.OnStageOutput(stages[1], 4*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, mObs.Finish(time.Second))
	require.NoError(t, dObs.Finish(time.Second))

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)
	got := string(content)
	assert.Contains(t, got, `"sample" -> "prepare"`)
	assert.Contains(t, got, `"prepare" -> "collate"`)
	assert.Contains(t, got, "work 2ms")
}
