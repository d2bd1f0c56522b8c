// Package measure collects per-stage timing of loader runs.
package measure

import (
	"sync"
	"time"
)

// Measure aggregates metrics for all stages of a run.
type Measure interface {
	AddMetric(name string, concurrent int) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric collects one stage's timings.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddWaitDuration(elapsed time.Duration)
	AVGDuration() time.Duration
	AVGWaitDuration() time.Duration
	Count() int64
	SetTotalDuration(total time.Duration)
	TotalDuration() time.Duration
}

// DefaultMeasure is the in-memory Measure.
type DefaultMeasure struct {
	mu     sync.Mutex
	stages map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		stages: make(map[string]Metric),
	}
}

func (m *DefaultMeasure) AddMetric(name string, concurrent int) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := &DefaultMetric{concurrent: concurrent}
	m.stages[name] = mt
	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stages[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Metric, len(m.stages))
	for name, mt := range m.stages {
		out[name] = mt
	}
	return out
}

var _ Measure = (*DefaultMeasure)(nil)

// DefaultMetric is the in-memory Metric.
type DefaultMetric struct {
	mu          sync.Mutex
	concurrent  int
	elapsed     time.Duration
	waitElapsed time.Duration
	total       int64
	endDuration time.Duration
}

// AddDuration records one unit of stage work.
func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.elapsed += elapsed
}

// AddWaitDuration records the full receive-process-send cycle of one unit.
func (mt *DefaultMetric) AddWaitDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.waitElapsed += elapsed
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return 0
	}
	return round(time.Duration(float64(mt.elapsed) / float64(mt.total)))
}

// AVGWaitDuration averages the cycle time, normalised by the stage's
// concurrency.
func (mt *DefaultMetric) AVGWaitDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 || mt.concurrent == 0 {
		return 0
	}
	return round(time.Duration(float64(mt.waitElapsed) / float64(mt.total) / float64(mt.concurrent)))
}

func (mt *DefaultMetric) Count() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.total
}

func (mt *DefaultMetric) SetTotalDuration(total time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = total
}

func (mt *DefaultMetric) TotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.endDuration
}

var _ Metric = (*DefaultMetric)(nil)

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}
	return d
}
