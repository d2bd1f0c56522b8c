// Package loader provides a parallel prefetching batch iterator over a
// dataset of subjects. A run is a fixed three-stage channel pipeline: an
// index producer, a pool of workers loading and transforming subjects, and
// an order-preserving collate stage emitting batches.
package loader

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/student-shriman/torch-io/pkg/dataset"
	"github.com/student-shriman/torch-io/pkg/subject"
)

// Loader iterates a dataset in batches. A Loader is reusable: every call to
// Batches starts a fresh epoch.
type Loader struct {
	dataset    dataset.Dataset
	batchSize  int
	numWorkers int
	prefetch   int
	shuffle    bool
	seed       int64
	dropLast   bool
	observers  []Observer

	mu  sync.Mutex
	err error
}

// New builds a loader over ds.
func New(ds dataset.Dataset, opts ...Option) (*Loader, error) {
	if ds == nil {
		return nil, ErrDatasetMustBeSet
	}
	l := &Loader{
		dataset:    ds,
		batchSize:  1,
		numWorkers: 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.batchSize <= 0 {
		return nil, errors.Wrapf(ErrBatchSize, "got %d", l.batchSize)
	}
	if l.numWorkers <= 0 {
		return nil, errors.Wrapf(ErrNumWorkers, "got %d", l.numWorkers)
	}
	if l.prefetch <= 0 {
		l.prefetch = l.numWorkers
	}
	return l, nil
}

type indexItem struct {
	pos   int // position in the epoch order
	index int // dataset index
}

type preparedItem struct {
	pos   int
	index int
	subj  *subject.Subject
}

// Batches starts one epoch and returns its batch channel. The channel closes
// when the epoch is drained or aborted, after which Err reports the first
// failure of the run, if any.
func (l *Loader) Batches(ctx context.Context) <-chan Batch {
	dCtx, cancel := context.WithCancel(ctx)
	start := time.Now()
	l.setErr(nil)

	stages := []*StageInfo{
		{Name: StageSample, Concurrent: 1},
		{Name: StagePrepare, Concurrent: l.numWorkers},
		{Name: StageCollate, Concurrent: 1},
	}
	out := make(chan Batch, l.prefetch)
	for _, obs := range l.observers {
		if err := obs.New(stages); err != nil {
			l.recordErr(errors.Wrap(err, "initialise observer"))
			cancel()
			close(out)
			return out
		}
	}

	errcList := &stageErrors{}
	indices := l.runSample(dCtx, errcList, stages[0])
	preparedC := l.runPrepare(dCtx, errcList, stages[1], indices)
	l.runCollate(dCtx, errcList, stages[2], preparedC, out, start)

	// Cancel the pipeline on the first stage error. The merged channel
	// closes once every stage has shut down, so closing out afterwards
	// guarantees Err is settled when the batch channel is drained.
	go func() {
		defer close(out)
		defer cancel()
		for err := range mergeStageErrors(errcList.list...) {
			if err != nil {
				l.recordErr(err)
				cancel()
			}
		}
	}()

	return out
}

// Err returns the first error of the most recent run. Valid once the batch
// channel is closed.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Each runs one epoch, invoking fn for every batch. It stops on the first
// error from fn or the pipeline.
func (l *Loader) Each(ctx context.Context, fn func(context.Context, Batch) error) error {
	dCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := l.Batches(dCtx)
	for batch := range batches {
		if err := fn(dCtx, batch); err != nil {
			cancel()
			for range batches {
				// drain so the pipeline can shut down
			}
			return err
		}
	}
	return l.Err()
}

func (l *Loader) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// recordErr keeps the first error of a run.
func (l *Loader) recordErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

// observeOutput notifies every observer, returning the first observer error.
func (l *Loader) observeOutput(info *StageInfo, iteration, computation time.Duration) error {
	for _, obs := range l.observers {
		if err := obs.OnStageOutput(info, iteration, computation); err != nil {
			return errors.Wrap(err, "observer")
		}
	}
	return nil
}

func (l *Loader) finishObservers(total time.Duration) error {
	for _, obs := range l.observers {
		if err := obs.Finish(total); err != nil {
			return errors.Wrap(err, "finish observer")
		}
	}
	return nil
}

// runSample emits dataset indices in epoch order.
func (l *Loader) runSample(ctx context.Context, errcList *stageErrors, info *StageInfo) <-chan indexItem {
	errC := make(chan error, 1)
	errcList.add(newStageError(info.Name, errC))
	out := make(chan indexItem)

	go func() {
		defer func() {
			close(out)
			close(errC)
		}()
		order := make([]int, l.dataset.Len())
		for i := range order {
			order[i] = i
		}
		if l.shuffle {
			seed := l.seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		for pos, index := range order {
			start := time.Now()
			select {
			case <-ctx.Done():
				errC <- ctx.Err()
				return
			case out <- indexItem{pos: pos, index: index}:
				if err := l.observeOutput(info, time.Since(start), 0); err != nil {
					errC <- err
					return
				}
			}
		}
	}()

	return out
}

// runPrepare loads and transforms subjects with a bounded worker pool.
func (l *Loader) runPrepare(ctx context.Context, errcList *stageErrors, info *StageInfo, in <-chan indexItem) <-chan preparedItem {
	errC := make(chan error, 1)
	errcList.add(newStageError(info.Name, errC))
	out := make(chan preparedItem)

	go func() {
		defer func() {
			close(out)
			close(errC)
		}()
		grp, gCtx := errgroup.WithContext(ctx)
		grp.SetLimit(l.numWorkers)
		// every worker stops as soon as any of them fails
		for i := 0; i < l.numWorkers; i++ {
			grp.Go(func() error {
				return l.prepareWorker(gCtx, info, in, out)
			})
		}
		if err := grp.Wait(); err != nil {
			errC <- err
		}
	}()

	return out
}

func (l *Loader) prepareWorker(ctx context.Context, info *StageInfo, in <-chan indexItem, out chan<- preparedItem) error {
	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-in:
			if !ok {
				return nil
			}
			startFn := time.Now()
			subj, err := l.dataset.Subject(ctx, item.index)
			if err != nil {
				return errors.Wrapf(err, "subject %d", item.index)
			}
			computation := time.Since(startFn)

			// check the context again so a cancelled run stops pushing
			// new elements down the pipeline
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- preparedItem{pos: item.pos, index: item.index, subj: subj}:
				if err := l.observeOutput(info, time.Since(start), computation); err != nil {
					return err
				}
			}
		}
	}
}

// runCollate restores epoch order and groups subjects into batches.
func (l *Loader) runCollate(ctx context.Context, errcList *stageErrors, info *StageInfo, in <-chan preparedItem, out chan<- Batch, start time.Time) {
	errC := make(chan error, 1)
	errcList.add(newStageError(info.Name, errC))

	go func() {
		defer close(errC)

		pending := make(map[int]preparedItem, l.numWorkers)
		nextPos := 0
		subjects := make([]*subject.Subject, 0, l.batchSize)
		indices := make([]int, 0, l.batchSize)
		iterStart := time.Now()

		flush := func() error {
			startFn := time.Now()
			batch, err := collate(indices, subjects)
			if err != nil {
				return err
			}
			computation := time.Since(startFn)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- batch:
			}
			if err := l.observeOutput(info, time.Since(iterStart), computation); err != nil {
				return err
			}
			subjects = make([]*subject.Subject, 0, l.batchSize)
			indices = make([]int, 0, l.batchSize)
			iterStart = time.Now()
			return nil
		}

	outer:
		for {
			select {
			case <-ctx.Done():
				errC <- ctx.Err()
				return
			case item, ok := <-in:
				if !ok {
					break outer
				}
				// workers finish out of order, release in epoch order
				pending[item.pos] = item
				for {
					next, ready := pending[nextPos]
					if !ready {
						break
					}
					delete(pending, nextPos)
					nextPos++
					subjects = append(subjects, next.subj)
					indices = append(indices, next.index)
					if len(subjects) == l.batchSize {
						if err := flush(); err != nil {
							errC <- err
							return
						}
					}
				}
			}
		}

		if len(subjects) > 0 && !l.dropLast {
			if err := flush(); err != nil {
				errC <- err
				return
			}
		}
		if err := l.finishObservers(time.Since(start)); err != nil {
			errC <- err
		}
	}()
}
