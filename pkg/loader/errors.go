package loader

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrDatasetMustBeSet = errors.New("dataset must be set")
	ErrBatchSize        = errors.New("batch size must be greater than 0")
	ErrNumWorkers       = errors.New("worker count must be greater than 0")
	ErrRoleMismatch     = errors.New("subjects in one batch expose different roles")
	ErrStackShape       = errors.New("cannot stack volumes of different shapes")
)

type stageErrors struct {
	mu   sync.Mutex
	list []*stageError
}

func (se *stageErrors) add(errChan *stageError) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.list = append(se.list, errChan)
}

type stageError struct {
	c     <-chan error
	stage string
}

func newStageError(stage string, c <-chan error) *stageError {
	return &stageError{
		c:     c,
		stage: stage,
	}
}

// mergeStageErrors merges the error channels of all loader stages.
// Based on https://blog.golang.org/pipelines.
func mergeStageErrors(cs ...*stageError) <-chan error {
	var wg sync.WaitGroup
	// The output channel must have capacity for one error per stage so a
	// stage never blocks on reporting, even after the consumer gave up.
	out := make(chan error, len(cs))

	output := func(c *stageError) {
		defer wg.Done()
		if c.c == nil {
			return
		}
		for err := range c.c {
			out <- errors.Wrap(err, c.stage)
		}
	}
	wg.Add(len(cs))
	for _, c := range cs {
		go output(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// firstError drains merged stage errors and keeps the first one.
func firstError(errc <-chan error) error {
	var first error
	for err := range errc {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
