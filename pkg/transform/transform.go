// Package transform provides composable preprocessing and augmentation
// operations over subjects. Transforms never mutate their input: they return
// a new subject with replaced image volumes.
package transform

import (
	"context"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/subject"
)

var (
	ErrNoTransforms = errors.New("compose needs at least one transform")
	ErrBadWeight    = errors.New("weights must be positive")
	ErrBadRange     = errors.New("invalid parameter range")
)

// Transform is a subject-to-subject operation.
type Transform interface {
	// Name identifies the transform in errors and pipeline topologies.
	Name() string
	// Apply returns a transformed copy of s.
	Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error)
}

// Compose applies transforms in order, stopping at the first error.
type Compose struct {
	transforms []Transform
}

// NewCompose builds an ordered pipeline.
func NewCompose(transforms ...Transform) (*Compose, error) {
	if len(transforms) == 0 {
		return nil, ErrNoTransforms
	}
	return &Compose{transforms: transforms}, nil
}

func (c *Compose) Name() string { return "compose" }

// Apply runs every stage in order.
func (c *Compose) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	out := s
	for _, t := range c.transforms {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, c.Name())
		}
		var err error
		out, err = t.Apply(ctx, out)
		if err != nil {
			return nil, errors.Wrapf(err, "apply %s", t.Name())
		}
	}
	return out, nil
}

// Identity returns its input untouched. OneOf falls back to it when the
// probability roll decides to apply nothing.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Apply(_ context.Context, s *subject.Subject) (*subject.Subject, error) {
	return s, nil
}
