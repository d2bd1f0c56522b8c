package transform

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/subject"
)

// Weighted pairs a transform with its selection weight.
type Weighted struct {
	Transform Transform
	Weight    float64
}

// OneOf applies one of its alternatives, picked by weight, with probability
// P. With probability 1-P the subject passes through untouched.
type OneOf struct {
	choices []Weighted
	total   float64
	p       float64
	rng     *rand.Rand
}

// OneOfOption configures a OneOf.
type OneOfOption func(t *OneOf)

// WithOneOfProbability sets the probability that any alternative is applied
// at all. Default 1.
func WithOneOfProbability(p float64) OneOfOption {
	return func(t *OneOf) { t.p = p }
}

// WithOneOfSeed makes the choice deterministic.
func WithOneOfSeed(seed int64) OneOfOption {
	return func(t *OneOf) { t.rng = newRNG(seed) }
}

// NewOneOf builds the weighted choice. Weights need not sum to one, they are
// normalised by their total.
func NewOneOf(choices []Weighted, opts ...OneOfOption) (*OneOf, error) {
	if len(choices) == 0 {
		return nil, errors.Wrap(ErrNoTransforms, "one_of")
	}
	t := &OneOf{choices: choices, p: 1}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = newRNG(0)
	}
	if t.p < 0 || t.p > 1 {
		return nil, errors.Wrapf(ErrBadRange, "probability %v", t.p)
	}
	for _, choice := range choices {
		if choice.Weight <= 0 {
			return nil, errors.Wrapf(ErrBadWeight, "%s: %v", choice.Transform.Name(), choice.Weight)
		}
		t.total += choice.Weight
	}
	return t, nil
}

func (t *OneOf) Name() string { return "one_of" }

func (t *OneOf) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	picked := t.pick()
	out, err := picked.Apply(ctx, s)
	if err != nil {
		return nil, errors.Wrapf(err, "picked %s", picked.Name())
	}
	return out, nil
}

func (t *OneOf) pick() Transform {
	if t.rng.Float64() >= t.p {
		return Identity{}
	}
	roll := t.rng.Float64() * t.total
	for _, choice := range t.choices {
		roll -= choice.Weight
		if roll < 0 {
			return choice.Transform
		}
	}
	return t.choices[len(t.choices)-1].Transform
}
