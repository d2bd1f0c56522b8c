// Package dataset exposes an indexable collection of subjects with an
// attached transform pipeline.
package dataset

import (
	"context"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/subject"
	"github.com/student-shriman/torch-io/pkg/transform"
)

var ErrEmptyDataset = errors.New("dataset needs at least one subject")

// Dataset is what the loader consumes: a length and random access to fully
// prepared subjects.
type Dataset interface {
	Len() int
	// Subject returns the loaded, transformed subject at index i. The
	// returned subject is owned by the caller.
	Subject(ctx context.Context, i int) (*subject.Subject, error)
}

// SubjectsDataset pairs a subject list with an optional transform applied on
// every access. Access returns a fresh copy, so random transforms resample
// their parameters per epoch.
type SubjectsDataset struct {
	subjects  []*subject.Subject
	transform transform.Transform
}

// DatasetOption configures a SubjectsDataset.
type DatasetOption func(d *SubjectsDataset)

// WithTransform attaches the transform pipeline.
func WithTransform(t transform.Transform) DatasetOption {
	return func(d *SubjectsDataset) { d.transform = t }
}

// New builds a dataset over subjects.
func New(subjects []*subject.Subject, opts ...DatasetOption) (*SubjectsDataset, error) {
	if len(subjects) == 0 {
		return nil, ErrEmptyDataset
	}
	d := &SubjectsDataset{subjects: subjects}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Len returns the number of subjects.
func (d *SubjectsDataset) Len() int { return len(d.subjects) }

// Subject clones, loads and transforms the subject at index i.
func (d *SubjectsDataset) Subject(ctx context.Context, i int) (*subject.Subject, error) {
	if i < 0 || i >= len(d.subjects) {
		return nil, errors.Errorf("subject index %d out of range [0, %d)", i, len(d.subjects))
	}
	s := d.subjects[i].Clone()
	if err := s.Load(ctx); err != nil {
		return nil, errors.Wrapf(err, "subject %d", i)
	}
	if d.transform == nil {
		return s, nil
	}
	out, err := d.transform.Apply(ctx, s)
	if err != nil {
		return nil, errors.Wrapf(err, "subject %d", i)
	}
	return out, nil
}

var _ Dataset = (*SubjectsDataset)(nil)
