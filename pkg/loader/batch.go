package loader

import (
	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

// Batch groups consecutive prepared subjects. Images are accessible per
// subject or stacked per role, attributes as per-name columns.
type Batch struct {
	// Indices are the dataset indices of the batched subjects, in batch
	// order.
	Indices []int

	subjects []*subject.Subject
	roles    []string
}

// collate validates that all subjects expose the same roles and wraps them
// into a batch.
func collate(indices []int, subjects []*subject.Subject) (Batch, error) {
	roles := subjects[0].Roles()
	for i, s := range subjects[1:] {
		got := s.Roles()
		if len(got) != len(roles) {
			return Batch{}, errors.Wrapf(ErrRoleMismatch, "subject %d", indices[i+1])
		}
		for j, role := range roles {
			if got[j] != role {
				return Batch{}, errors.Wrapf(ErrRoleMismatch, "subject %d: %q vs %q",
					indices[i+1], got[j], role)
			}
		}
	}
	return Batch{Indices: indices, subjects: subjects, roles: roles}, nil
}

// Len returns the number of subjects in the batch.
func (b Batch) Len() int { return len(b.subjects) }

// Roles returns the image role names shared by every subject of the batch.
func (b Batch) Roles() []string { return b.roles }

// Subjects returns the batched subjects in order.
func (b Batch) Subjects() []*subject.Subject { return b.subjects }

// Volumes returns the per-subject volumes attached under role.
func (b Batch) Volumes(role string) ([]*medvol.Volume, error) {
	out := make([]*medvol.Volume, len(b.subjects))
	for i, s := range b.subjects {
		image, err := s.Image(role)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %d", b.Indices[i])
		}
		vol, err := image.Volume()
		if err != nil {
			return nil, errors.Wrapf(err, "subject %d", b.Indices[i])
		}
		out[i] = vol
	}
	return out, nil
}

// Stack concatenates the volumes under role into one [B*C, X, Y, Z] volume.
// All subjects must share the role's shape.
func (b Batch) Stack(role string) (*medvol.Volume, error) {
	vols, err := b.Volumes(role)
	if err != nil {
		return nil, err
	}
	first := vols[0]
	for i, vol := range vols[1:] {
		if !vol.EqualShape(first) {
			return nil, errors.Wrapf(ErrStackShape, "role %q: subject %d has %v, want %v",
				role, b.Indices[i+1], vol.Shape(), first.Shape())
		}
	}
	stacked, err := medvol.New(len(vols)*first.Channels, first.X, first.Y, first.Z)
	if err != nil {
		return nil, err
	}
	offset := 0
	for _, vol := range vols {
		copy(stacked.Data[offset:], vol.Data)
		offset += len(vol.Data)
	}
	return stacked, nil
}

// Attrs returns the named attribute of every subject as a column. Subjects
// without the attribute contribute nil.
func (b Batch) Attrs(name string) []any {
	out := make([]any, len(b.subjects))
	for i, s := range b.subjects {
		if value, ok := s.Attr(name); ok {
			out[i] = value
		}
	}
	return out
}
