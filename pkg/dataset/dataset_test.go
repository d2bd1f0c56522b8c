package dataset

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

func testSubjects(t *testing.T, n int) []*subject.Subject {
	t.Helper()
	subjects := make([]*subject.Subject, n)
	for i := range subjects {
		vol, err := medvol.FromData(1, 1, 1, 1, []float32{float32(i)})
		require.NoError(t, err)
		s, err := subject.New(subject.WithImage("t1", medvol.ScalarImageFromVolume(vol)))
		require.NoError(t, err)
		subjects[i] = s
	}
	return subjects
}

type addOne struct{}

func (addOne) Name() string { return "add_one" }

func (addOne) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	out := s.Clone()
	img, err := out.Image("t1")
	if err != nil {
		return nil, err
	}
	vol, err := img.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := vol.Clone()
	for i := range next.Data {
		next.Data[i]++
	}
	out.SetImage("t1", img.WithVolume(next))
	return out, nil
}

type failing struct{ err error }

func (f failing) Name() string { return "failing" }

func (f failing) Apply(context.Context, *subject.Subject) (*subject.Subject, error) {
	return nil, f.err
}

func value(t *testing.T, s *subject.Subject) float32 {
	t.Helper()
	img, err := s.Image("t1")
	require.NoError(t, err)
	vol, err := img.Volume()
	require.NoError(t, err)
	return vol.At(0, 0, 0, 0)
}

func TestNewRequiresSubjects(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestLen(t *testing.T) {
	d, err := New(testSubjects(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
}

func TestSubjectIndexOutOfRange(t *testing.T) {
	d, err := New(testSubjects(t, 2))
	require.NoError(t, err)

	for _, i := range []int{-1, 2} {
		_, err := d.Subject(context.Background(), i)
		assert.Error(t, err)
	}
}

func TestSubjectAppliesTransform(t *testing.T) {
	d, err := New(testSubjects(t, 2), WithTransform(addOne{}))
	require.NoError(t, err)

	s, err := d.Subject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float32(2), value(t, s))
}

func TestSubjectReturnsFreshCopy(t *testing.T) {
	d, err := New(testSubjects(t, 1))
	require.NoError(t, err)

	first, err := d.Subject(context.Background(), 0)
	require.NoError(t, err)
	img, err := first.Image("t1")
	require.NoError(t, err)
	vol, err := img.Volume()
	require.NoError(t, err)
	vol.Set(0, 0, 0, 0, 99)

	second, err := d.Subject(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, float32(0), value(t, second))
}

func TestSubjectTransformError(t *testing.T) {
	boom := errors.New("boom")
	d, err := New(testSubjects(t, 1), WithTransform(failing{err: boom}))
	require.NoError(t, err)

	_, err = d.Subject(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
}
