package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

func TestNewRandomAffineValidation(t *testing.T) {
	tests := map[string]struct {
		opts []AffineOption
	}{
		"zero scale": {
			opts: []AffineOption{WithAffineScales(0, 1)},
		},
		"inverted scales": {
			opts: []AffineOption{WithAffineScales(1.1, 0.9)},
		},
		"negative degrees": {
			opts: []AffineOption{WithAffineDegrees(-5)},
		},
		"negative translation": {
			opts: []AffineOption{WithAffineTranslation(-1)},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewRandomAffine(tc.opts...)
			assert.ErrorIs(t, err, ErrBadRange)
		})
	}
}

func TestRandomAffineIdentityParameters(t *testing.T) {
	tr, err := NewRandomAffine(
		WithAffineScales(1, 1),
		WithAffineDegrees(0),
		WithAffineTranslation(0),
		WithAffineSeed(1),
	)
	require.NoError(t, err)

	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	s := testSubject(t, [3]int{2, 2, 2}, data)
	out, err := tr.Apply(context.Background(), s)
	require.NoError(t, err)

	assert.InDeltaSlice(t, data, subjectData(t, out, "t1"), 1e-5)
}

func TestRandomAffineScaleKeepsCenterFixed(t *testing.T) {
	tr, err := NewRandomAffine(
		WithAffineScales(2, 2),
		WithAffineDegrees(0),
		WithAffineTranslation(0),
		WithAffineSeed(1),
	)
	require.NoError(t, err)

	vol, err := medvol.New(1, 11, 11, 11)
	require.NoError(t, err)
	vol.Set(0, 5, 5, 5, 100)
	s, err := subject.New(subject.WithImage("t1", medvol.ScalarImageFromVolume(vol)))
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), s)
	require.NoError(t, err)

	img, err := out.Image("t1")
	require.NoError(t, err)
	warped, err := img.Volume()
	require.NoError(t, err)
	// zooming about the center leaves the center voxel in place and spreads
	// its mass to the neighbours
	assert.InDelta(t, 100, warped.At(0, 5, 5, 5), 1e-4)
	assert.InDelta(t, 50, warped.At(0, 6, 5, 5), 1e-4)
	assert.InDelta(t, 50, warped.At(0, 4, 5, 5), 1e-4)
}

func TestRandomAffineKeepsImagesCoRegistered(t *testing.T) {
	tr, err := NewRandomAffine(WithAffineSeed(3))
	require.NoError(t, err)

	shape := [3]int{5, 5, 5}
	data := make([]float32, 125)
	for i := range data {
		data[i] = float32(i)
	}
	intensity, err := medvol.FromData(1, shape[0], shape[1], shape[2], data)
	require.NoError(t, err)
	label, err := medvol.FromData(1, shape[0], shape[1], shape[2], append([]float32(nil), data...))
	require.NoError(t, err)
	s, err := subject.New(
		subject.WithImage("t1", medvol.ScalarImageFromVolume(intensity)),
		subject.WithImage("label", medvol.LabelMapFromVolume(label)),
	)
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), s)
	require.NoError(t, err)
	require.NoError(t, out.CheckConsistentSpace())

	shapeOut, err := out.SpatialShape()
	require.NoError(t, err)
	assert.Equal(t, shape, shapeOut)
}

func TestRandomAffineLabelValuesStayDiscrete(t *testing.T) {
	tr, err := NewRandomAffine(WithAffineSeed(11))
	require.NoError(t, err)

	vol, err := medvol.New(1, 6, 6, 6)
	require.NoError(t, err)
	for i := range vol.Data {
		if i%3 == 0 {
			vol.Data[i] = 1
		}
	}
	s, err := subject.New(subject.WithImage("label", medvol.LabelMapFromVolume(vol)))
	require.NoError(t, err)

	out, err := tr.Apply(context.Background(), s)
	require.NoError(t, err)
	for _, v := range subjectData(t, out, "label") {
		assert.Contains(t, []float32{0, 1}, v)
	}
}

func TestRandomAffineRejectsMismatchedImages(t *testing.T) {
	tr, err := NewRandomAffine(WithAffineSeed(1))
	require.NoError(t, err)

	a, err := medvol.New(1, 2, 2, 2)
	require.NoError(t, err)
	b, err := medvol.New(1, 3, 3, 3)
	require.NoError(t, err)
	s, err := subject.New(
		subject.WithImage("t1", medvol.ScalarImageFromVolume(a)),
		subject.WithImage("t2", medvol.ScalarImageFromVolume(b)),
	)
	require.NoError(t, err)

	_, err = tr.Apply(context.Background(), s)
	assert.ErrorIs(t, err, subject.ErrSpatialMismatch)
}

func TestRandomAffineDeterministicWithSeed(t *testing.T) {
	run := func() []float32 {
		tr, err := NewRandomAffine(WithAffineSeed(21))
		require.NoError(t, err)
		data := make([]float32, 27)
		for i := range data {
			data[i] = float32(i)
		}
		s := testSubject(t, [3]int{3, 3, 3}, data)
		out, err := tr.Apply(context.Background(), s)
		require.NoError(t, err)
		return subjectData(t, out, "t1")
	}
	assert.Equal(t, run(), run())
}
