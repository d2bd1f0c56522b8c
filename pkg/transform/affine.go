package transform

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/student-shriman/torch-io/pkg/subject"
)

// RandomAffine samples one random scale, rotation and translation per
// subject and resamples every image through the resulting transform, so all
// images of a subject stay co-registered.
type RandomAffine struct {
	scales      [2]float64 // uniform scale range per axis
	degrees     float64    // rotation drawn from [-degrees, degrees] per axis
	translation float64    // voxel shift drawn from [-translation, translation] per axis
	rng         *rand.Rand
}

// AffineOption configures a RandomAffine.
type AffineOption func(t *RandomAffine)

// WithAffineScales sets the per-axis scale sampling range.
func WithAffineScales(lo, hi float64) AffineOption {
	return func(t *RandomAffine) { t.scales = [2]float64{lo, hi} }
}

// WithAffineDegrees sets the per-axis rotation bound in degrees.
func WithAffineDegrees(degrees float64) AffineOption {
	return func(t *RandomAffine) { t.degrees = degrees }
}

// WithAffineTranslation sets the per-axis translation bound in voxels.
func WithAffineTranslation(voxels float64) AffineOption {
	return func(t *RandomAffine) { t.translation = voxels }
}

// WithAffineSeed makes the sampling deterministic.
func WithAffineSeed(seed int64) AffineOption {
	return func(t *RandomAffine) { t.rng = newRNG(seed) }
}

// NewRandomAffine builds the transform. Defaults follow common augmentation
// settings: scales [0.9, 1.1], rotations up to 10 degrees, no translation.
func NewRandomAffine(opts ...AffineOption) (*RandomAffine, error) {
	t := &RandomAffine{
		scales:  [2]float64{0.9, 1.1},
		degrees: 10,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = newRNG(0)
	}
	if t.scales[0] <= 0 || t.scales[1] < t.scales[0] {
		return nil, errors.Wrapf(ErrBadRange, "scales %v", t.scales)
	}
	if t.degrees < 0 || t.translation < 0 {
		return nil, errors.Wrapf(ErrBadRange, "degrees %v, translation %v", t.degrees, t.translation)
	}
	return t, nil
}

func (t *RandomAffine) Name() string { return "random_affine" }

func (t *RandomAffine) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	if err := s.CheckConsistentSpace(); err != nil {
		return nil, err
	}
	shape, err := s.SpatialShape()
	if err != nil {
		return nil, err
	}

	inverse, err := t.sampleInverseMatrix(shape)
	if err != nil {
		return nil, err
	}
	return resampleSubject(ctx, s, func(x, y, z int) (float64, float64, float64) {
		out := mat.NewVecDense(4, []float64{float64(x), float64(y), float64(z), 1})
		var src mat.VecDense
		src.MulVec(inverse, out)
		return src.AtVec(0), src.AtVec(1), src.AtVec(2)
	})
}

// sampleInverseMatrix draws the affine parameters and returns the inverse of
// the voxel-space transform, for inverse mapping during resampling.
func (t *RandomAffine) sampleInverseMatrix(shape [3]int) (*mat.Dense, error) {
	var scale, angle, shift [3]float64
	for axis := 0; axis < 3; axis++ {
		scale[axis] = uniform(t.rng, t.scales[0], t.scales[1])
		angle[axis] = uniform(t.rng, -t.degrees, t.degrees) * math.Pi / 180
		shift[axis] = uniform(t.rng, -t.translation, t.translation)
	}

	center := [3]float64{
		float64(shape[0]-1) / 2,
		float64(shape[1]-1) / 2,
		float64(shape[2]-1) / 2,
	}

	// Mul pre-multiplies, so factors act in call order: move the center to
	// the origin, rotate and scale there, move the center back, then shift.
	m := identity4()
	m.Mul(translation4(-center[0], -center[1], -center[2]), m)
	m.Mul(rotation4(2, angle[2]), m)
	m.Mul(rotation4(1, angle[1]), m)
	m.Mul(rotation4(0, angle[0]), m)
	m.Mul(scaling4(scale[0], scale[1], scale[2]), m)
	m.Mul(translation4(center[0], center[1], center[2]), m)
	m.Mul(translation4(shift[0], shift[1], shift[2]), m)

	var inverse mat.Dense
	if err := inverse.Inverse(m); err != nil {
		return nil, errors.Wrap(err, "invert affine matrix")
	}
	return &inverse, nil
}

func identity4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func translation4(tx, ty, tz float64) *mat.Dense {
	m := identity4()
	m.Set(0, 3, tx)
	m.Set(1, 3, ty)
	m.Set(2, 3, tz)
	return m
}

func scaling4(sx, sy, sz float64) *mat.Dense {
	m := identity4()
	m.Set(0, 0, sx)
	m.Set(1, 1, sy)
	m.Set(2, 2, sz)
	return m
}

// rotation4 builds a rotation about the given axis (0 = X, 1 = Y, 2 = Z).
func rotation4(axis int, angle float64) *mat.Dense {
	sin, cos := math.Sin(angle), math.Cos(angle)
	m := identity4()
	switch axis {
	case 0:
		m.Set(1, 1, cos)
		m.Set(1, 2, -sin)
		m.Set(2, 1, sin)
		m.Set(2, 2, cos)
	case 1:
		m.Set(0, 0, cos)
		m.Set(0, 2, sin)
		m.Set(2, 0, -sin)
		m.Set(2, 2, cos)
	case 2:
		m.Set(0, 0, cos)
		m.Set(0, 1, -sin)
		m.Set(1, 0, sin)
		m.Set(1, 1, cos)
	}
	return m
}
