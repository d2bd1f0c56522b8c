package transform

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/subject"
)

// RandomElasticDeformation warps every image of a subject through a smooth
// random displacement field. Displacements are drawn at a coarse control
// point grid and interpolated trilinearly to every voxel.
type RandomElasticDeformation struct {
	controlPoints   int
	maxDisplacement float64
	rng             *rand.Rand
}

// ElasticOption configures a RandomElasticDeformation.
type ElasticOption func(t *RandomElasticDeformation)

// WithElasticControlPoints sets the number of control points per axis.
func WithElasticControlPoints(n int) ElasticOption {
	return func(t *RandomElasticDeformation) { t.controlPoints = n }
}

// WithElasticMaxDisplacement bounds the control point displacement in voxels.
func WithElasticMaxDisplacement(voxels float64) ElasticOption {
	return func(t *RandomElasticDeformation) { t.maxDisplacement = voxels }
}

// WithElasticSeed makes the sampling deterministic.
func WithElasticSeed(seed int64) ElasticOption {
	return func(t *RandomElasticDeformation) { t.rng = newRNG(seed) }
}

// NewRandomElasticDeformation builds the transform with a 7x7x7 control grid
// and displacements up to 7.5 voxels by default.
func NewRandomElasticDeformation(opts ...ElasticOption) (*RandomElasticDeformation, error) {
	t := &RandomElasticDeformation{
		controlPoints:   7,
		maxDisplacement: 7.5,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = newRNG(0)
	}
	if t.controlPoints < 2 {
		return nil, errors.Wrapf(ErrBadRange, "control points %d", t.controlPoints)
	}
	if t.maxDisplacement < 0 {
		return nil, errors.Wrapf(ErrBadRange, "max displacement %v", t.maxDisplacement)
	}
	return t, nil
}

func (t *RandomElasticDeformation) Name() string { return "random_elastic_deformation" }

func (t *RandomElasticDeformation) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
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

	field := t.sampleField()
	n := float64(t.controlPoints - 1)
	// position inside the control grid, in grid units; singleton dimensions
	// sit at grid coordinate 0
	grid := func(v, size int) float64 {
		if size <= 1 {
			return 0
		}
		return float64(v) / float64(size-1) * n
	}
	return resampleSubject(ctx, s, func(x, y, z int) (float64, float64, float64) {
		dx, dy, dz := field.at(grid(x, shape[0]), grid(y, shape[1]), grid(z, shape[2]))
		return float64(x) + dx, float64(y) + dy, float64(z) + dz
	})
}

// displacementField holds one displacement vector per control point.
type displacementField struct {
	n    int
	vecs [][3]float64 // len n*n*n
}

func (t *RandomElasticDeformation) sampleField() *displacementField {
	field := &displacementField{
		n:    t.controlPoints,
		vecs: make([][3]float64, t.controlPoints*t.controlPoints*t.controlPoints),
	}
	for i := range field.vecs {
		for axis := 0; axis < 3; axis++ {
			field.vecs[i][axis] = uniform(t.rng, -t.maxDisplacement, t.maxDisplacement)
		}
	}
	return field
}

func (f *displacementField) vec(i, j, k int) [3]float64 {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v >= f.n {
			return f.n - 1
		}
		return v
	}
	i, j, k = clamp(i), clamp(j), clamp(k)
	return f.vecs[(i*f.n+j)*f.n+k]
}

// at interpolates the displacement at a fractional grid position.
func (f *displacementField) at(gx, gy, gz float64) (float64, float64, float64) {
	i0, j0, k0 := int(gx), int(gy), int(gz)
	dx, dy, dz := gx-float64(i0), gy-float64(j0), gz-float64(k0)

	var out [3]float64
	for _, corner := range [8][3]int{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
	} {
		wx := dx
		if corner[0] == 0 {
			wx = 1 - dx
		}
		wy := dy
		if corner[1] == 0 {
			wy = 1 - dy
		}
		wz := dz
		if corner[2] == 0 {
			wz = 1 - dz
		}
		v := f.vec(i0+corner[0], j0+corner[1], k0+corner[2])
		w := wx * wy * wz
		for axis := 0; axis < 3; axis++ {
			out[axis] += v[axis] * w
		}
	}
	return out[0], out[1], out[2]
}
