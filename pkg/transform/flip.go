package transform

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

// RandomFlip mirrors all images of a subject along each configured spatial
// axis with the given probability. Flipping needs no interpolation, so
// intensity images and label maps are treated alike.
type RandomFlip struct {
	axes        []int
	probability float64
	rng         *rand.Rand
}

// FlipOption configures a RandomFlip.
type FlipOption func(t *RandomFlip)

// WithFlipAxes sets the candidate axes (0 = X, 1 = Y, 2 = Z). Default X only.
func WithFlipAxes(axes ...int) FlipOption {
	return func(t *RandomFlip) { t.axes = axes }
}

// WithFlipProbability sets the per-axis flip probability. Default 0.5.
func WithFlipProbability(p float64) FlipOption {
	return func(t *RandomFlip) { t.probability = p }
}

// WithFlipSeed makes the sampling deterministic.
func WithFlipSeed(seed int64) FlipOption {
	return func(t *RandomFlip) { t.rng = newRNG(seed) }
}

// NewRandomFlip builds the transform.
func NewRandomFlip(opts ...FlipOption) (*RandomFlip, error) {
	t := &RandomFlip{
		axes:        []int{0},
		probability: 0.5,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = newRNG(0)
	}
	if t.probability < 0 || t.probability > 1 {
		return nil, errors.Wrapf(ErrBadRange, "probability %v", t.probability)
	}
	for _, axis := range t.axes {
		if axis < 0 || axis > 2 {
			return nil, errors.Wrapf(ErrBadRange, "axis %d", axis)
		}
	}
	return t, nil
}

func (t *RandomFlip) Name() string { return "random_flip" }

func (t *RandomFlip) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	var flips []int
	for _, axis := range t.axes {
		if t.rng.Float64() < t.probability {
			flips = append(flips, axis)
		}
	}
	if len(flips) == 0 {
		return s, nil
	}

	out := s.Clone()
	for _, role := range out.Roles() {
		image, err := out.Image(role)
		if err != nil {
			return nil, err
		}
		vol, err := image.Load(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "role %q", role)
		}
		flipped := vol.Clone()
		for _, axis := range flips {
			flipped = flipVolume(flipped, axis)
		}
		out.SetImage(role, image.WithVolume(flipped))
	}
	return out, nil
}

func flipVolume(vol *medvol.Volume, axis int) *medvol.Volume {
	out, _ := medvol.New(vol.Channels, vol.X, vol.Y, vol.Z)
	for c := 0; c < vol.Channels; c++ {
		for x := 0; x < vol.X; x++ {
			for y := 0; y < vol.Y; y++ {
				for z := 0; z < vol.Z; z++ {
					sx, sy, sz := x, y, z
					switch axis {
					case 0:
						sx = vol.X - 1 - x
					case 1:
						sy = vol.Y - 1 - y
					case 2:
						sz = vol.Z - 1 - z
					}
					out.Set(c, x, y, z, vol.At(c, sx, sy, sz))
				}
			}
		}
	}
	return out
}
