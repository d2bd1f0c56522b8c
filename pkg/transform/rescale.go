package transform

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

// RescaleIntensity linearly maps the values of every intensity image into
// [OutMin, OutMax]. Label maps pass through untouched.
type RescaleIntensity struct {
	outMin, outMax float32
	percentiles    [2]float64
}

// RescaleOption configures a RescaleIntensity.
type RescaleOption func(t *RescaleIntensity)

// WithRescalePercentiles clips the input range to the given percentiles
// before rescaling, e.g. 0.5 and 99.5 to ignore outliers.
func WithRescalePercentiles(lo, hi float64) RescaleOption {
	return func(t *RescaleIntensity) {
		t.percentiles = [2]float64{lo, hi}
	}
}

// NewRescaleIntensity builds the transform for the given output range.
func NewRescaleIntensity(outMin, outMax float32, opts ...RescaleOption) (*RescaleIntensity, error) {
	if outMax <= outMin {
		return nil, errors.Wrapf(ErrBadRange, "out range [%v, %v]", outMin, outMax)
	}
	t := &RescaleIntensity{
		outMin:      outMin,
		outMax:      outMax,
		percentiles: [2]float64{0, 100},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.percentiles[0] < 0 || t.percentiles[1] > 100 || t.percentiles[0] >= t.percentiles[1] {
		return nil, errors.Wrapf(ErrBadRange, "percentiles %v", t.percentiles)
	}
	return t, nil
}

func (t *RescaleIntensity) Name() string { return "rescale_intensity" }

func (t *RescaleIntensity) Apply(ctx context.Context, s *subject.Subject) (*subject.Subject, error) {
	out := s.Clone()
	for _, role := range out.Roles() {
		image, err := out.Image(role)
		if err != nil {
			return nil, err
		}
		if image.Kind() != medvol.KindIntensity {
			continue
		}
		vol, err := image.Load(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "role %q", role)
		}
		out.SetImage(role, image.WithVolume(t.rescale(vol)))
	}
	return out, nil
}

func (t *RescaleIntensity) rescale(vol *medvol.Volume) *medvol.Volume {
	lo, hi := t.inputRange(vol)
	out := vol.Clone()
	if hi <= lo {
		// constant image, everything collapses to the lower bound
		for i := range out.Data {
			out.Data[i] = t.outMin
		}
		return out
	}
	scale := (t.outMax - t.outMin) / (hi - lo)
	for i, v := range out.Data {
		switch {
		case v <= lo:
			out.Data[i] = t.outMin
		case v >= hi:
			out.Data[i] = t.outMax
		default:
			out.Data[i] = t.outMin + (v-lo)*scale
		}
	}
	return out
}

func (t *RescaleIntensity) inputRange(vol *medvol.Volume) (float32, float32) {
	if t.percentiles == [2]float64{0, 100} {
		return vol.MinMax()
	}
	sorted := make([]float32, len(vol.Data))
	copy(sorted, vol.Data)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentileValue(sorted, t.percentiles[0]), percentileValue(sorted, t.percentiles[1])
}

func percentileValue(sorted []float32, p float64) float32 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Round(p / 100 * float64(len(sorted)-1)))
	return sorted[idx]
}
