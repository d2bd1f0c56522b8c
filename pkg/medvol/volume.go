package medvol

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrBadShape   = errors.New("volume dimensions must be positive")
	ErrDataLength = errors.New("data length does not match volume shape")
)

// Volume is a dense float32 voxel grid with shape [C, X, Y, Z], channels
// first. Data is laid out with Z varying fastest.
type Volume struct {
	Channels int
	X, Y, Z  int
	Data     []float32
}

// New creates a zero-filled volume.
func New(channels, x, y, z int) (*Volume, error) {
	if channels <= 0 || x <= 0 || y <= 0 || z <= 0 {
		return nil, errors.Wrapf(ErrBadShape, "got [%d %d %d %d]", channels, x, y, z)
	}
	return &Volume{
		Channels: channels,
		X:        x,
		Y:        y,
		Z:        z,
		Data:     make([]float32, channels*x*y*z),
	}, nil
}

// FromData creates a volume backed by data. The slice is not copied.
func FromData(channels, x, y, z int, data []float32) (*Volume, error) {
	vol, err := New(channels, x, y, z)
	if err != nil {
		return nil, err
	}
	if len(data) != channels*x*y*z {
		return nil, errors.Wrapf(ErrDataLength, "got %d, want %d", len(data), channels*x*y*z)
	}
	vol.Data = data
	return vol, nil
}

func (v *Volume) index(c, x, y, z int) int {
	return ((c*v.X+x)*v.Y+y)*v.Z + z
}

// At returns the voxel value at [c, x, y, z].
func (v *Volume) At(c, x, y, z int) float32 {
	return v.Data[v.index(c, x, y, z)]
}

// Set assigns the voxel value at [c, x, y, z].
func (v *Volume) Set(c, x, y, z int, value float32) {
	v.Data[v.index(c, x, y, z)] = value
}

// Shape returns [C, X, Y, Z].
func (v *Volume) Shape() [4]int {
	return [4]int{v.Channels, v.X, v.Y, v.Z}
}

// SpatialShape returns [X, Y, Z].
func (v *Volume) SpatialShape() [3]int {
	return [3]int{v.X, v.Y, v.Z}
}

// Voxels returns the number of voxels per channel.
func (v *Volume) Voxels() int {
	return v.X * v.Y * v.Z
}

// EqualShape reports whether both volumes have the same [C, X, Y, Z] shape.
func (v *Volume) EqualShape(other *Volume) bool {
	return other != nil && v.Shape() == other.Shape()
}

// EqualSpatialShape reports whether both volumes cover the same [X, Y, Z] grid.
func (v *Volume) EqualSpatialShape(other *Volume) bool {
	return other != nil && v.SpatialShape() == other.SpatialShape()
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	return &Volume{
		Channels: v.Channels,
		X:        v.X,
		Y:        v.Y,
		Z:        v.Z,
		Data:     data,
	}
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (float32, float32) {
	min := float32(math.Inf(1))
	max := float32(math.Inf(-1))
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return min, max
}

// Mean returns the mean voxel value.
func (v *Volume) Mean() float64 {
	var sum float64
	for _, val := range v.Data {
		sum += float64(val)
	}
	return sum / float64(len(v.Data))
}

// Std returns the population standard deviation of the voxel values.
func (v *Volume) Std() float64 {
	mean := v.Mean()
	var sum float64
	for _, val := range v.Data {
		diff := float64(val) - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(v.Data)))
}

// Threshold returns a label volume holding 1 where the voxel value is strictly
// greater than cutoff and 0 elsewhere.
func (v *Volume) Threshold(cutoff float32) *Volume {
	out := v.Clone()
	for i, val := range v.Data {
		if val > cutoff {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}
