package medvol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVolume(t *testing.T) {
	tcs := map[string]struct {
		channels, x, y, z int
		expectErr         error
	}{
		"single channel": {channels: 1, x: 2, y: 3, z: 4},
		"multi channel":  {channels: 4, x: 5, y: 5, z: 5},
		"zero dim":       {channels: 1, x: 0, y: 3, z: 4, expectErr: ErrBadShape},
		"negative dim":   {channels: -1, x: 2, y: 3, z: 4, expectErr: ErrBadShape},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			vol, err := New(tc.channels, tc.x, tc.y, tc.z)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, [4]int{tc.channels, tc.x, tc.y, tc.z}, vol.Shape())
			assert.Len(t, vol.Data, tc.channels*tc.x*tc.y*tc.z)
		})
	}
}

func TestFromDataLengthMismatch(t *testing.T) {
	_, err := FromData(1, 2, 2, 2, make([]float32, 7))
	assert.ErrorIs(t, err, ErrDataLength)
}

func TestVolumeAtSet(t *testing.T) {
	vol, err := New(2, 3, 4, 5)
	require.NoError(t, err)

	vol.Set(1, 2, 3, 4, 42)
	assert.Equal(t, float32(42), vol.At(1, 2, 3, 4))
	assert.Equal(t, float32(0), vol.At(0, 2, 3, 4))
}

func TestVolumeClone(t *testing.T) {
	vol, err := FromData(1, 1, 1, 2, []float32{1, 2})
	require.NoError(t, err)

	clone := vol.Clone()
	clone.Set(0, 0, 0, 0, 99)

	assert.Equal(t, float32(1), vol.At(0, 0, 0, 0))
	assert.Equal(t, float32(99), clone.At(0, 0, 0, 0))
}

func TestVolumeMinMax(t *testing.T) {
	vol, err := FromData(1, 1, 2, 2, []float32{-3, 7, 0, 2})
	require.NoError(t, err)

	min, max := vol.MinMax()
	assert.Equal(t, float32(-3), min)
	assert.Equal(t, float32(7), max)
}

func TestVolumeThreshold(t *testing.T) {
	vol, err := FromData(1, 1, 1, 4, []float32{0.1, 0.5, 0.6, 0.9})
	require.NoError(t, err)

	labels := vol.Threshold(0.5)
	assert.Equal(t, []float32{0, 0, 1, 1}, labels.Data)
	// input untouched
	assert.Equal(t, float32(0.1), vol.At(0, 0, 0, 0))
}

func TestVolumeMeanStd(t *testing.T) {
	vol, err := FromData(1, 4, 1, 1, []float32{2, 4, 4, 6})
	require.NoError(t, err)

	assert.InDelta(t, 4, vol.Mean(), 1e-9)
	assert.InDelta(t, math.Sqrt(2), vol.Std(), 1e-9)
}

func TestVolumeEqualShape(t *testing.T) {
	a, err := New(1, 2, 3, 4)
	require.NoError(t, err)
	b, err := New(1, 2, 3, 4)
	require.NoError(t, err)
	c, err := New(2, 2, 3, 4)
	require.NoError(t, err)

	assert.True(t, a.EqualShape(b))
	assert.False(t, a.EqualShape(c))
	assert.True(t, a.EqualSpatialShape(c))
	assert.False(t, a.EqualShape(nil))
}
