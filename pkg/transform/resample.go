package transform

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/medvol"
	"github.com/student-shriman/torch-io/pkg/subject"
)

// coordMap maps an output voxel coordinate to the source coordinate it
// samples from.
type coordMap func(x, y, z int) (fx, fy, fz float64)

// resampleSubject applies one spatial mapping to every image of the subject,
// sampling intensity images trilinearly and label maps with nearest
// neighbour. Images are loaded on demand.
func resampleSubject(ctx context.Context, s *subject.Subject, mapFn coordMap) (*subject.Subject, error) {
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
		warped := resampleVolume(vol, image.Kind(), mapFn)
		out.SetImage(role, image.WithVolume(warped))
	}
	return out, nil
}

func resampleVolume(vol *medvol.Volume, kind medvol.Kind, mapFn coordMap) *medvol.Volume {
	out, _ := medvol.New(vol.Channels, vol.X, vol.Y, vol.Z)
	for x := 0; x < vol.X; x++ {
		for y := 0; y < vol.Y; y++ {
			for z := 0; z < vol.Z; z++ {
				fx, fy, fz := mapFn(x, y, z)
				for c := 0; c < vol.Channels; c++ {
					var value float32
					if kind == medvol.KindLabel {
						value = sampleNearest(vol, c, fx, fy, fz)
					} else {
						value = sampleTrilinear(vol, c, fx, fy, fz)
					}
					out.Set(c, x, y, z, value)
				}
			}
		}
	}
	return out
}

// sampleNearest reads the closest voxel, zero outside the grid.
func sampleNearest(vol *medvol.Volume, c int, fx, fy, fz float64) float32 {
	x := int(math.Round(fx))
	y := int(math.Round(fy))
	z := int(math.Round(fz))
	if x < 0 || y < 0 || z < 0 || x >= vol.X || y >= vol.Y || z >= vol.Z {
		return 0
	}
	return vol.At(c, x, y, z)
}

// sampleTrilinear interpolates the eight surrounding voxels, zero outside
// the grid.
func sampleTrilinear(vol *medvol.Volume, c int, fx, fy, fz float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	z0 := int(math.Floor(fz))
	dx := float32(fx - float64(x0))
	dy := float32(fy - float64(y0))
	dz := float32(fz - float64(z0))

	var acc float32
	for _, corner := range [8][3]int{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
	} {
		x, y, z := x0+corner[0], y0+corner[1], z0+corner[2]
		if x < 0 || y < 0 || z < 0 || x >= vol.X || y >= vol.Y || z >= vol.Z {
			continue
		}
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
		acc += vol.At(c, x, y, z) * wx * wy * wz
	}
	return acc
}
