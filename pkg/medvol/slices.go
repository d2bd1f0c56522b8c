package medvol

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ReadSliceStack decodes 2D grayscale slices and stacks them along Z in
// lexical filename order. Slices whose size differs from the first one are
// resampled to match it.
func ReadSliceStack(paths []string) (*Volume, error) {
	if len(paths) == 0 {
		return nil, errors.Wrap(ErrEmptyDirectory, "no slices")
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var vol *Volume
	for zi, path := range sorted {
		slice, err := decodeSlice(path)
		if err != nil {
			return nil, errors.Wrapf(err, "slice %q", path)
		}
		bounds := slice.Bounds()
		if vol == nil {
			vol, err = New(1, bounds.Dx(), bounds.Dy(), len(sorted))
			if err != nil {
				return nil, err
			}
		} else if bounds.Dx() != vol.X || bounds.Dy() != vol.Y {
			slice = resampleSlice(slice, vol.X, vol.Y)
			bounds = slice.Bounds()
		}
		for yi := 0; yi < vol.Y; yi++ {
			for xi := 0; xi < vol.X; xi++ {
				r, g, b, _ := slice.At(bounds.Min.X+xi, bounds.Min.Y+yi).RGBA()
				gray := 0.299*float32(r>>8) + 0.587*float32(g>>8) + 0.114*float32(b>>8)
				vol.Set(0, xi, yi, zi, gray)
			}
		}
	}
	return vol, nil
}

func decodeSlice(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return img, nil
}

func resampleSlice(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)
	return dst
}
