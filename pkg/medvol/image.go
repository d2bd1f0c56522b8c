package medvol

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotLoaded      = errors.New("image volume is not loaded")
	ErrUnknownFormat  = errors.New("unrecognised image format")
	ErrEmptyDirectory = errors.New("directory contains no readable slices")
)

// Kind distinguishes intensity images from label maps. The kind decides the
// interpolation used when an image is spatially resampled: trilinear for
// intensities, nearest neighbour for labels.
type Kind int

const (
	KindIntensity Kind = iota
	KindLabel
)

func (k Kind) String() string {
	if k == KindLabel {
		return "label"
	}
	return "intensity"
}

// Image is a lazily loaded reference to a voxel volume, backed either by a
// path on disk or by an in-memory volume.
type Image struct {
	kind Kind
	path string

	mu  sync.Mutex
	vol *Volume
}

// NewScalarImage returns a file-backed intensity image. The file is not
// touched until Load is called.
func NewScalarImage(path string) *Image {
	return &Image{kind: KindIntensity, path: path}
}

// NewLabelMap returns a file-backed label map.
func NewLabelMap(path string) *Image {
	return &Image{kind: KindLabel, path: path}
}

// ScalarImageFromVolume returns an intensity image backed by vol.
func ScalarImageFromVolume(vol *Volume) *Image {
	return &Image{kind: KindIntensity, vol: vol}
}

// LabelMapFromVolume returns a label map backed by vol.
func LabelMapFromVolume(vol *Volume) *Image {
	return &Image{kind: KindLabel, vol: vol}
}

func (im *Image) Kind() Kind { return im.kind }

// Path returns the backing path, empty for in-memory images.
func (im *Image) Path() string { return im.path }

// Loaded reports whether the volume is in memory.
func (im *Image) Loaded() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.vol != nil
}

// Load reads the backing file if needed and returns the volume. The volume is
// cached, concurrent calls share a single read.
func (im *Image) Load(ctx context.Context) (*Volume, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.vol != nil {
		return im.vol, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "load image")
	}
	vol, err := readVolume(im.path)
	if err != nil {
		return nil, errors.Wrapf(err, "load image %q", im.path)
	}
	im.vol = vol
	return vol, nil
}

// Volume returns the loaded volume or ErrNotLoaded.
func (im *Image) Volume() (*Volume, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.vol == nil {
		return nil, errors.Wrapf(ErrNotLoaded, "image %q", im.path)
	}
	return im.vol, nil
}

// WithVolume returns an image of the same kind and path backed by vol.
// Transforms use it to emit their outputs without mutating inputs.
func (im *Image) WithVolume(vol *Volume) *Image {
	return &Image{kind: im.kind, path: im.path, vol: vol}
}

// Clone returns a copy of the image. A loaded volume is deep-copied, an
// unloaded file reference stays a reference.
func (im *Image) Clone() *Image {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := &Image{kind: im.kind, path: im.path}
	if im.vol != nil {
		out.vol = im.vol.Clone()
	}
	return out
}

// readVolume dispatches on the path: NIfTI and NRRD files by extension,
// directories by the extension of their entries (DICOM series or stacks of
// 2D slices).
func readVolume(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	if info.IsDir() {
		return readDirectory(path)
	}
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".nii"), strings.HasSuffix(name, ".nii.gz"):
		return ReadNIfTI(path)
	case strings.HasSuffix(name, ".nrrd"):
		return ReadNRRD(path)
	case strings.HasSuffix(name, ".dcm"):
		return ReadDICOMSeries([]string{path})
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "file %q", path)
}

func readDirectory(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read dir")
	}
	var dicomFiles, sliceFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".dcm":
			dicomFiles = append(dicomFiles, full)
		case ".png", ".jpg", ".jpeg":
			sliceFiles = append(sliceFiles, full)
		}
	}
	switch {
	case len(dicomFiles) > 0:
		return ReadDICOMSeries(dicomFiles)
	case len(sliceFiles) > 0:
		return ReadSliceStack(sliceFiles)
	}
	return nil, errors.Wrapf(ErrEmptyDirectory, "directory %q", dir)
}
