package medvol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageKinds(t *testing.T) {
	assert.Equal(t, KindIntensity, NewScalarImage("a.nii").Kind())
	assert.Equal(t, KindLabel, NewLabelMap("a.nii").Kind())
	assert.Equal(t, "intensity", KindIntensity.String())
	assert.Equal(t, "label", KindLabel.String())
}

func TestImageFromVolume(t *testing.T) {
	vol, err := New(1, 2, 2, 2)
	require.NoError(t, err)

	img := ScalarImageFromVolume(vol)
	assert.True(t, img.Loaded())

	got, err := img.Volume()
	require.NoError(t, err)
	assert.Same(t, vol, got)

	// a fresh load returns the cached volume without touching disk
	got, err = img.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, vol, got)
}

func TestImageVolumeNotLoaded(t *testing.T) {
	img := NewScalarImage("missing.nii")
	_, err := img.Volume()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestImageLoadUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.xyz")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o600))

	_, err := NewScalarImage(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestImageLoadEmptyDirectory(t *testing.T) {
	_, err := NewScalarImage(t.TempDir()).Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDirectory)
}

func TestImageLoadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScalarImage("whatever.nii").Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageClone(t *testing.T) {
	vol, err := FromData(1, 1, 1, 1, []float32{5})
	require.NoError(t, err)

	img := LabelMapFromVolume(vol)
	clone := img.Clone()

	cloneVol, err := clone.Volume()
	require.NoError(t, err)
	cloneVol.Set(0, 0, 0, 0, 9)

	assert.Equal(t, float32(5), vol.At(0, 0, 0, 0))
	assert.Equal(t, KindLabel, clone.Kind())
}

func TestImageWithVolume(t *testing.T) {
	next, err := FromData(1, 1, 1, 1, []float32{2})
	require.NoError(t, err)

	img := NewScalarImage("orig.nii")
	derived := img.WithVolume(next)

	assert.Equal(t, img.Kind(), derived.Kind())
	assert.Equal(t, img.Path(), derived.Path())
	got, err := derived.Volume()
	require.NoError(t, err)
	assert.Same(t, next, got)
}
