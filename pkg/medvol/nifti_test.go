package medvol

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildNIfTI(t *testing.T, order binary.ByteOrder, datatype int16, dims [8]int16, slope, inter float32, payload any) []byte {
	t.Helper()
	hdr := nifti1Header{
		SizeofHdr: niftiHeaderSize,
		Dim:       dims,
		Datatype:  datatype,
		VoxOffset: 352,
		SclSlope:  slope,
		SclInter:  inter,
	}
	copy(hdr.Magic[:], "n+1\x00")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, order, &hdr))
	// pad to vox_offset
	buf.Write(make([]byte, int(hdr.VoxOffset)-niftiHeaderSize))
	require.NoError(t, binary.Write(&buf, order, payload))
	return buf.Bytes()
}

func TestDecodeNIfTIInt16(t *testing.T) {
	// 2x2x1 volume, one channel
	raw := buildNIfTI(t, binary.LittleEndian, niftiTypeInt16,
		[8]int16{3, 2, 2, 1, 0, 0, 0, 0}, 2, 10, []int16{1, 2, 3, 4})

	vol, err := decodeNIfTI(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, [4]int{1, 2, 2, 1}, vol.Shape())
	// values scaled by slope 2 and intercept 10; x varies fastest on disk
	assert.Equal(t, float32(12), vol.At(0, 0, 0, 0))
	assert.Equal(t, float32(14), vol.At(0, 1, 0, 0))
	assert.Equal(t, float32(16), vol.At(0, 0, 1, 0))
	assert.Equal(t, float32(18), vol.At(0, 1, 1, 0))
}

func TestDecodeNIfTIBigEndianFloat(t *testing.T) {
	raw := buildNIfTI(t, binary.BigEndian, niftiTypeFloat32,
		[8]int16{3, 1, 1, 2, 0, 0, 0, 0}, 0, 0, []float32{1.5, -2.5})

	vol, err := decodeNIfTI(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, float32(1.5), vol.At(0, 0, 0, 0))
	assert.Equal(t, float32(-2.5), vol.At(0, 0, 0, 1))
}

func TestDecodeNIfTIFourDimensional(t *testing.T) {
	raw := buildNIfTI(t, binary.LittleEndian, niftiTypeUint8,
		[8]int16{4, 1, 1, 2, 2, 0, 0, 0}, 0, 0, []uint8{1, 2, 3, 4})

	vol, err := decodeNIfTI(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, [4]int{2, 1, 1, 2}, vol.Shape())
	assert.Equal(t, float32(1), vol.At(0, 0, 0, 0))
	assert.Equal(t, float32(2), vol.At(0, 0, 0, 1))
	assert.Equal(t, float32(3), vol.At(1, 0, 0, 0))
	assert.Equal(t, float32(4), vol.At(1, 0, 0, 1))
}

func TestDecodeNIfTIBadMagic(t *testing.T) {
	raw := buildNIfTI(t, binary.LittleEndian, niftiTypeUint8,
		[8]int16{3, 1, 1, 1, 0, 0, 0, 0}, 0, 0, []uint8{1})
	copy(raw[344:], "bad\x00")

	_, err := decodeNIfTI(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrNIfTIHeader)
}

func TestDecodeNIfTIUnsupportedDatatype(t *testing.T) {
	raw := buildNIfTI(t, binary.LittleEndian, 1234,
		[8]int16{3, 1, 1, 1, 0, 0, 0, 0}, 0, 0, []uint8{1, 0})

	_, err := decodeNIfTI(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrNIfTIDatatype)
}

func TestReadNIfTIGzipped(t *testing.T) {
	raw := buildNIfTI(t, binary.LittleEndian, niftiTypeFloat32,
		[8]int16{3, 1, 2, 1, 0, 0, 0, 0}, 0, 0, []float32{3, 9})

	dir := t.TempDir()
	path := filepath.Join(dir, "img.nii.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	vol, err := ReadNIfTI(path)
	require.NoError(t, err)
	assert.Equal(t, float32(3), vol.At(0, 0, 0, 0))
	assert.Equal(t, float32(9), vol.At(0, 0, 1, 0))
}
