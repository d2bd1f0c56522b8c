package medvol

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNIfTIHeader   = errors.New("not a NIfTI-1 file")
	ErrNIfTIDatatype = errors.New("unsupported NIfTI datatype")
)

const niftiHeaderSize = 348

// nifti1Header mirrors the fixed 348-byte NIfTI-1 header layout so it can be
// decoded in one binary.Read.
type nifti1Header struct {
	SizeofHdr     int32
	DataTypeName  [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NIfTI-1 datatype codes.
const (
	niftiTypeUint8   = 2
	niftiTypeInt16   = 4
	niftiTypeInt32   = 8
	niftiTypeFloat32 = 16
	niftiTypeFloat64 = 64
	niftiTypeInt8    = 256
	niftiTypeUint16  = 512
)

// ReadNIfTI reads a single-file NIfTI-1 image (.nii or .nii.gz). The scaling
// slope and intercept from the header are applied to every voxel.
func ReadNIfTI(path string) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer gz.Close()
		reader = gz
	}
	return decodeNIfTI(reader)
}

func decodeNIfTI(r io.Reader) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	order, err := niftiByteOrder(raw)
	if err != nil {
		return nil, err
	}
	var hdr nifti1Header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, errors.Wrap(err, "decode header")
	}
	magic := string(hdr.Magic[:3])
	if magic != "n+1" {
		return nil, errors.Wrapf(ErrNIfTIHeader, "magic %q", magic)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 2 || ndim > 7 {
		return nil, errors.Wrapf(ErrNIfTIHeader, "dim[0] = %d", ndim)
	}
	dim := func(i int) int {
		if i > ndim || hdr.Dim[i] <= 0 {
			return 1
		}
		return int(hdr.Dim[i])
	}
	x, y, z, channels := dim(1), dim(2), dim(3), dim(4)

	vol, err := New(channels, x, y, z)
	if err != nil {
		return nil, err
	}

	// vox_offset for single-file NIfTI is at least 352; skip extensions.
	if skip := int64(hdr.VoxOffset) - niftiHeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, errors.Wrap(err, "skip extensions")
		}
	}

	values, err := readNIfTIValues(r, order, hdr.Datatype, channels*x*y*z)
	if err != nil {
		return nil, err
	}
	slope, inter := hdr.SclSlope, hdr.SclInter
	if slope == 0 {
		slope, inter = 1, 0
	}

	// NIfTI stores x fastest, then y, z, then the fourth dimension.
	i := 0
	for c := 0; c < channels; c++ {
		for zi := 0; zi < z; zi++ {
			for yi := 0; yi < y; yi++ {
				for xi := 0; xi < x; xi++ {
					vol.Set(c, xi, yi, zi, values[i]*slope+inter)
					i++
				}
			}
		}
	}
	return vol, nil
}

func niftiByteOrder(raw []byte) (binary.ByteOrder, error) {
	if binary.LittleEndian.Uint32(raw[:4]) == niftiHeaderSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(raw[:4]) == niftiHeaderSize {
		return binary.BigEndian, nil
	}
	return nil, errors.Wrap(ErrNIfTIHeader, "sizeof_hdr mismatch")
}

func readNIfTIValues(r io.Reader, order binary.ByteOrder, datatype int16, n int) ([]float32, error) {
	out := make([]float32, n)
	switch datatype {
	case niftiTypeUint8:
		buf := make([]uint8, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case niftiTypeInt8:
		buf := make([]int8, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case niftiTypeInt16:
		buf := make([]int16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case niftiTypeUint16:
		buf := make([]uint16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case niftiTypeInt32:
		buf := make([]int32, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case niftiTypeFloat32:
		if err := binary.Read(r, order, out); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
	case niftiTypeFloat64:
		buf := make([]float64, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	default:
		return nil, errors.Wrapf(ErrNIfTIDatatype, "code %d", datatype)
	}
	return out, nil
}
