package medvol

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNRRDHeader   = errors.New("malformed NRRD header")
	ErrNRRDType     = errors.New("unsupported NRRD type")
	ErrNRRDEncoding = errors.New("unsupported NRRD encoding")
	ErrNRRDDetached = errors.New("detached NRRD data files are not supported")
)

// ReadNRRD reads an attached-data NRRD image. Three-dimensional files become
// single-channel volumes, four-dimensional files treat their fastest axis as
// the channel axis.
func ReadNRRD(path string) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer file.Close()
	return decodeNRRD(bufio.NewReader(file))
}

type nrrdHeader struct {
	sizes    []int
	typ      string
	encoding string
	endian   string
}

func decodeNRRD(r *bufio.Reader) (*Volume, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if !strings.HasPrefix(magic, "NRRD000") {
		return nil, errors.Wrapf(ErrNRRDHeader, "magic %q", strings.TrimSpace(magic))
	}

	hdr := nrrdHeader{encoding: "raw", endian: "little"}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "read header")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.Wrapf(ErrNRRDHeader, "line %q", line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(strings.TrimPrefix(value, "="))
		switch key {
		case "data file", "datafile":
			return nil, ErrNRRDDetached
		case "sizes":
			for _, field := range strings.Fields(value) {
				size, err := strconv.Atoi(field)
				if err != nil {
					return nil, errors.Wrapf(ErrNRRDHeader, "sizes %q", value)
				}
				hdr.sizes = append(hdr.sizes, size)
			}
		case "type":
			hdr.typ = value
		case "encoding":
			hdr.encoding = value
		case "endian":
			hdr.endian = value
		}
	}

	var channels, x, y, z int
	switch len(hdr.sizes) {
	case 3:
		channels, x, y, z = 1, hdr.sizes[0], hdr.sizes[1], hdr.sizes[2]
	case 4:
		channels, x, y, z = hdr.sizes[0], hdr.sizes[1], hdr.sizes[2], hdr.sizes[3]
	default:
		return nil, errors.Wrapf(ErrNRRDHeader, "dimension %d", len(hdr.sizes))
	}
	vol, err := New(channels, x, y, z)
	if err != nil {
		return nil, err
	}

	var payload io.Reader = r
	switch hdr.encoding {
	case "raw":
	case "gzip", "gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer gz.Close()
		payload = gz
	default:
		return nil, errors.Wrapf(ErrNRRDEncoding, "encoding %q", hdr.encoding)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if hdr.endian == "big" {
		order = binary.BigEndian
	}
	values, err := readNRRDValues(payload, order, hdr.typ, len(vol.Data))
	if err != nil {
		return nil, err
	}

	// NRRD axes are fastest first: channel (4D only), then x, y, z.
	i := 0
	for zi := 0; zi < z; zi++ {
		for yi := 0; yi < y; yi++ {
			for xi := 0; xi < x; xi++ {
				for c := 0; c < channels; c++ {
					vol.Set(c, xi, yi, zi, values[i])
					i++
				}
			}
		}
	}
	return vol, nil
}

func readNRRDValues(r io.Reader, order binary.ByteOrder, typ string, n int) ([]float32, error) {
	out := make([]float32, n)
	switch typ {
	case "uchar", "uint8", "uint8_t", "unsigned char":
		buf := make([]uint8, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case "short", "int16", "int16_t", "signed short":
		buf := make([]int16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case "ushort", "uint16", "uint16_t", "unsigned short":
		buf := make([]uint16, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case "int", "int32", "int32_t", "signed int":
		buf := make([]int32, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	case "float":
		if err := binary.Read(r, order, out); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
	case "double":
		buf := make([]float64, n)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, errors.Wrap(err, "read voxels")
		}
		for i, v := range buf {
			out[i] = float32(v)
		}
	default:
		return nil, errors.Wrapf(ErrNRRDType, "type %q", typ)
	}
	return out, nil
}
