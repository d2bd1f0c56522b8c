package medvol

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
	"github.com/pkg/errors"
)

var (
	ErrDICOMSeries    = errors.New("inconsistent DICOM series")
	ErrDICOMPixelData = errors.New("missing or unsupported DICOM pixel data")
)

type dicomSlice struct {
	instance      int
	rows, columns int
	values        []float32
}

// ReadDICOMSeries reads one slice per file and stacks them along Z, ordered
// by InstanceNumber. Rescale slope and intercept are applied per slice.
func ReadDICOMSeries(paths []string) (*Volume, error) {
	if len(paths) == 0 {
		return nil, errors.Wrap(ErrDICOMSeries, "no files")
	}
	slices := make([]dicomSlice, 0, len(paths))
	for _, path := range paths {
		slice, err := readDICOMSlice(path)
		if err != nil {
			return nil, errors.Wrapf(err, "slice %q", path)
		}
		slices = append(slices, slice)
	}
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].instance < slices[j].instance
	})

	rows, columns := slices[0].rows, slices[0].columns
	for _, slice := range slices[1:] {
		if slice.rows != rows || slice.columns != columns {
			return nil, errors.Wrapf(ErrDICOMSeries, "slice shapes %dx%d and %dx%d",
				rows, columns, slice.rows, slice.columns)
		}
	}

	vol, err := New(1, columns, rows, len(slices))
	if err != nil {
		return nil, err
	}
	for zi, slice := range slices {
		for yi := 0; yi < rows; yi++ {
			for xi := 0; xi < columns; xi++ {
				vol.Set(0, xi, yi, zi, slice.values[yi*columns+xi])
			}
		}
	}
	return vol, nil
}

func readDICOMSlice(path string) (dicomSlice, error) {
	file, err := os.Open(path)
	if err != nil {
		return dicomSlice{}, errors.Wrap(err, "open")
	}
	defer file.Close()

	dataSet, err := dicom.Parse(file)
	if err != nil {
		return dicomSlice{}, errors.Wrap(err, "parse")
	}

	rows, ok := elementInt(dataSet, dicom.RowsTag)
	if !ok {
		return dicomSlice{}, errors.Wrap(ErrDICOMPixelData, "no Rows element")
	}
	columns, ok := elementInt(dataSet, dicom.ColumnsTag)
	if !ok {
		return dicomSlice{}, errors.Wrap(ErrDICOMPixelData, "no Columns element")
	}
	bits, ok := elementInt(dataSet, dicom.BitsAllocatedTag)
	if !ok {
		bits = 16
	}
	instance, _ := elementInt(dataSet, dicom.InstanceNumberTag)
	signed := false
	if rep, ok := elementInt(dataSet, dicom.PixelRepresentationTag); ok && rep == 1 {
		signed = true
	}
	slope, ok := elementFloat(dataSet, dicom.RescaleSlopeTag)
	if !ok {
		slope = 1
	}
	intercept, _ := elementFloat(dataSet, dicom.RescaleInterceptTag)

	raw, err := pixelBytes(dataSet)
	if err != nil {
		return dicomSlice{}, err
	}
	values, err := decodePixels(raw, rows*columns, bits, signed)
	if err != nil {
		return dicomSlice{}, err
	}
	for i := range values {
		values[i] = values[i]*float32(slope) + float32(intercept)
	}
	return dicomSlice{instance: instance, rows: rows, columns: columns, values: values}, nil
}

func pixelBytes(dataSet *dicom.DataSet) ([]byte, error) {
	element, ok := dataSet.Elements[dicom.PixelDataTag]
	if !ok {
		return nil, errors.Wrap(ErrDICOMPixelData, "no PixelData element")
	}
	switch value := element.ValueField.(type) {
	case dicom.BulkDataBuffer:
		fragments := value.Data()
		if len(fragments) != 1 {
			return nil, errors.Wrapf(ErrDICOMPixelData, "%d fragments", len(fragments))
		}
		return fragments[0], nil
	case []byte:
		return value, nil
	case []uint16:
		raw := make([]byte, 2*len(value))
		for i, v := range value {
			raw[2*i] = byte(v)
			raw[2*i+1] = byte(v >> 8)
		}
		return raw, nil
	}
	return nil, errors.Wrapf(ErrDICOMPixelData, "value type %T", element.ValueField)
}

func decodePixels(raw []byte, n, bits int, signed bool) ([]float32, error) {
	values := make([]float32, n)
	switch bits {
	case 8:
		if len(raw) < n {
			return nil, errors.Wrapf(ErrDICOMPixelData, "got %d bytes, want %d", len(raw), n)
		}
		for i := 0; i < n; i++ {
			if signed {
				values[i] = float32(int8(raw[i]))
			} else {
				values[i] = float32(raw[i])
			}
		}
	case 16:
		if len(raw) < 2*n {
			return nil, errors.Wrapf(ErrDICOMPixelData, "got %d bytes, want %d", len(raw), 2*n)
		}
		for i := 0; i < n; i++ {
			v := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			if signed {
				values[i] = float32(int16(v))
			} else {
				values[i] = float32(v)
			}
		}
	default:
		return nil, errors.Wrapf(ErrDICOMPixelData, "%d bits allocated", bits)
	}
	return values, nil
}

func elementInt(dataSet *dicom.DataSet, tag dicom.DataElementTag) (int, bool) {
	element, ok := dataSet.Elements[tag]
	if !ok {
		return 0, false
	}
	switch value := element.ValueField.(type) {
	case []uint16:
		if len(value) > 0 {
			return int(value[0]), true
		}
	case []int16:
		if len(value) > 0 {
			return int(value[0]), true
		}
	case []uint32:
		if len(value) > 0 {
			return int(value[0]), true
		}
	case []int32:
		if len(value) > 0 {
			return int(value[0]), true
		}
	case []string:
		if len(value) > 0 {
			parsed, err := strconv.Atoi(strings.TrimSpace(value[0]))
			if err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func elementFloat(dataSet *dicom.DataSet, tag dicom.DataElementTag) (float64, bool) {
	element, ok := dataSet.Elements[tag]
	if !ok {
		return 0, false
	}
	switch value := element.ValueField.(type) {
	case []float32:
		if len(value) > 0 {
			return float64(value[0]), true
		}
	case []float64:
		if len(value) > 0 {
			return value[0], true
		}
	case []string:
		if len(value) > 0 {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value[0]), 64)
			if err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
