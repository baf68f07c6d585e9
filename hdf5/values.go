package hdf5

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/h5export/internal/message"
)

// values is a Go value converted for storage.
type values struct {
	dtype *message.Datatype
	// dims is nil for a scalar.
	dims []uint64
	data []byte
	// strs holds string values; their datatype depends on the file format
	// and is chosen when the file is written.
	strs []string
}

func (v *values) count() uint64 {
	n := uint64(1)
	for _, d := range v.dims {
		n *= d
	}
	return n
}

type number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

func numeric[T number](vals []T, scalar bool) *values {
	var zero T
	size := uint32(binary.Size(zero))
	v := &values{}
	switch any(zero).(type) {
	case float32, float64:
		v.dtype = message.Float(size)
	case int8, int16, int32, int64:
		v.dtype = message.Int(size, true)
	default:
		v.dtype = message.Int(size, false)
	}
	v.data, _ = binary.Append(nil, binary.LittleEndian, vals)
	if !scalar {
		v.dims = []uint64{uint64(len(vals))}
	}
	return v
}

func widen[T ~int | ~uint](vals []T) []int64 {
	out := make([]int64, len(vals))
	for i, x := range vals {
		out[i] = int64(x)
	}
	return out
}

// encodeValues converts a scalar or slice of a supported type.
func encodeValues(x any) (*values, error) {
	switch v := x.(type) {
	case []float64:
		return numeric(v, false), nil
	case []float32:
		return numeric(v, false), nil
	case []int8:
		return numeric(v, false), nil
	case []int16:
		return numeric(v, false), nil
	case []int32:
		return numeric(v, false), nil
	case []int64:
		return numeric(v, false), nil
	case []int:
		return numeric(widen(v), false), nil
	case []uint8:
		return numeric(v, false), nil
	case []uint16:
		return numeric(v, false), nil
	case []uint32:
		return numeric(v, false), nil
	case []uint64:
		return numeric(v, false), nil
	case float64:
		return numeric([]float64{v}, true), nil
	case float32:
		return numeric([]float32{v}, true), nil
	case int:
		return numeric([]int64{int64(v)}, true), nil
	case int32:
		return numeric([]int32{v}, true), nil
	case int64:
		return numeric([]int64{v}, true), nil
	case uint:
		return numeric([]uint64{uint64(v)}, true), nil
	case uint32:
		return numeric([]uint32{v}, true), nil
	case uint64:
		return numeric([]uint64{v}, true), nil
	case string:
		return &values{strs: []string{v}}, nil
	case []string:
		return &values{strs: v, dims: []uint64{uint64(len(v))}}, nil
	}
	return nil, fmt.Errorf("values of type %T: %w", x, ErrUnsupported)
}
