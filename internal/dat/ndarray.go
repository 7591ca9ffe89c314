// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dat

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
)

// Array is a decoded numpy array widened to float64 and stored in C order.
type Array struct {
	Shape []int
	Data  []float64
	Dtype string
}

// ndarray is the object numpy's pickle protocol builds: _reconstruct
// returns an empty instance and BUILD fills it through PySetState.
type ndarray struct {
	shape   []int
	dt      *dtype
	fortran bool
	raw     []byte
}

// PySetState applies (version, shape, dtype, is_fortran, rawdata).
func (a *ndarray) PySetState(state interface{}) error {
	items, ok := tupleItems(state)
	if !ok {
		return fmt.Errorf("%w: ndarray state %T", ErrMalformed, state)
	}
	// Version 0 omits the leading version number.
	if len(items) == 5 {
		items = items[1:]
	}
	if len(items) != 4 {
		return fmt.Errorf("%w: ndarray state has %d fields", ErrMalformed, len(items))
	}

	shape, err := shapeOf(items[0])
	if err != nil {
		return err
	}
	dt, ok := items[1].(*dtype)
	if !ok {
		return fmt.Errorf("%w: ndarray dtype %T", ErrUnsupportedDtype, items[1])
	}
	raw, ok := asBytes(items[3])
	if !ok {
		return fmt.Errorf("%w: ndarray data %T", ErrUnsupportedDtype, items[3])
	}

	a.shape = shape
	a.dt = dt
	a.fortran = truthy(items[2])
	a.raw = raw
	return nil
}

// array converts the raw buffer into a C-ordered float64 Array.
func (a *ndarray) array() (*Array, error) {
	if a.dt == nil {
		return nil, fmt.Errorf("%w: array state never set", ErrMalformed)
	}
	n, ok := elements(a.shape, a.dt.size)
	if !ok {
		return nil, fmt.Errorf("%w: shape %v of %s overflows", ErrMalformed, a.shape, a.dt)
	}
	data, err := a.dt.decode(a.raw, n)
	if err != nil {
		return nil, err
	}
	if a.fortran && len(a.shape) > 1 {
		data = fortranToC(data, a.shape)
	}
	return &Array{Shape: a.shape, Data: data, Dtype: a.dt.String()}, nil
}

// fortranToC reorders column-major data into row-major order.
func fortranToC(data []float64, shape []int) []float64 {
	out := make([]float64, len(data))
	idx := make([]int, len(shape))
	for c := range out {
		// c walks C order; compute the matching Fortran offset.
		f, stride := 0, 1
		for d := 0; d < len(shape); d++ {
			f += idx[d] * stride
			stride *= shape[d]
		}
		out[c] = data[f]
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// reconstructFunc stands in for numpy.core.multiarray._reconstruct.
type reconstructFunc struct{}

func (reconstructFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: _reconstruct called with no arguments", ErrMalformed)
	}
	if _, ok := args[0].(ndarrayClass); !ok {
		return nil, fmt.Errorf("%w: _reconstruct of %T", ErrUnsupportedGlobal, args[0])
	}
	return &ndarray{}, nil
}

// frombufferFunc stands in for numpy.core.numeric._frombuffer, which
// protocol 5 pickles use: _frombuffer(buffer, dtype, shape, order).
type frombufferFunc struct{}

func (frombufferFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("%w: _frombuffer called with %d arguments", ErrMalformed, len(args))
	}
	raw, ok := asBytes(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: _frombuffer buffer %T", ErrUnsupportedDtype, args[0])
	}
	dt, ok := args[1].(*dtype)
	if !ok {
		return nil, fmt.Errorf("%w: _frombuffer dtype %T", ErrUnsupportedDtype, args[1])
	}
	shape, err := shapeOf(args[2])
	if err != nil {
		return nil, err
	}
	order, _ := asString(args[3])
	return &ndarray{shape: shape, dt: dt, fortran: order == "F", raw: raw}, nil
}

// ndarrayClass is the numpy.ndarray global passed to _reconstruct.
type ndarrayClass struct{}

// dtypeClass stands in for numpy.dtype; calling it builds a dtype.
type dtypeClass struct{}

func (dtypeClass) Call(args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: dtype called with no arguments", ErrMalformed)
	}
	descr, ok := asString(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: dtype %T", ErrUnsupportedDtype, args[0])
	}
	return newDtype(descr)
}

// codecsEncode stands in for _codecs.encode, which Python 3 uses to
// pickle bytes objects under protocols 0-2.
type codecsEncode struct{}

func (codecsEncode) Call(args ...interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: _codecs.encode called with no arguments", ErrMalformed)
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: _codecs.encode of %T", ErrMalformed, args[0])
	}
	// The text is a latin-1 view of the original bytes.
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out, nil
}

// elements returns the element count of shape, failing when the count or
// its byte length (count*size) does not fit in an int.
func elements(shape []int, size int) (int, bool) {
	n := 1
	for _, d := range shape {
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	if size != 0 && n > math.MaxInt/size {
		return 0, false
	}
	return n, true
}

func shapeOf(v interface{}) ([]int, error) {
	items, ok := tupleItems(v)
	if !ok {
		return nil, fmt.Errorf("%w: shape %T", ErrMalformed, v)
	}
	shape := make([]int, len(items))
	for i, it := range items {
		n, ok := asInt(it)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: shape dimension %v", ErrMalformed, it)
		}
		shape[i] = n
	}
	if _, ok := elements(shape, 1); !ok {
		return nil, fmt.Errorf("%w: shape %v overflows", ErrMalformed, shape)
	}
	return shape, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case *big.Int:
		if !n.IsInt64() {
			return 0, false
		}
		return int(n.Int64()), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func truthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	n, ok := asInt(v)
	return ok && n != 0
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// asBytes accepts a Python 2 str (raw bytes in a Go string), a bytes
// object, or any byte-slice type the unpickler may produce for bytearrays.
func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case string:
		return []byte(b), true
	case []byte:
		return b, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Bytes(), true
	}
	return nil, false
}
