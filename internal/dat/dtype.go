// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dat

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// dtype mirrors the parts of numpy.dtype needed to decode raw array bytes.
type dtype struct {
	kind      byte // 'f', 'i' or 'u'
	size      int
	byteOrder binary.ByteOrder
	order     string // '<', '>' or '|'
}

// newDtype parses a numpy type string such as "f8", "<f4" or "i2".
func newDtype(descr string) (*dtype, error) {
	d := &dtype{order: "<", byteOrder: binary.LittleEndian}
	if descr != "" {
		switch descr[0] {
		case '<', '=', '|':
			descr = descr[1:]
		case '>':
			d.setByteOrder(">")
			descr = descr[1:]
		}
	}
	if len(descr) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDtype, descr)
	}
	d.kind = descr[0]
	d.size = int(descr[1] - '0')

	switch {
	case d.kind == 'f' && (d.size == 2 || d.size == 4 || d.size == 8):
	case (d.kind == 'i' || d.kind == 'u') && (d.size == 1 || d.size == 2 || d.size == 4 || d.size == 8):
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDtype, descr)
	}
	if d.size == 1 {
		d.order = "|"
	}
	return d, nil
}

func (d *dtype) setByteOrder(order string) {
	switch order {
	case ">":
		d.order, d.byteOrder = ">", binary.BigEndian
	case "|":
		// Single-byte types carry no byte order.
		d.order, d.byteOrder = "|", binary.LittleEndian
	default:
		d.order, d.byteOrder = "<", binary.LittleEndian
	}
}

// String returns the numpy descriptor, e.g. "<f8".
func (d *dtype) String() string {
	return fmt.Sprintf("%s%c%d", d.order, d.kind, d.size)
}

// PySetState applies the state tuple numpy writes for a dtype:
// (version, byteorder, subarray, names, fields, elsize, alignment, flags[, metadata]).
func (d *dtype) PySetState(state interface{}) error {
	items, ok := tupleItems(state)
	if !ok || len(items) < 2 {
		return fmt.Errorf("%w: dtype state %T", ErrMalformed, state)
	}
	order, ok := asString(items[1])
	if !ok {
		return fmt.Errorf("%w: dtype byte order %T", ErrMalformed, items[1])
	}
	if d.size > 1 || order != "|" {
		d.setByteOrder(strings.TrimSpace(order))
	}
	return nil
}

// decode widens raw element bytes to float64.
func (d *dtype) decode(raw []byte, n int) ([]float64, error) {
	if len(raw) != n*d.size {
		return nil, fmt.Errorf("%w: have %d bytes, want %d for %d x %s",
			ErrMalformed, len(raw), n*d.size, n, d)
	}
	out := make([]float64, n)
	bo := d.byteOrder
	for i := range out {
		b := raw[i*d.size : (i+1)*d.size]
		switch d.kind {
		case 'f':
			switch d.size {
			case 2:
				out[i] = float64(float16.Frombits(bo.Uint16(b)).Float32())
			case 4:
				out[i] = float64(math.Float32frombits(bo.Uint32(b)))
			case 8:
				out[i] = math.Float64frombits(bo.Uint64(b))
			}
		case 'i':
			switch d.size {
			case 1:
				out[i] = float64(int8(b[0]))
			case 2:
				out[i] = float64(int16(bo.Uint16(b)))
			case 4:
				out[i] = float64(int32(bo.Uint32(b)))
			case 8:
				out[i] = float64(int64(bo.Uint64(b)))
			}
		case 'u':
			switch d.size {
			case 1:
				out[i] = float64(b[0])
			case 2:
				out[i] = float64(bo.Uint16(b))
			case 4:
				out[i] = float64(bo.Uint32(b))
			case 8:
				out[i] = float64(bo.Uint64(b))
			}
		}
	}
	return out, nil
}
