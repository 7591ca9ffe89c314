// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dattest writes synthetic DEAP subject files for tests. The
// output follows the opcode layout numpy arrays take under cPickle
// protocol 2 (Python 2) or pickle protocol 3 (Python 3).
package dattest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/x448/float16"

	"github.com/pdiddy/deapcsv/pkg/types"
)

// Options controls how a record is pickled.
type Options struct {
	// Dtype is the numpy descriptor for both arrays (default "<f8").
	// Supported: "<f8", ">f8", "<f4", "<f2", "<i4".
	Dtype string

	// Python3 writes protocol 3 with bytes payloads and unicode keys
	// instead of protocol 2 with str payloads.
	Python3 bool

	// Fortran stores array bytes in column-major order.
	Fortran bool

	// OmitLabels leaves the "labels" key out of the mapping.
	OmitLabels bool
}

// NewRecord builds a record of the given shape. signal and label supply
// element values; a nil func leaves zeros.
func NewRecord(trials, channels, samples, labelDims int,
	signal func(t, c, s int) float64, label func(t, d int) float64) *types.SubjectRecord {
	rec := &types.SubjectRecord{
		Signal: types.Array3{
			Shape: [3]int{trials, channels, samples},
			Data:  make([]float64, trials*channels*samples),
		},
		Labels: types.Array2{
			Shape: [2]int{trials, labelDims},
			Data:  make([]float64, trials*labelDims),
		},
	}
	if signal != nil {
		i := 0
		for t := 0; t < trials; t++ {
			for c := 0; c < channels; c++ {
				for s := 0; s < samples; s++ {
					rec.Signal.Data[i] = signal(t, c, s)
					i++
				}
			}
		}
	}
	if label != nil {
		for t := 0; t < trials; t++ {
			for d := 0; d < labelDims; d++ {
				rec.Labels.Data[t*labelDims+d] = label(t, d)
			}
		}
	}
	return rec
}

// WriteFile pickles rec into path, failing the test on error.
func WriteFile(tb testing.TB, path string, rec *types.SubjectRecord, opts Options) {
	tb.Helper()
	if err := os.WriteFile(path, Pickle(rec, opts), 0o644); err != nil {
		tb.Fatal(err)
	}
}

// Pickle returns the pickled form of rec.
func Pickle(rec *types.SubjectRecord, opts Options) []byte {
	if opts.Dtype == "" {
		opts.Dtype = "<f8"
	}
	p := pickler{python3: opts.Python3}
	p.proto()
	p.buf.WriteByte('}') // EMPTY_DICT
	p.buf.WriteByte('(') // MARK
	if !opts.OmitLabels {
		p.key("labels")
		p.array(rec.Labels.Shape[:], encode(rec.Labels.Shape[:], rec.Labels.Data, opts), opts)
	}
	p.key("data")
	p.array(rec.Signal.Shape[:], encode(rec.Signal.Shape[:], rec.Signal.Data, opts), opts)
	p.buf.WriteByte('u') // SETITEMS
	p.buf.WriteByte('.') // STOP
	return p.buf.Bytes()
}

// Header returns a pickle whose arrays declare the given shapes but carry
// empty data buffers, as a corrupt or hostile file might.
func Header(dataShape, labelShape []int, opts Options) []byte {
	if opts.Dtype == "" {
		opts.Dtype = "<f8"
	}
	p := pickler{python3: opts.Python3}
	p.proto()
	p.buf.WriteByte('}')
	p.buf.WriteByte('(')
	p.key("labels")
	p.array(labelShape, nil, opts)
	p.key("data")
	p.array(dataShape, nil, opts)
	p.buf.WriteByte('u')
	p.buf.WriteByte('.')
	return p.buf.Bytes()
}

// List returns a pickle whose top-level object is an empty list.
func List() []byte {
	return []byte{0x80, 2, ']', '.'}
}

type pickler struct {
	buf     bytes.Buffer
	python3 bool
}

// proto writes PROTO 3 for Python 3 streams and PROTO 2 otherwise.
func (p *pickler) proto() {
	if p.python3 {
		p.buf.Write([]byte{0x80, 3})
	} else {
		p.buf.Write([]byte{0x80, 2})
	}
}

func (p *pickler) key(s string) {
	if p.python3 {
		p.unicode(s)
	} else {
		p.str(s)
	}
}

// str writes a Python 2 str (SHORT_BINSTRING / BINSTRING).
func (p *pickler) str(s string) {
	if len(s) < 256 {
		p.buf.WriteByte('U')
		p.buf.WriteByte(byte(len(s)))
	} else {
		p.buf.WriteByte('T')
		binary.Write(&p.buf, binary.LittleEndian, uint32(len(s)))
	}
	p.buf.WriteString(s)
}

// unicode writes BINUNICODE.
func (p *pickler) unicode(s string) {
	p.buf.WriteByte('X')
	binary.Write(&p.buf, binary.LittleEndian, uint32(len(s)))
	p.buf.WriteString(s)
}

// payload writes raw bytes as a str (Python 2) or bytes (Python 3).
func (p *pickler) payload(b []byte) {
	if !p.python3 {
		p.str(string(b))
		return
	}
	if len(b) < 256 {
		p.buf.WriteByte('C') // SHORT_BINBYTES
		p.buf.WriteByte(byte(len(b)))
	} else {
		p.buf.WriteByte('B') // BINBYTES
		binary.Write(&p.buf, binary.LittleEndian, uint32(len(b)))
	}
	p.buf.Write(b)
}

func (p *pickler) integer(n int) {
	switch {
	case n >= 0 && n < 256:
		p.buf.WriteByte('K')
		p.buf.WriteByte(byte(n))
	case n >= 0 && n < 65536:
		p.buf.WriteByte('M')
		binary.Write(&p.buf, binary.LittleEndian, uint16(n))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		p.buf.WriteByte('J')
		binary.Write(&p.buf, binary.LittleEndian, int32(n))
	default:
		p.buf.Write([]byte{0x8a, 8}) // LONG1
		binary.Write(&p.buf, binary.LittleEndian, int64(n))
	}
}

func (p *pickler) global(module, name string) {
	p.buf.WriteByte('c')
	p.buf.WriteString(module + "\n" + name + "\n")
}

// array writes numpy's ndarray.__reduce__ output:
// _reconstruct(ndarray, (0,), b'b') followed by BUILD with
// (1, shape, dtype, is_fortran, rawdata).
func (p *pickler) array(shape []int, raw []byte, opts Options) {
	p.global("numpy.core.multiarray", "_reconstruct")
	p.global("numpy", "ndarray")
	p.integer(0)
	p.buf.WriteByte(0x85) // TUPLE1
	p.payload([]byte("b"))
	p.buf.WriteByte(0x87) // TUPLE3
	p.buf.WriteByte('R')  // REDUCE

	p.buf.WriteByte('(')
	p.integer(1)
	p.buf.WriteByte('(')
	for _, d := range shape {
		p.integer(d)
	}
	p.buf.WriteByte('t') // TUPLE
	p.dtype(opts.Dtype)
	if opts.Fortran {
		p.buf.WriteByte(0x88) // NEWTRUE
	} else {
		p.buf.WriteByte(0x89) // NEWFALSE
	}
	p.payload(raw)
	p.buf.WriteByte('t')
	p.buf.WriteByte('b') // BUILD
}

// dtype writes dtype('f8', False, True) with state
// (3, '<', None, None, None, -1, -1, 0).
func (p *pickler) dtype(descr string) {
	p.global("numpy", "dtype")
	p.key(descr[1:])
	p.buf.WriteByte(0x89)
	p.buf.WriteByte(0x88)
	p.buf.WriteByte(0x87)
	p.buf.WriteByte('R')

	p.buf.WriteByte('(')
	p.integer(3)
	p.key(descr[:1])
	p.buf.WriteString("NNN")
	p.integer(-1)
	p.integer(-1)
	p.integer(0)
	p.buf.WriteByte('t')
	p.buf.WriteByte('b')
}

func encode(shape []int, data []float64, opts Options) []byte {
	if opts.Fortran {
		data = cToFortran(data, shape)
	}
	var bo binary.AppendByteOrder = binary.LittleEndian
	if opts.Dtype[0] == '>' {
		bo = binary.BigEndian
	}
	var out []byte
	for _, v := range data {
		switch opts.Dtype[1:] {
		case "f8":
			out = bo.AppendUint64(out, math.Float64bits(v))
		case "f4":
			out = bo.AppendUint32(out, math.Float32bits(float32(v)))
		case "f2":
			out = bo.AppendUint16(out, float16.Fromfloat32(float32(v)).Bits())
		case "i4":
			out = bo.AppendUint32(out, uint32(int32(v)))
		default:
			panic("dattest: unsupported dtype " + opts.Dtype)
		}
	}
	return out
}

func cToFortran(data []float64, shape []int) []float64 {
	out := make([]float64, len(data))
	idx := make([]int, len(shape))
	for c := range data {
		f, stride := 0, 1
		for d := range shape {
			f += idx[d] * stride
			stride *= shape[d]
		}
		out[f] = data[c]
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
