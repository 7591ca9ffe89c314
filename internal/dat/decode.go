// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dat decodes DEAP subject files. A .dat file is a Python pickle
// whose top-level object is a dict holding two numpy arrays: "data" with
// shape [trials][channels][samples] and "labels" with shape
// [trials][label dims]. Arrays may be stored by Python 2 (raw data in a
// latin-1 str) or Python 3 (bytes), in C or Fortran order, with any
// float, signed or unsigned integer dtype; values are widened to float64.
package dat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"

	rtypes "github.com/pdiddy/deapcsv/pkg/types"
)

// Keys of the top-level mapping.
const (
	KeyData   = "data"
	KeyLabels = "labels"
)

var (
	// ErrNotMapping reports a pickle whose top-level object is not a dict.
	ErrNotMapping = errors.New("top-level object is not a mapping")
	// ErrMissingKey reports a mapping without the "data" or "labels" key.
	ErrMissingKey = errors.New("missing key")
	// ErrNotArray reports a key whose value is not a numpy array.
	ErrNotArray = errors.New("value is not a numpy array")
	// ErrUnsupportedDtype reports an array type this package cannot widen.
	ErrUnsupportedDtype = errors.New("unsupported dtype")
	// ErrUnsupportedGlobal reports a pickled class outside the numpy allowlist.
	ErrUnsupportedGlobal = errors.New("unsupported global")
	// ErrMalformed reports a pickle that does not follow numpy's layout.
	ErrMalformed = errors.New("malformed array")
	// ErrRank reports an array with the wrong number of dimensions.
	ErrRank = errors.New("unexpected array rank")
)

// DecodeFile opens path and decodes it as a subject record.
func DecodeFile(path string) (*rtypes.SubjectRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a pickled subject mapping from r.
func Decode(r io.Reader) (*rtypes.SubjectRecord, error) {
	arrays, err := DecodeArrays(r)
	if err != nil {
		return nil, err
	}
	signal, labels := arrays[KeyData], arrays[KeyLabels]

	if len(signal.Shape) != 3 {
		return nil, fmt.Errorf("%w: %q has shape %v, want 3 dimensions", ErrRank, KeyData, signal.Shape)
	}
	if len(labels.Shape) != 2 {
		return nil, fmt.Errorf("%w: %q has shape %v, want 2 dimensions", ErrRank, KeyLabels, labels.Shape)
	}

	rec := &rtypes.SubjectRecord{
		Signal:      rtypes.Array3{Data: signal.Data},
		Labels:      rtypes.Array2{Data: labels.Data},
		SignalDtype: signal.Dtype,
		LabelsDtype: labels.Dtype,
	}
	copy(rec.Signal.Shape[:], signal.Shape)
	copy(rec.Labels.Shape[:], labels.Shape)
	return rec, nil
}

// DecodeArrays reads the pickled mapping and returns the "data" and
// "labels" arrays keyed by name, without checking their rank.
func DecodeArrays(r io.Reader) (map[string]*Array, error) {
	u := pickle.NewUnpickler(bufio.NewReader(r))
	u.FindClass = findClass

	obj, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickling: %w", err)
	}

	dict, ok := obj.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, obj)
	}

	arrays := make(map[string]*Array, 2)
	for _, key := range []string{KeyData, KeyLabels} {
		v, ok := dict.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingKey, key)
		}
		nd, ok := v.(*ndarray)
		if !ok {
			return nil, fmt.Errorf("%w: %q holds %T", ErrNotArray, key, v)
		}
		a, err := nd.array()
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		arrays[key] = a
	}
	return arrays, nil
}

// findClass resolves the globals a numpy array pickle references. Anything
// else is rejected so a .dat file cannot name arbitrary classes.
func findClass(module, name string) (interface{}, error) {
	switch module + "." + name {
	case "numpy.core.multiarray._reconstruct", "numpy._core.multiarray._reconstruct":
		return reconstructFunc{}, nil
	case "numpy.core.numeric._frombuffer", "numpy._core.numeric._frombuffer":
		return frombufferFunc{}, nil
	case "numpy.ndarray":
		return ndarrayClass{}, nil
	case "numpy.dtype":
		return dtypeClass{}, nil
	case "_codecs.encode":
		return codecsEncode{}, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedGlobal, module, name)
}

func tupleItems(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case *types.Tuple:
		return []interface{}(*t), true
	case types.Tuple:
		return []interface{}(t), true
	case *types.List:
		return []interface{}(*t), true
	case []interface{}:
		return t, true
	}
	return nil, false
}
