// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dat_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deapcsv/internal/dat"
	"github.com/pdiddy/deapcsv/internal/dat/dattest"
)

func sampleRecord() (trials, channels, samples, labelDims int, signal func(t, c, s int) float64, label func(t, d int) float64) {
	return 3, 5, 4, 4,
		func(t, c, s int) float64 { return float64(t*100+c*10+s) + 0.5 },
		func(t, d int) float64 { return float64(t) + float64(d)/4 }
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		opts  dattest.Options
		dtype string
	}{
		{name: "python 2 little endian f8", opts: dattest.Options{}, dtype: "<f8"},
		{name: "python 3 bytes payload", opts: dattest.Options{Python3: true}, dtype: "<f8"},
		{name: "big endian f8", opts: dattest.Options{Dtype: ">f8"}, dtype: ">f8"},
		{name: "float32", opts: dattest.Options{Dtype: "<f4"}, dtype: "<f4"},
		{name: "float16", opts: dattest.Options{Dtype: "<f2"}, dtype: "<f2"},
		{name: "fortran order", opts: dattest.Options{Fortran: true}, dtype: "<f8"},
		{name: "python 3 fortran float32", opts: dattest.Options{Python3: true, Fortran: true, Dtype: "<f4"}, dtype: "<f4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := dattest.NewRecord(sampleRecord())

			got, err := dat.Decode(bytes.NewReader(dattest.Pickle(want, tt.opts)))
			require.NoError(t, err)

			assert.Equal(t, [3]int{3, 5, 4}, got.Signal.Shape)
			assert.Equal(t, [2]int{3, 4}, got.Labels.Shape)
			assert.Equal(t, tt.dtype, got.SignalDtype)
			assert.Equal(t, tt.dtype, got.LabelsDtype)
			// All sample values are exactly representable in half precision.
			assert.Equal(t, want.Signal.Data, got.Signal.Data)
			assert.Equal(t, want.Labels.Data, got.Labels.Data)
			assert.Equal(t, 213.5, got.Signal.At(2, 1, 3))
		})
	}
}

func TestDecode_Int32(t *testing.T) {
	want := dattest.NewRecord(2, 33, 2, 4,
		func(t, c, s int) float64 { return float64(-c) },
		func(t, d int) float64 { return float64(d + 1) })

	got, err := dat.Decode(bytes.NewReader(dattest.Pickle(want, dattest.Options{Dtype: "<i4"})))
	require.NoError(t, err)
	assert.Equal(t, "<i4", got.SignalDtype)
	assert.Equal(t, want.Signal.Data, got.Signal.Data)
	assert.Equal(t, []float64{1, 2, 3, 4}, got.Labels.Row(1))
}

func TestDecode_Errors(t *testing.T) {
	rec := dattest.NewRecord(sampleRecord())

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{
			name:    "top level list",
			input:   dattest.List(),
			wantErr: dat.ErrNotMapping,
		},
		{
			name:    "missing labels key",
			input:   dattest.Pickle(rec, dattest.Options{OmitLabels: true}),
			wantErr: dat.ErrMissingKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dat.Decode(bytes.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestDecode_UnknownGlobal(t *testing.T) {
	_, err := dat.Decode(bytes.NewReader([]byte("\x80\x02cos\nsystem\n.")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported global")
}

func TestDecode_OversizedShape(t *testing.T) {
	for _, tt := range []struct {
		name      string
		dataShape []int
		dtype     string
	}{
		{name: "element count wraps", dataShape: []int{1 << 62, 64, 1}},
		{name: "byte length wraps", dataShape: []int{1 << 60, 1, 1}, dtype: "<f8"},
		{name: "python 3 element count wraps", dataShape: []int{1 << 62, 64, 1}, dtype: "<f4"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			input := dattest.Header(tt.dataShape, []int{tt.dataShape[0], 4},
				dattest.Options{Dtype: tt.dtype, Python3: tt.dtype == "<f4"})
			_, err := dat.Decode(bytes.NewReader(input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "overflows")
		})
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := dat.Decode(bytes.NewReader([]byte("not a pickle at all")))
	require.Error(t, err)
}

func TestDecode_Truncated(t *testing.T) {
	data := dattest.Pickle(dattest.NewRecord(sampleRecord()), dattest.Options{})
	_, err := dat.Decode(bytes.NewReader(data[:len(data)/2]))
	require.Error(t, err)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s01.dat")
	dattest.WriteFile(t, path, dattest.NewRecord(sampleRecord()), dattest.Options{})

	rec, err := dat.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Trials())
	assert.Equal(t, 5, rec.Channels())
	assert.Equal(t, 4, rec.Samples())
	assert.Equal(t, "data[3 5 4] <f8, labels[3 4] <f8", rec.String())

	_, err = dat.DecodeFile(filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
}
