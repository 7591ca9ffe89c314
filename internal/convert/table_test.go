// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deapcsv/internal/dat/dattest"
	"github.com/pdiddy/deapcsv/pkg/types"
)

// cell encodes trial, channel and sample so a value identifies its origin.
func cell(t, c, s int) float64 { return float64(t*10000 + c*100 + s) }

func label(t, d int) float64 { return float64(t) + float64(d+1)/10 }

func TestColumns(t *testing.T) {
	cols := Columns()
	require.Len(t, cols, 37)
	assert.Equal(t, "Channel_1", cols[0])
	assert.Equal(t, "Channel_32", cols[31])
	assert.Equal(t, []string{"Trial", "Valence", "Arousal", "Dominance", "Liking"}, cols[32:])
	for _, c := range cols {
		for ch := 33; ch <= 40; ch++ {
			assert.NotEqual(t, "Channel_"+strconv.Itoa(ch), c)
		}
	}
}

func TestBuildTable(t *testing.T) {
	const trials, channels, samples = 4, 40, 6
	rec := dattest.NewRecord(trials, channels, samples, 4, cell, label)

	tbl, err := BuildTable(rec)
	require.NoError(t, err)
	require.Equal(t, trials*samples, tbl.Len())

	r := 0
	for trial := 0; trial < trials; trial++ {
		for s := 0; s < samples; s++ {
			row := tbl.Row(r)
			require.Len(t, row, 37)
			for c := 0; c < KeptChannels; c++ {
				assert.Equal(t, cell(trial, c, s), row[c], "row %d channel %d", r, c+1)
			}
			assert.Equal(t, float64(trial+1), row[32])
			assert.Equal(t, rec.Labels.Row(trial), row[33:])
			r++
		}
	}
}

func TestBuildTable_ExtraLabelColumnsIgnored(t *testing.T) {
	rec := dattest.NewRecord(2, 33, 1, 6, cell, label)
	tbl, err := BuildTable(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.Labels.Row(1)[:4], tbl.Row(1)[33:])
}

func TestBuildTable_DEAPShape(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a full-size subject")
	}
	rec := dattest.NewRecord(40, 40, 8064, 4, nil, label)
	tbl, err := BuildTable(rec)
	require.NoError(t, err)
	assert.Equal(t, 322560, tbl.Len())
	assert.Equal(t, 40.0, tbl.Row(tbl.Len() - 1)[32])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		rec    *types.SubjectRecord
		reason string
	}{
		{
			name:   "trial mismatch",
			rec:    withLabelTrials(dattest.NewRecord(3, 40, 2, 4, nil, nil), 2),
			reason: "data has 3 trials but labels has 2",
		},
		{
			name:   "too few channels",
			rec:    dattest.NewRecord(3, 32, 2, 4, nil, nil),
			reason: "data has 32 channels, need at least 33",
		},
		{
			name:   "too few label columns",
			rec:    dattest.NewRecord(3, 40, 2, 3, nil, nil),
			reason: "labels has 3 columns, need at least 4",
		},
		{
			name: "element count overflows",
			rec: &types.SubjectRecord{
				Signal: types.Array3{Shape: [3]int{1 << 62, 64, 1}},
				Labels: types.Array2{Shape: [2]int{1 << 62, 4}},
			},
			reason: "data shape [4611686018427387904 64 1] is too large",
		},
		{
			name: "row count overflows",
			rec: &types.SubjectRecord{
				Signal: types.Array3{Shape: [3]int{1 << 30, 40, 1 << 30}},
				Labels: types.Array2{Shape: [2]int{1 << 30, 4}},
			},
			reason: "data shape [1073741824 40 1073741824] is too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTable(tt.rec)
			var se *ShapeError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.reason, se.Reason)
		})
	}

	assert.NoError(t, Validate(dattest.NewRecord(1, 33, 0, 4, nil, nil)))
}

func withLabelTrials(rec *types.SubjectRecord, trials int) *types.SubjectRecord {
	rec.Labels.Shape[0] = trials
	rec.Labels.Data = rec.Labels.Data[:trials*rec.Labels.Shape[1]]
	return rec
}

func TestWriteCSV(t *testing.T) {
	rec := dattest.NewRecord(2, 40, 2, 4,
		func(t, c, s int) float64 { return float64(c) + 0.5 },
		func(t, d int) float64 { return [][]float64{{3.2, 4.1, 2.0, 1.0}, {4.2, 5.1, 3.0, 2.0}}[t][d] })
	rec.Signal.Data[0] = 1.5

	tbl, err := BuildTable(rec)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1+4)
	assert.Equal(t, strings.Join(Columns(), ","), lines[0])

	first := strings.Split(lines[1], ",")
	require.Len(t, first, 37)
	assert.Equal(t, "1.5", first[0])
	assert.Equal(t, "1.5", first[1])
	assert.Equal(t, "31.5", first[31])
	assert.Equal(t, []string{"1", "3.2", "4.1", "2.0", "1.0"}, first[32:])

	last := strings.Split(lines[4], ",")
	assert.Equal(t, []string{"2", "4.2", "5.1", "3.0", "2.0"}, last[32:])
	assert.NotContains(t, buf.String(), "\r")
}
