// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pdiddy/deapcsv/pkg/types"
)

const (
	// KeptChannels is the number of leading channels copied to the output.
	// Channels 33-40 (peripheral physiological signals) are dropped.
	KeptChannels = 32

	// MinChannels is the smallest channel count a subject may have.
	MinChannels = KeptChannels + 1

	// TrialColumn is the 1-indexed trial number column.
	TrialColumn = "Trial"
)

// Columns returns the output header in column order:
// Channel_1..Channel_32, Trial, Valence, Arousal, Dominance, Liking.
func Columns() []string {
	cols := make([]string, 0, KeptChannels+1+len(types.LabelNames))
	for c := 1; c <= KeptChannels; c++ {
		cols = append(cols, "Channel_"+strconv.Itoa(c))
	}
	cols = append(cols, TrialColumn)
	return append(cols, types.LabelNames...)
}

// Table is one subject's rows: one per (trial, sample) pair, trials in
// order and samples in order within each trial. Cells are stored row-major.
type Table struct {
	Columns []string

	rows   int
	width  int
	cells  []float64
	format []formatter
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Row returns row i. The slice shares the table's storage.
func (t *Table) Row(i int) []float64 {
	return t.cells[i*t.width : (i+1)*t.width]
}

// Validate checks the invariants BuildTable relies on.
func Validate(rec *types.SubjectRecord) error {
	trials, channels := rec.Trials(), rec.Channels()
	switch {
	case rec.Labels.Shape[0] != trials:
		return &ShapeError{Reason: fmt.Sprintf(
			"data has %d trials but labels has %d", trials, rec.Labels.Shape[0])}
	case channels < MinChannels:
		return &ShapeError{Reason: fmt.Sprintf(
			"data has %d channels, need at least %d", channels, MinChannels)}
	case rec.Labels.Shape[1] < len(types.LabelNames):
		return &ShapeError{Reason: fmt.Sprintf(
			"labels has %d columns, need at least %d", rec.Labels.Shape[1], len(types.LabelNames))}
	}

	signalLen, ok := product(rec.Signal.Shape[:]...)
	if ok {
		// The output table holds trials*samples rows of len(Columns()) cells.
		_, ok = product(trials, rec.Samples(), KeptChannels+1+len(types.LabelNames))
	}
	if !ok {
		return &ShapeError{Reason: fmt.Sprintf("data shape %v is too large", rec.Signal.Shape)}
	}
	labelsLen, ok := product(rec.Labels.Shape[:]...)
	if !ok {
		return &ShapeError{Reason: fmt.Sprintf("labels shape %v is too large", rec.Labels.Shape)}
	}

	switch {
	case len(rec.Signal.Data) != signalLen:
		return &ShapeError{Reason: fmt.Sprintf(
			"data holds %d values, shape %v needs %d", len(rec.Signal.Data), rec.Signal.Shape, signalLen)}
	case len(rec.Labels.Data) != labelsLen:
		return &ShapeError{Reason: fmt.Sprintf(
			"labels holds %d values, shape %v needs %d", len(rec.Labels.Data), rec.Labels.Shape, labelsLen)}
	}
	return nil
}

// product multiplies dims, reporting false if the result overflows an int
// or any dimension is negative.
func product(dims ...int) (int, bool) {
	n := 1
	for _, d := range dims {
		if d < 0 || (d != 0 && n > math.MaxInt/d) {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// BuildTable reshapes a subject record into output rows. Each trial's
// [channels][samples] slice is transposed to [samples][channels], cut to
// the first KeptChannels channels, and extended with the trial number and
// the trial's four labels.
func BuildTable(rec *types.SubjectRecord) (*Table, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}

	trials, samples := rec.Trials(), rec.Samples()
	cols := Columns()
	t := &Table{
		Columns: cols,
		rows:    trials * samples,
		width:   len(cols),
		cells:   make([]float64, trials*samples*len(cols)),
		format:  make([]formatter, len(cols)),
	}

	signalFmt, labelFmt := formatterFor(rec.SignalDtype), formatterFor(rec.LabelsDtype)
	for c := 0; c < KeptChannels; c++ {
		t.format[c] = signalFmt
	}
	t.format[KeptChannels] = formatInt
	for d := range types.LabelNames {
		t.format[KeptChannels+1+d] = labelFmt
	}

	r := 0
	for trial := 0; trial < trials; trial++ {
		labels := rec.Labels.Row(trial)
		for s := 0; s < samples; s++ {
			row := t.Row(r)
			for c := 0; c < KeptChannels; c++ {
				row[c] = rec.Signal.At(trial, c, s)
			}
			row[KeptChannels] = float64(trial + 1)
			copy(row[KeptChannels+1:], labels[:len(types.LabelNames)])
			r++
		}
	}
	return t, nil
}

// WriteCSV writes the header and every row as comma-separated text with
// "\n" line endings and no index column.
func (t *Table) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	cw := csv.NewWriter(bw)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, t.width)
	for i := 0; i < t.rows; i++ {
		for j, v := range t.Row(i) {
			record[j] = t.format[j](v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return bw.Flush()
}
