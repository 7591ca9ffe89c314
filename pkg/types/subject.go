// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Label column names in the order they appear in a subject's label matrix.
const (
	LabelValence   = "Valence"
	LabelArousal   = "Arousal"
	LabelDominance = "Dominance"
	LabelLiking    = "Liking"
)

// LabelNames lists the label columns in label-matrix order.
var LabelNames = []string{LabelValence, LabelArousal, LabelDominance, LabelLiking}

// Array3 is a dense rank-3 array stored row-major (C order).
type Array3 struct {
	Shape [3]int
	Data  []float64
}

// At returns the element at [i][j][k].
func (a *Array3) At(i, j, k int) float64 {
	return a.Data[(i*a.Shape[1]+j)*a.Shape[2]+k]
}

// Array2 is a dense rank-2 array stored row-major (C order).
type Array2 struct {
	Shape [2]int
	Data  []float64
}

// At returns the element at [i][j].
func (a *Array2) At(i, j int) float64 {
	return a.Data[i*a.Shape[1]+j]
}

// Row returns row i as a slice sharing the array's backing storage.
func (a *Array2) Row(i int) []float64 {
	return a.Data[i*a.Shape[1] : (i+1)*a.Shape[1]]
}

// SubjectRecord holds one subject's recording as read from a .dat file.
// Signal is shaped [trials][channels][samples]; Labels is shaped
// [trials][label dims] with columns ordered as LabelNames.
type SubjectRecord struct {
	Signal Array3
	Labels Array2

	// SignalDtype and LabelsDtype record the numpy dtype the arrays were
	// stored with (e.g. "<f8"). Values are always widened to float64.
	SignalDtype string `json:"signal_dtype" yaml:"signal_dtype"`
	LabelsDtype string `json:"labels_dtype" yaml:"labels_dtype"`
}

// Trials returns the number of trials in the signal array.
func (r *SubjectRecord) Trials() int { return r.Signal.Shape[0] }

// Channels returns the number of channels per trial.
func (r *SubjectRecord) Channels() int { return r.Signal.Shape[1] }

// Samples returns the number of samples per channel.
func (r *SubjectRecord) Samples() int { return r.Signal.Shape[2] }

// String summarizes the record shapes, e.g. "data[40 40 8064] <f8, labels[40 4] <f8".
func (r *SubjectRecord) String() string {
	return fmt.Sprintf("data%v %s, labels%v %s",
		r.Signal.Shape, r.SignalDtype, r.Labels.Shape, r.LabelsDtype)
}

// ConvertedSubject describes one subject file after a successful conversion.
type ConvertedSubject struct {
	// ID is the subject identifier taken from the file name (e.g. "s01").
	ID string `json:"id" yaml:"id"`

	// SourcePath is the .dat file that was read.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// CSVPath is the file that was written.
	CSVPath string `json:"csv_path" yaml:"csv_path"`

	Trials   int `json:"trials" yaml:"trials"`
	Channels int `json:"channels" yaml:"channels"`
	Samples  int `json:"samples" yaml:"samples"`
	Rows     int `json:"rows" yaml:"rows"`

	ConvertedAt time.Time `json:"converted_at" yaml:"converted_at"`

	// Labels is the subject's label matrix, one row per trial.
	Labels Array2 `json:"-" yaml:"-"`
}
