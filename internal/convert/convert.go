// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns DEAP subject .dat files into per-subject CSV files:
// one row per (trial, sample) with channels 1-32, the trial number and the
// trial's Valence, Arousal, Dominance and Liking labels.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/deapcsv/internal/dat"
	"github.com/pdiddy/deapcsv/pkg/types"
)

const (
	// InputExt is the extension of subject files picked up from the input directory.
	InputExt = ".dat"
	// OutputExt is the extension of the written tables.
	OutputExt = ".csv"
)

// Recorder receives every successfully converted subject. The catalog
// implements it.
type Recorder interface {
	RecordSubject(ctx context.Context, s types.ConvertedSubject) error
}

// Converter converts subject files from cfg.InputDir into cfg.OutputDir.
type Converter struct {
	cfg      types.ConversionConfig
	recorder Recorder
	out      io.Writer
	now      func() time.Time
}

// Option configures a Converter.
type Option func(*Converter)

// WithRecorder records each converted subject in r.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

// WithOutput sends progress lines to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Converter) { c.out = w }
}

// New creates a Converter. Empty directories in cfg fall back to the
// defaults in types.
func New(cfg types.ConversionConfig, opts ...Option) *Converter {
	c := &Converter{
		cfg: cfg.WithDefaults(),
		out: os.Stdout,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BatchResult holds the outcome of a directory conversion run.
type BatchResult struct {
	Converted int
	Failed    int
	Subjects  []types.ConvertedSubject
}

// Total returns the number of subject files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// SubjectID derives the subject identifier from a file name: everything
// before the first ".", so "s01.dat" becomes "s01".
func SubjectID(filename string) string {
	id, _, _ := strings.Cut(filepath.Base(filename), ".")
	return id
}

// ConvertDir converts every .dat file in the input directory, in directory
// listing order. A failing file is reported and skipped unless FailFast is
// set, in which case its error ends the run. The output directory is
// created before any file is read.
func (c *Converter) ConvertDir(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return result, &IOError{Op: "creating output directory", Path: c.cfg.OutputDir, Err: err}
	}

	entries, err := os.ReadDir(c.cfg.InputDir)
	if err != nil {
		return result, &IOError{Op: "reading input directory", Path: c.cfg.InputDir, Err: err}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), InputExt) {
			continue
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		subject, err := c.ConvertFile(ctx, filepath.Join(c.cfg.InputDir, entry.Name()))
		if err != nil {
			fmt.Fprintf(c.out, "failed:  %s (%v)\n", entry.Name(), err)
			result.Failed++
			if c.cfg.FailFast {
				return result, err
			}
			continue
		}
		result.Converted++
		result.Subjects = append(result.Subjects, subject)
	}

	fmt.Fprintf(c.out, "\nBatch summary: %d converted, %d failed (total: %d)\n",
		result.Converted, result.Failed, result.Total())
	return result, nil
}

// ConvertFile converts one subject file and writes
// <OutputDir>/<subject id>.csv. A write failure can leave a partial file
// behind.
func (c *Converter) ConvertFile(ctx context.Context, path string) (types.ConvertedSubject, error) {
	name := filepath.Base(path)
	id := SubjectID(name)

	rec, err := c.decode(path)
	if err != nil {
		return types.ConvertedSubject{}, err
	}

	table, err := BuildTable(rec)
	if err != nil {
		var se *ShapeError
		if errors.As(err, &se) {
			se.Path = path
		}
		return types.ConvertedSubject{}, err
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return types.ConvertedSubject{}, &IOError{Op: "creating output directory", Path: c.cfg.OutputDir, Err: err}
	}
	csvName := id + OutputExt
	csvPath := filepath.Join(c.cfg.OutputDir, csvName)
	if err := writeTable(csvPath, table); err != nil {
		return types.ConvertedSubject{}, err
	}

	subject := types.ConvertedSubject{
		ID:          id,
		SourcePath:  path,
		CSVPath:     csvPath,
		Trials:      rec.Trials(),
		Channels:    KeptChannels,
		Samples:     rec.Samples(),
		Rows:        table.Len(),
		ConvertedAt: c.now().UTC(),
		Labels:      rec.Labels,
	}

	if c.recorder != nil {
		if err := c.recorder.RecordSubject(ctx, subject); err != nil {
			return subject, fmt.Errorf("recording %s in catalog: %w", id, err)
		}
	}

	fmt.Fprintf(c.out, "Converted %s to %s with Channels %d-%d removed\n",
		name, csvName, MinChannels, rec.Channels())
	return subject, nil
}

func (c *Converter) decode(path string) (*types.SubjectRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "opening", Path: path, Err: err}
	}
	defer f.Close()

	rec, err := dat.Decode(f)
	if err != nil {
		if errors.Is(err, dat.ErrRank) {
			return nil, &ShapeError{Path: path, Reason: err.Error(), Err: err}
		}
		return nil, &DeserializationError{Path: path, Err: err}
	}
	return rec, nil
}

func writeTable(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "creating", Path: path, Err: err}
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return &IOError{Op: "writing", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "closing", Path: path, Err: err}
	}
	return nil
}
