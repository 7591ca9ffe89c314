// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deapcsv/internal/dat/dattest"
	"github.com/pdiddy/deapcsv/pkg/types"
)

// fakeRecorder implements Recorder for testing.
type fakeRecorder struct {
	subjects []types.ConvertedSubject
	err      error
}

func (f *fakeRecorder) RecordSubject(ctx context.Context, s types.ConvertedSubject) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, s)
	return nil
}

// exampleRecord has signal[0][0][0] = 1.5 and labels[0] = [3.2 4.1 2.0 1.0].
func exampleRecord(samples int) *types.SubjectRecord {
	rec := dattest.NewRecord(40, 40, samples, 4, cell, func(t, d int) float64 {
		if t == 0 {
			return []float64{3.2, 4.1, 2.0, 1.0}[d]
		}
		return label(t, d)
	})
	rec.Signal.Data[0] = 1.5
	return rec
}

// setupInput creates an input directory holding the named subject files.
func setupInput(t *testing.T, names ...string) (inDir, outDir string) {
	t.Helper()
	tmpDir := t.TempDir()
	inDir = filepath.Join(tmpDir, "data_preprocessed_python")
	require.NoError(t, os.MkdirAll(inDir, 0o755))
	for _, name := range names {
		dattest.WriteFile(t, filepath.Join(inDir, name), exampleRecord(3), dattest.Options{})
	}
	return inDir, filepath.Join(tmpDir, "out", "data_csv")
}

func TestSubjectID(t *testing.T) {
	tests := map[string]string{
		"s01.dat":          "s01",
		"s01.tar.dat":      "s01",
		"/data/s32.dat":    "s32",
		"subject":          "subject",
		"s01_session2.dat": "s01_session2",
	}
	for in, want := range tests {
		assert.Equal(t, want, SubjectID(in), in)
	}
}

func TestConvertDir(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat", "s02.dat")
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "README.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "s03.dat.bak"), []byte("old"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(inDir, "nested.dat"), 0o755))

	var log bytes.Buffer
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&log))

	result, err := c.ConvertDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.HasFailures())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"s01.csv", "s02.csv"}, names)

	assert.Contains(t, log.String(), "Converted s01.dat to s01.csv with Channels 33-40 removed\n")
	assert.Contains(t, log.String(), "Converted s02.dat to s02.csv with Channels 33-40 removed\n")
	assert.Contains(t, log.String(), "Batch summary: 2 converted, 0 failed (total: 2)")

	require.Len(t, result.Subjects, 2)
	s := result.Subjects[0]
	assert.Equal(t, "s01", s.ID)
	assert.Equal(t, 40, s.Trials)
	assert.Equal(t, 32, s.Channels)
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 120, s.Rows)
	assert.Equal(t, filepath.Join(outDir, "s01.csv"), s.CSVPath)
}

func TestConvertFile_ExampleRow(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat")
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))

	_, err := c.ConvertFile(context.Background(), filepath.Join(inDir, "s01.dat"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "s01.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 1+40*3)

	header := strings.Split(lines[0], ",")
	row := strings.Split(lines[1], ",")
	require.Len(t, row, len(header))
	fields := make(map[string]string, len(header))
	for i, h := range header {
		fields[h] = row[i]
	}
	assert.Equal(t, "1.5", fields["Channel_1"])
	assert.Equal(t, "1", fields["Trial"])
	assert.Equal(t, "3.2", fields["Valence"])
	assert.Equal(t, "4.1", fields["Arousal"])
	assert.Equal(t, "2.0", fields["Dominance"])
	assert.Equal(t, "1.0", fields["Liking"])
	assert.NotContains(t, fields, "Channel_33")

	// Trial and label columns are constant within a trial.
	for i := 1; i < len(lines); i++ {
		row := strings.Split(lines[i], ",")
		trial := (i - 1) / 3
		assert.Equal(t, strconv.Itoa(trial+1), row[32], "line %d", i)
	}
}

func TestConvertFile_Idempotent(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat")
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))
	path := filepath.Join(inDir, "s01.dat")
	out := filepath.Join(outDir, "s01.csv")

	_, err := c.ConvertFile(context.Background(), path)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = c.ConvertFile(context.Background(), path)
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConvertDir_FailureIsolation(t *testing.T) {
	inDir, outDir := setupInput(t, "s02.dat")
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "s01.dat"), []byte("garbage"), 0o644))

	var log bytes.Buffer
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&log))

	result, err := c.ConvertDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Contains(t, log.String(), "failed:  s01.dat (deserializing ")
	assert.FileExists(t, filepath.Join(outDir, "s02.csv"))
	assert.NoFileExists(t, filepath.Join(outDir, "s01.csv"))
}

func TestConvertDir_OversizedShapeIsolated(t *testing.T) {
	inDir, outDir := setupInput(t, "s02.dat")
	header := dattest.Header([]int{1 << 62, 64, 1}, []int{1 << 62, 4}, dattest.Options{Python3: true})
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "s01.dat"), header, 0o644))

	var log bytes.Buffer
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&log))

	result, err := c.ConvertDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, log.String(), "failed:  s01.dat (deserializing ")
	assert.Contains(t, log.String(), "Batch summary: 1 converted, 1 failed (total: 2)")
	assert.FileExists(t, filepath.Join(outDir, "s02.csv"))
}

func TestConvertDir_FailFast(t *testing.T) {
	inDir, outDir := setupInput(t, "s02.dat")
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "s01.dat"), dattest.List(), 0o644))

	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir, FailFast: true},
		WithOutput(&bytes.Buffer{}))

	result, err := c.ConvertDir(context.Background())
	var de *DeserializationError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, filepath.Join(inDir, "s01.dat"), de.Path)
	assert.Equal(t, 0, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.NoFileExists(t, filepath.Join(outDir, "s02.csv"))
}

func TestConvertFile_ShapeError(t *testing.T) {
	inDir, outDir := setupInput(t)
	path := filepath.Join(inDir, "s05.dat")
	dattest.WriteFile(t, path, dattest.NewRecord(40, 32, 2, 4, nil, nil), dattest.Options{})

	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))
	_, err := c.ConvertFile(context.Background(), path)

	var se *ShapeError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, path, se.Path)
	assert.Contains(t, err.Error(), "32 channels")
}

func TestConvertDir_MissingInput(t *testing.T) {
	tmpDir := t.TempDir()
	c := New(types.ConversionConfig{
		InputDir:  filepath.Join(tmpDir, "absent"),
		OutputDir: filepath.Join(tmpDir, "out"),
	}, WithOutput(&bytes.Buffer{}))

	_, err := c.ConvertDir(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "got %v", err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConvertDir_EmptyInputCreatesOutput(t *testing.T) {
	inDir, outDir := setupInput(t)
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))

	result, err := c.ConvertDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total())
	assert.DirExists(t, outDir)
}

func TestConvertDir_OutputDirAlreadyExists(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))
	result, err := c.ConvertDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)
}

func TestConvertDir_Cancelled(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir}, WithOutput(&bytes.Buffer{}))
	_, err := c.ConvertDir(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(outDir, "s01.csv"))
}

func TestConvertFile_Recorder(t *testing.T) {
	inDir, outDir := setupInput(t, "s01.dat")
	path := filepath.Join(inDir, "s01.dat")

	rec := &fakeRecorder{}
	c := New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir},
		WithOutput(&bytes.Buffer{}), WithRecorder(rec))
	_, err := c.ConvertFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rec.subjects, 1)
	assert.Equal(t, "s01", rec.subjects[0].ID)
	assert.Equal(t, []float64{3.2, 4.1, 2.0, 1.0}, rec.subjects[0].Labels.Row(0))

	failing := &fakeRecorder{err: errors.New("database is locked")}
	c = New(types.ConversionConfig{InputDir: inDir, OutputDir: outDir},
		WithOutput(&bytes.Buffer{}), WithRecorder(failing))
	_, err = c.ConvertFile(context.Background(), path)
	assert.ErrorContains(t, err, "database is locked")
}
