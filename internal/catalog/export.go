// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deapcsv/pkg/types"
)

// ExportSubject is one subject with its trials, as written by ExportYAML
// and ExportJSON.
type ExportSubject struct {
	types.ConvertedSubject `yaml:",inline"`
	TrialLabels            []TrialRow `json:"trial_labels" yaml:"trial_labels"`
}

const exportLimit = 1 << 30

// ExportYAML writes the catalog to catalog.yaml next to the database and
// returns the file path.
func (s *Store) ExportYAML(ctx context.Context, f TrialFilter) (string, error) {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport("catalog.yaml", data)
}

// ExportJSON writes the catalog to catalog.json next to the database and
// returns the file path.
func (s *Store) ExportJSON(ctx context.Context, f TrialFilter) (string, error) {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport("catalog.json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	path := filepath.Join(filepath.Dir(s.path), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// exportEntries groups matching trials under their subjects. Subjects with
// no matching trial are left out.
func (s *Store) exportEntries(ctx context.Context, f TrialFilter) ([]ExportSubject, error) {
	subjects, err := s.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	f.MaxResults = exportLimit
	trials, err := s.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	bySubject := make(map[string][]TrialRow)
	for _, t := range trials {
		bySubject[t.SubjectID] = append(bySubject[t.SubjectID], t)
	}

	entries := make([]ExportSubject, 0, len(subjects))
	for _, subj := range subjects {
		rows, ok := bySubject[subj.ID]
		if !ok {
			continue
		}
		entries = append(entries, ExportSubject{ConvertedSubject: subj, TrialLabels: rows})
	}
	return entries, nil
}
