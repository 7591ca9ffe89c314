// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/deapcsv/pkg/types"
)

// labelColumns maps label names (case-insensitive) to trials columns.
var labelColumns = map[string]string{
	"valence":   "valence",
	"arousal":   "arousal",
	"dominance": "dominance",
	"liking":    "liking",
}

// LabelRange selects trials whose label lies in [Min, Max].
type LabelRange struct {
	Label string
	Min   float64
	Max   float64
}

// ParseLabelRange parses "valence=5:9". Either bound may be omitted
// ("arousal=:3", "liking=7:") to leave that side open.
func ParseLabelRange(s string) (LabelRange, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok {
		return LabelRange{}, fmt.Errorf("label range %q: want label=min:max", s)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := labelColumns[name]; !ok {
		return LabelRange{}, fmt.Errorf("label range %q: unknown label %q (want one of %s)",
			s, name, strings.ToLower(strings.Join(types.LabelNames, ", ")))
	}
	lo, hi, ok := strings.Cut(bounds, ":")
	if !ok {
		return LabelRange{}, fmt.Errorf("label range %q: want label=min:max", s)
	}

	r := LabelRange{Label: name, Min: -1e308, Max: 1e308}
	var err error
	if lo = strings.TrimSpace(lo); lo != "" {
		if r.Min, err = strconv.ParseFloat(lo, 64); err != nil {
			return LabelRange{}, fmt.Errorf("label range %q: %w", s, err)
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.Max, err = strconv.ParseFloat(hi, 64); err != nil {
			return LabelRange{}, fmt.Errorf("label range %q: %w", s, err)
		}
	}
	if r.Min > r.Max {
		return LabelRange{}, fmt.Errorf("label range %q: min exceeds max", s)
	}
	return r, nil
}

// TrialFilter holds parameters for trial queries.
type TrialFilter struct {
	// SubjectID restricts results to one subject.
	SubjectID string

	// Ranges must all hold (AND semantics).
	Ranges []LabelRange

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// TrialRow is one trial's labels with the CSV it was written to.
type TrialRow struct {
	SubjectID string  `json:"subject_id" yaml:"subject_id"`
	Trial     int     `json:"trial" yaml:"trial"`
	Valence   float64 `json:"valence" yaml:"valence"`
	Arousal   float64 `json:"arousal" yaml:"arousal"`
	Dominance float64 `json:"dominance" yaml:"dominance"`
	Liking    float64 `json:"liking" yaml:"liking"`
	CSVPath   string  `json:"csv_path" yaml:"csv_path"`
}

// List returns trials matching f ordered by subject then trial number.
func (s *Store) List(ctx context.Context, f TrialFilter) ([]TrialRow, error) {
	maxResults := f.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT t.subject_id, t.trial, t.valence, t.arousal, t.dominance, t.liking, s.csv_path
		FROM trials t
		JOIN subjects s ON s.id = t.subject_id
		WHERE 1=1`)

	if f.SubjectID != "" {
		qb.WriteString(` AND t.subject_id = ?`)
		args = append(args, f.SubjectID)
	}

	for _, r := range f.Ranges {
		col, ok := labelColumns[strings.ToLower(r.Label)]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", r.Label)
		}
		fmt.Fprintf(&qb, ` AND t.%s BETWEEN ? AND ?`, col)
		args = append(args, r.Min, r.Max)
	}

	qb.WriteString(` ORDER BY t.subject_id, t.trial LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []TrialRow
	for rows.Next() {
		var tr TrialRow
		if err := rows.Scan(&tr.SubjectID, &tr.Trial, &tr.Valence, &tr.Arousal,
			&tr.Dominance, &tr.Liking, &tr.CSVPath); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, tr)
	}
	return results, rows.Err()
}
