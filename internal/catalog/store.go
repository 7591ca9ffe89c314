// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog records converted subjects and their per-trial labels in
// a SQLite database so trials can be selected by label without reading the
// CSV files.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deapcsv/pkg/types"
)

const defaultMaxResults = 100

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	path       string
	maxResults int
}

// NewStore opens or creates the catalog database at cfg.Path, creating
// its parent directory and schema when missing.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("catalog path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, path: cfg.Path, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			csv_path TEXT NOT NULL,
			trials INTEGER NOT NULL,
			channels INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			converted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trials (
			subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			trial INTEGER NOT NULL,
			valence REAL,
			arousal REAL,
			dominance REAL,
			liking REAL,
			PRIMARY KEY (subject_id, trial)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_valence ON trials(valence)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_arousal ON trials(arousal)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordSubject stores a converted subject and one row per trial label
// vector, replacing anything recorded for the same subject before.
func (s *Store) RecordSubject(ctx context.Context, subj types.ConvertedSubject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE subject_id = ?`, subj.ID); err != nil {
		return fmt.Errorf("deleting old trials: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subjects (id, source_path, csv_path, trials, channels, samples, rows, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_path=excluded.source_path, csv_path=excluded.csv_path,
			trials=excluded.trials, channels=excluded.channels, samples=excluded.samples,
			rows=excluded.rows, converted_at=excluded.converted_at`,
		subj.ID, subj.SourcePath, subj.CSVPath, subj.Trials, subj.Channels,
		subj.Samples, subj.Rows, subj.ConvertedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting subject: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trials (subject_id, trial, valence, arousal, dominance, liking)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	labels := subj.Labels
	if labels.Shape[1] < len(types.LabelNames) && labels.Shape[0] > 0 {
		return fmt.Errorf("subject %s has %d label columns, need %d",
			subj.ID, labels.Shape[1], len(types.LabelNames))
	}
	for t := 0; t < labels.Shape[0]; t++ {
		row := labels.Row(t)
		if _, err := stmt.ExecContext(ctx, subj.ID, t+1, row[0], row[1], row[2], row[3]); err != nil {
			return fmt.Errorf("inserting trial %d: %w", t+1, err)
		}
	}

	return tx.Commit()
}

// Subjects returns every recorded subject ordered by id.
func (s *Store) Subjects(ctx context.Context) ([]types.ConvertedSubject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_path, csv_path, trials, channels, samples, rows, converted_at
		 FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying subjects: %w", err)
	}
	defer rows.Close()

	var subjects []types.ConvertedSubject
	for rows.Next() {
		var (
			subj        types.ConvertedSubject
			convertedAt string
		)
		if err := rows.Scan(&subj.ID, &subj.SourcePath, &subj.CSVPath, &subj.Trials,
			&subj.Channels, &subj.Samples, &subj.Rows, &convertedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, convertedAt); parseErr == nil {
			subj.ConvertedAt = t
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}
