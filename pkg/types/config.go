// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Default locations used when neither flags, environment nor a config file
// provide them. They match the layout of the DEAP preprocessed python release.
const (
	DefaultInputDir  = "data_preprocessed_python"
	DefaultOutputDir = "data_csv"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// InputDir is the directory scanned for .dat subject files.
	InputDir string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`

	// OutputDir receives one CSV per converted subject. It is created
	// (with parents) when missing.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// FailFast stops the batch at the first failing file instead of
	// logging the failure and continuing with the next one.
	FailFast bool `json:"fail_fast" yaml:"fail_fast" mapstructure:"fail_fast"`

	// Catalog is an optional SQLite database path. When set, every
	// converted subject and its trial labels are recorded there.
	Catalog string `json:"catalog,omitempty" yaml:"catalog,omitempty" mapstructure:"catalog"`
}

// WithDefaults returns a copy of c with empty directories replaced by the
// package defaults.
func (c ConversionConfig) WithDefaults() ConversionConfig {
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	return c
}

// CatalogConfig holds settings for catalog queries and exports.
type CatalogConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"catalog"`

	// MaxResults is the default maximum number of query results (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}
