package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deapcsv/internal/catalog"
	"github.com/pdiddy/deapcsv/internal/convert"
	"github.com/pdiddy/deapcsv/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert every .dat subject file in a directory to CSV",
	Long: `Convert reads each .dat file in the input directory and writes
<subject>.csv to the output directory, creating it if needed. Channels 33-40
are dropped. A file that fails to convert is reported and skipped unless
--fail-fast is set. With --catalog, converted subjects and their trial labels
are also recorded in a SQLite database.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"input_dir":  "input-dir",
			"output_dir": "output-dir",
			"fail_fast":  "fail-fast",
			"catalog":    "catalog",
		})
	},
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("input-dir", types.DefaultInputDir, "directory containing subject .dat files")
	convertCmd.Flags().String("output-dir", types.DefaultOutputDir, "directory to write CSV files to (created if missing)")
	convertCmd.Flags().Bool("fail-fast", false, "stop at the first file that fails to convert")
	convertCmd.Flags().String("catalog", "", "SQLite catalog to record converted subjects in (disabled when empty)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	var cfg types.ConversionConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	opts := []convert.Option{convert.WithOutput(os.Stdout)}
	if cfg.Catalog != "" {
		store, err := catalog.NewStore(types.CatalogConfig{Path: cfg.Catalog})
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, convert.WithRecorder(store))
	}

	result, err := convert.New(cfg, opts...).ConvertDir(cmd.Context())
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}
