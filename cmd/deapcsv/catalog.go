// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/deapcsv/internal/catalog"
	"github.com/pdiddy/deapcsv/pkg/types"
)

const defaultCatalog = "data_csv/catalog.db"

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query or export the catalog of converted subjects",
	Long: `Catalog reads the SQLite database that convert --catalog fills in.
Use subcommands to list trials by label range or export the catalog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"catalog":     "catalog",
			"max_results": "max-results",
		})
	},
}

// --- list subcommand ---

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trials matching a subject and label ranges",
	Long: `List prints recorded trials with their labels and CSV file.
Filter with --subject and one or more --range label=min:max flags, e.g.
--range valence=6:9 --range arousal=:4. Bounds are inclusive.`,
	Args: cobra.NoArgs,
	RunE: runCatalogList,
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	filter, err := trialFilterFromFlags(cmd)
	if err != nil {
		return err
	}

	rows, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatListOutput(rows, jsonOutput)
}

func formatListOutput(rows []catalog.TrialRow, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No trials found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-5s  %-7s  %-7s  %-9s  %-6s  %s\n",
		"Subject", "Trial", "Valence", "Arousal", "Dominance", "Liking", "CSV")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, r := range rows {
		fmt.Fprintf(os.Stdout, "%-8s  %-5d  %-7.2f  %-7.2f  %-9.2f  %-6.2f  %s\n",
			r.SubjectID, r.Trial, r.Valence, r.Arousal, r.Dominance, r.Liking, r.CSVPath)
	}
	fmt.Fprintf(os.Stdout, "\n%d trials\n", len(rows))
	return nil
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to YAML or JSON",
	Long: `Export writes every subject and its trial labels (or the subset
matching --subject and --range) to catalog.yaml or catalog.json in the
catalog's directory.`,
	Args: cobra.NoArgs,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	filter, err := trialFilterFromFlags(cmd)
	if err != nil {
		return err
	}

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(cmd.Context(), filter)
	case "json":
		path, err = store.ExportJSON(cmd.Context(), filter)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func openCatalog() (*catalog.Store, error) {
	var cfg types.CatalogConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if cfg.Path == "" {
		cfg.Path = defaultCatalog
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("catalog %s: %w (run convert --catalog first)", cfg.Path, err)
	}
	return catalog.NewStore(cfg)
}

func trialFilterFromFlags(cmd *cobra.Command) (catalog.TrialFilter, error) {
	subject, _ := cmd.Flags().GetString("subject")
	ranges, _ := cmd.Flags().GetStringArray("range")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := catalog.TrialFilter{SubjectID: subject, MaxResults: limit}
	for _, r := range ranges {
		lr, err := catalog.ParseLabelRange(r)
		if err != nil {
			return catalog.TrialFilter{}, err
		}
		filter.Ranges = append(filter.Ranges, lr)
	}
	return filter, nil
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("catalog", defaultCatalog, "SQLite catalog written by convert --catalog")
	catalogCmd.PersistentFlags().Int("max-results", 100, "maximum number of results")
	catalogCmd.PersistentFlags().String("subject", "", "filter by subject ID (e.g. s01)")
	catalogCmd.PersistentFlags().StringArray("range", nil, "filter by label range label=min:max (repeatable)")

	// List flags.
	catalogListCmd.Flags().Int("limit", 0, "maximum trials to list (0 = use --max-results)")
	catalogListCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	// Wire subcommands.
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
