// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deapcsv/internal/convert"
	"github.com/pdiddy/deapcsv/internal/dat"
	"github.com/pdiddy/deapcsv/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.dat>...",
	Short: "Decode subject files and print their shapes without converting",
	Long: `Inspect decodes each .dat file and reports the signal and label
array shapes, their stored dtypes, the range of each label, and whether the
file would pass the checks convert applies.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().Bool("yaml", false, "output the report as YAML")

	rootCmd.AddCommand(inspectCmd)
}

// inspectReport summarizes one subject file.
type inspectReport struct {
	File        string                `yaml:"file"`
	Subject     string                `yaml:"subject"`
	SignalShape []int                 `yaml:"signal_shape,flow"`
	SignalDtype string                `yaml:"signal_dtype"`
	LabelsShape []int                 `yaml:"labels_shape,flow"`
	LabelsDtype string                `yaml:"labels_dtype"`
	Labels      map[string][2]float64 `yaml:"label_ranges,omitempty"`
	Problem     string                `yaml:"problem,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	asYAML, _ := cmd.Flags().GetBool("yaml")

	var reports []inspectReport
	failed := 0
	for _, path := range args {
		report := inspectFile(path)
		if report.Problem != "" {
			failed++
		}
		reports = append(reports, report)
	}

	if asYAML {
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printReport(r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) cannot be converted", failed)
	}
	return nil
}

func inspectFile(path string) inspectReport {
	report := inspectReport{File: path, Subject: convert.SubjectID(filepath.Base(path))}

	rec, err := dat.DecodeFile(path)
	if err != nil {
		report.Problem = err.Error()
		return report
	}

	report.SignalShape = rec.Signal.Shape[:]
	report.SignalDtype = rec.SignalDtype
	report.LabelsShape = rec.Labels.Shape[:]
	report.LabelsDtype = rec.LabelsDtype
	report.Labels = labelRanges(rec)

	if err := convert.Validate(rec); err != nil {
		report.Problem = err.Error()
	}
	return report
}

func labelRanges(rec *types.SubjectRecord) map[string][2]float64 {
	cols := min(rec.Labels.Shape[1], len(types.LabelNames))
	ranges := make(map[string][2]float64, cols)
	for d := 0; d < cols; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for t := 0; t < rec.Labels.Shape[0]; t++ {
			v := rec.Labels.At(t, d)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if rec.Labels.Shape[0] > 0 {
			ranges[types.LabelNames[d]] = [2]float64{lo, hi}
		}
	}
	return ranges
}

func printReport(r inspectReport) {
	fmt.Printf("%s (subject %s)\n", r.File, r.Subject)
	if r.SignalShape != nil {
		fmt.Printf("  data:   %v %s\n", r.SignalShape, r.SignalDtype)
		fmt.Printf("  labels: %v %s\n", r.LabelsShape, r.LabelsDtype)
		for _, name := range types.LabelNames {
			if rng, ok := r.Labels[name]; ok {
				fmt.Printf("  %-9s %.2f .. %.2f\n", name, rng[0], rng[1])
			}
		}
	}
	if r.Problem != "" {
		fmt.Printf("  problem: %s\n", r.Problem)
	} else {
		fmt.Println("  ok")
	}
}
