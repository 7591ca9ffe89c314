// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deapcsv CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the deapcsv CLI.
var rootCmd = &cobra.Command{
	Use:   "deapcsv",
	Short: "Convert DEAP subject .dat files to CSV",
	Long: `deapcsv converts the DEAP preprocessed python release (one pickled
.dat file per subject) into one CSV per subject: a row per trial sample with
EEG channels 1-32, the trial number and the trial's Valence, Arousal,
Dominance and Liking ratings.

Directories can be given as flags, as DEAPCSV_* environment variables, or in
a deapcsv.yaml config file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./deapcsv.yaml or ~/.config/deapcsv/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deapcsv")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "deapcsv"))
		}
	}

	viper.SetEnvPrefix("DEAPCSV")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds config keys to the running command's flags. Binding at
// run time lets two commands expose the same key under their own flag.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
