package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"prospect/internal/config"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "prospect",
	Short: "Filter, cluster-merge, annotate, and shard homology search results",
	Long: `prospect resolves multi-threshold cluster memberships for homology
search hits: it filters hit tables by domain composition, merges
per-threshold clustering results into a nested membership hierarchy,
joins annotation tables, and splits the final report for parallel
consumers. The search, clustering, and annotation tools themselves run
outside; prospect only consumes and produces their tables.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to prospect.yaml")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Errors only")
}

// newLogger builds the stage logger from the verbosity flags.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the configuration for a subcommand, layering the
// command's own flags on top of the file and environment.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("prospect.yaml"); err == nil {
			path = "prospect.yaml"
		}
	}
	return config.Load(path, flags)
}
