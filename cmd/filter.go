package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"prospect/internal/hits"
	"prospect/internal/stage"
	"prospect/internal/tab"
)

var filterOut string

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter the hit table by domain composition, coverage, and length",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Paths.Hits == "" {
			return fmt.Errorf("no hit table: set --hits or paths.hits")
		}
		logger := newLogger()

		t, droppedRows, err := tab.ReadFile(cfg.Paths.Hits)
		if err != nil {
			return err
		}
		pred, err := hits.NewPredicate(cfg.Filter.And, cfg.Filter.Any)
		if err != nil {
			return err
		}
		filtered, stats, err := hits.Filter(cmd.Context(), t, hits.FilterOptions{
			Predicate:    pred,
			CovThreshold: cfg.Filter.CovThreshold,
			MinLen:       cfg.Filter.MinLen,
			ScoreCutoff:  cfg.Filter.ScoreCutoff,
			Workers:      cfg.Workers,
		}, logger)
		if err != nil {
			return err
		}

		if err := tab.WriteFile(filterOut, filtered); err != nil {
			return err
		}
		if err := stage.MarkComplete(filterOut); err != nil {
			return err
		}
		fmt.Printf("accepted=%d rejected=%d malformed=%d -> %s\n",
			stats.Accepted, stats.Rejected, stats.Malformed+droppedRows, filterOut)
		return nil
	},
}

func init() {
	filterCmd.Flags().String("hits", "", "Hit table TSV")
	filterCmd.Flags().Float64("cov-threshold", 0.2, "Minimum domain model coverage")
	filterCmd.Flags().Int("min-len", 400, "Minimum target length")
	filterCmd.Flags().Float64("score-cutoff", 16.0, "Minimum full-sequence score (0 disables)")
	filterCmd.Flags().StringSlice("and", nil, "Domains that must all be present")
	filterCmd.Flags().StringSlice("any", nil, "Domains of which at least one must be present")
	filterCmd.Flags().Int("workers", 0, "Worker count (0 = CPU count)")
	filterCmd.Flags().StringVar(&filterOut, "out", "filtered.tsv", "Output TSV")
	rootCmd.AddCommand(filterCmd)
}
