package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"prospect/internal/cluster"
	"prospect/internal/stage"
	"prospect/internal/tab"
)

var (
	mergeBase string
	mergeOut  string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge per-threshold cluster assignments into a membership hierarchy",
	Long: `Reads one cluster assignment TSV per identity threshold
(round<N>_<identity>_cluster.tsv under --cluster-dir), resolves every
record's representative at every threshold, validates nesting
monotonicity, and appends one cluster_<identity>_repseq column per
threshold to the base table. Detected violations keep the coarser
assignment and are reported, not silently fixed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Paths.ClusterDir == "" {
			return fmt.Errorf("no cluster directory: set --cluster-dir or paths.cluster_dir")
		}
		logger := newLogger()

		base, _, err := tab.ReadFile(mergeBase)
		if err != nil {
			return err
		}

		assignments := make([]cluster.Assignment, len(cfg.Thresholds))
		for i, tau := range cfg.Thresholds {
			name := fmt.Sprintf("round%d_%s_cluster.tsv", i+1, cluster.TauLabel(tau))
			a, err := cluster.LoadAssignment(filepath.Join(cfg.Paths.ClusterDir, name), tau)
			if err != nil {
				return err
			}
			assignments[i] = a
		}

		h, violations, err := cluster.Merge(assignments)
		if err != nil {
			return err
		}
		for i := range violations {
			logger.Warn("nesting violation, coarser assignment kept", "error", violations[i].Error())
		}

		idCol := "record_id"
		if _, ok := base.Col(idCol); !ok {
			idCol = "target_name"
		}
		merged, err := cluster.AddColumns(base, h, idCol)
		if err != nil {
			return err
		}
		if err := tab.WriteFile(mergeOut, merged); err != nil {
			return err
		}
		if err := stage.MarkComplete(mergeOut); err != nil {
			return err
		}
		fmt.Printf("records=%d thresholds=%d violations=%d -> %s\n",
			len(merged.Rows), len(cfg.Thresholds), len(violations), mergeOut)
		return nil
	},
}

func init() {
	mergeCmd.Flags().String("cluster-dir", "", "Directory with per-threshold cluster TSVs")
	mergeCmd.Flags().Float64Slice("thresholds", nil, "Descending identity thresholds")
	mergeCmd.Flags().StringVar(&mergeBase, "base", "filtered.tsv", "Base record table")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "merged.tsv", "Output TSV")
	rootCmd.AddCommand(mergeCmd)
}
