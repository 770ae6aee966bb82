package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prospect/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run filter, merge, integrate, and split in order",
	Long: `Drives the four stages against the artifacts named in the config,
waiting with bounded backoff for external oracle outputs (hit table,
per-threshold cluster tables, annotation tables) to become ready. An
artifact is ready only when its completion marker exists and the file is
non-empty. With a manifest store configured, completed stages from an
interrupted run are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Paths.OutDir == "" {
			return fmt.Errorf("no output directory: set --out-dir or paths.out_dir")
		}
		logger := newLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		results, err := p.Run(ctx)
		for _, res := range results {
			fmt.Printf("%-10s accepted=%d rejected=%d malformed=%d violations=%d  %s\n",
				res.Stage, res.Accepted, res.Rejected, res.Malformed, res.Violations, res.Artifact)
		}
		return err
	},
}

func init() {
	runCmd.Flags().String("hits", "", "Hit table TSV")
	runCmd.Flags().String("cluster-dir", "", "Directory with per-threshold cluster TSVs")
	runCmd.Flags().String("out-dir", "", "Output directory for stage artifacts")
	runCmd.Flags().String("fasta", "", "Optional FASTA to attach sequences from")
	runCmd.Flags().String("store", "", "Optional run-manifest SQLite database")
	runCmd.Flags().Int("parts", 1, "Number of report shards")
	runCmd.Flags().Int("workers", 0, "Worker count (0 = CPU count)")
	rootCmd.AddCommand(runCmd)
}
