package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"prospect/internal/report"
	"prospect/internal/stage"
	"prospect/internal/tab"
)

var (
	splitInput  string
	splitDir    string
	splitPrefix string
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a table into balanced, order-preserving shards",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger := newLogger()

		t, _, err := tab.ReadFile(splitInput)
		if err != nil {
			return err
		}

		if cfg.Paths.Fasta != "" {
			idCol := "record_id"
			if _, ok := t.Col(idCol); !ok {
				idCol = "target_name"
			}
			t, _, err = report.AttachSequences(t, cfg.Paths.Fasta, idCol, logger)
			if err != nil {
				return err
			}
		}

		paths, err := report.Split(t, cfg.Parts, splitDir, splitPrefix)
		if err != nil {
			return err
		}
		for _, path := range paths {
			if err := stage.MarkComplete(path); err != nil {
				return err
			}
		}
		fmt.Printf("rows=%d parts=%d -> %s\n", len(t.Rows), len(paths), splitDir)
		return nil
	},
}

func init() {
	splitCmd.Flags().Int("parts", 1, "Number of shards")
	splitCmd.Flags().String("fasta", "", "Optional FASTA to attach sequences from")
	splitCmd.Flags().StringVar(&splitInput, "input", "report.tsv", "Input TSV")
	splitCmd.Flags().StringVar(&splitDir, "out-dir", "shards", "Shard output directory")
	splitCmd.Flags().StringVar(&splitPrefix, "prefix", "split_part", "Shard file prefix")
	rootCmd.AddCommand(splitCmd)
}
