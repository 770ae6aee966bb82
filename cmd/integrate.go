package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"prospect/internal/annotate"
	"prospect/internal/stage"
	"prospect/internal/tab"
)

var (
	integrateBase string
	integrateOut  string
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Left-join annotation sources onto the merged table",
	Long: `Joins every annotation source from the config onto the base table by
record identifier. Sources whose rows carry start/end/strand columns are
expanded positionally (one output row per annotation row); other sources
collapse to bracketed lists. Records without annotations carry the "-"
sentinel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if len(cfg.Annotations) == 0 {
			return fmt.Errorf("no annotation sources configured")
		}
		logger := newLogger()

		var sources []*annotate.Source
		for _, ac := range cfg.Annotations {
			t, _, err := tab.ReadFile(ac.Path)
			if err != nil {
				return err
			}
			if ac.Orthologs != "" {
				orth, _, err := tab.ReadFile(ac.Orthologs)
				if err != nil {
					return err
				}
				if t, err = annotate.MergeTables(t, orth, "record_id"); err != nil {
					return err
				}
			}
			src, err := annotate.NewSource(ac.Name, t, "record_id")
			if err != nil {
				return err
			}
			sources = append(sources, src)
		}

		in, err := os.Open(integrateBase)
		if err != nil {
			return err
		}
		defer in.Close()
		r, err := tab.NewReader(in)
		if err != nil {
			return err
		}
		idCol := "record_id"
		if _, ok := r.Col(idCol); !ok {
			idCol = "target_name"
		}

		tmp := integrateOut + ".tmp"
		out, err := os.Create(tmp)
		if err != nil {
			return err
		}
		w, err := tab.NewWriter(out, annotate.OutputHeader(r.Header(), sources))
		if err != nil {
			out.Close()
			return err
		}
		stats, err := annotate.IntegrateStream(r, w, idCol, sources, cfg.ChunkSize, logger)
		if err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmp, integrateOut); err != nil {
			return err
		}
		if err := stage.MarkComplete(integrateOut); err != nil {
			return err
		}
		fmt.Printf("base=%d out=%d sources=%d -> %s\n",
			stats.BaseRows, stats.OutRows, len(sources), integrateOut)
		return nil
	},
}

func init() {
	integrateCmd.Flags().Int("chunk-size", 100_000, "Base rows per processing chunk")
	integrateCmd.Flags().StringVar(&integrateBase, "base", "merged.tsv", "Base record table")
	integrateCmd.Flags().StringVar(&integrateOut, "out", "report.tsv", "Output TSV")
	rootCmd.AddCommand(integrateCmd)
}
