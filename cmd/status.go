package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"prospect/internal/store"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stage results from the run-manifest store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Paths.Store == "" {
			return fmt.Errorf("no manifest store: set --store or paths.store")
		}

		st, err := store.Open(cfg.Paths.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := resolveRun(st, statusRunID)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Println("no runs recorded")
			return nil
		}

		results, err := st.StageResults(run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("run %s  status=%s  started=%s\n",
			run.ID, run.Status, time.UnixMilli(run.CreatedAt).Format(time.RFC3339))

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"stage", "accepted", "rejected", "malformed", "violations", "artifact"})
		for _, r := range results {
			tw.AppendRow(table.Row{r.Stage, r.Accepted, r.Rejected, r.Malformed, r.Violations, r.Artifact})
		}
		tw.Render()
		return nil
	},
}

func resolveRun(st *store.Store, id string) (*store.Run, error) {
	if id == "" {
		return st.LatestRun()
	}
	return st.GetRun(id)
}

func init() {
	statusCmd.Flags().String("store", "", "Run-manifest SQLite database")
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Run ID (default: latest)")
	rootCmd.AddCommand(statusCmd)
}
