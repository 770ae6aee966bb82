// Package pipeline sequences the four core stages (filter, merge,
// integrate, split) against externally produced oracle artifacts. Stages
// hand each other typed results; readiness comes from completion markers,
// never from file existence alone.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"prospect/internal/annotate"
	"prospect/internal/cluster"
	"prospect/internal/config"
	"prospect/internal/hits"
	"prospect/internal/report"
	"prospect/internal/stage"
	"prospect/internal/store"
	"prospect/internal/tab"
)

// Stage names, also the keys in the run-manifest store.
const (
	StageFilter    = "filter"
	StageMerge     = "merge"
	StageIntegrate = "integrate"
	StageSplit     = "split"
)

// Pipeline drives one run.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	st        *store.Store // nil when no manifest store is configured
	runID     string
	prevRunID string // latest run before this one, for resumption
	wait      stage.WaitOptions
}

// New builds a Pipeline. The store is opened when the config names one;
// stages run fine without it, they just aren't resumable.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{cfg: cfg, logger: logger, wait: stage.DefaultWaitOptions()}
	if cfg.Paths.Store != "" {
		st, err := store.Open(cfg.Paths.Store)
		if err != nil {
			return nil, err
		}
		p.st = st
	}
	return p, nil
}

// Close releases the manifest store, if open.
func (p *Pipeline) Close() error {
	if p.st != nil {
		return p.st.Close()
	}
	return nil
}

// Artifact paths under the output directory.
func (p *Pipeline) filteredPath() string { return filepath.Join(p.cfg.Paths.OutDir, "filtered.tsv") }
func (p *Pipeline) mergedPath() string   { return filepath.Join(p.cfg.Paths.OutDir, "merged.tsv") }
func (p *Pipeline) reportPath() string   { return filepath.Join(p.cfg.Paths.OutDir, "report.tsv") }
func (p *Pipeline) shardsDir() string    { return filepath.Join(p.cfg.Paths.OutDir, "shards") }

// assignmentPath follows the clustering oracle's round naming:
// round1_100_cluster.tsv, round2_98_cluster.tsv, ...
func (p *Pipeline) assignmentPath(round int, tau float64) string {
	name := fmt.Sprintf("round%d_%s_cluster.tsv", round, cluster.TauLabel(tau))
	return filepath.Join(p.cfg.Paths.ClusterDir, name)
}

// Run executes every stage in order and returns their results. Completed
// stages recorded in the store with a ready artifact are skipped, so an
// aborted run resumes where it stopped.
func (p *Pipeline) Run(ctx context.Context) ([]stage.Result, error) {
	if err := os.MkdirAll(p.cfg.Paths.OutDir, 0o755); err != nil {
		return nil, err
	}
	if p.st != nil {
		if prev, err := p.st.LatestRun(); err == nil && prev != nil {
			p.prevRunID = prev.ID
		}
		cfgJSON, err := json.Marshal(p.cfg)
		if err != nil {
			return nil, err
		}
		runID, err := p.st.CreateRun(string(cfgJSON))
		if err != nil {
			return nil, err
		}
		p.runID = runID
		p.logger.Info("run started", "run_id", runID)
	}

	var results []stage.Result
	fail := func(err error) ([]stage.Result, error) {
		if p.st != nil && p.runID != "" {
			_ = p.st.SetRunStatus(p.runID, "failed")
		}
		return results, err
	}

	for _, step := range []struct {
		name string
		fn   func(context.Context) (stage.Result, error)
	}{
		{StageFilter, p.runFilter},
		{StageMerge, p.runMerge},
		{StageIntegrate, p.runIntegrate},
		{StageSplit, p.runSplit},
	} {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if res, ok := p.completed(step.name); ok {
			p.logger.Info("stage already complete, skipping", "stage", step.name, "artifact", res.Artifact)
			results = append(results, *res)
			continue
		}
		res, err := step.fn(ctx)
		if err != nil {
			return fail(fmt.Errorf("stage %s: %w", step.name, err))
		}
		results = append(results, res)
		if p.st != nil {
			if err := p.st.SaveStageResult(p.runID, res); err != nil {
				return fail(err)
			}
		}
	}

	if p.st != nil {
		if err := p.st.SetRunStatus(p.runID, "completed"); err != nil {
			return results, err
		}
	}
	return results, nil
}

// completed reports whether a stage finished in an earlier run of the same
// configuration and its artifact is still ready.
func (p *Pipeline) completed(stageName string) (*stage.Result, bool) {
	if p.st == nil || p.prevRunID == "" {
		return nil, false
	}
	res, err := p.st.StageResult(p.prevRunID, stageName)
	if err != nil || res == nil {
		return nil, false
	}
	if !stage.Ready(res.Artifact) {
		return nil, false
	}
	if p.runID != "" {
		_ = p.st.SaveStageResult(p.runID, *res)
	}
	return res, true
}

func (p *Pipeline) runFilter(ctx context.Context) (stage.Result, error) {
	if err := stage.WaitForArtifact(ctx, StageFilter, p.cfg.Paths.Hits, p.wait); err != nil {
		return stage.Result{}, err
	}
	t, malformedRows, err := tab.ReadFile(p.cfg.Paths.Hits)
	if err != nil {
		return stage.Result{}, err
	}

	pred, err := hits.NewPredicate(p.cfg.Filter.And, p.cfg.Filter.Any)
	if err != nil {
		return stage.Result{}, err
	}
	filtered, stats, err := hits.Filter(ctx, t, hits.FilterOptions{
		Predicate:    pred,
		CovThreshold: p.cfg.Filter.CovThreshold,
		MinLen:       p.cfg.Filter.MinLen,
		ScoreCutoff:  p.cfg.Filter.ScoreCutoff,
		Workers:      p.cfg.Workers,
	}, p.logger)
	if err != nil {
		return stage.Result{}, err
	}

	out := p.filteredPath()
	if err := writeArtifact(out, filtered); err != nil {
		return stage.Result{}, err
	}
	return stage.Result{
		Stage:     StageFilter,
		Artifact:  out,
		Accepted:  stats.Accepted,
		Rejected:  stats.Rejected,
		Malformed: stats.Malformed + malformedRows,
	}, nil
}

func (p *Pipeline) runMerge(ctx context.Context) (stage.Result, error) {
	if err := stage.WaitForArtifact(ctx, StageMerge, p.filteredPath(), p.wait); err != nil {
		return stage.Result{}, err
	}
	base, _, err := tab.ReadFile(p.filteredPath())
	if err != nil {
		return stage.Result{}, err
	}

	assignments := make([]cluster.Assignment, len(p.cfg.Thresholds))
	for i, tau := range p.cfg.Thresholds {
		path := p.assignmentPath(i+1, tau)
		if err := stage.WaitForArtifact(ctx, StageMerge, path, p.wait); err != nil {
			return stage.Result{}, err
		}
		a, err := cluster.LoadAssignment(path, tau)
		if err != nil {
			return stage.Result{}, err
		}
		assignments[i] = a
	}

	h, violations, err := cluster.Merge(assignments)
	if err != nil {
		return stage.Result{}, err
	}
	for _, v := range violations {
		v := v
		p.logger.Warn("nesting violation, coarser assignment kept", "error", v.Error())
	}

	idCol := idColumn(base)
	merged, err := cluster.AddColumns(base, h, idCol)
	if err != nil {
		return stage.Result{}, err
	}
	if err := writeArtifact(p.mergedPath(), merged); err != nil {
		return stage.Result{}, err
	}

	// Representative-only subsets for the report thresholds.
	for _, tau := range p.cfg.Select {
		sub, err := representativeSubset(merged, h, idCol, tau)
		if err != nil {
			return stage.Result{}, err
		}
		out := filepath.Join(p.cfg.Paths.OutDir, "identity"+cluster.TauLabel(tau)+"_result.tsv")
		if err := writeArtifact(out, sub); err != nil {
			return stage.Result{}, err
		}
	}

	return stage.Result{
		Stage:      StageMerge,
		Artifact:   p.mergedPath(),
		Accepted:   len(merged.Rows),
		Violations: len(violations),
	}, nil
}

func (p *Pipeline) runIntegrate(ctx context.Context) (stage.Result, error) {
	if err := stage.WaitForArtifact(ctx, StageIntegrate, p.mergedPath(), p.wait); err != nil {
		return stage.Result{}, err
	}

	var sources []*annotate.Source
	for _, ac := range p.cfg.Annotations {
		if err := stage.WaitForArtifact(ctx, StageIntegrate, ac.Path, p.wait); err != nil {
			return stage.Result{}, err
		}
		t, _, err := tab.ReadFile(ac.Path)
		if err != nil {
			return stage.Result{}, err
		}
		if ac.Orthologs != "" {
			if err := stage.WaitForArtifact(ctx, StageIntegrate, ac.Orthologs, p.wait); err != nil {
				return stage.Result{}, err
			}
			orth, _, err := tab.ReadFile(ac.Orthologs)
			if err != nil {
				return stage.Result{}, err
			}
			if t, err = annotate.MergeTables(t, orth, "record_id"); err != nil {
				return stage.Result{}, err
			}
		}
		src, err := annotate.NewSource(ac.Name, t, "record_id")
		if err != nil {
			return stage.Result{}, err
		}
		sources = append(sources, src)
	}

	in, err := os.Open(p.mergedPath())
	if err != nil {
		return stage.Result{}, err
	}
	defer in.Close()
	r, err := tab.NewReader(in)
	if err != nil {
		return stage.Result{}, err
	}

	tmp := p.reportPath() + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return stage.Result{}, err
	}
	idCol := "record_id"
	if _, ok := r.Col(idCol); !ok {
		idCol = "target_name"
	}
	w, err := tab.NewWriter(out, annotate.OutputHeader(r.Header(), sources))
	if err != nil {
		out.Close()
		return stage.Result{}, err
	}
	stats, err := annotate.IntegrateStream(r, w, idCol, sources, p.cfg.ChunkSize, p.logger)
	if err != nil {
		out.Close()
		return stage.Result{}, err
	}
	if err := out.Close(); err != nil {
		return stage.Result{}, err
	}
	if err := os.Rename(tmp, p.reportPath()); err != nil {
		return stage.Result{}, err
	}
	if err := stage.MarkComplete(p.reportPath()); err != nil {
		return stage.Result{}, err
	}

	return stage.Result{
		Stage:    StageIntegrate,
		Artifact: p.reportPath(),
		Accepted: stats.OutRows,
	}, nil
}

func (p *Pipeline) runSplit(ctx context.Context) (stage.Result, error) {
	if err := stage.WaitForArtifact(ctx, StageSplit, p.reportPath(), p.wait); err != nil {
		return stage.Result{}, err
	}
	t, _, err := tab.ReadFile(p.reportPath())
	if err != nil {
		return stage.Result{}, err
	}

	missing := 0
	if p.cfg.Paths.Fasta != "" {
		idCol := idColumn(t)
		t, missing, err = report.AttachSequences(t, p.cfg.Paths.Fasta, idCol, p.logger)
		if err != nil {
			return stage.Result{}, err
		}
	}

	paths, err := report.Split(t, p.cfg.Parts, p.shardsDir(), "split_part")
	if err != nil {
		return stage.Result{}, err
	}
	for _, path := range paths {
		if err := stage.MarkComplete(path); err != nil {
			return stage.Result{}, err
		}
	}
	return stage.Result{
		Stage:     StageSplit,
		Artifact:  p.shardsDir(),
		Accepted:  len(t.Rows),
		Malformed: missing,
	}, nil
}

// idColumn picks the record identifier column, preferring the canonical
// name over the hmmsearch summary name.
func idColumn(t *tab.Table) string {
	if _, ok := t.Col("record_id"); ok {
		return "record_id"
	}
	return "target_name"
}

// representativeSubset keeps the rows whose record represents its own
// cluster at tau.
func representativeSubset(t *tab.Table, h *cluster.Hierarchy, idCol string, tau float64) (*tab.Table, error) {
	reps, err := h.Representatives(tau)
	if err != nil {
		return nil, err
	}
	repSet := make(map[string]struct{}, len(reps))
	for _, r := range reps {
		repSet[r] = struct{}{}
	}
	idIdx, ok := t.Col(idCol)
	if !ok {
		return nil, fmt.Errorf("table has no column %q", idCol)
	}
	var rows [][]string
	for _, row := range t.Rows {
		if _, ok := repSet[row[idIdx]]; ok {
			rows = append(rows, row)
		}
	}
	return tab.NewTable(t.Header, rows), nil
}

// writeArtifact writes a table atomically and marks it complete.
func writeArtifact(path string, t *tab.Table) error {
	if err := tab.WriteFile(path, t); err != nil {
		return err
	}
	return stage.MarkComplete(path)
}
