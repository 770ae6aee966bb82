package hits

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"prospect/internal/tab"
)

// FilterOptions are the externally supplied filter thresholds, validated
// by the config layer before they reach this package.
type FilterOptions struct {
	Predicate    Predicate
	CovThreshold float64
	MinLen       int
	ScoreCutoff  float64 // 0 disables the score prefilter
	Workers      int
}

// Stats counts the fate of every input row.
type Stats struct {
	Accepted  int
	Rejected  int
	Malformed int
}

// passes applies the acceptance rule: length, optional score cutoff, the
// domain predicate, and model coverage over the domains the predicate
// selected (all domains when the ANY list is empty).
func passes(h Hit, opt FilterOptions) bool {
	if h.TargetLen < opt.MinLen {
		return false
	}
	if opt.ScoreCutoff > 0 && h.Score <= opt.ScoreCutoff {
		return false
	}
	if !opt.Predicate.Matches(h.Domains) {
		return false
	}
	cov, ok := opt.Predicate.relevantCoverage(h)
	if !ok {
		return false
	}
	return cov >= opt.CovThreshold
}

// Filter evaluates every row of the hit table against opt and returns the
// passing rows as a new table. Rows are processed by a worker pool over
// disjoint shards; the result is stably sorted by record ID so output is
// identical for any worker count. Malformed rows are dropped and counted,
// never fatal.
func Filter(ctx context.Context, t *tab.Table, opt FilterOptions, logger *slog.Logger) (*tab.Table, Stats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opt.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(t.Rows) && len(t.Rows) > 0 {
		workers = len(t.Rows)
	}

	type shardResult struct {
		hits      []Hit
		rejected  int
		malformed int
	}
	results := make([]shardResult, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			res := &results[w]
			for i := w; i < len(t.Rows); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				h, err := Parse(t, t.Rows[i])
				if err != nil {
					var mr *MalformedRecordError
					if errors.As(err, &mr) {
						res.malformed++
						continue
					}
					return err
				}
				if passes(h, opt) {
					res.hits = append(res.hits, h)
				} else {
					res.rejected++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	var accepted []Hit
	for _, res := range results {
		accepted = append(accepted, res.hits...)
		stats.Rejected += res.rejected
		stats.Malformed += res.malformed
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].ID < accepted[j].ID })
	stats.Accepted = len(accepted)

	rows := make([][]string, len(accepted))
	for i, h := range accepted {
		rows[i] = h.Row
	}
	logger.Info("filter complete",
		"accepted", stats.Accepted, "rejected", stats.Rejected, "malformed", stats.Malformed)
	return tab.NewTable(t.Header, rows), stats, nil
}
