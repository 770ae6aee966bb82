// Package config loads and validates the pipeline configuration. Bad
// config fails fast at startup, before any stage touches data.
package config

import (
	"fmt"
	"strings"
)

// ValidationError is fatal at startup: no partial run is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// AnnotationSource names one annotation table to integrate. Orthologs
// optionally names the annotator's companion alignment table, merged onto
// the annotations by query before indexing.
type AnnotationSource struct {
	Name      string `koanf:"name"`
	Path      string `koanf:"path"`
	Orthologs string `koanf:"orthologs"`
}

// FilterConfig holds the DomainFilterEngine thresholds and name lists.
type FilterConfig struct {
	CovThreshold float64  `koanf:"cov_threshold"`
	MinLen       int      `koanf:"min_len"`
	ScoreCutoff  float64  `koanf:"score_cutoff"`
	And          []string `koanf:"and"`
	Any          []string `koanf:"any"`
}

// PathsConfig names the external artifacts the core reads and writes.
type PathsConfig struct {
	Hits       string `koanf:"hits"`        // hit table from the search oracle
	ClusterDir string `koanf:"cluster_dir"` // per-threshold assignment TSVs
	OutDir     string `koanf:"out_dir"`
	Fasta      string `koanf:"fasta"` // optional, for sequence attachment
	Store      string `koanf:"store"` // optional run-manifest database
}

// Config is the explicit configuration struct passed to each stage. No
// process-wide mutable state derives from it.
type Config struct {
	Thresholds  []float64          `koanf:"thresholds"` // descending identities; percents accepted
	Select      []float64          `koanf:"select"`     // report subset; must be within Thresholds
	Filter      FilterConfig       `koanf:"filter"`
	Annotations []AnnotationSource `koanf:"annotations"`
	ChunkSize   int                `koanf:"chunk_size"`
	Parts       int                `koanf:"parts"`
	Workers     int                `koanf:"workers"`
	Paths       PathsConfig        `koanf:"paths"`
}

// normalizeThresholds accepts the upstream convention of integer percents
// (100 98 90 ...) alongside fractions and returns fractions.
func normalizeThresholds(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v > 1 {
			v = v / 100
		}
		out[i] = v
	}
	return out
}

// Validate normalizes thresholds and enforces type/range rules.
func (c *Config) Validate() error {
	c.Thresholds = normalizeThresholds(c.Thresholds)
	c.Select = normalizeThresholds(c.Select)

	if len(c.Thresholds) == 0 {
		return &ValidationError{Field: "thresholds", Reason: "at least one identity threshold required"}
	}
	for i, tau := range c.Thresholds {
		if tau <= 0 || tau > 1 {
			return &ValidationError{Field: "thresholds", Reason: fmt.Sprintf("threshold %v outside (0, 1]", tau)}
		}
		if i > 0 && tau >= c.Thresholds[i-1] {
			return &ValidationError{Field: "thresholds",
				Reason: fmt.Sprintf("must strictly decrease, got %v after %v", tau, c.Thresholds[i-1])}
		}
	}
	for _, tau := range c.Select {
		if !containsFloat(c.Thresholds, tau) {
			return &ValidationError{Field: "select", Reason: fmt.Sprintf("threshold %v not in thresholds list", tau)}
		}
	}

	if c.Filter.CovThreshold < 0 || c.Filter.CovThreshold > 1 {
		return &ValidationError{Field: "filter.cov_threshold", Reason: "must be within [0, 1]"}
	}
	if c.Filter.MinLen < 0 {
		return &ValidationError{Field: "filter.min_len", Reason: "must be >= 0"}
	}
	for _, n := range append(append([]string(nil), c.Filter.And...), c.Filter.Any...) {
		if strings.TrimSpace(n) == "" {
			return &ValidationError{Field: "filter", Reason: "empty domain name in AND/ANY list"}
		}
	}

	if c.ChunkSize <= 0 {
		return &ValidationError{Field: "chunk_size", Reason: "must be > 0"}
	}
	if c.Parts <= 0 {
		return &ValidationError{Field: "parts", Reason: "must be > 0"}
	}
	if c.Workers < 0 {
		return &ValidationError{Field: "workers", Reason: "must be >= 0 (0 selects CPU count)"}
	}

	seen := make(map[string]struct{}, len(c.Annotations))
	for _, a := range c.Annotations {
		if a.Name == "" {
			return &ValidationError{Field: "annotations", Reason: "source without a name"}
		}
		if a.Path == "" {
			return &ValidationError{Field: "annotations", Reason: "source " + a.Name + " without a path"}
		}
		if _, dup := seen[a.Name]; dup {
			return &ValidationError{Field: "annotations", Reason: "duplicate source name " + a.Name}
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

func containsFloat(haystack []float64, needle float64) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
