package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix maps PROSPECT_CHUNK_SIZE to chunk_size and
// PROSPECT_FILTER__MIN_LEN to filter.min_len.
const envPrefix = "PROSPECT_"

// Defaults match the upstream pipeline's conventions.
var defaults = Config{
	Thresholds: []float64{1.0, 0.98, 0.9, 0.7, 0.5, 0.3},
	Filter: FilterConfig{
		CovThreshold: 0.2,
		MinLen:       400,
		ScoreCutoff:  16.0,
	},
	ChunkSize: 100_000,
	Parts:     1,
}

// flagKeys bridges flat CLI flag names to nested config keys, the same
// way the flags read on the command line (--min-len) map into the struct.
var flagKeys = map[string]string{
	"cov_threshold": "filter.cov_threshold",
	"min_len":       "filter.min_len",
	"score_cutoff":  "filter.score_cutoff",
	"and":           "filter.and",
	"any":           "filter.any",
	"hits":          "paths.hits",
	"cluster_dir":   "paths.cluster_dir",
	"out_dir":       "paths.out_dir",
	"fasta":         "paths.fasta",
	"store":         "paths.store",
}

// Load builds the configuration in priority order: defaults, then the
// YAML file (if any), then PROSPECT_* environment variables, then
// explicitly set flags. The result is validated before return.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("reading flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
