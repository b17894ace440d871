package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/urfave/cli/v3"
)

// Retrieval holds CLI flags for ranking and total estimation
type Retrieval struct {
	topK             int
	fetchMultiplier  int
	namedThreshold   float64
	generalThreshold float64
}

func (r *Retrieval) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Category:    "Retrieval",
			Usage:       "Default number of results per query",
			Value:       retrieval.DefaultTopK,
			Sources:     cli.EnvVars("MNEMOSYNE_TOP_K"),
			Destination: &r.topK,
		},
		&cli.IntFlag{
			Name:        "fetch-multiplier",
			Category:    "Retrieval",
			Usage:       "Candidate chunks fetched per requested result",
			Value:       retrieval.DefaultFetchMultiplier,
			Sources:     cli.EnvVars("MNEMOSYNE_FETCH_MULTIPLIER"),
			Destination: &r.fetchMultiplier,
		},
		&cli.FloatFlag{
			Name:        "named-threshold",
			Category:    "Retrieval",
			Usage:       "Similarity cutoff for person and project totals",
			Value:       retrieval.DefaultNamedThreshold,
			Sources:     cli.EnvVars("MNEMOSYNE_NAMED_THRESHOLD"),
			Destination: &r.namedThreshold,
		},
		&cli.FloatFlag{
			Name:        "general-threshold",
			Category:    "Retrieval",
			Usage:       "Similarity cutoff for other totals",
			Value:       retrieval.DefaultGeneralThreshold,
			Sources:     cli.EnvVars("MNEMOSYNE_GENERAL_THRESHOLD"),
			Destination: &r.generalThreshold,
		},
	}
}

func (r *Retrieval) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("top_k", r.topK),
		slog.Int("fetch_multiplier", r.fetchMultiplier),
		slog.Float64("named_threshold", r.namedThreshold),
		slog.Float64("general_threshold", r.generalThreshold),
	}
}

// TopK returns the default result count
func (r *Retrieval) TopK() int {
	return r.topK
}

// Options validates the flags and converts them into retriever options
func (r *Retrieval) Options() ([]retrieval.Option, error) {
	if r.fetchMultiplier < 1 {
		return nil, goerr.Wrap(ErrInvalidConfig, "fetch multiplier must be at least 1", goerr.V("fetch_multiplier", r.fetchMultiplier))
	}
	for name, v := range map[string]float64{"named_threshold": r.namedThreshold, "general_threshold": r.generalThreshold} {
		if v < 0 || v > 1 {
			return nil, goerr.Wrap(ErrInvalidConfig, "threshold must be within [0, 1]", goerr.V(name, v))
		}
	}

	return []retrieval.Option{
		retrieval.WithFetchMultiplier(r.fetchMultiplier),
		retrieval.WithNamedThreshold(r.namedThreshold),
		retrieval.WithGeneralThreshold(r.generalThreshold),
	}, nil
}
