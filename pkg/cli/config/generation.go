package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/generation"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
	"github.com/urfave/cli/v3"
)

// Generation holds CLI flags for answer generation
type Generation struct {
	enabled       bool
	warmup        bool
	maxLength     int
	temperature   float64
	deterministic bool
	timeout       time.Duration
	loadTimeout   time.Duration
	maxConcurrent int
}

func (g *Generation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "generation",
			Category:    "Generation",
			Usage:       "Enable answer generation",
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION"),
			Destination: &g.enabled,
		},
		&cli.BoolFlag{
			Name:        "generation-warmup",
			Category:    "Generation",
			Usage:       "Load the generative model at startup instead of on first use",
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_WARMUP"),
			Destination: &g.warmup,
		},
		&cli.IntFlag{
			Name:        "generation-max-length",
			Category:    "Generation",
			Usage:       "Maximum answer length in tokens",
			Value:       generation.DefaultMaxLength,
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_MAX_LENGTH"),
			Destination: &g.maxLength,
		},
		&cli.FloatFlag{
			Name:        "generation-temperature",
			Category:    "Generation",
			Usage:       "Sampling temperature",
			Value:       generation.DefaultTemperature,
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_TEMPERATURE"),
			Destination: &g.temperature,
		},
		&cli.BoolFlag{
			Name:        "generation-deterministic",
			Category:    "Generation",
			Usage:       "Disable sampling so equal inputs give equal answers",
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_DETERMINISTIC"),
			Destination: &g.deterministic,
		},
		&cli.DurationFlag{
			Name:        "generation-timeout",
			Category:    "Generation",
			Usage:       "Per-request generation timeout, including model load (0 disables)",
			Value:       generation.DefaultTimeout,
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_TIMEOUT"),
			Destination: &g.timeout,
		},
		&cli.DurationFlag{
			Name:        "generation-load-timeout",
			Category:    "Generation",
			Usage:       "Timeout of a single model load attempt (0 disables)",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_LOAD_TIMEOUT"),
			Destination: &g.loadTimeout,
		},
		&cli.IntFlag{
			Name:        "generation-max-concurrent",
			Category:    "Generation",
			Usage:       "Maximum concurrent inference calls (0 is unlimited)",
			Sources:     cli.EnvVars("MNEMOSYNE_GENERATION_MAX_CONCURRENT"),
			Destination: &g.maxConcurrent,
		},
	}
}

func (g *Generation) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("enabled", g.enabled),
		slog.Bool("warmup", g.warmup),
		slog.Int("max_length", g.maxLength),
		slog.Float64("temperature", g.temperature),
		slog.Bool("deterministic", g.deterministic),
		slog.Duration("timeout", g.timeout),
		slog.Duration("load_timeout", g.loadTimeout),
		slog.Int("max_concurrent", g.maxConcurrent),
	}
}

func (g *Generation) Enabled() bool {
	return g.enabled
}

func (g *Generation) Warmup() bool {
	return g.enabled && g.warmup
}

// Params returns the sampling parameters
func (g *Generation) Params() model.GenerationParams {
	return model.GenerationParams{
		MaxLength:     g.maxLength,
		Temperature:   g.temperature,
		Deterministic: g.deterministic,
	}
}

// Configure builds the orchestrator over a Gemini model. It returns nil when
// generation is disabled.
func (g *Generation) Configure(gemini *Gemini, m *metrics.Registry) (*generation.Orchestrator, error) {
	if !g.enabled {
		return nil, nil
	}
	if !gemini.IsConfigured() {
		return nil, goerr.Wrap(ErrInvalidConfig, "gemini-project is required when generation is enabled")
	}
	if g.maxLength <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "generation max length must be positive", goerr.V("max_length", g.maxLength))
	}
	if g.temperature < 0 || g.temperature > 2 {
		return nil, goerr.Wrap(ErrInvalidConfig, "generation temperature must be within [0, 2]", goerr.V("temperature", g.temperature))
	}
	if g.maxConcurrent < 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "generation max concurrent must not be negative", goerr.V("max_concurrent", g.maxConcurrent))
	}

	params := g.Params()
	lm := generation.NewGollemModel(gemini.NewClient, params)
	return generation.New(lm,
		generation.WithParams(params),
		generation.WithTimeout(g.timeout),
		generation.WithLoadTimeout(g.loadTimeout),
		generation.WithMaxConcurrent(g.maxConcurrent),
		generation.WithMetrics(m),
	), nil
}
