package config

import (
	"log/slog"

	"github.com/secmon-lab/mnemosyne/pkg/service/chunker"
	"github.com/urfave/cli/v3"
)

// Chunking holds CLI flags for the chunker. Values are validated when the
// chunker is built.
type Chunking struct {
	size      int
	overlap   int
	maxChunks int
}

func (c *Chunking) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "chunk-size",
			Category:    "Chunking",
			Usage:       "Maximum chunk length in characters",
			Value:       chunker.DefaultMaxChunkSize,
			Sources:     cli.EnvVars("MNEMOSYNE_CHUNK_SIZE"),
			Destination: &c.size,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Category:    "Chunking",
			Usage:       "Characters shared by consecutive chunks",
			Value:       chunker.DefaultOverlap,
			Sources:     cli.EnvVars("MNEMOSYNE_CHUNK_OVERLAP"),
			Destination: &c.overlap,
		},
		&cli.IntFlag{
			Name:        "max-chunks",
			Category:    "Chunking",
			Usage:       "Maximum chunks per record; trailing text is dropped",
			Value:       chunker.DefaultMaxChunks,
			Sources:     cli.EnvVars("MNEMOSYNE_MAX_CHUNKS"),
			Destination: &c.maxChunks,
		},
	}
}

func (c *Chunking) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("size", c.size),
		slog.Int("overlap", c.overlap),
		slog.Int("max_chunks", c.maxChunks),
	}
}

func (c *Chunking) Options() []chunker.Option {
	return []chunker.Option{
		chunker.WithMaxChunkSize(c.size),
		chunker.WithOverlap(c.overlap),
		chunker.WithMaxChunks(c.maxChunks),
	}
}
