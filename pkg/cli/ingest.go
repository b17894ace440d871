package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var input string
	var idField string
	var batchSize int
	var failOnError bool
	var pipeCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "JSON-lines file of records (- for stdin)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_INGEST_INPUT"),
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "id-field",
			Usage:       "Field holding the record ID",
			Value:       "request_id",
			Sources:     cli.EnvVars("MNEMOSYNE_INGEST_ID_FIELD"),
			Destination: &idField,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "Records ingested per batch",
			Value:       100,
			Sources:     cli.EnvVars("MNEMOSYNE_INGEST_BATCH_SIZE"),
			Destination: &batchSize,
		},
		&cli.BoolFlag{
			Name:        "fail-on-error",
			Usage:       "Exit with an error when any record fails",
			Sources:     cli.EnvVars("MNEMOSYNE_INGEST_FAIL_ON_ERROR"),
			Destination: &failOnError,
		},
	}
	flags = append(flags, pipeCfg.Flags(false)...)

	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Chunk, embed and store records",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pl, err := pipeCfg.build(ctx)
			if err != nil {
				return err
			}
			defer pl.Close()

			summary, err := ingestFile(ctx, pl, input, idField, batchSize)
			if err != nil {
				return goerr.Wrap(err, "ingestion failed", goerr.V("input", input))
			}

			logging.From(ctx).Info("Ingestion completed",
				"records", summary.Records,
				"chunks", summary.Chunks,
				"empty", summary.Empty,
				"failures", summary.Failures,
				"skipped", summary.Skipped)

			if failOnError && summary.Failures > 0 {
				return goerr.New("some records failed to ingest", goerr.V("failures", summary.Failures))
			}
			return nil
		},
	}
}
