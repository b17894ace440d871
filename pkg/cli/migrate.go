package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	domainConfig "github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/postgres"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var dimension int
	var dryRun bool
	var repoCfg config.Repository
	var tablesCfg config.Tables

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension of the chunk index",
			Value:       model.EmbeddingDimension,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &dimension,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, tablesCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create Firestore indexes or the PostgreSQL schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Migrate configuration",
				"backend", repoCfg.Backend(),
				"dimension", dimension,
				"dryRun", dryRun)

			if dimension <= 0 {
				return goerr.Wrap(config.ErrInvalidConfig, "embedding dimension must be positive", goerr.V("dimension", dimension))
			}

			switch repoCfg.Backend() {
			case config.BackendFirestore:
				tables, err := tablesCfg.Configure(ctx)
				if err != nil {
					return err
				}
				return migrateFirestore(ctx, &repoCfg, getIndexConfig(repoCfg.CollectionPrefix(), dimension, tables), dryRun)
			case config.BackendPostgres:
				return migratePostgres(ctx, &repoCfg, dimension, dryRun)
			default:
				return goerr.Wrap(config.ErrInvalidConfig, "migrate supports the firestore and postgres backends",
					goerr.V("backend", repoCfg.Backend()))
			}
		},
	}
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, indexConfig *fireconf.Config, dryRun bool) error {
	logger := logging.Default()
	if repoCfg.ProjectID() == "" {
		return goerr.Wrap(config.ErrInvalidConfig, "firestore-project-id is required")
	}

	if dryRun {
		logger.Info("Dry run mode - desired indexes")
		for _, col := range indexConfig.Collections {
			for _, idx := range col.Indexes {
				logger.Info("Index",
					"collection", col.Name,
					"fields", describeIndexFields(idx.Fields))
			}
		}
		return nil
	}

	client, err := fireconf.New(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(), indexConfig)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

func describeIndexFields(fields []fireconf.IndexField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.Vector != nil:
			out = append(out, fmt.Sprintf("%s vector(%d)", f.Path, f.Vector.Dimension))
		default:
			out = append(out, fmt.Sprintf("%s %v", f.Path, f.Order))
		}
	}
	return out
}

func migratePostgres(ctx context.Context, repoCfg *config.Repository, dimension int, dryRun bool) error {
	logger := logging.Default()

	if dryRun {
		logger.Info("Dry run mode - schema statements",
			"statements", strings.Join(postgres.Schema(dimension), ";\n"))
		return nil
	}

	repo, err := repoCfg.ConfigurePostgres(ctx)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, "postgres", repo)

	if err := repo.Migrate(ctx, dimension); err != nil {
		return goerr.Wrap(err, "failed to apply schema")
	}
	logger.Info("Schema applied successfully", "dimension", dimension)
	return nil
}

// getIndexConfig returns the Firestore index configuration: the chunk vector
// index plus one exact-count index per filterable field
func getIndexConfig(prefix string, dimension int, tables *domainConfig.Tables) *fireconf.Config {
	indexes := []fireconf.Index{
		{
			Fields: []fireconf.IndexField{
				{
					Path: "Embedding",
					Vector: &fireconf.VectorConfig{
						Dimension: dimension,
					},
				},
			},
		},
	}

	for _, field := range tables.Fields.FilterableFields() {
		indexes = append(indexes, fireconf.Index{
			Fields: []fireconf.IndexField{
				{Path: fmt.Sprintf("Metadata.%s", field), Order: fireconf.OrderAscending},
				{Path: "Index", Order: fireconf.OrderAscending},
			},
		})
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name:    prefix + firestore.ChunksCollection,
				Indexes: indexes,
			},
		},
	}
}
