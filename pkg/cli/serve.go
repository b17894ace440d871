package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var requestTimeout time.Duration
	var seed string
	var seedIDField string
	var pipeCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "request-timeout",
			Usage:       "Maximum handling time of an API request (0 disables)",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("MNEMOSYNE_REQUEST_TIMEOUT"),
			Destination: &requestTimeout,
		},
		&cli.StringFlag{
			Name:        "seed",
			Usage:       "JSON-lines records ingested at startup (useful with the memory backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_SEED"),
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "seed-id-field",
			Usage:       "Field holding the record ID in --seed",
			Value:       "request_id",
			Destination: &seedIDField,
		},
	}
	flags = append(flags, pipeCfg.Flags(true)...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pl, err := pipeCfg.build(ctx)
			if err != nil {
				return err
			}
			defer pl.Close()

			if seed != "" {
				summary, err := ingestFile(ctx, pl, seed, seedIDField, 0)
				if err != nil {
					return goerr.Wrap(err, "failed to ingest seed records", goerr.V("seed", seed))
				}
				logging.Default().Info("Seed records ingested", "records", summary.Records, "chunks", summary.Chunks)
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithMetrics(pl.metrics.Handler()),
				httpctrl.WithRequestTimeout(requestTimeout),
			}
			if orch := pl.orchestrator; orch != nil {
				httpOpts = append(httpOpts, httpctrl.WithGenerationState(func() string {
					return orch.State().String()
				}))
				if pipeCfg.generation.Warmup() {
					async.Dispatch(ctx, "generation-warmup", orch.Warmup)
				}
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(pl.uc.Search, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "generation", pl.orchestrator != nil)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
