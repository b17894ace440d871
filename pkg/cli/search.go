package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

const snippetRunes = 160

func cmdSearch() *cli.Command {
	var topK int
	var answer bool
	var fallback bool
	var showContext bool
	var seed string
	var seedIDField string
	var pipeCfg pipelineConfig

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Number of results (0 uses --top-k)",
			Destination: &topK,
		},
		&cli.BoolFlag{
			Name:        "answer",
			Usage:       "Generate an answer from the results (requires --generation)",
			Destination: &answer,
		},
		&cli.BoolFlag{
			Name:        "fallback",
			Usage:       "Print results when answer generation fails",
			Destination: &fallback,
		},
		&cli.BoolFlag{
			Name:        "show-context",
			Usage:       "Print the formatted context passed to the model",
			Destination: &showContext,
		},
		&cli.StringFlag{
			Name:        "seed",
			Usage:       "JSON-lines records ingested before searching (useful with the memory backend)",
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
		Name:      "search",
		Aliases:   []string{"q"},
		Usage:     "Search records from the terminal",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			pl, err := pipeCfg.build(ctx)
			if err != nil {
				return err
			}
			defer pl.Close()

			if seed != "" {
				if _, err := ingestFile(ctx, pl, seed, seedIDField, 0); err != nil {
					return goerr.Wrap(err, "failed to ingest seed records", goerr.V("seed", seed))
				}
			}

			result, err := pl.uc.Search.Answer(ctx, query, topK, usecase.AnswerOption{
				UseGeneration:       answer,
				FallbackToRetrieval: fallback,
			})
			if err != nil {
				return err
			}

			printAnswer(c.Root().Writer, result, showContext)
			return nil
		},
	}
}

func printAnswer(w io.Writer, result *model.AnswerResult, showContext bool) {
	label := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	id := color.New(color.FgYellow, color.Bold)

	if qi := result.Intent; qi != nil {
		label.Fprint(w, "Intent: ")
		fmt.Fprint(w, qi.Intent)
		if entity := qi.Entity(); entity != "" {
			fmt.Fprintf(w, " (%s)", entity)
		}
		label.Fprint(w, "  Query type: ")
		fmt.Fprintln(w, qi.QueryType)
	}

	label.Fprint(w, "Total: ")
	if result.Total.Exact {
		fmt.Fprintf(w, "%d (exact)\n", result.Total.Count)
	} else {
		fmt.Fprintf(w, "approximately %d (similarity >= %.2f)\n", result.Total.Count, result.Total.Threshold)
	}

	if len(result.Results) == 0 {
		dim.Fprintln(w, "No matching records.")
	}
	for i, r := range result.Results {
		fmt.Fprintf(w, "%2d. ", i+1)
		id.Fprint(w, r.RecordID)
		dim.Fprintf(w, "  score=%.3f similarity=%.3f boost=%.1f\n", r.CombinedScore, r.BestSimilarity, r.Boost)
		fmt.Fprintf(w, "    %s\n", snippet(r.ChunkText, snippetRunes))
	}

	if showContext {
		label.Fprintln(w, "\nContext:")
		dim.Fprintln(w, result.Context)
	}

	if result.Answer != nil {
		label.Fprintln(w, "\nAnswer:")
		fmt.Fprintln(w, *result.Answer)
	}
	if result.GenerationError != nil {
		color.New(color.FgRed).Fprintf(w, "\nAnswer generation failed (%s); showing retrieval results only\n",
			model.KindOf(result.GenerationError))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
