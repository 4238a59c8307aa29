package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/usecase/decompose"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func decomposeCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the decomposition and plan as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "decompose",
		Usage:     "Show how a question would be decomposed and scheduled, without searching",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg, logging.FormatConsole)

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("question is required")
			}

			decomposer, err := cfg.newDecomposer(ctx)
			if err != nil {
				return err
			}

			decomposition, err := decomposer.Decompose(ctx, query)
			if err != nil {
				return goerr.Wrap(err, "failed to decompose query")
			}
			batches := decompose.PlanExecutionOrder(decomposition.SubQueries)

			w := c.Root().Writer
			if asJSON {
				out := map[string]any{
					"decomposition": decomposition,
					"batches":       batches,
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintf(w, "Intent: %s (complexity %d)\n", decomposition.Intent, decomposition.Complexity)
			fmt.Fprintf(w, "Reasoning: %s\n", decomposition.Reasoning)
			for i, batch := range batches {
				fmt.Fprintf(w, "Batch %d:\n", i+1)
				for _, sq := range batch {
					dep := ""
					if sq.Dependency != "" {
						dep = fmt.Sprintf(" (after %s)", sq.Dependency)
					}
					fmt.Fprintf(w, "  %s: %s%s\n", sq.ID, sq.Text, dep)
				}
			}
			return nil
		},
	}
}
