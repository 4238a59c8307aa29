package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		sc      scopeConfig
		verbose bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Show the decomposition and execution plan",
			Destination: &verbose,
		},
	}
	flags = append(flags, scopeFlags(&sc)...)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question by decomposing it and searching transcripts and frames",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg, logging.FormatConsole)

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("question is required")
			}

			a, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}

			opts, err := sc.searchOptions(c, &cfg)
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " Searching..."
			sp.Start()
			out, err := a.Ask(ctx, query, opts)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to answer question")
			}

			w := c.Root().Writer
			if verbose {
				fmt.Fprintf(w, "Intent: %s (complexity %d)\n", out.Decomposition.Intent, out.Decomposition.Complexity)
				fmt.Fprintf(w, "Reasoning: %s\n", out.Decomposition.Reasoning)
				for i, batch := range out.Batches {
					fmt.Fprintf(w, "Batch %d:\n", i+1)
					for _, sq := range batch {
						fmt.Fprintf(w, "  %s: %s (intent=%s, priority=%d)\n", sq.ID, sq.Text, sq.Intent, sq.Priority)
					}
				}
				fmt.Fprintf(w, "\n")
			}

			printCombinedResults(w, out.Merged)
			return nil
		},
	}
}
