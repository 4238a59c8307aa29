package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg config
		sc  scopeConfig
	)

	flags := scopeFlags(&sc)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Run one multimodal search without query decomposition",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg, logging.FormatConsole)

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("query is required")
			}

			engine, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}

			opts, err := sc.searchOptions(c, &cfg)
			if err != nil {
				return err
			}

			result, err := engine.Search(ctx, query, opts)
			if err != nil {
				return goerr.Wrap(err, "search failed")
			}

			w := c.Root().Writer
			printCombinedResults(w, result.CombinedResults)
			fmt.Fprintf(w, "\n%d transcript, %d visual, %d combined (audio %.2f / visual %.2f)\n",
				result.Metadata.TranscriptCount, result.Metadata.VisualCount, result.Metadata.CombinedCount,
				result.Metadata.AudioWeight, result.Metadata.VisualWeight)
			return nil
		},
	}
}
