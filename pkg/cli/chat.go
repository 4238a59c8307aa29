package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg config
		sc  scopeConfig
	)

	flags := scopeFlags(&sc)
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive question answering over recorded knowledge",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg, logging.FormatConsole)

			a, err := cfg.newAssistant(ctx)
			if err != nil {
				return err
			}

			opts, err := sc.searchOptions(c, &cfg)
			if err != nil {
				return err
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt || err == io.EOF {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				query := strings.TrimSpace(line)
				if query == "exit" {
					break
				}
				if query == "" {
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " Searching..."
				sp.Start()
				out, err := a.Ask(ctx, query, opts)
				sp.Stop()
				if err != nil {
					fmt.Fprintf(w, "Error: %s\n", err.Error())
					continue
				}

				printCombinedResults(w, out.Merged)
				fmt.Fprintf(w, "\n")
			}

			fmt.Fprintf(w, "Chat session completed\n")
			return nil
		},
	}
}
