package cli

import (
	"context"

	mcpservice "github.com/m-mizutani/kioku/pkg/service/mcp"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the retrieval tools over MCP on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout belongs to the MCP protocol, so logs go to stderr as JSON
			ctx = setupLogger(ctx, &cfg, logging.FormatJSON)

			decomposer, err := cfg.newDecomposer(ctx)
			if err != nil {
				return err
			}

			engine, err := cfg.newEngine(ctx)
			if err != nil {
				return err
			}

			server := mcpservice.NewServer(decomposer, engine,
				mcpservice.WithDisableVisual(cfg.disableVisual))

			logging.From(ctx).Info("starting MCP server", "llm", cfg.llmBackend)
			return server.Run(ctx)
		},
	}
}
