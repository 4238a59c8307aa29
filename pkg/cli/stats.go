package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var (
		cfg   config
		orgID string
		limit int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "org-id",
			Aliases:     []string{"o"},
			Usage:       "Organization ID to report on",
			Sources:     cli.EnvVars("KIOKU_ORG_ID"),
			Destination: &orgID,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Number of recent searches to show",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show recent search activity from the analytics sink",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg, logging.FormatConsole)

			analytics, err := cfg.newAnalytics(ctx)
			if err != nil {
				return err
			}
			if analytics == nil {
				return goerr.New("analytics-dataset is required")
			}

			events, err := analytics.RecentSearchEvents(ctx, orgID, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to fetch search events")
			}

			w := c.Root().Writer
			if len(events) == 0 {
				fmt.Fprintf(w, "No search events recorded\n")
				return nil
			}

			for _, ev := range events {
				fmt.Fprintf(w, "%s  %-40q  sub=%d t=%d v=%d merged=%d  %dms\n",
					ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Query,
					ev.SubQueryCount, ev.TranscriptCount, ev.VisualCount, ev.CombinedCount,
					ev.TookMilliSec)
			}
			return nil
		},
	}
}
