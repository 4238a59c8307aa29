package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/search"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "kioku",
		Usage: "Agentic retrieval over recorded meetings and demos",
		Commands: []*cli.Command{
			askCommand(),
			searchCommand(),
			decomposeCommand(),
			chatCommand(),
			mcpCommand(),
			statsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// setupLogger installs the configured logger on the context
func setupLogger(ctx context.Context, cfg *config, format logging.Format) context.Context {
	logger := logging.New(cfg.logLevel, format, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// scopeConfig holds per-invocation search scope values
type scopeConfig struct {
	orgID        string
	recordingIDs []string
	audioWeight  float64
	visualWeight float64
	limit        int64
	noFrames     bool
	profilePath  string
}

// scopeFlags returns flags controlling search scope and ranking weights
func scopeFlags(sc *scopeConfig) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "org-id",
			Aliases:     []string{"o"},
			Usage:       "Organization ID the search is scoped to",
			Sources:     cli.EnvVars("KIOKU_ORG_ID"),
			Destination: &sc.orgID,
			Required:    true,
		},
		&cli.StringSliceFlag{
			Name:        "recording-id",
			Aliases:     []string{"r"},
			Usage:       "Restrict the search to specific recordings (repeatable)",
			Destination: &sc.recordingIDs,
		},
		&cli.FloatFlag{
			Name:        "audio-weight",
			Usage:       "Transcript score multiplier",
			Value:       search.DefaultAudioWeight,
			Sources:     cli.EnvVars("KIOKU_AUDIO_WEIGHT"),
			Destination: &sc.audioWeight,
		},
		&cli.FloatFlag{
			Name:        "visual-weight",
			Usage:       "Visual frame score multiplier",
			Value:       search.DefaultVisualWeight,
			Sources:     cli.EnvVars("KIOKU_VISUAL_WEIGHT"),
			Destination: &sc.visualWeight,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of combined results (0 means no limit)",
			Value:       10,
			Sources:     cli.EnvVars("KIOKU_SEARCH_LIMIT"),
			Destination: &sc.limit,
		},
		&cli.BoolFlag{
			Name:        "no-frames",
			Usage:       "Skip the visual frame search path",
			Destination: &sc.noFrames,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to a YAML search profile with default weights and scope",
			Sources:     cli.EnvVars("KIOKU_SEARCH_PROFILE"),
			Destination: &sc.profilePath,
		},
	}
}

// searchOptions builds search options from the scope flags and the global
// config. A flag value only overrides the YAML profile when the user set the
// flag explicitly; otherwise the flag Destination just holds the flag default.
func (sc *scopeConfig) searchOptions(c *cli.Command, cfg *config) (search.Options, error) {
	defaults, err := loadSearchDefaults(sc.profilePath)
	if err != nil {
		return search.Options{}, err
	}

	return sc.buildOptions(cfg, defaults, c.IsSet), nil
}

// buildOptions merges the profile and the scope flags. isSet reports whether
// a flag was given on the command line or through its env source.
func (sc *scopeConfig) buildOptions(cfg *config, defaults *searchDefaults, isSet func(string) bool) search.Options {
	opts := search.NewOptions(sc.orgID)
	defaults.apply(&opts)

	if len(sc.recordingIDs) > 0 {
		opts.RecordingIDs = sc.recordingIDs
	}
	if isSet("audio-weight") || defaults == nil || defaults.AudioWeight == nil {
		opts.AudioWeight = sc.audioWeight
	}
	if isSet("visual-weight") || defaults == nil || defaults.VisualWeight == nil {
		opts.VisualWeight = sc.visualWeight
	}
	if isSet("limit") || defaults == nil || defaults.Limit == nil {
		opts.Limit = int(sc.limit)
	}
	opts.IncludeFrames = !sc.noFrames
	opts.DisableVisual = cfg.disableVisual

	return opts
}

// printCombinedResults renders one ranked result list for terminal output
func printCombinedResults(w io.Writer, results []*model.CombinedResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results found\n")
		return
	}

	for i, r := range results {
		switch r.Modality {
		case model.ModalityTranscript:
			t := r.Transcript
			fmt.Fprintf(w, "%2d. [%.3f] transcript %s (%s)\n", i+1, r.FinalScore, t.ChunkID, t.RecordingTitle)
			fmt.Fprintf(w, "    %s\n", t.Text)
		case model.ModalityVisual:
			v := r.Visual
			fmt.Fprintf(w, "%2d. [%.3f] frame %s @ %.1fs (%s)\n", i+1, r.FinalScore, v.FrameID, v.FrameTimeSec, v.RecordingTitle)
			fmt.Fprintf(w, "    %s\n", v.VisualDescription)
			if v.OCRText != "" {
				fmt.Fprintf(w, "    OCR: %s\n", v.OCRText)
			}
			if v.FrameURL != "" {
				fmt.Fprintf(w, "    %s\n", v.FrameURL)
			}
		}
	}
}
