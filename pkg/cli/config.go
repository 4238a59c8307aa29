package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/policy"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/assistant"
	"github.com/m-mizutani/kioku/pkg/usecase/decompose"
	"github.com/m-mizutani/kioku/pkg/usecase/search"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Repository
	project     string
	database    string
	postgresDSN string

	// Adapters
	llmBackend     string
	openaiAPIKey   string
	geminiProject  string
	geminiLocation string
	bucket         string

	// Analytics
	analyticsDataset string
	analyticsTable   string

	// Retrieval
	policyDir     string
	maxSubQueries int64
	disableVisual bool

	logLevel string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string (overrides Firestore when set)",
			Sources:     cli.EnvVars("KIOKU_POSTGRES_DSN"),
			Destination: &cfg.postgresDSN,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory containing retrieval guardrail policies (*.rego)",
			Sources:     cli.EnvVars("KIOKU_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.IntFlag{
			Name:        "max-subqueries",
			Usage:       "Maximum number of sub-queries per decomposition (0 means unlimited)",
			Sources:     cli.EnvVars("KIOKU_MAX_SUBQUERIES"),
			Destination: &cfg.maxSubQueries,
		},
		&cli.BoolFlag{
			Name:        "disable-visual",
			Usage:       "Disable visual frame search entirely",
			Sources:     cli.EnvVars("KIOKU_DISABLE_VISUAL_SEARCH"),
			Destination: &cfg.disableVisual,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm",
			Usage:       "LLM backend (gemini or openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("KIOKU_LLM_BACKEND"),
			Destination: &cfg.llmBackend,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "GCS bucket holding extracted frame images",
			Sources:     cli.EnvVars("KIOKU_FRAME_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// analyticsFlags returns flags for the search analytics sink
func analyticsFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "analytics-dataset",
			Usage:       "BigQuery dataset for search analytics",
			Sources:     cli.EnvVars("KIOKU_ANALYTICS_DATASET"),
			Destination: &cfg.analyticsDataset,
		},
		&cli.StringFlag{
			Name:        "analytics-table",
			Usage:       "BigQuery table for search analytics",
			Sources:     cli.EnvVars("KIOKU_ANALYTICS_TABLE"),
			Destination: &cfg.analyticsTable,
		},
	}
}

// newRepository creates a repository instance. Postgres wins when a DSN is
// given; otherwise Firestore is used.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.postgresDSN != "" {
		repo, err := repository.NewPostgres(ctx, cfg.postgresDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create postgres repository")
		}
		return repo, nil
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore repository")
	}
	return repo, nil
}

// newGenAI creates the configured LLM adapter instance
func (cfg *config) newGenAI(ctx context.Context) (adapter.GenAI, error) {
	switch cfg.llmBackend {
	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey), nil

	case "gemini":
		project := cfg.geminiProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, goerr.New("gemini-project is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		client, err := adapter.NewGemini(ctx, project, cfg.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini adapter")
		}
		return client, nil

	default:
		return nil, goerr.New("unknown LLM backend", goerr.V("llm", cfg.llmBackend))
	}
}

// newStorage creates a Storage adapter, or nil when no bucket is configured
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newPolicy loads retrieval guardrails, or nil when no policy dir is configured
func (cfg *config) newPolicy(ctx context.Context) (*policy.Engine, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}

	guard, err := policy.New(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load retrieval policies")
	}
	return guard, nil
}

// newAnalytics creates the analytics sink, or nil when not configured
func (cfg *config) newAnalytics(ctx context.Context) (adapter.Analytics, error) {
	if cfg.analyticsDataset == "" {
		return nil, nil
	}
	if cfg.project == "" {
		return nil, goerr.New("project is required for analytics")
	}

	var opts []adapter.BigQueryOption
	if cfg.analyticsTable != "" {
		opts = append(opts, adapter.WithAnalyticsTable(cfg.analyticsDataset, cfg.analyticsTable))
	} else {
		opts = append(opts, adapter.WithAnalyticsTable(cfg.analyticsDataset, "search_events"))
	}

	analytics, err := adapter.NewBigQuery(ctx, cfg.project, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create analytics sink")
	}
	return analytics, nil
}

// newEngine builds the multimodal search engine
func (cfg *config) newEngine(ctx context.Context) (*search.Engine, error) {
	genAI, err := cfg.newGenAI(ctx)
	if err != nil {
		return nil, err
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	var opts []search.EngineOption
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	if storage != nil {
		opts = append(opts, search.WithStorage(storage))
	}

	return search.NewEngine(genAI, repo, opts...), nil
}

// newDecomposer builds the query decomposer
func (cfg *config) newDecomposer(ctx context.Context) (*decompose.Decomposer, error) {
	genAI, err := cfg.newGenAI(ctx)
	if err != nil {
		return nil, err
	}

	return decompose.New(decompose.NewClassifier(genAI), genAI, decompose.Config{
		MaxSubQueries: int(cfg.maxSubQueries),
	}), nil
}

// newAssistant wires the full pipeline
func (cfg *config) newAssistant(ctx context.Context) (*assistant.Assistant, error) {
	decomposer, err := cfg.newDecomposer(ctx)
	if err != nil {
		return nil, err
	}

	engine, err := cfg.newEngine(ctx)
	if err != nil {
		return nil, err
	}

	var opts []assistant.Option
	guard, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		opts = append(opts, assistant.WithPolicy(guard))
	}

	analytics, err := cfg.newAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	if analytics != nil {
		opts = append(opts, assistant.WithAnalytics(analytics))
	}

	return assistant.New(decomposer, engine, opts...), nil
}

// searchDefaults are per-invocation search settings loadable from a YAML file,
// so teams can share a tuned profile instead of repeating flags.
type searchDefaults struct {
	AudioWeight  *float64 `yaml:"audio_weight"`
	VisualWeight *float64 `yaml:"visual_weight"`
	Limit        *int     `yaml:"limit"`
	RecordingIDs []string `yaml:"recording_ids"`
}

// loadSearchDefaults loads a search profile from a YAML file
func loadSearchDefaults(filePath string) (*searchDefaults, error) {
	if filePath == "" {
		return nil, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read search profile", goerr.V("file", filePath))
	}

	var defaults searchDefaults
	if err := yaml.Unmarshal(content, &defaults); err != nil {
		return nil, goerr.Wrap(err, "failed to parse search profile", goerr.V("file", filePath))
	}

	return &defaults, nil
}

// apply overlays the profile onto search options
func (d *searchDefaults) apply(opts *search.Options) {
	if d == nil {
		return
	}
	if d.AudioWeight != nil {
		opts.AudioWeight = *d.AudioWeight
	}
	if d.VisualWeight != nil {
		opts.VisualWeight = *d.VisualWeight
	}
	if d.Limit != nil {
		opts.Limit = *d.Limit
	}
	if len(d.RecordingIDs) > 0 {
		opts.RecordingIDs = d.RecordingIDs
	}
}
