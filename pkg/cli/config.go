package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/adapter"
	"github.com/m-mizutani/huddle/pkg/agent"
	"github.com/m-mizutani/huddle/pkg/archive"
	"github.com/m-mizutani/huddle/pkg/conversation"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/repository"
	"github.com/m-mizutani/huddle/pkg/usecase/coordinator"
	"github.com/urfave/cli/v3"
)

const (
	providerGemini = "gemini"
	providerClaude = "claude"
	providerOpenAI = "openai"
)

// config holds configuration values
type config struct {
	// LLM
	provider        string
	model           string
	geminiProject   string
	geminiLocation  string
	geminiAPIKey    string
	anthropicAPIKey string
	openaiAPIKey    string
	openaiBaseURL   string

	// Data store
	dataDir           string
	bucket            string
	bucketPrefix      string
	firestoreProject  string
	firestoreDatabase string
	debounce          time.Duration

	// Archive
	sqlitePath      string
	bigqueryProject string
	bigqueryDataset string
	bigqueryTable   string

	// Agents and rounds
	agentsFile    string
	policyFile    string
	timeout       time.Duration
	pacing        time.Duration
	historyWindow int64
	maxDepth      int64
	retention     int64
}

// llmFlags returns flags for the text generation backend
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "LLM provider (gemini, claude, openai)",
			Value:       providerGemini,
			Sources:     cli.EnvVars("HUDDLE_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Model name, overriding the provider default",
			Sources:     cli.EnvVars("HUDDLE_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("HUDDLE_GEMINI_PROJECT", "GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("HUDDLE_GEMINI_LOCATION", "GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key, used instead of Vertex AI when set",
			Sources:     cli.EnvVars("HUDDLE_GEMINI_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("HUDDLE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI (or compatible service) API key",
			Sources:     cli.EnvVars("HUDDLE_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible API such as DeepSeek",
			Sources:     cli.EnvVars("HUDDLE_OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
	}
}

// storeFlags returns flags for the product and blog data store
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of shop-mock.json and blog-mock.json",
			Value:       "data",
			Sources:     cli.EnvVars("HUDDLE_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for data files, used instead of data-dir",
			Sources:     cli.EnvVars("HUDDLE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "bucket-prefix",
			Usage:       "Object prefix of data files in the bucket",
			Value:       "huddle",
			Sources:     cli.EnvVars("HUDDLE_BUCKET_PREFIX"),
			Destination: &cfg.bucketPrefix,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore, used instead of files",
			Sources:     cli.EnvVars("HUDDLE_FIRESTORE_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("HUDDLE_FIRESTORE_DATABASE", "FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.DurationFlag{
			Name:        "save-debounce",
			Usage:       "Delay before changes are written to the data store",
			Value:       repository.DefaultDebounce,
			Sources:     cli.EnvVars("HUDDLE_SAVE_DEBOUNCE"),
			Destination: &cfg.debounce,
		},
	}
}

// archiveFlags returns flags for conversation archive sinks
func archiveFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-sqlite",
			Usage:       "SQLite database file to archive conversation messages",
			Sources:     cli.EnvVars("HUDDLE_ARCHIVE_SQLITE"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "archive-bigquery-project",
			Usage:       "Google Cloud project ID of the BigQuery archive",
			Sources:     cli.EnvVars("HUDDLE_ARCHIVE_BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "archive-bigquery-dataset",
			Usage:       "BigQuery dataset ID of the archive",
			Sources:     cli.EnvVars("HUDDLE_ARCHIVE_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "archive-bigquery-table",
			Usage:       "BigQuery table ID of the archive",
			Value:       "messages",
			Sources:     cli.EnvVars("HUDDLE_ARCHIVE_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
	}
}

// agentFlags returns flags for the roster and the coordinator
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "agents",
			Usage:       "YAML file of agent definitions, replacing the built-in roster",
			Sources:     cli.EnvVars("HUDDLE_AGENTS"),
			Destination: &cfg.agentsFile,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Rego policy file deciding which actions agents may run",
			Sources:     cli.EnvVars("HUDDLE_POLICY"),
			Destination: &cfg.policyFile,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Deadline of each LLM call",
			Value:       agent.DefaultTimeout,
			Sources:     cli.EnvVars("HUDDLE_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.DurationFlag{
			Name:        "pacing",
			Usage:       "Delay between agent replies in a round",
			Value:       coordinator.DefaultPacing,
			Sources:     cli.EnvVars("HUDDLE_PACING"),
			Destination: &cfg.pacing,
		},
		&cli.IntFlag{
			Name:        "history-window",
			Usage:       "Number of recent messages given to agents",
			Value:       coordinator.DefaultHistoryWindow,
			Sources:     cli.EnvVars("HUDDLE_HISTORY_WINDOW"),
			Destination: &cfg.historyWindow,
		},
		&cli.IntFlag{
			Name:        "max-depth",
			Usage:       "Maximum chain of rounds started by agent messages (0 for unlimited)",
			Value:       coordinator.DefaultMaxDepth,
			Sources:     cli.EnvVars("HUDDLE_MAX_DEPTH"),
			Destination: &cfg.maxDepth,
		},
		&cli.IntFlag{
			Name:        "retention",
			Usage:       "Number of messages kept in the conversation",
			Value:       conversation.DefaultRetention,
			Sources:     cli.EnvVars("HUDDLE_RETENTION"),
			Destination: &cfg.retention,
		},
	}
}

// runtimeFlags returns every flag needed by newRuntime
func runtimeFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, llmFlags(cfg)...)
	flags = append(flags, storeFlags(cfg)...)
	flags = append(flags, archiveFlags(cfg)...)
	flags = append(flags, agentFlags(cfg)...)
	return flags
}

// newGenerator creates the text generation client of the selected provider
func (cfg *config) newGenerator(ctx context.Context) (adapter.TextGenerator, error) {
	switch cfg.provider {
	case providerGemini:
		var opts []adapter.GeminiOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithGenerativeModel(cfg.model))
		}
		if cfg.geminiAPIKey != "" {
			return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
		}
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project or gemini-api-key is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)

	case providerClaude:
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required")
		}
		var opts []adapter.ClaudeOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithClaudeModel(cfg.model))
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, opts...), nil

	case providerOpenAI:
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		var opts []adapter.OpenAIOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithOpenAIModel(cfg.model))
		}
		if cfg.openaiBaseURL != "" {
			opts = append(opts, adapter.WithBaseURL(cfg.openaiBaseURL))
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey, opts...), nil

	default:
		return nil, goerr.New("unknown provider", goerr.V("provider", cfg.provider))
	}
}

// newPersister selects where the data store is saved: Firestore, then Cloud Storage, then local
// files. The returned close function releases the backend client.
func (cfg *config) newPersister(ctx context.Context) (interfaces.Persister, func() error, error) {
	nop := func() error { return nil }

	switch {
	case cfg.firestoreProject != "":
		fs, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create firestore persister")
		}
		return fs, fs.Close, nil

	case cfg.bucket != "":
		storage, err := adapter.NewStorage(ctx, cfg.bucket)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create storage", goerr.V("bucket", cfg.bucket))
		}
		return repository.NewStoragePersister(storage, cfg.bucketPrefix), nop, nil

	case cfg.dataDir != "":
		return repository.NewFilePersister(cfg.dataDir), nop, nil

	default:
		return nil, nop, nil
	}
}

// newRepository creates the data store and loads persisted records. Without persisted data the
// store starts from the built-in catalog.
func (cfg *config) newRepository(ctx context.Context) (*repository.Memory, func() error, error) {
	persister, closer, err := cfg.newPersister(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []repository.Option{
		repository.WithSeed(repository.Seed()),
		repository.WithDebounce(cfg.debounce),
	}
	if persister != nil {
		opts = append(opts, repository.WithPersister(persister))
	}

	store := repository.NewMemory(opts...)
	store.Load(ctx)
	return store, closer, nil
}

// newSinks creates the configured archive sinks
func (cfg *config) newSinks(ctx context.Context) ([]archive.Sink, error) {
	var sinks []archive.Sink

	if cfg.sqlitePath != "" {
		db, err := archive.NewSQLite(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open sqlite archive")
		}
		sinks = append(sinks, db)
	}

	if cfg.bigqueryProject != "" || cfg.bigqueryDataset != "" {
		if cfg.bigqueryProject == "" || cfg.bigqueryDataset == "" {
			closeSinks(sinks)
			return nil, goerr.New("archive-bigquery-project and archive-bigquery-dataset are required together")
		}
		bq, err := archive.NewBigQuery(ctx, cfg.bigqueryProject, cfg.bigqueryDataset, cfg.bigqueryTable)
		if err != nil {
			closeSinks(sinks)
			return nil, goerr.Wrap(err, "failed to create bigquery archive")
		}
		sinks = append(sinks, bq)
	}

	return sinks, nil
}

func closeSinks(sinks []archive.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}

// newGuard loads the action policy. It returns nil when no policy is configured.
func (cfg *config) newGuard(ctx context.Context) (*action.Guard, error) {
	if cfg.policyFile == "" {
		return nil, nil
	}
	guard, err := action.LoadGuard(ctx, cfg.policyFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policy", goerr.V("path", cfg.policyFile))
	}
	return guard, nil
}

// newRoster returns agent definitions from the agents file or the built-in roster
func (cfg *config) newRoster() ([]model.AgentConfig, error) {
	if cfg.agentsFile == "" {
		return agent.DefaultRoster(), nil
	}
	roster, err := agent.LoadRoster(cfg.agentsFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load agents", goerr.V("path", cfg.agentsFile))
	}
	return roster, nil
}
