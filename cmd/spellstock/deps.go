package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
	"github.com/ersonp/spellstock-core/internal/domain/ports"
	"github.com/ersonp/spellstock-core/internal/domain/services"
	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
	embedder "github.com/ersonp/spellstock-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/spellstock-core/internal/infrastructure/executor/rest"
	"github.com/ersonp/spellstock-core/internal/infrastructure/executor/simulated"
	"github.com/ersonp/spellstock-core/internal/infrastructure/history"
	llm "github.com/ersonp/spellstock-core/internal/infrastructure/llm/openai"
	"github.com/ersonp/spellstock-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/spellstock-core/internal/infrastructure/store/memory"
	"github.com/ersonp/spellstock-core/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config           *config.Config
	Logger           *slog.Logger
	RestaurantName   string
	RestaurantID     int // scopes rules and alert searches, zero means any
	IngestHandler    *handlers.IngestHandler
	QueryHandler     *handlers.QueryHandler
	ActionsHandler   *handlers.ActionsHandler
	AlertsHandler    *handlers.AlertsHandler
	AutopilotHandler *handlers.AutopilotHandler
	// AgentHandler is nil when no LLM key is configured.
	AgentHandler *handlers.AgentHandler
}

// newLogger returns the stderr logger for the --verbose setting.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if globalVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	restaurants, err := config.LoadRestaurants(cwd)
	if err != nil {
		return fmt.Errorf("loading restaurants: %w", err)
	}

	logger := newLogger()
	opts := []services.Option{services.WithLogger(logger)}

	var (
		store      ports.Store
		restaurant *config.RestaurantEntry
	)
	switch {
	case globalRestaurant != "":
		restaurant, err = restaurants.Get(globalRestaurant)
		if err != nil {
			return err
		}
	case !globalEphemeral:
		return errors.New("restaurant is required (use --restaurant flag, or --ephemeral)")
	}

	if globalEphemeral {
		store = memory.New()
	} else {
		repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: config.SQLitePathForRestaurant(cwd, globalRestaurant)})
		if err != nil {
			return fmt.Errorf("creating sqlite repository: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return fmt.Errorf("ensuring sqlite schema: %w", err)
		}
		store = repo
	}
	defer store.Close()

	executor, err := newExecutor(cfg.Executor)
	if err != nil {
		return err
	}
	historyProvider, err := newHistoryProvider(cfg.History)
	if err != nil {
		return err
	}

	indexer, closeIndex, err := newAlertIndexer(cfg, restaurant)
	if err != nil {
		return err
	}
	defer closeIndex()

	rules := services.RuleConfig{
		MinConfidence:      cfg.Rules.MinConfidence,
		MaxDaysOut:         cfg.Rules.MaxDaysOut,
		IgnoredIngredients: cfg.Rules.IgnoredIngredients,
		RestaurantID:       cfg.Rules.RestaurantID,
	}
	if rules.RestaurantID == 0 && restaurant != nil {
		rules.RestaurantID = restaurant.ID
	}

	mode, err := services.ParseMode(cfg.Autopilot.Mode)
	if err != nil {
		return err
	}

	lifecycle := services.NewLifecycleManager(store, store, executor, opts...)
	queryService := services.NewQueryService(store)
	gate := services.NewEligibilityGate(store, historyProvider, cfg.Dedup.Window, opts...)
	proposer := services.NewProposalGenerator(lifecycle)
	pipeline := services.NewPipeline(rules, gate, proposer, indexer, opts...)
	autopilot := services.NewAutopilot(store, lifecycle, opts...)

	deps := &Deps{
		Config:           cfg,
		Logger:           logger,
		RestaurantName:   globalRestaurant,
		RestaurantID:     rules.RestaurantID,
		IngestHandler:    handlers.NewIngestHandler(pipeline),
		QueryHandler:     handlers.NewQueryHandler(queryService, lifecycle),
		ActionsHandler:   handlers.NewActionsHandler(queryService, lifecycle),
		AlertsHandler:    handlers.NewAlertsHandler(store, indexer, cfg.Dedup.Window),
		AutopilotHandler: handlers.NewAutopilotHandler(autopilot, mode),
	}

	if cfg.LLM.APIKey != "" {
		translator, err := llm.NewTranslator(cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating llm client: %w", err)
		}
		dispatcher := services.NewCommandDispatcher(queryService, lifecycle, proposer, store, gate, opts...)
		deps.AgentHandler = handlers.NewAgentHandler(translator, dispatcher)
	}

	return fn(deps)
}

func newExecutor(cfg config.ExecutorConfig) (ports.Executor, error) {
	if cfg.BaseURL == "" {
		return simulated.New(), nil
	}
	client, err := rest.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating executor client: %w", err)
	}
	return client, nil
}

func newHistoryProvider(cfg config.HistoryConfig) (ports.HistoryProvider, error) {
	if cfg.BaseURL == "" {
		return history.None{}, nil
	}
	client, err := history.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating history client: %w", err)
	}
	return client, nil
}

// newAlertIndexer connects the alert index when Qdrant is configured and a
// restaurant collection is known. It returns a nil indexer otherwise.
func newAlertIndexer(cfg *config.Config, restaurant *config.RestaurantEntry) (*services.AlertIndexer, func(), error) {
	noop := func() {}
	if cfg.Qdrant.Host == "" || restaurant == nil {
		return nil, noop, nil
	}

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, noop, fmt.Errorf("creating embedder: %w", err)
	}

	qdrantCfg := cfg.Qdrant
	qdrantCfg.Collection = restaurant.Collection
	repo, err := qdrant.NewRepository(qdrantCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("creating qdrant repository: %w", err)
	}

	return services.NewAlertIndexer(emb, repo), func() { repo.Close() }, nil
}
