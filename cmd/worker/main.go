// Package main is the entry point for the TutorMesh progress worker.
//
// The worker owns the progress-tracking pipeline:
// - Consuming learning events from the broker
// - Scoring mastery and persisting records
// - Aggregating per-student snapshots
// - Serving the health endpoint for the agent mesh
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutormesh/tutormesh/config"
	"github.com/tutormesh/tutormesh/internal/application/command"
	"github.com/tutormesh/tutormesh/internal/application/eventhandler"
	"github.com/tutormesh/tutormesh/internal/domain/progress"
	"github.com/tutormesh/tutormesh/internal/domain/shared"
	"github.com/tutormesh/tutormesh/internal/infrastructure/broker"
	"github.com/tutormesh/tutormesh/internal/infrastructure/messaging"
	"github.com/tutormesh/tutormesh/internal/infrastructure/persistence/memory"
	"github.com/tutormesh/tutormesh/internal/infrastructure/persistence/postgres"
	"github.com/tutormesh/tutormesh/internal/infrastructure/persistence/redis"
	httpx "github.com/tutormesh/tutormesh/internal/interface/http"
	"github.com/tutormesh/tutormesh/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting TutorMesh progress worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"state_backend", cfg.State.BackendEnabled,
		"events_enabled", cfg.Events.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STATE STORE (Redis-backed or local in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var store progress.StateStore

	if cfg.State.BackendEnabled {
		log.Info("connecting to state backend...", "host", cfg.State.Host, "port", cfg.State.Port)
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.State.Host
		redisCfg.Port = cfg.State.Port
		redisCfg.Password = cfg.State.Password
		redisCfg.DB = cfg.State.DB
		redisCfg.PoolSize = cfg.State.PoolSize
		redisCfg.MinIdleConns = cfg.State.MinIdleConns
		redisCfg.DialTimeout = cfg.State.DialTimeout
		redisCfg.ReadTimeout = cfg.State.ReadTimeout
		redisCfg.WriteTimeout = cfg.State.WriteTimeout

		client, err := redis.NewClient(redisCfg)
		if err != nil {
			if cfg.IsProduction() {
				return fmt.Errorf("failed to connect to state backend: %w", err)
			}
			log.Warn("state backend unreachable, falling back to local state", "error", err)
			store = memory.NewMasteryStore()
		} else {
			defer func() {
				log.Info("closing state backend connection...")
				_ = client.Close()
			}()
			store = redis.NewMasteryStore(client, redis.WithOpTimeout(cfg.State.OpTimeout))
			log.Info("state backend connection established")
		}
	} else {
		log.Info("state backend disabled, using local state (not restart-safe)")
		store = memory.NewMasteryStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MASTERY HISTORY (PostgreSQL or in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var history progress.HistoryStore

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		pgCfg := postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
			QueryTimeout:    cfg.Database.QueryTimeout,
		}
		conn, err := postgres.Connect(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			conn.Close()
		}()

		log.Info("checking database migrations...")
		if err := conn.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")

		history = postgres.NewHistoryRepository(conn)
	} else {
		log.Info("DATABASE_URL not set, using in-memory mastery history")
		history = memory.NewHistoryStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS + SNAPSHOT AGGREGATION
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	if cfg.Features.IsEnabled(config.FeatureSnapshotAggregation, nil) {
		snapshotHandler := eventhandler.NewOnMasteryUpdatedHandler(
			store,
			eventhandler.DefaultSnapshotConfig(),
			log,
		)
		if err := eventBus.Subscribe(shared.EventMasteryUpdated, snapshotHandler.HandlerFunc()); err != nil {
			return fmt.Errorf("failed to subscribe snapshot handler: %w", err)
		}
	} else {
		log.Info("snapshot aggregation disabled by feature flag")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. PROCESSING PIPELINE
	// ─────────────────────────────────────────────────────────────────────────
	scorer := progress.NewScorer(progress.DefaultScorerConfig())
	processor := command.NewProcessLearningEvent(store, history, scorer, eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT CONSUMER
	// ─────────────────────────────────────────────────────────────────────────
	var deadLetters broker.DeadLetterSink
	if cfg.Events.Enabled && cfg.Events.DeadLetterEnabled &&
		cfg.Features.IsEnabled(config.FeaturePipelineDeadLetter, nil) {
		producer := broker.NewDeadLetterProducer(cfg.Events.Brokers, cfg.Events.Topic, log)
		defer func() {
			_ = producer.Close()
		}()
		deadLetters = producer
	}

	consumerCfg := broker.DefaultConfig()
	consumerCfg.Enabled = cfg.Events.Enabled
	consumerCfg.Brokers = cfg.Events.Brokers
	consumerCfg.Topic = cfg.Events.Topic
	consumerCfg.GroupID = cfg.Events.GroupID
	consumerCfg.Workers = cfg.Events.Workers
	consumerCfg.ProcessTimeout = cfg.Events.ProcessTimeout
	consumerCfg.ConnectAttempts = cfg.Events.ConnectAttempts

	consumer := broker.NewConsumer(consumerCfg, processor, deadLetters, log)

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()

	if consumer.Enabled() {
		log.Info("event consumer starting",
			"topic", consumer.Topic(),
			"group", cfg.Events.GroupID,
			"workers", cfg.Events.Workers,
		)
	} else {
		log.Info("event consumer disabled, running in no-op mode")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER (health surface)
	// ─────────────────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.LivenessHandler(consumer.Enabled, consumer.Topic()))

	if cfg.Features.IsEnabled(config.FeatureExperimentalAgentProbes, nil) {
		checker := handlers.NewAgentHealthChecker(cfg.HTTP.Agents, cfg.HTTP.ProbeTimeout)
		mux.HandleFunc("/health/agents", handlers.AgentHealthHandler(checker))
	}

	httpCfg := httpx.DefaultConfig()
	httpCfg.Addr = cfg.HTTP.Addr
	server := httpx.NewServer(httpCfg, mux, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.Info("health server listening", "addr", cfg.HTTP.Addr)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-consumerErr:
		if err != nil {
			log.Error("event consumer failed", "error", err)
		}
		// Disabled-mode Start returns nil immediately; keep serving the
		// health surface until a signal arrives.
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	// Stop fetching first so in-flight events drain before stores close.
	if err := consumer.Close(); err != nil {
		log.Warn("consumer close", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
