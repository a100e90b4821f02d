// Package main provides the wayfarer binary entry point.
// Wayfarer is a travel planning service that turns natural-language trip
// requests into verified day-by-day itineraries through a plan, execute,
// verify, repair loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/wayfarerhq/wayfarer/llm/providers"

	"github.com/wayfarerhq/wayfarer/config"
	"github.com/wayfarerhq/wayfarer/engine"
	"github.com/wayfarerhq/wayfarer/events"
	"github.com/wayfarerhq/wayfarer/httpapi"
	"github.com/wayfarerhq/wayfarer/llm"
	"github.com/wayfarerhq/wayfarer/metrics"
	"github.com/wayfarerhq/wayfarer/reasoner"
	"github.com/wayfarerhq/wayfarer/scheduler"
	"github.com/wayfarerhq/wayfarer/store"
	"github.com/wayfarerhq/wayfarer/tools"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "wayfarer"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "wayfarer",
		Short: "Travel planning orchestrator",
		Long: `Wayfarer turns natural-language trip requests into verified
day-by-day itineraries.

Each request runs through a planning loop: constraints are extracted,
a tool plan is scheduled over a dependency graph, results are fused
into an itinerary, and the itinerary is checked against the traveler's
constraints with automatic repair rounds until it passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, logLevel string) error {
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Persistence
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Optional NATS event bus; absence degrades to local-only operation
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			logger.Warn("NATS unavailable, run events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			defer nc.Close()
		}
	}
	publisher := events.NewPublisher(nc, logger)

	// LLM client and reasoner
	client := llm.NewClient(cfg.Registry(), llm.WithLogger(logger))
	reason := reasoner.New(client, reasoner.WithLogger(logger))

	// Metrics
	m := metrics.New()

	// Tools
	registry, fixturesDone, err := buildToolRegistry(cfg, client, logger)
	if err != nil {
		return err
	}
	defer close(fixturesDone)

	invoker := tools.NewInvoker(registry,
		tools.WithRateLimit(cfg.Tools.RatePerSecond, cfg.Tools.RateBurst),
		tools.WithObserver(m),
		tools.WithInvokerLogger(logger),
	)

	// Orchestration engine
	eng := engine.New(reason, invoker, registry.Catalog, st,
		[]scheduler.ExecutorOption{
			scheduler.WithMaxParallel(cfg.Engine.MaxParallel),
			scheduler.WithStepTimeout(cfg.Engine.StepTimeout),
		},
		engine.WithMaxTransitions(cfg.Engine.MaxTransitions),
		engine.WithEvents(publisher),
		engine.WithMetrics(m),
		engine.WithLogger(logger),
	)

	// HTTP API
	handler := httpapi.NewHandler(eng, st, m.Handler(), logger)
	server := httpapi.NewServer(cfg.Server.Addr, handler.Routes(), cfg.Server.ReadTimeout)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Wayfarer ready", "version", Version, "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down HTTP server", "error", err)
	}

	slog.Info("Wayfarer shutdown complete")
	return nil
}

// openStore builds the configured persistence backend.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// buildToolRegistry wires the reference tools: fixture-backed flights and
// hotels, live weather, the knowledge base, the decision agent, and the
// repair adjusters. Returns a channel that stops the fixture watcher when
// closed.
func buildToolRegistry(cfg *config.Config, client *llm.Client, logger *slog.Logger) (*tools.Registry, chan struct{}, error) {
	registry := tools.NewRegistry(cfg.Tools.Allowlist)
	done := make(chan struct{})

	fixtures, err := tools.NewFixtureStore(cfg.Tools.FixtureDir, logger)
	if err != nil {
		logger.Warn("Fixture data unavailable, flight and hotel search disabled",
			"dir", cfg.Tools.FixtureDir, "error", err)
	} else {
		if cfg.Tools.WatchFixtures {
			if err := fixtures.Watch(done); err != nil {
				logger.Warn("Fixture hot reload unavailable", "error", err)
			}
		}
		registry.Register(tools.NewFlightSearch(fixtures))
		registry.Register(tools.NewHotelSearch(fixtures))
	}

	registry.Register(tools.NewWeatherCheck(nil))

	kb := tools.NewKnowledgeBase(nil)
	for _, rawURL := range cfg.Tools.KnowledgeURLs {
		ingestCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := kb.Ingest(ingestCtx, rawURL); err != nil {
			logger.Warn("Knowledge base ingestion failed", "url", rawURL, "error", err)
		}
		cancel()
	}
	registry.Register(tools.NewKnowledgeSearch(kb))

	registry.Register(tools.NewTravelAgent(client))
	for _, t := range tools.NewRepairTools(client) {
		registry.Register(t)
	}

	specs := registry.Catalog()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	logger.Info("Tool registry ready", "tools", strings.Join(names, ", "))

	return registry, done, nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Wayfarer v" + Version + "                    ║")
	fmt.Println("║      Travel Planning Orchestrator             ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
