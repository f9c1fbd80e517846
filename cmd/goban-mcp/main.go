package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmmcquay/goban-mcp/internal/cache"
	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/health"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	mcptools "github.com/dmmcquay/goban-mcp/internal/mcp"
	"github.com/dmmcquay/goban-mcp/internal/metrics"
	"github.com/dmmcquay/goban-mcp/internal/ratelimit"
	httpserver "github.com/dmmcquay/goban-mcp/internal/server"
	"github.com/dmmcquay/goban-mcp/internal/session"
	"github.com/dmmcquay/goban-mcp/internal/shutdown"
)

var (
	// Version information injected at build time.
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&configPath, "config", "", "Path to a JSON config file")
	flag.Parse()

	if showVersion {
		fmt.Printf("goban-mcp version %s\n", config.DefaultVersion)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.Server.Name,
		Version: cfg.Server.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting Goban MCP Server",
		"version", cfg.Server.Version,
		"commit", GitCommit,
		"built", BuildTime,
		"config", configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.ZapLogger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), health.CheckTimeout)
	err := health.EngineSelfTest(startupCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("engine self-test failed: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewPrometheusCollector(reg)

	decisions := cache.NewManager(&cfg.Cache, logger)
	sessions := session.NewManager(session.Options{
		MaxSessions:  cfg.Engine.MaxSessions,
		StaleRetries: cfg.AI.StaleRetries,
		Logger:       logger,
		Cache:        decisions,
		Metrics:      collector,
	})
	limiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)

	checker := health.NewChecker(logger, cfg.Server.Version, GitCommit)
	checker.RegisterCheck("engine", func(ctx context.Context) error {
		err := health.EngineSelfTest(ctx)
		collector.RecordEngineHealthCheck(err == nil)
		return err
	})
	checker.RegisterCheck("sessions", health.SessionCapacity(sessions.Len, sessions.MaxSessions()))

	// Components stop in reverse order of registration.
	stopper := shutdown.NewManager(logger)
	stopper.Register("logger", func(context.Context) error {
		_ = logger.Sync()
		return nil
	})
	stopper.Register("sessions", func(context.Context) error {
		logger.Info("Closed open games", "count", sessions.CloseAll())
		return nil
	})
	stopper.Register("rate-limiter", func(context.Context) error {
		limiter.Close()
		return nil
	})

	if cfg.Server.HTTPEnabled {
		httpServer := httpserver.NewHTTPServer(httpserver.Options{
			Addr:     cfg.Server.HTTPAddress,
			Logger:   logger,
			Checker:  checker,
			Metrics:  collector,
			Sessions: sessions,
			Cache:    decisions,
		})
		if err := httpServer.Start(); err != nil {
			return err
		}
		stopper.Register("http", httpServer.Stop)
	}

	stopSignals := stopper.HandleSignals(cfg.Server.ShutdownTimeout)
	defer stopSignals()

	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithLogging(),
	)

	tools := mcptools.NewToolsHandler(sessions, cfg, logger)
	tools.SetMiddleware(mcptools.NewMiddleware(logger, collector, limiter))
	tools.SetHealth(checker, limiter)
	tools.RegisterTools(mcpServer)

	logger.Info("Goban MCP Server ready",
		"maxSessions", sessions.MaxSessions(),
		"strategy", cfg.AI.Strategy,
		"http", cfg.Server.HTTPEnabled,
	)

	done := make(chan error, 1)
	go func() {
		done <- server.ServeStdio(mcpServer)
	}()

	var serveErr error
	select {
	case serveErr = <-done:
		if serveErr != nil {
			logger.Error("MCP transport error", "error", serveErr)
		} else {
			logger.Info("MCP transport closed")
		}
	case <-stopper.Done():
		return nil
	}

	if err := stopper.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("Shutdown incomplete", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("failed to serve stdio: %w", serveErr)
	}
	return nil
}
