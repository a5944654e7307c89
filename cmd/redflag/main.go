// Red-Flag - Self-assessment risk scoring before HMRC does it for you.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/redflag/internal/api"
	"github.com/opensource-finance/redflag/internal/bus"
	"github.com/opensource-finance/redflag/internal/cache"
	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/report"
	"github.com/opensource-finance/redflag/internal/repository"
	"github.com/opensource-finance/redflag/internal/rules"
	"github.com/opensource-finance/redflag/internal/scoring"
	"github.com/opensource-finance/redflag/internal/stats"
	"github.com/opensource-finance/redflag/internal/velocity"
	"github.com/opensource-finance/redflag/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	printRules := flag.Bool("print-rules", false, "print the active ruleset as YAML and exit")
	flag.Parse()

	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg := domain.DefaultConfig()
	if os.Getenv("REDFLAG_TIER") == "pro" {
		cfg = domain.ProConfig()
	}
	applyEnv(cfg)

	setupLogger(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rs, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		slog.Error("failed to load ruleset", "path", cfg.Rules.Path, "error", err)
		os.Exit(1)
	}

	if *printRules {
		out, err := rules.Marshal(rs)
		if err != nil {
			slog.Error("failed to marshal ruleset", "error", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	slog.Info("starting redflag",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"rules_path", cfg.Rules.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Scoring engine, bound to one ruleset for the life of the process
	engine, err := scoring.NewEngine(rs)
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring engine initialized",
		"ruleset_version", engine.RulesetVersion(),
		"indicators", len(rs.Indicators),
		"industries", len(rs.Industries),
	)

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	reports := report.NewService(repo, busImpl)

	reportWorker := worker.NewWorker(busImpl, reports)
	if err := reportWorker.Start(); err != nil {
		slog.Error("failed to start report worker", "error", err)
		os.Exit(1)
	}

	limiter := velocity.NewLimiter(cacheImpl, "simulate", cfg.Simulation.MaxPerMinute, time.Minute)

	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:    repo,
		Cache:   cacheImpl,
		Bus:     busImpl,
		Engine:  engine,
		Reports: reports,
		Stats:   stats.NewService(repo),
		Limiter: limiter,
		Version: Version,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("redflag is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version, engine.RulesetVersion())

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop taking requests before the worker so purchases are not dropped
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := reportWorker.Stop(); err != nil {
		slog.Error("failed to stop report worker", "error", err)
	}

	slog.Info("redflag shutdown complete")
}

// applyEnv overrides cfg from REDFLAG_* environment variables.
func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("REDFLAG_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("REDFLAG_PORT"); v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REDFLAG_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("REDFLAG_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("REDFLAG_DB_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := envInt("REDFLAG_DB_PORT"); v > 0 {
		cfg.Repository.PostgresPort = v
	}
	if v := os.Getenv("REDFLAG_DB_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("REDFLAG_DB_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("REDFLAG_DB_NAME"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("REDFLAG_DB_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := os.Getenv("REDFLAG_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDFLAG_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("REDFLAG_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("REDFLAG_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	if v := os.Getenv("REDFLAG_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("REDFLAG_SIMULATION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Simulation.MaxPerMinute = n
		}
	}

	if v := os.Getenv("REDFLAG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REDFLAG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("REDFLAG_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
}

func envInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return n
}

func setupLogger(cfg domain.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printBanner(cfg *domain.Config, version, rulesetVersion string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                 RED-FLAG                  |")
	fmt.Println("  |     Self Assessment Risk Scoring          |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Ruleset:  %s\n", rulesetVersion)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assessments                - Score a return")
	fmt.Println("    GET  /assessments/{id}           - Free summary")
	fmt.Println("    POST /assessments/{id}/simulate  - What-if against the stored result")
	fmt.Println("    POST /assessments/{id}/report    - Mark paid and generate report")
	fmt.Println("    GET  /assessments/{id}/report    - Fetch paid report")
	fmt.Println("    POST /simulate                   - Stateless what-if")
	fmt.Println("    GET  /rules                      - Active ruleset")
	fmt.Println("    GET  /industries                 - Industry profiles")
	fmt.Println("    GET  /stats                      - Dashboard aggregates")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println()
}
