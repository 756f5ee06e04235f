package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"scaffoldgen/app/config"
	"scaffoldgen/app/usecase"
	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/llm"
)

type globalOptions struct {
	logLevel    string
	stackFile   string
	catalogFile string
}

func loadConfig(opts *globalOptions) *config.Config {
	cfg := &config.Config{
		Server: config.HTTPServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			MetricsAddr:  getEnv("METRICS_ADDR", ":2112"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 2*time.Minute),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
		},
		LLM: config.LLMConfig{
			Provider:   getEnv("LLM_PROVIDER", "chat"),
			APIKey:     getEnv("LLM_API_KEY", ""),
			BaseURL:    getEnv("LLM_BASE_URL", "https://kong-proxy.yc.amvera.ru/api/v1/models/gpt"),
			Model:      getEnv("LLM_MODEL", "gpt-5"),
			AuthHeader: getEnv("LLM_AUTH_HEADER", "X-Auth-Token"),
			Timeout:    getEnvDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		Retry: config.RetryConfig{
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", 3),
			BaseDelay:  getEnvDuration("LLM_BASE_DELAY", time.Second),
		},
		Mongo: config.MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "scaffoldgen"),
		},
		SQLite: config.SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "./scaffoldgen.db"),
		},
		FileRepo: config.FileRepoConfig{
			OutputDir: getEnv("OUTPUT_DIR", "./generated"),
		},
		NATS: config.NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "scaffoldgen.progress"),
		},
		Worker: config.WorkerConfig{
			PollInterval:     getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			RunTimeout:       getEnvDuration("RUN_TIMEOUT", 30*time.Minute),
			FailOnValidation: getEnvBool("FAIL_ON_VALIDATION", false),
		},
		StackFile:   getEnv("STACK_FILE", ""),
		CatalogFile: getEnv("CATALOG_FILE", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if opts != nil {
		if opts.logLevel != "" {
			cfg.LogLevel = opts.logLevel
		}
		if opts.stackFile != "" {
			cfg.StackFile = opts.stackFile
		}
		if opts.catalogFile != "" {
			cfg.CatalogFile = opts.catalogFile
		}
	}
	return cfg
}

// newLogger writes JSON for the server and text for interactive commands.
func newLogger(w io.Writer, level string, jsonFormat bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// orchestratorConfig assembles the per-run template from the stack file
// and the feature catalog.
func orchestratorConfig(cfg *config.Config) (usecase.OrchestratorConfig, error) {
	stack, err := config.LoadStack(cfg.StackFile)
	if err != nil {
		return usecase.OrchestratorConfig{}, err
	}
	catalog, err := config.LoadFeatureCatalog(cfg.CatalogFile)
	if err != nil {
		return usecase.OrchestratorConfig{}, err
	}
	return usecase.OrchestratorConfig{
		Stack:        stack.Stack,
		Templates:    stack.Templates,
		TokenBudgets: stack.TokenBudgets,
		Catalog:      catalog,
		Retry: llm.RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
		},
		ModelLabel:       cfg.LLM.Model,
		FailOnValidation: cfg.Worker.FailOnValidation || stack.FailOnValidation,
	}, nil
}

// newCallFunc picks the model transport. A missing API key yields a nil
// CallFunc so that runs fail with a not-configured error.
func newCallFunc(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.CallFunc, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM_API_KEY is not set; generation will fail", "err", entity.ErrNotConfigured)
		return nil, nil
	}
	var t repository.Transport
	switch strings.ToLower(cfg.LLM.Provider) {
	case "gemini":
		gt, err := llm.NewGeminiTransport(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		t = gt
	case "chat", "":
		t = llm.NewChatTransport(llm.ChatConfig{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.Model,
			AuthHeader: cfg.LLM.AuthHeader,
			Timeout:    cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
	logger.Info("model transport configured", "provider", cfg.LLM.Provider, "model", t.Name())
	return repository.AsCallFunc(t), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
