package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/agent"
	"github.com/felipepmaragno/chat-relay/internal/api"
	"github.com/felipepmaragno/chat-relay/internal/budget"
	"github.com/felipepmaragno/chat-relay/internal/config"
	"github.com/felipepmaragno/chat-relay/internal/cost"
	"github.com/felipepmaragno/chat-relay/internal/provider"
	"github.com/felipepmaragno/chat-relay/internal/provider/anthropic"
	"github.com/felipepmaragno/chat-relay/internal/provider/bedrock"
	"github.com/felipepmaragno/chat-relay/internal/secrets"
	"github.com/felipepmaragno/chat-relay/internal/telemetry"
	"github.com/felipepmaragno/chat-relay/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting chat relay", "addr", cfg.Addr, "provider", cfg.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, "chat-relay", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(ctx)

	llm, err := buildProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to configure provider", "error", err)
		os.Exit(1)
	}

	var tracker cost.Tracker
	var checkers []api.HealthChecker
	if cfg.RedisURL != "" {
		redisTracker, err := cost.NewRedisTracker(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisTracker.Close()
		tracker = redisTracker
		slog.Info("using redis usage tracker")

		redisCheck, err := api.NewRedisHealthChecker(cfg.RedisURL)
		if err == nil {
			checkers = append(checkers, redisCheck)
		}
	} else {
		tracker = cost.NewInMemoryTracker()
		slog.Info("using in-memory usage tracker")
	}

	var spendMonitor *budget.Monitor
	if cfg.SpendBudgetUSD > 0 {
		spendMonitor = budget.NewMonitor(tracker, cfg.SpendBudgetUSD, budget.DefaultThresholds())
		spendMonitor.OnAlert(budget.LogAlertHandler)
		slog.Info("spend budget monitoring enabled", "budget_usd", cfg.SpendBudgetUSD)
	}

	toolRegistry, err := tools.NewRegistry()
	if err != nil {
		slog.Error("failed to build tool registry", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.HandlerConfig{
		Agents:            agent.NewRegistry(),
		Provider:          llm,
		Estimator:         cost.NewEstimator(),
		Tracker:           tracker,
		Tools:             toolRegistry,
		Budget:            spendMonitor,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	handler.SetHealthCheckers(checkers...)

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: streams stay open as long as the model talks.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func buildProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "bedrock":
		return bedrock.New(ctx, cfg.AWSRegion)
	default:
		apiKey := cfg.AnthropicAPIKey
		if cfg.AnthropicAPIKeySecret != "" {
			store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
			if err != nil {
				return nil, err
			}
			apiKey, err = store.GetSecret(ctx, cfg.AnthropicAPIKeySecret)
			if err != nil {
				return nil, err
			}
			slog.Info("loaded API key from secrets manager", "secret", cfg.AnthropicAPIKeySecret)
		}
		return anthropic.New(apiKey, cfg.AnthropicBaseURL), nil
	}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
