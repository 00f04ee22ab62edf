package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"telemetry-chatbot/internal/cache"
	"telemetry-chatbot/internal/config"
	"telemetry-chatbot/internal/llm"
	"telemetry-chatbot/internal/pipeline"
	"telemetry-chatbot/internal/sandbox"
	"telemetry-chatbot/internal/telemetry"
	"telemetry-chatbot/pkg/logging/logging"
)

// app is the wired pipeline shared by serve and ask.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *pipeline.Service

	closers []func() error
}

func buildApp(ctx context.Context) (*app, error) {
	// ----- Config -----
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	// ----- Logger -----
	logger, err := logging.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logging.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("cache_version", cfg.Cache.VersionID),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("vehicle_api_url", cfg.Telemetry.BaseURL),
		zap.Duration("script_timeout", cfg.Sandbox.Timeout),
		zap.Bool("debug_analysis", cfg.DebugAnalysis),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.Cache.Backend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
		})
		a.closers = append(a.closers, redisClient.Close)
	}

	// ----- Script cache (fails fast if Redis is unreachable) -----
	store, err := cache.NewStore(ctx, cache.Config{
		Backend:    cfg.Cache.Backend,
		MaxEntries: cfg.Cache.MaxEntries,
		Prefix:     cfg.Cache.Prefix,
	}, redisClient)
	if err != nil {
		logger.Error("script cache init failed", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		a.Close()
		return nil, err
	}
	if redisClient != nil {
		logger.Info("redis connection established", zap.String("addr", cfg.Cache.RedisAddr))
	}
	scripts := cache.NewScriptCache(store, cfg.Cache.TTL, cfg.Cache.VersionID)

	// ----- Completion client -----
	if cfg.LLM.APIKey == "" {
		logger.Warn("gemini_api_key is not set; completions will fail")
	}
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		UpstreamTimeout: cfg.LLM.Timeout,
		MaxRetries:      cfg.LLM.MaxRetries,
		BaseBackoff:     cfg.LLM.BaseBackoff,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	// ----- Telemetry + sandbox -----
	tele, err := telemetry.NewClient(telemetry.Config{
		BaseURL:   cfg.Telemetry.BaseURL,
		Token:     cfg.Telemetry.Token,
		VehicleID: cfg.Telemetry.VehicleID,
		TripID:    cfg.Telemetry.TripID,
		Timeout:   cfg.Telemetry.Timeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	executor := sandbox.New(tele, logger, sandbox.WithTimeout(cfg.Sandbox.Timeout))

	a.service = pipeline.NewService(pipeline.Config{DebugAnalysis: cfg.DebugAnalysis}, scripts, llmClient, executor)
	return a, nil
}

// Close releases clients in reverse order and flushes the logger.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
