package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cliffyan/go-source-finder/internal/config"
	"github.com/cliffyan/go-source-finder/internal/engine"
	"github.com/cliffyan/go-source-finder/internal/mcp"
	"github.com/cliffyan/go-source-finder/internal/server"
	"github.com/cliffyan/go-source-finder/internal/sources"
)

func main() {
	bootLogger, _ := zap.NewProduction()
	cfg := config.Load(bootLogger)
	_ = bootLogger.Sync()

	logger, err := newLogger(cfg.Log)
	if err != nil {
		bootLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("🔍 starting source finder")

	engines := engine.NewManager(cfg, logger.Named("engine"))
	defer engines.Close()

	provider, err := engines.Default()
	if err != nil {
		logger.Warn("⚠️ default search provider unavailable", zap.Error(err))
	} else if !provider.Configured() {
		logger.Warn("⚠️ search provider has no credentials; find requests will return 503",
			zap.String("provider", provider.Name()))
	}

	finder := sources.New(provider, sources.Options{
		AttemptTimeout: cfg.AttemptTimeout(),
		DefaultSize:    cfg.Search.DefaultSize,
		MaxSize:        cfg.Search.MaxSize,
	}, logger.Named("sources"))

	mcpHandler := mcp.NewHandler(cfg, finder, engines, logger.Named("mcp"))
	srv := server.New(cfg, finder, mcpHandler, engines.Names(), logger.Named("server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run returns only after in-flight requests have drained.
	if err := srv.Run(ctx, 10*time.Second); err != nil {
		logger.Error("❌ server failed", zap.Error(err))
		return
	}
	logger.Info("👋 server stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
