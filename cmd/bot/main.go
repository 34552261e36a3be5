package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/assistant"
	"github.com/xaenox/teams-assistant-bot/internal/bot"
	"github.com/xaenox/teams-assistant-bot/internal/connector"
	"github.com/xaenox/teams-assistant-bot/internal/gate"
	"github.com/xaenox/teams-assistant-bot/internal/storage"
	"github.com/xaenox/teams-assistant-bot/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize logger
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	// Initialize thread storage
	var store storage.ThreadStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory thread storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL thread storage")
		store, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize assistant relay
	relay := assistant.New(
		openai.NewClient(cfg.OpenAI.APIKey),
		cfg.OpenAI.AssistantID,
		store,
		cfg.OpenAI.PollInterval,
		cfg.OpenAI.MaxWait,
		logger,
	)

	// Initialize bot
	b := bot.New(
		relay,
		gate.New(cfg.Bot.TenantAllowList, logger),
		connector.New(cfg.Bot.AppID, cfg.Bot.AppPassword, logger),
		cfg.Bot.AppID,
		logger,
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := bot.NewServer(addr, cfg.Bot.AppPassword, b, logger)

	go func() {
		logger.Info("Starting bot", zap.String("addr", addr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = atomicLevel
	return zcfg.Build()
}
