package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shipchat/shipchat/internal/api"
	"github.com/shipchat/shipchat/internal/auth"
	"github.com/shipchat/shipchat/internal/chat"
	"github.com/shipchat/shipchat/internal/config"
	"github.com/shipchat/shipchat/internal/dataset"
	"github.com/shipchat/shipchat/internal/engine"
	"github.com/shipchat/shipchat/internal/llm"
	"github.com/shipchat/shipchat/internal/observability"
	"github.com/shipchat/shipchat/internal/prompt"
	"github.com/shipchat/shipchat/internal/storage"
	s3store "github.com/shipchat/shipchat/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("shipchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	if cfg.ObjectStore.Enabled {
		store, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			Bucket:          cfg.ObjectStore.Bucket,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
			Prefix:          cfg.ObjectStore.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		destPath := filepath.Join(cfg.Data.Dir, cfg.Data.MasterFile)
		info, err := storage.SyncFile(context.Background(), store, cfg.ObjectStore.ObjectKey, destPath)
		if err != nil {
			logger.Error("failed to sync master dataset", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("master dataset synced",
			slog.String("key", cfg.ObjectStore.ObjectKey),
			slog.Int64("size_bytes", info.Size),
		)
	}

	template, err := prompt.Load(cfg.Data.PromptPath)
	if err != nil {
		logger.Error("failed to load prompt template", slog.Any("error", err))
		os.Exit(1)
	}

	completions, err := llm.NewGroqClient(llm.GroqConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	turns := &chat.Service{
		Logger:      logger,
		Completions: completions,
		Auth:        dataset.NewLoader(cfg.Data),
		Executor:    engine.NewDuckDB(cfg.Data.TableToken),
		Template:    template,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Registry:          chat.NewRegistry(),
		Turns:             turns,
		DefaultModel:      cfg.AI.Model,
		MaxReflections:    cfg.Chat.MaxReflections,
		SummaryContext:    cfg.Chat.SummaryContext,
		Readiness:         api.CheckMasterDataset(cfg),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
