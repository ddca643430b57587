package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hospitalnlq/hospitalnlq/internal/api"
	"github.com/hospitalnlq/hospitalnlq/internal/api/uistatic"
	"github.com/hospitalnlq/hospitalnlq/internal/config"
	"github.com/hospitalnlq/hospitalnlq/internal/export"
	"github.com/hospitalnlq/hospitalnlq/internal/nl2sql"
	"github.com/hospitalnlq/hospitalnlq/internal/observability"
	"github.com/hospitalnlq/hospitalnlq/internal/pipeline"
	s3store "github.com/hospitalnlq/hospitalnlq/internal/storage/s3"
	"github.com/hospitalnlq/hospitalnlq/internal/warehouse"
	"github.com/hospitalnlq/hospitalnlq/internal/warehouse/duckdb"
	"github.com/hospitalnlq/hospitalnlq/internal/warehouse/postgres"
	"github.com/hospitalnlq/hospitalnlq/internal/warehouse/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("hospitalnlq-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	handle, err := openWarehouse(context.Background(), cfg.Warehouse)
	if err != nil {
		logger.Error("failed to open warehouse", slog.String("driver", cfg.Warehouse.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	translator, err := newTranslator(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger: logger,
		Runner: &pipeline.Runner{
			Warehouse:    pipeline.FromHandle(handle),
			Translator:   translator,
			Logger:       logger,
			QueryTimeout: cfg.Warehouse.QueryTimeout,
		},
		UI:                uistatic.Handler(),
		DependencyTimeout: 2 * time.Second,
	}

	var store *s3store.Store
	if cfg.Export.Enabled {
		store, err = s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Export.Endpoint,
			Region:           cfg.Export.Region,
			Bucket:           cfg.Export.Bucket,
			AccessKeyID:      cfg.Export.AccessKeyID,
			SecretAccessKey:  cfg.Export.SecretAccessKey,
			UseSSL:           cfg.Export.UseSSL,
			Prefix:           cfg.Export.Prefix,
			AutoCreateBucket: cfg.Export.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize export store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exporter = export.NewExporter(store, cfg.Export.LinkTTL)
		deps.Readiness = api.CombineReadinessChecks(api.CheckWarehouse(handle), api.CheckObjectStore(store))
	} else {
		deps.Readiness = api.CombineReadinessChecks(api.CheckWarehouse(handle))
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("warehouse", handle.Name()),
			slog.String("driver", handle.Driver()),
			slog.String("provider", translator.Provider()),
			slog.String("model", translator.Model()),
			slog.Bool("export_archive", cfg.Export.Enabled),
		)
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

func openWarehouse(ctx context.Context, cfg config.WarehouseConfig) (*warehouse.Handle, error) {
	whCfg := warehouse.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		SampleRows:      cfg.SampleRows,
		MaxRows:         cfg.MaxRows,
	}
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, whCfg)
	case "duckdb":
		return duckdb.Open(ctx, whCfg)
	case "postgres":
		return postgres.Open(ctx, whCfg)
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}

func newTranslator(cfg config.AIConfig) (nl2sql.Translator, error) {
	switch cfg.Provider {
	case "anthropic":
		return nl2sql.NewAnthropicTranslator(nl2sql.AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	default:
		translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return translator, nil
	}
}
