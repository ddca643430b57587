package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hospitalnlq/hospitalnlq/internal/config"
	"github.com/hospitalnlq/hospitalnlq/internal/demo/seed"
	"github.com/hospitalnlq/hospitalnlq/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("hospitalnlq-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("invalid seed config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := seed.Build(ctx, seedCfg, logger)
	if err != nil {
		logger.Error("seeding failed", slog.String("path", seedCfg.Path), slog.Any("error", err))
		os.Exit(1)
	}
	if summary.Skipped {
		logger.Info("warehouse already seeded", slog.String("path", summary.Path))
		return
	}
	logger.Info("warehouse seeded",
		slog.String("path", summary.Path),
		slog.Int("migrations", summary.Migrations),
		slog.Int("reverted", summary.Reverted),
		slog.Int("departments", summary.Departments),
		slog.Int("patients", summary.Patients),
		slog.Int("staff", summary.Staff),
		slog.Int("admissions", summary.Admissions),
		slog.Int("treatments", summary.Treatments),
		slog.Int64("seed", seedCfg.Seed),
	)
}
