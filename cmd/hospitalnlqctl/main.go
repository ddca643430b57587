package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hospitalnlq/hospitalnlq/internal/cli/nlqctl"
)

func main() {
	_ = godotenv.Load()

	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("HOSPITALNLQ_CLI_TIMEOUT")), 60*time.Second)
	options := nlqctl.Options{
		BaseURL: envOr("HOSPITALNLQ_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("HOSPITALNLQ_MODEL_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := nlqctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid HOSPITALNLQ_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
