// ABOUTME: Standalone HTTP server entry point, equivalent to "askdocs serve"
// ABOUTME: Reads .env and environment config, then serves until SIGINT/SIGTERM
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harper/askdocs/internal/app"
	"github.com/harper/askdocs/internal/config"
	"github.com/harper/askdocs/internal/logging"
	"github.com/harper/askdocs/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	if err := run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return server.New(a.Service, logger).Run(ctx, fmt.Sprintf(":%d", cfg.Port))
}
