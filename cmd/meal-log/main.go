// cmd/meal-log/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"calorie-chat/internal/config"
	"calorie-chat/internal/extract"
	"calorie-chat/internal/logger"
	"calorie-chat/internal/sampling"
	"calorie-chat/internal/server"
	"calorie-chat/internal/storage"
)

var (
	port     = flag.Int("port", 0, "Port for HTTP transport (overrides MEAL_LOG_PORT)")
	host     = flag.String("host", "", "Host address (overrides MEAL_LOG_HOST)")
	address  = flag.String("address", "", "Address (alias for host)")
	dbPath   = flag.String("db-path", "", "SQLite database path (overrides MEAL_LOG_DB_PATH)")
	store    = flag.String("store", "", "Storage backend: sqlite or postgres")
	chatMode = flag.Bool("chat", false, "Run an interactive chat session instead of the HTTP server")
	userID   = flag.String("user", "local", "User ID for meals saved from the chat session")
	version  = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("calorie-chat version %s\n", server.Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode, logger.WithRedaction(cfg.LogRedaction, cfg.LogHashSalt))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	stor, err := storage.Open(cfg.Store)
	if err != nil {
		logg.Fatal("failed to initialize storage", "driver", cfg.Store.Driver, "error", err)
	}

	completer := sampling.NewClient(cfg.LLM, logg.With("component", "sampling"))
	extractor := extract.NewService(completer, cfg.MaxInputChars, logg.With("component", "extract"))

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *chatMode {
		defer stor.Close()
		shell := newChatShell(extractor, stor, *userID, os.Stdout)
		if err := shell.run(ctx, os.Stdin); err != nil {
			logg.Error("chat session ended with error", "error", err)
		}
		return
	}

	srv, err := server.NewMealLogServer(cfg, stor, extractor, logg)
	if err != nil {
		logg.Fatal("failed to create server", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logg.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logg.Error("server error", "error", err)
		}
	}

	logg.Info("shutting down")
	if err := srv.Stop(); err != nil {
		logg.Error("error during shutdown", "error", err)
	}
}

// applyFlags lets explicitly set command-line flags win over the environment.
func applyFlags(cfg *config.Config) {
	if *host != "" {
		cfg.Host = *host
	}
	if *address != "" {
		cfg.Host = *address
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
	if *store != "" {
		cfg.Store.Driver = *store
	}
}
