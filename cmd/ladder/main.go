// Ladder conducts means-end-chain laddering interviews over HTTP, one chat
// per stimulus.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meansend/ladder/pkg/api"
	"github.com/meansend/ladder/pkg/config"
	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/session"
	"github.com/meansend/ladder/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting ladder",
		"http_port", cfg.HTTPPort,
		"model", cfg.LLMModel,
		"stimuli", len(cfg.Stimuli),
		"values_max", cfg.ValuesMax,
		"max_retries", cfg.MaxRetries)

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}()
	slog.Info("Store opened", "dir", cfg.DataDir)

	client := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	sessions := session.NewManager(client, st, session.Options{
		Topic:      cfg.Topic,
		Stimuli:    cfg.Stimuli,
		ValuesMax:  cfg.ValuesMax,
		MaxRetries: cfg.MaxRetries,
		MinNodes:   cfg.MinNodes,
	}, cfg.SessionTTL)

	httpServer := api.NewServer(sessions)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
