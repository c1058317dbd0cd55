package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cove/internal/server/api"
	"cove/internal/server/auth"
	"cove/internal/server/config"
	"cove/internal/server/service"
	"cove/internal/server/share"
	"cove/internal/server/transfer"
	"cove/internal/server/vault"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_root", cfg.StorageRoot,
		"transfer_root", cfg.TransferRoot,
		"quota_bytes", cfg.QuotaBytes,
		"transfer_ttl", cfg.TransferTTL,
	)

	// Initialize the sandboxed storage root
	resolver, err := vault.NewResolver(cfg.StorageRoot)
	if err != nil {
		slog.Error("failed to initialize storage root", "error", err)
		os.Exit(1)
	}
	slog.Info("storage root initialized", "path", resolver.Root())

	// Initialize the quick-transfer drop box
	transfers, err := transfer.NewStore(cfg.TransferRoot, cfg.TransferTTL)
	if err != nil {
		slog.Error("failed to initialize transfer store", "error", err)
		os.Exit(1)
	}
	slog.Info("transfer store initialized", "path", transfers.Root())

	// Quota covers both the storage root and the transfer drop box, and the
	// drop box checks it before every write
	quota := vault.NewQuota(cfg.QuotaBytes, resolver.Root(), transfers.Root())
	transfers.UseQuota(quota)

	// Credential verification; a missing hash gets a generated default so a
	// bare dev environment still starts, loudly.
	passwordHash := cfg.AuthPassword
	if passwordHash == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte("cove"), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash default password", "error", err)
			os.Exit(1)
		}
		passwordHash = string(hash)
		slog.Warn("AUTH_PASSWORD_HASH not set, using default password 'cove'")
	}
	throttle := auth.NewThrottle(cfg.MaxLoginFails)
	authn := auth.NewAuthenticator(cfg.AuthUsername, passwordHash, throttle)

	// In-memory side stores, constructed once and passed by reference
	shares := share.NewRegistry()
	recent := service.NewRecentLog(cfg.RecentLogSize)

	drive := service.NewDriveService(resolver, quota, recent)

	// Start background transfer sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	sweeper := transfer.NewSweeper(transfers, cfg.SweepInterval)
	sweeper.Start(sweepCtx)

	// Setup HTTP router
	handler := api.NewHandler(drive, shares, transfers, authn, cfg.AuthUsername)
	e := api.SetupRouter(handler, authn, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop transfer sweeper
	sweepCancel()
	sweeper.Wait()

	slog.Info("server exited cleanly")
}
