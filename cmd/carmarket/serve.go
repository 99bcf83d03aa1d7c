package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/carmarket/internal/config"
	"github.com/rewired-gh/carmarket/internal/intent"
	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/market"
	"github.com/rewired-gh/carmarket/internal/metrics"
	"github.com/rewired-gh/carmarket/internal/server"
	"github.com/rewired-gh/carmarket/internal/storage"
	"github.com/rewired-gh/carmarket/internal/telegram"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the marketplace views fresh and serve them over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	store, err := storage.New(cfg.Storage.MaxNotified, cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	// A file-backed ledger may predate a smaller max_notified.
	if err := store.RotateNotified(); err != nil {
		logger.Warn("Failed to rotate notified activity: %v", err)
	}

	suiClient, err := newSuiClient(cfg)
	if err != nil {
		return err
	}

	contract := cfg.Contract.Model()
	m := metrics.New()
	syncer := market.NewSyncer(suiClient, store, contract, marketConfig(cfg), m)

	tracker := intent.NewTracker(m)
	tracker.OnSuccess = func(kind intent.Kind) {
		logger.Debug("Requesting refresh after confirmed %s", kind)
		syncer.RequestRefresh()
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return err
		}
		telegramClient.SetStatsSource(store)
		if cfg.Telegram.NotifyActivity {
			syncer.OnActivity = telegram.NewNotifier(telegramClient, store).Notify
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	api := server.New(server.Options{
		Views:      store,
		Owners:     suiClient,
		Status:     syncer,
		Tracker:    tracker,
		Metrics:    m,
		Contract:   contract,
		Limits:     intentLimits(cfg),
		OwnedLimit: cfg.Market.OwnedLimit,
		Timeout:    cfg.Server.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	logger.Info("Starting marketplace syncer (interval: %v, listings: %d, feed: %d, stats window: %d)",
		cfg.Market.PollInterval,
		cfg.Market.ListingLimit,
		cfg.Market.FeedSize,
		cfg.Market.StatsLimit,
	)

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Refresh cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	syncer.Run(ctx, handleCycleResult)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed: %v", err)
	}

	logger.Info("Service stopped")
	return nil
}
