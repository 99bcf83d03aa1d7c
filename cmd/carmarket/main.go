package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/carmarket/internal/config"
	"github.com/rewired-gh/carmarket/internal/intent"
	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/market"
	"github.com/rewired-gh/carmarket/internal/sui"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "carmarket",
		Short:         "Car NFT marketplace views and transaction intents for a Sui full node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")

	root.AddCommand(
		newServeCmd(),
		newSnapshotCmd(),
		newMintCmd(),
		newListCmd(),
		newBuyCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads, validates and applies the logging section of the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("Configuration loaded from %s", configPath)
	return cfg, nil
}

func newSuiClient(cfg *config.Config) (*sui.Client, error) {
	rpcURL := cfg.Sui.RPCURL
	if rpcURL == "" {
		var err error
		if rpcURL, err = sui.FullnodeURL(cfg.Sui.Network); err != nil {
			return nil, err
		}
	}
	logger.Debug("Using full node %s", rpcURL)

	return sui.NewClient(rpcURL, cfg.Sui.Timeout, sui.ClientConfig{
		MaxRetries:     cfg.Sui.MaxRetries,
		RetryDelayBase: cfg.Sui.RetryDelayBase,
	}), nil
}

func marketConfig(cfg *config.Config) market.Config {
	return market.Config{
		PollInterval:       cfg.Market.PollInterval,
		ListingLimit:       cfg.Market.ListingLimit,
		ResolveConcurrency: cfg.Market.ResolveConcurrency,
		FeedPerKind:        cfg.Market.FeedPerKind,
		FeedSize:           cfg.Market.FeedSize,
		StatsLimit:         cfg.Market.StatsLimit,
		OwnedLimit:         cfg.Market.OwnedLimit,
		Account:            cfg.Market.Account,
	}
}

func intentLimits(cfg *config.Config) intent.Limits {
	return intent.Limits{
		MinSpeed:      cfg.Contract.MinSpeed,
		MaxSpeed:      cfg.Contract.MaxSpeed,
		MaxNameLength: cfg.Contract.MaxNameLength,
	}
}
