package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/market"
	"github.com/rewired-gh/carmarket/internal/models"
	"github.com/rewired-gh/carmarket/internal/storage"
)

type snapshot struct {
	Listings []models.Listing      `json:"listings"`
	Activity []models.ActivityItem `json:"activity"`
	Stats    models.MarketStats    `json:"stats"`
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Run one refresh and print the marketplace views as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.Storage.MaxNotified, storage.MemoryDSN)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			suiClient, err := newSuiClient(cfg)
			if err != nil {
				return err
			}

			syncer := market.NewSyncer(suiClient, store, cfg.Contract.Model(), marketConfig(cfg), nil)
			if err := syncer.Refresh(cmd.Context()); err != nil {
				// Views that failed keep their empty snapshot.
				logger.Warn("Refresh incomplete: %v", err)
			}

			var snap snapshot
			if snap.Listings, err = store.GetListings(); err != nil {
				return err
			}
			if snap.Activity, err = store.GetActivity(); err != nil {
				return err
			}
			if snap.Stats, err = store.GetStats(); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}
