// Package market rebuilds the marketplace views (active listings, recent
// activity and dashboard statistics) from the ledger's event log and object
// lookups.
package market

import (
	"context"
	"time"

	"github.com/rewired-gh/carmarket/internal/models"
)

// Gateway is the read surface of the full node the views are built from.
type Gateway interface {
	QueryEvents(ctx context.Context, eventType string, kind models.EventKind, limit int, descending bool) ([]models.Event, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	GetOwnedCars(ctx context.Context, owner, structType string, limit int) ([]models.OwnedCar, error)
}

// Store receives complete view snapshots. Each call replaces the previous
// snapshot of that view atomically.
type Store interface {
	ReplaceListings(listings []models.Listing) error
	ReplaceActivity(items []models.ActivityItem) error
	SaveStats(stats models.MarketStats) error
}

type Config struct {
	PollInterval       time.Duration
	ListingLimit       int
	ResolveConcurrency int
	FeedPerKind        int
	FeedSize           int
	StatsLimit         int
	OwnedLimit         int
	Account            string
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       10 * time.Second,
		ListingLimit:       50,
		ResolveConcurrency: 4,
		FeedPerKind:        10,
		FeedSize:           15,
		StatsLimit:         100,
		OwnedLimit:         50,
	}
}
