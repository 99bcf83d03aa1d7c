package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/carmarket/internal/models"
)

// FeedBuilder merges recent listed and bought events into one timeline.
type FeedBuilder struct {
	gateway  Gateway
	contract models.Contract
	perKind  int
	size     int
	now      func() time.Time
}

func NewFeedBuilder(gw Gateway, contract models.Contract, perKind, size int) *FeedBuilder {
	return &FeedBuilder{gateway: gw, contract: contract, perKind: perKind, size: size, now: time.Now}
}

// Build fetches both event kinds concurrently and returns the newest items
// first. If either fetch fails the whole build fails.
func (b *FeedBuilder) Build(ctx context.Context) ([]models.ActivityItem, error) {
	var listed, bought []models.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listed, err = b.gateway.QueryEvents(gctx, b.contract.EventType(b.contract.ListedEvent), models.KindListed, b.perKind, true)
		return err
	})
	g.Go(func() error {
		var err error
		bought, err = b.gateway.QueryEvents(gctx, b.contract.EventType(b.contract.BoughtEvent), models.KindBought, b.perKind, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch activity: %w", err)
	}

	now := b.now()
	items := make([]models.ActivityItem, 0, len(listed)+len(bought))
	for _, batch := range [][]models.Event{listed, bought} {
		for _, e := range batch {
			if e.Timestamp.IsZero() {
				e.Timestamp = now
			}
			items = append(items, models.NewActivityItem(e))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > b.size {
		items = items[:b.size]
	}
	return items, nil
}
