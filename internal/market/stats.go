package market

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/carmarket/internal/format"
	"github.com/rewired-gh/carmarket/internal/models"
)

// StatsAggregator derives the dashboard numbers from a bounded event window
// plus the configured account's owned cars.
type StatsAggregator struct {
	gateway    Gateway
	contract   models.Contract
	limit      int
	ownedLimit int
	account    string
	now        func() time.Time
}

func NewStatsAggregator(gw Gateway, contract models.Contract, limit, ownedLimit int, account string) *StatsAggregator {
	return &StatsAggregator{
		gateway:    gw,
		contract:   contract,
		limit:      limit,
		ownedLimit: ownedLimit,
		account:    account,
		now:        time.Now,
	}
}

// Compute returns fresh statistics. TotalMinted adds the account's cars to the
// distinct listed/sold car IDs without removing the overlap, so a car that is
// both owned and inside the event window is counted twice.
func (a *StatsAggregator) Compute(ctx context.Context) (models.MarketStats, error) {
	var listed, bought []models.Event
	var owned []models.OwnedCar

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listed, err = a.gateway.QueryEvents(gctx, a.contract.EventType(a.contract.ListedEvent), models.KindListed, a.limit, true)
		return err
	})
	g.Go(func() error {
		var err error
		bought, err = a.gateway.QueryEvents(gctx, a.contract.EventType(a.contract.BoughtEvent), models.KindBought, a.limit, true)
		return err
	})
	if a.account != "" {
		g.Go(func() error {
			var err error
			owned, err = a.gateway.GetOwnedCars(gctx, a.account, a.contract.StructType(a.contract.CarStruct), a.ownedLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.MarketStats{}, fmt.Errorf("failed to compute stats: %w", err)
	}

	soldCarIDs := carIDs(bought)
	listedCarIDs := carIDs(listed)
	userCars := len(owned)

	return models.MarketStats{
		TotalMinted:    len(lo.Uniq(append(append([]string{}, listedCarIDs...), soldCarIDs...))) + userCars,
		ActiveListings: max(0, len(listedCarIDs)-len(soldCarIDs)),
		UserCars:       userCars,
		TotalVolume:    format.SumDisplay(lo.Map(bought, func(e models.Event, _ int) uint64 { return e.Price })),
		UpdatedAt:      a.now(),
	}, nil
}

// carIDs returns the distinct known car IDs of events.
func carIDs(events []models.Event) []string {
	ids := lo.FilterMap(events, func(e models.Event, _ int) (string, bool) {
		return e.CarID, e.CarID != "" && e.CarID != models.Unknown
	})
	return lo.Uniq(ids)
}
