package market

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/metrics"
	"github.com/rewired-gh/carmarket/internal/models"
)

// Syncer keeps the three views fresh: once at start, then on every poll tick
// and whenever RequestRefresh is called. Refreshes run on the Run goroutine
// only, so two refreshes never overlap.
type Syncer struct {
	store      Store
	reconciler *Reconciler
	feed       *FeedBuilder
	stats      *StatsAggregator
	metrics    *metrics.Metrics
	interval   time.Duration

	requests  chan struct{}
	loading   atomic.Bool
	refreshes atomic.Int64

	// OnActivity receives every freshly stored activity feed.
	OnActivity func(items []models.ActivityItem)
}

func NewSyncer(gw Gateway, store Store, contract models.Contract, cfg Config, m *metrics.Metrics) *Syncer {
	return &Syncer{
		store:      store,
		reconciler: NewReconciler(gw, contract, cfg.ListingLimit, cfg.ResolveConcurrency),
		feed:       NewFeedBuilder(gw, contract, cfg.FeedPerKind, cfg.FeedSize),
		stats:      NewStatsAggregator(gw, contract, cfg.StatsLimit, cfg.OwnedLimit, cfg.Account),
		metrics:    m,
		interval:   cfg.PollInterval,
		requests:   make(chan struct{}, 1),
	}
}

// RequestRefresh asks for an immediate refresh outside the poll cadence.
// Requests made while one is already pending collapse into it.
func (s *Syncer) RequestRefresh() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Loading reports whether a refresh is in flight.
func (s *Syncer) Loading() bool {
	return s.loading.Load()
}

// Refreshes returns the number of completed refresh cycles.
func (s *Syncer) Refreshes() int64 {
	return s.refreshes.Load()
}

// Refresh rebuilds every view. A view that fails keeps its previous snapshot;
// the other views are still replaced. The returned error joins all failures.
func (s *Syncer) Refresh(ctx context.Context) error {
	s.loading.Store(true)
	defer s.loading.Store(false)
	defer s.refreshes.Add(1)

	startTime := time.Now()
	logger.Debug("Starting refresh cycle")

	err := errors.Join(
		s.refreshListings(ctx),
		s.refreshActivity(ctx),
		s.refreshStats(ctx),
	)

	logger.Debug("Refresh cycle completed in %v", time.Since(startTime))
	return err
}

func (s *Syncer) refreshListings(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRefresh(metrics.ViewListings, start, err) }()

	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceListings(result.Listings); err != nil {
		return fmt.Errorf("failed to store listings: %w", err)
	}
	s.metrics.RecordListings(len(result.Listings), result.Dropped)
	logger.Debug("Reconciled %d active listings (%d unresolved)", len(result.Listings), result.Dropped)
	return nil
}

func (s *Syncer) refreshActivity(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRefresh(metrics.ViewActivity, start, err) }()

	items, err := s.feed.Build(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceActivity(items); err != nil {
		return fmt.Errorf("failed to store activity: %w", err)
	}
	if s.OnActivity != nil {
		s.OnActivity(items)
	}
	return nil
}

func (s *Syncer) refreshStats(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRefresh(metrics.ViewStats, start, err) }()

	stats, err := s.stats.Compute(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SaveStats(stats); err != nil {
		return fmt.Errorf("failed to store stats: %w", err)
	}
	return nil
}

// Run refreshes immediately, then on every tick and every request, until ctx
// is done. onCycle, if set, receives the result of each cycle.
func (s *Syncer) Run(ctx context.Context, onCycle func(error)) {
	handle := func(err error) {
		if onCycle != nil {
			onCycle(err)
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug("Running initial refresh")
	handle(s.Refresh(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handle(s.Refresh(ctx))
		case <-s.requests:
			logger.Debug("Running requested refresh")
			s.metrics.RecordOutOfBand()
			handle(s.Refresh(ctx))
		}
	}
}
