package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/carmarket/internal/metrics"
	"github.com/rewired-gh/carmarket/internal/models"
	"github.com/rewired-gh/carmarket/internal/storage"
	"github.com/rewired-gh/carmarket/internal/sui"
)

var testContract = models.Contract{
	PackageID:   "0xabc",
	Module:      "car_nft",
	MintFunc:    "mint_car",
	ListFunc:    "list_car",
	BuyFunc:     "buy_car",
	ListedEvent: "CarListed",
	BoughtEvent: "CarBought",
	CarStruct:   "Car",
}

// fakeGateway serves canned events and listings. It is safe for concurrent use.
type fakeGateway struct {
	mu       sync.Mutex
	listed   []models.Event
	bought   []models.Event
	listings map[string]models.Listing
	owned    []models.OwnedCar

	listedErr error
	boughtErr error
	ownedErr  error

	queries map[models.EventKind][]int
	lookups int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		listings: map[string]models.Listing{},
		queries:  map[models.EventKind][]int{},
	}
}

func (f *fakeGateway) QueryEvents(_ context.Context, eventType string, kind models.EventKind, limit int, descending bool) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[kind] = append(f.queries[kind], limit)

	if !descending {
		return nil, errors.New("expected descending query")
	}
	src, err, want := f.listed, f.listedErr, testContract.ListedEvent
	if kind == models.KindBought {
		src, err, want = f.bought, f.boughtErr, testContract.BoughtEvent
	}
	if eventType != testContract.EventType(want) {
		return nil, fmt.Errorf("unexpected event type %s", eventType)
	}
	if err != nil {
		return nil, err
	}
	if len(src) > limit {
		src = src[:limit]
	}
	return append([]models.Event(nil), src...), nil
}

func (f *fakeGateway) GetListing(_ context.Context, id string) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sui.ErrObjectNotFound, id)
	}
	return &l, nil
}

func (f *fakeGateway) GetOwnedCars(_ context.Context, _, _ string, limit int) ([]models.OwnedCar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ownedErr != nil {
		return nil, f.ownedErr
	}
	if len(f.owned) > limit {
		return f.owned[:limit], nil
	}
	return f.owned, nil
}

func listedEvent(digest, listingID, carID string, price uint64, ts time.Time) models.Event {
	return models.Event{Kind: models.KindListed, TxDigest: digest, ListingID: listingID, CarID: carID, Price: price, Actor: "0xseller", Seller: "0xseller", Timestamp: ts}
}

func boughtEvent(digest, listingID, carID string, price uint64, ts time.Time) models.Event {
	return models.Event{Kind: models.KindBought, TxDigest: digest, ListingID: listingID, CarID: carID, Price: price, Actor: "0xbuyer", Seller: "0xseller", Timestamp: ts}
}

func listing(id string, price uint64) models.Listing {
	return models.Listing{ListingID: id, CarID: "car-" + id, Name: "Red Speedster", Price: price, Seller: "0xseller"}
}

// ─── Reconciler ──────────────────────────────────────────────────────────────

func TestReconcile_DuplicateListingsResolvedOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("d3", "L1", "c1", 5, time.Time{}),
		listedEvent("d2", "L2", "c2", 6, time.Time{}),
		listedEvent("d1", "L1", "c1", 7, time.Time{}),
	}
	gw.listings["L1"] = listing("L1", 5)
	gw.listings["L2"] = listing("L2", 6)

	r := NewReconciler(gw, testContract, 50, 4)
	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Listings, 2)
	assert.Equal(t, "L1", res.Listings[0].ListingID)
	assert.Equal(t, "L2", res.Listings[1].ListingID)
	assert.Equal(t, 2, gw.lookups)
	assert.Equal(t, 0, res.Dropped)
	assert.Equal(t, []int{50}, gw.queries[models.KindListed])
}

func TestReconcile_UnresolvedListingsDropped(t *testing.T) {
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("d2", "B", "cb", 1, time.Time{}),
		listedEvent("d1", "A", "ca", 1, time.Time{}),
	}
	gw.listings["B"] = listing("B", 1)

	res, err := NewReconciler(gw, testContract, 50, 2).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Listings, 1)
	assert.Contains(t, res.ByID(), "B")
	assert.NotContains(t, res.ByID(), "A")
	assert.Equal(t, 1, res.Dropped)
}

func TestReconcile_QueryFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.listedErr = errors.New("node unavailable")

	_, err := NewReconciler(gw, testContract, 50, 4).Reconcile(context.Background())
	assert.Error(t, err)
}

func TestReconcile_NoEvents(t *testing.T) {
	res, err := NewReconciler(newFakeGateway(), testContract, 50, 0).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Listings)
	assert.Empty(t, res.ByID())
}

func TestReconcile_InvalidListingDropped(t *testing.T) {
	gw := newFakeGateway()
	gw.listed = []models.Event{listedEvent("d1", "L1", "c1", 5, time.Time{})}
	gw.listings["L1"] = models.Listing{ListingID: "L1", CarID: "c1"}

	res, err := NewReconciler(gw, testContract, 50, 1).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Listings)
	assert.Equal(t, 1, res.Dropped)
}

// ─── Feed ────────────────────────────────────────────────────────────────────

func TestFeed_MergesAndSortsDescending(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("l3", "L3", "c3", 1, base.Add(5*time.Minute)),
		listedEvent("l1", "L1", "c1", 1, base.Add(1*time.Minute)),
	}
	gw.bought = []models.Event{
		boughtEvent("b2", "L2", "c2", 2, base.Add(3*time.Minute)),
	}

	items, err := NewFeedBuilder(gw, testContract, 10, 15).Build(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"l3-l", "b2-b", "l1-l"}, ids)
	assert.Equal(t, []int{10}, gw.queries[models.KindListed])
	assert.Equal(t, []int{10}, gw.queries[models.KindBought])
}

func TestFeed_TruncatesToSize(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	for i := 0; i < 10; i++ {
		gw.listed = append(gw.listed, listedEvent(fmt.Sprintf("l%d", i), "L", "c", 1, base.Add(-time.Duration(2*i)*time.Minute)))
		gw.bought = append(gw.bought, boughtEvent(fmt.Sprintf("b%d", i), "L", "c", 1, base.Add(-time.Duration(2*i+1)*time.Minute)))
	}

	items, err := NewFeedBuilder(gw, testContract, 10, 15).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 15)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Timestamp.After(items[i-1].Timestamp), "feed not descending at %d", i)
	}
	assert.Equal(t, "l0-l", items[0].ID)
}

func TestFeed_MissingTimestampUsesNow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.listed = []models.Event{listedEvent("l1", "L1", "c1", 1, now.Add(-time.Hour))}
	gw.bought = []models.Event{boughtEvent("b1", "L1", "c1", 1, time.Time{})}

	fb := NewFeedBuilder(gw, testContract, 10, 15)
	fb.now = func() time.Time { return now }

	items, err := fb.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b1-b", items[0].ID)
	assert.Equal(t, now, items[0].Timestamp)
}

func TestFeed_EqualTimestampsKeepFetchOrder(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	gw.listed = []models.Event{listedEvent("l1", "L1", "c1", 1, ts)}
	gw.bought = []models.Event{boughtEvent("b1", "L1", "c1", 1, ts)}

	items, err := NewFeedBuilder(gw, testContract, 10, 15).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "l1-l", items[0].ID)
	assert.Equal(t, "b1-b", items[1].ID)
}

func TestFeed_EitherFetchFailing(t *testing.T) {
	gw := newFakeGateway()
	gw.listed = []models.Event{listedEvent("l1", "L1", "c1", 1, time.Now())}
	gw.boughtErr = errors.New("timeout")

	_, err := NewFeedBuilder(gw, testContract, 10, 15).Build(context.Background())
	assert.Error(t, err)
}

// ─── Stats ───────────────────────────────────────────────────────────────────

func TestStats_Compute(t *testing.T) {
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("l1", "L1", "c1", 1, time.Time{}),
		listedEvent("l2", "L2", "c2", 1, time.Time{}),
		listedEvent("l3", "L3", "c3", 1, time.Time{}),
		listedEvent("l4", "L4", "c1", 1, time.Time{}),
	}
	gw.bought = []models.Event{
		boughtEvent("b1", "L1", "c1", 1_500_000_000, time.Time{}),
		boughtEvent("b2", "L5", "c9", 2_000_000_000, time.Time{}),
	}
	gw.owned = []models.OwnedCar{{ID: "c1"}, {ID: "c7"}}

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	agg := NewStatsAggregator(gw, testContract, 100, 100, "0xme")
	agg.now = func() time.Time { return fixed }

	stats, err := agg.Compute(context.Background())
	require.NoError(t, err)

	// {c1,c2,c3} ∪ {c1,c9} = 4 distinct, plus 2 owned (c1 counted again).
	assert.Equal(t, 6, stats.TotalMinted)
	assert.Equal(t, 1, stats.ActiveListings)
	assert.Equal(t, 2, stats.UserCars)
	assert.Equal(t, "3.50", stats.TotalVolume)
	assert.Equal(t, fixed, stats.UpdatedAt)
	assert.Equal(t, []int{100}, gw.queries[models.KindListed])
}

func TestStats_ActiveListingsNeverNegative(t *testing.T) {
	gw := newFakeGateway()
	gw.bought = []models.Event{
		boughtEvent("b1", "L1", "c1", 1, time.Time{}),
		boughtEvent("b2", "L2", "c2", 1, time.Time{}),
	}

	stats, err := NewStatsAggregator(gw, testContract, 100, 100, "").Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveListings)
	assert.Equal(t, 2, stats.TotalMinted)
	assert.Equal(t, 0, stats.UserCars)
}

func TestStats_NoEvents(t *testing.T) {
	stats, err := NewStatsAggregator(newFakeGateway(), testContract, 100, 100, "").Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMinted)
	assert.Equal(t, 0, stats.ActiveListings)
	assert.Equal(t, "0.00", stats.TotalVolume)
}

func TestStats_OwnedLookupFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.ownedErr = errors.New("rpc down")

	_, err := NewStatsAggregator(gw, testContract, 100, 100, "0xme").Compute(context.Background())
	assert.Error(t, err)
}

// ─── Syncer ──────────────────────────────────────────────────────────────────

func newTestSyncer(t *testing.T, gw *fakeGateway) (*Syncer, *storage.Storage) {
	t.Helper()
	store, err := storage.New(100, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	return NewSyncer(gw, store, testContract, cfg, metrics.New()), store
}

func TestSyncer_RefreshPopulatesViews(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("d2", "B", "cb", 2_000_000_000, now),
		listedEvent("d1", "A", "ca", 1_000_000_000, now.Add(-time.Minute)),
	}
	gw.listings["B"] = listing("B", 2_000_000_000)

	s, store := newTestSyncer(t, gw)
	var fed []models.ActivityItem
	s.OnActivity = func(items []models.ActivityItem) { fed = items }

	require.NoError(t, s.Refresh(context.Background()))

	listings, err := store.GetListings()
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "B", listings[0].ListingID)

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveListings)
	assert.Equal(t, 2, stats.TotalMinted)

	assert.Len(t, fed, 2)
	assert.Equal(t, int64(1), s.Refreshes())
	assert.False(t, s.Loading())
}

func TestSyncer_EmptyLedger(t *testing.T) {
	s, store := newTestSyncer(t, newFakeGateway())
	require.NoError(t, s.Refresh(context.Background()))

	listings, err := store.GetListings()
	require.NoError(t, err)
	assert.Empty(t, listings)

	activity, err := store.GetActivity()
	require.NoError(t, err)
	assert.Empty(t, activity)

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalMinted)
	assert.Equal(t, 0, stats.ActiveListings)
	assert.Equal(t, "0.00", stats.TotalVolume)
}

func TestSyncer_FailedViewKeepsPrevious(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway()
	gw.listed = []models.Event{listedEvent("d1", "A", "ca", 1, now)}
	gw.bought = []models.Event{boughtEvent("b1", "X", "cx", 1_000_000_000, now)}
	gw.listings["A"] = listing("A", 1)

	s, store := newTestSyncer(t, gw)
	require.NoError(t, s.Refresh(context.Background()))

	before, err := store.GetActivity()
	require.NoError(t, err)
	require.Len(t, before, 2)
	statsBefore, err := store.GetStats()
	require.NoError(t, err)

	gw.mu.Lock()
	gw.boughtErr = errors.New("node unavailable")
	gw.listed = nil
	gw.mu.Unlock()

	err = s.Refresh(context.Background())
	require.Error(t, err)

	after, err := store.GetActivity()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	statsAfter, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, statsBefore.TotalVolume, statsAfter.TotalVolume)
	assert.Equal(t, statsBefore.TotalMinted, statsAfter.TotalMinted)

	// Listings only depend on listed events, which still succeed.
	listings, err := store.GetListings()
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestSyncer_RequestRefreshTriggersOneCycle(t *testing.T) {
	s, _ := newTestSyncer(t, newFakeGateway())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := make(chan error, 10)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(err error) { cycles <- err })
		close(done)
	}()

	select {
	case err := <-cycles:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("initial refresh did not run")
	}

	s.RequestRefresh()
	select {
	case err := <-cycles:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("requested refresh did not run")
	}

	select {
	case <-cycles:
		t.Fatal("unexpected extra refresh")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int64(2), s.Refreshes())

	cancel()
	<-done
}

func TestSyncer_RequestsCoalesce(t *testing.T) {
	s, _ := newTestSyncer(t, newFakeGateway())
	s.RequestRefresh()
	s.RequestRefresh()
	s.RequestRefresh()
	assert.Len(t, s.requests, 1)
}

func TestSyncer_ListedTwiceSoldOnce(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway()
	gw.listed = []models.Event{
		listedEvent("d2", "B", "cb", 1, now),
		listedEvent("d1", "A", "ca", 1, now.Add(-time.Minute)),
	}
	gw.bought = []models.Event{boughtEvent("d3", "A", "ca", 1, now)}
	gw.listings["B"] = listing("B", 1)

	s, store := newTestSyncer(t, gw)
	require.NoError(t, s.Refresh(context.Background()))

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveListings)

	listings, err := store.GetListings()
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "B", listings[0].ListingID)
}
