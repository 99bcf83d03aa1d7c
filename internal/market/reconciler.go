package market

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/models"
	"github.com/rewired-gh/carmarket/internal/sui"
)

// Reconciler turns recent CarListed events into the set of listings that
// still resolve on-chain.
type Reconciler struct {
	gateway     Gateway
	contract    models.Contract
	limit       int
	concurrency int
}

func NewReconciler(gw Gateway, contract models.Contract, limit, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{gateway: gw, contract: contract, limit: limit, concurrency: concurrency}
}

// ReconcileResult is one reconciliation pass. Listings keeps event order,
// most recently listed first.
type ReconcileResult struct {
	Listings []models.Listing
	Dropped  int
}

// ByID returns the active listings keyed by listing ID.
func (r *ReconcileResult) ByID() map[string]models.Listing {
	out := make(map[string]models.Listing, len(r.Listings))
	for _, l := range r.Listings {
		out[l.ListingID] = l
	}
	return out
}

// Reconcile fetches the latest listed events, deduplicates their listing IDs
// (first seen wins) and keeps those whose listing object still resolves.
// A failing event query is an error; failing object lookups are not.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	eventType := r.contract.EventType(r.contract.ListedEvent)
	events, err := r.gateway.QueryEvents(ctx, eventType, models.KindListed, r.limit, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query listed events: %w", err)
	}

	ids := uniqueListingIDs(events)
	resolved := make([]*models.Listing, len(ids))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			l, err := r.gateway.GetListing(ctx, id)
			if err != nil {
				if errors.Is(err, sui.ErrObjectNotFound) {
					logger.Debug("Listing %s no longer exists", id)
				} else {
					logger.Debug("Listing %s did not resolve: %v", id, err)
				}
				return nil
			}
			l.ListingID = id
			if err := l.Validate(); err != nil {
				logger.Debug("Listing %s rejected: %v", id, err)
				return nil
			}
			resolved[i] = l
			return nil
		})
	}
	_ = g.Wait()

	result := &ReconcileResult{Listings: make([]models.Listing, 0, len(ids))}
	for _, l := range resolved {
		if l == nil {
			result.Dropped++
			continue
		}
		result.Listings = append(result.Listings, *l)
	}
	return result, nil
}

// uniqueListingIDs returns listing IDs in event order, skipping empty and repeated ones.
func uniqueListingIDs(events []models.Event) []string {
	seen := make(map[string]bool, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.ListingID == "" || seen[e.ListingID] {
			continue
		}
		seen[e.ListingID] = true
		ids = append(ids, e.ListingID)
	}
	return ids
}
