// Package models defines the core domain entities: marketplace events, listings,
// owned cars, statistics and the contract coordinates they live under.
package models

import (
	"errors"
	"time"
)

// EventKind distinguishes the two marketplace events the contract emits.
type EventKind string

const (
	KindListed EventKind = "listed"
	KindBought EventKind = "bought"
)

// Unknown is the placeholder for identifiers and addresses missing from an event payload.
const Unknown = "Unknown"

// Event is one normalized CarListed or CarBought record from the ledger.
// Actor is the seller for a listing and the buyer for a sale.
// A zero Timestamp means the node did not report one.
type Event struct {
	Kind      EventKind `json:"kind"`
	TxDigest  string    `json:"tx_digest"`
	EventSeq  string    `json:"event_seq"`
	ListingID string    `json:"listing_id,omitempty"`
	CarID     string    `json:"car_id"`
	Price     uint64    `json:"price"`
	Actor     string    `json:"actor"`
	Seller    string    `json:"seller,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ID returns a feed-unique identifier. One transaction can emit several events
// of either kind, so the event sequence and the kind are folded into the digest.
func (e *Event) ID() string {
	id := e.TxDigest
	if e.EventSeq != "" {
		id += "-" + e.EventSeq
	}
	if e.Kind == KindBought {
		return id + "-b"
	}
	return id + "-l"
}

// Validate checks event field constraints.
func (e *Event) Validate() error {
	if e.Kind != KindListed && e.Kind != KindBought {
		return errors.New("event kind must be listed or bought")
	}
	if e.TxDigest == "" {
		return errors.New("transaction digest must not be empty")
	}
	if e.CarID == "" {
		return errors.New("car ID must not be empty")
	}
	if e.Actor == "" {
		return errors.New("actor address must not be empty")
	}
	return nil
}

// ActivityItem is one row of the recent-activity feed.
type ActivityItem struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	CarID     string    `json:"car_id"`
	Price     uint64    `json:"price"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityItem converts an event into a feed row.
func NewActivityItem(e Event) ActivityItem {
	return ActivityItem{
		ID:        e.ID(),
		Kind:      e.Kind,
		CarID:     e.CarID,
		Price:     e.Price,
		Address:   e.Actor,
		Timestamp: e.Timestamp,
	}
}
