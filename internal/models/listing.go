package models

import (
	"errors"
	"time"
)

// Listing is the resolved on-chain state of a car placed for sale.
type Listing struct {
	ListingID string `json:"listing_id"`
	CarID     string `json:"car_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	Speed     uint64 `json:"speed"`
	Price     uint64 `json:"price"`
	Seller    string `json:"seller"`
}

// Validate checks listing field constraints.
func (l *Listing) Validate() error {
	if l.ListingID == "" {
		return errors.New("listing ID must not be empty")
	}
	if l.Seller == "" {
		return errors.New("seller must not be empty")
	}
	return nil
}

// OwnedCar is a car NFT held by an address.
type OwnedCar struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Speed    uint64 `json:"speed"`
}

// MarketStats are the dashboard aggregates. They are approximations over a
// bounded event window, recomputed from scratch on every refresh.
type MarketStats struct {
	TotalMinted    int       `json:"total_minted"`
	ActiveListings int       `json:"active_listings"`
	UserCars       int       `json:"user_cars"`
	TotalVolume    string    `json:"total_volume"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EmptyStats is what the dashboard shows before the first successful refresh.
func EmptyStats() MarketStats {
	return MarketStats{TotalVolume: "0.00"}
}
