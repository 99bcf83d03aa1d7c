package models

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// Contract holds the on-chain coordinates of the car marketplace package.
type Contract struct {
	PackageID     string
	Module        string
	MintFunc      string
	ListFunc      string
	BuyFunc       string
	ListedEvent   string
	BoughtEvent   string
	CarStruct     string
	ClockObjectID string
}

// Target returns the fully qualified entry point "<package>::<module>::<fn>".
func (c Contract) Target(fn string) string {
	return c.PackageID + "::" + c.Module + "::" + fn
}

// EventType returns the Move event type name for an event struct.
func (c Contract) EventType(name string) string {
	return c.Target(name)
}

// StructType returns the Move struct type name for an object struct.
func (c Contract) StructType(name string) string {
	return c.Target(name)
}

// Validate checks contract field constraints.
func (c Contract) Validate() error {
	if !strings.HasPrefix(c.PackageID, "0x") || len(c.PackageID) < 3 {
		return errors.New("package ID must be a 0x-prefixed object ID")
	}
	if c.Module == "" {
		return errors.New("module name must not be empty")
	}
	if c.MintFunc == "" || c.ListFunc == "" || c.BuyFunc == "" {
		return errors.New("entry point names must not be empty")
	}
	if c.ListedEvent == "" || c.BoughtEvent == "" {
		return errors.New("event names must not be empty")
	}
	if c.CarStruct == "" {
		return errors.New("car struct name must not be empty")
	}
	if c.ClockObjectID == "" {
		return errors.New("clock object ID must not be empty")
	}
	return nil
}

// CarModel is one mintable car design.
type CarModel struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	Description  string `json:"description"`
	DefaultSpeed uint64 `json:"default_speed"`
	// IPFSMarker identifies the placeholder image the contract stores for this model.
	IPFSMarker string `json:"-"`
}

var carModels = []CarModel{
	{
		ID:           1,
		Name:         "Red Speedster",
		ImageURL:     "https://images.unsplash.com/photo-1583121274602-3e2820c69888?w=800&h=600&fit=crop",
		Description:  "Perfect choice for speed enthusiasts",
		DefaultSpeed: 85,
		IPFSMarker:   "QmX_RedSpeedster",
	},
	{
		ID:           2,
		Name:         "Midnight Drifter",
		ImageURL:     "https://images.unsplash.com/photo-1542362567-b07e54358753?w=800&h=600&fit=crop",
		Description:  "King of night races",
		DefaultSpeed: 90,
		IPFSMarker:   "QmY_MidnightDrifter",
	},
	{
		ID:           3,
		Name:         "Desert Nomad",
		ImageURL:     "https://images.unsplash.com/photo-1605559424843-9e4c228bf1c2?w=800&h=600&fit=crop",
		Description:  "Conqueror of desert tracks",
		DefaultSpeed: 80,
		IPFSMarker:   "QmZ_DesertNomad",
	},
}

// CarModels returns a copy of the mintable model catalog.
func CarModels() []CarModel {
	out := make([]CarModel, len(carModels))
	copy(out, carModels)
	return out
}

// LookupCarModel finds a model by its on-chain image ID.
func LookupCarModel(id uint64) (CarModel, bool) {
	return lo.Find(carModels, func(m CarModel) bool { return m.ID == id })
}
