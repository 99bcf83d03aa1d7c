package sui

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/carmarket/internal/format"
	"github.com/rewired-gh/carmarket/internal/models"
)

// ErrMalformed marks a payload that matches none of the known shapes.
var ErrMalformed = errors.New("malformed payload")

const unknownCarName = "Unknown Car"

// eventPayload covers both the CarListed and CarBought parsedJson shapes.
// Older deploys name the listing "listing_id", newer ones "id".
type eventPayload struct {
	ID        json.RawMessage `json:"id"`
	ListingID json.RawMessage `json:"listing_id"`
	CarID     json.RawMessage `json:"car_id"`
	Price     Uint64          `json:"price"`
	Seller    string          `json:"seller"`
	Buyer     string          `json:"buyer"`
}

// ParseEvent normalizes an event envelope into a models.Event of the given kind.
// Missing car IDs and addresses become models.Unknown and a missing price becomes zero.
func ParseEvent(env EventEnvelope, kind models.EventKind) (models.Event, error) {
	if !isObject(env.ParsedJSON) {
		return models.Event{}, fmt.Errorf("%w: event %s parsedJson is not an object", ErrMalformed, env.ID.TxDigest)
	}
	var p eventPayload
	if err := json.Unmarshal(env.ParsedJSON, &p); err != nil {
		return models.Event{}, fmt.Errorf("%w: event %s: %v", ErrMalformed, env.ID.TxDigest, err)
	}

	e := models.Event{
		Kind:      kind,
		TxDigest:  env.ID.TxDigest,
		EventSeq:  env.ID.EventSeq,
		ListingID: firstNonEmpty(decodeID(p.ID), decodeID(p.ListingID)),
		CarID:     firstNonEmpty(decodeID(p.CarID), models.Unknown),
		Price:     uint64(p.Price),
		Seller:    p.Seller,
	}
	if kind == models.KindBought {
		e.Actor = firstNonEmpty(p.Buyer, models.Unknown)
	} else {
		e.Actor = firstNonEmpty(p.Seller, models.Unknown)
	}
	if env.TimestampMs != nil && *env.TimestampMs > 0 {
		e.Timestamp = time.UnixMilli(int64(*env.TimestampMs))
	}
	return e, nil
}

type listingFields struct {
	ID     json.RawMessage `json:"id"`
	Car    json.RawMessage `json:"car"`
	Price  Uint64          `json:"price"`
	Seller string          `json:"seller"`
}

type carFields struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	ImageURL string          `json:"image_url"`
	Speed    Uint64          `json:"speed"`
}

// ParseListing converts a listing object into a models.Listing. The embedded car
// may arrive as a Move struct ({"type": ..., "fields": {...}}) or as bare fields.
func ParseListing(obj *ObjectData) (*models.Listing, error) {
	raw, err := contentFields(obj)
	if err != nil {
		return nil, err
	}
	var lf listingFields
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrMalformed, obj.ObjectID, err)
	}
	car, err := parseCarFields(lf.Car)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", obj.ObjectID, err)
	}

	return &models.Listing{
		ListingID: firstNonEmpty(obj.ObjectID, decodeID(lf.ID)),
		CarID:     decodeID(car.ID),
		Name:      firstNonEmpty(car.Name, unknownCarName),
		ImageURL:  format.ResolveImageURL(car.ImageURL),
		Speed:     uint64(car.Speed),
		Price:     uint64(lf.Price),
		Seller:    firstNonEmpty(lf.Seller, models.Unknown),
	}, nil
}

// ParseOwnedCar converts a Car object into a models.OwnedCar.
func ParseOwnedCar(obj *ObjectData) (*models.OwnedCar, error) {
	raw, err := contentFields(obj)
	if err != nil {
		return nil, err
	}
	var cf carFields
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("%w: car %s: %v", ErrMalformed, obj.ObjectID, err)
	}
	return &models.OwnedCar{
		ID:       firstNonEmpty(obj.ObjectID, decodeID(cf.ID)),
		Name:     firstNonEmpty(cf.Name, unknownCarName),
		ImageURL: format.ResolveImageURL(cf.ImageURL),
		Speed:    uint64(cf.Speed),
	}, nil
}

func contentFields(obj *ObjectData) ([]byte, error) {
	if obj == nil || obj.Content == nil || obj.Content.Fields == nil {
		return nil, fmt.Errorf("%w: object has no Move content", ErrMalformed)
	}
	return json.Marshal(obj.Content.Fields)
}

func parseCarFields(raw json.RawMessage) (carFields, error) {
	var cf carFields
	if !isObject(raw) {
		return cf, fmt.Errorf("%w: missing car", ErrMalformed)
	}
	var wrapper struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && isObject(wrapper.Fields) {
		raw = wrapper.Fields
	}
	if err := json.Unmarshal(raw, &cf); err != nil {
		return cf, fmt.Errorf("%w: car: %v", ErrMalformed, err)
	}
	return cf, nil
}

// decodeID accepts both a plain string and the {"id": "..."} UID wrapper.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var u uid
	if err := json.Unmarshal(raw, &u); err == nil {
		return u.ID
	}
	return ""
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
