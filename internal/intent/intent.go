// Package intent builds the contract-call requests handed to an external
// wallet adapter and relays the adapter's outcome back into form state.
package intent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rewired-gh/carmarket/internal/format"
	"github.com/rewired-gh/carmarket/internal/models"
)

// Kind names the contract entry point an intent calls.
type Kind string

const (
	KindMint Kind = "mint"
	KindList Kind = "list"
	KindBuy  Kind = "buy"
)

// ArgKind is how the wallet adapter materializes an argument.
type ArgKind string

const (
	// ArgPure is a plain BCS value.
	ArgPure ArgKind = "pure"
	// ArgObject is an object reference by ID.
	ArgObject ArgKind = "object"
	// ArgGasCoin is a coin split from the gas coin for Value base units.
	ArgGasCoin ArgKind = "gas_coin"
)

// ErrValidation wraps every local form rejection.
var ErrValidation = errors.New("invalid form")

// Argument is one positional argument of a Move call. Integer values are
// carried as decimal strings so u64 survives JSON.
type Argument struct {
	Kind  ArgKind `json:"kind"`
	Type  string  `json:"type,omitempty"`
	Value string  `json:"value"`
}

// Intent is a single "call this entry point with these arguments" request.
type Intent struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Target    string     `json:"target"`
	Arguments []Argument `json:"arguments"`
	CreatedAt time.Time  `json:"created_at"`
}

// Limits bounds the mint form.
type Limits struct {
	MinSpeed      uint64
	MaxSpeed      uint64
	MaxNameLength int
}

func DefaultLimits() Limits {
	return Limits{MinSpeed: 0, MaxSpeed: 300, MaxNameLength: 50}
}

type MintForm struct {
	ModelID uint64 `json:"model_id"`
	Name    string `json:"name"`
	Speed   uint64 `json:"speed"`
}

// ListForm carries the asking price in display units, as typed by the user.
type ListForm struct {
	CarObjectID string `json:"car_id"`
	Price       string `json:"price"`
}

// BuyForm carries the listing's price in base units, as read from the listing.
type BuyForm struct {
	ListingID string `json:"listing_id"`
	Price     uint64 `json:"price"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
}

func newIntent(kind Kind, target string, args ...Argument) *Intent {
	return &Intent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Target:    target,
		Arguments: args,
		CreatedAt: time.Now(),
	}
}

func pureString(s string) Argument {
	return Argument{Kind: ArgPure, Type: "string", Value: s}
}

func pureU64(v uint64) Argument {
	return Argument{Kind: ArgPure, Type: "u64", Value: strconv.FormatUint(v, 10)}
}

func object(id string) Argument {
	return Argument{Kind: ArgObject, Value: id}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// BuildMint validates f and returns a mint_car(name, speed, model_id, clock) intent.
func BuildMint(c models.Contract, f MintForm, l Limits) (*Intent, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" || f.ModelID == 0 {
		return nil, invalid("please select a model and enter a name")
	}
	if l.MaxNameLength > 0 && utf8.RuneCountInString(name) > l.MaxNameLength {
		return nil, invalid(fmt.Sprintf("name must be at most %d characters", l.MaxNameLength))
	}
	if _, ok := models.LookupCarModel(f.ModelID); !ok {
		return nil, invalid(fmt.Sprintf("unknown car model %d", f.ModelID))
	}
	if f.Speed < l.MinSpeed || f.Speed > l.MaxSpeed {
		return nil, invalid(fmt.Sprintf("speed must be between %d and %d", l.MinSpeed, l.MaxSpeed))
	}
	if c.ClockObjectID == "" {
		return nil, errors.New("clock object ID is not configured")
	}

	return newIntent(KindMint, c.Target(c.MintFunc),
		pureString(name),
		pureU64(f.Speed),
		pureU64(f.ModelID),
		object(c.ClockObjectID),
	), nil
}

// BuildList validates f and returns a list_car(car, price) intent with the
// price converted to base units.
func BuildList(c models.Contract, f ListForm) (*Intent, error) {
	if strings.TrimSpace(f.CarObjectID) == "" {
		return nil, invalid("car object ID must not be empty")
	}
	price, err := format.DisplayToBaseUnits(f.Price)
	if err != nil {
		return nil, invalid("please enter a valid price")
	}

	return newIntent(KindList, c.Target(c.ListFunc),
		object(f.CarObjectID),
		pureU64(price),
	), nil
}

// BuildBuy validates f and returns a buy_car(listing, payment) intent whose
// payment is split from the buyer's gas coin.
func BuildBuy(c models.Contract, f BuyForm) (*Intent, error) {
	if strings.TrimSpace(f.ListingID) == "" {
		return nil, invalid("listing ID must not be empty")
	}
	if f.Buyer == "" {
		return nil, invalid("please connect your wallet")
	}
	if f.Price == 0 {
		return nil, invalid("listing price must be positive")
	}
	if strings.EqualFold(f.Buyer, f.Seller) {
		return nil, invalid("you cannot buy your own car")
	}

	return newIntent(KindBuy, c.Target(c.BuyFunc),
		object(f.ListingID),
		Argument{Kind: ArgGasCoin, Type: "u64", Value: strconv.FormatUint(f.Price, 10)},
	), nil
}
