// Package format converts ledger values into display strings.
package format

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/carmarket/internal/models"
)

// BaseUnitDecimals is the exponent between base units (MIST) and display units (SUI).
const BaseUnitDecimals = 9

var baseUnitsPerDisplay = decimal.New(1, BaseUnitDecimals)

// BaseUnitsToDisplay renders a base-unit amount in display units rounded to two decimals.
func BaseUnitsToDisplay(base uint64) string {
	return decimal.NewFromUint64(base).DivRound(baseUnitsPerDisplay, 2).StringFixed(2)
}

// SumDisplay adds base-unit amounts exactly and renders the total in display units.
func SumDisplay(amounts []uint64) string {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromUint64(a))
	}
	return total.DivRound(baseUnitsPerDisplay, 2).StringFixed(2)
}

// DisplayToBaseUnits parses a positive display-unit amount such as "1.5" into base units.
func DisplayToBaseUnits(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return 0, errors.New("amount must be greater than zero")
	}
	base := d.Shift(BaseUnitDecimals)
	if !base.Equal(base.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, BaseUnitDecimals)
	}
	if base.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	return base.BigInt().Uint64(), nil
}

// RelativeTime renders how long ago ts was, in whole minutes, hours or days.
func RelativeTime(ts, now time.Time) string {
	minutes := int64(now.Sub(ts) / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/(24*60))
	}
}

// ShortenAddress abbreviates long addresses to "0x1234...abcd".
func ShortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ResolveImageURL swaps the IPFS placeholder images stored on-chain for the
// catalog's display images. Other URLs are returned unchanged.
func ResolveImageURL(raw string) string {
	for _, m := range models.CarModels() {
		if strings.Contains(raw, m.IPFSMarker) {
			return m.ImageURL
		}
	}
	return raw
}
