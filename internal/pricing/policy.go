// Package pricing derives member-facing prices from the fixed weekly
// pricing policy.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelscout/fuelscout/internal/station"
)

// Policy configuration errors. Malformed station data never errors;
// an invalid policy is a programmer/configuration mistake and does.
var (
	ErrNegativePrice  = errors.New("policy price cannot be negative")
	ErrInvalidWindow  = errors.New("policy validity window ends before it starts")
	ErrPolicyRequired = errors.New("pricing policy is required")
)

// hundred converts pounds per litre to pence per litre. Decimal
// arithmetic keeps the conversion exact however often it is applied.
var hundred = decimal.NewFromInt(100)

// DefaultSupermarketBrands is the fixed membership set for the
// supermarket tariff, compared after key normalization.
func DefaultSupermarketBrands() []string {
	return []string{"ASDA", "TESCO", "SAINSBURYS", "MORRISONS"}
}

// Policy is the externally configured weekly schedule. All amounts are
// pence per litre. Immutable input, never derived data.
type Policy struct {
	// DieselStandard is the flat member diesel price at standard brands.
	DieselStandard decimal.Decimal

	// DieselSupermarket is the flat member diesel price at supermarket
	// forecourts.
	DieselSupermarket decimal.Decimal

	// PetrolDiscountStandard is the per-litre discount off the pump
	// petrol price at standard brands.
	PetrolDiscountStandard decimal.Decimal

	// PetrolDiscountSupermarket is the reduced per-litre petrol discount
	// at supermarket forecourts.
	PetrolDiscountSupermarket decimal.Decimal

	// ValidFrom and ValidTo bound the schedule's validity window.
	ValidFrom time.Time
	ValidTo   time.Time

	// SupermarketBrands overrides the supermarket membership set.
	// Empty means DefaultSupermarketBrands.
	SupermarketBrands []string
}

// Validate checks the policy for configuration errors.
func (p Policy) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"diesel_standard":             p.DieselStandard,
		"diesel_supermarket":          p.DieselSupermarket,
		"petrol_discount_standard":    p.PetrolDiscountStandard,
		"petrol_discount_supermarket": p.PetrolDiscountSupermarket,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativePrice, name)
		}
	}
	if !p.ValidFrom.IsZero() && !p.ValidTo.IsZero() && p.ValidTo.Before(p.ValidFrom) {
		return ErrInvalidWindow
	}
	return nil
}

// ActiveAt reports whether the policy window covers the given instant.
// A zero bound is open-ended.
func (p Policy) ActiveAt(t time.Time) bool {
	if !p.ValidFrom.IsZero() && t.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidTo.IsZero() && t.After(p.ValidTo) {
		return false
	}
	return true
}

// IsSupermarket reports whether the brand belongs to the supermarket
// tariff set, by exact case-insensitive membership.
func (p Policy) IsSupermarket(brand string) bool {
	set := p.SupermarketBrands
	if len(set) == 0 {
		set = DefaultSupermarketBrands()
	}
	key := station.NormalizeKey(brand)
	for _, member := range set {
		if station.NormalizeKey(member) == key {
			return true
		}
	}
	return false
}

// MemberPrices is the derived member tariff for one station. All amounts
// are pence per litre.
type MemberPrices struct {
	// Diesel is the flat schedule price, independent of pump price.
	Diesel decimal.Decimal

	// PetrolDiscount is the discount applied to the pump petrol price.
	PetrolDiscount decimal.Decimal

	// Petrol is pump price minus discount. Nil when the station carries
	// no pump petrol price.
	Petrol *decimal.Decimal

	IsSupermarket bool
}

// DerivePrices applies the policy to one station. Pure: same station and
// policy always produce the same result.
func DerivePrices(st *station.Station, policy Policy) (MemberPrices, error) {
	if st == nil {
		return MemberPrices{}, errors.New("station is required")
	}
	if err := policy.Validate(); err != nil {
		return MemberPrices{}, err
	}

	supermarket := policy.IsSupermarket(st.Brand)

	prices := MemberPrices{
		IsSupermarket: supermarket,
	}
	if supermarket {
		prices.Diesel = policy.DieselSupermarket
		prices.PetrolDiscount = policy.PetrolDiscountSupermarket
	} else {
		prices.Diesel = policy.DieselStandard
		prices.PetrolDiscount = policy.PetrolDiscountStandard
	}

	if st.PetrolPrice != nil {
		pump := PoundsToPence(*st.PetrolPrice)
		member := pump.Sub(prices.PetrolDiscount)
		prices.Petrol = &member
	}

	return prices, nil
}

// PoundsToPence converts a pounds-per-litre pump price to pence exactly.
// 1.459 pounds becomes 145.9 pence with no float residue.
func PoundsToPence(pounds float64) decimal.Decimal {
	return decimal.NewFromFloat(pounds).Mul(hundred)
}

// PenceToPounds converts pence back to pounds exactly.
func PenceToPounds(pence decimal.Decimal) decimal.Decimal {
	return pence.Div(hundred)
}
