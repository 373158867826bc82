package models

import "github.com/shopspring/decimal"

// PricingBreakdown is the computed multi-component price for a transfer line.
// It is always derived, never hand-edited; final price feeds the owning item's
// total.
type PricingBreakdown struct {
	BasePrice         decimal.Decimal `json:"base_price"`
	OutboundSurcharge decimal.Decimal `json:"outbound_surcharge"`
	ReturnSurcharge   decimal.Decimal `json:"return_surcharge"`
	RoundTripDiscount decimal.Decimal `json:"round_trip_discount"`
	OptionsTotal      decimal.Decimal `json:"options_total"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	FeesTotal         decimal.Decimal `json:"fees_total"`
	TaxTotal          decimal.Decimal `json:"tax_total"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	Currency          string          `json:"currency"`

	// Reported for agent bookings, excluded from GrandTotal
	CommissionAmount decimal.Decimal `json:"commission_amount,omitempty"`
}

// SurchargeKind classifies a leg's time-of-day window
type SurchargeKind string

const (
	SurchargeNone     SurchargeKind = "none"
	SurchargePeak     SurchargeKind = "peak"     // +10% of base
	SurchargeMidnight SurchargeKind = "midnight" // +5% of base
)

// TransferOption is a bookable add-on, either route-specific or global
type TransferOption struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// TransferRoute is the pricing configuration for one route
type TransferRoute struct {
	ID                   string                     `json:"id"`
	VehicleRates         map[string]decimal.Decimal `json:"vehicle_rates"` // vehicle type → base rate
	RoundTripDiscountPct decimal.Decimal            `json:"round_trip_discount_pct"`
	Options              []TransferOption           `json:"options,omitempty"`
	Currency             string                     `json:"currency"`
}

// BaseRate returns the base price for the vehicle type, if the route serves it
func (r *TransferRoute) BaseRate(vehicleType string) (decimal.Decimal, bool) {
	rate, ok := r.VehicleRates[vehicleType]
	return rate, ok
}

// AgeGroup for tour pricing tables
type AgeGroup string

const (
	AgeAdult  AgeGroup = "adult"
	AgeChild  AgeGroup = "child"
	AgeInfant AgeGroup = "infant"
)

// TourVariant carries the per-age-group pricing table for one tour variant
type TourVariant struct {
	ID       string                       `json:"id"`
	Pricing  map[AgeGroup]decimal.Decimal `json:"pricing"`
	Currency string                       `json:"currency"`
}

// TourSchedule attaches per-variant remaining capacity to a departure
type TourSchedule struct {
	ID       string         `json:"id"`
	Date     string         `json:"date"`
	Capacity map[string]int `json:"capacity"` // variant ID → seats remaining
}
