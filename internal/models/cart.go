package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductType identifies which kind of booking a cart line holds
type ProductType string

const (
	ProductTour      ProductType = "tour"
	ProductEvent     ProductType = "event"
	ProductTransfer  ProductType = "transfer"
	ProductCarRental ProductType = "car_rental"
)

// TripType for transfer bookings
type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
)

// MoneyEpsilon is the rounding tolerance for summary and total invariants
var MoneyEpsilon = decimal.NewFromFloat(0.01)

// OptionSelection is one selected add-on on a cart line
type OptionSelection struct {
	OptionID string           `json:"option_id"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// TourBooking carries participant counts per age group
type TourBooking struct {
	ScheduleID string `json:"schedule_id"`
	Adults     int    `json:"adults"`
	Children   int    `json:"children"`
	Infants    int    `json:"infants"`
}

// Participants returns the total headcount on the booking
func (b *TourBooking) Participants() int {
	return b.Adults + b.Children + b.Infants
}

// EventBooking identifies a performance and the selected seats
type EventBooking struct {
	PerformanceID string   `json:"performance_id"`
	SeatIDs       []string `json:"seat_ids"`
}

// TransferBooking describes a point-to-point transfer leg (and optional return)
type TransferBooking struct {
	RouteID     string   `json:"route_id"`
	VehicleType string   `json:"vehicle_type"`
	TripType    TripType `json:"trip_type"`
	PickupTime  string   `json:"pickup_time"` // "HH:MM", local to the route
	ReturnDate  string   `json:"return_date,omitempty"`
	ReturnTime  string   `json:"return_time,omitempty"`
}

// CarRentalBooking carries driver and insurance details
type CarRentalBooking struct {
	DriverAge      int    `json:"driver_age"`
	LicenseNumber  string `json:"license_number"`
	InsuranceLevel string `json:"insurance_level"`
	PickupDate     string `json:"pickup_date"`
	DropoffDate    string `json:"dropoff_date"`
}

// CartItem is one cart line. Quantity is internal to the line; the line count
// is what counts against cart limits. Exactly one booking arm is set, matching
// ProductType.
type CartItem struct {
	ID           string          `json:"id"`
	ProductType  ProductType     `json:"product_type"`
	ProductID    string          `json:"product_id"`
	VariantID    string          `json:"variant_id,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OptionsTotal decimal.Decimal `json:"options_total"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Currency     string          `json:"currency"`
	BookingDate  string          `json:"booking_date"`
	BookingTime  string          `json:"booking_time,omitempty"`

	SelectedOptions []OptionSelection `json:"selected_options,omitempty"`

	Tour      *TourBooking      `json:"-"`
	Event     *EventBooking     `json:"-"`
	Transfer  *TransferBooking  `json:"-"`
	CarRental *CarRentalBooking `json:"-"`
}

// cartItemJSON is the wire shape: booking_data is a raw payload decoded into
// the arm selected by product_type.
type cartItemJSON struct {
	ID              string            `json:"id"`
	ProductType     ProductType       `json:"product_type"`
	ProductID       string            `json:"product_id"`
	VariantID       string            `json:"variant_id,omitempty"`
	Quantity        int               `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	OptionsTotal    decimal.Decimal   `json:"options_total"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	Currency        string            `json:"currency"`
	BookingDate     string            `json:"booking_date"`
	BookingTime     string            `json:"booking_time,omitempty"`
	SelectedOptions []OptionSelection `json:"selected_options,omitempty"`
	BookingData     json.RawMessage   `json:"booking_data,omitempty"`
}

// UnmarshalJSON validates the polymorphic booking payload at the boundary so
// downstream code never sees an untyped booking_data blob
func (ci *CartItem) UnmarshalJSON(data []byte) error {
	var raw cartItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*ci = CartItem{
		ID:              raw.ID,
		ProductType:     raw.ProductType,
		ProductID:       raw.ProductID,
		VariantID:       raw.VariantID,
		Quantity:        raw.Quantity,
		UnitPrice:       raw.UnitPrice,
		OptionsTotal:    raw.OptionsTotal,
		TotalPrice:      raw.TotalPrice,
		Currency:        raw.Currency,
		BookingDate:     raw.BookingDate,
		BookingTime:     raw.BookingTime,
		SelectedOptions: raw.SelectedOptions,
	}

	if len(raw.BookingData) == 0 {
		return fmt.Errorf("cart item %q: missing booking_data", raw.ID)
	}

	switch raw.ProductType {
	case ProductTour:
		ci.Tour = &TourBooking{}
		return json.Unmarshal(raw.BookingData, ci.Tour)
	case ProductEvent:
		ci.Event = &EventBooking{}
		return json.Unmarshal(raw.BookingData, ci.Event)
	case ProductTransfer:
		ci.Transfer = &TransferBooking{}
		return json.Unmarshal(raw.BookingData, ci.Transfer)
	case ProductCarRental:
		ci.CarRental = &CarRentalBooking{}
		return json.Unmarshal(raw.BookingData, ci.CarRental)
	default:
		return fmt.Errorf("cart item %q: unknown product_type %q", raw.ID, raw.ProductType)
	}
}

// MarshalJSON writes the active booking arm back out as booking_data
func (ci CartItem) MarshalJSON() ([]byte, error) {
	raw := cartItemJSON{
		ID:              ci.ID,
		ProductType:     ci.ProductType,
		ProductID:       ci.ProductID,
		VariantID:       ci.VariantID,
		Quantity:        ci.Quantity,
		UnitPrice:       ci.UnitPrice,
		OptionsTotal:    ci.OptionsTotal,
		TotalPrice:      ci.TotalPrice,
		Currency:        ci.Currency,
		BookingDate:     ci.BookingDate,
		BookingTime:     ci.BookingTime,
		SelectedOptions: ci.SelectedOptions,
	}

	var payload interface{}
	switch ci.ProductType {
	case ProductTour:
		payload = ci.Tour
	case ProductEvent:
		payload = ci.Event
	case ProductTransfer:
		payload = ci.Transfer
	case ProductCarRental:
		payload = ci.CarRental
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw.BookingData = data
	}

	return json.Marshal(raw)
}

// Validate checks the line-level invariants. Transfer lines are priced through
// a PricingBreakdown, so the unit*qty identity only applies to the other kinds.
func (ci *CartItem) Validate() error {
	if ci.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if ci.ProductType == ProductTransfer {
		return nil
	}

	expected := ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity))).Add(ci.OptionsTotal)
	if ci.TotalPrice.Sub(expected).Abs().GreaterThan(MoneyEpsilon) {
		return fmt.Errorf("%w: total_price %s != unit_price*quantity + options_total (%s)",
			ErrInvalidInput, ci.TotalPrice, expected)
	}
	return nil
}

// Cart holds the current items plus the backend-issued metadata that rides
// along with them
type Cart struct {
	Items      []CartItem   `json:"items"`
	Summary    *CartSummary `json:"summary,omitempty"`
	SessionKey string       `json:"session_key,omitempty"`
	ExpiresAt  int64        `json:"expires_at,omitempty"` // Unix timestamp
}

// CartSummary holds the authoritative totals. These always come from the
// backend; the client never re-derives them from the item list.
type CartSummary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	FeesTotal  decimal.Decimal `json:"fees_total"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
}

// Validate checks grand_total == subtotal + fees_total + tax_total within the
// rounding epsilon
func (s *CartSummary) Validate() error {
	expected := s.Subtotal.Add(s.FeesTotal).Add(s.TaxTotal)
	if s.GrandTotal.Sub(expected).Abs().GreaterThan(MoneyEpsilon) {
		return fmt.Errorf("%w: grand_total %s != %s", ErrInvalidInput, s.GrandTotal, expected)
	}
	return nil
}

// Format renders the grand total for display
func (s *CartSummary) Format() string {
	return fmt.Sprintf("%s %s", s.Currency, s.GrandTotal.StringFixed(2))
}

// UserType classifies the cart owner for limit purposes
type UserType string

const (
	UserGuest         UserType = "guest"
	UserAuthenticated UserType = "authenticated"
)

// CartLimits are the tiered line-count and value ceilings. Line count, not
// summed quantity, is what counts against MaxItems.
type CartLimits struct {
	MaxItems int             `json:"max_items"`
	MaxTotal decimal.Decimal `json:"max_total"`
	UserType UserType        `json:"user_type"`
}

// Limit tiers mirror the backend thresholds; the backend re-validates
// independently and wins on drift.
var (
	guestLimits = CartLimits{MaxItems: 3, MaxTotal: decimal.NewFromInt(500), UserType: UserGuest}
	authLimits  = CartLimits{MaxItems: 10, MaxTotal: decimal.NewFromInt(5000), UserType: UserAuthenticated}
)

// LimitsForUser returns the limit tier for the given user class
func LimitsForUser(isAuthenticated bool) CartLimits {
	if isAuthenticated {
		return authLimits
	}
	return guestLimits
}
