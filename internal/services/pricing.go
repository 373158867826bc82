package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"travel-booking-storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Surcharge percentages applied to a leg's base rate
var (
	midnightSurchargePct = decimal.NewFromFloat(0.05)
	peakSurchargePct     = decimal.NewFromFloat(0.10)
	hundred              = decimal.NewFromInt(100)
)

// PricingRates are the storefront's fee and tax rates. They mirror the
// backend's; the dry-run response wins whenever they disagree.
type PricingRates struct {
	FeeRate decimal.Decimal // on subtotal
	TaxRate decimal.Decimal // on subtotal + fees
}

// DefaultRates returns the 3% fee / 9% tax configuration
func DefaultRates() PricingRates {
	return PricingRates{
		FeeRate: decimal.NewFromFloat(0.03),
		TaxRate: decimal.NewFromFloat(0.09),
	}
}

// AgentContext is present when an agent books on a customer's behalf. The
// commission is reported alongside the price but never added to it.
type AgentContext struct {
	AgentID    string
	SavingsPct decimal.Decimal // percentage, e.g. 12 for 12%
}

// ClassifySurcharge maps a leg's local departure time onto its surcharge
// window: hours 22-23 and 0-6 are midnight, 7-9 and 17-19 are peak.
func ClassifySurcharge(bookingTime string) (models.SurchargeKind, error) {
	t, err := time.Parse("15:04", bookingTime)
	if err != nil {
		return models.SurchargeNone, fmt.Errorf("%w: bad booking time %q", models.ErrInvalidInput, bookingTime)
	}

	hour := t.Hour()
	switch {
	case hour >= 22 || hour <= 6:
		return models.SurchargeMidnight, nil
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		return models.SurchargePeak, nil
	default:
		return models.SurchargeNone, nil
	}
}

func surchargeAmount(base decimal.Decimal, kind models.SurchargeKind) decimal.Decimal {
	switch kind {
	case models.SurchargeMidnight:
		return base.Mul(midnightSurchargePct)
	case models.SurchargePeak:
		return base.Mul(peakSurchargePct)
	default:
		return decimal.Zero
	}
}

// resolveOptionPrice prefers the route's own option over the global catalog;
// the selection's embedded price is only a last resort.
func resolveOptionPrice(sel models.OptionSelection, route *models.TransferRoute, global []models.TransferOption) (decimal.Decimal, error) {
	if route != nil {
		for _, opt := range route.Options {
			if opt.ID == sel.OptionID {
				return opt.Price, nil
			}
		}
	}
	for _, opt := range global {
		if opt.ID == sel.OptionID {
			return opt.Price, nil
		}
	}
	if sel.Price != nil {
		return *sel.Price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown option %q", models.ErrInvalidInput, sel.OptionID)
}

// OptionsTotal sums price × quantity over the selected options
func OptionsTotal(selections []models.OptionSelection, route *models.TransferRoute, global []models.TransferOption) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, sel := range selections {
		price, err := resolveOptionPrice(sel, route, global)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(sel.Quantity))))
	}
	return total, nil
}

// ComputeTransferPricing builds the local transfer price preview. The
// breakdown satisfies
//
//	subtotal = base + outbound_surcharge + return_surcharge - round_trip_discount + options
//	grand    = subtotal + fees + tax
//
// where base covers every leg (doubled for round trips), each leg's surcharge
// is a percentage of the per-leg rate, and the round-trip discount is the
// route's configured percentage of the return leg's pre-discount price.
func ComputeTransferPricing(
	route *models.TransferRoute,
	booking *models.TransferBooking,
	selections []models.OptionSelection,
	global []models.TransferOption,
	rates PricingRates,
	agent *AgentContext,
) (*models.PricingBreakdown, error) {
	legRate, ok := route.BaseRate(booking.VehicleType)
	if !ok {
		return nil, fmt.Errorf("%w: route %s has no rate for vehicle %q",
			models.ErrInvalidInput, route.ID, booking.VehicleType)
	}

	outKind, err := ClassifySurcharge(booking.PickupTime)
	if err != nil {
		return nil, err
	}
	outboundSurcharge := surchargeAmount(legRate, outKind)

	basePrice := legRate
	returnSurcharge := decimal.Zero
	roundTripDiscount := decimal.Zero

	if booking.TripType == models.TripRoundTrip {
		basePrice = legRate.Mul(decimal.NewFromInt(2))

		retKind, err := ClassifySurcharge(booking.ReturnTime)
		if err != nil {
			return nil, err
		}
		returnSurcharge = surchargeAmount(legRate, retKind)

		returnLeg := legRate.Add(returnSurcharge)
		roundTripDiscount = returnLeg.Mul(route.RoundTripDiscountPct).Div(hundred)
	}

	optionsTotal, err := OptionsTotal(selections, route, global)
	if err != nil {
		return nil, err
	}

	subtotal := basePrice.
		Add(outboundSurcharge).
		Add(returnSurcharge).
		Sub(roundTripDiscount).
		Add(optionsTotal)

	fees := subtotal.Mul(rates.FeeRate).Round(2)
	tax := subtotal.Add(fees).Mul(rates.TaxRate).Round(2)

	breakdown := &models.PricingBreakdown{
		BasePrice:         basePrice,
		OutboundSurcharge: outboundSurcharge,
		ReturnSurcharge:   returnSurcharge,
		RoundTripDiscount: roundTripDiscount,
		OptionsTotal:      optionsTotal,
		Subtotal:          subtotal,
		FeesTotal:         fees,
		TaxTotal:          tax,
		GrandTotal:        subtotal.Add(fees).Add(tax),
		Currency:          route.Currency,
	}

	if agent != nil {
		breakdown.CommissionAmount = subtotal.Mul(agent.SavingsPct).Div(hundred).Round(2)
	}

	return breakdown, nil
}

// ComputeTourTotal prices a tour booking from the variant's age-group table.
// Infants are always free regardless of what the table says.
func ComputeTourTotal(variant *models.TourVariant, booking *models.TourBooking, optionsTotal decimal.Decimal) (decimal.Decimal, error) {
	adult, ok := variant.Pricing[models.AgeAdult]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: variant %s has no adult price", models.ErrInvalidInput, variant.ID)
	}
	child := variant.Pricing[models.AgeChild]

	total := adult.Mul(decimal.NewFromInt(int64(booking.Adults))).
		Add(child.Mul(decimal.NewFromInt(int64(booking.Children))))
	// infant contribution stays zero by definition
	return total.Add(optionsTotal), nil
}

// PricingGateway is the slice of the backend gateway the reconciler needs
type PricingGateway interface {
	PriceDryRun(ctx context.Context, sessionKey string, item *models.CartItem) (*models.PricingBreakdown, error)
}

// PricingReconciler produces a fast local preview and reconciles it against
// the backend's authoritative dry-run quote. The locally computed figure may
// be shown immediately as provisional, but checkout is gated on a
// server-confirmed quote, and a quote is discarded if the selections changed
// while it was in flight.
type PricingReconciler struct {
	gateway  PricingGateway
	debounce *Debouncer
	rates    PricingRates

	mu        sync.Mutex
	gen       uint64
	quote     *models.PricingBreakdown
	confirmed bool
	onQuote   func(*models.PricingBreakdown)
}

// NewPricingReconciler creates a reconciler debouncing dry-run calls by
// interval
func NewPricingReconciler(gateway PricingGateway, interval time.Duration, rates PricingRates) *PricingReconciler {
	return &PricingReconciler{
		gateway:  gateway,
		debounce: NewDebouncer(interval),
		rates:    rates,
	}
}

// OnQuote registers a callback invoked when a server quote is accepted
func (r *PricingReconciler) OnQuote(fn func(*models.PricingBreakdown)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onQuote = fn
}

// LocalTransferPreview computes the provisional client-side figure
func (r *PricingReconciler) LocalTransferPreview(
	route *models.TransferRoute,
	booking *models.TransferBooking,
	selections []models.OptionSelection,
	global []models.TransferOption,
	agent *AgentContext,
) (*models.PricingBreakdown, error) {
	return ComputeTransferPricing(route, booking, selections, global, r.rates, agent)
}

// SelectionChanged notes a pricing-relevant input change. Any pending or
// in-flight dry run for older selections is superseded; after the debounce
// interval a single dry run fires with the latest item state.
func (r *PricingReconciler) SelectionChanged(ctx context.Context, sessionKey string, item *models.CartItem) {
	r.mu.Lock()
	r.gen++
	myGen := r.gen
	r.confirmed = false
	r.mu.Unlock()

	r.debounce.Trigger(func() {
		quote, err := r.gateway.PriceDryRun(ctx, sessionKey, item)

		r.mu.Lock()
		defer r.mu.Unlock()
		if myGen != r.gen {
			// superseded while in flight
			return
		}
		if err != nil {
			log.Printf("pricing dry run failed: %v", err)
			return
		}
		r.quote = quote
		r.confirmed = true
		if r.onQuote != nil {
			r.onQuote(quote)
		}
	})
}

// ConfirmedPrice returns the current server-confirmed quote, if any
func (r *PricingReconciler) ConfirmedPrice() (*models.PricingBreakdown, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.confirmed {
		return nil, false
	}
	return r.quote, true
}

// CheckoutPrice is the checkout gate: it fails until the backend has
// confirmed a quote for the current selections
func (r *PricingReconciler) CheckoutPrice() (*models.PricingBreakdown, error) {
	quote, ok := r.ConfirmedPrice()
	if !ok {
		return nil, models.ErrNoPriceQuote
	}
	return quote, nil
}

// Stop cancels any pending dry run
func (r *PricingReconciler) Stop() {
	r.debounce.Stop()
}
