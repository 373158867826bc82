package services

import (
	"fmt"

	"travel-booking-storefront/internal/models"

	"github.com/shopspring/decimal"
)

// LimitCheck is the result of a cart limit validation
type LimitCheck struct {
	Valid   bool
	Code    string
	Message string
}

// ValidateCartLimits decides whether adding one line worth incomingLineTotal
// is allowed for the current user class. It is pure and runs before any
// network call so the UI can reject instantly; the backend re-validates
// independently and is authoritative if the thresholds ever drift.
//
// Line count, not summed quantity, counts against the item ceiling.
func ValidateCartLimits(isAuthenticated bool, currentLineCount int, currentTotal, incomingLineTotal decimal.Decimal) LimitCheck {
	limits := models.LimitsForUser(isAuthenticated)

	if currentLineCount+1 > limits.MaxItems {
		code := models.CodeGuestCartItemsLimit
		if isAuthenticated {
			code = models.CodeCartItemsLimit
		}
		return LimitCheck{
			Code:    code,
			Message: fmt.Sprintf("cart cannot hold more than %d items", limits.MaxItems),
		}
	}

	if currentTotal.Add(incomingLineTotal).GreaterThan(limits.MaxTotal) {
		code := models.CodeGuestCartTotalLimit
		if isAuthenticated {
			code = models.CodeCartTotalLimit
		}
		return LimitCheck{
			Code:    code,
			Message: fmt.Sprintf("cart total cannot exceed %s", limits.MaxTotal.StringFixed(2)),
		}
	}

	return LimitCheck{Valid: true}
}

// Err converts a failed check into the typed core error; a passing check
// yields nil
func (c LimitCheck) Err() error {
	if c.Valid {
		return nil
	}
	return models.NewCartError(c.Code, c.Message)
}
