package models

import "errors"

// Common errors used throughout the storefront core
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrItemNotFound   = errors.New("cart item not found")
	ErrNoGuestSession = errors.New("no guest session")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrConnectivity   = errors.New("backend unreachable")
	ErrNoPriceQuote   = errors.New("no server-confirmed price")
)

// Backend error codes the core branches on. These are the behavioral surface;
// UI copy is translated elsewhere.
const (
	CodeOverbookingLimitExceeded = "OVERBOOKING_LIMIT_EXCEEDED"
	CodeOverbookingConflicts     = "OVERBOOKING_CONFLICTS"
	CodeDuplicateBooking         = "DUPLICATE_BOOKING"
	CodeDuplicateCartItem        = "DUPLICATE_CART_ITEM"
	CodeGuestCartItemsLimit      = "GUEST_CART_ITEMS_LIMIT_EXCEEDED"
	CodeGuestCartTotalLimit      = "GUEST_CART_TOTAL_LIMIT_EXCEEDED"
	CodeCartItemsLimit           = "CART_ITEMS_LIMIT_EXCEEDED"
	CodeCartTotalLimit           = "CART_TOTAL_LIMIT_EXCEEDED"
	CodeMergeLimitExceeded       = "MERGE_LIMIT_EXCEEDED"
	CodeMergeTotalExceeded       = "MERGE_TOTAL_EXCEEDED"
	CodeInsufficientCapacity     = "INSUFFICIENT_CAPACITY"
	CodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
)

// MergeConflict describes one guest line the backend could not attach
type MergeConflict struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// CartError is the typed failure arm of every core operation. A nil error is
// the success arm; nothing in the core panics across its public boundary.
type CartError struct {
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Retryable  bool            `json:"-"`
	Conflicts  []MergeConflict `json:"conflicts,omitempty"`
	RedirectTo string          `json:"redirect_to,omitempty"`
}

func (e *CartError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// NewCartError builds a terminal business-rule error
func NewCartError(code, message string) *CartError {
	return &CartError{Code: code, Message: message}
}

// AsCartError unwraps err into a *CartError if it is one
func AsCartError(err error) (*CartError, bool) {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
