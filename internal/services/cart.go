package services

import (
	"context"
	"log"
	"sync"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/models"
	"travel-booking-storefront/internal/session"

	"github.com/shopspring/decimal"
)

// CartService is the canonical client-side cart state. Every mutation runs
// limit validation first, then round-trips through the backend gateway, then
// refreshes the item list and summary so money totals always come from the
// backend. UI layers read only from this service.
type CartService struct {
	mu      sync.RWMutex
	gateway CartGateway
	store   session.Store
	auth    bool
	cart    models.Cart
}

// NewCartService creates a cart service seeded from the session's last
// snapshot. isAuthenticated selects the limit tier and whether guest session
// keys are tracked.
func NewCartService(gw CartGateway, store session.Store, isAuthenticated bool) *CartService {
	s := &CartService{
		gateway: gw,
		store:   store,
		auth:    isAuthenticated,
	}
	if cart, ok := store.LoadCart(); ok {
		s.cart = *cart
	}
	return s
}

func (s *CartService) sessionKey() string {
	if s.auth {
		return ""
	}
	key, _ := s.store.GuestKey()
	return key
}

// localTotal sums the line totals of the current snapshot. Used only for
// limit pre-checks, never shown as a price.
func (s *CartService) localTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.cart.Items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// AddItem validates the line against the limit tier before any network call,
// adds it through the backend, folds in the confirmed line, and refreshes
func (s *CartService) AddItem(ctx context.Context, item *models.CartItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	check := ValidateCartLimits(s.auth, len(s.cart.Items), s.localTotal(), item.TotalPrice)
	s.mu.Unlock()
	if err := check.Err(); err != nil {
		return err
	}

	confirmed, err := s.gateway.AddItem(ctx, s.sessionKey(), item)
	if err != nil {
		return err
	}

	// tentative phase: the confirmed line replaces any optimistic local copy
	s.mu.Lock()
	replaced := false
	for i := range s.cart.Items {
		if s.cart.Items[i].ID == confirmed.ID {
			s.cart.Items[i] = *confirmed
			replaced = true
			break
		}
	}
	if !replaced {
		s.cart.Items = append(s.cart.Items, *confirmed)
	}
	s.mu.Unlock()

	return s.RefreshCart(ctx)
}

// UpdateItem partially updates a line, then refreshes
func (s *CartService) UpdateItem(ctx context.Context, itemID string, patch *gateway.ItemPatch) error {
	if _, ok := s.GetItemByID(itemID); !ok {
		return models.ErrItemNotFound
	}

	updated, err := s.gateway.UpdateItem(ctx, s.sessionKey(), itemID, patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.cart.Items {
		if s.cart.Items[i].ID == updated.ID {
			s.cart.Items[i] = *updated
			break
		}
	}
	s.mu.Unlock()

	return s.RefreshCart(ctx)
}

// RemoveItem deletes a line, then refreshes
func (s *CartService) RemoveItem(ctx context.Context, itemID string) error {
	if _, ok := s.GetItemByID(itemID); !ok {
		return models.ErrItemNotFound
	}

	if err := s.gateway.RemoveItem(ctx, s.sessionKey(), itemID); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.cart.Items {
		if s.cart.Items[i].ID == itemID {
			s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return s.RefreshCart(ctx)
}

// ClearCart empties the cart, then refreshes
func (s *CartService) ClearCart(ctx context.Context) error {
	if err := s.gateway.ClearCart(ctx, s.sessionKey()); err != nil {
		return err
	}

	s.mu.Lock()
	s.cart.Items = nil
	s.cart.Summary = nil
	s.mu.Unlock()

	return s.RefreshCart(ctx)
}

// RefreshCart fetches the item list and the authoritative summary. This is
// the single reconciliation point: it is idempotent, and it persists any
// backend-issued guest session identifier so the client learns the key before
// any login happens.
func (s *CartService) RefreshCart(ctx context.Context) error {
	key := s.sessionKey()

	resp, err := s.gateway.ListCart(ctx, key)
	if err != nil {
		return err
	}

	summary, err := s.gateway.GetSummary(ctx, key)
	if err != nil {
		return err
	}
	if err := summary.Validate(); err != nil {
		log.Printf("backend summary failed invariant check: %v", err)
	}

	s.mu.Lock()
	s.cart = models.Cart{
		Items:      resp.Items,
		Summary:    summary,
		SessionKey: resp.SessionKey,
		ExpiresAt:  resp.ExpiresAt,
	}
	snapshot := s.cart
	s.mu.Unlock()

	if !s.auth && resp.SessionKey != "" {
		if err := s.store.SetGuestKey(resp.SessionKey); err != nil {
			log.Printf("failed to persist guest session key: %v", err)
		}
	}

	if err := s.store.SaveCart(&snapshot); err != nil {
		log.Printf("failed to persist cart snapshot: %v", err)
	}

	return nil
}

// GetItemByID is a pure local lookup
func (s *CartService) GetItemByID(itemID string) (*models.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.cart.Items {
		if s.cart.Items[i].ID == itemID {
			item := s.cart.Items[i]
			return &item, true
		}
	}
	return nil, false
}

// IsInCart reports whether a product (optionally narrowed to a variant) has a
// line in the cart. Pure local lookup, no network.
func (s *CartService) IsInCart(productID string, variantID ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.cart.Items {
		if item.ProductID != productID {
			continue
		}
		if len(variantID) > 0 && variantID[0] != "" && item.VariantID != variantID[0] {
			continue
		}
		return true
	}
	return false
}

// Items returns a copy of the current lines
func (s *CartService) Items() []models.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.CartItem, len(s.cart.Items))
	copy(items, s.cart.Items)
	return items
}

// Summary returns the last authoritative totals, if any
func (s *CartService) Summary() (*models.CartSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cart.Summary == nil {
		return nil, false
	}
	summary := *s.cart.Summary
	return &summary, true
}

// ExpiresAt returns the backend-issued cart expiry, zero when absent
func (s *CartService) ExpiresAt() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ExpiresAt
}
