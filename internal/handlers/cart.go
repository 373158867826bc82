package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/middleware"
	"travel-booking-storefront/internal/models"
	"travel-booking-storefront/internal/services"
	"travel-booking-storefront/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
)

// CartHandler handles cart state, pricing and merge requests
type CartHandler struct {
	gateway     *gateway.Client
	store       sessions.Store
	capacity    *services.CapacityValidator
	reconcilers *services.ReconcilerRegistry
}

// NewCartHandler creates a new cart handler
func NewCartHandler(
	gw *gateway.Client,
	store sessions.Store,
	capacity *services.CapacityValidator,
	reconcilers *services.ReconcilerRegistry,
) *CartHandler {
	return &CartHandler{
		gateway:     gw,
		store:       store,
		capacity:    capacity,
		reconcilers: reconcilers,
	}
}

// reconciler resolves this session's pricing reconciler
func (h *CartHandler) reconciler(w http.ResponseWriter, r *http.Request) (*services.PricingReconciler, *session.CookieStore, error) {
	cookies, err := session.NewCookieStore(h.store, r, w)
	if err != nil {
		return nil, nil, err
	}
	clientID, err := cookies.ClientID()
	if err != nil {
		return nil, nil, err
	}
	return h.reconcilers.For(clientID), cookies, nil
}

// cartService builds the per-request cart service backed by this request's
// session cookie
func (h *CartHandler) cartService(w http.ResponseWriter, r *http.Request) (*services.CartService, *session.CookieStore, error) {
	cookies, err := session.NewCookieStore(h.store, r, w)
	if err != nil {
		return nil, nil, err
	}
	user := middleware.GetUserFromContext(r.Context())
	return services.NewCartService(h.gateway, cookies, user != nil), cookies, nil
}

// GetCart returns the current cart items and summary
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, _, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cart.RefreshCart(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	summary, ok := cart.Summary()
	displayTotal := ""
	if ok {
		displayTotal = summary.Format()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"items":         cart.Items(),
		"summary":       summary,
		"display_total": displayTotal,
		"expires_at":    cart.ExpiresAt(),
	})
}

// AddItem adds one line to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item models.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	cart, _, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cart.AddItem(r.Context(), &item); err != nil {
		writeError(w, err)
		return
	}

	summary, _ := cart.Summary()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"items":   cart.Items(),
		"summary": summary,
	})
}

// UpdateItem applies a partial update to one cart line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var patch gateway.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	cart, _, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cart.UpdateItem(r.Context(), itemID, &patch); err != nil {
		writeError(w, err)
		return
	}

	summary, _ := cart.Summary()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"items":   cart.Items(),
		"summary": summary,
	})
}

// RemoveItem deletes one cart line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	cart, _, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cart.RemoveItem(r.Context(), itemID); err != nil {
		writeError(w, err)
		return
	}

	summary, _ := cart.Summary()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"items":   cart.Items(),
		"summary": summary,
	})
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, _, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cart.ClearCart(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"items":   []models.CartItem{},
	})
}

// pricingPreviewRequest carries the selections being priced plus the route
// data the storefront already holds for the product page
type pricingPreviewRequest struct {
	Item    models.CartItem         `json:"item"`
	Route   *models.TransferRoute   `json:"route"`
	Options []models.TransferOption `json:"options,omitempty"`
}

// PricingPreview returns an immediate local estimate and schedules a
// debounced backend dry run for the authoritative figure
func (h *CartHandler) PricingPreview(w http.ResponseWriter, r *http.Request) {
	var req pricingPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}
	if req.Item.Transfer == nil || req.Route == nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	var agent *services.AgentContext
	if user := middleware.GetUserFromContext(r.Context()); user != nil && user.IsAgent {
		agent = &services.AgentContext{
			AgentID:    user.ID,
			SavingsPct: decimal.NewFromFloat(user.SavingsPct),
		}
	}

	reconciler, cookies, err := h.reconciler(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	estimate, err := reconciler.LocalTransferPreview(
		req.Route, req.Item.Transfer, req.Item.SelectedOptions, req.Options, agent)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionKey, _ := cookies.GuestKey()
	reconciler.SelectionChanged(context.WithoutCancel(r.Context()), sessionKey, &req.Item)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"local_estimate": estimate,
	})
}

// PricingQuote returns the session's latest server-confirmed quote, if any
func (h *CartHandler) PricingQuote(w http.ResponseWriter, r *http.Request) {
	reconciler, _, err := h.reconciler(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	quote, ok := reconciler.ConfirmedPrice()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"confirmed": ok,
		"quote":     quote,
	})
}

// Checkout gates on a server-confirmed quote for this session before handing
// off to payment
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	reconciler, _, err := h.reconciler(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	quote, err := reconciler.CheckoutPrice()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"quote":   quote,
	})
}

// capacityCheckRequest carries one requested booking against a schedule
type capacityCheckRequest struct {
	Schedule  models.TourSchedule `json:"schedule"`
	ProductID string              `json:"product_id"`
	VariantID string              `json:"variant_id"`
	Requested int                 `json:"requested"`
}

// CheckCapacity validates a requested participant count against remaining
// schedule capacity
func (h *CartHandler) CheckCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	cookies, err := session.NewCookieStore(h.store, r, w)
	if err != nil {
		writeError(w, err)
		return
	}
	sessionKey, _ := cookies.GuestKey()
	isAuthenticated := middleware.GetUserFromContext(r.Context()) != nil
	if isAuthenticated {
		sessionKey = ""
	}

	if err := h.capacity.Validate(r.Context(), sessionKey, isAuthenticated,
		&req.Schedule, req.ProductID, req.VariantID, req.Requested); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// MergeCart drains the guest cart into the logged-in user's cart. Called by
// the auth flow right after login succeeds.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUserFromContext(r.Context()) == nil {
		writeError(w, models.ErrUnauthorized)
		return
	}

	cart, cookies, err := h.cartService(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	coordinator := services.NewMergeCoordinator(h.gateway, cookies, cart)
	outcome := coordinator.OnLogin(r.Context())

	status := http.StatusOK
	if outcome.Status == services.MergeConflict {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{
		"success": outcome.Status != services.MergeFailed,
		"merge":   outcome,
	})
}

// writeJSON renders a JSON response body with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps a core error onto the JSON error envelope
func writeError(w http.ResponseWriter, err error) {
	if ce, ok := models.AsCartError(err); ok {
		writeJSON(w, statusForCode(ce.Code), map[string]interface{}{
			"success":     false,
			"error":       ce.Code,
			"message":     ce.Message,
			"conflicts":   ce.Conflicts,
			"redirect_to": ce.RedirectTo,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrConnectivity):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNoPriceQuote):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": err.Error(),
	})
}

// statusForCode maps backend business error codes onto HTTP statuses
func statusForCode(code string) int {
	switch code {
	case models.CodeOverbookingConflicts, models.CodeInsufficientCapacity,
		models.CodeDuplicateBooking, models.CodeDuplicateCartItem:
		return http.StatusConflict
	case models.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case models.CodeGuestCartItemsLimit, models.CodeGuestCartTotalLimit,
		models.CodeCartItemsLimit, models.CodeCartTotalLimit,
		models.CodeMergeLimitExceeded, models.CodeMergeTotalExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
