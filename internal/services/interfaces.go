package services

import (
	"context"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/models"
)

// CartGateway is the backend boundary the cart core mutates through.
// *gateway.Client is the production implementation.
type CartGateway interface {
	ListCart(ctx context.Context, sessionKey string) (*gateway.CartResponse, error)
	GetSummary(ctx context.Context, sessionKey string) (*models.CartSummary, error)
	AddItem(ctx context.Context, sessionKey string, item *models.CartItem) (*models.CartItem, error)
	UpdateItem(ctx context.Context, sessionKey, itemID string, patch *gateway.ItemPatch) (*models.CartItem, error)
	RemoveItem(ctx context.Context, sessionKey, itemID string) error
	ClearCart(ctx context.Context, sessionKey string) error
	MergeCart(ctx context.Context, sessionKey, attemptID string) (*gateway.MergeResponse, error)
	PriceDryRun(ctx context.Context, sessionKey string, item *models.CartItem) (*models.PricingBreakdown, error)
	CheckCapacity(ctx context.Context, sessionKey string, req *gateway.CapacityRequest) (*gateway.CapacityResponse, error)
}
