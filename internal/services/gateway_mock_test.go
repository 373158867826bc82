package services

import (
	"context"
	"sync"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/models"
)

// fakeGateway is a scriptable CartGateway for service tests
type fakeGateway struct {
	mu sync.Mutex

	items      []models.CartItem
	summary    models.CartSummary
	sessionKey string
	expiresAt  int64

	addErr    error
	updateErr error
	removeErr error
	clearErr  error
	listErr   error
	mergeErr  error

	mergeResp    *gateway.MergeResponse
	capacityResp *gateway.CapacityResponse
	capacityErr  error

	dryRunFn func(item *models.CartItem) (*models.PricingBreakdown, error)

	listCalls     int
	summaryCalls  int
	addCalls      int
	updateCalls   int
	removeCalls   int
	clearCalls    int
	mergeCalls    int
	dryRunCalls   int
	capacityCalls int

	lastDryRunItem *models.CartItem
	lastMergeKey   string
	mergeAttempts  []string
}

func (f *fakeGateway) ListCart(ctx context.Context, sessionKey string) (*gateway.CartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := make([]models.CartItem, len(f.items))
	copy(items, f.items)
	return &gateway.CartResponse{Items: items, SessionKey: f.sessionKey, ExpiresAt: f.expiresAt}, nil
}

func (f *fakeGateway) GetSummary(ctx context.Context, sessionKey string) (*models.CartSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	summary := f.summary
	return &summary, nil
}

func (f *fakeGateway) AddItem(ctx context.Context, sessionKey string, item *models.CartItem) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	confirmed := *item
	if confirmed.ID == "" {
		confirmed.ID = "backend-id"
	}
	f.items = append(f.items, confirmed)
	return &confirmed, nil
}

func (f *fakeGateway) UpdateItem(ctx context.Context, sessionKey, itemID string, patch *gateway.ItemPatch) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.items {
		if f.items[i].ID == itemID {
			if patch.Quantity != nil {
				f.items[i].Quantity = *patch.Quantity
			}
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, models.ErrItemNotFound
}

func (f *fakeGateway) RemoveItem(ctx context.Context, sessionKey, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	if f.removeErr != nil {
		return f.removeErr
	}
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeGateway) ClearCart(ctx context.Context, sessionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.items = nil
	return nil
}

func (f *fakeGateway) MergeCart(ctx context.Context, sessionKey, attemptID string) (*gateway.MergeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeCalls++
	f.lastMergeKey = sessionKey
	f.mergeAttempts = append(f.mergeAttempts, attemptID)
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}
	if f.mergeResp != nil {
		return f.mergeResp, nil
	}
	return &gateway.MergeResponse{}, nil
}

func (f *fakeGateway) PriceDryRun(ctx context.Context, sessionKey string, item *models.CartItem) (*models.PricingBreakdown, error) {
	f.mu.Lock()
	f.dryRunCalls++
	f.lastDryRunItem = item
	fn := f.dryRunFn
	f.mu.Unlock()
	if fn != nil {
		return fn(item)
	}
	return &models.PricingBreakdown{}, nil
}

func (f *fakeGateway) CheckCapacity(ctx context.Context, sessionKey string, req *gateway.CapacityRequest) (*gateway.CapacityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacityCalls++
	if f.capacityErr != nil {
		return nil, f.capacityErr
	}
	if f.capacityResp != nil {
		return f.capacityResp, nil
	}
	return &gateway.CapacityResponse{Available: true, Remaining: 10}, nil
}
