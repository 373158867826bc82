package services

import (
	"context"
	"log"
	"sync"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/models"
	"travel-booking-storefront/internal/session"

	"github.com/google/uuid"
)

// MergeStatus is the terminal state of one merge attempt
type MergeStatus string

const (
	MergeDone     MergeStatus = "done"
	MergeConflict MergeStatus = "done_with_conflict"
	MergeFailed   MergeStatus = "done_with_error"
)

// MergeOutcome is the structured result surfaced to the caller
type MergeOutcome struct {
	Status      MergeStatus            `json:"status"`
	MergedCount int                    `json:"merged_count,omitempty"`
	Conflicts   []models.MergeConflict `json:"conflicts,omitempty"`
	RedirectTo  string                 `json:"redirect_to,omitempty"`
	Message     string                 `json:"message,omitempty"`
}

// MergeGateway is the slice of the backend gateway the coordinator needs
type MergeGateway interface {
	MergeCart(ctx context.Context, sessionKey, attemptID string) (*gateway.MergeResponse, error)
}

// CartRefresher refreshes the authoritative cart state after a merge settles
type CartRefresher interface {
	RefreshCart(ctx context.Context) error
}

// MergeCoordinator drains a guest cart into the authenticated user's cart on
// login. The guest key is the only handle to the un-merged data: it survives
// every failure mode and is destroyed only on backend-confirmed success, so a
// merge happens at most once and failed attempts stay retryable.
type MergeCoordinator struct {
	mu        sync.Mutex
	gateway   MergeGateway
	store     session.Store
	refresher CartRefresher
}

// NewMergeCoordinator creates a merge coordinator
func NewMergeCoordinator(gw MergeGateway, store session.Store, refresher CartRefresher) *MergeCoordinator {
	return &MergeCoordinator{
		gateway:   gw,
		store:     store,
		refresher: refresher,
	}
}

// OnLogin runs once per login event. The mutex serializes the merge against
// the post-login refresh so the cart is never read mid-merge.
func (c *MergeCoordinator) OnLogin(ctx context.Context) *MergeOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessionKey, ok := c.store.GuestKey()
	if !ok {
		// nothing to merge
		return &MergeOutcome{Status: MergeDone}
	}

	// the attempt id lives in the session so HTTP retries of the same
	// outstanding merge replay it instead of minting a new one
	attemptID, ok := c.store.MergeAttemptID()
	if !ok {
		attemptID = uuid.New().String()
		if err := c.store.SetMergeAttemptID(attemptID); err != nil {
			log.Printf("failed to persist merge attempt id: %v", err)
		}
	}

	resp, err := c.gateway.MergeCart(ctx, sessionKey, attemptID)
	if err == nil {
		if clearErr := c.store.ClearMergeAttemptID(); clearErr != nil {
			log.Printf("failed to clear merge attempt id: %v", clearErr)
		}
		if clearErr := c.store.ClearGuestKey(); clearErr != nil {
			log.Printf("failed to clear guest session key after merge: %v", clearErr)
		}
		if refreshErr := c.refresher.RefreshCart(ctx); refreshErr != nil {
			log.Printf("post-merge cart refresh failed: %v", refreshErr)
		}
		return &MergeOutcome{Status: MergeDone, MergedCount: resp.MergedCount}
	}

	cartErr, isCartErr := models.AsCartError(err)
	if isCartErr {
		switch cartErr.Code {
		case models.CodeOverbookingConflicts:
			// retryable: the guest key stays until a merge succeeds
			return &MergeOutcome{
				Status:     MergeConflict,
				Conflicts:  cartErr.Conflicts,
				RedirectTo: cartErr.RedirectTo,
				Message:    cartErr.Message,
			}
		case models.CodeMergeLimitExceeded, models.CodeMergeTotalExceeded:
			// the cart must shrink before another merge can work, so the
			// next attempt is a fresh one
			if clearErr := c.store.ClearMergeAttemptID(); clearErr != nil {
				log.Printf("failed to clear merge attempt id: %v", clearErr)
			}
			return &MergeOutcome{
				Status:     MergeFailed,
				Message:    cartErr.Message,
				RedirectTo: "cart",
			}
		}
	}

	// unknown failure: keep the key, but still refresh so the UI is not stale
	log.Printf("cart merge failed: %v", err)
	if refreshErr := c.refresher.RefreshCart(ctx); refreshErr != nil {
		log.Printf("post-failure cart refresh failed: %v", refreshErr)
	}
	return &MergeOutcome{Status: MergeFailed, Message: err.Error()}
}
