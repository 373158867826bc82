package services

import (
	"context"
	"fmt"

	"travel-booking-storefront/internal/gateway"
	"travel-booking-storefront/internal/models"
)

// CapacityGateway is the slice of the backend gateway the validator needs
type CapacityGateway interface {
	CheckCapacity(ctx context.Context, sessionKey string, req *gateway.CapacityRequest) (*gateway.CapacityResponse, error)
}

// CapacityValidator checks requested participant counts against a schedule's
// per-variant capacity. The local check uses already-fetched numbers; for
// authenticated users an authoritative backend check follows, because
// concurrent bookings can invalidate the cached capacity at any time.
type CapacityValidator struct {
	gateway CapacityGateway
}

// NewCapacityValidator creates a capacity validator
func NewCapacityValidator(gw CapacityGateway) *CapacityValidator {
	return &CapacityValidator{gateway: gw}
}

// ValidateLocal checks requested against the schedule's cached capacity map
func (v *CapacityValidator) ValidateLocal(schedule *models.TourSchedule, variantID string, requested int) error {
	if requested < 1 {
		return fmt.Errorf("%w: requested count must be at least 1", models.ErrInvalidInput)
	}

	remaining, ok := schedule.Capacity[variantID]
	if !ok {
		return models.NewCartError(models.CodeInsufficientCapacity,
			fmt.Sprintf("no capacity configured for variant %s", variantID))
	}
	if requested > remaining {
		return models.NewCartError(models.CodeInsufficientCapacity,
			fmt.Sprintf("only %d seats remaining", remaining))
	}
	return nil
}

// Validate runs the fast local check, then the authoritative backend check
// for authenticated users
func (v *CapacityValidator) Validate(
	ctx context.Context,
	sessionKey string,
	isAuthenticated bool,
	schedule *models.TourSchedule,
	productID, variantID string,
	requested int,
) error {
	if err := v.ValidateLocal(schedule, variantID, requested); err != nil {
		return err
	}

	if !isAuthenticated {
		return nil
	}

	resp, err := v.gateway.CheckCapacity(ctx, sessionKey, &gateway.CapacityRequest{
		ProductID:  productID,
		VariantID:  variantID,
		ScheduleID: schedule.ID,
		Requested:  requested,
	})
	if err != nil {
		return err
	}
	if !resp.Available {
		return models.NewCartError(models.CodeInsufficientCapacity,
			fmt.Sprintf("only %d seats remaining", resp.Remaining))
	}
	return nil
}
