package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// PlanStore persists generated action plans so they can be fetched and
// re-rendered later without another backend call.
type PlanStore interface {
	// Save stores plan under a freshly generated ID and returns the stored record.
	Save(ctx context.Context, plan domain.ActionPlan) (domain.StoredPlan, error)

	// Load retrieves a stored plan.
	// Returns domain.ErrPlanNotFound if the ID does not exist.
	Load(ctx context.Context, id string) (domain.StoredPlan, error)

	// Delete removes a stored plan. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of the stored plans, oldest first.
	List(ctx context.Context) ([]string, error)
}
