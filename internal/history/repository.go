package history

import "context"

// ListOptions contains options for listing route plans.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing route plans.
type ListResult struct {
	Items      []*RoutePlan
	NextCursor string
}

// Repository defines the interface for route plan persistence.
type Repository interface {
	// Get retrieves a route plan by ID.
	// Returns ErrPlanNotFound if no plan exists with that ID.
	Get(ctx context.Context, id string) (*RoutePlan, error)

	// List retrieves route plans, newest first, with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Create stores a new route plan.
	Create(ctx context.Context, plan *RoutePlan) error

	// Delete removes a route plan by ID.
	Delete(ctx context.Context, id string) error
}
