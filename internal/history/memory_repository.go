package history

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	plans map[string]*RoutePlan
}

// NewInMemoryRepository creates a new in-memory route plan repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		plans: make(map[string]*RoutePlan),
	}
}

// Get retrieves a route plan by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*RoutePlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}

	// Return a copy
	cpy := *p
	return &cpy, nil
}

// List retrieves route plans, newest first, with pagination.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make([]*RoutePlan, 0, len(r.plans))
	for _, p := range r.plans {
		cpy := *p
		plans = append(plans, &cpy)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	if opts.Cursor != "" {
		for i, p := range plans {
			if p.ID == opts.Cursor {
				plans = plans[i+1:]
				break
			}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	result := &ListResult{
		Items: plans,
	}

	if len(plans) > limit {
		result.Items = plans[:limit]
		result.NextCursor = plans[limit-1].ID
	}

	return result, nil
}

// Create stores a new route plan.
func (r *InMemoryRepository) Create(_ context.Context, plan *RoutePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *plan
	r.plans[plan.ID] = &cpy
	return nil
}

// Delete removes a route plan by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plans[id]; !ok {
		return ErrPlanNotFound
	}
	delete(r.plans, id)
	return nil
}
