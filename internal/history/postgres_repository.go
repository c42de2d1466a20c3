package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partsroute/partsroute/internal/optimizer"
)

// PostgresRepository is a PostgreSQL implementation of Repository. Addresses,
// options, and the optimized result are stored as JSONB documents.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL route plan repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a route plan by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*RoutePlan, error) {
	query := `
		SELECT id, depot, addresses, options, result, source, created_at
		FROM route_plans
		WHERE id = $1
	`

	var (
		plan          RoutePlan
		addressesJSON []byte
		optionsJSON   []byte
		resultJSON    []byte
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&plan.ID,
		&plan.Depot,
		&addressesJSON,
		&optionsJSON,
		&resultJSON,
		&plan.Source,
		&plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	if err := unpackPlan(&plan, addressesJSON, optionsJSON, resultJSON); err != nil {
		return nil, err
	}

	return &plan, nil
}

// List retrieves route plans, newest first, with pagination.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `
		SELECT id, depot, addresses, options, result, source, created_at
		FROM route_plans
		WHERE ($1 = '' OR created_at < (SELECT created_at FROM route_plans WHERE id = $1))
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, opts.Cursor, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*RoutePlan
	for rows.Next() {
		var (
			plan          RoutePlan
			addressesJSON []byte
			optionsJSON   []byte
			resultJSON    []byte
		)
		err := rows.Scan(
			&plan.ID,
			&plan.Depot,
			&addressesJSON,
			&optionsJSON,
			&resultJSON,
			&plan.Source,
			&plan.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := unpackPlan(&plan, addressesJSON, optionsJSON, resultJSON); err != nil {
			return nil, err
		}
		plans = append(plans, &plan)
	}

	if err := rows.Err(); err != nil {
		return nil, err
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
func (r *PostgresRepository) Create(ctx context.Context, plan *RoutePlan) error {
	addressesJSON, err := json.Marshal(plan.Addresses)
	if err != nil {
		return fmt.Errorf("marshaling addresses: %w", err)
	}
	optionsJSON, err := json.Marshal(plan.Options)
	if err != nil {
		return fmt.Errorf("marshaling options: %w", err)
	}
	resultJSON, err := json.Marshal(plan.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	query := `
		INSERT INTO route_plans (id, depot, addresses, options, result, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		plan.ID,
		plan.Depot,
		addressesJSON,
		optionsJSON,
		resultJSON,
		plan.Source,
		plan.CreatedAt,
	)
	return err
}

// Delete removes a route plan by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM route_plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func unpackPlan(plan *RoutePlan, addressesJSON, optionsJSON, resultJSON []byte) error {
	if err := json.Unmarshal(addressesJSON, &plan.Addresses); err != nil {
		return fmt.Errorf("unmarshaling addresses: %w", err)
	}
	if err := json.Unmarshal(optionsJSON, &plan.Options); err != nil {
		return fmt.Errorf("unmarshaling options: %w", err)
	}
	plan.Result = &optimizer.Result{}
	if err := json.Unmarshal(resultJSON, plan.Result); err != nil {
		return fmt.Errorf("unmarshaling result: %w", err)
	}
	return nil
}
