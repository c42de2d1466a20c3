package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partsroute/partsroute/internal/optimizer"
)

func testPlan(createdAt time.Time) *RoutePlan {
	return &RoutePlan{
		ID:    uuid.NewString(),
		Depot: "Hoofdmagazijn, Amsterdam",
		Addresses: []optimizer.Address{
			{ID: "1", Text: "Damrak 1, Amsterdam", OrderID: "ord-1", CustomerName: "Jansen Auto"},
		},
		Options: optimizer.Options{VehicleType: optimizer.VehicleVan},
		Result: &optimizer.Result{
			TotalDistanceKm: 42,
			Source:          optimizer.SourceHeuristic,
		},
		Source:    optimizer.SourceHeuristic,
		CreatedAt: createdAt,
	}
}

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	plan := testPlan(time.Now())
	if err := repo.Create(ctx, plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Depot != plan.Depot || got.Result.TotalDistanceKm != 42 {
		t.Errorf("stored plan mismatch: %+v", got)
	}

	// Mutating the returned copy must not affect the stored plan.
	got.Depot = "elders"
	again, _ := repo.Get(ctx, plan.ID)
	if again.Depot != plan.Depot {
		t.Error("expected repository to return copies")
	}
}

func TestInMemoryRepository_GetMissing(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ListNewestFirstWithPagination(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 5)
	for i := 0; i < 5; i++ {
		p := testPlan(base.Add(time.Duration(i) * time.Minute))
		p.Depot = fmt.Sprintf("depot-%d", i)
		ids[i] = p.ID
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page, err := repo.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.Items[0].Depot != "depot-4" {
		t.Errorf("expected newest plan first, got %q", page.Items[0].Depot)
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	next, err := repo.List(ctx, ListOptions{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Items) != 2 || next.Items[0].Depot != "depot-2" {
		t.Errorf("expected the following page, got %+v", next.Items)
	}
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	plan := testPlan(time.Now())
	if err := repo.Create(ctx, plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.Delete(ctx, plan.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Get(ctx, plan.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, plan.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound for double delete, got %v", err)
	}
}
