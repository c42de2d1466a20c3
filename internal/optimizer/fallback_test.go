package optimizer

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestFallback() *FallbackOptimizer {
	return NewFallbackOptimizer(FallbackConfig{Seed: 42, Logger: zerolog.Nop()})
}

func fallbackAddr(id, text string, priority Priority) Address {
	return Address{
		ID:           id,
		Text:         text,
		OrderID:      "ord-" + id,
		CustomerName: "Klant " + id,
		Priority:     priority,
	}
}

func TestFallbackOptimizer_SequencesByArea(t *testing.T) {
	f := newTestFallback()
	depart := time.Now().Add(time.Hour)

	result := f.Optimize("Hoofdmagazijn", []Address{
		fallbackAddr("1", "Coolsingel 10, 3012 AD Rotterdam", ""),
		fallbackAddr("2", "Damrak 1, 1012 LG Amsterdam", ""),
		fallbackAddr("3", "Neude 11, 3512 AE Utrecht", ""),
	}, Options{}, depart)

	if len(result.Stops) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(result.Stops))
	}
	got := []string{
		result.Stops[0].Group.Address,
		result.Stops[1].Group.Address,
		result.Stops[2].Group.Address,
	}
	if !strings.Contains(got[0], "Amsterdam") || !strings.Contains(got[1], "Utrecht") || !strings.Contains(got[2], "Rotterdam") {
		t.Errorf("expected amsterdam, utrecht, rotterdam order, got %v", got)
	}
	if result.Source != SourceLocalEstimate {
		t.Errorf("expected local-estimate source, got %q", result.Source)
	}
}

func TestFallbackOptimizer_PostcodeRefinesOrder(t *testing.T) {
	f := newTestFallback()

	result := f.Optimize("Depot", []Address{
		fallbackAddr("1", "Overtoom 1, 1054 HN Amsterdam", ""),
		fallbackAddr("2", "Damrak 1, 1012 LG Amsterdam", ""),
	}, Options{}, time.Now())

	if !strings.Contains(result.Stops[0].Group.Address, "1012") {
		t.Errorf("expected lower postcode first within the same locality, got %q", result.Stops[0].Group.Address)
	}
}

func TestFallbackOptimizer_PriorityPullsForward(t *testing.T) {
	f := newTestFallback()

	result := f.Optimize("Depot", []Address{
		fallbackAddr("1", "Damrak 1, 1012 LG Amsterdam", ""),
		fallbackAddr("2", "Coolsingel 10, 3012 AD Rotterdam", PriorityHigh),
	}, Options{}, time.Now())

	// Rotterdam's base score is 50; the high-priority bonus of -100 beats
	// Amsterdam's 10.
	if !strings.Contains(result.Stops[0].Group.Address, "Rotterdam") {
		t.Errorf("expected high priority stop first, got %q", result.Stops[0].Group.Address)
	}
}

func TestFallbackOptimizer_MergesIdenticalAddresses(t *testing.T) {
	f := newTestFallback()

	result := f.Optimize("Depot", []Address{
		fallbackAddr("1", "Damrak 1, Amsterdam", ""),
		fallbackAddr("2", "damrak 1,  amsterdam", ""),
		fallbackAddr("3", "Neude 11, Utrecht", ""),
	}, Options{}, time.Now())

	if len(result.Stops) != 2 {
		t.Fatalf("expected case and whitespace insensitive merge to 2 stops, got %d", len(result.Stops))
	}
	if result.Stops[0].Group.TotalOrders != 2 {
		t.Errorf("expected merged stop to hold 2 orders, got %d", result.Stops[0].Group.TotalOrders)
	}
}

func TestFallbackOptimizer_EstimatesAreComplete(t *testing.T) {
	f := newTestFallback()
	depart := time.Now().Add(time.Hour).Truncate(time.Second)

	result := f.Optimize("Depot", []Address{
		fallbackAddr("1", "Damrak 1, Amsterdam", ""),
		fallbackAddr("2", "Neude 11, Utrecht", ""),
	}, Options{VehicleType: VehicleCar}, depart)

	prevTime, prevKm := 0.0, 0.0
	for _, s := range result.Stops {
		if !s.Estimated {
			t.Errorf("stop %d not flagged estimated", s.Order)
		}
		if s.Group.Coordinate != nil {
			t.Errorf("stop %d carries a coordinate without geocoding", s.Order)
		}
		if s.TravelTimeMinutes <= 0 || s.TravelDistanceKm <= 0 {
			t.Errorf("stop %d has non-positive leg values: %+v", s.Order, s)
		}
		if s.CumulativeTimeMinutes < prevTime || s.CumulativeDistanceKm < prevKm {
			t.Errorf("cumulative values decreased at stop %d", s.Order)
		}
		if !s.EstimatedArrival.After(depart) {
			t.Errorf("stop %d arrival not after departure", s.Order)
		}
		prevTime, prevKm = s.CumulativeTimeMinutes, s.CumulativeDistanceKm
	}

	// Totals include a return leg beyond the last stop's cumulatives.
	last := result.Stops[len(result.Stops)-1]
	if result.TotalDistanceKm <= last.CumulativeDistanceKm {
		t.Error("expected total distance to include a return leg")
	}
	if result.FuelCostEstimate <= 0 {
		t.Error("expected a positive fuel cost estimate")
	}
	if result.RouteEfficiency < 0 || result.RouteEfficiency > 100 {
		t.Errorf("efficiency out of range: %v", result.RouteEfficiency)
	}
}

func TestFallbackOptimizer_AlwaysCarriesEstimationWarning(t *testing.T) {
	f := newTestFallback()

	result := f.Optimize("Depot", []Address{fallbackAddr("1", "Damrak 1, Amsterdam", "")}, Options{}, time.Now())

	if len(result.Warnings) == 0 || result.Warnings[0] != FallbackWarning {
		t.Errorf("expected the estimation warning first, got %v", result.Warnings)
	}
}

func TestFallbackOptimizer_DeterministicWithFixedSeed(t *testing.T) {
	addresses := []Address{
		fallbackAddr("1", "Damrak 1, Amsterdam", ""),
		fallbackAddr("2", "Coolsingel 10, Rotterdam", ""),
	}
	depart := time.Now().Truncate(time.Second)

	a := NewFallbackOptimizer(FallbackConfig{Seed: 7, Logger: zerolog.Nop()})
	b := NewFallbackOptimizer(FallbackConfig{Seed: 7, Logger: zerolog.Nop()})

	ra := a.Optimize("Depot", addresses, Options{}, depart)
	rb := b.Optimize("Depot", addresses, Options{}, depart)

	if ra.TotalDistanceKm != rb.TotalDistanceKm || ra.TotalDurationMinutes != rb.TotalDurationMinutes {
		t.Errorf("expected identical estimates for identical seeds, got %v/%v vs %v/%v",
			ra.TotalDistanceKm, ra.TotalDurationMinutes, rb.TotalDistanceKm, rb.TotalDurationMinutes)
	}
}
