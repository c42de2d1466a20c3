package optimizer

import (
	"math"
	"strings"
	"testing"
)

func TestMetricsEstimator_FuelCost(t *testing.T) {
	m := NewMetricsEstimator(2.00, nil)

	tests := []struct {
		vehicle VehicleType
		km      float64
		want    float64
	}{
		{VehicleCar, 100, 16.0},        // 8 l/100km * 2.00
		{VehicleVan, 100, 22.0},        // 11 l/100km
		{VehicleTruck, 50, 18.0},       // 18 l/100km over 50 km
		{VehicleMotorcycle, 200, 18.0}, // 4.5 l/100km over 200 km
		{VehicleType("hovercraft"), 100, 22.0}, // unknown falls back to van
	}

	for _, tt := range tests {
		got := m.FuelCost(tt.km, tt.vehicle)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("FuelCost(%v, %s) = %v, want %v", tt.km, tt.vehicle, got, tt.want)
		}
	}
}

func TestMetricsEstimator_DefaultFuelPrice(t *testing.T) {
	m := NewMetricsEstimator(0, nil)
	got := m.FuelCost(100, VehicleCar)
	want := 8.0 * DefaultFuelPricePerLiter
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected default fuel price applied, got %v want %v", got, want)
	}
}

func TestMetricsEstimator_Efficiency(t *testing.T) {
	m := NewMetricsEstimator(0, nil)

	tests := []struct {
		name  string
		km    float64
		stops int
		want  float64
	}{
		{"compact route", 20, 10, 80},
		{"worst case", 100, 10, 0},
		{"beyond worst case clamps to zero", 500, 10, 0},
		{"zero distance clamps to hundred", 0, 5, 100},
		{"no stops", 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Efficiency(tt.km, tt.stops)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Efficiency(%v, %d) = %v, want %v", tt.km, tt.stops, got, tt.want)
			}
		})
	}
}

func TestMetricsEstimator_Warnings(t *testing.T) {
	m := NewMetricsEstimator(0, nil)

	t.Run("quiet route", func(t *testing.T) {
		totals := RouteTotals{DurationMinutes: 120, DistanceKm: 40}
		groups := []LocationGroup{
			{TotalOrders: 1, Addresses: []Address{{}}},
			{TotalOrders: 2, Addresses: []Address{{}, {}}},
		}
		if w := m.Warnings(totals, groups); len(w) != 0 {
			t.Errorf("expected no warnings, got %v", w)
		}
	})

	t.Run("estimated legs", func(t *testing.T) {
		totals := RouteTotals{DurationMinutes: 120, DistanceKm: 40, EstimatedLegs: 1}
		w := m.Warnings(totals, nil)
		if len(w) != 1 || w[0] != EstimatedLegsWarning {
			t.Errorf("expected the estimated-legs warning, got %v", w)
		}
	})

	t.Run("long duration and distance", func(t *testing.T) {
		totals := RouteTotals{DurationMinutes: 540, DistanceKm: 320}
		w := m.Warnings(totals, nil)
		if len(w) != 2 {
			t.Fatalf("expected 2 warnings, got %v", w)
		}
		if !strings.Contains(w[0], "8-hour") {
			t.Errorf("expected shift warning, got %q", w[0])
		}
		if !strings.Contains(w[1], "splitting") {
			t.Errorf("expected distance warning, got %q", w[1])
		}
	})

	t.Run("heavy stops and large runs", func(t *testing.T) {
		groups := make([]LocationGroup, 6)
		for i := range groups {
			groups[i] = LocationGroup{TotalOrders: 4, Addresses: make([]Address, 4)}
		}
		w := m.Warnings(RouteTotals{}, groups)

		var heavy, large bool
		for _, msg := range w {
			if strings.Contains(msg, "handling time") {
				heavy = true
			}
			if strings.Contains(msg, "second vehicle") {
				large = true
			}
		}
		if !heavy || !large {
			t.Errorf("expected heavy-stop and large-run warnings, got %v", w)
		}
	})

	t.Run("window dominated route", func(t *testing.T) {
		window := &TimeWindow{Start: "09:00", End: "12:00"}
		groups := []LocationGroup{
			{TotalOrders: 2, Addresses: []Address{{TimeWindow: window}, {TimeWindow: window}}},
			{TotalOrders: 1, Addresses: []Address{{}}},
		}
		w := m.Warnings(RouteTotals{}, groups)
		if len(w) != 1 || !strings.Contains(w[0], "time windows") {
			t.Errorf("expected window-dominance warning, got %v", w)
		}
	})
}
