// Package worker provides background job processing for PartsRoute.
package worker

import (
	"time"

	"github.com/partsroute/partsroute/internal/optimizer"
)

// DispatchRun is one vehicle run in a dispatch batch: a depot plus the
// delivery addresses assigned to a single driver.
type DispatchRun struct {
	// RunID identifies the run within the batch.
	RunID string `json:"run_id"`

	// Depot is the warehouse address the run starts and ends at.
	Depot string `json:"depot"`

	// Addresses are the delivery stops for this run.
	Addresses []optimizer.Address `json:"addresses"`

	// Options carries per-run optimization options.
	Options optimizer.Options `json:"options"`
}

// DispatchBatch groups the runs of a single dispatch request, typically one
// run per available vehicle.
type DispatchBatch struct {
	BatchID string        `json:"batch_id"`
	Runs    []DispatchRun `json:"runs"`
}

// DispatchConfig holds configuration for the dispatch job.
type DispatchConfig struct {
	// Concurrency is the number of runs optimized in parallel.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for optimizing a single run.
	// Default: 2 minutes
	Timeout time.Duration
}

// DefaultDispatchConfig returns the default dispatch configuration.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Concurrency: 3,
		Timeout:     2 * time.Minute,
	}
}

// TotalStops returns the total number of delivery addresses in the batch.
func (b DispatchBatch) TotalStops() int {
	total := 0
	for _, run := range b.Runs {
		total += len(run.Addresses)
	}
	return total
}
