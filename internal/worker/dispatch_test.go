package worker_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
	"github.com/partsroute/partsroute/internal/worker"
)

// newTestEngine returns an engine with no live providers, so every run is
// optimized through local estimation without network access.
func newTestEngine() *optimizer.Service {
	return optimizer.NewService(optimizer.ServiceConfig{
		FallbackSeed: 1,
		Logger:       zerolog.New(io.Discard),
	})
}

func testRun(id string, stops int) worker.DispatchRun {
	addresses := make([]optimizer.Address, stops)
	for i := range addresses {
		addresses[i] = optimizer.Address{
			ID:           fmt.Sprintf("%s-a%d", id, i),
			Text:         fmt.Sprintf("Teststraat %d, 1012 AB Amsterdam", i+1),
			OrderID:      fmt.Sprintf("%s-ord%d", id, i),
			CustomerName: "Garage Test",
		}
	}
	return worker.DispatchRun{
		RunID:     id,
		Depot:     "Hoofdmagazijn, Keienbergweg 100, Amsterdam",
		Addresses: addresses,
	}
}

func TestDefaultDispatchConfig(t *testing.T) {
	cfg := worker.DefaultDispatchConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestDispatchBatch_TotalStops(t *testing.T) {
	batch := worker.DispatchBatch{
		Runs: []worker.DispatchRun{
			testRun("r1", 3),
			testRun("r2", 2),
		},
	}

	assert.Equal(t, 5, batch.TotalStops())
}

func TestDispatchJob_Run(t *testing.T) {
	plans := history.NewInMemoryRepository()
	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Engine: newTestEngine(),
		Plans:  plans,
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-1",
		Runs: []worker.DispatchRun{
			testRun("r1", 2),
			testRun("r2", 3),
		},
	})

	assert.Equal(t, 2, result.TotalRuns)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.PlanIDs, 2)
	assert.Greater(t, result.Duration, time.Duration(0))

	stored, err := plans.List(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestDispatchJob_Run_InvalidRun(t *testing.T) {
	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Engine: newTestEngine(),
		Logger: zerolog.Nop(),
	})

	// A run without addresses fails validation and is reported as failed.
	result := job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-2",
		Runs: []worker.DispatchRun{
			testRun("good", 1),
			{RunID: "empty", Depot: "Hoofdmagazijn, Amsterdam"},
		},
	})

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "empty", result.Errors[0].RunID)
	assert.NotEmpty(t, result.Errors[0].Error)
}

func TestDispatchJob_Run_NoRepository(t *testing.T) {
	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Engine: newTestEngine(),
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-3",
		Runs:    []worker.DispatchRun{testRun("r1", 1)},
	})

	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, result.PlanIDs)
}

func TestDispatchJob_Run_WithConcurrency(t *testing.T) {
	runs := make([]worker.DispatchRun, 10)
	for i := range runs {
		runs[i] = testRun(fmt.Sprintf("r%d", i), 2)
	}

	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Config: worker.DispatchConfig{Concurrency: 3, Timeout: time.Minute},
		Engine: newTestEngine(),
		Plans:  history.NewInMemoryRepository(),
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-4",
		Runs:    runs,
	})

	assert.Equal(t, 10, result.TotalRuns)
	assert.Equal(t, 10, result.Successful)
	assert.Len(t, result.PlanIDs, 10)
}

func TestDispatchJob_GetMetrics(t *testing.T) {
	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Engine: newTestEngine(),
		Plans:  history.NewInMemoryRepository(),
		Logger: zerolog.Nop(),
	})

	_ = job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-5",
		Runs:    []worker.DispatchRun{testRun("r1", 1)},
	})

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalBatches)
	assert.Equal(t, int64(1), metrics.SuccessfulRuns)
	assert.Equal(t, int64(0), metrics.FailedRuns)
	assert.Equal(t, int64(1), metrics.StoredPlans)
	assert.NotZero(t, metrics.LastBatchAt)
	assert.Greater(t, metrics.LastBatchDuration, time.Duration(0))
}

func TestDispatchJob_MetricsSnapshot(t *testing.T) {
	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Engine: newTestEngine(),
		Logger: zerolog.Nop(),
	})

	_ = job.Run(context.Background(), worker.DispatchBatch{
		BatchID: "batch-6",
		Runs:    []worker.DispatchRun{testRun("r1", 1)},
	})

	snapshot := job.MetricsSnapshot()

	assert.Contains(t, snapshot, "total_batches")
	assert.Contains(t, snapshot, "successful_runs")
	assert.Contains(t, snapshot, "failed_runs")
	assert.Contains(t, snapshot, "last_batch_at")
	assert.Contains(t, snapshot, "last_batch_duration")
}

func TestDispatchJob_Run_ContextCancellation(t *testing.T) {
	runs := make([]worker.DispatchRun, 20)
	for i := range runs {
		runs[i] = testRun(fmt.Sprintf("r%d", i), 1)
	}

	job := worker.NewDispatchJob(worker.DispatchJobConfig{
		Config: worker.DispatchConfig{Concurrency: 1, Timeout: time.Second},
		Engine: newTestEngine(),
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx, worker.DispatchBatch{BatchID: "batch-7", Runs: runs})

	// All runs are accounted for even when the context is already cancelled.
	assert.NotNil(t, result)
	assert.Equal(t, 20, result.Successful+result.Failed)
}
