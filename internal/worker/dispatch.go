package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/history"
	"github.com/partsroute/partsroute/internal/optimizer"
)

// DispatchJob optimizes the runs of a dispatch batch and persists the
// resulting route plans.
type DispatchJob struct {
	config DispatchConfig
	engine *optimizer.Service
	plans  history.Repository
	logger zerolog.Logger

	metrics *DispatchMetrics
}

// DispatchMetrics tracks dispatch job statistics.
type DispatchMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalBatches   int64
	SuccessfulRuns int64
	FailedRuns     int64
	StoredPlans    int64

	// Timings
	LastBatchAt       time.Time
	LastBatchDuration time.Duration
	TotalDuration     time.Duration
}

// DispatchJobConfig holds configuration for creating a DispatchJob.
type DispatchJobConfig struct {
	Config DispatchConfig
	Engine *optimizer.Service

	// Plans is optional; without it results are computed but not stored.
	Plans  history.Repository
	Logger zerolog.Logger
}

// NewDispatchJob creates a new dispatch job processor.
func NewDispatchJob(cfg DispatchJobConfig) *DispatchJob {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultDispatchConfig().Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultDispatchConfig().Timeout
	}

	return &DispatchJob{
		config:  config,
		engine:  cfg.Engine,
		plans:   cfg.Plans,
		logger:  cfg.Logger,
		metrics: &DispatchMetrics{},
	}
}

// DispatchResult contains the result of processing one batch.
type DispatchResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	TotalRuns int

	Successful int
	Failed     int
	Errors     []DispatchError

	// PlanIDs are the stored plan IDs for successful runs.
	PlanIDs []string
}

// DispatchError represents a failed run within a batch.
type DispatchError struct {
	RunID string
	Error string
}

// Run optimizes every run in the batch with bounded concurrency.
func (j *DispatchJob) Run(ctx context.Context, batch DispatchBatch) *DispatchResult {
	startTime := time.Now()
	result := &DispatchResult{
		StartTime: startTime,
		TotalRuns: len(batch.Runs),
	}

	j.logger.Info().
		Str("batch_id", batch.BatchID).
		Int("total_runs", result.TotalRuns).
		Int("total_stops", batch.TotalStops()).
		Int("concurrency", j.config.Concurrency).
		Msg("starting dispatch batch")

	runsChan := make(chan DispatchRun, len(batch.Runs))
	resultsChan := make(chan runResult, len(batch.Runs))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.dispatchWorker(ctx, runsChan, resultsChan)
		}()
	}

	for _, run := range batch.Runs {
		runsChan <- run
	}
	close(runsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for rr := range resultsChan {
		if rr.err != "" {
			result.Failed++
			result.Errors = append(result.Errors, DispatchError{RunID: rr.runID, Error: rr.err})
			continue
		}
		result.Successful++
		if rr.planID != "" {
			result.PlanIDs = append(result.PlanIDs, rr.planID)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Str("batch_id", batch.BatchID).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("dispatch batch completed")

	return result
}

type runResult struct {
	runID  string
	planID string
	err    string
}

func (j *DispatchJob) dispatchWorker(ctx context.Context, runs <-chan DispatchRun, results chan<- runResult) {
	for run := range runs {
		select {
		case <-ctx.Done():
			results <- runResult{runID: run.RunID, err: ctx.Err().Error()}
		default:
			results <- j.processRun(ctx, run)
		}
	}
}

func (j *DispatchJob) processRun(ctx context.Context, run DispatchRun) runResult {
	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result, err := j.engine.OptimizeRoute(runCtx, run.Depot, run.Addresses, run.Options)
	if err != nil {
		return runResult{runID: run.RunID, err: err.Error()}
	}

	rr := runResult{runID: run.RunID}
	if j.plans != nil {
		plan := &history.RoutePlan{
			ID:        uuid.NewString(),
			Depot:     run.Depot,
			Addresses: run.Addresses,
			Options:   run.Options,
			Result:    result,
			Source:    result.Source,
			CreatedAt: time.Now(),
		}
		if err := j.plans.Create(runCtx, plan); err != nil {
			j.logger.Error().Err(err).
				Str("run_id", run.RunID).
				Msg("failed to store route plan")
		} else {
			rr.planID = plan.ID
			j.addStoredPlan()
		}
	}

	j.logger.Debug().
		Str("run_id", run.RunID).
		Str("source", result.Source).
		Int("stops", len(result.Stops)).
		Float64("total_km", result.TotalDistanceKm).
		Msg("run optimized")

	return rr
}

func (j *DispatchJob) addStoredPlan() {
	j.metrics.mu.Lock()
	j.metrics.StoredPlans++
	j.metrics.mu.Unlock()
}

func (j *DispatchJob) updateMetrics(result *DispatchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalBatches++
	j.metrics.SuccessfulRuns += int64(result.Successful)
	j.metrics.FailedRuns += int64(result.Failed)
	j.metrics.LastBatchAt = result.EndTime
	j.metrics.LastBatchDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *DispatchJob) GetMetrics() DispatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return DispatchMetrics{
		TotalBatches:      j.metrics.TotalBatches,
		SuccessfulRuns:    j.metrics.SuccessfulRuns,
		FailedRuns:        j.metrics.FailedRuns,
		StoredPlans:       j.metrics.StoredPlans,
		LastBatchAt:       j.metrics.LastBatchAt,
		LastBatchDuration: j.metrics.LastBatchDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *DispatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_batches":       m.TotalBatches,
		"successful_runs":     m.SuccessfulRuns,
		"failed_runs":         m.FailedRuns,
		"stored_plans":        m.StoredPlans,
		"last_batch_at":       m.LastBatchAt,
		"last_batch_duration": m.LastBatchDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
