package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/partsroute/partsroute/internal/optimizer"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatchJob      *DispatchJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	DispatchJob      *DispatchJob
	Logger           zerolog.Logger
}

// DispatchMessage represents a dispatch job message.
type DispatchMessage struct {
	JobType string        `json:"job_type"`
	BatchID string        `json:"batch_id,omitempty"`
	Runs    []DispatchRun `json:"runs,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatchJob:      cfg.DispatchJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var dispatchMsg DispatchMessage
	if err := json.Unmarshal(msg.Data, &dispatchMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch dispatchMsg.JobType {
	case "route_dispatch":
		err = h.handleRouteDispatch(ctx, dispatchMsg)
	case "health_check":
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", dispatchMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", dispatchMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleRouteDispatch(ctx context.Context, msg DispatchMessage) error {
	if len(msg.Runs) == 0 {
		return fmt.Errorf("dispatch message %q has no runs", msg.BatchID)
	}

	h.logger.Info().
		Str("batch_id", msg.BatchID).
		Int("runs", len(msg.Runs)).
		Msg("starting route dispatch")

	result := h.dispatchJob.Run(ctx, DispatchBatch{
		BatchID: msg.BatchID,
		Runs:    msg.Runs,
	})

	h.logger.Info().
		Str("batch_id", msg.BatchID).
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("route dispatch completed")

	// Consider it successful if more than half of the runs succeeded; the
	// publisher retries only wholesale failures.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many dispatch failures: %d/%d", result.Failed, result.TotalRuns)
	}

	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Optimize a single synthetic run without persisting it; the engine
	// degrades to local estimation when providers are down, so a failure
	// here means the engine itself is broken.
	healthCheckJob := NewDispatchJob(DispatchJobConfig{
		Config: DispatchConfig{Concurrency: 1, Timeout: 10 * time.Second},
		Engine: h.dispatchJob.engine,
		Logger: h.logger,
	})

	result := healthCheckJob.Run(ctx, DispatchBatch{
		BatchID: "health-check",
		Runs: []DispatchRun{
			{
				RunID: "health-check",
				Depot: "Hoofdmagazijn, Keienbergweg 100, Amsterdam",
				Addresses: []optimizer.Address{
					{
						ID:           "health-check",
						Text:         "Damrak 1, 1012 LG Amsterdam",
						OrderID:      "health-check",
						CustomerName: "health-check",
					},
				},
			},
		},
	})

	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
