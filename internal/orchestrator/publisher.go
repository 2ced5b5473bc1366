package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/recipeshelf/import-service/internal/registry"
	"github.com/recipeshelf/import-service/shared/rabbitmq"
)

// Routing keys for terminal import events
const (
	RoutingKeyCompleted = "import.completed"
	RoutingKeyFailed    = "import.failed"
)

// Event is the terminal import event published for downstream consumers
type Event struct {
	JobID        string    `json:"job_id"`
	URL          string    `json:"url"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	ResultID     string    `json:"result_id,omitempty"`
	ResultTitle  string    `json:"result_title,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher emits terminal import events
type Publisher interface {
	PublishTerminal(ctx context.Context, event Event) error
}

// AMQPPublisher publishes terminal events to a RabbitMQ exchange
type AMQPPublisher struct {
	client *rabbitmq.Client
}

// NewAMQPPublisher wraps a connected RabbitMQ client
func NewAMQPPublisher(client *rabbitmq.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

// PublishTerminal publishes the event as JSON, routed by outcome
func (p *AMQPPublisher) PublishTerminal(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	routingKey := RoutingKeyCompleted
	if event.Status == string(registry.StatusError) {
		routingKey = RoutingKeyFailed
	}

	return p.client.PublishWithRetry(ctx, routingKey, body, "application/json")
}

// publishTerminal snapshots the job and emits its terminal event. Publish
// failures are logged, never surfaced to the job.
func (o *Orchestrator) publishTerminal(ctx context.Context, jobID string) {
	if o.publisher == nil {
		return
	}

	job := o.registry.Get(jobID)
	if job == nil {
		return
	}

	event := Event{
		JobID:        job.ID,
		URL:          job.URL,
		UserID:       job.UserID,
		Status:       string(job.Status),
		ResultID:     job.ResultID,
		ResultTitle:  job.ResultTitle,
		ErrorMessage: job.ErrorMessage,
		OccurredAt:   time.Now(),
	}

	if err := o.publisher.PublishTerminal(ctx, event); err != nil {
		o.logger.Warn("Failed to publish terminal import event",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}
