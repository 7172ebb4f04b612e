package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// Publisher wraps events into envelopes and hands them to the transport.
// Publishing is best-effort from the caller's point of view: a commit
// that already happened is never rolled back because a notification
// could not be queued.
type Publisher struct {
	queue  QueueClient
	logger *logging.Logger
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(queue QueueClient, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Publish envelopes and sends one event for the aggregate.
func (p *Publisher) Publish(ctx context.Context, aggregate string, evt Event) error {
	if p == nil || p.queue == nil {
		return nil
	}
	env, err := NewEnvelope(aggregate, evt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	p.logger.Info("event published",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"aggregate", env.Aggregate,
	)
	return nil
}
