// Package notifier consumes scheduling events off the queue and turns
// them into member notifications. It runs either as its own process or
// inline next to the API when the in-memory queue is in use.
package notifier

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/carelink-health/agenda-platform/internal/events"
	"github.com/carelink-health/agenda-platform/internal/groups"
	"github.com/carelink-health/agenda-platform/internal/notify"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

type memberLister interface {
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]groups.Member, error)
}

type noticeSender interface {
	SendCancellation(ctx context.Context, members []groups.Member, notice notify.CancellationNotice) error
	SendConsultationStarted(ctx context.Context, members []groups.Member, notice notify.StartedNotice) error
}

// Worker drains the event queue and fans notifications out to group
// members.
type Worker struct {
	queue       events.QueueClient
	members     memberLister
	sender      noticeSender
	logger      *logging.Logger
	batchSize   int
	waitSeconds int
}

// New creates a notification worker.
func New(queue events.QueueClient, members memberLister, sender noticeSender, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("notifier: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:       queue,
		members:     members,
		sender:      sender,
		logger:      logger,
		batchSize:   10,
		waitSeconds: 10,
	}
}

// WithWaitSeconds overrides the long-poll wait.
func (w *Worker) WithWaitSeconds(n int) *Worker {
	if n >= 0 {
		w.waitSeconds = n
	}
	return w
}

// Run blocks consuming messages until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("notifier worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notifier worker stopped")
			return
		default:
		}

		msgs, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("notifier worker stopped")
				return
			}
			w.logger.Error("notifier: receive failed", "error", err)
			continue
		}
		for _, msg := range msgs {
			if err := w.Process(ctx, msg.Body); err != nil {
				// Leave the message for redelivery.
				w.logger.Error("notifier: process failed", "message_id", msg.ID, "error", err)
				continue
			}
			if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
				w.logger.Error("notifier: delete failed", "message_id", msg.ID, "error", err)
			}
		}
	}
}

// Process handles one raw queue message. Unknown event types are
// dropped, not retried.
func (w *Worker) Process(ctx context.Context, body string) error {
	var env events.Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		w.logger.Warn("notifier: dropping unparseable message", "error", err)
		return nil
	}

	switch env.EventType {
	case events.AppointmentCancelledV1{}.EventType():
		var evt events.AppointmentCancelledV1
		if err := env.Decode(&evt); err != nil {
			w.logger.Warn("notifier: dropping bad payload", "event_type", env.EventType, "error", err)
			return nil
		}
		return w.handleCancelled(ctx, evt)
	case events.ConsultationStartedV1{}.EventType():
		var evt events.ConsultationStartedV1
		if err := env.Decode(&evt); err != nil {
			w.logger.Warn("notifier: dropping bad payload", "event_type", env.EventType, "error", err)
			return nil
		}
		return w.handleStarted(ctx, evt)
	default:
		w.logger.Warn("notifier: dropping unknown event", "event_type", env.EventType)
		return nil
	}
}

func (w *Worker) handleCancelled(ctx context.Context, evt events.AppointmentCancelledV1) error {
	members, err := w.listMembers(ctx, evt.GroupID)
	if err != nil {
		return err
	}
	if len(members) == 0 || w.sender == nil {
		return nil
	}
	scheduledAt := evt.ScheduledAt
	if evt.InstanceDate != nil {
		scheduledAt = *evt.InstanceDate
	}
	return w.sender.SendCancellation(ctx, members, notify.CancellationNotice{
		Title:          evt.Title,
		ScheduledAt:    scheduledAt,
		SeriesCanceled: evt.Scope == events.ScopeSeries,
		RefundEligible: evt.RefundEligible,
		Warning:        evt.Warning,
	})
}

func (w *Worker) handleStarted(ctx context.Context, evt events.ConsultationStartedV1) error {
	members, err := w.listMembers(ctx, evt.GroupID)
	if err != nil {
		return err
	}
	if len(members) == 0 || w.sender == nil {
		return nil
	}
	return w.sender.SendConsultationStarted(ctx, members, notify.StartedNotice{
		Title:       evt.Title,
		ScheduledAt: evt.ScheduledAt,
	})
}

func (w *Worker) listMembers(ctx context.Context, groupID uuid.UUID) ([]groups.Member, error) {
	if w.members == nil {
		return nil, nil
	}
	return w.members.ListMembers(ctx, groupID)
}
