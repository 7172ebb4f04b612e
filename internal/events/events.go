// Package events defines the versioned domain events the scheduling core
// publishes after commits, plus the queue transport used to deliver them
// to downstream collaborators (notifications, calendar refresh).
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a versioned domain event.
type Event interface {
	EventType() string
}

// CancellationScope distinguishes single-date from whole-series deletion.
type CancellationScope string

const (
	ScopeInstance CancellationScope = "instance"
	ScopeSeries   CancellationScope = "series"
)

// AppointmentCancelledV1 is published after a deletion commit.
type AppointmentCancelledV1 struct {
	AppointmentID  uuid.UUID         `json:"appointment_id"`
	GroupID        uuid.UUID         `json:"group_id"`
	Title          string            `json:"title"`
	Scope          CancellationScope `json:"scope"`
	InstanceDate   *time.Time        `json:"instance_date,omitempty"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	RefundEligible bool              `json:"refund_eligible"`
	Warning        string            `json:"warning,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// EventType implements Event.
func (AppointmentCancelledV1) EventType() string { return "appointment_cancelled.v1" }

// ConsultationStartedV1 is published when a teleconsultation goes live.
type ConsultationStartedV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	GroupID       uuid.UUID `json:"group_id"`
	Title         string    `json:"title"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	StartedAt     time.Time `json:"started_at"`
}

// EventType implements Event.
func (ConsultationStartedV1) EventType() string { return "consultation_started.v1" }
