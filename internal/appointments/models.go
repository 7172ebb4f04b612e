// Package appointments implements the scheduling core: recurrence
// expansion, the cancellation/refund policy, the consultation start gate,
// and the lifecycle orchestration that commits decisions to the store.
package appointments

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppointmentType classifies what kind of appointment this is.
type AppointmentType string

const (
	TypeCommon       AppointmentType = "common"
	TypeMedical      AppointmentType = "medical"
	TypeFisioterapia AppointmentType = "fisioterapia"
	TypeExames       AppointmentType = "exames"
)

// ParseAppointmentType validates a wire value. Unrecognized values are
// rejected at the boundary instead of defaulting.
func ParseAppointmentType(s string) (AppointmentType, error) {
	switch AppointmentType(s) {
	case TypeCommon, TypeMedical, TypeFisioterapia, TypeExames:
		return AppointmentType(s), nil
	}
	return "", fmt.Errorf("appointments: unknown appointment type %q", s)
}

// PaymentStatus tracks the payment lifecycle of an appointment.
// It only ever moves forward: none → paid_held → {paid, released}.
type PaymentStatus string

const (
	PaymentNone     PaymentStatus = "none"
	PaymentPaidHeld PaymentStatus = "paid_held"
	PaymentPaid     PaymentStatus = "paid"
	PaymentReleased PaymentStatus = "released"
)

// ParsePaymentStatus validates a wire value.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentNone, PaymentPaidHeld, PaymentPaid, PaymentReleased:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("appointments: unknown payment status %q", s)
}

// IsPaid reports whether any amount has been paid, held or settled.
func (p PaymentStatus) IsPaid() bool {
	return p == PaymentPaidHeld || p == PaymentPaid || p == PaymentReleased
}

// CanTransitionTo encodes the forward-only payment lattice.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch p {
	case PaymentNone:
		return next == PaymentPaidHeld
	case PaymentPaidHeld:
		return next == PaymentPaid || next == PaymentReleased
	}
	return false
}

// RecurrenceType selects how an appointment repeats.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "none"
	RecurrenceDaily    RecurrenceType = "daily"
	RecurrenceWeekdays RecurrenceType = "weekdays"
	RecurrenceCustom   RecurrenceType = "custom"
)

// ParseRecurrenceType validates a wire value.
func ParseRecurrenceType(s string) (RecurrenceType, error) {
	switch RecurrenceType(s) {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekdays, RecurrenceCustom:
		return RecurrenceType(s), nil
	}
	return "", fmt.Errorf("appointments: unknown recurrence type %q", s)
}

// RecurrenceRule is a closed description of how an appointment repeats.
// DaysOfWeek is only meaningful for RecurrenceCustom.
type RecurrenceRule struct {
	Type       RecurrenceType `json:"type"`
	EndDate    *time.Time     `json:"end_date,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
}

// IsRecurring reports whether the rule generates more than the anchor.
func (r RecurrenceRule) IsRecurring() bool {
	return r.Type != "" && r.Type != RecurrenceNone
}

// NewRecurrenceRule validates the combination of type, end boundary and
// custom days. The wire carries days as a CSV of 0-6 ordinals, 0=Sunday.
func NewRecurrenceRule(typ string, endDate *time.Time, daysCSV string) (RecurrenceRule, error) {
	if typ == "" {
		typ = string(RecurrenceNone)
	}
	parsed, err := ParseRecurrenceType(typ)
	if err != nil {
		return RecurrenceRule{}, err
	}
	rule := RecurrenceRule{Type: parsed, EndDate: endDate}
	if parsed == RecurrenceCustom {
		days, err := ParseRecurrenceDays(daysCSV)
		if err != nil {
			return RecurrenceRule{}, err
		}
		if len(days) == 0 {
			return RecurrenceRule{}, fmt.Errorf("appointments: custom recurrence requires at least one weekday")
		}
		rule.DaysOfWeek = days
	} else if strings.TrimSpace(daysCSV) != "" {
		return RecurrenceRule{}, fmt.Errorf("appointments: recurrence days only valid for custom recurrence")
	}
	return rule, nil
}

// ParseRecurrenceDays parses the wire CSV ("0,2,4") into weekdays.
// Duplicates collapse, output is sorted.
func ParseRecurrenceDays(csv string) ([]time.Weekday, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("appointments: invalid recurrence day %q", part)
		}
		seen[time.Weekday(n)] = true
	}
	days := make([]time.Weekday, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// FormatRecurrenceDays renders weekdays back to the wire CSV.
func FormatRecurrenceDays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// Status is the lifecycle state of an appointment record.
type Status string

const (
	StatusScheduled         Status = "scheduled"
	StatusInProgress        Status = "in_progress"
	StatusCompleted         Status = "completed"
	StatusCancelledInstance Status = "cancelled_instance"
	StatusCancelledSeries   Status = "cancelled_series"
)

// ParseStatus validates a wire value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusInProgress, StatusCompleted,
		StatusCancelledInstance, StatusCancelledSeries:
		return Status(s), nil
	}
	return "", fmt.Errorf("appointments: unknown status %q", s)
}

// Appointment is the scheduling record. Exceptions are the occurrence
// dates removed from the series; they never exist for non-recurring
// appointments.
type Appointment struct {
	ID                 uuid.UUID       `json:"id"`
	GroupID            uuid.UUID       `json:"group_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Type               AppointmentType `json:"type"`
	ScheduledAt        time.Time       `json:"scheduled_at"`
	Location           string          `json:"location,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Recurrence         RecurrenceRule  `json:"recurrence"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	IsTeleconsultation bool            `json:"is_teleconsultation"`
	DoctorID           *uuid.UUID      `json:"doctor_id,omitempty"`
	Status             Status          `json:"status"`
	Version            int64           `json:"version"`
	Exceptions         []time.Time     `json:"exceptions,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsMedical reports whether the stricter paid-medical cancellation rules apply.
func (a *Appointment) IsMedical() bool {
	return a.Type == TypeMedical
}

// Instance is one concrete occurrence projected from a rule. It is never
// persisted on its own; IsException marks dates a caller asked to remove.
type Instance struct {
	ParentID       uuid.UUID `json:"id"`
	OccurrenceDate time.Time `json:"occurrence_date"`
	IsException    bool      `json:"is_exception"`
}

// DateOnly truncates a timestamp to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same UTC calendar day.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
