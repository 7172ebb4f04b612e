package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carelink-health/agenda-platform/internal/events"
	"github.com/carelink-health/agenda-platform/internal/groups"
	"github.com/carelink-health/agenda-platform/internal/idlock"
	"github.com/carelink-health/agenda-platform/internal/notify"
	"github.com/carelink-health/agenda-platform/internal/observability/metrics"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

var tracer = otel.Tracer("github.com/carelink-health/agenda-platform/internal/appointments")

// AppointmentStore is the persistence surface the lifecycle needs.
type AppointmentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	AddException(ctx context.Context, id uuid.UUID, date time.Time) error
	DeleteSeries(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, version int64) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus, version int64) error
}

// MemberLister resolves a group's members for notifications.
type MemberLister interface {
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]groups.Member, error)
}

// Notifier fans decisions out to group members. Delivery failures never
// undo a committed decision.
type Notifier interface {
	SendCancellation(ctx context.Context, members []groups.Member, notice notify.CancellationNotice) error
	SendConsultationStarted(ctx context.Context, members []groups.Member, notice notify.StartedNotice) error
}

// ServiceOptions holds the optional collaborators. Everything here may
// be zero: the service then runs store-only, which is how most unit
// tests exercise it.
type ServiceOptions struct {
	Locker    *idlock.Locker
	Publisher *events.Publisher
	Notifier  Notifier
	Members   MemberLister
	Metrics   *metrics.AgendaMetrics

	// Retry knobs for transient store failures during deletion commits.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service orchestrates the appointment lifecycle: it reads state, runs
// the pure decision functions (expander, cancellation policy, start
// gate), commits the outcome, and only then publishes and notifies.
type Service struct {
	store     AppointmentStore
	locker    *idlock.Locker
	publisher *events.Publisher
	notifier  Notifier
	members   MemberLister
	metrics   *metrics.AgendaMetrics
	logger    *logging.Logger
	gate      StartGate

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	now              func() time.Time
}

// NewService creates the lifecycle service.
func NewService(store AppointmentStore, logger *logging.Logger, opts ServiceOptions) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:            store,
		locker:           opts.Locker,
		publisher:        opts.Publisher,
		notifier:         opts.Notifier,
		members:          opts.Members,
		metrics:          opts.Metrics,
		logger:           logger,
		retryMaxAttempts: opts.RetryMaxAttempts,
		retryBaseDelay:   opts.RetryBaseDelay,
		now:              opts.Now,
	}
}

// Instances expands one appointment's occurrences inside the window.
func (s *Service) Instances(ctx context.Context, id uuid.UUID, windowStart, windowEnd time.Time) ([]Instance, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	started := s.now()
	instances, err := Expand(app, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveExpandLatency(string(app.Recurrence.Type), time.Since(started).Seconds())
	return instances, nil
}

// Agenda expands every appointment of the group across the window and
// merges the occurrences into one chronological list.
func (s *Service) Agenda(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]Instance, error) {
	apps, err := s.store.ListByGroup(ctx, groupID, from, to)
	if err != nil {
		return nil, err
	}
	var all []Instance
	for _, app := range apps {
		instances, err := Expand(app, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, instances...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].OccurrenceDate.Before(all[j].OccurrenceDate)
	})
	return all, nil
}

// DeleteRequest asks for a cancellation. A nil InstanceDate removes the
// whole series; Confirmed acknowledges a previously surfaced warning.
type DeleteRequest struct {
	ID           uuid.UUID
	InstanceDate *time.Time
	Confirmed    bool
}

// DeleteResult reports what the cancellation did. When NeedsConfirmation
// is set nothing was committed: the caller must surface the verdict's
// warning and repeat the request with Confirmed.
type DeleteResult struct {
	Verdict           CancellationVerdict      `json:"verdict"`
	NeedsConfirmation bool                     `json:"needs_confirmation"`
	Scope             events.CancellationScope `json:"scope,omitempty"`
	Deleted           bool                     `json:"deleted"`
}

// Delete cancels one occurrence or the whole series. The refund verdict
// is evaluated first; a refund-ineligible cancellation commits only
// after explicit confirmation. The payment status is never modified
// here, whatever the verdict says.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.Delete",
		trace.WithAttributes(attribute.String("appointment.id", req.ID.String())))
	defer span.End()

	app, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return DeleteResult{}, err
	}

	// The verdict is judged against the occurrence being removed, which
	// for recurring series keeps the anchor's time of day. A date the
	// schedule never produces is rejected before anything is judged or
	// committed: accepting it would let a caller shift the verdict off
	// the real occurrence.
	effectiveAt := app.ScheduledAt
	if req.InstanceDate != nil {
		if !app.OccursOn(*req.InstanceDate) {
			return DeleteResult{}, fmt.Errorf("appointments: delete %s on %s: %w",
				req.ID, req.InstanceDate.Format(time.DateOnly), ErrInvalidInstanceDate)
		}
		effectiveAt = withTimeOfDay(DateOnly(*req.InstanceDate), app.ScheduledAt)
	}
	judged := *app
	judged.ScheduledAt = effectiveAt
	verdict := EvaluateCancellation(s.now(), &judged)

	result := DeleteResult{Verdict: verdict}
	if !verdict.RefundEligible && !req.Confirmed {
		result.NeedsConfirmation = true
		return result, nil
	}

	lock, err := s.locker.Acquire(ctx, idlock.AppointmentKey(req.ID))
	if err != nil {
		return DeleteResult{}, fmt.Errorf("appointments: delete %s: %w", req.ID, err)
	}
	defer lock.Release(ctx)

	scope := events.ScopeSeries
	if req.InstanceDate != nil && app.Recurrence.IsRecurring() {
		scope = events.ScopeInstance
	}

	switch scope {
	case events.ScopeInstance:
		err = s.withRetry(ctx, func() error {
			return s.store.AddException(ctx, req.ID, *req.InstanceDate)
		})
	default:
		err = s.withRetry(ctx, func() error {
			return s.store.DeleteSeries(ctx, req.ID)
		})
	}
	if err != nil {
		return DeleteResult{}, err
	}

	result.Scope = scope
	result.Deleted = true
	s.metrics.ObserveCancellation(string(scope), verdict.RefundEligible)
	s.logger.Info("appointment cancelled",
		"appointment_id", req.ID.String(),
		"scope", string(scope),
		"refund_eligible", verdict.RefundEligible,
	)

	s.publishCancelled(ctx, app, scope, req.InstanceDate, verdict)
	s.notifyCancelled(ctx, app, scope, effectiveAt, verdict)
	return result, nil
}

// Start moves a scheduled teleconsultation to InProgress once the gate
// opens.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Start",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer span.End()

	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.IsTeleconsultation {
		s.metrics.ObserveStartAttempt("rejected")
		return nil, fmt.Errorf("appointments: start %s: %w", id, ErrNotTeleconsultation)
	}
	if app.Status != StatusScheduled {
		s.metrics.ObserveStartAttempt("rejected")
		return nil, fmt.Errorf("appointments: start %s from %s: %w", id, app.Status, ErrInvalidTransition)
	}

	now := s.now()
	if !s.gate.CanStart(now, app.ScheduledAt) {
		s.metrics.ObserveStartAttempt("blocked")
		return nil, &NotStartableError{MinutesUntilStart: s.gate.MinutesUntilStart(now, app.ScheduledAt)}
	}

	if err := s.store.UpdateStatus(ctx, id, StatusScheduled, StatusInProgress, app.Version); err != nil {
		return nil, err
	}
	app.Status = StatusInProgress
	app.Version++
	s.metrics.ObserveStartAttempt("started")
	s.logger.Info("consultation started", "appointment_id", id.String())

	s.publishStarted(ctx, app, now)
	s.notifyStarted(ctx, app)
	return app, nil
}

// Complete closes an in-progress consultation.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != StatusInProgress {
		return nil, fmt.Errorf("appointments: complete %s from %s: %w", id, app.Status, ErrInvalidTransition)
	}
	if err := s.store.UpdateStatus(ctx, id, StatusInProgress, StatusCompleted, app.Version); err != nil {
		return nil, err
	}
	app.Status = StatusCompleted
	app.Version++
	s.logger.Info("consultation completed", "appointment_id", id.String())
	return app, nil
}

// ConfirmRealized releases a held payment after the appointment took
// place.
func (s *Service) ConfirmRealized(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.PaymentStatus.CanTransitionTo(PaymentReleased) {
		return nil, fmt.Errorf("appointments: confirm %s from payment %s: %w", id, app.PaymentStatus, ErrInvalidTransition)
	}
	if err := s.store.UpdatePaymentStatus(ctx, id, app.PaymentStatus, PaymentReleased, app.Version); err != nil {
		return nil, err
	}
	app.PaymentStatus = PaymentReleased
	app.Version++
	s.logger.Info("payment released", "appointment_id", id.String())
	return app, nil
}

// withRetry retries transient store failures. Both deletion commits are
// idempotent, so replaying after an ambiguous failure is safe.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	delay := s.retryBaseDelay
	var err error
	for attempt := 1; attempt <= s.retryMaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		if attempt == s.retryMaxAttempts {
			break
		}
		s.logger.Warn("store unavailable, retrying", "attempt", attempt, "delay", delay.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (s *Service) publishCancelled(ctx context.Context, app *Appointment, scope events.CancellationScope, instanceDate *time.Time, verdict CancellationVerdict) {
	if s.publisher == nil {
		return
	}
	evt := events.AppointmentCancelledV1{
		AppointmentID:  app.ID,
		GroupID:        app.GroupID,
		Title:          app.Title,
		Scope:          scope,
		ScheduledAt:    app.ScheduledAt,
		RefundEligible: verdict.RefundEligible,
		Warning:        verdict.Warning,
		OccurredAt:     s.now().UTC(),
	}
	if instanceDate != nil {
		d := DateOnly(*instanceDate)
		evt.InstanceDate = &d
	}
	if err := s.publisher.Publish(ctx, app.ID.String(), evt); err != nil {
		s.logger.Error("publish cancellation event failed", "appointment_id", app.ID.String(), "error", err)
	}
}

func (s *Service) publishStarted(ctx context.Context, app *Appointment, startedAt time.Time) {
	if s.publisher == nil {
		return
	}
	evt := events.ConsultationStartedV1{
		AppointmentID: app.ID,
		GroupID:       app.GroupID,
		Title:         app.Title,
		ScheduledAt:   app.ScheduledAt,
		StartedAt:     startedAt.UTC(),
	}
	if err := s.publisher.Publish(ctx, app.ID.String(), evt); err != nil {
		s.logger.Error("publish started event failed", "appointment_id", app.ID.String(), "error", err)
	}
}

func (s *Service) notifyCancelled(ctx context.Context, app *Appointment, scope events.CancellationScope, effectiveAt time.Time, verdict CancellationVerdict) {
	members := s.groupMembers(ctx, app.GroupID)
	if s.notifier == nil || len(members) == 0 {
		return
	}
	notice := notify.CancellationNotice{
		Title:          app.Title,
		ScheduledAt:    effectiveAt,
		SeriesCanceled: scope == events.ScopeSeries && app.Recurrence.IsRecurring(),
		RefundEligible: verdict.RefundEligible,
		Warning:        verdict.Warning,
	}
	if err := s.notifier.SendCancellation(ctx, members, notice); err != nil {
		s.logger.Error("cancellation notice failed", "appointment_id", app.ID.String(), "error", err)
	}
}

func (s *Service) notifyStarted(ctx context.Context, app *Appointment) {
	members := s.groupMembers(ctx, app.GroupID)
	if s.notifier == nil || len(members) == 0 {
		return
	}
	notice := notify.StartedNotice{
		Title:       app.Title,
		ScheduledAt: app.ScheduledAt,
	}
	if err := s.notifier.SendConsultationStarted(ctx, members, notice); err != nil {
		s.logger.Error("started notice failed", "appointment_id", app.ID.String(), "error", err)
	}
}

func (s *Service) groupMembers(ctx context.Context, groupID uuid.UUID) []groups.Member {
	if s.members == nil {
		return nil
	}
	members, err := s.members.ListMembers(ctx, groupID)
	if err != nil {
		s.logger.Error("list group members failed", "group_id", groupID.String(), "error", err)
		return nil
	}
	return members
}
