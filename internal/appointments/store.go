package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointments and their exception sets.
// The store is the single writer boundary: all mutations are either
// idempotent (exceptions) or version-checked (status transitions).
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("appointments: db required")
	}
	return &Store{db: db}
}

const appointmentColumns = `id, group_id, type, title, description, scheduled_at, location, notes,
	recurrence_type, recurrence_days, recurrence_end, payment_status, is_teleconsultation,
	doctor_id, status, version, created_at, updated_at`

// Create inserts a new scheduled appointment.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentNone
	}
	if a.Recurrence.Type == "" {
		a.Recurrence.Type = RecurrenceNone
	}

	var doctorID uuid.NullUUID
	if a.DoctorID != nil {
		doctorID = uuid.NullUUID{UUID: *a.DoctorID, Valid: true}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, group_id, type, title, description, scheduled_at, location, notes,
			recurrence_type, recurrence_days, recurrence_end, payment_status, is_teleconsultation,
			doctor_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.GroupID, string(a.Type), a.Title, a.Description, a.ScheduledAt, a.Location, a.Notes,
		string(a.Recurrence.Type), FormatRecurrenceDays(a.Recurrence.DaysOfWeek), a.Recurrence.EndDate,
		string(a.PaymentStatus), a.IsTeleconsultation, doctorID, string(a.Status), a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return s.wrap("create", err)
	}
	return nil
}

// Get loads an appointment and its exception dates.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments WHERE id = $1`, id)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointments: get %s: %w", id, ErrAppointmentNotFound)
		}
		return nil, s.wrap("get", err)
	}

	exceptions, err := s.listExceptions(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Exceptions = exceptions
	return a, nil
}

// ListByGroup returns the group's appointments whose anchor or recurrence
// window could intersect [from, to], ordered by scheduled time.
func (s *Store) ListByGroup(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE group_id = $1
		  AND scheduled_at <= $3
		  AND (recurrence_type <> 'none' OR scheduled_at >= $2)
		ORDER BY scheduled_at ASC`, groupID, from, to)
	if err != nil {
		return nil, s.wrap("list by group", err)
	}
	defer rows.Close()

	var result []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list by group", err)
	}

	for _, a := range result {
		exceptions, err := s.listExceptions(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Exceptions = exceptions
	}
	return result, nil
}

// AddException removes a single occurrence date from a recurring series.
// Inserting the same date twice is a no-op: concurrent single-date
// deletions of the same occurrence both succeed.
func (s *Store) AddException(ctx context.Context, id uuid.UUID, date time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointment_exceptions (appointment_id, exception_date, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (appointment_id, exception_date) DO NOTHING`,
		id, DateOnly(date), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("appointments: add exception %s: %w", id, ErrAppointmentNotFound)
		}
		return s.wrap("add exception", err)
	}
	return nil
}

// DeleteSeries removes the parent appointment, its rule, and all
// exceptions (cascade). Terminal: there is no un-delete.
func (s *Store) DeleteSeries(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return s.wrap("delete series", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointments: delete series %s: %w", id, ErrAppointmentNotFound)
	}
	return nil
}

// UpdateStatus transitions status under an optimistic version check. A
// writer holding a stale version receives ErrVersionConflict instead of
// silently overwriting the concurrent change.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, version int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND status = $4 AND version = $5`,
		string(to), time.Now().UTC(), id, string(from), version)
	if err != nil {
		return s.wrap("update status", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrMissing(ctx, id, "update status")
	}
	return nil
}

// UpdatePaymentStatus moves the payment flag forward. The caller is
// responsible for checking the transition lattice first.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus, version int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET payment_status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND payment_status = $4 AND version = $5`,
		string(to), time.Now().UTC(), id, string(from), version)
	if err != nil {
		return s.wrap("update payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrMissing(ctx, id, "update payment status")
	}
	return nil
}

func (s *Store) conflictOrMissing(ctx context.Context, id uuid.UUID, op string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return s.wrap(op, err)
	}
	if !exists {
		return fmt.Errorf("appointments: %s %s: %w", op, id, ErrAppointmentNotFound)
	}
	return fmt.Errorf("appointments: %s %s: %w", op, id, ErrVersionConflict)
}

func (s *Store) listExceptions(ctx context.Context, id uuid.UUID) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT exception_date FROM appointment_exceptions
		WHERE appointment_id = $1
		ORDER BY exception_date ASC`, id)
	if err != nil {
		return nil, s.wrap("list exceptions", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("appointments: scan exception: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a              Appointment
		typ            string
		recurrenceType string
		recurrenceDays string
		recurrenceEnd  *time.Time
		paymentStatus  string
		doctorID       uuid.NullUUID
		status         string
	)
	err := row.Scan(
		&a.ID, &a.GroupID, &typ, &a.Title, &a.Description, &a.ScheduledAt, &a.Location, &a.Notes,
		&recurrenceType, &recurrenceDays, &recurrenceEnd, &paymentStatus, &a.IsTeleconsultation,
		&doctorID, &status, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// The database is a trust boundary too: reject rows whose enums no
	// longer parse instead of defaulting.
	if a.Type, err = ParseAppointmentType(typ); err != nil {
		return nil, err
	}
	if a.PaymentStatus, err = ParsePaymentStatus(paymentStatus); err != nil {
		return nil, err
	}
	if a.Recurrence, err = NewRecurrenceRule(recurrenceType, recurrenceEnd, recurrenceDays); err != nil {
		return nil, err
	}
	if a.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if doctorID.Valid {
		id := doctorID.UUID
		a.DoctorID = &id
	}
	return &a, nil
}

func (s *Store) wrap(op string, err error) error {
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("appointments: %s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}
