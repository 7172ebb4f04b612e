package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "group_id", "type", "title", "description", "scheduled_at", "location", "notes",
	"recurrence_type", "recurrence_days", "recurrence_end", "payment_status", "is_teleconsultation",
	"doctor_id", "status", "version", "created_at", "updated_at",
}

func appointmentRow(id, groupID uuid.UUID, scheduledAt time.Time) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(appointmentCols).AddRow(
		id, groupID, "medical", "Cardiology follow-up", "", scheduledAt, "", "",
		"daily", "", (*time.Time)(nil), "paid_held", true,
		uuid.NullUUID{}, "scheduled", int64(3), now, now,
	)
}

func TestStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	groupID := uuid.New()
	scheduledAt := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(appointmentRow(id, groupID, scheduledAt))
	mock.ExpectQuery("FROM appointment_exceptions").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exception_date"}).
			AddRow(time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)))

	store := NewStore(mock)
	a, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, TypeMedical, a.Type)
	assert.Equal(t, PaymentPaidHeld, a.PaymentStatus)
	assert.Equal(t, RecurrenceDaily, a.Recurrence.Type)
	assert.True(t, a.IsTeleconsultation)
	assert.Nil(t, a.DoctorID)
	assert.Equal(t, int64(3), a.Version)
	require.Len(t, a.Exceptions, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	store := NewStore(mock)
	_, err = store.Get(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStoreGetRejectsCorruptEnum(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(
			id, uuid.New(), "surgery", "Bad row", "", now, "", "",
			"none", "", (*time.Time)(nil), "none", false,
			uuid.NullUUID{}, "scheduled", int64(0), now, now,
		))

	store := NewStore(mock)
	_, err = store.Get(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown appointment type")
}

func TestStoreGetRejectsCorruptStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(
			id, uuid.New(), "common", "Bad row", "", now, "", "",
			"none", "", (*time.Time)(nil), "none", false,
			uuid.NullUUID{}, "archived", int64(0), now, now,
		))

	store := NewStore(mock)
	_, err = store.Get(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestStoreCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "common", "Physio", "", pgxmock.AnyArg(), "", "",
			"none", "", (*time.Time)(nil), "none", false, uuid.NullUUID{}, "scheduled", int64(0),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	a := &Appointment{
		GroupID:     uuid.New(),
		Type:        TypeCommon,
		Title:       "Physio",
		ScheduledAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Create(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusScheduled, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddExceptionIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	date := time.Date(2026, 7, 3, 15, 30, 0, 0, time.UTC)

	// The conflict path reports zero rows affected; still not an error.
	mock.ExpectExec("INSERT INTO appointment_exceptions").
		WithArgs(id, DateOnly(date), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewStore(mock)
	require.NoError(t, store.AddException(context.Background(), id, date))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddExceptionMissingParent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("INSERT INTO appointment_exceptions").
		WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	store := NewStore(mock)
	err = store.AddException(context.Background(), id, time.Now())
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestDeleteSeries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	store := NewStore(mock)
	require.NoError(t, store.DeleteSeries(context.Background(), id))
}

func TestDeleteSeriesNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	store := NewStore(mock)
	err = store.DeleteSeries(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("in_progress", pgxmock.AnyArg(), id, "scheduled", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	require.NoError(t, store.UpdateStatus(context.Background(), id, StatusScheduled, StatusInProgress, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("in_progress", pgxmock.AnyArg(), id, "scheduled", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewStore(mock)
	err = store.UpdateStatus(context.Background(), id, StatusScheduled, StatusInProgress, 2)
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestUpdateStatusMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("completed", pgxmock.AnyArg(), id, "in_progress", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	store := NewStore(mock)
	err = store.UpdateStatus(context.Background(), id, StatusInProgress, StatusCompleted, 1)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestUpdatePaymentStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET payment_status").
		WithArgs("released", pgxmock.AnyArg(), id, "paid_held", int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	require.NoError(t, store.UpdatePaymentStatus(context.Background(), id, PaymentPaidHeld, PaymentReleased, 5))
}

func TestListByGroup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	groupID := uuid.New()
	id := uuid.New()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM appointments").
		WithArgs(groupID, from, to).
		WillReturnRows(appointmentRow(id, groupID, time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC)))
	mock.ExpectQuery("FROM appointment_exceptions").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exception_date"}))

	store := NewStore(mock)
	apps, err := store.ListByGroup(context.Background(), groupID, from, to)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, id, apps[0].ID)
	assert.Empty(t, apps[0].Exceptions)
}
