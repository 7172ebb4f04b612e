package groups

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestListMembers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	groupID := uuid.New()
	patientID := uuid.New()
	caregiverID := uuid.New()

	mock.ExpectQuery("SELECT user_id, group_id, role, name, email").
		WithArgs(groupID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "group_id", "role", "name", "email"}).
			AddRow(patientID, groupID, "patient", "Ana Souza", "ana@example.com").
			AddRow(caregiverID, groupID, "caregiver", "Bruno Souza", "bruno@example.com"))

	store := NewStore(mock)
	members, err := store.ListMembers(context.Background(), groupID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, RolePatient, members[0].Role)
	require.Equal(t, "Ana Souza", members[0].Name)
	require.Equal(t, RoleCaregiver, members[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	groupID := uuid.New()
	patientID := uuid.New()

	mock.ExpectQuery("SELECT user_id, group_id, role, name, email").
		WithArgs(groupID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "group_id", "role", "name", "email"}).
			AddRow(patientID, groupID, "patient", "Ana Souza", "ana@example.com"))

	store := NewStore(mock)
	patient, err := store.Patient(context.Background(), groupID)
	require.NoError(t, err)
	require.NotNil(t, patient)
	require.Equal(t, patientID, patient.UserID)
}

func TestPatientAbsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	groupID := uuid.New()

	mock.ExpectQuery("SELECT user_id, group_id, role, name, email").
		WithArgs(groupID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "group_id", "role", "name", "email"}))

	store := NewStore(mock)
	patient, err := store.Patient(context.Background(), groupID)
	require.NoError(t, err)
	require.Nil(t, patient)
}

func TestNewStoreNilPanics(t *testing.T) {
	require.Panics(t, func() { NewStore(nil) })
}
