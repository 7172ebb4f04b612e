package groups

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemberServer(t *testing.T, mock pgxmock.PgxPoolIface) *httptest.Server {
	t.Helper()
	h := NewHandler(NewStore(mock), nil)
	r := chi.NewRouter()
	r.Get("/groups/{groupID}/members", h.ListMembers)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerListMembers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	groupID := uuid.New()
	mock.ExpectQuery("SELECT user_id, group_id, role, name, email").
		WithArgs(groupID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "group_id", "role", "name", "email"}).
			AddRow(uuid.New(), groupID, "patient", "Ana Souza", "ana@example.com").
			AddRow(uuid.New(), groupID, "doctor", "Dra. Lima", "lima@example.com"))

	srv := newMemberServer(t, mock)
	resp, err := http.Get(srv.URL + "/groups/" + groupID.String() + "/members")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Count   int      `json:"count"`
		Members []Member `json:"members"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, RolePatient, payload.Members[0].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerListMembersBadID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	srv := newMemberServer(t, mock)
	resp, err := http.Get(srv.URL + "/groups/not-a-uuid/members")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
